package chat

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/peterh/liner"
	"github.com/pkg/errors"
	"golang.org/x/term"
)

// ErrInterrupted is returned when the user presses Ctrl+C at a prompt.
var ErrInterrupted = errors.New("interrupted")

// LineReader reads one answer per call. io.EOF means the user closed the input.
type LineReader interface {
	ReadLine(prompt string) (string, error)
	Close() error
}

// NewLineReader uses a line editor with history when stdin is a terminal and plain
// line scanning otherwise, so answers can be piped in.
func NewLineReader(stdin *os.File, out io.Writer) LineReader {
	if term.IsTerminal(int(stdin.Fd())) {
		state := liner.NewLiner()
		state.SetCtrlCAborts(true)
		return &terminalReader{state: state}
	}
	return NewPlainReader(stdin, out)
}

type terminalReader struct {
	state *liner.State
}

func (r *terminalReader) ReadLine(prompt string) (string, error) {
	line, err := r.state.Prompt(prompt)
	if errors.Is(err, liner.ErrPromptAborted) {
		return "", ErrInterrupted
	}
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(line) != "" {
		r.state.AppendHistory(line)
	}
	return line, nil
}

func (r *terminalReader) Close() error {
	return r.state.Close()
}

type plainReader struct {
	scanner *bufio.Scanner
	out     io.Writer
}

func NewPlainReader(in io.Reader, out io.Writer) LineReader {
	return &plainReader{scanner: bufio.NewScanner(in), out: out}
}

func (r *plainReader) ReadLine(prompt string) (string, error) {
	_, _ = fmt.Fprint(r.out, prompt)
	if !r.scanner.Scan() {
		if err := r.scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return r.scanner.Text(), nil
}

func (r *plainReader) Close() error {
	return nil
}

// ReadSecret reads a value without echo. It refuses to run without a terminal so secrets
// never end up in a pipe log by accident.
func ReadSecret(stdin *os.File, out io.Writer, prompt string) (string, error) {
	fd := int(stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.New("cannot read a secret: stdin is not a terminal")
	}
	_, _ = fmt.Fprint(out, prompt)
	value, err := term.ReadPassword(fd)
	_, _ = fmt.Fprintln(out)
	if err != nil {
		return "", errors.Wrapf(err, "failed to read secret")
	}
	return strings.TrimSpace(string(value)), nil
}
