package logger

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/danielrosehill/OWUI-Docker-Compose-Generation-Agent/pkg/api/logger/color"
)

type LogLevel int

const (
	LogLevelDebug LogLevel = iota
	LogLevelInfo
	LogLevelWarn
	LogLevelError
)

type logLevelKey struct{}

type Logger interface {
	Error(ctx context.Context, format string, a ...any)
	Warn(ctx context.Context, format string, a ...any)
	Info(ctx context.Context, format string, a ...any)
	Debug(ctx context.Context, format string, a ...any)

	SetLogLevel(ctx context.Context, level LogLevel) context.Context
}

type logger struct {
	out io.Writer
	err io.Writer
}

func New() Logger {
	return &logger{out: os.Stdout, err: os.Stderr}
}

// NewWithWriters is used by tests and by commands that need to capture output.
func NewWithWriters(out, err io.Writer) Logger {
	return &logger{out: out, err: err}
}

func (l *logger) SetLogLevel(ctx context.Context, level LogLevel) context.Context {
	return context.WithValue(ctx, logLevelKey{}, level)
}

func levelFrom(ctx context.Context) LogLevel {
	if ctx == nil {
		return LogLevelInfo
	}
	if level, ok := ctx.Value(logLevelKey{}).(LogLevel); ok {
		return level
	}
	return LogLevelInfo
}

func (l *logger) Error(ctx context.Context, format string, a ...any) {
	if levelFrom(ctx) > LogLevelError {
		return
	}
	_, _ = fmt.Fprintln(l.err, color.Red("ERROR: "+fmt.Sprintf(format, a...)))
}

func (l *logger) Warn(ctx context.Context, format string, a ...any) {
	if levelFrom(ctx) > LogLevelWarn {
		return
	}
	_, _ = fmt.Fprintln(l.err, color.Yellow("WARN: "+fmt.Sprintf(format, a...)))
}

func (l *logger) Info(ctx context.Context, format string, a ...any) {
	if levelFrom(ctx) > LogLevelInfo {
		return
	}
	_, _ = fmt.Fprintln(l.out, "INFO: "+fmt.Sprintf(format, a...))
}

func (l *logger) Debug(ctx context.Context, format string, a ...any) {
	if levelFrom(ctx) > LogLevelDebug {
		return
	}
	_, _ = fmt.Fprintln(l.out, color.Gray("DEBUG: "+fmt.Sprintf(format, a...)))
}

type noop struct{}

// NewNoop returns a logger that discards everything.
func NewNoop() Logger {
	return noop{}
}

func (noop) Error(context.Context, string, ...any) {}
func (noop) Warn(context.Context, string, ...any)  {}
func (noop) Info(context.Context, string, ...any)  {}
func (noop) Debug(context.Context, string, ...any) {}

func (noop) SetLogLevel(ctx context.Context, _ LogLevel) context.Context {
	return ctx
}
