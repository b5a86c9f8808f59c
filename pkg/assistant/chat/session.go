package chat

import (
	"context"
	"io"

	"github.com/pkg/errors"

	"github.com/danielrosehill/OWUI-Docker-Compose-Generation-Agent/pkg/assistant/dialogue"
	"github.com/danielrosehill/OWUI-Docker-Compose-Generation-Agent/pkg/schema"
)

const prompt = "> "

// Conversation is the turn-based state machine a Session relays between the user and.
type Conversation interface {
	Start(ctx context.Context) (dialogue.Turn, error)
	Answer(ctx context.Context, text string) (dialogue.Turn, error)
	Cancel(reason string)
	Record() (schema.Record, error)
	AbortReason() *dialogue.AbortError
}

var _ Conversation = (*dialogue.Controller)(nil)

// Session is the terminal front of a configuration dialogue.
type Session struct {
	conversation Conversation
	input        LineReader
	out          io.Writer
	theme        *Theme
}

func NewSession(conversation Conversation, input LineReader, out io.Writer, theme *Theme) *Session {
	if theme == nil {
		theme = DefaultTheme()
	}
	return &Session{conversation: conversation, input: input, out: out, theme: theme}
}

// Run relays questions and answers until the conversation resolves or aborts.
// An aborted conversation is returned as its *dialogue.AbortError.
func (s *Session) Run(ctx context.Context) (schema.Record, error) {
	s.notice("Describe the Open WebUI deployment you want. Type 'exit' to quit.")
	turn, err := s.conversation.Start(ctx)
	for {
		if err != nil {
			return nil, err
		}
		switch turn.State {
		case dialogue.StateResolved:
			s.notice(turn.Text)
			return s.conversation.Record()
		case dialogue.StateAborted:
			return nil, s.conversation.AbortReason()
		}

		_, _ = s.theme.AssistantColor.Fprintln(s.out, turn.Text)
		line, readErr := s.input.ReadLine(s.theme.PromptColor.Sprint(prompt))
		switch {
		case errors.Is(readErr, io.EOF):
			s.conversation.Cancel("input closed")
			return nil, s.conversation.AbortReason()
		case errors.Is(readErr, ErrInterrupted):
			s.conversation.Cancel("interrupted")
			return nil, s.conversation.AbortReason()
		case readErr != nil:
			s.conversation.Cancel(readErr.Error())
			return nil, errors.Wrapf(readErr, "failed to read answer")
		}
		turn, err = s.conversation.Answer(ctx, line)
	}
}

func (s *Session) notice(text string) {
	_, _ = s.theme.NoticeColor.Fprintln(s.out, text)
}
