package dialogue

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/danielrosehill/OWUI-Docker-Compose-Generation-Agent/pkg/api/logger"
	"github.com/danielrosehill/OWUI-Docker-Compose-Generation-Agent/pkg/assistant/llm"
	"github.com/danielrosehill/OWUI-Docker-Compose-Generation-Agent/pkg/assistant/llm/prompts"
	"github.com/danielrosehill/OWUI-Docker-Compose-Generation-Agent/pkg/assistant/reference"
	"github.com/danielrosehill/OWUI-Docker-Compose-Generation-Agent/pkg/schema"
)

// Question describes the decision the controller wants the user to make next.
type Question struct {
	Field schema.Field
	// Default is the value an empty answer resolves to, masked for secrets.
	Default    string
	HasDefault bool
	// Retry carries why the previous answer was not usable, empty on the first ask.
	Retry string
}

// Asker phrases a question for the user.
//
//go:generate ../../../bin/mockery --name Asker --output ./mocks --filename asker_mock.go --outpkg dialogue_mocks --structname AskerMock
type Asker interface {
	Ask(ctx context.Context, q Question) (string, error)
}

// StaticAsker uses the question text declared on the field.
type StaticAsker struct{}

func (StaticAsker) Ask(_ context.Context, q Question) (string, error) {
	var b strings.Builder
	if q.Retry != "" {
		b.WriteString(fmt.Sprintf("I could not use that answer (%s). ", q.Retry))
	}
	b.WriteString(q.Field.Question)
	if q.HasDefault {
		b.WriteString(fmt.Sprintf(" [default: %s]", displayDefault(q.Default)))
	}
	return b.String(), nil
}

func displayDefault(value string) string {
	if value == "" {
		return "none"
	}
	return value
}

// ModelAsker lets the language model phrase questions, grounded on reference documentation.
type ModelAsker struct {
	provider  llm.Provider
	reference reference.Provider
	log       logger.Logger
	passages  int
}

func NewModelAsker(provider llm.Provider, ref reference.Provider, log logger.Logger) *ModelAsker {
	return &ModelAsker{provider: provider, reference: ref, log: log, passages: 3}
}

func (a *ModelAsker) Ask(ctx context.Context, q Question) (string, error) {
	var grounding string
	if a.reference != nil {
		text, err := a.reference.Context(ctx, q.Field.Key+" "+q.Field.Question+" "+q.Field.Description, a.passages)
		if err != nil {
			a.log.Warn(ctx, "reference lookup failed: %v", err)
		}
		grounding = text
	}

	def := ""
	if q.HasDefault {
		def = displayDefault(q.Default)
	}
	resp, err := a.provider.Chat(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: prompts.SystemPrompt(grounding)},
		{Role: llm.RoleUser, Content: prompts.QuestionPrompt(prompts.QuestionVars{
			Key:      q.Field.Key,
			Question: q.Field.Question,
			Options:  q.Field.AllowedValues(),
			Default:  def,
			Retry:    q.Retry,
		})},
	})
	if err != nil {
		return "", errors.Wrapf(err, "failed to phrase question for %q", q.Field.Key)
	}
	a.log.Debug(ctx, "phrased %s: %s", q.Field.Key, resp.Summary())
	text := strings.TrimSpace(resp.Content)
	if text == "" {
		return "", errors.Errorf("empty question phrasing for %q", q.Field.Key)
	}
	return text, nil
}
