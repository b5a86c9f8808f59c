package extraction

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v3"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/xeipuuv/gojsonschema"

	"github.com/danielrosehill/OWUI-Docker-Compose-Generation-Agent/pkg/api/logger"
	"github.com/danielrosehill/OWUI-Docker-Compose-Generation-Agent/pkg/assistant/llm"
	"github.com/danielrosehill/OWUI-Docker-Compose-Generation-Agent/pkg/assistant/llm/prompts"
	"github.com/danielrosehill/OWUI-Docker-Compose-Generation-Agent/pkg/schema"
	"github.com/danielrosehill/OWUI-Docker-Compose-Generation-Agent/pkg/util"
)

const DefaultMaxRetries = 3

// Extractor turns conversation text into validated field values.
// The model never writes into a record directly: every value it returns passes the
// JSON Schema of the targets and then schema.Validate.
type Extractor struct {
	schema     *schema.Schema
	provider   llm.Provider
	log        logger.Logger
	maxRetries uint64
	newBackOff func() backoff.BackOff
}

type Option func(e *Extractor)

func WithLogger(log logger.Logger) Option {
	return func(e *Extractor) {
		e.log = log
	}
}

// WithMaxRetries bounds the retries of transient model failures; 0 disables retrying.
func WithMaxRetries(n uint64) Option {
	return func(e *Extractor) {
		e.maxRetries = n
	}
}

// WithBackOff replaces the exponential policy between retries.
func WithBackOff(newBackOff func() backoff.BackOff) Option {
	return func(e *Extractor) {
		e.newBackOff = newBackOff
	}
}

func New(s *schema.Schema, provider llm.Provider, opts ...Option) *Extractor {
	e := &Extractor{
		schema:     s,
		provider:   provider,
		log:        logger.NewNoop(),
		maxRetries: DefaultMaxRetries,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 500 * time.Millisecond
			b.MaxElapsedTime = 30 * time.Second
			return b
		},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract asks the model for the values of targets found in conversation.
//
// The returned record holds every valid value; fields the conversation does not answer are absent.
// When some value is rejected, the error is an *ExtractionError for the first rejected key in
// declaration order and the record still carries the valid values. A model that stays unreachable
// yields an error wrapping ErrModelUnavailable and a nil record.
func (e *Extractor) Extract(ctx context.Context, conversation []llm.Message, targets []string) (schema.Record, error) {
	targets = e.orderTargets(targets)
	if len(targets) == 0 {
		return schema.Record{}, nil
	}

	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: prompts.ExtractionSystemPrompt()},
		{Role: llm.RoleUser, Content: e.prompt(conversation, targets)},
	}
	content, err := e.chat(ctx, messages)
	if err != nil {
		return nil, err
	}
	e.log.Debug(ctx, "extraction output for %s: %s", strings.Join(targets, ","), util.TrimStringMiddle(content, 400, " ... "))

	doc, err := decodeObject(content)
	if err != nil {
		return schema.Record{}, &ExtractionError{Key: targets[0], Reason: err.Error()}
	}
	return e.validate(ctx, doc, targets)
}

func (e *Extractor) orderTargets(targets []string) []string {
	known := lo.Filter(lo.Uniq(targets), func(key string, _ int) bool {
		return e.schema.Index(key) >= 0
	})
	sort.Slice(known, func(i, j int) bool {
		return e.schema.Index(known[i]) < e.schema.Index(known[j])
	})
	return known
}

func (e *Extractor) prompt(conversation []llm.Message, targets []string) string {
	var fields strings.Builder
	for _, key := range targets {
		f, _ := e.schema.Field(key)
		fields.WriteString(fmt.Sprintf("- %s (%s): %s", f.Key, f.Kind, f.Description))
		if values := f.AllowedValues(); values != nil {
			fields.WriteString(". Values: " + strings.Join(values, ", "))
		}
		if f.Default != nil && !f.Secret {
			fields.WriteString(fmt.Sprintf(". Default: %q", *f.Default))
		}
		fields.WriteString("\n")
	}
	return prompts.ExtractionPrompt(prompts.ExtractionVars{
		Fields:       strings.TrimRight(fields.String(), "\n"),
		Schema:       e.schema.JSONSchemaString(targets),
		Conversation: Transcript(conversation),
	})
}

func (e *Extractor) chat(ctx context.Context, messages []llm.Message) (string, error) {
	var content string
	attempt := 0
	operation := func() error {
		attempt++
		resp, err := e.provider.Chat(ctx, messages)
		if err != nil {
			if llm.IsPermanent(err) || ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			e.log.Warn(ctx, "extraction attempt %d failed: %v", attempt, err)
			return err
		}
		e.log.Debug(ctx, "extraction call: %s", resp.Summary())
		content = resp.Content
		return nil
	}

	var policy backoff.BackOff = &backoff.StopBackOff{}
	if e.maxRetries > 0 {
		policy = backoff.WithMaxRetries(e.newBackOff(), e.maxRetries)
	}
	policy = backoff.WithContext(policy, ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", errors.Wrapf(ErrModelUnavailable, "after %d attempts: %v", attempt, err)
	}
	return content, nil
}

func (e *Extractor) validate(ctx context.Context, doc map[string]any, targets []string) (schema.Record, error) {
	result, err := gojsonschema.Validate(
		gojsonschema.NewGoLoader(e.schema.JSONSchema(targets)),
		gojsonschema.NewGoLoader(doc),
	)
	if err != nil {
		return schema.Record{}, &ExtractionError{Key: targets[0], Reason: err.Error()}
	}
	violations := map[string]string{}
	for _, re := range result.Errors() {
		if _, seen := violations[re.Field()]; !seen {
			violations[re.Field()] = re.Description()
		}
	}

	for key := range doc {
		if !lo.Contains(targets, key) {
			e.log.Debug(ctx, "ignoring extracted key %q: not a target", key)
		}
	}

	partial := schema.Record{}
	var firstErr *ExtractionError
	reject := func(key string, value any, reason string) {
		e.log.Debug(ctx, "rejected %s=%v: %s", key, value, reason)
		if firstErr == nil {
			firstErr = &ExtractionError{Key: key, Value: value, Reason: reason}
		}
	}
	for _, key := range targets {
		raw, mentioned := doc[key]
		if !mentioned || raw == nil {
			continue
		}
		if reason, invalid := violations[key]; invalid {
			reject(key, raw, reason)
			continue
		}
		value, err := e.schema.Validate(key, raw)
		if err != nil {
			var valueErr *schema.ValueError
			if errors.As(err, &valueErr) {
				reject(key, raw, valueErr.Reason)
			} else {
				reject(key, raw, err.Error())
			}
			continue
		}
		partial[key] = value
	}

	if firstErr != nil {
		return partial, firstErr
	}
	return partial, nil
}

// decodeObject accepts a bare JSON object or one wrapped in a markdown code fence.
func decodeObject(content string) (map[string]any, error) {
	content = strings.TrimSpace(content)
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end < start {
		return nil, errors.Errorf("model output is not a JSON object")
	}
	var doc map[string]any
	if err := json.Unmarshal([]byte(content[start:end+1]), &doc); err != nil {
		return nil, errors.Wrapf(err, "model output is not valid JSON")
	}
	return doc, nil
}

// Transcript renders the conversation as "role: content" lines; system messages are left out.
func Transcript(conversation []llm.Message) string {
	lines := make([]string, 0, len(conversation))
	for _, m := range conversation {
		if m.Role == llm.RoleSystem || strings.TrimSpace(m.Content) == "" {
			continue
		}
		lines = append(lines, m.Role+": "+strings.TrimSpace(m.Content))
	}
	return strings.Join(lines, "\n")
}
