package dialogue

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/danielrosehill/OWUI-Docker-Compose-Generation-Agent/pkg/api/logger"
	"github.com/danielrosehill/OWUI-Docker-Compose-Generation-Agent/pkg/assistant/extraction"
	"github.com/danielrosehill/OWUI-Docker-Compose-Generation-Agent/pkg/assistant/llm"
	"github.com/danielrosehill/OWUI-Docker-Compose-Generation-Agent/pkg/schema"
)

type State string

const (
	StateAwaitingInput State = "AWAITING_INPUT"
	StateExtracting    State = "EXTRACTING"
	StateResolved      State = "RESOLVED"
	StateAborted       State = "ABORTED"
)

const DefaultRetryBudget = 3

var (
	exitWords   = []string{"exit", "quit", "q"}
	acceptWords = []string{"", "default", "generate", "generated", "keep", "skip"}
)

// Extractor is the validating extraction step the controller delegates to.
type Extractor interface {
	Extract(ctx context.Context, conversation []llm.Message, targets []string) (schema.Record, error)
}

// Turn is what the controller hands back after every step.
type Turn struct {
	State State
	// Key is the field being asked while awaiting input.
	Key  string
	Text string
}

// Controller drives one configuration session turn by turn.
// It is not safe for concurrent use; a session is strictly sequential.
type Controller struct {
	schema      *schema.Schema
	extractor   Extractor
	asker       Asker
	log         logger.Logger
	retryBudget int

	state        State
	record       schema.Record
	defaulted    map[string]bool
	attempts     map[string]int
	rejections   map[string]string
	current      string
	conversation []llm.Message
	abort        *AbortError
	started      bool
}

type Option func(c *Controller)

func WithAsker(asker Asker) Option {
	return func(c *Controller) {
		c.asker = asker
	}
}

func WithLogger(log logger.Logger) Option {
	return func(c *Controller) {
		c.log = log
	}
}

// WithRetryBudget sets how many unusable answers a field tolerates before
// falling back to its default, or aborting when it has none.
func WithRetryBudget(n int) Option {
	return func(c *Controller) {
		if n > 0 {
			c.retryBudget = n
		}
	}
}

// New creates a session over s. Defaults the session should offer (e.g. generated secrets)
// are expected to be part of s already, see schema.WithDefaults.
func New(s *schema.Schema, extractor Extractor, opts ...Option) *Controller {
	c := &Controller{
		schema:      s,
		extractor:   extractor,
		asker:       StaticAsker{},
		log:         logger.NewNoop(),
		retryBudget: DefaultRetryBudget,
		state:       StateAwaitingInput,
		record:      schema.Record{},
		defaulted:   map[string]bool{},
		attempts:    map[string]int{},
		rejections:  map[string]string{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Controller) State() State {
	return c.state
}

// AbortReason is nil unless the session is ABORTED.
func (c *Controller) AbortReason() *AbortError {
	return c.abort
}

// Record hands the resolved record downstream. It is a copy; later calls never observe
// mutations of a previously returned record.
func (c *Controller) Record() (schema.Record, error) {
	if c.state != StateResolved {
		return nil, errors.Errorf("configuration is not resolved (state %s)", c.state)
	}
	return c.record.Clone(), nil
}

// Transcript returns the conversation so far. It lives only in memory.
func (c *Controller) Transcript() []llm.Message {
	return append([]llm.Message(nil), c.conversation...)
}

// Start emits the first question.
func (c *Controller) Start(ctx context.Context) (Turn, error) {
	if c.started {
		return Turn{}, errors.New("session already started")
	}
	c.started = true
	return c.advance(ctx, "")
}

// Answer consumes one user utterance and returns the next turn.
func (c *Controller) Answer(ctx context.Context, text string) (Turn, error) {
	if !c.started || c.state != StateAwaitingInput {
		return Turn{}, errors.Wrapf(ErrNotAwaitingInput, "state %s", c.state)
	}
	text = strings.TrimSpace(text)
	if lo.Contains(exitWords, strings.ToLower(text)) {
		c.Cancel("user exited")
		return c.abortedTurn(), nil
	}
	if ctx.Err() != nil {
		c.Cancel(ctx.Err().Error())
		return c.abortedTurn(), nil
	}

	c.state = StateExtracting
	asked := c.current
	c.say(llm.RoleUser, text)
	delete(c.rejections, asked)

	if lo.Contains(acceptWords, strings.ToLower(text)) {
		if value, ok := c.schema.Default(asked); ok {
			c.log.Debug(ctx, "accepting default for %s", asked)
			c.apply(schema.Record{asked: value})
			c.defaulted[asked] = true
			return c.advance(ctx, asked)
		}
	}

	if err := c.extract(ctx); err != nil {
		return c.abortedTurn(), nil
	}

	if _, resolved := c.record[asked]; !resolved && c.schema.IsApplicable(asked, c.record) {
		c.attempts[asked]++
		if c.attempts[asked] >= c.retryBudget {
			if value, ok := c.schema.Default(asked); ok {
				c.log.Warn(ctx, "no usable answer for %s after %d attempts, using its default", asked, c.attempts[asked])
				c.apply(schema.Record{asked: value})
				c.defaulted[asked] = true
			} else {
				reason := c.rejections[asked]
				if reason == "" {
					reason = "no usable answer"
				}
				c.abortWith(&AbortError{Kind: AbortedByExtraction, Key: asked, Reason: reason + ", retry budget exhausted"})
				return c.abortedTurn(), nil
			}
		}
	}
	return c.advance(ctx, asked)
}

// Cancel ends the session without handing a record downstream. It is a no-op once the
// session is already RESOLVED or ABORTED.
func (c *Controller) Cancel(reason string) {
	if c.state == StateResolved || c.state == StateAborted {
		return
	}
	c.abortWith(&AbortError{Kind: AbortedByUser, Key: c.current, Reason: reason})
}

func (c *Controller) abortWith(err *AbortError) {
	c.state = StateAborted
	c.abort = err
	c.record = schema.Record{}
}

func (c *Controller) abortedTurn() Turn {
	return Turn{State: StateAborted, Text: c.abort.Error()}
}

// extract runs the extractor over every applicable field, then again over fields the
// new values made applicable, until nothing new opens up.
func (c *Controller) extract(ctx context.Context) error {
	targets := lo.Map(c.schema.Applicable(c.record), func(f schema.Field, _ int) string { return f.Key })
	seen := map[string]bool{}
	for _, key := range targets {
		seen[key] = true
	}

	for round := 0; len(targets) > 0 && round < len(c.schema.Keys()); round++ {
		partial, err := c.extractor.Extract(ctx, c.conversation, targets)
		if err != nil {
			var extractionErr *extraction.ExtractionError
			switch {
			case errors.As(err, &extractionErr):
				c.log.Debug(ctx, "extraction rejected %s: %s", extractionErr.Key, extractionErr.Reason)
				c.rejections[extractionErr.Key] = extractionErr.Reason
			case ctx.Err() != nil:
				c.Cancel(ctx.Err().Error())
				return err
			default:
				c.abortWith(&AbortError{Kind: AbortedByExtraction, Key: c.current, Reason: err.Error(), Err: err})
				return err
			}
		}
		c.apply(partial)

		targets = nil
		for _, f := range c.schema.Applicable(c.record) {
			if !seen[f.Key] {
				seen[f.Key] = true
				targets = append(targets, f.Key)
			}
		}
	}
	return nil
}

// apply merges values in declaration order. A changed value invalidates every defaulted
// dependent, and values of fields that stopped being applicable are dropped.
func (c *Controller) apply(partial schema.Record) {
	for _, key := range c.schema.Keys() {
		value, ok := partial[key]
		if !ok {
			continue
		}
		previous, had := c.record[key]
		c.record.Set(key, value)
		delete(c.defaulted, key)
		if had && previous == value {
			continue
		}
		for _, dependent := range c.schema.DependentsOf(key) {
			if c.defaulted[dependent.Key] {
				c.record.Delete(dependent.Key)
				delete(c.defaulted, dependent.Key)
				delete(c.attempts, dependent.Key)
			}
		}
	}

	pruned := c.record.Prune(c.schema)
	for key := range c.record {
		if _, kept := pruned[key]; !kept {
			delete(c.defaulted, key)
			delete(c.attempts, key)
		}
	}
	c.record = pruned
}

// advance selects the next unresolved applicable field in declaration order, or resolves.
func (c *Controller) advance(ctx context.Context, asked string) (Turn, error) {
	missing := c.record.Missing(c.schema)
	if len(missing) == 0 {
		c.state = StateResolved
		c.current = ""
		return Turn{State: StateResolved, Text: "All decisions are made."}, nil
	}

	next := missing[0]
	c.current = next.Key
	q := Question{Field: next}
	if def, ok := c.schema.Default(next.Key); ok {
		q.HasDefault = true
		q.Default = next.DisplayValue(def)
		if next.Secret && def != "" {
			q.Default = "a generated value"
		}
	}
	if next.Key == asked {
		q.Retry = c.rejections[asked]
		if q.Retry == "" {
			q.Retry = "it did not settle this decision"
		}
	}

	text, err := c.asker.Ask(ctx, q)
	if err != nil {
		c.log.Debug(ctx, "falling back to the declared question for %s: %v", next.Key, err)
		text, _ = StaticAsker{}.Ask(ctx, q)
	}
	c.say(llm.RoleAssistant, text)
	c.state = StateAwaitingInput
	return Turn{State: StateAwaitingInput, Key: next.Key, Text: text}, nil
}

func (c *Controller) say(role, text string) {
	c.conversation = append(c.conversation, llm.Message{Role: role, Content: text, Timestamp: time.Now()})
}
