package llm

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
)

const defaultOllamaURL = "http://localhost:11434"

// backend describes how one vendor is reached through langchaingo.
type backend struct {
	name         string
	defaultModel string
	needsKey     bool
	connect      func(b *BaseProvider, config Config) (llms.Model, Config, error)
	classify     func(config Config, err error) error
}

var backends = []backend{
	{
		name:         "openai",
		defaultModel: "gpt-4o-mini",
		needsKey:     true,
		connect: func(b *BaseProvider, config Config) (llms.Model, Config, error) {
			client, err := b.CreateOpenAICompatibleClient(config, config.BaseURL, true)
			return client, config, err
		},
		classify: classifyOpenAIError,
	},
	{
		name:         "anthropic",
		defaultModel: "claude-3-5-sonnet-20241022",
		needsKey:     true,
		connect: func(_ *BaseProvider, config Config) (llms.Model, Config, error) {
			// the extraction prompt asks for JSON explicitly; Anthropic has no JSON mode
			config.JSONMode = false
			opts := []anthropic.Option{anthropic.WithToken(config.APIKey), anthropic.WithModel(config.Model)}
			if config.BaseURL != "" {
				opts = append(opts, anthropic.WithBaseURL(config.BaseURL))
			}
			client, err := anthropic.New(opts...)
			return client, config, err
		},
		classify: func(_ Config, err error) error {
			msg := err.Error()
			if strings.Contains(msg, "401") || strings.Contains(msg, "authentication_error") {
				return &PermanentError{Err: errors.Wrap(err, "Anthropic rejected the API key")}
			}
			return errors.Wrap(err, "Anthropic API error")
		},
	},
	{
		name:         "ollama",
		defaultModel: "llama3.2",
		connect: func(b *BaseProvider, config Config) (llms.Model, Config, error) {
			if config.BaseURL == "" {
				config.BaseURL = defaultOllamaURL
			}
			if !strings.HasSuffix(config.BaseURL, "/v1") {
				config.BaseURL = strings.TrimSuffix(config.BaseURL, "/") + "/v1"
			}
			client, err := b.CreateOpenAICompatibleClient(config, config.BaseURL, false)
			return client, config, err
		},
		classify: func(config Config, err error) error {
			if strings.Contains(err.Error(), "connection refused") {
				return errors.Wrapf(err, "Ollama is not reachable at %s, is `ollama serve` running?", config.BaseURL)
			}
			return errors.Wrap(err, "Ollama API error")
		},
	},
}

// chatProvider is a Provider backed by one langchaingo model.
type chatProvider struct {
	*BaseProvider
	backend backend
	client  llms.Model
	config  Config
}

func newChatProvider(b backend) Provider {
	return &chatProvider{
		BaseProvider: NewBaseProvider(b.name),
		backend:      b,
		config:       Config{Provider: b.name, Model: b.defaultModel},
	}
}

func (p *chatProvider) Configure(config Config) error {
	if p.backend.needsKey && config.APIKey == "" {
		return errors.Errorf("API key is required for %s", p.backend.name)
	}
	if config.Model == "" {
		config.Model = p.backend.defaultModel
	}
	client, config, err := p.backend.connect(p.BaseProvider, config)
	if err != nil {
		return errors.Wrapf(err, "failed to create %s client", p.backend.name)
	}
	p.client = client
	p.config = config
	p.SetConfigured(true)
	return nil
}

func (p *chatProvider) Chat(ctx context.Context, messages []Message) (*ChatResponse, error) {
	resp, err := p.GenerateWithLangChainGo(ctx, p.client, p.config, messages)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, p.backend.classify(p.config, err)
	}
	return resp, nil
}

func (p *chatProvider) GetModel() string {
	return p.config.Model
}

func (p *chatProvider) IsAvailable() bool {
	return p.configured && p.client != nil
}

func (p *chatProvider) Close() error {
	return nil
}

// NeedsAPIKey reports whether the named provider refuses to start without an API key.
func NeedsAPIKey(provider string) bool {
	for _, b := range backends {
		if b.name == provider {
			return b.needsKey
		}
	}
	return false
}

// classifyOpenAIError marks credential and billing failures permanent so they are not retried.
func classifyOpenAIError(_ Config, err error) error {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "401") || strings.Contains(msg, "Incorrect API key"):
		return &PermanentError{Err: errors.Wrap(err, "OpenAI rejected the API key, check it at https://platform.openai.com/")}
	case strings.Contains(msg, "402") || strings.Contains(msg, "billing"):
		return &PermanentError{Err: errors.Wrap(err, "OpenAI API error: payment required")}
	case strings.Contains(msg, "429") || strings.Contains(msg, "rate limit") || strings.Contains(msg, "quota"):
		return errors.Wrap(err, "OpenAI API error: rate limit or quota exceeded")
	case strings.Contains(msg, "500") || strings.Contains(msg, "503"):
		return errors.Wrap(err, "OpenAI API error: service temporarily unavailable")
	}
	return errors.Wrap(err, "OpenAI API error")
}

func init() {
	for _, b := range backends {
		b := b
		GlobalRegistry.Register(b.name, func() Provider { return newChatProvider(b) })
	}
}
