package llm

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// Message represents a single message in a conversation
type Message struct {
	Role      string    `json:"role"`      // "user", "assistant", "system"
	Content   string    `json:"content"`   // Message content
	Timestamp time.Time `json:"timestamp"` // When message was created
}

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Provider defines the interface for LLM providers
//
//go:generate ../../../bin/mockery --name Provider --output ./mocks --filename provider_mock.go --outpkg llm_mocks --structname ProviderMock
type Provider interface {
	// Chat sends messages to the LLM and returns a response
	Chat(ctx context.Context, messages []Message) (*ChatResponse, error)

	// Configure configures the provider with given settings
	Configure(config Config) error

	// GetModel returns the model name being used
	GetModel() string

	// IsAvailable checks if the provider is available and configured
	IsAvailable() bool

	// Close cleans up resources
	Close() error
}

// ChatResponse is one completion with the usage estimate of the call that produced it.
type ChatResponse struct {
	Content      string
	Model        string
	Provider     string
	FinishReason string
	Usage        TokenUsage
	Latency      time.Duration
}

// TokenUsage is estimated from text length; providers do not all report it.
type TokenUsage struct {
	PromptTokens     int
	CompletionTokens int
}

func (u TokenUsage) Total() int {
	return u.PromptTokens + u.CompletionTokens
}

// Summary is a one-line description of the call for debug logs.
func (r *ChatResponse) Summary() string {
	return fmt.Sprintf("%s/%s finish=%s tokens=%d (prompt %d, completion %d) latency=%dms",
		r.Provider, r.Model, r.FinishReason, r.Usage.Total(), r.Usage.PromptTokens, r.Usage.CompletionTokens, r.Latency.Milliseconds())
}

// BaseProvider provides common functionality for all LLM providers
type BaseProvider struct {
	name       string
	configured bool
}

// NewBaseProvider creates a new base provider
func NewBaseProvider(name string) *BaseProvider {
	return &BaseProvider{name: name}
}

// ValidateConfiguration checks if the provider is properly configured
func (b *BaseProvider) ValidateConfiguration() error {
	if !b.configured {
		return errors.Errorf("%s provider not configured", b.name)
	}
	return nil
}

// SetConfigured marks the provider as configured
func (b *BaseProvider) SetConfigured(configured bool) {
	b.configured = configured
}

// ConvertMessagesToLangChainGo converts our Message format to langchaingo MessageContent
func (b *BaseProvider) ConvertMessagesToLangChainGo(messages []Message) []llms.MessageContent {
	llmMessages := make([]llms.MessageContent, 0, len(messages))

	for _, msg := range messages {
		// Skip messages with empty content
		if strings.TrimSpace(msg.Content) == "" {
			continue
		}

		var msgType llms.ChatMessageType
		switch strings.ToLower(msg.Role) {
		case RoleUser:
			msgType = llms.ChatMessageTypeHuman
		case RoleAssistant:
			msgType = llms.ChatMessageTypeAI
		case RoleSystem:
			msgType = llms.ChatMessageTypeSystem
		default:
			msgType = llms.ChatMessageTypeHuman
		}

		llmMessages = append(llmMessages, llms.TextParts(msgType, msg.Content))
	}

	return llmMessages
}

// CallOptions returns the langchaingo call options shared by every provider
func (b *BaseProvider) CallOptions(config Config) []llms.CallOption {
	opts := []llms.CallOption{
		llms.WithTemperature(float64(config.Temperature)),
	}
	if config.MaxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(config.MaxTokens))
	}
	if config.JSONMode {
		opts = append(opts, llms.WithJSONMode())
	}
	return opts
}

// CreateOpenAICompatibleClient creates an OpenAI-compatible client with standard options
func (b *BaseProvider) CreateOpenAICompatibleClient(config Config, baseURL string, requiresAPIKey bool) (*openai.LLM, error) {
	opts := []openai.Option{
		openai.WithModel(config.Model),
	}

	if baseURL != "" {
		opts = append(opts, openai.WithBaseURL(baseURL))
	}

	// Handle API key requirements (Ollama doesn't require real keys)
	if requiresAPIKey {
		if config.APIKey == "" {
			return nil, errors.Errorf("API key is required for %s", b.name)
		}
		opts = append(opts, openai.WithToken(config.APIKey))
	} else {
		apiKey := config.APIKey
		if apiKey == "" {
			apiKey = "dummy-key"
		}
		opts = append(opts, openai.WithToken(apiKey))
	}

	return openai.New(opts...)
}

// GenerateWithLangChainGo runs a single non-streaming completion and builds the response
func (b *BaseProvider) GenerateWithLangChainGo(ctx context.Context, model llms.Model, config Config, messages []Message) (*ChatResponse, error) {
	if err := b.ValidateConfiguration(); err != nil {
		return nil, err
	}
	messages = TrimMessagesToContextSize(messages, config.Model, config.MaxTokens)
	llmMessages := b.ConvertMessagesToLangChainGo(messages)
	if len(llmMessages) == 0 {
		return nil, errors.Errorf("no valid messages after conversion (all messages were empty)")
	}

	if config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, config.Timeout)
		defer cancel()
	}

	startTime := time.Now()
	response, err := model.GenerateContent(ctx, llmMessages, b.CallOptions(config)...)
	if err != nil {
		return nil, err
	}

	var content, finishReason string
	if len(response.Choices) > 0 {
		content = response.Choices[0].Content
		finishReason = response.Choices[0].StopReason
	}
	if finishReason == "" {
		finishReason = "stop"
	}

	return &ChatResponse{
		Content:      content,
		Model:        config.Model,
		Provider:     b.name,
		FinishReason: finishReason,
		Usage: TokenUsage{
			PromptTokens:     estimateTokens(messagesToString(messages)),
			CompletionTokens: estimateTokens(content),
		},
		Latency: time.Since(startTime),
	}, nil
}

// ModelContextSizes maps model names to their context window sizes
var ModelContextSizes = map[string]int{
	// OpenAI models
	"gpt-3.5-turbo": 16385,
	"gpt-4":         8192,
	"gpt-4-turbo":   128000,
	"gpt-4o":        128000,
	"gpt-4o-mini":   128000,
	"gpt-4.1":       1047576,

	// Anthropic Claude models
	"claude-3-5-sonnet": 200000,
	"claude-3-5-haiku":  200000,
	"claude-3-opus":     200000,

	// Ollama models (common defaults)
	"llama3":   8192,
	"llama3.1": 128000,
	"llama3.2": 128000,
	"mistral":  8192,
	"qwen2.5":  32768,
}

// GetModelContextSize returns the context window size for a given model
// If the model is not found, it tries to match by prefix, otherwise returns a conservative default
func GetModelContextSize(model string) int {
	if size, ok := ModelContextSizes[model]; ok {
		return size
	}

	// Longest known prefix wins, e.g. "gpt-4-turbo-2024-04-09" matches "gpt-4-turbo"
	var bestMatch string
	var bestSize int
	for knownModel, size := range ModelContextSizes {
		if strings.HasPrefix(model, knownModel) && len(knownModel) > len(bestMatch) {
			bestMatch = knownModel
			bestSize = size
		}
	}
	if bestMatch != "" {
		return bestSize
	}

	return 4096
}

// TrimMessagesToContextSize keeps the first system message and the newest
// conversation messages that fit into the model's context window.
// The last message is always kept.
func TrimMessagesToContextSize(messages []Message, model string, reserveTokens int) []Message {
	maxTokens := GetModelContextSize(model) - reserveTokens
	if len(messages) == 0 || maxTokens <= 0 {
		return messages
	}

	var systemMsg *Message
	var conversation []Message
	for i := range messages {
		if messages[i].Role == RoleSystem && systemMsg == nil {
			systemMsg = &messages[i]
		} else if messages[i].Role != RoleSystem {
			conversation = append(conversation, messages[i])
		}
	}
	if len(conversation) == 0 {
		if systemMsg != nil {
			return []Message{*systemMsg}
		}
		return messages
	}

	used := estimateMessageTokens(conversation[len(conversation)-1])
	if systemMsg != nil {
		used += estimateMessageTokens(*systemMsg)
	}

	// newest to oldest, then restore chronological order
	type indexed struct {
		msg   Message
		index int
	}
	var kept []indexed
	for i := len(conversation) - 2; i >= 0; i-- {
		tokens := estimateMessageTokens(conversation[i])
		if used+tokens > maxTokens {
			break
		}
		used += tokens
		kept = append(kept, indexed{conversation[i], i})
	}
	sort.Slice(kept, func(i, j int) bool { return kept[i].index < kept[j].index })

	var result []Message
	if systemMsg != nil {
		result = append(result, *systemMsg)
	}
	for _, k := range kept {
		result = append(result, k.msg)
	}
	return append(result, conversation[len(conversation)-1])
}

// estimateMessageTokens estimates the number of tokens in a message
func estimateMessageTokens(msg Message) int {
	// Add overhead for role and structure (JSON formatting)
	return estimateTokens(msg.Content) + 10
}

func messagesToString(messages []Message) string {
	var parts []string
	for _, msg := range messages {
		parts = append(parts, msg.Content)
	}
	return strings.Join(parts, " ")
}

// estimateTokens provides a rough estimate of token count
// Rough approximation: 1 token ~ 4 characters for English text
func estimateTokens(text string) int {
	return len(text) / 4
}

// Config holds configuration for LLM providers
type Config struct {
	Provider    string        `json:"provider"`    // Provider name (openai, anthropic, ollama)
	Model       string        `json:"model"`       // Model to use
	APIKey      string        `json:"api_key"`     // API key (if required)
	BaseURL     string        `json:"base_url"`    // Base URL for API calls
	MaxTokens   int           `json:"max_tokens"`  // Maximum tokens per request
	Temperature float32       `json:"temperature"` // Temperature setting (0.0-1.0)
	Timeout     time.Duration `json:"timeout"`     // Request timeout
	JSONMode    bool          `json:"json_mode"`   // Ask for a JSON object response
}

// DefaultConfig returns default LLM configuration
func DefaultConfig() Config {
	return Config{
		Provider:    "openai",
		Model:       "gpt-4o-mini",
		MaxTokens:   1500,
		Temperature: 0,
		Timeout:     60 * time.Second,
	}
}

// ProviderRegistry manages available LLM providers
type ProviderRegistry struct {
	providers map[string]func() Provider
}

// NewProviderRegistry creates a new provider registry
func NewProviderRegistry() *ProviderRegistry {
	return &ProviderRegistry{
		providers: make(map[string]func() Provider),
	}
}

// Register registers a new provider factory
func (r *ProviderRegistry) Register(name string, factory func() Provider) {
	r.providers[name] = factory
}

// Create creates a provider instance by name
func (r *ProviderRegistry) Create(name string) Provider {
	if factory, exists := r.providers[name]; exists {
		return factory()
	}
	return nil
}

// List returns available provider names, sorted
func (r *ProviderRegistry) List() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Global provider registry
var GlobalRegistry = NewProviderRegistry()

// NewConfigured creates the named provider from the global registry and configures it
func NewConfigured(config Config) (Provider, error) {
	provider := GlobalRegistry.Create(config.Provider)
	if provider == nil {
		return nil, errors.Errorf("unknown LLM provider %q (available: %s)", config.Provider, strings.Join(GlobalRegistry.List(), ", "))
	}
	if err := provider.Configure(config); err != nil {
		return nil, err
	}
	return provider, nil
}
