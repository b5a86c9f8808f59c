package llm

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	. "github.com/onsi/gomega"
)

func TestGetModelContextSize(t *testing.T) {
	RegisterTestingT(t)

	tests := []struct {
		model    string
		expected int
	}{
		{"gpt-3.5-turbo", 16385},
		{"gpt-4", 8192},
		{"gpt-4o", 128000},
		{"claude-3-5-sonnet", 200000},

		// Prefix matching
		{"gpt-4-turbo-2024-04-09", 128000},
		{"claude-3-5-sonnet-20241022", 200000},
		{"gpt-4o-mini-2024-07-18", 128000},

		// Unknown model (should return default)
		{"unknown-model", 4096},
	}

	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			RegisterTestingT(t)
			Expect(GetModelContextSize(tt.model)).To(Equal(tt.expected))
		})
	}
}

func TestTrimMessagesToContextSize(t *testing.T) {
	RegisterTestingT(t)

	long := strings.Repeat("x", 4000) // ~1000 tokens
	var messages []Message
	messages = append(messages, Message{Role: RoleSystem, Content: "You are a helpful assistant."})
	for i := 0; i < 10; i++ {
		messages = append(messages, Message{Role: RoleUser, Content: fmt.Sprintf("%d %s", i, long)})
	}

	t.Run("small model trims oldest history", func(t *testing.T) {
		RegisterTestingT(t)
		trimmed := TrimMessagesToContextSize(messages, "unknown-model", 1024)
		Expect(len(trimmed)).To(BeNumerically("<", len(messages)))
		Expect(trimmed[0].Role).To(Equal(RoleSystem))
		Expect(trimmed[len(trimmed)-1].Content).To(Equal(messages[len(messages)-1].Content))
		// chronological order is preserved
		for i := 2; i < len(trimmed); i++ {
			Expect(trimmed[i].Content > trimmed[i-1].Content).To(BeTrue())
		}
	})

	t.Run("large model keeps everything", func(t *testing.T) {
		RegisterTestingT(t)
		Expect(TrimMessagesToContextSize(messages, "gpt-4o", 2048)).To(Equal(messages))
	})

	t.Run("only system message", func(t *testing.T) {
		RegisterTestingT(t)
		Expect(TrimMessagesToContextSize(messages[:1], "gpt-4o", 2048)).To(HaveLen(1))
	})
}

func TestRegistry(t *testing.T) {
	RegisterTestingT(t)

	Expect(GlobalRegistry.List()).To(Equal([]string{"anthropic", "ollama", "openai"}))

	_, err := NewConfigured(Config{Provider: "nope"})
	Expect(err).To(MatchError(ContainSubstring(`unknown LLM provider "nope"`)))

	_, err = NewConfigured(Config{Provider: "openai"})
	Expect(err).To(MatchError(ContainSubstring("API key is required")))

	p, err := NewConfigured(Config{Provider: "ollama", Model: "qwen2.5"})
	Expect(err).To(BeNil())
	Expect(p.IsAvailable()).To(BeTrue())
	Expect(p.GetModel()).To(Equal("qwen2.5"))
	Expect(p.(*chatProvider).config.BaseURL).To(Equal("http://localhost:11434/v1"))

	Expect(NeedsAPIKey("openai")).To(BeTrue())
	Expect(NeedsAPIKey("anthropic")).To(BeTrue())
	Expect(NeedsAPIKey("ollama")).To(BeFalse())
}

func TestClassifyOpenAIError(t *testing.T) {
	RegisterTestingT(t)

	Expect(IsPermanent(classifyOpenAIError(Config{}, errors.New("status 401: Incorrect API key")))).To(BeTrue())
	Expect(IsPermanent(classifyOpenAIError(Config{}, errors.New("status 429: rate limit")))).To(BeFalse())
	Expect(IsPermanent(classifyOpenAIError(Config{}, errors.New("boom")))).To(BeFalse())
}

func TestConvertMessagesSkipsEmpty(t *testing.T) {
	RegisterTestingT(t)

	b := NewBaseProvider("test")
	converted := b.ConvertMessagesToLangChainGo([]Message{
		{Role: RoleSystem, Content: "sys"},
		{Role: RoleUser, Content: "  "},
		{Role: RoleAssistant, Content: "hi"},
	})
	Expect(converted).To(HaveLen(2))
	Expect(b.ValidateConfiguration()).To(MatchError("test provider not configured"))
}
