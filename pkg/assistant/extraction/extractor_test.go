package extraction

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v3"
	. "github.com/onsi/gomega"
	"github.com/stretchr/testify/mock"

	"github.com/danielrosehill/OWUI-Docker-Compose-Generation-Agent/pkg/api/logger"
	"github.com/danielrosehill/OWUI-Docker-Compose-Generation-Agent/pkg/assistant/llm"
	llm_mocks "github.com/danielrosehill/OWUI-Docker-Compose-Generation-Agent/pkg/assistant/llm/mocks"
	"github.com/danielrosehill/OWUI-Docker-Compose-Generation-Agent/pkg/schema"
)

var conversation = []llm.Message{
	{Role: llm.RoleSystem, Content: "system prompt"},
	{Role: llm.RoleAssistant, Content: "Which vector database do you want?"},
	{Role: llm.RoleUser, Content: "Qdrant please, and turn on redis"},
}

func newExtractor(t *testing.T, provider llm.Provider, opts ...Option) *Extractor {
	s, err := schema.NewOpenWebUI()
	Expect(err).To(BeNil())
	opts = append([]Option{WithBackOff(func() backoff.BackOff { return &backoff.ZeroBackOff{} })}, opts...)
	return New(s, provider, opts...)
}

func reply(content string) *llm.ChatResponse {
	return &llm.ChatResponse{Content: content}
}

func TestExtract(t *testing.T) {
	RegisterTestingT(t)

	provider := llm_mocks.NewProviderMock(t)
	provider.On("Chat", mock.Anything, mock.Anything).
		Return(reply("```json\n{\"vector_db\": \"qdrant\", \"redis\": true, \"database\": null, \"color\": \"blue\"}\n```"), nil).Once()

	record, err := newExtractor(t, provider).Extract(context.Background(), conversation,
		[]string{schema.KeyRedis, schema.KeyVectorDB, schema.KeyDatabase, "unknown"})
	Expect(err).To(BeNil())
	Expect(record).To(Equal(schema.Record{schema.KeyVectorDB: schema.VectorQdrant, schema.KeyRedis: schema.True}))

	messages := provider.Calls[0].Arguments.Get(1).([]llm.Message)
	Expect(messages).To(HaveLen(2))
	Expect(messages[1].Content).To(ContainSubstring("- vector_db (enum)"))
	Expect(messages[1].Content).To(ContainSubstring("Values: none, chroma, milvus, qdrant, opensearch, pgvector"))
	Expect(messages[1].Content).To(ContainSubstring("user: Qdrant please, and turn on redis"))
	Expect(messages[1].Content).NotTo(ContainSubstring("system prompt"))
}

func TestExtract_OutOfRangeValue(t *testing.T) {
	RegisterTestingT(t)

	provider := llm_mocks.NewProviderMock(t)
	provider.On("Chat", mock.Anything, mock.Anything).
		Return(reply(`{"vector_db": "weaviate", "redis": false}`), nil).Once()

	record, err := newExtractor(t, provider).Extract(context.Background(), conversation,
		[]string{schema.KeyVectorDB, schema.KeyRedis})

	var extractionErr *ExtractionError
	Expect(errors.As(err, &extractionErr)).To(BeTrue())
	Expect(extractionErr.Key).To(Equal(schema.KeyVectorDB))
	Expect(extractionErr.Value).To(Equal("weaviate"))
	Expect(record).NotTo(HaveKey(schema.KeyVectorDB))
	Expect(record[schema.KeyRedis]).To(Equal(schema.False))
}

func TestExtract_NoCoercion(t *testing.T) {
	RegisterTestingT(t)

	testCases := []struct {
		name    string
		content string
		key     string
	}{
		{name: "enum case", content: `{"database": "Postgres"}`, key: schema.KeyDatabase},
		{name: "bool as word", content: `{"redis": "yes"}`, key: schema.KeyRedis},
		{name: "fractional port", content: `{"app_port": 80.5}`, key: schema.KeyAppPort},
		{name: "short password", content: `{"opensearch_password": "abc"}`, key: schema.KeyOpenSearchPassword},
		{name: "not json", content: `sure, postgres it is`, key: schema.KeyAppPort},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			RegisterTestingT(t)

			provider := llm_mocks.NewProviderMock(t)
			provider.On("Chat", mock.Anything, mock.Anything).Return(reply(tc.content), nil).Once()

			_, err := newExtractor(t, provider).Extract(context.Background(), conversation,
				[]string{schema.KeyAppPort, schema.KeyDatabase, schema.KeyOpenSearchPassword, schema.KeyRedis})

			var extractionErr *ExtractionError
			Expect(errors.As(err, &extractionErr)).To(BeTrue())
			Expect(extractionErr.Key).To(Equal(tc.key))
		})
	}
}

func TestExtract_WholeNumberPort(t *testing.T) {
	RegisterTestingT(t)

	provider := llm_mocks.NewProviderMock(t)
	provider.On("Chat", mock.Anything, mock.Anything).Return(reply(`{"app_port": 8080}`), nil).Once()

	record, err := newExtractor(t, provider).Extract(context.Background(), conversation, []string{schema.KeyAppPort})
	Expect(err).To(BeNil())
	Expect(record[schema.KeyAppPort]).To(Equal("8080"))
}

func TestExtract_BoolAsString(t *testing.T) {
	RegisterTestingT(t)

	provider := llm_mocks.NewProviderMock(t)
	provider.On("Chat", mock.Anything, mock.Anything).Return(reply(`{"redis": "true"}`), nil).Once()

	record, err := newExtractor(t, provider).Extract(context.Background(), conversation, []string{schema.KeyRedis})
	Expect(err).To(BeNil())
	Expect(record[schema.KeyRedis]).To(Equal(schema.True))
}

func TestExtract_LogsCallSummary(t *testing.T) {
	RegisterTestingT(t)

	provider := llm_mocks.NewProviderMock(t)
	provider.On("Chat", mock.Anything, mock.Anything).Return(&llm.ChatResponse{
		Content:      `{"redis": false}`,
		Model:        "gpt-4o-mini",
		Provider:     "openai",
		FinishReason: "stop",
		Usage:        llm.TokenUsage{PromptTokens: 120, CompletionTokens: 5},
		Latency:      42 * time.Millisecond,
	}, nil).Once()

	var out bytes.Buffer
	log := logger.NewWithWriters(&out, &out)
	ctx := log.SetLogLevel(context.Background(), logger.LogLevelDebug)

	_, err := newExtractor(t, provider, WithLogger(log)).Extract(ctx, conversation, []string{schema.KeyRedis})
	Expect(err).To(BeNil())
	Expect(out.String()).To(ContainSubstring("extraction call: openai/gpt-4o-mini finish=stop tokens=125 (prompt 120, completion 5) latency=42ms"))
}

func TestExtract_Idempotent(t *testing.T) {
	RegisterTestingT(t)

	provider := llm_mocks.NewProviderMock(t)
	provider.On("Chat", mock.Anything, mock.Anything).
		Return(reply(`{"vector_db": "qdrant", "redis": true}`), nil).Twice()
	extractor := newExtractor(t, provider)
	targets := []string{schema.KeyVectorDB, schema.KeyRedis}

	first, err := extractor.Extract(context.Background(), conversation, targets)
	Expect(err).To(BeNil())
	second, err := extractor.Extract(context.Background(), conversation, []string{schema.KeyRedis, schema.KeyVectorDB})
	Expect(err).To(BeNil())

	Expect(second).To(Equal(first))
	Expect(provider.Calls[1].Arguments.Get(1)).To(Equal(provider.Calls[0].Arguments.Get(1)))
}

func TestExtract_NoTargets(t *testing.T) {
	RegisterTestingT(t)

	provider := llm_mocks.NewProviderMock(t)
	record, err := newExtractor(t, provider).Extract(context.Background(), conversation, []string{"unknown"})
	Expect(err).To(BeNil())
	Expect(record).To(BeEmpty())
	provider.AssertNotCalled(t, "Chat", mock.Anything, mock.Anything)
}

func TestExtract_RetriesTransientFailures(t *testing.T) {
	RegisterTestingT(t)

	provider := llm_mocks.NewProviderMock(t)
	provider.On("Chat", mock.Anything, mock.Anything).Return(nil, errors.New("503 service unavailable")).Twice()
	provider.On("Chat", mock.Anything, mock.Anything).Return(reply(`{"redis": true}`), nil).Once()

	record, err := newExtractor(t, provider).Extract(context.Background(), conversation, []string{schema.KeyRedis})
	Expect(err).To(BeNil())
	Expect(record[schema.KeyRedis]).To(Equal(schema.True))
}

func TestExtract_ModelUnavailable(t *testing.T) {
	RegisterTestingT(t)

	provider := llm_mocks.NewProviderMock(t)
	provider.On("Chat", mock.Anything, mock.Anything).Return(nil, errors.New("connection refused")).Times(3)

	record, err := newExtractor(t, provider, WithMaxRetries(2)).Extract(context.Background(), conversation, []string{schema.KeyRedis})
	Expect(record).To(BeNil())
	Expect(errors.Is(err, ErrModelUnavailable)).To(BeTrue())
}

func TestExtract_PermanentFailureIsNotRetried(t *testing.T) {
	RegisterTestingT(t)

	provider := llm_mocks.NewProviderMock(t)
	provider.On("Chat", mock.Anything, mock.Anything).
		Return(nil, &llm.PermanentError{Err: errors.New("401 invalid api key")}).Once()

	_, err := newExtractor(t, provider).Extract(context.Background(), conversation, []string{schema.KeyRedis})
	Expect(errors.Is(err, ErrModelUnavailable)).To(BeTrue())
	Expect(err.Error()).To(ContainSubstring("invalid api key"))
}

func TestTranscript(t *testing.T) {
	RegisterTestingT(t)

	Expect(Transcript(conversation)).To(Equal("assistant: Which vector database do you want?\nuser: Qdrant please, and turn on redis"))
}
