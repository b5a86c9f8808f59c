package chat

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	. "github.com/onsi/gomega"
	"github.com/samber/lo"

	"github.com/danielrosehill/OWUI-Docker-Compose-Generation-Agent/pkg/assistant/dialogue"
	"github.com/danielrosehill/OWUI-Docker-Compose-Generation-Agent/pkg/assistant/llm"
	"github.com/danielrosehill/OWUI-Docker-Compose-Generation-Agent/pkg/schema"
)

type noExtractor struct{}

func (noExtractor) Extract(context.Context, []llm.Message, []string) (schema.Record, error) {
	return schema.Record{}, nil
}

func testSchema() *schema.Schema {
	return schema.MustNew(
		schema.Field{
			Key: "database", Kind: schema.KindEnum, Allowed: []string{"sqlite", "postgres"},
			Default: lo.ToPtr("sqlite"), Question: "Which database?",
		},
		schema.Field{
			Key: "redis", Kind: schema.KindBool, Default: lo.ToPtr(schema.False), Question: "Redis?",
		},
	)
}

func TestSessionResolvesWithDefaults(t *testing.T) {
	RegisterTestingT(t)

	var out bytes.Buffer
	session := NewSession(
		dialogue.New(testSchema(), noExtractor{}),
		NewPlainReader(strings.NewReader("default\n\n"), &out),
		&out,
		lo.Must(GetTheme("monochrome")),
	)
	record, err := session.Run(context.Background())
	Expect(err).To(BeNil())
	Expect(record).To(Equal(schema.Record{"database": "sqlite", "redis": schema.False}))
	Expect(out.String()).To(ContainSubstring("Which database?"))
	Expect(out.String()).To(ContainSubstring("Redis?"))
}

func TestSessionClosedInputAborts(t *testing.T) {
	RegisterTestingT(t)

	var out bytes.Buffer
	session := NewSession(dialogue.New(testSchema(), noExtractor{}), NewPlainReader(strings.NewReader(""), &out), &out, nil)
	record, err := session.Run(context.Background())
	Expect(record).To(BeNil())

	var abortErr *dialogue.AbortError
	Expect(errors.As(err, &abortErr)).To(BeTrue())
	Expect(abortErr.Kind).To(Equal(dialogue.AbortedByUser))
	Expect(abortErr.Reason).To(Equal("input closed"))
}

func TestSessionExitWord(t *testing.T) {
	RegisterTestingT(t)

	var out bytes.Buffer
	session := NewSession(dialogue.New(testSchema(), noExtractor{}), NewPlainReader(strings.NewReader("quit\n"), &out), &out, nil)
	_, err := session.Run(context.Background())

	var abortErr *dialogue.AbortError
	Expect(errors.As(err, &abortErr)).To(BeTrue())
	Expect(abortErr.Kind).To(Equal(dialogue.AbortedByUser))
	Expect(abortErr.Key).To(Equal("database"))
}

func TestGetTheme(t *testing.T) {
	RegisterTestingT(t)

	Expect(ThemeNames()).To(Equal([]string{"default", "monochrome", "ocean"}))
	_, err := GetTheme("neon")
	Expect(err).To(MatchError(ContainSubstring("unknown theme")))
}
