package prompts

import (
	"strings"

	"github.com/valyala/fasttemplate"
)

const systemTemplate = `You are an expert on Open WebUI configuration and Docker Compose.
You help the user configure a Docker Compose deployment of Open WebUI by asking one question at a time.
The decisions are fixed: environment variable placement, image, port, database, vector database for RAG,
Redis, authentication, API integrations (OpenAI, Ollama) and an optional reverse proxy.
Never invent options that are not offered. Keep questions short and explain trade-offs in one sentence when useful.

Reference documentation:
{{reference}}
`

// SystemPrompt returns the base system prompt, grounded on the given reference text.
func SystemPrompt(reference string) string {
	if strings.TrimSpace(reference) == "" {
		reference = "(no reference documentation loaded)"
	}
	return fasttemplate.ExecuteString(systemTemplate, "{{", "}}", map[string]interface{}{
		"reference": reference,
	})
}

const questionTemplate = `Ask the user the next configuration question.
Decision: {{key}}
Base question: {{question}}
Options: {{options}}
Default: {{default}}
{{retry}}
Reply with the question only, in at most three sentences. Mention the options and the default.`

// QuestionVars are the substitutions of the question phrasing prompt.
type QuestionVars struct {
	Key      string
	Question string
	Options  []string
	Default  string
	Retry    string
}

// QuestionPrompt asks the model to phrase the question about one decision.
func QuestionPrompt(vars QuestionVars) string {
	options := "free text"
	if len(vars.Options) > 0 {
		options = strings.Join(vars.Options, ", ")
	}
	def := vars.Default
	if def == "" {
		def = "none"
	}
	retry := ""
	if vars.Retry != "" {
		retry = "The previous answer could not be used: " + vars.Retry + ". Politely ask again."
	}
	return fasttemplate.ExecuteString(questionTemplate, "{{", "}}", map[string]interface{}{
		"key":      vars.Key,
		"question": vars.Question,
		"options":  options,
		"default":  def,
		"retry":    retry,
	})
}

const extractionTemplate = `Extract configuration decisions from the conversation below.
Return ONLY a JSON object. Use exactly the keys listed under "Decisions". For every decision:
- use one of the listed values verbatim when values are listed,
- use true or false for yes/no decisions,
- use the default value when the user explicitly accepts the default or says they do not care,
- use null when the conversation does not answer it.
When the user changed their mind, use their latest answer.

Decisions:
{{fields}}

JSON Schema of the expected object:
{{schema}}

Conversation:
{{conversation}}`

// ExtractionVars are the substitutions of the extraction prompt.
type ExtractionVars struct {
	Fields       string
	Schema       string
	Conversation string
}

// ExtractionPrompt builds the constrained extraction request.
func ExtractionPrompt(vars ExtractionVars) string {
	return fasttemplate.ExecuteString(extractionTemplate, "{{", "}}", map[string]interface{}{
		"fields":       vars.Fields,
		"schema":       vars.Schema,
		"conversation": vars.Conversation,
	})
}

// ExtractionSystemPrompt is the system message of extraction calls.
func ExtractionSystemPrompt() string {
	return "You convert conversations into strict JSON. You never add commentary and never guess values the user did not give."
}
