// Package reference loads Open WebUI documentation and serves the passages most relevant
// to a question as grounding text for the language model.
package reference
