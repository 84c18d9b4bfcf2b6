// Package capability defines the external abilities a pipeline run depends on:
// structured generation, knowledge search, and raw HTTP fetching. Handlers
// receive these as interfaces so a run can be wired to a remote service, a
// local model, or test doubles without touching the engine.
package capability

import (
	"context"
	"encoding/json"
)

// Turn is one message of a conversational exchange passed as context to a
// generation or search call.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// FindResults is the raw payload returned by a knowledge search.
type FindResults struct {
	Results any `json:"results"`
}

// Answer is the response of a question-answering search: a synthesized
// answer plus optional structured fields extracted alongside it.
type Answer struct {
	Results          any            `json:"results"`
	StructuredOutput map[string]any `json:"structured_output,omitempty"`
}

// Generator produces structured output from a prompt. The schema parameter is
// a JSON Schema document describing the expected shape; implementations must
// return a value conforming to it.
type Generator interface {
	GenerateStructuredOutput(ctx context.Context, prompt string, contextValues []string, schema json.RawMessage) (map[string]any, error)
}

// Searcher queries a knowledge source. Find returns raw matches; Ask answers
// a question over the source, optionally extracting structured fields.
type Searcher interface {
	Find(ctx context.Context, query string, features []string, options map[string]any) (*FindResults, error)
	Ask(ctx context.Context, query string, prior []Turn, features []string, options map[string]any) (*Answer, error)
}

// Capabilities bundles everything a pipeline run may reach outside itself for.
type Capabilities struct {
	Generator Generator
	Searcher  Searcher
	Fetcher   Fetcher
}
