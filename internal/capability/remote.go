package capability

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/plexo/agentic/pkg/schema"
)

// RemoteConfig points a RemoteClient at a capability service.
type RemoteConfig struct {
	BaseURL string
	APIKey  string
}

// RemoteClient implements Generator and Searcher against a REST capability
// service. All calls are POSTs of a JSON payload to a fixed path under the
// base URL, authenticated with a bearer token.
type RemoteClient struct {
	config  RemoteConfig
	fetcher Fetcher
}

// NewRemoteClient creates a client for the capability service at cfg.BaseURL.
// A nil fetcher gets the default HTTPFetcher.
func NewRemoteClient(cfg RemoteConfig, fetcher Fetcher) *RemoteClient {
	if fetcher == nil {
		fetcher = NewHTTPFetcher(FetcherConfig{})
	}
	return &RemoteClient{config: cfg, fetcher: fetcher}
}

func (c *RemoteClient) post(ctx context.Context, path string, payload any, out any) error {
	headers := map[string]string{"Accept": "application/json"}
	if c.config.APIKey != "" {
		headers["Authorization"] = "Bearer " + c.config.APIKey
	}

	resp, err := c.fetcher.Do(ctx, Request{
		Method:  "POST",
		URL:     c.config.BaseURL + path,
		Headers: headers,
		Body:    payload,
	})
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		return schema.NewErrorf(schema.ErrCodeCapability,
			"capability service returned %d for %s", resp.StatusCode, path).
			WithDetails(map[string]any{"status": resp.StatusCode, "body": string(resp.Body)})
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return schema.NewErrorf(schema.ErrCodeCapability,
			"capability service returned malformed JSON for %s", path).WithCause(err)
	}
	return nil
}

// GenerateStructuredOutput asks the remote model for an object conforming to
// the given JSON Schema.
func (c *RemoteClient) GenerateStructuredOutput(ctx context.Context, prompt string, contextValues []string, jsonSchema json.RawMessage) (map[string]any, error) {
	payload := map[string]any{
		"question":    prompt,
		"context":     contextValues,
		"json_schema": jsonSchema,
	}

	var out struct {
		Success bool           `json:"success"`
		Answer  map[string]any `json:"answer"`
		Error   string         `json:"error,omitempty"`
	}
	if err := c.post(ctx, "/predict", payload, &out); err != nil {
		return nil, err
	}
	if !out.Success {
		return nil, schema.NewErrorf(schema.ErrCodeCapability, "generation failed: %s", out.Error)
	}
	return out.Answer, nil
}

// Find runs a search query against the remote knowledge source.
func (c *RemoteClient) Find(ctx context.Context, query string, features []string, options map[string]any) (*FindResults, error) {
	payload := map[string]any{"query": query}
	if len(features) > 0 {
		payload["features"] = features
	}
	for k, v := range options {
		payload[k] = v
	}

	var out struct {
		Type    string `json:"type"`
		Results any    `json:"results"`
		Detail  string `json:"detail,omitempty"`
	}
	if err := c.post(ctx, "/find", payload, &out); err != nil {
		return nil, err
	}
	if out.Type == "error" {
		return nil, schema.NewErrorf(schema.ErrCodeCapability, "find failed: %s", out.Detail)
	}
	return &FindResults{Results: out.Results}, nil
}

// Ask answers a question over the remote knowledge source.
func (c *RemoteClient) Ask(ctx context.Context, query string, prior []Turn, features []string, options map[string]any) (*Answer, error) {
	payload := map[string]any{"query": query}
	if len(prior) > 0 {
		payload["context"] = prior
	}
	if len(features) > 0 {
		payload["features"] = features
	}
	for k, v := range options {
		payload[k] = v
	}

	var out struct {
		Type             string         `json:"type"`
		Answer           any            `json:"answer"`
		StructuredOutput map[string]any `json:"answer_json,omitempty"`
		Detail           string         `json:"detail,omitempty"`
	}
	if err := c.post(ctx, "/ask", payload, &out); err != nil {
		return nil, err
	}
	if out.Type == "error" {
		return nil, schema.NewErrorf(schema.ErrCodeCapability, "ask failed: %s", out.Detail)
	}
	return &Answer{Results: out.Answer, StructuredOutput: out.StructuredOutput}, nil
}

var (
	_ Generator = (*RemoteClient)(nil)
	_ Searcher  = (*RemoteClient)(nil)
)

// String implements fmt.Stringer for log output without leaking the API key.
func (c *RemoteClient) String() string {
	return fmt.Sprintf("remote-capabilities(%s)", c.config.BaseURL)
}
