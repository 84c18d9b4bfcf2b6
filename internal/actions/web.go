package actions

import (
	"bytes"
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/plexo/agentic/internal/capability"
	"github.com/plexo/agentic/pkg/schema"
)

// WebHandler runs the "web" action: fetch a page and extract named values
// with CSS selectors. A selector with no match yields an empty string.
type WebHandler struct {
	fetcher capability.Fetcher
}

// NewWebHandler creates the web handler.
func NewWebHandler(f capability.Fetcher) *WebHandler {
	return &WebHandler{fetcher: f}
}

func (h *WebHandler) Type() schema.ActionType { return schema.ActionWeb }

func (h *WebHandler) Run(ctx context.Context, inv Invocation) (any, error) {
	params := inv.Action.Web
	if params == nil {
		return nil, schema.NewError(schema.ErrCodeValidation, "web action has no params").WithStep(inv.StepID)
	}
	if h.fetcher == nil {
		return nil, schema.NewError(schema.ErrCodeCapability, "no fetcher capability configured").WithStep(inv.StepID)
	}

	rawURL, err := formatRequired(params.URL, inv.Context)
	if err != nil {
		return nil, err
	}
	headers, err := formatHeaders(params.Headers, inv.Context)
	if err != nil {
		return nil, err
	}

	resp, err := h.fetcher.Do(ctx, capability.Request{
		Method:  "GET",
		URL:     rawURL,
		Headers: headers,
	})
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, schema.NewErrorf(schema.ErrCodeCapability,
			"web fetch of %s returned %d", rawURL, resp.StatusCode).WithStep(inv.StepID)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeCapability,
			"failed to parse document from %s", rawURL).WithStep(inv.StepID).WithCause(err)
	}

	result := make(map[string]any, len(params.Outputs))
	for name, selector := range params.Outputs {
		text := ""
		if sel := doc.Find(selector).First(); sel.Length() > 0 {
			text = strings.TrimSpace(sel.Text())
		}
		result[name] = text
	}
	return result, nil
}
