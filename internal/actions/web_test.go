package actions

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/plexo/agentic/internal/capability"
	"github.com/plexo/agentic/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplePage = `<html><body>
<h1 class="title">Release Notes</h1>
<div id="version">v1.4.2</div>
<ul><li>first</li><li>second</li></ul>
</body></html>`

func TestWebHandler_Run(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "abc", r.Header.Get("X-Token"))
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(samplePage))
	}))
	defer srv.Close()

	h := NewWebHandler(capability.NewHTTPFetcher(capability.FetcherConfig{}))

	action := &schema.Action{
		Type: schema.ActionWeb,
		Web: &schema.WebParams{
			URL:     "{{START.url}}",
			Headers: map[string]string{"X-Token": "{{START.token}}"},
			Outputs: map[string]string{
				"title":   "h1.title",
				"version": "#version",
				"item":    "ul li",
				"absent":  "table td",
			},
		},
	}

	out, err := h.Run(context.Background(), Invocation{
		StepID: "scrape",
		Action: action,
		Context: map[string]any{
			"START": map[string]any{"url": srv.URL, "token": "abc"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"title":   "Release Notes",
		"version": "v1.4.2",
		"item":    "first",
		"absent":  "",
	}, out)
}

func TestWebHandler_HTTPErrorFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	h := NewWebHandler(capability.NewHTTPFetcher(capability.FetcherConfig{}))
	action := &schema.Action{
		Type: schema.ActionWeb,
		Web:  &schema.WebParams{URL: srv.URL, Outputs: map[string]string{"x": "h1"}},
	}

	_, err := h.Run(context.Background(), Invocation{StepID: "scrape", Action: action, Context: map[string]any{}})
	require.Error(t, err)
}

func TestWebHandler_UnresolvedURLFails(t *testing.T) {
	h := NewWebHandler(capability.NewHTTPFetcher(capability.FetcherConfig{}))
	action := &schema.Action{
		Type: schema.ActionWeb,
		Web:  &schema.WebParams{URL: "{{nope.url}}", Outputs: map[string]string{}},
	}

	_, err := h.Run(context.Background(), Invocation{StepID: "scrape", Action: action, Context: map[string]any{}})
	require.Error(t, err)
	var perr *schema.PipelineError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, schema.ErrCodeTemplate, perr.Code)
}
