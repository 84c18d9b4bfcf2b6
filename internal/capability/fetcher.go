package capability

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/plexo/agentic/pkg/schema"
)

// FetcherConfig bounds outbound HTTP calls made on behalf of a pipeline step.
type FetcherConfig struct {
	MaxResponseBody int64
	DefaultTimeout  time.Duration
	MaxRedirects    int
}

const (
	defaultMaxResponseBody = 10 * 1024 * 1024 // 10MB
	defaultFetchTimeout    = 30 * time.Second
	defaultMaxRedirects    = 10
)

// Request describes one outbound HTTP call. Body, when non-nil, is JSON
// encoded unless RawBody is set.
type Request struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    any
	RawBody []byte
}

// Response is the outcome of a fetch. Body holds the raw bytes (size-limited);
// JSON is the decoded body when the content type is application/json and the
// payload parses, nil otherwise.
type Response struct {
	StatusCode  int
	Status      string
	Headers     map[string]string
	ContentType string
	Body        []byte
	JSON        any
	DurationMS  int64
}

// Fetcher performs raw HTTP on behalf of the web and api actions.
type Fetcher interface {
	Do(ctx context.Context, req Request) (*Response, error)
}

// HTTPFetcher is the default Fetcher. Every call builds a fresh client so
// per-request redirect policy never leaks into shared state.
type HTTPFetcher struct {
	config FetcherConfig
}

// NewHTTPFetcher creates a Fetcher with the given limits, filling in defaults
// for unset fields.
func NewHTTPFetcher(cfg FetcherConfig) *HTTPFetcher {
	if cfg.MaxResponseBody <= 0 {
		cfg.MaxResponseBody = defaultMaxResponseBody
	}
	if cfg.DefaultTimeout <= 0 {
		cfg.DefaultTimeout = defaultFetchTimeout
	}
	if cfg.MaxRedirects <= 0 {
		cfg.MaxRedirects = defaultMaxRedirects
	}
	return &HTTPFetcher{config: cfg}
}

func (f *HTTPFetcher) Do(ctx context.Context, req Request) (*Response, error) {
	method := strings.ToUpper(req.Method)
	if method == "" {
		method = http.MethodGet
	}

	u, err := url.ParseRequestURI(req.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, schema.NewErrorf(schema.ErrCodeValidation, "fetch: invalid url %q", req.URL)
	}

	var bodyReader io.Reader
	var contentType string
	switch {
	case req.RawBody != nil:
		bodyReader = strings.NewReader(string(req.RawBody))
	case req.Body != nil:
		b, err := json.Marshal(req.Body)
		if err != nil {
			return nil, schema.NewErrorf(schema.ErrCodeExecution, "fetch: failed to marshal body as JSON").WithCause(err)
		}
		bodyReader = strings.NewReader(string(b))
		contentType = "application/json"
	}

	reqCtx, cancel := context.WithTimeout(ctx, f.config.DefaultTimeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(reqCtx, method, req.URL, bodyReader)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeExecution, "fetch: failed to create request").WithCause(err)
	}

	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	// Fresh client per call so CheckRedirect stays request-scoped.
	limit := f.config.MaxRedirects
	client := &http.Client{
		CheckRedirect: func(r *http.Request, via []*http.Request) error {
			if len(via) >= limit {
				return fmt.Errorf("stopped after %d redirects", limit)
			}
			return nil
		},
	}

	start := time.Now()
	resp, err := client.Do(httpReq)
	durationMS := time.Since(start).Milliseconds()
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeCapability, "fetch: request failed: %v", err).WithCause(err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, f.config.MaxResponseBody))
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeCapability, "fetch: failed to read response body").WithCause(err)
	}

	respContentType := resp.Header.Get("Content-Type")
	var parsed any
	if len(bodyBytes) > 0 && strings.Contains(respContentType, "application/json") {
		if err := json.Unmarshal(bodyBytes, &parsed); err != nil {
			parsed = nil
		}
	}

	headers := make(map[string]string, len(resp.Header))
	for k := range resp.Header {
		headers[k] = resp.Header.Get(k)
	}

	return &Response{
		StatusCode:  resp.StatusCode,
		Status:      resp.Status,
		Headers:     headers,
		ContentType: respContentType,
		Body:        bodyBytes,
		JSON:        parsed,
		DurationMS:  durationMS,
	}, nil
}

var _ Fetcher = (*HTTPFetcher)(nil)
