package galileo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/nicktill/galileo-metrics/pkg/config"
)

// maxErrorBody caps how much of a failed response ends up in a StatusError.
const maxErrorBody = 512

// Request describes one API call. Endpoint is a low-cardinality name used
// for instrumentation; Path carries the concrete ids.
type Request struct {
	Endpoint string
	Method   string
	Path     string
	Body     any
}

// Transport defines the interface for talking to the API
type Transport interface {
	Do(ctx context.Context, req Request, out any) error
}

// HTTPTransport implements Transport using HTTP and JSON
type HTTPTransport struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewHTTP creates a new HTTP transport. A zero timeout means
// config.RequestTimeout.
func NewHTTP(baseURL, apiKey string, timeout time.Duration) (*HTTPTransport, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: invalid API URL %q", ErrConfig, baseURL)
	}
	if timeout <= 0 {
		timeout = config.RequestTimeout
	}

	return &HTTPTransport{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// Do sends the request and decodes a JSON response into out (if non-nil).
func (t *HTTPTransport) Do(ctx context.Context, req Request, out any) error {
	var body io.Reader
	if req.Body != nil {
		jsonData, err := json.Marshal(req.Body)
		if err != nil {
			return fmt.Errorf("%w: failed to marshal request: %w", ErrTransport, err)
		}
		body = bytes.NewReader(jsonData)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, t.baseURL+req.Path, body)
	if err != nil {
		return fmt.Errorf("%w: failed to create request: %w", ErrTransport, err)
	}

	httpReq.Header.Set(config.APIKeyHeader, t.apiKey)
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%w: failed to send request: %w", ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{
			Method:     req.Method,
			Path:       req.Path,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(snippet)),
		}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: failed to decode response from %s: %w", ErrTransport, req.Path, err)
	}
	return nil
}
