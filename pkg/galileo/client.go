package galileo

import (
	"context"
	"fmt"
	"time"

	"github.com/nicktill/galileo-metrics/pkg/config"
)

// ClientConfig holds configuration for the API client
type ClientConfig struct {
	APIKey  string
	BaseURL string

	// Timeout is the per-request deadline (default: config.RequestTimeout).
	Timeout time.Duration

	// Transport overrides the HTTP transport. Tests use it to inject fakes.
	Transport Transport

	// Instrumentation is optional; nil disables Prometheus metrics.
	Instrumentation *Instrumentation
}

// Client is the Galileo API client. It holds no global state; create one per
// set of credentials and pass it explicitly.
type Client struct {
	config    ClientConfig
	transport Transport
	metrics   *Instrumentation
}

// New creates a new client. A missing API key or base URL is a
// configuration error.
func New(cfg ClientConfig) (*Client, error) {
	if cfg.Transport == nil {
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("%w: %s is required", ErrConfig, config.EnvAPIKey)
		}
		if cfg.BaseURL == "" {
			return nil, fmt.Errorf("%w: %s is required", ErrConfig, config.EnvAPIURL)
		}

		trans, err := NewHTTP(cfg.BaseURL, cfg.APIKey, cfg.Timeout)
		if err != nil {
			return nil, fmt.Errorf("failed to create transport: %w", err)
		}
		cfg.Transport = trans
	}

	return &Client{
		config:    cfg,
		transport: cfg.Transport,
		metrics:   cfg.Instrumentation,
	}, nil
}

// do runs a request through the transport and records it.
func (c *Client) do(ctx context.Context, req Request, out any) error {
	start := time.Now()
	err := c.transport.Do(ctx, req, out)
	c.metrics.observeRequest(req.Endpoint, time.Since(start), err)
	return err
}
