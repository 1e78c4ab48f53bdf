// Package httppost provides the remote sink that POSTs each reading as JSON
package httppost

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/c360/fieldstreams/errors"
	"github.com/c360/fieldstreams/reading"
)

// DefaultTimeout bounds one POST including reading the response
const DefaultTimeout = 30 * time.Second

// Config holds configuration for the HTTP POST sink
type Config struct {
	URL         string            `json:"url"          yaml:"url"`
	Headers     map[string]string `json:"headers"      yaml:"headers"`
	Timeout     time.Duration     `json:"timeout"      yaml:"timeout"`
	ContentType string            `json:"content_type" yaml:"content_type"`
}

// Validate checks the configuration for errors. An empty URL is valid and
// disables the sink.
func (c Config) Validate() error {
	if c.URL != "" {
		u, err := url.Parse(c.URL)
		if err != nil {
			return errors.WrapInvalid(err, "Config", "Validate", "parse url")
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
				fmt.Sprintf("url scheme %q must be http or https", u.Scheme))
		}
	}

	if c.Timeout < 0 || c.Timeout > 5*time.Minute {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			"timeout must be between 0 and 5m")
	}

	return nil
}

// DefaultConfig returns default configuration for the HTTP POST sink
func DefaultConfig() Config {
	return Config{
		Headers:     make(map[string]string),
		Timeout:     DefaultTimeout,
		ContentType: "application/json",
	}
}

// OutputDeps holds runtime dependencies for the HTTP POST sink
type OutputDeps struct {
	Name       string
	Config     Config
	HTTPClient *http.Client // Optional, a client with Config.Timeout is built otherwise
	Logger     *slog.Logger
}

// Output sends one POST per reading. Delivery is attempted once; there is no
// retry and no queueing.
type Output struct {
	name        string
	url         string
	headers     map[string]string
	contentType string
	httpClient  *http.Client
	logger      *slog.Logger

	messagesSent atomic.Int64
	skipped      atomic.Int64
	errors       atomic.Int64
	lastActivity atomic.Value // time.Time
}

// NewOutput creates the sink. With an empty URL the sink is disabled and
// Write does nothing.
func NewOutput(deps OutputDeps) (*Output, error) {
	cfg := deps.Config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	contentType := cfg.ContentType
	if contentType == "" {
		contentType = "application/json"
	}

	httpClient := deps.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}

	name := deps.Name
	if name == "" {
		name = "remote"
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	h := &Output{
		name:        name,
		url:         cfg.URL,
		headers:     cfg.Headers,
		contentType: contentType,
		httpClient:  httpClient,
		logger:      logger.With("component", "httppost-output"),
	}
	h.lastActivity.Store(time.Time{})

	if !h.Enabled() {
		h.logger.Info("remote sink disabled, no url configured")
	}
	return h, nil
}

// Name returns the sink name used in reports and metrics
func (h *Output) Name() string {
	return h.name
}

// Enabled reports whether a URL is configured
func (h *Output) Enabled() bool {
	return h.url != ""
}

// Write POSTs the JSON payload of r. Transport failures and non-2xx
// responses wrap errors.ErrSinkDelivery.
func (h *Output) Write(ctx context.Context, r reading.Reading) error {
	if !h.Enabled() {
		h.skipped.Add(1)
		return nil
	}

	body, err := r.MarshalPayload()
	if err != nil {
		return h.fail(err)
	}

	if err := h.post(ctx, body); err != nil {
		return h.fail(err)
	}

	h.messagesSent.Add(1)
	h.lastActivity.Store(time.Now())
	return nil
}

func (h *Output) post(ctx context.Context, data []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(data))
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", h.contentType)
	for key, value := range h.headers {
		req.Header.Set(key, value)
	}

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	// drain so the connection can be reused
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}
	return nil
}

func (h *Output) fail(err error) error {
	h.errors.Add(1)
	return errors.SinkError(errors.ErrSinkDelivery, h.name, err)
}

// Stats is a point-in-time copy of the delivery counters
type Stats struct {
	MessagesSent int64
	Skipped      int64
	Errors       int64
	LastActivity time.Time
}

// Stats returns the delivery counters
func (h *Output) Stats() Stats {
	last, _ := h.lastActivity.Load().(time.Time)
	return Stats{
		MessagesSent: h.messagesSent.Load(),
		Skipped:      h.skipped.Load(),
		Errors:       h.errors.Load(),
		LastActivity: last,
	}
}
