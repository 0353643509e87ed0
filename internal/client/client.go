// Package client talks to the investigation and remediation services.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ErrMalformedResponse marks a 2xx response whose payload lacks expected fields.
var ErrMalformedResponse = errors.New("malformed response")

// APIError is a non-2xx answer from a service.
type APIError struct {
	Operation  string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: HTTP %d: %s", e.Operation, e.StatusCode, e.Message)
}

// IsNotFound reports whether err is an APIError with status 404.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// Option configures a client during construction.
type Option func(*clientConfig) error

type clientConfig struct {
	httpClient *http.Client
	log        *zap.SugaredLogger
	timeout    time.Duration
}

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cfg *clientConfig) error {
		cfg.httpClient = c
		return nil
	}
}

// WithLogger configures request logging.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(cfg *clientConfig) error {
		cfg.log = l
		return nil
	}
}

// WithTimeout sets a timeout on the HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(cfg *clientConfig) error {
		if d < 0 {
			return fmt.Errorf("client: negative timeout %s", d)
		}
		cfg.timeout = d
		return nil
	}
}

// base holds the transport shared by both service clients.
type base struct {
	baseURL    string
	httpClient *http.Client
	log        *zap.SugaredLogger
}

func newBase(name, baseURL string, opts []Option) (base, error) {
	if baseURL == "" {
		return base{}, fmt.Errorf("%s: base URL is required", name)
	}
	cfg := &clientConfig{}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return base{}, err
		}
	}
	httpClient := cfg.httpClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if cfg.timeout > 0 {
		httpClient.Timeout = cfg.timeout
	}
	log := cfg.log
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return base{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: httpClient,
		log:        log.With("service", name),
	}, nil
}

// doJSON sends in as the JSON body (when non-nil) and decodes the response
// into dst (when non-nil). Non-2xx responses become *APIError.
func (b base) doJSON(ctx context.Context, method, path, operation string, in, dst any) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", operation, err)
		}
		body = bytes.NewReader(buf)
	}
	url := b.baseURL + path
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return fmt.Errorf("%s: create request: %w", operation, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	b.log.Debugw("api request", "operation", operation, "method", method, "url", url)
	start := time.Now()
	resp, err := b.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: do request: %w", operation, err)
	}
	defer resp.Body.Close()
	b.log.Debugw("api response", "operation", operation, "status", resp.StatusCode, "elapsed", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		return &APIError{Operation: operation, StatusCode: resp.StatusCode, Message: errorMessage(respBody, resp.Status)}
	}
	if dst == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("%s: decode response: %w: %w", operation, ErrMalformedResponse, err)
	}
	return nil
}

// errorMessage extracts the FastAPI "detail" field, falling back to the raw body.
func errorMessage(body []byte, status string) string {
	var e struct {
		Detail any `json:"detail"`
	}
	if json.Unmarshal(body, &e) == nil && e.Detail != nil {
		if s, ok := e.Detail.(string); ok {
			return s
		}
		if b, err := json.Marshal(e.Detail); err == nil {
			return string(b)
		}
	}
	if msg := strings.TrimSpace(string(body)); msg != "" {
		return msg
	}
	return status
}
