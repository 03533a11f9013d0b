// Package apiclient is the JSON-over-HTTP client shared by the backend and
// collaborator clients.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/capitalize-ai/support-console/pkg/metrics"
)

// ErrNotSuccessful is returned when the server answers with success=false or
// a non-2xx status.
var ErrNotSuccessful = errors.New("request not successful")

// Envelope is the response wrapper used by every collaborator endpoint.
type Envelope[T any] struct {
	Success bool   `json:"success"`
	Data    T      `json:"data"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

// StatusError carries the HTTP status of a failed request.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("status %d", e.Code)
	}
	return fmt.Sprintf("status %d: %s", e.Code, e.Message)
}

func (e *StatusError) Unwrap() error { return ErrNotSuccessful }

// Config holds client settings.
type Config struct {
	Name    string
	BaseURL string
	Token   string
	Timeout time.Duration
}

// Client issues JSON requests against one base URL.
type Client struct {
	name    string
	baseURL string
	token   string
	http    *http.Client
}

// New creates a client.
func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		name:    cfg.Name,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.Token,
		http:    &http.Client{Timeout: timeout},
	}
}

// Name returns the collaborator name used in metrics and spans.
func (c *Client) Name() string {
	return c.name
}

// Do sends a request and decodes the envelope's data into T.
func Do[T any](ctx context.Context, c *Client, method, path string, query url.Values, body any) (T, error) {
	var zero T

	ctx, span := otel.Tracer("apiclient").Start(ctx, c.name+" "+method,
		trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(attribute.String("http.path", path))

	env, err := do[T](ctx, c, method, path, query, body)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		metrics.RecordCollaboratorRequest(c.name, "error")
		return zero, err
	}
	if !env.Success {
		metrics.RecordCollaboratorRequest(c.name, "not_successful")
		msg := env.Error
		if msg == "" {
			msg = env.Message
		}
		if msg == "" {
			return zero, ErrNotSuccessful
		}
		return zero, fmt.Errorf("%w: %s", ErrNotSuccessful, msg)
	}

	metrics.RecordCollaboratorRequest(c.name, "success")
	return env.Data, nil
}

func do[T any](ctx context.Context, c *Client, method, path string, query url.Values, body any) (*Envelope[T], error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s request failed: %w", c.name, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s response: %w", c.name, err)
	}

	var env Envelope[T]
	decodeErr := json.Unmarshal(raw, &env)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := env.Error
		if decodeErr != nil || msg == "" {
			msg = strings.TrimSpace(string(raw))
		}
		return nil, &StatusError{Code: resp.StatusCode, Message: msg}
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("failed to decode %s response: %w", c.name, decodeErr)
	}
	return &env, nil
}
