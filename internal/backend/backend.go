// Package backend is the HTTP client for the generation service.
//
// Two operations, matching the artifact's two phases:
//
//   - SpecStream opens the phase-one conversation stream. The response body
//     is handed to a stream.Decoder; events arrive incrementally and the
//     caller drives the read loop, so cancellation is the caller's context.
//   - GenerateUI is the phase-two single-shot call: spec in, component tree
//     plus seeded data bag out.
//
// Outbound calls share a token-bucket limiter so a user hammering the
// build action cannot trip server-side limits.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/maquette-dev/maquette/internal/artifact"
	"github.com/maquette-dev/maquette/internal/log"
	"github.com/maquette-dev/maquette/internal/observability"
	"github.com/maquette-dev/maquette/internal/stream"
)

// endSpan closes a span, recording err when the call failed.
func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

var (
	// ErrBackendUnavailable indicates the generation service could not be
	// reached or returned a server-side failure.
	ErrBackendUnavailable = errors.New("generation backend unavailable")

	// ErrRateLimited indicates the service rejected the call with 429.
	ErrRateLimited = errors.New("rate limited")
)

// SpecRequest starts or continues the spec conversation.
type SpecRequest struct {
	// Prompt is the user's latest turn.
	Prompt string `json:"prompt"`
	// History carries prior turns so the service sees the whole
	// conversation. The current prompt is not included.
	History []artifact.Turn `json:"conversation_history,omitempty"`
	// Spec is the current spec document when refining, empty on the first
	// turn.
	Spec string `json:"spec,omitempty"`
}

// UIRequest is the single-shot phase-two payload.
type UIRequest struct {
	Spec  string `json:"spec"`
	Title string `json:"title"`
}

// UIResponse is the synthesized tool: an ordered component tree plus the
// initial data bag.
type UIResponse struct {
	Components []artifact.Component `json:"components"`
	Data       artifact.DataBag     `json:"data"`
}

// SpecStreamResult owns an open stream. Close always, even on error paths;
// it releases the HTTP response body and ends the stream's span.
type SpecStreamResult struct {
	Decoder *stream.Decoder

	body io.Closer
	span trace.Span
}

// Close releases the underlying connection. Results built without a body
// (decoder over an in-memory reader) close to nil.
func (r *SpecStreamResult) Close() error {
	if r.span != nil {
		r.span.End()
		r.span = nil
	}
	if r.body == nil {
		return nil
	}
	return r.body.Close()
}

// Client talks to the generation service.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     log.Logger
}

// Options configures a Client.
type Options struct {
	// Timeout bounds GenerateUI. Zero means 60s; streams are exempt and
	// governed purely by the caller's context.
	Timeout time.Duration
	// Limiter shapes outbound calls; nil means no client-side limiting.
	Limiter *rate.Limiter
	// HTTPClient overrides the transport; used by tests.
	HTTPClient *http.Client
	Logger     log.Logger
}

// New returns a generation client.
func New(baseURL, token string, opts Options) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("backend base URL is required")
	}
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.NewNop()
	}
	return &Client{
		baseURL:    baseURL,
		token:      token,
		httpClient: httpClient,
		limiter:    opts.Limiter,
		logger:     logger,
	}, nil
}

// SpecStream opens the conversation stream. The returned result must be
// closed by the caller once the decoder is drained or abandoned; the span
// opened here stays live until then, covering the whole generation.
func (c *Client) SpecStream(ctx context.Context, req SpecRequest) (_ *SpecStreamResult, err error) {
	ctx, span := observability.Tracer().Start(ctx, "backend.spec_stream",
		trace.WithAttributes(
			attribute.Int("prompt_length", len(req.Prompt)),
			attribute.Int("history_turns", len(req.History)),
		))
	defer func() {
		if err != nil {
			endSpan(span, err)
		}
	}()

	if err = c.wait(ctx); err != nil {
		return nil, err
	}

	httpReq, err := c.newRequest(ctx, http.MethodPost, "/api/generate", req)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Accept", "text/event-stream")

	// Streams bypass the client timeout; http.Client.Timeout would kill
	// long generations mid-flight.
	streamClient := &http.Client{Transport: c.httpClient.Transport}
	resp, err := streamClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, c.statusError(resp)
	}

	c.logger.Debug("spec stream opened", "prompt_len", len(req.Prompt))
	return &SpecStreamResult{
		Decoder: stream.NewDecoder(resp.Body),
		body:    resp.Body,
		span:    span,
	}, nil
}

// GenerateUI synthesizes the component tree for a finished spec.
func (c *Client) GenerateUI(ctx context.Context, req UIRequest) (_ *UIResponse, err error) {
	ctx, span := observability.Tracer().Start(ctx, "backend.generate_ui",
		trace.WithAttributes(attribute.Int("spec_length", len(req.Spec))))
	defer func() { endSpan(span, err) }()

	if err = c.wait(ctx); err != nil {
		return nil, err
	}
	if req.Spec == "" {
		return nil, errors.New("spec is required")
	}

	httpReq, err := c.newRequest(ctx, http.MethodPost, "/api/generate-ui", req)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.statusError(resp)
	}

	var out UIResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode ui response: %w", err)
	}
	if err := artifact.ValidateComponents(out.Components); err != nil {
		return nil, fmt.Errorf("backend returned invalid components: %w", err)
	}
	span.SetAttributes(attribute.Int("component_count", len(out.Components)))
	c.logger.Debug("ui generated", "components", len(out.Components))
	return &out, nil
}

func (c *Client) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

func (c *Client) statusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", ErrRateLimited, body)
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: status %d: %s", ErrBackendUnavailable, resp.StatusCode, body)
	default:
		return fmt.Errorf("backend returned status %d: %s", resp.StatusCode, body)
	}
}
