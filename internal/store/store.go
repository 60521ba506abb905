// Package store is the HTTP client for the artifact persistence service.
//
// Every operation is scoped by the owning user id; the service enforces the
// same scoping, so a foreign artifact id behaves exactly like a missing one.
// The client maps wire failures onto the shared sentinel errors
// (artifact.ErrNotFound, ErrUnauthorized) so callers branch with errors.Is
// instead of inspecting status codes.
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/maquette-dev/maquette/internal/artifact"
	"github.com/maquette-dev/maquette/internal/log"
	"github.com/maquette-dev/maquette/internal/observability"
)

var (
	// ErrUnauthorized indicates the API token was rejected.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrConflict indicates the service rejected the write, typically a
	// stale update against a newer revision.
	ErrConflict = errors.New("conflict")
)

// StatusError carries an unexpected HTTP status with the service's body.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("store returned status %d: %s", e.Code, e.Body)
}

// UpdateRequest is a partial artifact update. Nil fields are left
// untouched by the service.
type UpdateRequest struct {
	Title               *string           `json:"title,omitempty"`
	Description         *string           `json:"description,omitempty"`
	Spec                *string           `json:"spec,omitempty"`
	Phase               *artifact.Phase   `json:"phase,omitempty"`
	Content             *artifact.Content `json:"content,omitempty"`
	ConversationHistory []artifact.Turn   `json:"conversation_history,omitempty"`
	Status              *artifact.Status  `json:"status,omitempty"`
}

// Client talks to the persistence service.
type Client struct {
	baseURL    string
	token      string
	userID     string
	httpClient *http.Client
	logger     log.Logger
}

// Options configures a Client.
type Options struct {
	// Timeout bounds every call. Zero means 30s.
	Timeout time.Duration
	// HTTPClient overrides the transport; used by tests.
	HTTPClient *http.Client
	Logger     log.Logger
}

// New returns a client bound to one user's artifacts.
func New(baseURL, token, userID string, opts Options) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("store base URL is required")
	}
	if userID == "" {
		return nil, errors.New("user id is required")
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout == 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.NewNop()
	}
	return &Client{
		baseURL:    baseURL,
		token:      token,
		userID:     userID,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// List returns the user's artifacts, excluding deleted ones. The service
// orders them most recently updated first.
func (c *Client) List(ctx context.Context) ([]artifact.Artifact, error) {
	var out []artifact.Artifact
	if err := c.do(ctx, "store.list_artifacts", http.MethodGet, c.collectionURL(), nil, &out); err != nil {
		return nil, fmt.Errorf("list artifacts: %w", err)
	}
	return out, nil
}

// Get returns one artifact by id.
func (c *Client) Get(ctx context.Context, id string) (*artifact.Artifact, error) {
	var out artifact.Artifact
	if err := c.do(ctx, "store.get_artifact", http.MethodGet, c.itemURL(id), nil, &out); err != nil {
		return nil, fmt.Errorf("get artifact %s: %w", id, err)
	}
	return &out, nil
}

// Create persists a new artifact and returns the stored form, with the
// service-assigned id and timestamps.
func (c *Client) Create(ctx context.Context, a *artifact.Artifact) (*artifact.Artifact, error) {
	body := a.Clone()
	body.UserID = c.userID

	var out artifact.Artifact
	if err := c.do(ctx, "store.create_artifact", http.MethodPost, c.collectionURL(), body, &out); err != nil {
		return nil, fmt.Errorf("create artifact: %w", err)
	}
	c.logger.Debug("artifact created", "artifact_id", out.ID)
	return &out, nil
}

// Update applies a partial update and returns the stored form.
func (c *Client) Update(ctx context.Context, id string, req UpdateRequest) (*artifact.Artifact, error) {
	var out artifact.Artifact
	if err := c.do(ctx, "store.update_artifact", http.MethodPatch, c.itemURL(id), req, &out); err != nil {
		return nil, fmt.Errorf("update artifact %s: %w", id, err)
	}
	c.logger.Debug("artifact updated", "artifact_id", id)
	return &out, nil
}

// SetStatus is an Update that only moves the lifecycle status. Used by the
// publish, archive and delete commands.
func (c *Client) SetStatus(ctx context.Context, id string, s artifact.Status) (*artifact.Artifact, error) {
	if !artifact.ValidStatus(s) {
		return nil, fmt.Errorf("invalid status %q", s)
	}
	return c.Update(ctx, id, UpdateRequest{Status: &s})
}

// Delete soft-deletes an artifact. The record survives server-side with
// status deleted; it simply stops appearing in List.
func (c *Client) Delete(ctx context.Context, id string) error {
	if err := c.do(ctx, "store.delete_artifact", http.MethodDelete, c.itemURL(id), nil, nil); err != nil {
		return fmt.Errorf("delete artifact %s: %w", id, err)
	}
	c.logger.Debug("artifact deleted", "artifact_id", id)
	return nil
}

func (c *Client) collectionURL() string {
	return c.baseURL + "/api/artifacts?user_id=" + url.QueryEscape(c.userID)
}

func (c *Client) itemURL(id string) string {
	return c.baseURL + "/api/artifacts/" + url.PathEscape(id) + "?user_id=" + url.QueryEscape(c.userID)
}

// do issues one request under a span named op and maps the response onto
// the sentinel errors.
func (c *Client) do(ctx context.Context, op, method, rawURL string, body, result any) (err error) {
	ctx, span := observability.Tracer().Start(ctx, op,
		trace.WithAttributes(attribute.String("http.method", method)))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
	case resp.StatusCode == http.StatusNotFound:
		return artifact.ErrNotFound
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return ErrUnauthorized
	case resp.StatusCode == http.StatusConflict:
		return ErrConflict
	default:
		return &StatusError{Code: resp.StatusCode, Body: string(respBody)}
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return nil
}
