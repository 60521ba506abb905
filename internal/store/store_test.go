package store_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/maquette-dev/maquette/internal/artifact"
	"github.com/maquette-dev/maquette/internal/store"
)

func newClient(t *testing.T, handler http.Handler) *store.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := store.New(srv.URL, "test-token", "user-1", store.Options{
		HTTPClient: srv.Client(),
	})
	require.NoError(t, err)
	return c
}

func TestNew_Validation(t *testing.T) {
	t.Parallel()

	_, err := store.New("", "tok", "user-1", store.Options{})
	assert.Error(t, err)

	_, err = store.New("http://localhost", "tok", "", store.Options{})
	assert.Error(t, err)
}

func TestList_ScopesByUser(t *testing.T) {
	t.Parallel()

	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/artifacts", r.URL.Path)
		assert.Equal(t, "user-1", r.URL.Query().Get("user_id"))
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))

		json.NewEncoder(w).Encode([]artifact.Artifact{
			{ID: "art-1", Title: "MRR Tracker"},
			{ID: "art-2", Title: "Habit Log"},
		})
	}))

	got, err := c.List(t.Context())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "MRR Tracker", got[0].Title)
}

func TestGet_NotFound(t *testing.T) {
	t.Parallel()

	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no such artifact", http.StatusNotFound)
	}))

	_, err := c.Get(t.Context(), "art-missing")
	assert.ErrorIs(t, err, artifact.ErrNotFound)
}

func TestCreate_StampsUserID(t *testing.T) {
	t.Parallel()

	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)

		var body artifact.Artifact
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "user-1", body.UserID)

		body.ID = "art-new"
		json.NewEncoder(w).Encode(body)
	}))

	created, err := c.Create(t.Context(), &artifact.Artifact{Title: "MRR Tracker", Prompt: "track my mrr"})
	require.NoError(t, err)
	assert.Equal(t, "art-new", created.ID)
	assert.Equal(t, "user-1", created.UserID)
}

func TestUpdate_PartialBody(t *testing.T) {
	t.Parallel()

	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "/api/artifacts/art-1", r.URL.Path)

		var raw map[string]json.RawMessage
		require.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
		assert.Contains(t, raw, "spec")
		assert.NotContains(t, raw, "title", "nil fields must not be serialized")

		json.NewEncoder(w).Encode(artifact.Artifact{ID: "art-1", Spec: "# Updated"})
	}))

	spec := "# Updated"
	got, err := c.Update(t.Context(), "art-1", store.UpdateRequest{Spec: &spec})
	require.NoError(t, err)
	assert.Equal(t, "# Updated", got.Spec)
}

func TestSetStatus(t *testing.T) {
	t.Parallel()

	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req store.UpdateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.NotNil(t, req.Status)
		assert.Equal(t, artifact.StatusLive, *req.Status)

		json.NewEncoder(w).Encode(artifact.Artifact{ID: "art-1", Status: artifact.StatusLive})
	}))

	got, err := c.SetStatus(t.Context(), "art-1", artifact.StatusLive)
	require.NoError(t, err)
	assert.Equal(t, artifact.StatusLive, got.Status)

	_, err = c.SetStatus(t.Context(), "art-1", artifact.Status("published"))
	assert.Error(t, err)
}

func TestDelete(t *testing.T) {
	t.Parallel()

	var called bool
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		assert.Equal(t, http.MethodDelete, r.Method)
		w.WriteHeader(http.StatusNoContent)
	}))

	require.NoError(t, c.Delete(t.Context(), "art-1"))
	assert.True(t, called)
}

func TestErrorMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		status int
		check  func(t *testing.T, err error)
	}{
		{
			name:   "unauthorized",
			status: http.StatusUnauthorized,
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, store.ErrUnauthorized)
			},
		},
		{
			name:   "forbidden",
			status: http.StatusForbidden,
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, store.ErrUnauthorized)
			},
		},
		{
			name:   "conflict",
			status: http.StatusConflict,
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, store.ErrConflict)
			},
		},
		{
			name:   "server error",
			status: http.StatusInternalServerError,
			check: func(t *testing.T, err error) {
				var se *store.StatusError
				require.ErrorAs(t, err, &se)
				assert.Equal(t, http.StatusInternalServerError, se.Code)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "boom", tt.status)
			}))

			_, err := c.Get(t.Context(), "art-1")
			tt.check(t, err)
		})
	}
}

func TestCalls_EmitSpans(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec)))
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet && r.URL.Path != "/api/artifacts" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewEncoder(w).Encode([]artifact.Artifact{})
	}))

	_, err := c.List(t.Context())
	require.NoError(t, err)
	_, err = c.Get(t.Context(), "missing")
	require.ErrorIs(t, err, artifact.ErrNotFound)

	var names []string
	var sawError bool
	for _, s := range rec.Ended() {
		names = append(names, s.Name())
		if s.Name() == "store.get_artifact" && s.Status().Code == codes.Error {
			sawError = true
		}
	}
	assert.Contains(t, names, "store.list_artifacts")
	assert.Contains(t, names, "store.get_artifact")
	assert.True(t, sawError, "a failed call must carry error status")
}
