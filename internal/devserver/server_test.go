package devserver_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maquette-dev/maquette/internal/artifact"
	"github.com/maquette-dev/maquette/internal/backend"
	"github.com/maquette-dev/maquette/internal/config"
	"github.com/maquette-dev/maquette/internal/conversation"
	"github.com/maquette-dev/maquette/internal/devserver"
	"github.com/maquette-dev/maquette/internal/render"
	"github.com/maquette-dev/maquette/internal/store"
	"github.com/maquette-dev/maquette/internal/stream"
)

func testServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv, err := devserver.New(config.ServeConfig{
		DBPath:         ":memory:",
		RateLimitRPS:   1000,
		RateLimitBurst: 1000,
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Close() })

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func TestHealth(t *testing.T) {
	t.Parallel()
	ts := testServer(t)

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestGenerate_StreamsScriptedEvents(t *testing.T) {
	t.Parallel()
	ts := testServer(t)

	resp, err := http.Post(ts.URL+"/api/generate", "application/json",
		strings.NewReader(`{"prompt":"Track MRR to 100k"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	var types []stream.EventType
	var spec artifact.ProductSpec
	d := stream.NewDecoder(resp.Body)
	for e, err := range d.All() {
		require.NoError(t, err)
		types = append(types, e.Type)
		if e.Type == stream.EventSpec {
			spec, err = e.Spec()
			require.NoError(t, err)
		}
	}

	assert.Equal(t, []stream.EventType{
		stream.EventThinking, stream.EventBuilding, stream.EventSpec,
		stream.EventMessage, stream.EventDone,
	}, types)
	assert.Equal(t, "Track MRR 100k", spec.Title)
	assert.Contains(t, spec.Spec, "100k")
}

func TestGenerate_RequiresPrompt(t *testing.T) {
	t.Parallel()
	ts := testServer(t)

	resp, err := http.Post(ts.URL+"/api/generate", "application/json", strings.NewReader(`{}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestArtifactCRUD_RequiresUserID(t *testing.T) {
	t.Parallel()
	ts := testServer(t)

	resp, err := http.Get(ts.URL + "/api/artifacts")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

// TestScenario_MRRTracker drives the full pipeline against the dev server
// with the real clients: prompt to spec stream to auto-save to UI build to
// form submission.
func TestScenario_MRRTracker(t *testing.T) {
	t.Parallel()
	ts := testServer(t)

	backendClient, err := backend.New(ts.URL, "", backend.Options{HTTPClient: ts.Client()})
	require.NoError(t, err)
	storeClient, err := store.New(ts.URL, "", "user-1", store.Options{HTTPClient: ts.Client()})
	require.NoError(t, err)

	art := &artifact.Artifact{}
	builder := conversation.NewBuilder(art)
	saver := conversation.NewAutoSaver(storeClient, nil, nil)

	// Phase one: the spec conversation.
	req, err := builder.SubmitTurn("Track MRR to 100k")
	require.NoError(t, err)

	res, err := backendClient.SpecStream(t.Context(), req)
	require.NoError(t, err)
	defer res.Close()

	saves := 0
	for e, err := range res.Decoder.All() {
		require.NoError(t, err)
		eff := builder.Apply(e)
		if eff.SaveSpec {
			stored, err := saver.Save(t.Context(), art.Clone())
			require.NoError(t, err)
			art.ID = stored.ID
			saves++
		}
	}

	assert.Equal(t, 1, saves, "one spec event, one save")
	require.NotEmpty(t, art.ID)
	assert.Equal(t, artifact.PhaseSpec, art.EffectivePhase())
	assert.Equal(t, "Track MRR 100k", art.Title)

	// Phase two: build the UI.
	uiReq, err := builder.BeginGenerateUI()
	require.NoError(t, err)
	uiRes, err := backendClient.GenerateUI(t.Context(), uiReq)
	require.NoError(t, err)
	require.NoError(t, builder.FinishGenerateUI(uiRes, nil))

	assert.Equal(t, artifact.PhaseUI, art.Phase)
	assert.GreaterOrEqual(t, len(art.Content.Components), 3)

	// Persist the promoted artifact.
	_, err = storeClient.Update(t.Context(), art.ID, store.UpdateRequest{
		Phase:   &art.Phase,
		Content: &art.Content,
	})
	require.NoError(t, err)

	// Use the tool: submit an entry and watch the list pick it up.
	renderer := render.New(storeClient, nil, nil)
	require.NoError(t, renderer.SubmitForm(t.Context(), art, "entry_form",
		map[string]any{"name": "ACME Corp", "amount": 4200.0}))

	var list render.ListView
	found := false
	for _, v := range renderer.Render(art) {
		if lv, ok := v.(render.ListView); ok {
			list = lv
			found = true
		}
	}
	require.True(t, found)
	require.Len(t, list.Rows, 1)
	assert.Equal(t, "ACME Corp", list.Rows[0]["name"])

	// The submission round-trips through persistence.
	reloaded, err := storeClient.Get(t.Context(), art.ID)
	require.NoError(t, err)
	rows, ok := reloaded.Content.Data["entries"].([]any)
	require.True(t, ok)
	assert.Len(t, rows, 1)
}

func TestRateLimit(t *testing.T) {
	t.Parallel()

	srv, err := devserver.New(config.ServeConfig{
		DBPath:         ":memory:",
		RateLimitRPS:   1,
		RateLimitBurst: 2,
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Close() })
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	limited := false
	for range 10 {
		resp, err := http.Get(ts.URL + "/api/artifacts?user_id=u")
		require.NoError(t, err)
		resp.Body.Close()
		if resp.StatusCode == http.StatusTooManyRequests {
			limited = true
			break
		}
	}
	assert.True(t, limited, "burst exhausted requests must be rejected")

	// Health is outside the limited stack.
	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
