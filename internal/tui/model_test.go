package tui

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	tea "charm.land/bubbletea/v2"
	"go.uber.org/goleak"

	"github.com/maquette-dev/maquette/internal/artifact"
	"github.com/maquette-dev/maquette/internal/backend"
	"github.com/maquette-dev/maquette/internal/store"
	"github.com/maquette-dev/maquette/internal/stream"
)

// goleakOptions filters persistent goroutines that outlive any test:
// HTTP connection pool readers mainly.
func goleakOptions() []goleak.Option {
	return []goleak.Option{
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
	}
}

// fakeGenerator scripts the generation backend.
type fakeGenerator struct {
	frames []stream.Event
	uiRes  *backend.UIResponse
	uiErr  error
}

func (g *fakeGenerator) SpecStream(_ context.Context, _ backend.SpecRequest) (*backend.SpecStreamResult, error) {
	var buf bytes.Buffer
	for _, e := range g.frames {
		frame, err := stream.Marshal(e)
		if err != nil {
			return nil, err
		}
		buf.Write(frame)
	}
	return &backend.SpecStreamResult{Decoder: stream.NewDecoder(&buf)}, nil
}

func (g *fakeGenerator) GenerateUI(_ context.Context, _ backend.UIRequest) (*backend.UIResponse, error) {
	return g.uiRes, g.uiErr
}

// fakeStore is an in-memory Store.
type fakeStore struct {
	mu        sync.Mutex
	artifacts map[string]*artifact.Artifact
	nextID    int
	creates   int
	updates   int
}

func newFakeStore() *fakeStore {
	return &fakeStore{artifacts: map[string]*artifact.Artifact{}}
}

func (s *fakeStore) List(context.Context) ([]artifact.Artifact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]artifact.Artifact, 0, len(s.artifacts))
	for _, a := range s.artifacts {
		out = append(out, *a)
	}
	return out, nil
}

func (s *fakeStore) Get(_ context.Context, id string) (*artifact.Artifact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.artifacts[id]
	if !ok {
		return nil, artifact.ErrNotFound
	}
	return a.Clone(), nil
}

func (s *fakeStore) Create(_ context.Context, a *artifact.Artifact) (*artifact.Artifact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creates++
	s.nextID++
	cp := a.Clone()
	cp.ID = fmt.Sprintf("art-%d", s.nextID)
	cp.CreatedAt = time.Now().UTC()
	cp.UpdatedAt = cp.CreatedAt
	s.artifacts[cp.ID] = cp
	return cp.Clone(), nil
}

func (s *fakeStore) Update(_ context.Context, id string, req store.UpdateRequest) (*artifact.Artifact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates++
	a, ok := s.artifacts[id]
	if !ok {
		return nil, artifact.ErrNotFound
	}
	if req.Title != nil {
		a.Title = *req.Title
	}
	if req.Description != nil {
		a.Description = *req.Description
	}
	if req.Spec != nil {
		a.Spec = *req.Spec
	}
	if req.Phase != nil {
		a.Phase = *req.Phase
	}
	if req.Content != nil {
		a.Content = *req.Content
	}
	if req.ConversationHistory != nil {
		a.History = req.ConversationHistory
	}
	a.UpdatedAt = time.Now().UTC()
	return a.Clone(), nil
}

func specScript() []stream.Event {
	specEvent, err := stream.SpecEvent(artifact.ProductSpec{
		Title:       "MRR Tracker",
		Description: "Track monthly recurring revenue",
		Spec:        "# MRR Tracker\n\nTrack revenue toward 100k.",
	})
	if err != nil {
		panic(err)
	}
	return []stream.Event{
		stream.TextEvent(stream.EventThinking, "Reading your request..."),
		stream.TextEvent(stream.EventBuilding, "Drafting the product spec..."),
		specEvent,
		stream.TextEvent(stream.EventMessage, "Here is your spec."),
		stream.TextEvent(stream.EventDone, ""),
	}
}

func newTestModel(t *testing.T, gen *fakeGenerator, st *fakeStore) *Model {
	t.Helper()
	if gen == nil {
		gen = &fakeGenerator{frames: specScript()}
	}
	if st == nil {
		st = newFakeStore()
	}
	m, err := New(t.Context(), Deps{Backend: gen, Store: st})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return m
}

func TestNew_RequiresDeps(t *testing.T) {
	if _, err := New(t.Context(), Deps{Store: newFakeStore()}); err == nil {
		t.Error("expected error for nil backend")
	}
	if _, err := New(t.Context(), Deps{Backend: &fakeGenerator{}}); err == nil {
		t.Error("expected error for nil store")
	}
	//lint:ignore SA1012 intentionally testing nil context handling
	if _, err := New(nil, Deps{Backend: &fakeGenerator{}, Store: newFakeStore()}); err == nil { //nolint:staticcheck
		t.Error("expected error for nil context")
	}
}

func TestModel_Init(t *testing.T) {
	defer goleak.VerifyNone(t, goleakOptions()...)

	m := newTestModel(t, nil, nil)
	if m.Init() == nil {
		t.Error("Init should return a command (blink + spinner tick)")
	}
}

// drainStream runs the Update loop against a live stream until the
// shell returns to input mode, executing every scheduled command.
func drainStream(t *testing.T, m *Model, first tea.Cmd) {
	t.Helper()

	pending := []tea.Cmd{first}
	for steps := 0; len(pending) > 0; steps++ {
		if steps > 200 {
			t.Fatal("stream did not settle")
		}
		cmd := pending[0]
		pending = pending[1:]
		if cmd == nil {
			continue
		}

		msg := cmd()
		if msg == nil {
			continue
		}
		if batch, ok := msg.(tea.BatchMsg); ok {
			pending = append(pending, batch...)
			continue
		}

		// Spinner ticks and cursor blinks reschedule themselves forever;
		// only the domain messages drive the state under test.
		switch msg.(type) {
		case streamStartedMsg, streamFrameMsg, streamClosedMsg, streamFailedMsg,
			uiResultMsg, saveDoneMsg, formResultMsg, artifactsLoadedMsg, artifactOpenedMsg:
		default:
			continue
		}

		_, next := m.Update(msg)
		if next != nil {
			pending = append(pending, next)
		}
	}
}

func TestModel_StreamLifecycle(t *testing.T) {
	defer goleak.VerifyNone(t, goleakOptions()...)

	st := newFakeStore()
	m := newTestModel(t, &fakeGenerator{frames: specScript()}, st)

	req, err := m.builder.SubmitTurn("Track MRR to 100k")
	if err != nil {
		t.Fatalf("SubmitTurn: %v", err)
	}
	m.state = StateStreaming

	drainStream(t, m, m.startStream(req))

	if m.state != StateInput {
		t.Errorf("state = %v, want StateInput", m.state)
	}

	a := m.Artifact()
	if a.Title != "MRR Tracker" {
		t.Errorf("title = %q", a.Title)
	}
	if a.Spec == "" {
		t.Error("spec should be applied")
	}
	if a.ID == "" {
		t.Error("auto-save should have assigned an id")
	}
	if st.creates != 1 {
		t.Errorf("creates = %d, want 1", st.creates)
	}

	last := a.History[len(a.History)-1]
	if last.Role != artifact.RoleAssistant || last.Content != "Here is your spec." {
		t.Errorf("final turn = %+v", last)
	}
}

func TestModel_StreamError_ProducesFailureTurn(t *testing.T) {
	defer goleak.VerifyNone(t, goleakOptions()...)

	frames := []stream.Event{
		stream.TextEvent(stream.EventThinking, "Reading..."),
		stream.TextEvent(stream.EventError, "model overloaded"),
	}
	m := newTestModel(t, &fakeGenerator{frames: frames}, nil)

	req, err := m.builder.SubmitTurn("Track MRR")
	if err != nil {
		t.Fatalf("SubmitTurn: %v", err)
	}
	m.state = StateStreaming

	drainStream(t, m, m.startStream(req))

	if m.state != StateInput {
		t.Errorf("state = %v, want StateInput", m.state)
	}
	a := m.Artifact()
	if a.Spec != "" {
		t.Error("no spec should be applied on error")
	}
	last := a.History[len(a.History)-1]
	if last.Role != artifact.RoleAssistant || !strings.Contains(last.Content, "went wrong") {
		t.Errorf("expected generic failure turn, got %+v", last)
	}
}

func TestModel_BuildFromSpec(t *testing.T) {
	defer goleak.VerifyNone(t, goleakOptions()...)

	metric, err := artifact.NewComponent("headline", artifact.TypeMetricCard, artifact.MetricCardConfig{Title: "MRR"})
	if err != nil {
		t.Fatalf("NewComponent: %v", err)
	}
	gen := &fakeGenerator{
		frames: specScript(),
		uiRes: &backend.UIResponse{
			Components: []artifact.Component{metric},
			Data:       artifact.DataBag{},
		},
	}
	st := newFakeStore()
	m := newTestModel(t, gen, st)

	// Seed a saved spec-phase artifact.
	stored, err := st.Create(t.Context(), &artifact.Artifact{
		Title: "MRR Tracker",
		Spec:  "# MRR Tracker",
		Phase: artifact.PhaseSpec,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	*m.Artifact() = *stored

	model, cmd := m.beginBuild()
	m = model.(*Model)
	if m.state != StateGeneratingUI {
		t.Fatalf("state = %v, want StateGeneratingUI", m.state)
	}
	drainStream(t, m, cmd)

	if m.state != StateInput {
		t.Errorf("state = %v, want StateInput", m.state)
	}
	a := m.Artifact()
	if a.Phase != artifact.PhaseUI {
		t.Errorf("phase = %v, want ui", a.Phase)
	}
	if len(a.Content.Components) != 1 {
		t.Errorf("components = %d, want 1", len(a.Content.Components))
	}
	if got := st.artifacts[a.ID].Phase; got != artifact.PhaseUI {
		t.Errorf("stored phase = %v, want ui", got)
	}
}

func TestModel_BuildFailureLeavesSpecPhase(t *testing.T) {
	defer goleak.VerifyNone(t, goleakOptions()...)

	gen := &fakeGenerator{uiErr: backend.ErrBackendUnavailable}
	m := newTestModel(t, gen, nil)
	m.Artifact().Spec = "# Spec"

	model, cmd := m.beginBuild()
	m = model.(*Model)
	drainStream(t, m, cmd)

	a := m.Artifact()
	if a.EffectivePhase() != artifact.PhaseSpec {
		t.Errorf("phase = %v, want spec", a.EffectivePhase())
	}
	if len(a.Content.Components) != 0 {
		t.Error("content must be untouched on failure")
	}
	if m.state != StateInput {
		t.Errorf("state = %v, want StateInput", m.state)
	}
}

func TestModel_BuildWithoutSpec(t *testing.T) {
	defer goleak.VerifyNone(t, goleakOptions()...)

	m := newTestModel(t, nil, nil)

	model, _ := m.beginBuild()
	m = model.(*Model)
	if m.state != StateInput {
		t.Errorf("state = %v, want StateInput", m.state)
	}
	if len(m.notices) == 0 {
		t.Error("expected a notice explaining there is no spec")
	}
}

func TestModel_HandleSlashCommands(t *testing.T) {
	defer goleak.VerifyNone(t, goleakOptions()...)

	tests := []struct {
		name        string
		cmd         string
		wantExit    bool
		wantNotices int
	}{
		{"help", "/help", false, 1},
		{"clear", "/clear", false, 0},
		{"exit", "/exit", true, 0},
		{"quit", "/quit", true, 0},
		{"unknown", "/unknown", false, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newTestModel(t, nil, nil)
			m.addNotice("earlier")

			model, cmd := m.handleSlashCommand(tt.cmd)
			result := model.(*Model)

			if tt.wantExit {
				if cmd == nil {
					t.Error("expected quit command")
				}
				return
			}
			if tt.cmd == "/clear" {
				if len(result.notices) != 0 {
					t.Error("/clear should clear notices")
				}
				return
			}
			if len(result.notices) != 1+tt.wantNotices {
				t.Errorf("notices = %d, want %d", len(result.notices), 1+tt.wantNotices)
			}
		})
	}
}

func TestModel_HistoryNavigation(t *testing.T) {
	defer goleak.VerifyNone(t, goleakOptions()...)

	m := newTestModel(t, nil, nil)
	m.history = []string{"first", "second", "third"}
	m.historyIdx = 3

	tests := []struct {
		delta    int
		expected string
	}{
		{-1, "third"},
		{-1, "second"},
		{-1, "first"},
		{-1, "first"},
		{1, "second"},
		{1, "third"},
		{1, ""},
		{1, ""},
	}

	for i, tt := range tests {
		model, _ := m.navigateHistory(tt.delta)
		m = model.(*Model)
		if m.input.Value() != tt.expected {
			t.Errorf("step %d: got %q, want %q", i, m.input.Value(), tt.expected)
		}
	}
}

func TestModel_CtrlC(t *testing.T) {
	defer goleak.VerifyNone(t, goleakOptions()...)

	t.Run("clears input", func(t *testing.T) {
		m := newTestModel(t, nil, nil)
		m.input.SetValue("some input")

		model, _ := m.handleCtrlC()
		if model.(*Model).input.Value() != "" {
			t.Error("first Ctrl+C should clear input")
		}
	})

	t.Run("double quits", func(t *testing.T) {
		m := newTestModel(t, nil, nil)
		m.lastCtrlC = time.Now()

		if _, cmd := m.handleCtrlC(); cmd == nil {
			t.Error("double Ctrl+C should return quit command")
		}
	})

	t.Run("cancels stream", func(t *testing.T) {
		m := newTestModel(t, nil, nil)
		if _, err := m.builder.SubmitTurn("hello"); err != nil {
			t.Fatalf("SubmitTurn: %v", err)
		}
		m.state = StateStreaming
		canceled := false
		m.streamCancel = func() { canceled = true }

		model, _ := m.handleCtrlC()
		m = model.(*Model)

		if !canceled {
			t.Error("Ctrl+C during streaming should cancel")
		}
		if m.state != StateInput {
			t.Error("should return to StateInput")
		}
		if m.builder.Busy() {
			t.Error("builder should be idle after cancel")
		}
	})
}

func TestModel_Update_KeyPress(t *testing.T) {
	defer goleak.VerifyNone(t, goleakOptions()...)

	m := newTestModel(t, nil, nil)
	m.input.SetValue("test")

	key := tea.Key{Code: 'c', Mod: tea.ModCtrl}
	model, _ := m.Update(tea.KeyPressMsg(key))

	if model.(*Model).input.Value() != "" {
		t.Error("Ctrl+C should clear input")
	}
}

func TestListenForStream(t *testing.T) {
	defer goleak.VerifyNone(t, goleakOptions()...)

	t.Run("frame", func(t *testing.T) {
		ch := make(chan streamEvent, 1)
		ch <- streamEvent{event: stream.TextEvent(stream.EventThinking, "hi")}

		msg := listenForStream(ch)()
		frame, ok := msg.(streamFrameMsg)
		if !ok {
			t.Fatalf("expected streamFrameMsg, got %T", msg)
		}
		if frame.event.Type != stream.EventThinking {
			t.Errorf("type = %v", frame.event.Type)
		}
	})

	t.Run("error", func(t *testing.T) {
		ch := make(chan streamEvent, 1)
		ch <- streamEvent{err: context.Canceled}

		if _, ok := listenForStream(ch)().(streamFailedMsg); !ok {
			t.Error("expected streamFailedMsg")
		}
	})

	t.Run("closed", func(t *testing.T) {
		ch := make(chan streamEvent)
		close(ch)

		if _, ok := listenForStream(ch)().(streamClosedMsg); !ok {
			t.Error("expected streamClosedMsg")
		}
	})

	t.Run("nil channel", func(t *testing.T) {
		if msg := listenForStream(nil)(); msg != nil {
			t.Errorf("expected nil, got %T", msg)
		}
	})
}

func TestModel_StreamClosedMidway_Fails(t *testing.T) {
	defer goleak.VerifyNone(t, goleakOptions()...)

	m := newTestModel(t, nil, nil)
	if _, err := m.builder.SubmitTurn("hello"); err != nil {
		t.Fatalf("SubmitTurn: %v", err)
	}
	m.state = StateStreaming

	model, _ := m.Update(streamClosedMsg{})
	m = model.(*Model)

	if m.state != StateInput {
		t.Errorf("state = %v, want StateInput", m.state)
	}
	a := m.Artifact()
	last := a.History[len(a.History)-1]
	if last.Role != artifact.RoleAssistant {
		t.Errorf("expected failure turn, got %+v", last)
	}
}

func TestModel_AddNotice_Bounds(t *testing.T) {
	defer goleak.VerifyNone(t, goleakOptions()...)

	m := newTestModel(t, nil, nil)
	for range maxNotices + 10 {
		m.addNotice("n")
	}
	if len(m.notices) != maxNotices {
		t.Errorf("notices = %d, want %d", len(m.notices), maxNotices)
	}
}

func TestModel_OpenArtifact(t *testing.T) {
	defer goleak.VerifyNone(t, goleakOptions()...)

	st := newFakeStore()
	stored, err := st.Create(t.Context(), &artifact.Artifact{Title: "Saved Tool", Spec: "# Spec"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	m := newTestModel(t, nil, st)
	model, _ := m.Update(artifactOpenedMsg{art: stored})
	m = model.(*Model)

	if m.Artifact().Title != "Saved Tool" {
		t.Errorf("title = %q", m.Artifact().Title)
	}

	model, _ = m.Update(artifactOpenedMsg{err: artifact.ErrNotFound})
	m = model.(*Model)
	if m.Artifact().Title != "Saved Tool" {
		t.Error("failed open must not replace the working copy")
	}
}

func TestInputDisabledWhileStreaming(t *testing.T) {
	defer goleak.VerifyNone(t, goleakOptions()...)

	m := newTestModel(t, nil, nil)
	m.input.Focus()
	key := tea.KeyPressMsg(tea.Key{Code: 'x', Text: "x"})

	m.state = StateStreaming
	model, _ := m.Update(key)
	m = model.(*Model)
	if got := m.input.Value(); got != "" {
		t.Errorf("input accepted %q while streaming", got)
	}

	m.state = StateGeneratingUI
	model, _ = m.Update(key)
	m = model.(*Model)
	if got := m.input.Value(); got != "" {
		t.Errorf("input accepted %q while generating", got)
	}

	m.state = StateInput
	model, _ = m.Update(key)
	m = model.(*Model)
	if got := m.input.Value(); got != "x" {
		t.Errorf("input = %q after typing in input state, want %q", got, "x")
	}
}
