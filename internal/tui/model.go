// Package tui is the Bubble Tea terminal interface for Maquette.
//
// The model is a thin shell around conversation.Builder: every stream
// event and every completion message is forwarded to the builder, which
// owns the artifact state machine. The TUI renders what the builder
// says and schedules the side effects it requests (auto-save, UI
// generation) as commands, so the Update loop itself never blocks.
package tui

import (
	"context"
	"errors"
	"strings"
	"time"

	"charm.land/bubbles/v2/help"
	"charm.land/bubbles/v2/spinner"
	"charm.land/bubbles/v2/textarea"
	"charm.land/bubbles/v2/viewport"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/maquette-dev/maquette/internal/artifact"
	"github.com/maquette-dev/maquette/internal/backend"
	"github.com/maquette-dev/maquette/internal/conversation"
	"github.com/maquette-dev/maquette/internal/events"
	"github.com/maquette-dev/maquette/internal/log"
	"github.com/maquette-dev/maquette/internal/render"
	"github.com/maquette-dev/maquette/internal/store"
)

// State is the interaction mode of the shell. The builder carries the
// artifact's own request state; this tracks what the keyboard drives.
type State int

const (
	StateInput        State = iota // Awaiting a prompt
	StateStreaming                 // Spec stream open
	StateGeneratingUI              // Build-from-spec call in flight
	StateForm                      // Filling an input form field by field
)

// Memory bounds to prevent unbounded growth.
const (
	maxHistory = 100 // Maximum prompt history entries
	maxNotices = 20  // Maximum transient system notices kept
)

// streamTimeout bounds a single spec stream end to end.
const streamTimeout = 5 * time.Minute

// Layout constants for viewport height calculation.
const (
	separatorLines = 2
	helpLines      = 1
	promptLines    = 1
	minViewport    = 3
)

// Generator is the slice of the generation client the shell drives.
// *backend.Client satisfies it.
type Generator interface {
	SpecStream(ctx context.Context, req backend.SpecRequest) (*backend.SpecStreamResult, error)
	GenerateUI(ctx context.Context, req backend.UIRequest) (*backend.UIResponse, error)
}

// Store is the slice of the persistence client the shell drives.
// *store.Client satisfies it.
type Store interface {
	List(ctx context.Context) ([]artifact.Artifact, error)
	Get(ctx context.Context, id string) (*artifact.Artifact, error)
	Create(ctx context.Context, a *artifact.Artifact) (*artifact.Artifact, error)
	Update(ctx context.Context, id string, req store.UpdateRequest) (*artifact.Artifact, error)
}

// Deps wires the shell's collaborators.
type Deps struct {
	Backend Generator
	Store   Store
	// Hub receives change notifications; nil disables them.
	Hub    *events.Hub
	Logger log.Logger
	// Artifact resumes an existing tool; nil starts a fresh one.
	Artifact *artifact.Artifact
	// AutoSaveDebounce is the minimum interval between spec auto-saves.
	// Zero saves on every trigger.
	AutoSaveDebounce time.Duration
}

// Model is the Bubble Tea model for the Maquette shell.
type Model struct {
	// Input (textarea for multi-line support, Shift+Enter for newline)
	input      textarea.Model
	history    []string
	historyIdx int

	state     State
	lastCtrlC time.Time

	// Transient system notices (errors, confirmations) shown under the
	// conversation. Builder history stays the durable record.
	notices []string

	spinner  spinner.Model
	viewport viewport.Model
	viewBuf  strings.Builder

	help help.Model
	keys keyMap

	// Stream management. Channel closure signals goroutine completion;
	// Bubble Tea's event loop provides the synchronization.
	streamCancel  context.CancelFunc
	streamEventCh <-chan streamEvent

	// Domain state
	builder  *conversation.Builder
	saver    *conversation.AutoSaver
	renderer *render.Renderer
	form     *formSession

	// Dependencies
	backend   Generator
	store     Store
	logger    log.Logger
	ctx       context.Context
	ctxCancel context.CancelFunc

	width  int
	height int

	styles   Styles
	markdown *specRenderer
}

// addNotice appends a transient notice and enforces maxNotices.
func (m *Model) addNotice(text string) {
	m.notices = append(m.notices, text)
	if len(m.notices) > maxNotices {
		m.notices = m.notices[len(m.notices)-maxNotices:]
	}
}

// Artifact exposes the working copy, mainly for tests.
func (m *Model) Artifact() *artifact.Artifact { return m.builder.Artifact() }

// New creates a Model.
//
// ctx MUST be the same context passed to tea.WithContext() so that
// quitting the program cancels in-flight streams.
func New(ctx context.Context, deps Deps) (*Model, error) {
	if ctx == nil {
		return nil, errors.New("tui.New: ctx is required")
	}
	if deps.Backend == nil {
		return nil, errors.New("tui.New: backend client is required")
	}
	if deps.Store == nil {
		return nil, errors.New("tui.New: store client is required")
	}

	logger := deps.Logger
	if logger == nil {
		logger = log.NewNop()
	}

	art := deps.Artifact
	if art == nil {
		art = &artifact.Artifact{}
	}

	ctx, cancel := context.WithCancel(ctx)

	ta := textarea.New()
	ta.Placeholder = "Describe the tool you want..."
	ta.SetHeight(1)
	ta.SetWidth(120)
	ta.MaxWidth = 0
	ta.ShowLineNumbers = false

	cleanStyle := textarea.StyleState{
		Base:        lipgloss.NewStyle(),
		Text:        lipgloss.NewStyle(),
		Placeholder: lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
		Prompt:      lipgloss.NewStyle(),
	}
	ta.SetStyles(textarea.Styles{Focused: cleanStyle, Blurred: cleanStyle})
	ta.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	// Built-in viewport key handling is disabled; keys are routed
	// explicitly in handleKey to avoid conflicts with the textarea.
	vp := viewport.New(viewport.WithWidth(80), viewport.WithHeight(20))
	vp.MouseWheelEnabled = true
	vp.SoftWrap = true
	vp.KeyMap = viewport.KeyMap{}

	saver := conversation.NewAutoSaver(deps.Store, deps.Hub, logger)
	saver.SetDebounce(deps.AutoSaveDebounce)

	return &Model{
		builder:   conversation.NewBuilder(art),
		saver:     saver,
		renderer:  render.New(deps.Store, deps.Hub, logger),
		backend:   deps.Backend,
		store:     deps.Store,
		logger:    logger,
		ctx:       ctx,
		ctxCancel: cancel,
		input:     ta,
		spinner:   sp,
		viewport:  vp,
		help:      help.New(),
		keys:      newKeyMap(),
		styles:    DefaultStyles(),
		history:   make([]string, 0, maxHistory),
		markdown:  newSpecRenderer(80),
		width:     80,
	}, nil
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(
		textarea.Blink,
		m.spinner.Tick,
		m.input.Focus(),
	)
}
