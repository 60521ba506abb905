package tui

import (
	"errors"
	"strings"
	"time"

	"charm.land/bubbles/v2/key"
	tea "charm.land/bubbletea/v2"

	"github.com/maquette-dev/maquette/internal/artifact"
	"github.com/maquette-dev/maquette/internal/conversation"
)

// Slash command constants.
const (
	cmdHelp      = "/help"
	cmdBuild     = "/build"
	cmdAdd       = "/add"
	cmdArtifacts = "/artifacts"
	cmdOpen      = "/open"
	cmdClear     = "/clear"
	cmdExit      = "/exit"
	cmdQuit      = "/quit"
)

// keyMap holds key bindings for help bar display.
type keyMap struct {
	Submit     key.Binding
	NewLine    key.Binding
	Build      key.Binding
	History    key.Binding
	Cancel     key.Binding
	Quit       key.Binding
	ScrollUp   key.Binding
	ScrollDown key.Binding
	EscCancel  key.Binding
	FormBack   key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		Submit:     key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "send")),
		NewLine:    key.NewBinding(key.WithKeys("shift+enter"), key.WithHelp("s+enter", "newline")),
		Build:      key.NewBinding(key.WithKeys("ctrl+b"), key.WithHelp("ctrl+b", "build tool")),
		History:    key.NewBinding(key.WithKeys("up", "down"), key.WithHelp("↑/↓", "history")),
		Cancel:     key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "cancel")),
		Quit:       key.NewBinding(key.WithKeys("ctrl+d"), key.WithHelp("ctrl+d", "exit")),
		ScrollUp:   key.NewBinding(key.WithKeys("pgup"), key.WithHelp("pgup", "scroll up")),
		ScrollDown: key.NewBinding(key.WithKeys("pgdown"), key.WithHelp("pgdn", "scroll down")),
		EscCancel:  key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel")),
		FormBack:   key.NewBinding(key.WithKeys("shift+tab"), key.WithHelp("s+tab", "prev field")),
	}
}

func (m *Model) handleKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	k := msg.Key()

	if k.Mod&tea.ModCtrl != 0 {
		switch k.Code {
		case 'c':
			return m.handleCtrlC()
		case 'd':
			return m, m.cleanup()
		case 'b':
			if m.state == StateInput {
				return m.beginBuild()
			}
		}
	}

	switch k.Code {
	case tea.KeyEnter:
		// Enter without Shift submits; Shift+Enter passes through to
		// the textarea as a newline.
		if k.Mod&tea.ModShift == 0 {
			switch m.state {
			case StateInput:
				return m.handleSubmit()
			case StateForm:
				return m.handleFormEntry()
			}
		}

	case tea.KeyUp:
		if m.state == StateInput && m.input.Line() == 0 {
			return m.navigateHistory(-1)
		}

	case tea.KeyDown:
		if m.state == StateInput && m.input.Line() == m.input.LineCount()-1 {
			return m.navigateHistory(1)
		}

	case tea.KeyTab:
		// Shift+Tab steps back to the previous form field.
		if m.state == StateForm && k.Mod&tea.ModShift != 0 {
			m.form.back()
			m.input.Reset()
			return m, nil
		}

	case tea.KeyEscape:
		switch m.state {
		case StateStreaming:
			m.cancelStream()
			m.addNotice("(Canceled)")
			m.rebuildViewportContent()
			return m, nil
		case StateForm:
			m.abandonForm()
			return m, nil
		}

	case tea.KeyPgUp:
		m.viewport.PageUp()
		return m, nil

	case tea.KeyPgDown:
		m.viewport.PageDown()
		return m, nil
	}

	// The input control is disabled while a generation request is in
	// flight; keys are dropped, not buffered into the next turn.
	if m.state == StateStreaming || m.state == StateGeneratingUI {
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) handleCtrlC() (tea.Model, tea.Cmd) {
	now := time.Now()

	// Double Ctrl+C within 1 second quits.
	if now.Sub(m.lastCtrlC) < time.Second {
		return m, m.cleanup()
	}
	m.lastCtrlC = now

	switch m.state {
	case StateInput:
		m.input.Reset()
		return m, nil

	case StateStreaming:
		m.cancelStream()
		m.addNotice("(Canceled)")
		m.rebuildViewportContent()
		return m, nil

	case StateForm:
		m.abandonForm()
		return m, nil
	}

	return m, nil
}

func (m *Model) handleSubmit() (tea.Model, tea.Cmd) {
	query := strings.TrimSpace(m.input.Value())
	if query == "" {
		return m, nil
	}

	if strings.HasPrefix(query, "/") {
		return m.handleSlashCommand(query)
	}

	// Prompt history (enforce maxHistory cap).
	m.history = append(m.history, query)
	if len(m.history) > maxHistory {
		m.history = m.history[len(m.history)-maxHistory:]
	}
	m.historyIdx = len(m.history)

	req, err := m.builder.SubmitTurn(query)
	if err != nil {
		m.addNotice("A request is already in flight.")
		m.rebuildViewportContent()
		return m, nil
	}

	m.input.Reset()
	m.state = StateStreaming
	m.rebuildViewportContent()
	m.viewport.GotoBottom()

	return m, tea.Batch(m.spinner.Tick, m.startStream(req))
}

// beginBuild starts the phase-two call when a spec exists.
func (m *Model) beginBuild() (tea.Model, tea.Cmd) {
	req, err := m.builder.BeginGenerateUI()
	if err != nil {
		switch {
		case errors.Is(err, conversation.ErrNoSpec):
			m.addNotice("Nothing to build yet. Describe your tool first.")
		case errors.Is(err, conversation.ErrBusy):
			m.addNotice("A request is already in flight.")
		default:
			m.addNotice(err.Error())
		}
		m.rebuildViewportContent()
		return m, nil
	}

	m.state = StateGeneratingUI
	m.rebuildViewportContent()
	m.viewport.GotoBottom()
	return m, tea.Batch(m.spinner.Tick, m.generateUI(req))
}

func (m *Model) handleSlashCommand(cmd string) (tea.Model, tea.Cmd) {
	name, arg, _ := strings.Cut(cmd, " ")
	arg = strings.TrimSpace(arg)

	switch name {
	case cmdHelp:
		m.addNotice("Commands: " + strings.Join([]string{
			cmdHelp, cmdBuild, cmdAdd, cmdArtifacts, cmdOpen + " <id>", cmdClear, cmdExit,
		}, ", ") + "\nShortcuts:\n  Enter: send  Shift+Enter: newline\n  Ctrl+B: build tool from spec\n  Ctrl+C: cancel/clear  Ctrl+D: exit\n  Up/Down: history  PgUp/PgDn: scroll")

	case cmdBuild:
		m.input.Reset()
		return m.beginBuild()

	case cmdAdd:
		m.input.Reset()
		return m.startForm(arg)

	case cmdArtifacts:
		m.input.Reset()
		return m, m.loadArtifacts()

	case cmdOpen:
		if arg == "" {
			m.addNotice("Usage: " + cmdOpen + " <id>")
			break
		}
		m.input.Reset()
		return m, m.openArtifact(arg)

	case cmdClear:
		m.notices = nil

	case cmdExit, cmdQuit:
		return m, m.cleanup()

	default:
		m.addNotice("Unknown command: " + name)
	}

	m.input.Reset()
	m.rebuildViewportContent()
	return m, nil
}

// startForm enters form mode for the named input form, or the artifact's
// first one when no id is given.
func (m *Model) startForm(componentID string) (tea.Model, tea.Cmd) {
	if m.state != StateInput {
		m.addNotice("Finish the current action first.")
		m.rebuildViewportContent()
		return m, nil
	}

	a := m.builder.Artifact()
	var target *artifact.Component
	for i := range a.Content.Components {
		c := &a.Content.Components[i]
		if c.Type != artifact.TypeInputForm {
			continue
		}
		if componentID == "" || c.ID == componentID {
			target = c
			break
		}
	}
	if target == nil {
		m.addNotice("No input form to fill. Build the tool first.")
		m.rebuildViewportContent()
		return m, nil
	}

	var cfg artifact.InputFormConfig
	if err := target.DecodeConfig(&cfg); err != nil {
		m.addNotice("Form configuration is broken: " + err.Error())
		m.rebuildViewportContent()
		return m, nil
	}
	if len(cfg.Fields) == 0 {
		m.addNotice("The form has no fields.")
		m.rebuildViewportContent()
		return m, nil
	}

	m.form = newFormSession(target.ID, cfg)
	m.state = StateForm
	m.input.Reset()
	m.rebuildViewportContent()
	m.viewport.GotoBottom()
	return m, nil
}

// handleFormEntry commits the active field and submits once all fields
// are visited.
func (m *Model) handleFormEntry() (tea.Model, tea.Cmd) {
	ok, reason := m.form.record(m.input.Value())
	if !ok {
		m.addNotice(reason)
		m.rebuildViewportContent()
		return m, nil
	}
	m.input.Reset()

	if !m.form.done() {
		m.rebuildViewportContent()
		return m, nil
	}

	form := m.form
	m.form = nil
	m.state = StateInput
	m.rebuildViewportContent()
	return m, m.submitForm(form.componentID, form.values)
}

func (m *Model) abandonForm() {
	m.form = nil
	m.state = StateInput
	m.input.Reset()
	m.rebuildViewportContent()
}

func (m *Model) navigateHistory(delta int) (tea.Model, tea.Cmd) {
	if len(m.history) == 0 {
		return m, nil
	}

	m.historyIdx += delta

	if m.historyIdx < 0 {
		m.historyIdx = 0
	}
	if m.historyIdx > len(m.history) {
		m.historyIdx = len(m.history)
	}

	if m.historyIdx == len(m.history) {
		m.input.SetValue("")
	} else {
		m.input.SetValue(m.history[m.historyIdx])
		m.input.CursorEnd()
	}

	return m, nil
}

// cancelStream tears down the stream context and tells the builder the
// turn was abandoned. An already-applied spec survives.
func (m *Model) cancelStream() {
	if m.streamCancel != nil {
		m.streamCancel()
		m.streamCancel = nil
	}
	m.streamEventCh = nil
	m.builder.Cancel()
	m.state = StateInput
}

// cleanup cancels any active stream and returns the quit command.
func (m *Model) cleanup() tea.Cmd {
	// The main context first; every goroutine using m.ctx unwinds.
	if m.ctxCancel != nil {
		m.ctxCancel()
		m.ctxCancel = nil
	}

	if m.streamCancel != nil {
		m.streamCancel()
		m.streamCancel = nil
	}
	m.streamEventCh = nil

	return tea.Quit
}
