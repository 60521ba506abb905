package tui

import (
	"context"
	"errors"
	"fmt"

	"charm.land/bubbles/v2/spinner"
	tea "charm.land/bubbletea/v2"

	"github.com/maquette-dev/maquette/internal/conversation"
)

// Update implements tea.Model.
//
//nolint:gocognit,gocyclo // Bubble Tea Update requires type switch on all message types
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyPressMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		inputHeight := m.input.Height() + promptLines
		fixedHeight := separatorLines + inputHeight + helpLines
		vpHeight := max(msg.Height-fixedHeight, minViewport)

		m.viewport.SetWidth(msg.Width)
		m.viewport.SetHeight(vpHeight)
		m.input.SetWidth(msg.Width - 4)
		m.help.SetWidth(msg.Width)
		m.markdown.UpdateWidth(msg.Width)

		m.rebuildViewportContent()
		return m, nil

	case tea.MouseWheelMsg:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		if m.state == StateStreaming || m.state == StateGeneratingUI {
			m.rebuildViewportContent()
		}
		return m, cmd

	case streamStartedMsg:
		m.streamCancel = msg.cancel
		m.streamEventCh = msg.eventCh
		m.rebuildViewportContent()
		m.viewport.GotoBottom()
		return m, listenForStream(msg.eventCh)

	case streamFrameMsg:
		return m.handleFrame(msg)

	case streamClosedMsg:
		return m.handleStreamClosed()

	case streamFailedMsg:
		return m.handleStreamFailed(msg.err)

	case uiResultMsg:
		return m.handleUIResult(msg)

	case saveDoneMsg:
		return m.handleSaveDone(msg)

	case formResultMsg:
		if msg.err != nil {
			m.addNotice("Saving the entry failed: " + msg.err.Error())
		}
		m.rebuildViewportContent()
		return m, nil

	case artifactsLoadedMsg:
		return m.handleArtifactsLoaded(msg)

	case artifactOpenedMsg:
		return m.handleArtifactOpened(msg)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// handleFrame forwards one decoded frame to the builder and runs the
// side effects it requests.
func (m *Model) handleFrame(msg streamFrameMsg) (tea.Model, tea.Cmd) {
	eff := m.builder.Apply(msg.event)

	cmds := make([]tea.Cmd, 0, 2)
	if eff.SaveSpec {
		cmds = append(cmds, m.saveSpec())
	}

	switch {
	case eff.Done, eff.Failed:
		m.teardownStream()
		m.state = StateInput
		cmds = append(cmds, m.input.Focus())
	default:
		cmds = append(cmds, listenForStream(m.streamEventCh))
	}

	m.rebuildViewportContent()
	m.viewport.GotoBottom()
	return m, tea.Batch(cmds...)
}

// handleStreamClosed fires when the decoder goroutine exits. After a
// done frame the builder is already idle and this is a clean finish;
// otherwise the connection dropped mid-stream.
func (m *Model) handleStreamClosed() (tea.Model, tea.Cmd) {
	m.teardownStream()
	if m.builder.State() == conversation.StateStreaming {
		m.builder.Fail()
		m.state = StateInput
		m.rebuildViewportContent()
		m.viewport.GotoBottom()
		return m, m.input.Focus()
	}
	m.state = StateInput
	return m, m.input.Focus()
}

func (m *Model) handleStreamFailed(err error) (tea.Model, tea.Cmd) {
	m.teardownStream()
	m.state = StateInput

	if m.builder.State() == conversation.StateStreaming {
		m.builder.Fail()
	}
	switch {
	case errors.Is(err, context.Canceled):
		// Cancel already produced its notice.
	case errors.Is(err, context.DeadlineExceeded):
		m.addNotice("The stream timed out. Try again.")
	default:
		m.addNotice("Stream failed: " + err.Error())
	}

	m.rebuildViewportContent()
	m.viewport.GotoBottom()
	return m, m.input.Focus()
}

// handleUIResult applies the build outcome. On failure the artifact is
// untouched and the spec remains buildable.
func (m *Model) handleUIResult(msg uiResultMsg) (tea.Model, tea.Cmd) {
	m.state = StateInput

	if err := m.builder.FinishGenerateUI(msg.res, msg.err); err != nil {
		m.addNotice("Building the tool failed: " + err.Error())
		m.rebuildViewportContent()
		return m, m.input.Focus()
	}

	m.addNotice("Tool built. " + cmdAdd + " fills the form, " + cmdArtifacts + " lists saved tools.")
	m.rebuildViewportContent()
	m.viewport.GotoBottom()
	return m, tea.Batch(m.input.Focus(), m.savePromotion())
}

// handleSaveDone reconciles the stored id and timestamps back into the
// working copy.
func (m *Model) handleSaveDone(msg saveDoneMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		m.addNotice("Auto-save failed; changes are kept locally.")
		m.rebuildViewportContent()
		return m, nil
	}

	a := m.builder.Artifact()
	if a.ID == "" {
		a.ID = msg.stored.ID
		a.CreatedAt = msg.stored.CreatedAt
	}
	a.UpdatedAt = msg.stored.UpdatedAt
	return m, nil
}

func (m *Model) handleArtifactsLoaded(msg artifactsLoadedMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		m.addNotice(msg.err.Error())
		m.rebuildViewportContent()
		return m, nil
	}
	if len(msg.artifacts) == 0 {
		m.addNotice("No saved tools yet.")
		m.rebuildViewportContent()
		return m, nil
	}

	var b []byte
	b = append(b, "Saved tools:"...)
	for _, a := range msg.artifacts {
		title := a.Title
		if title == "" {
			title = "(untitled)"
		}
		b = append(b, fmt.Sprintf("\n  %s  %s [%s/%s]", a.ID, title, a.EffectivePhase(), a.Status)...)
	}
	m.addNotice(string(b))
	m.rebuildViewportContent()
	m.viewport.GotoBottom()
	return m, nil
}

func (m *Model) handleArtifactOpened(msg artifactOpenedMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		m.addNotice("Open failed: " + msg.err.Error())
		m.rebuildViewportContent()
		return m, nil
	}

	m.builder = conversation.NewBuilder(msg.art)
	m.form = nil
	m.state = StateInput
	title := msg.art.Title
	if title == "" {
		title = msg.art.ID
	}
	m.addNotice("Opened " + title + ".")
	m.rebuildViewportContent()
	m.viewport.GotoBottom()
	return m, m.input.Focus()
}

// teardownStream releases the stream context and channel.
func (m *Model) teardownStream() {
	if m.streamCancel != nil {
		m.streamCancel()
		m.streamCancel = nil
	}
	m.streamEventCh = nil
}
