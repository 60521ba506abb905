package tui

import (
	"strings"

	"charm.land/bubbles/v2/key"
	tea "charm.land/bubbletea/v2"

	"github.com/maquette-dev/maquette/internal/artifact"
)

// View implements tea.Model.
// Uses AltScreen with viewport for scrollable content.
func (m *Model) View() tea.View {
	m.viewBuf.Reset()

	_, _ = m.viewBuf.WriteString(m.viewport.View())
	_, _ = m.viewBuf.WriteString("\n")

	_, _ = m.viewBuf.WriteString(m.renderSeparator())
	_, _ = m.viewBuf.WriteString("\n")

	// In form mode the field prompt replaces the chat prompt.
	if m.state == StateForm && m.form != nil {
		_, _ = m.viewBuf.WriteString(m.styles.CardTitle.Render(m.form.prompt()))
		_, _ = m.viewBuf.WriteString(" ")
	} else {
		_, _ = m.viewBuf.WriteString(m.styles.Prompt.Render("> "))
	}
	_, _ = m.viewBuf.WriteString(m.input.View())
	_, _ = m.viewBuf.WriteString("\n")

	_, _ = m.viewBuf.WriteString(m.renderSeparator())
	_, _ = m.viewBuf.WriteString("\n")

	_, _ = m.viewBuf.WriteString(m.renderStatusBar())

	v := tea.NewView(m.viewBuf.String())
	v.AltScreen = true
	return v
}

// rebuildViewportContent reconstructs the viewport from the builder's
// state. Called whenever messages, the artifact, or the mode change.
func (m *Model) rebuildViewportContent() {
	var b strings.Builder

	art := m.builder.Artifact()
	msgs := m.builder.Messages()

	// Banner and tips until the conversation starts.
	if len(msgs) == 0 {
		_, _ = b.WriteString(m.styles.RenderBanner())
		_, _ = b.WriteString("\n")
		_, _ = b.WriteString(m.styles.RenderWelcomeTips())
		_, _ = b.WriteString("\n")
	}

	for _, msg := range msgs {
		switch {
		case msg.Thinking:
			_, _ = b.WriteString(m.spinner.View())
			_, _ = b.WriteString(" ")
			_, _ = b.WriteString(m.styles.System.Render(msg.Content))
		case msg.Role == artifact.RoleUser:
			_, _ = b.WriteString(m.styles.User.Render("You> "))
			_, _ = b.WriteString(msg.Content)
		default:
			_, _ = b.WriteString(m.styles.Assistant.Render("Maquette> "))
			_, _ = b.WriteString(msg.Content)
		}
		_, _ = b.WriteString("\n\n")
	}

	switch art.EffectivePhase() {
	case artifact.PhaseUI:
		_, _ = b.WriteString(m.styles.CardTitle.Render(panelTitle(art)))
		_, _ = b.WriteString("\n\n")
		_, _ = b.WriteString(m.renderViews(m.renderer.Render(art)))
	case artifact.PhaseSpec:
		if art.Spec != "" {
			_, _ = b.WriteString(m.renderSeparator())
			_, _ = b.WriteString("\n")
			_, _ = b.WriteString(m.markdown.Render(art.Spec))
			_, _ = b.WriteString("\n")
			if m.state == StateInput {
				_, _ = b.WriteString(m.styles.System.Render("Refine the spec, or press Ctrl+B to build the tool."))
				_, _ = b.WriteString("\n")
			}
		}
	}

	if m.state == StateGeneratingUI {
		_, _ = b.WriteString(m.spinner.View())
		_, _ = b.WriteString(" Building your tool...\n\n")
	}

	for _, n := range m.notices {
		_, _ = b.WriteString(m.styles.System.Render(n))
		_, _ = b.WriteString("\n")
	}

	m.viewport.SetContent(b.String())
}

func panelTitle(a *artifact.Artifact) string {
	if a.Title != "" {
		return a.Title
	}
	return "Your tool"
}

// renderSeparator returns a horizontal line separator.
func (m *Model) renderSeparator() string {
	width := m.width
	if width <= 0 {
		width = 80
	}
	return m.styles.Separator.Render(strings.Repeat("─", width))
}

// renderStatusBar returns state-appropriate keyboard shortcut help.
func (m *Model) renderStatusBar() string {
	var bindings []key.Binding
	switch m.state {
	case StateInput:
		bindings = []key.Binding{
			m.keys.Submit, m.keys.NewLine, m.keys.Build,
			m.keys.History, m.keys.Cancel, m.keys.Quit,
		}
	case StateStreaming, StateGeneratingUI:
		bindings = []key.Binding{
			m.keys.EscCancel, m.keys.Cancel,
			m.keys.ScrollUp, m.keys.ScrollDown,
		}
	case StateForm:
		bindings = []key.Binding{
			m.keys.Submit, m.keys.FormBack, m.keys.EscCancel, m.keys.Cancel,
		}
	}
	return m.help.ShortHelpView(bindings)
}
