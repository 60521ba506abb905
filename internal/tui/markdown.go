package tui

import (
	"strings"

	"github.com/charmbracelet/glamour"
)

// Wrap width for the rendered spec document. A small margin keeps the text
// off the pane edge; very wide terminals are capped because long lines make
// a spec hard to scan, and very narrow ones get a floor so glamour does not
// degenerate into one word per line.
const (
	specPaneMargin  = 2
	specWrapFloor   = 20
	specWrapCeiling = 100
)

func specWrap(paneWidth int) int {
	w := paneWidth - specPaneMargin
	if w < specWrapFloor {
		return specWrapFloor
	}
	if w > specWrapCeiling {
		return specWrapCeiling
	}
	return w
}

// specRenderer styles the spec document for the spec pane. The glamour
// renderer is rebuilt only when the derived wrap width changes; a nil
// renderer degrades to the raw markdown.
type specRenderer struct {
	renderer *glamour.TermRenderer
	wrap     int
}

func newSpecRenderer(paneWidth int) *specRenderer {
	s := &specRenderer{}
	s.rebuild(specWrap(paneWidth))
	return s
}

// UpdateWidth follows a pane resize. Reports whether the rendered output
// would change.
func (s *specRenderer) UpdateWidth(paneWidth int) bool {
	if s == nil {
		return false
	}
	wrap := specWrap(paneWidth)
	if wrap == s.wrap {
		return false
	}
	return s.rebuild(wrap)
}

func (s *specRenderer) rebuild(wrap int) bool {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(wrap),
	)
	if err != nil {
		// Keep whatever renderer was working, at its old width.
		return false
	}
	s.renderer = r
	s.wrap = wrap
	return true
}

// Render returns the styled document, or the raw text when styling is
// unavailable.
func (s *specRenderer) Render(doc string) string {
	if s == nil || s.renderer == nil {
		return doc
	}
	rendered, err := s.renderer.Render(doc)
	if err != nil {
		return doc
	}
	return strings.TrimRight(rendered, "\n")
}
