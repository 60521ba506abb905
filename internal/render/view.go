// Package render resolves an artifact's component tree into typed views.
//
// Resolution is pure: component config plus the data bag in, a View union
// value out. Presentation (terminal styling) lives in the TUI; keeping it
// out of this package means every merge rule and failure mode is testable
// without a screen.
//
// Failure policy: an unknown component type or a config the registry cannot
// decode resolves to UnknownView/ErrorView for that one component. Sibling
// components are unaffected; Render never fails as a whole.
package render

import "github.com/maquette-dev/maquette/internal/artifact"

// View is the resolved form of one component, ready for presentation.
// The set is closed; consumers switch over the concrete types.
type View interface {
	viewTag()
}

// MetricView is a resolved MetricCard.
type MetricView struct {
	ID          string
	Title       string
	Value       any
	Target      any
	Unit        string
	Icon        string
	Description string
}

// ListView is a resolved DataList. Rows holds the effective items after the
// static/dynamic merge; Dynamic records which side won.
type ListView struct {
	ID           string
	Title        string
	Fields       []string
	Rows         []map[string]any
	EmptyMessage string
	Dynamic      bool
}

// ProgressView is a resolved ProgressBar with numeric values validated.
type ProgressView struct {
	ID             string
	Title          string
	Value          float64
	Max            float64
	Percent        float64
	ShowPercentage bool
	Description    string
}

// FormView is a resolved InputForm. DataKey is the bag key submissions
// append to.
type FormView struct {
	ID          string
	Title       string
	Fields      []artifact.FormField
	SubmitLabel string
	DataKey     string
}

// TextView is a resolved TextBlock.
type TextView struct {
	ID      string
	Text    string
	Variant string
}

// ChartView is a resolved Chart. Points carry the label/value pairs after
// axis-key resolution; rows with a non-numeric value are dropped.
type ChartView struct {
	ID          string
	Title       string
	Description string
	ChartType   string
	Points      []ChartPoint
}

// ChartPoint is one plotted value.
type ChartPoint struct {
	Label string
	Value float64
}

// UnknownView stands in for a component whose type is not in the registry.
// It renders as a contained placeholder, never an error page.
type UnknownView struct {
	ID   string
	Type artifact.ComponentType
}

// ErrorView stands in for a known component whose config could not be
// used. Reason is shown to the user inside the card.
type ErrorView struct {
	ID     string
	Type   artifact.ComponentType
	Reason string
}

// EmptyStateView is rendered when an artifact has no components yet.
type EmptyStateView struct{}

func (MetricView) viewTag()     {}
func (ListView) viewTag()       {}
func (ProgressView) viewTag()   {}
func (FormView) viewTag()       {}
func (TextView) viewTag()       {}
func (ChartView) viewTag()      {}
func (UnknownView) viewTag()    {}
func (ErrorView) viewTag()      {}
func (EmptyStateView) viewTag() {}
