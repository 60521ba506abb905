package artifact

import (
	"time"
)

// Phase represents the artifact lifecycle stage.
//
// Phase only moves forward: once a UI has been synthesized from the spec the
// artifact stays in PhaseUI, even when the spec is later edited and the UI
// regenerated.
type Phase string

const (
	// PhaseSpec means only the Product Spec blueprint exists.
	PhaseSpec Phase = "spec"
	// PhaseUI means a component tree has been synthesized from the spec.
	PhaseUI Phase = "ui"
)

// Status is the user-driven lifecycle flag of an artifact.
// Only StatusLive artifacts surface on the home/summary view.
type Status string

const (
	StatusDraft    Status = "draft"
	StatusLive     Status = "live"
	StatusArchived Status = "archived"
	StatusDeleted  Status = "deleted"
)

// Role constants for conversation turns.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is one entry of the artifact's conversation history.
// History is append-only from the user's perspective and replayed on reload
// to reconstruct the chat panel.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// DataBag is the mutable key/value store backing list and form components.
// Keys are either explicit (config dataKey) or derived via DataKey.
type DataBag map[string]any

// Content is the renderable payload of an artifact, present once the
// artifact has reached PhaseUI (empty before).
type Content struct {
	Components []Component `json:"components"`
	Data       DataBag     `json:"data"`
}

// ProductSpec is the phase-one payload: the blueprint produced by the
// spec-authoring conversation and carried by "spec" stream events.
type ProductSpec struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Spec        string `json:"spec"` // markdown document
}

// Artifact is the central entity: a user-defined tool comprising a Product
// Spec document and/or a generated UI component tree.
//
// Zero values:
//   - ID: "" (unsaved; assigned by the persistence service on first save)
//   - Prompt: the original request, immutable after creation
//   - Phase: "" is treated as PhaseSpec
//   - Content: zero value before PhaseUI
type Artifact struct {
	ID          string  `json:"id,omitempty"`
	UserID      string  `json:"user_id,omitempty"`
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	Prompt      string  `json:"prompt"`
	Spec        string  `json:"spec,omitempty"`
	Phase       Phase   `json:"phase,omitempty"`
	Content     Content `json:"content"`
	History     []Turn  `json:"conversation_history,omitempty"`
	Status      Status  `json:"status,omitempty"`

	CreatedAt time.Time `json:"created_at,omitzero"`
	UpdatedAt time.Time `json:"updated_at,omitzero"`
}

// EffectivePhase normalizes the empty phase of never-promoted artifacts.
func (a *Artifact) EffectivePhase() Phase {
	if a.Phase == "" {
		return PhaseSpec
	}
	return a.Phase
}

// ApplySpec replaces the artifact's spec, title and description from a
// phase-one ProductSpec. Called when a "spec" stream event is processed and
// when the user edits the spec directly.
func (a *Artifact) ApplySpec(ps ProductSpec) {
	a.Title = ps.Title
	a.Description = ps.Description
	a.Spec = ps.Spec
	if a.Phase == "" {
		a.Phase = PhaseSpec
	}
}

// Promote moves the artifact to PhaseUI with the given content.
// Returns ErrInvalidPhase when the artifact would move backwards (PhaseUI
// is terminal; re-promoting with fresh content is allowed).
func (a *Artifact) Promote(c Content) error {
	switch a.EffectivePhase() {
	case PhaseSpec, PhaseUI:
		a.Phase = PhaseUI
		a.Content = c
		return nil
	default:
		return ErrInvalidPhase
	}
}

// Data returns the artifact's data bag, lazily initializing it so callers
// can always index into the result.
func (a *Artifact) Data() DataBag {
	if a.Content.Data == nil {
		a.Content.Data = DataBag{}
	}
	return a.Content.Data
}

// Component returns the component with the given ID, or false.
func (a *Artifact) Component(id string) (Component, bool) {
	for _, c := range a.Content.Components {
		if c.ID == id {
			return c, true
		}
	}
	return Component{}, false
}

// Clone returns a deep copy of the artifact. The client-held working copy
// hands clones to concurrent readers so in-place mutation stays confined to
// the owning component.
func (a *Artifact) Clone() *Artifact {
	cp := *a
	cp.History = append([]Turn(nil), a.History...)
	cp.Content.Components = append([]Component(nil), a.Content.Components...)
	if a.Content.Data != nil {
		cp.Content.Data = make(DataBag, len(a.Content.Data))
		for k, v := range a.Content.Data {
			cp.Content.Data[k] = v
		}
	}
	return &cp
}

// ValidStatus reports whether s is one of the four lifecycle statuses.
func ValidStatus(s Status) bool {
	switch s {
	case StatusDraft, StatusLive, StatusArchived, StatusDeleted:
		return true
	}
	return false
}
