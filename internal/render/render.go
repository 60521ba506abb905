package render

import (
	"context"
	"errors"
	"fmt"

	"github.com/maquette-dev/maquette/internal/artifact"
	"github.com/maquette-dev/maquette/internal/events"
	"github.com/maquette-dev/maquette/internal/log"
	"github.com/maquette-dev/maquette/internal/store"
)

// ErrNotAForm indicates a form submission targeted a non-InputForm
// component.
var ErrNotAForm = errors.New("component is not an input form")

// Updater is the slice of the persistence client the renderer needs to
// push data bag changes.
type Updater interface {
	Update(ctx context.Context, id string, req store.UpdateRequest) (*artifact.Artifact, error)
}

// Renderer resolves component trees and routes form submissions back into
// the data bag. It holds no per-artifact state.
type Renderer struct {
	updater Updater
	hub     *events.Hub
	logger  log.Logger
}

// New returns a renderer. updater and hub may be nil for read-only use
// (SubmitForm then skips persistence / notification).
func New(updater Updater, hub *events.Hub, logger log.Logger) *Renderer {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Renderer{updater: updater, hub: hub, logger: logger}
}

// Render resolves the artifact's components in array order. An artifact
// with no components yields the single empty-state view.
func (r *Renderer) Render(a *artifact.Artifact) []View {
	comps := a.Content.Components
	if len(comps) == 0 {
		return []View{EmptyStateView{}}
	}

	views := make([]View, 0, len(comps))
	for _, c := range comps {
		views = append(views, Resolve(c, a.Content.Data))
	}
	return views
}

// SubmitForm appends formData under the form's data key, assigns the
// updated bag back into the artifact and persists content. The in-memory
// append happens first: the view reflects the submission immediately and
// persistence is last-writer-wins.
func (r *Renderer) SubmitForm(ctx context.Context, a *artifact.Artifact, componentID string, formData map[string]any) error {
	comp, ok := a.Component(componentID)
	if !ok {
		return fmt.Errorf("%w: %s", artifact.ErrNotFound, componentID)
	}
	if comp.Type != artifact.TypeInputForm {
		return fmt.Errorf("%w: %s is %s", ErrNotAForm, componentID, comp.Type)
	}

	key := comp.DataKey()
	bag := a.Data()
	existing := toRows(bag[key])
	rows := make([]map[string]any, 0, len(existing)+1)
	rows = append(rows, existing...)
	rows = append(rows, formData)
	bag[key] = rows
	a.Content.Data = bag

	if r.updater != nil && a.ID != "" {
		if _, err := r.updater.Update(ctx, a.ID, store.UpdateRequest{Content: &a.Content}); err != nil {
			// The local append stands; the next content write carries it.
			r.logger.Warn("persisting form submission failed",
				"artifact_id", a.ID, "component_id", componentID, "error", err)
			return fmt.Errorf("persist form submission: %w", err)
		}
	}

	r.logger.Debug("form submitted",
		"artifact_id", a.ID, "component_id", componentID, "data_key", key, "rows", len(rows))
	if r.hub != nil {
		r.hub.Notify(events.Change{ArtifactID: a.ID, Kind: "data"})
	}
	return nil
}
