package tui

import (
	"context"
	"errors"
	"fmt"

	tea "charm.land/bubbletea/v2"

	"github.com/maquette-dev/maquette/internal/artifact"
	"github.com/maquette-dev/maquette/internal/backend"
	"github.com/maquette-dev/maquette/internal/conversation"
	"github.com/maquette-dev/maquette/internal/store"
	"github.com/maquette-dev/maquette/internal/stream"
)

// streamBufferSize absorbs a burst of frames while the UI is mid-render
// without backpressuring the decoder goroutine.
const streamBufferSize = 100

// streamEvent is a discriminated union for the decoder goroutine's
// output. A single channel with a union type keeps the select logic in
// listenForStream flat.
type streamEvent struct {
	// Exactly one of these fields is set per event.
	event stream.Event // Decoded frame (when err is nil)
	err   error        // Transport or decode failure (when non-nil)
}

// Stream message types for Bubble Tea.
type streamStartedMsg struct {
	eventCh <-chan streamEvent
	cancel  context.CancelFunc
}

type streamFrameMsg struct {
	event stream.Event
}

type streamClosedMsg struct{}

type streamFailedMsg struct {
	err error
}

// uiResultMsg carries the build-from-spec outcome.
type uiResultMsg struct {
	res *backend.UIResponse
	err error
}

// saveDoneMsg carries the persisted artifact back for id reconciliation.
type saveDoneMsg struct {
	stored *artifact.Artifact
	err    error
}

// formResultMsg reports a form submission.
type formResultMsg struct {
	err error
}

// artifactsLoadedMsg carries the saved-tool listing.
type artifactsLoadedMsg struct {
	artifacts []artifact.Artifact
	err       error
}

// artifactOpenedMsg carries a fetched tool to resume.
type artifactOpenedMsg struct {
	art *artifact.Artifact
	err error
}

// startStream opens the spec stream and pumps decoded frames into a
// buffered union channel.
//
// The goroutine exits when the stream completes (done frame), the
// context is canceled, or a transport error surfaces. Channel closure
// signals completion, no WaitGroup needed.
func (m *Model) startStream(req backend.SpecRequest) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(m.ctx, streamTimeout)

		res, err := m.backend.SpecStream(ctx, req)
		if err != nil {
			cancel()
			return streamFailedMsg{err: err}
		}

		eventCh := make(chan streamEvent, streamBufferSize)

		go func() {
			defer cancel()
			defer res.Close()
			defer close(eventCh)

			for e, err := range res.Decoder.All() {
				if err != nil {
					select {
					case eventCh <- streamEvent{err: err}:
					case <-ctx.Done():
					}
					return
				}
				select {
				case eventCh <- streamEvent{event: e}:
				case <-ctx.Done():
					return
				}
			}
		}()

		return streamStartedMsg{eventCh: eventCh, cancel: cancel}
	}
}

// listenForStream waits for the next decoded frame. Closure of the
// channel means the decoder goroutine is gone; whether that is a clean
// finish or a dropped connection is the builder's call (it knows if a
// done frame arrived).
func listenForStream(eventCh <-chan streamEvent) tea.Cmd {
	return func() tea.Msg {
		if eventCh == nil {
			return nil
		}

		event, ok := <-eventCh
		if !ok {
			return streamClosedMsg{}
		}
		if event.err != nil {
			return streamFailedMsg{err: event.err}
		}
		return streamFrameMsg{event: event.event}
	}
}

// generateUI runs the phase-two call off the Update loop.
func (m *Model) generateUI(req backend.UIRequest) tea.Cmd {
	return func() tea.Msg {
		res, err := m.backend.GenerateUI(m.ctx, req)
		return uiResultMsg{res: res, err: err}
	}
}

// saveSpec persists a snapshot of the working copy. The snapshot is a
// Clone so the store call never races the Update loop's mutations; the
// returned id is reconciled in the saveDoneMsg handler.
func (m *Model) saveSpec() tea.Cmd {
	snapshot := m.builder.Artifact().Clone()
	return func() tea.Msg {
		stored, err := m.saver.Save(m.ctx, snapshot)
		if err != nil {
			// A save skipped as in-flight or debounced is not a failure;
			// the next spec change triggers another attempt.
			if errors.Is(err, conversation.ErrSaveInFlight) || errors.Is(err, conversation.ErrSaveDebounced) {
				return nil
			}
			return saveDoneMsg{err: err}
		}
		return saveDoneMsg{stored: stored}
	}
}

// savePromotion persists the phase flip and the component tree after a
// successful build.
func (m *Model) savePromotion() tea.Cmd {
	snapshot := m.builder.Artifact().Clone()
	return func() tea.Msg {
		if snapshot.ID == "" {
			stored, err := m.store.Create(m.ctx, snapshot)
			return saveDoneMsg{stored: stored, err: err}
		}
		stored, err := m.store.Update(m.ctx, snapshot.ID, store.UpdateRequest{
			Phase:   &snapshot.Phase,
			Content: &snapshot.Content,
		})
		return saveDoneMsg{stored: stored, err: err}
	}
}

// submitForm runs a form submission off the Update loop. The renderer
// mutates the artifact's data bag before persisting, so the command
// captures the live pointer, not a clone; the Update loop does not
// touch content while a submission is pending.
func (m *Model) submitForm(componentID string, values map[string]any) tea.Cmd {
	a := m.builder.Artifact()
	return func() tea.Msg {
		err := m.renderer.SubmitForm(m.ctx, a, componentID, values)
		return formResultMsg{err: err}
	}
}

// openArtifact fetches a saved tool to resume working on it.
func (m *Model) openArtifact(id string) tea.Cmd {
	return func() tea.Msg {
		a, err := m.store.Get(m.ctx, id)
		return artifactOpenedMsg{art: a, err: err}
	}
}

// loadArtifacts fetches the saved-tool listing.
func (m *Model) loadArtifacts() tea.Cmd {
	return func() tea.Msg {
		list, err := m.store.List(m.ctx)
		if err != nil {
			return artifactsLoadedMsg{err: fmt.Errorf("list artifacts: %w", err)}
		}
		return artifactsLoadedMsg{artifacts: list}
	}
}
