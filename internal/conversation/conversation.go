// Package conversation drives an artifact's two-phase flow: the
// spec-authoring chat and the single-shot UI synthesis.
//
// Builder is a pure reducer over stream events. It owns no goroutines and
// performs no I/O; the caller (the TUI event loop) opens streams, feeds
// events in arrival order and executes the side effects the reducer asks
// for. That split keeps every transition deterministically testable against
// canned event sequences.
//
// The transient "thinking" placeholder is a single nullable field of the
// builder, not a marker turn spliced into history; history only ever holds
// real user and assistant turns.
package conversation

import (
	"errors"
	"fmt"

	"github.com/maquette-dev/maquette/internal/artifact"
	"github.com/maquette-dev/maquette/internal/backend"
	"github.com/maquette-dev/maquette/internal/stream"
)

// State is the builder's position in the two-phase flow.
type State int

const (
	// StateIdle accepts user turns and, once a spec exists, UI generation.
	StateIdle State = iota
	// StateStreaming means a spec stream is open; input is disabled.
	StateStreaming
	// StateGeneratingUI means the single-shot UI call is in flight.
	StateGeneratingUI
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStreaming:
		return "streaming"
	case StateGeneratingUI:
		return "generating_ui"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

var (
	// ErrBusy indicates a generation request is already in flight.
	ErrBusy = errors.New("a generation request is already in flight")

	// ErrNoSpec indicates UI generation was requested before a spec exists.
	ErrNoSpec = errors.New("artifact has no spec yet")
)

// failureTurn is appended when a stream fails; the backend's own error text
// is logged, never shown raw.
const failureTurn = "Something went wrong while working on your spec. Please try again."

// Effect tells the caller which side effects to run after Apply. The
// reducer never performs them itself.
type Effect struct {
	// SaveSpec fires the auto-save: a spec event was applied.
	SaveSpec bool
	// Done means the stream finished and the builder is idle again.
	Done bool
	// Failed means the stream ended with an error event or transport
	// failure; the failure turn is already in history.
	Failed bool
}

// Message is one chat panel entry. Thinking marks the transient
// placeholder, which is never part of history.
type Message struct {
	Role     string
	Content  string
	Thinking bool
}

// Builder is the per-artifact conversation state machine. Not safe for
// concurrent use; it belongs to the single UI event loop.
type Builder struct {
	art         *artifact.Artifact
	state       State
	placeholder *string
	pendingMsg  string
}

// NewBuilder wraps an artifact. The builder mutates it in place; callers
// hand over ownership until the builder is discarded.
func NewBuilder(a *artifact.Artifact) *Builder {
	return &Builder{art: a}
}

// Artifact exposes the working copy.
func (b *Builder) Artifact() *artifact.Artifact { return b.art }

// State returns the current state.
func (b *Builder) State() State { return b.state }

// Busy reports whether any generation request is in flight.
func (b *Builder) Busy() bool { return b.state != StateIdle }

// SubmitTurn appends the user's turn, raises the thinking placeholder and
// returns the request for the spec stream. Only one request may be in
// flight per artifact; ErrBusy otherwise.
func (b *Builder) SubmitTurn(prompt string) (backend.SpecRequest, error) {
	if b.state != StateIdle {
		return backend.SpecRequest{}, ErrBusy
	}

	// History sent to the backend excludes the turn being submitted.
	history := make([]artifact.Turn, len(b.art.History))
	copy(history, b.art.History)

	b.art.History = append(b.art.History, artifact.Turn{Role: artifact.RoleUser, Content: prompt})
	if b.art.Prompt == "" {
		b.art.Prompt = prompt
	}
	placeholder := "Thinking..."
	b.placeholder = &placeholder
	b.pendingMsg = ""
	b.state = StateStreaming

	return backend.SpecRequest{
		Prompt:  prompt,
		History: history,
		Spec:    b.art.Spec,
	}, nil
}

// Apply consumes one stream event and returns the side effects to run.
// Events must arrive in stream order.
func (b *Builder) Apply(e stream.Event) Effect {
	if b.state != StateStreaming {
		// A late event from an abandoned stream; nothing to mutate.
		return Effect{}
	}

	switch e.Type {
	case stream.EventThinking, stream.EventBuilding:
		if text := e.Text(); text != "" {
			b.placeholder = &text
		}
		return Effect{}

	case stream.EventSpec:
		ps, err := e.Spec()
		if err != nil {
			// Malformed content is a protocol fault; skip the event the
			// same way the decoder skips malformed lines.
			return Effect{}
		}
		b.art.ApplySpec(ps)
		return Effect{SaveSpec: true}

	case stream.EventMessage:
		// Held until done so the placeholder and the final message are
		// swapped atomically, never both visible.
		b.pendingMsg = e.Text()
		return Effect{}

	case stream.EventDone:
		b.placeholder = nil
		if b.pendingMsg != "" {
			b.art.History = append(b.art.History,
				artifact.Turn{Role: artifact.RoleAssistant, Content: b.pendingMsg})
			b.pendingMsg = ""
		}
		b.state = StateIdle
		return Effect{Done: true}

	case stream.EventError:
		b.fail()
		return Effect{Failed: true}

	default:
		// Unknown event types from a newer backend are ignored.
		return Effect{}
	}
}

// Fail handles a transport failure of the open stream: same visible outcome
// as an error event. Any spec already applied stays applied.
func (b *Builder) Fail() Effect {
	if b.state != StateStreaming {
		return Effect{}
	}
	b.fail()
	return Effect{Failed: true}
}

func (b *Builder) fail() {
	b.placeholder = nil
	b.pendingMsg = ""
	b.art.History = append(b.art.History,
		artifact.Turn{Role: artifact.RoleAssistant, Content: failureTurn})
	b.state = StateIdle
}

// Cancel abandons an open stream without a failure turn: the user navigated
// away. Spec changes already applied are not rolled back.
func (b *Builder) Cancel() {
	if b.state != StateStreaming {
		return
	}
	b.placeholder = nil
	b.pendingMsg = ""
	b.state = StateIdle
}

// BeginGenerateUI enters the UI synthesis phase and returns the single-shot
// request. Allowed only from idle with a non-empty spec.
func (b *Builder) BeginGenerateUI() (backend.UIRequest, error) {
	if b.state != StateIdle {
		return backend.UIRequest{}, ErrBusy
	}
	if b.art.Spec == "" {
		return backend.UIRequest{}, ErrNoSpec
	}
	b.state = StateGeneratingUI
	return backend.UIRequest{Spec: b.art.Spec, Title: b.art.Title}, nil
}

// FinishGenerateUI applies the UI synthesis result. On failure the artifact
// is untouched: phase stays spec and content is not corrupted.
func (b *Builder) FinishGenerateUI(res *backend.UIResponse, callErr error) error {
	if b.state != StateGeneratingUI {
		return fmt.Errorf("no UI generation in flight (state %s)", b.state)
	}
	b.state = StateIdle

	if callErr != nil {
		return fmt.Errorf("generate ui: %w", callErr)
	}

	data := res.Data
	if data == nil {
		data = artifact.DataBag{}
	}
	if err := b.art.Promote(artifact.Content{Components: res.Components, Data: data}); err != nil {
		return fmt.Errorf("promote artifact: %w", err)
	}
	return nil
}

// Messages renders the chat panel: full history plus the placeholder as a
// trailing transient entry while a stream is open.
func (b *Builder) Messages() []Message {
	msgs := make([]Message, 0, len(b.art.History)+1)
	for _, t := range b.art.History {
		msgs = append(msgs, Message{Role: t.Role, Content: t.Content})
	}
	if b.placeholder != nil {
		msgs = append(msgs, Message{Role: artifact.RoleAssistant, Content: *b.placeholder, Thinking: true})
	}
	return msgs
}
