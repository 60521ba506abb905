// Package stream decodes the Maquette generation protocol: a chunked,
// newline-delimited stream of "data: <json>" frames carrying typed events.
//
// The decoder is transport-independent: it consumes any io.Reader, so tests
// can feed it synthetic chunk boundaries (including boundaries that split a
// frame inside the JSON payload or inside the "data: " prefix) and observe
// the identical event sequence.
package stream

import (
	"encoding/json"
	"fmt"

	"github.com/maquette-dev/maquette/internal/artifact"
)

// EventType discriminates stream events.
type EventType string

const (
	EventThinking EventType = "thinking"
	EventBuilding EventType = "building"
	EventSpec     EventType = "spec"
	EventMessage  EventType = "message"
	EventDone     EventType = "done"
	EventError    EventType = "error"
)

// Event is one decoded frame. Content is kept raw: thinking, building,
// message, done and error carry a JSON string; spec carries a ProductSpec
// object. Events are transient protocol values, never persisted.
type Event struct {
	Type    EventType       `json:"type"`
	Content json.RawMessage `json:"content"`
}

// Text decodes the content of string-carrying events.
// Returns "" when the content is absent or not a JSON string.
func (e Event) Text() string {
	var s string
	if err := json.Unmarshal(e.Content, &s); err != nil {
		return ""
	}
	return s
}

// Spec decodes the content of a spec event.
func (e Event) Spec() (artifact.ProductSpec, error) {
	if e.Type != EventSpec {
		return artifact.ProductSpec{}, fmt.Errorf("event %q carries no spec", e.Type)
	}
	var ps artifact.ProductSpec
	if err := json.Unmarshal(e.Content, &ps); err != nil {
		return artifact.ProductSpec{}, fmt.Errorf("decode spec content: %w", err)
	}
	return ps, nil
}

// Marshal encodes an event as one wire frame, including the trailing
// newline. The inverse of what Decoder consumes; used by the dev server.
func Marshal(e Event) ([]byte, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}
	frame := make([]byte, 0, len(prefix)+len(payload)+1)
	frame = append(frame, prefix...)
	frame = append(frame, payload...)
	frame = append(frame, '\n')
	return frame, nil
}

// TextEvent builds a string-carrying event.
func TextEvent(t EventType, text string) Event {
	content, _ := json.Marshal(text)
	return Event{Type: t, Content: content}
}

// SpecEvent builds a spec event from a ProductSpec.
func SpecEvent(ps artifact.ProductSpec) (Event, error) {
	content, err := json.Marshal(ps)
	if err != nil {
		return Event{}, fmt.Errorf("marshal spec content: %w", err)
	}
	return Event{Type: EventSpec, Content: content}, nil
}
