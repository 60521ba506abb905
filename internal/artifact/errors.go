package artifact

import "errors"

var (
	// ErrNotFound is returned when the requested artifact does not exist.
	ErrNotFound = errors.New("artifact not found")

	// ErrInvalidPhase is returned when a phase transition would move
	// backwards (phase only ever advances spec -> ui).
	ErrInvalidPhase = errors.New("invalid phase transition")

	// ErrInvalidComponentID is returned for an empty or blank component ID.
	ErrInvalidComponentID = errors.New("invalid component id")

	// ErrDuplicateComponentID is returned when two components in one
	// artifact share an ID.
	ErrDuplicateComponentID = errors.New("duplicate component id")

	// ErrEmptyConfig is returned when a component carries no config payload.
	ErrEmptyConfig = errors.New("empty component config")

	// ErrInvalidConfig is returned when a component config fails to decode.
	ErrInvalidConfig = errors.New("invalid component config")
)
