package tui

import (
	"strconv"
	"strings"

	"github.com/maquette-dev/maquette/internal/artifact"
)

// formSession walks an input form one field at a time. The shell's
// single textarea doubles as the field editor; the session tracks which
// field is active and what has been entered so far.
type formSession struct {
	componentID string
	title       string
	fields      []artifact.FormField
	values      map[string]any
	idx         int
}

func newFormSession(componentID string, cfg artifact.InputFormConfig) *formSession {
	return &formSession{
		componentID: componentID,
		title:       cfg.Title,
		fields:      cfg.Fields,
		values:      make(map[string]any, len(cfg.Fields)),
	}
}

// current returns the active field.
func (f *formSession) current() artifact.FormField {
	return f.fields[f.idx]
}

// record stores the entered value for the active field and advances.
// Returns false with a reason when the entry is rejected (required field
// left empty, non-numeric input for a number field).
func (f *formSession) record(raw string) (ok bool, reason string) {
	field := f.current()
	raw = strings.TrimSpace(raw)

	if raw == "" {
		if field.Required {
			return false, field.Label + " is required"
		}
		f.idx++
		return true, ""
	}

	switch field.Type {
	case "number":
		n, err := strconv.ParseFloat(strings.ReplaceAll(raw, ",", ""), 64)
		if err != nil {
			return false, field.Label + " must be a number"
		}
		f.values[field.Name] = n
	default:
		f.values[field.Name] = raw
	}
	f.idx++
	return true, ""
}

// done reports whether every field has been visited.
func (f *formSession) done() bool {
	return f.idx >= len(f.fields)
}

// back returns to the previous field, if any.
func (f *formSession) back() {
	if f.idx > 0 {
		f.idx--
	}
}

// prompt is the field line shown above the input.
func (f *formSession) prompt() string {
	field := f.current()
	label := field.Label
	if label == "" {
		label = field.Name
	}
	var b strings.Builder
	b.WriteString(label)
	if field.Required {
		b.WriteString(" (required)")
	}
	if len(field.Options) > 0 {
		b.WriteString(" [")
		b.WriteString(strings.Join(field.Options, ", "))
		b.WriteString("]")
	}
	return b.String()
}
