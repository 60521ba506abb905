package artifact

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ComponentType tags one entry of the closed component vocabulary.
//
// The set is deliberately fixed so the generation backend and the renderer
// agree on a finite contract; unknown tags degrade to a visible placeholder
// at render time instead of failing the whole tree.
type ComponentType string

const (
	TypeMetricCard  ComponentType = "MetricCard"
	TypeDataList    ComponentType = "DataList"
	TypeProgressBar ComponentType = "ProgressBar"
	TypeInputForm   ComponentType = "InputForm"
	TypeTextBlock   ComponentType = "TextBlock"
	TypeChart       ComponentType = "Chart"
)

// KnownType reports whether t is part of the closed vocabulary.
func KnownType(t ComponentType) bool {
	switch t {
	case TypeMetricCard, TypeDataList, TypeProgressBar,
		TypeInputForm, TypeTextBlock, TypeChart:
		return true
	}
	return false
}

// Component is one typed, configured UI unit within an artifact.
// Config is the raw type-specific payload; decode it with DecodeConfig or
// the typed config structs below. Keeping the raw bytes means an artifact
// with components from a newer generator still round-trips unchanged.
type Component struct {
	ID     string          `json:"id"`
	Type   ComponentType   `json:"type"`
	Config json.RawMessage `json:"config"`
}

// DataKey resolves the data-bag key a component reads and writes:
// the explicit config dataKey when present, otherwise the derived
// "<componentID>_items" fallback.
//
// The derived fallback mirrors what the generation backend emits when it
// omits explicit keys; whether the backend guarantees matching keys between
// a DataList and its InputForm is an integration assumption, not a contract
// we can verify here.
func (c Component) DataKey() string {
	var probe struct {
		DataKey string `json:"dataKey"`
	}
	if err := json.Unmarshal(c.Config, &probe); err == nil && probe.DataKey != "" {
		return probe.DataKey
	}
	return c.ID + "_items"
}

// DecodeConfig unmarshals the component config into v.
func (c Component) DecodeConfig(v any) error {
	if len(c.Config) == 0 {
		return fmt.Errorf("component %s: %w", c.ID, ErrEmptyConfig)
	}
	if err := json.Unmarshal(c.Config, v); err != nil {
		return fmt.Errorf("component %s: %w: %w", c.ID, ErrInvalidConfig, err)
	}
	return nil
}

// MetricCardConfig displays a single metric or KPI.
type MetricCardConfig struct {
	Title       string `json:"title"`
	Value       any    `json:"value"` // number or preformatted string
	Target      any    `json:"target,omitempty"`
	Unit        string `json:"unit,omitempty"`
	Icon        string `json:"icon,omitempty"`
	Description string `json:"description,omitempty"`
}

// DataListConfig displays a table of items. Items is the static fallback;
// live rows come from the data bag under DataKey (dynamic wins when the key
// is present, even when the slice is empty).
type DataListConfig struct {
	Title        string           `json:"title"`
	Items        []map[string]any `json:"items,omitempty"`
	Fields       []string         `json:"fields,omitempty"`
	DataKey      string           `json:"dataKey,omitempty"`
	EmptyMessage string           `json:"emptyMessage,omitempty"`
}

// ProgressBarConfig shows progress toward a goal.
type ProgressBarConfig struct {
	Title          string `json:"title"`
	Value          any    `json:"value"` // must be numeric; rejected otherwise
	Max            any    `json:"max"`
	ShowPercentage bool   `json:"showPercentage,omitempty"`
	Description    string `json:"description,omitempty"`
}

// FormField describes one field of an InputForm.
type FormField struct {
	Name        string   `json:"name"`
	Label       string   `json:"label"`
	Type        string   `json:"type"` // text|number|date|textarea|select
	Required    bool     `json:"required,omitempty"`
	Placeholder string   `json:"placeholder,omitempty"`
	Options     []string `json:"options,omitempty"` // select fields only
}

// InputFormConfig collects new rows for the data bag under DataKey.
type InputFormConfig struct {
	Title       string      `json:"title"`
	DataKey     string      `json:"dataKey,omitempty"`
	Fields      []FormField `json:"fields"`
	SubmitLabel string      `json:"submitLabel,omitempty"`
}

// TextBlockConfig displays static text or instructions.
type TextBlockConfig struct {
	Text    string `json:"text"`
	Variant string `json:"variant,omitempty"` // default|info|warning|success
}

// ChartConfig describes a data visualization.
type ChartConfig struct {
	Title       string           `json:"title"`
	Description string           `json:"description,omitempty"`
	Type        string           `json:"type"` // line|bar|pie|area
	Data        []map[string]any `json:"data"`
	XAxisKey    string           `json:"xAxisKey,omitempty"` // default "name"
	YAxisKey    string           `json:"yAxisKey,omitempty"` // default "value"
}

// NewComponent builds a component from a typed config struct.
// Used by tests and the deterministic dev-server synthesizer.
func NewComponent(id string, typ ComponentType, config any) (Component, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Component{}, ErrInvalidComponentID
	}
	raw, err := json.Marshal(config)
	if err != nil {
		return Component{}, fmt.Errorf("marshal %s config: %w", typ, err)
	}
	return Component{ID: id, Type: typ, Config: raw}, nil
}

// ValidateComponents checks component IDs are non-empty and unique within
// one artifact. Unknown types are allowed here: they are a render-time
// concern, contained per component.
func ValidateComponents(components []Component) error {
	seen := make(map[string]struct{}, len(components))
	for _, c := range components {
		if strings.TrimSpace(c.ID) == "" {
			return ErrInvalidComponentID
		}
		if _, dup := seen[c.ID]; dup {
			return fmt.Errorf("%w: %q", ErrDuplicateComponentID, c.ID)
		}
		seen[c.ID] = struct{}{}
	}
	return nil
}
