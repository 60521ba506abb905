package render

import (
	"encoding/json"
	"fmt"

	"github.com/maquette-dev/maquette/internal/artifact"
)

// resolver turns one component plus the current data bag into a view.
// Resolvers never return an error; failures become ErrorView.
type resolver func(c artifact.Component, bag artifact.DataBag) View

// registry is the closed type set. Extending the vocabulary means adding a
// constant in the artifact package, a resolver here and a presenter in the
// TUI; there is deliberately no plugin mechanism, so the generation backend
// and this renderer always agree on a finite contract.
var registry = map[artifact.ComponentType]resolver{
	artifact.TypeMetricCard:  resolveMetricCard,
	artifact.TypeDataList:    resolveDataList,
	artifact.TypeProgressBar: resolveProgressBar,
	artifact.TypeInputForm:   resolveInputForm,
	artifact.TypeTextBlock:   resolveTextBlock,
	artifact.TypeChart:       resolveChart,
}

// Resolve maps one component to its view. Unknown types degrade to
// UnknownView; this function never panics, whatever the config holds.
func Resolve(c artifact.Component, bag artifact.DataBag) View {
	r, ok := registry[c.Type]
	if !ok {
		return UnknownView{ID: c.ID, Type: c.Type}
	}
	return r(c, bag)
}

// Missing config fields are defaulted per type rather than rejected by a
// schema gate; only values whose coercion would change semantics (a
// non-numeric ProgressBar value) are treated as render errors.

func resolveMetricCard(c artifact.Component, _ artifact.DataBag) View {
	var cfg artifact.MetricCardConfig
	if err := c.DecodeConfig(&cfg); err != nil {
		return configError(c, err)
	}
	return MetricView{
		ID:          c.ID,
		Title:       cfg.Title,
		Value:       cfg.Value,
		Target:      cfg.Target,
		Unit:        cfg.Unit,
		Icon:        cfg.Icon,
		Description: cfg.Description,
	}
}

func resolveDataList(c artifact.Component, bag artifact.DataBag) View {
	var cfg artifact.DataListConfig
	if err := c.DecodeConfig(&cfg); err != nil {
		return configError(c, err)
	}

	view := ListView{
		ID:           c.ID,
		Title:        cfg.Title,
		Fields:       cfg.Fields,
		EmptyMessage: cfg.EmptyMessage,
	}
	if view.EmptyMessage == "" {
		view.EmptyMessage = "No entries yet"
	}

	// Dynamic wins whenever the key is present, even with zero rows;
	// static items are only the fallback for a never-written key.
	if raw, ok := bag[c.DataKey()]; ok {
		view.Dynamic = true
		view.Rows = toRows(raw)
	} else {
		view.Rows = cfg.Items
	}
	return view
}

func resolveProgressBar(c artifact.Component, _ artifact.DataBag) View {
	var cfg artifact.ProgressBarConfig
	if err := c.DecodeConfig(&cfg); err != nil {
		return configError(c, err)
	}

	value, ok := toFloat(cfg.Value)
	if !ok {
		return ErrorView{ID: c.ID, Type: c.Type,
			Reason: fmt.Sprintf("value %v is not numeric", cfg.Value)}
	}
	max, ok := toFloat(cfg.Max)
	if !ok || max <= 0 {
		return ErrorView{ID: c.ID, Type: c.Type,
			Reason: fmt.Sprintf("max %v is not a positive number", cfg.Max)}
	}

	percent := value / max * 100
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	return ProgressView{
		ID:             c.ID,
		Title:          cfg.Title,
		Value:          value,
		Max:            max,
		Percent:        percent,
		ShowPercentage: cfg.ShowPercentage,
		Description:    cfg.Description,
	}
}

func resolveInputForm(c artifact.Component, _ artifact.DataBag) View {
	var cfg artifact.InputFormConfig
	if err := c.DecodeConfig(&cfg); err != nil {
		return configError(c, err)
	}
	submit := cfg.SubmitLabel
	if submit == "" {
		submit = "Add"
	}
	return FormView{
		ID:          c.ID,
		Title:       cfg.Title,
		Fields:      cfg.Fields,
		SubmitLabel: submit,
		DataKey:     c.DataKey(),
	}
}

func resolveTextBlock(c artifact.Component, _ artifact.DataBag) View {
	var cfg artifact.TextBlockConfig
	if err := c.DecodeConfig(&cfg); err != nil {
		return configError(c, err)
	}
	return TextView{ID: c.ID, Text: cfg.Text, Variant: cfg.Variant}
}

func resolveChart(c artifact.Component, _ artifact.DataBag) View {
	var cfg artifact.ChartConfig
	if err := c.DecodeConfig(&cfg); err != nil {
		return configError(c, err)
	}

	xKey := cfg.XAxisKey
	if xKey == "" {
		xKey = "name"
	}
	yKey := cfg.YAxisKey
	if yKey == "" {
		yKey = "value"
	}

	view := ChartView{
		ID:          c.ID,
		Title:       cfg.Title,
		Description: cfg.Description,
		ChartType:   cfg.Type,
	}
	for _, row := range cfg.Data {
		value, ok := toFloat(row[yKey])
		if !ok {
			continue
		}
		view.Points = append(view.Points, ChartPoint{
			Label: fmt.Sprintf("%v", row[xKey]),
			Value: value,
		})
	}
	return view
}

func configError(c artifact.Component, err error) ErrorView {
	return ErrorView{ID: c.ID, Type: c.Type, Reason: err.Error()}
}

// toRows normalizes a bag value into list rows. Bag values arrive either as
// []map[string]any (in-process writes) or []any of maps (JSON round-trip).
func toRows(raw any) []map[string]any {
	switch v := raw.(type) {
	case []map[string]any:
		return v
	case []any:
		rows := make([]map[string]any, 0, len(v))
		for _, item := range v {
			if m, ok := item.(map[string]any); ok {
				rows = append(rows, m)
			}
		}
		return rows
	default:
		return nil
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
