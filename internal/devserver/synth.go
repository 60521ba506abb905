package devserver

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/maquette-dev/maquette/internal/artifact"
	"github.com/maquette-dev/maquette/internal/backend"
	"github.com/maquette-dev/maquette/internal/stream"
)

// The synthesizer is deterministic: the same prompt always yields the same
// spec and the same spec always yields the same component tree. That makes
// the dev server usable as a fixture for end-to-end tests and demos without
// any model behind it.

var numberPattern = regexp.MustCompile(`\b(\d[\d,\.]*)\s*(k|K|m|M)?\b`)

// synthesizeSpec builds the scripted event sequence for one prompt.
func synthesizeSpec(req backend.SpecRequest) ([]stream.Event, error) {
	title := titleFromPrompt(req.Prompt)
	target, hasTarget := targetFromPrompt(req.Prompt)

	var doc strings.Builder
	fmt.Fprintf(&doc, "# %s\n\n", title)
	fmt.Fprintf(&doc, "## Overview\n\nA tool for: %s\n\n", strings.TrimSpace(req.Prompt))
	doc.WriteString("## Features\n\n- Record entries with a simple form\n- Review all entries in a list\n- Track the headline number at a glance\n")
	if hasTarget {
		fmt.Fprintf(&doc, "- Progress toward the goal of %s\n", target)
	}
	if req.Spec != "" {
		doc.WriteString("\n## Revision notes\n\nRefined from the previous version per your request.\n")
	}

	specEvent, err := stream.SpecEvent(artifact.ProductSpec{
		Title:       title,
		Description: "Generated from: " + strings.TrimSpace(req.Prompt),
		Spec:        doc.String(),
	})
	if err != nil {
		return nil, err
	}

	return []stream.Event{
		stream.TextEvent(stream.EventThinking, "Reading your request..."),
		stream.TextEvent(stream.EventBuilding, "Drafting the product spec..."),
		specEvent,
		stream.TextEvent(stream.EventMessage,
			fmt.Sprintf("I drafted a spec for %q. Review it and build the tool when ready.", title)),
		stream.TextEvent(stream.EventDone, ""),
	}, nil
}

// synthesizeUI derives a component tree from the spec. Every tool gets the
// metric/form/list trio wired to one shared data key; a numeric goal in the
// spec adds a progress bar and a chart.
func synthesizeUI(req backend.UIRequest) (*backend.UIResponse, error) {
	dataKey := "entries"

	metric, err := artifact.NewComponent("headline_metric", artifact.TypeMetricCard,
		artifact.MetricCardConfig{
			Title:       req.Title,
			Value:       0,
			Description: "Current total across all entries",
		})
	if err != nil {
		return nil, err
	}

	form, err := artifact.NewComponent("entry_form", artifact.TypeInputForm,
		artifact.InputFormConfig{
			Title:   "Add entry",
			DataKey: dataKey,
			Fields: []artifact.FormField{
				{Name: "name", Label: "Name", Type: "text", Required: true},
				{Name: "amount", Label: "Amount", Type: "number", Required: true},
				{Name: "date", Label: "Date", Type: "date"},
			},
			SubmitLabel: "Add",
		})
	if err != nil {
		return nil, err
	}

	list, err := artifact.NewComponent("entry_list", artifact.TypeDataList,
		artifact.DataListConfig{
			Title:        "Entries",
			Fields:       []string{"name", "amount", "date"},
			DataKey:      dataKey,
			EmptyMessage: "Nothing recorded yet. Use the form above.",
		})
	if err != nil {
		return nil, err
	}

	components := []artifact.Component{metric, form, list}

	if target, ok := targetFromSpec(req.Spec); ok {
		progress, err := artifact.NewComponent("goal_progress", artifact.TypeProgressBar,
			artifact.ProgressBarConfig{
				Title:          "Goal progress",
				Value:          0,
				Max:            target,
				ShowPercentage: true,
			})
		if err != nil {
			return nil, err
		}
		chart, err := artifact.NewComponent("trend_chart", artifact.TypeChart,
			artifact.ChartConfig{
				Title: "Trend",
				Type:  "line",
				Data:  []map[string]any{},
			})
		if err != nil {
			return nil, err
		}
		components = append(components, progress, chart)
	}

	return &backend.UIResponse{
		Components: components,
		Data:       artifact.DataBag{dataKey: []any{}},
	}, nil
}

// titleFromPrompt derives a stable short title: the prompt's leading words,
// title-cased, stop words dropped.
func titleFromPrompt(prompt string) string {
	words := strings.Fields(strings.TrimSpace(prompt))
	kept := make([]string, 0, 4)
	for _, w := range words {
		switch strings.ToLower(w) {
		case "a", "an", "the", "my", "our", "to", "for", "me", "build", "create", "make", "i", "want", "need":
			continue
		}
		kept = append(kept, capitalize(w))
		if len(kept) == 4 {
			break
		}
	}
	if len(kept) == 0 {
		return "New Tool"
	}
	return strings.Join(kept, " ")
}

func capitalize(w string) string {
	if w == "" {
		return w
	}
	return strings.ToUpper(w[:1]) + w[1:]
}

// targetFromPrompt extracts a numeric goal like "100k" when present.
func targetFromPrompt(prompt string) (string, bool) {
	m := numberPattern.FindStringSubmatch(prompt)
	if m == nil {
		return "", false
	}
	return m[1] + m[2], true
}

// targetFromSpec converts the first goal number found in the spec document
// into a float for the progress bar.
func targetFromSpec(spec string) (float64, bool) {
	m := numberPattern.FindStringSubmatch(spec)
	if m == nil {
		return 0, false
	}
	raw := strings.ReplaceAll(m[1], ",", "")
	var value float64
	if _, err := fmt.Sscanf(raw, "%f", &value); err != nil {
		return 0, false
	}
	switch strings.ToLower(m[2]) {
	case "k":
		value *= 1_000
	case "m":
		value *= 1_000_000
	}
	if value <= 0 {
		return 0, false
	}
	return value, true
}
