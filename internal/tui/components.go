package tui

import (
	"fmt"
	"slices"
	"strings"

	"github.com/maquette-dev/maquette/internal/render"
)

// Presenters turn resolved views into terminal cards. One view in, one
// card out; broken components render as a contained card like any other.

const (
	cardWidth    = 56
	barWidth     = 40
	maxListRows  = 8
	maxBarPoints = 10
)

// renderViews lays the cards out vertically in array order.
func (m *Model) renderViews(views []render.View) string {
	var b strings.Builder
	for i, v := range views {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(m.renderView(v))
		b.WriteString("\n")
	}
	return b.String()
}

func (m *Model) renderView(v render.View) string {
	switch v := v.(type) {
	case render.MetricView:
		return m.renderMetric(v)
	case render.ListView:
		return m.renderList(v)
	case render.ProgressView:
		return m.renderProgress(v)
	case render.FormView:
		return m.renderForm(v)
	case render.TextView:
		return m.renderText(v)
	case render.ChartView:
		return m.renderChart(v)
	case render.UnknownView:
		return m.card(string(v.Type), m.styles.Muted.Render("This component type is not supported here."))
	case render.ErrorView:
		return m.card(string(v.Type), m.styles.Error.Render(v.Reason))
	case render.EmptyStateView:
		return m.styles.Muted.Render("No components yet. " + cmdBuild + " turns the spec into a tool.")
	default:
		return ""
	}
}

func (m *Model) card(title, body string) string {
	var b strings.Builder
	if title != "" {
		b.WriteString(m.styles.CardTitle.Render(title))
		b.WriteString("\n")
	}
	b.WriteString(body)
	return m.styles.Card.Width(cardWidth).Render(b.String())
}

func (m *Model) renderMetric(v render.MetricView) string {
	var b strings.Builder
	if v.Icon != "" {
		b.WriteString(v.Icon)
		b.WriteString(" ")
	}
	b.WriteString(m.styles.Value.Render(formatValue(v.Value)))
	if v.Unit != "" {
		b.WriteString(" ")
		b.WriteString(m.styles.Muted.Render(v.Unit))
	}
	if v.Target != nil {
		b.WriteString(m.styles.Muted.Render("  / " + formatValue(v.Target)))
	}
	if v.Description != "" {
		b.WriteString("\n")
		b.WriteString(m.styles.Muted.Render(v.Description))
	}
	return m.card(v.Title, b.String())
}

func (m *Model) renderList(v render.ListView) string {
	if len(v.Rows) == 0 {
		return m.card(v.Title, m.styles.Muted.Render(v.EmptyMessage))
	}

	fields := v.Fields
	if len(fields) == 0 {
		fields = rowFields(v.Rows[0])
	}

	var b strings.Builder
	b.WriteString(m.styles.Muted.Render(strings.Join(fields, "  ")))
	rows := v.Rows
	if len(rows) > maxListRows {
		rows = rows[len(rows)-maxListRows:]
	}
	for _, row := range rows {
		b.WriteString("\n")
		cells := make([]string, 0, len(fields))
		for _, f := range fields {
			cells = append(cells, formatValue(row[f]))
		}
		b.WriteString(strings.Join(cells, "  "))
	}
	if len(v.Rows) > maxListRows {
		b.WriteString("\n")
		b.WriteString(m.styles.Muted.Render(fmt.Sprintf("… %d more", len(v.Rows)-maxListRows)))
	}
	return m.card(v.Title, b.String())
}

func (m *Model) renderProgress(v render.ProgressView) string {
	filled := int(v.Percent / 100 * barWidth)
	if filled > barWidth {
		filled = barWidth
	}

	var b strings.Builder
	b.WriteString(m.styles.BarFill.Render(strings.Repeat("█", filled)))
	b.WriteString(m.styles.BarEmpty.Render(strings.Repeat("░", barWidth-filled)))
	if v.ShowPercentage {
		b.WriteString(fmt.Sprintf(" %.0f%%", v.Percent))
	}
	b.WriteString("\n")
	b.WriteString(m.styles.Muted.Render(fmt.Sprintf("%s of %s", formatNumber(v.Value), formatNumber(v.Max))))
	if v.Description != "" {
		b.WriteString("\n")
		b.WriteString(m.styles.Muted.Render(v.Description))
	}
	return m.card(v.Title, b.String())
}

func (m *Model) renderForm(v render.FormView) string {
	var b strings.Builder
	for i, f := range v.Fields {
		if i > 0 {
			b.WriteString("\n")
		}
		label := f.Label
		if label == "" {
			label = f.Name
		}
		b.WriteString(label)
		if f.Required {
			b.WriteString(m.styles.Error.Render("*"))
		}
		b.WriteString(m.styles.Muted.Render("  (" + f.Type + ")"))
	}
	b.WriteString("\n")
	b.WriteString(m.styles.Muted.Render(cmdAdd + " " + v.ID + " to fill this form"))
	return m.card(v.Title, b.String())
}

func (m *Model) renderText(v render.TextView) string {
	switch v.Variant {
	case "heading":
		return m.styles.CardTitle.Render(v.Text)
	case "caption":
		return m.styles.Muted.Render(v.Text)
	default:
		return v.Text
	}
}

func (m *Model) renderChart(v render.ChartView) string {
	if len(v.Points) == 0 {
		return m.card(v.Title, m.styles.Muted.Render("No data points yet."))
	}

	points := v.Points
	if len(points) > maxBarPoints {
		points = points[len(points)-maxBarPoints:]
	}

	maxVal := points[0].Value
	labelWidth := len(points[0].Label)
	for _, p := range points {
		if p.Value > maxVal {
			maxVal = p.Value
		}
		if len(p.Label) > labelWidth {
			labelWidth = len(p.Label)
		}
	}

	var b strings.Builder
	for i, p := range points {
		if i > 0 {
			b.WriteString("\n")
		}
		width := 0
		if maxVal > 0 {
			width = int(p.Value / maxVal * barWidth)
		}
		b.WriteString(fmt.Sprintf("%-*s ", labelWidth, p.Label))
		b.WriteString(m.styles.BarFill.Render(strings.Repeat("▇", max(width, 1))))
		b.WriteString(m.styles.Muted.Render(" " + formatNumber(p.Value)))
	}
	if v.Description != "" {
		b.WriteString("\n")
		b.WriteString(m.styles.Muted.Render(v.Description))
	}
	return m.card(v.Title, b.String())
}

// rowFields gives a stable field order for rows when the config names
// none; map iteration order is unusable, so sort keys.
func rowFields(row map[string]any) []string {
	fields := make([]string, 0, len(row))
	for k := range row {
		fields = append(fields, k)
	}
	slices.Sort(fields)
	return fields
}

func formatValue(v any) string {
	switch v := v.(type) {
	case nil:
		return "-"
	case float64:
		return formatNumber(v)
	case string:
		return v
	default:
		return fmt.Sprintf("%v", v)
	}
}

// formatNumber drops the fraction when the value is whole.
func formatNumber(f float64) string {
	if f == float64(int64(f)) {
		return fmt.Sprintf("%d", int64(f))
	}
	return fmt.Sprintf("%.2f", f)
}
