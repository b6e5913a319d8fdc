package http

import (
	"fmt"
	"html/template"
	"math"
	"strings"

	"fintrack/internal/fire"
)

const (
	chartWidth   = 640
	chartHeight  = 240
	chartPadding = 32
)

// netWorthChart draws the projected series as an inline SVG line chart. Only
// numbers are interpolated, so the output is safe to mark as HTML.
func netWorthChart(points []fire.Point, currency string) template.HTML {
	if len(points) == 0 {
		return ""
	}

	maxWorth := 0.0
	for _, p := range points {
		maxWorth = math.Max(maxWorth, p.NetWorth)
	}
	if maxWorth <= 0 {
		maxWorth = 1
	}

	plotW := float64(chartWidth - 2*chartPadding)
	plotH := float64(chartHeight - 2*chartPadding)
	step := 0.0
	if len(points) > 1 {
		step = plotW / float64(len(points)-1)
	}
	x := func(i int) float64 { return chartPadding + step*float64(i) }
	y := func(v float64) float64 { return chartPadding + plotH - v/maxWorth*plotH }

	var path strings.Builder
	for i, p := range points {
		cmd := "L"
		if i == 0 {
			cmd = "M"
		}
		fmt.Fprintf(&path, "%s%.1f %.1f ", cmd, x(i), y(p.NetWorth))
	}

	var b strings.Builder
	fmt.Fprintf(&b, `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %d %d" role="img" aria-label="Projected net worth">`, chartWidth, chartHeight)
	fmt.Fprintf(&b, `<line x1="%d" y1="%d" x2="%d" y2="%d" stroke="#ced4da"/>`,
		chartPadding, chartHeight-chartPadding, chartWidth-chartPadding, chartHeight-chartPadding)
	fmt.Fprintf(&b, `<path d="%s" fill="none" stroke="#3b5bdb" stroke-width="2"/>`, strings.TrimSpace(path.String()))
	for i, p := range points {
		if i%5 != 0 && i != len(points)-1 {
			continue
		}
		fmt.Fprintf(&b, `<circle cx="%.1f" cy="%.1f" r="3" fill="#3b5bdb"/>`, x(i), y(p.NetWorth))
		fmt.Fprintf(&b, `<text x="%.1f" y="%d" font-size="11" text-anchor="middle" fill="#6b7385">%d</text>`,
			x(i), chartHeight-chartPadding/3, p.Year)
	}
	fmt.Fprintf(&b, `<text x="%d" y="%d" font-size="11" fill="#6b7385">%s</text>`,
		chartPadding, chartPadding-10, template.HTMLEscapeString(compactAmount(maxWorth, currency)))
	b.WriteString(`</svg>`)

	return template.HTML(b.String())
}

// compactAmount abbreviates large values for the axis label.
func compactAmount(v float64, currency string) string {
	switch {
	case v >= 1e7:
		return fmt.Sprintf("%s%.1fCr", currency, v/1e7)
	case v >= 1e5:
		return fmt.Sprintf("%s%.1fL", currency, v/1e5)
	case v >= 1e3:
		return fmt.Sprintf("%s%.1fK", currency, v/1e3)
	default:
		return fmt.Sprintf("%s%.0f", currency, v)
	}
}
