package commands

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"

	"github.com/cleared-dev/spendwise/internal/model"
	"github.com/cleared-dev/spendwise/internal/pipeline"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("4"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	adviceBorder = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

// renderReport writes a human-readable report.
func renderReport(w io.Writer, r *pipeline.Report) error {
	var b strings.Builder

	fmt.Fprintf(&b, "%s\n", titleStyle.Render(fmt.Sprintf("Spending insights (%s, %d-day window)", r.Period, r.WindowDays)))
	fmt.Fprintf(&b, "%s\n\n", mutedStyle.Render(fmt.Sprintf("%d transactions, goal %s", len(r.CategorizedRows), r.Goal.StringFixed(2))))

	b.WriteString(headerStyle.Render("Totals by category") + "\n")
	tw := tabwriter.NewWriter(&b, 0, 0, 2, ' ', tabwriter.AlignRight)
	for _, c := range sortedCategories(r.Insights.TotalsByCategory) {
		fmt.Fprintf(tw, "  %s\t%.2f\t\n", c, r.Insights.TotalsByCategory[c])
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	b.WriteString("\n" + headerStyle.Render("Subscriptions") + "\n")
	if len(r.Insights.Subscriptions) == 0 {
		b.WriteString(mutedStyle.Render("  none detected") + "\n")
	}
	for _, s := range r.Insights.Subscriptions {
		fmt.Fprintf(&b, "  %s  %.2f every ~%d days\n", s.Merchant, s.AverageAmount, s.CadenceDays)
	}

	b.WriteString("\n" + headerStyle.Render("Anomalies") + "\n")
	if len(r.Insights.Anomalies) == 0 {
		b.WriteString(mutedStyle.Render("  none") + "\n")
	}
	for _, a := range r.Insights.Anomalies {
		line := fmt.Sprintf("  %s: %.2f recently vs %.2f typical week", a.Category, a.RecentWindowTotal, a.TrailingMedian)
		b.WriteString(warnStyle.Render(line) + "\n")
	}

	if wi := r.Insights.WhatIf; wi != nil {
		b.WriteString("\n" + headerStyle.Render("What if") + "\n")
		fmt.Fprintf(&b, "  Cut %s by %.0f%% to save %.2f, leaving %.2f free to spend\n",
			wi.Category, wi.CutPercent, wi.ProjectedDelta, wi.ProjectedFreeToSpend)
	}

	if r.Advice != "" {
		b.WriteString("\n" + headerStyle.Render("Advice") + "\n")
		b.WriteString(adviceBorder.Render(r.Advice) + "\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// sortedCategories orders by the magnitude of the total, largest first.
func sortedCategories(totals map[model.Category]float64) []model.Category {
	cats := make([]model.Category, 0, len(totals))
	for c := range totals {
		cats = append(cats, c)
	}
	sort.Slice(cats, func(i, j int) bool {
		ai, aj := abs(totals[cats[i]]), abs(totals[cats[j]])
		if ai != aj {
			return ai > aj
		}
		return cats[i].Order() < cats[j].Order()
	})
	return cats
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
