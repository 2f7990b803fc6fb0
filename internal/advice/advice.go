// Package advice prepares advice requests and post-processes the generated text.
package advice

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/spendwise/internal/llm"
	"github.com/cleared-dev/spendwise/internal/model"
)

// TopN is how many spending categories are sent to the advice generator.
const TopN = 3

var actionLine = regexp.MustCompile(`^(?:[-*•]|\d+[.)])\s+\S`)

// BuildRequest assembles the advice generator payload from a report.
func BuildRequest(report model.InsightsReport, goal decimal.Decimal, period model.Period) llm.AdviceRequest {
	return llm.AdviceRequest{
		Goal:          goal,
		Period:        period,
		TopCategories: TopCategories(report, TopN),
		Subscriptions: report.Subscriptions,
		Anomalies:     report.Anomalies,
		WhatIf:        report.WhatIf,
	}
}

// TopCategories returns up to n spending categories, largest first, with
// amounts as positive figures. Ties keep declaration order.
func TopCategories(report model.InsightsReport, n int) []llm.CategoryTotal {
	out := []llm.CategoryTotal{}
	for _, cat := range model.Categories {
		if total, ok := report.TotalsByCategory[cat]; ok && total < 0 {
			out = append(out, llm.CategoryTotal{Category: cat, Amount: math.Abs(total)})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Amount > out[j].Amount })
	if len(out) > n {
		out = out[:n]
	}
	return out
}

// Filter keeps only bullet or numbered-step lines. If none survive, the
// trimmed input is returned unchanged.
func Filter(text string) string {
	var kept []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if actionLine.MatchString(line) {
			kept = append(kept, line)
		}
	}
	if len(kept) == 0 {
		return strings.TrimSpace(text)
	}
	return strings.Join(kept, "\n")
}

// Fallback renders deterministic advice from the report when the generator
// is unavailable. The output already satisfies Filter.
func Fallback(report model.InsightsReport, goal decimal.Decimal, period model.Period) string {
	var lines []string
	if goal.IsPositive() {
		lines = append(lines, fmt.Sprintf("- Goal: set aside %s this %s.", goal.StringFixed(2), periodWord(period)))
	}
	if top := TopCategories(report, 1); len(top) > 0 {
		lines = append(lines, fmt.Sprintf("- Biggest spend: %s at %.2f.", top[0].Category, top[0].Amount))
	}
	if w := report.WhatIf; w != nil {
		lines = append(lines, fmt.Sprintf("- Action: cut %s by %g%% to save about %.2f, leaving %.2f free to spend.",
			w.Category, w.CutPercent, w.ProjectedDelta, w.ProjectedFreeToSpend))
	}
	for _, a := range report.Anomalies {
		lines = append(lines, fmt.Sprintf("- Watch: %s spending reached %.2f recently against a typical week of %.2f.",
			a.Category, a.RecentWindowTotal, a.TrailingMedian))
	}
	for _, s := range report.Subscriptions {
		lines = append(lines, fmt.Sprintf("- Review subscription: %s at %.2f every %d days.", s.Merchant, s.AverageAmount, s.CadenceDays))
	}
	if len(lines) == 0 {
		lines = append(lines, "- Keep recording transactions; there is not enough spending yet for specific advice.")
	}
	return strings.Join(lines, "\n")
}

func periodWord(p model.Period) string {
	if p == model.PeriodWeek {
		return "week"
	}
	return "month"
}
