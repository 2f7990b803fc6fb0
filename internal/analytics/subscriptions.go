package analytics

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/spendwise/internal/model"
	"github.com/cleared-dev/spendwise/internal/rules"
)

// DefaultAllowList names services that are recurring by nature.
var DefaultAllowList = []string{
	"spotify", "netflix", "disney plus", "hulu", "hbo max", "apple music",
	"icloud", "youtube premium", "amazon prime", "prime video", "audible",
	"patreon", "github", "dropbox", "adobe", "microsoft 365", "chatgpt",
}

// SubscriptionPolicy tunes subscription detection.
type SubscriptionPolicy struct {
	MinOccurrences  int
	CadenceMinDays  int
	CadenceMaxDays  int
	GapFallback     bool // accept when any single gap sits in the fallback band
	FallbackMinDays int
	FallbackMaxDays int
	MaxCV           float64
	AllowList       []string
}

// DefaultSubscriptionPolicy returns the stricter three-occurrence policy.
func DefaultSubscriptionPolicy() SubscriptionPolicy {
	return SubscriptionPolicy{
		MinOccurrences:  3,
		CadenceMinDays:  27,
		CadenceMaxDays:  33,
		FallbackMinDays: 25,
		FallbackMaxDays: 35,
		MaxCV:           0.15,
		AllowList:       DefaultAllowList,
	}
}

// SubscriptionDetector finds monthly-ish recurring debits.
type SubscriptionDetector struct {
	policy  SubscriptionPolicy
	allowed []*regexp.Regexp
}

// NewSubscriptionDetector compiles the allow-list.
func NewSubscriptionDetector(p SubscriptionPolicy) (*SubscriptionDetector, error) {
	d := &SubscriptionDetector{policy: p}
	for _, name := range p.AllowList {
		if strings.TrimSpace(name) == "" {
			continue
		}
		re, err := rules.CompileKeyword(name)
		if err != nil {
			return nil, fmt.Errorf("compiling allow-list entry %q: %w", name, err)
		}
		d.allowed = append(d.allowed, re)
	}
	return d, nil
}

type occurrence struct {
	date     time.Time
	amount   decimal.Decimal
	category model.Category
}

type merchantGroup struct {
	name string
	occ  []occurrence
}

// Detect returns candidates sorted by merchant. Rows with unparseable dates
// are ignored.
func (d *SubscriptionDetector) Detect(rows []model.ClassifiedRow) []model.SubscriptionCandidate {
	groups := map[string]*merchantGroup{}
	for _, r := range rows {
		if !r.IsDebit() {
			continue
		}
		t, ok := r.Time()
		if !ok {
			continue
		}
		key := strings.ToLower(strings.Join(strings.Fields(r.Merchant), " "))
		if key == "" {
			continue
		}
		g := groups[key]
		if g == nil {
			g = &merchantGroup{name: strings.TrimSpace(r.Merchant)}
			groups[key] = g
		}
		g.occ = append(g.occ, occurrence{date: t, amount: r.Amount.Abs(), category: r.Category})
	}

	out := []model.SubscriptionCandidate{}
	for _, g := range groups {
		if c, ok := d.evaluate(g); ok {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Merchant < out[j].Merchant })
	return out
}

func (d *SubscriptionDetector) evaluate(g *merchantGroup) (model.SubscriptionCandidate, bool) {
	if len(g.occ) < max(2, d.policy.MinOccurrences) {
		return model.SubscriptionCandidate{}, false
	}
	if !d.isAllowed(g.name) && !allRecurringCategories(g.occ) {
		return model.SubscriptionCandidate{}, false
	}

	sort.SliceStable(g.occ, func(i, j int) bool { return g.occ[i].date.Before(g.occ[j].date) })
	gaps := make([]float64, 0, len(g.occ)-1)
	for i := 1; i < len(g.occ); i++ {
		gaps = append(gaps, float64(daysBetween(g.occ[i-1].date, g.occ[i].date)))
	}
	medianGap := Median(gaps)
	if !d.monthly(medianGap, gaps) {
		return model.SubscriptionCandidate{}, false
	}

	amounts := make([]float64, len(g.occ))
	total := decimal.Zero
	for i, o := range g.occ {
		amounts[i] = o.amount.InexactFloat64()
		total = total.Add(o.amount)
	}
	if CoefficientOfVariation(amounts) >= d.policy.MaxCV {
		return model.SubscriptionCandidate{}, false
	}

	return model.SubscriptionCandidate{
		Merchant:      g.name,
		AverageAmount: Round2(total.Div(decimal.NewFromInt(int64(len(g.occ))))),
		CadenceDays:   int(math.Round(medianGap)),
	}, true
}

func (d *SubscriptionDetector) monthly(medianGap float64, gaps []float64) bool {
	p := d.policy
	if medianGap >= float64(p.CadenceMinDays) && medianGap <= float64(p.CadenceMaxDays) {
		return true
	}
	if !p.GapFallback {
		return false
	}
	for _, g := range gaps {
		if g >= float64(p.FallbackMinDays) && g <= float64(p.FallbackMaxDays) {
			return true
		}
	}
	return false
}

func (d *SubscriptionDetector) isAllowed(merchant string) bool {
	for _, re := range d.allowed {
		if re.MatchString(merchant) {
			return true
		}
	}
	return false
}

func allRecurringCategories(occ []occurrence) bool {
	for _, o := range occ {
		if o.category != model.CategorySubscriptions && o.category != model.CategoryBills {
			return false
		}
	}
	return true
}
