package rules

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/cleared-dev/spendwise/internal/model"
)

const (
	// ConfidenceIncome is assigned to credits matching an Income keyword.
	ConfidenceIncome = 0.95
	// ConfidenceMatch is assigned to any other keyword hit.
	ConfidenceMatch = 0.9
	// ConfidenceMiss is assigned when no keyword matches.
	ConfidenceMiss = 0.4
)

type pattern struct {
	category model.Category
	keyword  string
	re       *regexp.Regexp
	seq      int
}

// Classifier assigns categories by whole-word keyword match.
// It holds only compiled patterns and is safe for concurrent use.
type Classifier struct {
	patterns []pattern
}

// NewClassifier compiles every keyword in t.
func NewClassifier(t Table) (*Classifier, error) {
	c := &Classifier{}
	// Walk categories in a fixed order so table order is deterministic.
	for _, cat := range model.Categories {
		for _, kw := range t.Keywords[cat] {
			re, err := CompileKeyword(kw)
			if err != nil {
				return nil, fmt.Errorf("compiling keyword %q: %w", kw, err)
			}
			c.patterns = append(c.patterns, pattern{category: cat, keyword: kw, re: re, seq: len(c.patterns)})
		}
	}
	return c, nil
}

// CompileKeyword builds a case-insensitive whole-word pattern. Letters, digits
// and underscore count as word characters; inner spaces match any whitespace run.
func CompileKeyword(kw string) (*regexp.Regexp, error) {
	parts := strings.Fields(kw)
	for i, p := range parts {
		parts[i] = regexp.QuoteMeta(p)
	}
	return regexp.Compile(`(?i)(?:^|[^\p{L}\p{N}_])` + strings.Join(parts, `\s+`) + `(?:$|[^\p{L}\p{N}_])`)
}

// Classify categorizes a single row.
func (c *Classifier) Classify(row model.TransactionRow) model.ClassifiedRow {
	out := model.ClassifiedRow{TransactionRow: row, Source: model.SourceRule}

	var hits []pattern
	for _, p := range c.patterns {
		if p.re.MatchString(row.Merchant) {
			hits = append(hits, p)
		}
	}

	if len(hits) == 0 {
		out.Category = model.CategoryOther
		out.Confidence = ConfidenceMiss
		out.Rationale = "no rule hit"
		return out
	}

	if row.Amount.IsPositive() {
		for _, h := range hits {
			if h.category == model.CategoryIncome {
				out.Category = model.CategoryIncome
				out.Confidence = ConfidenceIncome
				out.Rationale = fmt.Sprintf("income keyword %q on a credit", h.keyword)
				return out
			}
		}
	}

	sort.SliceStable(hits, func(i, j int) bool {
		a, b := hits[i], hits[j]
		if a.category.Rank() != b.category.Rank() {
			return a.category.Rank() < b.category.Rank()
		}
		if len(a.keyword) != len(b.keyword) {
			return len(a.keyword) > len(b.keyword)
		}
		return a.seq < b.seq
	})

	best := hits[0]
	out.Category = best.category
	out.Confidence = ConfidenceMatch
	out.Rationale = fmt.Sprintf("keyword %q", best.keyword)
	if n := distinctCategories(hits); n > 1 {
		out.Rationale += fmt.Sprintf(" (precedence over %d other categories)", n-1)
	}
	return out
}

// ClassifyAll categorizes rows, preserving order and length.
func (c *Classifier) ClassifyAll(rows []model.TransactionRow) []model.ClassifiedRow {
	out := make([]model.ClassifiedRow, len(rows))
	for i, r := range rows {
		out[i] = c.Classify(r)
	}
	return out
}

// Patterns returns the number of compiled keywords.
func (c *Classifier) Patterns() int { return len(c.patterns) }

func distinctCategories(hits []pattern) int {
	seen := make(map[model.Category]struct{}, len(hits))
	for _, h := range hits {
		seen[h.category] = struct{}{}
	}
	return len(seen)
}
