package model

import "strings"

// Category is one label from the fixed spending-type enumeration.
type Category string

const (
	CategoryGroceries     Category = "Groceries"
	CategoryDining        Category = "Dining"
	CategoryTransport     Category = "Transport"
	CategoryShopping      Category = "Shopping"
	CategoryBills         Category = "Bills"
	CategorySubscriptions Category = "Subscriptions"
	CategoryEntertainment Category = "Entertainment"
	CategoryHealth        Category = "Health"
	CategoryEducation     Category = "Education"
	CategoryTravel        Category = "Travel"
	CategoryIncome        Category = "Income"
	CategoryOther         Category = "Other"
)

// Categories lists every category in declaration order.
var Categories = []Category{
	CategoryGroceries,
	CategoryDining,
	CategoryTransport,
	CategoryShopping,
	CategoryBills,
	CategorySubscriptions,
	CategoryEntertainment,
	CategoryHealth,
	CategoryEducation,
	CategoryTravel,
	CategoryIncome,
	CategoryOther,
}

// Precedence is the rule-classifier ordering; a lower index wins.
// Categories without an explicit rank sit between Shopping and Income.
var Precedence = []Category{
	CategorySubscriptions,
	CategoryBills,
	CategoryGroceries,
	CategoryDining,
	CategoryTransport,
	CategoryShopping,
	CategoryEntertainment,
	CategoryHealth,
	CategoryEducation,
	CategoryTravel,
	CategoryIncome,
	CategoryOther,
}

var (
	precedenceIndex = indexOf(Precedence)
	declIndex       = indexOf(Categories)
	byFoldedName    = func() map[string]Category {
		m := make(map[string]Category, len(Categories))
		for _, c := range Categories {
			m[strings.ToLower(string(c))] = c
		}
		return m
	}()
)

func indexOf(cats []Category) map[Category]int {
	m := make(map[Category]int, len(cats))
	for i, c := range cats {
		m[c] = i
	}
	return m
}

// ParseCategory matches s case-insensitively against the enumeration.
func ParseCategory(s string) (Category, bool) {
	c, ok := byFoldedName[strings.ToLower(strings.TrimSpace(s))]
	return c, ok
}

// Valid reports whether c belongs to the enumeration.
func (c Category) Valid() bool {
	_, ok := declIndex[c]
	return ok
}

// Clamp returns c, or Other when c is outside the enumeration.
func (c Category) Clamp() Category {
	if c.Valid() {
		return c
	}
	return CategoryOther
}

// Rank returns the precedence index of c. Unknown categories rank last.
func (c Category) Rank() int {
	if i, ok := precedenceIndex[c]; ok {
		return i
	}
	return len(Precedence)
}

// Order returns the declaration index of c, used for stable report ordering.
func (c Category) Order() int {
	if i, ok := declIndex[c]; ok {
		return i
	}
	return len(Categories)
}
