package core

import "github.com/shopspring/decimal"

// CategoryAmount represents an amount aggregated by category name.
type CategoryAmount struct {
	Name   string
	Amount decimal.Decimal
}

// MonthSummary is the per-category spend for a specific year+month.
type MonthSummary struct {
	Year       int
	Month      int // 1-12
	Total      decimal.Decimal
	ByCategory []CategoryAmount // sorted by amount, largest first
}

// IsEmpty reports whether no expense was counted for the month.
func (s MonthSummary) IsEmpty() bool {
	return len(s.ByCategory) == 0
}
