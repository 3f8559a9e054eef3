package types

import "github.com/shopspring/decimal"

// FormatCents renders an integer minor-unit amount as a two-decimal string.
// Arithmetic on money always stays in cents; this is for display only.
func FormatCents(cents int64) string {
	return decimal.New(cents, -2).StringFixed(2)
}

// Money is the wire representation of an amount.
type Money struct {
	Cents   int64  `json:"cents"`
	Display string `json:"display"`
}

// NewMoney pairs cents with their display string.
func NewMoney(cents int64) Money {
	return Money{Cents: cents, Display: FormatCents(cents)}
}
