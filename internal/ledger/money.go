package ledger

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Currency describes the unit all document amounts are rounded to.
// Amounts themselves are decimal.Decimal values; binary floats are never used
// for money anywhere in this package.
type Currency struct {
	Code   string
	Places int32
}

// KES is the default currency for all Atarah documents.
var KES = Currency{Code: "KES", Places: 2}

// NewCurrency returns a Currency with the given minor-unit precision.
// A negative precision indicates a broken caller, not user input, so it
// panics rather than defaulting.
func NewCurrency(code string, places int32) Currency {
	if places < 0 {
		panic(fmt.Sprintf("ledger: currency %q has negative precision %d", code, places))
	}
	return Currency{Code: code, Places: places}
}

// Round rounds d half-up to the currency's minor unit. All document amounts
// in this package are non-negative, so decimal's round-half-away-from-zero
// is exactly half-up here.
func (c Currency) Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(c.Places)
}

var zero = decimal.Zero

func isNegative(d decimal.Decimal) bool {
	return d.Cmp(zero) < 0
}

func isPositive(d decimal.Decimal) bool {
	return d.Cmp(zero) > 0
}
