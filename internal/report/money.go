// Package report renders a financial record for people: formatted amounts,
// a markdown summary, an expense chart and a CSV export.
package report

import (
	"math"
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

var (
	maxMinor = decimal.NewFromInt(math.MaxInt64)
	minMinor = decimal.NewFromInt(math.MinInt64)
)

// FormatAmount formats amount in currency code, e.g. "$1,234.50".
// Unknown codes fall back to a plain two-decimal number.
func FormatAmount(amount decimal.Decimal, code string) string {
	currency := money.GetCurrency(code)
	if currency == nil {
		return amount.StringFixed(2)
	}
	minor := amount.Shift(int32(currency.Fraction)).Round(0)
	if minor.GreaterThan(maxMinor) || minor.LessThanOrEqual(minMinor) {
		return formatLarge(amount, currency)
	}
	return money.New(minor.IntPart(), currency.Code).Display()
}

// formatLarge lays out amounts whose minor units do not fit in an int64
// with the currency's own template and separators.
func formatLarge(amount decimal.Decimal, c *money.Currency) string {
	whole, frac, _ := strings.Cut(amount.Abs().StringFixed(int32(c.Fraction)), ".")
	if c.Thousand != "" {
		for i := len(whole) - 3; i > 0; i -= 3 {
			whole = whole[:i] + c.Thousand + whole[i:]
		}
	}
	if frac != "" {
		whole += c.Decimal + frac
	}
	s := strings.Replace(c.Template, "1", whole, 1)
	s = strings.Replace(s, "$", c.Grapheme, 1)
	if amount.IsNegative() {
		s = "-" + s
	}
	return s
}
