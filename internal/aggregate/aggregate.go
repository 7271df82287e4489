// Package aggregate derives balances and filtered views from a financial record.
package aggregate

import (
	"sync"

	"github.com/shopspring/decimal"
	"gitlab.com/yelinaung/moniclear/internal/models"
)

// Summary holds every value derived from a record.
type Summary struct {
	TotalHistoryIncome  decimal.Decimal
	TotalExpenses       decimal.Decimal
	TotalUnpaidBills    decimal.Decimal
	TotalPaidBills      decimal.Decimal
	TotalHeldDeposits   decimal.Decimal
	ConfirmedBalance    decimal.Decimal
	ProjectedBalance    decimal.Decimal
	TotalNetWorth       decimal.Decimal
	PinnedWishlistItems []models.WishlistItem
}

// Compute derives the summary of r. A nil record yields zero totals.
func Compute(r *models.FinancialRecord) Summary {
	s := Summary{
		TotalHistoryIncome:  decimal.Zero,
		TotalExpenses:       decimal.Zero,
		TotalUnpaidBills:    decimal.Zero,
		TotalPaidBills:      decimal.Zero,
		TotalHeldDeposits:   decimal.Zero,
		PinnedWishlistItems: []models.WishlistItem{},
	}
	if r == nil {
		s.ConfirmedBalance = decimal.Zero
		s.ProjectedBalance = decimal.Zero
		s.TotalNetWorth = decimal.Zero
		return s
	}

	for _, e := range r.IncomeHistory {
		s.TotalHistoryIncome = s.TotalHistoryIncome.Add(e.Amount)
	}
	for _, e := range r.Expenses {
		s.TotalExpenses = s.TotalExpenses.Add(e.Amount)
	}
	for _, b := range r.Bills {
		if !b.IsPaid {
			s.TotalUnpaidBills = s.TotalUnpaidBills.Add(b.Amount)
			continue
		}
		s.TotalPaidBills = s.TotalPaidBills.Add(b.Amount)
		if b.IsDeposit {
			s.TotalHeldDeposits = s.TotalHeldDeposits.Add(b.Amount)
		}
	}
	for _, w := range r.Wishlist {
		if w.IsPinned {
			s.PinnedWishlistItems = append(s.PinnedWishlistItems, w)
		}
	}

	s.ConfirmedBalance = s.TotalHistoryIncome.Sub(s.TotalExpenses).Sub(s.TotalPaidBills)
	s.ProjectedBalance = s.ConfirmedBalance.Add(r.WeeklyEstimate)
	s.TotalNetWorth = s.ConfirmedBalance.Add(s.TotalHeldDeposits)
	return s
}

// CategoryTotal is the spending of one category.
type CategoryTotal struct {
	Category models.Category
	Total    decimal.Decimal
}

// ExpensesByCategory sums expenses per category in models.Categories order,
// skipping categories without spending.
func ExpensesByCategory(r *models.FinancialRecord) []CategoryTotal {
	if r == nil {
		return nil
	}
	totals := make(map[models.Category]decimal.Decimal)
	for _, e := range r.Expenses {
		totals[e.Category] = totals[e.Category].Add(e.Amount)
	}

	var out []CategoryTotal
	for _, c := range models.Categories {
		if total, ok := totals[c]; ok {
			out = append(out, CategoryTotal{Category: c, Total: total})
		}
	}
	return out
}

// Engine memoizes the summary of the last record it saw. Records are treated as
// immutable snapshots, so a new pointer means new content.
type Engine struct {
	mu      sync.Mutex
	last    *models.FinancialRecord
	summary Summary
	valid   bool
}

// NewEngine creates an empty Engine.
func NewEngine() *Engine {
	return &Engine{}
}

// Summary returns the summary of r, recomputing only when r is a different record.
func (e *Engine) Summary(r *models.FinancialRecord) Summary {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.valid && e.last == r {
		return e.summary
	}
	e.last = r
	e.summary = Compute(r)
	e.valid = true
	return e.summary
}
