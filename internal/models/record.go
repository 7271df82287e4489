package models

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrNothingToRealize is returned when the weekly estimate is zero.
var ErrNothingToRealize = errors.New("weekly estimate is zero")

func requireNonNegative(what string, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return fmt.Errorf("%s must not be negative", what)
	}
	return nil
}

func cleanName(what, name string) (string, error) {
	name = strings.Join(strings.Fields(name), " ")
	if name == "" {
		return "", fmt.Errorf("%s is required", what)
	}
	if len(name) > MaxNameLength {
		return "", fmt.Errorf("%s is longer than %d characters", what, MaxNameLength)
	}
	return name, nil
}

// AddIncome appends a realized income entry.
func (r *FinancialRecord) AddIncome(amount decimal.Decimal, date string) (IncomeEvent, error) {
	if err := requireNonNegative("income amount", amount); err != nil {
		return IncomeEvent{}, err
	}
	if _, err := ParseDate(date); err != nil {
		return IncomeEvent{}, err
	}
	event := IncomeEvent{ID: NewID(), Amount: amount, Date: date}
	r.IncomeHistory = append(r.IncomeHistory, event)
	return event, nil
}

// RemoveIncome deletes an income entry by id.
func (r *FinancialRecord) RemoveIncome(id string) error {
	i := slices.IndexFunc(r.IncomeHistory, func(e IncomeEvent) bool { return e.ID == id })
	if i < 0 {
		return fmt.Errorf("income %q: %w", id, ErrEntryNotFound)
	}
	r.IncomeHistory = slices.Delete(r.IncomeHistory, i, i+1)
	return nil
}

// SetWeeklyEstimate replaces the pending income figure.
func (r *FinancialRecord) SetWeeklyEstimate(amount decimal.Decimal) error {
	if err := requireNonNegative("weekly estimate", amount); err != nil {
		return err
	}
	r.WeeklyEstimate = amount
	return nil
}

// RealizeWeeklyEstimate records the pending estimate as received income and resets it.
func (r *FinancialRecord) RealizeWeeklyEstimate(date string) (IncomeEvent, error) {
	if r.WeeklyEstimate.IsZero() {
		return IncomeEvent{}, ErrNothingToRealize
	}
	event, err := r.AddIncome(r.WeeklyEstimate, date)
	if err != nil {
		return IncomeEvent{}, err
	}
	r.WeeklyEstimate = decimal.Zero
	return event, nil
}

// AddBill appends an unpaid bill.
func (r *FinancialRecord) AddBill(name string, amount decimal.Decimal, dueDate string, isDeposit bool) (Bill, error) {
	name, err := cleanName("bill name", name)
	if err != nil {
		return Bill{}, err
	}
	if err := requireNonNegative("bill amount", amount); err != nil {
		return Bill{}, err
	}
	if dueDate != "" {
		if _, err := ParseDate(dueDate); err != nil {
			return Bill{}, err
		}
	}
	bill := Bill{ID: NewID(), Name: name, Amount: amount, DueDate: dueDate, IsDeposit: isDeposit}
	r.Bills = append(r.Bills, bill)
	return bill, nil
}

// RemoveBill deletes a bill by id.
func (r *FinancialRecord) RemoveBill(id string) error {
	i := slices.IndexFunc(r.Bills, func(b Bill) bool { return b.ID == id })
	if i < 0 {
		return fmt.Errorf("bill %q: %w", id, ErrEntryNotFound)
	}
	r.Bills = slices.Delete(r.Bills, i, i+1)
	return nil
}

// ToggleBillPaid flips the paid flag of a bill and returns the updated bill.
func (r *FinancialRecord) ToggleBillPaid(id string) (Bill, error) {
	i := slices.IndexFunc(r.Bills, func(b Bill) bool { return b.ID == id })
	if i < 0 {
		return Bill{}, fmt.Errorf("bill %q: %w", id, ErrEntryNotFound)
	}
	r.Bills[i].IsPaid = !r.Bills[i].IsPaid
	return r.Bills[i], nil
}

// AddWishlistItem appends a wishlist item.
func (r *FinancialRecord) AddWishlistItem(name string, price decimal.Decimal, priority Priority) (WishlistItem, error) {
	name, err := cleanName("item name", name)
	if err != nil {
		return WishlistItem{}, err
	}
	if err := requireNonNegative("item price", price); err != nil {
		return WishlistItem{}, err
	}
	if priority == "" {
		priority = PriorityMedium
	}
	item := WishlistItem{ID: NewID(), Name: name, Price: price, Priority: priority}
	r.Wishlist = append(r.Wishlist, item)
	return item, nil
}

// RemoveWishlistItem deletes a wishlist item by id.
func (r *FinancialRecord) RemoveWishlistItem(id string) error {
	i := slices.IndexFunc(r.Wishlist, func(w WishlistItem) bool { return w.ID == id })
	if i < 0 {
		return fmt.Errorf("wishlist item %q: %w", id, ErrEntryNotFound)
	}
	r.Wishlist = slices.Delete(r.Wishlist, i, i+1)
	return nil
}

// TogglePinned flips whether a wishlist item is surfaced in the summary.
func (r *FinancialRecord) TogglePinned(id string) (WishlistItem, error) {
	i := slices.IndexFunc(r.Wishlist, func(w WishlistItem) bool { return w.ID == id })
	if i < 0 {
		return WishlistItem{}, fmt.Errorf("wishlist item %q: %w", id, ErrEntryNotFound)
	}
	r.Wishlist[i].IsPinned = !r.Wishlist[i].IsPinned
	return r.Wishlist[i], nil
}

// MarkPurchased moves a wishlist item into expenses as a Shopping expense.
func (r *FinancialRecord) MarkPurchased(id, date string) (Expense, error) {
	i := slices.IndexFunc(r.Wishlist, func(w WishlistItem) bool { return w.ID == id })
	if i < 0 {
		return Expense{}, fmt.Errorf("wishlist item %q: %w", id, ErrEntryNotFound)
	}
	if _, err := ParseDate(date); err != nil {
		return Expense{}, err
	}
	item := r.Wishlist[i]
	expense := Expense{
		ID:          NewID(),
		Description: "Purchased: " + item.Name,
		Amount:      item.Price,
		Category:    CategoryShopping,
		Date:        date,
	}
	r.Wishlist = slices.Delete(r.Wishlist, i, i+1)
	r.Expenses = append(r.Expenses, expense)
	return expense, nil
}

// AddExpense appends realized spending.
func (r *FinancialRecord) AddExpense(description string, amount decimal.Decimal, category Category, date string) (Expense, error) {
	description, err := cleanName("description", description)
	if err != nil {
		return Expense{}, err
	}
	if err := requireNonNegative("expense amount", amount); err != nil {
		return Expense{}, err
	}
	if !slices.Contains(Categories, category) {
		return Expense{}, fmt.Errorf("unknown category %q", category)
	}
	if _, err := ParseDate(date); err != nil {
		return Expense{}, err
	}
	expense := Expense{ID: NewID(), Description: description, Amount: amount, Category: category, Date: date}
	r.Expenses = append(r.Expenses, expense)
	return expense, nil
}

// RemoveExpense deletes an expense by id.
func (r *FinancialRecord) RemoveExpense(id string) error {
	i := slices.IndexFunc(r.Expenses, func(e Expense) bool { return e.ID == id })
	if i < 0 {
		return fmt.Errorf("expense %q: %w", id, ErrEntryNotFound)
	}
	r.Expenses = slices.Delete(r.Expenses, i, i+1)
	return nil
}
