// Package models defines the domain entities for the finance tracker.
package models

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DateLayout is the layout of every date field in a FinancialRecord.
const DateLayout = "2006-01-02"

// MaxNameLength is the maximum allowed length for names and descriptions.
const MaxNameLength = 120

var (
	// ErrRecordNotFound is returned by stores when an identity has no record yet.
	ErrRecordNotFound = errors.New("financial record not found")
	// ErrEntryNotFound is returned when a mutation references an unknown id.
	ErrEntryNotFound = errors.New("entry not found")
)

func init() {
	// Documents store amounts as JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true
}

// NewID returns a fresh entry id. Replaced in tests that need stable ids.
var NewID = uuid.NewString

// Category is the fixed expense category enumeration.
type Category string

// Expense categories.
const (
	CategoryFood          Category = "Food"
	CategoryTransport     Category = "Transport"
	CategoryRent          Category = "Rent"
	CategoryEntertainment Category = "Entertainment"
	CategoryShopping      Category = "Shopping"
	CategoryUtilities     Category = "Utilities"
	CategoryOther         Category = "Other"
)

// Categories lists every category in display order.
var Categories = []Category{
	CategoryFood,
	CategoryTransport,
	CategoryRent,
	CategoryEntertainment,
	CategoryShopping,
	CategoryUtilities,
	CategoryOther,
}

// CategoryNames returns the category names as plain strings.
func CategoryNames() []string {
	names := make([]string, len(Categories))
	for i, c := range Categories {
		names[i] = string(c)
	}
	return names
}

// ParseCategory resolves a category name case-insensitively.
func ParseCategory(name string) (Category, error) {
	name = strings.TrimSpace(name)
	for _, c := range Categories {
		if strings.EqualFold(string(c), name) {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown category %q", name)
}

// Priority ranks wishlist items.
type Priority string

// Wishlist priorities.
const (
	PriorityHigh   Priority = "High"
	PriorityMedium Priority = "Medium"
	PriorityLow    Priority = "Low"
)

// ParsePriority resolves a priority name case-insensitively. Empty means Medium.
func ParsePriority(name string) (Priority, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return PriorityMedium, nil
	}
	for _, p := range []Priority{PriorityHigh, PriorityMedium, PriorityLow} {
		if strings.EqualFold(string(p), name) {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown priority %q", name)
}

// IncomeEvent is a realized income entry.
type IncomeEvent struct {
	ID     string          `json:"id" validate:"required"`
	Amount decimal.Decimal `json:"amount" validate:"gte=0"`
	Date   string          `json:"date" validate:"required"`
}

// Bill is a scheduled obligation. A paid deposit is recoverable money, not an expense.
type Bill struct {
	ID        string          `json:"id" validate:"required"`
	Name      string          `json:"name" validate:"required,max=120"`
	Amount    decimal.Decimal `json:"amount" validate:"gte=0"`
	DueDate   string          `json:"dueDate"`
	IsPaid    bool            `json:"isPaid"`
	IsDeposit bool            `json:"isDeposit,omitempty"`
}

// WishlistItem is an aspirational purchase.
type WishlistItem struct {
	ID       string          `json:"id" validate:"required"`
	Name     string          `json:"name" validate:"required,max=120"`
	Price    decimal.Decimal `json:"price" validate:"gte=0"`
	Priority Priority        `json:"priority" validate:"omitempty,oneof=High Medium Low"`
	IsPinned bool            `json:"isPinned,omitempty"`
}

// Expense is realized spending.
type Expense struct {
	ID          string          `json:"id" validate:"required"`
	Description string          `json:"description" validate:"max=120"`
	Amount      decimal.Decimal `json:"amount" validate:"gte=0"`
	Category    Category        `json:"category" validate:"oneof=Food Transport Rent Entertainment Shopping Utilities Other"`
	Date        string          `json:"date" validate:"required"`
}

// FinancialRecord is the per-identity document holding every financial entry.
type FinancialRecord struct {
	WeeklyEstimate decimal.Decimal `json:"weeklyEstimate" validate:"gte=0"`
	IncomeHistory  []IncomeEvent   `json:"incomeHistory" validate:"dive"`
	Bills          []Bill          `json:"bills" validate:"dive"`
	Wishlist       []WishlistItem  `json:"wishlist" validate:"dive"`
	Expenses       []Expense       `json:"expenses" validate:"dive"`
}

// NewRecord returns the empty default record.
func NewRecord() *FinancialRecord {
	return &FinancialRecord{
		WeeklyEstimate: decimal.Zero,
		IncomeHistory:  []IncomeEvent{},
		Bills:          []Bill{},
		Wishlist:       []WishlistItem{},
		Expenses:       []Expense{},
	}
}

// Normalize replaces missing sequences with empty ones so documents never carry nulls.
func (r *FinancialRecord) Normalize() {
	if r.IncomeHistory == nil {
		r.IncomeHistory = []IncomeEvent{}
	}
	if r.Bills == nil {
		r.Bills = []Bill{}
	}
	if r.Wishlist == nil {
		r.Wishlist = []WishlistItem{}
	}
	if r.Expenses == nil {
		r.Expenses = []Expense{}
	}
}

// HasActivity reports whether any sequence holds an entry.
// The weekly estimate alone does not count as activity.
func (r *FinancialRecord) HasActivity() bool {
	if r == nil {
		return false
	}
	return len(r.IncomeHistory) > 0 ||
		len(r.Bills) > 0 ||
		len(r.Wishlist) > 0 ||
		len(r.Expenses) > 0
}

// Clone returns a deep copy of the record.
func (r *FinancialRecord) Clone() *FinancialRecord {
	if r == nil {
		return NewRecord()
	}
	return &FinancialRecord{
		WeeklyEstimate: r.WeeklyEstimate,
		IncomeHistory:  append([]IncomeEvent{}, r.IncomeHistory...),
		Bills:          append([]Bill{}, r.Bills...),
		Wishlist:       append([]WishlistItem{}, r.Wishlist...),
		Expenses:       append([]Expense{}, r.Expenses...),
	}
}
