package models

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterCustomTypeFunc(func(field reflect.Value) any {
			if d, ok := field.Interface().(decimal.Decimal); ok {
				return d.InexactFloat64()
			}
			return nil
		}, decimal.Decimal{})
	})
	return validate
}

// Validate checks the record invariants: amounts are non-negative, categories and
// priorities belong to their enumerations, and ids are unique within each sequence.
func (r *FinancialRecord) Validate() error {
	if err := validatorInstance().Struct(r); err != nil {
		return fmt.Errorf("invalid record: %w", err)
	}
	if err := uniqueIDs("incomeHistory", r.IncomeHistory, func(e IncomeEvent) string { return e.ID }); err != nil {
		return err
	}
	if err := uniqueIDs("bills", r.Bills, func(b Bill) string { return b.ID }); err != nil {
		return err
	}
	if err := uniqueIDs("wishlist", r.Wishlist, func(w WishlistItem) string { return w.ID }); err != nil {
		return err
	}
	return uniqueIDs("expenses", r.Expenses, func(e Expense) string { return e.ID })
}

func uniqueIDs[T any](field string, items []T, id func(T) string) error {
	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		key := id(item)
		if _, dup := seen[key]; dup {
			return fmt.Errorf("invalid record: duplicate id %q in %s", key, field)
		}
		seen[key] = struct{}{}
	}
	return nil
}

// ParseDate accepts a YYYY-MM-DD date or an RFC 3339 timestamp.
func ParseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if t, err := time.Parse(DateLayout, value); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", value)
	}
	return t, nil
}

// FormatDate formats t with DateLayout.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// EncodeRecord serializes the record as its JSON document body.
func EncodeRecord(r *FinancialRecord) ([]byte, error) {
	if r == nil {
		r = NewRecord()
	}
	r.Normalize()
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("failed to encode record: %w", err)
	}
	return data, nil
}

// DecodeRecord parses a JSON document body into a normalized record.
func DecodeRecord(data []byte) (*FinancialRecord, error) {
	r := NewRecord()
	if err := json.Unmarshal(data, r); err != nil {
		return nil, fmt.Errorf("failed to decode record: %w", err)
	}
	r.Normalize()
	return r, nil
}
