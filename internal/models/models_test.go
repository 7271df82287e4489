package models

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestNewRecord(t *testing.T) {
	t.Parallel()

	t.Run("starts empty", func(t *testing.T) {
		t.Parallel()
		r := NewRecord()

		require.True(t, r.WeeklyEstimate.IsZero())
		require.Empty(t, r.IncomeHistory)
		require.Empty(t, r.Bills)
		require.Empty(t, r.Wishlist)
		require.Empty(t, r.Expenses)
		require.False(t, r.HasActivity())
	})

	t.Run("encodes sequences as arrays and amounts as numbers", func(t *testing.T) {
		t.Parallel()
		r := NewRecord()
		r.WeeklyEstimate = decimal.RequireFromString("250.5")

		data, err := EncodeRecord(r)
		require.NoError(t, err)
		require.JSONEq(t,
			`{"weeklyEstimate":250.5,"incomeHistory":[],"bills":[],"wishlist":[],"expenses":[]}`,
			string(data))
	})
}

func TestHasActivity(t *testing.T) {
	t.Parallel()

	t.Run("weekly estimate alone is not activity", func(t *testing.T) {
		t.Parallel()
		r := NewRecord()
		require.NoError(t, r.SetWeeklyEstimate(decimal.NewFromInt(300)))
		require.False(t, r.HasActivity())
	})

	t.Run("any sequence entry is activity", func(t *testing.T) {
		t.Parallel()
		for name, mutate := range map[string]func(*FinancialRecord){
			"income":   func(r *FinancialRecord) { _, _ = r.AddIncome(decimal.NewFromInt(1), "2026-01-02") },
			"bill":     func(r *FinancialRecord) { _, _ = r.AddBill("Rent", decimal.NewFromInt(1), "", false) },
			"wishlist": func(r *FinancialRecord) { _, _ = r.AddWishlistItem("Bike", decimal.NewFromInt(1), "") },
			"expense": func(r *FinancialRecord) {
				_, _ = r.AddExpense("Lunch", decimal.NewFromInt(1), CategoryFood, "2026-01-02")
			},
		} {
			r := NewRecord()
			mutate(r)
			require.True(t, r.HasActivity(), name)
		}
	})

	t.Run("nil record has no activity", func(t *testing.T) {
		t.Parallel()
		var r *FinancialRecord
		require.False(t, r.HasActivity())
	})
}

func TestDecodeRecord(t *testing.T) {
	t.Parallel()

	t.Run("normalizes null and missing sequences", func(t *testing.T) {
		t.Parallel()
		r, err := DecodeRecord([]byte(`{"weeklyEstimate":10,"bills":null}`))
		require.NoError(t, err)
		require.NotNil(t, r.Bills)
		require.NotNil(t, r.IncomeHistory)
		require.NotNil(t, r.Wishlist)
		require.NotNil(t, r.Expenses)
		require.True(t, r.WeeklyEstimate.Equal(decimal.NewFromInt(10)))
	})

	t.Run("accepts quoted amounts", func(t *testing.T) {
		t.Parallel()
		r, err := DecodeRecord([]byte(`{"incomeHistory":[{"id":"i1","amount":"12.50","date":"2026-01-01"}]}`))
		require.NoError(t, err)
		require.True(t, r.IncomeHistory[0].Amount.Equal(decimal.RequireFromString("12.5")))
	})

	t.Run("keeps field names verbatim", func(t *testing.T) {
		t.Parallel()
		doc := `{"weeklyEstimate":0,"incomeHistory":[],` +
			`"bills":[{"id":"b1","name":"Deposit","amount":500,"dueDate":"2026-02-01","isPaid":true,"isDeposit":true}],` +
			`"wishlist":[{"id":"w1","name":"Bike","price":120,"priority":"High","isPinned":true}],` +
			`"expenses":[{"id":"e1","description":"Bus","amount":2.5,"category":"Transport","date":"2026-02-02"}]}`
		r, err := DecodeRecord([]byte(doc))
		require.NoError(t, err)
		require.True(t, r.Bills[0].IsDeposit)
		require.True(t, r.Wishlist[0].IsPinned)
		require.Equal(t, CategoryTransport, r.Expenses[0].Category)

		data, err := EncodeRecord(r)
		require.NoError(t, err)
		require.JSONEq(t, doc, string(data))
	})

	t.Run("rejects malformed documents", func(t *testing.T) {
		t.Parallel()
		_, err := DecodeRecord([]byte(`{"bills":`))
		require.Error(t, err)
	})
}

func TestMarkPurchased(t *testing.T) {
	t.Parallel()

	t.Run("moves the item into a shopping expense", func(t *testing.T) {
		t.Parallel()
		r := NewRecord()
		r.Wishlist = append(r.Wishlist, WishlistItem{ID: "w1", Name: "Bike", Price: decimal.NewFromInt(120)})

		expense, err := r.MarkPurchased("w1", "2026-03-01")
		require.NoError(t, err)

		require.Empty(t, r.Wishlist)
		require.Len(t, r.Expenses, 1)
		require.Equal(t, expense, r.Expenses[0])
		require.True(t, expense.Amount.Equal(decimal.NewFromInt(120)))
		require.Equal(t, CategoryShopping, expense.Category)
		require.Contains(t, expense.Description, "Bike")
		require.Equal(t, "2026-03-01", expense.Date)
	})

	t.Run("unknown item fails without changes", func(t *testing.T) {
		t.Parallel()
		r := NewRecord()
		r.Wishlist = append(r.Wishlist, WishlistItem{ID: "w1", Name: "Bike", Price: decimal.NewFromInt(120)})

		_, err := r.MarkPurchased("w2", "2026-03-01")
		require.ErrorIs(t, err, ErrEntryNotFound)
		require.Len(t, r.Wishlist, 1)
		require.Empty(t, r.Expenses)
	})

	t.Run("keeps other items in order", func(t *testing.T) {
		t.Parallel()
		r := NewRecord()
		r.Wishlist = append(r.Wishlist,
			WishlistItem{ID: "w1", Name: "Bike", Price: decimal.NewFromInt(120)},
			WishlistItem{ID: "w2", Name: "Lamp", Price: decimal.NewFromInt(40)},
			WishlistItem{ID: "w3", Name: "Desk", Price: decimal.NewFromInt(200)},
		)

		_, err := r.MarkPurchased("w2", "2026-03-01")
		require.NoError(t, err)
		require.Equal(t, "w1", r.Wishlist[0].ID)
		require.Equal(t, "w3", r.Wishlist[1].ID)
	})
}

func TestMarkPurchased_Property(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		r := NewRecord()
		n := rapid.IntRange(1, 10).Draw(t, "items")
		for i := 0; i < n; i++ {
			price := decimal.NewFromInt(rapid.Int64Range(0, 100000).Draw(t, "price")).Shift(-2)
			_, err := r.AddWishlistItem(rapid.StringMatching(`[A-Za-z]{1,12}`).Draw(t, "name"), price, "")
			require.NoError(t, err)
		}
		pick := r.Wishlist[rapid.IntRange(0, n-1).Draw(t, "pick")]

		expense, err := r.MarkPurchased(pick.ID, "2026-01-01")
		require.NoError(t, err)
		require.Len(t, r.Wishlist, n-1)
		require.Len(t, r.Expenses, 1)
		require.True(t, expense.Amount.Equal(pick.Price))
		require.Contains(t, expense.Description, pick.Name)
		for _, w := range r.Wishlist {
			require.NotEqual(t, pick.ID, w.ID)
		}
	})
}

func TestMutations(t *testing.T) {
	t.Parallel()

	t.Run("ids are unique", func(t *testing.T) {
		t.Parallel()
		r := NewRecord()
		seen := map[string]bool{}
		for i := 0; i < 50; i++ {
			e, err := r.AddIncome(decimal.NewFromInt(int64(i)), "2026-01-01")
			require.NoError(t, err)
			require.False(t, seen[e.ID])
			seen[e.ID] = true
		}
		require.NoError(t, r.Validate())
	})

	t.Run("rejects negative amounts", func(t *testing.T) {
		t.Parallel()
		r := NewRecord()
		neg := decimal.NewFromInt(-1)

		_, err := r.AddIncome(neg, "2026-01-01")
		require.Error(t, err)
		_, err = r.AddBill("Rent", neg, "", false)
		require.Error(t, err)
		_, err = r.AddWishlistItem("Bike", neg, PriorityLow)
		require.Error(t, err)
		_, err = r.AddExpense("Lunch", neg, CategoryFood, "2026-01-01")
		require.Error(t, err)
		require.Error(t, r.SetWeeklyEstimate(neg))
		require.False(t, r.HasActivity())
	})

	t.Run("rejects bad dates and categories", func(t *testing.T) {
		t.Parallel()
		r := NewRecord()

		_, err := r.AddIncome(decimal.NewFromInt(1), "yesterday")
		require.Error(t, err)
		_, err = r.AddExpense("Lunch", decimal.NewFromInt(1), Category("Travel"), "2026-01-01")
		require.Error(t, err)
		_, err = r.AddBill("  ", decimal.NewFromInt(1), "", false)
		require.Error(t, err)
	})

	t.Run("toggles bill paid state", func(t *testing.T) {
		t.Parallel()
		r := NewRecord()
		bill, err := r.AddBill("Deposit", decimal.NewFromInt(500), "2026-02-01", true)
		require.NoError(t, err)

		paid, err := r.ToggleBillPaid(bill.ID)
		require.NoError(t, err)
		require.True(t, paid.IsPaid)
		require.True(t, paid.IsDeposit)

		unpaid, err := r.ToggleBillPaid(bill.ID)
		require.NoError(t, err)
		require.False(t, unpaid.IsPaid)
	})

	t.Run("toggles pinned state", func(t *testing.T) {
		t.Parallel()
		r := NewRecord()
		item, err := r.AddWishlistItem("Bike", decimal.NewFromInt(120), PriorityHigh)
		require.NoError(t, err)

		pinned, err := r.TogglePinned(item.ID)
		require.NoError(t, err)
		require.True(t, pinned.IsPinned)
	})

	t.Run("removes entries by id", func(t *testing.T) {
		t.Parallel()
		r := NewRecord()
		inc, _ := r.AddIncome(decimal.NewFromInt(1), "2026-01-01")
		bill, _ := r.AddBill("Rent", decimal.NewFromInt(1), "", false)
		item, _ := r.AddWishlistItem("Bike", decimal.NewFromInt(1), "")
		exp, _ := r.AddExpense("Lunch", decimal.NewFromInt(1), CategoryFood, "2026-01-01")

		require.NoError(t, r.RemoveIncome(inc.ID))
		require.NoError(t, r.RemoveBill(bill.ID))
		require.NoError(t, r.RemoveWishlistItem(item.ID))
		require.NoError(t, r.RemoveExpense(exp.ID))
		require.False(t, r.HasActivity())

		require.ErrorIs(t, r.RemoveExpense(exp.ID), ErrEntryNotFound)
	})

	t.Run("realizes the weekly estimate", func(t *testing.T) {
		t.Parallel()
		r := NewRecord()
		_, err := r.RealizeWeeklyEstimate("2026-01-01")
		require.ErrorIs(t, err, ErrNothingToRealize)

		require.NoError(t, r.SetWeeklyEstimate(decimal.NewFromInt(400)))
		event, err := r.RealizeWeeklyEstimate("2026-01-08")
		require.NoError(t, err)
		require.True(t, event.Amount.Equal(decimal.NewFromInt(400)))
		require.True(t, r.WeeklyEstimate.IsZero())
		require.Len(t, r.IncomeHistory, 1)
	})
}

func TestValidate(t *testing.T) {
	t.Parallel()

	t.Run("flags negative amounts in decoded documents", func(t *testing.T) {
		t.Parallel()
		r, err := DecodeRecord([]byte(`{"expenses":[{"id":"e1","description":"x","amount":-5,"category":"Food","date":"2026-01-01"}]}`))
		require.NoError(t, err)
		require.Error(t, r.Validate())
	})

	t.Run("flags duplicate ids", func(t *testing.T) {
		t.Parallel()
		r := NewRecord()
		r.Bills = []Bill{
			{ID: "b1", Name: "Rent", Amount: decimal.NewFromInt(1)},
			{ID: "b1", Name: "Water", Amount: decimal.NewFromInt(1)},
		}
		err := r.Validate()
		require.Error(t, err)
		require.Contains(t, err.Error(), "duplicate id")
	})

	t.Run("flags unknown categories", func(t *testing.T) {
		t.Parallel()
		r := NewRecord()
		r.Expenses = []Expense{{ID: "e1", Description: "x", Amount: decimal.NewFromInt(1), Category: "Travel", Date: "2026-01-01"}}
		require.Error(t, r.Validate())
	})

	t.Run("accepts a populated record", func(t *testing.T) {
		t.Parallel()
		r := NewRecord()
		_, _ = r.AddIncome(decimal.NewFromInt(100), "2026-01-01")
		_, _ = r.AddBill("Rent", decimal.NewFromInt(50), "2026-01-05", false)
		_, _ = r.AddWishlistItem("Bike", decimal.NewFromInt(120), PriorityHigh)
		_, _ = r.AddExpense("Lunch", decimal.NewFromInt(12), CategoryFood, "2026-01-02")
		require.NoError(t, r.Validate())
	})
}

func TestClone(t *testing.T) {
	t.Parallel()

	r := NewRecord()
	_, _ = r.AddBill("Rent", decimal.NewFromInt(50), "", false)
	c := r.Clone()
	c.Bills[0].IsPaid = true
	c.Bills = append(c.Bills, Bill{ID: "x"})

	require.False(t, r.Bills[0].IsPaid)
	require.Len(t, r.Bills, 1)
}

func TestParseCategory(t *testing.T) {
	t.Parallel()

	c, err := ParseCategory(" food ")
	require.NoError(t, err)
	require.Equal(t, CategoryFood, c)

	_, err = ParseCategory("Travel")
	require.Error(t, err)

	require.Len(t, CategoryNames(), len(Categories))
}

func TestParsePriority(t *testing.T) {
	t.Parallel()

	p, err := ParsePriority("")
	require.NoError(t, err)
	require.Equal(t, PriorityMedium, p)

	p, err = ParsePriority("HIGH")
	require.NoError(t, err)
	require.Equal(t, PriorityHigh, p)

	_, err = ParsePriority("urgent")
	require.Error(t, err)
}

func TestParseDate(t *testing.T) {
	t.Parallel()

	d, err := ParseDate("2026-02-14")
	require.NoError(t, err)
	require.Equal(t, "2026-02-14", FormatDate(d))

	d, err = ParseDate("2026-02-14T10:00:00Z")
	require.NoError(t, err)
	require.Equal(t, "2026-02-14", FormatDate(d))

	_, err = ParseDate("14/02/2026")
	require.Error(t, err)
}

func TestErrorsWrapSentinel(t *testing.T) {
	t.Parallel()

	err := NewRecord().RemoveBill("missing")
	require.True(t, errors.Is(err, ErrEntryNotFound))
	require.Contains(t, err.Error(), "missing")
}
