package report

import (
	"fmt"
	"strings"

	"gitlab.com/yelinaung/moniclear/internal/aggregate"
	"gitlab.com/yelinaung/moniclear/internal/models"
)

// Markdown renders the balances, unpaid bills, pinned wishlist items and
// category spending of r.
func Markdown(r *models.FinancialRecord, s aggregate.Summary, currency string) string {
	var b strings.Builder
	b.WriteString("# MoniClear\n\n")
	if r == nil {
		b.WriteString("_No record loaded. Run `moniclear guest` or `moniclear login`._\n")
		return b.String()
	}

	b.WriteString("## Balances\n\n")
	b.WriteString("| | |\n|---|---:|\n")
	rows := []struct {
		label string
		value string
	}{
		{"Confirmed balance", FormatAmount(s.ConfirmedBalance, currency)},
		{"Projected balance", FormatAmount(s.ProjectedBalance, currency)},
		{"Net worth", FormatAmount(s.TotalNetWorth, currency)},
		{"Income received", FormatAmount(s.TotalHistoryIncome, currency)},
		{"Weekly estimate", FormatAmount(r.WeeklyEstimate, currency)},
		{"Expenses", FormatAmount(s.TotalExpenses, currency)},
		{"Bills paid", FormatAmount(s.TotalPaidBills, currency)},
		{"Bills unpaid", FormatAmount(s.TotalUnpaidBills, currency)},
		{"Deposits held", FormatAmount(s.TotalHeldDeposits, currency)},
	}
	for _, row := range rows {
		fmt.Fprintf(&b, "| %s | %s |\n", row.label, row.value)
	}

	var unpaid []models.Bill
	for _, bill := range r.Bills {
		if !bill.IsPaid {
			unpaid = append(unpaid, bill)
		}
	}
	if len(unpaid) > 0 {
		b.WriteString("\n## Unpaid bills\n\n")
		for _, bill := range unpaid {
			due := bill.DueDate
			if due == "" {
				due = "no due date"
			}
			fmt.Fprintf(&b, "- **%s** %s (%s)", escape(bill.Name), FormatAmount(bill.Amount, currency), due)
			if bill.IsDeposit {
				b.WriteString(" deposit")
			}
			b.WriteString("\n")
		}
	}

	if len(s.PinnedWishlistItems) > 0 {
		b.WriteString("\n## Pinned wishlist\n\n")
		for _, item := range s.PinnedWishlistItems {
			fmt.Fprintf(&b, "- **%s** %s, %s priority\n",
				escape(item.Name), FormatAmount(item.Price, currency), strings.ToLower(string(item.Priority)))
		}
	}

	if totals := aggregate.ExpensesByCategory(r); len(totals) > 0 {
		b.WriteString("\n## Spending by category\n\n")
		for _, t := range totals {
			fmt.Fprintf(&b, "- %s: %s\n", t.Category, FormatAmount(t.Total, currency))
		}
	}
	return b.String()
}

var markdownEscaper = strings.NewReplacer(
	`\`, `\\`,
	"*", `\*`,
	"_", `\_`,
	"`", "\\`",
	"|", `\|`,
	"[", `\[`,
	"]", `\]`,
)

func escape(s string) string {
	return markdownEscaper.Replace(s)
}
