package report

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"sort"

	"gitlab.com/yelinaung/moniclear/internal/models"
)

// ExpensesCSV renders the expenses of r as CSV, ordered by date then description.
func ExpensesCSV(r *models.FinancialRecord, currency string) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	header := []string{"ID", "Date", "Amount", "Currency", "Description", "Category"}
	if err := writer.Write(header); err != nil {
		return nil, fmt.Errorf("failed to write CSV header: %w", err)
	}

	var expenses []models.Expense
	if r != nil {
		expenses = append(expenses, r.Expenses...)
	}
	sort.SliceStable(expenses, func(i, j int) bool {
		if expenses[i].Date != expenses[j].Date {
			return expenses[i].Date < expenses[j].Date
		}
		return expenses[i].Description < expenses[j].Description
	})

	for i := range expenses {
		row := []string{
			expenses[i].ID,
			expenses[i].Date,
			expenses[i].Amount.StringFixed(2),
			currency,
			expenses[i].Description,
			string(expenses[i].Category),
		}
		if err := writer.Write(row); err != nil {
			return nil, fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}
	return buf.Bytes(), nil
}

// ExportFilename returns a name like "expenses_2026-01-31.csv".
func ExportFilename(date string) string {
	return fmt.Sprintf("expenses_%s.csv", date)
}
