//go:build ignore
// +build ignore

package main

import (
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gitlab.com/yelinaung/moniclear/internal/models"
	"gitlab.com/yelinaung/moniclear/internal/report"
)

func main() {
	r := models.NewRecord()
	samples := []struct {
		desc     string
		amount   float64
		category models.Category
	}{
		{"Groceries", 150.50, models.CategoryFood},
		{"Dinner", 130.50, models.CategoryFood},
		{"Train pass", 60.00, models.CategoryTransport},
		{"Cinema", 25.00, models.CategoryEntertainment},
		{"Electricity", 120.00, models.CategoryUtilities},
	}
	for _, s := range samples {
		if _, err := r.AddExpense(s.desc, decimal.NewFromFloat(s.amount), s.category, "2026-01-15"); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}

	chartData, err := report.ExpenseChart(r, "January 2026")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := os.WriteFile("graph.png", chartData, 0600); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing file: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Created graph.png with a sample spending breakdown")
}
