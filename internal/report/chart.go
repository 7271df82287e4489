package report

import (
	"errors"
	"fmt"

	"github.com/go-analyze/charts"

	"gitlab.com/yelinaung/moniclear/internal/aggregate"
	"gitlab.com/yelinaung/moniclear/internal/models"
)

// ErrNoExpenses is returned when there is nothing to chart.
var ErrNoExpenses = errors.New("no expenses to chart")

// ExpenseChart renders a PNG pie chart of spending per category.
func ExpenseChart(r *models.FinancialRecord, title string) ([]byte, error) {
	totals := aggregate.ExpensesByCategory(r)

	var values []float64
	var names []string
	for _, t := range totals {
		if !t.Total.IsPositive() {
			continue
		}
		names = append(names, string(t.Category))
		values = append(values, t.Total.InexactFloat64())
	}
	if len(values) == 0 {
		return nil, ErrNoExpenses
	}

	p, err := charts.PieRender(
		values,
		charts.TitleOptionFunc(charts.TitleOption{Text: title}),
		charts.LegendLabelsOptionFunc(names),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create chart: %w", err)
	}

	buf, err := p.Bytes()
	if err != nil {
		return nil, fmt.Errorf("failed to render chart: %w", err)
	}
	return buf, nil
}

// ChartFilename returns a name like "chart_2026-01-31.png".
func ChartFilename(date string) string {
	return fmt.Sprintf("chart_%s.png", date)
}
