// Package reminder finds unpaid bills that are due soon and sends them to a
// Telegram chat.
package reminder

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"gitlab.com/yelinaung/moniclear/internal/models"
	"gitlab.com/yelinaung/moniclear/internal/report"
)

// DueBill is an unpaid bill inside the reminder horizon.
type DueBill struct {
	Bill models.Bill
	// DaysLeft is negative for overdue bills.
	DaysLeft int
}

// Overdue reports whether the due date has passed.
func (d DueBill) Overdue() bool {
	return d.DaysLeft < 0
}

// DueBills returns the unpaid bills of r that are overdue or due within
// daysAhead days of now, earliest first. Bills without a due date are skipped.
func DueBills(r *models.FinancialRecord, now time.Time, daysAhead int) []DueBill {
	if r == nil {
		return nil
	}
	today := truncateDay(now)

	var due []DueBill
	for _, b := range r.Bills {
		if b.IsPaid || b.DueDate == "" {
			continue
		}
		date, err := models.ParseDate(b.DueDate)
		if err != nil {
			continue
		}
		days := int(truncateDay(date).Sub(today).Hours() / 24)
		if days > daysAhead {
			continue
		}
		due = append(due, DueBill{Bill: b, DaysLeft: days})
	}

	sort.SliceStable(due, func(i, j int) bool {
		return due[i].DaysLeft < due[j].DaysLeft
	})
	return due
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Message renders due bills as a plain-text reminder.
func Message(due []DueBill, currency string) string {
	var b strings.Builder
	b.WriteString("MoniClear bill reminder\n")
	for _, d := range due {
		fmt.Fprintf(&b, "\n• %s: %s, %s", d.Bill.Name, report.FormatAmount(d.Bill.Amount, currency), when(d.DaysLeft))
	}
	return b.String()
}

func when(days int) string {
	switch {
	case days < -1:
		return fmt.Sprintf("overdue by %d days", -days)
	case days == -1:
		return "overdue by 1 day"
	case days == 0:
		return "due today"
	case days == 1:
		return "due tomorrow"
	default:
		return fmt.Sprintf("due in %d days", days)
	}
}
