package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/google/subcommands"
	"github.com/shopspring/decimal"

	"gitlab.com/yelinaung/moniclear/internal/models"
	"gitlab.com/yelinaung/moniclear/internal/report"
)

// action is one verb of a command such as "bill add".
type action struct {
	usage string
	flags func(f *flag.FlagSet)
	run   func(ctx context.Context, f *flag.FlagSet) error
}

// dispatch runs the action named by the first argument with its own flags.
func (a *App) dispatch(ctx context.Context, name string, f *flag.FlagSet, actions map[string]action) subcommands.ExitStatus {
	if f.NArg() == 0 {
		fmt.Fprintf(a.Err, "Error: %s needs an action\n", name)
		writeActions(a.Err, name, actions)
		return subcommands.ExitUsageError
	}
	verb := f.Arg(0)
	act, ok := actions[verb]
	if !ok {
		fmt.Fprintf(a.Err, "Error: unknown action %q\n", verb)
		writeActions(a.Err, name, actions)
		return subcommands.ExitUsageError
	}

	fs := flag.NewFlagSet(name+" "+verb, flag.ContinueOnError)
	fs.SetOutput(a.Err)
	if act.flags != nil {
		act.flags(fs)
	}
	if err := fs.Parse(f.Args()[1:]); err != nil {
		return subcommands.ExitUsageError
	}

	if !a.open(ctx) {
		return subcommands.ExitFailure
	}
	if err := act.run(ctx, fs); err != nil {
		return a.fail(name+" "+verb, err)
	}
	return subcommands.ExitSuccess
}

func writeActions(w io.Writer, name string, actions map[string]action) {
	verbs := make([]string, 0, len(actions))
	for verb := range actions {
		verbs = append(verbs, verb)
	}
	sort.Strings(verbs)
	for _, verb := range verbs {
		fmt.Fprintf(w, "  moniclear %s %s %s\n", name, verb, actions[verb].usage)
	}
}

// update applies fn to the current record and reports what changed.
func (a *App) update(ctx context.Context, fn func(*models.FinancialRecord) (string, error)) error {
	var msg string
	_, err := a.tracker.Update(ctx, func(r *models.FinancialRecord) error {
		var err error
		msg, err = fn(r)
		return err
	})
	if err != nil {
		return err
	}
	fmt.Fprintln(a.Out, msg)
	return nil
}

func (a *App) record() (*models.FinancialRecord, error) {
	r := a.tracker.Record()
	if r == nil {
		if err := a.tracker.Err(); err != nil {
			return nil, err
		}
		return nil, errors.New("no record loaded: sign in or start a guest session")
	}
	return r, nil
}

func oneID(f *flag.FlagSet) (string, error) {
	if f.NArg() != 1 {
		return "", errors.New("exactly one id is required")
	}
	return f.Arg(0), nil
}

func amountFlag(f *flag.FlagSet, name, usage string) *string {
	return f.String(name, "", usage)
}

func requireAmount(value, name string) (decimal.Decimal, error) {
	if value == "" {
		return decimal.Zero, fmt.Errorf("-%s is required", name)
	}
	return parseAmount(value)
}

type incomeCmd struct{ app *App }

func (*incomeCmd) Name() string     { return "income" }
func (*incomeCmd) Synopsis() string { return "record received income" }
func (*incomeCmd) Usage() string {
	return `moniclear income add -amount <n> [-date YYYY-MM-DD]
moniclear income rm <id>
moniclear income realize [-date YYYY-MM-DD]
moniclear income list

  realize moves the weekly estimate into the income history.
`
}
func (*incomeCmd) SetFlags(*flag.FlagSet) {}

func (c *incomeCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a := c.app
	var amount, date *string
	return a.dispatch(ctx, "income", f, map[string]action{
		"add": {
			usage: "-amount <n> [-date YYYY-MM-DD]",
			flags: func(f *flag.FlagSet) {
				amount = amountFlag(f, "amount", "amount received")
				date = f.String("date", a.today(), "date received")
			},
			run: func(ctx context.Context, _ *flag.FlagSet) error {
				d, err := requireAmount(*amount, "amount")
				if err != nil {
					return err
				}
				return a.update(ctx, func(r *models.FinancialRecord) (string, error) {
					e, err := r.AddIncome(d, *date)
					return fmt.Sprintf("Added income %s (%s).", report.FormatAmount(e.Amount, a.currency()), e.ID), err
				})
			},
		},
		"rm": {
			usage: "<id>",
			run: func(ctx context.Context, f *flag.FlagSet) error {
				id, err := oneID(f)
				if err != nil {
					return err
				}
				return a.update(ctx, func(r *models.FinancialRecord) (string, error) {
					return "Removed income " + id + ".", r.RemoveIncome(id)
				})
			},
		},
		"realize": {
			usage: "[-date YYYY-MM-DD]",
			flags: func(f *flag.FlagSet) {
				date = f.String("date", a.today(), "date received")
			},
			run: func(ctx context.Context, _ *flag.FlagSet) error {
				return a.update(ctx, func(r *models.FinancialRecord) (string, error) {
					e, err := r.RealizeWeeklyEstimate(*date)
					return fmt.Sprintf("Realized %s into income history.", report.FormatAmount(e.Amount, a.currency())), err
				})
			},
		},
		"list": {
			run: func(context.Context, *flag.FlagSet) error {
				r, err := a.record()
				if err != nil {
					return err
				}
				var b strings.Builder
				b.WriteString("| ID | Date | Amount |\n|---|---|---:|\n")
				for _, e := range r.IncomeHistory {
					fmt.Fprintf(&b, "| %s | %s | %s |\n", e.ID, e.Date, report.FormatAmount(e.Amount, a.currency()))
				}
				a.printMarkdown(b.String())
				return nil
			},
		},
	})
}

type estimateCmd struct{ app *App }

func (*estimateCmd) Name() string     { return "estimate" }
func (*estimateCmd) Synopsis() string { return "set the expected weekly income" }
func (*estimateCmd) Usage() string {
	return `moniclear estimate <amount>

  Sets the pending weekly income used for the projected balance.
`
}
func (*estimateCmd) SetFlags(*flag.FlagSet) {}

func (c *estimateCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a := c.app
	if f.NArg() != 1 {
		fmt.Fprintln(a.Err, "Error: exactly one amount is required")
		return subcommands.ExitUsageError
	}
	d, err := parseAmount(f.Arg(0))
	if err != nil {
		fmt.Fprintf(a.Err, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}
	if !a.open(ctx) {
		return subcommands.ExitFailure
	}
	err = a.update(ctx, func(r *models.FinancialRecord) (string, error) {
		return "Weekly estimate set to " + report.FormatAmount(d, a.currency()) + ".", r.SetWeeklyEstimate(d)
	})
	if err != nil {
		return a.fail("setting estimate", err)
	}
	return subcommands.ExitSuccess
}

type billCmd struct{ app *App }

func (*billCmd) Name() string     { return "bill" }
func (*billCmd) Synopsis() string { return "manage scheduled bills" }
func (*billCmd) Usage() string {
	return `moniclear bill add -name <name> -amount <n> [-due YYYY-MM-DD] [-deposit]
moniclear bill rm <id>
moniclear bill pay <id>
moniclear bill list

  pay toggles the paid flag. A paid deposit counts towards net worth.
`
}
func (*billCmd) SetFlags(*flag.FlagSet) {}

func (c *billCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a := c.app
	var name, amount, due *string
	var deposit *bool
	return a.dispatch(ctx, "bill", f, map[string]action{
		"add": {
			usage: "-name <name> -amount <n> [-due YYYY-MM-DD] [-deposit]",
			flags: func(f *flag.FlagSet) {
				name = f.String("name", "", "bill name")
				amount = amountFlag(f, "amount", "bill amount")
				due = f.String("due", "", "due date")
				deposit = f.Bool("deposit", false, "the bill is a recoverable deposit")
			},
			run: func(ctx context.Context, _ *flag.FlagSet) error {
				d, err := requireAmount(*amount, "amount")
				if err != nil {
					return err
				}
				return a.update(ctx, func(r *models.FinancialRecord) (string, error) {
					b, err := r.AddBill(*name, d, *due, *deposit)
					return fmt.Sprintf("Added bill %q (%s).", b.Name, b.ID), err
				})
			},
		},
		"rm": {
			usage: "<id>",
			run: func(ctx context.Context, f *flag.FlagSet) error {
				id, err := oneID(f)
				if err != nil {
					return err
				}
				return a.update(ctx, func(r *models.FinancialRecord) (string, error) {
					return "Removed bill " + id + ".", r.RemoveBill(id)
				})
			},
		},
		"pay": {
			usage: "<id>",
			run: func(ctx context.Context, f *flag.FlagSet) error {
				id, err := oneID(f)
				if err != nil {
					return err
				}
				return a.update(ctx, func(r *models.FinancialRecord) (string, error) {
					b, err := r.ToggleBillPaid(id)
					if b.IsPaid {
						return fmt.Sprintf("Marked %q paid.", b.Name), err
					}
					return fmt.Sprintf("Marked %q unpaid.", b.Name), err
				})
			},
		},
		"list": {
			run: func(context.Context, *flag.FlagSet) error {
				r, err := a.record()
				if err != nil {
					return err
				}
				var b strings.Builder
				b.WriteString("| ID | Name | Amount | Due | Paid | Deposit |\n|---|---|---:|---|---|---|\n")
				for _, bill := range r.Bills {
					fmt.Fprintf(&b, "| %s | %s | %s | %s | %s | %s |\n", bill.ID, bill.Name,
						report.FormatAmount(bill.Amount, a.currency()), bill.DueDate, yesNo(bill.IsPaid), yesNo(bill.IsDeposit))
				}
				a.printMarkdown(b.String())
				return nil
			},
		},
	})
}

type wishCmd struct{ app *App }

func (*wishCmd) Name() string     { return "wish" }
func (*wishCmd) Synopsis() string { return "manage the wishlist" }
func (*wishCmd) Usage() string {
	return `moniclear wish add -name <name> -price <n> [-priority High|Medium|Low]
moniclear wish rm <id>
moniclear wish pin <id>
moniclear wish buy [-date YYYY-MM-DD] <id>
moniclear wish list

  buy turns the item into a Shopping expense.
`
}
func (*wishCmd) SetFlags(*flag.FlagSet) {}

func (c *wishCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a := c.app
	var name, price, priority, date *string
	return a.dispatch(ctx, "wish", f, map[string]action{
		"add": {
			usage: "-name <name> -price <n> [-priority High|Medium|Low]",
			flags: func(f *flag.FlagSet) {
				name = f.String("name", "", "item name")
				price = amountFlag(f, "price", "item price")
				priority = f.String("priority", string(models.PriorityMedium), "High, Medium or Low")
			},
			run: func(ctx context.Context, _ *flag.FlagSet) error {
				d, err := requireAmount(*price, "price")
				if err != nil {
					return err
				}
				p, err := models.ParsePriority(*priority)
				if err != nil {
					return err
				}
				return a.update(ctx, func(r *models.FinancialRecord) (string, error) {
					w, err := r.AddWishlistItem(*name, d, p)
					return fmt.Sprintf("Added %q to the wishlist (%s).", w.Name, w.ID), err
				})
			},
		},
		"rm": {
			usage: "<id>",
			run: func(ctx context.Context, f *flag.FlagSet) error {
				id, err := oneID(f)
				if err != nil {
					return err
				}
				return a.update(ctx, func(r *models.FinancialRecord) (string, error) {
					return "Removed wishlist item " + id + ".", r.RemoveWishlistItem(id)
				})
			},
		},
		"pin": {
			usage: "<id>",
			run: func(ctx context.Context, f *flag.FlagSet) error {
				id, err := oneID(f)
				if err != nil {
					return err
				}
				return a.update(ctx, func(r *models.FinancialRecord) (string, error) {
					w, err := r.TogglePinned(id)
					if w.IsPinned {
						return fmt.Sprintf("Pinned %q.", w.Name), err
					}
					return fmt.Sprintf("Unpinned %q.", w.Name), err
				})
			},
		},
		"buy": {
			usage: "[-date YYYY-MM-DD] <id>",
			flags: func(f *flag.FlagSet) {
				date = f.String("date", a.today(), "purchase date")
			},
			run: func(ctx context.Context, f *flag.FlagSet) error {
				id, err := oneID(f)
				if err != nil {
					return err
				}
				return a.update(ctx, func(r *models.FinancialRecord) (string, error) {
					e, err := r.MarkPurchased(id, *date)
					return fmt.Sprintf("Recorded %q as a %s expense (%s).", e.Description, e.Category, e.ID), err
				})
			},
		},
		"list": {
			run: func(context.Context, *flag.FlagSet) error {
				r, err := a.record()
				if err != nil {
					return err
				}
				var b strings.Builder
				b.WriteString("| ID | Name | Price | Priority | Pinned |\n|---|---|---:|---|---|\n")
				for _, w := range r.Wishlist {
					fmt.Fprintf(&b, "| %s | %s | %s | %s | %s |\n", w.ID, w.Name,
						report.FormatAmount(w.Price, a.currency()), w.Priority, yesNo(w.IsPinned))
				}
				a.printMarkdown(b.String())
				return nil
			},
		},
	})
}

type expenseCmd struct{ app *App }

func (*expenseCmd) Name() string     { return "expense" }
func (*expenseCmd) Synopsis() string { return "record spending" }
func (*expenseCmd) Usage() string {
	return `moniclear expense add -desc <text> -amount <n> [-category <name>] [-date YYYY-MM-DD]
moniclear expense rm <id>
moniclear expense list

  Without -category the category is suggested by Gemini when GEMINI_API_KEY
  is set, and is Other otherwise.
`
}
func (*expenseCmd) SetFlags(*flag.FlagSet) {}

func (c *expenseCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a := c.app
	var desc, amount, category, date *string
	return a.dispatch(ctx, "expense", f, map[string]action{
		"add": {
			usage: "-desc <text> -amount <n> [-category <name>] [-date YYYY-MM-DD]",
			flags: func(f *flag.FlagSet) {
				desc = f.String("desc", "", "what the money was spent on")
				amount = amountFlag(f, "amount", "amount spent")
				category = f.String("category", "", strings.Join(models.CategoryNames(), ", "))
				date = f.String("date", a.today(), "date spent")
			},
			run: func(ctx context.Context, _ *flag.FlagSet) error {
				d, err := requireAmount(*amount, "amount")
				if err != nil {
					return err
				}
				var cat models.Category
				if *category != "" {
					if cat, err = models.ParseCategory(*category); err != nil {
						return err
					}
				} else {
					cat = a.Suggester.CategoryFor(ctx, *desc)
				}
				return a.update(ctx, func(r *models.FinancialRecord) (string, error) {
					e, err := r.AddExpense(*desc, d, cat, *date)
					return fmt.Sprintf("Added %s expense %s (%s).", e.Category, report.FormatAmount(e.Amount, a.currency()), e.ID), err
				})
			},
		},
		"rm": {
			usage: "<id>",
			run: func(ctx context.Context, f *flag.FlagSet) error {
				id, err := oneID(f)
				if err != nil {
					return err
				}
				return a.update(ctx, func(r *models.FinancialRecord) (string, error) {
					return "Removed expense " + id + ".", r.RemoveExpense(id)
				})
			},
		},
		"list": {
			run: func(context.Context, *flag.FlagSet) error {
				r, err := a.record()
				if err != nil {
					return err
				}
				var b strings.Builder
				b.WriteString("| ID | Date | Description | Category | Amount |\n|---|---|---|---|---:|\n")
				for _, e := range r.Expenses {
					fmt.Fprintf(&b, "| %s | %s | %s | %s | %s |\n", e.ID, e.Date, e.Description,
						e.Category, report.FormatAmount(e.Amount, a.currency()))
				}
				a.printMarkdown(b.String())
				return nil
			},
		},
	})
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
