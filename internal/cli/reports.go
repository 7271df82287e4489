package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"gitlab.com/yelinaung/moniclear/internal/aggregate"
	"gitlab.com/yelinaung/moniclear/internal/models"
	"gitlab.com/yelinaung/moniclear/internal/recordstore"
	"gitlab.com/yelinaung/moniclear/internal/reminder"
	"gitlab.com/yelinaung/moniclear/internal/report"
)

type summaryCmd struct{ app *App }

func (*summaryCmd) Name() string     { return "summary" }
func (*summaryCmd) Synopsis() string { return "show balances, unpaid bills and pinned wishes" }
func (*summaryCmd) Usage() string {
	return `moniclear summary
`
}
func (*summaryCmd) SetFlags(*flag.FlagSet) {}

func (c *summaryCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a := c.app
	if !a.open(ctx) {
		return subcommands.ExitFailure
	}
	a.printMarkdown(report.Markdown(a.tracker.Record(), a.tracker.Summary(), a.currency()))
	return subcommands.ExitSuccess
}

type chartCmd struct {
	app *App

	output   string
	telegram bool
}

func (*chartCmd) Name() string     { return "chart" }
func (*chartCmd) Synopsis() string { return "render spending per category as a PNG pie chart" }
func (*chartCmd) Usage() string {
	return `moniclear chart [-o <file>] [-telegram]
`
}

func (c *chartCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.output, "o", "", "output file, defaults to chart_<today>.png")
	f.BoolVar(&c.telegram, "telegram", false, "also send the chart to the reminder chat")
}

func (c *chartCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a := c.app
	if !a.open(ctx) {
		return subcommands.ExitFailure
	}
	r, err := a.record()
	if err != nil {
		return a.fail("rendering chart", err)
	}
	png, err := report.ExpenseChart(r, "Spending by category")
	if err != nil {
		return a.fail("rendering chart", err)
	}

	output := c.output
	if output == "" {
		output = report.ChartFilename(a.today())
	}
	if err := os.WriteFile(output, png, 0o644); err != nil {
		return a.fail("writing chart", err)
	}
	fmt.Fprintf(a.Out, "Chart written to %s.\n", output)

	if c.telegram {
		n, err := a.notifier()
		if err != nil {
			return a.fail("sending chart", err)
		}
		if err := n.SendChart(ctx, png, output, "Spending by category"); err != nil {
			return a.fail("sending chart", err)
		}
		fmt.Fprintln(a.Out, "Chart sent.")
	}
	return subcommands.ExitSuccess
}

type exportCmd struct {
	app    *App
	output string
}

func (*exportCmd) Name() string     { return "export" }
func (*exportCmd) Synopsis() string { return "export expenses as CSV" }
func (*exportCmd) Usage() string {
	return `moniclear export [-o <file>|-]
`
}

func (c *exportCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.output, "o", "", "output file, - for stdout, defaults to expenses_<today>.csv")
}

func (c *exportCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a := c.app
	if !a.open(ctx) {
		return subcommands.ExitFailure
	}
	r, err := a.record()
	if err != nil {
		return a.fail("exporting", err)
	}
	data, err := report.ExpensesCSV(r, a.currency())
	if err != nil {
		return a.fail("exporting", err)
	}

	if c.output == "-" {
		_, _ = a.Out.Write(data)
		return subcommands.ExitSuccess
	}
	output := c.output
	if output == "" {
		output = report.ExportFilename(a.today())
	}
	if err := os.WriteFile(output, data, 0o644); err != nil {
		return a.fail("writing export", err)
	}
	fmt.Fprintf(a.Out, "Exported %d expenses to %s.\n", len(r.Expenses), output)
	return subcommands.ExitSuccess
}

type watchCmd struct{ app *App }

func (*watchCmd) Name() string     { return "watch" }
func (*watchCmd) Synopsis() string { return "print the balances whenever the account record changes" }
func (*watchCmd) Usage() string {
	return `moniclear watch

  Follows changes made on other devices until interrupted.
`
}
func (*watchCmd) SetFlags(*flag.FlagSet) {}

func (c *watchCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a := c.app
	if !a.open(ctx) {
		return subcommands.ExitFailure
	}
	owner, ok := a.tracker.Owner()
	if !ok || owner.IsGuest() {
		return a.fail("watching", recordstore.ErrGuestSubscription)
	}

	show := func(r *models.FinancialRecord, s aggregate.Summary) {
		if r == nil {
			fmt.Fprintln(a.Out, "Record detached.")
			return
		}
		fmt.Fprintf(a.Out, "%s  confirmed %s  projected %s  net worth %s\n",
			a.Now().Format("15:04:05"),
			report.FormatAmount(s.ConfirmedBalance, a.currency()),
			report.FormatAmount(s.ProjectedBalance, a.currency()),
			report.FormatAmount(s.TotalNetWorth, a.currency()))
	}
	a.tracker.OnChange(show)
	show(a.tracker.Record(), a.tracker.Summary())

	<-ctx.Done()
	return subcommands.ExitSuccess
}

type remindCmd struct {
	app *App

	days   int
	dryRun bool
}

func (*remindCmd) Name() string     { return "remind" }
func (*remindCmd) Synopsis() string { return "send a Telegram reminder for bills due soon" }
func (*remindCmd) Usage() string {
	return `moniclear remind [-days <n>] [-dry-run]

  Lists unpaid bills that are overdue or due within the horizon and sends
  them to TELEGRAM_CHAT_ID.
`
}

func (c *remindCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.days, "days", -1, "reminder horizon in days, defaults to REMINDER_DAYS_AHEAD")
	f.BoolVar(&c.dryRun, "dry-run", false, "print the reminder instead of sending it")
}

func (c *remindCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a := c.app
	if !a.open(ctx) {
		return subcommands.ExitFailure
	}
	r, err := a.record()
	if err != nil {
		return a.fail("building reminder", err)
	}
	days := c.days
	if days < 0 {
		days = a.Config.ReminderDaysAhead
	}

	if c.dryRun {
		due := reminder.DueBills(r, a.Now(), days)
		if len(due) == 0 {
			fmt.Fprintln(a.Out, "No bills due.")
			return subcommands.ExitSuccess
		}
		fmt.Fprintln(a.Out, reminder.Message(due, a.currency()))
		return subcommands.ExitSuccess
	}

	n, err := a.notifier()
	if err != nil {
		return a.fail("sending reminder", err)
	}
	count, err := n.NotifyDue(ctx, r, days)
	if err != nil {
		return a.fail("sending reminder", err)
	}
	fmt.Fprintf(a.Out, "Reminded about %d bills.\n", count)
	return subcommands.ExitSuccess
}

func (a *App) notifier() (*reminder.Notifier, error) {
	if !a.Config.RemindersEnabled() {
		return nil, errors.New("TELEGRAM_BOT_TOKEN and TELEGRAM_CHAT_ID are required")
	}
	if a.Sender == nil {
		s, err := reminder.NewTelegramSender(a.Config.TelegramBotToken)
		if err != nil {
			return nil, err
		}
		a.Sender = s
	}
	n := reminder.NewNotifier(a.Sender, a.Config.TelegramChatID, a.currency())
	n.SetClock(a.Now)
	return n, nil
}

type versionCmd struct{ app *App }

func (*versionCmd) Name() string           { return "version" }
func (*versionCmd) Synopsis() string       { return "print the version" }
func (*versionCmd) Usage() string          { return "moniclear version\n" }
func (*versionCmd) SetFlags(*flag.FlagSet) {}

func (c *versionCmd) Execute(context.Context, *flag.FlagSet, ...interface{}) subcommands.ExitStatus {
	fmt.Fprintf(c.app.Out, "moniclear %s\n", c.app.Version)
	return subcommands.ExitSuccess
}
