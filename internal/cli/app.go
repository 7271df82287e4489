// Package cli implements the moniclear command line application.
package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/google/subcommands"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"gitlab.com/yelinaung/moniclear/internal/auth"
	"gitlab.com/yelinaung/moniclear/internal/config"
	"gitlab.com/yelinaung/moniclear/internal/database"
	"gitlab.com/yelinaung/moniclear/internal/gemini"
	"gitlab.com/yelinaung/moniclear/internal/localstore"
	"gitlab.com/yelinaung/moniclear/internal/logger"
	"gitlab.com/yelinaung/moniclear/internal/models"
	"gitlab.com/yelinaung/moniclear/internal/recordstore"
	"gitlab.com/yelinaung/moniclear/internal/reminder"
	"gitlab.com/yelinaung/moniclear/internal/repository"
	"gitlab.com/yelinaung/moniclear/internal/session"
	"gitlab.com/yelinaung/moniclear/internal/telemetry"
	"gitlab.com/yelinaung/moniclear/internal/tracker"
)

// App holds the configuration and the lazily opened components shared by
// every command. Fields left nil are built from Config by Open.
type App struct {
	Config  *config.Config
	Version string
	Out     io.Writer
	Err     io.Writer
	Now     func() time.Time
	// Plain disables terminal markdown rendering.
	Plain bool

	Local     *localstore.Store
	Remote    recordstore.RemoteStore
	Provider  auth.Provider
	Suggester *gemini.Client
	Sender    reminder.Sender

	pool      *pgxpool.Pool
	providers *telemetry.Providers
	holder    *session.Holder
	tracker   *tracker.Tracker
	ownsLocal bool
}

// NewApp creates an App writing to stdout and stderr.
func NewApp(cfg *config.Config, version string) *App {
	return &App{
		Config:  cfg,
		Version: version,
		Out:     os.Stdout,
		Err:     os.Stderr,
		Now:     time.Now,
	}
}

// Run parses args and executes the selected command.
func Run(ctx context.Context, a *App, args []string) subcommands.ExitStatus {
	flags := flag.NewFlagSet("moniclear", flag.ContinueOnError)
	flags.SetOutput(a.Err)
	flags.BoolVar(&a.Plain, "plain", a.Plain, "print markdown without terminal styling")

	commander := subcommands.NewCommander(flags, "moniclear")
	commander.Output = a.Out
	commander.Error = a.Err
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	commander.Register(commander.CommandsCommand(), "")
	Register(commander, a)

	if err := flags.Parse(args); err != nil {
		return subcommands.ExitUsageError
	}
	defer func() {
		if err := a.Close(context.WithoutCancel(ctx)); err != nil {
			fmt.Fprintf(a.Err, "Error closing: %v\n", err)
		}
	}()
	return commander.Execute(ctx)
}

// Register adds every moniclear command to c.
func Register(c *subcommands.Commander, a *App) {
	c.Register(&statusCmd{app: a}, "account")
	c.Register(&guestCmd{app: a}, "account")
	c.Register(&loginCmd{app: a}, "account")
	c.Register(&signupCmd{app: a}, "account")
	c.Register(&phoneCmd{app: a}, "account")
	c.Register(&resetPasswordCmd{app: a}, "account")
	c.Register(&resendVerificationCmd{app: a}, "account")
	c.Register(&logoutCmd{app: a}, "account")

	c.Register(&incomeCmd{app: a}, "entries")
	c.Register(&estimateCmd{app: a}, "entries")
	c.Register(&billCmd{app: a}, "entries")
	c.Register(&wishCmd{app: a}, "entries")
	c.Register(&expenseCmd{app: a}, "entries")

	c.Register(&summaryCmd{app: a}, "reports")
	c.Register(&chartCmd{app: a}, "reports")
	c.Register(&exportCmd{app: a}, "reports")
	c.Register(&watchCmd{app: a}, "reports")
	c.Register(&remindCmd{app: a}, "reports")

	c.Register(&versionCmd{app: a}, "")
}

// Open builds the missing components, restores the session and attaches
// the current record. It is idempotent.
func (a *App) Open(ctx context.Context) error {
	if a.tracker != nil {
		return nil
	}
	cfg := a.Config

	if a.providers == nil {
		p, err := telemetry.Setup(ctx, telemetry.FromConfig(cfg, a.Version))
		if err != nil {
			return err
		}
		a.providers = p
	}

	if a.Local == nil {
		local, err := localstore.Open(cfg.LocalStorePath())
		if err != nil {
			return err
		}
		a.Local = local
		a.ownsLocal = true
	}

	if a.Remote == nil && cfg.DatabaseURL != "" {
		pool, err := database.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		if err := database.RunMigrations(ctx, pool); err != nil {
			pool.Close()
			return err
		}
		a.pool = pool
		a.Remote = repository.NewRecordRepository(pool)
	}

	if a.Provider == nil && cfg.IdentityAPIKey != "" {
		p, err := auth.NewIdentityToolkit(ctx, cfg.IdentityAPIKey)
		if err != nil {
			return err
		}
		a.Provider = p
	}

	if a.Suggester == nil && cfg.GeminiAPIKey != "" {
		s, err := gemini.NewClient(ctx, cfg.GeminiAPIKey)
		if err != nil {
			logger.Log.Warn().Err(err).Msg("Category suggestions disabled")
		} else {
			a.Suggester = s
		}
	}

	a.holder = session.New(ctx, a.Provider, a.Local)
	store := recordstore.New(ctx, a.Remote, a.Local, recordstore.NewSubscriptions(),
		recordstore.WithDebounce(cfg.SaveDebounce))
	a.tracker = tracker.New(a.holder, store)

	if err := a.tracker.Start(ctx); err != nil {
		// A failed restore leaves the session signed out; commands report that themselves.
		logger.Log.Warn().Err(err).Msg("Session not restored")
	}
	return nil
}

// Close flushes pending saves and releases every opened resource.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.tracker != nil {
		if err := a.tracker.Close(ctx); err != nil {
			errs = append(errs, err)
		}
		a.tracker = nil
	}
	if a.Local != nil && a.ownsLocal {
		if err := a.Local.Close(); err != nil {
			errs = append(errs, err)
		}
		a.Local = nil
	}
	if a.pool != nil {
		a.pool.Close()
		a.pool = nil
	}
	if a.providers != nil {
		if err := a.providers.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
		a.providers = nil
	}
	return errors.Join(errs...)
}

func (a *App) today() string {
	return models.FormatDate(a.Now())
}

func (a *App) currency() string {
	if a.Config.Currency == "" {
		return config.DefaultCurrency
	}
	return a.Config.Currency
}

// fail prints err and returns ExitFailure.
func (a *App) fail(what string, err error) subcommands.ExitStatus {
	fmt.Fprintf(a.Err, "Error %s: %v\n", what, err)
	return subcommands.ExitFailure
}

// open runs Open and reports a failure.
func (a *App) open(ctx context.Context) bool {
	if err := a.Open(ctx); err != nil {
		fmt.Fprintf(a.Err, "Error opening storage: %v\n", err)
		return false
	}
	return true
}

func (a *App) printMarkdown(md string) {
	if a.Plain {
		fmt.Fprint(a.Out, md)
		return
	}
	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(100))
	if err == nil {
		var out string
		if out, err = r.Render(md); err == nil {
			fmt.Fprint(a.Out, out)
			return
		}
	}
	logger.Log.Debug().Err(err).Msg("Markdown rendering failed")
	fmt.Fprint(a.Out, md)
}

func parseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q", s)
	}
	return d, nil
}
