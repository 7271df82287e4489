package cli

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/google/subcommands"

	"gitlab.com/yelinaung/moniclear/internal/auth"
	"gitlab.com/yelinaung/moniclear/internal/logger"
	"gitlab.com/yelinaung/moniclear/internal/session"
)

// passwordEnv lets scripts pass a password without putting it on the command line.
const passwordEnv = "MONICLEAR_PASSWORD"

type statusCmd struct{ app *App }

func (*statusCmd) Name() string     { return "status" }
func (*statusCmd) Synopsis() string { return "show the session and storage status" }
func (*statusCmd) Usage() string {
	return `moniclear status

  Shows who is signed in and where the record is stored.
`
}
func (*statusCmd) SetFlags(*flag.FlagSet) {}

func (c *statusCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a := c.app
	if !a.open(ctx) {
		return subcommands.ExitFailure
	}

	var b strings.Builder
	b.WriteString("# Status\n\n")
	state := a.holder.State()
	fmt.Fprintf(&b, "- Session: **%s**\n", state)
	if id, ok := session.IdentityOf(state); ok {
		if id.Email != "" {
			fmt.Fprintf(&b, "- Email: %s", id.Email)
			if !id.EmailVerified {
				b.WriteString(" (not verified)")
			}
			b.WriteString("\n")
		}
		if id.PhoneNumber != "" {
			fmt.Fprintf(&b, "- Phone: %s\n", id.PhoneNumber)
		}
	}
	if owner, ok := a.tracker.Owner(); ok {
		where := "this device"
		if !owner.IsGuest() {
			where = "your account"
		}
		fmt.Fprintf(&b, "- Record stored on %s\n", where)
	}
	if err := a.tracker.Err(); err != nil {
		fmt.Fprintf(&b, "- Record unavailable: %v\n", err)
	}
	fmt.Fprintf(&b, "- Remote store: %s\n", configured(a.Remote != nil))
	fmt.Fprintf(&b, "- Sign-in: %s\n", configured(a.Provider != nil))
	a.printMarkdown(b.String())
	return subcommands.ExitSuccess
}

func configured(ok bool) string {
	if ok {
		return "configured"
	}
	return "not configured"
}

type guestCmd struct{ app *App }

func (*guestCmd) Name() string     { return "guest" }
func (*guestCmd) Synopsis() string { return "use moniclear without an account" }
func (*guestCmd) Usage() string {
	return `moniclear guest

  Starts a guest session. Data stays on this device until you sign in,
  then it is moved into the account if the account is still empty.
`
}
func (*guestCmd) SetFlags(*flag.FlagSet) {}

func (c *guestCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a := c.app
	if !a.open(ctx) {
		return subcommands.ExitFailure
	}
	if err := a.holder.EnterGuest(ctx); err != nil {
		return a.fail("starting guest session", err)
	}
	fmt.Fprintln(a.Out, "Guest session started. Data is stored on this device.")
	return subcommands.ExitSuccess
}

type loginCmd struct {
	app *App

	email       string
	password    string
	provider    string
	idToken     string
	accessToken string
}

func (*loginCmd) Name() string     { return "login" }
func (*loginCmd) Synopsis() string { return "sign in with email or an external provider" }
func (*loginCmd) Usage() string {
	return `moniclear login -email <email> [-password <password>]
moniclear login -provider google.com -id-token <token>

  Signs in. The password may also be given in $MONICLEAR_PASSWORD.
  Guest data is moved into the account when the account has no entries yet.
`
}

func (c *loginCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.email, "email", "", "account email")
	f.StringVar(&c.password, "password", "", "account password")
	f.StringVar(&c.provider, "provider", "", "external provider id, e.g. google.com")
	f.StringVar(&c.idToken, "id-token", "", "ID token issued by the external provider")
	f.StringVar(&c.accessToken, "access-token", "", "OAuth access token issued by the external provider")
}

func (c *loginCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a := c.app
	if c.provider == "" && c.email == "" {
		fmt.Fprintln(a.Err, "Error: -email or -provider is required")
		return subcommands.ExitUsageError
	}
	if !a.open(ctx) {
		return subcommands.ExitFailure
	}

	var (
		id  auth.Identity
		err error
	)
	if c.provider != "" {
		id, err = a.holder.SignInFederated(ctx, auth.FederatedCredential{
			ProviderID:  c.provider,
			IDToken:     c.idToken,
			AccessToken: c.accessToken,
		})
	} else {
		id, err = a.holder.SignInWithEmail(ctx, c.email, passwordOr(c.password))
	}
	if err != nil {
		return a.fail("signing in", err)
	}
	a.printSignedIn(id)
	return subcommands.ExitSuccess
}

func (a *App) printSignedIn(id auth.Identity) {
	name := id.Email
	if id.DisplayName != "" {
		name = id.DisplayName
	}
	if name == "" {
		name = id.PhoneNumber
	}
	fmt.Fprintf(a.Out, "Signed in as %s.\n", name)
	if err := a.tracker.Err(); err != nil {
		fmt.Fprintf(a.Err, "Warning: record unavailable: %v\n", err)
	}
}

func passwordOr(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return os.Getenv(passwordEnv)
}

type signupCmd struct {
	app *App

	email    string
	password string
}

func (*signupCmd) Name() string     { return "signup" }
func (*signupCmd) Synopsis() string { return "create an account" }
func (*signupCmd) Usage() string {
	return `moniclear signup -email <email> [-password <password>]

  Creates an account, signs in and sends a verification email.
`
}

func (c *signupCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.email, "email", "", "account email")
	f.StringVar(&c.password, "password", "", "account password, at least 6 characters")
}

func (c *signupCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a := c.app
	if c.email == "" {
		fmt.Fprintln(a.Err, "Error: -email is required")
		return subcommands.ExitUsageError
	}
	if !a.open(ctx) {
		return subcommands.ExitFailure
	}
	id, err := a.holder.SignUpWithEmail(ctx, c.email, passwordOr(c.password))
	if err != nil {
		return a.fail("signing up", err)
	}
	a.printSignedIn(id)
	fmt.Fprintln(a.Out, "Check your inbox to verify your email.")
	return subcommands.ExitSuccess
}

type phoneCmd struct {
	app *App

	challengeToken string
}

func (*phoneCmd) Name() string     { return "phone" }
func (*phoneCmd) Synopsis() string { return "start a phone number sign-in" }
func (*phoneCmd) Usage() string {
	return `moniclear phone -challenge-token <token> <+15551234567>

  Sends a sign-in code by SMS. The challenge token is the reCAPTCHA
  response obtained for this attempt.
`
}

func (c *phoneCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.challengeToken, "challenge-token", "", "reCAPTCHA response token")
}

func (c *phoneCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a := c.app
	if f.NArg() != 1 {
		fmt.Fprintln(a.Err, "Error: exactly one phone number is required")
		return subcommands.ExitUsageError
	}
	if !a.open(ctx) {
		return subcommands.ExitFailure
	}
	challenge, err := a.holder.StartPhoneSignIn(ctx, f.Arg(0), auth.StaticChallenger(c.challengeToken))
	if err != nil {
		return a.fail("starting phone sign-in", err)
	}
	fmt.Fprintf(a.Out, "Verification code sent to %s.\n", challenge.PhoneNumber)
	return subcommands.ExitSuccess
}

type resetPasswordCmd struct {
	app   *App
	email string
}

func (*resetPasswordCmd) Name() string     { return "reset-password" }
func (*resetPasswordCmd) Synopsis() string { return "email a password reset link" }
func (*resetPasswordCmd) Usage() string {
	return `moniclear reset-password -email <email>
`
}

func (c *resetPasswordCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.email, "email", "", "account email")
}

func (c *resetPasswordCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a := c.app
	if c.email == "" {
		fmt.Fprintln(a.Err, "Error: -email is required")
		return subcommands.ExitUsageError
	}
	if !a.open(ctx) {
		return subcommands.ExitFailure
	}
	if err := a.holder.SendPasswordReset(ctx, c.email); err != nil {
		return a.fail("sending password reset", err)
	}
	logger.Log.Info().Str("email", logger.RedactEmail(c.email)).Msg("Password reset requested")
	fmt.Fprintln(a.Out, "Password reset email sent.")
	return subcommands.ExitSuccess
}

type resendVerificationCmd struct{ app *App }

func (*resendVerificationCmd) Name() string     { return "resend-verification" }
func (*resendVerificationCmd) Synopsis() string { return "send the verification email again" }
func (*resendVerificationCmd) Usage() string {
	return `moniclear resend-verification
`
}
func (*resendVerificationCmd) SetFlags(*flag.FlagSet) {}

func (c *resendVerificationCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a := c.app
	if !a.open(ctx) {
		return subcommands.ExitFailure
	}
	if err := a.holder.ResendVerification(ctx); err != nil {
		return a.fail("sending verification email", err)
	}
	fmt.Fprintln(a.Out, "Verification email sent.")
	return subcommands.ExitSuccess
}

type logoutCmd struct{ app *App }

func (*logoutCmd) Name() string     { return "logout" }
func (*logoutCmd) Synopsis() string { return "sign out or leave the guest session" }
func (*logoutCmd) Usage() string {
	return `moniclear logout

  Ends the session. Guest data stays on this device.
`
}
func (*logoutCmd) SetFlags(*flag.FlagSet) {}

func (c *logoutCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a := c.app
	if !a.open(ctx) {
		return subcommands.ExitFailure
	}
	if err := a.holder.Logout(ctx); err != nil {
		return a.fail("signing out", err)
	}
	fmt.Fprintln(a.Out, "Signed out.")
	return subcommands.ExitSuccess
}
