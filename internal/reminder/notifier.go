package reminder

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"gitlab.com/yelinaung/moniclear/internal/logger"
	"gitlab.com/yelinaung/moniclear/internal/models"
)

const (
	// SendTimeout bounds a single Telegram call.
	SendTimeout = 30 * time.Second
	pollTimeout = time.Minute
)

// Sender is the subset of the Telegram API used to deliver reminders.
type Sender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*tgmodels.Message, error)
	SendDocument(ctx context.Context, params *bot.SendDocumentParams) (*tgmodels.Message, error)
}

// Notifier delivers reminders to one chat.
type Notifier struct {
	sender   Sender
	chatID   int64
	currency string
	now      func() time.Time
}

// NewNotifier creates a notifier sending through s.
func NewNotifier(s Sender, chatID int64, currency string) *Notifier {
	return &Notifier{sender: s, chatID: chatID, currency: currency, now: time.Now}
}

// SetClock replaces the time source used to compute due dates.
func (n *Notifier) SetClock(now func() time.Time) {
	n.now = now
}

// NewTelegramSender creates a Telegram client whose HTTP calls are traced.
// Extra options are applied last, e.g. bot.WithServerURL in tests.
func NewTelegramSender(token string, opts ...bot.Option) (*bot.Bot, error) {
	client := &http.Client{
		Timeout:   SendTimeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
	options := append([]bot.Option{
		bot.WithSkipGetMe(),
		bot.WithHTTPClient(pollTimeout, client),
	}, opts...)

	b, err := bot.New(token, options...)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	return b, nil
}

// NotifyDue sends one message listing the bills due within daysAhead days.
// It returns the number of bills listed; nothing is sent when none are due.
func (n *Notifier) NotifyDue(ctx context.Context, r *models.FinancialRecord, daysAhead int) (int, error) {
	due := DueBills(r, n.now(), daysAhead)
	if len(due) == 0 {
		logger.Log.Debug().Int("days_ahead", daysAhead).Msg("No bills due")
		return 0, nil
	}

	ctx, cancel := context.WithTimeout(ctx, SendTimeout)
	defer cancel()

	_, err := n.sender.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: n.chatID,
		Text:   Message(due, n.currency),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to send reminder: %w", err)
	}

	logger.Log.Info().Int("bills", len(due)).Msg("Sent bill reminder")
	return len(due), nil
}

// SendChart uploads a PNG chart with a caption.
func (n *Notifier) SendChart(ctx context.Context, png []byte, filename, caption string) error {
	ctx, cancel := context.WithTimeout(ctx, SendTimeout)
	defer cancel()

	_, err := n.sender.SendDocument(ctx, &bot.SendDocumentParams{
		ChatID:   n.chatID,
		Document: &tgmodels.InputFileUpload{Filename: filename, Data: bytes.NewReader(png)},
		Caption:  caption,
	})
	if err != nil {
		return fmt.Errorf("failed to send chart: %w", err)
	}
	return nil
}
