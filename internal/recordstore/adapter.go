// Package recordstore loads, subscribes to and saves one FinancialRecord per
// owner, against the local store for guests and the remote store otherwise.
package recordstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"

	"gitlab.com/yelinaung/moniclear/internal/localstore"
	"gitlab.com/yelinaung/moniclear/internal/logger"
	"gitlab.com/yelinaung/moniclear/internal/models"
)

const instrumentationName = "gitlab.com/yelinaung/moniclear/internal/recordstore"

// DefaultDebounce is the default save debounce window.
const DefaultDebounce = 500 * time.Millisecond

var (
	// ErrGuestSubscription is returned when subscribing to the guest record.
	ErrGuestSubscription = errors.New("guest records have no live subscription")
	// ErrRemoteUnavailable is returned for signed-in owners when no remote store is configured.
	ErrRemoteUnavailable = errors.New("remote record store is not configured")
)

// RemoteStore is the per-identity document store with change push.
type RemoteStore interface {
	Get(ctx context.Context, uid string) (*models.FinancialRecord, error)
	Put(ctx context.Context, uid string, record *models.FinancialRecord) error
	Watch(ctx context.Context, uid string, onChange func(*models.FinancialRecord, error)) (stop func(), err error)
}

// KeyValueStore is the durable local store.
type KeyValueStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithDebounce sets the save debounce window.
func WithDebounce(d time.Duration) Option {
	return func(a *Adapter) {
		if d > 0 {
			a.debounce = d
		}
	}
}

type pendingSave struct {
	record *models.FinancialRecord
	seq    uint64
	timer  *time.Timer
}

// Adapter is owned by one session scope. Close releases it.
type Adapter struct {
	ctx    context.Context
	cancel context.CancelFunc

	remote   RemoteStore
	local    KeyValueStore
	subs     *Subscriptions
	debounce time.Duration

	mu      sync.Mutex
	pending map[Owner]*pendingSave
	seq     uint64
	closed  bool

	// writeMu serializes writes. written holds the sequence of the latest
	// write per owner; older records reaching write are dropped.
	writeMu  sync.Mutex
	written  map[Owner]uint64
	inflight sync.WaitGroup

	tracer       trace.Tracer
	saves        metric.Int64Counter
	saveErrors   metric.Int64Counter
	reconciles   metric.Int64Counter
	saveDuration metric.Float64Histogram
}

// New creates an adapter whose subscriptions live no longer than ctx.
// remote may be nil, in which case only the guest owner is usable.
func New(ctx context.Context, remote RemoteStore, local KeyValueStore, subs *Subscriptions, opts ...Option) *Adapter {
	lifetime, cancel := context.WithCancel(ctx)
	meter := otel.Meter(instrumentationName)
	a := &Adapter{
		ctx:      lifetime,
		cancel:   cancel,
		remote:   remote,
		local:    local,
		subs:     subs,
		debounce: DefaultDebounce,
		pending:  make(map[Owner]*pendingSave),
		written:  make(map[Owner]uint64),
		tracer:   otel.Tracer(instrumentationName),

		saves:      counter(meter, "moniclear.record.saves", "Records written"),
		saveErrors: counter(meter, "moniclear.record.save_errors", "Record writes that failed"),
		reconciles: counter(meter, "moniclear.record.reconciliations", "Guest to account reconciliations by outcome"),
	}
	h, err := meter.Float64Histogram("moniclear.record.save.duration",
		metric.WithDescription("Record write latency"),
		metric.WithUnit("s"),
	)
	if err != nil {
		logger.Log.Warn().Err(err).Msg("Failed to create save duration histogram")
		h = noop.Float64Histogram{}
	}
	a.saveDuration = h
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func counter(meter metric.Meter, name, description string) metric.Int64Counter {
	c, err := meter.Int64Counter(name, metric.WithDescription(description))
	if err != nil {
		logger.Log.Warn().Err(err).Str("instrument", name).Msg("Failed to create counter")
		return noop.Int64Counter{}
	}
	return c
}

// Subscriptions returns the registry the adapter records subscriptions in.
func (a *Adapter) Subscriptions() *Subscriptions {
	return a.subs
}

// Load reads the owner's record. A missing guest record yields the empty
// default without writing it back. A missing remote record is created.
func (a *Adapter) Load(ctx context.Context, owner Owner) (*models.FinancialRecord, error) {
	ctx, span := a.tracer.Start(ctx, "recordstore.Load",
		trace.WithAttributes(attribute.String("backend", owner.backend())))
	defer span.End()

	record, err := a.load(ctx, owner)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return record, nil
}

func (a *Adapter) load(ctx context.Context, owner Owner) (*models.FinancialRecord, error) {
	if owner.IsGuest() {
		record, ok, err := a.readLocal(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			return models.NewRecord(), nil
		}
		return record, nil
	}

	if a.remote == nil {
		return nil, ErrRemoteUnavailable
	}
	record, err := a.remote.Get(ctx, owner.UID)
	if errors.Is(err, models.ErrRecordNotFound) {
		record = models.NewRecord()
		if err := a.remote.Put(ctx, owner.UID, record); err != nil {
			return nil, fmt.Errorf("failed to create record: %w", err)
		}
		logger.Log.Info().Str("identity_hash", owner.String()).Msg("Created empty record")
		return record, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load record: %w", err)
	}
	return record, nil
}

func (a *Adapter) readLocal(ctx context.Context) (*models.FinancialRecord, bool, error) {
	raw, ok, err := a.local.Get(ctx, localstore.KeyGuestData)
	if err != nil {
		return nil, false, fmt.Errorf("failed to read guest record: %w", err)
	}
	if !ok {
		return nil, false, nil
	}
	record, err := models.DecodeRecord([]byte(raw))
	if err != nil {
		return nil, false, fmt.Errorf("failed to read guest record: %w", err)
	}
	return record, true, nil
}

// Subscribe delivers the owner's current record and every later change,
// including the adapter's own writes. A subscription failure delivers nil.
// Only signed-in owners can subscribe.
func (a *Adapter) Subscribe(ctx context.Context, owner Owner, onChange func(*models.FinancialRecord)) (*Subscription, error) {
	if owner.IsGuest() {
		return nil, ErrGuestSubscription
	}
	if a.remote == nil {
		return nil, ErrRemoteUnavailable
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	stop, err := a.remote.Watch(a.ctx, owner.UID, func(record *models.FinancialRecord, err error) {
		if err != nil {
			logger.Log.Error().Err(err).
				Str("identity_hash", owner.String()).
				Msg("Record subscription failed")
			onChange(nil)
			return
		}
		onChange(record)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe: %w", err)
	}

	logger.Log.Debug().Str("identity_hash", owner.String()).Msg("Subscribed to record")
	return a.subs.add(owner, stop), nil
}

// Save schedules a debounced overwrite of the owner's record. Saves within the
// window collapse into one write of the latest record.
func (a *Adapter) Save(owner Owner, record *models.FinancialRecord) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		logger.Log.Warn().Str("identity_hash", owner.String()).Msg("Dropping save after close")
		return
	}

	if p, ok := a.pending[owner]; ok {
		p.timer.Stop()
	}
	a.seq++
	p := &pendingSave{record: record, seq: a.seq}
	p.timer = time.AfterFunc(a.debounce, func() { a.fire(owner, p) })
	a.pending[owner] = p
}

func (a *Adapter) fire(owner Owner, p *pendingSave) {
	a.mu.Lock()
	if a.pending[owner] != p {
		a.mu.Unlock()
		return
	}
	delete(a.pending, owner)
	a.inflight.Add(1)
	a.mu.Unlock()

	defer a.inflight.Done()
	// In-flight writes outlive the adapter's lifetime.
	if err := a.write(context.WithoutCancel(a.ctx), owner, p.record, p.seq); err != nil {
		logger.Log.Error().Err(err).
			Str("identity_hash", owner.String()).
			Msg("Debounced save failed")
	}
}

// Pending reports whether a debounced save is waiting.
func (a *Adapter) Pending() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.pending) > 0
}

// Flush writes every pending save now and waits for in-flight writes.
// It returns the first error.
func (a *Adapter) Flush(ctx context.Context) error {
	a.mu.Lock()
	pending := a.pending
	a.pending = make(map[Owner]*pendingSave)
	for _, p := range pending {
		p.timer.Stop()
	}
	a.mu.Unlock()

	var first error
	for owner, p := range pending {
		if err := a.write(ctx, owner, p.record, p.seq); err != nil && first == nil {
			first = err
		}
	}
	a.inflight.Wait()
	return first
}

// SaveNow cancels any pending save for owner and writes record immediately.
func (a *Adapter) SaveNow(ctx context.Context, owner Owner, record *models.FinancialRecord) error {
	a.mu.Lock()
	if p, ok := a.pending[owner]; ok {
		p.timer.Stop()
		delete(a.pending, owner)
	}
	a.seq++
	seq := a.seq
	a.mu.Unlock()
	return a.write(ctx, owner, record, seq)
}

// write persists record unless a record saved later for the same owner has
// already been written.
func (a *Adapter) write(ctx context.Context, owner Owner, record *models.FinancialRecord, seq uint64) error {
	a.writeMu.Lock()
	defer a.writeMu.Unlock()

	if seq < a.written[owner] {
		logger.Log.Debug().Str("identity_hash", owner.String()).Msg("Skipping superseded save")
		return nil
	}
	a.written[owner] = seq

	attrs := attribute.String("backend", owner.backend())
	ctx, span := a.tracer.Start(ctx, "recordstore.Save", trace.WithAttributes(attrs))
	defer span.End()
	start := time.Now()

	err := a.put(ctx, owner, record)
	a.saveDuration.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(attrs))
	if err != nil {
		a.saveErrors.Add(ctx, 1, metric.WithAttributes(attrs))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	a.saves.Add(ctx, 1, metric.WithAttributes(attrs))
	return nil
}

func (a *Adapter) put(ctx context.Context, owner Owner, record *models.FinancialRecord) error {
	if !owner.IsGuest() {
		if a.remote == nil {
			return ErrRemoteUnavailable
		}
		if err := a.remote.Put(ctx, owner.UID, record); err != nil {
			return fmt.Errorf("failed to save record: %w", err)
		}
		return nil
	}

	data, err := models.EncodeRecord(record)
	if err != nil {
		return err
	}
	if err := a.local.Set(ctx, localstore.KeyGuestData, string(data)); err != nil {
		return fmt.Errorf("failed to save guest record: %w", err)
	}
	return nil
}

// Reconcile moves the guest record into uid's remote record when the remote
// has no activity; otherwise the remote wins and the guest record is left as
// is. It reports success; failures are logged and not retried.
func (a *Adapter) Reconcile(ctx context.Context, uid string) bool {
	ctx, span := a.tracer.Start(ctx, "recordstore.Reconcile")
	defer span.End()

	outcome, err := a.reconcile(ctx, uid)
	span.SetAttributes(attribute.String("outcome", outcome))
	a.reconciles.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Log.Error().Err(err).
			Str("identity_hash", logger.HashIdentity(uid)).
			Msg("Failed to reconcile guest record")
		return false
	}
	logger.Log.Info().
		Str("identity_hash", logger.HashIdentity(uid)).
		Str("outcome", outcome).
		Msg("Reconciled guest record")
	return true
}

// Reconcile outcomes.
const (
	OutcomeNoGuestData = "no_guest_data"
	OutcomeRemoteWins  = "remote_wins"
	OutcomeMigrated    = "migrated"
	OutcomeFailed      = "failed"
)

func (a *Adapter) reconcile(ctx context.Context, uid string) (string, error) {
	local, ok, err := a.readLocal(ctx)
	if err != nil {
		return OutcomeFailed, err
	}
	if !ok {
		return OutcomeNoGuestData, nil
	}
	if a.remote == nil {
		return OutcomeFailed, ErrRemoteUnavailable
	}

	remote, err := a.remote.Get(ctx, uid)
	if err != nil && !errors.Is(err, models.ErrRecordNotFound) {
		return OutcomeFailed, fmt.Errorf("failed to read remote record: %w", err)
	}
	if remote.HasActivity() {
		return OutcomeRemoteWins, nil
	}

	if err := a.remote.Put(ctx, uid, local); err != nil {
		return OutcomeFailed, fmt.Errorf("failed to migrate guest record: %w", err)
	}
	if err := a.local.Remove(ctx, localstore.KeyGuestData); err != nil {
		return OutcomeFailed, fmt.Errorf("failed to remove guest record: %w", err)
	}
	return OutcomeMigrated, nil
}

// Close writes pending saves, releases every subscription and ends the
// adapter's lifetime. In-flight writes are not cancelled.
func (a *Adapter) Close(ctx context.Context) error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.mu.Unlock()

	err := a.Flush(ctx)

	a.mu.Lock()
	a.closed = true
	a.mu.Unlock()

	a.subs.CloseAll()
	a.cancel()
	return err
}
