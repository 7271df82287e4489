// Package tracker wires the session, the record store and the aggregation
// engine together: session changes select the record, and every record change
// is offered to listeners with its derived summary.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"gitlab.com/yelinaung/moniclear/internal/aggregate"
	"gitlab.com/yelinaung/moniclear/internal/logger"
	"gitlab.com/yelinaung/moniclear/internal/models"
	"gitlab.com/yelinaung/moniclear/internal/recordstore"
	"gitlab.com/yelinaung/moniclear/internal/session"
)

// ErrNoRecord is returned by Update when no record is attached.
var ErrNoRecord = errors.New("no record loaded: sign in or start a guest session")

// Listener receives every new record snapshot with its summary.
type Listener func(record *models.FinancialRecord, summary aggregate.Summary)

// Tracker follows the session and holds the current record snapshot.
// Snapshots are never mutated; Update publishes a modified copy.
type Tracker struct {
	session *session.Holder
	store   *recordstore.Adapter
	engine  *aggregate.Engine

	mu    sync.Mutex
	owner *recordstore.Owner
	// target is the owner of the latest attach attempt, set even when the
	// attempt failed.
	target    *recordstore.Owner
	record    *models.FinancialRecord
	sub       *recordstore.Subscription
	gen       uint64
	lastErr   error
	listeners []Listener
}

// New creates a tracker and registers it for session transitions.
func New(h *session.Holder, store *recordstore.Adapter) *Tracker {
	t := &Tracker{
		session: h,
		store:   store,
		engine:  aggregate.NewEngine(),
	}
	h.OnTransition(t.onTransition)
	return t
}

// Start restores the session and attaches to the resulting state. A restore
// failure leaves the session unauthenticated and is returned. Calling Start
// again does not repeat an attach already attempted for the current owner.
func (t *Tracker) Start(ctx context.Context) error {
	restoreErr := t.session.Restore(ctx)
	t.follow(ctx, t.session.State())
	if restoreErr != nil {
		return fmt.Errorf("failed to restore session: %w", restoreErr)
	}
	return t.Err()
}

// OnChange registers l for every published snapshot.
func (t *Tracker) OnChange(l Listener) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.listeners = append(t.listeners, l)
}

// Record returns the current snapshot, or nil when none is attached.
func (t *Tracker) Record() *models.FinancialRecord {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.record
}

// Summary returns the derived values of the current snapshot.
func (t *Tracker) Summary() aggregate.Summary {
	return t.engine.Summary(t.Record())
}

// Owner returns the attached owner.
func (t *Tracker) Owner() (recordstore.Owner, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.owner == nil {
		return recordstore.Owner{}, false
	}
	return *t.owner, true
}

// Err returns the last attach failure, if any.
func (t *Tracker) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastErr
}

// Update applies fn to a copy of the current record, validates it, publishes
// it and schedules a debounced save.
func (t *Tracker) Update(ctx context.Context, fn func(*models.FinancialRecord) error) (*models.FinancialRecord, error) {
	t.mu.Lock()
	if t.record == nil || t.owner == nil {
		t.mu.Unlock()
		return nil, ErrNoRecord
	}
	next := t.record.Clone()
	if err := fn(next); err != nil {
		t.mu.Unlock()
		return nil, err
	}
	if err := next.Validate(); err != nil {
		t.mu.Unlock()
		return nil, err
	}
	owner := *t.owner
	t.record = next
	t.mu.Unlock()

	t.store.Save(owner, next)
	t.publish(next)
	return next, nil
}

// Flush writes pending saves now.
func (t *Tracker) Flush(ctx context.Context) error {
	return t.store.Flush(ctx)
}

// Close releases the subscription and flushes pending saves.
func (t *Tracker) Close(ctx context.Context) error {
	t.mu.Lock()
	sub := t.sub
	t.sub = nil
	t.gen++
	t.mu.Unlock()

	if sub != nil {
		sub.Unsubscribe()
	}
	return t.store.Close(ctx)
}

func (t *Tracker) onTransition(ctx context.Context, _, to session.State) {
	t.follow(ctx, to)
}

// follow attaches the record that belongs to state s. Authenticating keeps the
// current attachment so a failed sign-in does not reload anything. Each owner
// is attempted once until the session moves to a different owner, so an
// account is reconciled once per sign-in even when its record fails to load.
func (t *Tracker) follow(ctx context.Context, s session.State) {
	var target *recordstore.Owner
	switch st := s.(type) {
	case session.Authenticating:
		return
	case session.Guest:
		o := recordstore.GuestOwner()
		target = &o
	case session.Authenticated:
		o := recordstore.UserOwner(st.Identity.UID)
		target = &o
	}

	t.mu.Lock()
	if sameOwner(t.target, target) {
		t.mu.Unlock()
		return
	}
	sub := t.sub
	t.sub = nil
	t.target = target
	t.owner = nil
	t.record = nil
	t.lastErr = nil
	t.gen++
	gen := t.gen
	t.mu.Unlock()

	if sub != nil {
		sub.Unsubscribe()
	}
	// Pending saves belong to the previous owner.
	if err := t.store.Flush(ctx); err != nil {
		logger.Log.Error().Err(err).Msg("Failed to flush saves before switching records")
	}

	if target == nil {
		t.publish(nil)
		return
	}

	if err := t.attach(ctx, *target, gen); err != nil {
		logger.Log.Error().Err(err).
			Str("identity_hash", target.String()).
			Msg("Failed to attach record")
		t.mu.Lock()
		if t.gen == gen {
			t.lastErr = err
		}
		t.mu.Unlock()
	}
}

func (t *Tracker) attach(ctx context.Context, owner recordstore.Owner, gen uint64) error {
	if !owner.IsGuest() {
		// Entering an account from any other state moves guest data over once.
		t.store.Reconcile(ctx, owner.UID)
	}

	record, err := t.store.Load(ctx, owner)
	if err != nil {
		return err
	}

	t.mu.Lock()
	if t.gen != gen {
		t.mu.Unlock()
		return nil
	}
	t.owner = &owner
	t.record = record
	t.mu.Unlock()
	t.publish(record)

	if owner.IsGuest() {
		return nil
	}

	sub, err := t.store.Subscribe(ctx, owner, func(r *models.FinancialRecord) {
		t.apply(gen, r)
	})
	if err != nil {
		return err
	}

	t.mu.Lock()
	if t.gen != gen {
		t.mu.Unlock()
		sub.Unsubscribe()
		return nil
	}
	t.sub = sub
	t.mu.Unlock()
	return nil
}

// apply takes a pushed snapshot. Nil events keep the current record, and
// pushes are ignored while a local save is pending so they cannot roll back
// newer local changes.
func (t *Tracker) apply(gen uint64, r *models.FinancialRecord) {
	if r == nil || t.store.Pending() {
		return
	}
	t.mu.Lock()
	if t.gen != gen || t.owner == nil {
		t.mu.Unlock()
		return
	}
	t.record = r
	t.mu.Unlock()
	t.publish(r)
}

func (t *Tracker) publish(r *models.FinancialRecord) {
	t.mu.Lock()
	listeners := append([]Listener(nil), t.listeners...)
	t.mu.Unlock()

	summary := t.engine.Summary(r)
	for _, l := range listeners {
		l(r, summary)
	}
}

func sameOwner(a, b *recordstore.Owner) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
