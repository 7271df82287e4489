package recordstore

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"gitlab.com/yelinaung/moniclear/internal/localstore"
	"gitlab.com/yelinaung/moniclear/internal/models"
)

const testDebounce = 20 * time.Millisecond

func newAdapter(t *testing.T, remote RemoteStore, local KeyValueStore) *Adapter {
	t.Helper()
	a := New(context.Background(), remote, local, NewSubscriptions(), WithDebounce(testDebounce))
	t.Cleanup(func() { _ = a.Close(context.Background()) })
	return a
}

func recordWithBill(t testing.TB, name string) *models.FinancialRecord {
	t.Helper()
	r := models.NewRecord()
	_, err := r.AddBill(name, decimal.NewFromInt(50), "2025-04-01", false)
	require.NoError(t, err)
	return r
}

func TestAdapter_Load(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("returns the empty default for a new guest without writing it", func(t *testing.T) {
		t.Parallel()
		local := newLocal(t)
		a := newAdapter(t, newMemRemote(), local)

		r, err := a.Load(ctx, GuestOwner())
		require.NoError(t, err)
		require.False(t, r.HasActivity())
		require.Nil(t, guestRecord(t, local))
	})

	t.Run("reads the guest record", func(t *testing.T) {
		t.Parallel()
		local := newLocal(t)
		seedGuest(t, local, recordWithBill(t, "Gym"))
		a := newAdapter(t, newMemRemote(), local)

		r, err := a.Load(ctx, GuestOwner())
		require.NoError(t, err)
		require.Equal(t, "Gym", r.Bills[0].Name)
	})

	t.Run("propagates local read failures", func(t *testing.T) {
		t.Parallel()
		a := newAdapter(t, newMemRemote(), &flakyLocal{KeyValueStore: newLocal(t), getErr: errStoreDown})

		_, err := a.Load(ctx, GuestOwner())
		require.ErrorIs(t, err, errStoreDown)
	})

	t.Run("creates a missing remote record", func(t *testing.T) {
		t.Parallel()
		remote := newMemRemote()
		a := newAdapter(t, remote, newLocal(t))

		r, err := a.Load(ctx, UserOwner("uid-1"))
		require.NoError(t, err)
		require.False(t, r.HasActivity())
		require.NotNil(t, remote.doc(t, "uid-1"))
	})

	t.Run("reads an existing remote record", func(t *testing.T) {
		t.Parallel()
		remote := newMemRemote()
		remote.seed(t, "uid-1", recordWithBill(t, "Rent"))
		a := newAdapter(t, remote, newLocal(t))

		r, err := a.Load(ctx, UserOwner("uid-1"))
		require.NoError(t, err)
		require.Equal(t, "Rent", r.Bills[0].Name)
		require.Zero(t, remote.putCount())
	})

	t.Run("propagates remote failures", func(t *testing.T) {
		t.Parallel()
		remote := newMemRemote()
		remote.getErr = errStoreDown
		a := newAdapter(t, remote, newLocal(t))

		_, err := a.Load(ctx, UserOwner("uid-1"))
		require.ErrorIs(t, err, errStoreDown)
	})

	t.Run("fails for signed-in owners without a remote store", func(t *testing.T) {
		t.Parallel()
		a := newAdapter(t, nil, newLocal(t))

		_, err := a.Load(ctx, UserOwner("uid-1"))
		require.ErrorIs(t, err, ErrRemoteUnavailable)
	})
}

type eventLog struct {
	mu     sync.Mutex
	events []*models.FinancialRecord
}

func (l *eventLog) add(r *models.FinancialRecord) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, r)
}

func (l *eventLog) all() []*models.FinancialRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*models.FinancialRecord(nil), l.events...)
}

func TestAdapter_Subscribe(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("rejects guest owners", func(t *testing.T) {
		t.Parallel()
		a := newAdapter(t, newMemRemote(), newLocal(t))

		_, err := a.Subscribe(ctx, GuestOwner(), func(*models.FinancialRecord) {})
		require.ErrorIs(t, err, ErrGuestSubscription)
	})

	t.Run("delivers the current record and our own writes", func(t *testing.T) {
		t.Parallel()
		remote := newMemRemote()
		remote.seed(t, "uid-1", recordWithBill(t, "Rent"))
		a := newAdapter(t, remote, newLocal(t))
		events := &eventLog{}

		sub, err := a.Subscribe(ctx, UserOwner("uid-1"), events.add)
		require.NoError(t, err)
		defer sub.Unsubscribe()

		require.NoError(t, a.SaveNow(ctx, UserOwner("uid-1"), recordWithBill(t, "Power")))

		got := events.all()
		require.Len(t, got, 2)
		require.Equal(t, "Rent", got[0].Bills[0].Name)
		require.Equal(t, "Power", got[1].Bills[0].Name)
	})

	t.Run("delivers nil on subscription failure", func(t *testing.T) {
		t.Parallel()
		remote := newMemRemote()
		remote.seed(t, "uid-1", recordWithBill(t, "Rent"))
		a := newAdapter(t, remote, newLocal(t))
		events := &eventLog{}

		sub, err := a.Subscribe(ctx, UserOwner("uid-1"), events.add)
		require.NoError(t, err)
		defer sub.Unsubscribe()

		remote.fail("uid-1", errStoreDown)

		got := events.all()
		require.Len(t, got, 2)
		require.Nil(t, got[1])
	})

	t.Run("propagates watch failures", func(t *testing.T) {
		t.Parallel()
		remote := newMemRemote()
		remote.watchErr = errStoreDown
		a := newAdapter(t, remote, newLocal(t))

		_, err := a.Subscribe(ctx, UserOwner("uid-1"), func(*models.FinancialRecord) {})
		require.ErrorIs(t, err, errStoreDown)
		require.Zero(t, a.Subscriptions().Len())
	})

	t.Run("tracks handles in the registry until released", func(t *testing.T) {
		t.Parallel()
		remote := newMemRemote()
		a := newAdapter(t, remote, newLocal(t))

		sub, err := a.Subscribe(ctx, UserOwner("uid-1"), func(*models.FinancialRecord) {})
		require.NoError(t, err)
		require.Equal(t, 1, a.Subscriptions().Len())
		require.Equal(t, UserOwner("uid-1"), sub.Owner())

		sub.Unsubscribe()
		sub.Unsubscribe()
		require.Zero(t, a.Subscriptions().Len())
		require.Zero(t, remote.watcherCount())
	})

	t.Run("close releases every subscription", func(t *testing.T) {
		t.Parallel()
		remote := newMemRemote()
		a := New(ctx, remote, newLocal(t), NewSubscriptions(), WithDebounce(testDebounce))

		for _, uid := range []string{"uid-1", "uid-2"} {
			_, err := a.Subscribe(ctx, UserOwner(uid), func(*models.FinancialRecord) {})
			require.NoError(t, err)
		}
		require.Equal(t, 2, remote.watcherCount())

		require.NoError(t, a.Close(ctx))
		require.Zero(t, a.Subscriptions().Len())
		require.Zero(t, remote.watcherCount())
	})
}

func TestAdapter_Save(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("coalesces saves inside the window into one write of the latest record", func(t *testing.T) {
		t.Parallel()
		remote := newMemRemote()
		a := newAdapter(t, remote, newLocal(t))
		owner := UserOwner("uid-1")

		const n = 5
		var last *models.FinancialRecord
		for i := range n {
			last = recordWithBill(t, "bill-"+string(rune('a'+i)))
			a.Save(owner, last)
		}
		require.True(t, a.Pending())

		require.Eventually(t, func() bool { return remote.putCount() == 1 }, time.Second, 5*time.Millisecond)
		time.Sleep(3 * testDebounce)
		require.Equal(t, 1, remote.putCount())
		requireSameRecord(t, last, remote.doc(t, "uid-1"))
		require.False(t, a.Pending())
	})

	t.Run("writes guest records to the local store", func(t *testing.T) {
		t.Parallel()
		remote := newMemRemote()
		local := newLocal(t)
		a := newAdapter(t, remote, local)
		r := recordWithBill(t, "Gym")

		a.Save(GuestOwner(), r)

		require.Eventually(t, func() bool { return guestRecord(t, local) != nil }, time.Second, 5*time.Millisecond)
		requireSameRecord(t, r, guestRecord(t, local))
		require.Zero(t, remote.putCount())
	})

	t.Run("keeps owners apart", func(t *testing.T) {
		t.Parallel()
		remote := newMemRemote()
		a := newAdapter(t, remote, newLocal(t))

		a.Save(UserOwner("uid-1"), recordWithBill(t, "One"))
		a.Save(UserOwner("uid-2"), recordWithBill(t, "Two"))
		require.NoError(t, a.Flush(ctx))

		require.Equal(t, "One", remote.doc(t, "uid-1").Bills[0].Name)
		require.Equal(t, "Two", remote.doc(t, "uid-2").Bills[0].Name)
	})
}

// gatedRemote holds every Put until release is closed and reports the first
// bill name of each record as its Put starts.
type gatedRemote struct {
	*memRemote
	started chan string
	release chan struct{}
}

func (g *gatedRemote) Put(ctx context.Context, uid string, record *models.FinancialRecord) error {
	g.started <- record.Bills[0].Name
	<-g.release
	return g.memRemote.Put(ctx, uid, record)
}

func receive(t *testing.T, ch <-chan string) string {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for a write")
		return ""
	}
}

func TestAdapter_WriteOrdering(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("lets an in-flight write finish before the newer one lands", func(t *testing.T) {
		t.Parallel()
		remote := &gatedRemote{
			memRemote: newMemRemote(),
			started:   make(chan string, 2),
			release:   make(chan struct{}),
		}
		a := newAdapter(t, remote, newLocal(t))
		open := sync.OnceFunc(func() { close(remote.release) })
		t.Cleanup(open)
		owner := UserOwner("uid-1")

		a.Save(owner, recordWithBill(t, "First"))
		require.Equal(t, "First", receive(t, remote.started))

		a.Save(owner, recordWithBill(t, "Second"))
		require.Eventually(t, func() bool { return !a.Pending() }, time.Second, 5*time.Millisecond)
		require.Zero(t, remote.putCount())

		open()
		require.Equal(t, "Second", receive(t, remote.started))
		require.Eventually(t, func() bool { return remote.putCount() == 2 }, time.Second, 5*time.Millisecond)
		require.Equal(t, "Second", remote.doc(t, "uid-1").Bills[0].Name)
	})

	t.Run("drops a save that reaches the store after a newer one", func(t *testing.T) {
		t.Parallel()
		remote := newMemRemote()
		a := newAdapter(t, remote, newLocal(t))
		owner := UserOwner("uid-1")

		require.NoError(t, a.write(ctx, owner, recordWithBill(t, "Fresh"), 2))
		require.NoError(t, a.write(ctx, owner, recordWithBill(t, "Stale"), 1))

		require.Equal(t, 1, remote.putCount())
		require.Equal(t, "Fresh", remote.doc(t, "uid-1").Bills[0].Name)
	})

	t.Run("keeps sequences per owner", func(t *testing.T) {
		t.Parallel()
		remote := newMemRemote()
		a := newAdapter(t, remote, newLocal(t))

		require.NoError(t, a.write(ctx, UserOwner("uid-1"), recordWithBill(t, "One"), 2))
		require.NoError(t, a.write(ctx, UserOwner("uid-2"), recordWithBill(t, "Two"), 1))

		require.Equal(t, 2, remote.putCount())
	})
}

func TestAdapter_Flush(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("writes pending saves immediately", func(t *testing.T) {
		t.Parallel()
		remote := newMemRemote()
		a := New(ctx, remote, newLocal(t), NewSubscriptions(), WithDebounce(time.Hour))
		defer func() { _ = a.Close(ctx) }()

		a.Save(UserOwner("uid-1"), recordWithBill(t, "Rent"))
		require.NoError(t, a.Flush(ctx))
		require.Equal(t, 1, remote.putCount())
		require.False(t, a.Pending())
	})

	t.Run("returns the write error", func(t *testing.T) {
		t.Parallel()
		remote := newMemRemote()
		remote.putErr = errStoreDown
		a := newAdapter(t, remote, newLocal(t))

		a.Save(UserOwner("uid-1"), recordWithBill(t, "Rent"))
		require.ErrorIs(t, a.Flush(ctx), errStoreDown)
	})

	t.Run("is a no-op without pending saves", func(t *testing.T) {
		t.Parallel()
		remote := newMemRemote()
		a := newAdapter(t, remote, newLocal(t))

		require.NoError(t, a.Flush(ctx))
		require.Zero(t, remote.putCount())
	})

	t.Run("close flushes pending saves", func(t *testing.T) {
		t.Parallel()
		local := newLocal(t)
		a := New(ctx, newMemRemote(), local, NewSubscriptions(), WithDebounce(time.Hour))

		a.Save(GuestOwner(), recordWithBill(t, "Gym"))
		require.NoError(t, a.Close(ctx))
		require.NotNil(t, guestRecord(t, local))

		a.Save(GuestOwner(), recordWithBill(t, "Dropped"))
		require.False(t, a.Pending())
	})
}

func TestAdapter_SaveNow(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	remote := newMemRemote()
	a := newAdapter(t, remote, newLocal(t))
	owner := UserOwner("uid-1")

	a.Save(owner, recordWithBill(t, "Stale"))
	require.NoError(t, a.SaveNow(ctx, owner, recordWithBill(t, "Fresh")))
	time.Sleep(3 * testDebounce)

	require.Equal(t, 1, remote.putCount())
	require.Equal(t, "Fresh", remote.doc(t, "uid-1").Bills[0].Name)
}

func TestAdapter_GuestKeyName(t *testing.T) {
	t.Parallel()
	local := newLocal(t)
	a := newAdapter(t, newMemRemote(), local)

	require.NoError(t, a.SaveNow(context.Background(), GuestOwner(), models.NewRecord()))

	_, ok, err := local.Get(context.Background(), localstore.KeyGuestData)
	require.NoError(t, err)
	require.True(t, ok)
}
