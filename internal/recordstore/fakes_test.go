package recordstore

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"gitlab.com/yelinaung/moniclear/internal/localstore"
	"gitlab.com/yelinaung/moniclear/internal/models"
)

var errStoreDown = errors.New("store down")

// memRemote is an in-memory RemoteStore that pushes every Put to watchers.
type memRemote struct {
	mu       sync.Mutex
	docs     map[string][]byte
	puts     []string
	getErr   error
	putErr   error
	watchErr error
	watchers map[int]watcher
	nextID   int
}

type watcher struct {
	uid      string
	onChange func(*models.FinancialRecord, error)
}

func newMemRemote() *memRemote {
	return &memRemote{docs: map[string][]byte{}, watchers: map[int]watcher{}}
}

func (m *memRemote) Get(_ context.Context, uid string) (*models.FinancialRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	data, ok := m.docs[uid]
	if !ok {
		return nil, models.ErrRecordNotFound
	}
	return models.DecodeRecord(data)
}

func (m *memRemote) Put(_ context.Context, uid string, record *models.FinancialRecord) error {
	m.mu.Lock()
	if m.putErr != nil {
		m.mu.Unlock()
		return m.putErr
	}
	data, err := models.EncodeRecord(record.Clone())
	if err != nil {
		m.mu.Unlock()
		return err
	}
	m.docs[uid] = data
	m.puts = append(m.puts, uid)
	var targets []watcher
	for _, w := range m.watchers {
		if w.uid == uid {
			targets = append(targets, w)
		}
	}
	m.mu.Unlock()

	for _, w := range targets {
		r, _ := models.DecodeRecord(data)
		w.onChange(r, nil)
	}
	return nil
}

func (m *memRemote) Watch(_ context.Context, uid string, onChange func(*models.FinancialRecord, error)) (func(), error) {
	m.mu.Lock()
	if m.watchErr != nil {
		m.mu.Unlock()
		return nil, m.watchErr
	}
	m.nextID++
	id := m.nextID
	m.watchers[id] = watcher{uid: uid, onChange: onChange}
	data, ok := m.docs[uid]
	m.mu.Unlock()

	if ok {
		r, _ := models.DecodeRecord(data)
		onChange(r, nil)
	} else {
		onChange(nil, nil)
	}

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.watchers, id)
	}, nil
}

// fail pushes an error to every watcher of uid.
func (m *memRemote) fail(uid string, err error) {
	m.mu.Lock()
	var targets []watcher
	for _, w := range m.watchers {
		if w.uid == uid {
			targets = append(targets, w)
		}
	}
	m.mu.Unlock()
	for _, w := range targets {
		w.onChange(nil, err)
	}
}

func (m *memRemote) putCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.puts)
}

func (m *memRemote) watcherCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.watchers)
}

func (m *memRemote) doc(t *testing.T, uid string) *models.FinancialRecord {
	t.Helper()
	m.mu.Lock()
	data, ok := m.docs[uid]
	m.mu.Unlock()
	if !ok {
		return nil
	}
	r, err := models.DecodeRecord(data)
	require.NoError(t, err)
	return r
}

func (m *memRemote) seed(t *testing.T, uid string, r *models.FinancialRecord) {
	t.Helper()
	data, err := models.EncodeRecord(r)
	require.NoError(t, err)
	m.mu.Lock()
	m.docs[uid] = data
	m.mu.Unlock()
}

// flakyLocal wraps a local store and can fail individual operations.
type flakyLocal struct {
	KeyValueStore
	getErr    error
	setErr    error
	removeErr error
}

func (f *flakyLocal) Get(ctx context.Context, key string) (string, bool, error) {
	if f.getErr != nil {
		return "", false, f.getErr
	}
	return f.KeyValueStore.Get(ctx, key)
}

func (f *flakyLocal) Set(ctx context.Context, key, value string) error {
	if f.setErr != nil {
		return f.setErr
	}
	return f.KeyValueStore.Set(ctx, key, value)
}

func (f *flakyLocal) Remove(ctx context.Context, key string) error {
	if f.removeErr != nil {
		return f.removeErr
	}
	return f.KeyValueStore.Remove(ctx, key)
}

func newLocal(t testing.TB) *localstore.Store {
	t.Helper()
	s, err := localstore.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func guestRecord(t testing.TB, local KeyValueStore) *models.FinancialRecord {
	t.Helper()
	raw, ok, err := local.Get(context.Background(), localstore.KeyGuestData)
	require.NoError(t, err)
	if !ok {
		return nil
	}
	r, err := models.DecodeRecord([]byte(raw))
	require.NoError(t, err)
	return r
}

func seedGuest(t testing.TB, local KeyValueStore, r *models.FinancialRecord) {
	t.Helper()
	data, err := models.EncodeRecord(r)
	require.NoError(t, err)
	require.NoError(t, local.Set(context.Background(), localstore.KeyGuestData, string(data)))
}

func requireSameRecord(t testing.TB, want, got *models.FinancialRecord) {
	t.Helper()
	require.NotNil(t, got)
	wantJSON, err := models.EncodeRecord(want.Clone())
	require.NoError(t, err)
	gotJSON, err := models.EncodeRecord(got.Clone())
	require.NoError(t, err)
	require.JSONEq(t, string(wantJSON), string(gotJSON))
}
