package localstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_GetSet(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("reports absent keys", func(t *testing.T) {
		t.Parallel()
		s := newTestStore(t)

		v, ok, err := s.Get(ctx, KeyGuestData)
		require.NoError(t, err)
		require.False(t, ok)
		require.Empty(t, v)
	})

	t.Run("returns stored values", func(t *testing.T) {
		t.Parallel()
		s := newTestStore(t)

		require.NoError(t, s.Set(ctx, KeyIsGuest, "true"))

		v, ok, err := s.Get(ctx, KeyIsGuest)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, "true", v)
	})

	t.Run("overwrites existing values", func(t *testing.T) {
		t.Parallel()
		s := newTestStore(t)

		require.NoError(t, s.Set(ctx, KeyGuestData, `{"bills":[]}`))
		require.NoError(t, s.Set(ctx, KeyGuestData, `{"bills":[{"id":"b1"}]}`))

		v, ok, err := s.Get(ctx, KeyGuestData)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, `{"bills":[{"id":"b1"}]}`, v)
	})
}

func TestStore_Remove(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("deletes the key", func(t *testing.T) {
		t.Parallel()
		s := newTestStore(t)

		require.NoError(t, s.Set(ctx, KeyAuthSession, "{}"))
		require.NoError(t, s.Remove(ctx, KeyAuthSession))

		_, ok, err := s.Get(ctx, KeyAuthSession)
		require.NoError(t, err)
		require.False(t, ok)
	})

	t.Run("ignores absent keys", func(t *testing.T) {
		t.Parallel()
		s := newTestStore(t)
		require.NoError(t, s.Remove(ctx, "missing"))
	})

	t.Run("leaves other keys alone", func(t *testing.T) {
		t.Parallel()
		s := newTestStore(t)

		require.NoError(t, s.Set(ctx, KeyGuestData, "{}"))
		require.NoError(t, s.Set(ctx, KeyIsGuest, "true"))
		require.NoError(t, s.Remove(ctx, KeyIsGuest))

		_, ok, err := s.Get(ctx, KeyGuestData)
		require.NoError(t, err)
		require.True(t, ok)
	})
}

func TestOpen_PersistsAcrossReopen(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "moniclear.db")

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, KeyIsGuest, "true"))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	v, ok, err := s.Get(ctx, KeyIsGuest)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "true", v)
}
