package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { s.Close() }) //nolint:errcheck
	return s
}

func TestSQLite_LoadMissing(t *testing.T) {
	s := newTestSQLite(t)

	_, err := s.Load(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLite_SaveLoadOverwrite(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, "k", []byte(`[{"id":"1"}]`)))
	got, err := s.Load(ctx, "k")
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":"1"}]`, string(got))

	require.NoError(t, s.Save(ctx, "k", []byte(`[]`)))
	got, err = s.Load(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "[]", string(got))
}

func TestSQLite_Delete(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, "k", []byte("x")))
	require.NoError(t, s.Delete(ctx, "k"))
	_, err := s.Load(ctx, "k")
	assert.ErrorIs(t, err, ErrNotFound)

	// Absent keys delete cleanly.
	assert.NoError(t, s.Delete(ctx, "k"))
}

func TestSQLite_MigrateIdempotent(t *testing.T) {
	s := newTestSQLite(t)
	assert.NoError(t, s.Migrate(context.Background()))
}

func TestSQLite_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reopen.db")
	ctx := context.Background()

	s, err := NewSQLite(path)
	require.NoError(t, err)
	require.NoError(t, s.Migrate(ctx))
	require.NoError(t, s.Save(ctx, "k", []byte("data")))
	require.NoError(t, s.Close())

	s2, err := NewSQLite(path)
	require.NoError(t, err)
	defer s2.Close() //nolint:errcheck
	got, err := s2.Load(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "data", string(got))
}
