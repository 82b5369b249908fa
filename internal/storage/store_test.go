package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestPriceCache_RoundTrip(t *testing.T) {
	store := newTestStore(t)
	created := time.Unix(1_700_000_000, 0)
	price := "RM 7.50"

	require.NoError(t, store.SetPriceCache("k1", &PriceCacheEntry{Price: &price, CreatedAt: created}))
	require.NoError(t, store.SetPriceCache("k2", &PriceCacheEntry{CreatedAt: created}))

	got, err := store.GetPriceCache("k1")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.NotNil(t, got.Price)
	assert.Equal(t, "RM 7.50", *got.Price)
	assert.True(t, created.Equal(got.CreatedAt))

	notFound, err := store.GetPriceCache("k2")
	require.NoError(t, err)
	require.NotNil(t, notFound)
	assert.Nil(t, notFound.Price)

	missing, err := store.GetPriceCache("nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestPriceCache_Overwrite(t *testing.T) {
	store := newTestStore(t)
	old, fresh := "$10", "$12"

	require.NoError(t, store.SetPriceCache("k", &PriceCacheEntry{Price: &old, CreatedAt: time.Unix(100, 0)}))
	require.NoError(t, store.SetPriceCache("k", &PriceCacheEntry{Price: &fresh, CreatedAt: time.Unix(200, 0)}))

	got, err := store.GetPriceCache("k")
	require.NoError(t, err)
	assert.Equal(t, "$12", *got.Price)
	assert.Equal(t, int64(200), got.CreatedAt.Unix())
}

func TestPrunePriceCache(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.SetPriceCache("old", &PriceCacheEntry{CreatedAt: time.Unix(100, 0)}))
	require.NoError(t, store.SetPriceCache("new", &PriceCacheEntry{CreatedAt: time.Unix(300, 0)}))

	n, err := store.PrunePriceCache(time.Unix(200, 0))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := store.GetPriceCache("old")
	require.NoError(t, err)
	assert.Nil(t, got)
	got, err = store.GetPriceCache("new")
	require.NoError(t, err)
	assert.NotNil(t, got)
}

func TestLastLocation(t *testing.T) {
	store := newTestStore(t)

	loc, err := store.GetLastLocation(1)
	require.NoError(t, err)
	assert.Empty(t, loc)

	require.NoError(t, store.SetLastLocation(1, "Kuala Lumpur"))
	require.NoError(t, store.SetLastLocation(1, "Penang"))

	loc, err = store.GetLastLocation(1)
	require.NoError(t, err)
	assert.Equal(t, "Penang", loc)
}

func TestAllowedUsers(t *testing.T) {
	store := newTestStore(t)

	allowed, err := store.IsUserAllowed(42)
	require.NoError(t, err)
	assert.False(t, allowed)

	require.NoError(t, store.AddAllowedUser(42, 1))
	require.NoError(t, store.AddAllowedUser(43, 1))

	allowed, err = store.IsUserAllowed(42)
	require.NoError(t, err)
	assert.True(t, allowed)

	users, err := store.GetAllowedUsers()
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, int64(1), users[0].AddedBy)

	require.NoError(t, store.RemoveAllowedUser(42))
	allowed, err = store.IsUserAllowed(42)
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestPing(t *testing.T) {
	store := newTestStore(t)
	assert.NoError(t, store.Ping(context.Background()))
}
