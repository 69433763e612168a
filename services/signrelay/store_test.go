package signrelay

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	bbolt "go.etcd.io/bbolt"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := OpenStore(filepath.Join(t.TempDir(), "relay.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStoreReserveLifecycle(t *testing.T) {
	store := openTestStore(t)

	state, err := store.Reserve("sig-1")
	require.NoError(t, err)
	require.Equal(t, DeliveryNew, state)

	state, err = store.Reserve("sig-1")
	require.NoError(t, err)
	require.Equal(t, DeliveryPending, state)

	require.NoError(t, store.Release("sig-1"))
	state, err = store.Reserve("sig-1")
	require.NoError(t, err)
	require.Equal(t, DeliveryNew, state)

	require.NoError(t, store.MarkDone("sig-1"))
	require.NoError(t, store.Release("sig-1"))
	state, err = store.Reserve("sig-1")
	require.NoError(t, err)
	require.Equal(t, DeliveryDone, state)

	_, found, err := store.State("sig-2")
	require.NoError(t, err)
	require.False(t, found)

	_, err = store.Reserve("  ")
	require.Error(t, err)
}

func TestStorePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "relay.db")
	store, err := OpenStore(path)
	require.NoError(t, err)
	_, err = store.Reserve("sig-1")
	require.NoError(t, err)
	require.NoError(t, store.MarkDone("sig-1"))
	require.NoError(t, store.Close())

	store, err = OpenStore(path)
	require.NoError(t, err)
	defer store.Close()
	state, found, err := store.State("sig-1")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, DeliveryDone, state)
}

func TestStoreReclaimsStalePending(t *testing.T) {
	store := openTestStore(t)
	clock := time.Unix(1_700_000_000, 0)
	store.now = func() time.Time { return clock }
	store.SetLease(30 * time.Second)

	state, err := store.Reserve("sig-1")
	require.NoError(t, err)
	require.Equal(t, DeliveryNew, state)

	clock = clock.Add(29 * time.Second)
	state, err = store.Reserve("sig-1")
	require.NoError(t, err)
	require.Equal(t, DeliveryPending, state)

	clock = clock.Add(2 * time.Second)
	state, err = store.Reserve("sig-1")
	require.NoError(t, err)
	require.Equal(t, DeliveryNew, state, "stale reservation must be reclaimed")

	// The takeover restarts the lease.
	clock = clock.Add(10 * time.Second)
	state, err = store.Reserve("sig-1")
	require.NoError(t, err)
	require.Equal(t, DeliveryPending, state)

	require.NoError(t, store.MarkDone("sig-1"))
	clock = clock.Add(time.Hour)
	state, err = store.Reserve("sig-1")
	require.NoError(t, err)
	require.Equal(t, DeliveryDone, state)
}

func TestStoreUntimedPendingIsStale(t *testing.T) {
	store := openTestStore(t)
	require.NoError(t, store.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketDeliveries).Put([]byte("sig-1"), statePending)
	}))
	state, found, err := store.State("sig-1")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, DeliveryPending, state)

	state, err = store.Reserve("sig-1")
	require.NoError(t, err)
	require.Equal(t, DeliveryNew, state)
}
