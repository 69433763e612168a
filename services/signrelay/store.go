package signrelay

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"
	"time"

	bbolt "go.etcd.io/bbolt"
)

// DeliveryState is the relay's record of a provider callback.
type DeliveryState int

const (
	// DeliveryNew means the callback was reserved by this request.
	DeliveryNew DeliveryState = iota
	// DeliveryPending means another request is processing it.
	DeliveryPending
	// DeliveryDone means the oracle already has the outcome.
	DeliveryDone
)

var (
	bucketDeliveries = []byte("deliveries")

	statePending = []byte("pending")
	stateDone    = []byte("done")
)

// DefaultLease bounds how long a pending reservation blocks retries.
const DefaultLease = 2 * defaultRequestTimeout * time.Second

// Store deduplicates provider callbacks by signature id. Pending entries carry
// their reservation time so a crashed request cannot block retries forever.
type Store struct {
	db    *bbolt.DB
	lease time.Duration
	now   func() time.Time
}

// OpenStore opens (or creates) the dedup database.
func OpenStore(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketDeliveries)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db, lease: DefaultLease, now: time.Now}, nil
}

// SetLease sets how long a pending reservation is honoured before Reserve
// reclaims it. Non-positive values keep the current lease.
func (s *Store) SetLease(lease time.Duration) {
	if lease > 0 {
		s.lease = lease
	}
}

// Close releases the database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Reserve marks id as pending and returns its prior state. A pending entry
// older than the lease is taken over and reported as DeliveryNew.
func (s *Store) Reserve(id string) (DeliveryState, error) {
	key, err := deliveryKey(id)
	if err != nil {
		return DeliveryPending, err
	}
	state := DeliveryNew
	now := s.now()
	err = s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketDeliveries)
		switch existing := bucket.Get(key); {
		case existing == nil:
		case bytes.Equal(existing, stateDone):
			state = DeliveryDone
			return nil
		case now.Sub(reservedAt(existing)) < s.lease:
			state = DeliveryPending
			return nil
		}
		return bucket.Put(key, pendingValue(now))
	})
	if err != nil {
		return DeliveryPending, err
	}
	return state, nil
}

// MarkDone records that the oracle holds the outcome for id.
func (s *Store) MarkDone(id string) error {
	key, err := deliveryKey(id)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketDeliveries).Put(key, stateDone)
	})
}

// Release drops a pending reservation so the provider retry can proceed.
func (s *Store) Release(id string) error {
	key, err := deliveryKey(id)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketDeliveries)
		if bytes.HasPrefix(bucket.Get(key), statePending) {
			return bucket.Delete(key)
		}
		return nil
	})
}

// State returns the stored state of id; ok is false when unknown.
func (s *Store) State(id string) (DeliveryState, bool, error) {
	key, err := deliveryKey(id)
	if err != nil {
		return DeliveryPending, false, err
	}
	var (
		state DeliveryState
		found bool
	)
	err = s.db.View(func(tx *bbolt.Tx) error {
		raw := tx.Bucket(bucketDeliveries).Get(key)
		if raw == nil {
			return nil
		}
		found = true
		state = DeliveryPending
		if bytes.Equal(raw, stateDone) {
			state = DeliveryDone
		}
		return nil
	})
	return state, found, err
}

func pendingValue(at time.Time) []byte {
	out := make([]byte, len(statePending)+8)
	copy(out, statePending)
	binary.BigEndian.PutUint64(out[len(statePending):], uint64(at.UnixNano()))
	return out
}

// reservedAt decodes a pending entry; entries without a timestamp read as the
// zero time and are always stale.
func reservedAt(raw []byte) time.Time {
	if !bytes.HasPrefix(raw, statePending) || len(raw) != len(statePending)+8 {
		return time.Time{}
	}
	return time.Unix(0, int64(binary.BigEndian.Uint64(raw[len(statePending):])))
}

func deliveryKey(id string) ([]byte, error) {
	trimmed := strings.TrimSpace(id)
	if trimmed == "" {
		return nil, fmt.Errorf("signature id required")
	}
	return []byte(trimmed), nil
}
