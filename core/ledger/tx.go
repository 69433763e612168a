package ledger

import (
	"errors"
	"fmt"
	"math"

	"github.com/ethereum/go-ethereum/rlp"

	"signescrow/core/types"
	"signescrow/storage"
)

// tx buffers writes and events until the transaction finishes.
type tx struct {
	ledger    *Ledger
	seq       uint32
	source    types.Principal
	readOnly  bool
	overlay   map[string]*entry
	userAuths []*authSlot
	selfAuths []*authSlot
	events    []*types.Event
}

func (t *tx) load(dbKey []byte) (*entry, error) {
	if rec, ok := t.overlay[string(dbKey)]; ok {
		return rec, nil
	}
	raw, err := t.ledger.db.Get(dbKey)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ledger: read state: %w", err)
	}
	return decodeEntry(raw)
}

// live applies the TTL policy of class to the stored record.
func (t *tx) live(dbKey []byte, class StorageClass) (*entry, error) {
	rec, err := t.load(dbKey)
	if err != nil || rec == nil {
		return nil, err
	}
	if rec.LiveUntil >= t.seq {
		return rec, nil
	}
	if class == Temporary {
		return nil, nil
	}
	return nil, ErrArchived
}

func (t *tx) put(dbKey []byte, rec *entry) error {
	if t.readOnly {
		return ErrReadOnly
	}
	t.overlay[string(dbKey)] = rec
	return nil
}

func (t *tx) nonce(p types.Principal) (uint64, error) {
	rec, err := t.load(nonceKey(p))
	if err != nil || rec == nil {
		return 0, err
	}
	var n uint64
	if err := rlp.DecodeBytes(rec.Value, &n); err != nil {
		return 0, fmt.Errorf("ledger: decode nonce: %w", err)
	}
	return n, nil
}

func (t *tx) setNonce(p types.Principal, n uint64) error {
	value, err := rlp.EncodeToBytes(n)
	if err != nil {
		return err
	}
	return t.put(nonceKey(p), &entry{LiveUntil: math.MaxUint32, Value: value})
}
