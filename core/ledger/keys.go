package ledger

import (
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"

	"signescrow/core/types"
)

// StorageClass selects the lifetime policy of an entry.
type StorageClass uint8

const (
	// Persistent entries are archived, never dropped, once their TTL elapses.
	Persistent StorageClass = iota + 1
	// Temporary entries disappear once their TTL elapses.
	Temporary
)

func (c StorageClass) String() string {
	switch c {
	case Persistent:
		return "persistent"
	case Temporary:
		return "temporary"
	default:
		return fmt.Sprintf("class(%d)", uint8(c))
	}
}

// Valid reports whether c is a known class.
func (c StorageClass) Valid() bool {
	return c == Persistent || c == Temporary
}

// Key addresses a contract storage entry. Contracts implement it with a tagged
// key type whose tag selects the storage class.
type Key interface {
	StorageKey() []byte
	Class() StorageClass
}

var (
	statePrefix = []byte("s/")
	noncePrefix = []byte("n/")
	metaSeqKey  = []byte("m/sequence")
)

// stateKey lays out contract || class || key under the state prefix.
func stateKey(contract types.Principal, k Key) []byte {
	raw := k.StorageKey()
	out := make([]byte, 0, len(statePrefix)+types.PrincipalLength+1+len(raw))
	out = append(out, statePrefix...)
	out = append(out, contract[:]...)
	out = append(out, byte(k.Class()))
	out = append(out, raw...)
	return out
}

func classOfStateKey(dbKey []byte) StorageClass {
	idx := len(statePrefix) + types.PrincipalLength
	if len(dbKey) <= idx {
		return 0
	}
	return StorageClass(dbKey[idx])
}

func nonceKey(p types.Principal) []byte {
	out := make([]byte, 0, len(noncePrefix)+types.PrincipalLength)
	out = append(out, noncePrefix...)
	return append(out, p[:]...)
}

// entry is the stored record for a contract key.
type entry struct {
	LiveUntil uint32
	Value     []byte
}

func encodeEntry(e *entry) ([]byte, error) {
	return rlp.EncodeToBytes(e)
}

func decodeEntry(raw []byte) (*entry, error) {
	e := new(entry)
	if err := rlp.DecodeBytes(raw, e); err != nil {
		return nil, fmt.Errorf("ledger: decode entry: %w", err)
	}
	return e, nil
}

// BytesKey is a helper for contracts composing keys from a tag and parts.
func BytesKey(tag byte, parts ...[]byte) []byte {
	size := 1
	for _, p := range parts {
		size += 4 + len(p)
	}
	out := make([]byte, 0, size)
	out = append(out, tag)
	for _, p := range parts {
		n := len(p)
		out = append(out, byte(n>>24), byte(n>>16), byte(n>>8), byte(n))
		out = append(out, p...)
	}
	return out
}
