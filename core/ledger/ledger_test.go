package ledger

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"signescrow/core/events"
	"signescrow/core/types"
	"signescrow/storage"
)

type testKey struct {
	temporary bool
	name      string
}

func (k testKey) StorageKey() []byte {
	tag := byte('p')
	if k.temporary {
		tag = 't'
	}
	return BytesKey(tag, []byte(k.name))
}

func (k testKey) Class() StorageClass {
	if k.temporary {
		return Temporary
	}
	return Persistent
}

type counter struct{}

func newTestAddress(fill byte) types.Principal {
	var p types.Principal
	for i := range p {
		p[i] = fill
	}
	return p
}

func newTestLedger(t *testing.T, db storage.Database) (*Ledger, types.Principal) {
	t.Helper()
	if db == nil {
		db = storage.NewMemDB()
	}
	l, err := Open(db, Config{MinPersistentTTL: 100, MinTemporaryTTL: 10, MaxEntryTTL: 1000})
	require.NoError(t, err)
	address, err := l.Deploy("counter", counter{})
	require.NoError(t, err)
	return l, address
}

func setValue(env *Env, contract types.Principal, key testKey, value uint64) error {
	return env.Call(contract, "set", []any{key.name, value}, func(callee *Env) error {
		return callee.Set(key, value)
	})
}

func readValue(t *testing.T, l *Ledger, contract types.Principal, key testKey) (uint64, bool, error) {
	t.Helper()
	var (
		out   uint64
		found bool
	)
	err := l.View(context.Background(), func(env *Env) error {
		return env.Call(contract, "get", []any{key.name}, func(callee *Env) error {
			var err error
			found, err = callee.Get(key, &out)
			return err
		})
	})
	return out, found, err
}

func TestExecuteRollsBackOnError(t *testing.T) {
	l, contract := newTestLedger(t, nil)
	rec := &events.Recorder{}
	l.SetEmitter(rec)
	before := l.StateRoot()

	boom := errors.New("boom")
	_, err := l.Execute(context.Background(), TxOptions{}, func(env *Env) error {
		return env.Call(contract, "set", nil, func(callee *Env) error {
			if err := callee.Set(testKey{name: "a"}, uint64(7)); err != nil {
				return err
			}
			if err := callee.Publish(&types.Event{Type: "Set"}); err != nil {
				return err
			}
			return boom
		})
	})
	require.ErrorIs(t, err, boom)

	_, found, err := readValue(t, l, contract, testKey{name: "a"})
	require.NoError(t, err)
	require.False(t, found)
	require.Equal(t, before, l.StateRoot())
	require.Empty(t, rec.Events())
}

func TestExecuteDeliversEventsInOrder(t *testing.T) {
	l, contract := newTestLedger(t, nil)
	rec := &events.Recorder{}
	l.SetEmitter(rec)

	receipt, err := l.Execute(context.Background(), TxOptions{}, func(env *Env) error {
		return env.Call(contract, "set", nil, func(callee *Env) error {
			for _, name := range []string{"first", "second", "third"} {
				if err := callee.Publish(&types.Event{Type: name}); err != nil {
					return err
				}
			}
			return callee.Set(testKey{name: "a"}, uint64(1))
		})
	})
	require.NoError(t, err)
	require.Len(t, receipt.Events, 3)
	require.NotEqual(t, l.StateRoot().Hex(), "")

	delivered := rec.Events()
	require.Len(t, delivered, 3)
	for i, want := range []string{"first", "second", "third"} {
		committed := delivered[i].(events.Committed)
		require.Equal(t, want, committed.EventType())
		require.Equal(t, i, committed.Index)
		require.Equal(t, contract, committed.Event.Contract)
		require.Equal(t, receipt.TxHash, committed.TxHash)
	}
}

func TestTemporaryEntriesExpire(t *testing.T) {
	l, contract := newTestLedger(t, nil)
	key := testKey{temporary: true, name: "session"}

	_, err := l.Execute(context.Background(), TxOptions{}, func(env *Env) error {
		return setValue(env, contract, key, 3)
	})
	require.NoError(t, err)
	withEntry := l.StateRoot()

	// created at 1 with TTL 10: live through ledger 10
	_, err = l.AdvanceTo(10)
	require.NoError(t, err)
	_, found, err := readValue(t, l, contract, key)
	require.NoError(t, err)
	require.True(t, found)

	_, err = l.Close()
	require.NoError(t, err)
	_, found, err = readValue(t, l, contract, key)
	require.NoError(t, err)
	require.False(t, found)
	require.NotEqual(t, withEntry, l.StateRoot())
}

func TestPersistentEntriesArchiveAndRestore(t *testing.T) {
	l, contract := newTestLedger(t, nil)
	key := testKey{name: "proposal"}

	_, err := l.Execute(context.Background(), TxOptions{}, func(env *Env) error {
		return setValue(env, contract, key, 9)
	})
	require.NoError(t, err)

	_, err = l.AdvanceTo(101)
	require.NoError(t, err)
	_, _, err = readValue(t, l, contract, key)
	require.ErrorIs(t, err, ErrArchived)

	restored, err := l.Restore(contract, key)
	require.NoError(t, err)
	require.True(t, restored)

	value, found, err := readValue(t, l, contract, key)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, uint64(9), value)
}

func TestExtendTTL(t *testing.T) {
	l, contract := newTestLedger(t, nil)
	key := testKey{temporary: true, name: "approval"}

	var ttls []uint32
	_, err := l.Execute(context.Background(), TxOptions{}, func(env *Env) error {
		return env.Call(contract, "extend", nil, func(callee *Env) error {
			if err := callee.Set(key, uint64(1)); err != nil {
				return err
			}
			ttl, _, err := callee.TTL(key)
			if err != nil {
				return err
			}
			ttls = append(ttls, ttl)
			// remaining 9 is not below threshold 5: untouched
			if err := callee.ExtendTTL(key, 5, 50); err != nil {
				return err
			}
			ttl, _, _ = callee.TTL(key)
			ttls = append(ttls, ttl)
			if err := callee.Extend(key, 50); err != nil {
				return err
			}
			ttl, _, _ = callee.TTL(key)
			ttls = append(ttls, ttl)
			// capped by the maximum entry TTL
			if err := callee.Extend(key, 5000); err != nil {
				return err
			}
			ttl, _, _ = callee.TTL(key)
			ttls = append(ttls, ttl)
			return nil
		})
	})
	require.NoError(t, err)
	require.Equal(t, []uint32{9, 9, 50, 1000}, ttls)

	_, err = l.Execute(context.Background(), TxOptions{}, func(env *Env) error {
		return env.Call(contract, "extend", nil, func(callee *Env) error {
			return callee.Extend(testKey{name: "missing"}, 10)
		})
	})
	require.ErrorIs(t, err, ErrMissingEntry)
}

func TestRequireAuth(t *testing.T) {
	l, contract := newTestLedger(t, nil)
	other, err := l.Deploy("other", counter{})
	require.NoError(t, err)
	alice := newTestAddress(0xA1)
	bob := newTestAddress(0xB0)

	guarded := func(env *Env, who types.Principal, amount uint64) error {
		return env.Call(other, "spend", []any{who, amount}, func(callee *Env) error {
			return callee.RequireAuth(who)
		})
	}

	t.Run("source at root", func(t *testing.T) {
		_, err := l.Execute(context.Background(), TxOptions{Source: alice}, func(env *Env) error {
			return guarded(env, alice, 5)
		})
		require.NoError(t, err)
	})

	t.Run("source not implied below root", func(t *testing.T) {
		_, err := l.Execute(context.Background(), TxOptions{Source: alice}, func(env *Env) error {
			return env.Call(contract, "outer", nil, func(callee *Env) error {
				return guarded(callee, alice, 5)
			})
		})
		require.ErrorIs(t, err, ErrNotAuthorized)
	})

	t.Run("user entry is pinned and one-shot", func(t *testing.T) {
		auth := Authorization{Address: bob, Invocation: Invocation{Contract: other, Function: "spend", Args: []any{bob, uint64(5)}}}
		_, err := l.Execute(context.Background(), TxOptions{Source: alice, Auths: []Authorization{auth}}, func(env *Env) error {
			return env.Call(contract, "outer", nil, func(callee *Env) error {
				return guarded(callee, bob, 5)
			})
		})
		require.NoError(t, err)

		_, err = l.Execute(context.Background(), TxOptions{Source: alice, Auths: []Authorization{auth}}, func(env *Env) error {
			return guarded(env, bob, 6)
		})
		require.ErrorIs(t, err, ErrNotAuthorized)

		_, err = l.Execute(context.Background(), TxOptions{Source: alice, Auths: []Authorization{auth}}, func(env *Env) error {
			if err := guarded(env, bob, 5); err != nil {
				return err
			}
			return guarded(env, bob, 5)
		})
		require.ErrorIs(t, err, ErrNotAuthorized)
	})

	t.Run("contract self authorization", func(t *testing.T) {
		_, err := l.Execute(context.Background(), TxOptions{Source: alice}, func(env *Env) error {
			return env.Call(contract, "outer", nil, func(callee *Env) error {
				if err := callee.AuthorizeAsCurrentContract(Invocation{Contract: other, Function: "spend", Args: []any{contract, uint64(1)}}); err != nil {
					return err
				}
				return guarded(callee, contract, 1)
			})
		})
		require.NoError(t, err)

		_, err = l.Execute(context.Background(), TxOptions{Source: alice}, func(env *Env) error {
			return env.Call(contract, "outer", nil, func(callee *Env) error {
				if err := callee.AuthorizeAsCurrentContract(Invocation{Contract: other, Function: "spend", Args: []any{contract, uint64(1)}}); err != nil {
					return err
				}
				return guarded(callee, contract, 2)
			})
		})
		require.ErrorIs(t, err, ErrNotAuthorized)
	})
}

func TestNonceReplayProtection(t *testing.T) {
	l, _ := newTestLedger(t, nil)
	alice := newTestAddress(0xA1)
	noop := func(*Env) error { return nil }

	_, err := l.Execute(context.Background(), TxOptions{Source: alice, Nonce: 1}, noop)
	require.NoError(t, err)
	_, err = l.Execute(context.Background(), TxOptions{Source: alice, Nonce: 1}, noop)
	require.ErrorIs(t, err, ErrBadNonce)
	_, err = l.Execute(context.Background(), TxOptions{Source: alice, Nonce: 3}, noop)
	require.ErrorIs(t, err, ErrBadNonce)

	n, err := l.Nonce(alice)
	require.NoError(t, err)
	require.Equal(t, uint64(1), n)
}

func TestReopenRebuildsStateRoot(t *testing.T) {
	db := storage.NewMemDB()
	l, contract := newTestLedger(t, db)
	_, err := l.Execute(context.Background(), TxOptions{}, func(env *Env) error {
		if err := setValue(env, contract, testKey{name: "a"}, 1); err != nil {
			return err
		}
		return setValue(env, contract, testKey{temporary: true, name: "b"}, 2)
	})
	require.NoError(t, err)
	_, err = l.Close()
	require.NoError(t, err)

	reopened, _ := newTestLedger(t, db)
	require.Equal(t, l.StateRoot(), reopened.StateRoot())
	require.Equal(t, uint32(2), reopened.Sequence())
}

func TestViewIsReadOnly(t *testing.T) {
	l, contract := newTestLedger(t, nil)
	err := l.View(context.Background(), func(env *Env) error {
		return setValue(env, contract, testKey{name: "a"}, 1)
	})
	require.ErrorIs(t, err, ErrReadOnly)
}

func TestCallUnknownContract(t *testing.T) {
	l, _ := newTestLedger(t, nil)
	_, err := l.Execute(context.Background(), TxOptions{}, func(env *Env) error {
		return env.Call(newTestAddress(0x01), "noop", nil, func(*Env) error { return nil })
	})
	require.ErrorIs(t, err, ErrContractNotFound)
}

func TestEncodeArgsDistinguishesTypes(t *testing.T) {
	hash := "abc"
	cases := [][]any{
		{"1"},
		{uint32(1)},
		{uint64(1)},
		{&hash},
		{(*string)(nil)},
		{"abc"},
	}
	seen := map[string]bool{}
	for _, args := range cases {
		canon, err := EncodeArgs(args)
		require.NoError(t, err)
		require.False(t, seen[canon], "duplicate encoding %s", canon)
		seen[canon] = true
	}
	_, err := EncodeArgs([]any{3.5})
	require.ErrorIs(t, err, ErrUnsupportedArg)
}
