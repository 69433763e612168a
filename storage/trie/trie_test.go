package trie

import (
	"testing"

	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
)

func TestTrieCommitKeepsData(t *testing.T) {
	tr, err := New()
	require.NoError(t, err)
	require.Equal(t, gethtypes.EmptyRootHash, tr.Hash())

	key := crypto.Keccak256([]byte("key"))
	require.NoError(t, tr.Update(key, []byte("value")))
	pending := tr.Hash()

	root, err := tr.Commit(1)
	require.NoError(t, err)
	require.Equal(t, pending, root)
	require.Equal(t, root, tr.Root())

	got, err := tr.Get(key)
	require.NoError(t, err)
	require.Equal(t, []byte("value"), got)
}

func TestTrieResetDropsUncommitted(t *testing.T) {
	tr, err := New()
	require.NoError(t, err)

	require.NoError(t, tr.Update(crypto.Keccak256([]byte("a")), []byte("1")))
	root, err := tr.Commit(1)
	require.NoError(t, err)

	require.NoError(t, tr.Update(crypto.Keccak256([]byte("b")), []byte("2")))
	require.NotEqual(t, root, tr.Hash())

	require.NoError(t, tr.Reset())
	require.Equal(t, root, tr.Hash())
}

func TestTrieDeleteRestoresRoot(t *testing.T) {
	tr, err := New()
	require.NoError(t, err)

	require.NoError(t, tr.Update(crypto.Keccak256([]byte("a")), []byte("1")))
	before := tr.Hash()
	key := crypto.Keccak256([]byte("b"))
	require.NoError(t, tr.Update(key, []byte("2")))
	require.NoError(t, tr.Delete(key))
	require.Equal(t, before, tr.Hash())
}
