package trie

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/rawdb"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	gethtrie "github.com/ethereum/go-ethereum/trie"
	"github.com/ethereum/go-ethereum/trie/trienode"
	"github.com/ethereum/go-ethereum/triedb"
)

// Trie wraps go-ethereum's Merkle-Patricia trie to commit to the ledger state.
// Nodes live in an in-memory node database; the authoritative entries stay in
// the ledger's key-value store and the trie is rebuilt from them on startup.
//
// Keys passed into Get/Update/Delete are expected to be keccak256 hashed.
//
// Trie is not safe for concurrent use.
type Trie struct {
	trieDB *triedb.Database
	trie   *gethtrie.Trie
	root   common.Hash
}

// New creates an empty trie.
func New() (*Trie, error) {
	trieDB := triedb.NewDatabase(rawdb.NewMemoryDatabase(), triedb.HashDefaults)
	underlying, err := gethtrie.New(gethtrie.TrieID(gethtypes.EmptyRootHash), trieDB)
	if err != nil {
		return nil, err
	}
	return &Trie{trieDB: trieDB, trie: underlying, root: gethtypes.EmptyRootHash}, nil
}

// Get retrieves a value from the trie for the provided key.
func (t *Trie) Get(key []byte) ([]byte, error) {
	return t.trie.Get(key)
}

// Update inserts or updates a value in the trie for the provided key.
func (t *Trie) Update(key, value []byte) error {
	return t.trie.Update(key, value)
}

// Delete removes key from the trie. Deleting an absent key is a no-op.
func (t *Trie) Delete(key []byte) error {
	return t.trie.Delete(key)
}

// Hash returns the root hash of the trie reflecting all in-memory mutations.
func (t *Trie) Hash() common.Hash {
	return t.trie.Hash()
}

// Root returns the last committed root hash.
func (t *Trie) Root() common.Hash {
	return t.root
}

// Reset discards uncommitted mutations and reloads the last committed root.
func (t *Trie) Reset() error {
	underlying, err := gethtrie.New(gethtrie.TrieID(t.root), t.trieDB)
	if err != nil {
		return err
	}
	t.trie = underlying
	return nil
}

// Commit flushes the dirty nodes into the node database as the checkpoint for
// ledger sequence seq and returns the new root. The wrapper reopens the trie at
// the new root so it can keep accepting updates.
func (t *Trie) Commit(seq uint64) (common.Hash, error) {
	parent := t.root
	newRoot, nodes := t.trie.Commit(false)
	if nodes != nil {
		merged := trienode.NewMergedNodeSet()
		if err := merged.Merge(nodes); err != nil {
			return common.Hash{}, err
		}
		if err := t.trieDB.Update(newRoot, parent, seq, merged, nil); err != nil {
			return common.Hash{}, err
		}
		if err := t.trieDB.Commit(newRoot, false); err != nil {
			return common.Hash{}, err
		}
	}
	underlying, err := gethtrie.New(gethtrie.TrieID(newRoot), t.trieDB)
	if err != nil {
		return common.Hash{}, err
	}
	t.trie = underlying
	t.root = newRoot
	return newRoot, nil
}
