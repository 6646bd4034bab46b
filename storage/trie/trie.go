package trie

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	gethtrie "github.com/ethereum/go-ethereum/trie"
	"github.com/ethereum/go-ethereum/trie/trienode"
	"github.com/ethereum/go-ethereum/triedb"

	"burnfaucet/storage"
)

// Trie is the account-state Merkle Patricia trie. Mutations stay in memory
// until Commit writes them through the node database; Root reports the last
// committed root and Hash the in-memory one. Keys are expected to be hashed
// already.
//
// Trie is not safe for concurrent use.
type Trie struct {
	store     storage.Database
	nodes     *triedb.Database
	live      *gethtrie.Trie
	committed common.Hash
}

// NewTrie opens the trie at root. A nil or empty root opens the empty trie.
func NewTrie(store storage.Database, root []byte) (*Trie, error) {
	committed := gethtypes.EmptyRootHash
	if len(root) > 0 {
		committed = common.BytesToHash(root)
	}
	t := &Trie{store: store, nodes: store.TrieDB(), committed: committed}
	if err := t.reopen(); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Trie) reopen() error {
	live, err := gethtrie.New(gethtrie.TrieID(t.committed), t.nodes)
	if err != nil {
		return fmt.Errorf("trie: open %s: %w", t.committed.Hex(), err)
	}
	t.live = live
	return nil
}

// Get returns the value at key, or nil when the key is absent.
func (t *Trie) Get(key []byte) ([]byte, error) {
	return t.live.Get(key)
}

// Update sets key to value. An empty value removes the key.
func (t *Trie) Update(key, value []byte) error {
	return t.live.Update(key, value)
}

// Prove returns the nodes on the path to key, root first, against Hash(). A
// proof for an absent key proves its absence.
func (t *Trie) Prove(key []byte) ([][]byte, error) {
	var list trienode.ProofList
	if err := t.live.Prove(key, &list); err != nil {
		return nil, err
	}
	out := make([][]byte, len(list))
	for i, node := range list {
		out[i] = append([]byte(nil), node...)
	}
	return out, nil
}

// VerifyProof checks proof against root and returns the value stored at key,
// or nil if the proof shows the key is absent.
func VerifyProof(root common.Hash, key []byte, proof [][]byte) ([]byte, error) {
	set := trienode.NewProofSet()
	for _, node := range proof {
		if err := set.Put(ethcrypto.Keccak256(node), node); err != nil {
			return nil, err
		}
	}
	return gethtrie.VerifyProof(root, key, set)
}

// Hash is the root over every mutation, committed or not.
func (t *Trie) Hash() common.Hash {
	return t.live.Hash()
}

// Root is the root of the last Commit, or the root the trie was opened at.
func (t *Trie) Root() common.Hash {
	return t.committed
}

// Copy returns a trie sharing the node database whose mutations do not touch
// t. Callers swap the copy in to publish a batch of writes at once.
func (t *Trie) Copy() *Trie {
	cp := *t
	cp.live = t.live.Copy()
	return &cp
}

// Commit writes the dirty nodes at height, chained onto the previous
// committed root, and reopens the trie at the new root.
func (t *Trie) Commit(height uint64) (common.Hash, error) {
	root, dirty := t.live.Commit(false)
	if dirty != nil {
		set := trienode.NewMergedNodeSet()
		if err := set.Merge(dirty); err != nil {
			return common.Hash{}, err
		}
		if err := t.nodes.Update(root, t.committed, height, set, nil); err != nil {
			return common.Hash{}, fmt.Errorf("trie: update node database: %w", err)
		}
		if err := t.nodes.Commit(root, false); err != nil {
			return common.Hash{}, fmt.Errorf("trie: commit %s: %w", root.Hex(), err)
		}
	}
	t.committed = root
	if err := t.reopen(); err != nil {
		return common.Hash{}, err
	}
	return root, nil
}

// Store is the backing database, shared with other keyed records.
func (t *Trie) Store() storage.Database {
	return t.store
}
