package state

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"burnfaucet/core/types"
	"burnfaucet/crypto"
	"burnfaucet/storage"
	"burnfaucet/storage/trie"
)

var (
	accountPrefix  = []byte("account:")
	executedPrefix = []byte("executed:")
	// flushedRootKey stores the root written by the last Flush.
	flushedRootKey = []byte("state/flushed-root")
	// flushedHeightKey stores the height passed to the last Flush.
	flushedHeightKey = []byte("state/flushed-height")
)

// ErrStaleTxn is returned when a journal is committed on top of state that
// changed after the journal was opened.
var ErrStaleTxn = errors.New("state: journal opened against a stale version")

// Reader is the read-only view shared by Manager and Txn.
type Reader interface {
	Account(addr crypto.Address) (*types.Account, error)
}

// Manager owns the account trie. All writes go through a Txn.
type Manager struct {
	mu      sync.RWMutex
	trie    *trie.Trie
	version uint64
	height  uint64
}

// NewManager creates a state manager operating on the provided trie.
func NewManager(tr *trie.Trie) *Manager {
	return &Manager{trie: tr}
}

// Open loads the state last flushed to store, or an empty state.
func Open(store storage.Database) (*Manager, error) {
	if err := ensureVersion(store); err != nil {
		return nil, err
	}
	root, err := store.Get(flushedRootKey)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}
	tr, err := trie.NewTrie(store, root)
	if err != nil {
		return nil, fmt.Errorf("state: open trie: %w", err)
	}
	m := NewManager(tr)
	if raw, err := store.Get(flushedHeightKey); err == nil {
		if err := rlp.DecodeBytes(raw, &m.height); err != nil {
			return nil, fmt.Errorf("state: decode height: %w", err)
		}
	}
	return m, nil
}

func accountStateKey(addr crypto.Address) []byte {
	buf := make([]byte, len(accountPrefix)+len(addr))
	copy(buf, accountPrefix)
	copy(buf[len(accountPrefix):], addr[:])
	return ethcrypto.Keccak256(buf)
}

func executedStateKey(digest []byte) []byte {
	buf := make([]byte, 0, len(executedPrefix)+len(digest))
	buf = append(buf, executedPrefix...)
	return ethcrypto.Keccak256(append(buf, digest...))
}

// Executed reports whether a transaction with digest has been committed.
// The index lives in the state trie, so it is flushed and proven with the
// accounts.
func (m *Manager) Executed(digest []byte) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, err := m.trie.Get(executedStateKey(digest))
	if err != nil {
		return false, err
	}
	return len(data) > 0, nil
}

// Account returns a copy of the account stored at addr. Unknown addresses
// yield the empty system-owned account.
func (m *Manager) Account(addr crypto.Address) (*types.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return loadAccount(m.trie, addr)
}

func loadAccount(tr *trie.Trie, addr crypto.Address) (*types.Account, error) {
	data, err := tr.Get(accountStateKey(addr))
	if err != nil {
		return nil, err
	}
	return decodeAccount(addr, data)
}

func decodeAccount(addr crypto.Address, data []byte) (*types.Account, error) {
	if len(data) == 0 {
		return &types.Account{Owner: types.SystemProgramID}, nil
	}
	acc := new(types.Account)
	if err := rlp.DecodeBytes(data, acc); err != nil {
		return nil, fmt.Errorf("state: decode account %s: %w", addr, err)
	}
	return acc, nil
}

func storeAccount(tr *trie.Trie, addr crypto.Address, acc *types.Account) error {
	if !acc.Exists() {
		// Deleting keeps closed accounts out of the root.
		return tr.Update(accountStateKey(addr), nil)
	}
	encoded, err := rlp.EncodeToBytes(acc)
	if err != nil {
		return err
	}
	return tr.Update(accountStateKey(addr), encoded)
}

// AccountProof is a Merkle proof of one account record against a state root.
type AccountProof struct {
	Address crypto.Address `json:"address"`
	Root    common.Hash    `json:"root"`
	Nodes   [][]byte       `json:"nodes"`
}

// ProveAccount proves the current record of addr, or its absence, against
// PendingRoot.
func (m *Manager) ProveAccount(addr crypto.Address) (*AccountProof, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	nodes, err := m.trie.Prove(accountStateKey(addr))
	if err != nil {
		return nil, fmt.Errorf("state: prove %s: %w", addr, err)
	}
	return &AccountProof{Address: addr, Root: m.trie.Hash(), Nodes: nodes}, nil
}

// Verify checks the proof and returns the account it commits to.
func (p *AccountProof) Verify() (*types.Account, error) {
	data, err := trie.VerifyProof(p.Root, accountStateKey(p.Address), p.Nodes)
	if err != nil {
		return nil, fmt.Errorf("state: verify proof for %s: %w", p.Address, err)
	}
	return decodeAccount(p.Address, data)
}

// Begin opens a journal on top of the current state.
func (m *Manager) Begin() *Txn {
	m.mu.RLock()
	version := m.version
	m.mu.RUnlock()
	return &Txn{
		m:       m,
		version: version,
		writes:  make(map[crypto.Address]*types.Account),
	}
}

// apply writes every staged account and executed digest into a copy of the
// trie and swaps the copy in, so either all writes land or none do.
func (m *Manager) apply(version uint64, order []crypto.Address, writes map[crypto.Address]*types.Account, executed [][]byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if version != m.version {
		return ErrStaleTxn
	}
	next := m.trie.Copy()
	for _, addr := range order {
		if err := storeAccount(next, addr, writes[addr]); err != nil {
			return fmt.Errorf("state: write %s: %w", addr, err)
		}
	}
	for _, digest := range executed {
		if err := next.Update(executedStateKey(digest), []byte{1}); err != nil {
			return fmt.Errorf("state: record executed %x: %w", digest, err)
		}
	}
	m.trie = next
	m.version++
	return nil
}

// PendingRoot returns the root including mutations not yet flushed.
func (m *Manager) PendingRoot() common.Hash {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.trie.Hash()
}

// Root returns the last flushed root.
func (m *Manager) Root() common.Hash {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.trie.Root()
}

// Height returns the height of the last Flush.
func (m *Manager) Height() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.height
}

// Flush persists the trie to its backing store and records the new root and
// height in one batch so Open can resume from them.
func (m *Manager) Flush() (common.Hash, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	root, err := m.trie.Commit(m.height + 1)
	if err != nil {
		return common.Hash{}, err
	}
	height, err := rlp.EncodeToBytes(m.height + 1)
	if err != nil {
		return common.Hash{}, err
	}
	var batch storage.Batch
	if root == gethtypes.EmptyRootHash {
		batch.Put(flushedRootKey, nil)
	} else {
		batch.Put(flushedRootKey, root.Bytes())
	}
	batch.Put(flushedHeightKey, height)
	if err := m.trie.Store().Write(batch); err != nil {
		return common.Hash{}, err
	}
	m.height++
	return root, nil
}
