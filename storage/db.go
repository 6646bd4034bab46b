package storage

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/ethereum/go-ethereum/core/rawdb"
	"github.com/ethereum/go-ethereum/ethdb"
	gethleveldb "github.com/ethereum/go-ethereum/ethdb/leveldb"
	"github.com/ethereum/go-ethereum/triedb"
	"github.com/syndtr/goleveldb/leveldb"
)

// ErrNotFound is returned by Get when the key is absent.
var ErrNotFound = errors.New("storage: key not found")

// Database holds two kinds of data: small keyed records (flushed root,
// height, schema version) through Put/Get/Write, and state trie nodes through
// the node database returned by TrieDB.
type Database interface {
	Put(key []byte, value []byte) error
	Get(key []byte) ([]byte, error)
	// Write applies every pair of batch or none of them.
	Write(batch Batch) error
	TrieDB() *triedb.Database
	Close()
}

// Batch is an ordered list of keyed writes applied together by Write.
type Batch struct {
	keys   [][]byte
	values [][]byte
}

// Put queues key=value. Later puts of the same key win.
func (b *Batch) Put(key, value []byte) {
	b.keys = append(b.keys, append([]byte(nil), key...))
	b.values = append(b.values, append([]byte(nil), value...))
}

// Len reports the number of queued writes.
func (b *Batch) Len() int { return len(b.keys) }

// MemDB keeps everything in process memory. Tests and short-lived tools use it.
type MemDB struct {
	mu     sync.RWMutex
	data   map[string][]byte
	trieDB *triedb.Database
}

func NewMemDB() *MemDB {
	return &MemDB{
		data:   make(map[string][]byte),
		trieDB: triedb.NewDatabase(rawdb.NewMemoryDatabase(), triedb.HashDefaults),
	}
}

func (db *MemDB) Put(key []byte, value []byte) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.data[string(key)] = append([]byte(nil), value...)
	return nil
}

func (db *MemDB) Get(key []byte) ([]byte, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	value, ok := db.data[string(key)]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), value...), nil
}

func (db *MemDB) Write(batch Batch) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	for i, key := range batch.keys {
		db.data[string(key)] = batch.values[i]
	}
	return nil
}

func (db *MemDB) TrieDB() *triedb.Database {
	return db.trieDB
}

func (db *MemDB) Close() {}

// LevelDB keeps keyed records in one LevelDB instance under dir/meta and
// trie nodes in a second one under dir/trie, opened through go-ethereum's
// ethdb adapter.
type LevelDB struct {
	meta   *leveldb.DB
	nodes  ethdb.Database
	trieDB *triedb.Database
}

// NewLevelDB creates or opens both databases under dir.
func NewLevelDB(dir string) (*LevelDB, error) {
	meta, err := leveldb.OpenFile(filepath.Join(dir, "meta"), nil)
	if err != nil {
		return nil, fmt.Errorf("open meta store: %w", err)
	}
	kv, err := gethleveldb.New(filepath.Join(dir, "trie"), 16, 16, "", false)
	if err != nil {
		meta.Close()
		return nil, fmt.Errorf("open trie store: %w", err)
	}
	nodes := rawdb.NewDatabase(kv)
	return &LevelDB{
		meta:   meta,
		nodes:  nodes,
		trieDB: triedb.NewDatabase(nodes, triedb.HashDefaults),
	}, nil
}

func (ldb *LevelDB) Put(key []byte, value []byte) error {
	return ldb.meta.Put(key, value, nil)
}

func (ldb *LevelDB) Get(key []byte) ([]byte, error) {
	value, err := ldb.meta.Get(key, nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, ErrNotFound
	}
	return value, err
}

func (ldb *LevelDB) Write(batch Batch) error {
	var b leveldb.Batch
	for i, key := range batch.keys {
		b.Put(key, batch.values[i])
	}
	return ldb.meta.Write(&b, nil)
}

func (ldb *LevelDB) TrieDB() *triedb.Database {
	return ldb.trieDB
}

// Close releases the node database first, then both stores.
func (ldb *LevelDB) Close() {
	_ = ldb.trieDB.Close()
	_ = ldb.nodes.Close()
	_ = ldb.meta.Close()
}
