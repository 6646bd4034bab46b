package state

import (
	"testing"

	"github.com/stretchr/testify/require"

	"burnfaucet/core/types"
	"burnfaucet/crypto"
	"burnfaucet/storage"
	"burnfaucet/storage/trie"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	tr, err := trie.NewTrie(storage.NewMemDB(), nil)
	require.NoError(t, err)
	return NewManager(tr)
}

func addr(fill byte) crypto.Address {
	var a crypto.Address
	for i := range a {
		a[i] = fill
	}
	return a
}

func TestUnknownAccountIsEmptySystemAccount(t *testing.T) {
	m := newTestManager(t)
	acc, err := m.Account(addr(1))
	require.NoError(t, err)
	require.False(t, acc.Exists())
	require.Equal(t, types.SystemProgramID, acc.Owner)
}

func TestTxnCommitPublishesAllWrites(t *testing.T) {
	m := newTestManager(t)
	tx := m.Begin()
	require.NoError(t, tx.SetAccount(addr(1), &types.Account{Lamports: 10}))
	require.NoError(t, tx.SetAccount(addr(2), &types.Account{Lamports: 5, Owner: addr(9), Data: []byte{1}}))
	tx.Emit(&types.Event{Type: "test", Attributes: map[string]string{"k": "v"}})

	// Staged writes are invisible outside the journal.
	outside, err := m.Account(addr(1))
	require.NoError(t, err)
	require.Zero(t, outside.Lamports)
	inside, err := tx.Account(addr(1))
	require.NoError(t, err)
	require.EqualValues(t, 10, inside.Lamports)

	require.NoError(t, tx.Commit())
	require.Len(t, tx.Events(), 1)

	first, err := m.Account(addr(1))
	require.NoError(t, err)
	require.EqualValues(t, 10, first.Lamports)
	second, err := m.Account(addr(2))
	require.NoError(t, err)
	require.Equal(t, addr(9), second.Owner)
	require.Equal(t, []byte{1}, second.Data)
}

func TestTxnDiscardLeavesStateUntouched(t *testing.T) {
	m := newTestManager(t)
	root := m.PendingRoot()

	tx := m.Begin()
	require.NoError(t, tx.SetAccount(addr(1), &types.Account{Lamports: 10}))
	tx.Log("step %d", 1)
	tx.Discard()

	require.Equal(t, root, m.PendingRoot())
	require.Equal(t, []string{"step 1"}, tx.Logs())
	require.ErrorIs(t, tx.Commit(), ErrTxnClosed)
}

func TestTxnCommitRejectsStaleVersion(t *testing.T) {
	m := newTestManager(t)
	first := m.Begin()
	second := m.Begin()
	require.NoError(t, first.SetAccount(addr(1), &types.Account{Lamports: 1}))
	require.NoError(t, second.SetAccount(addr(1), &types.Account{Lamports: 2}))

	require.NoError(t, first.Commit())
	require.ErrorIs(t, second.Commit(), ErrStaleTxn)

	acc, err := m.Account(addr(1))
	require.NoError(t, err)
	require.EqualValues(t, 1, acc.Lamports)
}

func TestClosingAccountRemovesItFromRoot(t *testing.T) {
	m := newTestManager(t)
	empty := m.PendingRoot()

	tx := m.Begin()
	require.NoError(t, tx.SetAccount(addr(1), &types.Account{Lamports: 10}))
	require.NoError(t, tx.Commit())
	require.NotEqual(t, empty, m.PendingRoot())

	tx = m.Begin()
	require.NoError(t, tx.SetAccount(addr(1), &types.Account{}))
	require.NoError(t, tx.Commit())
	require.Equal(t, empty, m.PendingRoot())
}

func TestFlushAndReopen(t *testing.T) {
	dir := t.TempDir()
	db, err := storage.NewLevelDB(dir)
	require.NoError(t, err)

	m, err := Open(db)
	require.NoError(t, err)
	tx := m.Begin()
	require.NoError(t, tx.SetAccount(addr(3), &types.Account{Lamports: 42, Owner: addr(4), Data: []byte{1, 2}}))
	require.NoError(t, tx.Commit())
	root, err := m.Flush()
	require.NoError(t, err)
	require.EqualValues(t, 1, m.Height())
	db.Close()

	db, err = storage.NewLevelDB(dir)
	require.NoError(t, err)
	defer db.Close()
	reopened, err := Open(db)
	require.NoError(t, err)
	require.Equal(t, root, reopened.Root())
	require.EqualValues(t, 1, reopened.Height())
	acc, err := reopened.Account(addr(3))
	require.NoError(t, err)
	require.EqualValues(t, 42, acc.Lamports)
	require.Equal(t, []byte{1, 2}, acc.Data)
}

func TestExecutedIndexSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	db, err := storage.NewLevelDB(dir)
	require.NoError(t, err)

	m, err := Open(db)
	require.NoError(t, err)
	digest := []byte("digest-a")
	discarded := m.Begin()
	discarded.MarkExecuted([]byte("digest-b"))
	discarded.Discard()
	tx := m.Begin()
	tx.MarkExecuted(digest)
	require.NoError(t, tx.Commit())
	_, err = m.Flush()
	require.NoError(t, err)
	db.Close()

	db, err = storage.NewLevelDB(dir)
	require.NoError(t, err)
	defer db.Close()
	reopened, err := Open(db)
	require.NoError(t, err)
	done, err := reopened.Executed(digest)
	require.NoError(t, err)
	require.True(t, done)
	done, err = reopened.Executed([]byte("digest-b"))
	require.NoError(t, err)
	require.False(t, done)
}

func TestRentMinimumBalance(t *testing.T) {
	rent := DefaultRent()
	require.EqualValues(t, 890880, rent.MinimumBalance(0))
	require.EqualValues(t, 897840, rent.MinimumBalance(1))
}

func TestAccountProof(t *testing.T) {
	m := newTestManager(t)
	tx := m.Begin()
	for i := byte(1); i <= 8; i++ {
		require.NoError(t, tx.SetAccount(addr(i), &types.Account{Lamports: uint64(i) * 10}))
	}
	require.NoError(t, tx.SetAccount(addr(9), &types.Account{Lamports: 7, Owner: addr(4), Data: []byte{1}}))
	require.NoError(t, tx.Commit())

	proof, err := m.ProveAccount(addr(9))
	require.NoError(t, err)
	require.Equal(t, m.PendingRoot(), proof.Root)
	acc, err := proof.Verify()
	require.NoError(t, err)
	require.EqualValues(t, 7, acc.Lamports)
	require.Equal(t, []byte{1}, acc.Data)

	missing, err := m.ProveAccount(addr(20))
	require.NoError(t, err)
	acc, err = missing.Verify()
	require.NoError(t, err)
	require.False(t, acc.Exists())

	proof.Root[0] ^= 0xff
	_, err = proof.Verify()
	require.Error(t, err)
}
