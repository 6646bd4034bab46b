package state

import (
	"errors"
	"fmt"

	"burnfaucet/core/types"
	"burnfaucet/crypto"
)

var ErrTxnClosed = errors.New("state: journal already committed or discarded")

// Txn stages account writes, events and log lines for one transaction.
// Nothing becomes visible in the Manager until Commit succeeds; Discard drops
// everything. A Txn is used by a single goroutine.
type Txn struct {
	m        *Manager
	version  uint64
	writes   map[crypto.Address]*types.Account
	order    []crypto.Address
	events   []types.Event
	logs     []string
	executed [][]byte
	closed   bool
}

// Account returns a copy of the account as seen by this journal.
func (tx *Txn) Account(addr crypto.Address) (*types.Account, error) {
	if tx.closed {
		return nil, ErrTxnClosed
	}
	if acc, ok := tx.writes[addr]; ok {
		return acc.Clone(), nil
	}
	return tx.m.Account(addr)
}

// SetAccount stages acc at addr.
func (tx *Txn) SetAccount(addr crypto.Address, acc *types.Account) error {
	if tx.closed {
		return ErrTxnClosed
	}
	if acc == nil {
		return fmt.Errorf("state: nil account for %s", addr)
	}
	if _, ok := tx.writes[addr]; !ok {
		tx.order = append(tx.order, addr)
	}
	tx.writes[addr] = acc.Clone()
	return nil
}

// Emit queues an event for release after commit.
func (tx *Txn) Emit(evt *types.Event) {
	if evt == nil || tx.closed {
		return
	}
	tx.events = append(tx.events, evt.Clone())
}

// Log appends a program log line.
func (tx *Txn) Log(format string, args ...any) {
	if tx.closed {
		return
	}
	tx.logs = append(tx.logs, fmt.Sprintf(format, args...))
}

// Events returns the queued events.
func (tx *Txn) Events() []types.Event {
	return append([]types.Event(nil), tx.events...)
}

// Logs returns the program log collected so far, including on failure.
func (tx *Txn) Logs() []string {
	return append([]string(nil), tx.logs...)
}

// MarkExecuted records digest in the executed-transaction index when the
// journal commits.
func (tx *Txn) MarkExecuted(digest []byte) {
	if tx.closed {
		return
	}
	tx.executed = append(tx.executed, append([]byte(nil), digest...))
}

// Touched lists the addresses written by this journal in first-write order.
func (tx *Txn) Touched() []crypto.Address {
	return append([]crypto.Address(nil), tx.order...)
}

// Commit applies every staged write atomically.
func (tx *Txn) Commit() error {
	if tx.closed {
		return ErrTxnClosed
	}
	if err := tx.m.apply(tx.version, tx.order, tx.writes, tx.executed); err != nil {
		return err
	}
	tx.closed = true
	return nil
}

// Discard drops all staged writes and events. Log lines stay readable.
func (tx *Txn) Discard() {
	tx.closed = true
	tx.writes = nil
	tx.order = nil
	tx.events = nil
	tx.executed = nil
}
