package state

import (
	"encoding/binary"
	"errors"
	"fmt"

	"burnfaucet/storage"
)

// StateVersion identifies the on-disk layout of account records. Increment it
// whenever the stored encoding changes incompatibly.
const StateVersion uint32 = 1

var (
	stateVersionKey = []byte("state/version")
	// ErrStateVersionMismatch indicates the stored schema version does not
	// match the version supported by the current binary.
	ErrStateVersionMismatch = errors.New("state: schema version mismatch")
)

// StoredVersion returns the schema version recorded in store, or 0 when none
// has been written.
func StoredVersion(store storage.Database) (uint32, error) {
	raw, err := store.Get(stateVersionKey)
	if errors.Is(err, storage.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if len(raw) != 4 {
		return 0, fmt.Errorf("state: malformed version record (%d bytes)", len(raw))
	}
	return binary.BigEndian.Uint32(raw), nil
}

// ensureVersion stamps a fresh store with StateVersion and rejects stores
// written by an incompatible layout.
func ensureVersion(store storage.Database) error {
	stored, err := StoredVersion(store)
	if err != nil {
		return err
	}
	switch stored {
	case StateVersion:
		return nil
	case 0:
		var buf [4]byte
		binary.BigEndian.PutUint32(buf[:], StateVersion)
		return store.Put(stateVersionKey, buf[:])
	}
	return fmt.Errorf("%w: stored %d, supported %d", ErrStateVersionMismatch, stored, StateVersion)
}
