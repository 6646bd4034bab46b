package runtime

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"burnfaucet/core/state"
	"burnfaucet/core/types"
	"burnfaucet/crypto"
)

// MaxInvokeDepth bounds nested cross-program calls.
const MaxInvokeDepth = 4

// typedEvent is implemented by the structs in core/events.
type typedEvent interface {
	Event() *types.Event
}

// Invocation is the view a program gets while processing one instruction.
// Every read and write goes through it so the runtime can enforce account
// ownership and signer rules.
type Invocation struct {
	host    *Host
	txn     *state.Txn
	program crypto.Address
	metas   []AccountMeta
	data    []byte
	depth   int
}

func (inv *Invocation) ProgramID() crypto.Address { return inv.program }

func (inv *Invocation) Data() []byte { return inv.data }

func (inv *Invocation) Accounts() []AccountMeta {
	return append([]AccountMeta(nil), inv.metas...)
}

// Account returns the i-th account meta.
func (inv *Invocation) Account(i int) (AccountMeta, error) {
	if i < 0 || i >= len(inv.metas) {
		return AccountMeta{}, fmt.Errorf("%w: need index %d of %d", ErrNotEnoughAccountKeys, i, len(inv.metas))
	}
	return inv.metas[i], nil
}

func (inv *Invocation) Rent() state.Rent { return inv.host.rent }

func (inv *Invocation) Logger() *slog.Logger { return inv.host.logger }

func (inv *Invocation) meta(addr crypto.Address) (AccountMeta, bool) {
	found := AccountMeta{Address: addr}
	ok := false
	for _, m := range inv.metas {
		if m.Address != addr {
			continue
		}
		ok = true
		found.Signer = found.Signer || m.Signer
		found.Writable = found.Writable || m.Writable
	}
	return found, ok
}

// IsSigner reports whether addr signed this invocation.
func (inv *Invocation) IsSigner(addr crypto.Address) bool {
	m, ok := inv.meta(addr)
	return ok && m.Signer
}

// Load reads an account passed to this invocation.
func (inv *Invocation) Load(addr crypto.Address) (*types.Account, error) {
	if _, ok := inv.meta(addr); !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingAccount, addr)
	}
	return inv.txn.Account(addr)
}

// Store writes an account. The caller must have the account writable. Only the
// owning program may change data or owner or debit lamports; anyone may credit.
func (inv *Invocation) Store(addr crypto.Address, acc *types.Account) error {
	m, ok := inv.meta(addr)
	if !ok {
		return fmt.Errorf("%w: %s", ErrMissingAccount, addr)
	}
	if !m.Writable {
		return fmt.Errorf("%w: %s", ErrReadonlyAccount, addr)
	}
	before, err := inv.txn.Account(addr)
	if err != nil {
		return err
	}
	if before.Owner != inv.program {
		if !bytes.Equal(before.Data, acc.Data) || before.Owner != acc.Owner || before.Executable != acc.Executable {
			return fmt.Errorf("%w: %s owned by %s", ErrExternalAccountModified, addr, before.Owner)
		}
		if acc.Lamports < before.Lamports {
			return fmt.Errorf("%w: %s owned by %s", ErrExternalLamportSpend, addr, before.Owner)
		}
	}
	return inv.txn.SetAccount(addr, acc)
}

// Log appends a line to the program log.
func (inv *Invocation) Log(format string, args ...any) {
	inv.txn.Log(format, args...)
}

// Emit queues an event; it is released only if the transaction commits.
func (inv *Invocation) Emit(evt typedEvent) {
	if evt == nil {
		return
	}
	inv.txn.Emit(evt.Event())
}

// Invoke calls another program. An account may be passed as signer only if it
// signed this invocation or is the derived address of this program for one of
// signerSeeds.
func (inv *Invocation) Invoke(ctx context.Context, ix Instruction, signerSeeds ...[][]byte) error {
	if inv.depth+1 > MaxInvokeDepth {
		return ErrCallDepth
	}
	derived := make(map[crypto.Address]struct{}, len(signerSeeds))
	for _, seeds := range signerSeeds {
		addr, err := crypto.CreateDerivedAddress(seeds, inv.program)
		if err != nil {
			return fmt.Errorf("runtime: signer seeds: %w", err)
		}
		derived[addr] = struct{}{}
	}
	for _, callee := range ix.Accounts {
		caller, ok := inv.meta(callee.Address)
		if !ok {
			return fmt.Errorf("%w: %s", ErrMissingAccount, callee.Address)
		}
		if callee.Writable && !caller.Writable {
			return fmt.Errorf("%w: %s", ErrPrivilegeEscalation, callee.Address)
		}
		if callee.Signer && !caller.Signer {
			if _, ok := derived[callee.Address]; !ok {
				return fmt.Errorf("%w: %s", ErrPrivilegeEscalation, callee.Address)
			}
		}
	}
	return inv.host.run(ctx, inv.txn, ix, inv.depth+1)
}
