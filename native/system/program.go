package system

import (
	"context"
	"errors"
	"fmt"

	"burnfaucet/core/runtime"
	"burnfaucet/core/types"
	"burnfaucet/crypto"
)

var (
	ErrInvalidInstructionData = errors.New("system: invalid instruction data")
	ErrAccountInUse           = errors.New("system: account already in use")
	ErrInsufficientFunds      = errors.New("system: insufficient funds")
	ErrMissingSigner          = errors.New("system: missing required signature")
	ErrInvalidAccountOwner    = errors.New("system: account not owned by the system program")
	ErrTransferFromData       = errors.New("system: transfer source carries data")
	ErrInvalidSpace           = errors.New("system: requested space exceeds limit")
)

// Program is the native ledger service: it owns every fresh account and is the
// only way lamports leave a user wallet.
type Program struct{}

// New returns the ledger program.
func New() *Program { return &Program{} }

// Process implements runtime.Program.
func (p *Program) Process(_ context.Context, inv *runtime.Invocation) error {
	ix, err := decode(inv.Data())
	if err != nil {
		return err
	}
	switch ix.tag {
	case TagTransfer:
		from, to, err := twoAccounts(inv)
		if err != nil {
			return err
		}
		return p.transfer(inv, from, to, ix.lamports)
	case TagCreateAccount:
		payer, account, err := twoAccounts(inv)
		if err != nil {
			return err
		}
		return p.createAccount(inv, payer, account, ix.lamports, ix.space, ix.owner)
	case TagAllocate:
		meta, err := inv.Account(0)
		if err != nil {
			return err
		}
		return p.allocate(inv, meta.Address, ix.space)
	case TagAssign:
		meta, err := inv.Account(0)
		if err != nil {
			return err
		}
		return p.assign(inv, meta.Address, ix.owner)
	}
	return fmt.Errorf("%w: unknown tag %d", ErrInvalidInstructionData, ix.tag)
}

func twoAccounts(inv *runtime.Invocation) (crypto.Address, crypto.Address, error) {
	first, err := inv.Account(0)
	if err != nil {
		return crypto.Address{}, crypto.Address{}, err
	}
	second, err := inv.Account(1)
	if err != nil {
		return crypto.Address{}, crypto.Address{}, err
	}
	return first.Address, second.Address, nil
}

func requireSigner(inv *runtime.Invocation, addr crypto.Address) error {
	if !inv.IsSigner(addr) {
		return fmt.Errorf("%w: %s", ErrMissingSigner, addr)
	}
	return nil
}

func (p *Program) transfer(inv *runtime.Invocation, from, to crypto.Address, lamports uint64) error {
	if err := requireSigner(inv, from); err != nil {
		return err
	}
	src, err := inv.Load(from)
	if err != nil {
		return err
	}
	if len(src.Data) > 0 {
		return fmt.Errorf("%w: %s", ErrTransferFromData, from)
	}
	if src.Owner != ProgramID {
		return fmt.Errorf("%w: %s", ErrInvalidAccountOwner, from)
	}
	if src.Lamports < lamports {
		inv.Log("Transfer: insufficient lamports %d, need %d", src.Lamports, lamports)
		return fmt.Errorf("%w: have %d need %d", ErrInsufficientFunds, src.Lamports, lamports)
	}
	if from == to {
		return nil
	}
	dst, err := inv.Load(to)
	if err != nil {
		return err
	}
	if dst.Lamports+lamports < dst.Lamports {
		return fmt.Errorf("system: lamport overflow crediting %s", to)
	}
	src.Lamports -= lamports
	dst.Lamports += lamports
	if err := inv.Store(from, src); err != nil {
		return err
	}
	return inv.Store(to, dst)
}

func (p *Program) allocate(inv *runtime.Invocation, addr crypto.Address, space uint64) error {
	if err := requireSigner(inv, addr); err != nil {
		return err
	}
	acc, err := inv.Load(addr)
	if err != nil {
		return err
	}
	if len(acc.Data) > 0 || acc.Owner != ProgramID {
		inv.Log("Allocate: account %s already in use", addr)
		return fmt.Errorf("%w: %s", ErrAccountInUse, addr)
	}
	if space > MaxPermittedDataLength {
		return fmt.Errorf("%w: %d", ErrInvalidSpace, space)
	}
	acc.Data = make([]byte, space)
	return inv.Store(addr, acc)
}

func (p *Program) assign(inv *runtime.Invocation, addr, owner crypto.Address) error {
	acc, err := inv.Load(addr)
	if err != nil {
		return err
	}
	if acc.Owner == owner {
		return nil
	}
	if err := requireSigner(inv, addr); err != nil {
		return err
	}
	if acc.Owner != ProgramID {
		return fmt.Errorf("%w: %s", ErrInvalidAccountOwner, addr)
	}
	acc.Owner = owner
	return inv.Store(addr, acc)
}

func (p *Program) createAccount(inv *runtime.Invocation, payer, addr crypto.Address, lamports, space uint64, owner crypto.Address) error {
	if err := requireSigner(inv, addr); err != nil {
		return err
	}
	acc, err := inv.Load(addr)
	if err != nil {
		return err
	}
	if acc.Lamports > 0 {
		inv.Log("Create Account: account %s already in use", addr)
		return fmt.Errorf("%w: %s", ErrAccountInUse, addr)
	}
	if err := p.allocate(inv, addr, space); err != nil {
		return err
	}
	if err := p.assign(inv, addr, owner); err != nil {
		return err
	}
	return p.transfer(inv, payer, addr, lamports)
}

// CreateOrAllocate creates target as an account of size space owned by owner,
// funding it to the rent-exempt minimum from payer. target must be the
// caller's derived address for seeds. An account that was pre-funded is topped
// up and then allocated, so it still fails with ErrAccountInUse when already
// initialised.
func CreateOrAllocate(ctx context.Context, inv *runtime.Invocation, payer, target crypto.Address, space int, owner crypto.Address, seeds [][]byte) error {
	existing, err := inv.Load(target)
	if err != nil {
		return err
	}
	required := inv.Rent().MinimumBalance(space)
	if existing.Lamports == 0 {
		return inv.Invoke(ctx, CreateAccount(payer, target, required, uint64(space), owner), seeds)
	}
	if existing.Lamports < required {
		if err := inv.Invoke(ctx, Transfer(payer, target, required-existing.Lamports)); err != nil {
			return err
		}
	}
	if err := inv.Invoke(ctx, Allocate(target, uint64(space)), seeds); err != nil {
		return err
	}
	return inv.Invoke(ctx, Assign(target, owner), seeds)
}

// IsUnused reports whether acc is a fresh system account with no data.
func IsUnused(acc *types.Account) bool {
	return acc != nil && acc.Owner == ProgramID && len(acc.Data) == 0
}
