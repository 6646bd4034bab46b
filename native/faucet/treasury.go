package faucet

import (
	"context"
	"errors"
	"fmt"

	"burnfaucet/core/runtime"
	"burnfaucet/core/state"
	"burnfaucet/crypto"
	"burnfaucet/native/system"
)

// Treasury is the ledger-owned account rewards are paid from. The faucet
// signs for it by derivation.
type Treasury struct {
	Address crypto.Address
	Bump    uint8
}

// NewTreasury derives the treasury of program from its bump.
func NewTreasury(program crypto.Address, bump uint8) (Treasury, error) {
	addr, err := TreasuryAddress(program, bump)
	if err != nil {
		return Treasury{}, fmt.Errorf("faucet: treasury bump %d: %w", bump, err)
	}
	return Treasury{Address: addr, Bump: bump}, nil
}

// Balance reads the treasury balance from view.
func (t Treasury) Balance(view state.Reader) (uint64, error) {
	acc, err := view.Account(t.Address)
	if err != nil {
		return 0, err
	}
	return acc.Lamports, nil
}

// Sufficient fails with ErrInsufficientTreasuryBalance when the treasury
// cannot cover amount. It has no side effects.
func (t Treasury) Sufficient(inv *runtime.Invocation, amount uint64) (uint64, error) {
	acc, err := inv.Load(t.Address)
	if err != nil {
		return 0, err
	}
	if acc.Lamports < amount {
		return acc.Lamports, fmt.Errorf("%w: have %d need %d", ErrInsufficientTreasuryBalance, acc.Lamports, amount)
	}
	return acc.Lamports, nil
}

// Pay moves amount from the treasury to recipient through the ledger service.
func (t Treasury) Pay(ctx context.Context, inv *runtime.Invocation, recipient crypto.Address, amount uint64) error {
	ix := system.Transfer(t.Address, recipient, amount)
	if err := inv.Invoke(ctx, ix, treasurySeeds(t.Bump)); err != nil {
		if errors.Is(err, system.ErrInsufficientFunds) {
			return fmt.Errorf("%w: %v", ErrInsufficientTreasuryBalance, err)
		}
		return err
	}
	return nil
}
