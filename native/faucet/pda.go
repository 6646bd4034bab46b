package faucet

import (
	"fmt"

	"burnfaucet/crypto"
)

var (
	proofTag    = []byte("proof")
	treasuryTag = []byte("treasury")
)

// ProofSeeds returns the seeds of the claim record for (class, actor), without
// the bump.
func ProofSeeds(class ClaimClass, actor crypto.Address) [][]byte {
	return [][]byte{proofTag, {byte(class)}, actor.Bytes()}
}

// ProofAddress derives the claim record address of (class, actor) under
// program.
func ProofAddress(program crypto.Address, class ClaimClass, actor crypto.Address) (crypto.Address, uint8, error) {
	return crypto.FindDerivedAddress(ProofSeeds(class, actor), program)
}

// TreasuryAddress recomputes the treasury address from its fixed bump.
func TreasuryAddress(program crypto.Address, bump uint8) (crypto.Address, error) {
	return crypto.CreateDerivedAddress(treasurySeeds(bump), program)
}

// FindTreasuryAddress searches for the canonical treasury bump.
func FindTreasuryAddress(program crypto.Address) (crypto.Address, uint8, error) {
	return crypto.FindDerivedAddress([][]byte{treasuryTag}, program)
}

func treasurySeeds(bump uint8) [][]byte {
	return [][]byte{treasuryTag, {bump}}
}

func withBump(seeds [][]byte, bump uint8) [][]byte {
	out := make([][]byte, len(seeds), len(seeds)+1)
	copy(out, seeds)
	return append(out, []byte{bump})
}

// assertDerivation recomputes the canonical address for seeds and requires
// supplied to match it. The bump is returned for signing.
func assertDerivation(program, supplied crypto.Address, seeds [][]byte) (uint8, error) {
	want, bump, err := crypto.FindDerivedAddress(seeds, program)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidProofDerivation, err)
	}
	if want != supplied {
		return 0, fmt.Errorf("%w: got %s want %s", ErrInvalidProofDerivation, supplied, want)
	}
	return bump, nil
}
