package crypto

import (
	"crypto/sha256"
	"errors"

	"filippo.io/edwards25519"
)

const (
	// MaxSeeds bounds the number of seeds, bump included.
	MaxSeeds = 16
	// MaxSeedLength bounds the length of a single seed.
	MaxSeedLength = 32
)

var derivedAddressMarker = []byte("ProgramDerivedAddress")

var (
	ErrMaxSeedLengthExceeded = errors.New("crypto: seed exceeds maximum length")
	ErrTooManySeeds          = errors.New("crypto: too many seeds")
	ErrOnCurve               = errors.New("crypto: derived address lies on the ed25519 curve")
	ErrNoViableBump          = errors.New("crypto: no viable bump seed")
)

// CreateDerivedAddress hashes seeds together with the owning program id. The
// result is rejected when it decodes as an ed25519 point, which keeps derived
// addresses disjoint from addresses that have a private key.
func CreateDerivedAddress(seeds [][]byte, program Address) (Address, error) {
	if len(seeds) > MaxSeeds {
		return Address{}, ErrTooManySeeds
	}
	h := sha256.New()
	for _, seed := range seeds {
		if len(seed) > MaxSeedLength {
			return Address{}, ErrMaxSeedLengthExceeded
		}
		h.Write(seed)
	}
	h.Write(program[:])
	h.Write(derivedAddressMarker)
	var addr Address
	copy(addr[:], h.Sum(nil))
	if IsOnCurve(addr[:]) {
		return Address{}, ErrOnCurve
	}
	return addr, nil
}

// FindDerivedAddress searches bumps from 255 down and returns the first
// derived address that is off the curve, together with its bump.
func FindDerivedAddress(seeds [][]byte, program Address) (Address, uint8, error) {
	if len(seeds) >= MaxSeeds {
		return Address{}, 0, ErrTooManySeeds
	}
	withBump := make([][]byte, len(seeds)+1)
	copy(withBump, seeds)
	bump := []byte{0}
	withBump[len(seeds)] = bump
	for b := 255; b >= 0; b-- {
		bump[0] = byte(b)
		addr, err := CreateDerivedAddress(withBump, program)
		if err == nil {
			return addr, byte(b), nil
		}
		if !errors.Is(err, ErrOnCurve) {
			return Address{}, 0, err
		}
	}
	return Address{}, 0, ErrNoViableBump
}

// IsOnCurve reports whether b is a valid compressed ed25519 point.
func IsOnCurve(b []byte) bool {
	_, err := new(edwards25519.Point).SetBytes(b)
	return err == nil
}
