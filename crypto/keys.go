package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"

	"github.com/btcsuite/btcutil/bech32"
	"github.com/mr-tron/base58"
)

// AddressLength is the size of an account address in bytes.
const AddressLength = 32

// AddressPrefix defines the human-readable prefix used for bech32 renderings.
type AddressPrefix string

const (
	FaucetPrefix AddressPrefix = "fct"
)

// Address identifies an account. It is either an ed25519 public key, which can
// sign, or a derived address, which cannot.
type Address [AddressLength]byte

var ErrInvalidAddress = errors.New("crypto: invalid address")

// AddressFromBytes copies b into an Address.
func AddressFromBytes(b []byte) (Address, error) {
	var addr Address
	if len(b) != AddressLength {
		return addr, fmt.Errorf("%w: got %d bytes", ErrInvalidAddress, len(b))
	}
	copy(addr[:], b)
	return addr, nil
}

// ParseAddress decodes the base58 text form of an address.
func ParseAddress(s string) (Address, error) {
	decoded, err := base58.Decode(s)
	if err != nil {
		return Address{}, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	return AddressFromBytes(decoded)
}

// MustParseAddress is ParseAddress for compile-time constants.
func MustParseAddress(s string) Address {
	addr, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return addr
}

func (a Address) String() string {
	return base58.Encode(a[:])
}

func (a Address) Bytes() []byte {
	out := make([]byte, AddressLength)
	copy(out, a[:])
	return out
}

func (a Address) IsZero() bool {
	return a == Address{}
}

// Bech32 renders the address with the supplied human-readable prefix.
func (a Address) Bech32(prefix AddressPrefix) string {
	conv, err := bech32.ConvertBits(a[:], 8, 5, true)
	if err != nil {
		panic(err)
	}
	encoded, err := bech32.Encode(string(prefix), conv)
	if err != nil {
		panic(err)
	}
	return encoded
}

// MarshalText implements encoding.TextMarshaler.
func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := ParseAddress(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// --- Key Management ---

type PrivateKey struct {
	ed25519.PrivateKey
}

func GeneratePrivateKey() (*PrivateKey, error) {
	_, key, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	return &PrivateKey{key}, nil
}

// PrivateKeyFromSeed derives a key from a 32-byte seed.
func PrivateKeyFromSeed(seed []byte) (*PrivateKey, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("crypto: seed must be %d bytes", ed25519.SeedSize)
	}
	return &PrivateKey{ed25519.NewKeyFromSeed(seed)}, nil
}

// Seed returns the 32-byte seed the key was derived from.
func (k *PrivateKey) Seed() []byte {
	return k.PrivateKey.Seed()
}

func (k *PrivateKey) Address() Address {
	var addr Address
	copy(addr[:], k.PrivateKey.Public().(ed25519.PublicKey))
	return addr
}

func (k *PrivateKey) Sign(message []byte) []byte {
	return ed25519.Sign(k.PrivateKey, message)
}

// Verify reports whether sig is a valid signature of message by addr. Derived
// addresses never verify.
func Verify(addr Address, message, sig []byte) bool {
	if len(sig) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(addr[:]), message, sig)
}
