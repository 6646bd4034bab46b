package crypto

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func testKey(t *testing.T, fill byte) *PrivateKey {
	t.Helper()
	key, err := PrivateKeyFromSeed(bytes.Repeat([]byte{fill}, 32))
	require.NoError(t, err)
	return key
}

func TestFindDerivedAddressDeterministic(t *testing.T) {
	program := testKey(t, 0x01).Address()
	actor := testKey(t, 0x02).Address()
	seeds := [][]byte{[]byte("proof"), {3}, actor[:]}

	first, firstBump, err := FindDerivedAddress(seeds, program)
	require.NoError(t, err)
	second, secondBump, err := FindDerivedAddress(seeds, program)
	require.NoError(t, err)

	require.Equal(t, first, second)
	require.Equal(t, firstBump, secondBump)
	require.False(t, IsOnCurve(first[:]))

	recreated, err := CreateDerivedAddress(append(seeds, []byte{firstBump}), program)
	require.NoError(t, err)
	require.Equal(t, first, recreated)
}

func TestFindDerivedAddressSeparatesSeedsAndPrograms(t *testing.T) {
	programA := testKey(t, 0x01).Address()
	programB := testKey(t, 0x03).Address()
	actor := testKey(t, 0x02).Address()

	a, _, err := FindDerivedAddress([][]byte{[]byte("proof"), {0}, actor[:]}, programA)
	require.NoError(t, err)
	b, _, err := FindDerivedAddress([][]byte{[]byte("proof"), {1}, actor[:]}, programA)
	require.NoError(t, err)
	c, _, err := FindDerivedAddress([][]byte{[]byte("proof"), {0}, actor[:]}, programB)
	require.NoError(t, err)

	require.NotEqual(t, a, b)
	require.NotEqual(t, a, c)
}

func TestKeyAddressesAreOnCurve(t *testing.T) {
	for fill := byte(1); fill < 8; fill++ {
		addr := testKey(t, fill).Address()
		require.True(t, IsOnCurve(addr[:]), "public key %s should decode as a point", addr)
	}
}

func TestCreateDerivedAddressRejectsLongSeed(t *testing.T) {
	program := testKey(t, 0x01).Address()
	_, err := CreateDerivedAddress([][]byte{bytes.Repeat([]byte{1}, MaxSeedLength+1)}, program)
	require.ErrorIs(t, err, ErrMaxSeedLengthExceeded)

	seeds := make([][]byte, MaxSeeds)
	_, _, err = FindDerivedAddress(seeds, program)
	require.ErrorIs(t, err, ErrTooManySeeds)
}

func TestSignVerify(t *testing.T) {
	key := testKey(t, 0x09)
	msg := []byte("burn")
	sig := key.Sign(msg)
	require.True(t, Verify(key.Address(), msg, sig))
	require.False(t, Verify(key.Address(), []byte("other"), sig))
	require.False(t, Verify(testKey(t, 0x0a).Address(), msg, sig))
}

func TestAddressTextRoundTrip(t *testing.T) {
	addr := testKey(t, 0x05).Address()
	parsed, err := ParseAddress(addr.String())
	require.NoError(t, err)
	require.Equal(t, addr, parsed)

	system := MustParseAddress("11111111111111111111111111111111")
	require.True(t, system.IsZero())

	_, err = ParseAddress("0OIl")
	require.ErrorIs(t, err, ErrInvalidAddress)
	require.Contains(t, addr.Bech32(FaucetPrefix), "fct1")
}
