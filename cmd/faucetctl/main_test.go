package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"burnfaucet/config"
	"burnfaucet/core/events"
	"burnfaucet/crypto"
	"burnfaucet/native/faucet"
	"burnfaucet/services/faucetd"
	"burnfaucet/storage"
)

const actorAddress = "4vJ9JU1bJJE96FWSJKvHsmmFADCg4gpZQff4P3bkLKi"

func TestUnknownCommandPrintsUsage(t *testing.T) {
	require.ErrorIs(t, run("forge", nil, &bytes.Buffer{}), errUsage)
}

func TestProofMatchesDerivation(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, run("proof", []string{"-class", "3", "-actor", actorAddress}, &out))

	proof, bump, err := faucet.ProofAddress(faucet.DefaultPrograms().Faucet, faucet.Class3, crypto.MustParseAddress(actorAddress))
	require.NoError(t, err)
	require.Equal(t, fmt.Sprintf("%s %d\n", proof, bump), out.String())

	require.Error(t, run("proof", []string{"-class", "5", "-actor", actorAddress}, &out))
}

func TestKeygenThenAddress(t *testing.T) {
	t.Setenv(defaultPassEnv, "correct horse")
	path := filepath.Join(t.TempDir(), "actor.keystore")

	var created bytes.Buffer
	require.NoError(t, run("keygen", []string{"-out", path, "-light"}, &created))
	require.Error(t, run("keygen", []string{"-out", path, "-light"}, &bytes.Buffer{}))

	var shown bytes.Buffer
	require.NoError(t, run("address", []string{"-keystore", path}, &shown))
	require.Equal(t, created.String(), shown.String())
	_, err := crypto.ParseAddress(strings.TrimSpace(shown.String()))
	require.NoError(t, err)
}

func TestAddressPrintsBech32Form(t *testing.T) {
	t.Setenv(defaultPassEnv, "correct horse")
	path := filepath.Join(t.TempDir(), "actor.keystore")
	var created bytes.Buffer
	require.NoError(t, run("keygen", []string{"-out", path, "-light"}, &created))

	var shown bytes.Buffer
	require.NoError(t, run("address", []string{"-keystore", path, "-bech32"}, &shown))
	addr := crypto.MustParseAddress(strings.TrimSpace(created.String()))
	require.Equal(t, addr.Bech32(crypto.FaucetPrefix)+"\n", shown.String())
	require.True(t, strings.HasPrefix(shown.String(), "fct1"))
}

// daemon starts faucetd over a fresh store and a keystore whose address is
// funded at genesis.
type daemon struct {
	endpoint string
	keystore string
	actor    crypto.Address
	node     *faucetd.Node
}

func newDaemon(t *testing.T) *daemon {
	t.Helper()
	t.Setenv(defaultPassEnv, "correct horse")
	path := filepath.Join(t.TempDir(), "actor.keystore")
	var created bytes.Buffer
	require.NoError(t, run("keygen", []string{"-out", path, "-light"}, &created))
	actor := crypto.MustParseAddress(strings.TrimSpace(created.String()))

	node, err := faucetd.NewNode(storage.NewMemDB(), faucet.DefaultConfig(), &config.Genesis{
		Treasury: 30 * faucet.DefaultBaseReward,
		Accounts: []config.GenesisAccount{{Address: actor.String(), Lamports: 10_000_000_000}},
	}, nil)
	require.NoError(t, err)
	srv := httptest.NewServer(faucetd.NewServer(node, nil).Handler())
	t.Cleanup(srv.Close)
	return &daemon{endpoint: srv.URL, keystore: path, actor: actor, node: node}
}

func (d *daemon) run(t *testing.T, cmd string, args ...string) []byte {
	t.Helper()
	var out bytes.Buffer
	args = append([]string{"-endpoint", d.endpoint, "-keystore", d.keystore}, args...)
	require.NoError(t, run(cmd, args, &out), out.String())
	return out.Bytes()
}

func (d *daemon) treasury(t *testing.T) uint64 {
	t.Helper()
	balance, err := d.node.Engine().TreasuryBalance(d.node.View())
	require.NoError(t, err)
	return balance
}

func TestMintThenClaimEveryCoreClass(t *testing.T) {
	d := newDaemon(t)
	for _, class := range faucet.CoreClasses {
		arg := fmt.Sprint(uint8(class))
		var minted mintResult
		require.NoError(t, json.Unmarshal(d.run(t, "mint", "-class", arg), &minted))
		require.Equal(t, class.Capability().String(), minted.Capability)
		require.Equal(t, class == faucet.Class4, minted.Collection != nil, "class %d", class)

		claimArgs := []string{"-class", arg, "-asset", minted.Asset.String()}
		if minted.Collection != nil {
			claimArgs = append(claimArgs, "-collection", minted.Collection.String())
		}
		before := d.treasury(t)
		d.run(t, "claim", claimArgs...)
		require.Equal(t, before-faucet.DefaultRewards().Reward(class), d.treasury(t), "class %d", class)

		status, err := d.node.Engine().ClaimStatus(d.node.View(), class, d.actor)
		require.NoError(t, err)
		require.True(t, status.Claimed, "class %d", class)
	}
}

func TestMintForAnotherOwnerCannotBeClaimedByMinter(t *testing.T) {
	d := newDaemon(t)
	var minted mintResult
	require.NoError(t, json.Unmarshal(d.run(t, "mint", "-class", "0", "-owner", actorAddress), &minted))

	var out bytes.Buffer
	err := run("claim", []string{"-endpoint", d.endpoint, "-keystore", d.keystore, "-class", "0", "-asset", minted.Asset.String()}, &out)
	require.Error(t, err)
	require.Equal(t, uint64(30*faucet.DefaultBaseReward), d.treasury(t))
}

func TestMintCompressedThenBurn(t *testing.T) {
	d := newDaemon(t)
	var leaf compressedMint
	require.NoError(t, json.Unmarshal(d.run(t, "mint-compressed", "-depth", "5", "-buffer", "8"), &leaf))
	require.Zero(t, leaf.Nonce)

	var second compressedMint
	require.NoError(t, json.Unmarshal(d.run(t, "mint-compressed", "-tree", leaf.Tree.String(), "-name", "second"), &second))
	require.Equal(t, leaf.Tree, second.Tree)
	require.EqualValues(t, 1, second.Nonce)
	require.EqualValues(t, 1, second.Index)

	before := d.treasury(t)
	d.run(t, "burn-compressed",
		"-tree", second.Tree.String(),
		"-root", second.Root,
		"-data-hash", second.DataHash,
		"-creator-hash", second.CreatorHash,
		"-nonce", fmt.Sprint(second.Nonce),
		"-index", fmt.Sprint(second.Index))
	require.Equal(t, before-faucet.DefaultBubblegumReward, d.treasury(t))
}

func TestEventsReplaysCommittedClaims(t *testing.T) {
	d := newDaemon(t)
	var minted mintResult
	require.NoError(t, json.Unmarshal(d.run(t, "mint", "-class", "0"), &minted))
	d.run(t, "claim", "-class", "0", "-asset", minted.Asset.String())

	var out bytes.Buffer
	require.NoError(t, run("events", []string{"-endpoint", d.endpoint, "-cursor", "0", "-limit", "3"}, &out))
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)
	var kinds []string
	for _, line := range lines {
		var msg faucetd.EventMessage
		require.NoError(t, json.Unmarshal([]byte(line), &msg))
		kinds = append(kinds, msg.Type)
		if msg.Type == events.TypeFaucetClaimRecorded {
			require.Equal(t, d.actor.String(), msg.Attributes["actor"])
		}
	}
	require.Contains(t, kinds, events.TypeFaucetRewardPaid)
	require.Contains(t, kinds, events.TypeCoreAssetBurned)
}

func TestStatusAndTreasuryQueryDaemon(t *testing.T) {
	node, err := faucetd.NewNode(storage.NewMemDB(), faucet.DefaultConfig(), &config.Genesis{Treasury: 42}, nil)
	require.NoError(t, err)
	srv := httptest.NewServer(faucetd.NewServer(node, nil).Handler())
	defer srv.Close()

	var out bytes.Buffer
	require.NoError(t, run("treasury", []string{"-endpoint", srv.URL}, &out))
	var treasury faucetd.TreasuryResponse
	require.NoError(t, json.Unmarshal(out.Bytes(), &treasury))
	require.Equal(t, uint64(42), treasury.Balance)

	out.Reset()
	require.NoError(t, run("account", []string{"-endpoint", srv.URL, "-address", treasury.Address.String()}, &out))
	var account struct {
		Exists  bool `json:"exists"`
		Account struct {
			Lamports uint64 `json:"lamports"`
		} `json:"account"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &account))
	require.True(t, account.Exists)
	require.Equal(t, uint64(42), account.Account.Lamports)

	out.Reset()
	require.NoError(t, run("status", []string{"-endpoint", srv.URL, "-class", "1", "-actor", actorAddress}, &out))
	var status faucet.ClaimStatus
	require.NoError(t, json.Unmarshal(out.Bytes(), &status))
	require.Equal(t, faucet.Class1, status.Class)
	require.False(t, status.Claimed)
}

func TestParseHash(t *testing.T) {
	raw := strings.Repeat("ab", 32)
	got, err := parseHash("0x" + raw)
	require.NoError(t, err)
	require.Equal(t, byte(0xab), got[31])

	_, err = parseHash("abcd")
	require.Error(t, err)
	_, err = parseHash("zz")
	require.Error(t, err)
}
