package faucet

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"burnfaucet/core/events"
	"burnfaucet/core/runtime"
	"burnfaucet/core/state"
	"burnfaucet/core/types"
	"burnfaucet/crypto"
	"burnfaucet/native/bubblegum"
	"burnfaucet/native/compression"
	"burnfaucet/native/coreasset"
	"burnfaucet/native/system"
	"burnfaucet/storage"
	"burnfaucet/storage/trie"
)

const base = DefaultBaseReward

type harness struct {
	t        *testing.T
	host     *runtime.Host
	engine   *Engine
	cfg      Config
	recorder *events.Recorder
	minter   *crypto.PrivateKey
	nextSeed byte
}

func newHarness(t *testing.T, treasuryBalance uint64) *harness {
	t.Helper()
	tr, err := trie.NewTrie(storage.NewMemDB(), nil)
	require.NoError(t, err)
	host := runtime.NewHost(state.NewManager(tr))
	cfg := DefaultConfig()
	engine, err := NewEngine(cfg)
	require.NoError(t, err)

	ids := cfg.Programs
	require.NoError(t, host.Register(ids.System, "system", system.New()))
	require.NoError(t, host.Register(ids.CoreAsset, "coreasset", coreasset.New(ids.CoreAsset)))
	require.NoError(t, host.Register(ids.Compression, "compression", compression.New(ids.Compression, ids.LogWrapper)))
	require.NoError(t, host.Register(ids.LogWrapper, "noop", compression.LogWrapper{}))
	require.NoError(t, host.Register(ids.Bubblegum, "bubblegum", bubblegum.New(bubblegum.Programs{
		Bubblegum:   ids.Bubblegum,
		Compression: ids.Compression,
		LogWrapper:  ids.LogWrapper,
	})))
	require.NoError(t, host.Register(ids.Faucet, "faucet", engine))
	rec := &events.Recorder{}
	host.SetEmitter(rec)

	h := &harness{t: t, host: host, engine: engine, cfg: cfg, recorder: rec, nextSeed: 1}
	h.minter = h.key()
	h.fund(h.minter.Address(), 10_000_000_000)
	h.fund(engine.Treasury().Address, treasuryBalance)
	return h
}

func (h *harness) key() *crypto.PrivateKey {
	raw := make([]byte, 32)
	raw[0] = h.nextSeed
	raw[1] = 0xfa
	h.nextSeed++
	k, err := crypto.PrivateKeyFromSeed(raw)
	require.NoError(h.t, err)
	return k
}

func (h *harness) fund(addr crypto.Address, lamports uint64) {
	txn := h.host.State().Begin()
	require.NoError(h.t, txn.SetAccount(addr, &types.Account{Lamports: lamports}))
	require.NoError(h.t, txn.Commit())
}

func (h *harness) exec(ix runtime.Instruction, signers ...*crypto.PrivateKey) error {
	tx := runtime.NewTransaction(ix)
	require.NoError(h.t, tx.Sign(signers...))
	_, err := h.host.Execute(context.Background(), tx)
	return err
}

func (h *harness) account(addr crypto.Address) *types.Account {
	acc, err := h.host.State().Account(addr)
	require.NoError(h.t, err)
	return acc
}

func (h *harness) lamports(addr crypto.Address) uint64 { return h.account(addr).Lamports }

func (h *harness) treasury() uint64 { return h.lamports(h.engine.Treasury().Address) }

func ua() coreasset.PluginAuthority {
	return coreasset.PluginAuthority{Kind: coreasset.AuthorityUpdateAuthority}
}

// mintAsset creates an asset owned by owner, paid for by the minter.
func (h *harness) mintAsset(owner crypto.Address, collection *crypto.Address, args coreasset.CreateArgs) crypto.Address {
	asset := h.key()
	accs := coreasset.CreateAccounts{Asset: asset.Address(), Payer: h.minter.Address(), Owner: owner}
	if collection != nil {
		authority := h.minter.Address()
		accs.Collection = collection
		accs.Authority = &authority
	}
	require.NoError(h.t, h.exec(coreasset.Create(h.cfg.Programs.CoreAsset, accs, args), h.minter, asset))
	return asset.Address()
}

func (h *harness) linkedCollection() crypto.Address {
	col := h.key()
	require.NoError(h.t, h.exec(coreasset.CreateCollection(h.cfg.Programs.CoreAsset, col.Address(), h.minter.Address(), h.minter.Address(), coreasset.CreateCollectionArgs{
		Name:     "Challenges",
		Adapters: []coreasset.AdapterRecord{{Key: coreasset.LinkedAppDataKey(ua())}},
	}), h.minter, col))
	return col.Address()
}

// qualifyingAsset mints an asset carrying the capability class requires and
// returns it with its collection, if any.
func (h *harness) qualifyingAsset(owner crypto.Address, class ClaimClass) (crypto.Address, *crypto.Address) {
	switch class.Capability() {
	case CapabilityAttributes:
		return h.mintAsset(owner, nil, coreasset.CreateArgs{Name: "attrs", Plugins: []coreasset.PluginRecord{
			coreasset.NewAttributesPlugin(coreasset.Attribute{Key: "solved", Value: "true"}),
		}}), nil
	case CapabilityEdition:
		return h.mintAsset(owner, nil, coreasset.CreateArgs{Name: "edition", Plugins: []coreasset.PluginRecord{
			coreasset.NewEditionPlugin(1),
		}}), nil
	case CapabilityAppData:
		return h.mintAsset(owner, nil, coreasset.CreateArgs{Name: "appdata", Adapters: []coreasset.AdapterRecord{
			{Key: coreasset.AppDataKey(ua())},
		}}), nil
	case CapabilityLinkedAppData:
		col := h.linkedCollection()
		asset := h.mintAsset(owner, &col, coreasset.CreateArgs{Name: "linked"})
		require.NoError(h.t, h.exec(coreasset.WriteData(h.cfg.Programs.CoreAsset, asset, &col, h.minter.Address(), coreasset.WriteDataArgs{
			Key:  coreasset.DataSectionKey(ua()),
			Data: []byte("solved"),
		}), h.minter))
		return asset, &col
	}
	return h.mintAsset(owner, nil, coreasset.CreateArgs{Name: "plain"}), nil
}

func (h *harness) challenge(class ClaimClass, actor crypto.Address, asset crypto.Address, collection *crypto.Address) runtime.Instruction {
	ix, err := h.cfg.Challenge(class, CoreAccounts{Asset: asset, Collection: collection, Actor: actor})
	require.NoError(h.t, err)
	return ix
}

func (h *harness) proof(class ClaimClass, actor crypto.Address) crypto.Address {
	addr, _, err := ProofAddress(h.cfg.Programs.Faucet, class, actor)
	require.NoError(h.t, err)
	return addr
}

func TestClass0RewardScenario(t *testing.T) {
	h := newHarness(t, 10*base)
	actor := h.key()
	asset, _ := h.qualifyingAsset(actor.Address(), Class0)
	assetRent := h.lamports(asset)

	require.NoError(t, h.exec(h.challenge(Class0, actor.Address(), asset, nil), actor))

	require.False(t, h.account(asset).Exists())
	require.Equal(t, 9*base, h.treasury())
	proofRent := h.host.Rent().MinimumBalance(1)
	require.Equal(t, base+assetRent-proofRent, h.lamports(actor.Address()))

	proof := h.account(h.proof(Class0, actor.Address()))
	require.Equal(t, h.cfg.Programs.Faucet, proof.Owner)
	require.Equal(t, []byte{1}, proof.Data)
	require.Equal(t, proofRent, proof.Lamports)

	status, err := h.engine.ClaimStatus(h.host.State(), Class0, actor.Address())
	require.NoError(t, err)
	require.True(t, status.Claimed)
	require.True(t, status.Solved)

	var kinds []string
	for _, evt := range h.recorder.Events {
		kinds = append(kinds, evt.EventType())
	}
	require.Contains(t, kinds, events.TypeCoreAssetBurned)
	require.Contains(t, kinds, events.TypeFaucetRewardPaid)
	require.Contains(t, kinds, events.TypeFaucetClaimRecorded)
}

func TestRepeatClaimAbortsWithoutSideEffects(t *testing.T) {
	h := newHarness(t, 10*base)
	actor := h.key()
	first, _ := h.qualifyingAsset(actor.Address(), Class0)
	require.NoError(t, h.exec(h.challenge(Class0, actor.Address(), first, nil), actor))

	second, _ := h.qualifyingAsset(actor.Address(), Class0)
	proofAddr := h.proof(Class0, actor.Address())
	treasuryBefore := h.treasury()
	actorBefore := h.lamports(actor.Address())
	proofBefore := h.account(proofAddr)
	root := h.host.State().PendingRoot()

	err := h.exec(h.challenge(Class0, actor.Address(), second, nil), actor)
	require.ErrorIs(t, err, ErrClaimAlreadyRecorded)
	require.True(t, h.account(second).Exists())
	require.Equal(t, treasuryBefore, h.treasury())
	require.Equal(t, actorBefore, h.lamports(actor.Address()))
	require.Equal(t, proofBefore, h.account(proofAddr))
	require.Equal(t, root, h.host.State().PendingRoot())
}

func TestEveryCoreClassPaysItsReward(t *testing.T) {
	h := newHarness(t, 100*base)
	actor := h.key()
	for _, class := range CoreClasses {
		asset, collection := h.qualifyingAsset(actor.Address(), class)
		before := h.treasury()
		require.NoError(t, h.exec(h.challenge(class, actor.Address(), asset, collection), actor), class.String())
		require.Equal(t, before-base*(uint64(class)+1), h.treasury(), class.String())
		require.False(t, h.account(asset).Exists(), class.String())
		status, err := h.engine.ClaimStatus(h.host.State(), class, actor.Address())
		require.NoError(t, err)
		require.True(t, status.Claimed, class.String())
	}
}

func TestMissingCapabilityFailsClosed(t *testing.T) {
	h := newHarness(t, 100*base)
	actor := h.key()
	for _, class := range CoreClasses[1:] {
		var collection *crypto.Address
		if class == Class4 {
			col := h.linkedCollection()
			collection = &col
		}
		asset := h.mintAsset(actor.Address(), collection, coreasset.CreateArgs{Name: "bare"})
		treasuryBefore := h.treasury()
		actorBefore := h.lamports(actor.Address())

		err := h.exec(h.challenge(class, actor.Address(), asset, collection), actor)
		require.ErrorIs(t, err, ErrCapabilityNotFound, class.String())
		require.True(t, h.account(asset).Exists(), class.String())
		require.Equal(t, treasuryBefore, h.treasury(), class.String())
		require.Equal(t, actorBefore, h.lamports(actor.Address()), class.String())
		require.False(t, h.account(h.proof(class, actor.Address())).Exists(), class.String())
	}
}

func TestWrongCapabilityIsNotAccepted(t *testing.T) {
	h := newHarness(t, 100*base)
	actor := h.key()
	edition, _ := h.qualifyingAsset(actor.Address(), Class2)
	err := h.exec(h.challenge(Class1, actor.Address(), edition, nil), actor)
	require.ErrorIs(t, err, ErrCapabilityNotFound)
	require.True(t, h.account(edition).Exists())
}

func TestInsufficientTreasuryAbortsBeforeBurn(t *testing.T) {
	h := newHarness(t, 3*base-1)
	actor := h.key()
	asset, _ := h.qualifyingAsset(actor.Address(), Class2)
	err := h.exec(h.challenge(Class2, actor.Address(), asset, nil), actor)
	require.ErrorIs(t, err, ErrInsufficientTreasuryBalance)
	code, ok := Code(err)
	require.True(t, ok)
	require.Equal(t, 3, code)
	require.True(t, h.account(asset).Exists())
	require.Equal(t, 3*base-1, h.treasury())
}

func TestIdentityChecks(t *testing.T) {
	h := newHarness(t, 10*base)
	actor := h.key()
	asset, _ := h.qualifyingAsset(actor.Address(), Class0)
	otherProof := h.proof(Class1, actor.Address())

	cases := []struct {
		name  string
		index int
		addr  crypto.Address
		want  error
	}{
		{"proof of another class", coreProof, otherProof, ErrInvalidProofDerivation},
		{"foreign treasury", coreTreasury, crypto.Address{0x42}, ErrInvalidTreasuryPda},
		{"foreign registry", coreProgram, h.cfg.Programs.Bubblegum, ErrInvalidMplCoreProgram},
		{"foreign ledger", coreSystem, h.cfg.Programs.LogWrapper, ErrInvalidSystemProgram},
	}
	for _, c := range cases {
		ix := h.challenge(Class0, actor.Address(), asset, nil)
		ix.Accounts[c.index].Address = c.addr
		err := h.exec(ix, actor)
		require.ErrorIs(t, err, c.want, c.name)
		require.True(t, h.account(asset).Exists(), c.name)
	}
	require.Equal(t, 10*base, h.treasury())
}

func TestActorMustSign(t *testing.T) {
	h := newHarness(t, 10*base)
	actor := h.key()
	asset, _ := h.qualifyingAsset(actor.Address(), Class0)
	ix := h.challenge(Class0, actor.Address(), asset, nil)
	ix.Accounts[coreActor].Signer = false
	require.ErrorIs(t, h.exec(ix), ErrMissingSignature)

	ix = h.challenge(Class0, actor.Address(), asset, nil)
	ix.Accounts = ix.Accounts[:coreSystem]
	require.ErrorIs(t, h.exec(ix, actor), ErrNotEnoughAccountKeys)
}

func TestOnlyOwnerCanClaimWithAsset(t *testing.T) {
	h := newHarness(t, 10*base)
	owner := h.key()
	thief := h.key()
	asset, _ := h.qualifyingAsset(owner.Address(), Class0)
	err := h.exec(h.challenge(Class0, thief.Address(), asset, nil), thief)
	require.ErrorIs(t, err, coreasset.ErrInvalidAuthority)
	require.True(t, h.account(asset).Exists())
	require.Equal(t, 10*base, h.treasury())
	require.False(t, h.account(h.proof(Class0, thief.Address())).Exists())
}

func TestUpdateAuthorityCannotClaimWithHolderAsset(t *testing.T) {
	h := newHarness(t, 10*base)
	holder := h.key()
	asset, _ := h.qualifyingAsset(holder.Address(), Class0)
	minterBefore := h.lamports(h.minter.Address())

	err := h.exec(h.challenge(Class0, h.minter.Address(), asset, nil), h.minter)
	require.ErrorIs(t, err, coreasset.ErrInvalidAuthority)
	require.True(t, h.account(asset).Exists())
	require.Equal(t, 10*base, h.treasury())
	require.Equal(t, minterBefore, h.lamports(h.minter.Address()))
	require.False(t, h.account(h.proof(Class0, h.minter.Address())).Exists())

	require.NoError(t, h.exec(h.challenge(Class0, holder.Address(), asset, nil), holder))
	require.False(t, h.account(asset).Exists())
}

func TestPrefundedProofAddressStillRecords(t *testing.T) {
	h := newHarness(t, 10*base)
	actor := h.key()
	asset, _ := h.qualifyingAsset(actor.Address(), Class0)
	proof := h.proof(Class0, actor.Address())
	h.fund(proof, 1_000)

	require.NoError(t, h.exec(h.challenge(Class0, actor.Address(), asset, nil), actor))
	acc := h.account(proof)
	require.Equal(t, h.cfg.Programs.Faucet, acc.Owner)
	require.Equal(t, h.host.Rent().MinimumBalance(1), acc.Lamports)

	status, err := h.engine.ClaimStatus(h.host.State(), Class0, actor.Address())
	require.NoError(t, err)
	require.True(t, status.Claimed)
}

func TestConcurrentClaimsPayOnce(t *testing.T) {
	h := newHarness(t, 100*base)
	actor := h.key()
	const n = 8
	assets := make([]crypto.Address, n)
	for i := range assets {
		assets[i], _ = h.qualifyingAsset(actor.Address(), Class1)
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for _, asset := range assets {
		tx := runtime.NewTransaction(h.challenge(Class1, actor.Address(), asset, nil))
		require.NoError(t, tx.Sign(actor))
		wg.Add(1)
		go func(tx *runtime.Transaction) {
			defer wg.Done()
			_, err := h.host.Execute(context.Background(), tx)
			mu.Lock()
			errs = append(errs, err)
			mu.Unlock()
		}(tx)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		require.ErrorIs(t, err, ErrClaimAlreadyRecorded)
	}
	require.Equal(t, 1, wins)
	require.Equal(t, 98*base, h.treasury())
	burned := 0
	for _, asset := range assets {
		if !h.account(asset).Exists() {
			burned++
		}
	}
	require.Equal(t, 1, burned)
}

func TestDifferentActorsClaimIndependently(t *testing.T) {
	h := newHarness(t, 10*base)
	for i := 0; i < 3; i++ {
		actor := h.key()
		asset, _ := h.qualifyingAsset(actor.Address(), Class0)
		require.NoError(t, h.exec(h.challenge(Class0, actor.Address(), asset, nil), actor))
	}
	require.Equal(t, 7*base, h.treasury())
}

type compressedFixture struct {
	tree   crypto.Address
	config crypto.Address
}

func (h *harness) compressedTree() compressedFixture {
	tree := h.key()
	ids := h.bubblegumPrograms()
	ix, err := ids.CreateTree(tree.Address(), h.minter.Address(), h.minter.Address(), bubblegum.CreateTreeArgs{MaxDepth: 5, MaxBufferSize: 8})
	require.NoError(h.t, err)
	require.NoError(h.t, h.exec(ix, h.minter, tree))
	cfg, _, err := bubblegum.TreeConfigAddress(ids.Bubblegum, tree.Address())
	require.NoError(h.t, err)
	return compressedFixture{tree: tree.Address(), config: cfg}
}

func (h *harness) bubblegumPrograms() bubblegum.Programs {
	return bubblegum.Programs{
		Bubblegum:   h.cfg.Programs.Bubblegum,
		Compression: h.cfg.Programs.Compression,
		LogWrapper:  h.cfg.Programs.LogWrapper,
	}
}

func (h *harness) treeState(addr crypto.Address) *compression.Tree {
	tree, err := compression.DecodeTree(h.account(addr).Data)
	require.NoError(h.t, err)
	return tree
}

func (h *harness) mintCompressed(f compressedFixture, owner crypto.Address) BurnArgs {
	return h.mintLeaf(f, owner, nil)
}

func (h *harness) mintLeaf(f compressedFixture, owner crypto.Address, delegate *crypto.Address) BurnArgs {
	cfg, err := bubblegum.DecodeTreeConfig(h.account(f.config).Data)
	require.NoError(h.t, err)
	meta := bubblegum.MetadataArgs{Name: "cNFT", Symbol: "C", URI: "https://example.com/c.json"}
	ix, err := h.bubblegumPrograms().MintV2(f.tree, owner, delegate, h.minter.Address(), h.minter.Address(), meta)
	require.NoError(h.t, err)
	require.NoError(h.t, h.exec(ix, h.minter))
	dataHash, err := bubblegum.HashMetadata(&meta)
	require.NoError(h.t, err)
	return BurnArgs{
		Root:        h.treeState(f.tree).Root(),
		DataHash:    dataHash,
		CreatorHash: bubblegum.HashCreators(nil),
		Nonce:       cfg.NumMinted,
		Index:       uint32(cfg.NumMinted),
	}
}

func (h *harness) burnCompressed(f compressedFixture, owner crypto.Address, args BurnArgs) runtime.Instruction {
	ix, err := h.cfg.BurnBubblegum(BubblegumAccounts{TreeConfig: f.config, MerkleTree: f.tree, LeafOwner: owner}, args)
	require.NoError(h.t, err)
	return ix
}

func TestCompressedBurnPaysOnce(t *testing.T) {
	h := newHarness(t, 3*DefaultBubblegumReward)
	f := h.compressedTree()
	actor := h.key()
	args := h.mintCompressed(f, actor.Address())

	require.NoError(t, h.exec(h.burnCompressed(f, actor.Address(), args), actor))
	require.Equal(t, 2*DefaultBubblegumReward, h.treasury())
	require.Equal(t, DefaultBubblegumReward, h.lamports(actor.Address()))
	require.Equal(t, compression.Node{}, h.treeState(f.tree).Leaf(args.Index))

	err := h.exec(h.burnCompressed(f, actor.Address(), args), actor)
	require.ErrorIs(t, err, compression.ErrLeafMismatch)
	require.Equal(t, 2*DefaultBubblegumReward, h.treasury())
}

func TestCompressedBurnChecks(t *testing.T) {
	h := newHarness(t, DefaultBubblegumReward-1)
	f := h.compressedTree()
	actor := h.key()
	args := h.mintCompressed(f, actor.Address())
	root := h.treeState(f.tree).Root()

	err := h.exec(h.burnCompressed(f, actor.Address(), args), actor)
	require.ErrorIs(t, err, ErrInsufficientTreasuryBalance)
	require.Equal(t, root, h.treeState(f.tree).Root())

	h.fund(h.engine.Treasury().Address, DefaultBubblegumReward)
	cases := []struct {
		name  string
		index int
		addr  crypto.Address
		want  error
	}{
		{"foreign treasury", cmpTreasury, crypto.Address{0x42}, ErrInvalidTreasuryPda},
		{"foreign registry", cmpBubblegum, h.cfg.Programs.CoreAsset, ErrInvalidBubblegumProgram},
		{"foreign core program", cmpCoreProgram, h.cfg.Programs.Compression, ErrInvalidMplCoreProgram},
		{"foreign ledger", cmpSystem, h.cfg.Programs.CoreAsset, ErrInvalidSystemProgram},
		{"foreign compression", cmpCompression, crypto.Address{0x43}, bubblegum.ErrInvalidCompressionProgram},
		{"foreign log wrapper", cmpLogWrapper, crypto.Address{0x44}, bubblegum.ErrInvalidLogWrapper},
	}
	for _, c := range cases {
		ix := h.burnCompressed(f, actor.Address(), args)
		ix.Accounts[c.index].Address = c.addr
		require.ErrorIs(t, h.exec(ix, actor), c.want, c.name)
	}
	require.Equal(t, root, h.treeState(f.tree).Root())

	thief := h.key()
	ix := h.burnCompressed(f, thief.Address(), args)
	require.ErrorIs(t, h.exec(ix, thief), compression.ErrLeafMismatch)
	require.Equal(t, DefaultBubblegumReward, h.treasury())
}

func TestCompressedBurnKeepsNoClaimRecord(t *testing.T) {
	h := newHarness(t, 3*DefaultBubblegumReward)
	f := h.compressedTree()
	actor := h.key()
	first := h.mintCompressed(f, actor.Address())
	require.NoError(t, h.exec(h.burnCompressed(f, actor.Address(), first), actor))

	second := h.mintCompressed(f, actor.Address())
	require.NoError(t, h.exec(h.burnCompressed(f, actor.Address(), second), actor))
	require.Equal(t, DefaultBubblegumReward, h.treasury())

	_, err := h.engine.ClaimStatus(h.host.State(), ClassBubblegumBurn, actor.Address())
	require.Error(t, err)
}

func TestCompressedBurnWithDelegateAndCollection(t *testing.T) {
	h := newHarness(t, 3*DefaultBubblegumReward)
	f := h.compressedTree()
	actor := h.key()
	delegate := h.key().Address()
	collection := h.linkedCollection()
	coreProgram := h.cfg.Programs.CoreAsset
	args := h.mintLeaf(f, actor.Address(), &delegate)

	// Without the delegate the leaf is rebuilt with the owner in its place.
	ix := h.burnCompressed(f, actor.Address(), args)
	require.ErrorIs(t, h.exec(ix, actor), compression.ErrLeafMismatch)
	require.Equal(t, 3*DefaultBubblegumReward, h.treasury())

	ix, err := h.cfg.BurnBubblegum(BubblegumAccounts{
		TreeConfig:   f.config,
		MerkleTree:   f.tree,
		LeafOwner:    actor.Address(),
		LeafDelegate: &delegate,
		Collection:   &collection,
		CoreProgram:  &coreProgram,
	}, args)
	require.NoError(t, err)
	require.Equal(t, delegate, ix.Accounts[cmpLeafDelegate].Address)
	require.Equal(t, collection, ix.Accounts[cmpCollection].Address)
	require.NoError(t, h.exec(ix, actor))
	require.Equal(t, 2*DefaultBubblegumReward, h.treasury())
	require.Equal(t, compression.Node{}, h.treeState(f.tree).Leaf(args.Index))
}

func TestOptionalAccountsUseProgramPlaceholder(t *testing.T) {
	h := newHarness(t, DefaultBubblegumReward)
	f := h.compressedTree()
	ix := h.burnCompressed(f, h.key().Address(), BurnArgs{})
	for _, i := range []int{cmpLeafDelegate, cmpCollection, cmpCoreProgram} {
		require.Equal(t, h.cfg.Programs.Faucet, ix.Accounts[i].Address)
		require.Nil(t, h.engine.present(ix.Accounts[i].Address))
	}
	collection := crypto.Address{0x07}
	require.Equal(t, &collection, h.engine.present(collection))
}
