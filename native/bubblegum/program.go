package bubblegum

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"

	"burnfaucet/core/events"
	"burnfaucet/core/runtime"
	"burnfaucet/crypto"
	"burnfaucet/native/compression"
	"burnfaucet/native/system"
)

// Program is the compressed-asset registry. Asset ownership lives in merkle
// tree leaves held by the compression service; the tree config is the tree's
// authority and signs for it by derivation.
type Program struct {
	ids Programs
}

func New(ids Programs) *Program { return &Program{ids: ids} }

func (p *Program) ID() crypto.Address { return p.ids.Bubblegum }

// Process implements runtime.Program.
func (p *Program) Process(ctx context.Context, inv *runtime.Invocation) error {
	data := inv.Data()
	if len(data) == 0 {
		return fmt.Errorf("%w: empty", ErrInvalidInstruction)
	}
	switch data[0] {
	case TagCreateTree:
		var args CreateTreeArgs
		if err := rlp.DecodeBytes(data[1:], &args); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidInstruction, err)
		}
		return p.createTree(ctx, inv, args)
	case TagMintV2:
		var args MintV2Args
		if err := rlp.DecodeBytes(data[1:], &args); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidInstruction, err)
		}
		return p.mint(ctx, inv, args.Metadata)
	case TagBurnV2:
		var args BurnV2Args
		if err := rlp.DecodeBytes(data[1:], &args); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidInstruction, err)
		}
		return p.burn(ctx, inv, args)
	}
	return fmt.Errorf("%w: unknown tag %d", ErrInvalidInstruction, data[0])
}

func (p *Program) addresses(inv *runtime.Invocation, n int) ([]crypto.Address, error) {
	metas := inv.Accounts()
	if len(metas) < n {
		return nil, fmt.Errorf("%w: want %d accounts, got %d", runtime.ErrNotEnoughAccountKeys, n, len(metas))
	}
	out := make([]crypto.Address, n)
	for i := range out {
		out[i] = metas[i].Address
	}
	return out, nil
}

func (p *Program) checkServices(logWrapper, compressionID crypto.Address) error {
	if compressionID != p.ids.Compression {
		return fmt.Errorf("%w: %s", ErrInvalidCompressionProgram, compressionID)
	}
	if logWrapper != p.ids.LogWrapper {
		return fmt.Errorf("%w: %s", ErrInvalidLogWrapper, logWrapper)
	}
	return nil
}

// loadConfig reads the tree config and checks it is the one derived for tree.
func (p *Program) loadConfig(inv *runtime.Invocation, cfgAddr, tree crypto.Address) (*TreeConfig, error) {
	want, _, err := TreeConfigAddress(p.ids.Bubblegum, tree)
	if err != nil {
		return nil, err
	}
	if want != cfgAddr {
		return nil, fmt.Errorf("%w: %s is not the config of %s", ErrInvalidTreeConfig, cfgAddr, tree)
	}
	acc, err := inv.Load(cfgAddr)
	if err != nil {
		return nil, err
	}
	if acc.Owner != p.ids.Bubblegum {
		return nil, fmt.Errorf("%w: %s not owned by bubblegum", ErrInvalidTreeConfig, cfgAddr)
	}
	return DecodeTreeConfig(acc.Data)
}

func configSeeds(tree crypto.Address, bump uint8) [][]byte {
	return [][]byte{tree[:], {bump}}
}

func (p *Program) createTree(ctx context.Context, inv *runtime.Invocation, args CreateTreeArgs) error {
	addrs, err := p.addresses(inv, 7)
	if err != nil {
		return err
	}
	cfgAddr, tree, payer, creator := addrs[0], addrs[1], addrs[2], addrs[3]
	if err := p.checkServices(addrs[4], addrs[5]); err != nil {
		return err
	}
	if !inv.IsSigner(creator) {
		return fmt.Errorf("%w: %s", ErrTreeAuthorityMismatch, creator)
	}
	want, bump, err := TreeConfigAddress(p.ids.Bubblegum, tree)
	if err != nil {
		return err
	}
	if want != cfgAddr {
		return fmt.Errorf("%w: %s", ErrInvalidTreeConfig, cfgAddr)
	}
	inv.Log("Instruction: CreateTreeConfig")

	rent := inv.Rent().MinimumBalance(0)
	if err := inv.Invoke(ctx, system.CreateAccount(payer, tree, rent, 0, p.ids.Compression)); err != nil {
		return err
	}
	cfg := &TreeConfig{
		TreeCreator:       creator,
		TreeDelegate:      creator,
		TotalMintCapacity: uint64(1) << args.MaxDepth,
		IsPublic:          args.Public,
		Bump:              bump,
	}
	data, err := EncodeTreeConfig(cfg)
	if err != nil {
		return err
	}
	seeds := configSeeds(tree, bump)
	if err := system.CreateOrAllocate(ctx, inv, payer, cfgAddr, len(data), p.ids.Bubblegum, seeds); err != nil {
		return err
	}
	acc, err := inv.Load(cfgAddr)
	if err != nil {
		return err
	}
	acc.Data = data
	if err := inv.Store(cfgAddr, acc); err != nil {
		return err
	}
	return inv.Invoke(ctx, compression.Init(p.ids.Compression, tree, cfgAddr, p.ids.LogWrapper, compression.InitArgs{
		MaxDepth:      args.MaxDepth,
		MaxBufferSize: args.MaxBufferSize,
	}), seeds)
}

func (p *Program) mint(ctx context.Context, inv *runtime.Invocation, meta MetadataArgs) error {
	addrs, err := p.addresses(inv, 9)
	if err != nil {
		return err
	}
	cfgAddr, owner, delegate, tree, authority := addrs[0], addrs[1], addrs[2], addrs[3], addrs[5]
	if err := p.checkServices(addrs[6], addrs[7]); err != nil {
		return err
	}
	if delegate == p.ids.Bubblegum {
		delegate = owner
	}
	cfg, err := p.loadConfig(inv, cfgAddr, tree)
	if err != nil {
		return err
	}
	if !cfg.IsPublic && authority != cfg.TreeCreator && authority != cfg.TreeDelegate {
		return fmt.Errorf("%w: %s", ErrTreeAuthorityMismatch, authority)
	}
	if !inv.IsSigner(authority) {
		return fmt.Errorf("%w: %s did not sign", ErrTreeAuthorityMismatch, authority)
	}
	if cfg.NumMinted >= cfg.TotalMintCapacity {
		return ErrMintCapacityExceeded
	}
	if len(meta.Creators) > 0 {
		total := 0
		for _, c := range meta.Creators {
			total += int(c.Share)
		}
		if total != 100 {
			return fmt.Errorf("%w: got %d", ErrCreatorSharesInvalid, total)
		}
	}
	inv.Log("Instruction: MintV2")

	nonce := cfg.NumMinted
	id, err := AssetID(p.ids.Bubblegum, tree, nonce)
	if err != nil {
		return err
	}
	dataHash, err := HashMetadata(&meta)
	if err != nil {
		return err
	}
	leaf := Leaf{
		ID:          id,
		Owner:       owner,
		Delegate:    delegate,
		Nonce:       nonce,
		DataHash:    dataHash,
		CreatorHash: HashCreators(meta.Creators),
	}
	cfg.NumMinted++
	acc, err := inv.Load(cfgAddr)
	if err != nil {
		return err
	}
	if acc.Data, err = EncodeTreeConfig(cfg); err != nil {
		return err
	}
	if err := inv.Store(cfgAddr, acc); err != nil {
		return err
	}
	inv.Log("Minted leaf %d asset %s", nonce, id)
	return inv.Invoke(ctx, compression.Append(p.ids.Compression, tree, cfgAddr, p.ids.LogWrapper, leaf.Hash()), configSeeds(tree, cfg.Bump))
}

func (p *Program) burn(ctx context.Context, inv *runtime.Invocation, args BurnV2Args) error {
	addrs, err := p.addresses(inv, 10)
	if err != nil {
		return err
	}
	// addrs[6] is the core collection. Leaves do not commit to a collection,
	// so it is accepted for account-list compatibility only.
	cfgAddr, payer, authority, owner, delegate, tree := addrs[0], addrs[1], addrs[2], addrs[3], addrs[4], addrs[5]
	if err := p.checkServices(addrs[7], addrs[8]); err != nil {
		return err
	}
	if authority == p.ids.Bubblegum {
		authority = payer
	}
	if delegate == p.ids.Bubblegum {
		delegate = owner
	}
	if authority != owner && authority != delegate {
		return fmt.Errorf("%w: %s", ErrLeafAuthorityMissing, authority)
	}
	if !inv.IsSigner(authority) {
		return fmt.Errorf("%w: %s did not sign", ErrLeafAuthorityMissing, authority)
	}
	cfg, err := p.loadConfig(inv, cfgAddr, tree)
	if err != nil {
		return err
	}
	inv.Log("Instruction: BurnV2")

	id, err := AssetID(p.ids.Bubblegum, tree, args.Nonce)
	if err != nil {
		return err
	}
	leaf := Leaf{
		ID:          id,
		Owner:       owner,
		Delegate:    delegate,
		Nonce:       args.Nonce,
		DataHash:    args.DataHash,
		CreatorHash: args.CreatorHash,
	}
	if err := inv.Invoke(ctx, compression.Replace(p.ids.Compression, tree, cfgAddr, p.ids.LogWrapper, compression.ReplaceArgs{
		Root:     args.Root,
		Previous: leaf.Hash(),
		New:      compression.Node{},
		Index:    args.Index,
	}), configSeeds(tree, cfg.Bump)); err != nil {
		return err
	}
	inv.Emit(events.CompressedBurned{Tree: tree, AssetID: id, Owner: owner, Index: args.Index})
	return nil
}
