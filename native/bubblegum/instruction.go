package bubblegum

import (
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"

	"burnfaucet/core/runtime"
	"burnfaucet/crypto"
	"burnfaucet/native/system"
)

const (
	TagCreateTree uint8 = 0
	TagMintV2     uint8 = 1
	TagBurnV2     uint8 = 2
)

type CreateTreeArgs struct {
	MaxDepth      uint32
	MaxBufferSize uint32
	Public        bool
}

type MintV2Args struct {
	Metadata MetadataArgs
}

// BurnV2Args identifies the leaf being burned. Root may be any root still in
// the tree's recent-roots buffer.
type BurnV2Args struct {
	Root        [32]byte
	DataHash    [32]byte
	CreatorHash [32]byte
	Nonce       uint64
	Index       uint32
}

// Programs carries the identities of the services a tree depends on.
type Programs struct {
	Bubblegum   crypto.Address
	Compression crypto.Address
	LogWrapper  crypto.Address
}

func encodeIx(tag uint8, args any) []byte {
	raw, err := rlp.EncodeToBytes(args)
	if err != nil {
		panic(fmt.Sprintf("bubblegum: encode instruction %d: %v", tag, err))
	}
	return append([]byte{tag}, raw...)
}

func (p Programs) optional(addr *crypto.Address, signer bool) runtime.AccountMeta {
	if addr == nil {
		return runtime.ReadOnly(p.Bubblegum)
	}
	return runtime.AccountMeta{Address: *addr, Signer: signer}
}

// CreateTree builds the instruction creating a tree and its config.
func (p Programs) CreateTree(tree, payer, creator crypto.Address, args CreateTreeArgs) (runtime.Instruction, error) {
	cfg, _, err := TreeConfigAddress(p.Bubblegum, tree)
	if err != nil {
		return runtime.Instruction{}, err
	}
	return runtime.Instruction{
		ProgramID: p.Bubblegum,
		Accounts: []runtime.AccountMeta{
			runtime.Writable(cfg),
			runtime.Signer(tree),
			runtime.Signer(payer),
			{Address: creator, Signer: true},
			runtime.ReadOnly(p.LogWrapper),
			runtime.ReadOnly(p.Compression),
			runtime.ReadOnly(system.ProgramID),
		},
		Data: encodeIx(TagCreateTree, &args),
	}, nil
}

// MintV2 builds the instruction minting a compressed asset to owner.
func (p Programs) MintV2(tree, owner crypto.Address, delegate *crypto.Address, payer, treeAuthority crypto.Address, meta MetadataArgs) (runtime.Instruction, error) {
	cfg, _, err := TreeConfigAddress(p.Bubblegum, tree)
	if err != nil {
		return runtime.Instruction{}, err
	}
	return runtime.Instruction{
		ProgramID: p.Bubblegum,
		Accounts: []runtime.AccountMeta{
			runtime.Writable(cfg),
			runtime.ReadOnly(owner),
			p.optional(delegate, false),
			runtime.Writable(tree),
			runtime.Signer(payer),
			{Address: treeAuthority, Signer: true},
			runtime.ReadOnly(p.LogWrapper),
			runtime.ReadOnly(p.Compression),
			runtime.ReadOnly(system.ProgramID),
		},
		Data: encodeIx(TagMintV2, &MintV2Args{Metadata: meta}),
	}, nil
}

// BurnAccounts lists the accounts of a BurnV2 instruction. Absent optional
// accounts are encoded as the bubblegum program id.
type BurnAccounts struct {
	TreeConfig     crypto.Address
	Payer          crypto.Address
	Authority      *crypto.Address
	LeafOwner      crypto.Address
	LeafDelegate   *crypto.Address
	MerkleTree     crypto.Address
	CoreCollection *crypto.Address
}

// BurnV2 builds the instruction burning a compressed asset.
func (p Programs) BurnV2(accs BurnAccounts, args BurnV2Args) runtime.Instruction {
	return runtime.Instruction{
		ProgramID: p.Bubblegum,
		Accounts: []runtime.AccountMeta{
			runtime.ReadOnly(accs.TreeConfig),
			runtime.Signer(accs.Payer),
			p.optional(accs.Authority, true),
			runtime.ReadOnly(accs.LeafOwner),
			p.optional(accs.LeafDelegate, false),
			runtime.Writable(accs.MerkleTree),
			p.optional(accs.CoreCollection, false),
			runtime.ReadOnly(p.LogWrapper),
			runtime.ReadOnly(p.Compression),
			runtime.ReadOnly(system.ProgramID),
		},
		Data: encodeIx(TagBurnV2, &args),
	}
}
