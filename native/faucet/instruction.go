package faucet

import (
	"encoding/binary"
	"fmt"

	"burnfaucet/core/runtime"
	"burnfaucet/crypto"
)

// BurnArgsLength is the size of the fixed compressed-burn payload.
const BurnArgsLength = 32 + 32 + 32 + 8 + 4

// BurnArgs locates the compressed leaf being burned.
type BurnArgs struct {
	Root        [32]byte
	DataHash    [32]byte
	CreatorHash [32]byte
	Nonce       uint64
	Index       uint32
}

// MarshalBinary lays the fields out back to back, integers little-endian.
func (a BurnArgs) MarshalBinary() ([]byte, error) {
	buf := make([]byte, 0, BurnArgsLength)
	buf = append(buf, a.Root[:]...)
	buf = append(buf, a.DataHash[:]...)
	buf = append(buf, a.CreatorHash[:]...)
	buf = binary.LittleEndian.AppendUint64(buf, a.Nonce)
	buf = binary.LittleEndian.AppendUint32(buf, a.Index)
	return buf, nil
}

func (a *BurnArgs) UnmarshalBinary(data []byte) error {
	if len(data) != BurnArgsLength {
		return fmt.Errorf("%w: burn args of %d bytes, want %d", ErrDeserialization, len(data), BurnArgsLength)
	}
	copy(a.Root[:], data[0:32])
	copy(a.DataHash[:], data[32:64])
	copy(a.CreatorHash[:], data[64:96])
	a.Nonce = binary.LittleEndian.Uint64(data[96:104])
	a.Index = binary.LittleEndian.Uint32(data[104:108])
	return nil
}

// Request is a decoded faucet instruction.
type Request struct {
	Class ClaimClass
	Burn  BurnArgs
}

// DecodeRequest parses instruction data: one tag byte, followed by the burn
// args for the compressed class and nothing otherwise.
func DecodeRequest(data []byte) (Request, error) {
	if len(data) == 0 {
		return Request{}, fmt.Errorf("%w: empty instruction", ErrDeserialization)
	}
	req := Request{Class: ClaimClass(data[0])}
	if !req.Class.Valid() {
		return Request{}, fmt.Errorf("%w: unknown tag %d", ErrDeserialization, data[0])
	}
	body := data[1:]
	if req.Class.Compressed() {
		if err := req.Burn.UnmarshalBinary(body); err != nil {
			return Request{}, err
		}
		return req, nil
	}
	if len(body) != 0 {
		return Request{}, fmt.Errorf("%w: %d trailing bytes after %s", ErrDeserialization, len(body), req.Class)
	}
	return req, nil
}

// EncodeRequest is the inverse of DecodeRequest.
func EncodeRequest(req Request) ([]byte, error) {
	if !req.Class.Valid() {
		return nil, fmt.Errorf("%w: unknown class %d", ErrSerialization, req.Class)
	}
	if !req.Class.Compressed() {
		return []byte{byte(req.Class)}, nil
	}
	body, _ := req.Burn.MarshalBinary()
	return append([]byte{byte(req.Class)}, body...), nil
}

// Account positions of a core-class request.
const (
	coreAsset = iota
	coreCollection
	coreActor
	coreProof
	coreTreasury
	coreProgram
	coreSystem
	coreAccountCount
)

// Account positions of a compressed-class request.
const (
	cmpTreeConfig = iota
	cmpMerkleTree
	cmpLeafOwner
	cmpLeafDelegate
	cmpTreasury
	cmpCollection
	cmpBubblegum
	cmpCompression
	cmpCoreProgram
	cmpSystem
	cmpLogWrapper
	cmpAccountCount
)

func (c Config) optional(addr *crypto.Address, writable bool) runtime.AccountMeta {
	if addr == nil {
		return runtime.ReadOnly(c.Programs.Faucet)
	}
	return runtime.AccountMeta{Address: *addr, Writable: writable}
}

// CoreAccounts names the caller-supplied accounts of a core-class request.
type CoreAccounts struct {
	Asset      crypto.Address
	Collection *crypto.Address
	Actor      crypto.Address
}

// Challenge builds the instruction claiming the reward for a core class.
func (c Config) Challenge(class ClaimClass, accs CoreAccounts) (runtime.Instruction, error) {
	if !class.Valid() || class.Compressed() {
		return runtime.Instruction{}, fmt.Errorf("faucet: %s is not a core class", class)
	}
	treasury, err := c.Treasury()
	if err != nil {
		return runtime.Instruction{}, err
	}
	proof, _, err := ProofAddress(c.Programs.Faucet, class, accs.Actor)
	if err != nil {
		return runtime.Instruction{}, err
	}
	data, err := EncodeRequest(Request{Class: class})
	if err != nil {
		return runtime.Instruction{}, err
	}
	return runtime.Instruction{
		ProgramID: c.Programs.Faucet,
		Accounts: []runtime.AccountMeta{
			coreAsset:      runtime.Writable(accs.Asset),
			coreCollection: c.optional(accs.Collection, true),
			coreActor:      runtime.Signer(accs.Actor),
			coreProof:      runtime.Writable(proof),
			coreTreasury:   runtime.Writable(treasury.Address),
			coreProgram:    runtime.ReadOnly(c.Programs.CoreAsset),
			coreSystem:     runtime.ReadOnly(c.Programs.System),
		},
		Data: data,
	}, nil
}

// BubblegumAccounts names the caller-supplied accounts of a compressed burn.
type BubblegumAccounts struct {
	TreeConfig   crypto.Address
	MerkleTree   crypto.Address
	LeafOwner    crypto.Address
	LeafDelegate *crypto.Address
	Collection   *crypto.Address
	// CoreProgram is passed when the leaf belongs to a core collection.
	CoreProgram *crypto.Address
}

// BurnBubblegum builds the instruction claiming the compressed-burn reward.
func (c Config) BurnBubblegum(accs BubblegumAccounts, args BurnArgs) (runtime.Instruction, error) {
	treasury, err := c.Treasury()
	if err != nil {
		return runtime.Instruction{}, err
	}
	data, err := EncodeRequest(Request{Class: ClassBubblegumBurn, Burn: args})
	if err != nil {
		return runtime.Instruction{}, err
	}
	return runtime.Instruction{
		ProgramID: c.Programs.Faucet,
		Accounts: []runtime.AccountMeta{
			cmpTreeConfig:   runtime.Writable(accs.TreeConfig),
			cmpMerkleTree:   runtime.Writable(accs.MerkleTree),
			cmpLeafOwner:    runtime.Signer(accs.LeafOwner),
			cmpLeafDelegate: c.optional(accs.LeafDelegate, false),
			cmpTreasury:     runtime.Writable(treasury.Address),
			cmpCollection:   c.optional(accs.Collection, true),
			cmpBubblegum:    runtime.ReadOnly(c.Programs.Bubblegum),
			cmpCompression:  runtime.ReadOnly(c.Programs.Compression),
			cmpCoreProgram:  c.optional(accs.CoreProgram, false),
			cmpSystem:       runtime.ReadOnly(c.Programs.System),
			cmpLogWrapper:   runtime.ReadOnly(c.Programs.LogWrapper),
		},
		Data: data,
	}, nil
}
