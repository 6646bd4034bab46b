package coreasset

import (
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"

	"burnfaucet/core/runtime"
	"burnfaucet/crypto"
	"burnfaucet/native/system"
)

// Instruction tags. Data is the tag byte followed by the RLP arguments.
const (
	TagCreate           uint8 = 0
	TagCreateCollection uint8 = 1
	TagBurn             uint8 = 12
	TagWriteData        uint8 = 28
)

type CreateArgs struct {
	Name     string
	URI      string
	Plugins  []PluginRecord
	Adapters []AdapterRecord
}

type CreateCollectionArgs struct {
	Name     string
	URI      string
	Plugins  []PluginRecord
	Adapters []AdapterRecord
}

type WriteDataArgs struct {
	Key  AdapterKey
	Data []byte
}

func encodeIx(tag uint8, args any) []byte {
	if args == nil {
		return []byte{tag}
	}
	raw, err := rlp.EncodeToBytes(args)
	if err != nil {
		panic(fmt.Sprintf("coreasset: encode instruction %d: %v", tag, err))
	}
	return append([]byte{tag}, raw...)
}

func decodeArgs(data []byte, out any) error {
	if err := rlp.DecodeBytes(data, out); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInstruction, err)
	}
	return nil
}

// optional encodes an absent optional account as the program id so the
// account list keeps fixed positions.
func optional(program crypto.Address, addr *crypto.Address, writable, signer bool) runtime.AccountMeta {
	if addr == nil {
		return runtime.ReadOnly(program)
	}
	return runtime.AccountMeta{Address: *addr, Writable: writable, Signer: signer}
}

// CreateCollection builds the instruction creating a collection account.
// The collection and payer sign.
func CreateCollection(program, collection, updateAuthority, payer crypto.Address, args CreateCollectionArgs) runtime.Instruction {
	return runtime.Instruction{
		ProgramID: program,
		Accounts: []runtime.AccountMeta{
			runtime.Signer(collection),
			runtime.ReadOnly(updateAuthority),
			runtime.Signer(payer),
			runtime.ReadOnly(system.ProgramID),
		},
		Data: encodeIx(TagCreateCollection, &args),
	}
}

// CreateAccounts lists the accounts of a Create instruction.
type CreateAccounts struct {
	Asset      crypto.Address
	Collection *crypto.Address
	// Authority must be the collection's update authority when minting into
	// a collection. It defaults to Payer.
	Authority *crypto.Address
	Payer     crypto.Address
	Owner     crypto.Address
}

// Create builds the instruction minting a new asset.
func Create(program crypto.Address, accs CreateAccounts, args CreateArgs) runtime.Instruction {
	return runtime.Instruction{
		ProgramID: program,
		Accounts: []runtime.AccountMeta{
			runtime.Signer(accs.Asset),
			optional(program, accs.Collection, true, false),
			optional(program, accs.Authority, true, true),
			runtime.Signer(accs.Payer),
			runtime.ReadOnly(accs.Owner),
			runtime.ReadOnly(system.ProgramID),
		},
		Data: encodeIx(TagCreate, &args),
	}
}

// WriteData builds the instruction writing an external adapter's data on an
// asset. DataSection keys need the collection holding the linked adapter.
func WriteData(program, asset crypto.Address, collection *crypto.Address, authority crypto.Address, args WriteDataArgs) runtime.Instruction {
	return runtime.Instruction{
		ProgramID: program,
		Accounts: []runtime.AccountMeta{
			runtime.Writable(asset),
			optional(program, collection, false, false),
			runtime.Signer(authority),
		},
		Data: encodeIx(TagWriteData, &args),
	}
}

// BurnAccounts lists the accounts of a Burn instruction.
type BurnAccounts struct {
	Asset      crypto.Address
	Collection *crypto.Address
	Payer      crypto.Address
	// Authority defaults to Payer.
	Authority *crypto.Address
}

// Burn builds the instruction destroying an asset.
func Burn(program crypto.Address, accs BurnAccounts) runtime.Instruction {
	return runtime.Instruction{
		ProgramID: program,
		Accounts: []runtime.AccountMeta{
			runtime.Writable(accs.Asset),
			optional(program, accs.Collection, true, false),
			runtime.Signer(accs.Payer),
			optional(program, accs.Authority, true, true),
			runtime.ReadOnly(system.ProgramID),
		},
		Data: encodeIx(TagBurn, nil),
	}
}
