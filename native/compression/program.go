package compression

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"

	"burnfaucet/core/runtime"
	"burnfaucet/crypto"
)

const (
	TagInit    uint8 = 0
	TagAppend  uint8 = 1
	TagReplace uint8 = 2
)

type InitArgs struct {
	MaxDepth      uint32
	MaxBufferSize uint32
}

type AppendArgs struct {
	Leaf Node
}

type ReplaceArgs struct {
	Root     Node
	Previous Node
	New      Node
	Index    uint32
}

// ChangeLog is the payload handed to the log wrapper after every tree update
// so indexers can follow the tree without reading account data.
type ChangeLog struct {
	Tree     crypto.Address
	Root     Node
	Index    uint32
	Sequence uint64
}

func encodeIx(tag uint8, args any) []byte {
	raw, err := rlp.EncodeToBytes(args)
	if err != nil {
		panic(fmt.Sprintf("compression: encode instruction %d: %v", tag, err))
	}
	return append([]byte{tag}, raw...)
}

func treeAccounts(tree, authority, logWrapper crypto.Address) []runtime.AccountMeta {
	return []runtime.AccountMeta{
		runtime.Writable(tree),
		{Address: authority, Signer: true},
		runtime.ReadOnly(logWrapper),
	}
}

// Init builds the instruction initialising an allocated tree account.
func Init(program, tree, authority, logWrapper crypto.Address, args InitArgs) runtime.Instruction {
	return runtime.Instruction{ProgramID: program, Accounts: treeAccounts(tree, authority, logWrapper), Data: encodeIx(TagInit, &args)}
}

// Append builds the instruction appending a leaf.
func Append(program, tree, authority, logWrapper crypto.Address, leaf Node) runtime.Instruction {
	return runtime.Instruction{ProgramID: program, Accounts: treeAccounts(tree, authority, logWrapper), Data: encodeIx(TagAppend, &AppendArgs{Leaf: leaf})}
}

// Replace builds the instruction replacing a leaf.
func Replace(program, tree, authority, logWrapper crypto.Address, args ReplaceArgs) runtime.Instruction {
	return runtime.Instruction{ProgramID: program, Accounts: treeAccounts(tree, authority, logWrapper), Data: encodeIx(TagReplace, &args)}
}

// Program is the account compression service. It owns merkle tree accounts
// and only mutates them on behalf of each tree's authority.
type Program struct {
	id         crypto.Address
	logWrapper crypto.Address
}

func New(id, logWrapper crypto.Address) *Program {
	return &Program{id: id, logWrapper: logWrapper}
}

func (p *Program) ID() crypto.Address { return p.id }

// Process implements runtime.Program.
func (p *Program) Process(ctx context.Context, inv *runtime.Invocation) error {
	data := inv.Data()
	if len(data) == 0 {
		return fmt.Errorf("%w: empty", ErrInvalidInstruction)
	}
	accounts := inv.Accounts()
	if len(accounts) < 3 {
		return fmt.Errorf("%w: want 3 accounts, got %d", runtime.ErrNotEnoughAccountKeys, len(accounts))
	}
	treeAddr, authority, wrapper := accounts[0].Address, accounts[1].Address, accounts[2].Address
	if wrapper != p.logWrapper {
		return fmt.Errorf("%w: %s", ErrInvalidLogWrapper, wrapper)
	}
	if !inv.IsSigner(authority) {
		return fmt.Errorf("%w: %s did not sign", ErrInvalidAuthority, authority)
	}
	acc, err := inv.Load(treeAddr)
	if err != nil {
		return err
	}
	if acc.Owner != p.id {
		return fmt.Errorf("%w: %s not owned by compression", ErrInvalidTreeData, treeAddr)
	}

	var tree *Tree
	var index uint32
	switch data[0] {
	case TagInit:
		var args InitArgs
		if err := rlp.DecodeBytes(data[1:], &args); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidInstruction, err)
		}
		if !isBlank(acc.Data) {
			return fmt.Errorf("%w: %s already initialised", ErrInvalidTreeData, treeAddr)
		}
		if tree, err = NewTree(args.MaxDepth, args.MaxBufferSize, authority); err != nil {
			return err
		}
	case TagAppend:
		var args AppendArgs
		if err := rlp.DecodeBytes(data[1:], &args); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidInstruction, err)
		}
		if tree, err = p.authorised(acc.Data, authority); err != nil {
			return err
		}
		if index, err = tree.Append(args.Leaf); err != nil {
			return err
		}
	case TagReplace:
		var args ReplaceArgs
		if err := rlp.DecodeBytes(data[1:], &args); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidInstruction, err)
		}
		if tree, err = p.authorised(acc.Data, authority); err != nil {
			return err
		}
		if err := tree.Replace(args.Root, args.Previous, args.New, args.Index); err != nil {
			return err
		}
		index = args.Index
	default:
		return fmt.Errorf("%w: unknown tag %d", ErrInvalidInstruction, data[0])
	}

	if acc.Data, err = EncodeTree(tree); err != nil {
		return err
	}
	if err := inv.Store(treeAddr, acc); err != nil {
		return err
	}
	changelog, err := rlp.EncodeToBytes(&ChangeLog{Tree: treeAddr, Root: tree.Root(), Index: index, Sequence: tree.Sequence})
	if err != nil {
		return err
	}
	return inv.Invoke(ctx, runtime.Instruction{ProgramID: p.logWrapper, Data: changelog})
}

func (p *Program) authorised(data []byte, authority crypto.Address) (*Tree, error) {
	tree, err := DecodeTree(data)
	if err != nil {
		return nil, err
	}
	if tree.Authority != authority {
		return nil, fmt.Errorf("%w: %s", ErrInvalidAuthority, authority)
	}
	return tree, nil
}

func isBlank(data []byte) bool {
	for _, b := range data {
		if b != 0 {
			return false
		}
	}
	return true
}

// LogWrapper is the no-op program trees log their change logs through.
// Indexers read its instruction data; it never touches state.
type LogWrapper struct{}

func (LogWrapper) Process(_ context.Context, inv *runtime.Invocation) error {
	if len(inv.Data()) == 0 {
		return fmt.Errorf("%w: empty log", ErrInvalidInstruction)
	}
	return nil
}
