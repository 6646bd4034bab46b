package system

import (
	"encoding/binary"
	"fmt"

	"burnfaucet/core/runtime"
	"burnfaucet/core/types"
	"burnfaucet/crypto"
)

// Instruction tags follow the ledger's wire layout: a little-endian u32 tag
// followed by fixed-width fields.
const (
	TagCreateAccount uint32 = 0
	TagAssign        uint32 = 1
	TagTransfer      uint32 = 2
	TagAllocate      uint32 = 8
)

// MaxPermittedDataLength caps Allocate and CreateAccount.
const MaxPermittedDataLength = 10 * 1024 * 1024

// ProgramID is the address the ledger service is registered under.
var ProgramID = types.SystemProgramID

type decoded struct {
	tag      uint32
	lamports uint64
	space    uint64
	owner    crypto.Address
}

func decode(data []byte) (decoded, error) {
	var out decoded
	if len(data) < 4 {
		return out, fmt.Errorf("%w: short tag", ErrInvalidInstructionData)
	}
	out.tag = binary.LittleEndian.Uint32(data)
	body := data[4:]
	want := 0
	switch out.tag {
	case TagCreateAccount:
		want = 8 + 8 + crypto.AddressLength
	case TagAssign:
		want = crypto.AddressLength
	case TagTransfer, TagAllocate:
		want = 8
	default:
		return out, fmt.Errorf("%w: unknown tag %d", ErrInvalidInstructionData, out.tag)
	}
	if len(body) != want {
		return out, fmt.Errorf("%w: tag %d wants %d bytes, got %d", ErrInvalidInstructionData, out.tag, want, len(body))
	}
	switch out.tag {
	case TagCreateAccount:
		out.lamports = binary.LittleEndian.Uint64(body)
		out.space = binary.LittleEndian.Uint64(body[8:])
		copy(out.owner[:], body[16:])
	case TagAssign:
		copy(out.owner[:], body)
	case TagTransfer:
		out.lamports = binary.LittleEndian.Uint64(body)
	case TagAllocate:
		out.space = binary.LittleEndian.Uint64(body)
	}
	return out, nil
}

func tagged(tag uint32, size int) []byte {
	buf := make([]byte, 4, 4+size)
	binary.LittleEndian.PutUint32(buf, tag)
	return buf
}

// Transfer moves lamports from a system-owned signer.
func Transfer(from, to crypto.Address, lamports uint64) runtime.Instruction {
	data := binary.LittleEndian.AppendUint64(tagged(TagTransfer, 8), lamports)
	return runtime.Instruction{
		ProgramID: ProgramID,
		Accounts:  []runtime.AccountMeta{runtime.Signer(from), runtime.Writable(to)},
		Data:      data,
	}
}

// CreateAccount funds, sizes and assigns a fresh account in one step.
func CreateAccount(payer, account crypto.Address, lamports, space uint64, owner crypto.Address) runtime.Instruction {
	data := tagged(TagCreateAccount, 48)
	data = binary.LittleEndian.AppendUint64(data, lamports)
	data = binary.LittleEndian.AppendUint64(data, space)
	data = append(data, owner[:]...)
	return runtime.Instruction{
		ProgramID: ProgramID,
		Accounts:  []runtime.AccountMeta{runtime.Signer(payer), runtime.Signer(account)},
		Data:      data,
	}
}

// Allocate sizes the data of an unused system-owned account.
func Allocate(account crypto.Address, space uint64) runtime.Instruction {
	return runtime.Instruction{
		ProgramID: ProgramID,
		Accounts:  []runtime.AccountMeta{runtime.Signer(account)},
		Data:      binary.LittleEndian.AppendUint64(tagged(TagAllocate, 8), space),
	}
}

// Assign hands a system-owned account to owner.
func Assign(account, owner crypto.Address) runtime.Instruction {
	return runtime.Instruction{
		ProgramID: ProgramID,
		Accounts:  []runtime.AccountMeta{runtime.Signer(account)},
		Data:      append(tagged(TagAssign, crypto.AddressLength), owner[:]...),
	}
}
