package runtime

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"fmt"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"burnfaucet/crypto"
)

// AccountMeta describes how an instruction uses an account.
type AccountMeta struct {
	Address  crypto.Address `json:"address"`
	Signer   bool           `json:"signer"`
	Writable bool           `json:"writable"`
}

// Writable returns a writable, non-signer meta.
func Writable(addr crypto.Address) AccountMeta {
	return AccountMeta{Address: addr, Writable: true}
}

// ReadOnly returns a read-only, non-signer meta.
func ReadOnly(addr crypto.Address) AccountMeta {
	return AccountMeta{Address: addr}
}

// Signer returns a writable signer meta.
func Signer(addr crypto.Address) AccountMeta {
	return AccountMeta{Address: addr, Signer: true, Writable: true}
}

// Instruction is a single program call.
type Instruction struct {
	ProgramID crypto.Address `json:"programId"`
	Accounts  []AccountMeta  `json:"accounts"`
	Data      []byte         `json:"data"`
}

// Transaction groups instructions that succeed or fail together. Nonce is
// signed with the instructions so the same intent can be submitted twice as
// two transactions, while one signed transaction executes at most once.
type Transaction struct {
	Nonce        uint64
	Instructions []Instruction
	Signatures   map[crypto.Address][]byte
}

// NewTransaction creates an unsigned transaction with a random nonce.
func NewTransaction(instructions ...Instruction) *Transaction {
	return &Transaction{
		Nonce:        randomNonce(),
		Instructions: instructions,
		Signatures:   make(map[crypto.Address][]byte),
	}
}

func randomNonce() uint64 {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		panic(fmt.Sprintf("runtime: read nonce: %v", err))
	}
	return binary.BigEndian.Uint64(buf[:])
}

type signedMessage struct {
	Nonce        uint64
	Instructions []Instruction
}

// Message returns the bytes covered by signatures.
func (tx *Transaction) Message() ([]byte, error) {
	if tx == nil || len(tx.Instructions) == 0 {
		return nil, ErrEmptyTransaction
	}
	return rlp.EncodeToBytes(&signedMessage{Nonce: tx.Nonce, Instructions: tx.Instructions})
}

// Digest is keccak256 of Message.
func (tx *Transaction) Digest() ([]byte, error) {
	msg, err := tx.Message()
	if err != nil {
		return nil, err
	}
	return ethcrypto.Keccak256(msg), nil
}

// ID is the hex digest, used to correlate receipts and logs.
func (tx *Transaction) ID() string {
	digest, err := tx.Digest()
	if err != nil {
		return ""
	}
	return hex.EncodeToString(digest)
}

// Sign adds a signature from each key.
func (tx *Transaction) Sign(keys ...*crypto.PrivateKey) error {
	digest, err := tx.Digest()
	if err != nil {
		return err
	}
	if tx.Signatures == nil {
		tx.Signatures = make(map[crypto.Address][]byte)
	}
	for _, key := range keys {
		if key == nil {
			return fmt.Errorf("runtime: nil signing key")
		}
		tx.Signatures[key.Address()] = key.Sign(digest)
	}
	return nil
}

// verifySignatures checks that every signer account carries a valid signature.
func (tx *Transaction) verifySignatures() error {
	digest, err := tx.Digest()
	if err != nil {
		return err
	}
	for addr, sig := range tx.Signatures {
		if !crypto.Verify(addr, digest, sig) {
			return fmt.Errorf("%w: %s", ErrInvalidSignature, addr)
		}
	}
	for _, ix := range tx.Instructions {
		for _, meta := range ix.Accounts {
			if !meta.Signer {
				continue
			}
			if _, ok := tx.Signatures[meta.Address]; !ok {
				return fmt.Errorf("%w: %s", ErrMissingSignature, meta.Address)
			}
		}
	}
	return nil
}
