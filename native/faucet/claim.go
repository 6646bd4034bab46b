package faucet

import (
	"fmt"

	"burnfaucet/core/state"
	"burnfaucet/core/types"
	"burnfaucet/crypto"
)

// ClaimClass identifies one of the six rewardable actions. The value is also
// the instruction tag.
type ClaimClass uint8

const (
	Class0 ClaimClass = iota
	Class1
	Class2
	Class3
	Class4
	ClassBubblegumBurn
)

// CoreClasses are the classes that burn a single core asset.
var CoreClasses = []ClaimClass{Class0, Class1, Class2, Class3, Class4}

func (c ClaimClass) Valid() bool { return c <= ClassBubblegumBurn }

// Compressed reports whether the class burns a leaf of a compressed tree.
func (c ClaimClass) Compressed() bool { return c == ClassBubblegumBurn }

func (c ClaimClass) String() string {
	switch {
	case c == ClassBubblegumBurn:
		return "BurnBubblegumV2Asset"
	case c < ClassBubblegumBurn:
		return fmt.Sprintf("Challenge%d", uint8(c))
	}
	return fmt.Sprintf("ClaimClass(%d)", uint8(c))
}

// Capability names the marker an asset must carry before it may be burned for
// a class.
type Capability uint8

const (
	CapabilityNone Capability = iota
	CapabilityAttributes
	CapabilityEdition
	CapabilityAppData
	CapabilityLinkedAppData
)

func (c Capability) String() string {
	switch c {
	case CapabilityNone:
		return "none"
	case CapabilityAttributes:
		return "attributes"
	case CapabilityEdition:
		return "edition"
	case CapabilityAppData:
		return "app_data"
	case CapabilityLinkedAppData:
		return "linked_app_data"
	}
	return fmt.Sprintf("Capability(%d)", uint8(c))
}

// Capability returns the marker required for the class. The compressed class
// has none; its registry enforces membership itself.
func (c ClaimClass) Capability() Capability {
	switch c {
	case Class1:
		return CapabilityAttributes
	case Class2:
		return CapabilityEdition
	case Class3:
		return CapabilityAppData
	case Class4:
		return CapabilityLinkedAppData
	}
	return CapabilityNone
}

const (
	// DefaultBaseReward is 0.1 of the native unit.
	DefaultBaseReward uint64 = 100_000_000
	// DefaultBubblegumReward is one native unit.
	DefaultBubblegumReward uint64 = 1_000_000_000
)

// Rewards is the pricing schedule. Core classes pay Base × (class+1); the
// compressed class pays Bubblegum.
type Rewards struct {
	Base      uint64
	Bubblegum uint64
}

func DefaultRewards() Rewards {
	return Rewards{Base: DefaultBaseReward, Bubblegum: DefaultBubblegumReward}
}

// Validate requires a positive base and a compressed reward strictly above
// the largest core reward.
func (r Rewards) Validate() error {
	if r.Base == 0 {
		return fmt.Errorf("faucet: base reward must be positive")
	}
	top := uint64(len(CoreClasses))
	if r.Base > ^uint64(0)/top {
		return fmt.Errorf("faucet: base reward %d overflows class %d", r.Base, Class4)
	}
	if r.Bubblegum <= r.Base*top {
		return fmt.Errorf("faucet: bubblegum reward %d must exceed %d", r.Bubblegum, r.Base*top)
	}
	return nil
}

// Reward returns the amount paid for class.
func (r Rewards) Reward(class ClaimClass) uint64 {
	if class.Compressed() {
		return r.Bubblegum
	}
	return r.Base * (uint64(class) + 1)
}

// ClaimRecord is the payload of a proof account. Existence of the account is
// what marks the claim; Solved is informational.
type ClaimRecord struct {
	Solved bool
}

const claimRecordSize = 1

// EncodeClaimRecord returns the one byte stored in a proof account.
func EncodeClaimRecord(rec ClaimRecord) []byte {
	if rec.Solved {
		return []byte{1}
	}
	return []byte{0}
}

// DecodeClaimRecord parses a proof account payload.
func DecodeClaimRecord(data []byte) (ClaimRecord, error) {
	if len(data) != claimRecordSize || data[0] > 1 {
		return ClaimRecord{}, fmt.Errorf("%w: claim record of %d bytes", ErrDeserialization, len(data))
	}
	return ClaimRecord{Solved: data[0] == 1}, nil
}

// ClaimStatus reports the state of the claim record for (class, actor).
type ClaimStatus struct {
	Class   ClaimClass     `json:"class"`
	Actor   crypto.Address `json:"actor"`
	Proof   crypto.Address `json:"proof"`
	Bump    uint8          `json:"bump"`
	Claimed bool           `json:"claimed"`
	Solved  bool           `json:"solved"`
}

// LookupClaim reads the claim record of (class, actor) from view.
func LookupClaim(view state.Reader, program crypto.Address, class ClaimClass, actor crypto.Address) (ClaimStatus, error) {
	if !class.Valid() || class.Compressed() {
		return ClaimStatus{}, fmt.Errorf("faucet: class %s keeps no claim records", class)
	}
	proof, bump, err := ProofAddress(program, class, actor)
	if err != nil {
		return ClaimStatus{}, err
	}
	status := ClaimStatus{Class: class, Actor: actor, Proof: proof, Bump: bump}
	acc, err := view.Account(proof)
	if err != nil {
		return ClaimStatus{}, err
	}
	if !claimed(acc, program) {
		return status, nil
	}
	rec, err := DecodeClaimRecord(acc.Data)
	if err != nil {
		return ClaimStatus{}, err
	}
	status.Claimed = true
	status.Solved = rec.Solved
	return status, nil
}

// claimed reports whether a proof account has been allocated. Lamports alone
// do not count: anyone may pre-fund the address.
func claimed(acc *types.Account, program crypto.Address) bool {
	return acc != nil && (acc.Owner == program || len(acc.Data) > 0)
}
