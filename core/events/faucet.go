package events

import (
	"strconv"

	"burnfaucet/core/types"
	"burnfaucet/crypto"
)

const (
	TypeFaucetRewardPaid    = "faucet.reward_paid"
	TypeFaucetClaimRecorded = "faucet.claim_recorded"
	TypeCoreAssetBurned     = "coreasset.burned"
	TypeCompressedBurned    = "bubblegum.burned"
)

// FaucetRewardPaid is emitted once the treasury has paid a reward.
type FaucetRewardPaid struct {
	Class    string
	Actor    crypto.Address
	Treasury crypto.Address
	Amount   uint64
}

func (FaucetRewardPaid) EventType() string { return TypeFaucetRewardPaid }

func (e FaucetRewardPaid) Event() *types.Event {
	return &types.Event{
		Type: TypeFaucetRewardPaid,
		Attributes: map[string]string{
			"class":    e.Class,
			"actor":    e.Actor.String(),
			"treasury": e.Treasury.String(),
			"amount":   strconv.FormatUint(e.Amount, 10),
		},
	}
}

// FaucetClaimRecorded is emitted when a claim record is allocated.
type FaucetClaimRecorded struct {
	Class string
	Actor crypto.Address
	Proof crypto.Address
}

func (FaucetClaimRecorded) EventType() string { return TypeFaucetClaimRecorded }

func (e FaucetClaimRecorded) Event() *types.Event {
	return &types.Event{
		Type: TypeFaucetClaimRecorded,
		Attributes: map[string]string{
			"class": e.Class,
			"actor": e.Actor.String(),
			"proof": e.Proof.String(),
		},
	}
}

// CoreAssetBurned is emitted by the single-asset registry.
type CoreAssetBurned struct {
	Asset      crypto.Address
	Owner      crypto.Address
	Collection *crypto.Address
}

func (CoreAssetBurned) EventType() string { return TypeCoreAssetBurned }

func (e CoreAssetBurned) Event() *types.Event {
	attrs := map[string]string{
		"asset": e.Asset.String(),
		"owner": e.Owner.String(),
	}
	if e.Collection != nil {
		attrs["collection"] = e.Collection.String()
	}
	return &types.Event{Type: TypeCoreAssetBurned, Attributes: attrs}
}

// CompressedBurned is emitted by the batched registry when a leaf is burned.
type CompressedBurned struct {
	Tree    crypto.Address
	AssetID crypto.Address
	Owner   crypto.Address
	Index   uint32
}

func (CompressedBurned) EventType() string { return TypeCompressedBurned }

func (e CompressedBurned) Event() *types.Event {
	return &types.Event{
		Type: TypeCompressedBurned,
		Attributes: map[string]string{
			"tree":    e.Tree.String(),
			"assetId": e.AssetID.String(),
			"owner":   e.Owner.String(),
			"index":   strconv.FormatUint(uint64(e.Index), 10),
		},
	}
}
