package bubblegum

import (
	"encoding/binary"
	"errors"
	"fmt"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"burnfaucet/crypto"
	"burnfaucet/native/compression"
)

var (
	ErrInvalidTreeConfig         = errors.New("bubblegum: invalid tree config")
	ErrInvalidCompressionProgram = errors.New("bubblegum: invalid compression program")
	ErrInvalidLogWrapper         = errors.New("bubblegum: invalid log wrapper")
	ErrTreeAuthorityMismatch     = errors.New("bubblegum: tree creator or delegate must sign")
	ErrLeafAuthorityMissing      = errors.New("bubblegum: leaf owner or delegate must sign")
	ErrMintCapacityExceeded      = errors.New("bubblegum: mint capacity exceeded")
	ErrInvalidInstruction        = errors.New("bubblegum: invalid instruction data")
	ErrCreatorSharesInvalid      = errors.New("bubblegum: creator shares must sum to 100")
)

// LeafVersion is the schema byte hashed into every leaf.
const LeafVersion uint8 = 2

const keyTreeConfig byte = 1

// TreeConfig lives at the derived address of the tree and is the tree's
// authority in the compression service.
type TreeConfig struct {
	TreeCreator       crypto.Address
	TreeDelegate      crypto.Address
	TotalMintCapacity uint64
	NumMinted         uint64
	IsPublic          bool
	Bump              uint8
}

type Creator struct {
	Address  crypto.Address
	Verified bool
	Share    uint8
}

// MetadataArgs describes a compressed asset at mint time.
type MetadataArgs struct {
	Name                 string
	Symbol               string
	URI                  string
	SellerFeeBasisPoints uint16
	Creators             []Creator
}

// Leaf is the schema hashed into the tree for each compressed asset.
type Leaf struct {
	ID          crypto.Address
	Owner       crypto.Address
	Delegate    crypto.Address
	Nonce       uint64
	DataHash    [32]byte
	CreatorHash [32]byte
}

// Hash returns keccak256(version || id || owner || delegate || nonce LE ||
// data_hash || creator_hash).
func (l Leaf) Hash() compression.Node {
	var nonce [8]byte
	binary.LittleEndian.PutUint64(nonce[:], l.Nonce)
	var out compression.Node
	copy(out[:], ethcrypto.Keccak256(
		[]byte{LeafVersion},
		l.ID[:],
		l.Owner[:],
		l.Delegate[:],
		nonce[:],
		l.DataHash[:],
		l.CreatorHash[:],
	))
	return out
}

// HashMetadata returns the data hash of a metadata record:
// keccak256(keccak256(rlp(metadata)) || seller_fee_basis_points BE).
func HashMetadata(meta *MetadataArgs) ([32]byte, error) {
	var out [32]byte
	raw, err := rlp.EncodeToBytes(meta)
	if err != nil {
		return out, err
	}
	var fee [2]byte
	binary.BigEndian.PutUint16(fee[:], meta.SellerFeeBasisPoints)
	copy(out[:], ethcrypto.Keccak256(ethcrypto.Keccak256(raw), fee[:]))
	return out, nil
}

// HashCreators returns keccak256 over address || verified || share of every
// creator in order.
func HashCreators(creators []Creator) [32]byte {
	buf := make([]byte, 0, len(creators)*34)
	for _, c := range creators {
		verified := byte(0)
		if c.Verified {
			verified = 1
		}
		buf = append(buf, c.Address[:]...)
		buf = append(buf, verified, c.Share)
	}
	var out [32]byte
	copy(out[:], ethcrypto.Keccak256(buf))
	return out
}

// TreeConfigAddress derives the tree config for tree under program.
func TreeConfigAddress(program, tree crypto.Address) (crypto.Address, uint8, error) {
	return crypto.FindDerivedAddress([][]byte{tree[:]}, program)
}

// AssetID derives the asset id of the leaf minted with nonce.
func AssetID(program, tree crypto.Address, nonce uint64) (crypto.Address, error) {
	var le [8]byte
	binary.LittleEndian.PutUint64(le[:], nonce)
	id, _, err := crypto.FindDerivedAddress([][]byte{[]byte("asset"), tree[:], le[:]}, program)
	return id, err
}

// EncodeTreeConfig serialises a tree config account.
func EncodeTreeConfig(cfg *TreeConfig) ([]byte, error) {
	raw, err := rlp.EncodeToBytes(cfg)
	if err != nil {
		return nil, err
	}
	return append([]byte{keyTreeConfig}, raw...), nil
}

// DecodeTreeConfig parses a tree config account.
func DecodeTreeConfig(data []byte) (*TreeConfig, error) {
	if len(data) == 0 || data[0] != keyTreeConfig {
		return nil, ErrInvalidTreeConfig
	}
	cfg := new(TreeConfig)
	if err := rlp.DecodeBytes(data[1:], cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTreeConfig, err)
	}
	return cfg, nil
}
