package coreasset

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"

	"burnfaucet/crypto"
)

var (
	ErrAssetNotFound      = errors.New("coreasset: asset not found")
	ErrCollectionNotFound = errors.New("coreasset: collection not found")
	ErrInvalidCollection  = errors.New("coreasset: collection does not match asset")
	ErrMissingCollection  = errors.New("coreasset: asset belongs to a collection that was not supplied")
	ErrInvalidAuthority   = errors.New("coreasset: invalid authority")
	ErrPluginNotFound     = errors.New("coreasset: plugin not found")
	ErrAdapterNotFound    = errors.New("coreasset: external plugin adapter not found")
	ErrInvalidAccountData = errors.New("coreasset: invalid account data")
	ErrInvalidInstruction = errors.New("coreasset: invalid instruction data")
	ErrDuplicatePlugin    = errors.New("coreasset: plugin already present")
)

// Key discriminates account layouts. It is the first byte of account data.
type Key uint8

const (
	KeyUninitialized Key = 0
	KeyAssetV1       Key = 1
	KeyCollectionV1  Key = 5
)

// UpdateAuthorityKind selects how an asset's update authority resolves.
type UpdateAuthorityKind uint8

const (
	UpdateAuthorityNone       UpdateAuthorityKind = 0
	UpdateAuthorityAddress    UpdateAuthorityKind = 1
	UpdateAuthorityCollection UpdateAuthorityKind = 2
)

type UpdateAuthority struct {
	Kind    UpdateAuthorityKind
	Address crypto.Address
}

// PluginType numbers follow the registry's plugin enum.
type PluginType uint8

const (
	PluginAttributes PluginType = 6
	PluginEdition    PluginType = 9
)

func (t PluginType) String() string {
	switch t {
	case PluginAttributes:
		return "Attributes"
	case PluginEdition:
		return "Edition"
	default:
		return fmt.Sprintf("PluginType(%d)", uint8(t))
	}
}

type Attribute struct {
	Key   string
	Value string
}

type Attributes struct {
	List []Attribute
}

type Edition struct {
	Number uint32
}

// PluginRecord is a plugin stored on an asset or collection. Data holds the
// RLP encoding of the typed plugin body.
type PluginRecord struct {
	Type PluginType
	Data []byte
}

// NewAttributesPlugin encodes an Attributes plugin.
func NewAttributesPlugin(attrs ...Attribute) PluginRecord {
	raw, _ := rlp.EncodeToBytes(&Attributes{List: attrs})
	return PluginRecord{Type: PluginAttributes, Data: raw}
}

// NewEditionPlugin encodes an Edition plugin.
func NewEditionPlugin(number uint32) PluginRecord {
	raw, _ := rlp.EncodeToBytes(&Edition{Number: number})
	return PluginRecord{Type: PluginEdition, Data: raw}
}

// PluginAuthorityKind mirrors the registry's plugin authority enum.
type PluginAuthorityKind uint8

const (
	AuthorityNone            PluginAuthorityKind = 0
	AuthorityOwner           PluginAuthorityKind = 1
	AuthorityUpdateAuthority PluginAuthorityKind = 2
	AuthorityAddress         PluginAuthorityKind = 3
)

type PluginAuthority struct {
	Kind    PluginAuthorityKind
	Address crypto.Address
}

// AdapterType identifies an external plugin adapter family.
type AdapterType uint8

const (
	AdapterAppData       AdapterType = 1
	AdapterLinkedAppData AdapterType = 2
	AdapterDataSection   AdapterType = 3
)

// AdapterKey addresses an external adapter. AppData and LinkedAppData are
// keyed by authority directly; DataSection is keyed indirectly through the
// linked adapter kind it carries data for.
type AdapterKey struct {
	Type      AdapterType
	Linked    AdapterType
	Authority PluginAuthority
}

// AppDataKey returns the direct key for an AppData adapter.
func AppDataKey(authority PluginAuthority) AdapterKey {
	return AdapterKey{Type: AdapterAppData, Authority: authority}
}

// LinkedAppDataKey returns the key for a LinkedAppData adapter.
func LinkedAppDataKey(authority PluginAuthority) AdapterKey {
	return AdapterKey{Type: AdapterLinkedAppData, Authority: authority}
}

// DataSectionKey returns the indirect key of the per-asset data section
// written for a collection's LinkedAppData adapter.
func DataSectionKey(authority PluginAuthority) AdapterKey {
	return AdapterKey{Type: AdapterDataSection, Linked: AdapterLinkedAppData, Authority: authority}
}

func (k AdapterKey) String() string {
	name := map[AdapterType]string{
		AdapterAppData:       "AppData",
		AdapterLinkedAppData: "LinkedAppData",
		AdapterDataSection:   "DataSection",
	}[k.Type]
	if k.Type == AdapterDataSection {
		return fmt.Sprintf("DataSection(LinkedAppData(%d))", k.Authority.Kind)
	}
	return fmt.Sprintf("%s(%d)", name, k.Authority.Kind)
}

type AdapterRecord struct {
	Key  AdapterKey
	Data []byte
}

// AssetV1 is a single non-fungible asset.
type AssetV1 struct {
	Owner           crypto.Address
	UpdateAuthority UpdateAuthority
	Name            string
	URI             string
	Plugins         []PluginRecord
	Adapters        []AdapterRecord
}

// CollectionV1 groups assets under a common update authority.
type CollectionV1 struct {
	UpdateAuthority crypto.Address
	Name            string
	URI             string
	NumMinted       uint32
	CurrentSize     uint32
	Plugins         []PluginRecord
	Adapters        []AdapterRecord
}

func encode(key Key, body any) ([]byte, error) {
	raw, err := rlp.EncodeToBytes(body)
	if err != nil {
		return nil, err
	}
	return append([]byte{byte(key)}, raw...), nil
}

func decodeAs(data []byte, want Key, out any) error {
	if len(data) == 0 || Key(data[0]) != want {
		return fmt.Errorf("%w: expected key %d", ErrInvalidAccountData, want)
	}
	if err := rlp.DecodeBytes(data[1:], out); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidAccountData, err)
	}
	return nil
}

// EncodeAsset serialises an asset with its key byte.
func EncodeAsset(asset *AssetV1) ([]byte, error) { return encode(KeyAssetV1, asset) }

// EncodeCollection serialises a collection with its key byte.
func EncodeCollection(c *CollectionV1) ([]byte, error) { return encode(KeyCollectionV1, c) }

// DecodeAsset parses asset account data.
func DecodeAsset(data []byte) (*AssetV1, error) {
	asset := new(AssetV1)
	if err := decodeAs(data, KeyAssetV1, asset); err != nil {
		return nil, err
	}
	return asset, nil
}

// DecodeCollection parses collection account data.
func DecodeCollection(data []byte) (*CollectionV1, error) {
	c := new(CollectionV1)
	if err := decodeAs(data, KeyCollectionV1, c); err != nil {
		return nil, err
	}
	return c, nil
}
