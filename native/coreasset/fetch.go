package coreasset

import (
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"
)

// FetchPlugin returns the plugin of type t stored on the asset encoded in data.
func FetchPlugin(data []byte, t PluginType) (PluginRecord, error) {
	asset, err := DecodeAsset(data)
	if err != nil {
		return PluginRecord{}, err
	}
	for _, p := range asset.Plugins {
		if p.Type == t {
			return p, nil
		}
	}
	return PluginRecord{}, fmt.Errorf("%w: %s", ErrPluginNotFound, t)
}

// FetchAttributes decodes the Attributes plugin of an asset.
func FetchAttributes(data []byte) (*Attributes, error) {
	rec, err := FetchPlugin(data, PluginAttributes)
	if err != nil {
		return nil, err
	}
	out := new(Attributes)
	if err := rlp.DecodeBytes(rec.Data, out); err != nil {
		return nil, fmt.Errorf("%w: attributes: %v", ErrInvalidAccountData, err)
	}
	return out, nil
}

// FetchEdition decodes the Edition plugin of an asset.
func FetchEdition(data []byte) (*Edition, error) {
	rec, err := FetchPlugin(data, PluginEdition)
	if err != nil {
		return nil, err
	}
	out := new(Edition)
	if err := rlp.DecodeBytes(rec.Data, out); err != nil {
		return nil, fmt.Errorf("%w: edition: %v", ErrInvalidAccountData, err)
	}
	return out, nil
}

// FetchExternalAdapter returns the adapter addressed by key on the asset
// encoded in data.
func FetchExternalAdapter(data []byte, key AdapterKey) (AdapterRecord, error) {
	asset, err := DecodeAsset(data)
	if err != nil {
		return AdapterRecord{}, err
	}
	if rec, ok := findAdapter(asset.Adapters, key); ok {
		return rec, nil
	}
	return AdapterRecord{}, fmt.Errorf("%w: %s", ErrAdapterNotFound, key)
}

func findAdapter(adapters []AdapterRecord, key AdapterKey) (AdapterRecord, bool) {
	for _, a := range adapters {
		if a.Key == key {
			return a, true
		}
	}
	return AdapterRecord{}, false
}
