package faucet

import (
	"errors"
	"fmt"

	"burnfaucet/native/coreasset"
)

var updateAuthority = coreasset.PluginAuthority{Kind: coreasset.AuthorityUpdateAuthority}

// CheckCapability requires the asset encoded in data to carry capability.
// A missing marker yields ErrCapabilityNotFound and undecodable data yields
// ErrDeserialization. CapabilityNone always passes; ownership is then left to
// the registry's burn.
func CheckCapability(data []byte, capability Capability) error {
	var err error
	switch capability {
	case CapabilityNone:
		return nil
	case CapabilityAttributes:
		_, err = coreasset.FetchAttributes(data)
	case CapabilityEdition:
		_, err = coreasset.FetchEdition(data)
	case CapabilityAppData:
		_, err = coreasset.FetchExternalAdapter(data, coreasset.AppDataKey(updateAuthority))
	case CapabilityLinkedAppData:
		_, err = coreasset.FetchExternalAdapter(data, coreasset.DataSectionKey(updateAuthority))
	default:
		return fmt.Errorf("%w: unknown capability %d", ErrCapabilityNotFound, capability)
	}
	switch {
	case err == nil:
		return nil
	case errors.Is(err, coreasset.ErrPluginNotFound), errors.Is(err, coreasset.ErrAdapterNotFound):
		return fmt.Errorf("%w: %s: %v", ErrCapabilityNotFound, capability, err)
	default:
		return fmt.Errorf("%w: %v", ErrDeserialization, err)
	}
}
