package faucet

import (
	"fmt"

	"burnfaucet/crypto"
	"burnfaucet/native/system"
)

// Programs carries the identity of the faucet and of every service it calls.
type Programs struct {
	Faucet      crypto.Address
	CoreAsset   crypto.Address
	Bubblegum   crypto.Address
	Compression crypto.Address
	LogWrapper  crypto.Address
	System      crypto.Address
}

// Well-known identities of the deployed services.
var (
	DefaultFaucetID      = crypto.MustParseAddress("FAUCp7gqwz4tv1XpxqBQ3J9p8kVATc2m1bvMvHvhg9A3")
	DefaultCoreAssetID   = crypto.MustParseAddress("CoREENxT6tW1HoK8ypY1SxRMZTcVPm7R94rH4PZNhX7d")
	DefaultBubblegumID   = crypto.MustParseAddress("BGUMAp9Gq7iTEuizy4pqaxsTyUCBK68MDfK752saRPUY")
	DefaultCompressionID = crypto.MustParseAddress("mcmt6YrQEMKw8Mw43FmpRLmf7BqRnFMKmAcbxE3xkAW")
	DefaultLogWrapperID  = crypto.MustParseAddress("mnoopTCrg4p8ry25e4bcWA9XZjbNjMTfgYVGGEdRsf3")
)

// DefaultTreasuryBump is the canonical bump of the default faucet's treasury.
const DefaultTreasuryBump uint8 = 255

func DefaultPrograms() Programs {
	return Programs{
		Faucet:      DefaultFaucetID,
		CoreAsset:   DefaultCoreAssetID,
		Bubblegum:   DefaultBubblegumID,
		Compression: DefaultCompressionID,
		LogWrapper:  DefaultLogWrapperID,
		System:      system.ProgramID,
	}
}

// Config fixes the identities, pricing and treasury of a faucet deployment.
type Config struct {
	Programs     Programs
	Rewards      Rewards
	TreasuryBump uint8
}

func DefaultConfig() Config {
	return Config{Programs: DefaultPrograms(), Rewards: DefaultRewards(), TreasuryBump: DefaultTreasuryBump}
}

// Treasury returns the treasury derived for this deployment.
func (c Config) Treasury() (Treasury, error) {
	return NewTreasury(c.Programs.Faucet, c.TreasuryBump)
}

// Validate checks the reward schedule, that program identities are set and
// distinct, and that the treasury bump yields a derived address.
func (c Config) Validate() error {
	if err := c.Rewards.Validate(); err != nil {
		return err
	}
	named := []struct {
		name string
		addr crypto.Address
	}{
		{"faucet", c.Programs.Faucet},
		{"core asset", c.Programs.CoreAsset},
		{"bubblegum", c.Programs.Bubblegum},
		{"compression", c.Programs.Compression},
		{"log wrapper", c.Programs.LogWrapper},
	}
	seen := map[crypto.Address]string{c.Programs.System: "system"}
	for _, p := range named {
		if p.addr.IsZero() {
			return fmt.Errorf("faucet: %s program id not set", p.name)
		}
		if other, dup := seen[p.addr]; dup {
			return fmt.Errorf("faucet: %s program id equals %s", p.name, other)
		}
		seen[p.addr] = p.name
	}
	if _, err := c.Treasury(); err != nil {
		return err
	}
	return nil
}
