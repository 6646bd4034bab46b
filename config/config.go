package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"burnfaucet/crypto"
	"burnfaucet/native/faucet"
)

type Config struct {
	ListenAddress string    `toml:"ListenAddress"`
	DataDir       string    `toml:"DataDir"`
	GenesisFile   string    `toml:"GenesisFile"`
	Environment   string    `toml:"Environment"`
	Log           Log       `toml:"log"`
	Faucet        Faucet    `toml:"faucet"`
	Limits        Limits    `toml:"limits"`
	Telemetry     Telemetry `toml:"telemetry"`
}

// Limits throttles HTTP transaction submission per client address. It is off
// by default; claims themselves are only limited by the proof record.
type Limits struct {
	SubmitPerMinute float64 `toml:"SubmitPerMinute"`
	SubmitBurst     int     `toml:"SubmitBurst"`
}

type Log struct {
	Level      string `toml:"Level"`
	File       string `toml:"File"`
	MaxSizeMB  int    `toml:"MaxSizeMB"`
	MaxBackups int    `toml:"MaxBackups"`
}

// Faucet carries the program identities as base58 strings and the reward
// schedule in base units.
type Faucet struct {
	ProgramID          string `toml:"ProgramID"`
	CoreAssetProgram   string `toml:"CoreAssetProgram"`
	BubblegumProgram   string `toml:"BubblegumProgram"`
	CompressionProgram string `toml:"CompressionProgram"`
	LogWrapperProgram  string `toml:"LogWrapperProgram"`
	BaseReward         uint64 `toml:"BaseReward"`
	BubblegumReward    uint64 `toml:"BubblegumReward"`
	TreasuryBump       uint8  `toml:"TreasuryBump"`
}

type Telemetry struct {
	Endpoint string            `toml:"Endpoint"`
	Insecure bool              `toml:"Insecure"`
	Headers  map[string]string `toml:"Headers"`
	Metrics  bool              `toml:"Metrics"`
	Traces   bool              `toml:"Traces"`
}

// Default returns the configuration written when no file exists.
func Default() *Config {
	f := faucet.DefaultConfig()
	return &Config{
		ListenAddress: ":8090",
		DataDir:       "./faucet-data",
		GenesisFile:   "",
		Log:           Log{Level: "info"},
		Faucet: Faucet{
			ProgramID:          f.Programs.Faucet.String(),
			CoreAssetProgram:   f.Programs.CoreAsset.String(),
			BubblegumProgram:   f.Programs.Bubblegum.String(),
			CompressionProgram: f.Programs.Compression.String(),
			LogWrapperProgram:  f.Programs.LogWrapper.String(),
			BaseReward:         f.Rewards.Base,
			BubblegumReward:    f.Rewards.Bubblegum,
			TreasuryBump:       f.TreasuryBump,
		},
		Telemetry: Telemetry{Headers: map[string]string{}},
	}
}

// Load loads the configuration from the given path, writing the defaults
// there first when the file does not exist.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	cfg := Default()
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, err
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, key := range undecoded {
			keys[i] = key.String()
		}
		return nil, fmt.Errorf("config file %s has unknown keys: %s", path, strings.Join(keys, ", "))
	}
	if cfg.Telemetry.Headers == nil {
		cfg.Telemetry.Headers = map[string]string{}
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the listen address and the faucet section.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.ListenAddress) == "" {
		return fmt.Errorf("ListenAddress must be set")
	}
	if strings.TrimSpace(c.DataDir) == "" {
		return fmt.Errorf("DataDir must be set")
	}
	if c.Limits.SubmitPerMinute < 0 || c.Limits.SubmitBurst < 0 {
		return fmt.Errorf("limits must not be negative")
	}
	_, err := c.FaucetConfig()
	return err
}

// FaucetConfig converts the [faucet] section into the program configuration.
func (c *Config) FaucetConfig() (faucet.Config, error) {
	out := faucet.DefaultConfig()
	fields := []struct {
		name string
		raw  string
		dst  *crypto.Address
	}{
		{"faucet.ProgramID", c.Faucet.ProgramID, &out.Programs.Faucet},
		{"faucet.CoreAssetProgram", c.Faucet.CoreAssetProgram, &out.Programs.CoreAsset},
		{"faucet.BubblegumProgram", c.Faucet.BubblegumProgram, &out.Programs.Bubblegum},
		{"faucet.CompressionProgram", c.Faucet.CompressionProgram, &out.Programs.Compression},
		{"faucet.LogWrapperProgram", c.Faucet.LogWrapperProgram, &out.Programs.LogWrapper},
	}
	for _, f := range fields {
		raw := strings.TrimSpace(f.raw)
		if raw == "" {
			continue
		}
		addr, err := crypto.ParseAddress(raw)
		if err != nil {
			return faucet.Config{}, fmt.Errorf("invalid %s: %w", f.name, err)
		}
		*f.dst = addr
	}
	out.Rewards = faucet.Rewards{Base: c.Faucet.BaseReward, Bubblegum: c.Faucet.BubblegumReward}
	out.TreasuryBump = c.Faucet.TreasuryBump
	if err := out.Validate(); err != nil {
		return faucet.Config{}, err
	}
	return out, nil
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := Default()
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}
