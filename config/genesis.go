package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"burnfaucet/crypto"
)

// Genesis seeds a fresh ledger. The treasury is funded here and nowhere else.
type Genesis struct {
	// Treasury is the opening treasury balance in base units.
	Treasury uint64           `yaml:"treasury"`
	Accounts []GenesisAccount `yaml:"accounts"`
}

type GenesisAccount struct {
	Address  string `yaml:"address"`
	Lamports uint64 `yaml:"lamports"`
}

// Allocation is a parsed genesis balance.
type Allocation struct {
	Address  crypto.Address
	Lamports uint64
}

// LoadGenesis reads and validates a YAML genesis file.
func LoadGenesis(path string) (*Genesis, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var g Genesis
	dec := yaml.NewDecoder(strings.NewReader(string(raw)))
	dec.KnownFields(true)
	if err := dec.Decode(&g); err != nil {
		return nil, fmt.Errorf("parse genesis %s: %w", path, err)
	}
	if _, err := g.Allocations(); err != nil {
		return nil, fmt.Errorf("genesis %s: %w", path, err)
	}
	return &g, nil
}

// Allocations parses the account list. Duplicate addresses are rejected.
func (g *Genesis) Allocations() ([]Allocation, error) {
	out := make([]Allocation, 0, len(g.Accounts))
	seen := make(map[crypto.Address]struct{}, len(g.Accounts))
	for i, acc := range g.Accounts {
		addr, err := crypto.ParseAddress(strings.TrimSpace(acc.Address))
		if err != nil {
			return nil, fmt.Errorf("accounts[%d]: %w", i, err)
		}
		if _, dup := seen[addr]; dup {
			return nil, fmt.Errorf("accounts[%d]: duplicate address %s", i, addr)
		}
		seen[addr] = struct{}{}
		out = append(out, Allocation{Address: addr, Lamports: acc.Lamports})
	}
	return out, nil
}
