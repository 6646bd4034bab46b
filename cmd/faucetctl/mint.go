package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"

	"burnfaucet/core/runtime"
	"burnfaucet/crypto"
	"burnfaucet/native/bubblegum"
	"burnfaucet/native/compression"
	"burnfaucet/native/coreasset"
	"burnfaucet/native/faucet"
	"burnfaucet/services/faucetd"
)

// solvedMarker is written into data sections and attributes of minted
// challenge assets.
const solvedMarker = "solved"

type mintResult struct {
	Tx         string          `json:"tx"`
	Class      uint8           `json:"class"`
	Capability string          `json:"capability"`
	Asset      crypto.Address  `json:"asset"`
	Collection *crypto.Address `json:"collection,omitempty"`
}

// runMint mints a core asset carrying the capability a challenge class
// requires. The keystore key pays and keeps update authority; the asset goes
// to -owner, or to the keystore address when -owner is empty.
func runMint(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("mint", flag.ContinueOnError)
	c := bindCommon(fs, true)
	class := fs.Uint("class", 0, "challenge class (0-4)")
	owner := fs.String("owner", "", "owner of the new asset, defaults to the keystore address")
	name := fs.String("name", "", "asset name, defaults to the capability name")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := c.faucetConfig()
	if err != nil {
		return err
	}
	cls, err := coreClass(*class)
	if err != nil {
		return err
	}
	ownerAddr, err := optionalAddress(*owner)
	if err != nil {
		return fmt.Errorf("owner: %w", err)
	}
	key, err := c.key()
	if err != nil {
		return err
	}
	if ownerAddr == nil {
		self := key.Address()
		ownerAddr = &self
	}
	asset, err := crypto.GeneratePrivateKey()
	if err != nil {
		return err
	}
	label := strings.TrimSpace(*name)
	if label == "" {
		label = cls.Capability().String()
	}

	plan, err := mintPlan(cfg.Programs.CoreAsset, cls, key.Address(), *ownerAddr, asset.Address(), label)
	if err != nil {
		return err
	}
	receipt, err := c.send(out, plan.instructions, append([]*crypto.PrivateKey{key, asset}, plan.signers...)...)
	if err != nil {
		return err
	}
	return printJSON(out, mintResult{
		Tx:         receipt.ID,
		Class:      uint8(cls),
		Capability: cls.Capability().String(),
		Asset:      asset.Address(),
		Collection: plan.collection,
	})
}

type corePlan struct {
	instructions []runtime.Instruction
	signers      []*crypto.PrivateKey
	collection   *crypto.Address
}

// mintPlan builds one transaction minting asset with the marker for class.
// The linked app data class also creates the collection declaring the
// adapter and writes the asset's data section.
func mintPlan(program crypto.Address, class faucet.ClaimClass, minter, owner, asset crypto.Address, name string) (*corePlan, error) {
	authority := coreasset.PluginAuthority{Kind: coreasset.AuthorityUpdateAuthority}
	accs := coreasset.CreateAccounts{Asset: asset, Payer: minter, Owner: owner}
	args := coreasset.CreateArgs{Name: name}
	plan := &corePlan{}

	switch class.Capability() {
	case faucet.CapabilityNone:
	case faucet.CapabilityAttributes:
		args.Plugins = []coreasset.PluginRecord{
			coreasset.NewAttributesPlugin(coreasset.Attribute{Key: solvedMarker, Value: "true"}),
		}
	case faucet.CapabilityEdition:
		args.Plugins = []coreasset.PluginRecord{coreasset.NewEditionPlugin(1)}
	case faucet.CapabilityAppData:
		args.Adapters = []coreasset.AdapterRecord{{Key: coreasset.AppDataKey(authority)}}
	case faucet.CapabilityLinkedAppData:
		col, err := crypto.GeneratePrivateKey()
		if err != nil {
			return nil, err
		}
		colAddr := col.Address()
		plan.signers = append(plan.signers, col)
		plan.collection = &colAddr
		plan.instructions = append(plan.instructions, coreasset.CreateCollection(program, colAddr, minter, minter, coreasset.CreateCollectionArgs{
			Name:     name + " collection",
			Adapters: []coreasset.AdapterRecord{{Key: coreasset.LinkedAppDataKey(authority)}},
		}))
		accs.Collection = &colAddr
		accs.Authority = &minter
	default:
		return nil, fmt.Errorf("class %d has no mintable capability", class)
	}

	plan.instructions = append(plan.instructions, coreasset.Create(program, accs, args))
	if plan.collection != nil {
		plan.instructions = append(plan.instructions, coreasset.WriteData(program, asset, plan.collection, minter, coreasset.WriteDataArgs{
			Key:  coreasset.DataSectionKey(authority),
			Data: []byte(solvedMarker),
		}))
	}
	return plan, nil
}

// compressedMint holds the flags burn-compressed needs for the new leaf.
type compressedMint struct {
	Tx          string         `json:"tx"`
	Tree        crypto.Address `json:"tree"`
	Root        string         `json:"root"`
	DataHash    string         `json:"dataHash"`
	CreatorHash string         `json:"creatorHash"`
	Nonce       uint64         `json:"nonce"`
	Index       uint32         `json:"index"`
}

// runMintCompressed mints a compressed asset into -tree, creating a new tree
// first when -tree is empty, and prints the burn arguments for the leaf.
func runMintCompressed(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("mint-compressed", flag.ContinueOnError)
	c := bindCommon(fs, true)
	tree := fs.String("tree", "", "existing tree to mint into; a new tree is created when empty")
	depth := fs.Uint("depth", 14, "max depth of a new tree")
	buffer := fs.Uint("buffer", 64, "max buffer size of a new tree")
	owner := fs.String("owner", "", "leaf owner, defaults to the keystore address")
	delegate := fs.String("delegate", "", "leaf delegate, defaults to the owner")
	name := fs.String("name", "cNFT", "asset name")
	symbol := fs.String("symbol", "", "asset symbol")
	uri := fs.String("uri", "", "metadata uri")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := c.faucetConfig()
	if err != nil {
		return err
	}
	ownerAddr, err := optionalAddress(*owner)
	if err != nil {
		return fmt.Errorf("owner: %w", err)
	}
	delegateAddr, err := optionalAddress(*delegate)
	if err != nil {
		return fmt.Errorf("delegate: %w", err)
	}
	key, err := c.key()
	if err != nil {
		return err
	}
	if ownerAddr == nil {
		self := key.Address()
		ownerAddr = &self
	}
	ids := bubblegum.Programs{
		Bubblegum:   cfg.Programs.Bubblegum,
		Compression: cfg.Programs.Compression,
		LogWrapper:  cfg.Programs.LogWrapper,
	}

	var ixs []runtime.Instruction
	var treeAddr crypto.Address
	signers := []*crypto.PrivateKey{key}
	if existing, err := optionalAddress(*tree); err != nil {
		return fmt.Errorf("tree: %w", err)
	} else if existing != nil {
		treeAddr = *existing
	} else {
		if *depth > compression.MaxDepth || *buffer > compression.MaxBufferSize {
			return fmt.Errorf("tree depth must be at most %d and buffer at most %d", compression.MaxDepth, compression.MaxBufferSize)
		}
		treeKey, err := crypto.GeneratePrivateKey()
		if err != nil {
			return err
		}
		treeAddr = treeKey.Address()
		signers = append(signers, treeKey)
		create, err := ids.CreateTree(treeAddr, key.Address(), key.Address(), bubblegum.CreateTreeArgs{
			MaxDepth:      uint32(*depth),
			MaxBufferSize: uint32(*buffer),
		})
		if err != nil {
			return err
		}
		ixs = append(ixs, create)
	}

	meta := bubblegum.MetadataArgs{Name: *name, Symbol: *symbol, URI: *uri}
	mint, err := ids.MintV2(treeAddr, *ownerAddr, delegateAddr, key.Address(), key.Address(), meta)
	if err != nil {
		return err
	}
	ixs = append(ixs, mint)
	receipt, err := c.send(out, ixs, signers...)
	if err != nil {
		return err
	}

	client, err := c.client()
	if err != nil {
		return err
	}
	ctx, cancel := c.context()
	defer cancel()
	leaf, err := mintedLeaf(ctx, client, ids.Bubblegum, treeAddr)
	if err != nil {
		return err
	}
	dataHash, err := bubblegum.HashMetadata(&meta)
	if err != nil {
		return err
	}
	creatorHash := bubblegum.HashCreators(meta.Creators)
	leaf.Tx = receipt.ID
	leaf.DataHash = hex.EncodeToString(dataHash[:])
	leaf.CreatorHash = hex.EncodeToString(creatorHash[:])
	return printJSON(out, leaf)
}

// mintedLeaf reads the tree after a mint and locates the newest leaf. The
// nonce of a leaf is the mint counter before it was minted.
func mintedLeaf(ctx context.Context, client *faucetd.Client, program, treeAddr crypto.Address) (*compressedMint, error) {
	configAddr, _, err := bubblegum.TreeConfigAddress(program, treeAddr)
	if err != nil {
		return nil, err
	}
	configAcc, err := client.Account(ctx, configAddr)
	if err != nil {
		return nil, err
	}
	if !configAcc.Exists {
		return nil, fmt.Errorf("tree config %s not found", configAddr)
	}
	treeCfg, err := bubblegum.DecodeTreeConfig(configAcc.Data)
	if err != nil {
		return nil, err
	}
	if treeCfg.NumMinted == 0 {
		return nil, errors.New("tree has no minted leaves")
	}
	treeAcc, err := client.Account(ctx, treeAddr)
	if err != nil {
		return nil, err
	}
	if !treeAcc.Exists {
		return nil, fmt.Errorf("tree %s not found", treeAddr)
	}
	state, err := compression.DecodeTree(treeAcc.Data)
	if err != nil {
		return nil, err
	}
	root := state.Root()
	nonce := treeCfg.NumMinted - 1
	return &compressedMint{
		Tree:  treeAddr,
		Root:  hex.EncodeToString(root[:]),
		Nonce: nonce,
		Index: uint32(nonce),
	}, nil
}

// runEvents prints committed events as JSON lines until interrupted.
func runEvents(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("events", flag.ContinueOnError)
	c := bindCommon(fs, false)
	cursor := fs.String("cursor", "", "resume after this cursor; 0 replays every retained event")
	limit := fs.Uint("limit", 0, "stop after this many events; 0 follows until interrupted")
	if err := fs.Parse(args); err != nil {
		return err
	}
	client, err := c.client()
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	enc := json.NewEncoder(out)
	seen := uint(0)
	err = client.StreamEvents(ctx, strings.TrimSpace(*cursor), func(msg faucetd.EventMessage) error {
		if err := enc.Encode(msg); err != nil {
			return err
		}
		seen++
		if *limit > 0 && seen >= *limit {
			cancel()
		}
		return nil
	})
	if ctx.Err() != nil {
		return nil
	}
	return err
}
