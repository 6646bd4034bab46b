package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"burnfaucet/cmd/internal/passphrase"
	"burnfaucet/config"
	"burnfaucet/core/runtime"
	"burnfaucet/crypto"
	"burnfaucet/native/bubblegum"
	"burnfaucet/native/faucet"
	"burnfaucet/services/faucetd"
)

const (
	defaultEndpoint = "http://127.0.0.1:8090"
	defaultPassEnv  = "FAUCET_KEYSTORE_PASS"
	defaultKeystore = "actor.keystore"
)

func main() {
	if len(os.Args) < 2 {
		usage(os.Stderr)
		os.Exit(1)
	}
	if err := run(os.Args[1], os.Args[2:], os.Stdout); err != nil {
		if errors.Is(err, errUsage) {
			usage(os.Stderr)
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

var errUsage = errors.New("usage")

func run(cmd string, args []string, out io.Writer) error {
	switch cmd {
	case "keygen":
		return runKeygen(args, out)
	case "address":
		return runAddress(args, out)
	case "proof":
		return runProof(args, out)
	case "mint":
		return runMint(args, out)
	case "mint-compressed":
		return runMintCompressed(args, out)
	case "claim":
		return runClaim(args, out)
	case "burn-compressed":
		return runBurnCompressed(args, out)
	case "status":
		return runStatus(args, out)
	case "treasury":
		return runTreasury(args, out)
	case "account":
		return runAccount(args, out)
	case "events":
		return runEvents(args, out)
	}
	return errUsage
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "Usage: faucetctl <command> [flags]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  keygen           create an encrypted actor keystore")
	fmt.Fprintln(w, "  address          print the address held by a keystore")
	fmt.Fprintln(w, "  proof            derive the claim proof address for an actor")
	fmt.Fprintln(w, "  mint             mint a core asset qualifying for a challenge class")
	fmt.Fprintln(w, "  mint-compressed  mint a compressed asset and print its burn arguments")
	fmt.Fprintln(w, "  claim            burn a core asset for a challenge reward")
	fmt.Fprintln(w, "  burn-compressed  burn a compressed asset for the larger reward")
	fmt.Fprintln(w, "  status           show whether an actor has claimed a class")
	fmt.Fprintln(w, "  treasury         show the treasury address and balance")
	fmt.Fprintln(w, "  account          show an account verified against the state root")
	fmt.Fprintln(w, "  events           follow committed ledger events")
}

// common flags shared by commands that talk to faucetd or sign.
type common struct {
	endpoint   *string
	configPath *string
	keystore   *string
	passEnv    *string
	timeout    *time.Duration
}

func bindCommon(fs *flag.FlagSet, signing bool) *common {
	c := &common{
		endpoint:   fs.String("endpoint", defaultEndpoint, "faucetd base URL"),
		configPath: fs.String("config", "", "faucetd config file for program ids; defaults apply when empty"),
		timeout:    fs.Duration("timeout", 30*time.Second, "request timeout"),
	}
	if signing {
		c.keystore = fs.String("keystore", defaultKeystore, "actor keystore path")
		c.passEnv = fs.String("pass-env", defaultPassEnv, "environment variable holding the keystore passphrase")
	}
	return c
}

func (c *common) faucetConfig() (faucet.Config, error) {
	path := strings.TrimSpace(*c.configPath)
	if path == "" {
		return faucet.DefaultConfig(), nil
	}
	if _, err := os.Stat(path); err != nil {
		return faucet.Config{}, err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return faucet.Config{}, err
	}
	return cfg.FaucetConfig()
}

func (c *common) client() (*faucetd.Client, error) {
	return faucetd.NewClient(*c.endpoint, nil)
}

func (c *common) key() (*crypto.PrivateKey, error) {
	pass, err := passphrase.NewSource(*c.passEnv, "Keystore passphrase: ").Get()
	if err != nil {
		return nil, err
	}
	return crypto.LoadFromKeystore(*c.keystore, pass)
}

func (c *common) context() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), *c.timeout)
}

func runKeygen(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("keygen", flag.ContinueOnError)
	path := fs.String("out", defaultKeystore, "output keystore path")
	passEnv := fs.String("pass-env", defaultPassEnv, "environment variable holding the keystore passphrase")
	force := fs.Bool("force", false, "overwrite an existing keystore")
	light := fs.Bool("light", false, "use light scrypt parameters")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if _, err := os.Stat(*path); err == nil && !*force {
		return fmt.Errorf("%s already exists; pass -force to overwrite", *path)
	}
	pass, err := passphrase.NewSource(*passEnv, "New keystore passphrase: ").Get()
	if err != nil {
		return err
	}
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return err
	}
	n, p := crypto.StandardScryptN, crypto.StandardScryptP
	if *light {
		n, p = crypto.LightScryptN, crypto.LightScryptP
	}
	if err := crypto.SaveToKeystoreWithParams(*path, key, pass, n, p); err != nil {
		return err
	}
	fmt.Fprintln(out, key.Address().String())
	return nil
}

func runAddress(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("address", flag.ContinueOnError)
	c := bindCommon(fs, true)
	asBech32 := fs.Bool("bech32", false, "print the "+string(crypto.FaucetPrefix)+"1... form instead of base58")
	if err := fs.Parse(args); err != nil {
		return err
	}
	key, err := c.key()
	if err != nil {
		return err
	}
	if *asBech32 {
		fmt.Fprintln(out, key.Address().Bech32(crypto.FaucetPrefix))
		return nil
	}
	fmt.Fprintln(out, key.Address().String())
	return nil
}

func runProof(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("proof", flag.ContinueOnError)
	c := bindCommon(fs, false)
	class := fs.Uint("class", 0, "challenge class (0-4)")
	actor := fs.String("actor", "", "actor address")
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
	addr, err := crypto.ParseAddress(strings.TrimSpace(*actor))
	if err != nil {
		return fmt.Errorf("actor: %w", err)
	}
	proof, bump, err := faucet.ProofAddress(cfg.Programs.Faucet, cls, addr)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%s %d\n", proof, bump)
	return nil
}

func runClaim(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("claim", flag.ContinueOnError)
	c := bindCommon(fs, true)
	class := fs.Uint("class", 0, "challenge class (0-4)")
	asset := fs.String("asset", "", "core asset to burn")
	collection := fs.String("collection", "", "collection the asset belongs to, if any")
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
	assetAddr, err := crypto.ParseAddress(strings.TrimSpace(*asset))
	if err != nil {
		return fmt.Errorf("asset: %w", err)
	}
	collectionAddr, err := optionalAddress(*collection)
	if err != nil {
		return fmt.Errorf("collection: %w", err)
	}
	key, err := c.key()
	if err != nil {
		return err
	}
	ix, err := cfg.Challenge(cls, faucet.CoreAccounts{Asset: assetAddr, Collection: collectionAddr, Actor: key.Address()})
	if err != nil {
		return err
	}
	return c.submit(out, ix, key)
}

func runBurnCompressed(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("burn-compressed", flag.ContinueOnError)
	c := bindCommon(fs, true)
	tree := fs.String("tree", "", "merkle tree address")
	root := fs.String("root", "", "hex tree root the proof was taken against")
	dataHash := fs.String("data-hash", "", "hex metadata hash of the leaf")
	creatorHash := fs.String("creator-hash", "", "hex creator hash of the leaf")
	nonce := fs.Uint64("nonce", 0, "leaf nonce")
	index := fs.Uint("index", 0, "leaf index")
	delegate := fs.String("delegate", "", "leaf delegate, defaults to the owner")
	collection := fs.String("collection", "", "core collection of the leaf, if any")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := c.faucetConfig()
	if err != nil {
		return err
	}
	treeAddr, err := crypto.ParseAddress(strings.TrimSpace(*tree))
	if err != nil {
		return fmt.Errorf("tree: %w", err)
	}
	var burn faucet.BurnArgs
	for _, field := range []struct {
		name string
		raw  string
		dst  *[32]byte
	}{
		{"root", *root, &burn.Root},
		{"data-hash", *dataHash, &burn.DataHash},
		{"creator-hash", *creatorHash, &burn.CreatorHash},
	} {
		if *field.dst, err = parseHash(field.raw); err != nil {
			return fmt.Errorf("%s: %w", field.name, err)
		}
	}
	if *index > uint(^uint32(0)) {
		return fmt.Errorf("index %d out of range", *index)
	}
	burn.Nonce = *nonce
	burn.Index = uint32(*index)

	accs := faucet.BubblegumAccounts{MerkleTree: treeAddr}
	if accs.TreeConfig, _, err = bubblegum.TreeConfigAddress(cfg.Programs.Bubblegum, treeAddr); err != nil {
		return err
	}
	if accs.LeafDelegate, err = optionalAddress(*delegate); err != nil {
		return fmt.Errorf("delegate: %w", err)
	}
	if accs.Collection, err = optionalAddress(*collection); err != nil {
		return fmt.Errorf("collection: %w", err)
	}
	if accs.Collection != nil {
		core := cfg.Programs.CoreAsset
		accs.CoreProgram = &core
	}
	key, err := c.key()
	if err != nil {
		return err
	}
	accs.LeafOwner = key.Address()
	ix, err := cfg.BurnBubblegum(accs, burn)
	if err != nil {
		return err
	}
	return c.submit(out, ix, key)
}

func (c *common) submit(out io.Writer, ix runtime.Instruction, key *crypto.PrivateKey) error {
	receipt, err := c.send(out, []runtime.Instruction{ix}, key)
	if err != nil {
		return err
	}
	return printJSON(out, receipt)
}

// send signs instructions as one transaction and submits it. Program logs of
// a rejected transaction are written to out.
func (c *common) send(out io.Writer, ixs []runtime.Instruction, keys ...*crypto.PrivateKey) (*runtime.Receipt, error) {
	tx := runtime.NewTransaction(ixs...)
	if err := tx.Sign(keys...); err != nil {
		return nil, err
	}
	client, err := c.client()
	if err != nil {
		return nil, err
	}
	ctx, cancel := c.context()
	defer cancel()
	receipt, err := client.Submit(ctx, tx)
	if err != nil {
		var remote *faucetd.RemoteError
		if errors.As(err, &remote) {
			for _, line := range remote.Logs {
				fmt.Fprintf(out, "log: %s\n", line)
			}
		}
		if code, ok := faucet.Code(err); ok {
			return nil, fmt.Errorf("faucet error %d: %w", code, err)
		}
		return nil, err
	}
	return receipt, nil
}

func runStatus(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	c := bindCommon(fs, false)
	class := fs.Uint("class", 0, "challenge class (0-4)")
	actor := fs.String("actor", "", "actor address")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cls, err := coreClass(*class)
	if err != nil {
		return err
	}
	addr, err := crypto.ParseAddress(strings.TrimSpace(*actor))
	if err != nil {
		return fmt.Errorf("actor: %w", err)
	}
	client, err := c.client()
	if err != nil {
		return err
	}
	ctx, cancel := c.context()
	defer cancel()
	status, err := client.ClaimStatus(ctx, cls, addr)
	if err != nil {
		return err
	}
	return printJSON(out, status)
}

func runTreasury(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("treasury", flag.ContinueOnError)
	c := bindCommon(fs, false)
	if err := fs.Parse(args); err != nil {
		return err
	}
	client, err := c.client()
	if err != nil {
		return err
	}
	ctx, cancel := c.context()
	defer cancel()
	treasury, err := client.Treasury(ctx)
	if err != nil {
		return err
	}
	return printJSON(out, treasury)
}

func runAccount(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("account", flag.ContinueOnError)
	c := bindCommon(fs, false)
	address := fs.String("address", "", "account address")
	if err := fs.Parse(args); err != nil {
		return err
	}
	addr, err := crypto.ParseAddress(strings.TrimSpace(*address))
	if err != nil {
		return fmt.Errorf("address: %w", err)
	}
	client, err := c.client()
	if err != nil {
		return err
	}
	ctx, cancel := c.context()
	defer cancel()
	proof, acc, err := client.AccountProof(ctx, addr)
	if err != nil {
		return err
	}
	return printJSON(out, struct {
		Root    string         `json:"root"`
		Address crypto.Address `json:"address"`
		Exists  bool           `json:"exists"`
		Account any            `json:"account"`
	}{proof.Root.Hex(), addr, acc.Exists(), acc})
}

func coreClass(raw uint) (faucet.ClaimClass, error) {
	cls := faucet.ClaimClass(raw)
	if raw > 255 || !cls.Valid() || cls.Compressed() {
		return 0, fmt.Errorf("class %d is not a challenge class", raw)
	}
	return cls, nil
}

func optionalAddress(raw string) (*crypto.Address, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	addr, err := crypto.ParseAddress(raw)
	if err != nil {
		return nil, err
	}
	return &addr, nil
}

func parseHash(raw string) ([32]byte, error) {
	var out [32]byte
	decoded, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(raw), "0x"))
	if err != nil {
		return out, err
	}
	if len(decoded) != len(out) {
		return out, fmt.Errorf("want %d bytes, got %d", len(out), len(decoded))
	}
	copy(out[:], decoded)
	return out, nil
}

func printJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
