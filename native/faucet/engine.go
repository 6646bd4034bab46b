package faucet

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"burnfaucet/core/events"
	"burnfaucet/core/runtime"
	"burnfaucet/core/state"
	"burnfaucet/crypto"
	"burnfaucet/native/bubblegum"
	"burnfaucet/native/coreasset"
	"burnfaucet/native/system"
	"burnfaucet/observability/metrics"
)

// Engine is the faucet program. Each request burns one asset through the
// registry that owns it, pays the class reward from the treasury and, for
// core classes, allocates the claim record that blocks a second payout.
type Engine struct {
	cfg      Config
	treasury Treasury
	logger   *slog.Logger
	tracer   trace.Tracer
	metrics  *metrics.FaucetMetrics
}

// NewEngine validates cfg and returns the program.
func NewEngine(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	treasury, err := cfg.Treasury()
	if err != nil {
		return nil, err
	}
	m := metrics.Faucet()
	for _, class := range append(append([]ClaimClass(nil), CoreClasses...), ClassBubblegumBurn) {
		m.InitClass(class.String())
	}
	return &Engine{
		cfg:      cfg,
		treasury: treasury,
		logger:   slog.Default(),
		tracer:   otel.Tracer("burnfaucet/native/faucet"),
		metrics:  m,
	}, nil
}

// SetLogger overrides the structured logger.
func (e *Engine) SetLogger(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	e.logger = logger
}

func (e *Engine) Config() Config { return e.cfg }

func (e *Engine) ID() crypto.Address { return e.cfg.Programs.Faucet }

func (e *Engine) Treasury() Treasury { return e.treasury }

// ClaimStatus reports the claim record of (class, actor) in view.
func (e *Engine) ClaimStatus(view state.Reader, class ClaimClass, actor crypto.Address) (ClaimStatus, error) {
	return LookupClaim(view, e.cfg.Programs.Faucet, class, actor)
}

// TreasuryBalance reads the treasury balance from view.
func (e *Engine) TreasuryBalance(view state.Reader) (uint64, error) {
	return e.treasury.Balance(view)
}

// Process implements runtime.Program.
func (e *Engine) Process(ctx context.Context, inv *runtime.Invocation) (err error) {
	req, err := DecodeRequest(inv.Data())
	if err != nil {
		e.metrics.ObserveRejection(codeOf(err))
		return err
	}
	ctx, span := e.tracer.Start(ctx, "faucet.Process", trace.WithAttributes(
		attribute.String("faucet.class", req.Class.String()),
	))
	defer func() {
		outcome := "rewarded"
		if err != nil {
			outcome = "aborted"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			e.metrics.ObserveRejection(codeOf(err))
			e.logger.Warn("faucet request aborted", "class", req.Class.String(), "error", err)
		}
		span.SetAttributes(attribute.String("faucet.outcome", outcome))
		span.End()
	}()

	inv.Log("Instruction: %s", req.Class)
	if req.Class.Compressed() {
		return e.burnCompressed(ctx, inv, req.Burn)
	}
	return e.challenge(ctx, inv, req.Class)
}

func codeOf(err error) int {
	code, _ := Code(err)
	return code
}

func addresses(inv *runtime.Invocation, n int) ([]crypto.Address, error) {
	metas := inv.Accounts()
	if len(metas) < n {
		return nil, fmt.Errorf("%w: want %d, got %d", ErrNotEnoughAccountKeys, n, len(metas))
	}
	out := make([]crypto.Address, n)
	for i := range out {
		out[i] = metas[i].Address
	}
	return out, nil
}

// present returns addr unless it is the absent-account placeholder.
func (e *Engine) present(addr crypto.Address) *crypto.Address {
	if addr == e.cfg.Programs.Faucet {
		return nil
	}
	return &addr
}

func (e *Engine) checkTreasury(addr crypto.Address) error {
	if addr != e.treasury.Address {
		return fmt.Errorf("%w: got %s want %s", ErrInvalidTreasuryPda, addr, e.treasury.Address)
	}
	return nil
}

func (e *Engine) checkSystem(addr crypto.Address) error {
	if addr != e.cfg.Programs.System {
		return fmt.Errorf("%w: %s", ErrInvalidSystemProgram, addr)
	}
	return nil
}

func (e *Engine) challenge(ctx context.Context, inv *runtime.Invocation, class ClaimClass) error {
	addrs, err := addresses(inv, coreAccountCount)
	if err != nil {
		return err
	}
	asset, actor, proof := addrs[coreAsset], addrs[coreActor], addrs[coreProof]
	collection := e.present(addrs[coreCollection])
	if !inv.IsSigner(actor) {
		return fmt.Errorf("%w: %s", ErrMissingSignature, actor)
	}
	proofSeeds := ProofSeeds(class, actor)
	proofBump, err := assertDerivation(e.cfg.Programs.Faucet, proof, proofSeeds)
	if err != nil {
		return err
	}
	if err := e.checkTreasury(addrs[coreTreasury]); err != nil {
		return err
	}
	if addrs[coreProgram] != e.cfg.Programs.CoreAsset {
		return fmt.Errorf("%w: %s", ErrInvalidMplCoreProgram, addrs[coreProgram])
	}
	if err := e.checkSystem(addrs[coreSystem]); err != nil {
		return err
	}

	record, err := inv.Load(proof)
	if err != nil {
		return err
	}
	if claimed(record, e.cfg.Programs.Faucet) {
		return fmt.Errorf("%w: %s by %s at %s", ErrClaimAlreadyRecorded, class, actor, proof)
	}

	reward := e.cfg.Rewards.Reward(class)
	if _, err := e.treasury.Sufficient(inv, reward); err != nil {
		return err
	}
	e.logger.Debug("faucet checks passed", "class", class.String(), "actor", actor.String(), "reward", reward)

	assetAcc, err := inv.Load(asset)
	if err != nil {
		return err
	}
	if err := CheckCapability(assetAcc.Data, class.Capability()); err != nil {
		return err
	}

	if err := inv.Invoke(ctx, coreasset.Burn(e.cfg.Programs.CoreAsset, coreasset.BurnAccounts{
		Asset:      asset,
		Collection: collection,
		Payer:      actor,
		Authority:  &actor,
	})); err != nil {
		return err
	}
	if err := e.treasury.Pay(ctx, inv, actor, reward); err != nil {
		return err
	}
	if err := e.recordClaim(ctx, inv, actor, proof, withBump(proofSeeds, proofBump)); err != nil {
		return err
	}

	inv.Log("Burned Core asset and rewarded %d lamports", reward)
	e.paid(inv, class, actor, reward)
	inv.Emit(events.FaucetClaimRecorded{Class: class.String(), Actor: actor, Proof: proof})
	return nil
}

// recordClaim allocates the claim record. Allocation of an address that is
// already in use fails in the ledger service, so a record is never written
// twice.
func (e *Engine) recordClaim(ctx context.Context, inv *runtime.Invocation, actor, proof crypto.Address, seeds [][]byte) error {
	if err := system.CreateOrAllocate(ctx, inv, actor, proof, claimRecordSize, e.cfg.Programs.Faucet, seeds); err != nil {
		return err
	}
	acc, err := inv.Load(proof)
	if err != nil {
		return err
	}
	acc.Data = EncodeClaimRecord(ClaimRecord{Solved: true})
	if err := inv.Store(proof, acc); err != nil {
		return fmt.Errorf("%w: %v", ErrSerialization, err)
	}
	return nil
}

func (e *Engine) burnCompressed(ctx context.Context, inv *runtime.Invocation, args BurnArgs) error {
	addrs, err := addresses(inv, cmpAccountCount)
	if err != nil {
		return err
	}
	owner := addrs[cmpLeafOwner]
	if !inv.IsSigner(owner) {
		return fmt.Errorf("%w: %s", ErrMissingSignature, owner)
	}
	if err := e.checkTreasury(addrs[cmpTreasury]); err != nil {
		return err
	}
	if addrs[cmpBubblegum] != e.cfg.Programs.Bubblegum {
		return fmt.Errorf("%w: %s", ErrInvalidBubblegumProgram, addrs[cmpBubblegum])
	}
	if core := e.present(addrs[cmpCoreProgram]); core != nil && *core != e.cfg.Programs.CoreAsset {
		return fmt.Errorf("%w: %s", ErrInvalidMplCoreProgram, *core)
	}
	if err := e.checkSystem(addrs[cmpSystem]); err != nil {
		return err
	}

	reward := e.cfg.Rewards.Reward(ClassBubblegumBurn)
	if _, err := e.treasury.Sufficient(inv, reward); err != nil {
		return err
	}

	// Identities of the compression service and log wrapper are checked by
	// the registry.
	ids := bubblegum.Programs{
		Bubblegum:   e.cfg.Programs.Bubblegum,
		Compression: addrs[cmpCompression],
		LogWrapper:  addrs[cmpLogWrapper],
	}
	if err := inv.Invoke(ctx, ids.BurnV2(bubblegum.BurnAccounts{
		TreeConfig:     addrs[cmpTreeConfig],
		Payer:          owner,
		LeafOwner:      owner,
		LeafDelegate:   e.present(addrs[cmpLeafDelegate]),
		MerkleTree:     addrs[cmpMerkleTree],
		CoreCollection: e.present(addrs[cmpCollection]),
	}, bubblegum.BurnV2Args{
		Root:        args.Root,
		DataHash:    args.DataHash,
		CreatorHash: args.CreatorHash,
		Nonce:       args.Nonce,
		Index:       args.Index,
	})); err != nil {
		return err
	}
	if err := e.treasury.Pay(ctx, inv, owner, reward); err != nil {
		return err
	}

	inv.Log("Burned Bubblegum V2 cNFT and rewarded %d lamports", reward)
	e.paid(inv, ClassBubblegumBurn, owner, reward)
	return nil
}

func (e *Engine) paid(inv *runtime.Invocation, class ClaimClass, actor crypto.Address, reward uint64) {
	inv.Emit(events.FaucetRewardPaid{Class: class.String(), Actor: actor, Treasury: e.treasury.Address, Amount: reward})
	e.metrics.ObserveReward(class.String(), reward)
	if acc, err := inv.Load(e.treasury.Address); err == nil {
		e.metrics.SetTreasuryBalance(acc.Lamports)
	}
	e.logger.Info("faucet reward paid", "class", class.String(), "actor", actor.String(), "amount", reward)
}
