package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"burnfaucet/core/events"
	"burnfaucet/core/state"
	"burnfaucet/core/types"
	"burnfaucet/crypto"
	"burnfaucet/observability"
)

var (
	ErrEmptyTransaction        = errors.New("runtime: transaction has no instructions")
	ErrInvalidSignature        = errors.New("runtime: invalid signature")
	ErrMissingSignature        = errors.New("runtime: missing required signature")
	ErrUnknownProgram          = errors.New("runtime: unknown program")
	ErrDuplicateProgram        = errors.New("runtime: program already registered")
	ErrMissingAccount          = errors.New("runtime: account not passed to instruction")
	ErrNotEnoughAccountKeys    = errors.New("runtime: not enough account keys")
	ErrPrivilegeEscalation     = errors.New("runtime: cross-program invocation escalates privilege")
	ErrReadonlyAccount         = errors.New("runtime: write to read-only account")
	ErrExternalAccountModified = errors.New("runtime: program modified an account it does not own")
	ErrExternalLamportSpend    = errors.New("runtime: program debited an account it does not own")
	ErrUnbalancedInstruction   = errors.New("runtime: instruction changed total lamports")
	ErrCallDepth               = errors.New("runtime: cross-program invocation too deep")
	ErrAlreadyExecuted         = errors.New("runtime: transaction already executed")
)

// InstructionError reports which top-level instruction aborted a transaction.
type InstructionError struct {
	Index int
	Err   error
}

func (e *InstructionError) Error() string {
	return fmt.Sprintf("instruction %d: %v", e.Index, e.Err)
}

func (e *InstructionError) Unwrap() error { return e.Err }

// Program processes instructions addressed to its id.
type Program interface {
	Process(ctx context.Context, inv *Invocation) error
}

// ProgramFunc adapts a function to the Program interface.
type ProgramFunc func(ctx context.Context, inv *Invocation) error

func (f ProgramFunc) Process(ctx context.Context, inv *Invocation) error { return f(ctx, inv) }

type registeredProgram struct {
	name    string
	program Program
}

// Receipt summarises an executed transaction. Logs are populated on failure
// too; Events and Root only on success.
type Receipt struct {
	ID     string        `json:"id"`
	Logs   []string      `json:"logs"`
	Events []types.Event `json:"events,omitempty"`
	Root   common.Hash   `json:"root"`
}

// Host executes transactions against the account state. Transactions are
// serialised: each one runs in its own journal and commits all of its writes
// or none of them.
type Host struct {
	mu       sync.Mutex
	state    *state.Manager
	programs map[crypto.Address]registeredProgram
	emitter  events.Emitter
	logger   *slog.Logger
	rent     state.Rent
	tracer   trace.Tracer
}

// NewHost creates a host over the supplied state.
func NewHost(st *state.Manager) *Host {
	return &Host{
		state:    st,
		programs: make(map[crypto.Address]registeredProgram),
		emitter:  events.NoopEmitter{},
		logger:   slog.Default(),
		rent:     state.DefaultRent(),
		tracer:   otel.Tracer("burnfaucet/core/runtime"),
	}
}

// SetEmitter configures the sink for committed events.
func (h *Host) SetEmitter(emitter events.Emitter) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if emitter == nil {
		h.emitter = events.NoopEmitter{}
		return
	}
	h.emitter = emitter
}

// SetLogger overrides the structured logger.
func (h *Host) SetLogger(logger *slog.Logger) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if logger == nil {
		logger = slog.Default()
	}
	h.logger = logger
}

// SetRent overrides the rent schedule.
func (h *Host) SetRent(rent state.Rent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.rent = rent
}

// Rent returns the active rent schedule.
func (h *Host) Rent() state.Rent { return h.rent }

// State exposes the committed state for reads.
func (h *Host) State() *state.Manager { return h.state }

// Register installs a program under id.
func (h *Host) Register(id crypto.Address, name string, program Program) error {
	if program == nil {
		return fmt.Errorf("runtime: nil program %s", name)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if existing, ok := h.programs[id]; ok {
		return fmt.Errorf("%w: %s already bound to %s", ErrDuplicateProgram, id, existing.name)
	}
	h.programs[id] = registeredProgram{name: name, program: program}
	return nil
}

// Execute verifies signatures and runs every instruction in one journal. On
// any failure the journal is discarded and the returned receipt carries the
// program log collected up to the failure.
func (h *Host) Execute(ctx context.Context, tx *Transaction) (*Receipt, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	start := time.Now()
	id := tx.ID()
	ctx, span := h.tracer.Start(ctx, "runtime.Execute", trace.WithAttributes(
		attribute.String("tx.id", id),
	))
	defer span.End()

	receipt, err := h.execute(ctx, tx, id)
	observability.Runtime().ObserveTransaction(time.Since(start), err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		h.logger.Warn("transaction aborted", "tx", id, "error", err)
		return receipt, err
	}
	h.logger.Debug("transaction committed", "tx", id, "events", len(receipt.Events), "root", receipt.Root.Hex())
	return receipt, nil
}

func (h *Host) execute(ctx context.Context, tx *Transaction, id string) (*Receipt, error) {
	receipt := &Receipt{ID: id}
	if err := tx.verifySignatures(); err != nil {
		return receipt, err
	}
	digest, err := tx.Digest()
	if err != nil {
		return receipt, err
	}
	done, err := h.state.Executed(digest)
	if err != nil {
		return receipt, err
	}
	if done {
		return receipt, fmt.Errorf("%w: %s", ErrAlreadyExecuted, id)
	}
	txn := h.state.Begin()
	for i, ix := range tx.Instructions {
		if err := h.run(ctx, txn, ix, 0); err != nil {
			receipt.Logs = txn.Logs()
			txn.Discard()
			return receipt, &InstructionError{Index: i, Err: err}
		}
	}
	receipt.Logs = txn.Logs()
	txn.MarkExecuted(digest)
	if err := txn.Commit(); err != nil {
		return receipt, err
	}
	receipt.Events = txn.Events()
	receipt.Root = h.state.PendingRoot()
	for _, evt := range receipt.Events {
		h.emitter.Emit(events.Committed{Evt: evt, Signature: id})
	}
	observability.Events().RecordCommitted(receipt.Events)
	return receipt, nil
}

// Flush persists the current state root.
func (h *Host) Flush() (common.Hash, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	root, err := h.state.Flush()
	if err != nil {
		return common.Hash{}, err
	}
	observability.Runtime().SetFlushHeight(h.state.Height())
	return root, nil
}

func (h *Host) run(ctx context.Context, txn *state.Txn, ix Instruction, depth int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	registered, ok := h.programs[ix.ProgramID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownProgram, ix.ProgramID)
	}
	before, err := lamportTotal(txn, ix.Accounts)
	if err != nil {
		return err
	}
	inv := &Invocation{
		host:    h,
		txn:     txn,
		program: ix.ProgramID,
		metas:   append([]AccountMeta(nil), ix.Accounts...),
		data:    append([]byte(nil), ix.Data...),
		depth:   depth,
	}
	observability.Runtime().RecordInstruction(registered.name)
	if err := registered.program.Process(ctx, inv); err != nil {
		return err
	}
	after, err := lamportTotal(txn, ix.Accounts)
	if err != nil {
		return err
	}
	if !before.Eq(after) {
		return fmt.Errorf("%w: %s before %s after %s", ErrUnbalancedInstruction, registered.name, before, after)
	}
	return nil
}

func lamportTotal(txn *state.Txn, metas []AccountMeta) (*uint256.Int, error) {
	total := new(uint256.Int)
	seen := make(map[crypto.Address]struct{}, len(metas))
	for _, m := range metas {
		if _, ok := seen[m.Address]; ok {
			continue
		}
		seen[m.Address] = struct{}{}
		acc, err := txn.Account(m.Address)
		if err != nil {
			return nil, err
		}
		total.Add(total, uint256.NewInt(acc.Lamports))
	}
	return total, nil
}
