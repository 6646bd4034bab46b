package faucetd

import (
	"context"
	"fmt"
	"log/slog"

	"burnfaucet/config"
	"burnfaucet/core/events"
	"burnfaucet/core/runtime"
	"burnfaucet/core/state"
	"burnfaucet/core/types"
	"burnfaucet/native/bubblegum"
	"burnfaucet/native/compression"
	"burnfaucet/native/coreasset"
	"burnfaucet/native/faucet"
	"burnfaucet/native/system"
	"burnfaucet/storage"
)

// Node owns the ledger state and the programs registered on it.
type Node struct {
	host   *runtime.Host
	engine *faucet.Engine
	stream *eventStream
	logger *slog.Logger
}

// NewNode opens the state flushed to store and registers the faucet together
// with the services it calls. genesis is applied only to a store that has
// never been flushed.
func NewNode(store storage.Database, cfg faucet.Config, genesis *config.Genesis, logger *slog.Logger) (*Node, error) {
	if logger == nil {
		logger = slog.Default()
	}
	st, err := state.Open(store)
	if err != nil {
		return nil, err
	}
	engine, err := faucet.NewEngine(cfg)
	if err != nil {
		return nil, err
	}
	engine.SetLogger(logger.With("component", "faucet"))

	host := runtime.NewHost(st)
	host.SetLogger(logger.With("component", "runtime"))
	stream := newEventStream()
	host.SetEmitter(fanout{logEmitter{logger: logger.With("component", "events")}, stream})
	ids := cfg.Programs
	programs := []struct {
		id      [32]byte
		name    string
		program runtime.Program
	}{
		{ids.System, "system", system.New()},
		{ids.CoreAsset, "coreasset", coreasset.New(ids.CoreAsset)},
		{ids.Compression, "compression", compression.New(ids.Compression, ids.LogWrapper)},
		{ids.LogWrapper, "noop", compression.LogWrapper{}},
		{ids.Bubblegum, "bubblegum", bubblegum.New(bubblegum.Programs{
			Bubblegum:   ids.Bubblegum,
			Compression: ids.Compression,
			LogWrapper:  ids.LogWrapper,
		})},
		{ids.Faucet, "faucet", engine},
	}
	for _, p := range programs {
		if err := host.Register(p.id, p.name, p.program); err != nil {
			return nil, err
		}
	}

	n := &Node{host: host, engine: engine, stream: stream, logger: logger}
	if genesis != nil && st.Height() == 0 {
		if err := n.applyGenesis(genesis); err != nil {
			return nil, fmt.Errorf("apply genesis: %w", err)
		}
	}
	return n, nil
}

func (n *Node) applyGenesis(g *config.Genesis) error {
	allocs, err := g.Allocations()
	if err != nil {
		return err
	}
	treasury := n.engine.Treasury().Address
	txn := n.host.State().Begin()
	for _, alloc := range allocs {
		if alloc.Address == treasury {
			txn.Discard()
			return fmt.Errorf("treasury %s is funded through the treasury field", treasury)
		}
		if err := txn.SetAccount(alloc.Address, &types.Account{Lamports: alloc.Lamports}); err != nil {
			txn.Discard()
			return err
		}
	}
	if err := txn.SetAccount(treasury, &types.Account{Lamports: g.Treasury}); err != nil {
		txn.Discard()
		return err
	}
	if err := txn.Commit(); err != nil {
		return err
	}
	root, err := n.host.Flush()
	if err != nil {
		return err
	}
	n.logger.Info("genesis applied", "accounts", len(allocs), "treasury", g.Treasury, "root", root.Hex())
	return nil
}

// Submit executes tx and flushes the resulting state.
func (n *Node) Submit(ctx context.Context, tx *runtime.Transaction) (*runtime.Receipt, error) {
	receipt, err := n.host.Execute(ctx, tx)
	if err != nil {
		return receipt, err
	}
	if _, err := n.host.Flush(); err != nil {
		return receipt, fmt.Errorf("flush: %w", err)
	}
	return receipt, nil
}

// SubscribeEvents streams committed events. A cursor replays the retained
// events after it; without one only new events are delivered.
func (n *Node) SubscribeEvents(ctx context.Context, cursor string) (<-chan EventMessage, func(), []EventMessage) {
	return n.stream.Subscribe(ctx, cursor)
}

func (n *Node) Host() *runtime.Host { return n.host }

func (n *Node) Engine() *faucet.Engine { return n.engine }

// View is the committed account state.
func (n *Node) View() *state.Manager { return n.host.State() }

// logEmitter writes every committed event to the log.
type logEmitter struct {
	logger *slog.Logger
}

func (l logEmitter) Emit(evt events.Event) {
	args := []any{"type", evt.EventType()}
	if c, ok := evt.(events.Committed); ok {
		args = append(args, "tx", c.Signature)
		for k, v := range c.Evt.Attributes {
			args = append(args, k, v)
		}
	}
	l.logger.Info("event committed", args...)
}
