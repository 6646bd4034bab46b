package runtime

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"burnfaucet/core/events"
	"burnfaucet/core/state"
	"burnfaucet/core/types"
	"burnfaucet/crypto"
	"burnfaucet/storage"
	"burnfaucet/storage/trie"
)

func newTestHost(t *testing.T) *Host {
	t.Helper()
	tr, err := trie.NewTrie(storage.NewMemDB(), nil)
	require.NoError(t, err)
	return NewHost(state.NewManager(tr))
}

func fund(t *testing.T, h *Host, addr crypto.Address, acc *types.Account) {
	t.Helper()
	txn := h.State().Begin()
	require.NoError(t, txn.SetAccount(addr, acc))
	require.NoError(t, txn.Commit())
}

func mustKey(t *testing.T, seed byte) *crypto.PrivateKey {
	t.Helper()
	raw := make([]byte, 32)
	raw[0] = seed
	key, err := crypto.PrivateKeyFromSeed(raw)
	require.NoError(t, err)
	return key
}

func programAddr(fill byte) crypto.Address {
	var a crypto.Address
	for i := range a {
		a[i] = fill
	}
	return a
}

// moveProgram debits account 0 and credits account 1 by data[0] lamports.
func moveProgram(ctx context.Context, inv *Invocation) error {
	from, err := inv.Account(0)
	if err != nil {
		return err
	}
	to, err := inv.Account(1)
	if err != nil {
		return err
	}
	src, err := inv.Load(from.Address)
	if err != nil {
		return err
	}
	dst, err := inv.Load(to.Address)
	if err != nil {
		return err
	}
	amount := uint64(inv.Data()[0])
	src.Lamports -= amount
	dst.Lamports += amount
	if err := inv.Store(from.Address, src); err != nil {
		return err
	}
	inv.Log("moved %d", amount)
	return inv.Store(to.Address, dst)
}

func TestExecuteCommitsAndEmits(t *testing.T) {
	h := newTestHost(t)
	recorder := &events.Recorder{}
	h.SetEmitter(recorder)
	prog := programAddr(7)
	vault := programAddr(8)
	user := programAddr(9)
	require.NoError(t, h.Register(prog, "mover", ProgramFunc(func(ctx context.Context, inv *Invocation) error {
		if err := moveProgram(ctx, inv); err != nil {
			return err
		}
		inv.Emit(events.FaucetRewardPaid{Class: "test", Actor: user, Treasury: vault, Amount: 5})
		return nil
	})))
	fund(t, h, vault, &types.Account{Lamports: 10, Owner: prog})

	tx := NewTransaction(Instruction{ProgramID: prog, Accounts: []AccountMeta{Writable(vault), Writable(user)}, Data: []byte{5}})
	receipt, err := h.Execute(context.Background(), tx)
	require.NoError(t, err)
	require.Equal(t, []string{"moved 5"}, receipt.Logs)
	require.Len(t, receipt.Events, 1)
	require.Len(t, recorder.Events, 1)
	require.Equal(t, events.TypeFaucetRewardPaid, recorder.Events[0].EventType())

	acc, err := h.State().Account(user)
	require.NoError(t, err)
	require.EqualValues(t, 5, acc.Lamports)
}

func TestExecuteRollsBackWholeTransaction(t *testing.T) {
	h := newTestHost(t)
	prog := programAddr(7)
	vault := programAddr(8)
	user := programAddr(9)
	require.NoError(t, h.Register(prog, "mover", ProgramFunc(moveProgram)))
	require.NoError(t, h.Register(programAddr(6), "fail", ProgramFunc(func(ctx context.Context, inv *Invocation) error {
		inv.Log("failing")
		return ErrReadonlyAccount
	})))
	fund(t, h, vault, &types.Account{Lamports: 10, Owner: prog})
	root := h.State().PendingRoot()

	tx := NewTransaction(
		Instruction{ProgramID: prog, Accounts: []AccountMeta{Writable(vault), Writable(user)}, Data: []byte{5}},
		Instruction{ProgramID: programAddr(6)},
	)
	receipt, err := h.Execute(context.Background(), tx)
	var ixErr *InstructionError
	require.ErrorAs(t, err, &ixErr)
	require.Equal(t, 1, ixErr.Index)
	require.ErrorIs(t, err, ErrReadonlyAccount)
	require.Equal(t, []string{"moved 5", "failing"}, receipt.Logs)
	require.Equal(t, root, h.State().PendingRoot())
}

func TestStoreEnforcesOwnership(t *testing.T) {
	h := newTestHost(t)
	prog := programAddr(7)
	other := programAddr(5)
	vault := programAddr(8)
	user := programAddr(9)
	require.NoError(t, h.Register(prog, "mover", ProgramFunc(moveProgram)))
	fund(t, h, vault, &types.Account{Lamports: 10, Owner: other})

	_, err := h.Execute(context.Background(), NewTransaction(
		Instruction{ProgramID: prog, Accounts: []AccountMeta{Writable(vault), Writable(user)}, Data: []byte{1}},
	))
	require.ErrorIs(t, err, ErrExternalLamportSpend)

	fund(t, h, vault, &types.Account{Lamports: 10, Owner: prog})
	_, err = h.Execute(context.Background(), NewTransaction(
		Instruction{ProgramID: prog, Accounts: []AccountMeta{Writable(vault), ReadOnly(user)}, Data: []byte{1}},
	))
	require.ErrorIs(t, err, ErrReadonlyAccount)
}

func TestUnbalancedInstructionRejected(t *testing.T) {
	h := newTestHost(t)
	prog := programAddr(7)
	user := programAddr(9)
	require.NoError(t, h.Register(prog, "printer", ProgramFunc(func(ctx context.Context, inv *Invocation) error {
		acc, err := inv.Load(user)
		if err != nil {
			return err
		}
		acc.Lamports += 100
		return inv.Store(user, acc)
	})))
	_, err := h.Execute(context.Background(), NewTransaction(
		Instruction{ProgramID: prog, Accounts: []AccountMeta{Writable(user)}},
	))
	require.ErrorIs(t, err, ErrUnbalancedInstruction)
}

func TestSignaturesRequiredForSignerAccounts(t *testing.T) {
	h := newTestHost(t)
	prog := programAddr(7)
	key := mustKey(t, 1)
	require.NoError(t, h.Register(prog, "noop", ProgramFunc(func(ctx context.Context, inv *Invocation) error {
		if !inv.IsSigner(key.Address()) {
			t.Fatalf("expected signer")
		}
		return nil
	})))

	tx := NewTransaction(Instruction{ProgramID: prog, Accounts: []AccountMeta{Signer(key.Address())}})
	_, err := h.Execute(context.Background(), tx)
	require.ErrorIs(t, err, ErrMissingSignature)

	require.NoError(t, tx.Sign(key))
	_, err = h.Execute(context.Background(), tx)
	require.NoError(t, err)

	tx.Signatures[key.Address()] = make([]byte, 64)
	_, err = h.Execute(context.Background(), tx)
	require.ErrorIs(t, err, ErrInvalidSignature)

	_, err = h.Execute(context.Background(), NewTransaction())
	require.ErrorIs(t, err, ErrEmptyTransaction)
}

func TestInvokeSignerPrivileges(t *testing.T) {
	h := newTestHost(t)
	caller := programAddr(7)
	callee := programAddr(6)
	seeds := [][]byte{[]byte("vault")}
	derived, bump, err := crypto.FindDerivedAddress(seeds, caller)
	require.NoError(t, err)
	signerSeeds := [][]byte{[]byte("vault"), {bump}}
	stranger := programAddr(4)

	require.NoError(t, h.Register(callee, "callee", ProgramFunc(func(ctx context.Context, inv *Invocation) error {
		meta, err := inv.Account(0)
		if err != nil {
			return err
		}
		if !meta.Signer {
			t.Fatalf("callee expected signer meta")
		}
		return nil
	})))
	var useSeeds bool
	var target crypto.Address
	require.NoError(t, h.Register(caller, "caller", ProgramFunc(func(ctx context.Context, inv *Invocation) error {
		ix := Instruction{ProgramID: callee, Accounts: []AccountMeta{Signer(target)}}
		if useSeeds {
			return inv.Invoke(ctx, ix, signerSeeds)
		}
		return inv.Invoke(ctx, ix)
	})))

	target = derived
	useSeeds = true
	_, err = h.Execute(context.Background(), NewTransaction(Instruction{ProgramID: caller, Accounts: []AccountMeta{Writable(derived)}}))
	require.NoError(t, err)

	useSeeds = false
	_, err = h.Execute(context.Background(), NewTransaction(Instruction{ProgramID: caller, Accounts: []AccountMeta{Writable(derived)}}))
	require.ErrorIs(t, err, ErrPrivilegeEscalation)

	target = stranger
	useSeeds = true
	_, err = h.Execute(context.Background(), NewTransaction(Instruction{ProgramID: caller, Accounts: []AccountMeta{Writable(stranger)}}))
	require.ErrorIs(t, err, ErrPrivilegeEscalation)
}

func TestInvokeDepthLimited(t *testing.T) {
	h := newTestHost(t)
	prog := programAddr(7)
	calls := 0
	require.NoError(t, h.Register(prog, "recurse", ProgramFunc(func(ctx context.Context, inv *Invocation) error {
		calls++
		return inv.Invoke(ctx, Instruction{ProgramID: prog})
	})))
	_, err := h.Execute(context.Background(), NewTransaction(Instruction{ProgramID: prog}))
	require.ErrorIs(t, err, ErrCallDepth)
	require.Equal(t, MaxInvokeDepth+1, calls)
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	h := newTestHost(t)
	noop := ProgramFunc(func(context.Context, *Invocation) error { return nil })
	require.NoError(t, h.Register(programAddr(1), "a", noop))
	require.ErrorIs(t, h.Register(programAddr(1), "b", noop), ErrDuplicateProgram)

	_, err := h.Execute(context.Background(), NewTransaction(Instruction{ProgramID: programAddr(2)}))
	require.ErrorIs(t, err, ErrUnknownProgram)
}

func TestSignedTransactionExecutesOnce(t *testing.T) {
	h := newTestHost(t)
	prog := programAddr(7)
	user := mustKey(t, 21)
	sink := programAddr(9)
	require.NoError(t, h.Register(prog, "mover", ProgramFunc(moveProgram)))
	fund(t, h, user.Address(), &types.Account{Lamports: 10, Owner: prog})

	tx := NewTransaction(Instruction{ProgramID: prog, Accounts: []AccountMeta{Signer(user.Address()), Writable(sink)}, Data: []byte{4}})
	require.NoError(t, tx.Sign(user))
	_, err := h.Execute(context.Background(), tx)
	require.NoError(t, err)

	_, err = h.Execute(context.Background(), tx)
	require.ErrorIs(t, err, ErrAlreadyExecuted)
	acc, err := h.State().Account(user.Address())
	require.NoError(t, err)
	require.EqualValues(t, 6, acc.Lamports)

	again := NewTransaction(tx.Instructions...)
	require.NotEqual(t, tx.ID(), again.ID())
	require.NoError(t, again.Sign(user))
	_, err = h.Execute(context.Background(), again)
	require.NoError(t, err)
	acc, err = h.State().Account(user.Address())
	require.NoError(t, err)
	require.EqualValues(t, 2, acc.Lamports)
}

func TestFailedTransactionIsNotMarkedExecuted(t *testing.T) {
	h := newTestHost(t)
	require.NoError(t, h.Register(programAddr(6), "fail", ProgramFunc(func(context.Context, *Invocation) error {
		return ErrReadonlyAccount
	})))
	tx := NewTransaction(Instruction{ProgramID: programAddr(6)})
	_, err := h.Execute(context.Background(), tx)
	require.ErrorIs(t, err, ErrReadonlyAccount)

	digest, err := tx.Digest()
	require.NoError(t, err)
	done, err := h.State().Executed(digest)
	require.NoError(t, err)
	require.False(t, done)
}

func TestNonceIsSigned(t *testing.T) {
	user := mustKey(t, 22)
	tx := NewTransaction(Instruction{ProgramID: programAddr(7), Accounts: []AccountMeta{Signer(user.Address())}})
	require.NoError(t, tx.Sign(user))
	require.NoError(t, tx.verifySignatures())

	tx.Nonce++
	require.ErrorIs(t, tx.verifySignatures(), ErrInvalidSignature)
}
