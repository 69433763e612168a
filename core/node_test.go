package core

import (
	"context"
	"errors"
	"math/big"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"signescrow/config"
	"signescrow/core/genesis"
	"signescrow/core/ledger"
	"signescrow/core/types"
	"signescrow/crypto"
	"signescrow/native/escrow"
	"signescrow/storage"
)

const testNetwork = "signescrow-test"

type harness struct {
	t      *testing.T
	node   *Node
	issuer *crypto.PrivateKey
	oracle *crypto.PrivateKey
	buyer  *crypto.PrivateKey
	owner  *crypto.PrivateKey
	nonces map[types.Principal]uint64
}

func mustKey(t *testing.T) *crypto.PrivateKey {
	t.Helper()
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return key
}

func testSpec(t *testing.T, issuer, oracleAdmin, buyer *crypto.PrivateKey) *genesis.Spec {
	t.Helper()
	g := config.Default().Genesis
	g.AssetAdmin = issuer.Principal().String()
	g.OracleAdmin = oracleAdmin.Principal().String()
	g.Allocations = []config.Allocation{{Address: buyer.Principal().String(), Amount: "1000"}}
	spec, err := genesis.FromConfig(g)
	require.NoError(t, err)
	return spec
}

func newHarness(t *testing.T, db storage.Database) *harness {
	t.Helper()
	h := &harness{
		t:      t,
		issuer: mustKey(t),
		oracle: mustKey(t),
		buyer:  mustKey(t),
		owner:  mustKey(t),
		nonces: make(map[types.Principal]uint64),
	}
	node, err := New(context.Background(), db, Options{
		Network: testNetwork,
		Genesis: testSpec(t, h.issuer, h.oracle, h.buyer),
	})
	require.NoError(t, err)
	h.node = node
	return h
}

func (h *harness) call(contract types.Principal, function string, args ...string) types.Call {
	return types.Call{Contract: contract, Function: function, Args: args}
}

func (h *harness) envelope(key *crypto.PrivateKey, call types.Call) *types.Envelope {
	source := key.Principal()
	h.nonces[source]++
	return &types.Envelope{Network: testNetwork, Source: source, Nonce: h.nonces[source], Call: call}
}

func (h *harness) sign(key *crypto.PrivateKey, env *types.Envelope) *types.Envelope {
	h.t.Helper()
	if err := key.SignEnvelope(env); err != nil {
		h.t.Fatalf("sign envelope: %v", err)
	}
	return env
}

func (h *harness) submit(key *crypto.PrivateKey, call types.Call) (*ledger.Receipt, error) {
	return h.node.Submit(context.Background(), h.sign(key, h.envelope(key, call)))
}

func (h *harness) balance(p types.Principal) *big.Int {
	h.t.Helper()
	c := h.node.Contracts()
	v, err := h.node.Query(context.Background(), c.Asset, "balance", []string{p.String()})
	require.NoError(h.t, err)
	return v.(*big.Int)
}

func eventTypes(r *ledger.Receipt) []string {
	out := make([]string, len(r.Events))
	for i, evt := range r.Events {
		out[i] = evt.Type
	}
	return out
}

func TestNodeEscrowRoundTrip(t *testing.T) {
	h := newHarness(t, storage.NewMemDB())
	c := h.node.Contracts()
	buyer := h.buyer.Principal()
	owner := h.owner.Principal()

	_, err := h.submit(h.owner, h.call(c.Escrow, escrow.FnAddProposal, "P1", owner.String(), "100"))
	require.NoError(t, err)

	register := h.call(c.Escrow, escrow.FnRegisterEscrow, "P1", "S1", buyer.String(), "150")
	transfer := h.call(c.Asset, "transfer", buyer.String(), c.Escrow.String(), "150")

	// Without the nested transfer authorization the asset rejects the debit.
	_, err = h.submit(h.buyer, register)
	require.ErrorIs(t, err, ledger.ErrNotAuthorized)
	h.nonces[buyer]--

	env := h.envelope(h.buyer, register)
	require.NoError(t, h.buyer.AuthorizeCall(env, transfer))
	receipt, err := h.node.Submit(context.Background(), h.sign(h.buyer, env))
	require.NoError(t, err)
	require.Contains(t, eventTypes(receipt), escrow.EventTypeRegisterEscrow)
	require.Equal(t, big.NewInt(850), h.balance(buyer))
	require.Equal(t, big.NewInt(150), h.balance(c.Escrow))

	receipt, err = h.submit(h.oracle, h.call(c.Oracle, "signature_response", "0", "true", "doc-hash"))
	require.NoError(t, err)
	require.Contains(t, eventTypes(receipt), escrow.EventTypeSignedCompleted)

	require.Equal(t, big.NewInt(150), h.balance(owner))
	require.Equal(t, 0, h.balance(c.Escrow).Sign())

	v, err := h.node.Query(context.Background(), c.Escrow, escrow.FnGetSignatureProcess, []string{"S1"})
	require.NoError(t, err)
	process := v.(*escrow.SignatureProcess)
	require.Equal(t, escrow.SignatureCompleted, process.Status)
	require.NotNil(t, process.NFTProofID)

	v, err = h.node.Query(context.Background(), c.ProofNote, "owner_of", []string{"0"})
	require.NoError(t, err)
	require.Equal(t, buyer, v.(types.Principal))

	nonce, err := h.node.Nonce(buyer)
	require.NoError(t, err)
	require.Equal(t, uint64(1), nonce)
}

func TestNodeProposalIDsAreNotNormalized(t *testing.T) {
	h := newHarness(t, storage.NewMemDB())
	c := h.node.Contracts()
	owner := h.owner.Principal()

	_, err := h.submit(h.owner, h.call(c.Escrow, escrow.FnAddProposal, " P1", owner.String(), "100"))
	require.NoError(t, err)
	_, err = h.submit(h.owner, h.call(c.Escrow, escrow.FnAddProposal, "P1", owner.String(), "200"))
	require.NoError(t, err)

	for id, want := range map[string]int64{" P1": 100, "P1": 200} {
		v, err := h.node.Query(context.Background(), c.Escrow, escrow.FnGetProposal, []string{id})
		require.NoError(t, err)
		proposal := v.(*escrow.Proposal)
		require.Equal(t, id, proposal.EscrowID)
		require.Equal(t, 0, proposal.MinFunds.Cmp(big.NewInt(want)), id)
	}
}

func TestNodeRejectsMalformedEnvelopes(t *testing.T) {
	h := newHarness(t, storage.NewMemDB())
	c := h.node.Contracts()
	owner := h.owner.Principal()
	call := h.call(c.Escrow, escrow.FnAddProposal, "P1", owner.String(), "100")
	ctx := context.Background()

	env := h.envelope(h.owner, call)
	env.Network = "elsewhere"
	_, err := h.node.Submit(ctx, h.sign(h.owner, env))
	require.ErrorIs(t, err, ErrWrongNetwork)

	env = h.envelope(h.owner, h.call(c.Escrow, escrow.FnAddProposal, "P1", owner.String(), "100"))
	h.sign(h.owner, env)
	env.Call.Args[2] = "1"
	_, err = h.node.Submit(ctx, env)
	require.ErrorIs(t, err, ErrBadSignature)

	_, err = h.submit(h.owner, h.call(c.Escrow, escrow.FnConfig))
	require.ErrorIs(t, err, ErrQueryOnly)

	_, err = h.submit(h.owner, h.call(c.Escrow, "withdraw"))
	require.ErrorIs(t, err, ErrUnknownMethod)

	_, err = h.submit(h.owner, h.call(owner, "anything"))
	require.ErrorIs(t, err, ErrUnknownContract)

	_, err = h.submit(h.owner, h.call(c.Escrow, escrow.FnAddProposal, "P1", owner.String()))
	require.ErrorContains(t, err, "expected 3 arguments")

	// Every rejection above left the nonce untouched.
	first := &types.Envelope{Network: testNetwork, Source: owner, Nonce: 1, Call: call}
	_, err = h.node.Submit(ctx, h.sign(h.owner, first))
	require.NoError(t, err)

	replay := &types.Envelope{Network: testNetwork, Source: owner, Nonce: 1, Call: call}
	_, err = h.node.Submit(ctx, h.sign(h.owner, replay))
	require.ErrorIs(t, err, ledger.ErrBadNonce)

	_, err = h.node.Query(ctx, c.Escrow, escrow.FnAddProposal, []string{"P2", owner.String(), "1"})
	require.ErrorIs(t, err, ErrNotQuery)
}

func TestNodeContractErrorsKeepCodes(t *testing.T) {
	h := newHarness(t, storage.NewMemDB())
	c := h.node.Contracts()
	owner := h.owner.Principal()

	_, err := h.submit(h.owner, h.call(c.Escrow, escrow.FnAddProposal, "P1", owner.String(), "-1"))
	if !errors.Is(err, escrow.ErrInvalidAmount) {
		t.Fatalf("expected invalid amount, got %v", err)
	}
	_, err = h.node.Query(context.Background(), c.Escrow, escrow.FnGetProposal, []string{"missing"})
	if !errors.Is(err, escrow.ErrProposalNotFound) {
		t.Fatalf("expected proposal not found, got %v", err)
	}
}

func TestNodeReopenSkipsGenesis(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "db")
	db, err := storage.NewLevelDB(dir)
	require.NoError(t, err)
	h := newHarness(t, db)
	buyer := h.buyer.Principal()
	before := h.node.Info()
	h.node.Close()

	db, err = storage.NewLevelDB(dir)
	require.NoError(t, err)
	reopened, err := New(context.Background(), db, Options{Network: testNetwork})
	require.NoError(t, err)
	defer reopened.Close()

	after := reopened.Info()
	require.Equal(t, before.Contracts, after.Contracts)
	require.Equal(t, before.StateRoot, after.StateRoot)
	h.node = reopened
	require.Equal(t, big.NewInt(1000), h.balance(buyer))
}

func TestNodeEmptyLedgerNeedsGenesis(t *testing.T) {
	_, err := New(context.Background(), storage.NewMemDB(), Options{Network: testNetwork})
	require.ErrorContains(t, err, "no genesis")
}

func TestNodeRunClosesLedgers(t *testing.T) {
	h := newHarness(t, storage.NewMemDB())
	h.node.interval = 5 * time.Millisecond
	start := h.node.Info().Sequence

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.node.Run(ctx) }()
	require.Eventually(t, func() bool {
		return h.node.Info().Sequence >= start+3
	}, 2*time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)
}

func TestNodeSubscribeReceivesCommittedEvents(t *testing.T) {
	h := newHarness(t, storage.NewMemDB())
	c := h.node.Contracts()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sub := h.node.Subscribe(ctx, 8)

	_, err := h.submit(h.owner, h.call(c.Escrow, escrow.FnAddProposal, "P1", h.owner.Principal().String(), "5"))
	require.NoError(t, err)

	select {
	case evt := <-sub:
		require.Equal(t, escrow.EventTypeNewProposal, evt.EventType())
	case <-time.After(time.Second):
		t.Fatalf("no event delivered")
	}
}

func TestResolveContract(t *testing.T) {
	h := newHarness(t, storage.NewMemDB())
	c := h.node.Contracts()

	p, err := h.node.ResolveContract("Escrow")
	require.NoError(t, err)
	require.Equal(t, c.Escrow, p)

	p, err = h.node.ResolveContract(c.Oracle.String())
	require.NoError(t, err)
	require.Equal(t, c.Oracle, p)

	_, err = h.node.ResolveContract(h.owner.Principal().String())
	require.ErrorIs(t, err, ErrUnknownContract)
}
