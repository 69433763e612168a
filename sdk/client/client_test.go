package client

import (
	"context"
	"math/big"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"signescrow/config"
	"signescrow/core"
	"signescrow/core/genesis"
	"signescrow/crypto"
	"signescrow/native/escrow"
	"signescrow/rpc"
	"signescrow/storage"
)

type env struct {
	client *Client
	node   *core.Node
	issuer *crypto.PrivateKey
	oracle *crypto.PrivateKey
	buyer  *crypto.PrivateKey
	owner  *crypto.PrivateKey
}

func key(t *testing.T) *crypto.PrivateKey {
	t.Helper()
	k, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	return k
}

func setup(t *testing.T, rpcCfg rpc.Config, opts ...Option) *env {
	t.Helper()
	e := &env{issuer: key(t), oracle: key(t), buyer: key(t), owner: key(t)}
	g := config.Default().Genesis
	g.AssetAdmin = e.issuer.Principal().String()
	g.OracleAdmin = e.oracle.Principal().String()
	g.Allocations = []config.Allocation{{Address: e.buyer.Principal().String(), Amount: "500"}}
	spec, err := genesis.FromConfig(g)
	require.NoError(t, err)
	node, err := core.New(context.Background(), storage.NewMemDB(), core.Options{Network: "sdk-test", Genesis: spec})
	require.NoError(t, err)
	srv, err := rpc.NewServer(node, rpcCfg, nil, nil)
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	c, err := New(ts.URL, opts...)
	require.NoError(t, err)
	e.client = c
	e.node = node
	return e
}

func TestSignerDrivesEscrow(t *testing.T) {
	e := setup(t, rpc.Config{})
	ctx := context.Background()
	c := e.node.Contracts()
	owner := e.owner.Principal()
	buyer := e.buyer.Principal()
	signatureID := uuid.NewString()

	_, err := e.client.NewSigner(e.owner).Submit(ctx, NewCall(c.Escrow, escrow.FnAddProposal, "P1", owner.String(), "100"))
	require.NoError(t, err)

	buyerSigner := e.client.NewSigner(e.buyer)
	_, err = buyerSigner.Submit(ctx,
		NewCall(c.Escrow, escrow.FnRegisterEscrow, "P1", signatureID, buyer.String(), "120"),
		Cosigner{Key: e.buyer, Call: NewCall(c.Asset, "transfer", buyer.String(), c.Escrow.String(), "120")},
	)
	require.NoError(t, err)

	var process escrow.SignatureProcess
	require.NoError(t, e.client.Query(ctx, "escrow", escrow.FnGetSignatureProcess, []string{signatureID}, &process))
	require.Equal(t, escrow.SignatureInProgress, process.Status)
	require.Equal(t, 0, process.Funds.Cmp(big.NewInt(120)))

	_, err = e.client.NewSigner(e.oracle).Submit(ctx, NewCall(c.Oracle, "signature_response", "0", "false", ""))
	require.NoError(t, err)

	var balance *big.Int
	require.NoError(t, e.client.Query(ctx, "asset", "balance", []string{buyer.String()}, &balance))
	require.Equal(t, 0, balance.Cmp(big.NewInt(500)))

	var proposal escrow.Proposal
	require.NoError(t, e.client.Query(ctx, "escrow", escrow.FnGetProposal, []string{"P1"}, &proposal))
	require.Equal(t, escrow.ProposalActive, proposal.Status)
	require.Nil(t, proposal.SignatureTxLinked)

	// The refunded buyer can pick the proposal again with the same signer.
	_, err = buyerSigner.Submit(ctx,
		NewCall(c.Escrow, escrow.FnRegisterEscrow, "P1", uuid.NewString(), buyer.String(), "100"),
		Cosigner{Key: e.buyer, Call: NewCall(c.Asset, "transfer", buyer.String(), c.Escrow.String(), "100")},
	)
	require.NoError(t, err)

	nonce, err := e.client.Nonce(ctx, buyer)
	require.NoError(t, err)
	require.Equal(t, uint64(2), nonce)
}

func TestContractErrorsDecode(t *testing.T) {
	e := setup(t, rpc.Config{})
	ctx := context.Background()
	c := e.node.Contracts()
	owner := e.owner.Principal()
	signer := e.client.NewSigner(e.owner)

	_, err := signer.Submit(ctx, NewCall(c.Escrow, escrow.FnAddProposal, "P1", owner.String(), "1"))
	require.NoError(t, err)
	_, err = signer.Submit(ctx, NewCall(c.Escrow, escrow.FnAddProposal, "P1", owner.String(), "1"))
	data, ok := ContractError(err)
	require.True(t, ok, "expected contract error, got %v", err)
	require.Equal(t, "AlreadyProposed", data.Name)
	require.Equal(t, uint32(4), data.Code)

	// The failed call did not consume a nonce.
	_, err = signer.Submit(ctx, NewCall(c.Escrow, escrow.FnAddProposal, "P2", owner.String(), "1"))
	require.NoError(t, err)
}

func TestSignerResyncsAfterNonceConflict(t *testing.T) {
	e := setup(t, rpc.Config{})
	ctx := context.Background()
	c := e.node.Contracts()
	owner := e.owner.Principal()

	stale := e.client.NewSigner(e.owner)
	_, err := stale.Envelope(ctx, NewCall(c.Escrow, escrow.FnAddProposal, "warmup", owner.String(), "1"))
	require.NoError(t, err)

	_, err = e.client.NewSigner(e.owner).Submit(ctx, NewCall(c.Escrow, escrow.FnAddProposal, "P1", owner.String(), "1"))
	require.NoError(t, err)

	_, err = stale.Submit(ctx, NewCall(c.Escrow, escrow.FnAddProposal, "P2", owner.String(), "1"))
	var rpcErr *Error
	require.ErrorAs(t, err, &rpcErr)
	require.Equal(t, CodeBadNonce, rpcErr.Code)

	_, err = stale.Submit(ctx, NewCall(c.Escrow, escrow.FnAddProposal, "P2", owner.String(), "1"))
	require.NoError(t, err)
}

func TestBearerToken(t *testing.T) {
	cfg := rpc.Config{RequireAuth: true, JWTSecret: "topsecret", JWTIssuer: "signescrow"}
	e := setup(t, cfg)
	ctx := context.Background()
	c := e.node.Contracts()
	call := NewCall(c.Escrow, escrow.FnAddProposal, "P1", e.owner.Principal().String(), "1")

	_, err := e.client.NewSigner(e.owner).Submit(ctx, call)
	require.Error(t, err)

	token, err := rpc.IssueToken(cfg.JWTSecret, cfg.JWTIssuer, "sdk", time.Minute)
	require.NoError(t, err)
	authed, err := New(e.client.endpoint.String(), WithBearerToken(token))
	require.NoError(t, err)
	_, err = authed.NewSigner(e.owner).Submit(ctx, call)
	require.NoError(t, err)
}

func TestSubscribeStreamsCommittedEvents(t *testing.T) {
	e := setup(t, rpc.Config{})
	c := e.node.Contracts()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stream, err := e.client.Subscribe(ctx, "escrow", escrow.EventTypeNewProposal)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return e.node.Hub().Subscribers() == 1 }, 2*time.Second, 10*time.Millisecond)

	_, err = e.client.NewSigner(e.owner).Submit(context.Background(), NewCall(c.Escrow, escrow.FnAddProposal, "P1", e.owner.Principal().String(), "3"))
	require.NoError(t, err)

	select {
	case evt := <-stream:
		require.Equal(t, escrow.EventTypeNewProposal, evt.Event.Type)
		require.Equal(t, "P1", evt.Event.Attributes["proposal_id"])
	case <-time.After(2 * time.Second):
		t.Fatalf("event not streamed")
	}
}
