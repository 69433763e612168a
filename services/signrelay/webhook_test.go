package signrelay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"signescrow/config"
	"signescrow/core"
	"signescrow/core/genesis"
	"signescrow/crypto"
	"signescrow/native/escrow"
	"signescrow/native/oracle"
	"signescrow/rpc"
	"signescrow/sdk/client"
	"signescrow/storage"
)

const testSecret = "relay-secret"

type response struct {
	oracleID uint32
	success  bool
	hash     *string
}

type fakeOracle struct {
	mu         sync.Mutex
	processes  map[string]*oracle.Process
	responses  []response
	respondErr error
}

func newFakeOracle() *fakeOracle {
	return &fakeOracle{processes: make(map[string]*oracle.Process)}
}

func (f *fakeOracle) Lookup(_ context.Context, id string) (*oracle.Process, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.processes[id]
	if !ok {
		return nil, ErrUnknownProcess
	}
	cp := *p
	return &cp, nil
}

func (f *fakeOracle) Respond(_ context.Context, oracleID uint32, success bool, hash *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.respondErr != nil {
		return f.respondErr
	}
	f.responses = append(f.responses, response{oracleID, success, hash})
	for _, p := range f.processes {
		if p.OracleID == oracleID {
			p.Status = oracle.StatusFailed
			if success {
				p.Status = oracle.StatusCompleted
			}
		}
	}
	return nil
}

func (f *fakeOracle) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.responses)
}

func newTestServer(t *testing.T, o Oracle) *httptest.Server {
	t.Helper()
	srv, err := NewServer(Config{WebhookSecret: testSecret}, openTestStore(t), o, nil)
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func deliver(t *testing.T, url string, cb Callback, signature string) (int, map[string]string) {
	t.Helper()
	body, err := json.Marshal(cb)
	require.NoError(t, err)
	if signature == "" {
		signature = Sign(testSecret, body)
	}
	req, err := http.NewRequest(http.MethodPost, url+"/webhook", bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set(HeaderSignature, signature)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	var out map[string]string
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}

func TestMapStatus(t *testing.T) {
	require.Equal(t, OutcomeSuccess, MapStatus("completed"))
	require.Equal(t, OutcomeSuccess, MapStatus(" Completed "))
	for _, s := range []string{"declined", "expired", "canceled", "error"} {
		require.Equal(t, OutcomeFailure, MapStatus(s), s)
	}
	require.Equal(t, OutcomeIgnore, MapStatus("ready"))
	require.Equal(t, OutcomeIgnore, MapStatus("signed"))
}

func TestVerifyHMAC(t *testing.T) {
	body := []byte(`{"signature_id":"x"}`)
	sig := Sign(testSecret, body)
	require.True(t, VerifyHMAC(testSecret, body, sig))
	require.True(t, VerifyHMAC(testSecret, body, "0x"+sig))
	require.False(t, VerifyHMAC(testSecret, append(body, ' '), sig))
	require.False(t, VerifyHMAC("other", body, sig))
	require.False(t, VerifyHMAC(testSecret, body, ""))
	require.False(t, VerifyHMAC("", body, sig))
}

func TestWebhookRejectsBadRequests(t *testing.T) {
	fake := newFakeOracle()
	ts := newTestServer(t, fake)
	id := uuid.NewString()

	status, _ := deliver(t, ts.URL, Callback{SignatureID: id, Status: "completed", DocumentHash: "h"}, "deadbeef")
	require.Equal(t, http.StatusUnauthorized, status)

	status, _ = deliver(t, ts.URL, Callback{SignatureID: "not-a-uuid", Status: "completed", DocumentHash: "h"}, "")
	require.Equal(t, http.StatusBadRequest, status)

	status, _ = deliver(t, ts.URL, Callback{SignatureID: " " + id, Status: "completed", DocumentHash: "h"}, "")
	require.Equal(t, http.StatusBadRequest, status)

	status, _ = deliver(t, ts.URL, Callback{SignatureID: id, Status: "completed"}, "")
	require.Equal(t, http.StatusBadRequest, status)

	status, out := deliver(t, ts.URL, Callback{SignatureID: id, Status: "ready"}, "")
	require.Equal(t, http.StatusAccepted, status)
	require.Equal(t, "ignored", out["status"])
	require.Zero(t, fake.count())
}

func TestWebhookDeliversOnce(t *testing.T) {
	fake := newFakeOracle()
	id := uuid.NewString()
	fake.processes[id] = &oracle.Process{ID: id, OracleID: 4, Status: oracle.StatusWait}
	ts := newTestServer(t, fake)

	cb := Callback{EventID: "evt-1", SignatureID: id, Status: "completed", DocumentHash: "doc-hash"}
	status, out := deliver(t, ts.URL, cb, "")
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "4", out["oracleId"])
	require.Equal(t, 1, fake.count())
	require.True(t, fake.responses[0].success)
	require.Equal(t, "doc-hash", *fake.responses[0].hash)

	status, out = deliver(t, ts.URL, cb, "")
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "done", out["status"])
	require.Equal(t, 1, fake.count())
}

func TestWebhookFailureOutcome(t *testing.T) {
	fake := newFakeOracle()
	id := uuid.NewString()
	fake.processes[id] = &oracle.Process{ID: id, OracleID: 0, Status: oracle.StatusWait}
	ts := newTestServer(t, fake)

	status, _ := deliver(t, ts.URL, Callback{SignatureID: id, Status: "declined"}, "")
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, 1, fake.count())
	require.False(t, fake.responses[0].success)
	require.Nil(t, fake.responses[0].hash)
}

func TestWebhookReleasesOnFailure(t *testing.T) {
	fake := newFakeOracle()
	id := uuid.NewString()
	ts := newTestServer(t, fake)

	status, _ := deliver(t, ts.URL, Callback{SignatureID: id, Status: "completed", DocumentHash: "h"}, "")
	require.Equal(t, http.StatusNotFound, status)

	fake.processes[id] = &oracle.Process{ID: id, OracleID: 1, Status: oracle.StatusWait}
	fake.respondErr = errors.New("node unavailable")
	status, _ = deliver(t, ts.URL, Callback{SignatureID: id, Status: "completed", DocumentHash: "h"}, "")
	require.Equal(t, http.StatusBadGateway, status)

	// Retries succeed once the node recovers.
	fake.respondErr = nil
	status, _ = deliver(t, ts.URL, Callback{SignatureID: id, Status: "completed", DocumentHash: "h"}, "")
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, 1, fake.count())
}

func TestWebhookSkipsResolvedProcesses(t *testing.T) {
	fake := newFakeOracle()
	id := uuid.NewString()
	fake.processes[id] = &oracle.Process{ID: id, OracleID: 2, Status: oracle.StatusFailed}
	ts := newTestServer(t, fake)

	status, out := deliver(t, ts.URL, Callback{SignatureID: id, Status: "completed", DocumentHash: "h"}, "")
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "done", out["status"])
	require.Zero(t, fake.count())
}

func TestRelayCompletesEscrowOnNode(t *testing.T) {
	ctx := context.Background()
	newKey := func() *crypto.PrivateKey {
		k, err := crypto.GeneratePrivateKey()
		require.NoError(t, err)
		return k
	}
	issuer, admin, buyer, owner := newKey(), newKey(), newKey(), newKey()

	g := config.Default().Genesis
	g.AssetAdmin = issuer.Principal().String()
	g.OracleAdmin = admin.Principal().String()
	g.Allocations = []config.Allocation{{Address: buyer.Principal().String(), Amount: "300"}}
	spec, err := genesis.FromConfig(g)
	require.NoError(t, err)
	node, err := core.New(ctx, storage.NewMemDB(), core.Options{Network: "relay-test", Genesis: spec})
	require.NoError(t, err)
	rpcSrv, err := rpc.NewServer(node, rpc.Config{}, nil, nil)
	require.NoError(t, err)
	nodeTS := httptest.NewServer(rpcSrv.Handler())
	t.Cleanup(nodeTS.Close)
	c, err := client.New(nodeTS.URL)
	require.NoError(t, err)

	contracts := node.Contracts()
	signatureID := uuid.NewString()
	_, err = c.NewSigner(owner).Submit(ctx,
		client.NewCall(contracts.Escrow, escrow.FnAddProposal, "deal", owner.Principal().String(), "200"))
	require.NoError(t, err)
	_, err = c.NewSigner(buyer).Submit(ctx,
		client.NewCall(contracts.Escrow, escrow.FnRegisterEscrow, "deal", signatureID, buyer.Principal().String(), "250"),
		client.Cosigner{Key: buyer, Call: client.NewCall(contracts.Asset, "transfer",
			buyer.Principal().String(), contracts.Escrow.String(), "250")},
	)
	require.NoError(t, err)

	relay := NewNodeOracle(c, admin)
	require.Equal(t, admin.Principal(), relay.Admin())
	ts := newTestServer(t, relay)

	status, out := deliver(t, ts.URL, Callback{SignatureID: signatureID, Status: "completed", DocumentHash: "sha256:abc"}, "")
	require.Equal(t, http.StatusOK, status, out)
	require.Equal(t, "0", out["oracleId"])

	var process escrow.SignatureProcess
	require.NoError(t, c.Query(ctx, "escrow", escrow.FnGetSignatureProcess, []string{signatureID}, &process))
	require.Equal(t, escrow.SignatureCompleted, process.Status)
	require.NotNil(t, process.NFTProofID)

	var balance *big.Int
	require.NoError(t, c.Query(ctx, "asset", "balance", []string{owner.Principal().String()}, &balance))
	require.Equal(t, 0, balance.Cmp(big.NewInt(250)))

	// A late duplicate from another relay instance hits ProcessAlreadyResolved.
	err = relay.Respond(ctx, 0, false, nil)
	require.ErrorIs(t, err, ErrAlreadyResolved)

	_, err = relay.Lookup(ctx, uuid.NewString())
	require.ErrorIs(t, err, ErrUnknownProcess)
}
