package oracle

import (
	"context"
	"errors"
	"testing"

	"signescrow/core/events"
	"signescrow/core/ledger"
	"signescrow/core/types"
	"signescrow/storage"
)

type mockConsumer struct {
	oracle    types.Principal
	completed map[string]string
	failed    []string
	err       error
}

func (m *mockConsumer) CompletedSignature(env *ledger.Env, id, hash string) error {
	if err := env.RequireAuth(m.oracle); err != nil {
		return err
	}
	if m.err != nil {
		return m.err
	}
	m.completed[id] = hash
	return env.Publish(&types.Event{Type: "ConsumerCompleted"})
}

func (m *mockConsumer) FailedSignature(env *ledger.Env, id string) error {
	if err := env.RequireAuth(m.oracle); err != nil {
		return err
	}
	if m.err != nil {
		return m.err
	}
	m.failed = append(m.failed, id)
	return env.Publish(&types.Event{Type: "ConsumerFailed"})
}

type notAConsumer struct{}

type fixture struct {
	l        *ledger.Ledger
	oracle   types.Principal
	consumer types.Principal
	mock     *mockConsumer
	admin    types.Principal
	rec      *events.Recorder
}

func newTestAddress(fill byte) types.Principal {
	var p types.Principal
	for i := range p {
		p[i] = fill
	}
	return p
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	l, err := ledger.Open(storage.NewMemDB(), ledger.Config{})
	if err != nil {
		t.Fatalf("open ledger: %v", err)
	}
	oracleAddr, err := l.Deploy("oracle", New(Config{}))
	if err != nil {
		t.Fatalf("deploy oracle: %v", err)
	}
	mock := &mockConsumer{oracle: oracleAddr, completed: map[string]string{}}
	consumerAddr, err := l.Deploy("consumer", mock)
	if err != nil {
		t.Fatalf("deploy consumer: %v", err)
	}
	f := &fixture{l: l, oracle: oracleAddr, consumer: consumerAddr, mock: mock, admin: newTestAddress(0xAD), rec: &events.Recorder{}}
	if _, err := f.exec(f.admin, func(c *Client, _ *ledger.Env) error { return c.Initialize(f.admin) }); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	l.SetEmitter(f.rec)
	return f
}

func (f *fixture) exec(source types.Principal, fn func(c *Client, env *ledger.Env) error) (*ledger.Receipt, error) {
	return f.l.Execute(context.Background(), ledger.TxOptions{Source: source}, func(env *ledger.Env) error {
		return fn(NewClient(env, f.oracle), env)
	})
}

// register has the consumer contract authorize itself and register id.
func (f *fixture) register(id string) (uint32, error) {
	var oracleID uint32
	_, err := f.exec(newTestAddress(0x01), func(_ *Client, env *ledger.Env) error {
		return env.Call(f.consumer, "start", []any{id}, func(callee *ledger.Env) error {
			if err := callee.AuthorizeAsCurrentContract(ledger.Invocation{
				Contract: f.oracle,
				Function: FnRegisterNewSignatureProcess,
				Args:     []any{f.consumer, id},
			}); err != nil {
				return err
			}
			var err error
			oracleID, err = NewClient(callee, f.oracle).RegisterNewSignatureProcess(f.consumer, id)
			return err
		})
	})
	return oracleID, err
}

func (f *fixture) process(t *testing.T, id string) *Process {
	t.Helper()
	var out *Process
	err := f.l.View(context.Background(), func(env *ledger.Env) error {
		var err error
		out, err = NewClient(env, f.oracle).GetProcess(id)
		return err
	})
	if err != nil {
		t.Fatalf("get process %s: %v", id, err)
	}
	return out
}

func TestInitializeOnce(t *testing.T) {
	f := newFixture(t)
	_, err := f.exec(f.admin, func(c *Client, _ *ledger.Env) error { return c.Initialize(f.admin) })
	if !errors.Is(err, ErrAlreadyInit) {
		t.Fatalf("expected AlreadyInit, got %v", err)
	}
}

func TestRegisterBeforeInitialize(t *testing.T) {
	l, _ := ledger.Open(storage.NewMemDB(), ledger.Config{})
	oracleAddr, _ := l.Deploy("oracle", New(Config{}))
	caller := newTestAddress(0x01)
	_, err := l.Execute(context.Background(), ledger.TxOptions{Source: caller}, func(env *ledger.Env) error {
		_, err := NewClient(env, oracleAddr).RegisterNewSignatureProcess(caller, "sig")
		return err
	})
	if !errors.Is(err, ErrNotInit) {
		t.Fatalf("expected NotInit, got %v", err)
	}
}

func TestRegisterAssignsDenseIDs(t *testing.T) {
	f := newFixture(t)
	for i, id := range []string{"sig-a", "sig-b", "sig-c"} {
		oracleID, err := f.register(id)
		if err != nil {
			t.Fatalf("register %s: %v", id, err)
		}
		if oracleID != uint32(i) {
			t.Fatalf("expected oracle id %d, got %d", i, oracleID)
		}
	}
	if _, err := f.register("sig-b"); !errors.Is(err, ErrSignatureIDAlredyExist) {
		t.Fatalf("expected SignatureIdAlredyExist, got %v", err)
	}

	err := f.l.View(context.Background(), func(env *ledger.Env) error {
		c := NewClient(env, f.oracle)
		counter, err := c.RegisterCounter()
		if err != nil {
			return err
		}
		if counter != 3 {
			t.Fatalf("expected counter 3, got %d", counter)
		}
		for id := uint32(0); id < counter; id++ {
			p, err := c.GetProcessByOracleID(id)
			if err != nil {
				return err
			}
			if p.OracleID != id || p.Status != StatusWait || p.SendTo != f.consumer {
				t.Fatalf("unexpected process %+v", p)
			}
		}
		_, err = c.GetProcessByOracleID(counter)
		if !errors.Is(err, ErrProcessNotFound) {
			t.Fatalf("expected ProcessNotFound, got %v", err)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
}

func TestRegisterRequiresCallerConsent(t *testing.T) {
	f := newFixture(t)
	_, err := f.exec(newTestAddress(0x01), func(c *Client, _ *ledger.Env) error {
		_, err := c.RegisterNewSignatureProcess(f.consumer, "sig")
		return err
	})
	if !errors.Is(err, ledger.ErrNotAuthorized) {
		t.Fatalf("expected authorization failure, got %v", err)
	}
}

func TestSignatureResponseCompleted(t *testing.T) {
	f := newFixture(t)
	if _, err := f.register("sig-x"); err != nil {
		t.Fatalf("register: %v", err)
	}
	f.rec.Reset()
	hash := "hash-abc"
	if _, err := f.exec(f.admin, func(c *Client, _ *ledger.Env) error { return c.SignatureResponse(0, true, &hash) }); err != nil {
		t.Fatalf("response: %v", err)
	}
	if f.mock.completed["sig-x"] != hash {
		t.Fatalf("consumer not called with hash: %+v", f.mock.completed)
	}
	if got := f.process(t, "sig-x").Status; got != StatusCompleted {
		t.Fatalf("expected completed, got %s", got)
	}
	evts := f.rec.Events()
	if len(evts) != 2 {
		t.Fatalf("expected 2 events, got %d", len(evts))
	}
	if evts[0].EventType() != "ConsumerCompleted" || evts[1].EventType() != EventTypeSignatureResponse {
		t.Fatalf("unexpected event order %s, %s", evts[0].EventType(), evts[1].EventType())
	}
	attrs := evts[1].(events.Committed).Event.Attributes
	if attrs["signaturit_id"] != "sig-x" || attrs["oracle_id"] != "0" || attrs["is_success"] != "true" {
		t.Fatalf("unexpected response payload %+v", attrs)
	}

	_, err := f.exec(f.admin, func(c *Client, _ *ledger.Env) error { return c.SignatureResponse(0, false, nil) })
	if !errors.Is(err, ErrProcessAlreadyResolved) {
		t.Fatalf("expected ProcessAlreadyResolved, got %v", err)
	}
	if len(f.mock.failed) != 0 {
		t.Fatalf("callback dispatched twice")
	}
}

func TestSignatureResponseFailed(t *testing.T) {
	f := newFixture(t)
	if _, err := f.register("sig-y"); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := f.exec(f.admin, func(c *Client, _ *ledger.Env) error { return c.SignatureResponse(0, false, nil) }); err != nil {
		t.Fatalf("response: %v", err)
	}
	if len(f.mock.failed) != 1 || f.mock.failed[0] != "sig-y" {
		t.Fatalf("expected failed callback, got %+v", f.mock.failed)
	}
	if got := f.process(t, "sig-y").Status; got != StatusFailed {
		t.Fatalf("expected failed, got %s", got)
	}
}

func TestSignatureResponseGuards(t *testing.T) {
	f := newFixture(t)
	if _, err := f.register("sig-z"); err != nil {
		t.Fatalf("register: %v", err)
	}
	hash := "h"
	cases := []struct {
		name   string
		source types.Principal
		id     uint32
		ok     bool
		hash   *string
		want   error
	}{
		{name: "non admin", source: newTestAddress(0x02), id: 0, ok: true, hash: &hash, want: ErrOnlyAdmin},
		{name: "unknown id", source: f.admin, id: 7, ok: true, hash: &hash, want: ErrProcessNotFound},
		{name: "missing hash", source: f.admin, id: 0, ok: true, hash: nil, want: ErrMissingDocHash},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f.rec.Reset()
			_, err := f.exec(tc.source, func(c *Client, _ *ledger.Env) error { return c.SignatureResponse(tc.id, tc.ok, tc.hash) })
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			if len(f.rec.Events()) != 0 {
				t.Fatalf("failed response emitted events")
			}
		})
	}
	if got := f.process(t, "sig-z").Status; got != StatusWait {
		t.Fatalf("expected wait, got %s", got)
	}
}

func TestConsumerFailureAbortsResponse(t *testing.T) {
	f := newFixture(t)
	if _, err := f.register("sig-q"); err != nil {
		t.Fatalf("register: %v", err)
	}
	boom := errors.New("consumer exploded")
	f.mock.err = boom
	hash := "h"
	_, err := f.exec(f.admin, func(c *Client, _ *ledger.Env) error { return c.SignatureResponse(0, true, &hash) })
	if !errors.Is(err, boom) {
		t.Fatalf("expected consumer error, got %v", err)
	}
	if got := f.process(t, "sig-q").Status; got != StatusWait {
		t.Fatalf("expected wait after abort, got %s", got)
	}
}

func TestCallbackRequiresConsumerCapability(t *testing.T) {
	f := newFixture(t)
	plain, err := f.l.Deploy("plain", notAConsumer{})
	if err != nil {
		t.Fatalf("deploy: %v", err)
	}
	_, err = f.exec(newTestAddress(0x01), func(_ *Client, env *ledger.Env) error {
		return env.Call(plain, "start", nil, func(callee *ledger.Env) error {
			if err := callee.AuthorizeAsCurrentContract(ledger.Invocation{
				Contract: f.oracle,
				Function: FnRegisterNewSignatureProcess,
				Args:     []any{plain, "sig-plain"},
			}); err != nil {
				return err
			}
			_, err := NewClient(callee, f.oracle).RegisterNewSignatureProcess(plain, "sig-plain")
			return err
		})
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	_, err = f.exec(f.admin, func(c *Client, _ *ledger.Env) error { return c.SignatureResponse(0, false, nil) })
	if !errors.Is(err, ledger.ErrNotConsumer) {
		t.Fatalf("expected ErrNotConsumer, got %v", err)
	}
}
