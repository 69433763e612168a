package ledger

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"signescrow/core/types"
)

const maxCallDepth = 16

type frame struct {
	contract types.Principal
	function string
	args     string
	invoker  types.Principal
	depth    int
}

// Env is the execution context handed to contract code. The root environment of
// a transaction has no frame; Call pushes one per contract invocation.
type Env struct {
	ctx   context.Context
	tx    *tx
	frame *frame
}

// Context returns the request context of the transaction.
func (e *Env) Context() context.Context {
	return e.ctx
}

// Sequence returns the open ledger sequence.
func (e *Env) Sequence() uint32 {
	return e.tx.seq
}

// Source returns the transaction source.
func (e *Env) Source() types.Principal {
	return e.tx.source
}

// CurrentContract returns the principal of the executing contract.
func (e *Env) CurrentContract() types.Principal {
	if e.frame == nil {
		return types.ZeroPrincipal
	}
	return e.frame.contract
}

// Invoker returns the contract that called the current frame, or the
// transaction source for the root invocation.
func (e *Env) Invoker() types.Principal {
	if e.frame == nil {
		return e.tx.source
	}
	return e.frame.invoker
}

// Function returns the name of the executing function.
func (e *Env) Function() string {
	if e.frame == nil {
		return ""
	}
	return e.frame.function
}

// Contract resolves a deployed contract instance.
func (e *Env) Contract(p types.Principal) (any, bool) {
	d, ok := e.tx.ledger.contracts[p]
	if !ok {
		return nil, false
	}
	return d.impl, true
}

// Call invokes function on contract with args. body runs inside the callee's
// frame and receives its environment; typed clients wrap this.
func (e *Env) Call(contract types.Principal, function string, args []any, body func(callee *Env) error) error {
	l := e.tx.ledger
	d, ok := l.contracts[contract]
	if !ok {
		return fmt.Errorf("%w: %s", ErrContractNotFound, contract)
	}
	depth := 1
	invoker := e.tx.source
	if e.frame != nil {
		depth = e.frame.depth + 1
		invoker = e.frame.contract
	}
	if depth > maxCallDepth {
		return ErrCallDepth
	}
	canon, err := EncodeArgs(args)
	if err != nil {
		return fmt.Errorf("%s.%s: %w", d.name, function, err)
	}

	ctx, span := l.tracer.Start(e.ctx, d.name+"."+function, trace.WithAttributes(
		attribute.String("contract", d.name),
		attribute.Int("depth", depth),
	))
	defer span.End()
	l.metrics.ObserveInvocation(d.name, function)

	callee := &Env{
		ctx: ctx,
		tx:  e.tx,
		frame: &frame{
			contract: contract,
			function: function,
			args:     canon,
			invoker:  invoker,
			depth:    depth,
		},
	}
	if err := body(callee); err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}

func (e *Env) key(k Key) ([]byte, error) {
	if e.frame == nil {
		return nil, ErrNoFrame
	}
	if !k.Class().Valid() {
		return nil, fmt.Errorf("ledger: invalid storage class %d", k.Class())
	}
	return stateKey(e.frame.contract, k), nil
}

// Has reports whether a live entry exists for k.
func (e *Env) Has(k Key) (bool, error) {
	dbKey, err := e.key(k)
	if err != nil {
		return false, err
	}
	rec, err := e.tx.live(dbKey, k.Class())
	if err != nil {
		return false, err
	}
	return rec != nil, nil
}

// Get decodes the entry for k into out and reports whether it existed.
func (e *Env) Get(k Key, out any) (bool, error) {
	dbKey, err := e.key(k)
	if err != nil {
		return false, err
	}
	rec, err := e.tx.live(dbKey, k.Class())
	if err != nil || rec == nil {
		return false, err
	}
	if err := rlp.DecodeBytes(rec.Value, out); err != nil {
		return false, fmt.Errorf("ledger: decode %s entry: %w", k.Class(), err)
	}
	return true, nil
}

// Set writes v under k. A new entry starts with the class minimum TTL; an
// existing entry keeps its TTL.
func (e *Env) Set(k Key, v any) error {
	dbKey, err := e.key(k)
	if err != nil {
		return err
	}
	value, err := rlp.EncodeToBytes(v)
	if err != nil {
		return fmt.Errorf("ledger: encode %s entry: %w", k.Class(), err)
	}
	rec, err := e.tx.live(dbKey, k.Class())
	if err != nil {
		return err
	}
	liveUntil := e.tx.ledger.initialLiveUntil(e.tx.seq, k.Class())
	if rec != nil {
		liveUntil = rec.LiveUntil
	}
	return e.tx.put(dbKey, &entry{LiveUntil: liveUntil, Value: value})
}

// Remove deletes the entry for k. Removing an absent entry is a no-op.
func (e *Env) Remove(k Key) error {
	dbKey, err := e.key(k)
	if err != nil {
		return err
	}
	return e.tx.put(dbKey, nil)
}

// ExtendTTL extends the entry so it lives extendTo ledgers past the current
// sequence whenever its remaining TTL is below threshold. The result is capped
// by the configured maximum.
func (e *Env) ExtendTTL(k Key, threshold, extendTo uint32) error {
	dbKey, err := e.key(k)
	if err != nil {
		return err
	}
	rec, err := e.tx.live(dbKey, k.Class())
	if err != nil {
		return err
	}
	if rec == nil {
		return fmt.Errorf("%w: extend %s entry", ErrMissingEntry, k.Class())
	}
	remaining := rec.LiveUntil - e.tx.seq
	if remaining >= threshold {
		return nil
	}
	maxTTL := e.tx.ledger.cfg.MaxEntryTTL
	if extendTo > maxTTL {
		extendTo = maxTTL
	}
	target := e.tx.seq + extendTo
	if target <= rec.LiveUntil {
		return nil
	}
	return e.tx.put(dbKey, &entry{LiveUntil: target, Value: rec.Value})
}

// Extend is ExtendTTL with threshold equal to ledgers.
func (e *Env) Extend(k Key, ledgers uint32) error {
	return e.ExtendTTL(k, ledgers, ledgers)
}

// TTL returns the number of ledgers the entry remains live after the current one.
func (e *Env) TTL(k Key) (uint32, bool, error) {
	dbKey, err := e.key(k)
	if err != nil {
		return 0, false, err
	}
	rec, err := e.tx.live(dbKey, k.Class())
	if err != nil || rec == nil {
		return 0, false, err
	}
	return rec.LiveUntil - e.tx.seq, true, nil
}

// Publish buffers an event from the current contract. Events reach the
// ledger emitter only if the transaction commits.
func (e *Env) Publish(evt *types.Event) error {
	if e.frame == nil {
		return ErrNoFrame
	}
	if evt == nil {
		return nil
	}
	if e.tx.readOnly {
		return ErrReadOnly
	}
	out := evt.Clone()
	out.Contract = e.frame.contract
	e.tx.events = append(e.tx.events, out)
	return nil
}
