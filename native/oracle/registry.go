package oracle

import (
	"signescrow/core/ledger"
	"signescrow/core/types"
)

// Config tunes the TTL bumps applied to oracle records.
type Config struct {
	InstanceTTL uint32
	ProcessTTL  uint32
}

// DefaultConfig returns the lifetimes used by the node genesis.
func DefaultConfig() Config {
	return Config{InstanceTTL: 518400, ProcessTTL: 518400}
}

// Registry tracks signature processes and relays the admin's verdict to the
// contract that registered each one.
type Registry struct {
	cfg Config
}

// New constructs the oracle contract.
func New(cfg Config) *Registry {
	def := DefaultConfig()
	if cfg.InstanceTTL == 0 {
		cfg.InstanceTTL = def.InstanceTTL
	}
	if cfg.ProcessTTL == 0 {
		cfg.ProcessTTL = def.ProcessTTL
	}
	return &Registry{cfg: cfg}
}

// Initialize binds the admin once.
func (r *Registry) Initialize(env *ledger.Env, admin types.Principal) error {
	exists, err := env.Has(adminKey())
	if err != nil {
		return err
	}
	if exists {
		return ErrAlreadyInit
	}
	for _, w := range []struct {
		key   dataKey
		value any
	}{{adminKey(), admin}, {counterKey(), uint32(0)}} {
		if err := env.Set(w.key, w.value); err != nil {
			return err
		}
		if err := env.Extend(w.key, r.cfg.InstanceTTL); err != nil {
			return err
		}
	}
	return env.Publish(NewInitializedEvent(admin))
}

// Admin returns the principal allowed to report outcomes.
func (r *Registry) Admin(env *ledger.Env) (types.Principal, error) {
	var admin types.Principal
	found, err := env.Get(adminKey(), &admin)
	if err != nil {
		return types.ZeroPrincipal, err
	}
	if !found {
		return types.ZeroPrincipal, ErrNotInit
	}
	return admin, nil
}

// RegisterCounter returns the next oracle id to be assigned.
func (r *Registry) RegisterCounter(env *ledger.Env) (uint32, error) {
	if _, err := r.Admin(env); err != nil {
		return 0, err
	}
	var counter uint32
	_, err := env.Get(counterKey(), &counter)
	return counter, err
}

// RegisterNewSignatureProcess starts tracking signaturitID on behalf of caller
// and returns its oracle id.
func (r *Registry) RegisterNewSignatureProcess(env *ledger.Env, caller types.Principal, signaturitID string) (uint32, error) {
	if _, err := r.Admin(env); err != nil {
		return 0, err
	}
	if err := env.RequireAuth(caller); err != nil {
		return 0, err
	}
	exists, err := env.Has(processKey(signaturitID))
	if err != nil {
		return 0, err
	}
	if exists {
		return 0, ErrSignatureIDAlredyExist
	}
	oracleID, err := r.RegisterCounter(env)
	if err != nil {
		return 0, err
	}
	process := &Process{ID: signaturitID, OracleID: oracleID, SendTo: caller, Status: StatusWait}
	if err := r.storeProcess(env, process); err != nil {
		return 0, err
	}
	if err := r.setExtended(env, oracleProcessKey(oracleID), signaturitID, r.cfg.ProcessTTL); err != nil {
		return 0, err
	}
	if err := r.setExtended(env, counterKey(), oracleID+1, r.cfg.InstanceTTL); err != nil {
		return 0, err
	}
	if err := env.Publish(NewSignatureProcessEvent(signaturitID, oracleID)); err != nil {
		return 0, err
	}
	return oracleID, nil
}

// SignatureResponse records the admin's verdict for oracleID and dispatches
// the matching callback to the registrant before emitting the response.
func (r *Registry) SignatureResponse(env *ledger.Env, oracleID uint32, isSuccess bool, documentHash *string) error {
	admin, err := r.Admin(env)
	if err != nil {
		return err
	}
	if env.Invoker() != admin {
		return ErrOnlyAdmin
	}
	if err := env.RequireAuth(admin); err != nil {
		return err
	}
	process, err := r.GetProcessByOracleID(env, oracleID)
	if err != nil {
		return err
	}
	if isSuccess && documentHash == nil {
		return ErrMissingDocHash
	}
	if process.Status.Terminal() {
		return ErrProcessAlreadyResolved
	}

	consumer := NewConsumerClient(env, process.SendTo)
	if isSuccess {
		if err := env.AuthorizeAsCurrentContract(ledger.Invocation{
			Contract: process.SendTo,
			Function: FnCompletedSignature,
			Args:     []any{process.ID, *documentHash},
		}); err != nil {
			return err
		}
		if err := consumer.CompletedSignature(process.ID, *documentHash); err != nil {
			return err
		}
		process.Status = StatusCompleted
	} else {
		if err := env.AuthorizeAsCurrentContract(ledger.Invocation{
			Contract: process.SendTo,
			Function: FnFailedSignature,
			Args:     []any{process.ID},
		}); err != nil {
			return err
		}
		if err := consumer.FailedSignature(process.ID); err != nil {
			return err
		}
		process.Status = StatusFailed
	}
	if err := r.storeProcess(env, process); err != nil {
		return err
	}
	return env.Publish(NewSignatureResponseEvent(process.ID, oracleID, isSuccess))
}

// GetProcess returns the process registered under signaturitID.
func (r *Registry) GetProcess(env *ledger.Env, signaturitID string) (*Process, error) {
	process := new(Process)
	found, err := env.Get(processKey(signaturitID), process)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrProcessNotFound
	}
	return process, nil
}

// GetProcessByOracleID resolves the secondary index.
func (r *Registry) GetProcessByOracleID(env *ledger.Env, oracleID uint32) (*Process, error) {
	var signaturitID string
	found, err := env.Get(oracleProcessKey(oracleID), &signaturitID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrProcessNotFound
	}
	return r.GetProcess(env, signaturitID)
}

func (r *Registry) storeProcess(env *ledger.Env, process *Process) error {
	return r.setExtended(env, processKey(process.ID), process, r.cfg.ProcessTTL)
}

func (r *Registry) setExtended(env *ledger.Env, key dataKey, value any, ttl uint32) error {
	if err := env.Set(key, value); err != nil {
		return err
	}
	return env.Extend(key, ttl)
}
