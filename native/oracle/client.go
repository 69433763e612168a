package oracle

import (
	"fmt"

	"signescrow/core/ledger"
	"signescrow/core/types"
)

// Consumer is the capability a registrant implements to receive outcomes.
type Consumer interface {
	CompletedSignature(env *ledger.Env, signaturitID, documentHash string) error
	FailedSignature(env *ledger.Env, signaturitID string) error
}

// ConsumerClient dispatches callbacks to whichever contract registered a
// process.
type ConsumerClient struct {
	env     *ledger.Env
	address types.Principal
}

// NewConsumerClient binds a callback client to a registrant.
func NewConsumerClient(env *ledger.Env, address types.Principal) *ConsumerClient {
	return &ConsumerClient{env: env, address: address}
}

func (c *ConsumerClient) call(function string, args []any, body func(Consumer, *ledger.Env) error) error {
	return c.env.Call(c.address, function, args, func(callee *ledger.Env) error {
		impl, ok := callee.Contract(c.address)
		if !ok {
			return fmt.Errorf("%w: %s", ledger.ErrContractNotFound, c.address)
		}
		consumer, ok := impl.(Consumer)
		if !ok {
			return fmt.Errorf("%w: %s cannot receive signature outcomes", ledger.ErrNotConsumer, c.address)
		}
		return body(consumer, callee)
	})
}

// CompletedSignature notifies the registrant that the document was signed.
func (c *ConsumerClient) CompletedSignature(signaturitID, documentHash string) error {
	return c.call(FnCompletedSignature, []any{signaturitID, documentHash}, func(consumer Consumer, env *ledger.Env) error {
		return consumer.CompletedSignature(env, signaturitID, documentHash)
	})
}

// FailedSignature notifies the registrant that the signature failed.
func (c *ConsumerClient) FailedSignature(signaturitID string) error {
	return c.call(FnFailedSignature, []any{signaturitID}, func(consumer Consumer, env *ledger.Env) error {
		return consumer.FailedSignature(env, signaturitID)
	})
}

// Client performs typed calls against a deployed oracle registry.
type Client struct {
	env     *ledger.Env
	address types.Principal
}

// NewClient binds a client to the caller's environment.
func NewClient(env *ledger.Env, address types.Principal) *Client {
	return &Client{env: env, address: address}
}

// Address returns the bound contract principal.
func (c *Client) Address() types.Principal { return c.address }

func (c *Client) call(function string, args []any, body func(*Registry, *ledger.Env) error) error {
	return c.env.Call(c.address, function, args, func(callee *ledger.Env) error {
		impl, ok := callee.Contract(c.address)
		if !ok {
			return fmt.Errorf("%w: %s", ledger.ErrContractNotFound, c.address)
		}
		registry, ok := impl.(*Registry)
		if !ok {
			return fmt.Errorf("%w: %s is not an oracle", ledger.ErrNotConsumer, c.address)
		}
		return body(registry, callee)
	})
}

// Initialize sets the oracle admin once.
func (c *Client) Initialize(admin types.Principal) error {
	return c.call(FnInitialize, []any{admin}, func(r *Registry, env *ledger.Env) error {
		return r.Initialize(env, admin)
	})
}

// RegisterNewSignatureProcess records a process for caller and returns its oracle id.
func (c *Client) RegisterNewSignatureProcess(caller types.Principal, signaturitID string) (uint32, error) {
	var out uint32
	err := c.call(FnRegisterNewSignatureProcess, []any{caller, signaturitID}, func(r *Registry, env *ledger.Env) error {
		var err error
		out, err = r.RegisterNewSignatureProcess(env, caller, signaturitID)
		return err
	})
	return out, err
}

// SignatureResponse resolves a pending process and calls back its registrant.
func (c *Client) SignatureResponse(oracleID uint32, isSuccess bool, documentHash *string) error {
	return c.call(FnSignatureResponse, []any{oracleID, isSuccess, documentHash}, func(r *Registry, env *ledger.Env) error {
		return r.SignatureResponse(env, oracleID, isSuccess, documentHash)
	})
}

// GetProcess looks a process up by signature id.
func (c *Client) GetProcess(signaturitID string) (*Process, error) {
	var out *Process
	err := c.call(FnGetProcess, []any{signaturitID}, func(r *Registry, env *ledger.Env) error {
		var err error
		out, err = r.GetProcess(env, signaturitID)
		return err
	})
	return out, err
}

// GetProcessByOracleID looks a process up by oracle id.
func (c *Client) GetProcessByOracleID(oracleID uint32) (*Process, error) {
	var out *Process
	err := c.call(FnGetProcessByOracleID, []any{oracleID}, func(r *Registry, env *ledger.Env) error {
		var err error
		out, err = r.GetProcessByOracleID(env, oracleID)
		return err
	})
	return out, err
}

// Admin returns the principal allowed to submit responses.
func (c *Client) Admin() (types.Principal, error) {
	var out types.Principal
	err := c.call(FnAdmin, nil, func(r *Registry, env *ledger.Env) error {
		var err error
		out, err = r.Admin(env)
		return err
	})
	return out, err
}

// RegisterCounter returns the next oracle id.
func (c *Client) RegisterCounter() (uint32, error) {
	var out uint32
	err := c.call(FnRegisterCounter, nil, func(r *Registry, env *ledger.Env) error {
		var err error
		out, err = r.RegisterCounter(env)
		return err
	})
	return out, err
}
