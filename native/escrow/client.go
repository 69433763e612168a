package escrow

import (
	"fmt"
	"math/big"

	"signescrow/core/ledger"
	"signescrow/core/types"
)

// Client performs typed calls against a deployed escrow engine.
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

func (c *Client) call(function string, args []any, body func(*Engine, *ledger.Env) error) error {
	return c.env.Call(c.address, function, args, func(callee *ledger.Env) error {
		impl, ok := callee.Contract(c.address)
		if !ok {
			return fmt.Errorf("%w: %s", ledger.ErrContractNotFound, c.address)
		}
		engine, ok := impl.(*Engine)
		if !ok {
			return fmt.Errorf("%w: %s is not an escrow", ledger.ErrNotConsumer, c.address)
		}
		return body(engine, callee)
	})
}

// Initialize binds the asset, oracle and proof-note contracts once.
func (c *Client) Initialize(assetAddr, oracleAddr, notesAddr types.Principal) error {
	return c.call(FnInitialize, []any{assetAddr, oracleAddr, notesAddr}, func(e *Engine, env *ledger.Env) error {
		return e.Initialize(env, assetAddr, oracleAddr, notesAddr)
	})
}

// AddProposal publishes a proposal that buyers can pick.
func (c *Client) AddProposal(proposalID string, proposer types.Principal, minFunds *big.Int) error {
	if minFunds == nil {
		return ErrInvalidAmount
	}
	return c.call(FnAddProposal, []any{proposalID, proposer, minFunds}, func(e *Engine, env *ledger.Env) error {
		return e.AddProposal(env, proposalID, proposer, minFunds)
	})
}

// RegisterEscrow picks a proposal and locks the sender's funds.
func (c *Client) RegisterEscrow(proposalID, signaturitID string, sender types.Principal, funds *big.Int) error {
	if funds == nil {
		return ErrInvalidAmount
	}
	return c.call(FnRegisterEscrow, []any{proposalID, signaturitID, sender, funds}, func(e *Engine, env *ledger.Env) error {
		return e.RegisterEscrow(env, proposalID, signaturitID, sender, funds)
	})
}

// CompletedSignature is the oracle callback for a signed document.
func (c *Client) CompletedSignature(signaturitID, documentHash string) error {
	return c.call(FnCompletedSignature, []any{signaturitID, documentHash}, func(e *Engine, env *ledger.Env) error {
		return e.CompletedSignature(env, signaturitID, documentHash)
	})
}

// FailedSignature is the oracle callback that refunds the buyer.
func (c *Client) FailedSignature(signaturitID string) error {
	return c.call(FnFailedSignature, []any{signaturitID}, func(e *Engine, env *ledger.Env) error {
		return e.FailedSignature(env, signaturitID)
	})
}

// GetProposal reads a proposal by id.
func (c *Client) GetProposal(proposalID string) (*Proposal, error) {
	var out *Proposal
	err := c.call(FnGetProposal, []any{proposalID}, func(e *Engine, env *ledger.Env) error {
		var err error
		out, err = e.GetProposal(env, proposalID)
		return err
	})
	return out, err
}

// GetSignatureProcess reads a signature process by id.
func (c *Client) GetSignatureProcess(signaturitID string) (*SignatureProcess, error) {
	var out *SignatureProcess
	err := c.call(FnGetSignatureProcess, []any{signaturitID}, func(e *Engine, env *ledger.Env) error {
		var err error
		out, err = e.GetSignatureProcess(env, signaturitID)
		return err
	})
	return out, err
}

// Config returns the contract bindings.
func (c *Client) Config() (*Bindings, error) {
	var out *Bindings
	err := c.call(FnConfig, nil, func(e *Engine, env *ledger.Env) error {
		var err error
		out, err = e.Config(env)
		return err
	})
	return out, err
}
