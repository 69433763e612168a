package asset

import (
	"fmt"
	"math/big"

	"signescrow/core/ledger"
	"signescrow/core/types"
)

// Transferer is the capability the escrow needs from an asset.
type Transferer interface {
	Transfer(env *ledger.Env, from, to types.Principal, amount *big.Int) error
	Balance(env *ledger.Env, account types.Principal) (*big.Int, error)
}

// Client performs typed cross-contract calls against a deployed asset.
type Client struct {
	env     *ledger.Env
	address types.Principal
}

// NewClient binds a client to the caller's environment.
func NewClient(env *ledger.Env, address types.Principal) *Client {
	return &Client{env: env, address: address}
}

// Address returns the bound asset principal.
func (c *Client) Address() types.Principal { return c.address }

func resolve(env *ledger.Env, address types.Principal) (Transferer, error) {
	impl, ok := env.Contract(address)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ledger.ErrContractNotFound, address)
	}
	asset, ok := impl.(Transferer)
	if !ok {
		return nil, fmt.Errorf("%w: %s is not an asset", ledger.ErrNotConsumer, address)
	}
	return asset, nil
}

func (c *Client) token() (*Token, error) {
	impl, ok := c.env.Contract(c.address)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ledger.ErrContractNotFound, c.address)
	}
	token, ok := impl.(*Token)
	if !ok {
		return nil, fmt.Errorf("%w: %s is not a token", ledger.ErrNotConsumer, c.address)
	}
	return token, nil
}

func (c *Client) Initialize(meta Metadata) error {
	return c.env.Call(c.address, FnInitialize, []any{meta.Admin, meta.Name, meta.Symbol, meta.Decimals}, func(callee *ledger.Env) error {
		token, err := c.token()
		if err != nil {
			return err
		}
		return token.Initialize(callee, meta)
	})
}

func (c *Client) Mint(to types.Principal, amount *big.Int) error {
	return c.env.Call(c.address, FnMint, []any{to, amount}, func(callee *ledger.Env) error {
		token, err := c.token()
		if err != nil {
			return err
		}
		return token.Mint(callee, to, amount)
	})
}

func (c *Client) Transfer(from, to types.Principal, amount *big.Int) error {
	return c.env.Call(c.address, FnTransfer, []any{from, to, amount}, func(callee *ledger.Env) error {
		asset, err := resolve(callee, c.address)
		if err != nil {
			return err
		}
		return asset.Transfer(callee, from, to, amount)
	})
}

func (c *Client) Balance(account types.Principal) (*big.Int, error) {
	var out *big.Int
	err := c.env.Call(c.address, FnBalance, []any{account}, func(callee *ledger.Env) error {
		asset, err := resolve(callee, c.address)
		if err != nil {
			return err
		}
		out, err = asset.Balance(callee, account)
		return err
	})
	return out, err
}

func (c *Client) Metadata() (*Metadata, error) {
	var out *Metadata
	err := c.env.Call(c.address, FnMetadata, nil, func(callee *ledger.Env) error {
		token, err := c.token()
		if err != nil {
			return err
		}
		out, err = token.Metadata(callee)
		return err
	})
	return out, err
}
