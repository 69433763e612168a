package proofnote

import (
	"fmt"

	"signescrow/core/ledger"
	"signescrow/core/types"
)

// Client performs typed cross-contract calls against a deployed proof-note
// ledger.
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

func (c *Client) call(function string, args []any, body func(*Notes, *ledger.Env) error) error {
	return c.env.Call(c.address, function, args, func(callee *ledger.Env) error {
		impl, ok := callee.Contract(c.address)
		if !ok {
			return fmt.Errorf("%w: %s", ledger.ErrContractNotFound, c.address)
		}
		notes, ok := impl.(*Notes)
		if !ok {
			return fmt.Errorf("%w: %s is not a proof-note ledger", ledger.ErrNotConsumer, c.address)
		}
		return body(notes, callee)
	})
}

// Initialize names the collection and binds its minting escrow.
func (c *Client) Initialize(escrow types.Principal, name, symbol string) error {
	return c.call(FnInitialize, []any{escrow, name, symbol}, func(n *Notes, env *ledger.Env) error {
		return n.Initialize(env, escrow, name, symbol)
	})
}

// Mint issues a note for documentHash to to.
func (c *Client) Mint(to types.Principal, documentHash string) (uint32, error) {
	var id uint32
	err := c.call(FnMint, []any{to, documentHash}, func(n *Notes, env *ledger.Env) error {
		var err error
		id, err = n.Mint(env, to, documentHash)
		return err
	})
	return id, err
}

// TransferFrom moves note id from from to to on behalf of spender.
func (c *Client) TransferFrom(spender, from, to types.Principal, id uint32) error {
	return c.call(FnTransferFrom, []any{spender, from, to, id}, func(n *Notes, env *ledger.Env) error {
		return n.TransferFrom(env, spender, from, to, id)
	})
}

// Approve grants or clears a single-use approval on note id.
func (c *Client) Approve(caller types.Principal, operator *types.Principal, id, ttl uint32) error {
	return c.call(FnApprove, []any{caller, operator, id, ttl}, func(n *Notes, env *ledger.Env) error {
		return n.Approve(env, caller, operator, id, ttl)
	})
}

// SetApprovalForAll grants or revokes an operator over all of owner's notes.
func (c *Client) SetApprovalForAll(caller, owner, operator types.Principal, approved bool, ttl uint32) error {
	return c.call(FnSetApprovalForAll, []any{caller, owner, operator, approved, ttl}, func(n *Notes, env *ledger.Env) error {
		return n.SetApprovalForAll(env, caller, owner, operator, approved, ttl)
	})
}

func (c *Client) BalanceOf(owner types.Principal) (uint32, error) {
	var out uint32
	err := c.call(FnBalanceOf, []any{owner}, func(n *Notes, env *ledger.Env) error {
		var err error
		out, err = n.BalanceOf(env, owner)
		return err
	})
	return out, err
}

func (c *Client) OwnerOf(id uint32) (types.Principal, error) {
	var out types.Principal
	err := c.call(FnOwnerOf, []any{id}, func(n *Notes, env *ledger.Env) error {
		var err error
		out, err = n.OwnerOf(env, id)
		return err
	})
	return out, err
}

func (c *Client) GetApproved(id uint32) (*types.Principal, error) {
	var out *types.Principal
	err := c.call(FnGetApproved, []any{id}, func(n *Notes, env *ledger.Env) error {
		var err error
		out, err = n.GetApproved(env, id)
		return err
	})
	return out, err
}

func (c *Client) IsApprovalForAll(owner, operator types.Principal) (bool, error) {
	var out bool
	err := c.call(FnIsApprovalForAll, []any{owner, operator}, func(n *Notes, env *ledger.Env) error {
		var err error
		out, err = n.IsApprovalForAll(env, owner, operator)
		return err
	})
	return out, err
}

func (c *Client) Name() (string, error) {
	var out string
	err := c.call(FnName, nil, func(n *Notes, env *ledger.Env) error {
		var err error
		out, err = n.Name(env)
		return err
	})
	return out, err
}

func (c *Client) Symbol() (string, error) {
	var out string
	err := c.call(FnSymbol, nil, func(n *Notes, env *ledger.Env) error {
		var err error
		out, err = n.Symbol(env)
		return err
	})
	return out, err
}

func (c *Client) TokenURI(id uint32) (string, error) {
	var out string
	err := c.call(FnTokenURI, []any{id}, func(n *Notes, env *ledger.Env) error {
		var err error
		out, err = n.TokenURI(env, id)
		return err
	})
	return out, err
}

func (c *Client) TotalSupply() (uint32, error) {
	var out uint32
	err := c.call(FnTotalSupply, nil, func(n *Notes, env *ledger.Env) error {
		var err error
		out, err = n.TotalSupply(env)
		return err
	})
	return out, err
}

// TokenByIndex returns the note at index in mint order.
func (c *Client) TokenByIndex(index uint32) (uint32, error) {
	var out uint32
	err := c.call(FnTokenByIndex, []any{index}, func(n *Notes, env *ledger.Env) error {
		var err error
		out, err = n.TokenByIndex(env, index)
		return err
	})
	return out, err
}

// TokenOfOwnerByIndex returns the note at index in owner's list.
func (c *Client) TokenOfOwnerByIndex(owner types.Principal, index uint32) (uint32, error) {
	var out uint32
	err := c.call(FnTokenOfOwnerByIndex, []any{owner, index}, func(n *Notes, env *ledger.Env) error {
		var err error
		out, err = n.TokenOfOwnerByIndex(env, owner, index)
		return err
	})
	return out, err
}
