package proofnote

import (
	"signescrow/core/ledger"
	"signescrow/core/types"
)

// Contract function names.
const (
	FnInitialize          = "initialize"
	FnMint                = "mint"
	FnTransferFrom        = "transfer_from"
	FnApprove             = "approve"
	FnSetApprovalForAll   = "set_approval_for_all"
	FnBalanceOf           = "balance_of"
	FnOwnerOf             = "owner_of"
	FnGetApproved         = "get_approved"
	FnIsApprovalForAll    = "is_approval_for_all"
	FnName                = "name"
	FnSymbol              = "symbol"
	FnTokenURI            = "token_uri"
	FnTotalSupply         = "total_supply"
	FnTokenByIndex        = "token_by_index"
	FnTokenOfOwnerByIndex = "token_of_owner_by_index"
)

// Config tunes the TTL bumps applied to persistent entries on write.
type Config struct {
	InstanceTTL uint32
	TokenTTL    uint32
}

// DefaultConfig returns the lifetimes used by the node genesis.
func DefaultConfig() Config {
	return Config{InstanceTTL: 10000, TokenTTL: 518400}
}

// Notes is the ERC-721 enumerable ledger of settlement proofs. The admin, the
// escrow contract, is the only minter.
type Notes struct {
	cfg Config
}

// New constructs the proof-note contract.
func New(cfg Config) *Notes {
	def := DefaultConfig()
	if cfg.InstanceTTL == 0 {
		cfg.InstanceTTL = def.InstanceTTL
	}
	if cfg.TokenTTL == 0 {
		cfg.TokenTTL = def.TokenTTL
	}
	return &Notes{cfg: cfg}
}

func (n *Notes) setPersistent(env *ledger.Env, key dataKey, value any) error {
	if err := env.Set(key, value); err != nil {
		return err
	}
	return env.Extend(key, n.cfg.TokenTTL)
}

// Initialize binds the escrow as admin and records the collection metadata.
func (n *Notes) Initialize(env *ledger.Env, escrow types.Principal, name, symbol string) error {
	exists, err := env.Has(adminKey())
	if err != nil {
		return err
	}
	if exists {
		return ErrAlreadyInit
	}
	writes := []struct {
		key   dataKey
		value any
	}{
		{adminKey(), escrow},
		{nameKey(), name},
		{symbolKey(), symbol},
		{counterKey(), uint32(0)},
		{ownedTokenIndicesKey(), []uint32{}},
	}
	for _, w := range writes {
		if err := env.Set(w.key, w.value); err != nil {
			return err
		}
		if err := env.Extend(w.key, n.cfg.InstanceTTL); err != nil {
			return err
		}
	}
	return env.Publish(NewInitializedEvent(escrow, name, symbol))
}

// Admin returns the minter.
func (n *Notes) Admin(env *ledger.Env) (types.Principal, error) {
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

// Mint issues the next token id to to with the document hash as its URI.
func (n *Notes) Mint(env *ledger.Env, to types.Principal, documentHash string) (uint32, error) {
	admin, err := n.Admin(env)
	if err != nil {
		return 0, err
	}
	if err := env.RequireAuth(admin); err != nil {
		return 0, err
	}
	var id uint32
	if _, err := env.Get(counterKey(), &id); err != nil {
		return 0, err
	}
	exists, err := env.Has(tokenOwnerKey(id))
	if err != nil {
		return 0, err
	}
	if exists {
		return 0, ErrTokenAlreadyExists
	}
	if err := n.setPersistent(env, tokenOwnerKey(id), to); err != nil {
		return 0, err
	}
	if err := n.setPersistent(env, uriKey(id), documentHash); err != nil {
		return 0, err
	}
	if err := n.appendGlobal(env, id); err != nil {
		return 0, err
	}
	if err := n.appendOwner(env, to, id); err != nil {
		return 0, err
	}
	if err := n.setPersistent(env, counterKey(), id+1); err != nil {
		return 0, err
	}
	if err := env.Publish(NewMintEvent(to, id)); err != nil {
		return 0, err
	}
	return id, nil
}

// TransferFrom moves token id from from to to on behalf of spender.
func (n *Notes) TransferFrom(env *ledger.Env, spender, from, to types.Principal, id uint32) error {
	if err := env.RequireAuth(spender); err != nil {
		return err
	}
	usedApproval := false
	if spender != from {
		approved, err := n.GetApproved(env, id)
		if err != nil {
			return err
		}
		switch {
		case approved != nil && *approved == spender:
			usedApproval = true
		default:
			isOperator, err := n.IsApprovalForAll(env, from, spender)
			if err != nil {
				return err
			}
			if !isOperator {
				return ErrNotAuthorized
			}
		}
	}
	owner, err := n.OwnerOf(env, id)
	if err != nil {
		return err
	}
	if owner != from {
		return ErrNotOwner
	}
	if usedApproval || from != to {
		if err := env.Remove(approvedKey(id)); err != nil {
			return err
		}
	}
	if from == to {
		return n.setPersistent(env, tokenOwnerKey(id), to)
	}
	if err := n.removeOwner(env, from, id); err != nil {
		return err
	}
	if err := n.appendOwner(env, to, id); err != nil {
		return err
	}
	if err := n.setPersistent(env, tokenOwnerKey(id), to); err != nil {
		return err
	}
	return env.Publish(NewTransferEvent(from, to, id))
}

// authorizeDelegation checks that caller may manage owner's delegations.
func (n *Notes) authorizeDelegation(env *ledger.Env, caller, owner types.Principal) error {
	if caller == owner {
		return env.RequireAuth(owner)
	}
	isOperator, err := n.IsApprovalForAll(env, owner, caller)
	if err != nil {
		return err
	}
	if !isOperator {
		return ErrNotAuthorized
	}
	return env.RequireAuth(caller)
}

// Approve sets or clears the per-token delegate. A set approval lives ttl
// ledgers.
func (n *Notes) Approve(env *ledger.Env, caller types.Principal, operator *types.Principal, id uint32, ttl uint32) error {
	owner, err := n.OwnerOf(env, id)
	if err != nil {
		return err
	}
	if err := n.authorizeDelegation(env, caller, owner); err != nil {
		return err
	}
	if operator == nil {
		return env.Remove(approvedKey(id))
	}
	if err := env.Set(approvedKey(id), *operator); err != nil {
		return err
	}
	if err := env.Extend(approvedKey(id), ttl); err != nil {
		return err
	}
	return env.Publish(NewApproveEvent(owner, *operator, id))
}

// SetApprovalForAll grants or revokes blanket delegation over owner's tokens.
func (n *Notes) SetApprovalForAll(env *ledger.Env, caller, owner, operator types.Principal, approved bool, ttl uint32) error {
	if err := n.authorizeDelegation(env, caller, owner); err != nil {
		return err
	}
	key := operatorKey(owner, operator)
	if approved {
		if err := env.Set(key, true); err != nil {
			return err
		}
		if err := env.Extend(key, ttl); err != nil {
			return err
		}
	} else if err := env.Remove(key); err != nil {
		return err
	}
	return env.Publish(NewApproveForAllEvent(owner, operator, approved))
}

// BalanceOf returns the number of tokens owned by owner.
func (n *Notes) BalanceOf(env *ledger.Env, owner types.Principal) (uint32, error) {
	return n.balance(env, owner)
}

// OwnerOf returns the owner of id or NotNFT.
func (n *Notes) OwnerOf(env *ledger.Env, id uint32) (types.Principal, error) {
	var owner types.Principal
	found, err := env.Get(tokenOwnerKey(id), &owner)
	if err != nil {
		return types.ZeroPrincipal, err
	}
	if !found {
		return types.ZeroPrincipal, ErrNotNFT
	}
	return owner, nil
}

// GetApproved returns the live per-token delegate, if any.
func (n *Notes) GetApproved(env *ledger.Env, id uint32) (*types.Principal, error) {
	var approved types.Principal
	found, err := env.Get(approvedKey(id), &approved)
	if err != nil || !found {
		return nil, err
	}
	return &approved, nil
}

// IsApprovalForAll reports whether operator holds a live blanket delegation.
func (n *Notes) IsApprovalForAll(env *ledger.Env, owner, operator types.Principal) (bool, error) {
	var approved bool
	found, err := env.Get(operatorKey(owner, operator), &approved)
	if err != nil {
		return false, err
	}
	return found && approved, nil
}

func (n *Notes) Name(env *ledger.Env) (string, error) {
	return n.instanceString(env, nameKey())
}

func (n *Notes) Symbol(env *ledger.Env) (string, error) {
	return n.instanceString(env, symbolKey())
}

func (n *Notes) instanceString(env *ledger.Env, key dataKey) (string, error) {
	var out string
	found, err := env.Get(key, &out)
	if err != nil {
		return "", err
	}
	if !found {
		return "", ErrNotInit
	}
	return out, nil
}

// TokenURI returns the document hash recorded at mint.
func (n *Notes) TokenURI(env *ledger.Env, id uint32) (string, error) {
	if _, err := n.OwnerOf(env, id); err != nil {
		return "", err
	}
	var uri string
	if _, err := env.Get(uriKey(id), &uri); err != nil {
		return "", err
	}
	return uri, nil
}

// TotalSupply is the length of the global list; transfers never change it.
func (n *Notes) TotalSupply(env *ledger.Env) (uint32, error) {
	list, err := n.globalTokens(env)
	if err != nil {
		return 0, err
	}
	return uint32(len(list)), nil
}

func (n *Notes) TokenByIndex(env *ledger.Env, index uint32) (uint32, error) {
	list, err := n.globalTokens(env)
	if err != nil {
		return 0, err
	}
	if int(index) >= len(list) {
		return 0, ErrOutOfBounds
	}
	return list[index], nil
}

func (n *Notes) TokenOfOwnerByIndex(env *ledger.Env, owner types.Principal, index uint32) (uint32, error) {
	list, err := n.ownerTokens(env, owner)
	if err != nil {
		return 0, err
	}
	if int(index) >= len(list) {
		return 0, ErrOutOfBounds
	}
	return list[index], nil
}
