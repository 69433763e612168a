package asset

import (
	"math/big"

	"signescrow/core/ledger"
	"signescrow/core/types"
)

// Config tunes the TTL bumps applied on writes.
type Config struct {
	BalanceTTL uint32
}

// Token is a fungible asset with signed 128-bit amounts. It provides the
// Transfer capability consumed by the escrow.
type Token struct {
	cfg Config
}

// DefaultConfig extends balances for roughly thirty days of ledgers.
func DefaultConfig() Config {
	return Config{BalanceTTL: 518400}
}

// New constructs the token contract.
func New(cfg Config) *Token {
	if cfg.BalanceTTL == 0 {
		cfg.BalanceTTL = DefaultConfig().BalanceTTL
	}
	return &Token{cfg: cfg}
}

// Initialize binds the admin and metadata once.
func (t *Token) Initialize(env *ledger.Env, meta Metadata) error {
	exists, err := env.Has(metadataKey())
	if err != nil {
		return err
	}
	if exists {
		return ErrAlreadyInit
	}
	if err := env.Set(metadataKey(), &meta); err != nil {
		return err
	}
	return env.Extend(metadataKey(), t.cfg.BalanceTTL)
}

// Metadata returns the stored metadata.
func (t *Token) Metadata(env *ledger.Env) (*Metadata, error) {
	meta := new(Metadata)
	found, err := env.Get(metadataKey(), meta)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrNotInit
	}
	return meta, nil
}

// Mint credits amount to to. The admin must authorize.
func (t *Token) Mint(env *ledger.Env, to types.Principal, amount *big.Int) error {
	meta, err := t.Metadata(env)
	if err != nil {
		return err
	}
	if err := env.RequireAuth(meta.Admin); err != nil {
		return err
	}
	if !validAmount(amount) {
		return ErrInvalidAmount
	}
	balance, err := t.Balance(env, to)
	if err != nil {
		return err
	}
	next := new(big.Int).Add(balance, amount)
	if !types.FitsI128(next) {
		return ErrInvalidAmount
	}
	if err := t.writeBalance(env, to, next); err != nil {
		return err
	}
	return env.Publish(newMintEvent(meta.Admin, to, amount))
}

// Transfer moves amount from from to to. from must authorize this exact call.
func (t *Token) Transfer(env *ledger.Env, from, to types.Principal, amount *big.Int) error {
	if _, err := t.Metadata(env); err != nil {
		return err
	}
	if err := env.RequireAuth(from); err != nil {
		return err
	}
	if !validAmount(amount) {
		return ErrInvalidAmount
	}
	fromBalance, err := t.Balance(env, from)
	if err != nil {
		return err
	}
	if fromBalance.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	if from != to {
		toBalance, err := t.Balance(env, to)
		if err != nil {
			return err
		}
		credited := new(big.Int).Add(toBalance, amount)
		if !types.FitsI128(credited) {
			return ErrInvalidAmount
		}
		if err := t.writeBalance(env, from, new(big.Int).Sub(fromBalance, amount)); err != nil {
			return err
		}
		if err := t.writeBalance(env, to, credited); err != nil {
			return err
		}
	}
	return env.Publish(newTransferEvent(from, to, amount))
}

// Balance returns the balance of account; unknown accounts hold zero.
func (t *Token) Balance(env *ledger.Env, account types.Principal) (*big.Int, error) {
	balance := new(big.Int)
	found, err := env.Get(balanceKey(account), balance)
	if err != nil {
		return nil, err
	}
	if !found {
		return big.NewInt(0), nil
	}
	return balance, nil
}

func (t *Token) writeBalance(env *ledger.Env, account types.Principal, balance *big.Int) error {
	key := balanceKey(account)
	if err := env.Set(key, zeroIfNil(balance)); err != nil {
		return err
	}
	return env.Extend(key, t.cfg.BalanceTTL)
}

func validAmount(v *big.Int) bool {
	return v != nil && v.Sign() >= 0 && types.FitsI128(v)
}
