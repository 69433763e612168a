// core/genesis/loader.go
package genesis

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"signescrow/core/ledger"
	"signescrow/core/types"
	"signescrow/native/asset"
	"signescrow/native/escrow"
	"signescrow/native/oracle"
	"signescrow/native/proofnote"
)

// Contract names used to derive the deployed principals.
const (
	NameAsset     = "asset"
	NameProofNote = "proofnote"
	NameOracle    = "oracle"
	NameEscrow    = "escrow"
)

// Contracts holds the deployed principals.
type Contracts struct {
	Asset     types.Principal `json:"asset"`
	ProofNote types.Principal `json:"proofnote"`
	Oracle    types.Principal `json:"oracle"`
	Escrow    types.Principal `json:"escrow"`
}

// ByName returns the principal deployed under name.
func (c Contracts) ByName(name string) (types.Principal, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case NameAsset:
		return c.Asset, true
	case NameProofNote:
		return c.ProofNote, true
	case NameOracle:
		return c.Oracle, true
	case NameEscrow:
		return c.Escrow, true
	}
	return types.Principal{}, false
}

// ContractConfig carries the per-contract lifetime settings.
type ContractConfig struct {
	Asset     asset.Config
	ProofNote proofnote.Config
	Oracle    oracle.Config
	Escrow    escrow.Config
}

// DefaultContractConfig returns the lifetimes each contract uses by default.
func DefaultContractConfig() ContractConfig {
	return ContractConfig{
		Asset:     asset.DefaultConfig(),
		ProofNote: proofnote.DefaultConfig(),
		Oracle:    oracle.DefaultConfig(),
		Escrow:    escrow.DefaultConfig(),
	}
}

// Deploy registers the four contracts on l. It runs on every start since the
// contract code lives in the process.
func Deploy(l *ledger.Ledger, cfg ContractConfig) (*Contracts, error) {
	var (
		c   Contracts
		err error
	)
	for _, d := range []struct {
		name string
		impl any
		out  *types.Principal
	}{
		{NameAsset, asset.New(cfg.Asset), &c.Asset},
		{NameProofNote, proofnote.New(cfg.ProofNote), &c.ProofNote},
		{NameOracle, oracle.New(cfg.Oracle), &c.Oracle},
		{NameEscrow, escrow.New(cfg.Escrow), &c.Escrow},
	} {
		if *d.out, err = l.Deploy(d.name, d.impl); err != nil {
			return nil, fmt.Errorf("genesis: deploy %s: %w", d.name, err)
		}
	}
	return &c, nil
}

// Initialized reports whether the escrow bindings already exist.
func Initialized(ctx context.Context, l *ledger.Ledger, c *Contracts) (bool, error) {
	err := l.View(ctx, func(env *ledger.Env) error {
		_, err := escrow.NewClient(env, c.Escrow).Config()
		return err
	})
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, escrow.ErrNotInit):
		return false, nil
	default:
		return false, err
	}
}

// Apply initializes the contracts and credits the allocations. The asset setup
// runs as the asset admin; the bindings run as the oracle admin. Each step is
// skipped when an earlier run already committed it, so a start interrupted
// between the two transactions resumes on the next one.
func Apply(ctx context.Context, l *ledger.Ledger, c *Contracts, spec *Spec) error {
	if spec == nil {
		return fmt.Errorf("genesis spec must not be nil")
	}
	minted, err := assetInitialized(ctx, l, c)
	if err != nil {
		return fmt.Errorf("genesis: asset: %w", err)
	}
	if !minted {
		_, err = l.Execute(ctx, ledger.TxOptions{Source: spec.assetAdmin}, func(env *ledger.Env) error {
			token := asset.NewClient(env, c.Asset)
			if err := token.Initialize(asset.Metadata{
				Admin:    spec.assetAdmin,
				Name:     spec.Asset.Name,
				Symbol:   spec.Asset.Symbol,
				Decimals: spec.Asset.Decimals,
			}); err != nil {
				return err
			}
			for _, a := range spec.allocations {
				if err := token.Mint(a.account, a.amount); err != nil {
					return fmt.Errorf("alloc %s: %w", a.account, err)
				}
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("genesis: asset: %w", err)
		}
	}

	bound, err := Initialized(ctx, l, c)
	if err != nil {
		return fmt.Errorf("genesis: bindings: %w", err)
	}
	if bound {
		return nil
	}
	_, err = l.Execute(ctx, ledger.TxOptions{Source: spec.oracleAdmin}, func(env *ledger.Env) error {
		if err := oracle.NewClient(env, c.Oracle).Initialize(spec.oracleAdmin); err != nil {
			return err
		}
		if err := proofnote.NewClient(env, c.ProofNote).Initialize(c.Escrow, spec.Notes.Name, spec.Notes.Symbol); err != nil {
			return err
		}
		return escrow.NewClient(env, c.Escrow).Initialize(c.Asset, c.Oracle, c.ProofNote)
	})
	if err != nil {
		return fmt.Errorf("genesis: bindings: %w", err)
	}
	return nil
}

func assetInitialized(ctx context.Context, l *ledger.Ledger, c *Contracts) (bool, error) {
	err := l.View(ctx, func(env *ledger.Env) error {
		_, err := asset.NewClient(env, c.Asset).Metadata()
		return err
	})
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, asset.ErrNotInit):
		return false, nil
	default:
		return false, err
	}
}
