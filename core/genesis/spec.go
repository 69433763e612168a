// core/genesis/spec.go
package genesis

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"sort"
	"strings"

	"signescrow/config"
	"signescrow/core/types"
)

// Spec describes the state a fresh ledger starts from.
type Spec struct {
	Asset       AssetSpec         `json:"asset"`
	OracleAdmin string            `json:"oracleAdmin"`
	Notes       NotesSpec         `json:"notes"`
	Alloc       map[string]string `json:"alloc"` // addr -> amount

	assetAdmin  types.Principal
	oracleAdmin types.Principal
	allocations []allocation
}

type AssetSpec struct {
	Admin    string `json:"admin"`
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals uint32 `json:"decimals"`
}

type NotesSpec struct {
	Name   string `json:"name"`
	Symbol string `json:"symbol"`
}

type allocation struct {
	account types.Principal
	amount  *big.Int
}

// FromConfig builds the spec from the node configuration.
func FromConfig(g config.Genesis) (*Spec, error) {
	spec := &Spec{
		Asset: AssetSpec{
			Admin:    g.AssetAdmin,
			Name:     g.AssetName,
			Symbol:   g.AssetSymbol,
			Decimals: g.AssetDecimals,
		},
		OracleAdmin: g.OracleAdmin,
		Notes:       NotesSpec{Name: g.NotesName, Symbol: g.NotesSymbol},
		Alloc:       make(map[string]string, len(g.Allocations)),
	}
	for _, a := range g.Allocations {
		if _, dup := spec.Alloc[a.Address]; dup {
			return nil, fmt.Errorf("genesis: duplicate allocation for %s", a.Address)
		}
		spec.Alloc[a.Address] = a.Amount
	}
	if err := spec.validate(); err != nil {
		return nil, err
	}
	return spec, nil
}

// LoadSpec reads a JSON genesis file.
func LoadSpec(path string) (*Spec, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("genesis spec path must be provided")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read genesis spec %q: %w", path, err)
	}
	var spec Spec
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&spec); err != nil {
		return nil, fmt.Errorf("decode genesis spec %q: %w", path, err)
	}
	if err := spec.validate(); err != nil {
		return nil, err
	}
	return &spec, nil
}

func (s *Spec) validate() error {
	var err error
	if s.assetAdmin, err = types.ParsePrincipal(s.Asset.Admin); err != nil {
		return fmt.Errorf("genesis: asset admin: %w", err)
	}
	if s.oracleAdmin, err = types.ParsePrincipal(s.OracleAdmin); err != nil {
		return fmt.Errorf("genesis: oracle admin: %w", err)
	}
	if strings.TrimSpace(s.Asset.Symbol) == "" {
		return fmt.Errorf("genesis: asset symbol required")
	}

	addresses := make([]string, 0, len(s.Alloc))
	for addr := range s.Alloc {
		addresses = append(addresses, addr)
	}
	sort.Strings(addresses)
	s.allocations = s.allocations[:0]
	for _, addr := range addresses {
		account, err := types.ParsePrincipal(addr)
		if err != nil {
			return fmt.Errorf("genesis: alloc %q: %w", addr, err)
		}
		amount, err := types.ParseAmount(s.Alloc[addr])
		if err != nil {
			return fmt.Errorf("genesis: alloc %q: %w", addr, err)
		}
		if amount.Sign() < 0 {
			return fmt.Errorf("genesis: alloc %q: negative amount", addr)
		}
		s.allocations = append(s.allocations, allocation{account: account, amount: amount})
	}
	return nil
}

// AssetAdmin returns the parsed asset admin.
func (s *Spec) AssetAdmin() types.Principal { return s.assetAdmin }

// OracleAdminPrincipal returns the parsed oracle admin.
func (s *Spec) OracleAdminPrincipal() types.Principal { return s.oracleAdmin }
