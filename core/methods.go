package core

import (
	"errors"
	"fmt"
	"math/big"
	"sort"
	"strconv"
	"strings"

	"signescrow/core/genesis"
	"signescrow/core/ledger"
	"signescrow/core/types"
	"signescrow/native/asset"
	"signescrow/native/escrow"
	"signescrow/native/oracle"
	"signescrow/native/proofnote"
)

var (
	// ErrUnknownMethod is returned for calls outside the method table.
	ErrUnknownMethod = errors.New("core: unknown method")
	// ErrInvalidArgs wraps argument count and decoding failures.
	ErrInvalidArgs = errors.New("core: invalid arguments")
)

// ArgKind is the type of a textual call argument.
type ArgKind uint8

const (
	ArgAddress ArgKind = iota + 1
	ArgOptAddress
	ArgString
	ArgOptString
	ArgBool
	ArgU32
	ArgI128
)

func (k ArgKind) String() string {
	switch k {
	case ArgAddress:
		return "address"
	case ArgOptAddress:
		return "address?"
	case ArgString:
		return "string"
	case ArgOptString:
		return "string?"
	case ArgBool:
		return "bool"
	case ArgU32:
		return "u32"
	case ArgI128:
		return "i128"
	default:
		return "unknown"
	}
}

// Param names one argument of a method.
type Param struct {
	Name string  `json:"name"`
	Kind ArgKind `json:"-"`
}

type invokeFunc func(env *ledger.Env, c *genesis.Contracts, args []any) (any, error)

// Method is a contract function reachable through envelopes and queries.
type Method struct {
	Contract string
	Function string
	Params   []Param
	// Query marks functions that never write; they run through View.
	Query  bool
	invoke invokeFunc
}

// Name returns "contract.function".
func (m *Method) Name() string { return m.Contract + "." + m.Function }

// Usage renders the signature for help output.
func (m *Method) Usage() string {
	parts := make([]string, len(m.Params))
	for i, p := range m.Params {
		parts[i] = p.Name + " " + p.Kind.String()
	}
	return fmt.Sprintf("%s(%s)", m.Name(), strings.Join(parts, ", "))
}

// ParseArgs decodes raw against the method parameters.
func (m *Method) ParseArgs(raw []string) ([]any, error) {
	if len(raw) != len(m.Params) {
		return nil, fmt.Errorf("%w: %s: expected %d arguments, got %d", ErrInvalidArgs, m.Name(), len(m.Params), len(raw))
	}
	out := make([]any, len(raw))
	for i, p := range m.Params {
		v, err := parseArg(p.Kind, raw[i])
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %s: %v", ErrInvalidArgs, m.Name(), p.Name, err)
		}
		out[i] = v
	}
	return out, nil
}

// String arguments pass through byte for byte; an optional string is absent
// only when empty. Optional addresses are also absent as "none". Absent values
// stay typed so their canonical encoding matches the typed client call.
func parseArg(kind ArgKind, raw string) (any, error) {
	switch kind {
	case ArgString:
		return raw, nil
	case ArgOptString:
		if raw == "" {
			return (*string)(nil), nil
		}
		return &raw, nil
	}
	s := strings.TrimSpace(raw)
	absent := s == "" || strings.EqualFold(s, "none")
	switch kind {
	case ArgAddress:
		return types.ParsePrincipal(s)
	case ArgOptAddress:
		if absent {
			return (*types.Principal)(nil), nil
		}
		p, err := types.ParsePrincipal(s)
		if err != nil {
			return nil, err
		}
		return &p, nil
	case ArgBool:
		return strconv.ParseBool(s)
	case ArgU32:
		v, err := strconv.ParseUint(s, 10, 32)
		if err != nil {
			return nil, err
		}
		return uint32(v), nil
	case ArgI128:
		return types.ParseAmount(s)
	default:
		return nil, fmt.Errorf("unsupported argument kind %d", kind)
	}
}

// Methods indexes the method table by contract and function name.
type Methods struct {
	byName map[string]*Method
}

// DefaultMethods returns every exposed contract function.
func DefaultMethods() *Methods {
	m := &Methods{byName: make(map[string]*Method)}
	for _, method := range methodTable() {
		m.byName[method.Name()] = method
	}
	return m
}

// Lookup resolves contract.function.
func (m *Methods) Lookup(contract, function string) (*Method, error) {
	method, ok := m.byName[contract+"."+function]
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", ErrUnknownMethod, contract, function)
	}
	return method, nil
}

// List returns the methods sorted by name.
func (m *Methods) List() []*Method {
	out := make([]*Method, 0, len(m.byName))
	for _, method := range m.byName {
		out = append(out, method)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

func p(name string, kind ArgKind) Param { return Param{Name: name, Kind: kind} }

func addr(v any) types.Principal { return v.(types.Principal) }

func methodTable() []*Method {
	return []*Method{
		// asset
		{Contract: genesis.NameAsset, Function: asset.FnInitialize,
			Params: []Param{p("admin", ArgAddress), p("name", ArgString), p("symbol", ArgString), p("decimals", ArgU32)},
			invoke: func(env *ledger.Env, c *genesis.Contracts, a []any) (any, error) {
				return nil, asset.NewClient(env, c.Asset).Initialize(asset.Metadata{
					Admin: addr(a[0]), Name: a[1].(string), Symbol: a[2].(string), Decimals: a[3].(uint32),
				})
			}},
		{Contract: genesis.NameAsset, Function: asset.FnMint,
			Params: []Param{p("to", ArgAddress), p("amount", ArgI128)},
			invoke: func(env *ledger.Env, c *genesis.Contracts, a []any) (any, error) {
				return nil, asset.NewClient(env, c.Asset).Mint(addr(a[0]), a[1].(*big.Int))
			}},
		{Contract: genesis.NameAsset, Function: asset.FnTransfer,
			Params: []Param{p("from", ArgAddress), p("to", ArgAddress), p("amount", ArgI128)},
			invoke: func(env *ledger.Env, c *genesis.Contracts, a []any) (any, error) {
				return nil, asset.NewClient(env, c.Asset).Transfer(addr(a[0]), addr(a[1]), a[2].(*big.Int))
			}},
		{Contract: genesis.NameAsset, Function: asset.FnBalance, Query: true,
			Params: []Param{p("id", ArgAddress)},
			invoke: func(env *ledger.Env, c *genesis.Contracts, a []any) (any, error) {
				return asset.NewClient(env, c.Asset).Balance(addr(a[0]))
			}},
		{Contract: genesis.NameAsset, Function: asset.FnMetadata, Query: true,
			invoke: func(env *ledger.Env, c *genesis.Contracts, _ []any) (any, error) {
				return asset.NewClient(env, c.Asset).Metadata()
			}},

		// proof-notes
		{Contract: genesis.NameProofNote, Function: proofnote.FnInitialize,
			Params: []Param{p("escrow", ArgAddress), p("name", ArgString), p("symbol", ArgString)},
			invoke: func(env *ledger.Env, c *genesis.Contracts, a []any) (any, error) {
				return nil, proofnote.NewClient(env, c.ProofNote).Initialize(addr(a[0]), a[1].(string), a[2].(string))
			}},
		{Contract: genesis.NameProofNote, Function: proofnote.FnMint,
			Params: []Param{p("to", ArgAddress), p("document_hash", ArgString)},
			invoke: func(env *ledger.Env, c *genesis.Contracts, a []any) (any, error) {
				return proofnote.NewClient(env, c.ProofNote).Mint(addr(a[0]), a[1].(string))
			}},
		{Contract: genesis.NameProofNote, Function: proofnote.FnTransferFrom,
			Params: []Param{p("spender", ArgAddress), p("from", ArgAddress), p("to", ArgAddress), p("token_id", ArgU32)},
			invoke: func(env *ledger.Env, c *genesis.Contracts, a []any) (any, error) {
				return nil, proofnote.NewClient(env, c.ProofNote).TransferFrom(addr(a[0]), addr(a[1]), addr(a[2]), a[3].(uint32))
			}},
		{Contract: genesis.NameProofNote, Function: proofnote.FnApprove,
			Params: []Param{p("caller", ArgAddress), p("operator", ArgOptAddress), p("token_id", ArgU32), p("ttl", ArgU32)},
			invoke: func(env *ledger.Env, c *genesis.Contracts, a []any) (any, error) {
				return nil, proofnote.NewClient(env, c.ProofNote).Approve(addr(a[0]), a[1].(*types.Principal), a[2].(uint32), a[3].(uint32))
			}},
		{Contract: genesis.NameProofNote, Function: proofnote.FnSetApprovalForAll,
			Params: []Param{p("caller", ArgAddress), p("owner", ArgAddress), p("operator", ArgAddress), p("approved", ArgBool), p("ttl", ArgU32)},
			invoke: func(env *ledger.Env, c *genesis.Contracts, a []any) (any, error) {
				return nil, proofnote.NewClient(env, c.ProofNote).SetApprovalForAll(addr(a[0]), addr(a[1]), addr(a[2]), a[3].(bool), a[4].(uint32))
			}},
		{Contract: genesis.NameProofNote, Function: proofnote.FnBalanceOf, Query: true,
			Params: []Param{p("owner", ArgAddress)},
			invoke: func(env *ledger.Env, c *genesis.Contracts, a []any) (any, error) {
				return proofnote.NewClient(env, c.ProofNote).BalanceOf(addr(a[0]))
			}},
		{Contract: genesis.NameProofNote, Function: proofnote.FnOwnerOf, Query: true,
			Params: []Param{p("token_id", ArgU32)},
			invoke: func(env *ledger.Env, c *genesis.Contracts, a []any) (any, error) {
				return proofnote.NewClient(env, c.ProofNote).OwnerOf(a[0].(uint32))
			}},
		{Contract: genesis.NameProofNote, Function: proofnote.FnGetApproved, Query: true,
			Params: []Param{p("token_id", ArgU32)},
			invoke: func(env *ledger.Env, c *genesis.Contracts, a []any) (any, error) {
				return proofnote.NewClient(env, c.ProofNote).GetApproved(a[0].(uint32))
			}},
		{Contract: genesis.NameProofNote, Function: proofnote.FnIsApprovalForAll, Query: true,
			Params: []Param{p("owner", ArgAddress), p("operator", ArgAddress)},
			invoke: func(env *ledger.Env, c *genesis.Contracts, a []any) (any, error) {
				return proofnote.NewClient(env, c.ProofNote).IsApprovalForAll(addr(a[0]), addr(a[1]))
			}},
		{Contract: genesis.NameProofNote, Function: proofnote.FnName, Query: true,
			invoke: func(env *ledger.Env, c *genesis.Contracts, _ []any) (any, error) {
				return proofnote.NewClient(env, c.ProofNote).Name()
			}},
		{Contract: genesis.NameProofNote, Function: proofnote.FnSymbol, Query: true,
			invoke: func(env *ledger.Env, c *genesis.Contracts, _ []any) (any, error) {
				return proofnote.NewClient(env, c.ProofNote).Symbol()
			}},
		{Contract: genesis.NameProofNote, Function: proofnote.FnTokenURI, Query: true,
			Params: []Param{p("token_id", ArgU32)},
			invoke: func(env *ledger.Env, c *genesis.Contracts, a []any) (any, error) {
				return proofnote.NewClient(env, c.ProofNote).TokenURI(a[0].(uint32))
			}},
		{Contract: genesis.NameProofNote, Function: proofnote.FnTotalSupply, Query: true,
			invoke: func(env *ledger.Env, c *genesis.Contracts, _ []any) (any, error) {
				return proofnote.NewClient(env, c.ProofNote).TotalSupply()
			}},
		{Contract: genesis.NameProofNote, Function: proofnote.FnTokenByIndex, Query: true,
			Params: []Param{p("index", ArgU32)},
			invoke: func(env *ledger.Env, c *genesis.Contracts, a []any) (any, error) {
				return proofnote.NewClient(env, c.ProofNote).TokenByIndex(a[0].(uint32))
			}},
		{Contract: genesis.NameProofNote, Function: proofnote.FnTokenOfOwnerByIndex, Query: true,
			Params: []Param{p("owner", ArgAddress), p("index", ArgU32)},
			invoke: func(env *ledger.Env, c *genesis.Contracts, a []any) (any, error) {
				return proofnote.NewClient(env, c.ProofNote).TokenOfOwnerByIndex(addr(a[0]), a[1].(uint32))
			}},

		// oracle
		{Contract: genesis.NameOracle, Function: oracle.FnInitialize,
			Params: []Param{p("admin", ArgAddress)},
			invoke: func(env *ledger.Env, c *genesis.Contracts, a []any) (any, error) {
				return nil, oracle.NewClient(env, c.Oracle).Initialize(addr(a[0]))
			}},
		{Contract: genesis.NameOracle, Function: oracle.FnRegisterNewSignatureProcess,
			Params: []Param{p("caller", ArgAddress), p("signaturit_id", ArgString)},
			invoke: func(env *ledger.Env, c *genesis.Contracts, a []any) (any, error) {
				return oracle.NewClient(env, c.Oracle).RegisterNewSignatureProcess(addr(a[0]), a[1].(string))
			}},
		{Contract: genesis.NameOracle, Function: oracle.FnSignatureResponse,
			Params: []Param{p("oracle_id", ArgU32), p("is_success", ArgBool), p("document_hash", ArgOptString)},
			invoke: func(env *ledger.Env, c *genesis.Contracts, a []any) (any, error) {
				return nil, oracle.NewClient(env, c.Oracle).SignatureResponse(a[0].(uint32), a[1].(bool), a[2].(*string))
			}},
		{Contract: genesis.NameOracle, Function: oracle.FnGetProcess, Query: true,
			Params: []Param{p("signaturit_id", ArgString)},
			invoke: func(env *ledger.Env, c *genesis.Contracts, a []any) (any, error) {
				return oracle.NewClient(env, c.Oracle).GetProcess(a[0].(string))
			}},
		{Contract: genesis.NameOracle, Function: oracle.FnGetProcessByOracleID, Query: true,
			Params: []Param{p("oracle_id", ArgU32)},
			invoke: func(env *ledger.Env, c *genesis.Contracts, a []any) (any, error) {
				return oracle.NewClient(env, c.Oracle).GetProcessByOracleID(a[0].(uint32))
			}},
		{Contract: genesis.NameOracle, Function: oracle.FnAdmin, Query: true,
			invoke: func(env *ledger.Env, c *genesis.Contracts, _ []any) (any, error) {
				return oracle.NewClient(env, c.Oracle).Admin()
			}},
		{Contract: genesis.NameOracle, Function: oracle.FnRegisterCounter, Query: true,
			invoke: func(env *ledger.Env, c *genesis.Contracts, _ []any) (any, error) {
				return oracle.NewClient(env, c.Oracle).RegisterCounter()
			}},

		// escrow
		{Contract: genesis.NameEscrow, Function: escrow.FnInitialize,
			Params: []Param{p("asset", ArgAddress), p("oracle", ArgAddress), p("nft_notes", ArgAddress)},
			invoke: func(env *ledger.Env, c *genesis.Contracts, a []any) (any, error) {
				return nil, escrow.NewClient(env, c.Escrow).Initialize(addr(a[0]), addr(a[1]), addr(a[2]))
			}},
		{Contract: genesis.NameEscrow, Function: escrow.FnAddProposal,
			Params: []Param{p("proposal_id", ArgString), p("proposer", ArgAddress), p("min_funds", ArgI128)},
			invoke: func(env *ledger.Env, c *genesis.Contracts, a []any) (any, error) {
				return nil, escrow.NewClient(env, c.Escrow).AddProposal(a[0].(string), addr(a[1]), a[2].(*big.Int))
			}},
		{Contract: genesis.NameEscrow, Function: escrow.FnRegisterEscrow,
			Params: []Param{p("proposal_id", ArgString), p("signaturit_id", ArgString), p("sender", ArgAddress), p("funds", ArgI128)},
			invoke: func(env *ledger.Env, c *genesis.Contracts, a []any) (any, error) {
				return nil, escrow.NewClient(env, c.Escrow).RegisterEscrow(a[0].(string), a[1].(string), addr(a[2]), a[3].(*big.Int))
			}},
		{Contract: genesis.NameEscrow, Function: escrow.FnCompletedSignature,
			Params: []Param{p("signaturit_id", ArgString), p("document_hash", ArgString)},
			invoke: func(env *ledger.Env, c *genesis.Contracts, a []any) (any, error) {
				return nil, escrow.NewClient(env, c.Escrow).CompletedSignature(a[0].(string), a[1].(string))
			}},
		{Contract: genesis.NameEscrow, Function: escrow.FnFailedSignature,
			Params: []Param{p("signaturit_id", ArgString)},
			invoke: func(env *ledger.Env, c *genesis.Contracts, a []any) (any, error) {
				return nil, escrow.NewClient(env, c.Escrow).FailedSignature(a[0].(string))
			}},
		{Contract: genesis.NameEscrow, Function: escrow.FnGetProposal, Query: true,
			Params: []Param{p("proposal_id", ArgString)},
			invoke: func(env *ledger.Env, c *genesis.Contracts, a []any) (any, error) {
				return escrow.NewClient(env, c.Escrow).GetProposal(a[0].(string))
			}},
		{Contract: genesis.NameEscrow, Function: escrow.FnGetSignatureProcess, Query: true,
			Params: []Param{p("signaturit_id", ArgString)},
			invoke: func(env *ledger.Env, c *genesis.Contracts, a []any) (any, error) {
				return escrow.NewClient(env, c.Escrow).GetSignatureProcess(a[0].(string))
			}},
		{Contract: genesis.NameEscrow, Function: escrow.FnConfig, Query: true,
			invoke: func(env *ledger.Env, c *genesis.Contracts, _ []any) (any, error) {
				return escrow.NewClient(env, c.Escrow).Config()
			}},
	}
}
