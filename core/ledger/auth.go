package ledger

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"signescrow/core/types"
)

// Invocation pins a contract function together with its exact arguments.
type Invocation struct {
	Contract types.Principal
	Function string
	Args     []any
}

func (inv Invocation) String() string {
	canon, err := EncodeArgs(inv.Args)
	if err != nil {
		canon = "<invalid>"
	}
	return fmt.Sprintf("%s.%s(%s)", inv.Contract, inv.Function, canon)
}

// Authorization is a one-shot consent by Address for Invocation.
type Authorization struct {
	Address    types.Principal
	Invocation Invocation
}

type authSlot struct {
	address  types.Principal
	contract types.Principal
	function string
	args     string
	used     bool
}

func newAuthSlot(address types.Principal, inv Invocation) (*authSlot, error) {
	canon, err := EncodeArgs(inv.Args)
	if err != nil {
		return nil, err
	}
	return &authSlot{
		address:  address,
		contract: inv.Contract,
		function: inv.Function,
		args:     canon,
	}, nil
}

func (s *authSlot) matches(address types.Principal, f *frame) bool {
	return !s.used &&
		s.address == address &&
		s.contract == f.contract &&
		s.function == f.function &&
		s.args == f.args
}

// EncodeArgs renders an argument tuple canonically so pinned authorizations can
// be compared against the arguments of the actual call.
func EncodeArgs(args []any) (string, error) {
	parts := make([]string, len(args))
	for i, arg := range args {
		part, err := encodeArg(arg)
		if err != nil {
			return "", fmt.Errorf("arg %d: %w", i, err)
		}
		parts[i] = part
	}
	return strings.Join(parts, ","), nil
}

func encodeArg(arg any) (string, error) {
	switch v := arg.(type) {
	case nil:
		return "void", nil
	case types.Principal:
		return "addr:" + v.Hex(), nil
	case *types.Principal:
		if v == nil {
			return "none", nil
		}
		return "some(addr:" + v.Hex() + ")", nil
	case string:
		return "str:" + strconv.Quote(v), nil
	case *string:
		if v == nil {
			return "none", nil
		}
		return "some(str:" + strconv.Quote(*v) + ")", nil
	case bool:
		return "bool:" + strconv.FormatBool(v), nil
	case uint32:
		return "u32:" + strconv.FormatUint(uint64(v), 10), nil
	case uint64:
		return "u64:" + strconv.FormatUint(v, 10), nil
	case int64:
		return "i64:" + strconv.FormatInt(v, 10), nil
	case *big.Int:
		if v == nil {
			return "", fmt.Errorf("%w: nil integer", ErrUnsupportedArg)
		}
		return "i128:" + v.String(), nil
	case []byte:
		return "bytes:" + strconv.Quote(string(v)), nil
	default:
		return "", fmt.Errorf("%w: %T", ErrUnsupportedArg, arg)
	}
}

// RequireAuth consumes an authorization by address for the current frame's
// invocation. The transaction source is implicitly authorized for the root
// invocation; every other consent must have been supplied with the transaction
// or granted by a contract through AuthorizeAsCurrentContract.
func (e *Env) RequireAuth(address types.Principal) error {
	f := e.frame
	if f == nil {
		return ErrNoFrame
	}
	if f.depth == 1 && address == e.tx.source {
		return nil
	}
	for _, slot := range e.tx.userAuths {
		if slot.matches(address, f) {
			slot.used = true
			return nil
		}
	}
	for _, slot := range e.tx.selfAuths {
		if slot.matches(address, f) {
			slot.used = true
			return nil
		}
	}
	return fmt.Errorf("%w: %s for %s.%s", ErrNotAuthorized, address, e.tx.ledger.contractName(f.contract), f.function)
}

// AuthorizeAsCurrentContract grants one-shot consent from the current contract
// for each invocation. The consent is discharged by the first matching
// RequireAuth and never outlives the transaction.
func (e *Env) AuthorizeAsCurrentContract(invocations ...Invocation) error {
	if e.frame == nil {
		return ErrNoFrame
	}
	for _, inv := range invocations {
		slot, err := newAuthSlot(e.frame.contract, inv)
		if err != nil {
			return err
		}
		e.tx.selfAuths = append(e.tx.selfAuths, slot)
	}
	return nil
}
