package signrelay

import (
	"context"
	"errors"
	"strconv"
	"sync"

	coreerrors "signescrow/core/errors"
	"signescrow/core/genesis"
	"signescrow/core/types"
	"signescrow/crypto"
	"signescrow/native/oracle"
	"signescrow/sdk/client"
)

var (
	// ErrUnknownProcess reports a callback for a signature the oracle has
	// never registered.
	ErrUnknownProcess = errors.New("signrelay: unknown signature process")
	// ErrAlreadyResolved reports a process whose outcome is already recorded.
	ErrAlreadyResolved = errors.New("signrelay: process already resolved")
)

// Oracle is the relay's view of the on-ledger oracle registry.
type Oracle interface {
	Lookup(ctx context.Context, signatureID string) (*oracle.Process, error)
	Respond(ctx context.Context, oracleID uint32, success bool, documentHash *string) error
}

// NodeOracle reaches the oracle registry through a node's JSON-RPC endpoint
// and signs responses with the registry admin key.
type NodeOracle struct {
	client *client.Client
	signer *client.Signer

	mu       sync.Mutex
	contract types.Principal
}

// NewNodeOracle binds the admin key to a node client.
func NewNodeOracle(c *client.Client, admin *crypto.PrivateKey) *NodeOracle {
	return &NodeOracle{client: c, signer: c.NewSigner(admin)}
}

// Admin is the principal signing oracle responses.
func (o *NodeOracle) Admin() types.Principal { return o.signer.Address() }

func (o *NodeOracle) resolve(ctx context.Context) (types.Principal, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.contract.IsZero() {
		return o.contract, nil
	}
	info, err := o.client.Info(ctx)
	if err != nil {
		return types.Principal{}, err
	}
	o.contract = info.Contracts.Oracle
	return o.contract, nil
}

// Lookup returns the process registered for signatureID.
func (o *NodeOracle) Lookup(ctx context.Context, signatureID string) (*oracle.Process, error) {
	var process oracle.Process
	err := o.client.Query(ctx, genesis.NameOracle, oracle.FnGetProcess, []string{signatureID}, &process)
	if err != nil {
		if matchesCode(err, oracle.ErrProcessNotFound) {
			return nil, ErrUnknownProcess
		}
		return nil, err
	}
	return &process, nil
}

// Respond submits signature_response for oracleID.
func (o *NodeOracle) Respond(ctx context.Context, oracleID uint32, success bool, documentHash *string) error {
	contract, err := o.resolve(ctx)
	if err != nil {
		return err
	}
	hash := ""
	if documentHash != nil {
		hash = *documentHash
	}
	call := client.NewCall(contract, oracle.FnSignatureResponse,
		strconv.FormatUint(uint64(oracleID), 10), strconv.FormatBool(success), hash)
	if _, err := o.signer.Submit(ctx, call); err != nil {
		if matchesCode(err, oracle.ErrProcessAlreadyResolved) {
			return ErrAlreadyResolved
		}
		return err
	}
	return nil
}

func matchesCode(err error, want *coreerrors.Error) bool {
	data, ok := client.ContractError(err)
	if !ok {
		return false
	}
	return data.Module == want.Module && data.Code == want.Code
}
