package types

import (
	"crypto/ecdsa"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
)

// Call names a contract function together with its textual arguments. Arguments
// are decoded against the function's parameter list by the node dispatcher.
type Call struct {
	Contract Principal `json:"contract"`
	Function string    `json:"function"`
	Args     []string  `json:"args"`
}

// AuthEntry is a user authorization for one contract invocation, signed by the
// authorizing principal and bound to the enclosing envelope.
type AuthEntry struct {
	Address   Principal     `json:"address"`
	Call      Call          `json:"call"`
	Signature hexutil.Bytes `json:"signature"`
}

// Envelope is a signed transaction submitted to the node.
type Envelope struct {
	Network   string        `json:"network"`
	Source    Principal     `json:"source"`
	Nonce     uint64        `json:"nonce"`
	Call      Call          `json:"call"`
	Auth      []AuthEntry   `json:"auth,omitempty"`
	Signature hexutil.Bytes `json:"signature"`
}

var (
	errMissingSignature = errors.New("envelope: missing signature")
	errSignerMismatch   = errors.New("envelope: signature does not match principal")
)

type signedCall struct {
	Contract Principal
	Function string
	Args     []string
}

func (c Call) signed() signedCall {
	args := c.Args
	if args == nil {
		args = []string{}
	}
	return signedCall{Contract: c.Contract, Function: c.Function, Args: args}
}

// Hash is the digest signed by the envelope source.
func (e *Envelope) Hash() ([]byte, error) {
	payload := struct {
		Network string
		Source  Principal
		Nonce   uint64
		Call    signedCall
	}{e.Network, e.Source, e.Nonce, e.Call.signed()}
	encoded, err := rlp.EncodeToBytes(payload)
	if err != nil {
		return nil, err
	}
	return crypto.Keccak256(encoded), nil
}

// AuthHash is the digest an authorizing principal signs for entry. The envelope
// network, source and nonce are included so an entry cannot be replayed.
func (e *Envelope) AuthHash(entry AuthEntry) ([]byte, error) {
	payload := struct {
		Network string
		Source  Principal
		Nonce   uint64
		Address Principal
		Call    signedCall
	}{e.Network, e.Source, e.Nonce, entry.Address, entry.Call.signed()}
	encoded, err := rlp.EncodeToBytes(payload)
	if err != nil {
		return nil, err
	}
	return crypto.Keccak256(encoded), nil
}

// Sign sets the source signature.
func (e *Envelope) Sign(key *ecdsa.PrivateKey) error {
	hash, err := e.Hash()
	if err != nil {
		return err
	}
	sig, err := crypto.Sign(hash, key)
	if err != nil {
		return err
	}
	e.Signature = sig
	return nil
}

// Authorize appends an auth entry for call signed by key.
func (e *Envelope) Authorize(key *ecdsa.PrivateKey, call Call) error {
	address, err := AccountPrincipal(crypto.FromECDSAPub(&key.PublicKey))
	if err != nil {
		return err
	}
	entry := AuthEntry{Address: address, Call: call}
	hash, err := e.AuthHash(entry)
	if err != nil {
		return err
	}
	sig, err := crypto.Sign(hash, key)
	if err != nil {
		return err
	}
	entry.Signature = sig
	e.Auth = append(e.Auth, entry)
	return nil
}

// Verify checks the source signature and every auth entry signature.
func (e *Envelope) Verify() error {
	hash, err := e.Hash()
	if err != nil {
		return err
	}
	if err := verifySigner(hash, e.Signature, e.Source); err != nil {
		return fmt.Errorf("source: %w", err)
	}
	for i, entry := range e.Auth {
		authHash, err := e.AuthHash(entry)
		if err != nil {
			return err
		}
		if err := verifySigner(authHash, entry.Signature, entry.Address); err != nil {
			return fmt.Errorf("auth[%d]: %w", i, err)
		}
	}
	return nil
}

func verifySigner(hash, sig []byte, want Principal) error {
	if len(sig) != crypto.SignatureLength {
		return errMissingSignature
	}
	pub, err := crypto.Ecrecover(hash, sig)
	if err != nil {
		return err
	}
	got, err := AccountPrincipal(pub)
	if err != nil {
		return err
	}
	if got != want {
		return errSignerMismatch
	}
	return nil
}
