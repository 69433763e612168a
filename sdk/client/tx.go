package client

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"signescrow/core/ledger"
	"signescrow/core/types"
	"signescrow/crypto"
)

// Cosigner authorizes a nested call made on behalf of its key.
type Cosigner struct {
	Key  *crypto.PrivateKey
	Call types.Call
}

// NewCall assembles a call from textual arguments.
func NewCall(contract types.Principal, function string, args ...string) types.Call {
	if args == nil {
		args = []string{}
	}
	return types.Call{Contract: contract, Function: function, Args: args}
}

// Signer builds, signs and submits envelopes for one key.
type Signer struct {
	client  *Client
	key     *crypto.PrivateKey
	mu      sync.Mutex
	network string
	nonce   uint64
	synced  bool
}

// NewSigner binds key to c.
func (c *Client) NewSigner(key *crypto.PrivateKey) *Signer {
	return &Signer{client: c, key: key}
}

// Address is the envelope source.
func (s *Signer) Address() types.Principal { return s.key.Principal() }

func (s *Signer) sync(ctx context.Context) error {
	if s.synced {
		return nil
	}
	info, err := s.client.Info(ctx)
	if err != nil {
		return err
	}
	nonce, err := s.client.Nonce(ctx, s.key.Principal())
	if err != nil {
		return err
	}
	s.network = info.Network
	s.nonce = nonce
	s.synced = true
	return nil
}

// Envelope returns a signed envelope for call using the next nonce. The nonce
// is only consumed once Submit succeeds.
func (s *Signer) Envelope(ctx context.Context, call types.Call, cosigners ...Cosigner) (*types.Envelope, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.envelope(ctx, call, cosigners)
}

func (s *Signer) envelope(ctx context.Context, call types.Call, cosigners []Cosigner) (*types.Envelope, error) {
	if err := s.sync(ctx); err != nil {
		return nil, err
	}
	env := &types.Envelope{
		Network: s.network,
		Source:  s.key.Principal(),
		Nonce:   s.nonce + 1,
		Call:    call,
	}
	for i, co := range cosigners {
		if co.Key == nil {
			return nil, fmt.Errorf("cosigner %d: key required", i)
		}
		if err := co.Key.AuthorizeCall(env, co.Call); err != nil {
			return nil, fmt.Errorf("cosigner %d: %w", i, err)
		}
	}
	if err := s.key.SignEnvelope(env); err != nil {
		return nil, err
	}
	return env, nil
}

// Submit signs and submits call. A nonce conflict resynchronizes the signer
// so the next call starts from the committed nonce.
func (s *Signer) Submit(ctx context.Context, call types.Call, cosigners ...Cosigner) (*ledger.Receipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	env, err := s.envelope(ctx, call, cosigners)
	if err != nil {
		return nil, err
	}
	receipt, err := s.client.Submit(ctx, env)
	if err != nil {
		var rpcErr *Error
		if errors.As(err, &rpcErr) && rpcErr.Code == CodeBadNonce {
			s.synced = false
		}
		return nil, err
	}
	s.nonce = env.Nonce
	return receipt, nil
}
