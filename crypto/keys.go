package crypto

import (
	"crypto/ecdsa"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"

	"signescrow/core/types"
)

// PrivateKey is a secp256k1 signing key.
type PrivateKey struct {
	*ecdsa.PrivateKey
}

func GeneratePrivateKey() (*PrivateKey, error) {
	key, err := ecdsa.GenerateKey(crypto.S256(), rand.Reader)
	if err != nil {
		return nil, err
	}
	return &PrivateKey{key}, nil
}

// Bytes returns the 32-byte scalar.
func (k *PrivateKey) Bytes() []byte {
	return crypto.FromECDSA(k.PrivateKey)
}

// PublicBytes returns the uncompressed public key.
func (k *PrivateKey) PublicBytes() []byte {
	return crypto.FromECDSAPub(&k.PrivateKey.PublicKey)
}

// Principal returns the account principal controlled by the key.
func (k *PrivateKey) Principal() types.Principal {
	p, err := types.AccountPrincipal(k.PublicBytes())
	if err != nil {
		// A well-formed ecdsa key always yields a 65-byte public key.
		panic(err)
	}
	return p
}

// SignEnvelope stamps the source signature on env. The envelope source must be
// the key's principal.
func (k *PrivateKey) SignEnvelope(env *types.Envelope) error {
	if env.Source != k.Principal() {
		return fmt.Errorf("crypto: envelope source %s is not %s", env.Source, k.Principal())
	}
	return env.Sign(k.PrivateKey)
}

// AuthorizeCall appends a signed authorization for call to env.
func (k *PrivateKey) AuthorizeCall(env *types.Envelope, call types.Call) error {
	return env.Authorize(k.PrivateKey, call)
}

func PrivateKeyFromBytes(b []byte) (*PrivateKey, error) {
	key, err := crypto.ToECDSA(b)
	if err != nil {
		return nil, err
	}
	return &PrivateKey{key}, nil
}

// PrivateKeyFromHex parses a hex scalar with or without the 0x prefix.
func PrivateKeyFromHex(s string) (*PrivateKey, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(s), "0x"))
	if err != nil {
		return nil, fmt.Errorf("crypto: decode key: %w", err)
	}
	return PrivateKeyFromBytes(raw)
}
