package types

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/btcsuite/btcutil/bech32"
	"github.com/ethereum/go-ethereum/crypto"
)

// PrincipalPrefix is the human-readable part used when rendering principals.
const PrincipalPrefix = "se"

// PrincipalLength is the size in bytes of every principal.
const PrincipalLength = 32

// Principal is an opaque 32-byte identity shared by accounts and contracts.
type Principal [PrincipalLength]byte

// ZeroPrincipal is the unset principal.
var ZeroPrincipal Principal

// ContractPrincipal derives the deterministic principal of a deployed contract.
func ContractPrincipal(name string) Principal {
	var p Principal
	copy(p[:], crypto.Keccak256([]byte("contract:"+name)))
	return p
}

// AccountPrincipal derives the principal controlled by an uncompressed secp256k1
// public key (65 bytes with the 0x04 prefix, or the 64 byte body).
func AccountPrincipal(pub []byte) (Principal, error) {
	switch len(pub) {
	case 65:
		pub = pub[1:]
	case 64:
	default:
		return ZeroPrincipal, fmt.Errorf("principal: unexpected public key length %d", len(pub))
	}
	var p Principal
	copy(p[:], crypto.Keccak256(pub))
	return p, nil
}

// PrincipalFromBytes copies b into a principal.
func PrincipalFromBytes(b []byte) (Principal, error) {
	if len(b) != PrincipalLength {
		return ZeroPrincipal, fmt.Errorf("principal: expected %d bytes, got %d", PrincipalLength, len(b))
	}
	var p Principal
	copy(p[:], b)
	return p, nil
}

// ParsePrincipal accepts the bech32 rendering or a 0x-prefixed hex string.
func ParsePrincipal(s string) (Principal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return ZeroPrincipal, fmt.Errorf("principal: empty string")
	}
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		raw, err := hex.DecodeString(s[2:])
		if err != nil {
			return ZeroPrincipal, fmt.Errorf("principal: invalid hex: %w", err)
		}
		return PrincipalFromBytes(raw)
	}
	hrp, data, err := bech32.Decode(s)
	if err != nil {
		return ZeroPrincipal, fmt.Errorf("principal: invalid bech32 string: %w", err)
	}
	if hrp != PrincipalPrefix {
		return ZeroPrincipal, fmt.Errorf("principal: unexpected prefix %q", hrp)
	}
	conv, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		return ZeroPrincipal, fmt.Errorf("principal: error converting bits: %w", err)
	}
	return PrincipalFromBytes(conv)
}

// MustParsePrincipal is ParsePrincipal for constants and tests.
func MustParsePrincipal(s string) Principal {
	p, err := ParsePrincipal(s)
	if err != nil {
		panic(err)
	}
	return p
}

func (p Principal) String() string {
	conv, err := bech32.ConvertBits(p[:], 8, 5, true)
	if err != nil {
		panic(err)
	}
	encoded, err := bech32.Encode(PrincipalPrefix, conv)
	if err != nil {
		panic(err)
	}
	return encoded
}

// Hex returns the 0x-prefixed hex form.
func (p Principal) Hex() string {
	return "0x" + hex.EncodeToString(p[:])
}

func (p Principal) Bytes() []byte {
	out := make([]byte, PrincipalLength)
	copy(out, p[:])
	return out
}

func (p Principal) IsZero() bool {
	return p == ZeroPrincipal
}

// Compare orders principals bytewise.
func (p Principal) Compare(other Principal) int {
	return bytes.Compare(p[:], other[:])
}

// MarshalText renders the bech32 form for JSON, TOML and YAML.
func (p Principal) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText parses either rendering accepted by ParsePrincipal.
func (p *Principal) UnmarshalText(text []byte) error {
	parsed, err := ParsePrincipal(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
