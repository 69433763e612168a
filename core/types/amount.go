package types

import (
	"fmt"
	"math/big"
	"strings"
)

var (
	// MaxI128 is the largest signed 128-bit value.
	MaxI128 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 127), big.NewInt(1))
	// MinI128 is the smallest signed 128-bit value.
	MinI128 = new(big.Int).Neg(new(big.Int).Lsh(big.NewInt(1), 127))
)

// FitsI128 reports whether v is representable as a signed 128-bit integer.
func FitsI128(v *big.Int) bool {
	if v == nil {
		return false
	}
	return v.Cmp(MaxI128) <= 0 && v.Cmp(MinI128) >= 0
}

// ParseAmount parses a base-10 signed 128-bit amount.
func ParseAmount(s string) (*big.Int, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return nil, fmt.Errorf("amount: empty value")
	}
	v, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("amount: invalid integer %q", s)
	}
	if !FitsI128(v) {
		return nil, fmt.Errorf("amount: %s overflows i128", trimmed)
	}
	return v, nil
}

// CloneAmount copies v; nil becomes zero.
func CloneAmount(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
