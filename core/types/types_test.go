package types

import (
	"math/big"
	"testing"
)

func TestParseAmountBounds(t *testing.T) {
	max, err := ParseAmount(MaxI128.String())
	if err != nil || max.Cmp(MaxI128) != 0 {
		t.Fatalf("max i128: %v %v", max, err)
	}
	if _, err := ParseAmount(MinI128.String()); err != nil {
		t.Fatalf("min i128: %v", err)
	}
	over := new(big.Int).Add(MaxI128, big.NewInt(1))
	if _, err := ParseAmount(over.String()); err == nil {
		t.Fatalf("expected overflow error")
	}
	under := new(big.Int).Sub(MinI128, big.NewInt(1))
	if _, err := ParseAmount(under.String()); err == nil {
		t.Fatalf("expected underflow error")
	}
	for _, bad := range []string{"", "  ", "1.5", "0x10", "ten"} {
		if _, err := ParseAmount(bad); err == nil {
			t.Fatalf("ParseAmount(%q) succeeded", bad)
		}
	}
	v, err := ParseAmount(" -42 ")
	if err != nil || v.Int64() != -42 {
		t.Fatalf("negative amount: %v %v", v, err)
	}
}

func TestCloneAmount(t *testing.T) {
	if CloneAmount(nil).Sign() != 0 {
		t.Fatalf("nil should clone to zero")
	}
	src := big.NewInt(7)
	dup := CloneAmount(src)
	dup.SetInt64(9)
	if src.Int64() != 7 {
		t.Fatalf("clone aliases its source")
	}
}

func TestParsePrincipalForms(t *testing.T) {
	p := ContractPrincipal("escrow")
	if p.IsZero() {
		t.Fatalf("contract principal is zero")
	}
	fromBech, err := ParsePrincipal(p.String())
	if err != nil || fromBech != p {
		t.Fatalf("bech32 round trip: %v %v", fromBech, err)
	}
	fromHex, err := ParsePrincipal(p.Hex())
	if err != nil || fromHex != p {
		t.Fatalf("hex round trip: %v %v", fromHex, err)
	}
	if ContractPrincipal("oracle") == p {
		t.Fatalf("distinct names share a principal")
	}
	for _, bad := range []string{"", "0xzz", "0x0102", "bc1qar0srrr7xfkvy5l643lydnw9re59gtzzwf5mdq"} {
		if _, err := ParsePrincipal(bad); err == nil {
			t.Fatalf("ParsePrincipal(%q) succeeded", bad)
		}
	}
}
