package asset

import (
	"math/big"

	"signescrow/core/ledger"
	"signescrow/core/types"
)

// Contract function names.
const (
	FnInitialize = "initialize"
	FnMint       = "mint"
	FnTransfer   = "transfer"
	FnBalance    = "balance"
	FnMetadata   = "metadata"
)

// Metadata describes the asset.
type Metadata struct {
	Admin    types.Principal `json:"admin"`
	Name     string          `json:"name"`
	Symbol   string          `json:"symbol"`
	Decimals uint32          `json:"decimals"`
}

type keyTag byte

const (
	tagMetadata keyTag = iota + 1
	tagBalance
)

type dataKey struct {
	tag     keyTag
	account types.Principal
}

func metadataKey() dataKey                 { return dataKey{tag: tagMetadata} }
func balanceKey(p types.Principal) dataKey { return dataKey{tag: tagBalance, account: p} }

func (k dataKey) StorageKey() []byte {
	if k.tag == tagBalance {
		return ledger.BytesKey(byte(k.tag), k.account[:])
	}
	return ledger.BytesKey(byte(k.tag))
}

func (k dataKey) Class() ledger.StorageClass { return ledger.Persistent }

func zeroIfNil(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return v
}
