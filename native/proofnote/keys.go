package proofnote

import (
	"encoding/binary"

	"signescrow/core/ledger"
	"signescrow/core/types"
)

type keyTag byte

const (
	tagAdmin keyTag = iota + 1
	tagName
	tagSymbol
	tagCounterID
	tagOwnedTokenIndices
	tagTokenIDToIndex
	tagOwnerOwnedTokenIDs
	tagOwnerTokenIDToIndex
	tagTokenOwner
	tagUri
	tagBalance
	tagApproved
	tagOperator
)

// keyClass maps every key variant to its storage class. Delegations are
// temporary so they lapse unless the grantor extends them.
var keyClass = map[keyTag]ledger.StorageClass{
	tagAdmin:               ledger.Persistent,
	tagName:                ledger.Persistent,
	tagSymbol:              ledger.Persistent,
	tagCounterID:           ledger.Persistent,
	tagOwnedTokenIndices:   ledger.Persistent,
	tagTokenIDToIndex:      ledger.Persistent,
	tagOwnerOwnedTokenIDs:  ledger.Persistent,
	tagOwnerTokenIDToIndex: ledger.Persistent,
	tagTokenOwner:          ledger.Persistent,
	tagUri:                 ledger.Persistent,
	tagBalance:             ledger.Persistent,
	tagApproved:            ledger.Temporary,
	tagOperator:            ledger.Temporary,
}

type dataKey struct {
	tag      keyTag
	owner    types.Principal
	operator types.Principal
	tokenID  uint32
}

func (k dataKey) StorageKey() []byte {
	var id [4]byte
	binary.BigEndian.PutUint32(id[:], k.tokenID)
	switch k.tag {
	case tagTokenIDToIndex, tagTokenOwner, tagUri, tagApproved:
		return ledger.BytesKey(byte(k.tag), id[:])
	case tagOwnerOwnedTokenIDs, tagBalance:
		return ledger.BytesKey(byte(k.tag), k.owner[:])
	case tagOwnerTokenIDToIndex:
		return ledger.BytesKey(byte(k.tag), k.owner[:], id[:])
	case tagOperator:
		return ledger.BytesKey(byte(k.tag), k.owner[:], k.operator[:])
	default:
		return ledger.BytesKey(byte(k.tag))
	}
}

func (k dataKey) Class() ledger.StorageClass { return keyClass[k.tag] }

func adminKey() dataKey             { return dataKey{tag: tagAdmin} }
func nameKey() dataKey              { return dataKey{tag: tagName} }
func symbolKey() dataKey            { return dataKey{tag: tagSymbol} }
func counterKey() dataKey           { return dataKey{tag: tagCounterID} }
func ownedTokenIndicesKey() dataKey { return dataKey{tag: tagOwnedTokenIndices} }

func tokenIDToIndexKey(id uint32) dataKey { return dataKey{tag: tagTokenIDToIndex, tokenID: id} }
func tokenOwnerKey(id uint32) dataKey     { return dataKey{tag: tagTokenOwner, tokenID: id} }
func uriKey(id uint32) dataKey            { return dataKey{tag: tagUri, tokenID: id} }
func approvedKey(id uint32) dataKey       { return dataKey{tag: tagApproved, tokenID: id} }

func ownerTokensKey(owner types.Principal) dataKey {
	return dataKey{tag: tagOwnerOwnedTokenIDs, owner: owner}
}

func ownerIndexKey(owner types.Principal, id uint32) dataKey {
	return dataKey{tag: tagOwnerTokenIDToIndex, owner: owner, tokenID: id}
}

func balanceKey(owner types.Principal) dataKey {
	return dataKey{tag: tagBalance, owner: owner}
}

func operatorKey(owner, operator types.Principal) dataKey {
	return dataKey{tag: tagOperator, owner: owner, operator: operator}
}
