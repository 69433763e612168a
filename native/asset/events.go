package asset

import (
	"math/big"

	"signescrow/core/types"
)

const (
	EventTypeMint     = "mint"
	EventTypeTransfer = "transfer"
)

func newMintEvent(admin, to types.Principal, amount *big.Int) *types.Event {
	return &types.Event{Type: EventTypeMint, Attributes: map[string]string{
		"admin":  admin.String(),
		"to":     to.String(),
		"amount": amount.String(),
	}}
}

func newTransferEvent(from, to types.Principal, amount *big.Int) *types.Event {
	return &types.Event{Type: EventTypeTransfer, Attributes: map[string]string{
		"from":   from.String(),
		"to":     to.String(),
		"amount": amount.String(),
	}}
}
