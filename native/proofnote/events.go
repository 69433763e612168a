package proofnote

import (
	"strconv"

	"signescrow/core/types"
)

const (
	EventTypeInitialized   = "Initialized"
	EventTypeMint          = "Mint"
	EventTypeTransfer      = "Transfer"
	EventTypeApprove       = "Approve"
	EventTypeApproveForAll = "ApproveForAll"
)

func tokenString(id uint32) string { return strconv.FormatUint(uint64(id), 10) }

// NewInitializedEvent is emitted once when the ledger is bound to its escrow.
func NewInitializedEvent(escrow types.Principal, name, symbol string) *types.Event {
	return &types.Event{Type: EventTypeInitialized, Attributes: map[string]string{
		"escrow": escrow.String(),
		"name":   name,
		"symbol": symbol,
	}}
}

// NewMintEvent is emitted for every issued proof note.
func NewMintEvent(to types.Principal, tokenID uint32) *types.Event {
	return &types.Event{Type: EventTypeMint, Attributes: map[string]string{
		"to":       to.String(),
		"token_id": tokenString(tokenID),
	}}
}

func NewTransferEvent(from, to types.Principal, tokenID uint32) *types.Event {
	return &types.Event{Type: EventTypeTransfer, Attributes: map[string]string{
		"from":     from.String(),
		"to":       to.String(),
		"token_id": tokenString(tokenID),
	}}
}

func NewApproveEvent(owner, operator types.Principal, tokenID uint32) *types.Event {
	return &types.Event{Type: EventTypeApprove, Attributes: map[string]string{
		"owner":    owner.String(),
		"operator": operator.String(),
		"token_id": tokenString(tokenID),
	}}
}

func NewApproveForAllEvent(owner, operator types.Principal, approved bool) *types.Event {
	return &types.Event{Type: EventTypeApproveForAll, Attributes: map[string]string{
		"owner":    owner.String(),
		"operator": operator.String(),
		"approved": strconv.FormatBool(approved),
	}}
}
