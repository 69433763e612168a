package escrow

import (
	"strconv"

	"signescrow/core/types"
)

const (
	EventTypeInitialized     = "Initialized"
	EventTypeNewProposal     = "NewProposal"
	EventTypeRegisterEscrow  = "RegisterEscrow"
	EventTypeSignedCompleted = "SignedCompleted"
	EventTypeSignedFailed    = "SignedFailed"
)

// NewInitializedEvent reports the bound peer contracts.
func NewInitializedEvent(b *Bindings) *types.Event {
	return &types.Event{Type: EventTypeInitialized, Attributes: map[string]string{
		"asset":     b.Asset.String(),
		"oracle":    b.Oracle.String(),
		"nft_notes": b.NFTNotes.String(),
	}}
}

func NewProposalEvent(p *Proposal) *types.Event {
	return &types.Event{Type: EventTypeNewProposal, Attributes: map[string]string{
		"proposal_id": p.EscrowID,
		"proposer":    p.Owner.String(),
	}}
}

// NewRegisterEscrowEvent is emitted once funds are locked and the oracle
// tracks the process.
func NewRegisterEscrowEvent(s *SignatureProcess) *types.Event {
	return &types.Event{Type: EventTypeRegisterEscrow, Attributes: map[string]string{
		"signaturit_id": s.ID,
		"proposal_id":   s.ProposeID,
		"oracle_id":     strconv.FormatUint(uint64(s.OracleID), 10),
		"buyer":         s.Buyer.String(),
		"funds":         s.Funds.String(),
	}}
}

func NewSignedCompletedEvent(s *SignatureProcess) *types.Event {
	attrs := map[string]string{
		"signaturit_id": s.ID,
		"proposal_id":   s.ProposeID,
		"buyer":         s.Buyer.String(),
		"receiver":      s.Receiver.String(),
		"funds":         s.Funds.String(),
	}
	if s.NFTProofID != nil {
		attrs["token_id"] = strconv.FormatUint(uint64(*s.NFTProofID), 10)
	}
	return &types.Event{Type: EventTypeSignedCompleted, Attributes: attrs}
}

func NewSignedFailedEvent(s *SignatureProcess) *types.Event {
	return &types.Event{Type: EventTypeSignedFailed, Attributes: map[string]string{
		"signaturit_id": s.ID,
		"proposal_id":   s.ProposeID,
		"buyer":         s.Buyer.String(),
	}}
}
