package escrow

import (
	"fmt"
	"math/big"

	"signescrow/core/ledger"
	"signescrow/core/types"
)

// Contract function names.
const (
	FnInitialize          = "initialize"
	FnAddProposal         = "add_proposal"
	FnRegisterEscrow      = "register_escrow"
	FnCompletedSignature  = "completed_signature"
	FnFailedSignature     = "failed_signature"
	FnGetProposal         = "get_proposal"
	FnGetSignatureProcess = "get_signature_process"
	FnConfig              = "config"
)

// ProposalStatus is the lifecycle of a proposal.
type ProposalStatus uint8

const (
	// ProposalCanceled is reserved; no transition produces it.
	ProposalCanceled ProposalStatus = iota
	ProposalActive
	ProposalPicked
	ProposalCompleted
)

func (s ProposalStatus) String() string {
	switch s {
	case ProposalCanceled:
		return "canceled"
	case ProposalActive:
		return "active"
	case ProposalPicked:
		return "picked"
	case ProposalCompleted:
		return "completed"
	default:
		return fmt.Sprintf("proposal_status(%d)", uint8(s))
	}
}

// SignatureStatus is the lifecycle of a signature process.
type SignatureStatus uint8

const (
	SignatureCanceled SignatureStatus = iota
	SignatureInProgress
	SignatureCompleted
)

func (s SignatureStatus) String() string {
	switch s {
	case SignatureCanceled:
		return "canceled"
	case SignatureInProgress:
		return "in_progress"
	case SignatureCompleted:
		return "completed"
	default:
		return fmt.Sprintf("signature_status(%d)", uint8(s))
	}
}

// Proposal is an offer a buyer can pick by locking at least MinFunds.
type Proposal struct {
	EscrowID          string          `json:"escrowId"`
	Owner             types.Principal `json:"owner"`
	Status            ProposalStatus  `json:"status"`
	MinFunds          *big.Int        `json:"minFunds"`
	SignatureTxLinked *string         `json:"signatureTxLinked,omitempty"`
}

// SignatureProcess holds the funds locked for one signing workflow.
type SignatureProcess struct {
	ID         string          `json:"id"`
	ProposeID  string          `json:"proposeId"`
	OracleID   uint32          `json:"oracleId"`
	Buyer      types.Principal `json:"buyer"`
	Receiver   types.Principal `json:"receiver"`
	Funds      *big.Int        `json:"funds"`
	Status     SignatureStatus `json:"status"`
	NFTProofID *uint32         `json:"nftProofId,omitempty"`
}

// Bindings are the peer contracts fixed at initialization.
type Bindings struct {
	Asset    types.Principal `json:"asset"`
	Oracle   types.Principal `json:"oracle"`
	NFTNotes types.Principal `json:"nftNotes"`
}

// Stored forms flatten optional fields into presence flags.
type proposalRecord struct {
	EscrowID string
	Owner    types.Principal
	Status   uint8
	MinFunds *big.Int
	Linked   bool
	LinkedID string
}

type processRecord struct {
	ID         string
	ProposeID  string
	OracleID   uint32
	Buyer      types.Principal
	Receiver   types.Principal
	Funds      *big.Int
	Status     uint8
	Minted     bool
	NFTProofID uint32
}

func (p *Proposal) record() *proposalRecord {
	rec := &proposalRecord{
		EscrowID: p.EscrowID,
		Owner:    p.Owner,
		Status:   uint8(p.Status),
		MinFunds: types.CloneAmount(p.MinFunds),
	}
	if p.SignatureTxLinked != nil {
		rec.Linked = true
		rec.LinkedID = *p.SignatureTxLinked
	}
	return rec
}

func (r *proposalRecord) proposal() *Proposal {
	p := &Proposal{
		EscrowID: r.EscrowID,
		Owner:    r.Owner,
		Status:   ProposalStatus(r.Status),
		MinFunds: types.CloneAmount(r.MinFunds),
	}
	if r.Linked {
		id := r.LinkedID
		p.SignatureTxLinked = &id
	}
	return p
}

func (s *SignatureProcess) record() *processRecord {
	rec := &processRecord{
		ID:        s.ID,
		ProposeID: s.ProposeID,
		OracleID:  s.OracleID,
		Buyer:     s.Buyer,
		Receiver:  s.Receiver,
		Funds:     types.CloneAmount(s.Funds),
		Status:    uint8(s.Status),
	}
	if s.NFTProofID != nil {
		rec.Minted = true
		rec.NFTProofID = *s.NFTProofID
	}
	return rec
}

func (r *processRecord) process() *SignatureProcess {
	s := &SignatureProcess{
		ID:        r.ID,
		ProposeID: r.ProposeID,
		OracleID:  r.OracleID,
		Buyer:     r.Buyer,
		Receiver:  r.Receiver,
		Funds:     types.CloneAmount(r.Funds),
		Status:    SignatureStatus(r.Status),
	}
	if r.Minted {
		id := r.NFTProofID
		s.NFTProofID = &id
	}
	return s
}

type keyTag byte

const (
	tagAssetAddress keyTag = iota + 1
	tagOracleAddress
	tagNFTNotesAddress
	tagProposal
	tagSignatureProcess
)

// Signature processes settle quickly, so they live in temporary storage and
// are extended while in flight.
var keyClass = map[keyTag]ledger.StorageClass{
	tagAssetAddress:     ledger.Persistent,
	tagOracleAddress:    ledger.Persistent,
	tagNFTNotesAddress:  ledger.Persistent,
	tagProposal:         ledger.Persistent,
	tagSignatureProcess: ledger.Temporary,
}

type dataKey struct {
	tag keyTag
	id  string
}

func (k dataKey) StorageKey() []byte {
	if k.tag == tagProposal || k.tag == tagSignatureProcess {
		return ledger.BytesKey(byte(k.tag), []byte(k.id))
	}
	return ledger.BytesKey(byte(k.tag))
}

func (k dataKey) Class() ledger.StorageClass { return keyClass[k.tag] }

func assetKey() dataKey              { return dataKey{tag: tagAssetAddress} }
func oracleKey() dataKey             { return dataKey{tag: tagOracleAddress} }
func notesKey() dataKey              { return dataKey{tag: tagNFTNotesAddress} }
func proposalKey(id string) dataKey  { return dataKey{tag: tagProposal, id: id} }
func signatureKey(id string) dataKey { return dataKey{tag: tagSignatureProcess, id: id} }
