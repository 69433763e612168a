package escrow

import (
	"math/big"

	"signescrow/core/ledger"
	"signescrow/core/types"
	"signescrow/native/asset"
	"signescrow/native/oracle"
	"signescrow/native/proofnote"
)

// Config tunes the TTL bumps applied to escrow records.
type Config struct {
	InstanceTTL uint32
	ProposalTTL uint32
	ProcessTTL  uint32
}

// DefaultConfig returns the lifetimes used by the node genesis.
func DefaultConfig() Config {
	return Config{InstanceTTL: 518400, ProposalTTL: 518400, ProcessTTL: 518400}
}

// Engine locks a buyer's funds against a proposal until the oracle reports
// the outcome of the linked signature process. It implements oracle.Consumer.
type Engine struct {
	cfg Config
}

var _ oracle.Consumer = (*Engine)(nil)

// New constructs the escrow contract.
func New(cfg Config) *Engine {
	def := DefaultConfig()
	if cfg.InstanceTTL == 0 {
		cfg.InstanceTTL = def.InstanceTTL
	}
	if cfg.ProposalTTL == 0 {
		cfg.ProposalTTL = def.ProposalTTL
	}
	if cfg.ProcessTTL == 0 {
		cfg.ProcessTTL = def.ProcessTTL
	}
	return &Engine{cfg: cfg}
}

// Initialize binds the asset, oracle and proof-note contracts. It fails if any
// binding is already present.
func (e *Engine) Initialize(env *ledger.Env, assetAddr, oracleAddr, notesAddr types.Principal) error {
	for _, key := range []dataKey{assetKey(), oracleKey(), notesKey()} {
		exists, err := env.Has(key)
		if err != nil {
			return err
		}
		if exists {
			return ErrAlreadyInitialized
		}
	}
	b := &Bindings{Asset: assetAddr, Oracle: oracleAddr, NFTNotes: notesAddr}
	for _, w := range []struct {
		key   dataKey
		value types.Principal
	}{{assetKey(), assetAddr}, {oracleKey(), oracleAddr}, {notesKey(), notesAddr}} {
		if err := e.setExtended(env, w.key, w.value, e.cfg.InstanceTTL); err != nil {
			return err
		}
	}
	return env.Publish(NewInitializedEvent(b))
}

// Config returns the bound peer contracts.
func (e *Engine) Config(env *ledger.Env) (*Bindings, error) {
	b := new(Bindings)
	for _, r := range []struct {
		key dataKey
		out *types.Principal
	}{{assetKey(), &b.Asset}, {oracleKey(), &b.Oracle}, {notesKey(), &b.NFTNotes}} {
		found, err := env.Get(r.key, r.out)
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, ErrNotInit
		}
	}
	return b, nil
}

// AddProposal opens a proposal owned by proposer.
func (e *Engine) AddProposal(env *ledger.Env, proposalID string, proposer types.Principal, minFunds *big.Int) error {
	if _, err := e.Config(env); err != nil {
		return err
	}
	if !validAmount(minFunds) {
		return ErrInvalidAmount
	}
	exists, err := env.Has(proposalKey(proposalID))
	if err != nil {
		return err
	}
	if exists {
		return ErrAlreadyProposed
	}
	p := &Proposal{
		EscrowID: proposalID,
		Owner:    proposer,
		Status:   ProposalActive,
		MinFunds: types.CloneAmount(minFunds),
	}
	if err := e.storeProposal(env, p); err != nil {
		return err
	}
	return env.Publish(NewProposalEvent(p))
}

// RegisterEscrow picks proposalID for sender: funds move into the escrow, the
// oracle starts tracking signaturitID and the proposal becomes Picked. sender
// must have authorized the asset transfer.
func (e *Engine) RegisterEscrow(env *ledger.Env, proposalID, signaturitID string, sender types.Principal, funds *big.Int) error {
	b, err := e.Config(env)
	if err != nil {
		return err
	}
	if !validAmount(funds) {
		return ErrInvalidAmount
	}
	proposal, err := e.GetProposal(env, proposalID)
	if err != nil {
		return err
	}
	exists, err := env.Has(signatureKey(signaturitID))
	if err != nil {
		return err
	}
	if exists {
		return ErrSignatureProcessExist
	}
	if proposal.Status != ProposalActive {
		return ErrPickedOrCanceled
	}
	if funds.Cmp(proposal.MinFunds) < 0 {
		return ErrNoEnoughtFunds
	}

	self := env.CurrentContract()
	if err := asset.NewClient(env, b.Asset).Transfer(sender, self, funds); err != nil {
		return err
	}
	if err := env.AuthorizeAsCurrentContract(ledger.Invocation{
		Contract: b.Oracle,
		Function: oracle.FnRegisterNewSignatureProcess,
		Args:     []any{self, signaturitID},
	}); err != nil {
		return err
	}
	oracleID, err := oracle.NewClient(env, b.Oracle).RegisterNewSignatureProcess(self, signaturitID)
	if err != nil {
		return err
	}

	process := &SignatureProcess{
		ID:        signaturitID,
		ProposeID: proposalID,
		OracleID:  oracleID,
		Buyer:     sender,
		Receiver:  proposal.Owner,
		Funds:     types.CloneAmount(funds),
		Status:    SignatureInProgress,
	}
	if err := e.storeProcess(env, process); err != nil {
		return err
	}
	linked := signaturitID
	proposal.Status = ProposalPicked
	proposal.SignatureTxLinked = &linked
	if err := e.storeProposal(env, proposal); err != nil {
		return err
	}
	return env.Publish(NewRegisterEscrowEvent(process))
}

// CompletedSignature releases the locked funds to the receiver and mints the
// proof-note for the buyer. Only the bound oracle may call it.
func (e *Engine) CompletedSignature(env *ledger.Env, signaturitID, documentHash string) error {
	b, process, proposal, err := e.settleable(env, signaturitID)
	if err != nil {
		return err
	}
	if err := e.payout(env, b.Asset, process.Receiver, process.Funds); err != nil {
		return err
	}
	if err := env.AuthorizeAsCurrentContract(ledger.Invocation{
		Contract: b.NFTNotes,
		Function: proofnote.FnMint,
		Args:     []any{process.Buyer, documentHash},
	}); err != nil {
		return err
	}
	tokenID, err := proofnote.NewClient(env, b.NFTNotes).Mint(process.Buyer, documentHash)
	if err != nil {
		return err
	}

	process.NFTProofID = &tokenID
	process.Status = SignatureCompleted
	if err := e.storeProcess(env, process); err != nil {
		return err
	}
	proposal.Status = ProposalCompleted
	if err := e.storeProposal(env, proposal); err != nil {
		return err
	}
	return env.Publish(NewSignedCompletedEvent(process))
}

// FailedSignature refunds the buyer and reopens the proposal. Only the bound
// oracle may call it.
func (e *Engine) FailedSignature(env *ledger.Env, signaturitID string) error {
	b, process, proposal, err := e.settleable(env, signaturitID)
	if err != nil {
		return err
	}
	if err := e.payout(env, b.Asset, process.Buyer, process.Funds); err != nil {
		return err
	}
	process.Status = SignatureCanceled
	if err := e.storeProcess(env, process); err != nil {
		return err
	}
	proposal.Status = ProposalActive
	proposal.SignatureTxLinked = nil
	if err := e.storeProposal(env, proposal); err != nil {
		return err
	}
	return env.Publish(NewSignedFailedEvent(process))
}

// settleable runs the guards shared by both oracle callbacks.
func (e *Engine) settleable(env *ledger.Env, signaturitID string) (*Bindings, *SignatureProcess, *Proposal, error) {
	b, err := e.Config(env)
	if err != nil {
		return nil, nil, nil, err
	}
	if env.Invoker() != b.Oracle {
		return nil, nil, nil, ErrOnlyOracle
	}
	if err := env.RequireAuth(b.Oracle); err != nil {
		return nil, nil, nil, err
	}
	process, err := e.GetSignatureProcess(env, signaturitID)
	if err != nil {
		return nil, nil, nil, err
	}
	if process.Status != SignatureInProgress {
		return nil, nil, nil, ErrAlreadySettled
	}
	proposal, err := e.GetProposal(env, process.ProposeID)
	if err != nil {
		return nil, nil, nil, err
	}
	return b, process, proposal, nil
}

// payout moves funds held by the escrow to to.
func (e *Engine) payout(env *ledger.Env, assetAddr, to types.Principal, funds *big.Int) error {
	self := env.CurrentContract()
	if err := env.AuthorizeAsCurrentContract(ledger.Invocation{
		Contract: assetAddr,
		Function: asset.FnTransfer,
		Args:     []any{self, to, funds},
	}); err != nil {
		return err
	}
	return asset.NewClient(env, assetAddr).Transfer(self, to, funds)
}

// GetProposal returns the proposal stored under proposalID.
func (e *Engine) GetProposal(env *ledger.Env, proposalID string) (*Proposal, error) {
	rec := new(proposalRecord)
	found, err := env.Get(proposalKey(proposalID), rec)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrProposalNotFound
	}
	return rec.proposal(), nil
}

// GetSignatureProcess returns the process stored under signaturitID.
func (e *Engine) GetSignatureProcess(env *ledger.Env, signaturitID string) (*SignatureProcess, error) {
	rec := new(processRecord)
	found, err := env.Get(signatureKey(signaturitID), rec)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrSignatureProcessNotFound
	}
	return rec.process(), nil
}

func (e *Engine) storeProposal(env *ledger.Env, p *Proposal) error {
	return e.setExtended(env, proposalKey(p.EscrowID), p.record(), e.cfg.ProposalTTL)
}

func (e *Engine) storeProcess(env *ledger.Env, s *SignatureProcess) error {
	return e.setExtended(env, signatureKey(s.ID), s.record(), e.cfg.ProcessTTL)
}

func (e *Engine) setExtended(env *ledger.Env, key dataKey, value any, ttl uint32) error {
	if err := env.Set(key, value); err != nil {
		return err
	}
	return env.Extend(key, ttl)
}

func validAmount(v *big.Int) bool {
	return v != nil && v.Sign() >= 0 && types.FitsI128(v)
}
