package escrow

import coreerrors "signescrow/core/errors"

var taxonomy = coreerrors.NewTaxonomy("escrow",
	"NotInit",
	"AlreadyInitialized",
	"OnlyOwner",
	"OnlyOracle",
	"AlreadyProposed",
	"ProposalNotFound",
	"SignatureProcessNotFound",
	"SignatureProcessExist",
	"PickedOrCanceled",
	"NoEnoughtFunds",
	"InvalidAmount",
	"AlreadySettled",
)

var (
	ErrNotInit                  = taxonomy.Get("NotInit")
	ErrAlreadyInitialized       = taxonomy.Get("AlreadyInitialized")
	ErrOnlyOwner                = taxonomy.Get("OnlyOwner")
	ErrOnlyOracle               = taxonomy.Get("OnlyOracle")
	ErrAlreadyProposed          = taxonomy.Get("AlreadyProposed")
	ErrProposalNotFound         = taxonomy.Get("ProposalNotFound")
	ErrSignatureProcessNotFound = taxonomy.Get("SignatureProcessNotFound")
	ErrSignatureProcessExist    = taxonomy.Get("SignatureProcessExist")
	ErrPickedOrCanceled         = taxonomy.Get("PickedOrCanceled")
	ErrNoEnoughtFunds           = taxonomy.Get("NoEnoughtFunds")
	ErrInvalidAmount            = taxonomy.Get("InvalidAmount")
	ErrAlreadySettled           = taxonomy.Get("AlreadySettled")
)

// Taxonomy exposes the escrow error codes.
func Taxonomy() *coreerrors.Taxonomy { return taxonomy }
