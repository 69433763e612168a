package proofnote

import coreerrors "signescrow/core/errors"

var taxonomy = coreerrors.NewTaxonomy("proofnote",
	"NotInit",
	"AlreadyInit",
	"NotOwner",
	"NotNFT",
	"NotAuthorized",
	"OutOfBounds",
	"TokenAlreadyExists",
)

var (
	ErrNotInit            = taxonomy.Get("NotInit")
	ErrAlreadyInit        = taxonomy.Get("AlreadyInit")
	ErrNotOwner           = taxonomy.Get("NotOwner")
	ErrNotNFT             = taxonomy.Get("NotNFT")
	ErrNotAuthorized      = taxonomy.Get("NotAuthorized")
	ErrOutOfBounds        = taxonomy.Get("OutOfBounds")
	ErrTokenAlreadyExists = taxonomy.Get("TokenAlreadyExists")
)

// Taxonomy exposes the proof-note error codes.
func Taxonomy() *coreerrors.Taxonomy { return taxonomy }
