package asset

import coreerrors "signescrow/core/errors"

var taxonomy = coreerrors.NewTaxonomy("asset",
	"NotInit",
	"AlreadyInit",
	"InvalidAmount",
	"InsufficientBalance",
)

var (
	ErrNotInit             = taxonomy.Get("NotInit")
	ErrAlreadyInit         = taxonomy.Get("AlreadyInit")
	ErrInvalidAmount       = taxonomy.Get("InvalidAmount")
	ErrInsufficientBalance = taxonomy.Get("InsufficientBalance")
)

// Taxonomy exposes the asset error codes.
func Taxonomy() *coreerrors.Taxonomy { return taxonomy }
