package oracle

import coreerrors "signescrow/core/errors"

var taxonomy = coreerrors.NewTaxonomy("oracle",
	"NotInit",
	"AlreadyInit",
	"OnlyAdmin",
	"SignatureIdAlredyExist",
	"MissingDocHash",
	"ProcessNotFound",
	"ProcessAlreadyResolved",
)

var (
	ErrNotInit                = taxonomy.Get("NotInit")
	ErrAlreadyInit            = taxonomy.Get("AlreadyInit")
	ErrOnlyAdmin              = taxonomy.Get("OnlyAdmin")
	ErrSignatureIDAlredyExist = taxonomy.Get("SignatureIdAlredyExist")
	ErrMissingDocHash         = taxonomy.Get("MissingDocHash")
	ErrProcessNotFound        = taxonomy.Get("ProcessNotFound")
	ErrProcessAlreadyResolved = taxonomy.Get("ProcessAlreadyResolved")
)

// Taxonomy exposes the oracle error codes.
func Taxonomy() *coreerrors.Taxonomy { return taxonomy }
