package ledger

import "errors"

var (
	ErrNotAuthorized    = errors.New("ledger: authorization missing")
	ErrContractNotFound = errors.New("ledger: contract not deployed")
	ErrNotConsumer      = errors.New("ledger: contract does not implement the requested capability")
	ErrArchived         = errors.New("ledger: persistent entry archived")
	ErrMissingEntry     = errors.New("ledger: entry not found")
	ErrReadOnly         = errors.New("ledger: write attempted in read-only transaction")
	ErrBadNonce         = errors.New("ledger: unexpected nonce")
	ErrNoFrame          = errors.New("ledger: operation requires a contract frame")
	ErrCallDepth        = errors.New("ledger: call depth exceeded")
	ErrAlreadyDeployed  = errors.New("ledger: contract already deployed")
	ErrUnsupportedArg   = errors.New("ledger: unsupported argument type")
)
