package rpc

import (
	"errors"
	"net/http"

	"signescrow/core"
	coreerrors "signescrow/core/errors"
	"signescrow/core/ledger"
)

// toRPCError maps a node failure to an HTTP status and JSON-RPC error.
func toRPCError(err error) (int, *RPCError) {
	if coded, ok := coreerrors.CodeOf(err); ok {
		return http.StatusOK, &RPCError{
			Code:    codeContractError,
			Message: err.Error(),
			Data:    ContractErrorData{Module: coded.Module, Code: coded.Code, Name: coded.Name},
		}
	}
	switch {
	case errors.Is(err, ledger.ErrBadNonce):
		return http.StatusConflict, &RPCError{Code: codeBadNonce, Message: err.Error()}
	case errors.Is(err, ledger.ErrNotAuthorized):
		return http.StatusOK, &RPCError{Code: codeNotAuthorized, Message: err.Error()}
	case errors.Is(err, ledger.ErrArchived):
		return http.StatusOK, &RPCError{Code: codeArchived, Message: err.Error()}
	case errors.Is(err, core.ErrWrongNetwork),
		errors.Is(err, core.ErrBadSignature),
		errors.Is(err, core.ErrQueryOnly),
		errors.Is(err, core.ErrNotQuery),
		errors.Is(err, core.ErrUnknownMethod),
		errors.Is(err, core.ErrUnknownContract),
		errors.Is(err, core.ErrInvalidArgs):
		return http.StatusBadRequest, &RPCError{Code: codeInvalidParams, Message: err.Error()}
	default:
		return http.StatusInternalServerError, &RPCError{Code: codeServerError, Message: err.Error()}
	}
}
