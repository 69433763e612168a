package rpc

import (
	"encoding/json"

	"signescrow/core"
	"signescrow/core/types"
)

const jsonRPCVersion = "2.0"

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeServerError    = -32000
	codeUnauthorized   = -32001
	codeBadNonce       = -32011
	codeRateLimited    = -32020
	codeUnavailable    = -32030
	// codeContractError carries {module, code, name} in data.
	codeContractError = -32050
	codeNotAuthorized = -32052
	codeArchived      = -32053
)

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      json.RawMessage   `json:"id,omitempty"`
}

type RPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  any             `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *RPCError) Error() string { return e.Message }

// ContractErrorData identifies a coded contract failure.
type ContractErrorData struct {
	Module string `json:"module"`
	Code   uint32 `json:"code"`
	Name   string `json:"name"`
}

// QueryParams selects a read-only contract function. Contract is a deployed
// contract name or principal.
type QueryParams struct {
	Contract string   `json:"contract"`
	Function string   `json:"function"`
	Args     []string `json:"args"`
}

// QueryResult wraps the function result.
type QueryResult struct {
	Contract types.Principal `json:"contract"`
	Function string          `json:"function"`
	Value    any             `json:"value"`
}

// NonceResult reports the last committed nonce.
type NonceResult struct {
	Address types.Principal `json:"address"`
	Nonce   uint64          `json:"nonce"`
	Next    uint64          `json:"next"`
}

// MethodResult describes one dispatchable contract function.
type MethodResult struct {
	Contract string      `json:"contract"`
	Function string      `json:"function"`
	Query    bool        `json:"query"`
	Params   []ParamInfo `json:"params"`
	Usage    string      `json:"usage"`
}

type ParamInfo struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
}

// EventsParams filters archived events.
type EventsParams struct {
	Contract     string `json:"contract,omitempty"`
	Type         string `json:"type,omitempty"`
	TxHash       string `json:"txHash,omitempty"`
	FromSequence uint32 `json:"fromSequence,omitempty"`
	Limit        int    `json:"limit,omitempty"`
}

func methodResult(m *core.Method) MethodResult {
	params := make([]ParamInfo, len(m.Params))
	for i, p := range m.Params {
		params[i] = ParamInfo{Name: p.Name, Kind: p.Kind.String()}
	}
	return MethodResult{
		Contract: m.Contract,
		Function: m.Function,
		Query:    m.Query,
		Params:   params,
		Usage:    m.Usage(),
	}
}
