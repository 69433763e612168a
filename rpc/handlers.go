package rpc

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"signescrow/core/types"
	"signescrow/services/eventlog"
)

func invalidParams(message string, err error) (any, int, *RPCError) {
	rpcErr := &RPCError{Code: codeInvalidParams, Message: message}
	if err != nil {
		rpcErr.Data = err.Error()
	}
	return nil, http.StatusBadRequest, rpcErr
}

func nodeError(err error) (any, int, *RPCError) {
	status, rpcErr := toRPCError(err)
	return nil, status, rpcErr
}

func (s *Server) handleInfo(_ *http.Request, _ *RPCRequest) (any, int, *RPCError) {
	return s.node.Info(), http.StatusOK, nil
}

func (s *Server) handleNonce(_ *http.Request, req *RPCRequest) (any, int, *RPCError) {
	if len(req.Params) != 1 {
		return invalidParams("address parameter required", nil)
	}
	var raw string
	if err := json.Unmarshal(req.Params[0], &raw); err != nil {
		return invalidParams("address must be a string", err)
	}
	addr, err := types.ParsePrincipal(raw)
	if err != nil {
		return invalidParams("invalid address", err)
	}
	nonce, err := s.node.Nonce(addr)
	if err != nil {
		return nodeError(err)
	}
	return NonceResult{Address: addr, Nonce: nonce, Next: nonce + 1}, http.StatusOK, nil
}

func (s *Server) handleMethods(_ *http.Request, _ *RPCRequest) (any, int, *RPCError) {
	list := s.node.Methods().List()
	out := make([]MethodResult, len(list))
	for i, m := range list {
		out[i] = methodResult(m)
	}
	return out, http.StatusOK, nil
}

func (s *Server) handleSubmit(r *http.Request, req *RPCRequest) (any, int, *RPCError) {
	if s.cfg.RequireAuth {
		if authErr := s.auth.check(r); authErr != nil {
			s.metrics.ObserveThrottle("auth")
			return nil, http.StatusUnauthorized, authErr
		}
	}
	source := clientSource(r)
	if !s.limiter.allow(source) {
		s.metrics.ObserveThrottle("rate")
		return nil, http.StatusTooManyRequests, &RPCError{Code: codeRateLimited, Message: "submission rate limit exceeded", Data: source}
	}
	if len(req.Params) != 1 {
		return invalidParams("envelope parameter required", nil)
	}
	var env types.Envelope
	if err := json.Unmarshal(req.Params[0], &env); err != nil {
		return invalidParams("invalid envelope format", err)
	}
	receipt, err := s.node.Submit(r.Context(), &env)
	if err != nil {
		return nodeError(err)
	}
	s.logger.InfoContext(r.Context(), "envelope committed",
		slog.String("tx", receipt.TxHash),
		slog.String("function", env.Call.Function),
		slog.Int("events", len(receipt.Events)))
	return receipt, http.StatusOK, nil
}

func (s *Server) handleQuery(r *http.Request, req *RPCRequest) (any, int, *RPCError) {
	if len(req.Params) != 1 {
		return invalidParams("query parameter object required", nil)
	}
	var params QueryParams
	if err := json.Unmarshal(req.Params[0], &params); err != nil {
		return invalidParams("invalid query format", err)
	}
	if strings.TrimSpace(params.Function) == "" {
		return invalidParams("function required", nil)
	}
	contract, err := s.node.ResolveContract(params.Contract)
	if err != nil {
		return nodeError(err)
	}
	value, err := s.node.Query(r.Context(), contract, params.Function, params.Args)
	if err != nil {
		return nodeError(err)
	}
	return QueryResult{Contract: contract, Function: params.Function, Value: value}, http.StatusOK, nil
}

func (s *Server) handleEventsList(r *http.Request, req *RPCRequest) (any, int, *RPCError) {
	if s.archive == nil {
		return nil, http.StatusServiceUnavailable, &RPCError{Code: codeUnavailable, Message: "event archive disabled"}
	}
	var params EventsParams
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params[0], &params); err != nil {
			return invalidParams("invalid filter format", err)
		}
	}
	filter := eventlog.Filter{
		Type:         params.Type,
		TxHash:       params.TxHash,
		FromSequence: params.FromSequence,
		Limit:        params.Limit,
	}
	if params.Contract != "" {
		contract, err := s.node.ResolveContract(params.Contract)
		if err != nil {
			return nodeError(err)
		}
		filter.Contract = contract.String()
	}
	out, err := s.archive.Query(r.Context(), filter)
	if err != nil {
		return nodeError(err)
	}
	return out, http.StatusOK, nil
}
