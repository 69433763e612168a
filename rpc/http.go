package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"signescrow/core"
	"signescrow/core/events"
	"signescrow/observability/metrics"
	"signescrow/services/eventlog"
)

const (
	defaultMaxBodyBytes      = 1 << 20
	defaultReadHeaderTimeout = 5 * time.Second
	defaultWriteTimeout      = 30 * time.Second
	shutdownTimeout          = 10 * time.Second
)

// EventArchive serves historical events.
type EventArchive interface {
	Query(ctx context.Context, f eventlog.Filter) ([]events.Committed, error)
}

// Config controls the HTTP surface.
type Config struct {
	Address           string
	JWTSecret         string
	JWTIssuer         string
	RequireAuth       bool
	RateLimitPerSec   float64
	RateLimitBurst    int
	ReadHeaderTimeout time.Duration
	WriteTimeout      time.Duration
	MaxBodyBytes      int64
}

// Server exposes the node over JSON-RPC 2.0, a websocket event stream,
// Prometheus metrics and a health probe.
type Server struct {
	node    *core.Node
	cfg     Config
	auth    *Authenticator
	limiter *rateLimiter
	archive EventArchive
	logger  *slog.Logger
	metrics *metrics.RPCMetrics
}

// NewServer validates cfg and wires the handlers. archive may be nil.
func NewServer(node *core.Node, cfg Config, archive EventArchive, logger *slog.Logger) (*Server, error) {
	if node == nil {
		return nil, errors.New("rpc: node required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBodyBytes
	}
	if cfg.ReadHeaderTimeout <= 0 {
		cfg.ReadHeaderTimeout = defaultReadHeaderTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaultWriteTimeout
	}
	auth := NewAuthenticator(cfg.JWTSecret, cfg.JWTIssuer)
	if cfg.RequireAuth && auth == nil {
		return nil, errors.New("rpc: authentication required but no JWT secret configured")
	}
	return &Server{
		node:    node,
		cfg:     cfg,
		auth:    auth,
		limiter: newRateLimiter(cfg.RateLimitPerSec, cfg.RateLimitBurst),
		archive: archive,
		logger:  logger,
		metrics: metrics.RPC(),
	}, nil
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/ws/events", s.handleEventsWS)
	r.Post("/", s.handle)
	return otelhttp.NewHandler(r, "signescrow-rpc")
}

// Serve listens on cfg.Address until ctx is done, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Address)
	if err != nil {
		return fmt.Errorf("rpc: listen %s: %w", s.cfg.Address, err)
	}
	return s.ServeListener(ctx, ln)
}

// ServeListener serves on ln until ctx is done.
func (s *Server) ServeListener(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: s.cfg.ReadHeaderTimeout,
		WriteTimeout:      s.cfg.WriteTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("json-rpc server listening", slog.String("address", ln.Addr().String()))
		errCh <- srv.Serve(ln)
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("rpc: shutdown: %w", err)
		}
		return nil
	}
}

func writeError(w http.ResponseWriter, status int, id json.RawMessage, rpcErr *RPCError) {
	if status <= 0 {
		status = http.StatusBadRequest
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	_ = json.NewEncoder(w).Encode(RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: rpcErr})
}

func writeResult(w http.ResponseWriter, id json.RawMessage, result any) {
	_ = json.NewEncoder(w).Encode(RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result})
}

type handlerFunc func(r *http.Request, req *RPCRequest) (any, int, *RPCError)

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	reader := http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
	defer func() { _ = reader.Close() }()
	w.Header().Set("Content-Type", "application/json")

	body, err := io.ReadAll(reader)
	if err != nil {
		status := http.StatusBadRequest
		message := "failed to read request body"
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			status = http.StatusRequestEntityTooLarge
			message = fmt.Sprintf("request body exceeds %d bytes", s.cfg.MaxBodyBytes)
		}
		writeError(w, status, nil, &RPCError{Code: codeInvalidRequest, Message: message})
		return
	}
	if len(bytes.TrimSpace(body)) == 0 {
		writeError(w, http.StatusBadRequest, nil, &RPCError{Code: codeInvalidRequest, Message: "request body required"})
		return
	}
	req := &RPCRequest{}
	if err := json.Unmarshal(body, req); err != nil {
		writeError(w, http.StatusBadRequest, nil, &RPCError{Code: codeParseError, Message: "invalid JSON payload", Data: err.Error()})
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		writeError(w, http.StatusBadRequest, req.ID, &RPCError{Code: codeInvalidRequest, Message: "unsupported jsonrpc version", Data: req.JSONRPC})
		return
	}

	var h handlerFunc
	switch req.Method {
	case "ledger_info":
		h = s.handleInfo
	case "ledger_nonce":
		h = s.handleNonce
	case "ledger_methods":
		h = s.handleMethods
	case "ledger_submit":
		h = s.handleSubmit
	case "contract_query":
		h = s.handleQuery
	case "events_list":
		h = s.handleEventsList
	case "":
		writeError(w, http.StatusBadRequest, req.ID, &RPCError{Code: codeInvalidRequest, Message: "method required"})
		return
	default:
		s.metrics.Observe("unknown", true, time.Since(start))
		writeError(w, http.StatusNotFound, req.ID, &RPCError{Code: codeMethodNotFound, Message: fmt.Sprintf("unknown method %s", req.Method)})
		return
	}

	result, status, rpcErr := h(r, req)
	s.metrics.Observe(req.Method, rpcErr != nil, time.Since(start))
	if rpcErr != nil {
		writeError(w, status, req.ID, rpcErr)
		return
	}
	writeResult(w, req.ID, result)
}
