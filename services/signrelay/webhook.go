package signrelay

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"signescrow/observability/metrics"
)

const (
	// HeaderSignature carries the hex HMAC-SHA256 of the raw webhook body.
	HeaderSignature     = "X-Signature"
	maxWebhookBodyBytes = 1 << 20
)

// Outcome is the oracle response a provider status maps onto.
type Outcome int

const (
	OutcomeIgnore Outcome = iota
	OutcomeSuccess
	OutcomeFailure
)

// MapStatus translates a provider status into an oracle outcome.
func MapStatus(status string) Outcome {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "completed":
		return OutcomeSuccess
	case "declined", "expired", "canceled", "cancelled", "error":
		return OutcomeFailure
	default:
		return OutcomeIgnore
	}
}

// Callback is the provider webhook payload.
type Callback struct {
	EventID      string `json:"event_id,omitempty"`
	SignatureID  string `json:"signature_id"`
	Status       string `json:"status"`
	DocumentHash string `json:"document_hash,omitempty"`
}

func parseCallback(body []byte) (*Callback, error) {
	var cb Callback
	if err := json.Unmarshal(body, &cb); err != nil {
		return nil, fmt.Errorf("decode webhook: %w", err)
	}
	if cb.SignatureID == "" {
		return nil, errors.New("signature_id required")
	}
	if _, err := uuid.Parse(cb.SignatureID); err != nil {
		return nil, fmt.Errorf("signature_id: %w", err)
	}
	if strings.TrimSpace(cb.Status) == "" {
		return nil, errors.New("status required")
	}
	return &cb, nil
}

// Server turns provider callbacks into oracle responses.
type Server struct {
	secret  string
	timeout time.Duration
	store   *Store
	oracle  Oracle
	logger  *slog.Logger
	metrics *metrics.RelayMetrics
}

// NewServer wires the webhook handler with its dependencies.
func NewServer(cfg Config, store *Store, oracle Oracle, logger *slog.Logger) (*Server, error) {
	if store == nil {
		return nil, fmt.Errorf("delivery store required")
	}
	if oracle == nil {
		return nil, fmt.Errorf("oracle required")
	}
	if strings.TrimSpace(cfg.WebhookSecret) == "" {
		return nil, fmt.Errorf("webhook secret required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	server := &Server{
		secret:  cfg.WebhookSecret,
		timeout: cfg.RequestTimeout,
		store:   store,
		oracle:  oracle,
		logger:  logger.With(slog.String("component", "signrelay")),
		metrics: metrics.Relay(),
	}
	if server.timeout <= 0 {
		server.timeout = defaultRequestTimeout * time.Second
	}
	store.SetLease(2 * server.timeout)
	return server, nil
}

// Handler returns the relay router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Recoverer)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, "ok")
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Post("/webhook", s.handleWebhook)
	return r
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBodyBytes))
	_ = r.Body.Close()
	if err != nil {
		s.reject(w, "bad_request", http.StatusBadRequest, fmt.Errorf("read webhook: %w", err))
		return
	}
	if !VerifyHMAC(s.secret, body, r.Header.Get(HeaderSignature)) {
		s.reject(w, "unauthorized", http.StatusUnauthorized, errors.New("invalid webhook signature"))
		return
	}
	cb, err := parseCallback(body)
	if err != nil {
		s.reject(w, "bad_request", http.StatusBadRequest, err)
		return
	}
	outcome := MapStatus(cb.Status)
	if outcome == OutcomeIgnore {
		s.metrics.ObserveWebhook("ignored")
		s.writeJSON(w, http.StatusAccepted, map[string]string{"status": "ignored"})
		return
	}
	var hash *string
	if outcome == OutcomeSuccess {
		if cb.DocumentHash == "" {
			s.reject(w, "bad_request", http.StatusBadRequest, errors.New("document_hash required for completed signatures"))
			return
		}
		hash = &cb.DocumentHash
	}

	state, err := s.store.Reserve(cb.SignatureID)
	if err != nil {
		s.reject(w, "error", http.StatusInternalServerError, err)
		return
	}
	switch state {
	case DeliveryDone:
		s.metrics.ObserveWebhook("duplicate")
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "done"})
		return
	case DeliveryPending:
		s.metrics.ObserveWebhook("pending")
		s.writeJSON(w, http.StatusAccepted, map[string]string{"status": "pending"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()
	status, resp, err := s.deliver(ctx, cb, outcome == OutcomeSuccess, hash)
	if err != nil {
		if relErr := s.store.Release(cb.SignatureID); relErr != nil {
			s.logger.Error("release delivery", slog.String("signature_id", cb.SignatureID), slog.Any("error", relErr))
		}
		s.reject(w, "error", status, err)
		return
	}
	s.metrics.ObserveWebhook("accepted")
	s.writeJSON(w, status, resp)
}

func (s *Server) deliver(ctx context.Context, cb *Callback, success bool, hash *string) (int, map[string]string, error) {
	process, err := s.oracle.Lookup(ctx, cb.SignatureID)
	if err != nil {
		if errors.Is(err, ErrUnknownProcess) {
			return http.StatusNotFound, nil, err
		}
		return http.StatusBadGateway, nil, fmt.Errorf("lookup process: %w", err)
	}
	if process.Status.Terminal() {
		if err := s.store.MarkDone(cb.SignatureID); err != nil {
			return http.StatusInternalServerError, nil, err
		}
		return http.StatusOK, map[string]string{"status": "done"}, nil
	}
	err = s.oracle.Respond(ctx, process.OracleID, success, hash)
	switch {
	case errors.Is(err, ErrAlreadyResolved):
		s.metrics.ObserveSubmission("resolved", success)
	case err != nil:
		s.metrics.ObserveSubmission("failed", success)
		return http.StatusBadGateway, nil, fmt.Errorf("submit response: %w", err)
	default:
		s.metrics.ObserveSubmission("submitted", success)
	}
	if err := s.store.MarkDone(cb.SignatureID); err != nil {
		return http.StatusInternalServerError, nil, err
	}
	s.logger.InfoContext(ctx, "oracle response delivered",
		slog.String("signature_id", cb.SignatureID),
		slog.Uint64("oracle_id", uint64(process.OracleID)),
		slog.Bool("success", success),
		slog.String("event_id", cb.EventID),
	)
	return http.StatusOK, map[string]string{
		"status":   "done",
		"oracleId": fmt.Sprint(process.OracleID),
	}, nil
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Warn("encode response", slog.Any("error", err))
	}
}

func (s *Server) reject(w http.ResponseWriter, result string, status int, err error) {
	s.metrics.ObserveWebhook(result)
	s.logger.Warn("webhook rejected", slog.Int("status", status), slog.Any("error", err))
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

// Sign returns the hex HMAC-SHA256 of body under secret.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyHMAC checks the provided hex digest of body.
func VerifyHMAC(secret string, body []byte, provided string) bool {
	if strings.TrimSpace(secret) == "" {
		return false
	}
	cleaned := strings.TrimPrefix(strings.TrimSpace(strings.ToLower(provided)), "0x")
	if cleaned == "" {
		return false
	}
	decoded, err := hex.DecodeString(cleaned)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(mac.Sum(nil), decoded)
}
