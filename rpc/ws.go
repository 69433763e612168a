package rpc

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"nhooyr.io/websocket"

	"signescrow/core/events"
	"signescrow/core/types"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsBuffer       = 256
)

type streamFilter struct {
	contract *types.Principal
	kind     string
}

func (f streamFilter) match(c events.Committed) bool {
	if c.Event == nil {
		return false
	}
	if f.contract != nil && c.Event.Contract != *f.contract {
		return false
	}
	return f.kind == "" || c.Event.Type == f.kind
}

// handleEventsWS streams committed events. Optional query parameters
// "contract" (name or principal) and "type" narrow the stream.
func (s *Server) handleEventsWS(w http.ResponseWriter, r *http.Request) {
	var filter streamFilter
	if raw := strings.TrimSpace(r.URL.Query().Get("contract")); raw != "" {
		contract, err := s.node.ResolveContract(raw)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		filter.contract = &contract
	}
	filter.kind = strings.TrimSpace(r.URL.Query().Get("type"))

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: []string{"*"}})
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "stream closed")
	s.metrics.StreamOpened()
	defer s.metrics.StreamClosed()

	// Clients never send; CloseRead cancels ctx when they disconnect.
	ctx := conn.CloseRead(r.Context())
	if err := s.streamEvents(ctx, conn, filter); err != nil {
		if status := websocket.CloseStatus(err); status == -1 && ctx.Err() == nil {
			_ = conn.Close(websocket.StatusInternalError, "stream error")
		}
	}
}

func (s *Server) streamEvents(ctx context.Context, conn *websocket.Conn, filter streamFilter) error {
	updates := s.node.Subscribe(ctx, wsBuffer)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case evt, ok := <-updates:
			if !ok {
				return nil
			}
			committed, isCommitted := evt.(events.Committed)
			if !isCommitted || !filter.match(committed) {
				continue
			}
			if err := writeEvent(ctx, conn, committed); err != nil {
				return err
			}
		}
	}
}

func writeEvent(ctx context.Context, conn *websocket.Conn, evt events.Committed) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	return conn.Write(writeCtx, websocket.MessageText, data)
}
