package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
)

const (
	wsWriteWait  = 10 * time.Second
	wsMaxMessage = maxBodyBytes
)

// wsReply is sent for every inbound WebSocket message.
type wsReply struct {
	Response string `json:"response,omitempty"`
	Error    string `json:"error,omitempty"`
}

// handleWebSocket runs a chat over one WebSocket connection. Each text frame
// carries a ChatRequest; requests are answered in order.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		slog.Warn("websocket upgrade failed", "err", err)
		return
	}
	defer conn.Close()
	conn.SetReadLimit(wsMaxMessage)

	ctx := r.Context()
	reqID := middleware.GetReqID(ctx)
	slog.Debug("websocket connected", "request_id", reqID)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) &&
				!errors.Is(err, net.ErrClosed) {
				slog.Debug("websocket read ended", "request_id", reqID, "err", err)
			}
			return
		}

		var reply wsReply
		var req ChatRequest
		switch {
		case json.Unmarshal(data, &req) != nil:
			reply.Error = "invalid JSON message"
		case strings.TrimSpace(req.Query) == "":
			reply.Error = "query is required"
		default:
			reply.Response = s.respond(ctx, req).Response
		}

		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		if err := conn.WriteJSON(reply); err != nil {
			slog.Debug("websocket write failed", "request_id", reqID, "err", err)
			return
		}
	}
}
