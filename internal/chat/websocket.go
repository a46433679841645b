package chat

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/coder/websocket"
)

// WebSocketHandler serves interactive chat over a WebSocket. Each inbound
// frame is one turn; attachments are not supported on this binding.
type WebSocketHandler struct {
	orchestrator  *Orchestrator
	allowedOrigin string
	isDev         bool
}

// NewWebSocketHandler creates the WebSocket chat handler.
func NewWebSocketHandler(orchestrator *Orchestrator, allowedOrigin string, isDev bool) *WebSocketHandler {
	return &WebSocketHandler{
		orchestrator:  orchestrator,
		allowedOrigin: allowedOrigin,
		isDev:         isDev,
	}
}

// wsTurnRequest is one inbound chat frame.
type wsTurnRequest struct {
	Message string `json:"message"`
}

type wsError struct {
	Error string `json:"error"`
}

// ServeHTTP upgrades the connection and runs the chat loop until the
// client disconnects.
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		http.Error(w, "session_id is required", http.StatusBadRequest)
		return
	}
	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	slog.Info("WebSocket chat connected", "session_id", sessionID, "ip", r.RemoteAddr)

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err, "session_id", sessionID)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "session ended"); closeErr != nil {
			slog.Debug("Failed to close websocket", "error", closeErr, "session_id", sessionID)
		}
	}()

	ctx := r.Context()
	for {
		var req wsTurnRequest
		if err := readJSON(ctx, ws, &req); err != nil {
			slog.Debug("WebSocket chat closed", "session_id", sessionID, "error", err)
			return
		}
		if strings.TrimSpace(req.Message) == "" {
			if err := writeJSON(ctx, ws, wsError{Error: "message is required"}); err != nil {
				return
			}
			continue
		}

		result, err := h.orchestrator.Turn(ctx, sessionID, req.Message, nil)
		if err != nil {
			if writeErr := writeJSON(ctx, ws, wsError{Error: err.Error()}); writeErr != nil {
				return
			}
			continue
		}
		if err := writeJSON(ctx, ws, result); err != nil {
			slog.Debug("WebSocket write failed", "session_id", sessionID, "error", err)
			return
		}
	}
}

func (h *WebSocketHandler) checkOrigin(r *http.Request) bool {
	if h.isDev || h.allowedOrigin == "" {
		return true
	}
	origin := r.Header.Get("Origin")
	return origin == "" || strings.HasPrefix(origin, h.allowedOrigin)
}

func readJSON(ctx context.Context, ws *websocket.Conn, v interface{}) error {
	_, data, err := ws.Read(ctx)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

func writeJSON(ctx context.Context, ws *websocket.Conn, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return ws.Write(ctx, websocket.MessageText, data)
}
