package chat

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/choosielabs/choosie/internal/api"
	"github.com/choosielabs/choosie/internal/llm"
	"github.com/go-chi/chi/v5"
)

// defaultMaxUploadSize caps a chat request body including the attachment.
const defaultMaxUploadSize = 10 << 20 // 10MB

// Handler binds the chat pipeline to HTTP.
type Handler struct {
	orchestrator  *Orchestrator
	rateLimiter   *RateLimiter
	maxUploadSize int64
}

// NewHandler creates the chat HTTP handler. rateLimiter may be nil to
// disable throttling (tests).
func NewHandler(orchestrator *Orchestrator, rateLimiter *RateLimiter, maxUploadSize int64) *Handler {
	if maxUploadSize <= 0 {
		maxUploadSize = defaultMaxUploadSize
	}
	return &Handler{
		orchestrator:  orchestrator,
		rateLimiter:   rateLimiter,
		maxUploadSize: maxUploadSize,
	}
}

// RegisterRoutes registers the chat routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/api/chat", h.HandleChat)
}

// HandleChat processes one multipart chat turn: session_id (required),
// message (optional), file (optional). At least one of message and file
// must be present.
func (h *Handler) HandleChat(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)
	if err := r.ParseMultipartForm(h.maxUploadSize); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			api.Error(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		api.Error(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	sessionID := r.FormValue("session_id")
	if sessionID == "" {
		api.Error(w, http.StatusBadRequest, "session_id is required")
		return
	}
	message := r.FormValue("message")

	if h.rateLimiter != nil && !h.rateLimiter.Allow(sessionID) {
		api.Error(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	att := h.readAttachment(r)
	if message == "" && att == nil {
		api.Error(w, http.StatusBadRequest, "message or file is required")
		return
	}

	slog.Info("Chat request",
		"session_id", sessionID,
		"message_length", len(message),
		"has_attachment", att != nil,
	)

	result, err := h.orchestrator.Turn(r.Context(), sessionID, message, att)
	if err != nil {
		api.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	api.JSON(w, http.StatusOK, result)
}

// readAttachment pulls the uploaded file, if any. Malformed or empty
// uploads are treated as no attachment, never as an error.
func (h *Handler) readAttachment(r *http.Request) *llm.Attachment {
	file, header, err := r.FormFile("file")
	if err != nil {
		return nil
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			slog.Debug("Failed to close uploaded file", "error", closeErr)
		}
	}()

	data, err := io.ReadAll(file)
	if err != nil || len(data) == 0 {
		return nil
	}

	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	return &llm.Attachment{MIMEType: mimeType, Data: data}
}
