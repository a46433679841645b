package token

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/choosielabs/choosie/internal/api"
	"github.com/go-chi/chi/v5"
)

// Handler exposes the standalone QR endpoints, decoupled from chat.
type Handler struct {
	store *Store
}

// NewHandler creates a QR handler backed by the given store.
func NewHandler(store *Store) *Handler {
	return &Handler{store: store}
}

// RegisterRoutes registers the QR issue/validate routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api/qr", func(r chi.Router) {
		r.Post("/issue", h.HandleIssue)
		r.Get("/validate", h.HandleValidate)
	})
}

type issueRequest struct {
	Offer string `json:"offer"`
}

// HandleIssue mints a token for an arbitrary offer text.
func (h *Handler) HandleIssue(w http.ResponseWriter, r *http.Request) {
	var req issueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Offer == "" {
		api.Error(w, http.StatusBadRequest, "offer is required")
		return
	}

	issued, err := h.store.Issue(req.Offer)
	if err != nil {
		slog.Error("Failed to issue token", "error", err)
		api.Error(w, http.StatusInternalServerError, "failed to issue token")
		return
	}

	slog.Info("Token issued", "token", issued.Token)
	api.JSON(w, http.StatusOK, issued)
}

// HandleValidate redeems a token. Invalid and expired outcomes are
// ordinary 200 responses; the status field carries the result.
func (h *Handler) HandleValidate(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("token")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "token is required")
		return
	}

	result := h.store.Validate(id)
	slog.Info("Token validated", "token", id, "status", result.Status)
	api.JSON(w, http.StatusOK, result)
}
