package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/finvault/realtime-backend/internal/core/domain"
	apperrors "github.com/finvault/realtime-backend/internal/core/errors"
	"github.com/finvault/realtime-backend/internal/core/ports"
)

// BroadcastHandler accepts event emission requests from trusted backend
// services and hands them to the dispatcher. It is mounted on an internal
// route and must never be exposed to clients.
type BroadcastHandler struct {
	dispatcher ports.Dispatcher
	logger     *slog.Logger
}

// NewBroadcastHandler creates a new BroadcastHandler.
func NewBroadcastHandler(dispatcher ports.Dispatcher, logger *slog.Logger) *BroadcastHandler {
	return &BroadcastHandler{
		dispatcher: dispatcher,
		logger:     logger.With("handler", "broadcast"),
	}
}

// RegisterRoutes registers the internal broadcast endpoints.
// These routes are relative to /internal/v1
func (h *BroadcastHandler) RegisterRoutes(r chi.Router) {
	r.Post("/broadcast", h.HandleBroadcast)
}

// BroadcastRequest defines the expected JSON body for emitting an event
type BroadcastRequest struct {
	Type       string                 `json:"type"`
	TenantID   string                 `json:"tenantId"`
	UserID     string                 `json:"userId"`
	EntityType string                 `json:"entityType,omitempty"`
	EntityID   string                 `json:"entityId,omitempty"`
	UserIDs    []string               `json:"userIds,omitempty"`
	Payload    map[string]interface{} `json:"payload,omitempty"`
}

func (r *BroadcastRequest) toInput() (ports.BroadcastInput, error) {
	tenantID, err := uuid.Parse(r.TenantID)
	if err != nil {
		return ports.BroadcastInput{}, apperrors.NewValidationError(err, "tenantId must be a valid UUID", nil)
	}
	userID, err := uuid.Parse(r.UserID)
	if err != nil {
		return ports.BroadcastInput{}, apperrors.NewValidationError(err, "userId must be a valid UUID", nil)
	}

	targets := make([]uuid.UUID, 0, len(r.UserIDs))
	for _, raw := range r.UserIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			return ports.BroadcastInput{}, apperrors.NewValidationError(err, "userIds must contain valid UUIDs", nil)
		}
		targets = append(targets, id)
	}

	return ports.BroadcastInput{
		Type:       domain.EventType(r.Type),
		TenantID:   tenantID,
		UserID:     userID,
		EntityType: r.EntityType,
		EntityID:   r.EntityID,
		UserIDs:    targets,
		Payload:    r.Payload,
	}, nil
}

// HandleBroadcast decodes an event emission request and dispatches it.
func (h *BroadcastHandler) HandleBroadcast(w http.ResponseWriter, r *http.Request) {
	var req BroadcastRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, r, apperrors.NewValidationError(err, "invalid JSON body", nil))
		return
	}

	input, err := req.toInput()
	if err != nil {
		WriteError(w, r, err)
		return
	}

	if err := h.dispatcher.Broadcast(r.Context(), input); err != nil {
		h.logger.Warn("broadcast rejected",
			"request_id", GetRequestID(r.Context()),
			"event_type", req.Type,
			"error", err,
		)
		WriteError(w, r, err)
		return
	}

	WriteJSON(w, http.StatusAccepted, map[string]string{
		"status": "accepted",
	})
}
