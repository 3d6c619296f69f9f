package ws

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/distractedCoding/party-playlist/internal/domain"
	"github.com/distractedCoding/party-playlist/internal/party"
)

// Handler handles WebSocket connections
type Handler struct {
	hub      *party.PartyHub
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewHandler creates a new WebSocket handler
func NewHandler(hub *party.PartyHub, logger *slog.Logger) *Handler {
	return &Handler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				// Allow all origins for development
				// In production, you should validate the origin
				return true
			},
		},
		logger: logger,
	}
}

// ServeHTTP handles WebSocket upgrade requests
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Get party code from query params
	code := r.URL.Query().Get("code")
	if code == "" {
		http.Error(w, "code is required", http.StatusBadRequest)
		return
	}

	// A participant keeps its identity across reconnects by passing it back
	participantID := r.URL.Query().Get("participantId")
	isReconnect := participantID != ""
	if !isReconnect {
		participantID = uuid.New().String()
	}

	// Upgrade connection to WebSocket
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	client := NewClient(conn, h.hub, uuid.New().String(), participantID, h.logger)

	// Join acknowledges with a snapshot before any delta is meaningful
	state, snapshot, err := h.hub.Join(r.Context(), code, client)
	if err != nil {
		if errors.Is(err, domain.ErrPartyNotFound) {
			client.sendError(ErrCodePartyNotFound, "Party not found")
		} else {
			h.logger.Error("join failed", "code", code, "error", err)
			client.sendError(ErrCodeInternalError, "Failed to join party")
		}
		client.Run() // let the error flush; the peer closes after reading it
		return
	}
	client.state = state

	h.logger.Info("websocket connected",
		"code", code,
		"participantID", participantID,
		"isReconnect", isReconnect,
	)

	client.sendSnapshot(snapshot)

	// Start the client
	client.Run()
}
