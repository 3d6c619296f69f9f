package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/distractedCoding/party-playlist/internal/domain"
	"github.com/distractedCoding/party-playlist/internal/store"
)

// Response is a standard API response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *ErrorInfo  `json:"error,omitempty"`
}

// ErrorInfo contains error details
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// CreatePartyRequest is the body for party creation
type CreatePartyRequest struct {
	HostID string `json:"hostId"`
}

// CreatePartyResponse is the response for party creation
type CreatePartyResponse struct {
	Code       string `json:"code"`
	InviteLink string `json:"inviteLink"`
}

// GetPartyResponse is the response for getting party info
type GetPartyResponse struct {
	Code          string `json:"code"`
	HostID        string `json:"hostId"`
	Participants  int    `json:"participants"`
	QueueLength   int    `json:"queueLength"`
	PlaybackReady bool   `json:"playbackReady"`
}

// PartyExistsResponse is the response for checking if a party exists
type PartyExistsResponse struct {
	Exists bool `json:"exists"`
}

// QueueResponse is the response for the queue read endpoint
type QueueResponse struct {
	Queue []domain.SongInfo `json:"queue"`
}

// NextToPlayResponse is the response for the playback selection endpoint
type NextToPlayResponse struct {
	Next *domain.SongInfo `json:"next"`
}

// HealthResponse is the response for health check
type HealthResponse struct {
	Status string `json:"status"`
}

// StatsResponse is the response for the stats endpoint
type StatsResponse struct {
	ActiveParties int `json:"activeParties"`
	TotalSessions int `json:"totalSessions"`
}

// handleCreateParty handles POST /api/parties
func (s *Server) handleCreateParty(w http.ResponseWriter, r *http.Request) {
	var req CreatePartyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.HostID) == "" {
		s.sendError(w, http.StatusBadRequest, "MISSING_HOST_ID", "A host id is required")
		return
	}

	rec, err := s.hub.CreateParty(r.Context(), strings.TrimSpace(req.HostID))
	if err != nil {
		s.logger.Error("party creation failed", "error", err)
		s.sendError(w, http.StatusInternalServerError, "CREATION_FAILED", "Failed to create party")
		return
	}

	scheme := "http"
	if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
		scheme = "https"
	}

	s.sendSuccess(w, &CreatePartyResponse{
		Code:       rec.Code,
		InviteLink: scheme + "://" + r.Host + "/join/" + rec.Code,
	})
}

// handleGetParty handles GET /api/parties/{code}
func (s *Server) handleGetParty(w http.ResponseWriter, r *http.Request) {
	code := strings.ToUpper(chi.URLParam(r, "code"))

	rec, err := s.store.PartyByCode(r.Context(), code)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.sendError(w, http.StatusNotFound, "PARTY_NOT_FOUND", "Party not found")
		} else {
			s.logger.Error("party lookup failed", "code", code, "error", err)
			s.sendError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
		}
		return
	}

	resp := &GetPartyResponse{
		Code:         rec.Code,
		HostID:       rec.HostID,
		Participants: s.hub.Registry().CountFor(rec.ID),
	}
	if state, ok := s.hub.GetState(rec.ID); ok {
		resp.QueueLength = len(state.Queue())
	}
	if s.playback != nil {
		resp.PlaybackReady = s.playback.Authorized(r.Context(), rec.ID)
	}

	s.sendSuccess(w, resp)
}

// handlePartyExists handles GET /api/parties/{code}/exists
func (s *Server) handlePartyExists(w http.ResponseWriter, r *http.Request) {
	code := strings.ToUpper(chi.URLParam(r, "code"))

	_, err := s.store.PartyByCode(r.Context(), code)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		s.logger.Error("party lookup failed", "code", code, "error", err)
		s.sendError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
		return
	}

	s.sendSuccess(w, &PartyExistsResponse{Exists: err == nil})
}

// handleGetQueue handles GET /api/parties/{code}/queue. Reading through the
// hub activates the party, so the order shown here matches what connected
// sessions see.
func (s *Server) handleGetQueue(w http.ResponseWriter, r *http.Request) {
	code := strings.ToUpper(chi.URLParam(r, "code"))

	state, err := s.hub.Activate(r.Context(), code)
	if err != nil {
		if errors.Is(err, domain.ErrPartyNotFound) {
			s.sendError(w, http.StatusNotFound, "PARTY_NOT_FOUND", "Party not found")
		} else {
			s.logger.Error("party activation failed", "code", code, "error", err)
			s.sendError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
		}
		return
	}

	s.sendSuccess(w, &QueueResponse{Queue: state.Queue()})
}

// handleNextToPlay handles GET /api/parties/{code}/next
func (s *Server) handleNextToPlay(w http.ResponseWriter, r *http.Request) {
	code := strings.ToUpper(chi.URLParam(r, "code"))

	state, err := s.hub.Activate(r.Context(), code)
	if err != nil {
		if errors.Is(err, domain.ErrPartyNotFound) {
			s.sendError(w, http.StatusNotFound, "PARTY_NOT_FOUND", "Party not found")
		} else {
			s.logger.Error("party activation failed", "code", code, "error", err)
			s.sendError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
		}
		return
	}

	s.sendSuccess(w, &NextToPlayResponse{Next: state.NextToPlay()})
}

// handleSearch handles GET /api/search
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if s.catalog == nil {
		s.sendError(w, http.StatusServiceUnavailable, "SEARCH_DISABLED", "Catalog search is not configured")
		return
	}

	query := r.URL.Query().Get("q")
	if strings.TrimSpace(query) == "" {
		s.sendError(w, http.StatusBadRequest, "MISSING_QUERY", "A search query is required")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	tracks, err := s.catalog.Search(r.Context(), query, limit)
	if err != nil {
		s.logger.Error("catalog search failed", "query", query, "error", err)
		s.sendError(w, http.StatusBadGateway, "SEARCH_FAILED", "Catalog search failed")
		return
	}

	s.sendSuccess(w, tracks)
}

// handleHealth handles GET /api/health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.sendSuccess(w, &HealthResponse{Status: "ok"})
}

// handleStats handles GET /api/stats
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	s.sendSuccess(w, &StatsResponse{
		ActiveParties: s.hub.ActivePartyCount(),
		TotalSessions: s.hub.TotalSessionCount(),
	})
}

// sendSuccess sends a successful JSON response
func (s *Server) sendSuccess(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(&Response{
		Success: true,
		Data:    data,
	})
}

// sendError sends an error JSON response
func (s *Server) sendError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(&Response{
		Success: false,
		Error: &ErrorInfo{
			Code:    code,
			Message: message,
		},
	})
}
