package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/distractedCoding/party-playlist/internal/spotify"
	"github.com/distractedCoding/party-playlist/internal/store"
)

// PlayRequest is the body for starting playback of a track
type PlayRequest struct {
	SongRef string `json:"songRef"`
}

// partyForPlayback resolves the party for a playback request, writing the
// error response itself when it returns nil
func (s *Server) partyForPlayback(w http.ResponseWriter, r *http.Request, code string) *store.PartyRecord {
	if s.playback == nil {
		s.sendError(w, http.StatusServiceUnavailable, "PLAYBACK_DISABLED", "Playback control is not configured")
		return nil
	}

	rec, err := s.store.PartyByCode(r.Context(), strings.ToUpper(code))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.sendError(w, http.StatusNotFound, "PARTY_NOT_FOUND", "Party not found")
		} else {
			s.logger.Error("party lookup failed", "code", code, "error", err)
			s.sendError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
		}
		return nil
	}
	return rec
}

// sendPlaybackError maps playback failures onto API error codes
func (s *Server) sendPlaybackError(w http.ResponseWriter, op string, code string, err error) {
	if errors.Is(err, spotify.ErrNotConnected) {
		s.sendError(w, http.StatusUnauthorized, "NOT_CONNECTED", "The host has not connected a Spotify account")
		return
	}
	s.logger.Error("playback "+op+" failed", "code", code, "error", err)
	s.sendError(w, http.StatusBadGateway, "PLAYBACK_FAILED", "Playback control failed")
}

// handleSpotifyAuth handles GET /api/spotify/auth. The host is sent to
// Spotify's consent page; the party code rides along as the OAuth state.
func (s *Server) handleSpotifyAuth(w http.ResponseWriter, r *http.Request) {
	code := strings.ToUpper(r.URL.Query().Get("partyCode"))
	rec := s.partyForPlayback(w, r, code)
	if rec == nil {
		return
	}

	http.Redirect(w, r, s.playback.AuthURL(rec.Code), http.StatusFound)
}

// handleSpotifyCallback handles GET /api/spotify/callback
func (s *Server) handleSpotifyCallback(w http.ResponseWriter, r *http.Request) {
	state := strings.ToUpper(r.URL.Query().Get("state"))
	rec := s.partyForPlayback(w, r, state)
	if rec == nil {
		return
	}

	authCode := r.URL.Query().Get("code")
	if authCode == "" {
		s.sendError(w, http.StatusBadRequest, "MISSING_CODE", "An authorization code is required")
		return
	}

	if err := s.playback.Exchange(r.Context(), rec.ID, authCode); err != nil {
		s.logger.Error("spotify authorization failed", "code", rec.Code, "error", err)
		s.sendError(w, http.StatusBadGateway, "AUTH_FAILED", "Spotify authorization failed")
		return
	}

	http.Redirect(w, r, "/?spotify=connected&partyCode="+rec.Code, http.StatusFound)
}

// handlePlaybackState handles GET /api/parties/{code}/playback
func (s *Server) handlePlaybackState(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	rec := s.partyForPlayback(w, r, code)
	if rec == nil {
		return
	}

	state, err := s.playback.State(r.Context(), rec.ID)
	if err != nil {
		s.sendPlaybackError(w, "state", code, err)
		return
	}

	s.sendSuccess(w, state)
}

// handlePlaybackPlay handles POST /api/parties/{code}/playback/play
func (s *Server) handlePlaybackPlay(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	rec := s.partyForPlayback(w, r, code)
	if rec == nil {
		return
	}

	var req PlayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.SongRef) == "" {
		s.sendError(w, http.StatusBadRequest, "MISSING_SONG_REF", "A song ref is required")
		return
	}

	if err := s.playback.Play(r.Context(), rec.ID, req.SongRef); err != nil {
		s.sendPlaybackError(w, "play", code, err)
		return
	}

	s.sendSuccess(w, nil)
}

// handlePlaybackPause handles POST /api/parties/{code}/playback/pause
func (s *Server) handlePlaybackPause(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	rec := s.partyForPlayback(w, r, code)
	if rec == nil {
		return
	}

	if err := s.playback.Pause(r.Context(), rec.ID); err != nil {
		s.sendPlaybackError(w, "pause", code, err)
		return
	}

	s.sendSuccess(w, nil)
}

// handlePlaybackSkip handles POST /api/parties/{code}/playback/skip
func (s *Server) handlePlaybackSkip(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	rec := s.partyForPlayback(w, r, code)
	if rec == nil {
		return
	}

	if err := s.playback.SkipNext(r.Context(), rec.ID); err != nil {
		s.sendPlaybackError(w, "skip", code, err)
		return
	}

	s.sendSuccess(w, nil)
}
