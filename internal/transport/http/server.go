package http

import (
	"bufio"
	"context"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/distractedCoding/party-playlist/internal/config"
	"github.com/distractedCoding/party-playlist/internal/party"
	"github.com/distractedCoding/party-playlist/internal/spotify"
	"github.com/distractedCoding/party-playlist/internal/store"
	"github.com/distractedCoding/party-playlist/internal/transport/ws"
)

// Server represents the HTTP server
type Server struct {
	server   *http.Server
	hub      *party.PartyHub
	store    store.Store
	catalog  *spotify.Client
	playback *spotify.Playback
	config   *config.Config
	logger   *slog.Logger
}

// NewServer creates a new HTTP server. catalog may be nil, disabling search;
// playback may be nil, disabling host player control.
func NewServer(cfg *config.Config, hub *party.PartyHub, st store.Store, catalog *spotify.Client, playback *spotify.Playback, logger *slog.Logger) *Server {
	s := &Server{
		hub:      hub,
		store:    st,
		catalog:  catalog,
		playback: playback,
		config:   cfg,
		logger:   logger,
	}

	s.server = &http.Server{
		Addr:         cfg.GetAddr(),
		Handler:      s.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Router builds the route tree
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(s.middleware)

	r.Route("/api", func(r chi.Router) {
		r.Post("/parties", s.handleCreateParty)
		r.Get("/parties/{code}", s.handleGetParty)
		r.Get("/parties/{code}/exists", s.handlePartyExists)
		r.Get("/parties/{code}/queue", s.handleGetQueue)
		r.Get("/parties/{code}/next", s.handleNextToPlay)
		r.Get("/search", s.handleSearch)
		r.Get("/health", s.handleHealth)
		r.Get("/stats", s.handleStats)

		r.Get("/spotify/auth", s.handleSpotifyAuth)
		r.Get("/spotify/callback", s.handleSpotifyCallback)
		r.Get("/parties/{code}/playback", s.handlePlaybackState)
		r.Post("/parties/{code}/playback/play", s.handlePlaybackPlay)
		r.Post("/parties/{code}/playback/pause", s.handlePlaybackPause)
		r.Post("/parties/{code}/playback/skip", s.handlePlaybackSkip)
	})

	r.Method(http.MethodGet, "/ws", ws.NewHandler(s.hub, s.logger))

	return r
}

// middleware adds CORS headers and request logging
func (s *Server) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapped.statusCode,
			"duration", time.Since(start),
		)
	})
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("server starting", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server shutting down")
	return s.server.Shutdown(ctx)
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Hijack implements http.Hijacker for WebSocket upgrades
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if hijacker, ok := rw.ResponseWriter.(http.Hijacker); ok {
		return hijacker.Hijack()
	}
	return nil, nil, http.ErrNotSupported
}

// Flush implements http.Flusher
func (rw *responseWriter) Flush() {
	if flusher, ok := rw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}
