package http

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/distractedCoding/party-playlist/internal/config"
	"github.com/distractedCoding/party-playlist/internal/party"
	"github.com/distractedCoding/party-playlist/internal/spotify"
	"github.com/distractedCoding/party-playlist/internal/store"
)

func newPlaybackTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()

	st := store.NewMemory()
	hub := party.NewPartyHub(st, party.NewSessionRegistry(), party.DefaultHubOptions(), slog.New(slog.NewTextHandler(discard{}, nil)))
	t.Cleanup(hub.Close)

	logger := slog.New(slog.NewTextHandler(discard{}, &slog.HandlerOptions{Level: slog.LevelError}))
	playback := spotify.NewPlayback("client-id", "client-secret", "http://localhost/callback", st, logger)

	cfg := &config.Config{}
	s := NewServer(cfg, hub, st, nil, playback, logger)

	ts := httptest.NewServer(s.Router())
	t.Cleanup(ts.Close)

	return s, ts
}

// noRedirect returns a client that surfaces 3xx responses instead of
// following them
func noRedirect() *http.Client {
	return &http.Client{
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func TestSpotifyAuth_RedirectsToConsent(t *testing.T) {
	_, ts := newPlaybackTestServer(t)
	code := createParty(t, ts, "host-1")

	resp, err := noRedirect().Get(ts.URL + "/api/spotify/auth?partyCode=" + code)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusFound, resp.StatusCode)
	location := resp.Header.Get("Location")
	assert.Contains(t, location, "accounts.spotify.com")
	assert.Contains(t, location, "state="+code)
}

func TestSpotifyAuth_UnknownParty(t *testing.T) {
	_, ts := newPlaybackTestServer(t)

	resp, err := noRedirect().Get(ts.URL + "/api/spotify/auth?partyCode=NOSUCH")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	envelope := decode(t, resp.Body, nil)
	assert.Equal(t, "PARTY_NOT_FOUND", envelope.Error.Code)
}

func TestPlayback_DisabledWithoutCredentials(t *testing.T) {
	_, ts := newTestServer(t)
	code := createParty(t, ts, "host-1")

	resp, err := http.Get(ts.URL + "/api/parties/" + code + "/playback")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	envelope := decode(t, resp.Body, nil)
	assert.Equal(t, "PLAYBACK_DISABLED", envelope.Error.Code)
}

func TestPlayback_RequiresConnectedHost(t *testing.T) {
	_, ts := newPlaybackTestServer(t)
	code := createParty(t, ts, "host-1")

	resp, err := http.Post(ts.URL+"/api/parties/"+code+"/playback/pause", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	envelope := decode(t, resp.Body, nil)
	assert.Equal(t, "NOT_CONNECTED", envelope.Error.Code)
}

func TestPlaybackPlay_RequiresSongRef(t *testing.T) {
	_, ts := newPlaybackTestServer(t)
	code := createParty(t, ts, "host-1")

	resp, err := http.Post(ts.URL+"/api/parties/"+code+"/playback/play", "application/json", bytes.NewReader([]byte(`{}`)))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	envelope := decode(t, resp.Body, nil)
	assert.Equal(t, "MISSING_SONG_REF", envelope.Error.Code)
}
