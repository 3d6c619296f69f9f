package spotify

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/distractedCoding/party-playlist/internal/store"
)

func newTestPlayback(t *testing.T, serverURL string) (*Playback, int64) {
	t.Helper()

	st := store.NewMemory()
	rec, err := st.CreateParty(context.Background(), "ABC123", "host-1")
	require.NoError(t, err)

	p := NewPlayback("client-id", "client-secret", "http://localhost/callback", st, slog.New(slog.NewTextHandler(discard{}, nil)))
	if serverURL != "" {
		p.baseURL = serverURL
	}
	return p, rec.ID
}

func connectParty(t *testing.T, p *Playback, partyID int64) {
	t.Helper()
	err := p.tokens.SaveProviderToken(context.Background(), partyID, store.ProviderToken{
		AccessToken:  "fresh-token",
		RefreshToken: "refresh-token",
		Expiry:       time.Now().Add(time.Hour),
	})
	require.NoError(t, err)
}

func TestPlayback_AuthURLCarriesState(t *testing.T) {
	p, _ := newTestPlayback(t, "")

	url := p.AuthURL("ABC123")
	assert.Contains(t, url, "accounts.spotify.com")
	assert.Contains(t, url, "state=ABC123")
	assert.Contains(t, url, "user-modify-playback-state")
}

func TestPlayback_NotConnected(t *testing.T) {
	p, partyID := newTestPlayback(t, "")

	assert.False(t, p.Authorized(context.Background(), partyID))

	err := p.Pause(context.Background(), partyID)
	require.ErrorIs(t, err, ErrNotConnected)

	_, err = p.State(context.Background(), partyID)
	require.ErrorIs(t, err, ErrNotConnected)
}

func TestPlayback_PlaySendsTrackURI(t *testing.T) {
	var gotAuth string
	var gotBody map[string][]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/me/player/play", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	p, partyID := newTestPlayback(t, server.URL)
	connectParty(t, p, partyID)

	err := p.Play(context.Background(), partyID, "spotify:track:abc123")
	require.NoError(t, err)

	assert.Equal(t, "Bearer fresh-token", gotAuth)
	assert.Equal(t, []string{"spotify:track:abc123"}, gotBody["uris"])
}

func TestPlayback_SkipUsesNextEndpoint(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/me/player/next", r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	p, partyID := newTestPlayback(t, server.URL)
	connectParty(t, p, partyID)

	require.NoError(t, p.SkipNext(context.Background(), partyID))
}

func TestPlayback_StateParsesPlayer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/me/player", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"is_playing": true,
			"progress_ms": 45000,
			"item": {
				"uri": "spotify:track:abc123",
				"name": "Levitating",
				"artists": [{"name": "Dua Lipa"}],
				"album": {"name": "Future Nostalgia", "images": [{"url": "https://img/300", "height": 300}]},
				"duration_ms": 203000
			}
		}`))
	}))
	defer server.Close()

	p, partyID := newTestPlayback(t, server.URL)
	connectParty(t, p, partyID)

	state, err := p.State(context.Background(), partyID)
	require.NoError(t, err)

	assert.True(t, state.Playing)
	require.NotNil(t, state.Track)
	assert.Equal(t, "spotify:track:abc123", state.Track.Ref)
	assert.Equal(t, "Levitating", state.Track.Title)
	assert.Equal(t, 45000, state.Track.Progress)
	assert.Equal(t, 203000, state.Track.Duration)
}

func TestPlayback_StateIdleDevice(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	p, partyID := newTestPlayback(t, server.URL)
	connectParty(t, p, partyID)

	state, err := p.State(context.Background(), partyID)
	require.NoError(t, err)
	assert.False(t, state.Playing)
	assert.Nil(t, state.Track)
}

func TestPlayback_UpstreamErrorSurfaced(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"status":403}}`, http.StatusForbidden)
	}))
	defer server.Close()

	p, partyID := newTestPlayback(t, server.URL)
	connectParty(t, p, partyID)

	err := p.Pause(context.Background(), partyID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}

func TestPlayback_RejectsEmptyTrackRef(t *testing.T) {
	p, partyID := newTestPlayback(t, "")
	connectParty(t, p, partyID)

	err := p.Play(context.Background(), partyID, "  ")
	require.Error(t, err)
}
