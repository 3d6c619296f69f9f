package spotify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
	spotifyauth "golang.org/x/oauth2/spotify"

	"github.com/distractedCoding/party-playlist/internal/store"
)

// ErrNotConnected is returned when a party has no provider credentials
var ErrNotConnected = errors.New("party not connected to spotify")

// Scopes requested from the host's account
var playbackScopes = []string{
	"user-read-playback-state",
	"user-modify-playback-state",
	"user-read-currently-playing",
}

// refreshLeeway renews tokens that expire this soon
const refreshLeeway = time.Minute

// TokenStore persists per-party provider credentials
type TokenStore interface {
	SaveProviderToken(ctx context.Context, partyID int64, tok store.ProviderToken) error
	ProviderToken(ctx context.Context, partyID int64) (*store.ProviderToken, error)
}

// PlayerState is the current playback state of the host's player
type PlayerState struct {
	Playing bool          `json:"playing"`
	Track   *PlayingTrack `json:"track"`
}

// PlayingTrack describes the track on the host's player
type PlayingTrack struct {
	Ref      string `json:"ref"`
	Title    string `json:"title"`
	Artist   string `json:"artist"`
	AlbumArt string `json:"albumArt,omitempty"`
	Progress int    `json:"progressMs"`
	Duration int    `json:"durationMs"`
}

// Playback controls the party host's player. The host authorizes once via
// the authorization-code flow; the tokens belong to the party and every
// control call acts on the host's active device. Expired access tokens are
// refreshed transparently and written back to the store.
type Playback struct {
	conf    *oauth2.Config
	tokens  TokenStore
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// NewPlayback creates a playback controller backed by the given token store
func NewPlayback(clientID, clientSecret, redirectURL string, tokens TokenStore, logger *slog.Logger) *Playback {
	return &Playback{
		conf: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       playbackScopes,
			Endpoint:     spotifyauth.Endpoint,
		},
		tokens:  tokens,
		baseURL: apiBaseURL,
		client:  &http.Client{Timeout: defaultTimeout},
		logger:  logger,
	}
}

// AuthURL returns the authorization URL the host visits to connect their
// account. state round-trips the party code through the provider.
func (p *Playback) AuthURL(state string) string {
	return p.conf.AuthCodeURL(state)
}

// Exchange trades an authorization code for tokens and stores them on the
// party
func (p *Playback) Exchange(ctx context.Context, partyID int64, code string) error {
	tok, err := p.conf.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("spotify token exchange: %w", err)
	}

	if err := p.tokens.SaveProviderToken(ctx, partyID, store.ProviderToken{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		Expiry:       tok.Expiry,
	}); err != nil {
		return err
	}

	p.logger.Info("party connected to spotify", "partyID", partyID)
	return nil
}

// Authorized reports whether the party has provider credentials
func (p *Playback) Authorized(ctx context.Context, partyID int64) bool {
	_, err := p.tokens.ProviderToken(ctx, partyID)
	return err == nil
}

// State returns the host player's current playback state
func (p *Playback) State(ctx context.Context, partyID int64) (*PlayerState, error) {
	resp, err := p.call(ctx, partyID, http.MethodGet, "/me/player", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	// 204: no active device, nothing playing
	if resp.StatusCode == http.StatusNoContent {
		return &PlayerState{Playing: false}, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apiError("playback state", resp)
	}

	var raw struct {
		IsPlaying  bool     `json:"is_playing"`
		ProgressMs int      `json:"progress_ms"`
		Item       apiTrack `json:"item"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("playback state decode: %w", err)
	}

	state := &PlayerState{Playing: raw.IsPlaying}
	if raw.Item.URI != "" {
		track := raw.Item.toTrack()
		state.Track = &PlayingTrack{
			Ref:      track.Ref,
			Title:    track.Title,
			Artist:   track.Artist,
			AlbumArt: track.AlbumArt,
			Progress: raw.ProgressMs,
			Duration: track.Duration,
		}
	}
	return state, nil
}

// Play starts playback of the given track on the host's player
func (p *Playback) Play(ctx context.Context, partyID int64, ref string) error {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return fmt.Errorf("empty track ref")
	}

	body, err := json.Marshal(map[string][]string{"uris": {ref}})
	if err != nil {
		return err
	}

	resp, err := p.call(ctx, partyID, http.MethodPut, "/me/player/play", body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		return apiError("play", resp)
	}
	return nil
}

// Pause pauses the host's player
func (p *Playback) Pause(ctx context.Context, partyID int64) error {
	resp, err := p.call(ctx, partyID, http.MethodPut, "/me/player/pause", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		return apiError("pause", resp)
	}
	return nil
}

// SkipNext advances the host's player to its next track
func (p *Playback) SkipNext(ctx context.Context, partyID int64) error {
	resp, err := p.call(ctx, partyID, http.MethodPost, "/me/player/next", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		return apiError("skip", resp)
	}
	return nil
}

// call issues an authenticated request against the provider API
func (p *Playback) call(ctx context.Context, partyID int64, method, path string, body []byte) (*http.Response, error) {
	token, err := p.accessToken(ctx, partyID)
	if err != nil {
		return nil, err
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return p.client.Do(req)
}

// accessToken returns a valid access token for the party, refreshing and
// re-persisting it when it is expired or about to expire
func (p *Playback) accessToken(ctx context.Context, partyID int64) (string, error) {
	rec, err := p.tokens.ProviderToken(ctx, partyID)
	if errors.Is(err, store.ErrNotFound) {
		return "", ErrNotConnected
	}
	if err != nil {
		return "", err
	}

	if rec.Expiry.IsZero() || time.Until(rec.Expiry) > refreshLeeway {
		return rec.AccessToken, nil
	}

	fresh, err := p.conf.TokenSource(ctx, &oauth2.Token{
		AccessToken:  rec.AccessToken,
		RefreshToken: rec.RefreshToken,
		Expiry:       rec.Expiry,
	}).Token()
	if err != nil {
		return "", fmt.Errorf("spotify token refresh: %w", err)
	}

	// The provider may rotate the refresh token on use
	refreshToken := fresh.RefreshToken
	if refreshToken == "" {
		refreshToken = rec.RefreshToken
	}
	if err := p.tokens.SaveProviderToken(ctx, partyID, store.ProviderToken{
		AccessToken:  fresh.AccessToken,
		RefreshToken: refreshToken,
		Expiry:       fresh.Expiry,
	}); err != nil {
		p.logger.Error("durability gap: refreshed token not persisted", "partyID", partyID, "error", err)
	}

	return fresh.AccessToken, nil
}

func apiError(op string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return fmt.Errorf("spotify %s (%d): %s", op, resp.StatusCode, body)
}
