package spotify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2/clientcredentials"
	spotifyauth "golang.org/x/oauth2/spotify"
	"golang.org/x/time/rate"
)

const (
	apiBaseURL     = "https://api.spotify.com/v1"
	defaultTimeout = 10 * time.Second
	cacheTTL       = 5 * time.Minute

	// MaxSearchLimit caps the number of results per search request
	MaxSearchLimit = 20
)

// Track is one search result, shaped for queue submission
type Track struct {
	Ref      string `json:"ref"`
	Title    string `json:"title"`
	Artist   string `json:"artist"`
	Album    string `json:"album"`
	AlbumArt string `json:"albumArt,omitempty"`
	Duration int    `json:"durationMs"`
}

type cacheEntry struct {
	tracks    []Track
	expiresAt time.Time
}

// Client searches the Spotify catalog using app-level credentials.
// Requests are rate limited and results cached briefly, since several
// participants in a party tend to search for the same thing.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger

	cacheMu sync.RWMutex
	cache   map[string]cacheEntry
}

// NewClient creates a client authenticating with the client-credentials flow.
// The returned http.Client refreshes the app token transparently.
func NewClient(ctx context.Context, clientID, clientSecret string, logger *slog.Logger) *Client {
	conf := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     spotifyauth.Endpoint.TokenURL,
	}

	httpClient := conf.Client(ctx)
	httpClient.Timeout = defaultTimeout

	return &Client{
		baseURL:    apiBaseURL,
		httpClient: httpClient,
		// Spotify's app quota is generous; 10 rps keeps us well clear of 429s
		limiter: rate.NewLimiter(rate.Every(100*time.Millisecond), 5),
		logger:  logger,
		cache:   make(map[string]cacheEntry),
	}
}

// Search finds tracks matching the query
func (c *Client) Search(ctx context.Context, query string, limit int) ([]Track, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("empty search query")
	}
	if limit <= 0 || limit > MaxSearchLimit {
		limit = MaxSearchLimit
	}

	key := strconv.Itoa(limit) + ":" + strings.ToLower(query)
	if tracks, ok := c.cached(key); ok {
		return tracks, nil
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("type", "track")
	params.Set("limit", strconv.Itoa(limit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("spotify search: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("spotify search (%d): %s", resp.StatusCode, body)
	}

	var result searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("spotify search decode: %w", err)
	}

	tracks := make([]Track, 0, len(result.Tracks.Items))
	for _, item := range result.Tracks.Items {
		tracks = append(tracks, item.toTrack())
	}

	c.store(key, tracks)
	c.logger.Debug("spotify search", "query", query, "results", len(tracks))

	return tracks, nil
}

func (c *Client) cached(key string) ([]Track, bool) {
	c.cacheMu.RLock()
	defer c.cacheMu.RUnlock()

	entry, ok := c.cache[key]
	if !ok || time.Now().After(entry.expiresAt) {
		return nil, false
	}
	return entry.tracks, true
}

func (c *Client) store(key string, tracks []Track) {
	c.cacheMu.Lock()
	defer c.cacheMu.Unlock()

	// Prune lazily rather than with a background sweeper
	now := time.Now()
	for k, entry := range c.cache {
		if now.After(entry.expiresAt) {
			delete(c.cache, k)
		}
	}

	c.cache[key] = cacheEntry{tracks: tracks, expiresAt: now.Add(cacheTTL)}
}

// Spotify API wire types

type searchResponse struct {
	Tracks struct {
		Items []apiTrack `json:"items"`
	} `json:"tracks"`
}

type apiTrack struct {
	URI     string `json:"uri"`
	Name    string `json:"name"`
	Artists []struct {
		Name string `json:"name"`
	} `json:"artists"`
	Album struct {
		Name   string `json:"name"`
		Images []struct {
			URL    string `json:"url"`
			Height int    `json:"height"`
		} `json:"images"`
	} `json:"album"`
	DurationMs int `json:"duration_ms"`
}

func (t apiTrack) toTrack() Track {
	names := make([]string, 0, len(t.Artists))
	for _, a := range t.Artists {
		names = append(names, a.Name)
	}

	// Spotify lists images largest first; pick the one closest to 300px
	art := ""
	best := -1
	for _, img := range t.Album.Images {
		diff := img.Height - 300
		if diff < 0 {
			diff = -diff
		}
		if best < 0 || diff < best {
			best = diff
			art = img.URL
		}
	}

	return Track{
		Ref:      t.URI,
		Title:    t.Name,
		Artist:   strings.Join(names, ", "),
		Album:    t.Album.Name,
		AlbumArt: art,
		Duration: t.DurationMs,
	}
}
