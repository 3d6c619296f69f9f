package party

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/distractedCoding/party-playlist/internal/domain"
	"github.com/distractedCoding/party-playlist/internal/store"
)

const (
	// DefaultCodeLength is the default length for party codes
	DefaultCodeLength = 6

	// DefaultGracePeriod is how long an empty party's in-memory state is kept
	// before eviction, tolerating reconnect races
	DefaultGracePeriod = 2 * time.Minute

	evictInterval = 30 * time.Second
)

// PartyCodeChars are characters used for party codes (no ambiguous chars)
const PartyCodeChars = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// HubOptions tunes hub behavior
type HubOptions struct {
	CodeLength  int
	GracePeriod time.Duration
	Settings    domain.PartySettings
}

// DefaultHubOptions returns the default hub options
func DefaultHubOptions() HubOptions {
	return HubOptions{
		CodeLength:  DefaultCodeLength,
		GracePeriod: DefaultGracePeriod,
		Settings:    domain.DefaultPartySettings(),
	}
}

// PartyHub coordinates all active parties. Party state is activated lazily
// from the store on first connection and retired once the party has had no
// sessions for the grace period. There is no lock shared across parties
// beyond the hub's own map.
type PartyHub struct {
	mu     sync.RWMutex
	states map[int64]*PartyState

	store    store.Store
	registry *SessionRegistry
	sinks    []EventSink
	opts     HubOptions
	logger   *slog.Logger
	done     chan struct{}
}

// NewPartyHub creates a hub and starts its eviction loop
func NewPartyHub(st store.Store, registry *SessionRegistry, opts HubOptions, logger *slog.Logger) *PartyHub {
	hub := &PartyHub{
		states:   make(map[int64]*PartyState),
		store:    st,
		registry: registry,
		sinks:    []EventSink{NewBroadcaster(registry, logger)},
		opts:     opts,
		logger:   logger,
		done:     make(chan struct{}),
	}

	go hub.evictLoop()

	return hub
}

// AttachSink adds an event sink fed after the local broadcaster, in the same
// per-party order. Parties activated before the attach keep their sink set.
func (h *PartyHub) AttachSink(sink EventSink) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sinks = append(h.sinks, sink)
}

// Registry returns the hub's session registry
func (h *PartyHub) Registry() *SessionRegistry {
	return h.registry
}

// CreateParty creates a new durable party with a fresh shareable code
func (h *PartyHub) CreateParty(ctx context.Context, hostID string) (*store.PartyRecord, error) {
	for attempts := 0; attempts < 10; attempts++ {
		code, err := h.generateCode()
		if err != nil {
			return nil, fmt.Errorf("generate party code: %w", err)
		}
		rec, err := h.store.CreateParty(ctx, code, hostID)
		if errors.Is(err, store.ErrCodeTaken) {
			continue
		}
		if err != nil {
			return nil, err
		}
		h.logger.Info("party created", "code", rec.Code, "partyID", rec.ID)
		return rec, nil
	}
	return nil, fmt.Errorf("failed to generate unique party code")
}

// Activate returns the live state for a party, loading it from the store on
// first access
func (h *PartyHub) Activate(ctx context.Context, code string) (*PartyState, error) {
	rec, err := h.store.PartyByCode(ctx, code)
	if errors.Is(err, store.ErrNotFound) {
		return nil, domain.ErrPartyNotFound
	}
	if err != nil {
		return nil, err
	}

	// Touching under the hub lock keeps the eviction sweep, which holds the
	// write lock, from retiring a state between activation and registration.
	h.mu.RLock()
	state, ok := h.states[rec.ID]
	if ok {
		state.Touch()
	}
	h.mu.RUnlock()
	if ok {
		return state, nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	// Re-check under the write lock: another connection may have activated
	// the party meanwhile.
	if state, ok := h.states[rec.ID]; ok {
		state.Touch()
		return state, nil
	}

	state, err = h.load(ctx, rec)
	if err != nil {
		return nil, err
	}
	h.states[rec.ID] = state

	h.logger.Info("party activated", "code", rec.Code, "partyID", rec.ID)

	return state, nil
}

// load rebuilds a party's in-memory state from its durable records
func (h *PartyHub) load(ctx context.Context, rec *store.PartyRecord) (*PartyState, error) {
	p := domain.NewParty(rec.ID, rec.Code, rec.HostID)
	p.Settings = h.opts.Settings
	p.CreatedAt = rec.CreatedAt

	songs, err := h.store.Songs(ctx, rec.ID)
	if err != nil {
		return nil, err
	}
	for _, s := range songs {
		p.Restore(&domain.Song{
			ID:          s.ID,
			SongRef:     s.SongRef,
			Title:       s.Title,
			Artist:      s.Artist,
			AlbumArt:    s.AlbumArt,
			Played:      s.Played,
			Seq:         s.ID,
			SubmitterID: s.SubmitterID,
			QueuedAt:    s.QueuedAt,
		})
	}

	votes, err := h.store.Votes(ctx, rec.ID)
	if err != nil {
		return nil, err
	}
	for _, v := range votes {
		p.Ledger.Record(v.SongID, v.ParticipantID, v.Direction)
	}
	p.RecomputeScores()

	return NewPartyState(p, h.store, h.sinks, h.logger), nil
}

// Join activates the party, registers the session and returns the snapshot
// that acknowledges the join. Other sessions get a presence broadcast.
func (h *PartyHub) Join(ctx context.Context, code string, sess Session) (*PartyState, *domain.SnapshotPayload, error) {
	state, err := h.Activate(ctx, code)
	if err != nil {
		return nil, nil, err
	}

	h.registry.Register(state.PartyID(), sess)
	count := h.registry.CountFor(state.PartyID())

	snapshot := state.Snapshot(count)
	state.NotifyPresence(sess.ParticipantID(), sess.ID(), true, count)

	return state, snapshot, nil
}

// Leave processes a detected disconnect. Idempotent: unknown sessions are a
// no-op. An already-admitted mutation is never rolled back by a disconnect;
// the session just stops receiving broadcasts.
func (h *PartyHub) Leave(sess Session) {
	partyID, remaining, ok := h.registry.Unregister(sess.ID())
	if !ok {
		return
	}

	h.mu.RLock()
	state, ok := h.states[partyID]
	h.mu.RUnlock()
	if !ok {
		return
	}

	state.NotifyPresence(sess.ParticipantID(), sess.ID(), false, remaining)
}

// GetState returns the live state for an already-active party
func (h *PartyHub) GetState(partyID int64) (*PartyState, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	state, ok := h.states[partyID]
	return state, ok
}

// ActivePartyCount returns the number of parties with live in-memory state
func (h *PartyHub) ActivePartyCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.states)
}

// TotalSessionCount returns the total number of sessions across all parties
func (h *PartyHub) TotalSessionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	total := 0
	for id := range h.states {
		total += h.registry.CountFor(id)
	}
	return total
}

// Close shuts down the hub and all party state
func (h *PartyHub) Close() {
	select {
	case <-h.done:
		return
	default:
		close(h.done)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for _, state := range h.states {
		state.Close()
	}
	h.states = make(map[int64]*PartyState)
}

// generateCode generates a random party code
func (h *PartyHub) generateCode() (string, error) {
	length := h.opts.CodeLength
	if length <= 0 {
		length = DefaultCodeLength
	}

	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}

	code := make([]byte, length)
	for i := range code {
		code[i] = PartyCodeChars[int(b[i])%len(PartyCodeChars)]
	}

	return string(code), nil
}

// evictLoop periodically retires empty parties past the grace period
func (h *PartyHub) evictLoop() {
	ticker := time.NewTicker(evictInterval)
	defer ticker.Stop()

	for {
		select {
		case <-h.done:
			return
		case <-ticker.C:
			h.evictIdle()
		}
	}
}

// evictIdle removes in-memory state for parties with no sessions. The grace
// period tolerates reconnect races; durable state is untouched and the party
// reactivates from the store on the next connection.
func (h *PartyHub) evictIdle() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, state := range h.states {
		if h.registry.CountFor(id) > 0 {
			continue
		}
		if time.Since(state.LastActive()) < h.opts.GracePeriod {
			continue
		}
		state.Close()
		delete(h.states, id)
		h.logger.Info("idle party evicted", "partyID", id, "code", state.Code())
	}
}
