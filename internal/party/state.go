package party

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/distractedCoding/party-playlist/internal/domain"
	"github.com/distractedCoding/party-playlist/internal/store"
)

const eventQueueSize = 100

// PartyState is the single authority for one party's queue and vote state.
// Every mutation takes the state mutex, so mutations for one party form a
// total order; mutations for different parties share nothing. Committed
// mutations queue exactly one event, consumed by a single goroutine, so all
// sessions observe broadcasts in commit order.
type PartyState struct {
	party  *domain.Party
	mu     sync.RWMutex
	store  store.Store
	logger *slog.Logger

	events chan *domain.PartyEvent
	sinks  []EventSink
	done   chan struct{}

	activeMu   sync.Mutex
	lastActive time.Time
}

// NewPartyState wraps a party and starts its broadcast loop
func NewPartyState(p *domain.Party, st store.Store, sinks []EventSink, logger *slog.Logger) *PartyState {
	s := &PartyState{
		party:      p,
		store:      st,
		logger:     logger,
		events:     make(chan *domain.PartyEvent, eventQueueSize),
		sinks:      sinks,
		done:       make(chan struct{}),
		lastActive: time.Now(),
	}

	go s.eventLoop()

	return s
}

// PartyID returns the party's internal id
func (s *PartyState) PartyID() int64 {
	return s.party.ID
}

// Code returns the party's shareable code
func (s *PartyState) Code() string {
	return s.party.Code
}

// HostID returns the party host's participant id
func (s *PartyState) HostID() string {
	return s.party.HostID
}

// LastActive returns the time of the last mutation or session change
func (s *PartyState) LastActive() time.Time {
	s.activeMu.Lock()
	defer s.activeMu.Unlock()
	return s.lastActive
}

// Touch records activity, deferring eviction
func (s *PartyState) Touch() {
	s.activeMu.Lock()
	s.lastActive = time.Now()
	s.activeMu.Unlock()
}

// AddSong adds a song to the queue and broadcasts the resulting queue delta
func (s *PartyState) AddSong(ctx context.Context, songRef, title, artist, albumArt, submitterID string) (*domain.Song, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	song, err := s.party.AddSong(songRef, title, artist, albumArt, submitterID)
	if err != nil {
		return nil, err
	}

	s.persist(ctx, "add song", func() error {
		if err := s.store.AddSong(ctx, store.SongRecord{
			ID:          song.ID,
			PartyID:     s.party.ID,
			SongRef:     song.SongRef,
			Title:       song.Title,
			Artist:      song.Artist,
			AlbumArt:    song.AlbumArt,
			SubmitterID: song.SubmitterID,
			QueuedAt:    song.QueuedAt,
		}); err != nil {
			return err
		}
		return s.store.SaveVote(ctx, s.party.ID, song.ID, submitterID, domain.VoteUp)
	})

	s.queueEvent(domain.NewEvent(domain.EventQueueDelta, s.party.ID, &domain.QueueDeltaPayload{
		Action: domain.QueueSongAdded,
		Song:   song.ToInfo(),
		Queue:  s.party.Queue(),
	}))
	s.Touch()

	return song, nil
}

// Vote applies a vote and broadcasts the resulting score delta
func (s *PartyState) Vote(ctx context.Context, songID int64, participantID string, dir domain.VoteDirection) (*domain.Song, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	song, outcome, err := s.party.Vote(songID, participantID, dir)
	if err != nil {
		return nil, err
	}

	s.persist(ctx, "vote", func() error {
		if outcome.Effective == domain.VoteNone {
			return s.store.DeleteVote(ctx, s.party.ID, songID, participantID)
		}
		return s.store.SaveVote(ctx, s.party.ID, songID, participantID, outcome.Effective)
	})

	s.queueEvent(domain.NewEvent(domain.EventVoteDelta, s.party.ID, &domain.VoteDeltaPayload{
		SongID: song.ID,
		Score:  song.Score,
		Queue:  s.party.Queue(),
	}))
	s.Touch()

	return song, nil
}

// MarkPlayed transitions a song to played and broadcasts the new selection
func (s *PartyState) MarkPlayed(ctx context.Context, songID int64) (*domain.Song, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	song, err := s.party.MarkPlayed(songID)
	if err != nil {
		return nil, err
	}

	s.persist(ctx, "mark played", func() error {
		return s.store.MarkPlayed(ctx, s.party.ID, songID)
	})

	payload := &domain.NowPlayingPayload{
		Song:  song.ToInfo(),
		Queue: s.party.Queue(),
	}
	if next := s.party.NextToPlay(); next != nil {
		info := next.ToInfo()
		payload.Next = &info
	}
	s.queueEvent(domain.NewEvent(domain.EventNowPlayingChanged, s.party.ID, payload))
	s.Touch()

	return song, nil
}

// RemoveSong removes a queue entry and broadcasts the resulting queue delta
func (s *PartyState) RemoveSong(ctx context.Context, songID int64, requesterID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	song, err := s.party.RemoveSong(songID, requesterID)
	if err != nil {
		return err
	}

	s.persist(ctx, "remove song", func() error {
		return s.store.RemoveSong(ctx, s.party.ID, songID)
	})

	s.queueEvent(domain.NewEvent(domain.EventQueueDelta, s.party.ID, &domain.QueueDeltaPayload{
		Action: domain.QueueSongRemoved,
		Song:   song.ToInfo(),
		Queue:  s.party.Queue(),
	}))
	s.Touch()

	return nil
}

// Snapshot returns the full current state for a joining session
func (s *PartyState) Snapshot(presence int) *domain.SnapshotPayload {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := &domain.SnapshotPayload{
		PartyID:  s.party.ID,
		Code:     s.party.Code,
		HostID:   s.party.HostID,
		Queue:    s.party.Queue(),
		Presence: presence,
	}
	if now := s.party.NowPlaying(); now != nil {
		info := now.ToInfo()
		snap.NowPlaying = &info
	}
	return snap
}

// Queue returns the current ordered unplayed queue
func (s *PartyState) Queue() []domain.SongInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.party.Queue()
}

// NextToPlay returns the current playback selection, or nil
func (s *PartyState) NextToPlay() *domain.SongInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	next := s.party.NextToPlay()
	if next == nil {
		return nil
	}
	info := next.ToInfo()
	return &info
}

// NotifyPresence queues a presence-changed event. Routing presence through
// the same event queue as mutations keeps the per-party broadcast order
// total.
func (s *PartyState) NotifyPresence(participantID, excludeSessionID string, joined bool, count int) {
	ev := domain.NewEvent(domain.EventPresenceChanged, s.party.ID, &domain.PresencePayload{
		ParticipantID: participantID,
		Joined:        joined,
		Count:         count,
	})
	ev.ExcludeSessionID = excludeSessionID
	s.queueEvent(ev)
	s.Touch()
}

// persist records a committed mutation. Persistence failure does not roll the
// mutation back: clients already observe the new state, so the gap is logged
// for reconciliation instead.
func (s *PartyState) persist(ctx context.Context, op string, fn func() error) {
	if err := fn(); err != nil {
		s.logger.Error("durability gap: mutation committed in memory but not persisted",
			"partyID", s.party.ID,
			"op", op,
			"error", err,
		)
	}
}

// queueEvent adds an event to the broadcast queue
func (s *PartyState) queueEvent(event *domain.PartyEvent) {
	select {
	case s.events <- event:
	default:
		s.logger.Warn("event queue full, dropping event", "partyID", s.party.ID, "type", event.Type)
	}
}

// eventLoop forwards committed events to every sink in commit order. On
// shutdown the queue is drained first, so a committed broadcast is never
// dropped by a racing Close.
func (s *PartyState) eventLoop() {
	for {
		select {
		case event := <-s.events:
			s.deliver(event)
		case <-s.done:
			for {
				select {
				case event := <-s.events:
					s.deliver(event)
				default:
					return
				}
			}
		}
	}
}

func (s *PartyState) deliver(event *domain.PartyEvent) {
	for _, sink := range s.sinks {
		sink.Deliver(event)
	}
}

// Close shuts down the state's broadcast loop
func (s *PartyState) Close() {
	select {
	case <-s.done:
		return // already closed
	default:
		close(s.done)
	}
}
