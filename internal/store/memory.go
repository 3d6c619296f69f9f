package store

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/distractedCoding/party-playlist/internal/domain"
)

// Song IDs are per-party, so durable keys carry both halves
type songKey struct {
	partyID int64
	songID  int64
}

// Memory is an in-process Store for single-node runs and tests
type Memory struct {
	mu      sync.RWMutex
	parties map[int64]*PartyRecord
	byCode  map[string]int64
	songs   map[songKey]*SongRecord
	votes   map[songKey]map[string]domain.VoteDirection
	tokens  map[int64]*ProviderToken
	nextID  int64
}

// NewMemory creates an empty in-memory store
func NewMemory() *Memory {
	return &Memory{
		parties: make(map[int64]*PartyRecord),
		byCode:  make(map[string]int64),
		songs:   make(map[songKey]*SongRecord),
		votes:   make(map[songKey]map[string]domain.VoteDirection),
		tokens:  make(map[int64]*ProviderToken),
		nextID:  1,
	}
}

func (m *Memory) CreateParty(ctx context.Context, code, hostID string) (*PartyRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	code = strings.ToUpper(code)
	if _, exists := m.byCode[code]; exists {
		return nil, ErrCodeTaken
	}

	rec := &PartyRecord{
		ID:        m.nextID,
		Code:      code,
		HostID:    hostID,
		CreatedAt: time.Now(),
	}
	m.nextID++
	m.parties[rec.ID] = rec
	m.byCode[code] = rec.ID

	return rec, nil
}

func (m *Memory) PartyByCode(ctx context.Context, code string) (*PartyRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.byCode[strings.ToUpper(code)]
	if !ok {
		return nil, ErrNotFound
	}
	rec := *m.parties[id]
	return &rec, nil
}

func (m *Memory) PartyByID(ctx context.Context, id int64) (*PartyRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.parties[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *rec
	return &out, nil
}

func (m *Memory) Songs(ctx context.Context, partyID int64) ([]SongRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var songs []SongRecord
	for key, s := range m.songs {
		if key.partyID == partyID {
			songs = append(songs, *s)
		}
	}
	return songs, nil
}

func (m *Memory) Votes(ctx context.Context, partyID int64) ([]VoteRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var votes []VoteRecord
	for key, ballots := range m.votes {
		if key.partyID != partyID {
			continue
		}
		for participantID, dir := range ballots {
			votes = append(votes, VoteRecord{
				SongID:        key.songID,
				ParticipantID: participantID,
				Direction:     dir,
			})
		}
	}
	return votes, nil
}

func (m *Memory) SaveProviderToken(ctx context.Context, partyID int64, tok ProviderToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.parties[partyID]; !ok {
		return ErrNotFound
	}
	m.tokens[partyID] = &tok
	return nil
}

func (m *Memory) ProviderToken(ctx context.Context, partyID int64) (*ProviderToken, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	tok, ok := m.tokens[partyID]
	if !ok {
		return nil, ErrNotFound
	}
	out := *tok
	return &out, nil
}

func (m *Memory) AddSong(ctx context.Context, rec SongRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.songs[songKey{rec.PartyID, rec.ID}] = &rec
	return nil
}

func (m *Memory) SaveVote(ctx context.Context, partyID, songID int64, participantID string, dir domain.VoteDirection) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := songKey{partyID, songID}
	ballots, ok := m.votes[key]
	if !ok {
		ballots = make(map[string]domain.VoteDirection)
		m.votes[key] = ballots
	}
	ballots[participantID] = dir
	return nil
}

func (m *Memory) DeleteVote(ctx context.Context, partyID, songID int64, participantID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.votes[songKey{partyID, songID}], participantID)
	return nil
}

func (m *Memory) MarkPlayed(ctx context.Context, partyID, songID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	song, ok := m.songs[songKey{partyID, songID}]
	if !ok {
		return ErrNotFound
	}
	song.Played = true
	return nil
}

func (m *Memory) RemoveSong(ctx context.Context, partyID, songID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := songKey{partyID, songID}
	delete(m.songs, key)
	delete(m.votes, key)
	return nil
}

func (m *Memory) Close() {}
