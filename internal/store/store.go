// Package store persists parties, songs and votes. The coordinator loads a
// party's state once on activation and records every committed mutation;
// write failures are surfaced as errors, never hidden.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/distractedCoding/party-playlist/internal/domain"
)

var (
	// ErrNotFound is returned when a requested record does not exist
	ErrNotFound = errors.New("record not found")
	// ErrCodeTaken is returned when a party code collides with an existing one
	ErrCodeTaken = errors.New("party code already taken")
)

// PartyRecord is the durable form of a party
type PartyRecord struct {
	ID        int64
	Code      string
	HostID    string
	CreatedAt time.Time
}

// SongRecord is the durable form of a queue entry
type SongRecord struct {
	ID          int64
	PartyID     int64
	SongRef     string
	Title       string
	Artist      string
	AlbumArt    string
	Played      bool
	SubmitterID string
	QueuedAt    time.Time
}

// ProviderToken is a party's catalog-provider credential state. It belongs
// to the party, not a participant: the host connects their account once and
// playback control acts on their player.
type ProviderToken struct {
	AccessToken  string
	RefreshToken string
	Expiry       time.Time
}

// VoteRecord is the durable form of one ballot
type VoteRecord struct {
	SongID        int64
	ParticipantID string
	Direction     domain.VoteDirection
}

// Store is the persistence boundary for the coordinator
type Store interface {
	CreateParty(ctx context.Context, code, hostID string) (*PartyRecord, error)
	PartyByCode(ctx context.Context, code string) (*PartyRecord, error)
	PartyByID(ctx context.Context, id int64) (*PartyRecord, error)

	Songs(ctx context.Context, partyID int64) ([]SongRecord, error)
	Votes(ctx context.Context, partyID int64) ([]VoteRecord, error)

	SaveProviderToken(ctx context.Context, partyID int64, tok ProviderToken) error
	ProviderToken(ctx context.Context, partyID int64) (*ProviderToken, error)

	AddSong(ctx context.Context, rec SongRecord) error
	SaveVote(ctx context.Context, partyID, songID int64, participantID string, dir domain.VoteDirection) error
	DeleteVote(ctx context.Context, partyID, songID int64, participantID string) error
	MarkPlayed(ctx context.Context, partyID, songID int64) error
	RemoveSong(ctx context.Context, partyID, songID int64) error

	Close()
}
