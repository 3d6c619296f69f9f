package ws

import (
	"encoding/json"

	"github.com/distractedCoding/party-playlist/internal/domain"
)

// MessageType represents the type of an inbound WebSocket message
type MessageType string

// Client → Server message types. The set is closed: handleMessage dispatches
// exhaustively and rejects anything else.
const (
	MsgAddSong    MessageType = "add_song"
	MsgCastVote   MessageType = "cast_vote"
	MsgMarkPlayed MessageType = "mark_played"
	MsgRemoveSong MessageType = "remove_song"
	MsgPing       MessageType = "ping"
)

// ClientMessage represents a message from client to server. Payload stays
// raw until the type is known, then unmarshals into the matching payload
// struct.
type ClientMessage struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// AddSongPayload is the payload for add_song
type AddSongPayload struct {
	SongRef  string `json:"songRef"`
	Title    string `json:"title"`
	Artist   string `json:"artist"`
	AlbumArt string `json:"albumArt,omitempty"`
}

// CastVotePayload is the payload for cast_vote
type CastVotePayload struct {
	SongID    int64                `json:"songId"`
	Direction domain.VoteDirection `json:"direction"`
}

// MarkPlayedPayload is the payload for mark_played
type MarkPlayedPayload struct {
	SongID int64 `json:"songId"`
}

// RemoveSongPayload is the payload for remove_song
type RemoveSongPayload struct {
	SongID int64 `json:"songId"`
}

// Error codes reported to the originating session
const (
	ErrCodeInvalidMessage = "INVALID_MESSAGE"
	ErrCodePartyNotFound  = "PARTY_NOT_FOUND"
	ErrCodeSongNotFound   = "SONG_NOT_FOUND"
	ErrCodeDuplicateSong  = "DUPLICATE_SONG"
	ErrCodeAlreadyPlayed  = "ALREADY_PLAYED"
	ErrCodeForbidden      = "FORBIDDEN"
	ErrCodeInternalError  = "INTERNAL_ERROR"
)
