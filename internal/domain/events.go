package domain

import "time"

// EventType represents the kind of party event broadcast to sessions.
// The set is closed; the broadcaster and transports dispatch exhaustively
// on it.
type EventType string

const (
	EventStateSnapshot     EventType = "state_snapshot"
	EventQueueDelta        EventType = "queue_delta"
	EventVoteDelta         EventType = "vote_delta"
	EventNowPlayingChanged EventType = "now_playing_changed"
	EventPresenceChanged   EventType = "presence_changed"
	EventError             EventType = "error"
)

// PartyEvent is a state-change notification for one party
type PartyEvent struct {
	Type    EventType `json:"type"`
	PartyID int64     `json:"partyId"`
	// SessionID targets the event at a single session when set
	SessionID string `json:"-"`
	// ExcludeSessionID drops one session from the fan-out when set
	ExcludeSessionID string      `json:"-"`
	Payload          interface{} `json:"payload,omitempty"`
	Timestamp        time.Time   `json:"timestamp"`
}

// NewEvent creates a party-wide event
func NewEvent(eventType EventType, partyID int64, payload interface{}) *PartyEvent {
	return &PartyEvent{
		Type:      eventType,
		PartyID:   partyID,
		Payload:   payload,
		Timestamp: time.Now(),
	}
}

// NewSessionEvent creates an event targeted at a single session
func NewSessionEvent(eventType EventType, partyID int64, sessionID string, payload interface{}) *PartyEvent {
	return &PartyEvent{
		Type:      eventType,
		PartyID:   partyID,
		SessionID: sessionID,
		Payload:   payload,
		Timestamp: time.Now(),
	}
}

// Payload types for the event kinds

// QueueAction says what a queue delta did
type QueueAction string

const (
	QueueSongAdded   QueueAction = "added"
	QueueSongRemoved QueueAction = "removed"
)

// SnapshotPayload acknowledges a join with the full current state
type SnapshotPayload struct {
	PartyID    int64      `json:"partyId"`
	Code       string     `json:"code"`
	HostID     string     `json:"hostId"`
	Queue      []SongInfo `json:"queue"`
	NowPlaying *SongInfo  `json:"nowPlaying,omitempty"`
	Presence   int        `json:"presence"`
}

// QueueDeltaPayload is sent when a song is added or removed. It carries the
// full ordered queue so clients never have to guess the resulting order.
type QueueDeltaPayload struct {
	Action QueueAction `json:"action"`
	Song   SongInfo    `json:"song"`
	Queue  []SongInfo  `json:"queue"`
}

// VoteDeltaPayload is sent when a song's score changes
type VoteDeltaPayload struct {
	SongID int64      `json:"songId"`
	Score  int        `json:"score"`
	Queue  []SongInfo `json:"queue"`
}

// NowPlayingPayload is sent when a song transitions to played
type NowPlayingPayload struct {
	Song  SongInfo   `json:"song"`
	Next  *SongInfo  `json:"next,omitempty"`
	Queue []SongInfo `json:"queue"`
}

// PresencePayload is sent when a session joins or leaves a party
type PresencePayload struct {
	ParticipantID string `json:"participantId"`
	Joined        bool   `json:"joined"`
	Count         int    `json:"count"`
}

// ErrorPayload reports a terminal request error to the originating session
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
