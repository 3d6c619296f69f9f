package domain

import "time"

// Song represents one queue entry in a party
type Song struct {
	ID          int64     `json:"id"`
	SongRef     string    `json:"songRef"` // opaque catalog provider URI
	Title       string    `json:"title"`
	Artist      string    `json:"artist"`
	AlbumArt    string    `json:"albumArt,omitempty"`
	Score       int       `json:"score"`
	Played      bool      `json:"played"`
	Seq         int64     `json:"-"` // per-party enqueue counter, tie-break key
	SubmitterID string    `json:"submitterId"`
	QueuedAt    time.Time `json:"queuedAt"`
}

// SongInfo is the wire view of a queue entry
type SongInfo struct {
	ID       int64  `json:"id"`
	SongRef  string `json:"songRef"`
	Title    string `json:"title"`
	Artist   string `json:"artist"`
	AlbumArt string `json:"albumArt,omitempty"`
	Score    int    `json:"score"`
	Played   bool   `json:"played"`
}

// ToInfo converts a Song to its wire view
func (s *Song) ToInfo() SongInfo {
	return SongInfo{
		ID:       s.ID,
		SongRef:  s.SongRef,
		Title:    s.Title,
		Artist:   s.Artist,
		AlbumArt: s.AlbumArt,
		Score:    s.Score,
		Played:   s.Played,
	}
}
