package domain

import (
	"strings"
	"time"
)

// PartySettings holds configurable party behavior
type PartySettings struct {
	// AllowSelfRemove lets non-host participants remove their own unplayed
	// submissions. The host can always remove any song.
	AllowSelfRemove bool `json:"allowSelfRemove"`
}

// DefaultPartySettings returns the default party settings
func DefaultPartySettings() PartySettings {
	return PartySettings{
		AllowSelfRemove: true,
	}
}

// Party holds the authoritative queue and vote state for one party.
// It is plain state with no locking; the coordinator serializes access.
type Party struct {
	ID        int64           `json:"id"`
	Code      string          `json:"code"`
	HostID    string          `json:"hostId"`
	Songs     map[int64]*Song `json:"songs"`
	Ledger    *VoteLedger     `json:"-"`
	Settings  PartySettings   `json:"settings"`
	CreatedAt time.Time       `json:"createdAt"`

	// nextSeq numbers queue entries; it doubles as the song ID and the
	// tie-break key, so two entries can never compare equal.
	nextSeq int64

	// nowPlayingID is the most recently played song. Zero when nothing has
	// been played this activation; playback position is not restored.
	nowPlayingID int64
}

// NewParty creates an empty party
func NewParty(id int64, code, hostID string) *Party {
	return &Party{
		ID:        id,
		Code:      code,
		HostID:    hostID,
		Songs:     make(map[int64]*Song),
		Ledger:    NewVoteLedger(),
		Settings:  DefaultPartySettings(),
		CreatedAt: time.Now(),
		nextSeq:   1,
	}
}

// Restore puts a persisted song back into the party without side effects.
// Ballots must be replayed separately via Ledger.Record.
func (p *Party) Restore(song *Song) {
	p.Songs[song.ID] = song
	if song.Seq >= p.nextSeq {
		p.nextSeq = song.Seq + 1
	}
}

// RecomputeScores re-derives every song's score from the ledger. Called once
// after restoring persisted state.
func (p *Party) RecomputeScores() {
	for _, s := range p.Songs {
		s.Score = p.Ledger.ScoreOf(s.ID)
	}
}

// AddSong adds a new queue entry. The submitter's implicit up-vote is
// recorded in the ledger, so the entry starts at score 1 and the submitter
// can later retract it like any other vote.
func (p *Party) AddSong(songRef, title, artist, albumArt, submitterID string) (*Song, error) {
	songRef = strings.TrimSpace(songRef)
	if songRef == "" {
		return nil, ErrEmptySongRef
	}
	if strings.TrimSpace(title) == "" {
		return nil, ErrEmptyTitle
	}

	for _, s := range p.Songs {
		if !s.Played && s.SongRef == songRef {
			return nil, ErrDuplicateSong
		}
	}

	seq := p.nextSeq
	p.nextSeq++

	song := &Song{
		ID:          seq,
		SongRef:     songRef,
		Title:       title,
		Artist:      artist,
		AlbumArt:    albumArt,
		Seq:         seq,
		SubmitterID: submitterID,
		QueuedAt:    time.Now(),
	}
	p.Songs[song.ID] = song

	p.Ledger.Record(song.ID, submitterID, VoteUp)
	song.Score = p.Ledger.ScoreOf(song.ID)

	return song, nil
}

// Vote applies a vote to an unplayed song
func (p *Party) Vote(songID int64, participantID string, dir VoteDirection) (*Song, VoteOutcome, error) {
	song, ok := p.Songs[songID]
	if !ok {
		return nil, VoteOutcome{}, ErrSongNotFound
	}
	if song.Played {
		return nil, VoteOutcome{}, ErrSongNotFound
	}

	outcome, err := p.Ledger.Apply(songID, participantID, dir)
	if err != nil {
		return nil, VoteOutcome{}, err
	}

	song.Score = p.Ledger.ScoreOf(songID)

	return song, outcome, nil
}

// MarkPlayed transitions a song to played. The transition is monotonic: a
// played song never returns to the queue and rejects further votes.
func (p *Party) MarkPlayed(songID int64) (*Song, error) {
	song, ok := p.Songs[songID]
	if !ok {
		return nil, ErrSongNotFound
	}
	if song.Played {
		return nil, ErrSongAlreadyPlayed
	}

	song.Played = true
	p.nowPlayingID = songID

	return song, nil
}

// RemoveSong deletes a queue entry. The host may remove any song; other
// participants may only remove their own unplayed submissions, and only when
// the party allows it.
func (p *Party) RemoveSong(songID int64, requesterID string) (*Song, error) {
	song, ok := p.Songs[songID]
	if !ok {
		return nil, ErrSongNotFound
	}

	if requesterID != p.HostID {
		ownUnplayed := p.Settings.AllowSelfRemove && song.SubmitterID == requesterID && !song.Played
		if !ownUnplayed {
			return nil, ErrNotHost
		}
	}

	delete(p.Songs, songID)
	p.Ledger.Forget(songID)
	if p.nowPlayingID == songID {
		p.nowPlayingID = 0
	}

	return song, nil
}

// IsHost checks if the given participant is the party host
func (p *Party) IsHost(participantID string) bool {
	return p.HostID == participantID
}

// SongList returns all songs as a slice
func (p *Party) SongList() []*Song {
	songs := make([]*Song, 0, len(p.Songs))
	for _, s := range p.Songs {
		songs = append(songs, s)
	}
	return songs
}

// Queue returns the ordered unplayed queue as wire views
func (p *Party) Queue() []SongInfo {
	ordered := OrderQueue(p.SongList())
	queue := make([]SongInfo, 0, len(ordered))
	for _, s := range ordered {
		queue = append(queue, s.ToInfo())
	}
	return queue
}

// NowPlaying returns the most recently played song, or nil
func (p *Party) NowPlaying() *Song {
	if p.nowPlayingID == 0 {
		return nil
	}
	return p.Songs[p.nowPlayingID]
}

// NextToPlay returns the next song selection, or nil if the queue is empty
func (p *Party) NextToPlay() *Song {
	return NextToPlay(p.SongList())
}
