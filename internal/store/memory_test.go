package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/distractedCoding/party-playlist/internal/domain"
)

func TestMemory_PartyLifecycle(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	rec, err := m.CreateParty(ctx, "abcd23", "host-1")
	require.NoError(t, err)
	assert.Equal(t, "ABCD23", rec.Code, "codes are stored upper-cased")

	_, err = m.CreateParty(ctx, "ABCD23", "host-2")
	assert.ErrorIs(t, err, ErrCodeTaken)

	found, err := m.PartyByCode(ctx, "abcd23")
	require.NoError(t, err)
	assert.Equal(t, rec.ID, found.ID)

	found, err = m.PartyByID(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "host-1", found.HostID)

	_, err = m.PartyByCode(ctx, "ZZZZZZ")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemory_SongsAndVotesScopedToParty(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	p1, err := m.CreateParty(ctx, "AAAA22", "h1")
	require.NoError(t, err)
	p2, err := m.CreateParty(ctx, "BBBB22", "h2")
	require.NoError(t, err)

	// Same song ID in two parties must not collide
	require.NoError(t, m.AddSong(ctx, SongRecord{ID: 1, PartyID: p1.ID, SongRef: "ref-a", Title: "A", SubmitterID: "x"}))
	require.NoError(t, m.AddSong(ctx, SongRecord{ID: 1, PartyID: p2.ID, SongRef: "ref-b", Title: "B", SubmitterID: "y"}))

	require.NoError(t, m.SaveVote(ctx, p1.ID, 1, "x", domain.VoteUp))
	require.NoError(t, m.SaveVote(ctx, p2.ID, 1, "y", domain.VoteDown))

	songs, err := m.Songs(ctx, p1.ID)
	require.NoError(t, err)
	require.Len(t, songs, 1)
	assert.Equal(t, "ref-a", songs[0].SongRef)

	votes, err := m.Votes(ctx, p1.ID)
	require.NoError(t, err)
	require.Len(t, votes, 1)
	assert.Equal(t, domain.VoteUp, votes[0].Direction)

	require.NoError(t, m.MarkPlayed(ctx, p1.ID, 1))
	songs, err = m.Songs(ctx, p1.ID)
	require.NoError(t, err)
	assert.True(t, songs[0].Played)

	songs, err = m.Songs(ctx, p2.ID)
	require.NoError(t, err)
	assert.False(t, songs[0].Played, "played flag is scoped to its party")

	require.NoError(t, m.RemoveSong(ctx, p2.ID, 1))
	songs, err = m.Songs(ctx, p2.ID)
	require.NoError(t, err)
	assert.Empty(t, songs)
	votes, err = m.Votes(ctx, p2.ID)
	require.NoError(t, err)
	assert.Empty(t, votes, "removing a song drops its ballots")
}

func TestMemory_DeleteVote(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	p, err := m.CreateParty(ctx, "CCCC22", "h")
	require.NoError(t, err)
	require.NoError(t, m.AddSong(ctx, SongRecord{ID: 1, PartyID: p.ID, SongRef: "r", Title: "T", SubmitterID: "x"}))
	require.NoError(t, m.SaveVote(ctx, p.ID, 1, "x", domain.VoteUp))
	require.NoError(t, m.DeleteVote(ctx, p.ID, 1, "x"))

	votes, err := m.Votes(ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, votes)

	// Idempotent on missing vote
	assert.NoError(t, m.DeleteVote(ctx, p.ID, 1, "x"))
}

func TestMemory_ProviderToken(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	p, err := m.CreateParty(ctx, "DDDD33", "h")
	require.NoError(t, err)

	_, err = m.ProviderToken(ctx, p.ID)
	require.ErrorIs(t, err, ErrNotFound, "no token before the host connects")

	err = m.SaveProviderToken(ctx, p.ID+99, ProviderToken{AccessToken: "a"})
	require.ErrorIs(t, err, ErrNotFound, "tokens belong to an existing party")

	saved := ProviderToken{
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		Expiry:       time.Now().Add(time.Hour),
	}
	require.NoError(t, m.SaveProviderToken(ctx, p.ID, saved))

	got, err := m.ProviderToken(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, saved, *got)

	// Refresh overwrites in place
	saved.AccessToken = "access-2"
	require.NoError(t, m.SaveProviderToken(ctx, p.ID, saved))
	got, err = m.ProviderToken(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "access-2", got.AccessToken)
}
