package party

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/distractedCoding/party-playlist/internal/domain"
	"github.com/distractedCoding/party-playlist/internal/store"
)

func newTestHub(t *testing.T) (*PartyHub, *store.Memory) {
	t.Helper()

	st := store.NewMemory()
	hub := NewPartyHub(st, NewSessionRegistry(), DefaultHubOptions(), testLogger())
	t.Cleanup(hub.Close)

	return hub, st
}

func TestPartyHub_CreateParty(t *testing.T) {
	hub, _ := newTestHub(t)

	rec, err := hub.CreateParty(context.Background(), "host-1")
	require.NoError(t, err)
	assert.Len(t, rec.Code, DefaultCodeLength)
	assert.Equal(t, "host-1", rec.HostID)

	for _, ch := range rec.Code {
		assert.Contains(t, PartyCodeChars, string(ch))
	}
}

func TestPartyHub_ActivateUnknownParty(t *testing.T) {
	hub, _ := newTestHub(t)

	_, err := hub.Activate(context.Background(), "NOSUCH")
	assert.ErrorIs(t, err, domain.ErrPartyNotFound)
}

func TestPartyHub_ActivateLoadsPersistedState(t *testing.T) {
	hub, st := newTestHub(t)
	ctx := context.Background()

	rec, err := hub.CreateParty(ctx, "host-1")
	require.NoError(t, err)

	// Durable state written by a previous run of the process
	require.NoError(t, st.AddSong(ctx, store.SongRecord{
		ID: 1, PartyID: rec.ID, SongRef: "spotify:track:1", Title: "One", SubmitterID: "alice",
	}))
	require.NoError(t, st.AddSong(ctx, store.SongRecord{
		ID: 2, PartyID: rec.ID, SongRef: "spotify:track:2", Title: "Two", SubmitterID: "bob", Played: true,
	}))
	require.NoError(t, st.SaveVote(ctx, rec.ID, 1, "alice", domain.VoteUp))
	require.NoError(t, st.SaveVote(ctx, rec.ID, 1, "bob", domain.VoteUp))

	state, err := hub.Activate(ctx, rec.Code)
	require.NoError(t, err)

	snap := state.Snapshot(0)
	require.Len(t, snap.Queue, 1, "played songs stay out of the queue")
	assert.Equal(t, int64(1), snap.Queue[0].ID)
	assert.Equal(t, 2, snap.Queue[0].Score, "scores are re-derived from the ballots")

	// Activation is cached
	again, err := hub.Activate(ctx, rec.Code)
	require.NoError(t, err)
	assert.Same(t, state, again)

	// New adds continue past restored IDs
	song, err := state.AddSong(ctx, "spotify:track:3", "Three", "Artist", "", "carol")
	require.NoError(t, err)
	assert.Greater(t, song.ID, int64(2))
}

func TestPartyHub_JoinSendsSnapshotAndPresence(t *testing.T) {
	hub, _ := newTestHub(t)
	ctx := context.Background()

	rec, err := hub.CreateParty(ctx, "host-1")
	require.NoError(t, err)

	first := &fakeSession{id: "s1", participantID: "alice"}
	_, snap, err := hub.Join(ctx, rec.Code, first)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, snap.PartyID)
	assert.Equal(t, 1, snap.Presence)

	second := &fakeSession{id: "s2", participantID: "bob"}
	_, snap, err = hub.Join(ctx, rec.Code, second)
	require.NoError(t, err)
	assert.Equal(t, 2, snap.Presence)

	// The presence broadcast reaches the first session, not the joiner
	require.Eventually(t, func() bool {
		return len(first.events()) >= 1
	}, 2*time.Second, 5*time.Millisecond)
	assert.Empty(t, second.events())

	events := first.events()
	last := events[len(events)-1]
	assert.Equal(t, domain.EventPresenceChanged, last.Type)
	payload := last.Payload.(*domain.PresencePayload)
	assert.True(t, payload.Joined)
	assert.Equal(t, 2, payload.Count)
}

func TestPartyHub_LeaveBroadcastsPresence(t *testing.T) {
	hub, _ := newTestHub(t)
	ctx := context.Background()

	rec, err := hub.CreateParty(ctx, "host-1")
	require.NoError(t, err)

	sessions := []*fakeSession{
		{id: "s1", participantID: "alice"},
		{id: "s2", participantID: "bob"},
		{id: "s3", participantID: "carol"},
	}
	var state *PartyState
	for _, sess := range sessions {
		state, _, err = hub.Join(ctx, rec.Code, sess)
		require.NoError(t, err)
	}

	hub.Leave(sessions[2])

	assert.Equal(t, 2, hub.Registry().CountFor(state.PartyID()))

	// The remaining two sessions get the presence delta; the leaver does not
	for _, sess := range sessions[:2] {
		s := sess
		require.Eventually(t, func() bool {
			for _, ev := range s.events() {
				if ev.Type == domain.EventPresenceChanged {
					if p, ok := ev.Payload.(*domain.PresencePayload); ok && !p.Joined {
						return p.Count == 2
					}
				}
			}
			return false
		}, 2*time.Second, 5*time.Millisecond)
	}
	for _, ev := range sessions[2].events() {
		if p, ok := ev.Payload.(*domain.PresencePayload); ok {
			assert.True(t, p.Joined, "the leaver never sees its own departure")
		}
	}

	// Leaving twice is a no-op
	hub.Leave(sessions[2])
}

func TestPartyHub_EvictsIdleAfterGrace(t *testing.T) {
	st := store.NewMemory()
	opts := DefaultHubOptions()
	opts.GracePeriod = 10 * time.Millisecond
	hub := NewPartyHub(st, NewSessionRegistry(), opts, testLogger())
	defer hub.Close()

	ctx := context.Background()
	rec, err := hub.CreateParty(ctx, "host-1")
	require.NoError(t, err)

	sess := &fakeSession{id: "s1", participantID: "alice"}
	state, _, err := hub.Join(ctx, rec.Code, sess)
	require.NoError(t, err)

	_, err = state.AddSong(ctx, "spotify:track:1", "One", "Artist", "", "alice")
	require.NoError(t, err)

	hub.Leave(sess)
	time.Sleep(20 * time.Millisecond)
	hub.evictIdle()

	_, active := hub.GetState(rec.ID)
	assert.False(t, active, "empty party past grace is retired")

	// Durable state survives eviction; reactivation restores the queue
	reactivated, err := hub.Activate(ctx, rec.Code)
	require.NoError(t, err)
	assert.Len(t, reactivated.Snapshot(0).Queue, 1)
}

func TestPartyHub_NoEvictionWithinGrace(t *testing.T) {
	hub, _ := newTestHub(t)
	ctx := context.Background()

	rec, err := hub.CreateParty(ctx, "host-1")
	require.NoError(t, err)

	sess := &fakeSession{id: "s1", participantID: "alice"}
	_, _, err = hub.Join(ctx, rec.Code, sess)
	require.NoError(t, err)
	hub.Leave(sess)

	hub.evictIdle()

	_, active := hub.GetState(rec.ID)
	assert.True(t, active, "grace period tolerates reconnect races")
}

func TestPartyHub_Stats(t *testing.T) {
	hub, _ := newTestHub(t)
	ctx := context.Background()

	a, err := hub.CreateParty(ctx, "host-a")
	require.NoError(t, err)
	b, err := hub.CreateParty(ctx, "host-b")
	require.NoError(t, err)

	_, _, err = hub.Join(ctx, a.Code, &fakeSession{id: "s1", participantID: "p1"})
	require.NoError(t, err)
	_, _, err = hub.Join(ctx, a.Code, &fakeSession{id: "s2", participantID: "p2"})
	require.NoError(t, err)
	_, _, err = hub.Join(ctx, b.Code, &fakeSession{id: "s3", participantID: "p3"})
	require.NoError(t, err)

	assert.Equal(t, 2, hub.ActivePartyCount())
	assert.Equal(t, 3, hub.TotalSessionCount())
}

func TestPartyHub_ActivationDefersEviction(t *testing.T) {
	st := store.NewMemory()
	opts := DefaultHubOptions()
	opts.GracePeriod = 30 * time.Millisecond
	hub := NewPartyHub(st, NewSessionRegistry(), opts, testLogger())
	defer hub.Close()

	ctx := context.Background()
	rec, err := hub.CreateParty(ctx, "host-1")
	require.NoError(t, err)

	first, err := hub.Activate(ctx, rec.Code)
	require.NoError(t, err)

	// Age the state past the grace period, then activate again. The sweep
	// that follows must observe the fresh activity and keep the state, or a
	// connection arriving between activation and registration would bind to
	// a retired state while a second one is built for the same party.
	time.Sleep(40 * time.Millisecond)

	second, err := hub.Activate(ctx, rec.Code)
	require.NoError(t, err)
	require.Same(t, first, second)

	hub.evictIdle()

	third, err := hub.Activate(ctx, rec.Code)
	require.NoError(t, err)
	assert.Same(t, second, third, "one party must have exactly one live state")
}

func TestPartyHub_AttachedSinkReceivesEvents(t *testing.T) {
	hub, _ := newTestHub(t)
	ctx := context.Background()

	sink := &captureSink{}
	hub.AttachSink(sink)

	rec, err := hub.CreateParty(ctx, "host-1")
	require.NoError(t, err)
	state, err := hub.Activate(ctx, rec.Code)
	require.NoError(t, err)

	_, err = state.AddSong(ctx, "spotify:track:1", "One", "Artist", "", "alice")
	require.NoError(t, err)

	events := sink.waitFor(t, 1)
	assert.Equal(t, domain.EventQueueDelta, events[0].Type)
}
