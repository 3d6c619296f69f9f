package party

import "sync"

// Session represents a live connection bound to one participant and one party
type Session interface {
	ID() string
	ParticipantID() string
	Send(message interface{}) error
	Close() error
}

// SessionRegistry tracks which sessions belong to which party. It is the only
// structure mutated from multiple connection handlers concurrently, so it
// carries its own lock, separate from the per-party mutation serialization.
type SessionRegistry struct {
	mu      sync.RWMutex
	byParty map[int64]map[string]Session
	partyOf map[string]int64 // session ID -> party ID
}

// NewSessionRegistry creates an empty registry
func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{
		byParty: make(map[int64]map[string]Session),
		partyOf: make(map[string]int64),
	}
}

// Register binds a session to a party. A session belongs to exactly one party:
// re-registering the same session first removes the old binding.
func (r *SessionRegistry) Register(partyID int64, sess Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if oldParty, ok := r.partyOf[sess.ID()]; ok {
		delete(r.byParty[oldParty], sess.ID())
		if len(r.byParty[oldParty]) == 0 {
			delete(r.byParty, oldParty)
		}
	}

	sessions, ok := r.byParty[partyID]
	if !ok {
		sessions = make(map[string]Session)
		r.byParty[partyID] = sessions
	}
	sessions[sess.ID()] = sess
	r.partyOf[sess.ID()] = partyID
}

// Unregister removes a session binding. Idempotent: unknown sessions are a
// no-op. Returns the party the session belonged to and the remaining session
// count for that party.
func (r *SessionRegistry) Unregister(sessionID string) (partyID int64, remaining int, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	partyID, ok = r.partyOf[sessionID]
	if !ok {
		return 0, 0, false
	}

	delete(r.partyOf, sessionID)
	delete(r.byParty[partyID], sessionID)
	remaining = len(r.byParty[partyID])
	if remaining == 0 {
		delete(r.byParty, partyID)
	}

	return partyID, remaining, true
}

// CountFor returns the number of sessions registered to a party
func (r *SessionRegistry) CountFor(partyID int64) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byParty[partyID])
}

// SessionsFor returns a snapshot of the sessions registered to a party
func (r *SessionRegistry) SessionsFor(partyID int64) []Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sessions := make([]Session, 0, len(r.byParty[partyID]))
	for _, sess := range r.byParty[partyID] {
		sessions = append(sessions, sess)
	}
	return sessions
}

// Close closes every registered session and clears the registry
func (r *SessionRegistry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, sessions := range r.byParty {
		for _, sess := range sessions {
			sess.Close()
		}
	}
	r.byParty = make(map[int64]map[string]Session)
	r.partyOf = make(map[string]int64)
}
