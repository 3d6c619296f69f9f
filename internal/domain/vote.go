package domain

// VoteDirection is the direction of a vote
type VoteDirection string

const (
	VoteUp   VoteDirection = "up"
	VoteDown VoteDirection = "down"

	// VoteNone means the participant has no recorded vote on the song
	VoteNone VoteDirection = ""
)

// Valid reports whether d is a castable direction
func (d VoteDirection) Valid() bool {
	return d == VoteUp || d == VoteDown
}

// weight returns the score contribution of a recorded vote
func (d VoteDirection) weight() int {
	switch d {
	case VoteUp:
		return 1
	case VoteDown:
		return -1
	default:
		return 0
	}
}

// VoteOutcome describes the result of applying a vote
type VoteOutcome struct {
	// Effective is the participant's vote after the apply: VoteNone if the
	// vote was retracted, otherwise the recorded direction.
	Effective VoteDirection
	// Delta is the score change caused by the apply (+-1 record/retract, +-2 flip).
	Delta int
}

// VoteLedger records at most one vote per (song, participant) pair.
// Scores are always derived from the recorded ballots, never tracked
// separately, so they cannot drift.
type VoteLedger struct {
	ballots map[int64]map[string]VoteDirection // songID -> participantID -> direction
}

// NewVoteLedger creates an empty ledger
func NewVoteLedger() *VoteLedger {
	return &VoteLedger{
		ballots: make(map[int64]map[string]VoteDirection),
	}
}

// Record stores a vote without toggle semantics. Used when loading
// persisted ballots on party activation.
func (l *VoteLedger) Record(songID int64, participantID string, dir VoteDirection) {
	if !dir.Valid() {
		return
	}
	votes, ok := l.ballots[songID]
	if !ok {
		votes = make(map[string]VoteDirection)
		l.ballots[songID] = votes
	}
	votes[participantID] = dir
}

// Apply applies a vote with toggle semantics:
//   - no prior vote: record it, score moves by +-1
//   - prior vote in the same direction: retract it, score moves back by -+1
//   - prior vote in the other direction: flip it, score moves by +-2
func (l *VoteLedger) Apply(songID int64, participantID string, dir VoteDirection) (VoteOutcome, error) {
	if !dir.Valid() {
		return VoteOutcome{}, ErrInvalidDirection
	}

	votes, ok := l.ballots[songID]
	if !ok {
		votes = make(map[string]VoteDirection)
		l.ballots[songID] = votes
	}

	prior := votes[participantID]
	switch prior {
	case VoteNone:
		votes[participantID] = dir
		return VoteOutcome{Effective: dir, Delta: dir.weight()}, nil
	case dir:
		delete(votes, participantID)
		return VoteOutcome{Effective: VoteNone, Delta: -dir.weight()}, nil
	default:
		votes[participantID] = dir
		return VoteOutcome{Effective: dir, Delta: 2 * dir.weight()}, nil
	}
}

// ScoreOf computes a song's net score from the recorded ballots
func (l *VoteLedger) ScoreOf(songID int64) int {
	score := 0
	for _, dir := range l.ballots[songID] {
		score += dir.weight()
	}
	return score
}

// VoteOf returns the participant's current vote on a song
func (l *VoteLedger) VoteOf(songID int64, participantID string) VoteDirection {
	return l.ballots[songID][participantID]
}

// Forget drops all ballots for a song
func (l *VoteLedger) Forget(songID int64) {
	delete(l.ballots, songID)
}
