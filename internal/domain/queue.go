package domain

import "sort"

// OrderQueue returns the canonical play order for the given songs: unplayed
// entries sorted by score descending, earlier-queued entries winning ties.
// It is a pure function of its input and never mutates the given slice.
func OrderQueue(songs []*Song) []*Song {
	ordered := make([]*Song, 0, len(songs))
	for _, s := range songs {
		if !s.Played {
			ordered = append(ordered, s)
		}
	}

	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].Score != ordered[j].Score {
			return ordered[i].Score > ordered[j].Score
		}
		return ordered[i].Seq < ordered[j].Seq
	})

	return ordered
}

// NextToPlay returns the unplayed song with the highest score, or nil if the
// queue is empty
func NextToPlay(songs []*Song) *Song {
	ordered := OrderQueue(songs)
	if len(ordered) == 0 {
		return nil
	}
	return ordered[0]
}
