package party

import (
	"log/slog"

	"github.com/distractedCoding/party-playlist/internal/domain"
)

// EventSink receives committed party events in the order the coordinator
// emitted them
type EventSink interface {
	Deliver(event *domain.PartyEvent)
}

// Broadcaster fans a party event out to every session registered to the
// party. Delivery is best-effort per recipient: one slow or failed session
// never blocks the others, and never fails the mutation that triggered the
// event.
type Broadcaster struct {
	registry *SessionRegistry
	logger   *slog.Logger
}

// NewBroadcaster creates a broadcaster over the given registry
func NewBroadcaster(registry *SessionRegistry, logger *slog.Logger) *Broadcaster {
	return &Broadcaster{
		registry: registry,
		logger:   logger,
	}
}

// Deliver implements EventSink
func (b *Broadcaster) Deliver(event *domain.PartyEvent) {
	// Targeted events go to a single session
	if event.SessionID != "" {
		for _, sess := range b.registry.SessionsFor(event.PartyID) {
			if sess.ID() == event.SessionID {
				b.send(sess, event)
				return
			}
		}
		return
	}

	for _, sess := range b.registry.SessionsFor(event.PartyID) {
		if sess.ID() == event.ExcludeSessionID {
			continue
		}
		b.send(sess, event)
	}
}

func (b *Broadcaster) send(sess Session, event *domain.PartyEvent) {
	if err := sess.Send(event); err != nil {
		b.logger.Debug("failed to send to session",
			"sessionID", sess.ID(),
			"type", event.Type,
			"error", err,
		)
	}
}
