// Package relay bridges party events across server instances through Redis
// pub/sub. Each instance publishes the events it commits and replays events
// published by other instances into its local fan-out, so sessions connected
// to different instances observe the same deltas.
package relay

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/distractedCoding/party-playlist/internal/domain"
)

const channel = "party:events"

// envelope wraps a party event with its origin instance so a node can skip
// its own publications
type envelope struct {
	Origin  string           `json:"origin"`
	PartyID int64            `json:"partyId"`
	Type    domain.EventType `json:"type"`
	Payload json.RawMessage  `json:"payload,omitempty"`
}

// Relay is the Redis pub/sub bridge
type Relay struct {
	rdb    *redis.Client
	origin string
	logger *slog.Logger
}

// New creates a relay over an existing Redis client
func New(rdb *redis.Client, logger *slog.Logger) *Relay {
	return &Relay{
		rdb:    rdb,
		origin: uuid.New().String(),
		logger: logger,
	}
}

// Deliver implements party.EventSink: committed local events are published
// for the other instances. Publish failures are logged and swallowed; they
// never fail the mutation.
func (r *Relay) Deliver(event *domain.PartyEvent) {
	// Targeted events (join snapshots, request errors) are transport-local
	if event.SessionID != "" {
		return
	}

	payload, err := json.Marshal(event.Payload)
	if err != nil {
		r.logger.Warn("relay: marshal payload", "type", event.Type, "error", err)
		return
	}

	env := envelope{
		Origin:  r.origin,
		PartyID: event.PartyID,
		Type:    event.Type,
		Payload: payload,
	}
	data, err := json.Marshal(env)
	if err != nil {
		r.logger.Warn("relay: marshal envelope", "type", event.Type, "error", err)
		return
	}

	if err := r.rdb.Publish(context.Background(), channel, data).Err(); err != nil {
		r.logger.Warn("relay: publish failed", "type", event.Type, "error", err)
	}
}

// Run subscribes to the event channel and feeds remote events into sink
// until ctx is canceled
func (r *Relay) Run(ctx context.Context, sink func(*domain.PartyEvent)) error {
	sub := r.rdb.Subscribe(ctx, channel)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			r.handle(msg.Payload, sink)
		}
	}
}

func (r *Relay) handle(raw string, sink func(*domain.PartyEvent)) {
	var env envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		r.logger.Warn("relay: bad envelope", "error", err)
		return
	}
	if env.Origin == r.origin {
		return // our own publication
	}

	var payload interface{}
	if len(env.Payload) > 0 {
		if err := json.Unmarshal(env.Payload, &payload); err != nil {
			r.logger.Warn("relay: bad payload", "type", env.Type, "error", err)
			return
		}
	}

	sink(domain.NewEvent(env.Type, env.PartyID, payload))
}
