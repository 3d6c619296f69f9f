package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/distractedCoding/party-playlist/internal/domain"
	"github.com/distractedCoding/party-playlist/internal/party"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer; an idle
	// session past this is treated as disconnected
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 4096

	// Size of the send channel buffer
	sendBufferSize = 256
)

// Client represents a WebSocket session bound to one participant and party
type Client struct {
	conn          *websocket.Conn
	hub           *party.PartyHub
	state         *party.PartyState
	sessionID     string
	participantID string
	send          chan []byte
	done          chan struct{}
	logger        *slog.Logger
	mu            sync.Mutex
	closed        bool
}

// NewClient creates a new WebSocket client
func NewClient(conn *websocket.Conn, hub *party.PartyHub, sessionID, participantID string, logger *slog.Logger) *Client {
	return &Client{
		conn:          conn,
		hub:           hub,
		sessionID:     sessionID,
		participantID: participantID,
		send:          make(chan []byte, sendBufferSize),
		done:          make(chan struct{}),
		logger:        logger,
	}
}

// ID implements party.Session
func (c *Client) ID() string {
	return c.sessionID
}

// ParticipantID implements party.Session
func (c *Client) ParticipantID() string {
	return c.participantID
}

// Send implements party.Session
func (c *Client) Send(message interface{}) error {
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}

	select {
	case c.send <- data:
		return nil
	default:
		// Buffer full, message dropped
		c.logger.Warn("send buffer full, message dropped", "sessionID", c.sessionID)
		return nil
	}
}

// Close implements party.Session
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}

	c.closed = true
	close(c.done)
	return c.conn.Close()
}

// Run starts the client's read and write pumps
func (c *Client) Run() {
	go c.writePump()
	c.readPump()
}

// readPump pumps messages from the WebSocket connection
func (c *Client) readPump() {
	defer func() {
		c.hub.Leave(c)
		c.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Debug("websocket read error", "error", err)
			}
			break
		}

		c.handleMessage(message)
	}
}

// writePump pumps messages from the send channel to the WebSocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			return
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			// Add queued messages to the current websocket message
			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage processes an incoming message from the client
func (c *Client) handleMessage(data []byte) {
	var msg ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.sendError(ErrCodeInvalidMessage, "Invalid message format")
		return
	}

	if c.state == nil && msg.Type != MsgPing {
		c.sendError(ErrCodePartyNotFound, "Not joined to a party")
		return
	}

	switch msg.Type {
	case MsgAddSong:
		c.handleAddSong(msg.Payload)
	case MsgCastVote:
		c.handleCastVote(msg.Payload)
	case MsgMarkPlayed:
		c.handleMarkPlayed(msg.Payload)
	case MsgRemoveSong:
		c.handleRemoveSong(msg.Payload)
	case MsgPing:
		c.sendPong()
	default:
		c.sendError(ErrCodeInvalidMessage, "Unknown message type")
	}
}

// handleAddSong handles an add_song message
func (c *Client) handleAddSong(raw json.RawMessage) {
	var payload AddSongPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		c.sendError(ErrCodeInvalidMessage, "Invalid payload")
		return
	}

	_, err := c.state.AddSong(context.Background(), payload.SongRef, payload.Title,
		payload.Artist, payload.AlbumArt, c.participantID)
	if err != nil {
		c.sendDomainError(err)
		return
	}
}

// handleCastVote handles a cast_vote message
func (c *Client) handleCastVote(raw json.RawMessage) {
	var payload CastVotePayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		c.sendError(ErrCodeInvalidMessage, "Invalid payload")
		return
	}
	if !payload.Direction.Valid() {
		c.sendError(ErrCodeInvalidMessage, "Direction must be up or down")
		return
	}

	_, err := c.state.Vote(context.Background(), payload.SongID, c.participantID, payload.Direction)
	if err != nil {
		c.sendDomainError(err)
		return
	}
}

// handleMarkPlayed handles a mark_played message
func (c *Client) handleMarkPlayed(raw json.RawMessage) {
	var payload MarkPlayedPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		c.sendError(ErrCodeInvalidMessage, "Invalid payload")
		return
	}

	if _, err := c.state.MarkPlayed(context.Background(), payload.SongID); err != nil {
		c.sendDomainError(err)
		return
	}
}

// handleRemoveSong handles a remove_song message
func (c *Client) handleRemoveSong(raw json.RawMessage) {
	var payload RemoveSongPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		c.sendError(ErrCodeInvalidMessage, "Invalid payload")
		return
	}

	if err := c.state.RemoveSong(context.Background(), payload.SongID, c.participantID); err != nil {
		c.sendDomainError(err)
		return
	}
}

// sendDomainError maps a domain error to a wire error code. Terminal request
// errors go only to the originating session.
func (c *Client) sendDomainError(err error) {
	switch {
	case errors.Is(err, domain.ErrSongNotFound):
		c.sendError(ErrCodeSongNotFound, "Song not found or already played")
	case errors.Is(err, domain.ErrDuplicateSong):
		c.sendError(ErrCodeDuplicateSong, "Song already in queue")
	case errors.Is(err, domain.ErrSongAlreadyPlayed):
		c.sendError(ErrCodeAlreadyPlayed, "Song already played")
	case errors.Is(err, domain.ErrNotHost):
		c.sendError(ErrCodeForbidden, "Not allowed to remove this song")
	case errors.Is(err, domain.ErrEmptySongRef), errors.Is(err, domain.ErrEmptyTitle),
		errors.Is(err, domain.ErrInvalidDirection):
		c.sendError(ErrCodeInvalidMessage, err.Error())
	default:
		c.sendError(ErrCodeInternalError, err.Error())
	}
}

// sendSnapshot acknowledges the join with the full current state
func (c *Client) sendSnapshot(snapshot *domain.SnapshotPayload) {
	c.Send(domain.NewSessionEvent(domain.EventStateSnapshot, snapshot.PartyID, c.sessionID, snapshot))
}

// sendError sends an error event to this session only
func (c *Client) sendError(code, message string) {
	partyID := int64(0)
	if c.state != nil {
		partyID = c.state.PartyID()
	}
	c.Send(domain.NewSessionEvent(domain.EventError, partyID, c.sessionID, &domain.ErrorPayload{
		Code:    code,
		Message: message,
	}))
}

// sendPong answers an application-level ping
func (c *Client) sendPong() {
	c.Send(map[string]string{"type": "pong"})
}
