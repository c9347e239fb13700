package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/lorrc/team-kpi-backend/internal/core/domain"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 1024

	// SendBufferSize is the number of events a client may lag behind.
	SendBufferSize = 16
)

// Client is one dashboard connection. ReadPump handles subscription messages
// and WritePump delivers snapshot events queued on Send.
type Client struct {
	Hub    *Hub
	Conn   *websocket.Conn
	Send   chan domain.Event
	UserID uuid.UUID

	// fixedTeam is set for callers confined to one team.
	fixedTeam *uuid.UUID

	// mu protects team and closed
	mu     sync.Mutex
	team   *uuid.UUID
	closed bool

	logger *slog.Logger
}

// NewClient creates a new WebSocket client. A non-nil fixedTeam confines the
// client to that team whatever it subscribes to.
func NewClient(hub *Hub, conn *websocket.Conn, userID uuid.UUID, fixedTeam *uuid.UUID, logger *slog.Logger) *Client {
	return &Client{
		Hub:       hub,
		Conn:      conn,
		Send:      make(chan domain.Event, SendBufferSize),
		UserID:    userID,
		fixedTeam: fixedTeam,
		logger:    logger.With("user_id", userID.String()),
	}
}

// CloseSend safely closes the Send channel exactly once
func (c *Client) CloseSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.Send)
	}
}

// trySend queues event without blocking. It reports false only when the
// buffer is full; sends to a closed client are dropped.
func (c *Client) trySend(event domain.Event) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return true
	}
	select {
	case c.Send <- event:
		return true
	default:
		return false
	}
}

// Scope returns the team whose rows the client receives, or nil for all.
func (c *Client) Scope() *uuid.UUID {
	if c.fixedTeam != nil {
		return c.fixedTeam
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.team
}

// SetTeam narrows the client to one team; nil widens it again. Clients with a
// fixed team cannot change it.
func (c *Client) SetTeam(teamLeadID *uuid.UUID) bool {
	if c.fixedTeam != nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.team = teamLeadID
	return true
}

// ReadPump pumps messages from the websocket connection to the hub.
// This method runs in its own goroutine.
func (c *Client) ReadPump() {
	defer func() {
		c.Hub.Detach(c)
		_ = c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	if err := c.Conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.logger.Error("failed to set read deadline", "error", err)
		return
	}

	c.Conn.SetPongHandler(func(string) error {
		if err := c.Conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
			c.logger.Error("failed to set read deadline in pong handler", "error", err)
		}
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.logger.Warn("websocket read error", "error", err)
			}
			break
		}

		c.handleIncomingMessage(message)
	}
}

// WritePump pumps messages from the hub to the websocket connection.
// This method runs in its own goroutine.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.Conn.Close()
	}()

	for {
		select {
		case event, ok := <-c.Send:
			if err := c.Conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.logger.Error("failed to set write deadline", "error", err)
				return
			}

			if !ok {
				// The hub closed the channel. Send close message.
				if err := c.Conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil {
					c.logger.Debug("failed to send close message", "error", err)
				}
				return
			}

			if err := c.writeJSON(event); err != nil {
				c.logger.Error("failed to write message", "error", err)
				return
			}

		case <-ticker.C:
			if err := c.Conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.logger.Error("failed to set write deadline for ping", "error", err)
				return
			}

			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logger.Debug("failed to send ping", "error", err)
				return
			}
		}
	}
}

// writeJSON writes a JSON message to the websocket connection
func (c *Client) writeJSON(event domain.Event) error {
	w, err := c.Conn.NextWriter(websocket.TextMessage)
	if err != nil {
		return err
	}

	if err := json.NewEncoder(w).Encode(event); err != nil {
		_ = w.Close()
		return err
	}

	return w.Close()
}

// --- Incoming Message Handling ---

// ClientMessage is the structure for messages sent from the client.
type ClientMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// SubscribePayload is the payload for team subscribe messages
type SubscribePayload struct {
	TeamLeadID uuid.UUID `json:"teamLeadId"`
}

// handleIncomingMessage processes messages received from the client
func (c *Client) handleIncomingMessage(message []byte) {
	var msg ClientMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		c.logger.Warn("failed to unmarshal client message", "error", err)
		return
	}

	switch msg.Type {
	case "SUBSCRIBE_TO_TEAM":
		c.handleSubscribe(msg.Payload)

	case "UNSUBSCRIBE_FROM_TEAM":
		if c.SetTeam(nil) {
			c.Hub.resend(c)
		}

	case "PING":
		// Client-side keep-alive, respond with pong
		c.sendPong()

	default:
		c.logger.Debug("received unknown message type", "type", msg.Type)
	}
}

func (c *Client) handleSubscribe(payload json.RawMessage) {
	var p SubscribePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		c.logger.Warn("failed to unmarshal subscribe payload", "error", err)
		return
	}

	if p.TeamLeadID == uuid.Nil {
		c.logger.Warn("invalid team lead ID in subscribe request")
		return
	}

	if !c.SetTeam(&p.TeamLeadID) {
		c.logger.Warn("team subscription refused for scoped client", "team_lead_id", p.TeamLeadID)
		return
	}
	c.Hub.resend(c)
}

func (c *Client) sendPong() {
	_ = c.trySend(domain.Event{Type: domain.EventPong})
}
