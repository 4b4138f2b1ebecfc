// Package relay manages individual WebSocket clients, handling read/write
// pumps, rate limiting, liveness, and lifecycle control for each connection.
package relay

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	sendBufferSize = 256
)

// Client represents one WebSocket connection in a room. The gateway owns the
// client for the duration of the socket's lifetime; it is created on a
// successful upgrade and destroyed when the socket closes.
type Client struct {
	conn   *websocket.Conn
	send   chan []byte
	roomID string
	userID string

	limiter   *rateLimiter
	rateLimit RateLimitConfig

	mu        sync.Mutex
	alive     bool
	closed    bool
	lastStamp int64
}

func newClient(conn *websocket.Conn, roomID, userID string, cfg Config) *Client {
	if conn != nil {
		conn.SetReadLimit(cfg.MaxMessageSize)
	}

	return &Client{
		conn:      conn,
		send:      make(chan []byte, sendBufferSize),
		roomID:    roomID,
		userID:    userID,
		alive:     true,
		limiter:   newRateLimiter(cfg.RateLimit.Burst, cfg.RateLimit.RefillInterval),
		rateLimit: cfg.RateLimit,
	}
}

// RoomID returns the room this connection joined.
func (c *Client) RoomID() string { return c.roomID }

// UserID returns the connection's user identifier.
func (c *Client) UserID() string { return c.userID }

// enqueue queues a payload for delivery. It reports false when the client is
// closed or its buffer is full; a slow consumer loses the message rather
// than blocking the caller.
func (c *Client) enqueue(payload []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}

	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

// sendFrame marshals and queues a server frame for this client only.
func (c *Client) sendFrame(f Frame) {
	payload, err := json.Marshal(f)
	if err != nil {
		log.Printf("Error encoding frame for %s: %v", c.userID, err)
		return
	}
	c.enqueue(payload)
}

// markClosed flips the closed flag and reports whether this call did the
// flip, so the send channel is closed exactly once.
func (c *Client) markClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}
	c.closed = true
	return true
}

func (c *Client) isAlive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.alive
}

func (c *Client) markAlive(v bool) {
	c.mu.Lock()
	c.alive = v
	c.mu.Unlock()
}

// stamp returns the event timestamp for this sender in epoch milliseconds,
// clamped so consecutive frames in the same millisecond still advance.
func (c *Client) stamp() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	ts := time.Now().UnixMilli()
	if ts <= c.lastStamp {
		ts = c.lastStamp + 1
	}
	c.lastStamp = ts
	return ts
}

// ping sends a ping control frame. Control writes are safe concurrently with
// the write pump.
func (c *Client) ping() {
	if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
		if !isExpectedCloseError(err) {
			log.Printf("Error pinging %s: %v", c.userID, err)
		}
	}
}

// terminate force-closes the underlying socket; the read pump's exit then
// drives the normal cleanup path.
func (c *Client) terminate() {
	if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
		log.Printf("Error terminating connection for %s: %v", c.userID, err)
	}
}

// readPump consumes inbound frames until the socket closes, then hands the
// client back to the gateway for cleanup.
func (c *Client) readPump(g *Gateway) {
	defer func() {
		g.drop(c)
		if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
			log.Printf("Error closing connection in readPump: %v", err)
		}
	}()

	readWait := 2 * g.cfg.HeartbeatInterval
	if err := c.conn.SetReadDeadline(time.Now().Add(readWait)); err != nil {
		log.Printf("Error setting read deadline for %s: %v", c.userID, err)
	}
	c.conn.SetPongHandler(func(string) error {
		c.markAlive(true)
		return c.conn.SetReadDeadline(time.Now().Add(readWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			c.logReadError(err)
			return
		}

		if c.limiter != nil && !c.limiter.allow() {
			log.Printf("Rate limit exceeded for %s (%d messages per %s); discarding message",
				c.userID, c.rateLimit.Burst, c.rateLimit.RefillInterval)
			continue
		}

		g.handleClientFrame(c, raw)
	}
}

func (c *Client) logReadError(err error) {
	switch {
	case errors.Is(err, websocket.ErrReadLimit):
		log.Printf("Message from %s exceeded the read limit", c.userID)
	case websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure):
		log.Printf("Client %s disconnected from room %s: %v", c.userID, c.roomID, err)
	case errors.Is(err, io.EOF), isExpectedCloseError(err):
		log.Printf("Client %s connection closed: %v", c.userID, err)
	default:
		log.Printf("WebSocket read error from %s: %v", c.userID, err)
	}
}

// writePump drains the send channel to the socket. It exits when the channel
// is closed by the gateway, after writing a close frame.
func (c *Client) writePump() {
	defer func() {
		if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
			log.Printf("Error closing connection in writePump: %v", err)
		}
	}()

	for payload := range c.send {
		if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
			log.Printf("Error setting write deadline for %s: %v", c.userID, err)
			return
		}
		if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			if !isExpectedCloseError(err) {
				log.Printf("Error writing to %s: %v", c.userID, err)
			}
			return
		}
	}

	if err := c.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil && !isExpectedCloseError(err) {
		log.Printf("Error writing close message to %s: %v", c.userID, err)
	}
}
