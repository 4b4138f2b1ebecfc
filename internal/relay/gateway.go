// Package relay coordinates the connection registry, the topic subscription
// manager, and the broker bridge via the Gateway type and its event loop.
package relay

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"sync"
	"time"
)

// Gateway is the WebSocket-facing component of the relay. All membership and
// subscription transitions run on its single event-loop goroutine, so "room
// became empty" and "drop the binding" are atomic with respect to a
// concurrent join. Publishing and local broadcast never touch membership
// state and run off-loop.
type Gateway struct {
	cfg      Config
	registry *Registry
	subs     *SubManager
	broker   Broker

	join    chan *Client
	leave   chan *Client
	inbound chan Event

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	wg     sync.WaitGroup
}

// Stats is the gateway's health introspection snapshot.
type Stats struct {
	BrokerConnected   bool
	ActiveRooms       int
	ActiveConnections int
}

// NewGateway creates a gateway on top of the given broker. Run must be
// called before any client is admitted.
func NewGateway(cfg Config, broker Broker) *Gateway {
	ctx, cancel := context.WithCancel(context.Background())
	return &Gateway{
		cfg:      cfg.sanitized(),
		registry: NewRegistry(),
		subs:     NewSubManager(broker),
		broker:   broker,
		join:     make(chan *Client),
		leave:    make(chan *Client),
		inbound:  make(chan Event, 256),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
}

// Run starts the gateway's event loop, handling joins, leaves, broker
// events, and the heartbeat sweep. It should be called in its own goroutine
// as it runs until Shutdown.
func (g *Gateway) Run() {
	defer close(g.done)

	heartbeat := time.NewTicker(g.cfg.HeartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-g.ctx.Done():
			g.closeAll()
			return

		case c := <-g.join:
			g.admit(c)

		case c := <-g.leave:
			g.handleLeave(c)

		case ev := <-g.inbound:
			g.registry.BroadcastLocal(ev.RoomID, ev.frame())

		case <-heartbeat.C:
			g.sweep()
		}
	}
}

// HandleBrokerEvent feeds one consumed broker event into the loop. Events
// for rooms with no local members are simply not delivered anywhere.
func (g *Gateway) HandleBrokerEvent(ev Event) {
	select {
	case g.inbound <- ev:
	default:
		log.Printf("Inbound event queue full; dropping event for room %s", ev.RoomID)
	}
}

// HandleBrokerBody parses a raw broker message body and feeds it into the
// loop, dropping malformed payloads. Used with brokers that deliver raw
// bytes, such as MemoryBroker.
func (g *Gateway) HandleBrokerBody(body []byte) {
	var ev Event
	if err := json.Unmarshal(body, &ev); err != nil {
		log.Printf("Dropping malformed broker message: %v", err)
		return
	}
	g.HandleBrokerEvent(ev)
}

// Stats returns the current health introspection counters.
func (g *Gateway) Stats() Stats {
	return Stats{
		BrokerConnected:   g.broker.Connected(),
		ActiveRooms:       g.registry.TotalRooms(),
		ActiveConnections: g.registry.TotalConnections(),
	}
}

// Shutdown stops the event loop, closes every client connection, and waits
// up to timeout for the pump goroutines to finish.
func (g *Gateway) Shutdown(timeout time.Duration) error {
	log.Println("Initiating gateway shutdown...")

	g.cancel()
	<-g.done

	pumps := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(pumps)
	}()

	select {
	case <-pumps:
		log.Println("Gateway shutdown completed")
		return nil
	case <-time.After(timeout):
		log.Println("Gateway shutdown timeout reached, some goroutines may still be running")
		return context.DeadlineExceeded
	}
}

// admit registers a connection, ensures the room's broker binding, starts
// the pumps, welcomes the client, and announces the join to all instances
// through the broker round-trip.
func (g *Gateway) admit(c *Client) {
	g.registry.Register(c.roomID, c)

	if err := g.subs.EnsureSubscribed(c.roomID); err != nil {
		// Non-fatal: the room runs without cross-instance fan-in until a
		// later join retries the bind.
		log.Printf("Room %s has no broker binding yet: %v", c.roomID, err)
	}

	g.wg.Add(2)
	go func() {
		defer g.wg.Done()
		c.writePump()
	}()
	go func() {
		defer g.wg.Done()
		c.readPump(g)
	}()

	log.Printf("Client %s connected to room %s. Local connections: %d",
		c.userID, c.roomID, g.registry.TotalConnections())

	c.sendFrame(Frame{
		Type:      TypeInfo,
		Sender:    systemSender,
		Text:      "Welcome " + c.userID + "!",
		Timestamp: nowMillis(),
	})

	g.publishSystem(c.roomID, c.userID+" has joined the room.")
}

// handleLeave unregisters a connection and, when the room just became empty,
// drops its broker binding. The "left" announcement is best-effort: a slow
// or dead broker never delays tearing down the socket's resources.
func (g *Gateway) handleLeave(c *Client) {
	if c.markClosed() {
		close(c.send)
	}

	empty := g.registry.Unregister(c.roomID, c)
	if empty {
		if err := g.subs.EnsureUnsubscribed(c.roomID); err != nil {
			log.Printf("Room %s binding not released: %v", c.roomID, err)
		} else {
			log.Printf("Room %s empty on this instance, broker binding released", c.roomID)
		}
	}

	log.Printf("Client %s disconnected from room %s. Local connections: %d",
		c.userID, c.roomID, g.registry.TotalConnections())

	g.publishSystem(c.roomID, c.userID+" has left the room.")
}

// handleClientFrame validates one inbound client frame and publishes the
// resulting chat event. It runs on the client's read goroutine and never
// touches membership state. There is deliberately no local echo shortcut:
// every delivered chat event takes the broker round-trip, so the sender's
// other tabs observe the same ordering as everyone else.
func (g *Gateway) handleClientFrame(c *Client, raw []byte) {
	var in inboundFrame
	if err := json.Unmarshal(raw, &in); err != nil {
		log.Printf("Invalid message format from %s: %v", c.userID, err)
		c.sendFrame(errorFrame("Invalid message format."))
		return
	}

	text := strings.TrimSpace(in.Text)
	if text == "" {
		c.sendFrame(errorFrame("Message text cannot be empty."))
		return
	}
	if len(text) > g.cfg.MaxTextLength {
		c.sendFrame(errorFrame("Message text is too long."))
		return
	}

	ev := Event{
		RoomID:    c.roomID,
		Type:      TypeChat,
		Sender:    c.userID,
		Text:      text,
		Timestamp: c.stamp(),
	}
	if err := g.publish(ev); err != nil {
		log.Printf("Cannot publish message from %s: %v", c.userID, err)
		c.sendFrame(errorFrame("Cannot send message now."))
	}
}

// drop hands a closed connection back to the event loop. During shutdown the
// loop is gone and cleanup happens in closeAll instead.
func (g *Gateway) drop(c *Client) {
	select {
	case g.leave <- c:
	case <-g.ctx.Done():
	}
}

// enter hands an admitted connection to the event loop.
func (g *Gateway) enter(c *Client) {
	select {
	case g.join <- c:
	case <-g.ctx.Done():
		c.terminate()
	}
}

func (g *Gateway) publish(ev Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return g.broker.Publish(roomRoutingKey(ev.RoomID), body)
}

func (g *Gateway) publishSystem(roomID, text string) {
	ev := Event{
		RoomID:    roomID,
		Type:      TypeSystem,
		Sender:    systemSender,
		Text:      text,
		Timestamp: nowMillis(),
	}
	if err := g.publish(ev); err != nil {
		log.Printf("Cannot announce to room %s: %v", roomID, err)
	}
}

// sweep is the heartbeat tick: every connection still marked not-alive since
// the previous tick is force-terminated, everyone else is marked not-alive
// and pinged. A pong flips the connection back to alive. This handles
// half-open TCP connections where the peer vanished without a clean close.
func (g *Gateway) sweep() {
	for _, c := range g.registry.snapshot() {
		if !c.isAlive() {
			log.Printf("Client %s in room %s failed heartbeat; terminating", c.userID, c.roomID)
			c.terminate()
			continue
		}
		c.markAlive(false)
		c.ping()
	}
}

func (g *Gateway) closeAll() {
	clients := g.registry.snapshot()
	log.Printf("Closing %d client connections...", len(clients))

	for _, c := range clients {
		if c.markClosed() {
			close(c.send)
		}
		c.terminate()
	}
}

func errorFrame(text string) Frame {
	return Frame{
		Type:      TypeError,
		Sender:    systemSender,
		Text:      text,
		Timestamp: nowMillis(),
	}
}

func nowMillis() int64 {
	return time.Now().UnixMilli()
}
