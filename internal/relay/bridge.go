// Package relay owns the single AMQP connection per instance via the Bridge
// type: one channel, one topic exchange, and one exclusive auto-delete queue
// unique to this process.
package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	exchangeName = "chat_exchange"
	exchangeType = "topic"

	instanceQueuePrefix = "chat_instance_queue_"
)

// Bridge adapts the Broker contract onto RabbitMQ. Connect must succeed
// before the gateway accepts any client; a connection lost mid-run marks the
// bridge disconnected and every subsequent operation fails locally until the
// process is restarted. There is no automatic reconnect: auto-delete queues
// and their bindings are lost on disconnect, so a restart through the
// process supervisor is the recovery path.
type Bridge struct {
	url       string
	queueName string
	handler   func(Event)

	mu   sync.RWMutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

// NewBridge creates a disconnected bridge. The instance queue name carries a
// random suffix so no two instances ever share a queue.
func NewBridge(url string) *Bridge {
	return &Bridge{
		url:       url,
		queueName: instanceQueuePrefix + uuid.NewString(),
	}
}

// OnMessage registers the single consumer callback invoked once per message
// delivered to the instance queue. It must be called before Connect.
func (b *Bridge) OnMessage(handler func(Event)) {
	b.handler = handler
}

// QueueName returns the name of this instance's exclusive queue.
func (b *Bridge) QueueName() string {
	return b.queueName
}

// Connect establishes the connection, opens the channel, declares the topic
// exchange and the instance queue, and starts consuming. The caller is
// expected to treat an error as fatal: without the broker the relay cannot
// perform cross-instance fan-out at all.
func (b *Bridge) Connect() error {
	conn, err := amqp.Dial(b.url)
	if err != nil {
		return fmt.Errorf("dial broker at %s: %w", b.url, err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}

	if err := ch.ExchangeDeclare(exchangeName, exchangeType, false, false, false, false, nil); err != nil {
		_ = conn.Close()
		return fmt.Errorf("declare exchange %s: %w", exchangeName, err)
	}

	if _, err := ch.QueueDeclare(b.queueName, false, true, true, false, nil); err != nil {
		_ = conn.Close()
		return fmt.Errorf("declare instance queue %s: %w", b.queueName, err)
	}

	deliveries, err := ch.Consume(b.queueName, "", false, true, false, false, nil)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("consume from %s: %w", b.queueName, err)
	}

	b.mu.Lock()
	b.conn = conn
	b.ch = ch
	b.mu.Unlock()

	go b.consume(deliveries)
	go b.watch(conn.NotifyClose(make(chan *amqp.Error, 1)))

	log.Printf("Connected to broker, instance queue %q", b.queueName)
	return nil
}

// Publish serializes best-effort: no publisher confirms, and a disconnected
// bridge reports ErrBrokerUnavailable instead of buffering.
func (b *Bridge) Publish(routingKey string, body []byte) error {
	b.mu.RLock()
	ch := b.ch
	b.mu.RUnlock()

	if ch == nil {
		return ErrBrokerUnavailable
	}

	err := ch.PublishWithContext(context.Background(), exchangeName, routingKey, false, false, amqp.Publishing{
		ContentType: "application/json",
		Body:        body,
	})
	if err != nil {
		return fmt.Errorf("publish to %s: %w", routingKey, err)
	}
	return nil
}

// BindRoom binds the instance queue to the topic exchange for the room.
func (b *Bridge) BindRoom(roomKey string) error {
	b.mu.RLock()
	ch := b.ch
	b.mu.RUnlock()

	if ch == nil {
		return ErrBrokerUnavailable
	}
	return ch.QueueBind(b.queueName, roomRoutingKey(roomKey), exchangeName, false, nil)
}

// UnbindRoom removes the instance queue's binding for the room.
func (b *Bridge) UnbindRoom(roomKey string) error {
	b.mu.RLock()
	ch := b.ch
	b.mu.RUnlock()

	if ch == nil {
		return ErrBrokerUnavailable
	}
	return ch.QueueUnbind(b.queueName, roomRoutingKey(roomKey), exchangeName, nil)
}

// Connected reports whether the bridge currently holds a usable channel.
func (b *Bridge) Connected() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.conn != nil && b.ch != nil
}

// Close tears down the channel and connection.
func (b *Bridge) Close() error {
	b.mu.Lock()
	conn, ch := b.conn, b.ch
	b.conn, b.ch = nil, nil
	b.mu.Unlock()

	if ch != nil {
		if err := ch.Close(); err != nil && !isExpectedCloseError(err) {
			log.Printf("Error closing broker channel: %v", err)
		}
	}
	if conn != nil {
		if err := conn.Close(); err != nil && !isExpectedCloseError(err) {
			return fmt.Errorf("close broker connection: %w", err)
		}
	}
	return nil
}

func (b *Bridge) consume(deliveries <-chan amqp.Delivery) {
	for d := range deliveries {
		b.handleDelivery(d)
	}
}

// handleDelivery acks a message once it has been handed to the consumer
// callback, and nacks without requeue on parse failure: a malformed payload
// would not be fixed by redelivery.
func (b *Bridge) handleDelivery(d amqp.Delivery) {
	var ev Event
	if err := json.Unmarshal(d.Body, &ev); err != nil {
		log.Printf("Dropping malformed broker message: %v", err)
		if err := d.Nack(false, false); err != nil {
			log.Printf("Error nacking broker message: %v", err)
		}
		return
	}

	if b.handler != nil {
		b.handler(ev)
	}

	if err := d.Ack(false); err != nil {
		log.Printf("Error acking broker message: %v", err)
	}
}

// watch marks the bridge disconnected when the broker connection drops.
func (b *Bridge) watch(closed <-chan *amqp.Error) {
	err, ok := <-closed
	if !ok {
		return
	}

	log.Printf("Broker connection closed: %v", err)
	b.mu.Lock()
	b.conn = nil
	b.ch = nil
	b.mu.Unlock()
}
