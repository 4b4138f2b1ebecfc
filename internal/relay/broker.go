// Package relay declares the broker contract the gateway relies on, plus an
// in-process implementation used by tests and single-instance runs.
package relay

import (
	"errors"
	"sync"
)

// ErrBrokerUnavailable is returned by broker operations while the underlying
// connection is down. Callers degrade to user-visible "cannot send" errors
// rather than buffering or crashing.
var ErrBrokerUnavailable = errors.New("broker unavailable")

// Broker is the gateway's contract with the message broker. Publish is
// best-effort with no delivery confirmation; BindRoom and UnbindRoom manage
// the instance queue's topic bindings. Only the broker implementation talks
// to the underlying transport.
type Broker interface {
	Publish(routingKey string, body []byte) error
	BindRoom(roomKey string) error
	UnbindRoom(roomKey string) error
	Connected() bool
	Close() error
}

// MemoryBroker is an in-process topic broker. Each Attach call models one
// gateway instance with its own exclusive queue; Publish fans a message out
// to every attached instance holding a matching binding. Delivery is
// synchronous and at-most-once.
type MemoryBroker struct {
	mu        sync.RWMutex
	instances []*MemoryInstance
}

// NewMemoryBroker creates an empty in-process broker.
func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{}
}

// Attach registers a new instance on the broker and returns its handle.
func (b *MemoryBroker) Attach() *MemoryInstance {
	inst := &MemoryInstance{
		parent:   b,
		bindings: make(map[string]struct{}),
	}

	b.mu.Lock()
	b.instances = append(b.instances, inst)
	b.mu.Unlock()

	return inst
}

// MemoryInstance is one attached consumer of a MemoryBroker. It satisfies
// the Broker contract.
type MemoryInstance struct {
	parent *MemoryBroker

	mu       sync.RWMutex
	handler  func(body []byte)
	bindings map[string]struct{}
	closed   bool
}

// OnMessage registers the callback invoked once per message delivered to
// this instance's bindings.
func (m *MemoryInstance) OnMessage(handler func(body []byte)) {
	m.mu.Lock()
	m.handler = handler
	m.mu.Unlock()
}

// Publish fans the body out to every attached instance bound to the routing
// key, including the publishing instance itself.
func (m *MemoryInstance) Publish(routingKey string, body []byte) error {
	if !m.Connected() {
		return ErrBrokerUnavailable
	}

	m.parent.mu.RLock()
	defer m.parent.mu.RUnlock()

	for _, inst := range m.parent.instances {
		inst.deliver(routingKey, body)
	}
	return nil
}

// BindRoom records a binding for the room topic on this instance.
func (m *MemoryInstance) BindRoom(roomKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrBrokerUnavailable
	}
	m.bindings[roomRoutingKey(roomKey)] = struct{}{}
	return nil
}

// UnbindRoom removes the binding for the room topic on this instance.
func (m *MemoryInstance) UnbindRoom(roomKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrBrokerUnavailable
	}
	delete(m.bindings, roomRoutingKey(roomKey))
	return nil
}

// Connected reports whether the instance is still attached.
func (m *MemoryInstance) Connected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return !m.closed
}

// Close detaches the instance; subsequent operations fail with
// ErrBrokerUnavailable.
func (m *MemoryInstance) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

func (m *MemoryInstance) deliver(routingKey string, body []byte) {
	m.mu.RLock()
	_, bound := m.bindings[routingKey]
	handler := m.handler
	closed := m.closed
	m.mu.RUnlock()

	if closed || !bound || handler == nil {
		return
	}
	handler(body)
}
