// Package relay keeps the instance's broker bindings in lockstep with local
// room membership via the SubManager type.
package relay

import (
	"fmt"
	"sync"
)

// RoomBinder is the slice of the broker contract the subscription manager
// needs: binding and unbinding the instance queue for a room topic.
type RoomBinder interface {
	BindRoom(roomKey string) error
	UnbindRoom(roomKey string) error
}

// SubManager records, per instance, which room topics currently have an
// active broker binding. A room key is present here exactly when the local
// registry has members for it; both transitions are serialized on the
// gateway event loop.
type SubManager struct {
	binder RoomBinder

	mu     sync.Mutex
	active map[string]struct{}
}

// NewSubManager creates a subscription manager on top of the given binder.
func NewSubManager(binder RoomBinder) *SubManager {
	return &SubManager{
		binder: binder,
		active: make(map[string]struct{}),
	}
}

// EnsureSubscribed binds the instance queue for the room topic unless a
// binding is already recorded. Redundant calls are no-ops. A bind failure is
// surfaced to the caller and leaves no record, so the next join retries; the
// room proceeds without cross-instance fan-in until then.
func (s *SubManager) EnsureSubscribed(roomKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.active[roomKey]; ok {
		return nil
	}

	if err := s.binder.BindRoom(roomKey); err != nil {
		return fmt.Errorf("bind room %s: %w", roomKey, err)
	}

	s.active[roomKey] = struct{}{}
	return nil
}

// EnsureUnsubscribed drops the binding for a room that has no local members
// left. Calling it for a room without a recorded binding is a no-op.
func (s *SubManager) EnsureUnsubscribed(roomKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.active[roomKey]; !ok {
		return nil
	}

	if err := s.binder.UnbindRoom(roomKey); err != nil {
		return fmt.Errorf("unbind room %s: %w", roomKey, err)
	}

	delete(s.active, roomKey)
	return nil
}

// Subscribed reports whether a binding is currently recorded for the room.
func (s *SubManager) Subscribed(roomKey string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.active[roomKey]
	return ok
}

// ActiveBindings returns the number of room topics currently bound.
func (s *SubManager) ActiveBindings() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active)
}
