// Package realtime provides an in-process publish/subscribe hub used to fan
// out search state snapshots to any number of listeners (WebSocket sessions,
// CLI renderers, tests).
//
// The publisher never blocks. When a listener's buffer is full its oldest
// queued event is dropped to make room, so the most recent event is always
// delivered. Events are expected to be full snapshots, which makes the
// dropped ones redundant.
package realtime

import "sync"

// Hub is a concurrency-safe fan-out dispatcher. Each registered listener
// receives events on its own buffered channel.
type Hub[T any] struct {
	mu        sync.RWMutex
	listeners map[uint64]chan T
	nextID    uint64
	bufSize   int
	closed    bool
}

// NewHub constructs a hub with the given per-listener buffer size.
// If bufSize <= 0, a default of 32 is used.
func NewHub[T any](bufSize int) *Hub[T] {
	if bufSize <= 0 {
		bufSize = 32
	}
	return &Hub[T]{
		listeners: make(map[uint64]chan T),
		bufSize:   bufSize,
	}
}

// Register adds a new listener and returns (listenerID, receiveOnlyChannel).
// Callers must later Unregister(id) to release resources. Registering on a
// closed hub returns an already closed channel.
func (h *Hub[T]) Register() (uint64, <-chan T) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.nextID
	h.nextID++
	ch := make(chan T, h.bufSize)
	if h.closed {
		close(ch)
		return id, ch
	}
	h.listeners[id] = ch
	return id, ch
}

// Unregister removes the listener with the given id and closes its channel.
// It is safe to call multiple times; unknown ids are ignored.
func (h *Hub[T]) Unregister(id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.listeners[id]; ok {
		delete(h.listeners, id)
		close(ch)
	}
}

// Broadcast delivers event to all registered listeners without blocking.
// A full listener loses its oldest queued event instead of this one.
// Broadcasts are serialized, so listeners see events in call order.
func (h *Hub[T]) Broadcast(event T) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.listeners {
		select {
		case ch <- event:
			continue
		default:
		}
		// Only receivers run concurrently with us, and they only free space.
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- event:
		default:
		}
	}
}

// Size returns the current number of active listeners (approximate).
func (h *Hub[T]) Size() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.listeners)
}

// Close unregisters every listener, closing their channels.
func (h *Hub[T]) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for id, ch := range h.listeners {
		delete(h.listeners, id)
		close(ch)
	}
}
