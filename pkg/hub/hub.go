// Package hub fans events out to subscribers, each served by its own
// goroutine so a slow subscriber never blocks the publisher.
package hub

import (
	"sync"

	"nexus-chat/pkg/logger"
)

const sendBuffer = 64

type subscriber[T any] struct {
	send chan T
}

// Hub delivers every published value to all current subscribers in order.
type Hub[T any] struct {
	name        string
	mu          sync.Mutex
	subscribers map[*subscriber[T]]bool
	closed      bool
	log         *logger.Logger
}

// New creates an empty hub.
func New[T any](name string, log *logger.Logger) *Hub[T] {
	if log == nil {
		log = logger.Discard()
	}
	return &Hub[T]{name: name, subscribers: make(map[*subscriber[T]]bool), log: log}
}

// Subscribe registers fn and returns a function that unregisters it.
// fn runs on the subscriber's goroutine.
func (h *Hub[T]) Subscribe(fn func(T)) func() {
	s := &subscriber[T]{send: make(chan T, sendBuffer)}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return func() {}
	}
	h.subscribers[s] = true
	h.mu.Unlock()

	go func() {
		for v := range s.send {
			fn(v)
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() { h.remove(s) })
	}
}

// Publish queues v for every subscriber. A subscriber whose buffer is full
// misses the value.
func (h *Hub[T]) Publish(v T) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for s := range h.subscribers {
		select {
		case s.send <- v:
		default:
			h.log.Warn("Subscriber dropped event due to full buffer", "hub", h.name)
		}
	}
}

// Len returns the number of subscribers.
func (h *Hub[T]) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers)
}

// Close unregisters everyone; later subscriptions are no-ops.
func (h *Hub[T]) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for s := range h.subscribers {
		delete(h.subscribers, s)
		close(s.send)
	}
}

func (h *Hub[T]) remove(s *subscriber[T]) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.subscribers[s]; ok {
		delete(h.subscribers, s)
		close(s.send)
	}
}
