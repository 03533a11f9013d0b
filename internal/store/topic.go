package store

import (
	"sync"
)

// Topic holds a current value and fans updates out to subscribers. A new
// subscriber receives the current value first, then every later update.
// Slow subscribers only ever see the latest value.
type Topic[T any] struct {
	mu      sync.Mutex
	current T
	subs    map[int]chan T
	nextID  int
	closed  bool
}

// NewTopic creates a topic holding initial.
func NewTopic[T any](initial T) *Topic[T] {
	return &Topic[T]{current: initial, subs: make(map[int]chan T)}
}

// Current returns the current value.
func (t *Topic[T]) Current() T {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current
}

// Publish replaces the current value and notifies subscribers.
func (t *Topic[T]) Publish(v T) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	t.current = v
	for _, ch := range t.subs {
		offer(ch, v)
	}
}

// Subscribe returns a channel that yields the current value followed by
// updates, and a function that cancels the subscription.
func (t *Topic[T]) Subscribe() (<-chan T, func()) {
	t.mu.Lock()
	defer t.mu.Unlock()

	ch := make(chan T, 1)
	if t.closed {
		close(ch)
		return ch, func() {}
	}
	id := t.nextID
	t.nextID++
	t.subs[id] = ch
	ch <- t.current

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			t.mu.Lock()
			defer t.mu.Unlock()
			if c, ok := t.subs[id]; ok {
				delete(t.subs, id)
				close(c)
			}
		})
	}
}

// Close closes every subscriber channel. Later publishes are ignored.
func (t *Topic[T]) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	t.closed = true
	for id, ch := range t.subs {
		delete(t.subs, id)
		close(ch)
	}
}

// offer delivers v, replacing a value the subscriber has not read yet.
func offer[T any](ch chan T, v T) {
	for {
		select {
		case ch <- v:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}
