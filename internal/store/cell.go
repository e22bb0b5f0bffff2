package store

import "sync"

// Observable is a read-only view of a Cell
type Observable[T any] interface {
	// Get returns the latest value
	Get() T
	// Subscribe delivers the current value and every later one. Slow
	// subscribers only see the latest value. cancel closes the channel.
	Subscribe() (updates <-chan T, cancel func())
}

// Cell holds a value that writers replace whole. Readers always observe the
// latest value.
type Cell[T any] struct {
	mu     sync.RWMutex
	value  T
	nextID int
	subs   map[int]chan T
}

// NewCell creates a cell holding initial
func NewCell[T any](initial T) *Cell[T] {
	return &Cell[T]{value: initial, subs: make(map[int]chan T)}
}

// Get returns the latest value
func (c *Cell[T]) Get() T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.value
}

// Set replaces the value and notifies subscribers
func (c *Cell[T]) Set(value T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.value = value
	for _, ch := range c.subs {
		offerLatest(ch, value)
	}
}

// Subscribe implements Observable
func (c *Cell[T]) Subscribe() (<-chan T, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch := make(chan T, 1)
	ch <- c.value

	id := c.nextID
	c.nextID++
	c.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			delete(c.subs, id)
			close(ch)
		})
	}
	return ch, cancel
}

// offerLatest replaces any undelivered value in ch with value.
// Callers hold the write lock, so ch has no other sender.
func offerLatest[T any](ch chan T, value T) {
	select {
	case <-ch:
	default:
	}
	ch <- value
}
