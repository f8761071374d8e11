// Package buffer provides a bounded history of relayed lines.
package buffer

import (
	"sync"
)

// RingBuffer is a thread-safe circular buffer holding the most recent items
// up to a fixed capacity. When full, the oldest item is overwritten.
//
// The hub keeps rendered log lines here so that a viewer who connects late
// receives recent engine output before live messages.
type RingBuffer[T any] struct {
	items    []T
	start    int
	count    int
	capacity int
	mu       sync.RWMutex
}

// NewRingBuffer creates a new RingBuffer with the specified capacity.
// The capacity must be greater than 0; if not, it defaults to 1.
func NewRingBuffer[T any](capacity int) *RingBuffer[T] {
	if capacity <= 0 {
		capacity = 1
	}
	return &RingBuffer[T]{
		items:    make([]T, capacity),
		capacity: capacity,
	}
}

// Push appends an item, discarding the oldest one when the buffer is full.
func (rb *RingBuffer[T]) Push(item T) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	end := (rb.start + rb.count) % rb.capacity
	rb.items[end] = item

	if rb.count < rb.capacity {
		rb.count++
		return
	}
	rb.start = (rb.start + 1) % rb.capacity
}

// ReadAll returns a copy of the buffered items, oldest first.
// The returned slice is safe to use without holding the lock.
func (rb *RingBuffer[T]) ReadAll() []T {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	if rb.count == 0 {
		return nil
	}

	result := make([]T, rb.count)
	for i := 0; i < rb.count; i++ {
		result[i] = rb.items[(rb.start+i)%rb.capacity]
	}
	return result
}

// Clear removes all items from the buffer.
func (rb *RingBuffer[T]) Clear() {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	var zero T
	for i := range rb.items {
		rb.items[i] = zero
	}
	rb.start = 0
	rb.count = 0
}

// Len returns the current number of items in the buffer.
func (rb *RingBuffer[T]) Len() int {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	return rb.count
}

// Cap returns the capacity of the buffer.
func (rb *RingBuffer[T]) Cap() int {
	return rb.capacity
}
