// Package ring provides a fixed-capacity ring buffer with explicit eviction:
// once full, every append overwrites the oldest element.
package ring

// Buffer is a fixed-capacity ring buffer. Not safe for concurrent use; the
// owner serializes access.
type Buffer[T any] struct {
	items []T
	head  int
	size  int
}

// New creates a buffer with the given capacity. Capacity must be positive.
func New[T any](capacity int) *Buffer[T] {
	if capacity <= 0 {
		capacity = 1
	}
	return &Buffer[T]{items: make([]T, capacity)}
}

// Push appends a value, evicting the oldest one when full.
func (b *Buffer[T]) Push(v T) {
	b.items[(b.head+b.size)%len(b.items)] = v
	if b.size < len(b.items) {
		b.size++
	} else {
		b.head = (b.head + 1) % len(b.items)
	}
}

// Len returns the number of stored elements.
func (b *Buffer[T]) Len() int { return b.size }

// Cap returns the buffer capacity.
func (b *Buffer[T]) Cap() int { return len(b.items) }

// Last returns the most recently pushed value.
func (b *Buffer[T]) Last() (T, bool) {
	var zero T
	if b.size == 0 {
		return zero, false
	}
	return b.items[(b.head+b.size-1)%len(b.items)], true
}

// Values returns the elements oldest first.
func (b *Buffer[T]) Values() []T {
	out := make([]T, 0, b.size)
	for i := 0; i < b.size; i++ {
		out = append(out, b.items[(b.head+i)%len(b.items)])
	}
	return out
}
