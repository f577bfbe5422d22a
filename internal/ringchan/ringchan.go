// Package ringchan provides a bounded channel with overwrite-oldest semantics.
package ringchan

import "sync/atomic"

// RingChannel wraps a buffered channel so that producers never block: when the
// buffer is full the oldest element is discarded to make room for the new one.
//
// Readers consume via C() exactly like a normal Go channel:
//
//	rc := ringchan.New[int](3)
//	for i := 0; i < 10; i++ {
//	    rc.Send(i)
//	}
//	// only the last 3 values remain buffered
//	for v := range rc.C() {
//	    fmt.Println(v)
//	}
type RingChannel[T any] struct {
	ch      chan T
	dropped atomic.Int64
}

// New creates a RingChannel with the given capacity. Capacity must be > 0.
func New[T any](capacity int) *RingChannel[T] {
	if capacity <= 0 {
		panic("ringchan: capacity must be > 0")
	}
	return &RingChannel[T]{ch: make(chan T, capacity)}
}

// C returns the underlying receive-only channel. Consumers can range over it
// until Close is called.
func (rc *RingChannel[T]) C() <-chan T {
	return rc.ch
}

// Send inserts an item without ever blocking indefinitely. If the buffer is
// full the oldest buffered item is dropped. Returns true if an item was
// dropped to make room.
func (rc *RingChannel[T]) Send(v T) bool {
	select {
	case rc.ch <- v:
		return false
	default:
	}

	dropped := false
	select {
	case <-rc.ch:
		rc.dropped.Add(1)
		dropped = true
	default:
		// A reader raced us and made room.
	}
	rc.ch <- v
	return dropped
}

// TrySend attempts a non-blocking insert and reports whether it succeeded.
func (rc *RingChannel[T]) TrySend(v T) bool {
	select {
	case rc.ch <- v:
		return true
	default:
		return false
	}
}

// Len returns the number of buffered elements.
func (rc *RingChannel[T]) Len() int {
	return len(rc.ch)
}

// Cap returns the buffer capacity.
func (rc *RingChannel[T]) Cap() int {
	return cap(rc.ch)
}

// Dropped returns the number of elements discarded by Send so far.
func (rc *RingChannel[T]) Dropped() int64 {
	return rc.dropped.Load()
}

// Close closes the underlying channel. Sending after Close panics.
func (rc *RingChannel[T]) Close() {
	close(rc.ch)
}
