// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package history provides bounded in-memory buffers for measurement
// retention. Eviction is capacity-based, not time-based; callers that need
// time semantics filter by timestamp at read time.
package history

// RingBuffer is a fixed-size circular buffer.
//
// # Description
//
// O(1) append with bounded memory. When full, the oldest element is
// overwritten. Used to retain the last N compliance measurements per SLO.
//
// # Thread Safety
//
// NOT safe for concurrent use; caller must synchronize.
type RingBuffer[T any] struct {
	data  []T
	head  int // next write position
	count int
	cap   int
}

// NewRingBuffer creates a ring buffer holding at most capacity elements.
// A non-positive capacity is coerced to 1.
func NewRingBuffer[T any](capacity int) *RingBuffer[T] {
	if capacity <= 0 {
		capacity = 1
	}
	return &RingBuffer[T]{
		data: make([]T, capacity),
		cap:  capacity,
	}
}

// Push appends an item, overwriting the oldest when at capacity.
func (r *RingBuffer[T]) Push(item T) {
	r.data[r.head] = item
	r.head = (r.head + 1) % r.cap
	if r.count < r.cap {
		r.count++
	}
}

// Len returns the current number of elements.
func (r *RingBuffer[T]) Len() int {
	return r.count
}

// Cap returns the maximum capacity.
func (r *RingBuffer[T]) Cap() int {
	return r.cap
}

// tail returns the index of the oldest element.
func (r *RingBuffer[T]) tail() int {
	if r.count < r.cap {
		return 0
	}
	return r.head
}

// Slice returns all elements from oldest to newest as a fresh copy.
func (r *RingBuffer[T]) Slice() []T {
	if r.count == 0 {
		return nil
	}
	out := make([]T, r.count)
	t := r.tail()
	n := copy(out, r.data[t:min(t+r.count, r.cap)])
	copy(out[n:], r.data[:r.count-n])
	return out
}

// Filter returns elements matching the predicate, oldest first.
func (r *RingBuffer[T]) Filter(keep func(item T) bool) []T {
	var out []T
	r.ForEach(func(item T) bool {
		if keep(item) {
			out = append(out, item)
		}
		return true
	})
	return out
}

// ForEach visits elements from oldest to newest. Return false to stop.
func (r *RingBuffer[T]) ForEach(fn func(item T) bool) {
	t := r.tail()
	for i := 0; i < r.count; i++ {
		if !fn(r.data[(t+i)%r.cap]) {
			return
		}
	}
}

// Last returns up to n of the newest elements, oldest first.
func (r *RingBuffer[T]) Last(n int) []T {
	if n <= 0 || r.count == 0 {
		return nil
	}
	if n > r.count {
		n = r.count
	}
	out := make([]T, n)
	for i := 0; i < n; i++ {
		idx := r.head - n + i
		if idx < 0 {
			idx += r.cap
		}
		out[i] = r.data[idx]
	}
	return out
}

// Clear removes all elements and releases references.
func (r *RingBuffer[T]) Clear() {
	var zero T
	for i := range r.data {
		r.data[i] = zero
	}
	r.head = 0
	r.count = 0
}
