// The MIT License (MIT)
//
// # Copyright (c) 2016 xtaci
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

// Package heap implements a generic binary min-heap over a caller-supplied
// ordering, grown in fixed-size chunks so it never shrinks.
package heap

// growChunk is the number of slots allocated whenever the backing array
// runs out of room, mirroring the original C implementation's slab growth.
const growChunk = 20

// Greater reports whether a orders strictly after b. Values considered
// equal under this predicate are treated as not-greater, which is what
// keeps Push/Pop from doing unnecessary swaps on ties.
type Greater[T any] func(a, b T) bool

// Heap is a binary min-heap of T, ordered by a Greater predicate supplied
// at construction. The zero value is not usable; use New.
type Heap[T any] struct {
	slots   []T
	greater Greater[T]
}

// New creates an empty heap ordered by greater: pop always returns the
// element that is not greater than any other element currently queued.
func New[T any](greater Greater[T]) *Heap[T] {
	return &Heap[T]{greater: greater}
}

// Len returns the number of queued elements.
func (h *Heap[T]) Len() int { return len(h.slots) }

// Empty reports whether the heap holds no elements.
func (h *Heap[T]) Empty() bool { return len(h.slots) == 0 }

// Push inserts v and restores the heap property by sifting up.
func (h *Heap[T]) Push(v T) {
	if len(h.slots) == cap(h.slots) {
		grown := make([]T, len(h.slots), cap(h.slots)+growChunk)
		copy(grown, h.slots)
		h.slots = grown
	}
	h.slots = append(h.slots, v)
	h.siftUp(len(h.slots) - 1)
}

// Peek returns the root element without removing it. The second return
// value is false if the heap is empty.
func (h *Heap[T]) Peek() (T, bool) {
	var zero T
	if len(h.slots) == 0 {
		return zero, false
	}
	return h.slots[0], true
}

// Pop removes and returns the root element, restoring the heap property
// by sifting down. It is a no-op on an empty heap.
func (h *Heap[T]) Pop() (T, bool) {
	var zero T
	n := len(h.slots)
	if n == 0 {
		return zero, false
	}
	top := h.slots[0]
	last := n - 1
	h.slots[0] = h.slots[last]
	h.slots[last] = zero
	h.slots = h.slots[:last]
	if len(h.slots) > 0 {
		h.siftDown(0)
	}
	return top, true
}

func (h *Heap[T]) siftUp(i int) {
	for i > 0 {
		parent := (i - 1) / 2
		if !h.greater(h.slots[parent], h.slots[i]) {
			break
		}
		h.slots[parent], h.slots[i] = h.slots[i], h.slots[parent]
		i = parent
	}
}

func (h *Heap[T]) siftDown(i int) {
	n := len(h.slots)
	for {
		left := 2*i + 1
		right := 2*i + 2
		if left >= n {
			return
		}
		// Choose the strictly-smaller child; left wins on a tie.
		child := left
		if right < n && h.greater(h.slots[left], h.slots[right]) {
			child = right
		}
		if !h.greater(h.slots[i], h.slots[child]) {
			return
		}
		h.slots[i], h.slots[child] = h.slots[child], h.slots[i]
		i = child
	}
}
