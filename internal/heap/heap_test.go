package heap

import (
	"math/rand"
	"sort"
	"testing"
)

func intGreater(a, b int) bool { return a > b }

func TestPushPopAscending(t *testing.T) {
	h := New(intGreater)
	values := []int{5, 3, 8, 1, 9, 2, 7, 4, 6, 0}
	for _, v := range values {
		h.Push(v)
	}
	if h.Len() != len(values) {
		t.Fatalf("Len() = %d, want %d", h.Len(), len(values))
	}

	sort.Ints(values)
	for _, want := range values {
		got, ok := h.Pop()
		if !ok {
			t.Fatalf("Pop() returned ok=false before heap was empty")
		}
		if got != want {
			t.Fatalf("Pop() = %d, want %d", got, want)
		}
	}
	if !h.Empty() {
		t.Fatalf("heap not empty after draining all pushed values")
	}
}

func TestPopEmpty(t *testing.T) {
	h := New(intGreater)
	if _, ok := h.Pop(); ok {
		t.Fatalf("Pop() on empty heap returned ok=true")
	}
	if _, ok := h.Peek(); ok {
		t.Fatalf("Peek() on empty heap returned ok=true")
	}
}

func TestRandomSequencePreservesOrder(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	h := New(intGreater)
	var model []int

	const ops = 10000
	for i := 0; i < ops; i++ {
		if len(model) == 0 || rng.Intn(2) == 0 {
			v := rng.Intn(1 << 20)
			h.Push(v)
			model = append(model, v)
			sort.Ints(model)
		} else {
			want := model[0]
			model = model[1:]
			got, ok := h.Pop()
			if !ok {
				t.Fatalf("Pop() returned ok=false with %d elements modelled", len(model)+1)
			}
			if got != want {
				t.Fatalf("Pop() = %d, want %d (ascending order violated)", got, want)
			}
		}
	}
}

func TestPeekDoesNotRemove(t *testing.T) {
	h := New(intGreater)
	h.Push(10)
	h.Push(5)
	top, ok := h.Peek()
	if !ok || top != 5 {
		t.Fatalf("Peek() = (%d, %v), want (5, true)", top, ok)
	}
	if h.Len() != 2 {
		t.Fatalf("Peek() mutated heap length: got %d, want 2", h.Len())
	}
}
