package containers

import "fmt"

// Handle references a slot in an Arena. A handle goes stale as soon as
// its slot is released; the generation check catches that.
type Handle struct {
	Index      uint32
	Generation uint32
}

// InvalidHandle never resolves.
var InvalidHandle = Handle{Index: ^uint32(0), Generation: 0}

func (h Handle) String() string {
	return fmt.Sprintf("%d@%d", h.Index, h.Generation)
}

type slot[T any] struct {
	value      T
	generation uint32
	used       bool
}

// Arena stores values in reusable slots addressed by generation-checked
// handles. Generation 0 is never handed out.
type Arena[T any] struct {
	slots []slot[T]
	free  []uint32
	live  int
}

func NewArena[T any](capacity int) *Arena[T] {
	return &Arena[T]{
		slots: make([]slot[T], 0, capacity),
	}
}

// Acquire stores value in a free slot, or a new one when none is free.
func (a *Arena[T]) Acquire(value T) Handle {
	var index uint32
	if n := len(a.free); n > 0 {
		// Existing free spot. Take it.
		index = a.free[n-1]
		a.free = a.free[:n-1]
	} else {
		a.slots = append(a.slots, slot[T]{})
		index = uint32(len(a.slots) - 1)
	}
	s := &a.slots[index]
	s.generation++
	if s.generation == 0 {
		s.generation = 1
	}
	s.value = value
	s.used = true
	a.live++
	return Handle{Index: index, Generation: s.generation}
}

// Get returns the value behind h, or false when h is stale or invalid.
func (a *Arena[T]) Get(h Handle) (T, bool) {
	var zero T
	if int(h.Index) >= len(a.slots) {
		return zero, false
	}
	s := &a.slots[h.Index]
	if !s.used || s.generation != h.Generation {
		return zero, false
	}
	return s.value, true
}

// Release frees the slot behind h and returns the value it held.
func (a *Arena[T]) Release(h Handle) (T, error) {
	var zero T
	if int(h.Index) >= len(a.slots) {
		return zero, fmt.Errorf("arena release: handle %s out of range (max=%d)", h, len(a.slots))
	}
	s := &a.slots[h.Index]
	if !s.used || s.generation != h.Generation {
		return zero, fmt.Errorf("arena release: stale handle %s", h)
	}
	value := s.value
	// Just zero out the entry, making it available for use.
	s.value = zero
	s.used = false
	a.free = append(a.free, h.Index)
	a.live--
	return value, nil
}

// Len returns the number of live slots.
func (a *Arena[T]) Len() int {
	return a.live
}
