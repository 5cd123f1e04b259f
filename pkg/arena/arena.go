// Package arena implements a generational slot arena: constant-time
// allocation and reuse of homogeneous values without a tracing collector.
// A Handle identifies a slot by index plus a generation counter, so a
// handle to a freed-and-reused slot is detectably stale rather than
// silently aliasing an unrelated value.
package arena

import "fmt"

// Handle addresses one slot in an Arena. Two handles are equal iff both
// fields match. Handles are small, copyable, and carry no lifetime.
type Handle struct {
	Index      uint32
	Generation uint32
}

// Valid reports whether h could conceivably address a slot (it does not,
// by itself, guarantee the slot is still live — use Arena.Get for that).
func (h Handle) Valid() bool {
	return h != Handle{}
}

func (h Handle) String() string {
	return fmt.Sprintf("#%d@%d", h.Index, h.Generation)
}

type slot[T any] struct {
	value      T
	generation uint32
	occupied   bool
}

// Arena is a type-homogeneous slab of storage with generational slots and
// a free list. It owns every value inserted into it; a Handle merely
// addresses a value, it does not own it.
type Arena[T any] struct {
	slots    []slot[T]
	freeList []uint32
}

// New creates an empty arena with room for capacity slots pre-allocated.
func New[T any](capacity int) *Arena[T] {
	return &Arena[T]{
		slots: make([]slot[T], 0, capacity),
	}
}

// Len returns the number of slots ever allocated (occupied or not),
// i.e. the arena's high-water mark, not the live count.
func (a *Arena[T]) Len() int {
	return len(a.slots)
}

// LiveCount returns the number of currently occupied slots.
func (a *Arena[T]) LiveCount() int {
	return len(a.slots) - len(a.freeList)
}

// Insert stores value in a free slot (reusing one from the free list and
// bumping its generation) or appends a new slot with generation 0.
func (a *Arena[T]) Insert(value T) Handle {
	if n := len(a.freeList); n > 0 {
		idx := a.freeList[n-1]
		a.freeList = a.freeList[:n-1]
		s := &a.slots[idx]
		s.value = value
		s.generation++
		s.occupied = true
		return Handle{Index: idx, Generation: s.generation}
	}
	idx := uint32(len(a.slots))
	a.slots = append(a.slots, slot[T]{value: value, generation: 0, occupied: true})
	return Handle{Index: idx, Generation: 0}
}

// Get returns the value addressed by h iff the slot is occupied and its
// generation matches h's.
func (a *Arena[T]) Get(h Handle) (T, bool) {
	var zero T
	if int(h.Index) >= len(a.slots) {
		return zero, false
	}
	s := &a.slots[h.Index]
	if !s.occupied || s.generation != h.Generation {
		return zero, false
	}
	return s.value, true
}

// GetPtr returns a mutable pointer to the value addressed by h, or nil if
// the handle is stale or out of range. The pointer must not outlive the
// next Insert/Remove call, which may invalidate backing storage on grow.
func (a *Arena[T]) GetPtr(h Handle) *T {
	if int(h.Index) >= len(a.slots) {
		return nil
	}
	s := &a.slots[h.Index]
	if !s.occupied || s.generation != h.Generation {
		return nil
	}
	return &s.value
}

// Remove empties the slot addressed by h and returns its former value.
// The slot's index is pushed onto the free list; a future Insert reusing
// it will bump the generation, invalidating h permanently.
func (a *Arena[T]) Remove(h Handle) (T, bool) {
	var zero T
	if int(h.Index) >= len(a.slots) {
		return zero, false
	}
	s := &a.slots[h.Index]
	if !s.occupied || s.generation != h.Generation {
		return zero, false
	}
	v := s.value
	s.value = zero
	s.occupied = false
	a.freeList = append(a.freeList, h.Index)
	return v, true
}

// Contains reports whether h currently addresses a live value.
func (a *Arena[T]) Contains(h Handle) bool {
	if int(h.Index) >= len(a.slots) {
		return false
	}
	s := &a.slots[h.Index]
	return s.occupied && s.generation == h.Generation
}
