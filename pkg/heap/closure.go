package heap

import (
	"github.com/iGentAI/ferrous/pkg/arena"
	"github.com/iGentAI/ferrous/pkg/value"
)

// Closure is a function value: a prototype plus its captured upvalues.
// Globals do not flow through a reserved upvalue slot here -- OpGetGlobal/
// OpSetGlobal read the heap's global table directly, so every entry in
// Upvalues maps 1:1 onto the owning proto's UpvalueDescriptors with no
// _ENV convention reserved at index 0.
type Closure struct {
	Proto    arena.Handle // into the Heap's proto arena
	Upvalues []arena.Handle
}

// Upvalue is a variable captured by one or more closures. Open while the
// captured local is still live on its owning thread's stack (StackIndex
// set); closed once the owning frame returns (Value holds the final
// copy). Matches spec.md §3 exactly.
type Upvalue struct {
	Open       bool
	StackIndex int // meaningful iff Open
	Value      value.Value
}
