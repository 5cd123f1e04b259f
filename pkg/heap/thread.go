package heap

import (
	"github.com/iGentAI/ferrous/pkg/arena"
	"github.com/iGentAI/ferrous/pkg/value"
)

// FrameKind distinguishes the handful of call-frame shapes spec.md §3
// names; most VM logic only cares whether a frame is Normal/TailCall (the
// common case) or one of the special kinds that change how its return
// value is delivered.
type FrameKind uint8

const (
	FrameNormal FrameKind = iota
	FrameTailCall
	FrameCFunction
	FrameIterator
	FrameMetamethod
)

// CallFrame records the state needed to resume a caller once the callee
// returns: which closure is running, where its window starts, the
// program counter, and how many return values are expected.
type CallFrame struct {
	Closure        arena.Handle // Closure handle (zero for CFunction frames)
	NativeFn       value.Value  // meaningful only for FrameCFunction
	PC             int
	BaseRegister   int // absolute stack index of register 0 (caller's BaseRegister + its MaxStackSize; not derived from WindowIndex)
	WindowIndex    int
	ExpectedReturns int // -1 means "all"
	Kind           FrameKind

	// Iterator-frame fields (spec.md §4.6 TForLoop convention).
	IteratorResultRegister int
	IteratorVarCount       int

	// Metamethod-frame fields.
	MetamethodName string
}

// ThreadStatus mirrors Lua's coroutine status vocabulary, trimmed to
// what a single main thread (coroutines are a Non-goal) actually uses.
type ThreadStatus uint8

const (
	ThreadRunning ThreadStatus = iota
	ThreadDead
)

// Thread is one logical Lua execution context: a register stack, the
// active call frames, and the set of currently-open upvalues referring
// into that stack. Ferrous creates exactly one Thread per VM (spec.md
// §3: "One main thread per VM").
type Thread struct {
	Stack         []value.Value
	CallFrames    []CallFrame
	OpenUpvalues  []arena.Handle // sorted by descending StackIndex
	Status        ThreadStatus
}

func newThread() *Thread {
	return &Thread{
		Stack:      make([]value.Value, 0, 256),
		CallFrames: make([]CallFrame, 0, 32),
	}
}

// EnsureStack grows the thread's register stack so index n is addressable.
func (t *Thread) EnsureStack(n int) {
	if n < len(t.Stack) {
		return
	}
	grown := make([]value.Value, n+1)
	copy(grown, t.Stack)
	for i := len(t.Stack); i <= n; i++ {
		grown[i] = value.Nil
	}
	t.Stack = grown
}
