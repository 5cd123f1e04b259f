package heap

import (
	"github.com/iGentAI/ferrous/pkg/arena"
	"github.com/iGentAI/ferrous/pkg/bytecode"
	"github.com/iGentAI/ferrous/pkg/value"
)

// UpvalDesc describes how a closure's Nth upvalue is sourced when the
// closure is instantiated: either from a register in the enclosing
// function's own frame (InParentStack) or copied from the enclosing
// closure's own upvalue list.
type UpvalDesc struct {
	InParentStack bool
	Index         uint8
}

// DebugInfo is optional per-proto debugging metadata.
type DebugInfo struct {
	SourceName string
	Lines      []int // Lines[pc] = source line of Bytecode[pc]
}

// FunctionProto is the immutable compiled form of one Lua function:
// bytecode plus its constant pool, matching spec.md §3 exactly.
// Immutable once constructed — the compiler builds it once and never
// mutates it afterward, so sharing a FunctionProto handle across closures
// and VM pool reuse is always safe.
type FunctionProto struct {
	Bytecode          []bytecode.Instruction
	Constants         []value.Value
	NumParams         uint8
	IsVararg          bool
	MaxStackSize      uint8
	UpvalueDescriptors []UpvalDesc
	NestedProtos      []arena.Handle // handles into the same Heap's proto arena
	Debug             *DebugInfo
}
