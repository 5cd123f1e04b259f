// Package compiler performs a single pass from a parsed *ast.Chunk to
// register-based bytecode (spec.md §4.5), following paserati's
// pkg/compiler/compiler.go shape: one compileXStatement/compileXExpr
// method per AST node kind, a free-register cursor for allocation
// (pkg/compiler/regalloc.go there, folded into funcState.freeReg here),
// and backpatched jump lists for control flow, adapted from paserati's
// byte-offset jumps to spec.md's sBx-biased register-machine encoding.
package compiler

import (
	"github.com/iGentAI/ferrous/pkg/arena"
	"github.com/iGentAI/ferrous/pkg/ast"
	"github.com/iGentAI/ferrous/pkg/bytecode"
	"github.com/iGentAI/ferrous/pkg/errors"
	"github.com/iGentAI/ferrous/pkg/heap"
	"github.com/iGentAI/ferrous/pkg/value"
	"github.com/iGentAI/ferrous/pkg/window"
)

// MaxRegisters is the per-function register-file cap, matching Lua 5.1's
// own limit (field widths A/B/C in the instruction encoding only need to
// address this many).
const MaxRegisters = 200

type localVar struct {
	name string
	reg  int
}

// blockScope tracks one lexical block's locals high-water mark and, for
// loop bodies, the pending jumps a `break` inside it must patch.
type blockScope struct {
	localBase  int
	isLoop     bool
	breakJumps []int
}

type funcState struct {
	parent *funcState

	proto *heap.FunctionProto

	locals []localVar
	blocks []*blockScope

	freeReg int
	win     *window.Window

	constIndex map[value.HashableValue]int

	upvalNames []string
}

// Compiler turns a parsed chunk into a heap-resident FunctionProto tree.
type Compiler struct {
	h       *heap.Heap
	fs      *funcState
	name    string
	curLine int
	windows *window.Pool
}

// New creates a compiler that will intern constants and nested protos into h.
func New(h *heap.Heap, chunkName string) *Compiler {
	return &Compiler{h: h, name: chunkName, windows: window.NewPool()}
}

// Compile compiles a whole chunk into a top-level (vararg) FunctionProto
// and returns its heap handle.
func Compile(h *heap.Heap, chunk *ast.Chunk, chunkName string) (arena.Handle, error) {
	c := New(h, chunkName)
	return c.compileMain(chunk)
}

func (c *Compiler) compileMain(chunk *ast.Chunk) (arena.Handle, error) {
	c.pushFunc(true)
	c.pushBlock(false)
	if err := c.compileBlock(chunk); err != nil {
		return arena.Handle{}, err
	}
	c.emit(bytecode.ABC(bytecode.OpReturn, 0, 1, 0))
	c.popBlock()
	proto := c.popFunc()
	return c.h.NewProto(proto), nil
}

func clampReg(n int) int {
	if n > 255 {
		return 255
	}
	return n
}

func (c *Compiler) pushFunc(isVararg bool) {
	fs := &funcState{
		parent: c.fs,
		proto: &heap.FunctionProto{
			Debug: &heap.DebugInfo{SourceName: c.name},
		},
		win:        c.windows.Get(0),
		constIndex: make(map[value.HashableValue]int),
	}
	fs.proto.IsVararg = isVararg
	c.fs = fs
}

// popFunc finalizes the innermost funcState's proto and returns its window
// to the pool -- the proto itself only needed the window's high-water mark
// (captured into MaxStackSize below), so the window is free for reuse by
// the next sibling or nested function this Compiler compiles.
func (c *Compiler) popFunc() *heap.FunctionProto {
	fs := c.fs
	fs.proto.MaxStackSize = uint8(clampReg(fs.win.Size))
	c.windows.Put(fs.win)
	c.fs = fs.parent
	return fs.proto
}

func (c *Compiler) pushBlock(isLoop bool) {
	c.fs.blocks = append(c.fs.blocks, &blockScope{localBase: len(c.fs.locals), isLoop: isLoop})
}

// popBlock pops the innermost block, restoring the locals list and the
// free-register cursor to what they were before the block opened.
func (c *Compiler) popBlock() *blockScope {
	n := len(c.fs.blocks)
	b := c.fs.blocks[n-1]
	c.fs.blocks = c.fs.blocks[:n-1]
	base := 0
	if b.localBase < len(c.fs.locals) {
		base = c.fs.locals[b.localBase].reg
	} else if b.localBase > 0 {
		base = c.fs.locals[b.localBase-1].reg + 1
	}
	c.fs.locals = c.fs.locals[:b.localBase]
	c.fs.freeReg = base
	return b
}

func (c *Compiler) innermostLoop() *blockScope {
	for i := len(c.fs.blocks) - 1; i >= 0; i-- {
		if c.fs.blocks[i].isLoop {
			return c.fs.blocks[i]
		}
	}
	return nil
}

// ---- register allocation ----

func (c *Compiler) allocReg() (int, error) {
	r := c.fs.freeReg
	if c.fs.win.IsProtected(r) {
		return 0, &errors.CompileError{Msg: errors.NewProtectionViolation(r).Error()}
	}
	if err := c.fs.win.Grow(r+1, MaxRegisters); err != nil {
		return 0, &errors.CompileError{Msg: err.Error()}
	}
	c.fs.freeReg++
	return r, nil
}

// protect pins regs against reuse while compiling a nested sub-expression
// that must not clobber them (spec.md §4.6); callers `defer` the returned
// release function.
func (c *Compiler) protect(regs ...int) func() {
	p := c.fs.win.Protect(regs...)
	return p.Release
}

// protectRange pins every register in [from, to) -- a convenience over
// protect for the contiguous runs (call bases, concat operands, for-loop
// control triples) that make up most §4.6 protection sites.
func (c *Compiler) protectRange(from, to int) func() {
	if to <= from {
		return func() {}
	}
	regs := make([]int, 0, to-from)
	for r := from; r < to; r++ {
		regs = append(regs, r)
	}
	return c.protect(regs...)
}

func (c *Compiler) freeTo(n int) {
	if n < c.fs.freeReg {
		c.fs.freeReg = n
	}
}

func (c *Compiler) declareLocal(name string) (int, error) {
	reg, err := c.allocReg()
	if err != nil {
		return 0, err
	}
	c.fs.locals = append(c.fs.locals, localVar{name: name, reg: reg})
	return reg, nil
}

// ---- constants ----

func (c *Compiler) addConstant(v value.Value) int {
	hv, ok := value.ToHashable(v)
	if ok {
		if idx, found := c.fs.constIndex[hv]; found {
			return idx
		}
	}
	idx := len(c.fs.proto.Constants)
	c.fs.proto.Constants = append(c.fs.proto.Constants, v)
	if ok {
		c.fs.constIndex[hv] = idx
	}
	return idx
}

func (c *Compiler) stringConstant(s string) int {
	h := c.h.CreateString([]byte(s))
	return c.addConstant(value.StringFromHandle(h))
}

// ---- emit ----

func (c *Compiler) emit(ins bytecode.Instruction) int {
	c.fs.proto.Bytecode = append(c.fs.proto.Bytecode, ins)
	if c.fs.proto.Debug != nil {
		c.fs.proto.Debug.Lines = append(c.fs.proto.Debug.Lines, c.curLine)
	}
	return len(c.fs.proto.Bytecode) - 1
}

func (c *Compiler) pc() int { return len(c.fs.proto.Bytecode) }

// emitJump emits a placeholder OpJmp and returns its pc for later patching.
func (c *Compiler) emitJump() int {
	return c.emit(bytecode.AsBx(bytecode.OpJmp, 0, 0))
}

// patchJumpToHere rewrites the jump at pc to land on the instruction about
// to be emitted next.
func (c *Compiler) patchJumpToHere(pc int) {
	c.patchJumpTo(pc, c.pc())
}

func (c *Compiler) patchJumpTo(pc, target int) {
	offset := target - (pc + 1)
	old := c.fs.proto.Bytecode[pc]
	c.fs.proto.Bytecode[pc] = bytecode.AsBx(bytecode.OpJmp, old.A(), offset)
}

// ---- variable resolution ----

type varKind int

const (
	varGlobal varKind = iota
	varLocal
	varUpvalue
)

type resolved struct {
	kind varKind
	reg  int // for varLocal: register; for varUpvalue: upvalue index
	name string
}

func (c *Compiler) resolveVar(fs *funcState, name string) resolved {
	for i := len(fs.locals) - 1; i >= 0; i-- {
		if fs.locals[i].name == name {
			return resolved{kind: varLocal, reg: fs.locals[i].reg}
		}
	}
	if fs.parent == nil {
		return resolved{kind: varGlobal, name: name}
	}
	// Already captured?
	for i, n := range fs.upvalNames {
		if n == name {
			return resolved{kind: varUpvalue, reg: i}
		}
	}
	parentRes := c.resolveVar(fs.parent, name)
	switch parentRes.kind {
	case varGlobal:
		return parentRes
	case varLocal:
		idx := len(fs.upvalNames)
		fs.upvalNames = append(fs.upvalNames, name)
		fs.proto.UpvalueDescriptors = append(fs.proto.UpvalueDescriptors, heap.UpvalDesc{InParentStack: true, Index: uint8(parentRes.reg)})
		return resolved{kind: varUpvalue, reg: idx}
	case varUpvalue:
		idx := len(fs.upvalNames)
		fs.upvalNames = append(fs.upvalNames, name)
		fs.proto.UpvalueDescriptors = append(fs.proto.UpvalueDescriptors, heap.UpvalDesc{InParentStack: false, Index: uint8(parentRes.reg)})
		return resolved{kind: varUpvalue, reg: idx}
	}
	return resolved{kind: varGlobal, name: name}
}
