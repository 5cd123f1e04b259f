// Package window implements the register-window system the compiler uses
// to protect in-use registers while compiling nested sub-expressions
// (spec.md §4.6): a Window tracks which register slots within a function's
// frame are currently "live" and must not be reused by a sibling
// sub-expression's temporaries.
package window

import "fmt"

// Window represents one function-compilation register frame: Base is the
// first register index available to this function, Size is how many
// registers have been allocated so far (the frame's current high-water
// mark), and Protected holds registers that a caller has pinned for the
// duration of evaluating some enclosing expression.
type Window struct {
	Base      int
	Size      int
	Protected map[int]bool
}

// New creates a window starting at base with no registers allocated.
func New(base int) *Window {
	return &Window{Base: base, Protected: make(map[int]bool)}
}

// Reset clears a pooled Window back to a fresh state at the given base,
// for reuse out of a Pool without a fresh allocation.
func (w *Window) Reset(base int) {
	w.Base = base
	w.Size = 0
	for k := range w.Protected {
		delete(w.Protected, k)
	}
}

// Protection is a scoped handle returned by Protect; releasing it (once)
// unprotects exactly the registers it pinned, RAII-style via defer.
type Protection struct {
	w    *Window
	regs []int
	done bool
}

// Protect marks regs as in-use for the lifetime of the returned handle.
// Callers should `defer p.Release()` immediately after compiling the
// sub-expression that must not clobber them.
func (w *Window) Protect(regs ...int) *Protection {
	for _, r := range regs {
		w.Protected[r] = true
	}
	return &Protection{w: w, regs: regs}
}

// Release unprotects the registers this handle pinned. Safe to call more
// than once; only the first call has an effect.
func (p *Protection) Release() {
	if p.done {
		return
	}
	p.done = true
	for _, r := range p.regs {
		delete(p.w.Protected, r)
	}
}

// IsProtected reports whether reg is currently pinned by some live scope.
func (w *Window) IsProtected(reg int) bool {
	return w.Protected[reg]
}

// Grow bumps Size to at least n, returning an error if that would exceed
// max (Lua 5.1's register file is capped at 250 per function frame; the
// caller supplies its cap as max).
func (w *Window) Grow(n, max int) error {
	if n > max {
		return fmt.Errorf("function uses more than %d registers", max)
	}
	if n > w.Size {
		w.Size = n
	}
	return nil
}
