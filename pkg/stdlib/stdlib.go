// Package stdlib registers Ferrous's base, string, and table libraries
// (spec.md §4.8) as globals on a heap. Every library function is a
// value.NativeFn reached only through value.Runtime, the same surface
// pkg/bridge uses for redis.call/pcall -- stdlib never imports pkg/vm,
// avoiding any import cycle back through pkg/value.
//
// Grounded on paserati's pkg/builtins/*_init.go one-file-per-global-
// object registration shape (a RegisterXBuiltins function per library),
// narrowed here to Lua's base/string/table tables instead of JS's
// Array.prototype/String.prototype/global object.
package stdlib

import (
	"github.com/iGentAI/ferrous/pkg/arena"
	"github.com/iGentAI/ferrous/pkg/heap"
	"github.com/iGentAI/ferrous/pkg/value"
)

// Open installs the base library directly on h's globals table, plus
// the string and table library tables as globals named "string" and
// "table". Safe to call once per heap (pkg/executor calls it when a
// pooled VM's heap is first created).
func Open(h *heap.Heap) error {
	registerBase(h)

	stringLib := newLibTable(h, "string")
	registerString(h, stringLib)

	tableLib := newLibTable(h, "table")
	registerTable(h, tableLib)

	return nil
}

// newLibTable creates a fresh table, installs it as a global named
// name, and returns its handle for the caller to populate.
func newLibTable(h *heap.Heap, name string) arena.Handle {
	hd := h.NewTable()
	h.SetTableField(h.Globals(), value.StringFromHandle(h.CreateString([]byte(name))), value.TableFromHandle(hd))
	return hd
}

// setGlobal installs fn as a global function named name.
func setGlobal(h *heap.Heap, name string, fn value.NativeFn) {
	h.SetTableField(h.Globals(), value.StringFromHandle(h.CreateString([]byte(name))), value.CFunction(name, fn))
}

// setField installs fn as tbl[name].
func setField(h *heap.Heap, tbl arena.Handle, name string, fn value.NativeFn) {
	h.SetTableField(tbl, value.StringFromHandle(h.CreateString([]byte(name))), value.CFunction(name, fn))
}

func arg(args []value.Value, i int) value.Value {
	if i < len(args) {
		return args[i]
	}
	return value.Nil
}
