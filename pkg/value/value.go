// Package value defines Ferrous's tagged Lua value type and the minimal
// Runtime surface a native (Go-implemented) Lua function needs to operate
// on it. Heap-resident kinds (strings, tables, closures, threads,
// user data, function prototypes) are addressed by arena.Handle rather
// than by Go pointer — the handle is only meaningful in the context of a
// specific Heap (see package heap), matching the generational-arena model
// spec.md §3 requires instead of a tracing collector.
package value

import (
	"fmt"
	"math"

	"github.com/iGentAI/ferrous/pkg/arena"
)

// Type tags the variant a Value currently holds.
type Type uint8

const (
	TypeNil Type = iota
	TypeBool
	TypeNumber
	TypeString
	TypeTable
	TypeClosure
	TypeCFunction
	TypeThread
	TypeUserData
	TypeFunctionProto
)

// String returns the Lua type name (type(x) result) for t.
func (t Type) String() string {
	switch t {
	case TypeNil:
		return "nil"
	case TypeBool:
		return "boolean"
	case TypeNumber:
		return "number"
	case TypeString:
		return "string"
	case TypeTable:
		return "table"
	case TypeClosure, TypeCFunction:
		return "function"
	case TypeThread:
		return "thread"
	case TypeUserData:
		return "userdata"
	case TypeFunctionProto:
		return "function"
	default:
		return "unknown"
	}
}

// NativeFn is the signature of a Go-implemented Lua function. rt gives it
// just enough access to the owning VM/heap to do its job without value
// importing vm (which would create an import cycle, since vm necessarily
// imports value).
type NativeFn func(rt Runtime, args []Value) ([]Value, error)

// Runtime is implemented by *vm.VM. It is the only way a NativeFn can
// touch the heap, call back into Lua, or raise a Lua-visible error.
type Runtime interface {
	NewString(s []byte) Value
	NewTable() Value
	TableGet(t Value, key Value) (Value, error)
	TableSet(t Value, key Value, val Value) error
	// RawGet/RawSet bypass __index/__newindex -- rawget/rawset/next/pairs
	// and the table library need raw access even on a table wearing a
	// metatable.
	RawGet(t Value, key Value) (Value, error)
	RawSet(t Value, key Value, val Value) error
	TableLen(t Value) (int, error)
	TableNext(t Value, key Value) (k, v Value, ok bool, err error)
	StringBytes(v Value) ([]byte, bool)
	ToDisplayString(v Value) (string, error)
	ToNumber(v Value) (float64, bool)
	Call(fn Value, args []Value) ([]Value, error)
	RaiseError(v Value) error
	GetMetatable(v Value) (Value, bool)
	SetMetatable(t Value, mt Value) error
}

// Value is a flat tagged union. Only the fields relevant to Type are
// meaningful; the rest are zero. Values are small and Copy, matching
// spec.md §3 ("Handles are Copy").
type Value struct {
	typ  Type
	b    bool
	n    float64
	h    arena.Handle
	fn   NativeFn
	name string // debug name, meaningful only for TypeCFunction
}

// Nil is the canonical nil value.
var Nil = Value{typ: TypeNil}

// Bool constructs a boolean value.
func Bool(b bool) Value { return Value{typ: TypeBool, b: b} }

// Number constructs a numeric value.
func Number(n float64) Value { return Value{typ: TypeNumber, n: n} }

// Int constructs a numeric value from an integer (Lua 5.1 has one numeric
// type, a float, so this is purely a convenience constructor).
func Int(i int64) Value { return Value{typ: TypeNumber, n: float64(i)} }

// StringFromHandle constructs a string value addressing an interned
// string in some Heap. Only the Heap that produced h can resolve it.
func StringFromHandle(h arena.Handle) Value { return Value{typ: TypeString, h: h} }

// TableFromHandle constructs a table value.
func TableFromHandle(h arena.Handle) Value { return Value{typ: TypeTable, h: h} }

// ClosureFromHandle constructs a closure value.
func ClosureFromHandle(h arena.Handle) Value { return Value{typ: TypeClosure, h: h} }

// ThreadFromHandle constructs a thread value.
func ThreadFromHandle(h arena.Handle) Value { return Value{typ: TypeThread, h: h} }

// UserDataFromHandle constructs a user-data value.
func UserDataFromHandle(h arena.Handle) Value { return Value{typ: TypeUserData, h: h} }

// FunctionProtoFromHandle constructs a function-prototype value (used
// only internally by the compiler/VM, never visible to scripts).
func FunctionProtoFromHandle(h arena.Handle) Value { return Value{typ: TypeFunctionProto, h: h} }

// CFunction constructs a native-function value.
func CFunction(name string, fn NativeFn) Value {
	return Value{typ: TypeCFunction, name: name, fn: fn}
}

func (v Value) Type() Type { return v.typ }
func (v Value) IsNil() bool { return v.typ == TypeNil }
func (v Value) IsBool() bool { return v.typ == TypeBool }
func (v Value) IsNumber() bool { return v.typ == TypeNumber }
func (v Value) IsString() bool { return v.typ == TypeString }
func (v Value) IsTable() bool { return v.typ == TypeTable }
func (v Value) IsClosure() bool { return v.typ == TypeClosure }
func (v Value) IsCFunction() bool { return v.typ == TypeCFunction }
func (v Value) IsThread() bool { return v.typ == TypeThread }
func (v Value) IsUserData() bool { return v.typ == TypeUserData }
func (v Value) IsFunctionProto() bool { return v.typ == TypeFunctionProto }
func (v Value) IsCallable() bool {
	return v.typ == TypeClosure || v.typ == TypeCFunction
}

// AsBool returns the boolean payload. Only meaningful when IsBool.
func (v Value) AsBool() bool { return v.b }

// AsNumber returns the numeric payload. Only meaningful when IsNumber.
func (v Value) AsNumber() float64 { return v.n }

// AsHandle returns the heap handle payload. Only meaningful for the
// heap-resident kinds (String, Table, Closure, Thread, UserData, FunctionProto).
func (v Value) AsHandle() arena.Handle { return v.h }

// AsNativeFn returns the native function payload and its debug name.
// Only meaningful when IsCFunction.
func (v Value) AsNativeFn() (NativeFn, string) { return v.fn, v.name }

// Truthy implements Lua truthiness: everything except nil and false is
// truthy (0 and "" are truthy, unlike many other scripting languages).
func (v Value) Truthy() bool {
	switch v.typ {
	case TypeNil:
		return false
	case TypeBool:
		return v.b
	default:
		return true
	}
}

// RawEqual implements Lua's raw equality (no __eq metamethod): structural
// for primitives, bitwise for numbers, handle-identity for heap values.
// Matches spec.md §3 exactly.
func (a Value) RawEqual(b Value) bool {
	if a.typ != b.typ {
		// Lua 5.1 does not consider differently-typed values equal, even
		// numerically — e.g. "1" ~= 1.
		return false
	}
	switch a.typ {
	case TypeNil:
		return true
	case TypeBool:
		return a.b == b.b
	case TypeNumber:
		return math.Float64bits(a.n) == math.Float64bits(b.n)
	case TypeString, TypeTable, TypeClosure, TypeThread, TypeUserData, TypeFunctionProto:
		return a.h == b.h
	case TypeCFunction:
		// Native functions are compared by registration identity; two
		// distinct CFunction values are never raw-equal even if they
		// wrap the same underlying Go func, matching Lua's treatment of
		// C functions as opaque.
		return false
	default:
		return false
	}
}

// GoString is used only for debugging/panics, never for script-visible
// output (that goes through Runtime.ToDisplayString, which knows how to
// render heap-resident values via the owning Heap).
func (v Value) GoString() string {
	switch v.typ {
	case TypeNil:
		return "nil"
	case TypeBool:
		return fmt.Sprintf("%t", v.b)
	case TypeNumber:
		return fmt.Sprintf("%v", v.n)
	default:
		return fmt.Sprintf("%s(%s)", v.typ, v.h)
	}
}
