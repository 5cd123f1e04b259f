package value

import (
	"errors"
	"math"

	"github.com/iGentAI/ferrous/pkg/arena"
)

// ErrInvalidKey is returned when a Value cannot be used as a table key
// (a NaN number, per spec.md §3 — "numbers with NaN are rejected").
var ErrInvalidKey = errors.New("invalid table key")

// HashableValue is the comparable subset of Value usable as a Go map key,
// matching spec.md §3's HashableValue: Nil, Bool, Number (bits), or
// String (handle — interning guarantees bytes-equal strings share a
// handle, so handle equality already implies content equality).
type HashableValue struct {
	typ  Type
	b    bool
	bits uint64
	h    arena.Handle
}

// ToHashable converts v into the key form used by Table.Hash. Tables and
// functions are not hashable (spec.md §3); ok is false for those and for
// NaN numbers.
func ToHashable(v Value) (HashableValue, bool) {
	switch v.typ {
	case TypeNil:
		return HashableValue{typ: TypeNil}, true
	case TypeBool:
		return HashableValue{typ: TypeBool, b: v.b}, true
	case TypeNumber:
		if math.IsNaN(v.n) {
			return HashableValue{}, false
		}
		return HashableValue{typ: TypeNumber, bits: math.Float64bits(v.n)}, true
	case TypeString:
		return HashableValue{typ: TypeString, h: v.h}, true
	default:
		// Table, Closure, CFunction, Thread, UserData, FunctionProto: not
		// hashable. Callers (heap.SetTableField) silently no-op on these,
		// per spec.md §3 ("assignment with such a key is silently dropped,
		// to match source Lua behavior").
		return HashableValue{}, false
	}
}

// Value reconstructs the original Value from a HashableValue. String
// handles round-trip exactly since interning makes the handle canonical.
func (h HashableValue) Value() Value {
	switch h.typ {
	case TypeNil:
		return Nil
	case TypeBool:
		return Bool(h.b)
	case TypeNumber:
		return Number(math.Float64frombits(h.bits))
	case TypeString:
		return StringFromHandle(h.h)
	default:
		return Nil
	}
}

// AsInt, when the HashableValue is an integral number in array-index
// range, returns that integer. Used by Table/Heap to decide whether an
// integer key belongs in the array part.
func (h HashableValue) AsInt() (int64, bool) {
	if h.typ != TypeNumber {
		return 0, false
	}
	f := math.Float64frombits(h.bits)
	i := int64(f)
	if float64(i) != f {
		return 0, false
	}
	return i, true
}
