package heap

import (
	"github.com/iGentAI/ferrous/pkg/arena"
	"github.com/iGentAI/ferrous/pkg/value"
)

// Table is array part + hash part + optional metatable, matching
// spec.md §3: "Integer keys 1..=array.len() are stored in the array
// part; writing array.len()+1 appends; non-array integer and all other
// hashable keys go to the map. nil values are permitted in the array
// part but act as a hole; reads of missing keys return Nil."
type Table struct {
	Array      []value.Value
	Hash       map[value.HashableValue]value.Value
	Metatable  arena.Handle // zero Handle means "no metatable"
}

func newTable() *Table {
	return &Table{}
}

// Len implements Lua's "#t" border rule for the common case: the length
// of the array part with trailing nil holes trimmed, which is always a
// valid Lua border (holes earlier in the array are not looked at); spec.md does not
// require handling every pathological sparse-array border case (Lua
// itself leaves those implementation-defined).
func (t *Table) Len() int {
	n := len(t.Array)
	for n > 0 && t.Array[n-1].IsNil() {
		n--
	}
	return n
}

// rawGet reads t[key] without consulting any metatable.
func (t *Table) rawGet(key value.Value) value.Value {
	hk, ok := value.ToHashable(key)
	if !ok {
		return value.Nil
	}
	if i, isInt := hk.AsInt(); isInt && i >= 1 && int(i) <= len(t.Array) {
		return t.Array[i-1]
	}
	if t.Hash == nil {
		return value.Nil
	}
	if v, ok := t.Hash[hk]; ok {
		return v
	}
	return value.Nil
}

// rawSet writes t[key] = val without consulting any metatable. Keys that
// are not hashable (tables, functions, threads, userdata) are silently
// dropped, matching spec.md §3's "assignment with such a key is silently
// dropped (to match source Lua behavior)".
func (t *Table) rawSet(key, val value.Value) {
	hk, ok := value.ToHashable(key)
	if !ok {
		return
	}
	if i, isInt := hk.AsInt(); isInt && i >= 1 {
		n := len(t.Array)
		switch {
		case int(i) <= n:
			t.Array[i-1] = val
			return
		case int(i) == n+1:
			t.Array = append(t.Array, val)
			t.migrateFromHash()
			return
		}
	}
	if val.IsNil() {
		if t.Hash != nil {
			delete(t.Hash, hk)
		}
		return
	}
	if t.Hash == nil {
		t.Hash = make(map[value.HashableValue]value.Value)
	}
	t.Hash[hk] = val
}

// migrateFromHash pulls any now-contiguous integer keys out of the hash
// part and into the array part after an append grows the array's border.
func (t *Table) migrateFromHash() {
	if t.Hash == nil {
		return
	}
	for {
		next := int64(len(t.Array) + 1)
		hk := value.HashableValue{}
		hk, _ = value.ToHashable(value.Int(next))
		v, ok := t.Hash[hk]
		if !ok {
			return
		}
		t.Array = append(t.Array, v)
		delete(t.Hash, hk)
	}
}
