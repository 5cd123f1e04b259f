package vm

import (
	"github.com/iGentAI/ferrous/pkg/errors"
	"github.com/iGentAI/ferrous/pkg/value"
)

// lookupMetamethod returns v's metatable's `name` entry, if v has a
// metatable and that entry is non-nil.
func (vm *VM) lookupMetamethod(v value.Value, name string) (value.Value, bool) {
	if !v.IsTable() && !v.IsUserData() {
		return value.Nil, false
	}
	mtHandle, ok := vm.H.GetMetatable(v.AsHandle())
	if !ok {
		return value.Nil, false
	}
	field, err := vm.H.GetTableField(mtHandle, vm.NewString([]byte(name)))
	if err != nil || field.IsNil() {
		return value.Nil, false
	}
	return field, true
}

// lookupBinMetamethod tries a's metamethod first, then b's, matching
// Lua's rule for binary-operator metamethod resolution.
func (vm *VM) lookupBinMetamethod(name string, a, b value.Value) (value.Value, bool) {
	if mm, ok := vm.lookupMetamethod(a, name); ok {
		return mm, true
	}
	return vm.lookupMetamethod(b, name)
}

// index implements `t[k]` including the __index metatable chain
// (spec.md §4.7): a table __index is itself indexed (recursively, up to
// MaxMetamethodDepth), a function __index is called with (t, k).
func (vm *VM) index(t, k value.Value) (value.Value, error) {
	for depth := 0; depth < MaxMetamethodDepth; depth++ {
		if t.IsTable() {
			v, err := vm.H.GetTableField(t.AsHandle(), k)
			if err != nil {
				return value.Nil, err
			}
			if !v.IsNil() {
				return v, nil
			}
			mm, ok := vm.lookupMetamethod(t, "__index")
			if !ok {
				return value.Nil, nil
			}
			if mm.IsCallable() {
				results, err := vm.Call(mm, []value.Value{t, k})
				if err != nil {
					return value.Nil, err
				}
				if len(results) == 0 {
					return value.Nil, nil
				}
				return results[0], nil
			}
			t = mm
			continue
		}
		mm, ok := vm.lookupMetamethod(t, "__index")
		if !ok {
			return value.Nil, &errors.TypeError{Expected: "table", Got: t.Type().String()}
		}
		if mm.IsCallable() {
			results, err := vm.Call(mm, []value.Value{t, k})
			if err != nil {
				return value.Nil, err
			}
			if len(results) == 0 {
				return value.Nil, nil
			}
			return results[0], nil
		}
		t = mm
	}
	return value.Nil, &errors.RuntimeError{Msg: "'__index' chain too long; possible loop"}
}

// newindex implements `t[k] = v` including the __newindex chain.
func (vm *VM) newindex(t, k, v value.Value) error {
	for depth := 0; depth < MaxMetamethodDepth; depth++ {
		if !t.IsTable() {
			mm, ok := vm.lookupMetamethod(t, "__newindex")
			if !ok {
				return &errors.TypeError{Expected: "table", Got: t.Type().String()}
			}
			if mm.IsCallable() {
				_, err := vm.Call(mm, []value.Value{t, k, v})
				return err
			}
			t = mm
			continue
		}
		existing, err := vm.H.GetTableField(t.AsHandle(), k)
		if err != nil {
			return err
		}
		if !existing.IsNil() {
			return vm.H.SetTableField(t.AsHandle(), k, v)
		}
		mm, ok := vm.lookupMetamethod(t, "__newindex")
		if !ok {
			return vm.H.SetTableField(t.AsHandle(), k, v)
		}
		if mm.IsCallable() {
			_, err := vm.Call(mm, []value.Value{t, k, v})
			return err
		}
		t = mm
	}
	return &errors.RuntimeError{Msg: "'__newindex' chain too long; possible loop"}
}
