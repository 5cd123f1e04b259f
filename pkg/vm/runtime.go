// runtime.go implements value.Runtime on *VM: the surface pkg/stdlib and
// pkg/bridge native functions use to touch the heap without importing vm
// (which would cycle back through value).
package vm

import (
	"fmt"

	"github.com/iGentAI/ferrous/pkg/arena"
	"github.com/iGentAI/ferrous/pkg/errors"
	"github.com/iGentAI/ferrous/pkg/value"
)

func (vm *VM) NewString(s []byte) value.Value {
	return value.StringFromHandle(vm.H.CreateString(s))
}

func (vm *VM) NewTable() value.Value {
	return value.TableFromHandle(vm.H.NewTable())
}

func (vm *VM) TableGet(t value.Value, key value.Value) (value.Value, error) {
	return vm.index(t, key)
}

func (vm *VM) TableSet(t value.Value, key value.Value, val value.Value) error {
	return vm.newindex(t, key, val)
}

func (vm *VM) RawGet(t value.Value, key value.Value) (value.Value, error) {
	if !t.IsTable() {
		return value.Nil, &errors.TypeError{Expected: "table", Got: t.Type().String()}
	}
	return vm.H.GetTableField(t.AsHandle(), key)
}

func (vm *VM) RawSet(t value.Value, key value.Value, val value.Value) error {
	if !t.IsTable() {
		return &errors.TypeError{Expected: "table", Got: t.Type().String()}
	}
	return vm.H.SetTableField(t.AsHandle(), key, val)
}

func (vm *VM) TableLen(t value.Value) (int, error) {
	if !t.IsTable() {
		return 0, &errors.TypeError{Expected: "table", Got: t.Type().String()}
	}
	return vm.H.TableLen(t.AsHandle())
}

func (vm *VM) TableNext(t value.Value, key value.Value) (value.Value, value.Value, bool, error) {
	if !t.IsTable() {
		return value.Nil, value.Nil, false, &errors.TypeError{Expected: "table", Got: t.Type().String()}
	}
	return vm.H.TableNext(t.AsHandle(), key)
}

func (vm *VM) StringBytes(v value.Value) ([]byte, bool) {
	if !v.IsString() {
		return nil, false
	}
	return vm.H.GetStringBytes(v.AsHandle())
}

// ToDisplayString implements Lua's tostring(), consulting __tostring
// before falling back to the builtin renderings (spec.md §4.7).
func (vm *VM) ToDisplayString(v value.Value) (string, error) {
	if mm, ok := vm.lookupMetamethod(v, "__tostring"); ok {
		results, err := vm.Call(mm, []value.Value{v})
		if err != nil {
			return "", err
		}
		if len(results) == 0 || !results[0].IsString() {
			return "", &errors.RuntimeError{Msg: "'__tostring' must return a string"}
		}
		b, _ := vm.StringBytes(results[0])
		return string(b), nil
	}
	switch v.Type() {
	case value.TypeNil:
		return "nil", nil
	case value.TypeBool:
		if v.AsBool() {
			return "true", nil
		}
		return "false", nil
	case value.TypeNumber:
		return value.FormatNumber(v.AsNumber()), nil
	case value.TypeString:
		b, _ := vm.StringBytes(v)
		return string(b), nil
	case value.TypeTable:
		return fmt.Sprintf("table: %s", v.AsHandle()), nil
	case value.TypeClosure, value.TypeCFunction:
		return fmt.Sprintf("function: %s", v.AsHandle()), nil
	case value.TypeThread:
		return fmt.Sprintf("thread: %s", v.AsHandle()), nil
	default:
		return fmt.Sprintf("userdata: %s", v.AsHandle()), nil
	}
}

func (vm *VM) ToNumber(v value.Value) (float64, bool) {
	return vm.toNumber(v)
}

// RaiseError wraps a Lua-raised value (error()'s argument) into the Go
// error representation the VM propagates through Call/pcall.
func (vm *VM) RaiseError(v value.Value) error {
	if v.IsString() {
		b, _ := vm.StringBytes(v)
		return &errors.RuntimeError{Msg: string(b), Payload: v}
	}
	msg, _ := vm.ToDisplayString(v)
	return &errors.RuntimeError{Msg: msg, Payload: v}
}

func (vm *VM) GetMetatable(v value.Value) (value.Value, bool) {
	if !v.IsTable() && !v.IsUserData() {
		return value.Nil, false
	}
	mt, ok := vm.H.GetMetatable(v.AsHandle())
	if !ok {
		return value.Nil, false
	}
	return value.TableFromHandle(mt), true
}

func (vm *VM) SetMetatable(t value.Value, mt value.Value) error {
	if !t.IsTable() {
		return &errors.TypeError{Expected: "table", Got: t.Type().String()}
	}
	mtHandle := arena.Handle{}
	if !mt.IsNil() {
		if !mt.IsTable() {
			return &errors.TypeError{Expected: "table", Got: mt.Type().String()}
		}
		mtHandle = mt.AsHandle()
	}
	return vm.H.SetMetatable(t.AsHandle(), mtHandle)
}
