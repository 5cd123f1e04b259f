package stdlib

import (
	"fmt"
	"os"
	"strconv"

	ferrors "github.com/iGentAI/ferrous/pkg/errors"
	"github.com/iGentAI/ferrous/pkg/heap"
	"github.com/iGentAI/ferrous/pkg/value"
)

// registerBase installs the base library directly on h's globals table
// (spec.md §4.8: print, type, tostring, tonumber, assert, error,
// getmetatable, setmetatable, rawget, rawset, rawequal, select, next,
// pairs, ipairs, pcall, xpcall, getfenv, setfenv).
func registerBase(h *heap.Heap) {
	setGlobal(h, "print", printImpl)
	setGlobal(h, "type", typeImpl)
	setGlobal(h, "tostring", tostringImpl)
	setGlobal(h, "tonumber", tonumberImpl)
	setGlobal(h, "assert", assertImpl)
	setGlobal(h, "error", errorImpl)
	setGlobal(h, "getmetatable", getmetatableImpl)
	setGlobal(h, "setmetatable", setmetatableImpl)
	setGlobal(h, "rawget", rawgetImpl)
	setGlobal(h, "rawset", rawsetImpl)
	setGlobal(h, "rawequal", rawequalImpl)
	setGlobal(h, "select", selectImpl)
	setGlobal(h, "next", nextImpl)
	setGlobal(h, "pairs", pairsImpl)
	setGlobal(h, "ipairs", ipairsImpl)
	setGlobal(h, "pcall", pcallImpl)
	setGlobal(h, "xpcall", xpcallImpl)

	// getfenv/setfenv: Ferrous has no per-closure _ENV (globals resolve
	// directly against the heap's one globals table via OpGetGlobal/
	// OpSetGlobal -- see pkg/heap/closure.go), so these are registered
	// only for script-compatibility and operate on that single table.
	globals := h.Globals()
	setGlobal(h, "getfenv", func(rt value.Runtime, args []value.Value) ([]value.Value, error) {
		return []value.Value{value.TableFromHandle(globals)}, nil
	})
	setGlobal(h, "setfenv", func(rt value.Runtime, args []value.Value) ([]value.Value, error) {
		return []value.Value{arg(args, 0)}, nil
	})
}

func printImpl(rt value.Runtime, args []value.Value) ([]value.Value, error) {
	for i, a := range args {
		if i > 0 {
			fmt.Fprint(os.Stdout, "\t")
		}
		s, err := rt.ToDisplayString(a)
		if err != nil {
			return nil, err
		}
		fmt.Fprint(os.Stdout, s)
	}
	fmt.Fprintln(os.Stdout)
	return nil, nil
}

func typeImpl(rt value.Runtime, args []value.Value) ([]value.Value, error) {
	return []value.Value{rt.NewString([]byte(arg(args, 0).Type().String()))}, nil
}

func tostringImpl(rt value.Runtime, args []value.Value) ([]value.Value, error) {
	s, err := rt.ToDisplayString(arg(args, 0))
	if err != nil {
		return nil, err
	}
	return []value.Value{rt.NewString([]byte(s))}, nil
}

func tonumberImpl(rt value.Runtime, args []value.Value) ([]value.Value, error) {
	v := arg(args, 0)
	if len(args) >= 2 && !args[1].IsNil() {
		base, ok := rt.ToNumber(args[1])
		if !ok {
			return nil, &ferrors.ArgError{FuncName: "tonumber", Position1: 2, Msg: "number expected"}
		}
		b, ok := rt.StringBytes(v)
		if !ok {
			return nil, &ferrors.ArgError{FuncName: "tonumber", Position1: 1, Msg: "string expected, got " + v.Type().String()}
		}
		n, err := strconv.ParseInt(string(b), int(base), 64)
		if err != nil {
			return []value.Value{value.Nil}, nil
		}
		return []value.Value{value.Int(n)}, nil
	}
	n, ok := rt.ToNumber(v)
	if !ok {
		return []value.Value{value.Nil}, nil
	}
	return []value.Value{value.Number(n)}, nil
}

func assertImpl(rt value.Runtime, args []value.Value) ([]value.Value, error) {
	v := arg(args, 0)
	if v.Truthy() {
		return args, nil
	}
	if len(args) >= 2 {
		return nil, rt.RaiseError(args[1])
	}
	return nil, rt.RaiseError(rt.NewString([]byte("assertion failed!")))
}

func errorImpl(rt value.Runtime, args []value.Value) ([]value.Value, error) {
	return nil, rt.RaiseError(arg(args, 0))
}

func getmetatableImpl(rt value.Runtime, args []value.Value) ([]value.Value, error) {
	mt, ok := rt.GetMetatable(arg(args, 0))
	if !ok {
		return []value.Value{value.Nil}, nil
	}
	return []value.Value{mt}, nil
}

func setmetatableImpl(rt value.Runtime, args []value.Value) ([]value.Value, error) {
	t := arg(args, 0)
	mt := arg(args, 1)
	if err := rt.SetMetatable(t, mt); err != nil {
		return nil, err
	}
	return []value.Value{t}, nil
}

func rawgetImpl(rt value.Runtime, args []value.Value) ([]value.Value, error) {
	v, err := rt.RawGet(arg(args, 0), arg(args, 1))
	if err != nil {
		return nil, err
	}
	return []value.Value{v}, nil
}

func rawsetImpl(rt value.Runtime, args []value.Value) ([]value.Value, error) {
	t := arg(args, 0)
	if err := rt.RawSet(t, arg(args, 1), arg(args, 2)); err != nil {
		return nil, err
	}
	return []value.Value{t}, nil
}

func rawequalImpl(rt value.Runtime, args []value.Value) ([]value.Value, error) {
	return []value.Value{value.Bool(arg(args, 0).RawEqual(arg(args, 1)))}, nil
}

func selectImpl(rt value.Runtime, args []value.Value) ([]value.Value, error) {
	sel := arg(args, 0)
	rest := args
	if len(rest) > 0 {
		rest = rest[1:]
	}
	if sel.IsString() {
		b, _ := rt.StringBytes(sel)
		if string(b) == "#" {
			return []value.Value{value.Int(int64(len(rest)))}, nil
		}
	}
	n, ok := rt.ToNumber(sel)
	if !ok {
		return nil, &ferrors.ArgError{FuncName: "select", Position1: 1, Msg: "number or '#' expected"}
	}
	idx := int(n)
	if idx < 0 {
		idx = len(rest) + idx + 1
	}
	if idx < 1 {
		return nil, &ferrors.ArgError{FuncName: "select", Position1: 1, Msg: "index out of range"}
	}
	if idx > len(rest) {
		return nil, nil
	}
	return rest[idx-1:], nil
}

func nextImpl(rt value.Runtime, args []value.Value) ([]value.Value, error) {
	t := arg(args, 0)
	k, v, ok, err := rt.TableNext(t, arg(args, 1))
	if err != nil {
		return nil, err
	}
	if !ok {
		return []value.Value{value.Nil}, nil
	}
	return []value.Value{k, v}, nil
}

func pairsImpl(rt value.Runtime, args []value.Value) ([]value.Value, error) {
	t := arg(args, 0)
	return []value.Value{value.CFunction("next", nextImpl), t, value.Nil}, nil
}

func ipairsImpl(rt value.Runtime, args []value.Value) ([]value.Value, error) {
	t := arg(args, 0)
	return []value.Value{value.CFunction("inext", ipairsIter), t, value.Int(0)}, nil
}

// ipairsIter does NOT consult __index (matching Lua 5.1, where ipairs
// walks the raw array part and stops at the first absent integer key).
func ipairsIter(rt value.Runtime, args []value.Value) ([]value.Value, error) {
	t := arg(args, 0)
	i, _ := rt.ToNumber(arg(args, 1))
	next := int64(i) + 1
	v, err := rt.RawGet(t, value.Int(next))
	if err != nil {
		return nil, err
	}
	if v.IsNil() {
		return []value.Value{value.Nil}, nil
	}
	return []value.Value{value.Int(next), v}, nil
}

func pcallImpl(rt value.Runtime, args []value.Value) ([]value.Value, error) {
	if len(args) == 0 {
		return nil, &ferrors.ArgError{FuncName: "pcall", Position1: 1, Msg: "value expected"}
	}
	results, err := rt.Call(args[0], args[1:])
	if err != nil {
		return []value.Value{value.Bool(false), errorValue(rt, err)}, nil
	}
	return append([]value.Value{value.Bool(true)}, results...), nil
}

func xpcallImpl(rt value.Runtime, args []value.Value) ([]value.Value, error) {
	if len(args) < 2 {
		return nil, &ferrors.ArgError{FuncName: "xpcall", Position1: 2, Msg: "value expected"}
	}
	f, handler := args[0], args[1]
	results, err := rt.Call(f, args[2:])
	if err == nil {
		return append([]value.Value{value.Bool(true)}, results...), nil
	}
	handled, herr := rt.Call(handler, []value.Value{errorValue(rt, err)})
	if herr != nil {
		return []value.Value{value.Bool(false), errorValue(rt, herr)}, nil
	}
	return append([]value.Value{value.Bool(false)}, handled...), nil
}

// errorValue recovers the original Lua value passed to error() when
// possible (RuntimeError.Payload), otherwise wraps the Go error's
// message as a string -- matching spec.md §4.8's "pcall ... returns
// (false, error_value)".
func errorValue(rt value.Runtime, err error) value.Value {
	if re, ok := err.(*ferrors.RuntimeError); ok {
		if payload, ok := re.Payload.(value.Value); ok && !payload.IsNil() {
			return payload
		}
		return rt.NewString([]byte(re.Msg))
	}
	return rt.NewString([]byte(err.Error()))
}
