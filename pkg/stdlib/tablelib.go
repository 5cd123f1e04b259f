package stdlib

import (
	"bytes"
	"sort"
	"strconv"

	"github.com/iGentAI/ferrous/pkg/arena"
	ferrors "github.com/iGentAI/ferrous/pkg/errors"
	"github.com/iGentAI/ferrous/pkg/heap"
	"github.com/iGentAI/ferrous/pkg/value"
)

// registerTable installs table.insert/remove/concat/sort on tbl
// (spec.md §4.8).
func registerTable(h *heap.Heap, tbl arena.Handle) {
	setField(h, tbl, "insert", tableInsertImpl)
	setField(h, tbl, "remove", tableRemoveImpl)
	setField(h, tbl, "concat", tableConcatImpl)
	setField(h, tbl, "sort", tableSortImpl)
}

func tableInsertImpl(rt value.Runtime, args []value.Value) ([]value.Value, error) {
	t := arg(args, 0)
	n, err := rt.TableLen(t)
	if err != nil {
		return nil, err
	}
	var pos int
	var v value.Value
	switch len(args) {
	case 2:
		pos = n + 1
		v = args[1]
	case 3:
		f, ok := rt.ToNumber(args[1])
		if !ok {
			return nil, &ferrors.ArgError{FuncName: "insert", Position1: 2, Msg: "number expected"}
		}
		pos = int(f)
		v = args[2]
	default:
		return nil, &ferrors.ArgError{FuncName: "insert", Position1: 2, Msg: "wrong number of arguments"}
	}
	if pos < 1 || pos > n+1 {
		return nil, &ferrors.ArgError{FuncName: "insert", Position1: 2, Msg: "position out of bounds"}
	}
	for i := n + 1; i > pos; i-- {
		prev, err := rt.RawGet(t, value.Int(int64(i-1)))
		if err != nil {
			return nil, err
		}
		if err := rt.RawSet(t, value.Int(int64(i)), prev); err != nil {
			return nil, err
		}
	}
	if err := rt.RawSet(t, value.Int(int64(pos)), v); err != nil {
		return nil, err
	}
	return nil, nil
}

func tableRemoveImpl(rt value.Runtime, args []value.Value) ([]value.Value, error) {
	t := arg(args, 0)
	n, err := rt.TableLen(t)
	if err != nil {
		return nil, err
	}
	pos := n
	if len(args) >= 2 {
		f, ok := rt.ToNumber(args[1])
		if !ok {
			return nil, &ferrors.ArgError{FuncName: "remove", Position1: 2, Msg: "number expected"}
		}
		pos = int(f)
	}
	if n == 0 {
		return []value.Value{value.Nil}, nil
	}
	if pos < 1 || pos > n {
		return nil, &ferrors.ArgError{FuncName: "remove", Position1: 2, Msg: "position out of bounds"}
	}
	removed, err := rt.RawGet(t, value.Int(int64(pos)))
	if err != nil {
		return nil, err
	}
	for i := pos; i < n; i++ {
		next, err := rt.RawGet(t, value.Int(int64(i+1)))
		if err != nil {
			return nil, err
		}
		if err := rt.RawSet(t, value.Int(int64(i)), next); err != nil {
			return nil, err
		}
	}
	if err := rt.RawSet(t, value.Int(int64(n)), value.Nil); err != nil {
		return nil, err
	}
	return []value.Value{removed}, nil
}

func tableConcatImpl(rt value.Runtime, args []value.Value) ([]value.Value, error) {
	t := arg(args, 0)
	n, err := rt.TableLen(t)
	if err != nil {
		return nil, err
	}
	sep := ""
	if len(args) >= 2 && !args[1].IsNil() {
		b, ok := rt.StringBytes(args[1])
		if !ok {
			return nil, &ferrors.ArgError{FuncName: "concat", Position1: 2, Msg: "string expected"}
		}
		sep = string(b)
	}
	i, j := 1, n
	if len(args) >= 3 && !args[2].IsNil() {
		f, _ := rt.ToNumber(args[2])
		i = int(f)
	}
	if len(args) >= 4 && !args[3].IsNil() {
		f, _ := rt.ToNumber(args[3])
		j = int(f)
	}
	var buf bytes.Buffer
	for k := i; k <= j; k++ {
		v, err := rt.RawGet(t, value.Int(int64(k)))
		if err != nil {
			return nil, err
		}
		s, err := rt.ToDisplayString(v)
		if err != nil {
			return nil, err
		}
		if !v.IsString() && !v.IsNumber() {
			return nil, &ferrors.ArgError{FuncName: "concat", Position1: 1, Msg: "invalid value (at index " + strconv.Itoa(k) + ") in table for 'concat'"}
		}
		if k > i {
			buf.WriteString(sep)
		}
		buf.WriteString(s)
	}
	return []value.Value{rt.NewString(buf.Bytes())}, nil
}

func tableSortImpl(rt value.Runtime, args []value.Value) ([]value.Value, error) {
	t := arg(args, 0)
	n, err := rt.TableLen(t)
	if err != nil {
		return nil, err
	}
	var comp value.Value
	hasComp := len(args) >= 2 && !args[1].IsNil()
	if hasComp {
		comp = args[1]
	}
	items := make([]value.Value, n)
	for i := 0; i < n; i++ {
		v, err := rt.RawGet(t, value.Int(int64(i+1)))
		if err != nil {
			return nil, err
		}
		items[i] = v
	}
	var sortErr error
	sort.SliceStable(items, func(a, b int) bool {
		if sortErr != nil {
			return false
		}
		if hasComp {
			results, err := rt.Call(comp, []value.Value{items[a], items[b]})
			if err != nil {
				sortErr = err
				return false
			}
			return len(results) > 0 && results[0].Truthy()
		}
		less, err := defaultLess(rt, items[a], items[b])
		if err != nil {
			sortErr = err
			return false
		}
		return less
	})
	if sortErr != nil {
		return nil, sortErr
	}
	for i, v := range items {
		if err := rt.RawSet(t, value.Int(int64(i+1)), v); err != nil {
			return nil, err
		}
	}
	return nil, nil
}

func defaultLess(rt value.Runtime, a, b value.Value) (bool, error) {
	if a.IsNumber() && b.IsNumber() {
		return a.AsNumber() < b.AsNumber(), nil
	}
	if a.IsString() && b.IsString() {
		ab, _ := rt.StringBytes(a)
		bb, _ := rt.StringBytes(b)
		return bytes.Compare(ab, bb) < 0, nil
	}
	return false, &ferrors.RuntimeError{Msg: "attempt to compare two " + a.Type().String() + " values"}
}
