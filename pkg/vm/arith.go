package vm

import (
	"math"
	"strconv"
	"strings"

	"github.com/iGentAI/ferrous/pkg/errors"
	"github.com/iGentAI/ferrous/pkg/value"
)

// toNumber coerces v to a float64 the way Lua 5.1 arithmetic does:
// numbers pass through, strings that parse as numbers convert, anything
// else fails.
func (vm *VM) toNumber(v value.Value) (float64, bool) {
	if v.IsNumber() {
		return v.AsNumber(), true
	}
	if v.IsString() {
		b, ok := vm.H.GetStringBytes(v.AsHandle())
		if !ok {
			return 0, false
		}
		return parseNumberLiteral(string(b))
	}
	return 0, false
}

func parseNumberLiteral(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// metaNameForArith maps an opcode to the metamethod Lua consults when a
// raw operation isn't defined for the operand types.
var arithMeta = map[string]string{
	"add": "__add", "sub": "__sub", "mul": "__mul", "div": "__div",
	"mod": "__mod", "pow": "__pow", "unm": "__unm", "concat": "__concat",
	"eq": "__eq", "lt": "__lt", "le": "__le", "len": "__len",
}

// arith performs a raw binary arithmetic op, falling back to the
// appropriate metamethod (spec.md §4.7) when either operand isn't a
// number (or a numeric string).
func (vm *VM) arith(op string, a, b value.Value) (value.Value, error) {
	an, aok := vm.toNumber(a)
	bn, bok := vm.toNumber(b)
	if aok && bok {
		switch op {
		case "add":
			return value.Number(an + bn), nil
		case "sub":
			return value.Number(an - bn), nil
		case "mul":
			return value.Number(an * bn), nil
		case "div":
			return value.Number(an / bn), nil
		case "mod":
			return value.Number(an - math.Floor(an/bn)*bn), nil
		case "pow":
			return value.Number(math.Pow(an, bn)), nil
		}
	}
	if mm, ok := vm.lookupBinMetamethod(arithMeta[op], a, b); ok {
		results, err := vm.Call(mm, []value.Value{a, b})
		if err != nil {
			return value.Nil, err
		}
		if len(results) == 0 {
			return value.Nil, nil
		}
		return results[0], nil
	}
	bad := a
	if aok {
		bad = b
	}
	return value.Nil, &errors.TypeError{Expected: "number", Got: bad.Type().String()}
}

func (vm *VM) unm(a value.Value) (value.Value, error) {
	if n, ok := vm.toNumber(a); ok {
		return value.Number(-n), nil
	}
	if mm, ok := vm.lookupMetamethod(a, "__unm"); ok {
		results, err := vm.Call(mm, []value.Value{a, a})
		if err != nil {
			return value.Nil, err
		}
		if len(results) == 0 {
			return value.Nil, nil
		}
		return results[0], nil
	}
	return value.Nil, &errors.TypeError{Expected: "number", Got: a.Type().String()}
}

// length implements the `#` operator: string byte-length, table border
// (__len metamethod first, per spec.md §4.7).
func (vm *VM) length(a value.Value) (value.Value, error) {
	if mm, ok := vm.lookupMetamethod(a, "__len"); ok {
		results, err := vm.Call(mm, []value.Value{a})
		if err != nil {
			return value.Nil, err
		}
		if len(results) == 0 {
			return value.Nil, nil
		}
		return results[0], nil
	}
	switch a.Type() {
	case value.TypeString:
		b, _ := vm.H.GetStringBytes(a.AsHandle())
		return value.Int(int64(len(b))), nil
	case value.TypeTable:
		n, err := vm.H.TableLen(a.AsHandle())
		if err != nil {
			return value.Nil, err
		}
		return value.Int(int64(n)), nil
	default:
		return value.Nil, &errors.TypeError{Expected: "string or table", Got: a.Type().String()}
	}
}

// concat implements `..` over an arbitrary number of operands (spec.md
// §4.4: numbers convert to their canonical string form; anything else
// falls back to __concat, applied right-to-left the way Lua chains it).
func (vm *VM) concat(operands []value.Value) (value.Value, error) {
	if len(operands) == 0 {
		return vm.NewString(nil), nil
	}
	acc := operands[len(operands)-1]
	for i := len(operands) - 2; i >= 0; i-- {
		left := operands[i]
		if vm.concatable(left) && vm.concatable(acc) {
			ls, _ := vm.ToDisplayString(left)
			rs, _ := vm.ToDisplayString(acc)
			acc = vm.NewString([]byte(ls + rs))
			continue
		}
		mm, ok := vm.lookupBinMetamethod("__concat", left, acc)
		if !ok {
			bad := left
			if vm.concatable(left) {
				bad = acc
			}
			return value.Nil, &errors.TypeError{Expected: "string or number", Got: bad.Type().String()}
		}
		results, err := vm.Call(mm, []value.Value{left, acc})
		if err != nil {
			return value.Nil, err
		}
		if len(results) == 0 {
			acc = value.Nil
		} else {
			acc = results[0]
		}
	}
	return acc, nil
}

func (vm *VM) concatable(v value.Value) bool {
	return v.IsString() || v.IsNumber()
}

// equals implements `==`, consulting __eq only when both operands are
// tables (or both userdata) and raw equality fails, matching Lua 5.1.
func (vm *VM) equals(a, b value.Value) (bool, error) {
	if a.RawEqual(b) {
		return true, nil
	}
	if a.Type() != b.Type() {
		return false, nil
	}
	if a.Type() != value.TypeTable && a.Type() != value.TypeUserData {
		return false, nil
	}
	mm, ok := vm.lookupBinMetamethod("__eq", a, b)
	if !ok {
		return false, nil
	}
	results, err := vm.Call(mm, []value.Value{a, b})
	if err != nil {
		return false, err
	}
	return len(results) > 0 && results[0].Truthy(), nil
}

// less implements `<`, falling back to __lt for non-numeric/non-string
// operands (string comparison is byte-lexicographic).
func (vm *VM) less(a, b value.Value) (bool, error) {
	if a.IsNumber() && b.IsNumber() {
		return a.AsNumber() < b.AsNumber(), nil
	}
	if a.IsString() && b.IsString() {
		ab, _ := vm.H.GetStringBytes(a.AsHandle())
		bb, _ := vm.H.GetStringBytes(b.AsHandle())
		return string(ab) < string(bb), nil
	}
	mm, ok := vm.lookupBinMetamethod("__lt", a, b)
	if !ok {
		return false, &errors.TypeError{Expected: "number or string", Got: a.Type().String()}
	}
	results, err := vm.Call(mm, []value.Value{a, b})
	if err != nil {
		return false, err
	}
	return len(results) > 0 && results[0].Truthy(), nil
}

func (vm *VM) lessEqual(a, b value.Value) (bool, error) {
	if a.IsNumber() && b.IsNumber() {
		return a.AsNumber() <= b.AsNumber(), nil
	}
	if a.IsString() && b.IsString() {
		ab, _ := vm.H.GetStringBytes(a.AsHandle())
		bb, _ := vm.H.GetStringBytes(b.AsHandle())
		return string(ab) <= string(bb), nil
	}
	mm, ok := vm.lookupBinMetamethod("__le", a, b)
	if !ok {
		return false, &errors.TypeError{Expected: "number or string", Got: a.Type().String()}
	}
	results, err := vm.Call(mm, []value.Value{a, b})
	if err != nil {
		return false, err
	}
	return len(results) > 0 && results[0].Truthy(), nil
}
