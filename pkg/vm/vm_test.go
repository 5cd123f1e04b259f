package vm

import (
	"testing"

	"github.com/iGentAI/ferrous/pkg/compiler"
	"github.com/iGentAI/ferrous/pkg/heap"
	"github.com/iGentAI/ferrous/pkg/parser"
	"github.com/iGentAI/ferrous/pkg/value"
)

func run(t *testing.T, src string, args ...value.Value) []value.Value {
	t.Helper()
	chunk, err := parser.Parse(src, "test")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	h := heap.New()
	protoHandle, err := compiler.Compile(h, chunk, "test")
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	m := New(h, nil)
	results, err := m.CallProto(protoHandle, args)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	return results
}

func TestArithmeticAndReturn(t *testing.T) {
	r := run(t, `return 1 + 2 * 3`)
	if len(r) != 1 || r[0].AsNumber() != 7 {
		t.Fatalf("got %v", r)
	}
}

func TestStringConcat(t *testing.T) {
	h := heap.New()
	chunk, err := parser.Parse(`return "a" .. "b" .. 1`, "t")
	if err != nil {
		t.Fatal(err)
	}
	proto, err := compiler.Compile(h, chunk, "t")
	if err != nil {
		t.Fatal(err)
	}
	m := New(h, nil)
	results, err := m.CallProto(proto, nil)
	if err != nil {
		t.Fatal(err)
	}
	b, _ := m.StringBytes(results[0])
	if string(b) != "ab1" {
		t.Fatalf("got %q", b)
	}
}

func TestIfElse(t *testing.T) {
	r := run(t, `
		local x = 10
		if x > 5 then
			return "big"
		else
			return "small"
		end
	`)
	if r[0].Type() != value.TypeString {
		t.Fatalf("expected string result")
	}
}

func TestWhileLoopCounts(t *testing.T) {
	r := run(t, `
		local i = 0
		local sum = 0
		while i < 5 do
			sum = sum + i
			i = i + 1
		end
		return sum
	`)
	if r[0].AsNumber() != 10 {
		t.Fatalf("got %v", r[0].AsNumber())
	}
}

func TestNumericFor(t *testing.T) {
	r := run(t, `
		local total = 0
		for i = 1, 10 do
			total = total + i
		end
		return total
	`)
	if r[0].AsNumber() != 55 {
		t.Fatalf("got %v", r[0].AsNumber())
	}
}

func TestFunctionClosureAndUpvalue(t *testing.T) {
	r := run(t, `
		local function counter()
			local n = 0
			return function()
				n = n + 1
				return n
			end
		end
		local c = counter()
		c()
		c()
		return c()
	`)
	if r[0].AsNumber() != 3 {
		t.Fatalf("got %v", r[0].AsNumber())
	}
}

func TestTableConstructorAndIndex(t *testing.T) {
	r := run(t, `
		local t = {10, 20, 30, name = "x"}
		return t[1], t[2], t[3], t.name
	`)
	if len(r) != 4 {
		t.Fatalf("expected 4 results, got %d", len(r))
	}
	if r[0].AsNumber() != 10 || r[1].AsNumber() != 20 || r[2].AsNumber() != 30 {
		t.Fatalf("array part wrong: %v %v %v", r[0], r[1], r[2])
	}
}

func TestGenericForWithExplicitIterator(t *testing.T) {
	h := heap.New()
	chunk, err := parser.Parse(`
		local sum = 0
		for i, v in iter, nil, 0 do
			sum = sum + v
		end
		return sum
	`, "t")
	if err != nil {
		t.Fatal(err)
	}
	proto, err := compiler.Compile(h, chunk, "t")
	if err != nil {
		t.Fatal(err)
	}
	m := New(h, nil)
	nameHandle := h.CreateString([]byte("iter"))
	iterFn := value.CFunction("iter", func(rt value.Runtime, args []value.Value) ([]value.Value, error) {
		control := args[1].AsNumber()
		if control >= 3 {
			return []value.Value{value.Nil}, nil
		}
		next := control + 1
		return []value.Value{value.Number(next), value.Number(next * 10)}, nil
	})
	h.SetTableField(h.Globals(), value.StringFromHandle(nameHandle), iterFn)
	results, err := m.CallProto(proto, nil)
	if err != nil {
		t.Fatal(err)
	}
	if results[0].AsNumber() != 60 {
		t.Fatalf("got %v", results[0].AsNumber())
	}
}

func TestRecursiveFunction(t *testing.T) {
	r := run(t, `
		local function fact(n)
			if n <= 1 then
				return 1
			end
			return n * fact(n - 1)
		end
		return fact(6)
	`)
	if r[0].AsNumber() != 720 {
		t.Fatalf("got %v", r[0].AsNumber())
	}
}

func TestVarargsAndMultipleReturn(t *testing.T) {
	r := run(t, `
		local function pass(...)
			return ...
		end
		return pass(1, 2, 3)
	`)
	if len(r) != 3 {
		t.Fatalf("expected 3 results, got %d: %v", len(r), r)
	}
}

func TestMetatableIndexChain(t *testing.T) {
	h := heap.New()
	chunk, err := parser.Parse(`
		local base = {greet = "hi"}
		local derived = {}
		setmetatable(derived, {__index = base})
		return derived.greet
	`, "t")
	if err != nil {
		t.Fatal(err)
	}
	proto, err := compiler.Compile(h, chunk, "t")
	if err != nil {
		t.Fatal(err)
	}
	m := New(h, nil)
	m.H.SetTableField(m.H.Globals(), m.NewString([]byte("setmetatable")), value.CFunction("setmetatable", func(rt value.Runtime, args []value.Value) ([]value.Value, error) {
		if err := rt.SetMetatable(args[0], args[1]); err != nil {
			return nil, err
		}
		return []value.Value{args[0]}, nil
	}))
	results, err := m.CallProto(proto, nil)
	if err != nil {
		t.Fatal(err)
	}
	b, _ := m.StringBytes(results[0])
	if string(b) != "hi" {
		t.Fatalf("got %q", b)
	}
}

func TestAndOrShortCircuit(t *testing.T) {
	r := run(t, `
		local a = nil
		local b = a and a.field or "default"
		return b
	`)
	if r[0].Type() != value.TypeString {
		t.Fatalf("expected string, got %v", r[0].Type())
	}
}
