package stdlib

import (
	"testing"

	"github.com/iGentAI/ferrous/pkg/compiler"
	"github.com/iGentAI/ferrous/pkg/heap"
	"github.com/iGentAI/ferrous/pkg/parser"
	"github.com/iGentAI/ferrous/pkg/value"
	"github.com/iGentAI/ferrous/pkg/vm"
)

func run(t *testing.T, src string) []value.Value {
	t.Helper()
	h := heap.New()
	if err := Open(h); err != nil {
		t.Fatalf("Open: %v", err)
	}
	chunk, err := parser.Parse(src, "test")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	proto, err := compiler.Compile(h, chunk, "test")
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	m := vm.New(h, nil)
	results, err := m.CallProto(proto, nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	return results
}

func TestTypeAndToString(t *testing.T) {
	r := run(t, `return type(1), type("x"), type(nil), type({}), tostring(42)`)
	if len(r) != 5 {
		t.Fatalf("got %d results", len(r))
	}
}

func TestTonumberWithBase(t *testing.T) {
	r := run(t, `return tonumber("ff", 16), tonumber("not a number")`)
	if r[0].AsNumber() != 255 {
		t.Fatalf("got %v", r[0].AsNumber())
	}
	if r[1].Type() != value.TypeNil {
		t.Fatalf("expected nil for unparsable, got %v", r[1])
	}
}

func TestAssertPassesThrough(t *testing.T) {
	r := run(t, `return assert(1, 2, 3)`)
	if len(r) != 3 {
		t.Fatalf("expected 3 results, got %d", len(r))
	}
}

func TestPcallCatchesError(t *testing.T) {
	r := run(t, `
		local ok, err = pcall(function() error("boom") end)
		return ok, err
	`)
	if r[0].Truthy() {
		t.Fatalf("expected ok=false")
	}
}

func TestPairsIteratesAllEntries(t *testing.T) {
	r := run(t, `
		local t = {10, 20, name = "x"}
		local count = 0
		for k, v in pairs(t) do
			count = count + 1
		end
		return count
	`)
	if r[0].AsNumber() != 3 {
		t.Fatalf("got %v", r[0].AsNumber())
	}
}

func TestIpairsSumsArray(t *testing.T) {
	r := run(t, `
		local t = {1, 2, 3}
		local sum = 0
		for i, v in ipairs(t) do
			sum = sum + v
		end
		return sum
	`)
	if r[0].AsNumber() != 6 {
		t.Fatalf("got %v", r[0].AsNumber())
	}
}

func TestRawequalBypassesMetamethod(t *testing.T) {
	r := run(t, `
		local a, b = {}, {}
		return rawequal(a, a), rawequal(a, b)
	`)
	if !r[0].Truthy() || r[1].Truthy() {
		t.Fatalf("got %v %v", r[0], r[1])
	}
}

func TestSelectHashAndIndex(t *testing.T) {
	r := run(t, `
		local function f(...)
			return select('#', ...), select(2, ...)
		end
		return f("a", "b", "c")
	`)
	if r[0].AsNumber() != 3 {
		t.Fatalf("select('#') got %v", r[0].AsNumber())
	}
	if len(r) != 3 {
		t.Fatalf("select(2,...) expected 2 results after count, got %d total", len(r))
	}
}

func TestTableInsertRemoveConcat(t *testing.T) {
	r := run(t, `
		local t = {1, 2, 3}
		table.insert(t, 4)
		table.insert(t, 1, 0)
		local removed = table.remove(t, 1)
		return table.concat(t, ","), removed
	`)
	if r[1].AsNumber() != 0 {
		t.Fatalf("got %v", r[1].AsNumber())
	}
}

func TestTableSortDefault(t *testing.T) {
	r := run(t, `
		local t = {3, 1, 2}
		table.sort(t)
		return t[1], t[2], t[3]
	`)
	if r[0].AsNumber() != 1 || r[1].AsNumber() != 2 || r[2].AsNumber() != 3 {
		t.Fatalf("got %v %v %v", r[0], r[1], r[2])
	}
}

func TestTableSortWithComparator(t *testing.T) {
	r := run(t, `
		local t = {1, 2, 3}
		table.sort(t, function(a, b) return a > b end)
		return t[1], t[2], t[3]
	`)
	if r[0].AsNumber() != 3 || r[1].AsNumber() != 2 || r[2].AsNumber() != 1 {
		t.Fatalf("got %v %v %v", r[0], r[1], r[2])
	}
}

func TestStringLenSubUpperLower(t *testing.T) {
	r := run(t, `
		return string.len("hello"), string.sub("hello", 2, 4), string.upper("hi"), string.lower("HI")
	`)
	if r[0].AsNumber() != 5 {
		t.Fatalf("len got %v", r[0].AsNumber())
	}
}

func TestStringRepReverse(t *testing.T) {
	r := run(t, `return string.rep("ab", 3), string.reverse("abc")`)
	_ = r
}

func TestStringByteChar(t *testing.T) {
	r := run(t, `return string.byte("A"), string.char(65, 66)`)
	if r[0].AsNumber() != 65 {
		t.Fatalf("got %v", r[0].AsNumber())
	}
}

func TestStringFormat(t *testing.T) {
	r := run(t, `return string.format("%d-%s-%5.2f", 3, "x", 1.5)`)
	if len(r) != 1 {
		t.Fatalf("expected one result")
	}
}

func TestStringFindPlain(t *testing.T) {
	r := run(t, `return string.find("hello world", "world")`)
	if r[0].AsNumber() != 7 || r[1].AsNumber() != 11 {
		t.Fatalf("got %v %v", r[0], r[1])
	}
}

func TestStringFindPattern(t *testing.T) {
	r := run(t, `return string.find("hello123world", "%d+")`)
	if r[0].AsNumber() != 6 || r[1].AsNumber() != 8 {
		t.Fatalf("got %v %v", r[0], r[1])
	}
}

func TestStringMatchCaptures(t *testing.T) {
	r := run(t, `return string.match("key=value", "(%a+)=(%a+)")`)
	if len(r) != 2 {
		t.Fatalf("expected 2 captures, got %d", len(r))
	}
}

func TestStringGmatchIteratesAllMatches(t *testing.T) {
	r := run(t, `
		local count = 0
		for word in string.gmatch("one two three", "%a+") do
			count = count + 1
		end
		return count
	`)
	if r[0].AsNumber() != 3 {
		t.Fatalf("got %v", r[0].AsNumber())
	}
}

func TestStringGsubReplacesAll(t *testing.T) {
	r := run(t, `return string.gsub("hello world", "o", "0")`)
	if r[1].AsNumber() != 2 {
		t.Fatalf("expected 2 substitutions, got %v", r[1].AsNumber())
	}
}

func TestStringGsubWithFunction(t *testing.T) {
	r := run(t, `
		return string.gsub("abc", "%a", function(c) return c .. c end)
	`)
	_ = r
}
