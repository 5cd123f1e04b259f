package heap

import (
	"testing"

	"github.com/iGentAI/ferrous/pkg/value"
)

func TestStringInterning(t *testing.T) {
	h := New()
	a := h.CreateString([]byte("hello"))
	b := h.CreateString([]byte("hello"))
	if a != b {
		t.Fatalf("equal-byte strings should share a handle: %v != %v", a, b)
	}
	c := h.CreateString([]byte("world"))
	if a == c {
		t.Fatalf("different-byte strings should not share a handle")
	}
}

func TestTableArrayAppendAndMigration(t *testing.T) {
	h := New()
	th := h.NewTable()
	if err := h.SetTableField(th, value.Int(1), value.Int(10)); err != nil {
		t.Fatal(err)
	}
	if err := h.SetTableField(th, value.Int(3), value.Int(30)); err != nil {
		t.Fatal(err)
	}
	if err := h.SetTableField(th, value.Int(2), value.Int(20)); err != nil {
		t.Fatal(err)
	}
	n, err := h.TableLen(th)
	if err != nil || n != 3 {
		t.Fatalf("expected len 3 after hash->array migration, got %d (%v)", n, err)
	}
	v, _ := h.GetTableField(th, value.Int(3))
	if v.AsNumber() != 30 {
		t.Fatalf("expected t[3]==30, got %v", v.GoString())
	}
}

func TestTableNonHashableKeySilentlyDropped(t *testing.T) {
	h := New()
	th := h.NewTable()
	other := value.TableFromHandle(h.NewTable())
	if err := h.SetTableField(th, other, value.Int(1)); err != nil {
		t.Fatal(err)
	}
	n, _ := h.TableLen(th)
	if n != 0 {
		t.Fatalf("table-keyed assignment should have been silently dropped, got len %d", n)
	}
}

func TestTableNextIteratesEmptyTable(t *testing.T) {
	h := New()
	th := h.NewTable()
	_, _, ok, err := h.TableNext(th, value.Nil)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatalf("next() on empty table should report no more entries")
	}
}

func TestUpvalueOpenCloseLifecycle(t *testing.T) {
	h := New()
	thread := h.MainThread()
	th, _ := h.GetThread(thread)
	th.EnsureStack(4)
	th.Stack[2] = value.Int(99)

	uh, err := h.FindOrCreateUpvalue(thread, 2)
	if err != nil {
		t.Fatal(err)
	}
	uv, _ := h.GetUpvalue(uh)
	if !uv.Open || uv.StackIndex != 2 {
		t.Fatalf("expected open upvalue at stack index 2, got %+v", uv)
	}

	// Same stack index should return the same upvalue (find, not create).
	uh2, _ := h.FindOrCreateUpvalue(thread, 2)
	if uh != uh2 {
		t.Fatalf("expected FindOrCreateUpvalue to return the existing upvalue")
	}

	if err := h.CloseThreadUpvalues(thread, 2); err != nil {
		t.Fatal(err)
	}
	uv, _ = h.GetUpvalue(uh)
	if uv.Open {
		t.Fatalf("expected upvalue to be closed")
	}
	if uv.Value.AsNumber() != 99 {
		t.Fatalf("expected closed upvalue to retain last stack value 99, got %v", uv.Value.GoString())
	}

	thAfter, _ := h.GetThread(thread)
	if len(thAfter.OpenUpvalues) != 0 {
		t.Fatalf("expected no open upvalues remaining, got %d", len(thAfter.OpenUpvalues))
	}
}
