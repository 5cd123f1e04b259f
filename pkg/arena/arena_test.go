package arena

import "testing"

func TestInsertGetRemove(t *testing.T) {
	a := New[string](4)
	h := a.Insert("hello")
	v, ok := a.Get(h)
	if !ok || v != "hello" {
		t.Fatalf("Get(h) = %q, %v; want hello, true", v, ok)
	}
	if got, ok := a.Remove(h); !ok || got != "hello" {
		t.Fatalf("Remove(h) = %q, %v; want hello, true", got, ok)
	}
	if _, ok := a.Get(h); ok {
		t.Fatalf("Get after Remove should fail")
	}
}

func TestGenerationBumpOnReuse(t *testing.T) {
	a := New[int](1)
	h1 := a.Insert(1)
	a.Remove(h1)
	h2 := a.Insert(2)
	if h1.Index != h2.Index {
		t.Fatalf("expected slot reuse, got different indices %d vs %d", h1.Index, h2.Index)
	}
	if h1.Generation == h2.Generation {
		t.Fatalf("expected distinct generations, both were %d", h1.Generation)
	}
	if _, ok := a.Get(h1); ok {
		t.Fatalf("stale handle h1 should not resolve after reuse")
	}
	v, ok := a.Get(h2)
	if !ok || v != 2 {
		t.Fatalf("Get(h2) = %v, %v; want 2, true", v, ok)
	}
}

func TestContains(t *testing.T) {
	a := New[int](1)
	h := a.Insert(42)
	if !a.Contains(h) {
		t.Fatalf("expected Contains(h) to be true")
	}
	a.Remove(h)
	if a.Contains(h) {
		t.Fatalf("expected Contains(h) to be false after remove")
	}
}

func TestZeroHandleInvalid(t *testing.T) {
	var h Handle
	if h.Valid() {
		t.Fatalf("zero handle should not be valid")
	}
}
