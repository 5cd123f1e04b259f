package storage

import (
	"testing"
	"time"
)

func TestStringRoundTrip(t *testing.T) {
	m := NewMemory()
	if err := m.SetString("k", "v"); err != nil {
		t.Fatal(err)
	}
	v, ok, err := m.GetString("k")
	if err != nil || !ok || v != "v" {
		t.Fatalf("got %q %v %v", v, ok, err)
	}
}

func TestSetStringExpires(t *testing.T) {
	m := NewMemory()
	if err := m.SetStringEx("k", "v", time.Millisecond); err != nil {
		t.Fatal(err)
	}
	time.Sleep(5 * time.Millisecond)
	_, ok, err := m.GetString("k")
	if err != nil || ok {
		t.Fatalf("expected expired key to be gone, got ok=%v err=%v", ok, err)
	}
}

func TestIncrByCreatesAndParses(t *testing.T) {
	m := NewMemory()
	n, err := m.IncrBy("counter", 5)
	if err != nil || n != 5 {
		t.Fatalf("got %d %v", n, err)
	}
	n, err = m.Incr("counter")
	if err != nil || n != 6 {
		t.Fatalf("got %d %v", n, err)
	}
}

func TestIncrOnNonIntegerErrors(t *testing.T) {
	m := NewMemory()
	m.SetString("k", "not-a-number")
	if _, err := m.Incr("k"); err != ErrNotInteger {
		t.Fatalf("expected ErrNotInteger, got %v", err)
	}
}

func TestWrongTypeErrors(t *testing.T) {
	m := NewMemory()
	m.SetString("k", "v")
	if _, _, err := m.HGet("k", "f"); err != ErrWrongType {
		t.Fatalf("expected ErrWrongType, got %v", err)
	}
}

func TestHashSetGet(t *testing.T) {
	m := NewMemory()
	created, err := m.HSet("h", "f1", "v1")
	if err != nil || !created {
		t.Fatalf("got %v %v", created, err)
	}
	created, err = m.HSet("h", "f1", "v2")
	if err != nil || created {
		t.Fatalf("expected overwrite, created=%v", created)
	}
	v, ok, err := m.HGet("h", "f1")
	if err != nil || !ok || v != "v2" {
		t.Fatalf("got %q %v %v", v, ok, err)
	}
}

func TestListPushPop(t *testing.T) {
	m := NewMemory()
	n, err := m.RPush("l", "a", "b", "c")
	if err != nil || n != 3 {
		t.Fatalf("got %d %v", n, err)
	}
	n, _ = m.LPush("l", "z")
	if n != 4 {
		t.Fatalf("got %d", n)
	}
	v, ok, _ := m.LPop("l")
	if !ok || v != "z" {
		t.Fatalf("got %q %v", v, ok)
	}
	v, ok, _ = m.RPop("l")
	if !ok || v != "c" {
		t.Fatalf("got %q %v", v, ok)
	}
}

func TestListDeletesKeyWhenEmpty(t *testing.T) {
	m := NewMemory()
	m.RPush("l", "only")
	m.LPop("l")
	typ, err := m.KeyType("l")
	if err != nil || typ != TypeNone {
		t.Fatalf("expected key gone, got %v %v", typ, err)
	}
}

func TestSetOps(t *testing.T) {
	m := NewMemory()
	n, err := m.SAdd("s", "a", "b", "a")
	if err != nil || n != 2 {
		t.Fatalf("got %d %v", n, err)
	}
	ok, err := m.SIsMember("s", "a")
	if err != nil || !ok {
		t.Fatalf("got %v %v", ok, err)
	}
	card, _ := m.SCard("s")
	if card != 2 {
		t.Fatalf("got %d", card)
	}
	n, _ = m.SRem("s", "a")
	if n != 1 {
		t.Fatalf("got %d", n)
	}
}

func TestZSetOps(t *testing.T) {
	m := NewMemory()
	created, err := m.ZAdd("z", 1.5, "member")
	if err != nil || !created {
		t.Fatalf("got %v %v", created, err)
	}
	score, ok, err := m.ZScore("z", "member")
	if err != nil || !ok || score != 1.5 {
		t.Fatalf("got %v %v %v", score, ok, err)
	}
	card, _ := m.ZCard("z")
	if card != 1 {
		t.Fatalf("got %d", card)
	}
}

func TestKeysGlobPattern(t *testing.T) {
	m := NewMemory()
	m.SetString("user:1", "a")
	m.SetString("user:2", "b")
	m.SetString("other", "c")
	keys, err := m.Keys("user:*")
	if err != nil || len(keys) != 2 {
		t.Fatalf("got %v %v", keys, err)
	}
}

func TestExpireAndTTL(t *testing.T) {
	m := NewMemory()
	m.SetString("k", "v")
	ttl, ok, err := m.TTL("k")
	if err != nil || !ok || ttl != -1 {
		t.Fatalf("expected no TTL (-1), got %v %v %v", ttl, ok, err)
	}
	set, err := m.Expire("k", time.Hour)
	if err != nil || !set {
		t.Fatalf("got %v %v", set, err)
	}
	ttl, ok, err = m.TTL("k")
	if err != nil || !ok || ttl <= 0 {
		t.Fatalf("got %v %v %v", ttl, ok, err)
	}
}

func TestDeleteAndExists(t *testing.T) {
	m := NewMemory()
	m.SetString("a", "1")
	m.SetString("b", "2")
	n, err := m.Exists("a", "b", "c")
	if err != nil || n != 2 {
		t.Fatalf("got %d %v", n, err)
	}
	n, err = m.Delete("a", "c")
	if err != nil || n != 1 {
		t.Fatalf("got %d %v", n, err)
	}
}
