package bridge

import (
	"testing"

	"github.com/iGentAI/ferrous/pkg/compiler"
	"github.com/iGentAI/ferrous/pkg/heap"
	"github.com/iGentAI/ferrous/pkg/parser"
	"github.com/iGentAI/ferrous/pkg/stdlib"
	"github.com/iGentAI/ferrous/pkg/storage"
	"github.com/iGentAI/ferrous/pkg/value"
	"github.com/iGentAI/ferrous/pkg/vm"
)

func run(t *testing.T, eng storage.Engine, keys, argv []string, src string) []value.Value {
	t.Helper()
	h := heap.New()
	if err := stdlib.Open(h); err != nil {
		t.Fatalf("stdlib.Open: %v", err)
	}
	b := &Bridge{Storage: eng}
	if err := b.Install(h, keys, argv); err != nil {
		t.Fatalf("Install: %v", err)
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

func TestRedisCallSetThenGet(t *testing.T) {
	eng := storage.NewMemory()
	keys := []string{"foo"}
	argv := []string{"bar"}
	r := run(t, eng, keys, argv, `
		redis.call("SET", KEYS[1], ARGV[1])
		return redis.call("GET", KEYS[1])
	`)
	if len(r) != 1 {
		t.Fatalf("got %d results", len(r))
	}
	if r[0].Type() != value.TypeString {
		t.Fatalf("expected string reply, got %v", r[0].Type())
	}
}

func TestRedisCallRaisesOnError(t *testing.T) {
	eng := storage.NewMemory()
	eng.LPush("alist", "x")
	h := heap.New()
	if err := stdlib.Open(h); err != nil {
		t.Fatalf("stdlib.Open: %v", err)
	}
	b := &Bridge{Storage: eng}
	if err := b.Install(h, []string{"alist"}, nil); err != nil {
		t.Fatalf("Install: %v", err)
	}
	chunk, err := parser.Parse(`return redis.call("GET", KEYS[1])`, "test")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	proto, err := compiler.Compile(h, chunk, "test")
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	m := vm.New(h, nil)
	_, err = m.CallProto(proto, nil)
	if err == nil {
		t.Fatal("expected redis.call on wrong-type key to raise")
	}
}

func TestRedisPCallReturnsErrTable(t *testing.T) {
	eng := storage.NewMemory()
	eng.LPush("alist", "x")
	r := run(t, eng, []string{"alist"}, nil, `
		local reply = redis.pcall("GET", KEYS[1])
		return reply.err ~= nil
	`)
	if !r[0].Truthy() {
		t.Fatal("expected pcall to surface an err field for a wrong-type GET")
	}
}

func TestRedisCallDeniesSubscribe(t *testing.T) {
	eng := storage.NewMemory()
	r := run(t, eng, nil, nil, `
		local reply = redis.pcall("SUBSCRIBE", "channel")
		return reply.err ~= nil
	`)
	if !r[0].Truthy() {
		t.Fatal("expected SUBSCRIBE to be denied from a script")
	}
}

func TestRedisSha1Hex(t *testing.T) {
	eng := storage.NewMemory()
	r := run(t, eng, nil, nil, `return redis.sha1hex("")`)
	if r[0].Type() != value.TypeString {
		t.Fatalf("expected string, got %v", r[0].Type())
	}
}

func TestKeysArgvInjection(t *testing.T) {
	eng := storage.NewMemory()
	r := run(t, eng, []string{"k1", "k2"}, []string{"v1"}, `
		return KEYS[1], KEYS[2], ARGV[1], ARGV[2]
	`)
	if len(r) != 4 {
		t.Fatalf("got %d results", len(r))
	}
	if r[3].Type() != value.TypeNil {
		t.Fatalf("expected ARGV[2] to be nil, got %v", r[3].Type())
	}
}
