package executor

import (
	"testing"
	"time"

	"github.com/iGentAI/ferrous/pkg/resource"
	"github.com/iGentAI/ferrous/pkg/resp"
	"github.com/iGentAI/ferrous/pkg/storage"
)

func newTestExecutor() *Executor {
	eng := storage.NewMemory()
	limits := resource.Limits{MaxInstructions: 1_000_000, MaxCallDepth: 64, Timeout: time.Second, CheckInterval: 100}
	return New(eng, limits, 2, nil)
}

func TestEvalReturnsConvertedValue(t *testing.T) {
	e := newTestExecutor()
	frame := e.Eval(`return 1 + 1`, nil, nil)
	if frame.Type != resp.TypeInteger || frame.Num != 2 {
		t.Fatalf("got %+v", frame)
	}
}

func TestEvalCachesByScriptBody(t *testing.T) {
	e := newTestExecutor()
	e.Eval(`return 1`, nil, nil)
	if e.cache.Len() != 1 {
		t.Fatalf("expected 1 cache entry, got %d", e.cache.Len())
	}
	e.Eval(`return 1`, nil, nil)
	if e.cache.Len() != 1 {
		t.Fatalf("expected cache reuse, got %d entries", e.cache.Len())
	}
}

func TestEvalShaRoundTrip(t *testing.T) {
	e := newTestExecutor()
	cs, err := e.Load(`return ARGV[1]`)
	if err != nil {
		t.Fatal(err)
	}
	if !e.Exists(cs.SHA) {
		t.Fatal("expected script to be cached after Load")
	}
	frame := e.EvalSHA(cs.SHA, nil, []string{"hello"})
	if frame.Type != resp.TypeBulkString || frame.Str != "hello" {
		t.Fatalf("got %+v", frame)
	}
}

func TestEvalShaMissingReturnsNoScript(t *testing.T) {
	e := newTestExecutor()
	frame := e.EvalSHA("0000000000000000000000000000000000000000", nil, nil)
	if frame.Type != resp.TypeError {
		t.Fatalf("expected error frame, got %+v", frame)
	}
}

func TestEvalSyntaxErrorReturnsErrorFrame(t *testing.T) {
	e := newTestExecutor()
	frame := e.Eval(`return (`, nil, nil)
	if frame.Type != resp.TypeError {
		t.Fatalf("expected error frame, got %+v", frame)
	}
}

func TestFlushClearsCache(t *testing.T) {
	e := newTestExecutor()
	cs, _ := e.Load(`return 1`)
	e.Flush()
	if e.Exists(cs.SHA) {
		t.Fatal("expected Flush to drop cached scripts")
	}
}

func TestScriptWritesThenReadsOwnKey(t *testing.T) {
	e := newTestExecutor()
	frame := e.Eval(`
		redis.call("SET", KEYS[1], ARGV[1])
		return redis.call("GET", KEYS[1])
	`, []string{"k"}, []string{"v"})
	if frame.Type != resp.TypeBulkString || frame.Str != "v" {
		t.Fatalf("got %+v", frame)
	}
}

func TestKillWithNoRunningScriptReturnsFalse(t *testing.T) {
	e := newTestExecutor()
	if e.Kill() {
		t.Fatal("expected Kill to report false with nothing running")
	}
}

func TestRuntimeErrorBecomesErrorFrame(t *testing.T) {
	e := newTestExecutor()
	frame := e.Eval(`error("boom")`, nil, nil)
	if frame.Type != resp.TypeError {
		t.Fatalf("expected error frame, got %+v", frame)
	}
}

func TestInstructionLimitAborts(t *testing.T) {
	eng := storage.NewMemory()
	limits := resource.Limits{MaxInstructions: 50, CheckInterval: 1}
	e := New(eng, limits, 1, nil)
	frame := e.Eval(`local i = 0 while true do i = i + 1 end`, nil, nil)
	if frame.Type != resp.TypeError {
		t.Fatalf("expected error frame from instruction budget, got %+v", frame)
	}
}
