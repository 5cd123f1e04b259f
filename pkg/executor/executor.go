// Package executor implements Ferrous's script cache and VM pool
// (spec.md §4.10): load/exists/flush/eval/evalsha/execute_compiled,
// kill semantics, and the process-wide script mutex that serializes
// every script execution against the data set.
//
// Grounded on postkeys' internal/handler/lua.go: ScriptCache is the
// worked example for the SHA1-keyed cache's public surface, generalized
// here from "cache of source strings" to "cache of parsed chunks", since
// Ferrous compiles its own bytecode onto a caller-supplied heap rather
// than handing source text to an embedded interpreter.
package executor

import (
	"crypto/sha1"
	"encoding/hex"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/iGentAI/ferrous/pkg/ast"
	"github.com/iGentAI/ferrous/pkg/bridge"
	"github.com/iGentAI/ferrous/pkg/compiler"
	"github.com/iGentAI/ferrous/pkg/errors"
	"github.com/iGentAI/ferrous/pkg/heap"
	"github.com/iGentAI/ferrous/pkg/metrics"
	"github.com/iGentAI/ferrous/pkg/parser"
	"github.com/iGentAI/ferrous/pkg/resource"
	"github.com/iGentAI/ferrous/pkg/resp"
	"github.com/iGentAI/ferrous/pkg/stdlib"
	"github.com/iGentAI/ferrous/pkg/storage"
	"github.com/iGentAI/ferrous/pkg/value"
	"github.com/iGentAI/ferrous/pkg/vm"
)

const defaultCacheSize = 10000

// CompiledScript is a cache entry: the parsed AST plus its identity.
// Lexing and parsing happen once per distinct script body; turning the
// AST into bytecode happens fresh on every run, against whichever
// pooled heap the run lands on (an arena.Handle is only meaningful
// relative to the heap that produced it, and pooled heaps are not
// shared across pool slots -- see scriptHeap below).
type CompiledScript struct {
	Source string
	SHA    string
	Chunk  *ast.Chunk
}

// scriptHeap is one VM pool slot. opened guards against re-running
// stdlib.Open on a heap whose globals already carry the base/string/
// table libraries from a prior invocation.
type scriptHeap struct {
	h      *heap.Heap
	opened bool
}

// Executor owns the script cache, the pool of heaps scripts run
// against, and the single in-flight-script mutex spec.md §5 requires.
type Executor struct {
	storage storage.Engine
	limits  resource.Limits
	log     *zap.SugaredLogger

	cache *lru.Cache[string, *CompiledScript]

	runMu sync.Mutex // serializes eval/evalsha/execute_compiled server-wide
	pool  chan *scriptHeap

	stateMu        sync.Mutex
	currentTracker *resource.Tracker
	currentDirty   *atomic.Bool
}

// New builds an Executor. poolSize bounds concurrently-retained heaps
// (spec.md §4.10: bounded at 8); log may be nil, in which case script
// log lines and error logs are discarded.
func New(eng storage.Engine, limits resource.Limits, poolSize int, log *zap.SugaredLogger) *Executor {
	if poolSize <= 0 {
		poolSize = 8
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	cache, _ := lru.New[string, *CompiledScript](defaultCacheSize)
	return &Executor{
		storage: eng,
		limits:  limits,
		log:     log,
		cache:   cache,
		pool:    make(chan *scriptHeap, poolSize),
	}
}

func sha1Hex(s string) string {
	sum := sha1.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

// Load parses source if it isn't already cached and returns its entry,
// keyed by its SHA1. Compile failures surface as *errors.SyntaxError
// (lexer/parser) unchanged.
func (e *Executor) Load(source string) (*CompiledScript, error) {
	sha := sha1Hex(source)
	if cs, ok := e.cache.Get(sha); ok {
		metrics.CacheHits.Inc()
		return cs, nil
	}
	metrics.CacheMisses.Inc()

	chunk, err := parser.Parse(source, "eval")
	if err != nil {
		return nil, err
	}
	cs := &CompiledScript{Source: source, SHA: sha, Chunk: chunk}
	e.cache.Add(sha, cs)
	return cs, nil
}

// Exists reports whether sha names a cached script.
func (e *Executor) Exists(sha string) bool {
	_, ok := e.cache.Get(strings.ToLower(sha))
	return ok
}

// Flush drops every cached script.
func (e *Executor) Flush() {
	e.cache.Purge()
}

// Eval loads source (caching it, same as SCRIPT LOAD) and runs it.
func (e *Executor) Eval(source string, keys, argv []string) resp.Frame {
	cs, err := e.Load(source)
	if err != nil {
		return resp.ErrorReply("ERR Error compiling script: " + err.Error())
	}
	return e.ExecuteCompiled(cs, keys, argv)
}

// EvalSHA runs a previously-loaded script by SHA1, failing with
// NOSCRIPT if it is not cached.
func (e *Executor) EvalSHA(sha string, keys, argv []string) resp.Frame {
	cs, ok := e.cache.Get(strings.ToLower(sha))
	if !ok {
		return resp.ErrorReply((&errors.NoScriptError{SHA: sha}).Error())
	}
	return e.ExecuteCompiled(cs, keys, argv)
}

// ExecuteCompiled runs cs against an acquired pool heap, bracketed by
// the resource tracker and the redis/KEYS/ARGV bridge installation,
// per spec.md §4.10's "execute_compiled" steps.
func (e *Executor) ExecuteCompiled(cs *CompiledScript, keys, argv []string) resp.Frame {
	e.runMu.Lock()
	defer e.runMu.Unlock()

	sh := e.acquireHeap()
	defer e.releaseHeap(sh)

	if !sh.opened {
		if err := stdlib.Open(sh.h); err != nil {
			return resp.ErrorReply("ERR " + err.Error())
		}
		sh.opened = true
	}

	dirty := &atomic.Bool{}
	eng := &dirtyEngine{Engine: e.storage, dirty: dirty}
	br := &bridge.Bridge{Storage: eng, Logf: e.scriptLog}
	if err := br.Install(sh.h, keys, argv); err != nil {
		return resp.ErrorReply("ERR " + err.Error())
	}

	proto, err := compiler.Compile(sh.h, cs.Chunk, cs.SHA)
	if err != nil {
		e.log.Warnw("script compile failed", "sha", cs.SHA, "error", err)
		return resp.ErrorReply("ERR Error compiling script: " + err.Error())
	}

	tracker := resource.New(e.limits)
	e.setRunning(tracker, dirty)
	defer e.clearRunning()

	m := vm.New(sh.h, tracker)
	start := time.Now()
	results, err := m.CallProto(proto, nil)
	elapsed := time.Since(start)

	if err != nil {
		outcome := outcomeFor(err)
		metrics.RecordEval(outcome, elapsed, uint64(tracker.Instructions()))
		e.log.Infow("script execution failed", "sha", cs.SHA, "outcome", outcome, "error", err)
		return errToFrame(err)
	}

	top := value.Nil
	if len(results) > 0 {
		top = results[0]
	}
	frame, err := bridge.ValueToResp(m, top)
	if err != nil {
		metrics.RecordEval("convert_error", elapsed, uint64(tracker.Instructions()))
		return resp.ErrorReply("ERR " + err.Error())
	}
	metrics.RecordEval("ok", elapsed, uint64(tracker.Instructions()))
	return frame
}

// Kill requests that the in-flight script abort at its next check-in.
// Per spec.md §5, a script that has already written is not killable;
// Kill reports false in that case without raising anything.
func (e *Executor) Kill() bool {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()
	if e.currentTracker == nil {
		return false
	}
	if e.currentDirty != nil && e.currentDirty.Load() {
		return false
	}
	e.currentTracker.Kill()
	metrics.ScriptKillsTotal.Inc()
	return true
}

func (e *Executor) setRunning(t *resource.Tracker, dirty *atomic.Bool) {
	e.stateMu.Lock()
	e.currentTracker = t
	e.currentDirty = dirty
	e.stateMu.Unlock()
}

func (e *Executor) clearRunning() {
	e.stateMu.Lock()
	e.currentTracker = nil
	e.currentDirty = nil
	e.stateMu.Unlock()
}

func (e *Executor) scriptLog(level, msg string) {
	e.log.Infow("redis.log", "level", level, "msg", msg)
}

func (e *Executor) acquireHeap() *scriptHeap {
	select {
	case sh := <-e.pool:
		return sh
	default:
		return &scriptHeap{h: heap.New()}
	}
}

func (e *Executor) releaseHeap(sh *scriptHeap) {
	select {
	case e.pool <- sh:
	default:
		// pool at capacity; let this heap and its interned strings be
		// collected rather than blocking the caller.
	}
}

func outcomeFor(err error) string {
	switch err.(type) {
	case *errors.Aborted:
		return "killed"
	case *errors.ResourceLimitError:
		return "resource_limit"
	case *errors.RuntimeError:
		return "runtime_error"
	default:
		return "error"
	}
}

func errToFrame(err error) resp.Frame {
	if rt, ok := err.(*errors.RuntimeError); ok {
		return resp.ErrorReply(rt.Msg)
	}
	return resp.ErrorReply("ERR " + err.Error())
}
