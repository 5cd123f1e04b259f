// Package heap implements Ferrous's per-VM memory: one generational
// arena per heap-value kind (spec.md §4.2), a string-intern table, and
// the table/closure/upvalue/thread lifecycle operations the VM and
// compiler drive. There is no tracing collector — every heap value is
// reclaimed only when its owning arena slot is explicitly Removed (which
// Ferrous never needs to do mid-script, since a VM's heap lives for the
// VM's pooled lifetime) or when the whole Heap is discarded.
package heap

import (
	"sort"

	"github.com/iGentAI/ferrous/pkg/arena"
	ferrors "github.com/iGentAI/ferrous/pkg/errors"
	"github.com/iGentAI/ferrous/pkg/value"
)

// Heap owns one arena per kind plus the string-intern map.
type Heap struct {
	strings   *arena.Arena[stringObj]
	tables    *arena.Arena[*Table]
	closures  *arena.Arena[*Closure]
	upvalues  *arena.Arena[*Upvalue]
	threads   *arena.Arena[*Thread]
	protos    *arena.Arena[*FunctionProto]
	userdata  *arena.Arena[interface{}]

	intern map[string]arena.Handle // bytes -> StringHandle, for interning

	globals    arena.Handle // Table handle, created at init (spec.md §3)
	mainThread arena.Handle

	maxStringMemory int64 // 0 = unlimited
	stringMemUsed   int64
}

type stringObj struct {
	bytes []byte
	hash  uint64
}

// New creates a Heap with the globals table and main thread already
// installed, per spec.md §3 ("The globals table is created at heap init
// and referenced via a dedicated root").
func New() *Heap {
	h := &Heap{
		strings:  arena.New[stringObj](64),
		tables:   arena.New[*Table](32),
		closures: arena.New[*Closure](32),
		upvalues: arena.New[*Upvalue](32),
		threads:  arena.New[*Thread](2),
		protos:   arena.New[*FunctionProto](32),
		userdata: arena.New[interface{}](4),
		intern:   make(map[string]arena.Handle, 64),
	}
	h.globals = h.tables.Insert(newTable())
	h.mainThread = h.threads.Insert(newThread())
	return h
}

// SetMaxStringMemory bounds cumulative interned-string byte usage; 0
// disables the limit. The limit is only recorded: neither the Heap nor
// pkg/resource's Tracker compares StringMemUsed against it, so string
// allocation is not bounded.
func (h *Heap) SetMaxStringMemory(max int64) { h.maxStringMemory = max }
func (h *Heap) StringMemUsed() int64         { return h.stringMemUsed }

// Globals returns the handle of the VM-wide globals table.
func (h *Heap) Globals() arena.Handle { return h.globals }

// MainThread returns the handle of the heap's single thread.
func (h *Heap) MainThread() arena.Handle { return h.mainThread }

func fnv1a(b []byte) uint64 {
	const offset = 14695981039346656037
	const prime = 1099511628211
	hash := uint64(offset)
	for _, c := range b {
		hash ^= uint64(c)
		hash *= prime
	}
	return hash
}

// CreateString interns s: equal byte sequences return the same handle
// (spec.md §8 property 1), as long as the previously-returned handle is
// still valid — a caller that externally Removed a string handle (which
// Ferrous's own code never does) would cause it to be recreated.
func (h *Heap) CreateString(s []byte) arena.Handle {
	key := string(s) // Go string keys in a map are already content-hashed;
	// using the bytes as the map key directly gives us the "bytes ->
	// handle" intern table spec.md §4.2 asks for without a second hash.
	if existing, ok := h.intern[key]; ok {
		if h.strings.Contains(existing) {
			return existing
		}
		delete(h.intern, key)
	}
	cp := make([]byte, len(s))
	copy(cp, s)
	handle := h.strings.Insert(stringObj{bytes: cp, hash: fnv1a(cp)})
	h.intern[key] = handle
	h.stringMemUsed += int64(len(cp))
	return handle
}

// GetStringBytes resolves a string handle to its bytes.
func (h *Heap) GetStringBytes(hd arena.Handle) ([]byte, bool) {
	s, ok := h.strings.Get(hd)
	if !ok {
		return nil, false
	}
	return s.bytes, true
}

// NewTable allocates an empty table.
func (h *Heap) NewTable() arena.Handle {
	return h.tables.Insert(newTable())
}

// GetTable resolves a table handle.
func (h *Heap) GetTable(hd arena.Handle) (*Table, bool) {
	return h.tables.Get(hd)
}

// SetTableField implements spec.md §4.2's set_table_field: integer keys
// route to the array part (appending when n = len+1), otherwise the
// hashed map; non-hashable keys silently no-op.
func (h *Heap) SetTableField(hd arena.Handle, key, val value.Value) error {
	t, ok := h.tables.Get(hd)
	if !ok {
		return ferrors.NewInvalidHandle("SetTableField")
	}
	t.rawSet(key, val)
	return nil
}

// GetTableField reads t[key] without consulting a metatable (that lookup
// happens at the VM/bridge layer, which knows about __index chains).
func (h *Heap) GetTableField(hd arena.Handle, key value.Value) (value.Value, error) {
	t, ok := h.tables.Get(hd)
	if !ok {
		return value.Nil, ferrors.NewInvalidHandle("GetTableField")
	}
	return t.rawGet(key), nil
}

// TableLen returns the table's "#t" border (see Table.Len).
func (h *Heap) TableLen(hd arena.Handle) (int, error) {
	t, ok := h.tables.Get(hd)
	if !ok {
		return 0, ferrors.NewInvalidHandle("TableLen")
	}
	return t.Len(), nil
}

// TableNext implements spec.md §4.2's table_next: iterate all non-nil
// array slots in ascending order, then all hash-map entries in the
// stable order sortedHashKeys gives. Passing Nil as key starts iteration.
func (h *Heap) TableNext(hd arena.Handle, key value.Value) (k, v value.Value, ok bool, err error) {
	t, found := h.tables.Get(hd)
	if !found {
		return value.Nil, value.Nil, false, ferrors.NewInvalidHandle("TableNext")
	}
	hashKeys := h.sortedHashKeys(t)

	if key.IsNil() {
		if idx := nextArrayIndex(t, 0); idx >= 0 {
			return value.Int(int64(idx + 1)), t.Array[idx], true, nil
		}
		if len(hashKeys) > 0 {
			hk := hashKeys[0]
			return hk.Value(), t.Hash[hk], true, nil
		}
		return value.Nil, value.Nil, false, nil
	}

	hk, hashable := value.ToHashable(key)
	if hashable {
		if i, isInt := hk.AsInt(); isInt && i >= 1 && int(i) <= len(t.Array) {
			if idx := nextArrayIndex(t, int(i)); idx >= 0 {
				return value.Int(int64(idx + 1)), t.Array[idx], true, nil
			}
			if len(hashKeys) > 0 {
				return hashKeys[0].Value(), t.Hash[hashKeys[0]], true, nil
			}
			return value.Nil, value.Nil, false, nil
		}
		for i, cand := range hashKeys {
			if cand == hk {
				if i+1 < len(hashKeys) {
					nk := hashKeys[i+1]
					return nk.Value(), t.Hash[nk], true, nil
				}
				return value.Nil, value.Nil, false, nil
			}
		}
	}
	return value.Nil, value.Nil, false, &ferrors.RuntimeError{Msg: "invalid key to 'next'"}
}

func nextArrayIndex(t *Table, from int) int {
	for i := from; i < len(t.Array); i++ {
		if !t.Array[i].IsNil() {
			return i
		}
	}
	return -1
}

// sortedHashKeys gives TableNext a stable order within one call (Go map
// iteration order is randomized per-range, which would make repeated
// next() calls with the same table inconsistent mid-iteration).
func (h *Heap) sortedHashKeys(t *Table) []value.HashableValue {
	if len(t.Hash) == 0 {
		return nil
	}
	keys := make([]value.HashableValue, 0, len(t.Hash))
	for k := range t.Hash {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return hashKeyOrder(keys[i]) < hashKeyOrder(keys[j])
	})
	return keys
}

// hashKeyOrder gives any two HashableValues a total, stable order so
// sortedHashKeys is deterministic across calls for the same Table
// contents, matching spec.md §8 property 5's expectation that iteration
// is deterministic for a given table (scenario S5 relies on it for
// ipairs, which only touches the array part, but next()/pairs() over a
// hash part must still be stable within one un-mutated table).
func hashKeyOrder(h value.HashableValue) string {
	v := h.Value()
	return v.GoString()
}

// SetMetatable installs (or clears, if mt is the zero handle) a table's
// metatable.
func (h *Heap) SetMetatable(hd, mt arena.Handle) error {
	t, ok := h.tables.Get(hd)
	if !ok {
		return ferrors.NewInvalidHandle("SetMetatable")
	}
	t.Metatable = mt
	return nil
}

// GetMetatable returns the table's metatable handle and whether it has one.
func (h *Heap) GetMetatable(hd arena.Handle) (arena.Handle, bool) {
	t, ok := h.tables.Get(hd)
	if !ok || t.Metatable == (arena.Handle{}) {
		return arena.Handle{}, false
	}
	return t.Metatable, true
}

// NewClosure allocates a closure over proto with the given upvalues.
func (h *Heap) NewClosure(proto arena.Handle, upvalues []arena.Handle) arena.Handle {
	return h.closures.Insert(&Closure{Proto: proto, Upvalues: upvalues})
}

func (h *Heap) GetClosure(hd arena.Handle) (*Closure, bool) { return h.closures.Get(hd) }

// NewProto stores a compiled FunctionProto.
func (h *Heap) NewProto(p *FunctionProto) arena.Handle { return h.protos.Insert(p) }

func (h *Heap) GetProto(hd arena.Handle) (*FunctionProto, bool) { return h.protos.Get(hd) }

// NewThread allocates an additional thread (unused by the core EVAL path
// — coroutines are a Non-goal — but kept so the Thread/arena design is
// exercised symmetrically with every other heap kind, and so a future
// coroutine library has somewhere to allocate from without a heap
// redesign).
func (h *Heap) NewThread() arena.Handle { return h.threads.Insert(newThread()) }

func (h *Heap) GetThread(hd arena.Handle) (*Thread, bool) { return h.threads.Get(hd) }

// NewUserData wraps an arbitrary Go value as Lua userdata.
func (h *Heap) NewUserData(v interface{}) arena.Handle { return h.userdata.Insert(v) }

func (h *Heap) GetUserData(hd arena.Handle) (interface{}, bool) { return h.userdata.Get(hd) }

// FindOrCreateUpvalue implements spec.md §4.2 exactly: scan the thread's
// open upvalues for one already referencing stackIndex; otherwise create
// one and insert it keeping the open-upvalue list sorted by descending
// stack index (spec.md §3's lifecycle invariant).
func (h *Heap) FindOrCreateUpvalue(threadHd arena.Handle, stackIndex int) (arena.Handle, error) {
	th, ok := h.threads.Get(threadHd)
	if !ok {
		return arena.Handle{}, ferrors.NewInvalidHandle("FindOrCreateUpvalue")
	}
	for _, uh := range th.OpenUpvalues {
		uv, ok := h.upvalues.Get(uh)
		if ok && uv.Open && uv.StackIndex == stackIndex {
			return uh, nil
		}
	}
	uh := h.upvalues.Insert(&Upvalue{Open: true, StackIndex: stackIndex})
	insertAt := sort.Search(len(th.OpenUpvalues), func(i int) bool {
		uv, _ := h.upvalues.Get(th.OpenUpvalues[i])
		return uv.StackIndex <= stackIndex
	})
	th.OpenUpvalues = append(th.OpenUpvalues, arena.Handle{})
	copy(th.OpenUpvalues[insertAt+1:], th.OpenUpvalues[insertAt:])
	th.OpenUpvalues[insertAt] = uh
	return uh, nil
}

// CloseThreadUpvalues implements spec.md §4.2/§4.7's Close semantics:
// every open upvalue with StackIndex >= threshold is closed (its current
// stack value copied off and StackIndex cleared) and removed from the
// thread's open list.
func (h *Heap) CloseThreadUpvalues(threadHd arena.Handle, threshold int) error {
	th, ok := h.threads.Get(threadHd)
	if !ok {
		return ferrors.NewInvalidHandle("CloseThreadUpvalues")
	}
	kept := th.OpenUpvalues[:0:0]
	for _, uh := range th.OpenUpvalues {
		uv, ok := h.upvalues.Get(uh)
		if !ok {
			continue
		}
		if uv.StackIndex >= threshold {
			if uv.StackIndex < len(th.Stack) {
				uv.Value = th.Stack[uv.StackIndex]
			}
			uv.Open = false
			uv.StackIndex = 0
			continue
		}
		kept = append(kept, uh)
	}
	th.OpenUpvalues = kept
	return nil
}

func (h *Heap) GetUpvalue(hd arena.Handle) (*Upvalue, bool) { return h.upvalues.Get(hd) }
