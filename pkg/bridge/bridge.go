package bridge

import (
	"crypto/sha1"
	"encoding/hex"
	"strings"

	"github.com/iGentAI/ferrous/pkg/arena"
	"github.com/iGentAI/ferrous/pkg/errors"
	"github.com/iGentAI/ferrous/pkg/heap"
	"github.com/iGentAI/ferrous/pkg/resp"
	"github.com/iGentAI/ferrous/pkg/storage"
	"github.com/iGentAI/ferrous/pkg/value"
)

// deniedCommands mirrors postkeys' executeRedisCommand deny-list:
// pub/sub, transactions, and script commands are not reachable from
// inside a script, since none of those make sense nested inside an
// already-serialized, already-atomic script execution.
var deniedCommands = map[string]bool{
	"SUBSCRIBE": true, "PSUBSCRIBE": true, "UNSUBSCRIBE": true, "PUNSUBSCRIBE": true, "PUBLISH": true,
	"MULTI": true, "EXEC": true, "DISCARD": true, "WATCH": true, "UNWATCH": true,
	"EVAL": true, "EVALSHA": true, "SCRIPT": true,
}

// Bridge binds one storage.Engine to the redis.call/pcall surface.
// pkg/executor constructs a fresh Bridge for every script invocation
// (the underlying storage.Engine is long-lived; the Bridge value
// wrapping it is not) and calls Install before running the script.
type Bridge struct {
	Storage storage.Engine
	Logf    func(level, msg string) // nil is fine; redis.log becomes a no-op
}

// Install registers the redis table plus 1-indexed KEYS/ARGV string
// tables as globals on h, per spec.md §4.11/§4.10. Re-run on every
// invocation so a script cannot leak state through these globals into
// the next run sharing the same pooled VM.
func (b *Bridge) Install(h *heap.Heap, keys, argv []string) error {
	redisTable := h.NewTable()
	setGlobalTable(h, "redis", redisTable)

	setField(h, redisTable, "call", b.redisCall)
	setField(h, redisTable, "pcall", b.redisPCall)
	setField(h, redisTable, "error_reply", redisErrorReply)
	setField(h, redisTable, "status_reply", redisStatusReply)
	setField(h, redisTable, "log", b.redisLog)
	setField(h, redisTable, "sha1hex", redisSha1Hex)

	if err := installStringArray(h, "KEYS", keys); err != nil {
		return err
	}
	return installStringArray(h, "ARGV", argv)
}

func installStringArray(h *heap.Heap, name string, items []string) error {
	t := h.NewTable()
	for i, s := range items {
		if err := h.SetTableField(t, value.Int(int64(i+1)), value.StringFromHandle(h.CreateString([]byte(s)))); err != nil {
			return err
		}
	}
	setGlobalTable(h, name, t)
	return nil
}

func setGlobalTable(h *heap.Heap, name string, t arena.Handle) {
	h.SetTableField(h.Globals(), value.StringFromHandle(h.CreateString([]byte(name))), value.TableFromHandle(t))
}

func setField(h *heap.Heap, tbl arena.Handle, name string, fn value.NativeFn) {
	h.SetTableField(tbl, value.StringFromHandle(h.CreateString([]byte(name))), value.CFunction(name, fn))
}

// redisCall implements redis.call: raises on a Redis-level error.
func (b *Bridge) redisCall(rt value.Runtime, args []value.Value) ([]value.Value, error) {
	frame, err := b.dispatch(rt, args)
	if err != nil {
		return nil, err
	}
	if frame.Type == resp.TypeError {
		return nil, &errors.RuntimeError{Msg: frame.Str}
	}
	return []value.Value{RespToValue(rt, frame)}, nil
}

// redisPCall implements redis.pcall: converts a Redis-level error into
// a {err = msg} table rather than raising.
func (b *Bridge) redisPCall(rt value.Runtime, args []value.Value) ([]value.Value, error) {
	frame, err := b.dispatch(rt, args)
	if err != nil {
		return nil, err
	}
	return []value.Value{RespToValue(rt, frame)}, nil
}

// dispatch marshals args into a command name plus bulk-string
// arguments and runs it against b.Storage, returning the RESP frame
// (which may itself be a TypeError frame for redis.pcall to inspect).
func (b *Bridge) dispatch(rt value.Runtime, args []value.Value) (resp.Frame, error) {
	if len(args) == 0 {
		return resp.Frame{}, &errors.ArgError{FuncName: "redis.call", Position1: 1, Msg: "command name required"}
	}
	if args[0].Type() != value.TypeString {
		return resp.Frame{}, &errors.ArgError{FuncName: "redis.call", Position1: 1, Msg: "command name must be a string"}
	}
	nameBytes, _ := rt.StringBytes(args[0])
	cmd := strings.ToUpper(string(nameBytes))

	if deniedCommands[cmd] {
		return resp.ErrorReply("ERR This Redis command is not allowed from a script"), nil
	}

	argv := make([]string, 0, len(args)-1)
	for i, a := range args[1:] {
		s, err := MarshalArg(rt, a)
		if err != nil {
			return resp.Frame{}, &errors.ArgError{FuncName: "redis.call", Position1: i + 2, Msg: err.Error()}
		}
		argv = append(argv, s)
	}

	return Dispatch(b.Storage, cmd, argv), nil
}

func redisErrorReply(rt value.Runtime, args []value.Value) ([]value.Value, error) {
	msg, err := argString(rt, args, 0, "redis.error_reply")
	if err != nil {
		return nil, err
	}
	t := rt.NewTable()
	rt.RawSet(t, stringValue(rt, "err"), rt.NewString([]byte(msg)))
	return []value.Value{t}, nil
}

func redisStatusReply(rt value.Runtime, args []value.Value) ([]value.Value, error) {
	msg, err := argString(rt, args, 0, "redis.status_reply")
	if err != nil {
		return nil, err
	}
	t := rt.NewTable()
	rt.RawSet(t, stringValue(rt, "ok"), rt.NewString([]byte(msg)))
	return []value.Value{t}, nil
}

func (b *Bridge) redisLog(rt value.Runtime, args []value.Value) ([]value.Value, error) {
	if b.Logf == nil || len(args) < 2 {
		return nil, nil
	}
	level, _ := argString(rt, args, 0, "redis.log")
	msg, _ := argString(rt, args, 1, "redis.log")
	b.Logf(level, msg)
	return nil, nil
}

func redisSha1Hex(rt value.Runtime, args []value.Value) ([]value.Value, error) {
	s, err := argString(rt, args, 0, "redis.sha1hex")
	if err != nil {
		return nil, err
	}
	sum := sha1.Sum([]byte(s))
	return []value.Value{rt.NewString([]byte(hex.EncodeToString(sum[:])))}, nil
}

func argString(rt value.Runtime, args []value.Value, i int, fn string) (string, error) {
	if i >= len(args) {
		return "", &errors.ArgError{FuncName: fn, Position1: i + 1, Msg: "string expected, got no value"}
	}
	b, ok := rt.StringBytes(args[i])
	if !ok {
		return "", &errors.ArgError{FuncName: fn, Position1: i + 1, Msg: "string expected"}
	}
	return string(b), nil
}
