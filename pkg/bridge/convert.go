// Package bridge implements the redis.call/pcall surface a running
// script sees (spec.md §4.11): argument marshalling into RESP frames,
// dispatching those frames against a storage.Engine, and converting
// results back in both directions between value.Value and resp.Frame.
//
// Grounded on postkeys' internal/handler/lua.go: luaToResp/respToLua/
// luaToString are the worked example for exactly these three
// conversions, ported from gopher-lua's lua.LValue to Ferrous's own
// value.Value/value.Runtime, and executeRedisCommand's command
// deny-list is carried over verbatim.
package bridge

import (
	"strconv"

	"github.com/iGentAI/ferrous/pkg/errors"
	"github.com/iGentAI/ferrous/pkg/resp"
	"github.com/iGentAI/ferrous/pkg/value"
)

func errValueKind(v value.Value) error {
	return &errors.TypeError{Expected: "nil, boolean, number, string or table", Got: v.Type().String()}
}

func errArgKind(v value.Value) error {
	return &errors.ArgError{FuncName: "redis.call", Position1: 0, Msg: "unsupported argument type " + v.Type().String()}
}

// ValueToResp converts a script's return value to a RESP frame per
// spec.md §4.11's Value->RESP table.
func ValueToResp(rt value.Runtime, v value.Value) (resp.Frame, error) {
	switch v.Type() {
	case value.TypeNil:
		return resp.NullBulk(), nil
	case value.TypeBool:
		if !v.AsBool() {
			return resp.NullBulk(), nil
		}
		return resp.Int(1), nil
	case value.TypeNumber:
		n := v.AsNumber()
		if i := int64(n); float64(i) == n {
			return resp.Int(i), nil
		}
		return resp.Bulk(formatNumber(n)), nil
	case value.TypeString:
		b, _ := rt.StringBytes(v)
		return resp.Bulk(string(b)), nil
	case value.TypeTable:
		return tableToResp(rt, v)
	default:
		return resp.Frame{}, errValueKind(v)
	}
}

func tableToResp(rt value.Runtime, t value.Value) (resp.Frame, error) {
	errField, err := rt.TableGet(t, stringValue(rt, "err"))
	if err != nil {
		return resp.Frame{}, err
	}
	if errField.Type() == value.TypeString {
		b, _ := rt.StringBytes(errField)
		return resp.ErrorReply(string(b)), nil
	}
	okField, err := rt.TableGet(t, stringValue(rt, "ok"))
	if err != nil {
		return resp.Frame{}, err
	}
	if okField.Type() == value.TypeString {
		b, _ := rt.StringBytes(okField)
		return resp.Frame{Type: resp.TypeSimpleString, Str: string(b)}, nil
	}

	var items []resp.Frame
	for i := 1; ; i++ {
		elem, err := rt.TableGet(t, value.Int(int64(i)))
		if err != nil {
			return resp.Frame{}, err
		}
		if elem.Type() == value.TypeNil {
			break
		}
		f, err := ValueToResp(rt, elem)
		if err != nil {
			return resp.Frame{}, err
		}
		items = append(items, f)
	}
	return resp.Arr(items...), nil
}

// RespToValue converts a storage-engine/command reply to a script
// value per spec.md §4.11's RESP->Value table.
func RespToValue(rt value.Runtime, f resp.Frame) value.Value {
	switch f.Type {
	case resp.TypeSimpleString, resp.TypeBulkString:
		if f.Null {
			return value.Bool(false)
		}
		return rt.NewString([]byte(f.Str))
	case resp.TypeError:
		t := rt.NewTable()
		rt.RawSet(t, stringValue(rt, "err"), rt.NewString([]byte(f.Str)))
		return t
	case resp.TypeInteger:
		return value.Int(f.Num)
	case resp.TypeNull:
		return value.Bool(false)
	case resp.TypeArray:
		if f.Null {
			return value.Bool(false)
		}
		t := rt.NewTable()
		for i, item := range f.Array {
			rt.RawSet(t, value.Int(int64(i+1)), RespToValue(rt, item))
		}
		return t
	default:
		return value.Bool(false)
	}
}

// MarshalArg converts one redis.call argument to its bulk-string wire
// form per spec.md §4.11's marshalling rules. The command name itself
// is handled by the caller (upper-cased separately).
func MarshalArg(rt value.Runtime, v value.Value) (string, error) {
	switch v.Type() {
	case value.TypeString:
		b, _ := rt.StringBytes(v)
		return string(b), nil
	case value.TypeNumber:
		return formatNumber(v.AsNumber()), nil
	case value.TypeBool:
		if v.AsBool() {
			return "1", nil
		}
		return "0", nil
	case value.TypeNil:
		return "", nil
	default:
		return "", errArgKind(v)
	}
}

func formatNumber(n float64) string {
	if i := int64(n); float64(i) == n {
		return strconv.FormatInt(i, 10)
	}
	return strconv.FormatFloat(n, 'f', -1, 64)
}

func stringValue(rt value.Runtime, s string) value.Value {
	return rt.NewString([]byte(s))
}
