// Package resp defines the RESP frame type the script executor converts
// Lua return values into (spec.md §4.11/§6.2) and the thin TCP front end
// (pkg/server) writes to a client connection.
//
// Grounded on mnorrsken's internal/resp.Value: a single tagged struct
// rather than one Go type per RESP variant, which keeps the Value<->RESP
// bridge conversion (pkg/bridge) a single recursive function instead of
// a type switch fanning out over nine concrete types. This package does
// NOT implement wire framing (parsing bytes off a socket) -- that's
// explicitly out of scope per spec.md -- but does provide WriteTo, since
// a frame type nothing can serialize would not be usable by pkg/server.
package resp

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
)

// Type tags which RESP variant a Frame holds.
type Type byte

const (
	TypeNull Type = iota
	TypeSimpleString
	TypeError
	TypeInteger
	TypeBulkString
	TypeArray
	TypeBoolean
	TypeDouble
	TypeMap
	TypeSet
)

// Frame is a RESP value: spec.md §6.2's "Null | SimpleString(bytes) |
// Error(bytes) | Integer(i64) | BulkString(Option<bytes>) |
// Array(Option<Vec<Frame>>) | Boolean(bool) | Double(f64) | Map | Set".
type Frame struct {
	Type    Type
	Str     string  // SimpleString, Error, BulkString (when not Null)
	Num     int64   // Integer
	Dbl     float64 // Double
	Bool    bool    // Boolean
	Null    bool    // BulkString/Array: true means RESP null, Str/Array unused
	Array   []Frame // Array
	MapKeys []Frame // Map/Set: parallel MapKeys[i] -> MapVals[i]; Set only uses MapKeys
	MapVals []Frame
}

// OK returns the canonical "+OK" simple-string reply.
func OK() Frame { return Frame{Type: TypeSimpleString, Str: "OK"} }

// ErrorReply builds an Error frame carrying msg verbatim (callers are
// expected to prefix it with the RESP error-kind word, e.g. "ERR", "
// WRONGTYPE", "NOSCRIPT" -- spec.md §7).
func ErrorReply(msg string) Frame { return Frame{Type: TypeError, Str: msg} }

// NullBulk returns a null bulk string ("$-1\r\n"), the reply Redis uses
// for a missing key.
func NullBulk() Frame { return Frame{Type: TypeBulkString, Null: true} }

// NullArray returns a null array ("*-1\r\n").
func NullArray() Frame { return Frame{Type: TypeArray, Null: true} }

// Bulk builds a non-null bulk string frame.
func Bulk(s string) Frame { return Frame{Type: TypeBulkString, Str: s} }

// Int builds an Integer frame.
func Int(n int64) Frame { return Frame{Type: TypeInteger, Num: n} }

// Arr builds a non-null Array frame.
func Arr(items ...Frame) Frame { return Frame{Type: TypeArray, Array: items} }

// FromBytes is a convenience constructor for a bulk string frame from
// raw bytes (redis.call's argument path works in []byte, not string).
func FromBytes(b []byte) Frame { return Bulk(string(b)) }

// WriteTo serializes f as wire-format RESP2 bytes (RESP3-only types --
// Boolean, Double, Map, Set -- are written using their RESP2-compatible
// encodings, since spec.md scopes the protocol handshake/RESP3 push out)
// to w.
func (f Frame) WriteTo(w io.Writer) (int64, error) {
	bw := bufio.NewWriter(w)
	n, err := f.writeTo(bw)
	if err != nil {
		return n, err
	}
	return n, bw.Flush()
}

func (f Frame) writeTo(w *bufio.Writer) (int64, error) {
	var written int64
	write := func(s string) error {
		n, err := w.WriteString(s)
		written += int64(n)
		return err
	}
	switch f.Type {
	case TypeNull:
		return written, write("$-1\r\n")
	case TypeSimpleString:
		return written, write("+" + f.Str + "\r\n")
	case TypeError:
		return written, write("-" + f.Str + "\r\n")
	case TypeInteger:
		return written, write(":" + strconv.FormatInt(f.Num, 10) + "\r\n")
	case TypeBoolean:
		if f.Bool {
			return written, write(":1\r\n")
		}
		return written, write(":0\r\n")
	case TypeDouble:
		return written, write("$" + strconv.Itoa(len(strconv.FormatFloat(f.Dbl, 'g', -1, 64))) + "\r\n" + strconv.FormatFloat(f.Dbl, 'g', -1, 64) + "\r\n")
	case TypeBulkString:
		if f.Null {
			return written, write("$-1\r\n")
		}
		return written, write("$" + strconv.Itoa(len(f.Str)) + "\r\n" + f.Str + "\r\n")
	case TypeArray:
		if f.Null {
			return written, write("*-1\r\n")
		}
		if err := write("*" + strconv.Itoa(len(f.Array)) + "\r\n"); err != nil {
			return written, err
		}
		for _, item := range f.Array {
			n, err := item.writeTo(w)
			written += n
			if err != nil {
				return written, err
			}
		}
		return written, nil
	case TypeMap:
		if err := write("*" + strconv.Itoa(len(f.MapKeys)*2) + "\r\n"); err != nil {
			return written, err
		}
		for i := range f.MapKeys {
			n, err := f.MapKeys[i].writeTo(w)
			written += n
			if err != nil {
				return written, err
			}
			n, err = f.MapVals[i].writeTo(w)
			written += n
			if err != nil {
				return written, err
			}
		}
		return written, nil
	case TypeSet:
		if err := write("*" + strconv.Itoa(len(f.MapKeys)) + "\r\n"); err != nil {
			return written, err
		}
		for _, item := range f.MapKeys {
			n, err := item.writeTo(w)
			written += n
			if err != nil {
				return written, err
			}
		}
		return written, nil
	default:
		return written, fmt.Errorf("resp: unknown frame type %d", f.Type)
	}
}
