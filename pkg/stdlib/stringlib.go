package stdlib

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/dlclark/regexp2"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/iGentAI/ferrous/pkg/arena"
	ferrors "github.com/iGentAI/ferrous/pkg/errors"
	"github.com/iGentAI/ferrous/pkg/heap"
	"github.com/iGentAI/ferrous/pkg/value"
)

// registerString installs string.len/sub/upper/lower/rep/reverse/byte/
// char/format/find/match/gmatch/gsub on tbl (spec.md §4.8).
func registerString(h *heap.Heap, tbl arena.Handle) {
	setField(h, tbl, "len", stringLenImpl)
	setField(h, tbl, "sub", stringSubImpl)
	setField(h, tbl, "upper", stringUpperImpl)
	setField(h, tbl, "lower", stringLowerImpl)
	setField(h, tbl, "rep", stringRepImpl)
	setField(h, tbl, "reverse", stringReverseImpl)
	setField(h, tbl, "byte", stringByteImpl)
	setField(h, tbl, "char", stringCharImpl)
	setField(h, tbl, "format", stringFormatImpl)
	setField(h, tbl, "find", stringFindImpl)
	setField(h, tbl, "match", stringMatchImpl)
	setField(h, tbl, "gmatch", stringGmatchImpl)
	setField(h, tbl, "gsub", stringGsubImpl)
}

func wantString(rt value.Runtime, args []value.Value, i int, fn string) ([]byte, error) {
	v := arg(args, i)
	if v.IsNumber() {
		return []byte(value.FormatNumber(v.AsNumber())), nil
	}
	b, ok := rt.StringBytes(v)
	if !ok {
		return nil, &ferrors.ArgError{FuncName: fn, Position1: i + 1, Msg: "string expected, got " + v.Type().String()}
	}
	return b, nil
}

// strIndex converts a Lua 5.1 string-index argument (1-based, negative
// counts from the end, 0 clamps to 1) to a 0-based Go byte offset.
func strIndex(i, length int) int {
	if i < 0 {
		i = length + i + 1
	}
	if i < 1 {
		i = 1
	}
	return i - 1
}

func stringLenImpl(rt value.Runtime, args []value.Value) ([]value.Value, error) {
	s, err := wantString(rt, args, 0, "len")
	if err != nil {
		return nil, err
	}
	return []value.Value{value.Int(int64(len(s)))}, nil
}

func stringSubImpl(rt value.Runtime, args []value.Value) ([]value.Value, error) {
	s, err := wantString(rt, args, 0, "sub")
	if err != nil {
		return nil, err
	}
	n := len(s)
	i, j := 1, -1
	if len(args) >= 2 {
		f, _ := rt.ToNumber(args[1])
		i = int(f)
	}
	if len(args) >= 3 && !args[2].IsNil() {
		f, _ := rt.ToNumber(args[2])
		j = int(f)
	}
	start := strIndex(i, n)
	end := j
	if end < 0 {
		end = n + end + 1
	}
	if end > n {
		end = n
	}
	if start >= n || end < start+1 {
		return []value.Value{rt.NewString(nil)}, nil
	}
	return []value.Value{rt.NewString(s[start:end])}, nil
}

func stringUpperImpl(rt value.Runtime, args []value.Value) ([]value.Value, error) {
	s, err := wantString(rt, args, 0, "upper")
	if err != nil {
		return nil, err
	}
	return []value.Value{rt.NewString([]byte(cases.Upper(language.Und).String(string(s))))}, nil
}

func stringLowerImpl(rt value.Runtime, args []value.Value) ([]value.Value, error) {
	s, err := wantString(rt, args, 0, "lower")
	if err != nil {
		return nil, err
	}
	return []value.Value{rt.NewString([]byte(cases.Lower(language.Und).String(string(s))))}, nil
}

func stringRepImpl(rt value.Runtime, args []value.Value) ([]value.Value, error) {
	s, err := wantString(rt, args, 0, "rep")
	if err != nil {
		return nil, err
	}
	n, _ := rt.ToNumber(arg(args, 1))
	if n <= 0 {
		return []value.Value{rt.NewString(nil)}, nil
	}
	return []value.Value{rt.NewString([]byte(strings.Repeat(string(s), int(n))))}, nil
}

func stringReverseImpl(rt value.Runtime, args []value.Value) ([]value.Value, error) {
	s, err := wantString(rt, args, 0, "reverse")
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(s))
	for i, b := range s {
		out[len(s)-1-i] = b
	}
	return []value.Value{rt.NewString(out)}, nil
}

func stringByteImpl(rt value.Runtime, args []value.Value) ([]value.Value, error) {
	s, err := wantString(rt, args, 0, "byte")
	if err != nil {
		return nil, err
	}
	n := len(s)
	i, j := 1, 1
	if len(args) >= 2 && !args[1].IsNil() {
		f, _ := rt.ToNumber(args[1])
		i = int(f)
		j = i
	}
	if len(args) >= 3 && !args[2].IsNil() {
		f, _ := rt.ToNumber(args[2])
		j = int(f)
	}
	start := strIndex(i, n)
	end := j
	if end < 0 {
		end = n + end + 1
	}
	if end > n {
		end = n
	}
	if start >= n || end < start+1 {
		return nil, nil
	}
	results := make([]value.Value, 0, end-start)
	for _, b := range s[start:end] {
		results = append(results, value.Int(int64(b)))
	}
	return results, nil
}

func stringCharImpl(rt value.Runtime, args []value.Value) ([]value.Value, error) {
	out := make([]byte, len(args))
	for i, a := range args {
		n, ok := rt.ToNumber(a)
		if !ok {
			return nil, &ferrors.ArgError{FuncName: "char", Position1: i + 1, Msg: "number expected"}
		}
		out[i] = byte(int(n))
	}
	return []value.Value{rt.NewString(out)}, nil
}

// formatSpecRe matches one %-directive: flags, width, precision, verb.
var formatSpecRe = regexp2.MustCompile(`%[-+ #0]*\d*(\.\d+)?[diouxXeEfgGqcs%]`, regexp2.None)

func stringFormatImpl(rt value.Runtime, args []value.Value) ([]value.Value, error) {
	f, err := wantString(rt, args, 0, "format")
	if err != nil {
		return nil, err
	}
	format := string(f)
	var out strings.Builder
	argIdx := 1
	m, merr := formatSpecRe.FindStringMatch(format)
	pos := 0
	for merr == nil && m != nil {
		out.WriteString(format[pos : m.Index])
		spec := m.String()
		verb := spec[len(spec)-1]
		goSpec := spec
		switch verb {
		case '%':
			out.WriteString("%")
			pos = m.Index + m.Length
			m, merr = formatSpecRe.FindNextMatch(m)
			continue
		case 'i', 'u':
			goSpec = spec[:len(spec)-1] + "d"
		}
		a := arg(args, argIdx)
		switch verb {
		case 'd', 'i', 'u', 'o', 'x', 'X':
			n, ok := rt.ToNumber(a)
			if !ok {
				return nil, &ferrors.ArgError{FuncName: "format", Position1: argIdx + 1, Msg: "number expected, got " + a.Type().String()}
			}
			fmt.Fprintf(&out, goSpec, int64(n))
		case 'e', 'E', 'f', 'g', 'G':
			n, ok := rt.ToNumber(a)
			if !ok {
				return nil, &ferrors.ArgError{FuncName: "format", Position1: argIdx + 1, Msg: "number expected, got " + a.Type().String()}
			}
			fmt.Fprintf(&out, goSpec, n)
		case 'c':
			n, ok := rt.ToNumber(a)
			if !ok {
				return nil, &ferrors.ArgError{FuncName: "format", Position1: argIdx + 1, Msg: "number expected"}
			}
			out.WriteByte(byte(int(n)))
		case 'q':
			s, ok := rt.StringBytes(a)
			if !ok {
				s = []byte(a.GoString())
			}
			out.WriteString(strconv.Quote(string(s)))
		case 's':
			s, err := rt.ToDisplayString(a)
			if err != nil {
				return nil, err
			}
			fmt.Fprintf(&out, goSpec, s)
		}
		argIdx++
		pos = m.Index + m.Length
		m, merr = formatSpecRe.FindNextMatch(m)
	}
	out.WriteString(format[pos:])
	return []value.Value{rt.NewString([]byte(out.String()))}, nil
}

func compilePattern(pat string) (*regexp2.Regexp, error) {
	translated, err := TranslatePattern(pat)
	if err != nil {
		return nil, err
	}
	return regexp2.Compile(translated, regexp2.Singleline)
}

// matchCaptures returns each capture group's text (skipping group 0,
// the whole match); if there are no explicit captures the whole match
// itself is returned as the sole element, matching Lua's "captures
// default to the whole match" rule.
func matchCaptures(m *regexp2.Match) []string {
	groups := m.Groups()
	if len(groups) <= 1 {
		return []string{m.String()}
	}
	out := make([]string, 0, len(groups)-1)
	for _, g := range groups[1:] {
		out = append(out, g.String())
	}
	return out
}

func stringFindImpl(rt value.Runtime, args []value.Value) ([]value.Value, error) {
	s, err := wantString(rt, args, 0, "find")
	if err != nil {
		return nil, err
	}
	pat, err := wantString(rt, args, 1, "find")
	if err != nil {
		return nil, err
	}
	init := 1
	if len(args) >= 3 && !args[2].IsNil() {
		f, _ := rt.ToNumber(args[2])
		init = int(f)
	}
	plain := len(args) >= 4 && args[3].Truthy()
	start := strIndex(init, len(s))
	if start > len(s) {
		return []value.Value{value.Nil}, nil
	}
	if plain || !strings.ContainsAny(string(pat), "^$*+?.([%-") {
		idx := bytes.Index(s[start:], pat)
		if idx < 0 {
			return []value.Value{value.Nil}, nil
		}
		from := start + idx
		return []value.Value{value.Int(int64(from + 1)), value.Int(int64(from + len(pat)))}, nil
	}
	re, err := compilePattern(string(pat))
	if err != nil {
		return nil, &ferrors.ArgError{FuncName: "find", Position1: 2, Msg: err.Error()}
	}
	m, merr := re.FindStringMatch(string(s[start:]))
	if merr != nil || m == nil {
		return []value.Value{value.Nil}, nil
	}
	from := start + m.Index
	to := from + m.Length
	results := []value.Value{value.Int(int64(from + 1)), value.Int(int64(to))}
	if len(m.Groups()) > 1 {
		for _, c := range matchCaptures(m) {
			results = append(results, rt.NewString([]byte(c)))
		}
	}
	return results, nil
}

func stringMatchImpl(rt value.Runtime, args []value.Value) ([]value.Value, error) {
	s, err := wantString(rt, args, 0, "match")
	if err != nil {
		return nil, err
	}
	pat, err := wantString(rt, args, 1, "match")
	if err != nil {
		return nil, err
	}
	init := 1
	if len(args) >= 3 && !args[2].IsNil() {
		f, _ := rt.ToNumber(args[2])
		init = int(f)
	}
	start := strIndex(init, len(s))
	if start > len(s) {
		return []value.Value{value.Nil}, nil
	}
	re, err := compilePattern(string(pat))
	if err != nil {
		return nil, &ferrors.ArgError{FuncName: "match", Position1: 2, Msg: err.Error()}
	}
	m, merr := re.FindStringMatch(string(s[start:]))
	if merr != nil || m == nil {
		return []value.Value{value.Nil}, nil
	}
	caps := matchCaptures(m)
	results := make([]value.Value, len(caps))
	for i, c := range caps {
		results[i] = rt.NewString([]byte(c))
	}
	return results, nil
}

func stringGmatchImpl(rt value.Runtime, args []value.Value) ([]value.Value, error) {
	s, err := wantString(rt, args, 0, "gmatch")
	if err != nil {
		return nil, err
	}
	pat, err := wantString(rt, args, 1, "gmatch")
	if err != nil {
		return nil, err
	}
	re, err := compilePattern(string(pat))
	if err != nil {
		return nil, &ferrors.ArgError{FuncName: "gmatch", Position1: 2, Msg: err.Error()}
	}
	str := string(s)
	var last *regexp2.Match
	iter := func(rt2 value.Runtime, _ []value.Value) ([]value.Value, error) {
		var m *regexp2.Match
		var merr error
		if last == nil {
			m, merr = re.FindStringMatch(str)
		} else {
			m, merr = re.FindNextMatch(last)
		}
		if merr != nil || m == nil {
			return []value.Value{value.Nil}, nil
		}
		last = m
		caps := matchCaptures(m)
		results := make([]value.Value, len(caps))
		for i, c := range caps {
			results[i] = rt2.NewString([]byte(c))
		}
		return results, nil
	}
	return []value.Value{value.CFunction("gmatch_iterator", iter)}, nil
}

func stringGsubImpl(rt value.Runtime, args []value.Value) ([]value.Value, error) {
	s, err := wantString(rt, args, 0, "gsub")
	if err != nil {
		return nil, err
	}
	pat, err := wantString(rt, args, 1, "gsub")
	if err != nil {
		return nil, err
	}
	repl := arg(args, 2)
	maxN := -1
	if len(args) >= 4 && !args[3].IsNil() {
		f, _ := rt.ToNumber(args[3])
		maxN = int(f)
	}
	re, err := compilePattern(string(pat))
	if err != nil {
		return nil, &ferrors.ArgError{FuncName: "gsub", Position1: 2, Msg: err.Error()}
	}
	str := string(s)
	var out strings.Builder
	count := 0
	pos := 0
	m, merr := re.FindStringMatch(str)
	for merr == nil && m != nil {
		if maxN >= 0 && count >= maxN {
			break
		}
		out.WriteString(str[pos:m.Index])
		whole := m.String()
		caps := matchCaptures(m)
		replacement, err := expandReplacement(rt, repl, whole, caps)
		if err != nil {
			return nil, err
		}
		out.WriteString(replacement)
		count++
		pos = m.Index + m.Length
		if m.Length == 0 {
			if pos < len(str) {
				out.WriteByte(str[pos])
			}
			pos++
		}
		if pos > len(str) {
			break
		}
		m, merr = re.FindNextMatch(m)
	}
	if pos <= len(str) {
		out.WriteString(str[pos:])
	}
	return []value.Value{rt.NewString([]byte(out.String())), value.Int(int64(count))}, nil
}

// expandReplacement implements gsub's three replacement kinds: a string
// with %0../%9 backreferences, a table keyed by the first capture (or
// the whole match), or a function called with the captures.
func expandReplacement(rt value.Runtime, repl value.Value, whole string, caps []string) (string, error) {
	switch repl.Type() {
	case value.TypeString, value.TypeNumber:
		b, _ := rt.ToDisplayString(repl)
		var out strings.Builder
		for i := 0; i < len(b); i++ {
			if b[i] == '%' && i+1 < len(b) {
				d := b[i+1]
				if d == '0' {
					out.WriteString(whole)
					i++
					continue
				}
				if d >= '1' && d <= '9' {
					idx := int(d - '1')
					if idx < len(caps) {
						out.WriteString(caps[idx])
					}
					i++
					continue
				}
				if d == '%' {
					out.WriteByte('%')
					i++
					continue
				}
			}
			out.WriteByte(b[i])
		}
		return out.String(), nil
	case value.TypeTable:
		key := whole
		if len(caps) > 0 {
			key = caps[0]
		}
		v, err := rt.TableGet(repl, rt.NewString([]byte(key)))
		if err != nil {
			return "", err
		}
		if v.IsNil() || (v.IsBool() && !v.AsBool()) {
			return whole, nil
		}
		return rt.ToDisplayString(v)
	case value.TypeClosure, value.TypeCFunction:
		callArgs := make([]value.Value, len(caps))
		for i, c := range caps {
			callArgs[i] = rt.NewString([]byte(c))
		}
		results, err := rt.Call(repl, callArgs)
		if err != nil {
			return "", err
		}
		if len(results) == 0 || results[0].IsNil() || (results[0].IsBool() && !results[0].AsBool()) {
			return whole, nil
		}
		return rt.ToDisplayString(results[0])
	default:
		return whole, nil
	}
}
