package lexer

import "testing"

func lexAll(t *testing.T, src string) []Token {
	t.Helper()
	l := New(src, "test")
	var toks []Token
	for {
		tok, err := l.NextToken()
		if err != nil {
			t.Fatalf("lex error: %v", err)
		}
		toks = append(toks, tok)
		if tok.Type == EOF {
			break
		}
	}
	return toks
}

func TestBasicTokens(t *testing.T) {
	toks := lexAll(t, "local x = 1 + 2")
	want := []TokenType{LOCAL, IDENT, ASSIGN, NUMBER, PLUS, NUMBER, EOF}
	if len(toks) != len(want) {
		t.Fatalf("got %d tokens, want %d: %+v", len(toks), len(want), toks)
	}
	for i, tt := range want {
		if toks[i].Type != tt {
			t.Fatalf("token %d: got %s, want %s", i, toks[i].Type, tt)
		}
	}
}

func TestStringEscapes(t *testing.T) {
	toks := lexAll(t, `"a\nb\tc"`)
	if toks[0].Type != STRING || toks[0].Literal != "a\nb\tc" {
		t.Fatalf("got %q", toks[0].Literal)
	}
}

func TestLongString(t *testing.T) {
	toks := lexAll(t, "[[hello\nworld]]")
	if toks[0].Type != STRING || toks[0].Literal != "hello\nworld" {
		t.Fatalf("got %q", toks[0].Literal)
	}
}

func TestLongStringWithLevel(t *testing.T) {
	toks := lexAll(t, "[=[a]]b]=]")
	if toks[0].Type != STRING || toks[0].Literal != "a]]b" {
		t.Fatalf("got %q", toks[0].Literal)
	}
}

func TestComments(t *testing.T) {
	toks := lexAll(t, "-- a comment\nlocal x")
	if toks[0].Type != LOCAL {
		t.Fatalf("comment not skipped: %+v", toks[0])
	}
}

func TestLongComment(t *testing.T) {
	toks := lexAll(t, "--[[ multi\nline ]] local x")
	if toks[0].Type != LOCAL {
		t.Fatalf("long comment not skipped: %+v", toks[0])
	}
}

func TestOperators(t *testing.T) {
	toks := lexAll(t, "== ~= <= >= ... ..")
	want := []TokenType{EQ, NEQ, LE, GE, ELLIPSIS, CONCAT, EOF}
	for i, tt := range want {
		if toks[i].Type != tt {
			t.Fatalf("token %d: got %s, want %s", i, toks[i].Type, tt)
		}
	}
}

func TestNumberFormats(t *testing.T) {
	toks := lexAll(t, "1 1.5 1e10 0x1F .5")
	want := []string{"1", "1.5", "1e10", "0x1F", ".5"}
	for i, w := range want {
		if toks[i].Literal != w {
			t.Fatalf("token %d: got %q, want %q", i, toks[i].Literal, w)
		}
	}
}
