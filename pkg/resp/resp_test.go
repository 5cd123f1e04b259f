package resp

import (
	"bytes"
	"testing"
)

func writeString(t *testing.T, f Frame) string {
	t.Helper()
	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}
	return buf.String()
}

func TestSimpleStringAndOK(t *testing.T) {
	if got := writeString(t, OK()); got != "+OK\r\n" {
		t.Fatalf("got %q", got)
	}
}

func TestErrorReply(t *testing.T) {
	if got := writeString(t, ErrorReply("ERR boom")); got != "-ERR boom\r\n" {
		t.Fatalf("got %q", got)
	}
}

func TestInteger(t *testing.T) {
	if got := writeString(t, Int(42)); got != ":42\r\n" {
		t.Fatalf("got %q", got)
	}
}

func TestBulkString(t *testing.T) {
	if got := writeString(t, Bulk("hi")); got != "$2\r\nhi\r\n" {
		t.Fatalf("got %q", got)
	}
}

func TestNullBulk(t *testing.T) {
	if got := writeString(t, NullBulk()); got != "$-1\r\n" {
		t.Fatalf("got %q", got)
	}
}

func TestArray(t *testing.T) {
	got := writeString(t, Arr(Int(1), Bulk("x"), NullBulk()))
	want := "*3\r\n:1\r\n$1\r\nx\r\n$-1\r\n"
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestNullArray(t *testing.T) {
	if got := writeString(t, NullArray()); got != "*-1\r\n" {
		t.Fatalf("got %q", got)
	}
}
