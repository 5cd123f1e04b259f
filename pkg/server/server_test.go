package server

import (
	"bufio"
	"net"
	"testing"
	"time"

	"github.com/iGentAI/ferrous/pkg/executor"
	"github.com/iGentAI/ferrous/pkg/resource"
	"github.com/iGentAI/ferrous/pkg/storage"
)

func startTestServer(t *testing.T) (addr string, stop func()) {
	t.Helper()
	eng := storage.NewMemory()
	limits := resource.Limits{MaxInstructions: 1_000_000, MaxCallDepth: 64, Timeout: time.Second, CheckInterval: 100}
	exec := executor.New(eng, limits, 2, nil)
	s := New("127.0.0.1:0", exec, eng, nil)

	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	s.listener = l
	go s.acceptLoop()

	return l.Addr().String(), func() { s.Stop() }
}

func sendCommand(t *testing.T, conn net.Conn, argv ...string) string {
	t.Helper()
	req := "*" + itoa(len(argv)) + "\r\n"
	for _, a := range argv {
		req += "$" + itoa(len(a)) + "\r\n" + a + "\r\n"
	}
	if _, err := conn.Write([]byte(req)); err != nil {
		t.Fatal(err)
	}
	r := bufio.NewReader(conn)
	line, err := r.ReadString('\n')
	if err != nil {
		t.Fatal(err)
	}
	return line
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	digits := []byte{}
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}

func TestPingPong(t *testing.T) {
	addr, stop := startTestServer(t)
	defer stop()
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	line := sendCommand(t, conn, "PING")
	if line != "+PONG\r\n" {
		t.Fatalf("got %q", line)
	}
}

func TestEvalOverWire(t *testing.T) {
	addr, stop := startTestServer(t)
	defer stop()
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	line := sendCommand(t, conn, "EVAL", "return 1+1", "0")
	if line != ":2\r\n" {
		t.Fatalf("got %q", line)
	}
}

func TestSetGetPassthrough(t *testing.T) {
	addr, stop := startTestServer(t)
	defer stop()
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	sendCommand(t, conn, "SET", "k", "v")
	line := sendCommand(t, conn, "GET", "k")
	if line != "$1\r\n" {
		t.Fatalf("got %q", line)
	}
}

func TestUnknownCommand(t *testing.T) {
	addr, stop := startTestServer(t)
	defer stop()
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	line := sendCommand(t, conn, "FROBNICATE")
	if len(line) == 0 || line[0] != '-' {
		t.Fatalf("expected error reply, got %q", line)
	}
}
