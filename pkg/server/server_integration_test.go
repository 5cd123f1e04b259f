//go:build redis_integration
// +build redis_integration

// This file only builds with -tags redis_integration: it drives the
// server over a real TCP connection with the go-redis client, the same
// way an actual Redis-protocol consumer would, rather than going
// through sendCommand's hand-rolled RESP writer in server_test.go.
package server

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

// newRedisTestServer starts a Server via the shared startTestServer
// helper (server_test.go) and returns a go-redis client already
// connected to it, grounded on postkeys' tests/integration_test.go
// newTestServer helper.
func newRedisTestServer(t *testing.T) (*redis.Client, func()) {
	t.Helper()

	addr, stop := startTestServer(t)
	client := redis.NewClient(&redis.Options{Addr: addr})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Fatalf("ping: %v", err)
	}

	return client, func() {
		client.Close()
		stop()
	}
}

func TestRedisClientPing(t *testing.T) {
	client, stop := newRedisTestServer(t)
	defer stop()

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Fatalf("PING: %v", err)
	}
}

func TestRedisClientSetGet(t *testing.T) {
	client, stop := newRedisTestServer(t)
	defer stop()

	ctx := context.Background()
	if err := client.Set(ctx, "greeting", "hello", 0).Err(); err != nil {
		t.Fatalf("SET: %v", err)
	}
	got, err := client.Get(ctx, "greeting").Result()
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	if got != "hello" {
		t.Fatalf("GET = %q, want %q", got, "hello")
	}
}

func TestRedisClientIncr(t *testing.T) {
	client, stop := newRedisTestServer(t)
	defer stop()

	ctx := context.Background()
	n, err := client.Incr(ctx, "counter").Result()
	if err != nil {
		t.Fatalf("INCR: %v", err)
	}
	if n != 1 {
		t.Fatalf("INCR = %d, want 1", n)
	}
}

func TestRedisClientEval(t *testing.T) {
	client, stop := newRedisTestServer(t)
	defer stop()

	ctx := context.Background()
	res, err := client.Eval(ctx, "return redis.call('SET', KEYS[1], ARGV[1])", []string{"scripted"}, "fromlua").Result()
	if err != nil {
		t.Fatalf("EVAL: %v", err)
	}
	if res != "OK" {
		t.Fatalf("EVAL result = %v, want OK", res)
	}

	got, err := client.Get(ctx, "scripted").Result()
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	if got != "fromlua" {
		t.Fatalf("GET = %q, want %q", got, "fromlua")
	}
}

func TestRedisClientEvalSha(t *testing.T) {
	client, stop := newRedisTestServer(t)
	defer stop()

	ctx := context.Background()
	sha, err := client.ScriptLoad(ctx, "return 1+1").Result()
	if err != nil {
		t.Fatalf("SCRIPT LOAD: %v", err)
	}
	res, err := client.EvalSha(ctx, sha, nil).Result()
	if err != nil {
		t.Fatalf("EVALSHA: %v", err)
	}
	if res != int64(2) {
		t.Fatalf("EVALSHA result = %v, want 2", res)
	}
}
