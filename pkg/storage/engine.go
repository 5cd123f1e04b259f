// Package storage defines the engine interface the script bridge and
// the thin TCP front end sit on top of, plus an in-process reference
// implementation and an optional PostgreSQL-backed one.
//
// Grounded on mnorrsken's internal/storage: interface.go's Backend is
// context-based and covers the full Redis command surface (BitField,
// HyperLogLog, RENAME, ...); Engine here is deliberately the narrower
// method list spec.md §6.1 names, and synchronous -- no context.Context
// parameter -- since a Lua script's redis.call never spans a network
// round trip to a separate process in this design.
package storage

import (
	"errors"
	"time"
)

// KeyType identifies the Redis data type currently stored at a key.
type KeyType int

const (
	TypeNone KeyType = iota
	TypeString
	TypeHash
	TypeList
	TypeSet
	TypeZSet
)

func (t KeyType) String() string {
	switch t {
	case TypeString:
		return "string"
	case TypeHash:
		return "hash"
	case TypeList:
		return "list"
	case TypeSet:
		return "set"
	case TypeZSet:
		return "zset"
	default:
		return "none"
	}
}

// ErrWrongType mirrors Redis's WRONGTYPE error: the key holds a value
// of a different kind than the command expects.
var ErrWrongType = errors.New("WRONGTYPE Operation against a key holding the wrong kind of value")

// ErrNotInteger is returned by Incr/IncrBy when the existing string
// value at key cannot be parsed as a base-10 integer.
var ErrNotInteger = errors.New("ERR value is not an integer")

// Engine is the storage backend injected into the script bridge and
// the TCP front end. Every method is synchronous and returns a zero
// value plus a non-nil error on failure; a missing key is not an
// error, it is reported through the second bool/ok-style return where
// the command distinguishes "absent" from "empty".
type Engine interface {
	GetString(key string) (string, bool, error)
	SetString(key, value string) error
	SetStringEx(key, value string, ttl time.Duration) error
	Delete(keys ...string) (int64, error)
	Exists(keys ...string) (int64, error)
	Incr(key string) (int64, error)
	IncrBy(key string, delta int64) (int64, error)

	HSet(key, field, value string) (bool, error)
	HGet(key, field string) (string, bool, error)

	LPush(key string, values ...string) (int64, error)
	RPush(key string, values ...string) (int64, error)
	LPop(key string) (string, bool, error)
	RPop(key string) (string, bool, error)
	LLen(key string) (int64, error)

	SAdd(key string, members ...string) (int64, error)
	SRem(key string, members ...string) (int64, error)
	SIsMember(key, member string) (bool, error)
	SCard(key string) (int64, error)

	ZAdd(key string, score float64, member string) (bool, error)
	ZScore(key, member string) (float64, bool, error)
	ZCard(key string) (int64, error)

	Keys(pattern string) ([]string, error)
	KeyType(key string) (KeyType, error)
	Expire(key string, ttl time.Duration) (bool, error)
	TTL(key string) (time.Duration, bool, error)
}
