package executor

import (
	"sync/atomic"
	"time"

	"github.com/iGentAI/ferrous/pkg/storage"
)

// dirtyEngine wraps a storage.Engine and flips dirty on the first
// mutating call a script makes. Kill consults this flag: per spec.md
// §5, a script is only killable before its first write, since the
// storage engine is non-transactional and a killed mid-write script
// would leave a half-applied mutation with no way to roll it back.
type dirtyEngine struct {
	storage.Engine
	dirty *atomic.Bool
}

func (d *dirtyEngine) SetString(key, value string) error {
	d.dirty.Store(true)
	return d.Engine.SetString(key, value)
}

func (d *dirtyEngine) SetStringEx(key, value string, ttl time.Duration) error {
	d.dirty.Store(true)
	return d.Engine.SetStringEx(key, value, ttl)
}

func (d *dirtyEngine) Delete(keys ...string) (int64, error) {
	d.dirty.Store(true)
	return d.Engine.Delete(keys...)
}

func (d *dirtyEngine) Incr(key string) (int64, error) {
	d.dirty.Store(true)
	return d.Engine.Incr(key)
}

func (d *dirtyEngine) IncrBy(key string, delta int64) (int64, error) {
	d.dirty.Store(true)
	return d.Engine.IncrBy(key, delta)
}

func (d *dirtyEngine) HSet(key, field, value string) (bool, error) {
	d.dirty.Store(true)
	return d.Engine.HSet(key, field, value)
}

func (d *dirtyEngine) LPush(key string, values ...string) (int64, error) {
	d.dirty.Store(true)
	return d.Engine.LPush(key, values...)
}

func (d *dirtyEngine) RPush(key string, values ...string) (int64, error) {
	d.dirty.Store(true)
	return d.Engine.RPush(key, values...)
}

func (d *dirtyEngine) LPop(key string) (string, bool, error) {
	d.dirty.Store(true)
	return d.Engine.LPop(key)
}

func (d *dirtyEngine) RPop(key string) (string, bool, error) {
	d.dirty.Store(true)
	return d.Engine.RPop(key)
}

func (d *dirtyEngine) SAdd(key string, members ...string) (int64, error) {
	d.dirty.Store(true)
	return d.Engine.SAdd(key, members...)
}

func (d *dirtyEngine) SRem(key string, members ...string) (int64, error) {
	d.dirty.Store(true)
	return d.Engine.SRem(key, members...)
}

func (d *dirtyEngine) ZAdd(key string, score float64, member string) (bool, error) {
	d.dirty.Store(true)
	return d.Engine.ZAdd(key, score, member)
}

func (d *dirtyEngine) Expire(key string, ttl time.Duration) (bool, error) {
	d.dirty.Store(true)
	return d.Engine.Expire(key, ttl)
}

var _ storage.Engine = (*dirtyEngine)(nil)
