package bridge

import (
	"strconv"
	"time"

	"github.com/iGentAI/ferrous/pkg/resp"
	"github.com/iGentAI/ferrous/pkg/storage"
)

// Dispatch runs one Redis-style command against eng and returns its
// RESP reply. Shared by redis.call/pcall and pkg/server's passthrough
// command set, so both surfaces see identical error text for a given
// storage.Engine failure.
func Dispatch(eng storage.Engine, cmd string, argv []string) resp.Frame {
	switch cmd {
	case "GET":
		return cmdGet(eng, argv)
	case "SET":
		return cmdSet(eng, argv)
	case "DEL":
		return cmdDel(eng, argv)
	case "EXISTS":
		return cmdExists(eng, argv)
	case "INCR":
		return cmdIncr(eng, argv)
	case "INCRBY":
		return cmdIncrBy(eng, argv)
	case "EXPIRE":
		return cmdExpire(eng, argv)
	case "TTL":
		return cmdTTL(eng, argv)
	case "TYPE":
		return cmdType(eng, argv)
	case "KEYS":
		return cmdKeys(eng, argv)
	case "HSET":
		return cmdHSet(eng, argv)
	case "HGET":
		return cmdHGet(eng, argv)
	case "LPUSH":
		return cmdPush(eng, argv, true)
	case "RPUSH":
		return cmdPush(eng, argv, false)
	case "LPOP":
		return cmdPop(eng, argv, true)
	case "RPOP":
		return cmdPop(eng, argv, false)
	case "LLEN":
		return cmdLLen(eng, argv)
	case "SADD":
		return cmdSAdd(eng, argv)
	case "SREM":
		return cmdSRem(eng, argv)
	case "SISMEMBER":
		return cmdSIsMember(eng, argv)
	case "SCARD":
		return cmdSCard(eng, argv)
	case "ZADD":
		return cmdZAdd(eng, argv)
	case "ZSCORE":
		return cmdZScore(eng, argv)
	case "ZCARD":
		return cmdZCard(eng, argv)
	default:
		return resp.ErrorReply("ERR unknown command '" + cmd + "'")
	}
}

func wrongNumArgs(cmd string) resp.Frame {
	return resp.ErrorReply("ERR wrong number of arguments for '" + cmd + "' command")
}

func storageErr(err error) resp.Frame {
	return resp.ErrorReply(err.Error())
}

func cmdGet(eng storage.Engine, argv []string) resp.Frame {
	if len(argv) != 1 {
		return wrongNumArgs("get")
	}
	v, ok, err := eng.GetString(argv[0])
	if err != nil {
		return storageErr(err)
	}
	if !ok {
		return resp.NullBulk()
	}
	return resp.Bulk(v)
}

func cmdSet(eng storage.Engine, argv []string) resp.Frame {
	if len(argv) != 2 {
		return wrongNumArgs("set")
	}
	if err := eng.SetString(argv[0], argv[1]); err != nil {
		return storageErr(err)
	}
	return resp.OK()
}

func cmdDel(eng storage.Engine, argv []string) resp.Frame {
	if len(argv) == 0 {
		return wrongNumArgs("del")
	}
	n, err := eng.Delete(argv...)
	if err != nil {
		return storageErr(err)
	}
	return resp.Int(n)
}

func cmdExists(eng storage.Engine, argv []string) resp.Frame {
	if len(argv) == 0 {
		return wrongNumArgs("exists")
	}
	n, err := eng.Exists(argv...)
	if err != nil {
		return storageErr(err)
	}
	return resp.Int(n)
}

func cmdIncr(eng storage.Engine, argv []string) resp.Frame {
	if len(argv) != 1 {
		return wrongNumArgs("incr")
	}
	n, err := eng.Incr(argv[0])
	if err != nil {
		return storageErr(err)
	}
	return resp.Int(n)
}

func cmdIncrBy(eng storage.Engine, argv []string) resp.Frame {
	if len(argv) != 2 {
		return wrongNumArgs("incrby")
	}
	delta, err := strconv.ParseInt(argv[1], 10, 64)
	if err != nil {
		return resp.ErrorReply("ERR value is not an integer or out of range")
	}
	n, err := eng.IncrBy(argv[0], delta)
	if err != nil {
		return storageErr(err)
	}
	return resp.Int(n)
}

func cmdExpire(eng storage.Engine, argv []string) resp.Frame {
	if len(argv) != 2 {
		return wrongNumArgs("expire")
	}
	secs, err := strconv.ParseInt(argv[1], 10, 64)
	if err != nil {
		return resp.ErrorReply("ERR value is not an integer or out of range")
	}
	ok, err := eng.Expire(argv[0], time.Duration(secs)*time.Second)
	if err != nil {
		return storageErr(err)
	}
	if ok {
		return resp.Int(1)
	}
	return resp.Int(0)
}

func cmdTTL(eng storage.Engine, argv []string) resp.Frame {
	if len(argv) != 1 {
		return wrongNumArgs("ttl")
	}
	ttl, ok, err := eng.TTL(argv[0])
	if err != nil {
		return storageErr(err)
	}
	if !ok {
		return resp.Int(-2)
	}
	if ttl < 0 {
		return resp.Int(-1)
	}
	return resp.Int(int64(ttl.Seconds()))
}

func cmdType(eng storage.Engine, argv []string) resp.Frame {
	if len(argv) != 1 {
		return wrongNumArgs("type")
	}
	t, err := eng.KeyType(argv[0])
	if err != nil {
		return storageErr(err)
	}
	return resp.Frame{Type: resp.TypeSimpleString, Str: t.String()}
}

func cmdKeys(eng storage.Engine, argv []string) resp.Frame {
	if len(argv) != 1 {
		return wrongNumArgs("keys")
	}
	keys, err := eng.Keys(argv[0])
	if err != nil {
		return storageErr(err)
	}
	items := make([]resp.Frame, len(keys))
	for i, k := range keys {
		items[i] = resp.Bulk(k)
	}
	return resp.Arr(items...)
}

func cmdHSet(eng storage.Engine, argv []string) resp.Frame {
	if len(argv) != 3 {
		return wrongNumArgs("hset")
	}
	created, err := eng.HSet(argv[0], argv[1], argv[2])
	if err != nil {
		return storageErr(err)
	}
	if created {
		return resp.Int(1)
	}
	return resp.Int(0)
}

func cmdHGet(eng storage.Engine, argv []string) resp.Frame {
	if len(argv) != 2 {
		return wrongNumArgs("hget")
	}
	v, ok, err := eng.HGet(argv[0], argv[1])
	if err != nil {
		return storageErr(err)
	}
	if !ok {
		return resp.NullBulk()
	}
	return resp.Bulk(v)
}

func cmdPush(eng storage.Engine, argv []string, left bool) resp.Frame {
	if len(argv) < 2 {
		return wrongNumArgs("push")
	}
	var n int64
	var err error
	if left {
		n, err = eng.LPush(argv[0], argv[1:]...)
	} else {
		n, err = eng.RPush(argv[0], argv[1:]...)
	}
	if err != nil {
		return storageErr(err)
	}
	return resp.Int(n)
}

func cmdPop(eng storage.Engine, argv []string, left bool) resp.Frame {
	if len(argv) != 1 {
		return wrongNumArgs("pop")
	}
	var v string
	var ok bool
	var err error
	if left {
		v, ok, err = eng.LPop(argv[0])
	} else {
		v, ok, err = eng.RPop(argv[0])
	}
	if err != nil {
		return storageErr(err)
	}
	if !ok {
		return resp.NullBulk()
	}
	return resp.Bulk(v)
}

func cmdLLen(eng storage.Engine, argv []string) resp.Frame {
	if len(argv) != 1 {
		return wrongNumArgs("llen")
	}
	n, err := eng.LLen(argv[0])
	if err != nil {
		return storageErr(err)
	}
	return resp.Int(n)
}

func cmdSAdd(eng storage.Engine, argv []string) resp.Frame {
	if len(argv) < 2 {
		return wrongNumArgs("sadd")
	}
	n, err := eng.SAdd(argv[0], argv[1:]...)
	if err != nil {
		return storageErr(err)
	}
	return resp.Int(n)
}

func cmdSRem(eng storage.Engine, argv []string) resp.Frame {
	if len(argv) < 2 {
		return wrongNumArgs("srem")
	}
	n, err := eng.SRem(argv[0], argv[1:]...)
	if err != nil {
		return storageErr(err)
	}
	return resp.Int(n)
}

func cmdSIsMember(eng storage.Engine, argv []string) resp.Frame {
	if len(argv) != 2 {
		return wrongNumArgs("sismember")
	}
	ok, err := eng.SIsMember(argv[0], argv[1])
	if err != nil {
		return storageErr(err)
	}
	if ok {
		return resp.Int(1)
	}
	return resp.Int(0)
}

func cmdSCard(eng storage.Engine, argv []string) resp.Frame {
	if len(argv) != 1 {
		return wrongNumArgs("scard")
	}
	n, err := eng.SCard(argv[0])
	if err != nil {
		return storageErr(err)
	}
	return resp.Int(n)
}

func cmdZAdd(eng storage.Engine, argv []string) resp.Frame {
	if len(argv) != 3 {
		return wrongNumArgs("zadd")
	}
	score, err := strconv.ParseFloat(argv[1], 64)
	if err != nil {
		return resp.ErrorReply("ERR value is not a valid float")
	}
	created, err := eng.ZAdd(argv[0], score, argv[2])
	if err != nil {
		return storageErr(err)
	}
	if created {
		return resp.Int(1)
	}
	return resp.Int(0)
}

func cmdZScore(eng storage.Engine, argv []string) resp.Frame {
	if len(argv) != 2 {
		return wrongNumArgs("zscore")
	}
	score, ok, err := eng.ZScore(argv[0], argv[1])
	if err != nil {
		return storageErr(err)
	}
	if !ok {
		return resp.NullBulk()
	}
	return resp.Bulk(strconv.FormatFloat(score, 'f', -1, 64))
}

func cmdZCard(eng storage.Engine, argv []string) resp.Frame {
	if len(argv) != 1 {
		return wrongNumArgs("zcard")
	}
	n, err := eng.ZCard(argv[0])
	if err != nil {
		return storageErr(err)
	}
	return resp.Int(n)
}
