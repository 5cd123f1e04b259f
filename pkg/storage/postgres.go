//go:build postgres

package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres is a pgx/v5-backed Engine. Grounded on mnorrsken's
// internal/storage/storage.go (pgxpool.Pool, Config, New) and
// querier.go's statement shapes, collapsed from that package's
// per-type tables (kv_strings, kv_hashes, kv_lists, ...) down to a
// single kv(key, type, data jsonb, expires_at) table -- the payload
// shape a script's redis.call round trip needs is small enough that
// one jsonb column per key covers every data type without the extra
// join tables a full production backend carries, and this package
// exists to exercise pgx/v5 as a real driver, not to reimplement one.
type Postgres struct {
	pool *pgxpool.Pool
}

// Config holds PostgreSQL connection parameters.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// NewPostgres opens a pool, applies the kv schema, and returns a
// ready Postgres engine.
func NewPostgres(ctx context.Context, cfg Config) (*Postgres, error) {
	connStr := fmt.Sprintf(
		"user=%s password=%s host=%s port=%d dbname=%s sslmode=%s",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Database, cfg.SSLMode,
	)
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("storage: pgxpool.New: %w", err)
	}
	p := &Postgres{pool: pool}
	if err := p.initSchema(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("storage: init schema: %w", err)
	}
	return p, nil
}

func (p *Postgres) Close() { p.pool.Close() }

func (p *Postgres) initSchema(ctx context.Context) error {
	const schema = `
		CREATE TABLE IF NOT EXISTS kv (
			key TEXT PRIMARY KEY,
			type SMALLINT NOT NULL,
			data JSONB NOT NULL,
			expires_at TIMESTAMPTZ
		);
		CREATE INDEX IF NOT EXISTS idx_kv_expires ON kv(expires_at) WHERE expires_at IS NOT NULL;
	`
	_, err := p.pool.Exec(ctx, schema)
	return err
}

// row is the shape persisted in kv.data; which fields are populated
// depends on Type.
type row struct {
	Str  string             `json:"s,omitempty"`
	Hash map[string]string  `json:"h,omitempty"`
	List []string           `json:"l,omitempty"`
	Set  map[string]bool    `json:"set,omitempty"`
	ZSet map[string]float64 `json:"z,omitempty"`
}

// loadLocked fetches and decodes the row at key inside tx, treating a
// not-found or expired row as a zero row with ok=false. Must be
// called inside a transaction since most callers read-modify-write.
func (p *Postgres) loadLocked(ctx context.Context, tx pgx.Tx, key string) (KeyType, row, bool, error) {
	var typ int
	var data []byte
	var exp *time.Time
	err := tx.QueryRow(ctx, `SELECT type, data, expires_at FROM kv WHERE key = $1 FOR UPDATE`, key).Scan(&typ, &data, &exp)
	if errors.Is(err, pgx.ErrNoRows) {
		return TypeNone, row{}, false, nil
	}
	if err != nil {
		return TypeNone, row{}, false, err
	}
	if exp != nil && time.Now().After(*exp) {
		if _, derr := tx.Exec(ctx, `DELETE FROM kv WHERE key = $1`, key); derr != nil {
			return TypeNone, row{}, false, derr
		}
		return TypeNone, row{}, false, nil
	}
	var r row
	if err := json.Unmarshal(data, &r); err != nil {
		return TypeNone, row{}, false, fmt.Errorf("storage: decode row %q: %w", key, err)
	}
	return KeyType(typ), r, true, nil
}

func (p *Postgres) storeLocked(ctx context.Context, tx pgx.Tx, key string, typ KeyType, r row, ttl *time.Duration) error {
	data, err := json.Marshal(r)
	if err != nil {
		return err
	}
	var exp *time.Time
	if ttl != nil {
		t := time.Now().Add(*ttl)
		exp = &t
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO kv (key, type, data, expires_at) VALUES ($1, $2, $3, $4)
		ON CONFLICT (key) DO UPDATE SET type = $2, data = $3, expires_at = $4
	`, key, int(typ), data, exp)
	return err
}

func (p *Postgres) withTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (p *Postgres) GetString(key string) (string, bool, error) {
	var v string
	var ok bool
	err := p.withTx(context.Background(), func(tx pgx.Tx) error {
		typ, r, found, err := p.loadLocked(context.Background(), tx, key)
		if err != nil || !found {
			return err
		}
		if typ != TypeString {
			return ErrWrongType
		}
		v, ok = r.Str, true
		return nil
	})
	return v, ok, err
}

func (p *Postgres) SetString(key, value string) error {
	return p.withTx(context.Background(), func(tx pgx.Tx) error {
		return p.storeLocked(context.Background(), tx, key, TypeString, row{Str: value}, nil)
	})
}

func (p *Postgres) SetStringEx(key, value string, ttl time.Duration) error {
	return p.withTx(context.Background(), func(tx pgx.Tx) error {
		return p.storeLocked(context.Background(), tx, key, TypeString, row{Str: value}, &ttl)
	})
}

func (p *Postgres) Delete(keys ...string) (int64, error) {
	ct, err := p.pool.Exec(context.Background(), `DELETE FROM kv WHERE key = ANY($1)`, keys)
	if err != nil {
		return 0, err
	}
	return ct.RowsAffected(), nil
}

func (p *Postgres) Exists(keys ...string) (int64, error) {
	var n int64
	err := p.pool.QueryRow(context.Background(),
		`SELECT count(*) FROM kv WHERE key = ANY($1) AND (expires_at IS NULL OR expires_at > now())`,
		keys).Scan(&n)
	return n, err
}

func (p *Postgres) IncrBy(key string, delta int64) (int64, error) {
	var result int64
	err := p.withTx(context.Background(), func(tx pgx.Tx) error {
		ctx := context.Background()
		typ, r, found, err := p.loadLocked(ctx, tx, key)
		if err != nil {
			return err
		}
		if found && typ != TypeString {
			return ErrWrongType
		}
		var cur int64
		if found {
			cur, err = strconv.ParseInt(r.Str, 10, 64)
			if err != nil {
				return ErrNotInteger
			}
		}
		result = cur + delta
		return p.storeLocked(ctx, tx, key, TypeString, row{Str: strconv.FormatInt(result, 10)}, nil)
	})
	return result, err
}

func (p *Postgres) Incr(key string) (int64, error) { return p.IncrBy(key, 1) }

func (p *Postgres) HSet(key, field, value string) (bool, error) {
	var created bool
	err := p.withTx(context.Background(), func(tx pgx.Tx) error {
		ctx := context.Background()
		typ, r, found, err := p.loadLocked(ctx, tx, key)
		if err != nil {
			return err
		}
		if found && typ != TypeHash {
			return ErrWrongType
		}
		if r.Hash == nil {
			r.Hash = make(map[string]string)
		}
		_, existed := r.Hash[field]
		r.Hash[field] = value
		created = !existed
		return p.storeLocked(ctx, tx, key, TypeHash, r, nil)
	})
	return created, err
}

func (p *Postgres) HGet(key, field string) (string, bool, error) {
	var v string
	var ok bool
	err := p.withTx(context.Background(), func(tx pgx.Tx) error {
		ctx := context.Background()
		typ, r, found, err := p.loadLocked(ctx, tx, key)
		if err != nil || !found {
			return err
		}
		if typ != TypeHash {
			return ErrWrongType
		}
		v, ok = r.Hash[field]
		return nil
	})
	return v, ok, err
}

func (p *Postgres) LPush(key string, values ...string) (int64, error) {
	return p.pushList(key, values, true)
}

func (p *Postgres) RPush(key string, values ...string) (int64, error) {
	return p.pushList(key, values, false)
}

func (p *Postgres) pushList(key string, values []string, left bool) (int64, error) {
	var n int64
	err := p.withTx(context.Background(), func(tx pgx.Tx) error {
		ctx := context.Background()
		typ, r, found, err := p.loadLocked(ctx, tx, key)
		if err != nil {
			return err
		}
		if found && typ != TypeList {
			return ErrWrongType
		}
		if left {
			fresh := make([]string, len(values))
			for i, v := range values {
				fresh[len(values)-1-i] = v
			}
			r.List = append(fresh, r.List...)
		} else {
			r.List = append(r.List, values...)
		}
		n = int64(len(r.List))
		return p.storeLocked(ctx, tx, key, TypeList, r, nil)
	})
	return n, err
}

func (p *Postgres) LPop(key string) (string, bool, error) { return p.popList(key, true) }
func (p *Postgres) RPop(key string) (string, bool, error) { return p.popList(key, false) }

func (p *Postgres) popList(key string, left bool) (string, bool, error) {
	var v string
	var ok bool
	err := p.withTx(context.Background(), func(tx pgx.Tx) error {
		ctx := context.Background()
		typ, r, found, err := p.loadLocked(ctx, tx, key)
		if err != nil || !found {
			return err
		}
		if typ != TypeList || len(r.List) == 0 {
			if typ != TypeList && found {
				return ErrWrongType
			}
			return nil
		}
		if left {
			v = r.List[0]
			r.List = r.List[1:]
		} else {
			v = r.List[len(r.List)-1]
			r.List = r.List[:len(r.List)-1]
		}
		ok = true
		if len(r.List) == 0 {
			_, err = tx.Exec(ctx, `DELETE FROM kv WHERE key = $1`, key)
			return err
		}
		return p.storeLocked(ctx, tx, key, TypeList, r, nil)
	})
	return v, ok, err
}

func (p *Postgres) LLen(key string) (int64, error) {
	var n int64
	err := p.withTx(context.Background(), func(tx pgx.Tx) error {
		ctx := context.Background()
		typ, r, found, err := p.loadLocked(ctx, tx, key)
		if err != nil || !found {
			return err
		}
		if typ != TypeList {
			return ErrWrongType
		}
		n = int64(len(r.List))
		return nil
	})
	return n, err
}

func (p *Postgres) SAdd(key string, members ...string) (int64, error) {
	var n int64
	err := p.withTx(context.Background(), func(tx pgx.Tx) error {
		ctx := context.Background()
		typ, r, found, err := p.loadLocked(ctx, tx, key)
		if err != nil {
			return err
		}
		if found && typ != TypeSet {
			return ErrWrongType
		}
		if r.Set == nil {
			r.Set = make(map[string]bool)
		}
		for _, mem := range members {
			if !r.Set[mem] {
				r.Set[mem] = true
				n++
			}
		}
		return p.storeLocked(ctx, tx, key, TypeSet, r, nil)
	})
	return n, err
}

func (p *Postgres) SRem(key string, members ...string) (int64, error) {
	var n int64
	err := p.withTx(context.Background(), func(tx pgx.Tx) error {
		ctx := context.Background()
		typ, r, found, err := p.loadLocked(ctx, tx, key)
		if err != nil || !found {
			return err
		}
		if typ != TypeSet {
			return ErrWrongType
		}
		for _, mem := range members {
			if r.Set[mem] {
				delete(r.Set, mem)
				n++
			}
		}
		if len(r.Set) == 0 {
			_, err = tx.Exec(ctx, `DELETE FROM kv WHERE key = $1`, key)
			return err
		}
		return p.storeLocked(ctx, tx, key, TypeSet, r, nil)
	})
	return n, err
}

func (p *Postgres) SIsMember(key, member string) (bool, error) {
	var ok bool
	err := p.withTx(context.Background(), func(tx pgx.Tx) error {
		ctx := context.Background()
		typ, r, found, err := p.loadLocked(ctx, tx, key)
		if err != nil || !found {
			return err
		}
		if typ != TypeSet {
			return ErrWrongType
		}
		ok = r.Set[member]
		return nil
	})
	return ok, err
}

func (p *Postgres) SCard(key string) (int64, error) {
	var n int64
	err := p.withTx(context.Background(), func(tx pgx.Tx) error {
		ctx := context.Background()
		typ, r, found, err := p.loadLocked(ctx, tx, key)
		if err != nil || !found {
			return err
		}
		if typ != TypeSet {
			return ErrWrongType
		}
		n = int64(len(r.Set))
		return nil
	})
	return n, err
}

func (p *Postgres) ZAdd(key string, score float64, member string) (bool, error) {
	var created bool
	err := p.withTx(context.Background(), func(tx pgx.Tx) error {
		ctx := context.Background()
		typ, r, found, err := p.loadLocked(ctx, tx, key)
		if err != nil {
			return err
		}
		if found && typ != TypeZSet {
			return ErrWrongType
		}
		if r.ZSet == nil {
			r.ZSet = make(map[string]float64)
		}
		_, existed := r.ZSet[member]
		r.ZSet[member] = score
		created = !existed
		return p.storeLocked(ctx, tx, key, TypeZSet, r, nil)
	})
	return created, err
}

func (p *Postgres) ZScore(key, member string) (float64, bool, error) {
	var score float64
	var ok bool
	err := p.withTx(context.Background(), func(tx pgx.Tx) error {
		ctx := context.Background()
		typ, r, found, err := p.loadLocked(ctx, tx, key)
		if err != nil || !found {
			return err
		}
		if typ != TypeZSet {
			return ErrWrongType
		}
		score, ok = r.ZSet[member]
		return nil
	})
	return score, ok, err
}

func (p *Postgres) ZCard(key string) (int64, error) {
	var n int64
	err := p.withTx(context.Background(), func(tx pgx.Tx) error {
		ctx := context.Background()
		typ, r, found, err := p.loadLocked(ctx, tx, key)
		if err != nil || !found {
			return err
		}
		if typ != TypeZSet {
			return ErrWrongType
		}
		n = int64(len(r.ZSet))
		return nil
	})
	return n, err
}

func (p *Postgres) Keys(pattern string) ([]string, error) {
	re, err := globToRegexp(pattern)
	if err != nil {
		return nil, err
	}
	rows, err := p.pool.Query(context.Background(),
		`SELECT key FROM kv WHERE expires_at IS NULL OR expires_at > now()`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		if re.MatchString(k) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, rows.Err()
}

func (p *Postgres) KeyType(key string) (KeyType, error) {
	var typ int
	var exp *time.Time
	err := p.pool.QueryRow(context.Background(),
		`SELECT type, expires_at FROM kv WHERE key = $1`, key).Scan(&typ, &exp)
	if errors.Is(err, pgx.ErrNoRows) {
		return TypeNone, nil
	}
	if err != nil {
		return TypeNone, err
	}
	if exp != nil && time.Now().After(*exp) {
		return TypeNone, nil
	}
	return KeyType(typ), nil
}

func (p *Postgres) Expire(key string, ttl time.Duration) (bool, error) {
	exp := time.Now().Add(ttl)
	ct, err := p.pool.Exec(context.Background(),
		`UPDATE kv SET expires_at = $1 WHERE key = $2 AND (expires_at IS NULL OR expires_at > now())`,
		exp, key)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() > 0, nil
}

func (p *Postgres) TTL(key string) (time.Duration, bool, error) {
	var exp *time.Time
	err := p.pool.QueryRow(context.Background(),
		`SELECT expires_at FROM kv WHERE key = $1`, key).Scan(&exp)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	if exp == nil {
		return -1, true, nil
	}
	ttl := time.Until(*exp)
	if ttl < 0 {
		return 0, false, nil
	}
	return ttl, true, nil
}

var _ Engine = (*Postgres)(nil)
