package storage

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Memory is an in-process, map-backed Engine. Grounded on mnorrsken's
// internal/storage/mock.go: one map per data type plus a shared
// keyTypes/expiresAt side table, expiry checked lazily on access
// rather than swept by a background goroutine.
type Memory struct {
	mu        sync.RWMutex
	strings   map[string]string
	hashes    map[string]map[string]string
	lists     map[string][]string
	sets      map[string]map[string]struct{}
	zsets     map[string]map[string]float64
	keyTypes  map[string]KeyType
	expiresAt map[string]time.Time
}

// NewMemory returns an empty in-memory engine.
func NewMemory() *Memory {
	return &Memory{
		strings:   make(map[string]string),
		hashes:    make(map[string]map[string]string),
		lists:     make(map[string][]string),
		sets:      make(map[string]map[string]struct{}),
		zsets:     make(map[string]map[string]float64),
		keyTypes:  make(map[string]KeyType),
		expiresAt: make(map[string]time.Time),
	}
}

// isExpired must be called with mu held for writing, since it deletes
// the key in place if its TTL has elapsed; every caller takes the
// write lock.
func (m *Memory) isExpired(key string) bool {
	exp, ok := m.expiresAt[key]
	if !ok {
		return false
	}
	if time.Now().After(exp) {
		m.deleteKeyLocked(key)
		return true
	}
	return false
}

func (m *Memory) deleteKeyLocked(key string) {
	delete(m.strings, key)
	delete(m.hashes, key)
	delete(m.lists, key)
	delete(m.sets, key)
	delete(m.zsets, key)
	delete(m.keyTypes, key)
	delete(m.expiresAt, key)
}

func (m *Memory) checkType(key string, want KeyType) error {
	if t, ok := m.keyTypes[key]; ok && t != want {
		return ErrWrongType
	}
	return nil
}

func (m *Memory) GetString(key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.isExpired(key) {
		return "", false, nil
	}
	if err := m.checkType(key, TypeString); err != nil {
		return "", false, err
	}
	v, ok := m.strings[key]
	return v, ok, nil
}

func (m *Memory) SetString(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleteKeyLocked(key)
	m.strings[key] = value
	m.keyTypes[key] = TypeString
	return nil
}

func (m *Memory) SetStringEx(key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleteKeyLocked(key)
	m.strings[key] = value
	m.keyTypes[key] = TypeString
	if ttl > 0 {
		m.expiresAt[key] = time.Now().Add(ttl)
	}
	return nil
}

func (m *Memory) Delete(keys ...string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, key := range keys {
		if _, ok := m.keyTypes[key]; ok {
			m.deleteKeyLocked(key)
			n++
		}
	}
	return n, nil
}

func (m *Memory) Exists(keys ...string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, key := range keys {
		if m.isExpired(key) {
			continue
		}
		if _, ok := m.keyTypes[key]; ok {
			n++
		}
	}
	return n, nil
}

func (m *Memory) IncrBy(key string, delta int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.isExpired(key)
	if err := m.checkType(key, TypeString); err != nil {
		return 0, err
	}
	var cur int64
	if v, ok := m.strings[key]; ok {
		var err error
		cur, err = strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, ErrNotInteger
		}
	}
	cur += delta
	m.strings[key] = strconv.FormatInt(cur, 10)
	m.keyTypes[key] = TypeString
	return cur, nil
}

func (m *Memory) Incr(key string) (int64, error) { return m.IncrBy(key, 1) }

func (m *Memory) HSet(key, field, value string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.isExpired(key)
	if err := m.checkType(key, TypeHash); err != nil {
		return false, err
	}
	if m.hashes[key] == nil {
		m.hashes[key] = make(map[string]string)
	}
	_, existed := m.hashes[key][field]
	m.hashes[key][field] = value
	m.keyTypes[key] = TypeHash
	return !existed, nil
}

func (m *Memory) HGet(key, field string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.isExpired(key) {
		return "", false, nil
	}
	if err := m.checkType(key, TypeHash); err != nil {
		return "", false, err
	}
	h, ok := m.hashes[key]
	if !ok {
		return "", false, nil
	}
	v, ok := h[field]
	return v, ok, nil
}

func (m *Memory) LPush(key string, values ...string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.isExpired(key)
	if err := m.checkType(key, TypeList); err != nil {
		return 0, err
	}
	fresh := make([]string, len(values))
	for i, v := range values {
		fresh[len(values)-1-i] = v
	}
	m.lists[key] = append(fresh, m.lists[key]...)
	m.keyTypes[key] = TypeList
	return int64(len(m.lists[key])), nil
}

func (m *Memory) RPush(key string, values ...string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.isExpired(key)
	if err := m.checkType(key, TypeList); err != nil {
		return 0, err
	}
	m.lists[key] = append(m.lists[key], values...)
	m.keyTypes[key] = TypeList
	return int64(len(m.lists[key])), nil
}

func (m *Memory) LPop(key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.isExpired(key) {
		return "", false, nil
	}
	if err := m.checkType(key, TypeList); err != nil {
		return "", false, err
	}
	list := m.lists[key]
	if len(list) == 0 {
		return "", false, nil
	}
	v := list[0]
	m.lists[key] = list[1:]
	if len(m.lists[key]) == 0 {
		m.deleteKeyLocked(key)
	}
	return v, true, nil
}

func (m *Memory) RPop(key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.isExpired(key) {
		return "", false, nil
	}
	if err := m.checkType(key, TypeList); err != nil {
		return "", false, err
	}
	list := m.lists[key]
	if len(list) == 0 {
		return "", false, nil
	}
	v := list[len(list)-1]
	m.lists[key] = list[:len(list)-1]
	if len(m.lists[key]) == 0 {
		m.deleteKeyLocked(key)
	}
	return v, true, nil
}

func (m *Memory) LLen(key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.isExpired(key) {
		return 0, nil
	}
	if err := m.checkType(key, TypeList); err != nil {
		return 0, err
	}
	return int64(len(m.lists[key])), nil
}

func (m *Memory) SAdd(key string, members ...string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.isExpired(key)
	if err := m.checkType(key, TypeSet); err != nil {
		return 0, err
	}
	if m.sets[key] == nil {
		m.sets[key] = make(map[string]struct{})
	}
	var n int64
	for _, mem := range members {
		if _, ok := m.sets[key][mem]; !ok {
			m.sets[key][mem] = struct{}{}
			n++
		}
	}
	m.keyTypes[key] = TypeSet
	return n, nil
}

func (m *Memory) SRem(key string, members ...string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.isExpired(key) {
		return 0, nil
	}
	if err := m.checkType(key, TypeSet); err != nil {
		return 0, err
	}
	s, ok := m.sets[key]
	if !ok {
		return 0, nil
	}
	var n int64
	for _, mem := range members {
		if _, ok := s[mem]; ok {
			delete(s, mem)
			n++
		}
	}
	if len(s) == 0 {
		m.deleteKeyLocked(key)
	}
	return n, nil
}

func (m *Memory) SIsMember(key, member string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.isExpired(key) {
		return false, nil
	}
	if err := m.checkType(key, TypeSet); err != nil {
		return false, err
	}
	s, ok := m.sets[key]
	if !ok {
		return false, nil
	}
	_, ok = s[member]
	return ok, nil
}

func (m *Memory) SCard(key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.isExpired(key) {
		return 0, nil
	}
	if err := m.checkType(key, TypeSet); err != nil {
		return 0, err
	}
	return int64(len(m.sets[key])), nil
}

func (m *Memory) ZAdd(key string, score float64, member string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.isExpired(key)
	if err := m.checkType(key, TypeZSet); err != nil {
		return false, err
	}
	if m.zsets[key] == nil {
		m.zsets[key] = make(map[string]float64)
	}
	_, existed := m.zsets[key][member]
	m.zsets[key][member] = score
	m.keyTypes[key] = TypeZSet
	return !existed, nil
}

func (m *Memory) ZScore(key, member string) (float64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.isExpired(key) {
		return 0, false, nil
	}
	if err := m.checkType(key, TypeZSet); err != nil {
		return 0, false, err
	}
	z, ok := m.zsets[key]
	if !ok {
		return 0, false, nil
	}
	s, ok := z[member]
	return s, ok, nil
}

func (m *Memory) ZCard(key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.isExpired(key) {
		return 0, nil
	}
	if err := m.checkType(key, TypeZSet); err != nil {
		return 0, err
	}
	return int64(len(m.zsets[key])), nil
}

func (m *Memory) Keys(pattern string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	re, err := globToRegexp(pattern)
	if err != nil {
		return nil, err
	}
	var keys []string
	for key := range m.keyTypes {
		if m.isExpired(key) {
			continue
		}
		if re.MatchString(key) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func globToRegexp(pattern string) (*regexp.Regexp, error) {
	pat := "^" + regexp.QuoteMeta(pattern) + "$"
	pat = strings.ReplaceAll(pat, `\*`, `.*`)
	pat = strings.ReplaceAll(pat, `\?`, `.`)
	return regexp.Compile(pat)
}

func (m *Memory) KeyType(key string) (KeyType, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.isExpired(key) {
		return TypeNone, nil
	}
	return m.keyTypes[key], nil
}

func (m *Memory) Expire(key string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.isExpired(key) {
		return false, nil
	}
	if _, ok := m.keyTypes[key]; !ok {
		return false, nil
	}
	m.expiresAt[key] = time.Now().Add(ttl)
	return true, nil
}

func (m *Memory) TTL(key string) (time.Duration, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.isExpired(key) {
		return 0, false, nil
	}
	if _, ok := m.keyTypes[key]; !ok {
		return 0, false, nil
	}
	exp, ok := m.expiresAt[key]
	if !ok {
		return -1, true, nil
	}
	ttl := time.Until(exp)
	if ttl < 0 {
		return 0, false, nil
	}
	return ttl, true, nil
}

var _ Engine = (*Memory)(nil)
