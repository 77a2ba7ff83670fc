package cachestore

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

type memEntry struct {
	val     string
	expires time.Time
}

// In-process store. The LRU evicts at the store maximum TTL, shorter per-value TTLs are checked on read.
type MemCacheStore struct {
	Data   *expirable.LRU[string, memEntry]
	MaxTTL time.Duration
	Now    func() time.Time
}

var _ CacheStore = (*MemCacheStore)(nil)

func NewMemCacheStore(capacity int, maxTTL time.Duration) *MemCacheStore {
	return &MemCacheStore{
		Data:   expirable.NewLRU[string, memEntry](capacity, nil, maxTTL),
		MaxTTL: maxTTL,
		Now:    time.Now,
	}
}

func (s *MemCacheStore) Get(ctx context.Context, name, key string) (string, error) {
	k := name + "/" + key
	e, ok := s.Data.Get(k)
	if !ok {
		return "", nil
	}
	if !s.Now().Before(e.expires) {
		s.Data.Remove(k)
		return "", nil
	}
	return e.val, nil
}

func (s *MemCacheStore) Set(ctx context.Context, name, key, val string, ttl time.Duration) error {
	s.Data.Add(name+"/"+key, memEntry{val: val, expires: s.Now().Add(clampTTL(ttl, s.MaxTTL))})
	return nil
}

func (s *MemCacheStore) Purge(ctx context.Context, name, key string) error {
	s.Data.Remove(name + "/" + key)
	return nil
}
