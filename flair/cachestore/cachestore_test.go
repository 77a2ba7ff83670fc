package cachestore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func testCacheStore(t *testing.T, cs CacheStore) {
	assert := assert.New(t)
	ctx := context.Background()

	v, err := cs.Get(ctx, "reddit-token", "flairbot")
	assert.NoError(err)
	assert.Empty(v)

	assert.NoError(cs.Set(ctx, "reddit-token", "flairbot", `{"access_token":"abc"}`, time.Minute))
	v, err = cs.Get(ctx, "reddit-token", "flairbot")
	assert.NoError(err)
	assert.Equal(`{"access_token":"abc"}`, v)

	// names are separate namespaces
	v, err = cs.Get(ctx, "other", "flairbot")
	assert.NoError(err)
	assert.Empty(v)

	assert.NoError(cs.Purge(ctx, "reddit-token", "flairbot"))
	v, err = cs.Get(ctx, "reddit-token", "flairbot")
	assert.NoError(err)
	assert.Empty(v)
	assert.NoError(cs.Purge(ctx, "reddit-token", "never-set"))
}

func TestMemCacheStore(t *testing.T) {
	testCacheStore(t, NewMemCacheStore(100, time.Hour))
}

func TestMemCacheStorePerValueTTL(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	cs := NewMemCacheStore(10, time.Hour)
	cs.Now = func() time.Time { return now }

	assert.NoError(cs.Set(ctx, "reddit-token", "short", "a", 5*time.Minute))
	assert.NoError(cs.Set(ctx, "reddit-token", "default", "b", 0))
	assert.NoError(cs.Set(ctx, "reddit-token", "long", "c", 48*time.Hour))

	now = now.Add(10 * time.Minute)
	v, _ := cs.Get(ctx, "reddit-token", "short")
	assert.Empty(v)
	v, _ = cs.Get(ctx, "reddit-token", "default")
	assert.Equal("b", v)

	// clamped to the store maximum
	now = now.Add(time.Hour)
	v, _ = cs.Get(ctx, "reddit-token", "long")
	assert.Empty(v)
}

func TestClampTTL(t *testing.T) {
	assert := assert.New(t)

	assert.Equal(time.Minute, clampTTL(time.Minute, time.Hour))
	assert.Equal(time.Hour, clampTTL(0, time.Hour))
	assert.Equal(time.Hour, clampTTL(-time.Second, time.Hour))
	assert.Equal(time.Hour, clampTTL(2*time.Hour, time.Hour))
}

func TestRedisCacheStore(t *testing.T) {
	t.Skip("live test, need redis running locally")

	cs, err := NewRedisCacheStore("redis://localhost:6379/0", time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	testCacheStore(t, cs)
}
