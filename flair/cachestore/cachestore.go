// Short-lived string values (usually JSON) shared between runs, such as the forum API access token.
//
// Every value carries its own TTL, bounded by the store's maximum. The redis implementation is shared across
// processes; the in-memory one only lives as long as the process.
package cachestore

import (
	"context"
	"time"
)

type CacheStore interface {
	// Get returns "" on a miss or once the value expired.
	Get(ctx context.Context, name, key string) (string, error)
	// Set stores val for ttl. A zero or negative ttl (or one above the store maximum) means the maximum.
	Set(ctx context.Context, name, key, val string, ttl time.Duration) error
	Purge(ctx context.Context, name, key string) error
}

func clampTTL(ttl, limit time.Duration) time.Duration {
	if ttl <= 0 || ttl > limit {
		return limit
	}
	return ttl
}
