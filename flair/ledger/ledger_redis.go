package ledger

import (
	"context"

	"github.com/redis/go-redis/v9"
)

var redisLedgerPrefix string = "ledger/"

// Stores each thread as two redis sets.
type RedisStore struct {
	Client *redis.Client
}

var _ Store = (*RedisStore)(nil)

func NewRedisStore(redisURL string) (*RedisStore, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opt)
	// check redis connection
	_, err = rdb.Ping(context.TODO()).Result()
	if err != nil {
		return nil, err
	}
	return &RedisStore{Client: rdb}, nil
}

func redisLedgerKey(threadID, kind string) string {
	return redisLedgerPrefix + threadID + "/" + kind
}

func (s *RedisStore) Load(ctx context.Context, threadID string) (*Record, error) {
	if err := checkThreadID(threadID); err != nil {
		return nil, err
	}
	rec := NewRecord(threadID)
	completed, err := s.Client.SMembers(ctx, redisLedgerKey(threadID, "completed")).Result()
	if err != nil && err != redis.Nil {
		return nil, err
	}
	pending, err := s.Client.SMembers(ctx, redisLedgerKey(threadID, "pending")).Result()
	if err != nil && err != redis.Nil {
		return nil, err
	}
	for _, id := range completed {
		rec.Completed[id] = true
	}
	for _, id := range pending {
		rec.Pending[id] = true
	}
	return rec, nil
}

func (s *RedisStore) AppendCompleted(ctx context.Context, threadID, id string) error {
	if err := checkThreadID(threadID); err != nil {
		return err
	}
	return s.Client.SAdd(ctx, redisLedgerKey(threadID, "completed"), id).Err()
}

func (s *RedisStore) ReplacePending(ctx context.Context, threadID string, ids []string) error {
	if err := checkThreadID(threadID); err != nil {
		return err
	}
	key := redisLedgerKey(threadID, "pending")
	multi := s.Client.TxPipeline()
	multi.Del(ctx, key)
	if len(ids) > 0 {
		members := make([]interface{}, len(ids))
		for i, id := range ids {
			members[i] = id
		}
		multi.SAdd(ctx, key, members...)
	}
	_, err := multi.Exec(ctx)
	return err
}
