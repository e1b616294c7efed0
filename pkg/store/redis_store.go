package store

import (
	"context"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

// RedisStore is the production driver for multi-instance deployments.
// Counting stays best-effort: reads that fail are reported as absent,
// exactly like the file driver. The prefix namespaces one store inside
// a shared Redis so counters and transcripts can be swept separately.
type RedisStore struct {
	client *redis.Client
	prefix string
	logger *logrus.Logger
}

func NewRedisStore(client *redis.Client, prefix string, logger *logrus.Logger) *RedisStore {
	return &RedisStore{client: client, prefix: prefix, logger: logger}
}

func (r *RedisStore) Get(ctx context.Context, key string) ([]byte, bool) {
	data, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if err != nil {
		if err != redis.Nil {
			r.logger.WithError(err).WithField("key", key).Debug("redis read failed, record treated as absent")
		}
		return nil, false
	}
	return data, true
}

func (r *RedisStore) Put(ctx context.Context, key string, value []byte) error {
	return r.client.Set(ctx, r.prefix+key, value, 0).Err()
}

func (r *RedisStore) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.prefix+key).Err()
}

func (r *RedisStore) Keys(ctx context.Context) ([]string, error) {
	var keys []string
	iter := r.client.Scan(ctx, 0, r.prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val()[len(r.prefix):])
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return keys, nil
}
