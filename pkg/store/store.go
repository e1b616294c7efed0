package store

import (
	"context"
	"strings"
)

// Store is the key-value persistence capability behind the rate limit
// counters, token budgets and conversation transcripts. Implementations
// must tolerate concurrent callers on different keys and must report a
// corrupt or unreadable record as absent rather than failing the read.
type Store interface {
	// Get returns the raw record for key. The second return value is
	// false when the key is absent or the record cannot be read.
	Get(ctx context.Context, key string) ([]byte, bool)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context) ([]string, error)
}

// PurgeMatching deletes every record whose key contains the given
// substring. Used by the admin surface for per-user purges.
func PurgeMatching(ctx context.Context, s Store, match string) (int, error) {
	keys, err := s.Keys(ctx)
	if err != nil {
		return 0, err
	}

	deleted := 0
	for _, key := range keys {
		if !strings.Contains(key, match) {
			continue
		}
		if err := s.Delete(ctx, key); err != nil {
			return deleted, err
		}
		deleted++
	}
	return deleted, nil
}
