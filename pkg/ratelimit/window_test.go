package ratelimit_test

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"

	"github.com/veltrix/chatgate/pkg/ratelimit"
	"github.com/veltrix/chatgate/pkg/store"
)

func newTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func TestWindowLimiter_FreshWindow(t *testing.T) {
	limiter := ratelimit.NewWindowLimiter(store.NewMemoryStore(), newTestLogger(), nil)

	result := limiter.Check(context.Background(), "ratelimit:minute:u1:1.2.3.4", time.Minute, 30)

	assert.True(t, result.WithinLimit)
	assert.Equal(t, 0, result.CurrentCount)
	assert.False(t, result.ResetAt.IsZero())
}

func TestWindowLimiter_AdmitsExactlyMaxRequests(t *testing.T) {
	memStore := store.NewMemoryStore()
	limiter := ratelimit.NewWindowLimiter(memStore, newTestLogger(), nil)
	ctx := context.Background()
	key := "ratelimit:minute:u1:1.2.3.4"

	for i := 0; i < 30; i++ {
		result := limiter.Check(ctx, key, time.Minute, 30)
		assert.True(t, result.WithinLimit, "request %d should be admitted", i+1)
		assert.Equal(t, i, result.CurrentCount)
		limiter.Commit(ctx, key, time.Minute)
	}

	result := limiter.Check(ctx, key, time.Minute, 30)
	assert.False(t, result.WithinLimit)
	assert.Equal(t, 30, result.CurrentCount)
}

func TestWindowLimiter_CheckDoesNotConsume(t *testing.T) {
	memStore := store.NewMemoryStore()
	limiter := ratelimit.NewWindowLimiter(memStore, newTestLogger(), nil)
	ctx := context.Background()
	key := "ratelimit:burst:u1:1.2.3.4"

	for i := 0; i < 100; i++ {
		result := limiter.Check(ctx, key, 10*time.Second, 5)
		assert.True(t, result.WithinLimit)
		assert.Equal(t, 0, result.CurrentCount)
	}
}

func TestWindowLimiter_ExpiredWindowReadsFresh(t *testing.T) {
	memStore := store.NewMemoryStore()
	now := time.Unix(1740730536, 0)
	limiter := ratelimit.NewWindowLimiter(memStore, newTestLogger(), &ratelimit.WindowLimiterOpts{
		TimeProvider: func() time.Time { return now },
	})
	ctx := context.Background()
	key := "ratelimit:minute:u1:1.2.3.4"

	for i := 0; i < 30; i++ {
		limiter.Commit(ctx, key, time.Minute)
	}
	result := limiter.Check(ctx, key, time.Minute, 30)
	assert.False(t, result.WithinLimit)

	now = now.Add(61 * time.Second)

	result = limiter.Check(ctx, key, time.Minute, 30)
	assert.True(t, result.WithinLimit)
	assert.Equal(t, 0, result.CurrentCount)
}

func TestWindowLimiter_CommitAfterExpiryRestartsAtOne(t *testing.T) {
	memStore := store.NewMemoryStore()
	now := time.Unix(1740730536, 0)
	limiter := ratelimit.NewWindowLimiter(memStore, newTestLogger(), &ratelimit.WindowLimiterOpts{
		TimeProvider: func() time.Time { return now },
	})
	ctx := context.Background()
	key := "ratelimit:hour:u1:1.2.3.4"

	limiter.Commit(ctx, key, time.Hour)
	limiter.Commit(ctx, key, time.Hour)

	now = now.Add(2 * time.Hour)
	limiter.Commit(ctx, key, time.Hour)

	result := limiter.Check(ctx, key, time.Hour, 200)
	assert.Equal(t, 1, result.CurrentCount)
}

func TestWindowLimiter_CorruptRecordFailsOpen(t *testing.T) {
	memStore := store.NewMemoryStore()
	ctx := context.Background()
	key := "ratelimit:minute:u1:1.2.3.4"
	assert.NoError(t, memStore.Put(ctx, key, []byte("{not json")))

	limiter := ratelimit.NewWindowLimiter(memStore, newTestLogger(), nil)

	result := limiter.Check(ctx, key, time.Minute, 30)
	assert.True(t, result.WithinLimit)
	assert.Equal(t, 0, result.CurrentCount)
}
