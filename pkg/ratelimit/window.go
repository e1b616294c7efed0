package ratelimit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/veltrix/chatgate/pkg/store"
)

// CounterRecord is the persisted state of one fixed window.
type CounterRecord struct {
	Count        int       `json:"count"`
	ResetAt      time.Time `json:"reset_at"`
	FirstRequest time.Time `json:"first_request"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type WindowResult struct {
	WithinLimit  bool
	CurrentCount int
	ResetAt      time.Time
}

type WindowLimiterOpts struct {
	TimeProvider func() time.Time
}

// WindowLimiter counts requests in fixed (non-sliding) windows keyed by
// an opaque string. Check and Commit are split so the composite gate
// can evaluate every limiter before consuming quota on any of them.
type WindowLimiter struct {
	store        store.Store
	logger       *logrus.Logger
	timeProvider func() time.Time
}

func NewWindowLimiter(s store.Store, logger *logrus.Logger, opts *WindowLimiterOpts) *WindowLimiter {
	timeProvider := time.Now
	if opts != nil && opts.TimeProvider != nil {
		timeProvider = opts.TimeProvider
	}
	return &WindowLimiter{
		store:        s,
		logger:       logger,
		timeProvider: timeProvider,
	}
}

// Check evaluates the window without consuming quota. The comparison is
// made against the pre-increment count, so a window admits exactly max
// requests before refusing the next one.
func (w *WindowLimiter) Check(ctx context.Context, key string, window time.Duration, max int) WindowResult {
	now := w.timeProvider()

	record, ok := w.load(ctx, key)
	if !ok || now.After(record.ResetAt) {
		record = CounterRecord{Count: 0, ResetAt: now.Add(window)}
	}

	return WindowResult{
		WithinLimit:  record.Count < max,
		CurrentCount: record.Count,
		ResetAt:      record.ResetAt,
	}
}

// Commit consumes one slot in the window. If the window expired between
// Check and Commit the counter restarts at 1 rather than incrementing a
// stale count. Write failures are logged and swallowed: the verdict for
// the current request already stands, the only risk is under-counting.
func (w *WindowLimiter) Commit(ctx context.Context, key string, window time.Duration) {
	now := w.timeProvider()

	record, ok := w.load(ctx, key)
	if !ok || now.After(record.ResetAt) {
		record = CounterRecord{
			Count:        1,
			ResetAt:      now.Add(window),
			FirstRequest: now,
		}
	} else {
		record.Count++
	}
	record.UpdatedAt = now

	data, err := json.Marshal(record)
	if err != nil {
		w.logger.WithError(err).WithField("key", key).Warn("failed to encode counter record")
		return
	}
	if err := w.store.Put(ctx, key, data); err != nil {
		w.logger.WithError(err).WithField("key", key).Warn("failed to persist counter record")
	}
}

func (w *WindowLimiter) load(ctx context.Context, key string) (CounterRecord, bool) {
	data, ok := w.store.Get(ctx, key)
	if !ok {
		return CounterRecord{}, false
	}

	var record CounterRecord
	if err := json.Unmarshal(data, &record); err != nil {
		// Corrupt record, fail open to a fresh window.
		return CounterRecord{}, false
	}
	return record, true
}
