package ratelimit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/veltrix/chatgate/pkg/store"
)

const budgetKeyPrefix = "tokens:"

// BudgetRecord is the persisted daily token total for one user. There
// is no stored day identifier: whether the total belongs to today is
// recomputed on every access against the current UTC midnight.
type BudgetRecord struct {
	Total     int       `json:"total"`
	UpdatedAt time.Time `json:"updated_at"`
}

type TokenBudgetOpts struct {
	TimeProvider func() time.Time
}

// TokenBudget tracks cumulative daily token usage per user with a UTC
// midnight reset. Charges are provisional: a downstream failure after
// admission is reversed with Refund.
type TokenBudget struct {
	store        store.Store
	logger       *logrus.Logger
	timeProvider func() time.Time
}

func NewTokenBudget(s store.Store, logger *logrus.Logger, opts *TokenBudgetOpts) *TokenBudget {
	timeProvider := time.Now
	if opts != nil && opts.TimeProvider != nil {
		timeProvider = opts.TimeProvider
	}
	return &TokenBudget{
		store:        s,
		logger:       logger,
		timeProvider: timeProvider,
	}
}

// Peek returns today's cumulative total for the user. A record last
// written before today's UTC midnight reads as zero.
func (t *TokenBudget) Peek(ctx context.Context, userID string) int {
	record, ok := t.load(ctx, userID)
	if !ok || record.UpdatedAt.Before(t.midnightUTC()) {
		return 0
	}
	return record.Total
}

// Charge adds amount to today's total, resetting to amount when the
// stored total predates today.
func (t *TokenBudget) Charge(ctx context.Context, userID string, amount int) {
	total := t.Peek(ctx, userID) + amount

	record := BudgetRecord{Total: total, UpdatedAt: t.timeProvider()}
	data, err := json.Marshal(record)
	if err != nil {
		t.logger.WithError(err).WithField("user_id", userID).Warn("failed to encode budget record")
		return
	}
	if err := t.store.Put(ctx, budgetKey(userID), data); err != nil {
		t.logger.WithError(err).WithField("user_id", userID).Warn("failed to persist budget record")
	}
}

// Refund reverses a provisional charge after a downstream failure.
func (t *TokenBudget) Refund(ctx context.Context, userID string, amount int) {
	t.Charge(ctx, userID, -amount)
}

func (t *TokenBudget) load(ctx context.Context, userID string) (BudgetRecord, bool) {
	data, ok := t.store.Get(ctx, budgetKey(userID))
	if !ok {
		return BudgetRecord{}, false
	}

	var record BudgetRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return BudgetRecord{}, false
	}
	return record, true
}

func (t *TokenBudget) midnightUTC() time.Time {
	now := t.timeProvider().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

func budgetKey(userID string) string {
	return budgetKeyPrefix + userID
}
