package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/veltrix/chatgate/pkg/store"
)

const (
	minuteKeyPrefix = "ratelimit:minute:"
	hourKeyPrefix   = "ratelimit:hour:"
	burstKeyPrefix  = "ratelimit:burst:"
	ipHourKeyPrefix = "ratelimit:iphour:"

	// The daily budget always resets at the next UTC midnight, so the
	// suggested retry delay is fixed rather than derived from a window.
	dailyBudgetRetryAfter = 86400
)

// Config holds every limit the composite gate enforces.
type Config struct {
	UserMinuteLimit int           `mapstructure:"user_minute_limit"`
	UserHourLimit   int           `mapstructure:"user_hour_limit"`
	BurstLimit      int           `mapstructure:"burst_limit"`
	BurstWindow     time.Duration `mapstructure:"burst_window"`
	DailyTokenLimit int           `mapstructure:"daily_token_limit"`
	IPHourlyLimit   int           `mapstructure:"ip_hourly_limit"`
}

func DefaultConfig() Config {
	return Config{
		UserMinuteLimit: 30,
		UserHourLimit:   200,
		BurstLimit:      5,
		BurstWindow:     10 * time.Second,
		DailyTokenLimit: 100000,
		IPHourlyLimit:   1000,
	}
}

// Verdict is the aggregate admission result. Violations are collected
// in check order; RetryAfter is the largest suggested delay among them.
type Verdict struct {
	Allowed    bool      `json:"allowed"`
	Violations []string  `json:"violations,omitempty"`
	RetryAfter int       `json:"retry_after_seconds"`
	ResetAt    time.Time `json:"reset_at,omitempty"`
}

type GateOpts struct {
	TimeProvider func() time.Time
}

// Gate runs the five admission checks for an inbound request: three
// fixed windows per (user, ip), the user's daily token budget and the
// per-IP hourly window. Evaluation is side-effect free; counters are
// only committed when every check passes, so a denied request never
// consumes quota.
type Gate struct {
	window       *WindowLimiter
	budget       *TokenBudget
	cfg          Config
	timeProvider func() time.Time
}

func NewGate(s store.Store, cfg Config, logger *logrus.Logger, opts *GateOpts) *Gate {
	timeProvider := time.Now
	if opts != nil && opts.TimeProvider != nil {
		timeProvider = opts.TimeProvider
	}
	return &Gate{
		window:       NewWindowLimiter(s, logger, &WindowLimiterOpts{TimeProvider: timeProvider}),
		budget:       NewTokenBudget(s, logger, &TokenBudgetOpts{TimeProvider: timeProvider}),
		cfg:          cfg,
		timeProvider: timeProvider,
	}
}

// Budget exposes the underlying tracker for the refund path.
func (g *Gate) Budget() *TokenBudget {
	return g.budget
}

func (g *Gate) Evaluate(ctx context.Context, userID, clientIP string, estimatedTokens int) Verdict {
	pairKey := userID + ":" + clientIP

	type windowCheck struct {
		key    string
		window time.Duration
		max    int
		label  string
	}

	checks := []windowCheck{
		{minuteKeyPrefix + pairKey, time.Minute, g.cfg.UserMinuteLimit,
			fmt.Sprintf("per-minute limit of %d requests exceeded", g.cfg.UserMinuteLimit)},
		{hourKeyPrefix + pairKey, time.Hour, g.cfg.UserHourLimit,
			fmt.Sprintf("hourly limit of %d requests exceeded", g.cfg.UserHourLimit)},
		{burstKeyPrefix + pairKey, g.cfg.BurstWindow, g.cfg.BurstLimit,
			fmt.Sprintf("burst limit of %d requests in %s exceeded", g.cfg.BurstLimit, g.cfg.BurstWindow)},
	}

	verdict := Verdict{Allowed: true}
	now := g.timeProvider()

	// Every check runs even after a violation: the caller gets the
	// full violation list and the largest retry delay.
	for _, check := range checks {
		result := g.window.Check(ctx, check.key, check.window, check.max)
		if !result.WithinLimit {
			verdict.addViolation(check.label, retryAfterSeconds(now, result.ResetAt), result.ResetAt)
		}
	}

	if g.budget.Peek(ctx, userID)+estimatedTokens > g.cfg.DailyTokenLimit {
		verdict.addViolation(
			fmt.Sprintf("daily token budget of %d exceeded", g.cfg.DailyTokenLimit),
			dailyBudgetRetryAfter,
			nextMidnightUTC(now),
		)
	}

	// The IP window deliberately uses a strict comparison against the
	// post-increment count: exactly IPHourlyLimit requests pass before
	// the next one is refused.
	ipResult := g.window.Check(ctx, ipHourKeyPrefix+clientIP, time.Hour, g.cfg.IPHourlyLimit)
	if ipResult.CurrentCount+1 > g.cfg.IPHourlyLimit {
		verdict.addViolation(
			fmt.Sprintf("hourly limit of %d requests per IP exceeded", g.cfg.IPHourlyLimit),
			retryAfterSeconds(now, ipResult.ResetAt),
			ipResult.ResetAt,
		)
	}

	if !verdict.Allowed {
		return verdict
	}

	// All checks passed: consume quota on every limiter at once.
	g.window.Commit(ctx, minuteKeyPrefix+pairKey, time.Minute)
	g.window.Commit(ctx, hourKeyPrefix+pairKey, time.Hour)
	g.window.Commit(ctx, burstKeyPrefix+pairKey, g.cfg.BurstWindow)
	g.window.Commit(ctx, ipHourKeyPrefix+clientIP, time.Hour)
	g.budget.Charge(ctx, userID, estimatedTokens)

	return verdict
}

func (v *Verdict) addViolation(reason string, retryAfter int, resetAt time.Time) {
	v.Allowed = false
	v.Violations = append(v.Violations, reason)
	if retryAfter > v.RetryAfter {
		v.RetryAfter = retryAfter
	}
	if resetAt.After(v.ResetAt) {
		v.ResetAt = resetAt
	}
}

func retryAfterSeconds(now, resetAt time.Time) int {
	remaining := resetAt.Sub(now)
	if remaining <= 0 {
		return 1
	}
	seconds := int((remaining + time.Second - 1) / time.Second)
	if seconds < 1 {
		return 1
	}
	return seconds
}

func nextMidnightUTC(now time.Time) time.Time {
	utc := now.UTC()
	return time.Date(utc.Year(), utc.Month(), utc.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1)
}
