package provider

import (
	"context"
	"time"

	"github.com/sony/gobreaker"
)

// BreakerClient wraps an upstream client in a circuit breaker so a
// failing provider sheds load fast instead of tying up request slots.
type BreakerClient struct {
	inner   Client
	breaker *gobreaker.CircuitBreaker
}

func NewBreakerClient(inner Client, name string) *BreakerClient {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
	return &BreakerClient{inner: inner, breaker: breaker}
}

func (b *BreakerClient) Ask(ctx context.Context, prompt string, history []Message) (*Completion, error) {
	result, err := b.breaker.Execute(func() (interface{}, error) {
		return b.inner.Ask(ctx, prompt, history)
	})
	if err != nil {
		return nil, err
	}
	completion, ok := result.(*Completion)
	if !ok {
		return nil, gobreaker.ErrOpenState
	}
	return completion, nil
}
