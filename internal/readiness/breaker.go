package readiness

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
)

// NewCircuitBreaker returns a breaker that trips after three consecutive
// failures and stays open for openFor before letting one probe through.
func NewCircuitBreaker(name string, openFor time.Duration) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    0,
		Timeout:     openFor,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	})
}

type guarded struct {
	probe Probe
	cb    *gobreaker.CircuitBreaker
	last  error
}

// Guard wraps probe in cb. While the breaker is open the probe is not run
// and the most recent real failure is reported instead.
func Guard(probe Probe, cb *gobreaker.CircuitBreaker) Probe {
	return &guarded{probe: probe, cb: cb}
}

func (g *guarded) Name() string { return g.probe.Name() }

func (g *guarded) Probe(ctx context.Context) error {
	_, err := g.cb.Execute(func() (interface{}, error) {
		return nil, g.probe.Probe(ctx)
	})
	switch {
	case err == nil:
		g.last = nil
		return nil
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		if g.last != nil {
			return fmt.Errorf("circuit open: %w", g.last)
		}
		return fmt.Errorf("circuit open")
	default:
		g.last = err
		return err
	}
}
