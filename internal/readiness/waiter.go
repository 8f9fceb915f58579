package readiness

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/sync/errgroup"

	"github.com/mmr-tortoise/mcp-bootstrap/internal/model"
)

// Mode selects the Waiter implementation.
type Mode string

const (
	// ModePoll polls the probes until ready or timed out.
	ModePoll Mode = "poll"

	// ModeSleep waits a fixed grace period without checking anything.
	ModeSleep Mode = "sleep"
)

// IsValid reports whether m is a known mode.
func (m Mode) IsValid() bool {
	return m == ModePoll || m == ModeSleep
}

// Defaults.
const (
	DefaultGrace          = 10 * time.Second
	DefaultTimeout        = 2 * time.Minute
	DefaultInterval       = 2 * time.Second
	DefaultAttemptTimeout = 5 * time.Second
)

// Waiter blocks until the dependency services are considered ready.
type Waiter interface {
	Await(ctx context.Context) error
}

// FixedWait is the legacy readiness strategy: an unconditional sleep.
// It cannot detect a dependency that never comes up.
type FixedWait struct {
	Grace  time.Duration
	Logger *slog.Logger
}

// Await sleeps for Grace or until ctx is done.
func (w *FixedWait) Await(ctx context.Context) error {
	grace := w.Grace
	if grace <= 0 {
		grace = DefaultGrace
	}
	logger := w.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "waiting for dependency services", "grace", grace)

	t := time.NewTimer(grace)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Poller runs Probes until all of them pass in the same attempt.
type Poller struct {
	// Probes are run concurrently on every attempt.
	Probes []Probe

	// Timeout bounds the whole wait. Zero means DefaultTimeout.
	Timeout time.Duration

	// Interval spaces consecutive attempts. Zero means DefaultInterval.
	Interval time.Duration

	// AttemptTimeout bounds a single attempt so a hung probe cannot eat
	// the whole budget. Zero means DefaultAttemptTimeout.
	AttemptTimeout time.Duration

	// What names the awaited thing in the TimeoutError.
	What string

	Logger *slog.Logger
}

// Await polls until every probe passes. It returns *model.TimeoutError when
// Timeout expires first, carrying the last attempt's failure, and ctx's
// error when the caller cancels.
func (p *Poller) Await(ctx context.Context) error {
	if len(p.Probes) == 0 {
		return nil
	}
	timeout := orDefault(p.Timeout, DefaultTimeout)
	interval := orDefault(p.Interval, DefaultInterval)
	attemptTimeout := orDefault(p.AttemptTimeout, DefaultAttemptTimeout)
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	what := p.What
	if what == "" {
		what = "dependency services"
	}

	start := time.Now()
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var (
		last     error
		attempts int
	)
	op := func() (struct{}, error) {
		attempts++
		attemptCtx, cancelAttempt := context.WithTimeout(waitCtx, attemptTimeout)
		defer cancelAttempt()

		err := p.attempt(attemptCtx)
		if err != nil && (last == nil || waitCtx.Err() == nil) {
			last = err
		}
		return struct{}{}, err
	}

	_, err := backoff.Retry(waitCtx, op,
		backoff.WithBackOff(backoff.NewConstantBackOff(interval)),
		backoff.WithMaxElapsedTime(timeout),
		backoff.WithNotify(func(err error, next time.Duration) {
			logger.DebugContext(ctx, "dependency services not ready", "attempt", attempts, "retry_in", next, "error", err)
		}),
	)
	if err == nil {
		logger.InfoContext(ctx, "dependency services ready", "attempts", attempts, "elapsed", time.Since(start).Round(time.Millisecond))
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if last == nil {
		last = err
	}
	return &model.TimeoutError{What: what, Waited: time.Since(start).Round(time.Millisecond), Last: last}
}

// attempt runs every probe concurrently and joins the failures in probe
// order. A failing probe does not cancel its siblings.
func (p *Poller) attempt(ctx context.Context) error {
	errs := make([]error, len(p.Probes))
	var g errgroup.Group
	for i, probe := range p.Probes {
		g.Go(func() error {
			if err := probe.Probe(ctx); err != nil {
				errs[i] = fmt.Errorf("%s: %w", probe.Name(), err)
			}
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}

// Sequence runs its Waiters one after another and stops at the first error.
type Sequence []Waiter

// Await implements Waiter.
func (s Sequence) Await(ctx context.Context) error {
	for _, w := range s {
		if err := w.Await(ctx); err != nil {
			return err
		}
	}
	return nil
}
