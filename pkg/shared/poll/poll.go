package poll

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/controlplane-com/pool-orchestrator/pkg/shared/apierr"
)

// ErrTimeout is returned by Until when Spec.Timeout elapses before isDone holds
var ErrTimeout = errors.New("poll timeout exceeded")

// Spec configures the backoff between polls.
// The sleep after iteration i is min(Interval, Cap, BackoffBase * BackoffRate^i).
type Spec struct {
	Interval    time.Duration // base interval between polls, also the default ceiling
	BackoffBase time.Duration // backoff before the first clamp
	BackoffRate float64       // exponential multiplier per iteration
	Cap         time.Duration // optional ceiling, 0 means Interval
	Timeout     time.Duration // optional overall limit, 0 means poll until done
}

// DefaultSpec mirrors the platform client defaults: 2s interval, 100ms base, rate 3
func DefaultSpec() Spec {
	return Spec{
		Interval:    2 * time.Second,
		BackoffBase: 100 * time.Millisecond,
		BackoffRate: 3,
	}
}

// Validate checks that s can drive a poll loop
func (s Spec) Validate() error {
	if s.Interval <= 0 {
		return apierr.InvalidConfig("poll interval must be positive, got %v", s.Interval)
	}
	if s.BackoffBase < 0 {
		return apierr.InvalidConfig("poll backoff base must not be negative, got %v", s.BackoffBase)
	}
	if s.BackoffRate <= 0 {
		return apierr.InvalidConfig("poll backoff rate must be positive, got %v", s.BackoffRate)
	}
	if s.Cap < 0 || s.Timeout < 0 {
		return apierr.InvalidConfig("poll cap and timeout must not be negative")
	}
	return nil
}

func (s Spec) ceiling() time.Duration {
	if s.Cap > 0 && s.Cap < s.Interval {
		return s.Cap
	}
	return s.Interval
}

// Delay returns the sleep after the given iteration. It is a pure function of
// (iteration, spec); an exponential term that overflows yields the ceiling.
func (s Spec) Delay(iteration int) time.Duration {
	ceiling := s.ceiling()
	backoff := float64(s.BackoffBase) * math.Pow(s.BackoffRate, float64(iteration))
	if math.IsInf(backoff, 0) || math.IsNaN(backoff) || backoff >= float64(ceiling) {
		return ceiling
	}
	return time.Duration(backoff)
}

// Sleeper waits for d or until ctx is done
type Sleeper func(ctx context.Context, d time.Duration) error

// Option customizes a single Until call
type Option func(*options)

type options struct {
	sleep  Sleeper
	now    func() time.Time
	logger *slog.Logger
}

// WithSleeper replaces the timer-based sleep (used by tests)
func WithSleeper(s Sleeper) Option {
	return func(o *options) { o.sleep = s }
}

// WithClock replaces time.Now for timeout accounting
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithLogger sets the logger used for progress reporting
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

func timerSleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Until calls target until isDone reports true for its result.
// Iteration 0 runs immediately. Errors from target are returned unchanged and
// never retried here. describe is only used for progress reporting. The only
// suspension point is the sleep between iterations, which honors ctx.
func Until[T any](ctx context.Context, spec Spec, target func(context.Context) (T, error), isDone func(T) bool, describe func(T) string, opts ...Option) error {
	if err := spec.Validate(); err != nil {
		return err
	}
	if target == nil || isDone == nil {
		return apierr.InvalidConfig("poll target and isDone are required")
	}

	o := options{sleep: timerSleep, now: time.Now, logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	start := o.now()
	for i := 0; ; i++ {
		result, err := target(ctx)
		if err != nil {
			return err
		}
		if isDone(result) {
			return nil
		}

		if describe != nil {
			if msg := describeSafely(describe, result, o.logger); msg != "" {
				o.logger.Debug("operation still running", "iteration", i, "status", msg)
			}
		}

		d := spec.Delay(i)
		if spec.Timeout > 0 && o.now().Add(d).Sub(start) > spec.Timeout {
			return fmt.Errorf("gave up after %d polls in %v: %w", i+1, o.now().Sub(start), ErrTimeout)
		}
		if err := o.sleep(ctx, d); err != nil {
			return err
		}
	}
}

// describeSafely shields the poll loop from a panicking describe callback
func describeSafely[T any](describe func(T) string, v T, logger *slog.Logger) (msg string) {
	defer func() {
		if r := recover(); r != nil {
			logger.Debug("progress description failed", "panic", r)
			msg = ""
		}
	}()
	return describe(v)
}
