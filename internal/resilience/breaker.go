package resilience

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/keelwise/keel/internal/keelerrors"
)

// State represents the state of a circuit breaker.
type State int

const (
	// StateClosed allows requests through.
	StateClosed State = iota
	// StateOpen blocks requests.
	StateOpen
	// StateHalfOpen allows a single trial request through.
	StateHalfOpen
)

// String returns the state name used in logs, metrics and the providers endpoint.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerConfig holds breaker thresholds.
type BreakerConfig struct {
	// Timeout is the hard deadline for one protected call.
	Timeout time.Duration
	// ErrorThresholdPercentage opens the breaker once failures reach this share of calls in the window.
	ErrorThresholdPercentage int
	// ResetTimeout is how long the breaker stays open before allowing a trial call.
	ResetTimeout time.Duration
	// VolumeThreshold is the minimum number of calls in the window before the breaker may open.
	VolumeThreshold int
	// RollingWindow bounds which outcomes count toward the failure percentage.
	RollingWindow time.Duration
}

// DefaultBreakerConfig returns 3s timeout, 50% threshold, 30s reset, 3 calls in a 10s window.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		Timeout:                  3 * time.Second,
		ErrorThresholdPercentage: 50,
		ResetTimeout:             30 * time.Second,
		VolumeThreshold:          3,
		RollingWindow:            10 * time.Second,
	}
}

// StateChangeFunc is notified after every transition. It is called without the breaker lock held.
type StateChangeFunc func(name string, from, to State)

// Breaker prevents cascading failures by stopping calls to an unhealthy provider.
type Breaker struct {
	name     string
	cfg      BreakerConfig
	now      func() time.Time
	onChange StateChangeFunc

	mu       sync.Mutex
	state    State
	outcomes []outcome
	openedAt time.Time
	trial    bool
}

type outcome struct {
	at     time.Time
	failed bool
}

// Snapshot is a point-in-time view of a breaker.
type Snapshot struct {
	Name     string     `json:"name"`
	State    string     `json:"state"`
	Calls    int        `json:"calls"`
	Failures int        `json:"failures"`
	OpenedAt *time.Time `json:"opened_at,omitempty"`
}

// BreakerOption configures a Breaker.
type BreakerOption func(*Breaker)

// WithBreakerClock overrides the time source (tests).
func WithBreakerClock(now func() time.Time) BreakerOption {
	return func(b *Breaker) {
		b.now = now
	}
}

// WithStateChange registers a transition callback.
func WithStateChange(fn StateChangeFunc) BreakerOption {
	return func(b *Breaker) {
		b.onChange = fn
	}
}

// NewBreaker creates a closed breaker.
func NewBreaker(name string, cfg BreakerConfig, opts ...BreakerOption) *Breaker {
	b := &Breaker{
		name:  name,
		cfg:   cfg,
		now:   time.Now,
		state: StateClosed,
	}

	for _, opt := range opts {
		opt(b)
	}

	return b
}

// Name returns the breaker name (the provider it guards).
func (b *Breaker) Name() string {
	return b.name
}

// Execute runs fn under the breaker. While open it returns keelerrors.ErrCircuitOpen without
// calling fn. fn receives a context bounded by the configured timeout; if the deadline passes
// first, Execute returns keelerrors.ErrTimeout and the call counts as a failure.
func (b *Breaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	_, err := Call(ctx, b, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})

	return err
}

// Call is Execute for functions that return a value.
func Call[T any](ctx context.Context, b *Breaker, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	if err := ctx.Err(); err != nil {
		return zero, err
	}

	if err := b.before(); err != nil {
		return zero, err
	}

	callCtx, cancel := context.WithTimeout(ctx, b.cfg.Timeout)
	defer cancel()

	type result struct {
		val T
		err error
	}

	done := make(chan result, 1)

	go func() {
		v, err := fn(callCtx)
		done <- result{val: v, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return zero, b.fail(ctx, callCtx, r.err)
		}

		b.after(true)

		return r.val, nil
	case <-callCtx.Done():
		return zero, b.fail(ctx, callCtx, callCtx.Err())
	}
}

// fail classifies a failed call. Caller cancellation is not held against the provider;
// an expired deadline becomes a TimeoutError.
func (b *Breaker) fail(parent, callCtx context.Context, err error) error {
	if parent.Err() != nil && !errors.Is(parent.Err(), context.DeadlineExceeded) {
		b.abandon()

		return parent.Err()
	}

	b.after(false)

	if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		return keelerrors.NewTimeoutError(b.name)
	}

	return err
}

// State returns the current state, promoting open to half-open when the reset timeout has elapsed.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.observedState(b.now())
}

// observedState is the state a caller would see at now; the caller holds mu.
func (b *Breaker) observedState(now time.Time) State {
	if b.state == StateOpen && now.Sub(b.openedAt) >= b.cfg.ResetTimeout {
		return StateHalfOpen
	}

	return b.state
}

// Snapshot returns the breaker's current counters.
func (b *Breaker) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	b.prune(now)

	s := Snapshot{Name: b.name, State: b.observedState(now).String(), Calls: len(b.outcomes)}

	for _, o := range b.outcomes {
		if o.failed {
			s.Failures++
		}
	}

	if b.state != StateClosed {
		opened := b.openedAt
		s.OpenedAt = &opened
	}

	return s
}

func (b *Breaker) before() error {
	b.mu.Lock()

	from := b.state

	switch b.state {
	case StateClosed:
		b.mu.Unlock()

		return nil
	case StateOpen:
		if b.now().Sub(b.openedAt) < b.cfg.ResetTimeout {
			b.mu.Unlock()

			return keelerrors.NewCircuitOpenError(b.name)
		}

		b.state = StateHalfOpen
		b.trial = true
		b.mu.Unlock()
		b.notify(from, StateHalfOpen)

		return nil
	default: // half-open
		if b.trial {
			b.mu.Unlock()

			return keelerrors.NewCircuitOpenError(b.name)
		}

		b.trial = true
		b.mu.Unlock()

		return nil
	}
}

func (b *Breaker) after(success bool) {
	b.mu.Lock()

	now := b.now()
	from := b.state
	to := from

	switch b.state {
	case StateHalfOpen:
		b.trial = false
		b.outcomes = nil

		if success {
			to = StateClosed
		} else {
			to = StateOpen
			b.openedAt = now
		}
	case StateClosed:
		b.outcomes = append(b.outcomes, outcome{at: now, failed: !success})
		b.prune(now)

		if !success && b.tripped() {
			to = StateOpen
			b.openedAt = now
			b.outcomes = nil
		}
	case StateOpen:
		// Call started before another goroutine opened the breaker; its outcome is stale.
	}

	b.state = to
	b.mu.Unlock()

	if to != from {
		b.notify(from, to)
	}
}

func (b *Breaker) abandon() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateHalfOpen {
		b.trial = false
	}
}

// tripped reports whether the window has enough volume and failures to open. Caller must hold mu.
func (b *Breaker) tripped() bool {
	total := len(b.outcomes)
	if total < b.cfg.VolumeThreshold {
		return false
	}

	failures := 0

	for _, o := range b.outcomes {
		if o.failed {
			failures++
		}
	}

	return failures*100 >= b.cfg.ErrorThresholdPercentage*total
}

// prune drops outcomes older than the rolling window. Caller must hold mu.
func (b *Breaker) prune(now time.Time) {
	cutoff := now.Add(-b.cfg.RollingWindow)

	i := 0
	for i < len(b.outcomes) && !b.outcomes[i].at.After(cutoff) {
		i++
	}

	if i > 0 {
		b.outcomes = append(b.outcomes[:0], b.outcomes[i:]...)
	}
}

func (b *Breaker) notify(from, to State) {
	if b.onChange != nil {
		b.onChange(b.name, from, to)
	}
}
