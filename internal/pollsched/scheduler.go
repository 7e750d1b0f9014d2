// Package pollsched implements the adaptive polling interval used by
// the monitor loop: back off fast on errors, recover slowly on
// success, and jitter the result so a single client doesn't line up
// with any server-side request bucketing.
package pollsched

import (
	"math/rand"
	"time"
)

const (
	DefaultBaseInterval      = 30 * time.Second
	DefaultMaxInterval       = 300 * time.Second
	DefaultBackoffMultiplier = 1.5
	DefaultJitterRange       = 5 * time.Second
	recoveryDivisor          = 1.2
)

// Scheduler holds the adaptive interval state. It is not safe for
// concurrent use; callers own a single Scheduler per polling session.
type Scheduler struct {
	base       time.Duration
	max        time.Duration
	multiplier float64
	jitter     time.Duration

	current time.Duration
	rng     *rand.Rand
}

type Option func(*Scheduler)

func WithBaseInterval(d time.Duration) Option      { return func(s *Scheduler) { s.base = d } }
func WithMaxInterval(d time.Duration) Option       { return func(s *Scheduler) { s.max = d } }
func WithBackoffMultiplier(m float64) Option       { return func(s *Scheduler) { s.multiplier = m } }
func WithJitterRange(d time.Duration) Option       { return func(s *Scheduler) { s.jitter = d } }

// WithRand overrides the jitter source; tests use it for determinism.
func WithRand(r *rand.Rand) Option { return func(s *Scheduler) { s.rng = r } }

func New(opts ...Option) *Scheduler {
	s := &Scheduler{
		base:       DefaultBaseInterval,
		max:        DefaultMaxInterval,
		multiplier: DefaultBackoffMultiplier,
		jitter:     DefaultJitterRange,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.current = s.base
	if s.rng == nil {
		s.rng = rand.New(rand.NewSource(1))
	}
	return s
}

// NextInterval advances the internal state and returns the duration
// to wait before the next poll. On error the interval grows
// multiplicatively toward max; on success it decays slowly back
// toward base. A uniform jitter is always added on top.
func (s *Scheduler) NextInterval(hadError bool) time.Duration {
	if hadError {
		next := time.Duration(float64(s.current) * s.multiplier)
		if next > s.max {
			next = s.max
		}
		s.current = next
	} else {
		next := time.Duration(float64(s.current) / recoveryDivisor)
		if next < s.base {
			next = s.base
		}
		s.current = next
	}
	return s.current + s.jitterDuration()
}

func (s *Scheduler) jitterDuration() time.Duration {
	if s.jitter <= 0 {
		return 0
	}
	return time.Duration(s.rng.Int63n(int64(s.jitter) + 1))
}

// CurrentInterval reports the interval before jitter, as currently
// tracked by the scheduler. Useful for tests and diagnostics.
func (s *Scheduler) CurrentInterval() time.Duration { return s.current }
