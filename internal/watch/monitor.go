package watch

import (
	"context"
	"log/slog"
	"time"

	"github.com/windasol/korail-watch/internal/events"
	"github.com/windasol/korail-watch/internal/pollsched"
	"github.com/windasol/korail-watch/internal/railquery"
	"github.com/windasol/korail-watch/internal/ratelimit"
)

// SessionLimits bounds a single MonitorAgent session.
type SessionLimits struct {
	MaxDuration          time.Duration
	MaxRequests          int
	MaxConsecutiveErrors int
}

// MonitorAgent polls the seat-availability endpoint on an adaptive
// schedule and emits POLL_START/POLL_RESULT/SEAT_DETECTED/HEALTH_CRITICAL
// events. Its internal states (IDLE/POLLING/DETECTED) are logging
// labels only; session-terminating exit is signaled out-of-band by the
// stop flag per the spec, not by a terminal state.
type MonitorAgent struct {
	checker   railquery.Checker
	scheduler *pollsched.Scheduler
	limiter   *ratelimit.Limiter
	bus       *events.Bus
	logger    *slog.Logger
	limits    SessionLimits

	query railquery.Query

	cancel context.CancelFunc
	done   chan struct{}
}

func NewMonitorAgent(checker railquery.Checker, scheduler *pollsched.Scheduler, limiter *ratelimit.Limiter, bus *events.Bus, limits SessionLimits, logger *slog.Logger) *MonitorAgent {
	return &MonitorAgent{
		checker:   checker,
		scheduler: scheduler,
		limiter:   limiter,
		bus:       bus,
		limits:    limits,
		logger:    logger,
	}
}

// SetQuery injects the query to poll. Must be called before Start.
func (m *MonitorAgent) SetQuery(q railquery.Query) { m.query = q }

func (m *MonitorAgent) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})
	go m.run(runCtx)
}

func (m *MonitorAgent) RequestStop() {
	if m.cancel != nil {
		m.cancel()
	}
}

func (m *MonitorAgent) Done() <-chan struct{} { return m.done }

func (m *MonitorAgent) run(ctx context.Context) {
	defer close(m.done)

	start := time.Now()
	requestCount := 0
	consecutiveErrors := 0

	for {
		if ctx.Err() != nil {
			return
		}

		if elapsed := time.Since(start); elapsed > m.limits.MaxDuration {
			m.publishCritical("max_session_duration", map[string]any{"elapsed_s": elapsed.Seconds()})
			return
		}
		if requestCount >= m.limits.MaxRequests {
			m.publishCritical("max_requests_per_session", map[string]any{"request_count": requestCount})
			return
		}

		if err := m.limiter.Acquire(ctx); err != nil {
			return
		}

		requestCount++
		m.bus.Publish(events.Message{
			Kind:    events.KindPollStart,
			Source:  events.SourceMonitor,
			Payload: requestCount,
		})

		pollStart := time.Now()
		result, err := m.checker.Check(ctx, m.query)
		elapsedMS := float64(time.Since(pollStart).Microseconds()) / 1000

		hadError := err != nil
		if hadError {
			consecutiveErrors++
			m.logger.Warn("poll failed", "error", err, "consecutive_errors", consecutiveErrors, "request_count", requestCount)

			if consecutiveErrors >= m.limits.MaxConsecutiveErrors {
				m.publishCritical("max_consecutive_errors", map[string]any{
					"consecutive_errors": consecutiveErrors,
					"last_error":         err.Error(),
				})
				return
			}
		} else {
			consecutiveErrors = 0
			m.bus.Publish(events.Message{
				Kind:   events.KindPollResult,
				Source: events.SourceMonitor,
				Payload: events.PollResultMeta{
					Result:       result,
					ElapsedMS:    elapsedMS,
					RequestCount: requestCount,
				},
			})
			if result.SeatsAvailable {
				m.bus.Publish(events.Message{
					Kind:    events.KindSeatDetected,
					Source:  events.SourceMonitor,
					Payload: result,
				})
			}
		}

		interval := m.scheduler.NextInterval(hadError)
		if !m.waitOrStop(ctx, interval) {
			return
		}
	}
}

func (m *MonitorAgent) publishCritical(kind string, detail map[string]any) {
	m.bus.Publish(events.Message{
		Kind:   events.KindHealthCritical,
		Source: events.SourceMonitor,
		Payload: events.HealthReason{
			Kind:   kind,
			Detail: detail,
		},
	})
}

func (m *MonitorAgent) waitOrStop(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
