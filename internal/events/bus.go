// Package events provides the single-consumer message bus that carries
// AgentMessage values from the monitor, notifier, and health agents up
// to the orchestrator. Unlike a broadcast pub/sub bus, this bus has
// exactly one logical reader (the orchestrator's event loop); producers
// never block because the queue is unbounded.
package events

import (
	"context"
	"sync"
	"time"
)

// Source identifies which agent published a message.
const (
	SourceMonitor      = "monitor"
	SourceNotifier     = "notifier"
	SourceHealth       = "health"
	SourceOrchestrator = "orchestrator"
)

// Kind enumerates the closed vocabulary of message kinds the
// orchestrator's dispatch table understands.
const (
	KindQueryReady     = "query_ready"
	KindPollStart      = "poll_start"
	KindPollResult     = "poll_result"
	KindSeatDetected   = "seat_detected"
	KindNotifyComplete = "notify_complete"
	KindHealthWarning  = "health_warning"
	KindHealthCritical = "health_critical"
	KindSessionStop    = "session_stop"
)

// PollResultMeta is the payload shape for KindPollResult: the
// CheckResult plus the poll's timing and sequence metadata. Kept
// separate from CheckResult because elapsed time and request count
// are properties of the poll, not of the query result itself.
type PollResultMeta struct {
	Result       any // railquery.CheckResult; any to avoid an import cycle
	ElapsedMS    float64
	RequestCount int
}

// HealthReason is the payload shape for KindHealthWarning and
// KindHealthCritical: a short machine-readable reason tag plus
// free-form detail for logging.
type HealthReason struct {
	Kind   string // e.g. "slow_response", "high_memory", "session_timeout", "max_consecutive_errors"
	Detail map[string]any
}

// Message is one event flowing from an agent to the orchestrator.
// Payload is a tagged union over CheckResult, Query, PollResultMeta,
// or HealthReason — dispatch on Kind determines which it is.
type Message struct {
	Kind      string
	Source    string
	Target    string
	Payload   any
	Timestamp time.Time
}

// Bus is an unbounded single-consumer queue of Message values. Safe for
// concurrent Publish from multiple goroutines; Next is intended to be
// called from a single goroutine (the orchestrator's event loop), though
// nothing prevents multiple callers from racing for the same message.
type Bus struct {
	mu     sync.Mutex
	queue  []Message
	notify chan struct{}
}

// NewBus creates an empty bus ready for use.
func NewBus() *Bus {
	return &Bus{notify: make(chan struct{}, 1)}
}

// Publish appends a message to the queue and wakes a waiting Next call.
// Never blocks.
func (b *Bus) Publish(m Message) {
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now()
	}
	b.mu.Lock()
	b.queue = append(b.queue, m)
	b.mu.Unlock()

	select {
	case b.notify <- struct{}{}:
	default:
		// A wakeup is already pending; the reader will see this message too.
	}
}

// Next blocks until a message is available, timeout elapses, or ctx is
// cancelled. Returns (message, true) on success, (zero, false) on
// timeout or cancellation — the orchestrator's event loop treats both
// as "no message this tick" and proceeds to its other periodic checks.
func (b *Bus) Next(ctx context.Context, timeout time.Duration) (Message, bool) {
	for {
		if m, ok := b.pop(); ok {
			return m, true
		}

		timer := time.NewTimer(timeout)
		select {
		case <-ctx.Done():
			timer.Stop()
			return Message{}, false
		case <-b.notify:
			timer.Stop()
			// Loop around: pop() handles the case where another
			// waiter drained the queue first.
		case <-timer.C:
			return Message{}, false
		}
	}
}

func (b *Bus) pop() (Message, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.queue) == 0 {
		return Message{}, false
	}
	m := b.queue[0]
	b.queue = b.queue[1:]
	return m, true
}

// Len returns the number of messages currently queued. Useful for
// shutdown-drain diagnostics and tests.
func (b *Bus) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queue)
}
