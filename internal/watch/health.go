package watch

import (
	"context"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/windasol/korail-watch/internal/events"
)

// Thresholds from the spec's health supervisor contract.
const (
	slowResponseThresholdMS = 10_000
	warnMemoryBytes         = 45 * 1024 * 1024
	criticalMemoryBytes     = 50 * 1024 * 1024
	healthTickInterval      = 60 * time.Second
)

// HealthAgent is the always-on supervisor. It ingests metrics via
// direct synchronous calls from the Orchestrator (record_request,
// record_detection, record_notification) and separately runs its own
// 60s periodic tick as a concurrent task, grounded on connwatch.Watcher's
// ticker-plus-stop-channel pattern.
type HealthAgent struct {
	metrics            *AgentMetrics
	bus                *events.Bus
	logger             *slog.Logger
	gcInterval         int
	maxSessionDuration time.Duration
	sessionStart       time.Time

	mu             sync.Mutex
	successSinceGC int

	cancel context.CancelFunc
	done   chan struct{}
}

func NewHealthAgent(metrics *AgentMetrics, bus *events.Bus, gcInterval int, maxSessionDuration time.Duration, logger *slog.Logger) *HealthAgent {
	return &HealthAgent{
		metrics:            metrics,
		bus:                bus,
		logger:             logger,
		gcInterval:         gcInterval,
		maxSessionDuration: maxSessionDuration,
		sessionStart:       time.Now(),
	}
}

func (h *HealthAgent) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	h.cancel = cancel
	h.done = make(chan struct{})
	go h.run(runCtx)
}

func (h *HealthAgent) RequestStop() {
	if h.cancel != nil {
		h.cancel()
	}
}

func (h *HealthAgent) Done() <-chan struct{} { return h.done }

func (h *HealthAgent) run(ctx context.Context) {
	defer close(h.done)
	ticker := time.NewTicker(healthTickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if h.tick() {
				return
			}
		}
	}
}

// tick performs the periodic health check. Returns true if it emitted
// a session-ending HEALTH_CRITICAL.
func (h *HealthAgent) tick() bool {
	snap := h.metrics.Snapshot()
	h.logger.Info("health tick",
		"requests", snap.RequestCount,
		"detections", snap.DetectionCount,
		"notifications", snap.NotificationCount,
		"errors", snap.ErrorCount,
	)

	if time.Since(h.sessionStart) > h.maxSessionDuration {
		h.bus.Publish(events.Message{
			Kind:   events.KindHealthCritical,
			Source: events.SourceHealth,
			Payload: events.HealthReason{
				Kind:   "session_timeout",
				Detail: map[string]any{"elapsed_s": time.Since(h.sessionStart).Seconds()},
			},
		})
		return true
	}

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	h.metrics.recordMemorySample(ms.HeapAlloc)

	if ms.HeapAlloc > criticalMemoryBytes {
		h.bus.Publish(events.Message{
			Kind:   events.KindHealthCritical,
			Source: events.SourceHealth,
			Payload: events.HealthReason{
				Kind:   "memory_limit",
				Detail: map[string]any{"mb": float64(ms.HeapAlloc) / (1024 * 1024)},
			},
		})
		return true
	}
	return false
}

// RecordRequest ingests one poll outcome. Called synchronously by the
// Orchestrator's dispatch loop — this is not an event-bus message.
func (h *HealthAgent) RecordRequest(success bool, elapsedMS float64) {
	h.metrics.RecordRequest(success, elapsedMS)

	if elapsedMS > slowResponseThresholdMS {
		h.bus.Publish(events.Message{
			Kind:   events.KindHealthWarning,
			Source: events.SourceHealth,
			Payload: events.HealthReason{
				Kind:   "slow_response",
				Detail: map[string]any{"elapsed_ms": elapsedMS},
			},
		})
	}

	if !success {
		return
	}

	h.mu.Lock()
	h.successSinceGC++
	trigger := h.gcInterval > 0 && h.successSinceGC >= h.gcInterval
	if trigger {
		h.successSinceGC = 0
	}
	h.mu.Unlock()

	if !trigger {
		return
	}

	runtime.GC()
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	h.metrics.recordMemorySample(ms.HeapAlloc)

	if ms.HeapAlloc > warnMemoryBytes {
		h.bus.Publish(events.Message{
			Kind:   events.KindHealthWarning,
			Source: events.SourceHealth,
			Payload: events.HealthReason{
				Kind:   "high_memory",
				Detail: map[string]any{"mb": float64(ms.HeapAlloc) / (1024 * 1024)},
			},
		})
	}
}

func (h *HealthAgent) RecordDetection()    { h.metrics.RecordDetection() }
func (h *HealthAgent) RecordNotification() { h.metrics.RecordNotification() }
