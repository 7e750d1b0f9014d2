package watch

import (
	"context"
	"testing"
	"time"

	"github.com/windasol/korail-watch/internal/events"
)

func TestHealthAgent_RecordRequest_SlowResponseEmitsWarning(t *testing.T) {
	bus := events.NewBus()
	h := NewHealthAgent(NewAgentMetrics(), bus, 0, time.Hour, testLogger())

	h.RecordRequest(true, 12_000)

	msgs := drainBus(bus, 200*time.Millisecond)
	var warnings int
	for _, m := range msgs {
		if m.Kind == events.KindHealthWarning {
			reason, ok := m.Payload.(events.HealthReason)
			if ok && reason.Kind == "slow_response" {
				warnings++
			}
		}
	}
	if warnings != 1 {
		t.Errorf("expected one slow_response warning, got %d", warnings)
	}
}

func TestHealthAgent_RecordRequest_FastResponseNoWarning(t *testing.T) {
	bus := events.NewBus()
	h := NewHealthAgent(NewAgentMetrics(), bus, 0, time.Hour, testLogger())

	h.RecordRequest(true, 50)

	msgs := drainBus(bus, 100*time.Millisecond)
	if len(msgs) != 0 {
		t.Errorf("expected no events for a fast successful request, got %d", len(msgs))
	}
}

func TestHealthAgent_RecordRequest_OnlySuccessesCountTowardGCInterval(t *testing.T) {
	metrics := NewAgentMetrics()
	bus := events.NewBus()
	h := NewHealthAgent(metrics, bus, 3, time.Hour, testLogger())

	h.RecordRequest(false, 10)
	h.RecordRequest(false, 10)
	h.RecordRequest(false, 10)

	h.mu.Lock()
	got := h.successSinceGC
	h.mu.Unlock()
	if got != 0 {
		t.Errorf("failed requests should not advance successSinceGC, got %d", got)
	}
}

func TestHealthAgent_Tick_SessionTimeoutEmitsCriticalAndStops(t *testing.T) {
	bus := events.NewBus()
	h := NewHealthAgent(NewAgentMetrics(), bus, 0, time.Millisecond, testLogger())
	h.sessionStart = time.Now().Add(-time.Hour)

	stop := h.tick()
	if !stop {
		t.Fatal("tick should report session end once max duration is exceeded")
	}

	msgs := drainBus(bus, 200*time.Millisecond)
	var criticals int
	for _, m := range msgs {
		if m.Kind == events.KindHealthCritical {
			reason, ok := m.Payload.(events.HealthReason)
			if ok && reason.Kind == "session_timeout" {
				criticals++
			}
		}
	}
	if criticals != 1 {
		t.Errorf("expected one session_timeout HEALTH_CRITICAL, got %d", criticals)
	}
}

func TestHealthAgent_Tick_WithinLimitsDoesNotStop(t *testing.T) {
	bus := events.NewBus()
	h := NewHealthAgent(NewAgentMetrics(), bus, 0, time.Hour, testLogger())

	if h.tick() {
		t.Fatal("tick should not end the session while well within limits")
	}

	msgs := drainBus(bus, 100*time.Millisecond)
	for _, m := range msgs {
		if m.Kind == events.KindHealthCritical {
			t.Errorf("unexpected HEALTH_CRITICAL while within limits: %+v", m)
		}
	}
}

func TestHealthAgent_RunStopsOnRequestStop(t *testing.T) {
	bus := events.NewBus()
	h := NewHealthAgent(NewAgentMetrics(), bus, 0, time.Hour, testLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	h.Start(ctx)
	h.RequestStop()

	select {
	case <-h.Done():
	case <-time.After(1 * time.Second):
		t.Fatal("health agent did not stop promptly after RequestStop")
	}
}
