package watch

import (
	"testing"
)

func TestAgentMetrics_SessionIDIsStableAndNonEmpty(t *testing.T) {
	m := NewAgentMetrics()
	if m.SessionID() == "" {
		t.Fatal("SessionID() is empty")
	}
	if got := m.Snapshot().SessionID; got != m.SessionID() {
		t.Errorf("Snapshot().SessionID = %q, want %q", got, m.SessionID())
	}

	other := NewAgentMetrics()
	if other.SessionID() == m.SessionID() {
		t.Error("two sessions got the same session ID")
	}
}

func TestAgentMetrics_RecordRequestTracksConsecutiveErrors(t *testing.T) {
	m := NewAgentMetrics()
	m.RecordRequest(false, 10)
	m.RecordRequest(false, 10)
	m.RecordRequest(true, 10)
	m.RecordRequest(false, 10)

	snap := m.Snapshot()
	if snap.RequestCount != 4 {
		t.Errorf("RequestCount = %d, want 4", snap.RequestCount)
	}
	if snap.ErrorCount != 3 {
		t.Errorf("ErrorCount = %d, want 3", snap.ErrorCount)
	}
	if snap.ConsecutiveErrors != 1 {
		t.Errorf("ConsecutiveErrors = %d, want 1 (reset by the one success)", snap.ConsecutiveErrors)
	}
}

func TestAgentMetrics_ResponseTimeRingIsBoundedAndMeanIsCorrect(t *testing.T) {
	m := NewAgentMetrics()
	for i := 0; i < responseTimeRingSize+10; i++ {
		m.RecordRequest(true, 100)
	}
	snap := m.Snapshot()
	if snap.MeanResponseMS != 100 {
		t.Errorf("MeanResponseMS = %v, want 100", snap.MeanResponseMS)
	}

	m2 := NewAgentMetrics()
	m2.RecordRequest(true, 0)
	m2.RecordRequest(true, 200)
	if got := m2.Snapshot().MeanResponseMS; got != 100 {
		t.Errorf("MeanResponseMS = %v, want 100", got)
	}
}

func TestAgentMetrics_DetectionAndNotificationCounters(t *testing.T) {
	m := NewAgentMetrics()
	m.RecordDetection()
	m.RecordDetection()
	m.RecordNotification()

	snap := m.Snapshot()
	if snap.DetectionCount != 2 {
		t.Errorf("DetectionCount = %d, want 2", snap.DetectionCount)
	}
	if snap.NotificationCount != 1 {
		t.Errorf("NotificationCount = %d, want 1", snap.NotificationCount)
	}
}

func TestAgentMetrics_RecordMemorySampleTracksPeakOnly(t *testing.T) {
	m := NewAgentMetrics()
	m.recordMemorySample(1000)
	m.recordMemorySample(500)
	m.recordMemorySample(2000)

	if got := m.Snapshot().PeakMemoryBytes; got != 2000 {
		t.Errorf("PeakMemoryBytes = %d, want 2000 (the max sample, not the last)", got)
	}
}
