package watch

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// responseTimeRingSize bounds the response-time history kept for the
// rolling mean; older samples are discarded.
const responseTimeRingSize = 100

// AgentMetrics accumulates counters for one monitoring session.
// RecordX methods are called synchronously from the Orchestrator's
// dispatch loop; memory samples are written by the HealthAgent's
// periodic tick goroutine. The embedded mutex makes both safe.
type AgentMetrics struct {
	mu sync.Mutex

	sessionID         string
	sessionStart      time.Time
	requestCount      int
	errorCount        int
	consecutiveErrors int
	detectionCount    int
	notificationCount int
	peakMemoryBytes   uint64
	responseTimesMS   []float64
}

// NewAgentMetrics starts a fresh metrics accumulator stamped with a
// time-sortable session identifier, useful for correlating this
// session's log lines and telemetry publishes across a restart.
func NewAgentMetrics() *AgentMetrics {
	id, err := uuid.NewV7()
	sessionID := "unknown"
	if err == nil {
		sessionID = id.String()
	}
	return &AgentMetrics{sessionID: sessionID, sessionStart: time.Now()}
}

// RecordRequest ingests the outcome of one poll.
func (m *AgentMetrics) RecordRequest(success bool, elapsedMS float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.requestCount++
	if success {
		m.consecutiveErrors = 0
	} else {
		m.errorCount++
		m.consecutiveErrors++
	}

	m.responseTimesMS = append(m.responseTimesMS, elapsedMS)
	if len(m.responseTimesMS) > responseTimeRingSize {
		m.responseTimesMS = m.responseTimesMS[len(m.responseTimesMS)-responseTimeRingSize:]
	}
}

// SessionID returns the session's time-sortable identifier, set once
// at construction. Safe for concurrent use; never mutated.
func (m *AgentMetrics) SessionID() string { return m.sessionID }

func (m *AgentMetrics) RecordDetection() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.detectionCount++
}

func (m *AgentMetrics) RecordNotification() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notificationCount++
}

func (m *AgentMetrics) recordMemorySample(bytes uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if bytes > m.peakMemoryBytes {
		m.peakMemoryBytes = bytes
	}
}

func (m *AgentMetrics) meanResponseMSLocked() float64 {
	if len(m.responseTimesMS) == 0 {
		return 0
	}
	var sum float64
	for _, v := range m.responseTimesMS {
		sum += v
	}
	return sum / float64(len(m.responseTimesMS))
}

// AgentMetricsSnapshot is an immutable copy of AgentMetrics suitable
// for logging, JSON encoding, and telemetry export.
type AgentMetricsSnapshot struct {
	SessionID         string    `json:"session_id"`
	SessionStart      time.Time `json:"session_start"`
	SessionDuration   float64   `json:"session_duration_s"`
	RequestCount      int       `json:"request_count"`
	ErrorCount        int       `json:"error_count"`
	ConsecutiveErrors int       `json:"consecutive_errors"`
	DetectionCount    int       `json:"detection_count"`
	NotificationCount int       `json:"notification_count"`
	PeakMemoryBytes   uint64    `json:"peak_memory_bytes"`
	MeanResponseMS    float64   `json:"mean_response_ms"`
}

func (m *AgentMetrics) Snapshot() AgentMetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return AgentMetricsSnapshot{
		SessionID:         m.sessionID,
		SessionStart:      m.sessionStart,
		SessionDuration:   time.Since(m.sessionStart).Seconds(),
		RequestCount:      m.requestCount,
		ErrorCount:        m.errorCount,
		ConsecutiveErrors: m.consecutiveErrors,
		DetectionCount:    m.detectionCount,
		NotificationCount: m.notificationCount,
		PeakMemoryBytes:   m.peakMemoryBytes,
		MeanResponseMS:    m.meanResponseMSLocked(),
	}
}
