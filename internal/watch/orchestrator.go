// Package watch wires the adaptive poller, rate limiter, notifier,
// and health supervisor together into one monitoring session. The
// Orchestrator owns the event bus, and its dispatch loop is the only
// place AgentMetrics counters are updated. The HealthAgent's periodic
// tick goroutine also records memory samples, so AgentMetrics guards
// its fields with its own mutex.
package watch

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/windasol/korail-watch/internal/config"
	"github.com/windasol/korail-watch/internal/events"
	"github.com/windasol/korail-watch/internal/notify"
	"github.com/windasol/korail-watch/internal/pollsched"
	"github.com/windasol/korail-watch/internal/railquery"
	"github.com/windasol/korail-watch/internal/ratelimit"
)

// State is one of the orchestrator's four lifecycle states.
type State string

const (
	StateIdle     State = "IDLE"
	StateRunning  State = "RUNNING"
	StateStopping State = "STOPPING"
	StateStopped  State = "STOPPED"
)

const (
	shutdownTimeout = 10 * time.Second
	busWaitTimeout  = 1 * time.Second
)

// agentTask is the shared lifecycle contract for Monitor, Notifier,
// and Health: start runs setup→run→teardown in a goroutine; RequestStop
// trips the agent's stop flag; Done reports when teardown has finished.
type agentTask interface {
	Start(ctx context.Context)
	RequestStop()
	Done() <-chan struct{}
}

// Orchestrator owns the three agents, the event bus, and the session
// state machine. It is the core of the core: every cross-agent
// coordination decision is made here.
type Orchestrator struct {
	mu    sync.Mutex
	state State

	bus     *events.Bus
	metrics *AgentMetrics
	logger  *slog.Logger

	monitor  *MonitorAgent
	notifier *NotifierAgent
	health   *HealthAgent

	cancel context.CancelFunc
}

// New builds an Orchestrator and its three agents from config,
// wiring a fresh event bus and AgentMetrics for the session.
func New(checker railquery.Checker, cfg *config.Config, channels []notify.Channel, departure, arrival string, logger *slog.Logger) *Orchestrator {
	bus := events.NewBus()
	metrics := NewAgentMetrics()

	sched := pollsched.New(
		pollsched.WithBaseInterval(cfg.Polling.BaseInterval()),
		pollsched.WithMaxInterval(cfg.Polling.MaxInterval()),
		pollsched.WithBackoffMultiplier(cfg.Polling.BackoffMultiplier),
		pollsched.WithJitterRange(cfg.Polling.JitterRange()),
	)
	limiter := ratelimit.New(cfg.Polling.BaseInterval())

	limits := SessionLimits{
		MaxDuration:          cfg.Session.MaxDuration(),
		MaxRequests:          cfg.Session.MaxRequestsPerSession,
		MaxConsecutiveErrors: cfg.Session.MaxConsecutiveErrors,
	}

	monitor := NewMonitorAgent(checker, sched, limiter, bus, limits, logger.With("agent", "monitor"))
	notifier := NewNotifierAgent(departure, arrival, channels, cfg.Notification.Cooldown(), bus, logger.With("agent", "notifier"))
	health := NewHealthAgent(metrics, bus, cfg.Session.GCInterval, cfg.Session.MaxDuration(), logger.With("agent", "health"))

	return &Orchestrator{
		state:    StateIdle,
		bus:      bus,
		metrics:  metrics,
		logger:   logger,
		monitor:  monitor,
		notifier: notifier,
		health:   health,
	}
}

func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Metrics returns the session's metrics sink. Safe to read concurrently
// with Run via AgentMetrics' own snapshotting, e.g. from a telemetry
// publisher started before Run returns.
func (o *Orchestrator) Metrics() *AgentMetrics {
	return o.metrics
}

func (o *Orchestrator) setState(s State) {
	o.mu.Lock()
	o.state = s
	o.mu.Unlock()
}

// Run executes the run(query) protocol end to end: state to RUNNING,
// inject the query, spawn all three agents, drive the event loop
// until the monitor session ends (or stop() is called), shut down
// within a bounded timeout, and return the final metrics snapshot.
func (o *Orchestrator) Run(ctx context.Context, query railquery.Query) AgentMetricsSnapshot {
	o.logger.Info("session starting", "session_id", o.metrics.SessionID())
	o.setState(StateRunning)

	runCtx, cancel := context.WithCancel(ctx)
	o.mu.Lock()
	o.cancel = cancel
	o.mu.Unlock()

	o.monitor.SetQuery(query)

	o.monitor.Start(runCtx)
	o.notifier.Start(runCtx)
	o.health.Start(runCtx)

	o.eventLoop(runCtx)
	o.shutdown()

	o.setState(StateStopped)
	return o.metrics.Snapshot()
}

// eventLoop runs until the monitor's task exits (the normal
// end-of-session path) or a dispatched event requires shutdown.
func (o *Orchestrator) eventLoop(ctx context.Context) {
	for {
		select {
		case <-o.monitor.Done():
			return
		default:
		}

		msg, ok := o.bus.Next(ctx, busWaitTimeout)
		if !ok {
			if ctx.Err() != nil {
				return
			}
			continue
		}
		if o.dispatch(msg) {
			return
		}
	}
}

// dispatch applies the orchestrator's complete event table. It
// returns true when the event requires initiating shutdown.
func (o *Orchestrator) dispatch(msg events.Message) bool {
	switch msg.Kind {
	case events.KindQueryReady:
		o.logger.Debug("query ready")

	case events.KindPollStart:
		o.logger.Debug("poll start", "request_count", msg.Payload)

	case events.KindPollResult:
		meta, ok := msg.Payload.(events.PollResultMeta)
		if !ok {
			return false
		}
		o.health.RecordRequest(true, meta.ElapsedMS)
		o.logger.Info("poll result", "request_count", meta.RequestCount, "elapsed_ms", meta.ElapsedMS)

	case events.KindSeatDetected:
		result, ok := msg.Payload.(railquery.CheckResult)
		if !ok {
			return false
		}
		o.health.RecordDetection()
		o.notifier.Enqueue(result)

	case events.KindNotifyComplete:
		o.health.RecordNotification()
		o.logger.Info("notification complete", "detail", msg.Payload)

	case events.KindHealthWarning:
		o.logger.Warn("health warning", "detail", msg.Payload)

	case events.KindHealthCritical:
		o.logger.Error("health critical", "detail", msg.Payload)
		o.Stop()
		return true

	case events.KindSessionStop:
		o.Stop()
		return true
	}
	return false
}

// Stop is the external stop() entry point. It is idempotent and safe
// to call from any goroutine: it flips state to STOPPING and trips
// every agent's stop flag, but does not block for shutdown to finish.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	if o.state == StateStopping || o.state == StateStopped {
		o.mu.Unlock()
		return
	}
	o.state = StateStopping
	cancel := o.cancel
	o.mu.Unlock()

	o.monitor.RequestStop()
	o.notifier.RequestStop()
	o.health.RequestStop()
	if cancel != nil {
		cancel()
	}
}

// shutdown signals every agent to stop and waits for all three task
// goroutines to finish teardown, bounded by shutdownTimeout. Tasks
// still running past the deadline are abandoned — their remaining
// work (e.g. a notification mid-flight) is dropped, per the spec's
// documented drain behavior.
func (o *Orchestrator) shutdown() {
	o.Stop()

	deadline := time.NewTimer(shutdownTimeout)
	defer deadline.Stop()

	for _, task := range []agentTask{o.monitor, o.notifier, o.health} {
		select {
		case <-task.Done():
		case <-deadline.C:
			o.logger.Warn("shutdown deadline exceeded, abandoning remaining agent work")
			return
		}
	}
}
