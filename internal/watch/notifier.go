package watch

import (
	"context"
	"log/slog"
	"time"

	"github.com/windasol/korail-watch/internal/events"
	"github.com/windasol/korail-watch/internal/notify"
	"github.com/windasol/korail-watch/internal/railquery"
)

const (
	inboxCapacity       = 32
	inboxDequeueTimeout = 1 * time.Second
	channelSendTimeout  = 10 * time.Second
)

// NotifierAgent holds a bounded inbox of pending detections and fans
// each one out to all enabled channels concurrently, deduplicating via
// a cooldown so a persistent detection doesn't re-notify every poll.
type NotifierAgent struct {
	inbox     chan railquery.CheckResult
	channels  []notify.Channel
	cooldown  time.Duration
	departure string
	arrival   string
	bus       *events.Bus
	logger    *slog.Logger

	lastNotificationAt time.Time
	notificationCount  int

	cancel context.CancelFunc
	done   chan struct{}
}

func NewNotifierAgent(departure, arrival string, channels []notify.Channel, cooldown time.Duration, bus *events.Bus, logger *slog.Logger) *NotifierAgent {
	return &NotifierAgent{
		inbox:     make(chan railquery.CheckResult, inboxCapacity),
		channels:  channels,
		cooldown:  cooldown,
		departure: departure,
		arrival:   arrival,
		bus:       bus,
		logger:    logger,
	}
}

// Enqueue adds a detection to the inbox without blocking. If the
// inbox is already full, the oldest pending detection is dropped to
// make room — only the most recent seat snapshot matters for the
// next notification.
func (n *NotifierAgent) Enqueue(result railquery.CheckResult) {
	select {
	case n.inbox <- result:
		return
	default:
	}
	select {
	case <-n.inbox:
	default:
	}
	select {
	case n.inbox <- result:
	default:
	}
}

func (n *NotifierAgent) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	n.cancel = cancel
	n.done = make(chan struct{})
	go n.run(runCtx)
}

func (n *NotifierAgent) RequestStop() {
	if n.cancel != nil {
		n.cancel()
	}
}

func (n *NotifierAgent) Done() <-chan struct{} { return n.done }

func (n *NotifierAgent) run(ctx context.Context) {
	defer close(n.done)
	for {
		select {
		case <-ctx.Done():
			return
		case result := <-n.inbox:
			n.processOne(ctx, result)
		case <-time.After(inboxDequeueTimeout):
		}
	}
}

// processOne applies the cooldown rule and, if the detection is not
// dropped, fans the rendered notification out to every channel
// concurrently. Each channel's failure is isolated from the others.
func (n *NotifierAgent) processOne(ctx context.Context, result railquery.CheckResult) {
	now := time.Now()
	if !n.lastNotificationAt.IsZero() && now.Sub(n.lastNotificationAt) < n.cooldown {
		n.logger.Debug("notification dropped within cooldown")
		return
	}

	notification := notify.Render(n.departure, n.arrival, result)

	type outcome struct {
		channel string
		err     error
	}
	results := make(chan outcome, len(n.channels))
	for _, ch := range n.channels {
		go func(ch notify.Channel) {
			sendCtx, cancel := context.WithTimeout(ctx, channelSendTimeout)
			defer cancel()
			results <- outcome{channel: ch.Name(), err: ch.Send(sendCtx, notification)}
		}(ch)
	}

	anySucceeded := false
	for range n.channels {
		o := <-results
		if o.err != nil {
			n.logger.Warn("notification channel failed", "channel", o.channel, "error", o.err)
		} else {
			anySucceeded = true
		}
	}

	if !anySucceeded {
		return
	}

	n.lastNotificationAt = now
	n.notificationCount++
	n.bus.Publish(events.Message{
		Kind:   events.KindNotifyComplete,
		Source: events.SourceNotifier,
		Payload: map[string]any{
			"trains_count":        len(result.AvailableTrains()),
			"notification_number": n.notificationCount,
		},
	})
}
