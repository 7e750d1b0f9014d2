package watch

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/windasol/korail-watch/internal/events"
	"github.com/windasol/korail-watch/internal/notify"
	"github.com/windasol/korail-watch/internal/railquery"
)

// countingChannel counts how many times Send is called and always
// succeeds.
type countingChannel struct {
	name  string
	sends int32
}

func (c *countingChannel) Name() string { return c.name }
func (c *countingChannel) Send(_ context.Context, _ notify.Notification) error {
	atomic.AddInt32(&c.sends, 1)
	return nil
}

func (c *countingChannel) count() int { return int(atomic.LoadInt32(&c.sends)) }

type failingChannel struct{ name string }

func (c *failingChannel) Name() string { return c.name }
func (c *failingChannel) Send(context.Context, notify.Notification) error {
	return errors.New("boom")
}

func detection() railquery.CheckResult {
	return railquery.CheckResult{
		SeatsAvailable: true,
		Trains: []railquery.TrainInfo{
			{TrainNo: "101", TrainType: "KTX", GeneralSeats: 1, DepartureTime: railquery.NewClock(9, 0), ArrivalTime: railquery.NewClock(11, 0)},
		},
	}
}

// TestNotifierAgent_S4_CooldownDedup is scenario S4: cooldown=50ms,
// two detections 10ms apart then one 200ms after — expect 2 sends,
// which is also testable property #9.
func TestNotifierAgent_S4_CooldownDedup(t *testing.T) {
	ch := &countingChannel{name: "desktop"}
	bus := events.NewBus()
	n := NewNotifierAgent("서울", "부산", []notify.Channel{ch}, 50*time.Millisecond, bus, testLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	n.Start(ctx)

	n.Enqueue(detection())
	time.Sleep(10 * time.Millisecond)
	n.Enqueue(detection())
	time.Sleep(200 * time.Millisecond)
	n.Enqueue(detection())
	time.Sleep(150 * time.Millisecond)

	n.RequestStop()
	<-n.Done()

	if got := ch.count(); got != 2 {
		t.Errorf("channel sends = %d, want 2", got)
	}
}

func TestNotifierAgent_IsolatesChannelFailures(t *testing.T) {
	good := &countingChannel{name: "desktop"}
	bad := &failingChannel{name: "webhook"}
	bus := events.NewBus()
	n := NewNotifierAgent("서울", "부산", []notify.Channel{good, bad}, 0, bus, testLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	n.Start(ctx)

	n.Enqueue(detection())
	time.Sleep(150 * time.Millisecond)
	n.RequestStop()
	<-n.Done()

	if good.count() != 1 {
		t.Errorf("expected the good channel to still receive the notification, got %d sends", good.count())
	}

	msgs := drainBus(bus, 200*time.Millisecond)
	notifyComplete := 0
	for _, m := range msgs {
		if m.Kind == events.KindNotifyComplete {
			notifyComplete++
		}
	}
	if notifyComplete != 1 {
		t.Errorf("expected one NOTIFY_COMPLETE despite one failing channel, got %d", notifyComplete)
	}
}

func TestNotifierAgent_FirstNotificationHasNoCooldown(t *testing.T) {
	ch := &countingChannel{name: "desktop"}
	bus := events.NewBus()
	n := NewNotifierAgent("서울", "부산", []notify.Channel{ch}, time.Hour, bus, testLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	n.Start(ctx)

	n.Enqueue(detection())
	time.Sleep(150 * time.Millisecond)
	n.RequestStop()
	<-n.Done()

	if ch.count() != 1 {
		t.Errorf("first detection should never be dropped by cooldown, got %d sends", ch.count())
	}
}
