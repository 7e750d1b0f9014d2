package telemetry

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"

	"github.com/windasol/korail-watch/internal/config"
	"github.com/windasol/korail-watch/internal/watch"
)

const (
	minPublishInterval  = 5 * time.Second
	connectAwaitTimeout = 30 * time.Second
	onConnectTimeout    = 10 * time.Second
)

// SnapshotSource supplies the metrics snapshot to publish on each tick.
// watch.AgentMetrics satisfies this directly.
type SnapshotSource interface {
	Snapshot() watch.AgentMetricsSnapshot
}

// Publisher connects to an MQTT broker and periodically publishes the
// session's metrics snapshot as retained JSON to a single topic, with
// availability tracked via a will/birth message pair.
type Publisher struct {
	cfg    config.TelemetryConfig
	source SnapshotSource
	logger *slog.Logger
	cm     *autopaho.ConnectionManager
}

// New creates a Publisher but does not connect. Call [Publisher.Start]
// to begin the connection and publish loop.
func New(cfg config.TelemetryConfig, source SnapshotSource, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{cfg: cfg, source: source, logger: logger}
}

// shortSessionID truncates a UUIDv7 session ID to its first segment
// for use in an MQTT client ID, where brokers often cap length.
func shortSessionID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func (p *Publisher) metricsTopic() string {
	return p.cfg.TopicPrefix + "/metrics"
}

func (p *Publisher) availabilityTopic() string {
	return p.cfg.TopicPrefix + "/availability"
}

// Start connects to the broker and runs the periodic publish loop
// until ctx is cancelled. A failed initial connection does not cause
// Start to return early — autopaho retries in the background and the
// loop proceeds once connected.
func (p *Publisher) Start(ctx context.Context) error {
	brokerURL, err := url.Parse(p.cfg.MQTTBroker)
	if err != nil {
		return fmt.Errorf("parse mqtt broker URL: %w", err)
	}

	availTopic := p.availabilityTopic()

	pahoCfg := autopaho.ClientConfig{
		ServerUrls:      []*url.URL{brokerURL},
		KeepAlive:       30,
		ConnectUsername: p.cfg.MQTTUsername,
		ConnectPassword: []byte(p.cfg.MQTTPassword),
		WillMessage: &paho.WillMessage{
			Topic:   availTopic,
			Payload: []byte("offline"),
			QoS:     1,
			Retain:  true,
		},
		OnConnectionUp: func(cm *autopaho.ConnectionManager, _ *paho.Connack) {
			p.logger.Info("telemetry connected to broker", "broker", p.cfg.MQTTBroker)
			publishCtx, cancel := context.WithTimeout(context.Background(), onConnectTimeout)
			defer cancel()
			p.publishAvailability(publishCtx, cm, "online")
		},
		OnConnectError: func(err error) {
			p.logger.Warn("telemetry connection error", "error", err)
		},
		ClientConfig: paho.ClientConfig{
			ClientID: "korail-watch-telemetry-" + shortSessionID(p.source.Snapshot().SessionID),
		},
	}

	if brokerURL.Scheme == "mqtts" || brokerURL.Scheme == "ssl" {
		pahoCfg.TlsCfg = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	cm, err := autopaho.NewConnection(ctx, pahoCfg)
	if err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}
	p.cm = cm

	connCtx, connCancel := context.WithTimeout(ctx, connectAwaitTimeout)
	defer connCancel()
	if err := cm.AwaitConnection(connCtx); err != nil {
		p.logger.Warn("telemetry initial connection timed out, will retry in background", "error", err)
	}

	p.runLoop(ctx)
	return nil
}

// Stop gracefully disconnects by publishing an "offline" availability
// message before closing the MQTT connection.
func (p *Publisher) Stop(ctx context.Context) error {
	if p.cm == nil {
		return nil
	}
	p.publishAvailability(ctx, p.cm, "offline")
	return p.cm.Disconnect(ctx)
}

func (p *Publisher) runLoop(ctx context.Context) {
	interval := time.Duration(p.cfg.PublishIntervalSec) * time.Second
	if interval <= 0 {
		p.logger.Warn("telemetry publish interval non-positive; using minimum",
			"configured_seconds", p.cfg.PublishIntervalSec,
			"minimum", minPublishInterval.String())
		interval = minPublishInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	p.publishSnapshot(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.publishSnapshot(ctx)
		}
	}
}

func (p *Publisher) publishSnapshot(ctx context.Context) {
	if p.cm == nil {
		return
	}

	payload, err := json.Marshal(p.source.Snapshot())
	if err != nil {
		p.logger.Error("telemetry marshal snapshot", "error", err)
		return
	}

	if _, err := p.cm.Publish(ctx, &paho.Publish{
		Topic:   p.metricsTopic(),
		Payload: payload,
		QoS:     0,
		Retain:  true,
	}); err != nil {
		p.logger.Warn("telemetry publish failed", "error", err)
		return
	}
	p.logger.Debug("telemetry snapshot published", "topic", p.metricsTopic())
}

func (p *Publisher) publishAvailability(ctx context.Context, cm *autopaho.ConnectionManager, status string) {
	if _, err := cm.Publish(ctx, &paho.Publish{
		Topic:   p.availabilityTopic(),
		Payload: []byte(status),
		QoS:     1,
		Retain:  true,
	}); err != nil {
		p.logger.Warn("telemetry availability publish failed", "status", status, "error", err)
	} else {
		p.logger.Info("telemetry availability published", "status", status)
	}
}
