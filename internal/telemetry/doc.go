// Package telemetry optionally exports a monitoring session's metrics
// to an MQTT broker for external dashboards. It is adapted from a
// richer Home-Assistant-discovery publisher down to the minimum that
// fits one session: connect, publish a retained JSON snapshot on a
// fixed interval, and track availability via a will/birth message
// pair. With no broker configured, the publisher is never started and
// has no effect on the session.
package telemetry
