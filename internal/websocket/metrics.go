package websocket

import (
	"context"

	"go.opentelemetry.io/otel/metric"
)

// Metrics holds the event stream instruments. A nil *Metrics records nothing.
type Metrics struct {
	Connections   metric.Int64Counter
	ActiveClients metric.Int64UpDownCounter
	MessagesSent  metric.Int64Counter
	EventsDropped metric.Int64Counter
}

// InitializeMetrics creates the event stream instruments on meter.
func InitializeMetrics(meter metric.Meter) (*Metrics, error) {
	connections, err := meter.Int64Counter(
		"license_events_ws_connections_total",
		metric.WithDescription("Admin event stream connections accepted"),
	)
	if err != nil {
		return nil, err
	}

	active, err := meter.Int64UpDownCounter(
		"license_events_ws_active_clients",
		metric.WithDescription("Admin event stream observers currently connected"),
	)
	if err != nil {
		return nil, err
	}

	sent, err := meter.Int64Counter(
		"license_events_ws_messages_sent_total",
		metric.WithDescription("Event frames queued to observers"),
	)
	if err != nil {
		return nil, err
	}

	dropped, err := meter.Int64Counter(
		"license_events_ws_dropped_total",
		metric.WithDescription("Events dropped because the broadcast queue was full"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		Connections:   connections,
		ActiveClients: active,
		MessagesSent:  sent,
		EventsDropped: dropped,
	}, nil
}

func (m *Metrics) recordConnect(ctx context.Context) {
	if m == nil {
		return
	}
	m.Connections.Add(ctx, 1)
	m.ActiveClients.Add(ctx, 1)
}

func (m *Metrics) recordDisconnect(ctx context.Context) {
	if m == nil {
		return
	}
	m.ActiveClients.Add(ctx, -1)
}

func (m *Metrics) recordSent(ctx context.Context) {
	if m == nil {
		return
	}
	m.MessagesSent.Add(ctx, 1)
}

func (m *Metrics) recordDropped(ctx context.Context) {
	if m == nil {
		return
	}
	m.EventsDropped.Add(ctx, 1)
}
