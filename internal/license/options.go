package license

import (
	"log/slog"
	"time"
)

// DefaultHeartbeatTimeout is how long a binding survives without a heartbeat.
const DefaultHeartbeatTimeout = 10 * time.Second

type options struct {
	clock            Clock
	heartbeatTimeout time.Duration
	events           EventSink
	logger           *slog.Logger
	metrics          *Metrics
	keygen           *KeyGenerator
}

// Option configures a Lifecycle or Admin.
type Option func(*options)

func defaultOptions() options {
	return options{
		clock:            SystemClock,
		heartbeatTimeout: DefaultHeartbeatTimeout,
		events:           discardSink{},
		logger:           slog.Default(),
		keygen:           NewKeyGenerator(DefaultKeyLength),
	}
}

func buildOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithClock injects the time source.
func WithClock(c Clock) Option {
	return func(o *options) {
		if c != nil {
			o.clock = c
		}
	}
}

// WithHeartbeatTimeout sets the reclamation window. Non-positive values keep
// the default.
func WithHeartbeatTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.heartbeatTimeout = d
		}
	}
}

// WithEventSink publishes lifecycle events to sink.
func WithEventSink(sink EventSink) Option {
	return func(o *options) {
		if sink != nil {
			o.events = sink
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetrics records OpenTelemetry metrics.
func WithMetrics(m *Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithKeyGenerator replaces the random key generator used by Create.
func WithKeyGenerator(g *KeyGenerator) Option {
	return func(o *options) {
		if g != nil {
			o.keygen = g
		}
	}
}
