package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/antikraj/plugin-license-server1/internal/license"
)

// Message types sent to observers.
const (
	TypeConnection   = "connection"
	TypeLicenseEvent = "license_event"
)

const (
	defaultBroadcastBuffer = 256
	defaultSendBuffer      = 64
	defaultPongWait        = 60 * time.Second
	writeWait              = 10 * time.Second
	maxMessageSize         = 512
)

// Envelope is the JSON frame written to every observer.
type Envelope struct {
	Type      string    `json:"type"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

// HubConfig tunes client keepalive.
type HubConfig struct {
	PingPeriod time.Duration
	PongWait   time.Duration
	SendBuffer int
}

func (c HubConfig) withDefaults() HubConfig {
	if c.PongWait <= 0 {
		c.PongWait = defaultPongWait
	}
	if c.PingPeriod <= 0 || c.PingPeriod >= c.PongWait {
		c.PingPeriod = c.PongWait * 9 / 10
	}
	if c.SendBuffer <= 0 {
		c.SendBuffer = defaultSendBuffer
	}
	return c
}

// Hub fans license lifecycle events out to connected admin observers. It
// implements license.EventSink; Publish never blocks the lifecycle, and
// events are dropped when observers fall behind.
type Hub struct {
	clients    map[*Client]struct{}
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	quit       chan struct{}
	done       chan struct{}

	mu       sync.RWMutex
	running  bool
	stopOnce sync.Once

	cfg     HubConfig
	logger  *slog.Logger
	metrics *Metrics
	dropped atomic.Int64
}

// NewHub creates a hub. Call Start before registering clients.
func NewHub(cfg HubConfig, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		clients:    make(map[*Client]struct{}),
		broadcast:  make(chan []byte, defaultBroadcastBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
		cfg:        cfg.withDefaults(),
		logger:     logger.With(slog.String("component", "websocket.hub")),
	}
}

// WithMetrics attaches OTel instruments created on meter.
func (h *Hub) WithMetrics(meter metric.Meter) error {
	m, err := InitializeMetrics(meter)
	if err != nil {
		return err
	}
	h.metrics = m
	return nil
}

// Start runs the hub loop in a new goroutine. Extra calls are no-ops.
func (h *Hub) Start() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.running {
		return
	}
	h.running = true
	go h.run()
}

// Stop disconnects every client and ends the hub loop.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		close(h.quit)
		h.mu.RLock()
		running := h.running
		h.mu.RUnlock()
		if running {
			<-h.done
		}
	})
}

func (h *Hub) run() {
	defer close(h.done)
	ctx := context.Background()

	for {
		select {
		case <-h.quit:
			h.mu.Lock()
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			h.mu.Unlock()
			h.logger.Info("hub stopped")
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			count := len(h.clients)
			h.mu.Unlock()

			h.metrics.recordConnect(ctx)
			h.logger.Info("observer connected",
				slog.String("client_id", c.id),
				slog.String("admin", c.admin),
				slog.String("remote_addr", c.remoteAddr),
				slog.Int("total_clients", count))

			if hello, err := encode(TypeConnection, map[string]string{
				"status":    "connected",
				"client_id": c.id,
			}); err == nil {
				select {
				case c.send <- hello:
				default:
				}
			}

		case c := <-h.unregister:
			h.mu.Lock()
			_, ok := h.clients[c]
			if ok {
				delete(h.clients, c)
				close(c.send)
			}
			count := len(h.clients)
			h.mu.Unlock()

			if ok {
				h.metrics.recordDisconnect(ctx)
				h.logger.Info("observer disconnected",
					slog.String("client_id", c.id),
					slog.Duration("connection_duration", time.Since(c.connectedAt)),
					slog.Int("total_clients", count))
			}

		case msg := <-h.broadcast:
			h.mu.Lock()
			for c := range h.clients {
				select {
				case c.send <- msg:
					h.metrics.recordSent(ctx)
				default:
					close(c.send)
					delete(h.clients, c)
					h.metrics.recordDisconnect(ctx)
					h.logger.Warn("observer send buffer full, disconnecting",
						slog.String("client_id", c.id))
				}
			}
			h.mu.Unlock()
		}
	}
}

// Publish queues e for every observer. It implements license.EventSink.
func (h *Hub) Publish(e license.Event) {
	msg, err := encode(TypeLicenseEvent, e)
	if err != nil {
		h.logger.Error("failed to encode license event",
			slog.String("error", err.Error()),
			slog.String("event", string(e.Type)))
		return
	}

	select {
	case <-h.quit:
		return
	default:
	}

	select {
	case h.broadcast <- msg:
	default:
		h.dropped.Add(1)
		h.metrics.recordDropped(context.Background())
	}
}

// Register adds a client; it returns false once the hub is stopped.
func (h *Hub) Register(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.quit:
		return false
	}
}

// Unregister removes a client and closes its send channel.
func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.quit:
	}
}

// ClientCount returns the number of connected observers.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Dropped returns how many events were discarded because the hub was busy.
func (h *Hub) Dropped() int64 {
	return h.dropped.Load()
}

func encode(typ string, data any) ([]byte, error) {
	return json.Marshal(Envelope{Type: typ, Data: data, Timestamp: time.Now().UTC()})
}
