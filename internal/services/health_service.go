package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/antikraj/plugin-license-server1/internal/infrastructure"
	"github.com/antikraj/plugin-license-server1/pkg/contracts"
	"github.com/antikraj/plugin-license-server1/pkg/contracts/domain"
)

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ClientCounter reports connected event stream observers.
type ClientCounter interface {
	ClientCount() int
}

// HealthService provides health check functionality
type HealthService interface {
	HealthCheck(ctx context.Context) domain.HealthStatus
	ReadinessCheck(ctx context.Context) domain.HealthStatus
	LivenessCheck(ctx context.Context) domain.HealthStatus
	Version() contracts.VersionInfo
}

type healthService struct {
	store       Pinger
	hub         ClientCounter
	backend     string
	pingTimeout time.Duration
	startTime   time.Time
	logger      *slog.Logger
}

// NewHealthService creates a health service. hub may be nil when the event
// stream is disabled.
func NewHealthService(store Pinger, backend string, hub ClientCounter, logger *slog.Logger) HealthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &healthService{
		store:       store,
		hub:         hub,
		backend:     backend,
		pingTimeout: 2 * time.Second,
		startTime:   time.Now(),
		logger:      logger.With(slog.String("service", "health")),
	}
}

// HealthCheck returns overall health status
func (hs *healthService) HealthCheck(ctx context.Context) domain.HealthStatus {
	return domain.HealthStatus{
		Status:    "ok",
		Timestamp: time.Now().UTC(),
		Version:   contracts.Version,
	}
}

// ReadinessCheck pings the license store; the service is ready only when the
// store answers.
func (hs *healthService) ReadinessCheck(ctx context.Context) domain.HealthStatus {
	status := domain.HealthStatus{
		Status:    "ready",
		Timestamp: time.Now().UTC(),
		Version:   contracts.Version,
		Services:  make(map[string]domain.ServiceHealth),
	}

	store := hs.checkStore(ctx)
	status.Services["store"] = store
	if store.Status != "ready" {
		status.Status = "not_ready"
	}

	if hs.hub != nil {
		status.Services["events"] = domain.ServiceHealth{
			Status:  "ready",
			Message: pluralClients(hs.hub.ClientCount()),
		}
	}

	return status
}

// LivenessCheck returns liveness status
func (hs *healthService) LivenessCheck(ctx context.Context) domain.HealthStatus {
	return domain.HealthStatus{
		Status:    "alive",
		Timestamp: time.Now().UTC(),
		Version:   contracts.Version,
		Runtime:   infrastructure.ReadRuntimeStats(hs.startTime).Map(),
	}
}

// Version returns version information
func (hs *healthService) Version() contracts.VersionInfo {
	return contracts.GetVersionInfo()
}

func (hs *healthService) checkStore(ctx context.Context) domain.ServiceHealth {
	ctx, cancel := context.WithTimeout(ctx, hs.pingTimeout)
	defer cancel()

	start := time.Now()
	err := hs.store.Ping(ctx)
	latency := time.Since(start)

	if err != nil {
		hs.logger.WarnContext(ctx, "store readiness check failed",
			slog.String("backend", hs.backend),
			slog.String("error", err.Error()),
		)
		return domain.ServiceHealth{
			Status:  "not_ready",
			Message: hs.backend + " store unreachable",
			Latency: latency.String(),
		}
	}
	return domain.ServiceHealth{
		Status:  "ready",
		Message: hs.backend + " store reachable",
		Latency: latency.String(),
	}
}

func pluralClients(n int) string {
	if n == 1 {
		return "1 observer connected"
	}
	return fmt.Sprintf("%d observers connected", n)
}
