package license

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"
)

// Lifecycle is the binding/heartbeat state machine.
type Lifecycle struct {
	store Store
	opts  options

	// Heartbeats arrive every few seconds per client; log a sample only.
	refreshLog rate.Sometimes
}

// NewLifecycle returns a Lifecycle over store.
func NewLifecycle(store Store, opts ...Option) *Lifecycle {
	o := buildOptions(opts)
	o.logger = o.logger.With(slog.String("component", "license_lifecycle"))
	return &Lifecycle{
		store:      store,
		opts:       o,
		refreshLog: rate.Sometimes{First: 1, Interval: 30 * time.Second},
	}
}

// HeartbeatTimeout returns the configured reclamation window.
func (l *Lifecycle) HeartbeatTimeout() time.Duration {
	return l.opts.heartbeatTimeout
}

// Verify decides validity of a key for a client and performs the binding and
// heartbeat transitions. Business denials are returned as an invalid result
// with a nil error; errors are reserved for bad input and store failures.
func (l *Lifecycle) Verify(ctx context.Context, req VerifyRequest) (result VerifyResult, err error) {
	key := NormalizeKey(req.Key)
	clientID := strings.TrimSpace(req.ClientID)
	scope := strings.TrimSpace(req.Scope)

	ctx, span := startSpan(ctx, "license.verify", key)
	start := time.Now()
	defer func() {
		l.opts.metrics.recordVerify(ctx, result, err, time.Since(start))
		span.SetAttributes(
			attribute.Bool("license.valid", result.Valid),
			attribute.String("license.reason", string(result.Reason)),
		)
		endSpan(span, err)
	}()

	if key == "" || clientID == "" {
		return VerifyResult{}, fmt.Errorf("%w: key and client_id are required", ErrInvalidInput)
	}

	var (
		reclaimedFrom string
		at            time.Time
	)
	_, err = update(ctx, l.store, l.opts.metrics, key, func(rec Record) (Record, bool, error) {
		now := l.opts.clock()
		at = now
		reclaimedFrom = ""

		if !rec.MatchesScope(scope) {
			result = invalid(ReasonScopeMismatch)
			result.ExpectedScope = rec.Scope()
			return rec, false, nil
		}

		if rec.IsExpired(now) {
			result = invalid(ReasonExpired)
			result.Owner = rec.Owner
			exp := rec.ExpiresAt
			result.ExpiresAt = &exp
			return rec, false, nil
		}

		if rec.IsBound() {
			if age, ok := rec.HeartbeatAge(now); ok && age > l.opts.heartbeatTimeout {
				reclaimedFrom = rec.BoundTo()
				rec.clearBinding()
			}
		}

		switch {
		case !rec.IsBound() || !rec.InUse:
			rec.bind(clientID, now)
			result = valid(NoteActivated, rec)
		case rec.IsBoundTo(clientID):
			if rec.LastHeartbeatAt == nil || now.After(*rec.LastHeartbeatAt) {
				rec.bind(clientID, now)
			}
			result = valid(NoteHeartbeatRefreshed, rec)
		default:
			result = invalid(ReasonInUse)
			result.BoundTo = rec.BoundTo()
			return rec, false, nil
		}

		result.Reclaimed = reclaimedFrom != ""
		return rec, true, nil
	})

	switch {
	case errors.Is(err, ErrKeyNotFound):
		result, err = invalid(ReasonNotFound), nil
		at = l.opts.clock()
	case err != nil:
		l.opts.logger.ErrorContext(ctx, "verify failed",
			slog.String("key", MaskKey(key)),
			slog.String("client_id", clientID),
			slog.String("error", err.Error()),
		)
		return VerifyResult{}, err
	}

	l.publishVerify(ctx, key, clientID, reclaimedFrom, result, at)
	return result, nil
}

func (l *Lifecycle) publishVerify(ctx context.Context, key, clientID, reclaimedFrom string, res VerifyResult, at time.Time) {
	log := l.opts.logger.With(
		slog.String("key", MaskKey(key)),
		slog.String("client_id", clientID),
	)

	if reclaimedFrom != "" {
		log.InfoContext(ctx, "stale binding reclaimed", slog.String("previous_client_id", reclaimedFrom))
		l.opts.events.Publish(Event{Type: EventReclaimed, Key: key, ClientID: reclaimedFrom, At: at})
	}

	switch {
	case !res.Valid:
		log.DebugContext(ctx, "verification denied", slog.String("reason", string(res.Reason)))
		l.opts.events.Publish(Event{Type: EventDenied, Key: key, ClientID: clientID, Reason: res.Reason, At: at})
	case res.Note == NoteActivated:
		log.InfoContext(ctx, "license activated")
		l.opts.events.Publish(Event{Type: EventClaimed, Key: key, ClientID: clientID, At: at})
	default:
		l.refreshLog.Do(func() {
			log.DebugContext(ctx, "heartbeat refreshed")
		})
		l.opts.events.Publish(Event{Type: EventRefreshed, Key: key, ClientID: clientID, At: at})
	}
}

// Release marks the caller's binding inactive for a graceful shutdown. The
// binding and heartbeat are retained until the next claim or reclamation.
func (l *Lifecycle) Release(ctx context.Context, key, clientID string) (err error) {
	key = NormalizeKey(key)
	clientID = strings.TrimSpace(clientID)

	ctx, span := startSpan(ctx, "license.release", key)
	defer func() {
		l.opts.metrics.recordRelease(ctx, err)
		endSpan(span, err)
	}()

	if key == "" || clientID == "" {
		return fmt.Errorf("%w: key and client_id are required", ErrInvalidInput)
	}

	_, err = update(ctx, l.store, l.opts.metrics, key, func(rec Record) (Record, bool, error) {
		if !rec.IsBoundTo(clientID) {
			return rec, false, fmt.Errorf("%w: license is not bound to this client", ErrUnauthorized)
		}
		rec.InUse = false
		return rec, true, nil
	})
	if err != nil {
		return err
	}

	l.opts.logger.InfoContext(ctx, "license released",
		slog.String("key", MaskKey(key)),
		slog.String("client_id", clientID),
	)
	l.opts.events.Publish(Event{Type: EventReleased, Key: key, ClientID: clientID, At: l.opts.clock()})
	return nil
}

// update runs store.Update and records its latency.
func update(ctx context.Context, store Store, m *Metrics, key string, fn UpdateFunc) (Record, error) {
	start := time.Now()
	rec, err := store.Update(ctx, key, fn)
	m.recordStore(ctx, time.Since(start), err)
	return rec, err
}
