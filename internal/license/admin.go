package license

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// DefaultOwner labels licenses created without an owner.
const DefaultOwner = "unknown"

// ActiveThreshold is the heartbeat age below which a connection is "active".
const ActiveThreshold = 5 * time.Second

// CreateParams describes a new license.
type CreateParams struct {
	Owner        string
	Days         int
	ProductScope string
	CustomKey    string
}

// Status is the connection state of a license as shown to administrators.
type Status string

const (
	StatusActive  Status = "active"
	StatusSlow    Status = "slow"
	StatusOffline Status = "offline"
	StatusUnbound Status = "unbound"
	StatusExpired Status = "expired"
)

// Entry is a record annotated for listing.
type Entry struct {
	Key          string
	Record       Record
	Status       Status
	HeartbeatAge *time.Duration
}

// Admin implements the privileged license operations. Every method requires
// a context marked with WithAdmin.
type Admin struct {
	store Store
	opts  options
}

// NewAdmin returns an Admin over store.
func NewAdmin(store Store, opts ...Option) *Admin {
	o := buildOptions(opts)
	o.logger = o.logger.With(slog.String("component", "license_admin"))
	return &Admin{store: store, opts: o}
}

// Now returns the current time of the admin clock.
func (a *Admin) Now() time.Time {
	return a.opts.clock()
}

// HeartbeatTimeout returns the reclamation window used for status.
func (a *Admin) HeartbeatTimeout() time.Duration {
	return a.opts.heartbeatTimeout
}

// Create issues a new license and returns its key.
func (a *Admin) Create(ctx context.Context, p CreateParams) (key string, rec Record, err error) {
	ctx, span := startSpan(ctx, "license.admin.create", p.CustomKey)
	// Failed returns clear key; log the key that was tried.
	attempted := NormalizeKey(p.CustomKey)
	defer func() {
		if key != "" {
			attempted = key
		}
		a.finish(ctx, "create", attempted, "", err)
		endSpan(span, err)
	}()

	if _, err = requireAdmin(ctx); err != nil {
		return "", Record{}, err
	}
	if p.Days < 1 {
		return "", Record{}, fmt.Errorf("%w: days must be at least 1", ErrInvalidInput)
	}

	now := a.opts.clock()
	expiresAt, err := shiftExpiry(now, p.Days)
	if err != nil {
		return "", Record{}, err
	}
	owner := strings.TrimSpace(p.Owner)
	if owner == "" {
		owner = DefaultOwner
	}
	rec = Record{
		Owner:        owner,
		ProductScope: OptionalString(p.ProductScope),
		ExpiresAt:    expiresAt,
		CreatedAt:    now,
	}

	if strings.TrimSpace(p.CustomKey) != "" {
		key, err = ValidateCustomKey(p.CustomKey)
		if err != nil {
			return "", Record{}, err
		}
		if err = a.store.Create(ctx, key, rec); err != nil {
			return "", Record{}, err
		}
		return key, rec, nil
	}

	for attempt := 0; attempt < MaxKeyGenerationAttempts; attempt++ {
		key, err = a.opts.keygen.Generate()
		if err != nil {
			return "", Record{}, err
		}
		attempted = key
		err = a.store.Create(ctx, key, rec)
		if err == nil {
			return key, rec, nil
		}
		if !errors.Is(err, ErrKeyConflict) {
			return "", Record{}, err
		}
		a.opts.logger.WarnContext(ctx, "generated key collided, retrying", slog.Int("attempt", attempt+1))
	}
	return "", Record{}, fmt.Errorf("%w: could not generate a unique key after %d attempts", ErrKeyConflict, MaxKeyGenerationAttempts)
}

// Extend adds days to the stored expiry. Negative values shorten it.
func (a *Admin) Extend(ctx context.Context, key string, days int) (rec Record, err error) {
	key = NormalizeKey(key)
	ctx, span := startSpan(ctx, "license.admin.extend", key)
	defer func() { a.finish(ctx, "extend", key, "", err); endSpan(span, err) }()

	if _, err = requireAdmin(ctx); err != nil {
		return Record{}, err
	}
	return update(ctx, a.store, a.opts.metrics, key, func(r Record) (Record, bool, error) {
		expiresAt, err := shiftExpiry(r.ExpiresAt, days)
		if err != nil {
			return Record{}, false, err
		}
		r.ExpiresAt = expiresAt
		return r, true, nil
	})
}

// Expire makes the license invalid from now on. Calling it again moves the
// expiry to the new now.
func (a *Admin) Expire(ctx context.Context, key string) (rec Record, err error) {
	key = NormalizeKey(key)
	ctx, span := startSpan(ctx, "license.admin.expire", key)
	defer func() { a.finish(ctx, "expire", key, "", err); endSpan(span, err) }()

	if _, err = requireAdmin(ctx); err != nil {
		return Record{}, err
	}
	return update(ctx, a.store, a.opts.metrics, key, func(r Record) (Record, bool, error) {
		// One second back so a verify at the same instant is strictly after.
		r.ExpiresAt = a.opts.clock().Add(-time.Second)
		return r, true, nil
	})
}

// Unbind clears any client binding regardless of ownership.
func (a *Admin) Unbind(ctx context.Context, key string) (rec Record, err error) {
	key = NormalizeKey(key)
	ctx, span := startSpan(ctx, "license.admin.unbind", key)
	defer func() { a.finish(ctx, "unbind", key, "", err); endSpan(span, err) }()

	if _, err = requireAdmin(ctx); err != nil {
		return Record{}, err
	}
	return update(ctx, a.store, a.opts.metrics, key, func(r Record) (Record, bool, error) {
		r.clearBinding()
		return r, true, nil
	})
}

// Rename moves a license to a new key.
func (a *Admin) Rename(ctx context.Context, key, newKey string) (renamed string, err error) {
	key = NormalizeKey(key)
	ctx, span := startSpan(ctx, "license.admin.rename", key)
	defer func() { a.finish(ctx, "rename", key, renamed, err); endSpan(span, err) }()

	if _, err = requireAdmin(ctx); err != nil {
		return "", err
	}
	renamed, err = ValidateCustomKey(newKey)
	if err != nil {
		return "", err
	}
	if renamed == key {
		return "", fmt.Errorf("%w: new key equals the current key", ErrKeyConflict)
	}
	if err = a.store.Rename(ctx, key, renamed); err != nil {
		return "", err
	}
	return renamed, nil
}

// Delete removes a license permanently.
func (a *Admin) Delete(ctx context.Context, key string) (err error) {
	key = NormalizeKey(key)
	ctx, span := startSpan(ctx, "license.admin.delete", key)
	defer func() { a.finish(ctx, "delete", key, "", err); endSpan(span, err) }()

	if _, err = requireAdmin(ctx); err != nil {
		return err
	}
	return a.store.Delete(ctx, key)
}

// Export returns the byte-exact persisted snapshot.
func (a *Admin) Export(ctx context.Context) (data []byte, err error) {
	ctx, span := startSpan(ctx, "license.admin.export", "")
	defer func() {
		a.opts.metrics.recordAdmin(ctx, "export", err)
		endSpan(span, err)
	}()

	if _, err = requireAdmin(ctx); err != nil {
		return nil, err
	}
	return a.store.Export(ctx)
}

// Get returns a single record.
func (a *Admin) Get(ctx context.Context, key string) (Entry, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return Entry{}, err
	}
	key = NormalizeKey(key)
	rec, err := a.store.Get(ctx, key)
	if err != nil {
		return Entry{}, err
	}
	return a.entry(key, rec, a.opts.clock()), nil
}

// List returns every record sorted by key, annotated with connection status.
func (a *Admin) List(ctx context.Context) ([]Entry, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return nil, err
	}
	records, err := a.store.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	now := a.opts.clock()
	entries := make([]Entry, 0, len(records))
	for _, k := range SortedKeys(records) {
		entries = append(entries, a.entry(k, records[k], now))
	}
	return entries, nil
}

func (a *Admin) entry(key string, rec Record, now time.Time) Entry {
	e := Entry{Key: key, Record: rec}
	if age, ok := rec.HeartbeatAge(now); ok {
		e.HeartbeatAge = &age
	}
	e.Status = ConnectionStatus(rec, now, a.opts.heartbeatTimeout)
	return e
}

// ConnectionStatus classifies a record by expiry, binding and heartbeat age.
func ConnectionStatus(rec Record, now time.Time, timeout time.Duration) Status {
	if rec.IsExpired(now) {
		return StatusExpired
	}
	if !rec.IsBound() {
		return StatusUnbound
	}
	age, ok := rec.HeartbeatAge(now)
	switch {
	case !rec.InUse || !ok:
		return StatusOffline
	case age < ActiveThreshold:
		return StatusActive
	case age <= timeout:
		return StatusSlow
	default:
		return StatusOffline
	}
}

// finish records the metric, log line and event for a mutating admin call.
func (a *Admin) finish(ctx context.Context, op, key, detail string, err error) {
	a.opts.metrics.recordAdmin(ctx, op, err)
	actor, _ := AdminFromContext(ctx)
	if err != nil {
		level := slog.LevelWarn
		if !IsDenial(err) {
			level = slog.LevelError
		}
		a.opts.logger.Log(ctx, level, "admin operation failed",
			slog.String("operation", op),
			slog.String("key", MaskKey(key)),
			slog.String("actor", actor),
			slog.String("error", err.Error()),
		)
		return
	}
	a.opts.logger.InfoContext(ctx, "admin operation",
		slog.String("operation", op),
		slog.String("key", MaskKey(key)),
		slog.String("actor", actor),
	)
	a.opts.events.Publish(Event{Type: adminEvents[op], Key: key, Detail: detail, Actor: actor, At: a.opts.clock()})
}

var adminEvents = map[string]EventType{
	"create": EventCreated,
	"extend": EventExtended,
	"expire": EventExpired,
	"unbind": EventUnbound,
	"rename": EventRenamed,
	"delete": EventDeleted,
}
