package license

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
)

// UpdateFunc receives a copy of the current record and returns the record to
// persist. When save is false nothing is written. A non-nil error aborts the
// update and is returned unchanged by Store.Update.
//
// Backends with optimistic concurrency may invoke the function more than once;
// it must not have side effects beyond its return values and captured locals
// it fully reassigns on each call.
type UpdateFunc func(rec Record) (out Record, save bool, err error)

// Store is the persistence contract for license records.
//
// Implementations serialize Update calls per key and commit durably before
// returning. Backend failures are wrapped with NewStoreError so callers can
// match ErrStoreUnavailable.
type Store interface {
	// Get returns the record for key or ErrKeyNotFound.
	Get(ctx context.Context, key string) (Record, error)

	// Create inserts rec under key. It never overwrites: an existing key
	// yields ErrKeyConflict.
	Create(ctx context.Context, key string, rec Record) error

	// Update performs an atomic read-modify-write on key. An absent key yields
	// ErrKeyNotFound without calling fn.
	Update(ctx context.Context, key string, fn UpdateFunc) (Record, error)

	// Rename moves the record from oldKey to newKey atomically.
	Rename(ctx context.Context, oldKey, newKey string) error

	// Delete removes key or returns ErrKeyNotFound.
	Delete(ctx context.Context, key string) error

	// Snapshot returns a copy of every record.
	Snapshot(ctx context.Context) (map[string]Record, error)

	// Export returns the canonical serialized form of the persisted state.
	Export(ctx context.Context) ([]byte, error)

	// Ping reports whether the backend is reachable.
	Ping(ctx context.Context) error

	Close() error
}

// EncodeSnapshot renders records as the canonical persisted JSON: an object
// keyed by license key, keys sorted, two-space indent, trailing newline.
func EncodeSnapshot(records map[string]Record) ([]byte, error) {
	if records == nil {
		records = map[string]Record{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode license snapshot: %w", err)
	}
	return append(data, '\n'), nil
}

// DecodeSnapshot parses the canonical persisted JSON. Empty input is an empty
// snapshot.
func DecodeSnapshot(data []byte) (map[string]Record, error) {
	records := map[string]Record{}
	if len(data) == 0 {
		return records, nil
	}
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode license snapshot: %w", err)
	}
	for k, rec := range records {
		rec.ExpiresAt = rec.ExpiresAt.UTC()
		rec.CreatedAt = rec.CreatedAt.UTC()
		if rec.LastHeartbeatAt != nil {
			t := rec.LastHeartbeatAt.UTC()
			rec.LastHeartbeatAt = &t
		}
		records[k] = rec
	}
	return records, nil
}

// SortedKeys returns the keys of records in ascending order.
func SortedKeys(records map[string]Record) []string {
	keys := make([]string, 0, len(records))
	for k := range records {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
