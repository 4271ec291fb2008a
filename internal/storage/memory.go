package storage

import (
	"context"
	"sync"

	"github.com/antikraj/plugin-license-server1/internal/license"
)

// MemoryStore keeps records in process memory. All mutations are serialized
// by one mutex.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]license.Record
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]license.Record)}
}

// NewMemoryStoreFrom returns a store seeded with a copy of records.
func NewMemoryStoreFrom(records map[string]license.Record) *MemoryStore {
	s := NewMemoryStore()
	for k, rec := range records {
		s.records[k] = rec.Clone()
	}
	return s
}

func (s *MemoryStore) Get(_ context.Context, key string) (license.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[key]
	if !ok {
		return license.Record{}, license.ErrKeyNotFound
	}
	return rec.Clone(), nil
}

func (s *MemoryStore) Create(_ context.Context, key string, rec license.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[key]; ok {
		return license.ErrKeyConflict
	}
	s.records[key] = rec.Clone()
	return nil
}

func (s *MemoryStore) Update(_ context.Context, key string, fn license.UpdateFunc) (license.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[key]
	if !ok {
		return license.Record{}, license.ErrKeyNotFound
	}
	out, save, err := fn(rec.Clone())
	if err != nil {
		return license.Record{}, err
	}
	if save {
		s.records[key] = out.Clone()
	}
	return out, nil
}

func (s *MemoryStore) Rename(_ context.Context, oldKey, newKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[oldKey]
	if !ok {
		return license.ErrKeyNotFound
	}
	if _, exists := s.records[newKey]; exists {
		return license.ErrKeyConflict
	}
	s.records[newKey] = rec
	delete(s.records, oldKey)
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[key]; !ok {
		return license.ErrKeyNotFound
	}
	delete(s.records, key)
	return nil
}

func (s *MemoryStore) Snapshot(_ context.Context) (map[string]license.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneAll(s.records), nil
}

func (s *MemoryStore) Export(ctx context.Context) ([]byte, error) {
	snap, _ := s.Snapshot(ctx)
	return license.EncodeSnapshot(snap)
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }

func cloneAll(records map[string]license.Record) map[string]license.Record {
	out := make(map[string]license.Record, len(records))
	for k, rec := range records {
		out[k] = rec.Clone()
	}
	return out
}
