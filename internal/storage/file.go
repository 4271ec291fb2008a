package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/afero"

	"github.com/antikraj/plugin-license-server1/internal/license"
)

// FileStore persists every record in a single JSON document. The whole
// document is rewritten on each mutation through a temp file and rename, so a
// crash leaves either the old or the new snapshot on disk.
type FileStore struct {
	fs   afero.Fs
	path string

	mu      sync.Mutex
	records map[string]license.Record
}

// NewFileStore loads path from fs, or starts empty when the file does not
// exist yet.
func NewFileStore(fs afero.Fs, path string) (*FileStore, error) {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	s := &FileStore{fs: fs, path: path}
	if err := fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, license.NewStoreError("mkdir", err)
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

// Path returns the snapshot location.
func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) load() error {
	data, err := afero.ReadFile(s.fs, s.path)
	if errors.Is(err, os.ErrNotExist) {
		s.records = make(map[string]license.Record)
		return nil
	}
	if err != nil {
		return license.NewStoreError("load", err)
	}
	records, err := license.DecodeSnapshot(data)
	if err != nil {
		return license.NewStoreError("load", err)
	}
	s.records = records
	return nil
}

// persist writes the current records. Callers hold s.mu.
func (s *FileStore) persist() error {
	data, err := license.EncodeSnapshot(s.records)
	if err != nil {
		return license.NewStoreError("encode", err)
	}
	tmp := s.path + ".tmp"
	if err := afero.WriteFile(s.fs, tmp, data, 0o600); err != nil {
		return license.NewStoreError("write", err)
	}
	if err := s.fs.Rename(tmp, s.path); err != nil {
		_ = s.fs.Remove(tmp)
		return license.NewStoreError("rename", err)
	}
	return nil
}

// mutate applies change and persists, restoring the previous state when the
// write fails. Callers hold s.mu.
func (s *FileStore) mutate(change func(records map[string]license.Record)) error {
	prev := cloneAll(s.records)
	change(s.records)
	if err := s.persist(); err != nil {
		s.records = prev
		return err
	}
	return nil
}

func (s *FileStore) Get(_ context.Context, key string) (license.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[key]
	if !ok {
		return license.Record{}, license.ErrKeyNotFound
	}
	return rec.Clone(), nil
}

func (s *FileStore) Create(_ context.Context, key string, rec license.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[key]; ok {
		return license.ErrKeyConflict
	}
	return s.mutate(func(records map[string]license.Record) {
		records[key] = rec.Clone()
	})
}

func (s *FileStore) Update(_ context.Context, key string, fn license.UpdateFunc) (license.Record, error) {
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
	if !save {
		return out, nil
	}
	if err := s.mutate(func(records map[string]license.Record) {
		records[key] = out.Clone()
	}); err != nil {
		return license.Record{}, err
	}
	return out, nil
}

func (s *FileStore) Rename(_ context.Context, oldKey, newKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[oldKey]
	if !ok {
		return license.ErrKeyNotFound
	}
	if _, exists := s.records[newKey]; exists {
		return license.ErrKeyConflict
	}
	return s.mutate(func(records map[string]license.Record) {
		records[newKey] = rec
		delete(records, oldKey)
	})
}

func (s *FileStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[key]; !ok {
		return license.ErrKeyNotFound
	}
	return s.mutate(func(records map[string]license.Record) {
		delete(records, key)
	})
}

func (s *FileStore) Snapshot(_ context.Context) (map[string]license.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneAll(s.records), nil
}

// Export returns the snapshot file exactly as persisted. Before the first
// mutation there is no file and the canonical empty document is returned.
func (s *FileStore) Export(_ context.Context) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := afero.ReadFile(s.fs, s.path)
	if errors.Is(err, os.ErrNotExist) {
		return license.EncodeSnapshot(s.records)
	}
	if err != nil {
		return nil, license.NewStoreError("export", err)
	}
	return data, nil
}

func (s *FileStore) Ping(context.Context) error {
	dir := filepath.Dir(s.path)
	if _, err := s.fs.Stat(dir); err != nil {
		return license.NewStoreError("ping", fmt.Errorf("snapshot directory %s: %w", dir, err))
	}
	return nil
}

func (s *FileStore) Close() error { return nil }
