package storage

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/antikraj/plugin-license-server1/internal/license"
)

const testSnapshotPath = "/data/licenses.json"

func TestFileStore(t *testing.T) {
	runStoreSuite(t, func(t *testing.T) license.Store {
		s, err := NewFileStore(afero.NewMemMapFs(), testSnapshotPath)
		require.NoError(t, err)
		return s
	})
}

func TestFileStoreReloadReproducesRecords(t *testing.T) {
	ctx := context.Background()
	fs := afero.NewMemMapFs()

	s, err := NewFileStore(fs, testSnapshotPath)
	require.NoError(t, err)

	hb := baseTime.Add(3 * time.Second)
	rec := sampleRecord("alice")
	rec.BoundClientID = license.StringPtr("srv1")
	rec.InUse = true
	rec.LastHeartbeatAt = &hb
	require.NoError(t, s.Create(ctx, "KEY000001", rec))
	require.NoError(t, s.Create(ctx, "KEY000002", license.Record{Owner: "bob", ExpiresAt: baseTime, CreatedAt: baseTime}))

	reloaded, err := NewFileStore(fs, testSnapshotPath)
	require.NoError(t, err)

	got, err := reloaded.Get(ctx, "KEY000001")
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Owner)
	assert.Equal(t, "myplugin", got.Scope())
	assert.Equal(t, "srv1", got.BoundTo())
	assert.True(t, got.InUse)
	require.NotNil(t, got.LastHeartbeatAt)
	assert.True(t, hb.Equal(*got.LastHeartbeatAt))

	unscoped, err := reloaded.Get(ctx, "KEY000002")
	require.NoError(t, err)
	assert.Nil(t, unscoped.ProductScope)
	assert.Nil(t, unscoped.BoundClientID)
}

func TestFileStoreExportIsFileBytes(t *testing.T) {
	ctx := context.Background()
	fs := afero.NewMemMapFs()

	s, err := NewFileStore(fs, testSnapshotPath)
	require.NoError(t, err)

	empty, err := s.Export(ctx)
	require.NoError(t, err)
	assert.Equal(t, "{}\n", string(empty))

	require.NoError(t, s.Create(ctx, "KEY000001", sampleRecord("alice")))

	exported, err := s.Export(ctx)
	require.NoError(t, err)
	onDisk, err := afero.ReadFile(fs, testSnapshotPath)
	require.NoError(t, err)
	assert.Equal(t, onDisk, exported)
	assert.Contains(t, string(exported), "\n  \"KEY000001\": {\n    \"owner\": \"alice\",")
	assert.NotContains(t, string(exported), "bound_client_id")

	exists, err := afero.Exists(fs, testSnapshotPath+".tmp")
	require.NoError(t, err)
	assert.False(t, exists, "temp file must be renamed away")
}

func TestFileStoreLoadsLegacyDocument(t *testing.T) {
	fs := afero.NewMemMapFs()
	doc := `{
  "ABCDEF123456": {
    "owner": "legacy",
    "expires_at": "2030-01-01T00:00:00Z",
    "in_use": false,
    "created_at": "2024-01-01T00:00:00Z"
  }
}
`
	require.NoError(t, afero.WriteFile(fs, testSnapshotPath, []byte(doc), 0o600))

	s, err := NewFileStore(fs, testSnapshotPath)
	require.NoError(t, err)

	got, err := s.Get(context.Background(), "ABCDEF123456")
	require.NoError(t, err)
	assert.Equal(t, "legacy", got.Owner)
	assert.Equal(t, time.UTC, got.ExpiresAt.Location())
}

func TestFileStoreRejectsCorruptDocument(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, testSnapshotPath, []byte("{not json"), 0o600))

	_, err := NewFileStore(fs, testSnapshotPath)
	require.Error(t, err)
	assert.ErrorIs(t, err, license.ErrStoreUnavailable)
}

// failingRenameFs simulates a disk that accepts writes but cannot commit them.
type failingRenameFs struct {
	afero.Fs
	fail bool
}

func (f *failingRenameFs) Rename(oldname, newname string) error {
	if f.fail {
		return &os.LinkError{Op: "rename", Old: oldname, New: newname, Err: errors.New("disk full")}
	}
	return f.Fs.Rename(oldname, newname)
}

func TestFileStoreRevertsOnWriteFailure(t *testing.T) {
	ctx := context.Background()
	fs := &failingRenameFs{Fs: afero.NewMemMapFs()}

	s, err := NewFileStore(fs, testSnapshotPath)
	require.NoError(t, err)
	require.NoError(t, s.Create(ctx, "KEY000001", sampleRecord("alice")))

	fs.fail = true
	_, err = s.Update(ctx, "KEY000001", func(rec license.Record) (license.Record, bool, error) {
		rec.BoundClientID = license.StringPtr("srv1")
		rec.InUse = true
		return rec, true, nil
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, license.ErrStoreUnavailable)

	err = s.Create(ctx, "KEY000002", sampleRecord("bob"))
	assert.ErrorIs(t, err, license.ErrStoreUnavailable)

	got, err := s.Get(ctx, "KEY000001")
	require.NoError(t, err)
	assert.False(t, got.IsBound(), "in-memory state must roll back with the failed write")
	_, err = s.Get(ctx, "KEY000002")
	assert.ErrorIs(t, err, license.ErrKeyNotFound)
}
