package testutil

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBufferedSlogHandler(t *testing.T) {
	t.Run("captures log records", func(t *testing.T) {
		logger, handler := NewTestLogger(t)

		logger.Info("test message", slog.String("key", "value"))
		logger.Error("error message", slog.Int("code", 500))

		assert.Equal(t, 2, handler.Count())
		assert.True(t, handler.ContainsMessage("test message"))
		assert.True(t, handler.ContainsAttr("key", "value"))
	})

	t.Run("filters by level", func(t *testing.T) {
		logger, handler := NewTestLogger(t)

		logger.Debug("debug msg")
		logger.Info("info msg")
		logger.Warn("warn msg")
		logger.Error("error msg")

		assert.Len(t, handler.GetRecordsByLevel(slog.LevelInfo), 1)
		assert.Len(t, handler.GetRecordsByLevel(slog.LevelError), 1)
	})

	t.Run("derived loggers share records and keep attrs", func(t *testing.T) {
		logger, handler := NewTestLogger(t)

		logger.With(slog.String("component", "license_store")).Info("saved")
		logger.WithGroup("req").Info("done", slog.String("path", "/api/v1/verify"))

		records := handler.GetRecords()
		require.Len(t, records, 2)
		assert.Equal(t, "license_store", records[0].Attrs["component"])
		assert.Equal(t, "/api/v1/verify", records[1].Attrs["req.path"])
	})

	t.Run("clear", func(t *testing.T) {
		logger, handler := NewTestLogger(t)
		logger.Info("one")
		handler.Clear()
		assert.Zero(t, handler.Count())
	})
}

func TestLicenseFixtures(t *testing.T) {
	fixtures := LicenseFixtures()
	require.Len(t, fixtures, 5)

	assert.False(t, fixtures[FixtureFreeKey].IsBound())
	assert.True(t, fixtures[FixtureBoundKey].IsBoundTo("srv1"))
	assert.True(t, fixtures[FixtureExpiredKey].IsExpired(FixtureNow))
	assert.Equal(t, "photoplug", fixtures[FixtureScopedKey].Scope())
}
