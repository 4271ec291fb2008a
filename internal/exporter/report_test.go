package exporter

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/antikraj/plugin-license-server1/internal/license"
	"github.com/antikraj/plugin-license-server1/internal/shared/testutil"
)

func fixtureEntries() []license.Entry {
	now := testutil.FixtureNow
	records := testutil.LicenseFixtures()
	entries := make([]license.Entry, 0, len(records))
	for _, key := range license.SortedKeys(records) {
		rec := records[key]
		e := license.Entry{
			Key:    key,
			Record: rec,
			Status: license.ConnectionStatus(rec, now, 10*time.Second),
		}
		if age, ok := rec.HeartbeatAge(now); ok {
			e.HeartbeatAge = &age
		}
		entries = append(entries, e)
	}
	return entries
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, fixtureEntries(), testutil.FixtureNow, WriteOptions{BOMPrefix: true}))

	data := buf.Bytes()
	require.True(t, bytes.HasPrefix(data, utf8BOM))

	rows, err := csv.NewReader(bytes.NewReader(data[len(utf8BOM):])).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 6)
	assert.Equal(t, ReportHeaders, rows[0])

	byKey := make(map[string][]string)
	for _, row := range rows[1:] {
		byKey[row[0]] = row
	}

	bound := byKey[testutil.FixtureBoundKey]
	assert.Equal(t, "bob", bound[1])
	assert.Equal(t, "2024-01-31T00:00:00Z", bound[3])
	assert.Equal(t, "30", bound[4])
	assert.Equal(t, "active", bound[5])
	assert.Equal(t, "srv1", bound[6])
	assert.Equal(t, "true", bound[7])
	assert.Equal(t, "2.0", bound[9])

	expired := byKey[testutil.FixtureExpiredKey]
	assert.Equal(t, "0", expired[4])
	assert.Equal(t, "expired", expired[5])
	assert.Empty(t, expired[8])

	assert.Equal(t, "offline", byKey[testutil.FixtureStaleKey][5])
	assert.Equal(t, "photoplug", byKey[testutil.FixtureScopedKey][2])
}

func TestWriteCSVEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, nil, testutil.FixtureNow, WriteOptions{}))
	assert.Equal(t, 1, bytes.Count(buf.Bytes(), []byte("\n")))
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, fixtureEntries(), testutil.FixtureNow))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })

	assert.Equal(t, []string{SheetName}, f.GetSheetList())

	rows, err := f.GetRows(SheetName)
	require.NoError(t, err)
	require.Len(t, rows, 6)
	assert.Equal(t, ReportHeaders, rows[0])

	// Rows are in key order: BOUNDKEY, EXPIREDKEY, FREEKEY, SCOPEDKEY, STALEKEY.
	assert.Equal(t, testutil.FixtureBoundKey, rows[1][0])
	assert.Equal(t, "30", rows[1][4])
	assert.Equal(t, "active", rows[1][5])

	days, err := f.GetCellValue(SheetName, "E3")
	require.NoError(t, err)
	assert.Equal(t, "0", days)
}

func TestWriteXLSXEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, nil, testutil.FixtureNow))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(SheetName)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestDaysLeft(t *testing.T) {
	now := testutil.FixtureNow
	assert.Equal(t, int64(30), daysLeft(now.AddDate(0, 0, 30), now))
	assert.Equal(t, int64(0), daysLeft(now.Add(23*time.Hour), now))
	assert.Equal(t, int64(0), daysLeft(now.Add(-time.Hour), now))
}
