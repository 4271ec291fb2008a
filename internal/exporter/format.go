package exporter

import (
	"fmt"
	"time"

	"github.com/antikraj/plugin-license-server1/internal/license"
)

// ReportHeaders are the column titles shared by the CSV and XLSX reports.
var ReportHeaders = []string{
	"Key", "Owner", "Product Scope", "Expires At", "Days Left",
	"Status", "Bound Client", "In Use", "Last Heartbeat", "Heartbeat Age (s)", "Created At",
}

// reportRow renders one entry as report cells.
func reportRow(e license.Entry, now time.Time) []string {
	rec := e.Record
	return []string{
		e.Key,
		rec.Owner,
		rec.Scope(),
		formatTime(rec.ExpiresAt),
		formatInt(daysLeft(rec.ExpiresAt, now)),
		string(e.Status),
		rec.BoundTo(),
		formatBool(rec.InUse),
		formatTimePtr(rec.LastHeartbeatAt),
		formatAge(e.HeartbeatAge),
		formatTime(rec.CreatedAt),
	}
}

// daysLeft counts whole days until expiry; expired records report 0.
func daysLeft(expires, now time.Time) int64 {
	if !expires.After(now) {
		return 0
	}
	return int64(expires.Sub(now) / (24 * time.Hour))
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatTime(*t)
}

func formatAge(d *time.Duration) string {
	if d == nil {
		return ""
	}
	return fmt.Sprintf("%.1f", d.Seconds())
}

// formatInt formats an int64 value for CSV output
func formatInt(i int64) string {
	return fmt.Sprintf("%d", i)
}

// formatBool formats a boolean value for CSV output
func formatBool(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
