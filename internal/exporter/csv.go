package exporter

import (
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/antikraj/plugin-license-server1/internal/license"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// WriteOptions configures CSV writing behavior
type WriteOptions struct {
	BOMPrefix bool // Add UTF-8 BOM for Excel compatibility
}

// WriteCSV writes the license report as CSV to w.
func WriteCSV(w io.Writer, entries []license.Entry, now time.Time, opts WriteOptions) error {
	if opts.BOMPrefix {
		if _, err := w.Write(utf8BOM); err != nil {
			return fmt.Errorf("failed to write BOM: %w", err)
		}
	}

	writer := csv.NewWriter(w)
	if err := writer.Write(ReportHeaders); err != nil {
		return fmt.Errorf("failed to write headers: %w", err)
	}
	for i, e := range entries {
		if err := writer.Write(reportRow(e, now)); err != nil {
			return fmt.Errorf("failed to write record %d: %w", i, err)
		}
	}

	writer.Flush()
	return writer.Error()
}
