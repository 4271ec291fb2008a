// Package exporter renders license listings as downloadable reports.
//
// WriteXLSX produces an Excel workbook with one row per license, a frozen
// header, an auto filter and the connection status cell coloured by state.
// WriteCSV produces the same columns as CSV, optionally prefixed with a UTF-8
// BOM so Excel detects the encoding.
//
// Example usage:
//
//	entries, err := admin.List(ctx)
//	if err != nil {
//		return err
//	}
//	return exporter.WriteXLSX(w, entries, time.Now())
package exporter
