package exporter

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/antikraj/plugin-license-server1/internal/license"
)

// SheetName is the worksheet holding the license report.
const SheetName = "Licenses"

// statusFills colours the Status column.
var statusFills = map[license.Status]string{
	license.StatusActive:  "C6EFCE",
	license.StatusSlow:    "FFEB9C",
	license.StatusOffline: "D9D9D9",
	license.StatusExpired: "FFC7CE",
}

// WriteXLSX writes the license report as an Excel workbook to w.
func WriteXLSX(w io.Writer, entries []license.Entry, now time.Time) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("failed to rename sheet: %w", err)
	}

	header, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"DDEBF7"}},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	fills := make(map[license.Status]int, len(statusFills))
	for status, color := range statusFills {
		id, err := f.NewStyle(&excelize.Style{
			Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{color}},
		})
		if err != nil {
			return fmt.Errorf("failed to create status style: %w", err)
		}
		fills[status] = id
	}

	if err := setRow(f, 1, ReportHeaders); err != nil {
		return err
	}
	last, _ := excelize.CoordinatesToCellName(len(ReportHeaders), 1)
	if err := f.SetCellStyle(SheetName, "A1", last, header); err != nil {
		return fmt.Errorf("failed to style header: %w", err)
	}

	statusCol := 6
	for i, e := range entries {
		row := i + 2
		if err := setRow(f, row, reportRow(e, now)); err != nil {
			return err
		}
		// Days left is numeric so it sorts in Excel.
		cell, _ := excelize.CoordinatesToCellName(5, row)
		if err := f.SetCellInt(SheetName, cell, daysLeft(e.Record.ExpiresAt, now)); err != nil {
			return fmt.Errorf("failed to write %s: %w", cell, err)
		}
		if style, ok := fills[e.Status]; ok {
			cell, _ := excelize.CoordinatesToCellName(statusCol, row)
			if err := f.SetCellStyle(SheetName, cell, cell, style); err != nil {
				return fmt.Errorf("failed to style %s: %w", cell, err)
			}
		}
	}

	if err := f.SetPanes(SheetName, &excelize.Panes{
		Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft",
	}); err != nil {
		return fmt.Errorf("failed to freeze header: %w", err)
	}
	if err := f.SetColWidth(SheetName, "A", "K", 20); err != nil {
		return fmt.Errorf("failed to set column width: %w", err)
	}
	if len(entries) > 0 {
		ref := "A1:" + lastCell(len(ReportHeaders), len(entries)+1)
		if err := f.AutoFilter(SheetName, ref, nil); err != nil {
			return fmt.Errorf("failed to add filter: %w", err)
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func setRow(f *excelize.File, row int, values []string) error {
	cells := make([]interface{}, len(values))
	for i, v := range values {
		cells[i] = v
	}
	if err := f.SetSheetRow(SheetName, "A"+strconv.Itoa(row), &cells); err != nil {
		return fmt.Errorf("failed to write row %d: %w", row, err)
	}
	return nil
}

func lastCell(col, row int) string {
	name, _ := excelize.CoordinatesToCellName(col, row)
	return name
}
