// Package report exports run results to an XLSX workbook.
package report

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/blockedby/mailmerge/internal/models"
)

// SheetName is the worksheet holding the results.
const SheetName = "Log"

// Header is the first row of the results sheet.
var Header = []string{"Sent At", "Recipient", "Subject", "Status", "Reason"}

// Build creates a workbook with one row per result in dispatch order.
func Build(results []models.Result) (*excelize.File, error) {
	f := excelize.NewFile()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		f.Close()
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	header := make([]any, len(Header))
	for i, h := range Header {
		header[i] = h
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		f.Close()
		return nil, fmt.Errorf("write header: %w", err)
	}

	for i, r := range results {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			f.Close()
			return nil, err
		}
		row := []any{
			r.Timestamp.Local().Format(time.DateTime),
			r.Recipient,
			r.Subject,
			string(r.Status),
			r.Reason,
		}
		if err := f.SetSheetRow(SheetName, cell, &row); err != nil {
			f.Close()
			return nil, fmt.Errorf("write row %d: %w", i, err)
		}
	}

	_ = f.SetColWidth(SheetName, "A", "A", 20)
	_ = f.SetColWidth(SheetName, "B", "C", 36)
	_ = f.SetColWidth(SheetName, "E", "E", 40)

	return f, nil
}

// Write streams the results workbook to w.
func Write(w io.Writer, results []models.Result) error {
	f, err := Build(results)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// Save writes the results workbook to path.
func Save(path string, results []models.Result) error {
	f, err := Build(results)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	return nil
}
