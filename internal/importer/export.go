package importer

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"zeroinvoice/internal"
	"zeroinvoice/internal/util"
)

// ExportEntriesToXLSX writes a review report with one row per entry so a
// batch can be inspected outside the tool before or after committing.
func ExportEntriesToXLSX(entries []internal.ImportEntry, outputPath string) error {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)

	headers := []string{
		"file_name", "file_size", "status", "progress", "confidence",
		"invoice_number", "issue_date", "due_date", "customer_name", "customer_email",
		"customer_match", "customer_match_confidence",
		"line_items", "new_items", "matched_items",
		"subtotal", "tax", "total",
		"errors", "warnings",
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	for i, entry := range entries {
		r := i + 2
		set := func(col int, value any) {
			cell, _ := excelize.CoordinatesToCellName(col, r)
			_ = f.SetCellValue(sheet, cell, value)
		}

		set(1, entry.Filename)
		set(2, entry.Size)
		set(3, string(entry.Status))
		set(4, entry.Progress)

		if ext := entry.Extracted; ext != nil {
			set(5, ext.Confidence)
			set(6, ext.Invoice.InvoiceNumber)
			set(7, ext.Invoice.IssueDate)
			set(8, ext.Invoice.DueDate)
			set(9, util.DerefString(ext.Parsed.CustomerName))
			set(10, util.DerefString(ext.Parsed.CustomerEmail))
			set(11, describeDecision(ext.CustomerMatch))
			set(12, ext.CustomerMatch.MatchConfidence)

			newItems, matchedItems := 0, 0
			for _, d := range ext.ItemMatches {
				if d.ExistingID != nil {
					matchedItems++
				} else {
					newItems++
				}
			}
			set(13, len(ext.Invoice.LineItems))
			set(14, newItems)
			set(15, matchedItems)
			set(16, ext.Invoice.Subtotal)
			set(17, ext.Invoice.Tax)
			set(18, ext.Invoice.Total)
			set(19, strings.Join(ext.Errors, "; "))
			set(20, strings.Join(ext.Warnings, "; "))
		} else if entry.Error != nil {
			set(19, *entry.Error)
		}
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}
	return f.SaveAs(outputPath)
}

func describeDecision(d internal.MatchDecision) string {
	if d.ExistingID != nil {
		return fmt.Sprintf("existing:%s", *d.ExistingID)
	}
	return "new"
}
