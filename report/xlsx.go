package report

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"govdoc-scraper/models"
)

// SheetName is the worksheet holding the results.
const SheetName = "检索结果"

var columnWidths = map[int]float64{
	colTitle: 60,
	colURL:   50,
	6:        80,
}

// WriteXLSX saves docs as a workbook at path. Links in the URL column are
// clickable.
func WriteXLSX(path string, docs []models.Document) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("failed to rename sheet: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	for i, h := range Header {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(SheetName, cell, h); err != nil {
			return fmt.Errorf("failed to write header: %w", err)
		}
	}
	last, err := excelize.CoordinatesToCellName(len(Header), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(SheetName, "A1", last, bold); err != nil {
		return fmt.Errorf("failed to style header: %w", err)
	}

	for r, doc := range docs {
		for c, v := range Row(doc) {
			cell, err := excelize.CoordinatesToCellName(c+1, r+2)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(SheetName, cell, v); err != nil {
				return fmt.Errorf("failed to write row %d: %w", r+2, err)
			}
			if c == colURL && v != "" {
				if err := f.SetCellHyperLink(SheetName, cell, v, "External"); err != nil {
					return fmt.Errorf("failed to link row %d: %w", r+2, err)
				}
			}
		}
	}

	for c, width := range columnWidths {
		col, err := excelize.ColumnNumberToName(c + 1)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(SheetName, col, col, width); err != nil {
			return fmt.Errorf("failed to set column width: %w", err)
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}
	return nil
}
