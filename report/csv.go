package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"govdoc-scraper/models"
)

// utf8BOM lets spreadsheet software detect the encoding.
const utf8BOM = "\ufeff"

// WriteCSV writes docs to w with a header row.
func WriteCSV(w io.Writer, docs []models.Document) error {
	if _, err := io.WriteString(w, utf8BOM); err != nil {
		return fmt.Errorf("failed to write csv: %w", err)
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}
	for _, doc := range docs {
		if err := cw.Write(Row(doc)); err != nil {
			return fmt.Errorf("failed to write csv row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("failed to flush csv: %w", err)
	}
	return nil
}

// SaveCSV writes docs to path.
func SaveCSV(path string, docs []models.Document) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create csv file: %w", err)
	}
	defer f.Close()
	if err := WriteCSV(f, docs); err != nil {
		return err
	}
	return f.Sync()
}
