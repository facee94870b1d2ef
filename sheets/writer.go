// Package sheets exports crawl results to Google Sheets.
package sheets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"govdoc-scraper/config"
	"govdoc-scraper/logger"
	"govdoc-scraper/models"
	"govdoc-scraper/report"
)

// CredentialsEnv holds service account JSON when no credentials file is set.
const CredentialsEnv = "GOOGLE_SHEETS_CREDENTIALS"

const maxSheetName = 100

// Writer handles writing documents to Google Sheets
type Writer struct {
	service       *sheets.Service
	spreadsheetID string
	log           logger.Interface
}

// NewWriter creates a Google Sheets writer from cfg. Extra client options
// are appended after the credentials.
func NewWriter(ctx context.Context, cfg config.SheetsConfig, log logger.Interface, opts ...option.ClientOption) (*Writer, error) {
	id := cfg.SpreadsheetID
	if strings.Contains(id, "/") {
		id = ExtractSpreadsheetID(id)
	}
	if id == "" {
		return nil, errors.New("spreadsheet id is required")
	}

	if len(opts) == 0 {
		credsJSON, err := loadCredentials(cfg.CredentialsPath, log)
		if err != nil {
			return nil, err
		}
		opts = []option.ClientOption{option.WithCredentialsJSON(credsJSON)}
	}

	service, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}
	return &Writer{service: service, spreadsheetID: id, log: log}, nil
}

func loadCredentials(path string, log logger.Interface) ([]byte, error) {
	var credsJSON []byte
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read credentials file: %w", err)
		}
		credsJSON = data
	} else {
		credsEnv := strings.TrimSpace(os.Getenv(CredentialsEnv))
		if credsEnv == "" {
			return nil, fmt.Errorf("credentials not found: %s is empty or not set", CredentialsEnv)
		}
		log.Debug("reading sheets credentials from environment", "bytes", len(credsEnv))
		credsJSON = []byte(credsEnv)
	}

	var creds map[string]any
	if err := json.Unmarshal(credsJSON, &creds); err != nil {
		return nil, fmt.Errorf("invalid credentials JSON: %w", err)
	}
	if creds["type"] != "service_account" {
		return nil, fmt.Errorf("credentials must be a service account JSON file, got type: %v", creds["type"])
	}
	return credsJSON, nil
}

// Values lays docs out as sheet rows: an optional metadata row, the header,
// then one row per document.
func Values(docs []models.Document, meta report.Meta) [][]any {
	values := make([][]any, 0, len(docs)+2)
	if meta.Region != "" || len(meta.Keywords) > 0 {
		values = append(values, []any{"检索", meta.Region + " " + meta.Department, "关键词", strings.Join(meta.Keywords, ", ")})
	}
	values = append(values, toAny(report.Header))
	for _, doc := range docs {
		values = append(values, toAny(report.Row(doc)))
	}
	return values
}

func toAny(row []string) []any {
	out := make([]any, len(row))
	for i, v := range row {
		out[i] = v
	}
	return out
}

// CreateSheetAndWriteDocuments adds a sheet at the front of the spreadsheet
// and writes docs to it. It returns the sheet name used and its id (gid).
func (w *Writer) CreateSheetAndWriteDocuments(ctx context.Context, sheetName string, docs []models.Document, meta report.Meta) (string, int64, error) {
	sheetName = sanitizeSheetName(sheetName)

	batch := &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			AddSheet: &sheets.AddSheetRequest{
				Properties: &sheets.SheetProperties{Title: sheetName, Index: 0},
			},
		}},
	}
	resp, err := w.service.Spreadsheets.BatchUpdate(w.spreadsheetID, batch).Context(ctx).Do()
	if err != nil {
		return "", 0, fmt.Errorf("failed to create sheet: %w", err)
	}
	var sheetID int64
	if len(resp.Replies) > 0 && resp.Replies[0].AddSheet != nil {
		sheetID = resp.Replies[0].AddSheet.Properties.SheetId
	}
	w.log.Info("sheet created", "sheet", sheetName, "sheet_id", sheetID)

	vr := &sheets.ValueRange{Values: Values(docs, meta)}
	_, err = w.service.Spreadsheets.Values.Update(w.spreadsheetID, quoteRange(sheetName)+"!A1", vr).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	if err != nil {
		return "", 0, fmt.Errorf("failed to write to sheet: %w", err)
	}

	w.log.Info("documents written to sheet", "sheet", sheetName, "count", len(docs))
	return sheetName, sheetID, nil
}

// AppendDocuments adds document rows, without a header, after the existing
// data of sheetName.
func (w *Writer) AppendDocuments(ctx context.Context, sheetName string, docs []models.Document) error {
	if len(docs) == 0 {
		return nil
	}
	values := make([][]any, 0, len(docs))
	for _, doc := range docs {
		values = append(values, toAny(report.Row(doc)))
	}
	_, err := w.service.Spreadsheets.Values.Append(w.spreadsheetID, quoteRange(sanitizeSheetName(sheetName))+"!A1",
		&sheets.ValueRange{Values: values}).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("failed to append to sheet: %w", err)
	}
	return nil
}

// quoteRange quotes a sheet name for A1 notation.
func quoteRange(name string) string {
	return "'" + strings.ReplaceAll(name, "'", "''") + "'"
}

// sanitizeSheetName removes invalid characters from sheet name
func sanitizeSheetName(name string) string {
	// Google Sheets sheet names cannot contain: / \ ? * [ ] :
	result := strings.NewReplacer("/", "_", `\`, "_", "?", "_", "*", "_", "[", "_", "]", "_", ":", "_").Replace(name)
	result = strings.TrimSpace(result)
	if r := []rune(result); len(r) > maxSheetName {
		result = string(r[:maxSheetName])
	}
	if result == "" {
		result = "Sheet1"
	}
	return result
}

// ExtractSpreadsheetID extracts the spreadsheet ID from a Google Sheets URL
// such as https://docs.google.com/spreadsheets/d/ID/edit?usp=sharing.
func ExtractSpreadsheetID(url string) string {
	_, rest, ok := strings.Cut(url, "/d/")
	if !ok {
		return ""
	}
	if idx := strings.IndexAny(rest, "/?#"); idx != -1 {
		rest = rest[:idx]
	}
	return strings.TrimSpace(rest)
}
