package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"govdoc-scraper/models"
)

// Run statuses.
const (
	RunRunning = "running"
	RunDone    = "done"
	RunFailed  = "failed"
)

// Run represents one crawl stored in database
type Run struct {
	ID             string         `db:"id"`
	Region         string         `db:"region"`
	Department     string         `db:"department"`
	Keywords       pq.StringArray `db:"keywords"`
	DateFilter     sql.NullString `db:"date_filter"`
	Section        sql.NullString `db:"section"`
	Status         string         `db:"status"`
	DocumentsCount int            `db:"documents_count"`
	LastError      sql.NullString `db:"last_error"`
	StartedAt      time.Time      `db:"started_at"`
	FinishedAt     sql.NullTime   `db:"finished_at"`
}

// DocumentRow is a stored document.
type DocumentRow struct {
	ID              int            `db:"id"`
	RunID           string         `db:"run_id"`
	URL             string         `db:"url"`
	Title           string         `db:"title"`
	PublishDate     sql.NullTime   `db:"publish_date"`
	PublishMonth    string         `db:"publish_month"`
	Publisher       string         `db:"publisher"`
	DocNumber       sql.NullString `db:"doc_number"`
	Category        string         `db:"category"`
	MatchedKeywords pq.StringArray `db:"matched_keywords"`
	KeywordContexts []byte         `db:"keyword_contexts"`
	FullContent     sql.NullString `db:"full_content"`
}

// Document converts the row back to the domain type. Attachments are not
// loaded.
func (r DocumentRow) Document() (models.Document, error) {
	doc := models.Document{
		Title:            r.Title,
		URL:              r.URL,
		PublishDateMonth: r.PublishMonth,
		Publisher:        r.Publisher,
		DocNumber:        r.DocNumber.String,
		Category:         r.Category,
		MatchedKeywords:  []string(r.MatchedKeywords),
		FullContent:      r.FullContent.String,
	}
	if r.PublishDate.Valid {
		t := r.PublishDate.Time
		doc.PublishDateFull = &t
	}
	if len(r.KeywordContexts) > 0 {
		if err := json.Unmarshal(r.KeywordContexts, &doc.KeywordContexts); err != nil {
			return doc, fmt.Errorf("failed to decode keyword contexts of %s: %w", r.URL, err)
		}
	}
	return doc, nil
}

type contextJSON struct {
	Keyword string `json:"keyword"`
	Context string `json:"context"`
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// CreateRun records a run as running.
func (db *DB) CreateRun(ctx context.Context, run *Run) error {
	err := db.conn.QueryRowxContext(ctx, `
		INSERT INTO runs (id, region, department, keywords, date_filter, section, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING started_at
	`, run.ID, run.Region, run.Department, run.Keywords, run.DateFilter, run.Section, RunRunning).Scan(&run.StartedAt)
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}
	run.Status = RunRunning
	return nil
}

// FinishRun marks a run done, or failed when runErr is set.
func (db *DB) FinishRun(ctx context.Context, id string, documents int, runErr error) error {
	status := RunDone
	var lastError sql.NullString
	if runErr != nil {
		status = RunFailed
		lastError = nullString(runErr.Error())
	}
	_, err := db.conn.ExecContext(ctx, `
		UPDATE runs
		SET status = $1, documents_count = $2, last_error = $3, finished_at = CURRENT_TIMESTAMP
		WHERE id = $4
	`, status, documents, lastError, id)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	return nil
}

// GetRun loads one run.
func (db *DB) GetRun(ctx context.Context, id string) (*Run, error) {
	var run Run
	err := db.conn.GetContext(ctx, &run, `
		SELECT id, region, department, keywords, date_filter, section, status,
			documents_count, last_error, started_at, finished_at
		FROM runs
		WHERE id = $1
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return &run, nil
}

// SaveDocuments upserts docs by URL under runID and replaces their
// attachments, in one transaction.
func (db *DB) SaveDocuments(ctx context.Context, runID string, docs []models.Document) error {
	tx, err := db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, doc := range docs {
		contexts := make([]contextJSON, 0, len(doc.KeywordContexts))
		for _, kc := range doc.KeywordContexts {
			contexts = append(contexts, contextJSON{Keyword: kc.Keyword, Context: kc.Context})
		}
		contextsJSON, err := json.Marshal(contexts)
		if err != nil {
			return fmt.Errorf("failed to encode keyword contexts: %w", err)
		}
		var publish sql.NullTime
		if doc.PublishDateFull != nil {
			publish = sql.NullTime{Time: *doc.PublishDateFull, Valid: true}
		}

		var docID int
		err = tx.QueryRowxContext(ctx, `
			INSERT INTO documents (run_id, url, title, publish_date, publish_month, publisher,
				doc_number, category, matched_keywords, keyword_contexts, full_content)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			ON CONFLICT (url) DO UPDATE SET
				run_id = EXCLUDED.run_id,
				title = EXCLUDED.title,
				publish_date = EXCLUDED.publish_date,
				publish_month = EXCLUDED.publish_month,
				doc_number = EXCLUDED.doc_number,
				matched_keywords = EXCLUDED.matched_keywords,
				keyword_contexts = EXCLUDED.keyword_contexts,
				full_content = COALESCE(EXCLUDED.full_content, documents.full_content),
				updated_at = CURRENT_TIMESTAMP
			RETURNING id
		`, runID, doc.URL, doc.Title, publish, doc.PublishDateMonth, doc.Publisher,
			nullString(doc.DocNumber), doc.Category, pq.Array(doc.MatchedKeywords), contextsJSON,
			nullString(doc.FullContent)).Scan(&docID)
		if err != nil {
			return fmt.Errorf("failed to save document %s: %w", doc.URL, err)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM attachments WHERE document_id = $1`, docID); err != nil {
			return fmt.Errorf("failed to clear attachments of %s: %w", doc.URL, err)
		}
		for _, att := range doc.Attachments {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO attachments (document_id, name, url, name_source)
				VALUES ($1, $2, $3, $4)
			`, docID, att.Name, att.URL, string(att.NameSource))
			if err != nil {
				return fmt.Errorf("failed to save attachment %s: %w", att.URL, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit documents: %w", err)
	}
	db.log.Info("documents saved", "run_id", runID, "count", len(docs))
	return nil
}

// SetAttachmentPath records where an attachment was downloaded.
func (db *DB) SetAttachmentPath(ctx context.Context, url, path string) error {
	_, err := db.conn.ExecContext(ctx, `UPDATE attachments SET path = $1 WHERE url = $2`, path, url)
	if err != nil {
		return fmt.Errorf("failed to set attachment path: %w", err)
	}
	return nil
}

// ListDocuments returns the documents last written by runID, newest first.
func (db *DB) ListDocuments(ctx context.Context, runID string) ([]DocumentRow, error) {
	var rows []DocumentRow
	err := db.conn.SelectContext(ctx, &rows, `
		SELECT id, run_id, url, title, publish_date, publish_month, publisher, doc_number,
			category, matched_keywords, keyword_contexts, full_content
		FROM documents
		WHERE run_id = $1
		ORDER BY publish_date DESC NULLS LAST, id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	return rows, nil
}
