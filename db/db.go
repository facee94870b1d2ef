// Package db stores crawl runs and their documents in Postgres.
package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"govdoc-scraper/config"
	"govdoc-scraper/logger"
)

const (
	// SET search_path is per connection, so the pool holds a single
	// connection that is never recycled.
	maxOpenConns = 1
	pingTimeout  = 5 * time.Second
)

// DB wraps the database connection
type DB struct {
	conn   *sqlx.DB
	schema string
	log    logger.Interface
}

// Open connects to the database described by cfg and initializes the schema.
func Open(ctx context.Context, cfg config.DatabaseConfig, log logger.Interface) (*DB, error) {
	conn, err := sqlx.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	conn.SetMaxOpenConns(maxOpenConns)
	conn.SetMaxIdleConns(maxOpenConns)

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := conn.PingContext(pingCtx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db := New(conn, cfg.Schema, log)
	if err := db.InitSchema(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return db, nil
}

// New wraps an existing connection. schema may be empty to use the
// connection's search_path as is.
func New(conn *sqlx.DB, schema string, log logger.Interface) *DB {
	return &DB{conn: conn, schema: schema, log: log}
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

var tables = []struct{ name, ddl string }{
	{"runs", `
		CREATE TABLE IF NOT EXISTS runs (
			id UUID PRIMARY KEY,
			region TEXT NOT NULL,
			department TEXT NOT NULL,
			keywords TEXT[] NOT NULL,
			date_filter TEXT,
			section TEXT,
			status VARCHAR(20) NOT NULL DEFAULT 'running',
			documents_count INTEGER NOT NULL DEFAULT 0,
			last_error TEXT,
			started_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			finished_at TIMESTAMP,
			CONSTRAINT valid_status CHECK (status IN ('running', 'done', 'failed'))
		)`},
	{"documents", `
		CREATE TABLE IF NOT EXISTS documents (
			id SERIAL PRIMARY KEY,
			run_id UUID NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			url TEXT NOT NULL UNIQUE,
			title TEXT NOT NULL,
			publish_date DATE,
			publish_month VARCHAR(20) NOT NULL,
			publisher TEXT NOT NULL,
			doc_number TEXT,
			category TEXT NOT NULL,
			matched_keywords TEXT[] NOT NULL,
			keyword_contexts JSONB,
			full_content TEXT,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`},
	{"attachments", `
		CREATE TABLE IF NOT EXISTS attachments (
			id SERIAL PRIMARY KEY,
			document_id INTEGER NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
			name TEXT NOT NULL,
			url TEXT NOT NULL,
			name_source VARCHAR(20) NOT NULL,
			path TEXT
		)`},
}

var indexes = []string{
	`CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status)`,
	`CREATE INDEX IF NOT EXISTS idx_documents_run_id ON documents(run_id)`,
	`CREATE INDEX IF NOT EXISTS idx_documents_publish_date ON documents(publish_date)`,
	`CREATE INDEX IF NOT EXISTS idx_attachments_document_id ON attachments(document_id)`,
}

// InitSchema creates the schema and tables if they don't exist.
func (db *DB) InitSchema(ctx context.Context) error {
	if db.schema != "" {
		ident := pq.QuoteIdentifier(db.schema)
		// The schema usually exists already and the role may lack CREATE.
		if _, err := db.conn.ExecContext(ctx, `CREATE SCHEMA IF NOT EXISTS `+ident); err != nil {
			db.log.Warn("could not create schema, assuming it exists", "schema", db.schema, logger.KeyError, err)
		}
		if _, err := db.conn.ExecContext(ctx, `SET search_path TO `+ident); err != nil {
			return fmt.Errorf("failed to set search path: %w", err)
		}
	}

	for _, t := range tables {
		if _, err := db.conn.ExecContext(ctx, t.ddl); err != nil {
			return fmt.Errorf("failed to create %s table: %w", t.name, err)
		}
	}
	for _, ddl := range indexes {
		if _, err := db.conn.ExecContext(ctx, ddl); err != nil {
			db.log.Warn("failed to create index", "ddl", ddl, logger.KeyError, err)
		}
	}

	db.log.Info("database schema initialized")
	return nil
}
