// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package index maintains the local document index: an SQLite database with
// FTS5 full-text search over ingested medical documents. It serves both
// collaborator roles the engine consumes: document indexing and ranked
// retrieval.
//
// mattn/go-sqlite3 compiles FTS5 support only behind the sqlite_fts5 build
// tag, so every build and test invocation must pass -tags sqlite_fts5 (the
// mage Build and Test targets do).
package index

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/medassist-engine/pkg/types"
)

// defaultIndexID names the database file when no index id is configured.
const defaultIndexID = "medassist"

// Store manages the document index database.
type Store struct {
	db *sql.DB
}

// NewStore opens or creates the index database at dataDir/<indexID>.db and
// creates the schema if it does not exist. Distinct index ids keep fully
// separate databases under the same data directory.
func NewStore(cfg types.IndexConfig, indexID string) (*Store, error) {
	dataDir := cfg.DataDir
	if dataDir == "" {
		dataDir = "data"
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	if indexID == "" {
		indexID = defaultIndexID
	}
	dbPath := filepath.Join(dataDir, indexID+".db")
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS documents (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			title TEXT NOT NULL,
			content TEXT NOT NULL,
			patient_id TEXT,
			document_type TEXT,
			upload_date TEXT,
			source_location TEXT,
			medical_entities TEXT,
			entity_count INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_documents_patient ON documents(patient_id)`,
		`CREATE INDEX IF NOT EXISTS idx_documents_type ON documents(document_type)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}

	// FTS5 virtual table with triggers for sync.
	var ftsExists int
	if err := s.db.QueryRow(
		`SELECT count(*) FROM sqlite_master WHERE type='table' AND name='documents_fts'`,
	).Scan(&ftsExists); err != nil {
		return fmt.Errorf("checking FTS table: %w", err)
	}

	if ftsExists == 0 {
		ftsStatements := []string{
			`CREATE VIRTUAL TABLE documents_fts USING fts5(title, content, content=documents, content_rowid=rowid)`,
			`CREATE TRIGGER documents_ai AFTER INSERT ON documents BEGIN
				INSERT INTO documents_fts(rowid, title, content) VALUES (new.rowid, new.title, new.content);
			END`,
			`CREATE TRIGGER documents_ad AFTER DELETE ON documents BEGIN
				INSERT INTO documents_fts(documents_fts, rowid, title, content) VALUES('delete', old.rowid, old.title, old.content);
			END`,
			`CREATE TRIGGER documents_au AFTER UPDATE ON documents BEGIN
				INSERT INTO documents_fts(documents_fts, rowid, title, content) VALUES('delete', old.rowid, old.title, old.content);
				INSERT INTO documents_fts(rowid, title, content) VALUES (new.rowid, new.title, new.content);
			END`,
		}
		for _, stmt := range ftsStatements {
			if _, err := s.db.Exec(stmt); err != nil {
				return fmt.Errorf("creating FTS table: %w", err)
			}
		}
	}

	return nil
}

// PutDocument inserts or replaces a document in the index. Re-indexing an
// existing document id overwrites its content and attributes.
func (s *Store) PutDocument(ctx context.Context, doc types.Document) error {
	if doc.ID == "" {
		return fmt.Errorf("document id is required")
	}

	uploadDate := doc.UploadedAt
	if uploadDate.IsZero() {
		uploadDate = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (id, title, content, patient_id, document_type, upload_date, source_location, medical_entities, entity_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			content = excluded.content,
			patient_id = excluded.patient_id,
			document_type = excluded.document_type,
			upload_date = excluded.upload_date,
			source_location = excluded.source_location,
			medical_entities = excluded.medical_entities,
			entity_count = excluded.entity_count`,
		doc.ID, doc.Title, doc.ExtractedText, doc.PatientID, string(doc.DocumentType),
		uploadDate.Format(time.RFC3339), doc.SourceLocation,
		entitySummary(doc.Entities), len(doc.Entities),
	)
	if err != nil {
		return fmt.Errorf("indexing document %s: %w", doc.ID, err)
	}
	return nil
}

// DeleteDocument removes a document from the index. Deleting an unknown id
// is not an error.
func (s *Store) DeleteDocument(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting document %s: %w", id, err)
	}
	return nil
}

// entitySummary joins entity texts into the comma-separated attribute the
// index stores for keyword matching.
func entitySummary(entities []types.MedicalEntity) string {
	if len(entities) == 0 {
		return ""
	}
	texts := make([]string, 0, len(entities))
	for _, e := range entities {
		texts = append(texts, e.Text)
	}
	return strings.Join(texts, ", ")
}
