// Package store provides a SQLite-backed history of document uploads.
// Recording is best-effort: a write failure is logged by the caller and
// never fails the upload itself. Sessions are not persisted here; the
// history exists for operator inspection via the `history` CLI command.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // register "sqlite" driver
)

// Upload is one recorded document upload.
type Upload struct {
	// SessionID is the session the document was bound to.
	SessionID string
	// DocumentID is the minted document identifier.
	DocumentID string
	// Source is the upload origin: the URL, or the uploaded filename.
	Source string
	// ContentType is the detected MIME type of the document.
	ContentType string
	// ChunkCount is the number of chunks indexed for the document.
	ChunkCount int
	// TextLength is the length of the extracted text in characters.
	TextLength int
	// CreatedAt is when the upload was recorded.
	CreatedAt time.Time
}

// UploadStore persists and retrieves the upload history.
// Implementations must be safe for concurrent use.
type UploadStore interface {
	// RecordUpload persists a single upload record.
	RecordUpload(ctx context.Context, u Upload) error
	// Recent returns the most recent n uploads, newest first.
	Recent(ctx context.Context, n int) ([]Upload, error)
	// Close releases any resources held by the store.
	Close() error
}

// SQLiteStore is an UploadStore backed by a local SQLite database.
type SQLiteStore struct {
	// db is the underlying database connection pool.
	db *sql.DB
}

// DefaultDBPath returns the default path for the upload history database.
// It resolves to ~/.clauselens/uploads.db, creating the directory if needed.
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("store: could not determine home directory: %w", err)
	}
	dir := filepath.Join(home, ".clauselens")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("store: could not create %s: %w", dir, err)
	}
	return filepath.Join(dir, "uploads.db"), nil
}

// Open opens (or creates) a SQLiteStore at the given path and runs the schema
// migration. Use ":memory:" for an in-memory database in tests.
func Open(path string) (*SQLiteStore, error) {
	// WAL mode improves concurrent read performance and is safe for single-host use.
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	// Limit to a single writer connection to avoid SQLITE_BUSY under concurrent writes.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// migrate creates the schema if it does not already exist.
func (s *SQLiteStore) migrate() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS uploads (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id    TEXT    NOT NULL,
    document_id   TEXT    NOT NULL,
    source        TEXT    NOT NULL,
    content_type  TEXT    NOT NULL,
    chunk_count   INTEGER NOT NULL,
    text_length   INTEGER NOT NULL,
    created_at    INTEGER NOT NULL  -- Unix timestamp (seconds)
);
CREATE INDEX IF NOT EXISTS idx_uploads_created
    ON uploads (created_at);
`
	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

// RecordUpload persists a single upload record. A zero CreatedAt is filled
// with the current time.
func (s *SQLiteStore) RecordUpload(ctx context.Context, u Upload) error {
	ts := u.CreatedAt
	if ts.IsZero() {
		ts = time.Now()
	}
	const q = `INSERT INTO uploads (session_id, document_id, source, content_type, chunk_count, text_length, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, q,
		u.SessionID, u.DocumentID, u.Source, u.ContentType, u.ChunkCount, u.TextLength, ts.Unix()); err != nil {
		return fmt.Errorf("store: record upload: %w", err)
	}
	return nil
}

// Recent returns the most recent n uploads, newest first.
func (s *SQLiteStore) Recent(ctx context.Context, n int) ([]Upload, error) {
	const q = `
SELECT session_id, document_id, source, content_type, chunk_count, text_length, created_at
FROM   uploads
ORDER  BY created_at DESC, id DESC
LIMIT  ?`

	rows, err := s.db.QueryContext(ctx, q, n)
	if err != nil {
		return nil, fmt.Errorf("store: recent: %w", err)
	}
	defer rows.Close()

	var uploads []Upload
	for rows.Next() {
		var u Upload
		var ts int64
		if err := rows.Scan(&u.SessionID, &u.DocumentID, &u.Source, &u.ContentType,
			&u.ChunkCount, &u.TextLength, &ts); err != nil {
			return nil, fmt.Errorf("store: recent scan: %w", err)
		}
		u.CreatedAt = time.Unix(ts, 0)
		uploads = append(uploads, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: recent rows: %w", err)
	}
	return uploads, nil
}

// Close releases the database connection pool.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("store: close: %w", err)
	}
	return nil
}
