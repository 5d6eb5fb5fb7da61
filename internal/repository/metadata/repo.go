// Package metadata persists document records in SQLite.
package metadata

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/kailas-cloud/docchat/internal/domain"
	"github.com/kailas-cloud/docchat/internal/repository/metadata/migrations"
)

// Repo is a SQLite-backed document metadata store.
//
// The schema is managed by versioned migrations; Open does not apply them.
// Run Migrate (the `docchat migrate` subcommand) before serving.
type Repo struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

// Open opens (creating if needed) the SQLite database at path.
func Open(path string) (*Repo, error) {
	if path == "" {
		return nil, fmt.Errorf("metadata: empty database path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("metadata: create data directory: %w", err)
	}

	// WAL for concurrent readers while a worker writes.
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("metadata: open database: %w", err)
	}

	return &Repo{db: db, path: path, now: time.Now}, nil
}

// Close closes the database connection.
func (r *Repo) Close() error {
	return r.db.Close()
}

// Ping verifies the database file is reachable.
func (r *Repo) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Migrate applies all pending schema migrations and returns the number applied.
func (r *Repo) Migrate(ctx context.Context) (int, error) {
	_, err := r.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return 0, fmt.Errorf("metadata: create schema_migrations table: %w", err)
	}

	var currentVersion int
	row := r.db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return 0, fmt.Errorf("metadata: read current version: %w", err)
	}

	entries, err := fs.ReadDir(migrations.FS, ".")
	if err != nil {
		return 0, fmt.Errorf("metadata: read migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".up.sql") {
			upFiles = append(upFiles, entry.Name())
		}
	}
	sort.Strings(upFiles)

	applied := 0
	for _, name := range upFiles {
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= currentVersion {
			continue
		}

		content, err := fs.ReadFile(migrations.FS, name)
		if err != nil {
			return applied, fmt.Errorf("metadata: read migration %s: %w", name, err)
		}
		if _, err := r.db.ExecContext(ctx, string(content)); err != nil {
			return applied, fmt.Errorf("metadata: execute migration %s: %w", name, err)
		}
		if _, err := r.db.ExecContext(ctx,
			"INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return applied, fmt.Errorf("metadata: record migration %d: %w", version, err)
		}
		applied++
	}

	return applied, nil
}

// Create inserts a new document record.
func (r *Repo) Create(ctx context.Context, doc domain.Document) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO documents (id, file_name, storage_path, status, error, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, doc.ID, doc.FileName, doc.StoragePath, string(doc.Status), doc.Error,
		doc.CreatedAt.UTC(), doc.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("metadata: insert document %s: %w", doc.ID, err)
	}
	return nil
}

// Get returns a document by ID.
func (r *Repo) Get(ctx context.Context, id string) (domain.Document, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, file_name, storage_path, status, error, created_at, updated_at
		FROM documents WHERE id = ?
	`, id)
	doc, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Document{}, domain.ErrDocumentNotFound
		}
		return domain.Document{}, fmt.Errorf("metadata: get document %s: %w", id, err)
	}
	return doc, nil
}

// SetStatus moves a document to next, validating the lifecycle transition.
// The check and update run in one transaction so concurrent workers cannot
// both claim the same document.
func (r *Repo) SetStatus(ctx context.Context, id string, next domain.Status) error {
	if !next.Valid() {
		return fmt.Errorf("metadata: unknown status %q: %w", next, domain.ErrInvalidStatusTransition)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("metadata: begin tx: %w", err)
	}
	defer tx.Rollback()

	var current string
	row := tx.QueryRowContext(ctx, "SELECT status FROM documents WHERE id = ?", id)
	if err := row.Scan(&current); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrDocumentNotFound
		}
		return fmt.Errorf("metadata: read status of %s: %w", id, err)
	}

	if !domain.Status(current).CanTransition(next) {
		return fmt.Errorf("metadata: %s -> %s: %w", current, next, domain.ErrInvalidStatusTransition)
	}

	// Clear a stale error message when a document leaves the failed state.
	_, err = tx.ExecContext(ctx, `
		UPDATE documents SET status = ?, error = '', updated_at = ? WHERE id = ?
	`, string(next), r.now().UTC(), id)
	if err != nil {
		return fmt.Errorf("metadata: update status of %s: %w", id, err)
	}

	return tx.Commit()
}

// SetFailed marks a document failed and records the error message.
func (r *Repo) SetFailed(ctx context.Context, id, msg string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE documents SET status = ?, error = ?, updated_at = ? WHERE id = ?
	`, string(domain.StatusFailed), msg, r.now().UTC(), id)
	if err != nil {
		return fmt.Errorf("metadata: mark %s failed: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("metadata: rows affected: %w", err)
	}
	if n == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}

// List returns all documents, newest first.
func (r *Repo) List(ctx context.Context) ([]domain.Document, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, file_name, storage_path, status, error, created_at, updated_at
		FROM documents ORDER BY created_at DESC, id
	`)
	if err != nil {
		return nil, fmt.Errorf("metadata: list documents: %w", err)
	}
	defer rows.Close()

	var docs []domain.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("metadata: scan document: %w", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("metadata: iterate documents: %w", err)
	}
	return docs, nil
}

// scanner covers *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(s scanner) (domain.Document, error) {
	var doc domain.Document
	var status string
	if err := s.Scan(&doc.ID, &doc.FileName, &doc.StoragePath, &status,
		&doc.Error, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
		return domain.Document{}, err
	}
	doc.Status = domain.Status(status)
	return doc, nil
}
