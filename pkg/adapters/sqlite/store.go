// Package sqlite implements ports.DocumentStore on an embedded SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/aretw0/mdsa/pkg/domain"
)

// Store persists documents in a single table keyed by id.
type Store struct {
	db *sql.DB
}

// Open creates or opens the database at path and runs migrations.
// The parent directory is created if it doesn't exist.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// modernc serializes writers; one connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		scope TEXT NOT NULL,
		domain_id TEXT NOT NULL DEFAULT '',
		seq INTEGER NOT NULL,
		content TEXT NOT NULL,
		metadata TEXT NOT NULL DEFAULT '{}',
		tags TEXT NOT NULL DEFAULT '[]',
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_documents_corpus ON documents(scope, domain_id, seq);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Save inserts or replaces a document.
func (s *Store) Save(ctx context.Context, doc domain.Document) error {
	md, err := json.Marshal(doc.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	tags, err := json.Marshal(doc.Tags)
	if err != nil {
		return fmt.Errorf("marshal tags: %w", err)
	}

	const query = `
	INSERT INTO documents (id, scope, domain_id, seq, content, metadata, tags, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		scope = excluded.scope,
		domain_id = excluded.domain_id,
		seq = excluded.seq,
		content = excluded.content,
		metadata = excluded.metadata,
		tags = excluded.tags,
		created_at = excluded.created_at
	`
	domainID := doc.DomainID
	if doc.Scope == domain.ScopeGlobal {
		domainID = ""
	}
	_, err = s.db.ExecContext(ctx, query,
		doc.ID,
		string(doc.Scope),
		domainID,
		int64(doc.Seq),
		doc.Content,
		string(md),
		string(tags),
		doc.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("save document %s: %w", doc.ID, err)
	}
	return nil
}

// Delete removes a document. Missing ids are ignored.
func (s *Store) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete document %s: %w", id, err)
	}
	return nil
}

// List returns one corpus ordered by sequence.
func (s *Store) List(ctx context.Context, scope domain.Scope, domainID string) ([]domain.Document, error) {
	if scope == domain.ScopeGlobal {
		domainID = ""
	}
	rows, err := s.db.QueryContext(ctx, `
	SELECT id, scope, domain_id, seq, content, metadata, tags, created_at
	FROM documents
	WHERE scope = ? AND domain_id = ?
	ORDER BY seq ASC`, string(scope), domainID)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var docs []domain.Document
	for rows.Next() {
		var d domain.Document
		var sc, md, tags, stamp string
		var seq int64
		if err := rows.Scan(&d.ID, &sc, &d.DomainID, &seq, &d.Content, &md, &tags, &stamp); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		d.Scope = domain.Scope(sc)
		d.Seq = uint64(seq)
		if err := json.Unmarshal([]byte(md), &d.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata of %s: %w", d.ID, err)
		}
		if err := json.Unmarshal([]byte(tags), &d.Tags); err != nil {
			return nil, fmt.Errorf("decode tags of %s: %w", d.ID, err)
		}
		if t, err := time.Parse(time.RFC3339Nano, stamp); err == nil {
			d.CreatedAt = t
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
