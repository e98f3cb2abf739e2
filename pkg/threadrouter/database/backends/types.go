// Package backends provides the storage backend implementations behind the
// database hub: SQLite, PostgreSQL and an embedded Pebble key/value store.
package backends

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned by document lookups for a missing key.
var ErrNotFound = errors.New("key not found")

// SchemaVersion is the latest schema version of the SQL backends.
const SchemaVersion = 1

// documentsTable holds one JSON document per key.
const documentsTable = `
CREATE TABLE IF NOT EXISTS documents (
	doc_key    TEXT PRIMARY KEY,
	body       TEXT NOT NULL,
	updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
)`

// Dialect is the placeholder style of a SQL backend.
type Dialect int

const (
	// DialectQuestion uses "?" placeholders (SQLite).
	DialectQuestion Dialect = iota
	// DialectDollar uses "$n" placeholders (PostgreSQL).
	DialectDollar
)

// rebind rewrites "?" placeholders for the dialect.
func (d Dialect) rebind(query string) string {
	if d != DialectDollar {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// SQLDocuments is a document store over the documents table.
type SQLDocuments struct {
	db      *sql.DB
	dialect Dialect
}

// NewSQLDocuments creates a document store. The documents table must exist.
func NewSQLDocuments(db *sql.DB, dialect Dialect) *SQLDocuments {
	return &SQLDocuments{db: db, dialect: dialect}
}

// Get returns the document stored under key.
func (d *SQLDocuments) Get(ctx context.Context, key string) ([]byte, error) {
	var body string
	err := d.db.QueryRowContext(ctx,
		d.dialect.rebind("SELECT body FROM documents WHERE doc_key = ?"), key,
	).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query document %q: %w", key, err)
	}
	return []byte(body), nil
}

// Put inserts or replaces the document stored under key.
func (d *SQLDocuments) Put(ctx context.Context, key string, body []byte) error {
	_, err := d.db.ExecContext(ctx, d.dialect.rebind(`
		INSERT INTO documents (doc_key, body, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (doc_key) DO UPDATE SET body = excluded.body, updated_at = CURRENT_TIMESTAMP
	`), key, string(body))
	if err != nil {
		return fmt.Errorf("upsert document %q: %w", key, err)
	}
	return nil
}

// Delete removes the document stored under key. Missing keys are not an error.
func (d *SQLDocuments) Delete(ctx context.Context, key string) error {
	if _, err := d.db.ExecContext(ctx, d.dialect.rebind("DELETE FROM documents WHERE doc_key = ?"), key); err != nil {
		return fmt.Errorf("delete document %q: %w", key, err)
	}
	return nil
}

// Keys lists the stored keys with the given prefix in order.
func (d *SQLDocuments) Keys(ctx context.Context, prefix string) ([]string, error) {
	rows, err := d.db.QueryContext(ctx,
		d.dialect.rebind(`SELECT doc_key FROM documents WHERE doc_key LIKE ? ESCAPE '\' ORDER BY doc_key`),
		escapeLike(prefix)+"%",
	)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		// SQLite's LIKE ignores ASCII case.
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	return keys, rows.Err()
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

// escapeLike makes s match literally in a LIKE pattern using '\' as the
// escape character.
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
