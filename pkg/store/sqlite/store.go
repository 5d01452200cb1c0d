// Package sqlite provides a SQLite-backed store.Persister.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/getmockd/pipeline/pkg/collection"
	"github.com/getmockd/pipeline/pkg/store"

	_ "modernc.org/sqlite"
)

const schema = `CREATE TABLE IF NOT EXISTS records (
	collection TEXT    NOT NULL,
	position   INTEGER NOT NULL,
	body       TEXT    NOT NULL,
	PRIMARY KEY (collection, position)
)`

// Persister stores collections in one SQLite table, one row per record in
// sequence order.
type Persister struct {
	sqlDB *sql.DB
}

// Open opens (creating when needed) the database at path.
func Open(path string) (*Persister, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// A single writer keeps replace transactions from contending.
	sqlDB.SetMaxOpenConns(1)
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Persister{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (p *Persister) Close() error {
	if p == nil || p.sqlDB == nil {
		return nil
	}
	return p.sqlDB.Close()
}

// Load returns the named collection in stored order.
func (p *Persister) Load(ctx context.Context, name string) ([]collection.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rows, err := p.sqlDB.QueryContext(ctx,
		`SELECT body FROM records WHERE collection = ? ORDER BY position`, name)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []collection.Record
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		var rec collection.Record
		if err := json.Unmarshal([]byte(body), &rec); err != nil {
			return nil, fmt.Errorf("decode record %d: %w", len(out), err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return out, nil
}

// Store replaces the named collection in a single transaction.
func (p *Persister) Store(ctx context.Context, name string, records []collection.Record) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}
	tx, err := p.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM records WHERE collection = ?`, name); err != nil {
		return fmt.Errorf("clear collection: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO records (collection, position, body) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for i, rec := range records {
		body, merr := json.Marshal(rec)
		if merr != nil {
			err = fmt.Errorf("encode record %d: %w", i, merr)
			return err
		}
		if _, err = stmt.ExecContext(ctx, name, i, string(body)); err != nil {
			return fmt.Errorf("insert record %d: %w", i, err)
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Collections lists the collection names with stored records.
func (p *Persister) Collections(ctx context.Context) ([]string, error) {
	rows, err := p.sqlDB.QueryContext(ctx, `SELECT DISTINCT collection FROM records ORDER BY collection`)
	if err != nil {
		return nil, fmt.Errorf("query collections: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

var _ store.Persister = (*Persister)(nil)
