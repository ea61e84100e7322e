// Package db keeps a manifest of downloaded files in SQLite.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"
)

var ErrNotFound = errors.New("manifest entry not found")

// Entry describes one downloaded object.
type Entry struct {
	Dataset      string
	Key          string
	Path         string
	Size         int64
	ETag         string
	DownloadedAt time.Time
}

// Recorder is what downloaders need from a manifest.
type Recorder interface {
	Record(ctx context.Context, e Entry) error
}

type DB struct {
	*sql.DB
}

// NewDB opens (creating if needed) the manifest at path. ":memory:" gives a
// private in-memory manifest.
func NewDB(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		slog.Error("failed to open manifest", "path", path, "error", err)
		return nil, fmt.Errorf("failed to open manifest %s: %w", path, err)
	}
	// an in-memory database exists per connection
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS downloads (
			key           TEXT PRIMARY KEY,
			dataset       TEXT NOT NULL,
			path          TEXT NOT NULL,
			size          BIGINT NOT NULL,
			etag          TEXT,
			downloaded_at BIGINT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS downloads_dataset ON downloads (dataset);
	`)
	if err != nil {
		db.Close()
		slog.Error("failed to create manifest schema", "path", path, "error", err)
		return nil, fmt.Errorf("failed to create manifest schema: %w", err)
	}

	return &DB{db}, nil
}

// Record inserts or replaces the entry for e.Key.
func (db *DB) Record(ctx context.Context, e Entry) error {
	if e.Key == "" {
		return errors.New("manifest entry needs a key")
	}
	if e.DownloadedAt.IsZero() {
		e.DownloadedAt = time.Now()
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO downloads (key, dataset, path, size, etag, downloaded_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			dataset = excluded.dataset,
			path = excluded.path,
			size = excluded.size,
			etag = excluded.etag,
			downloaded_at = excluded.downloaded_at`,
		e.Key, e.Dataset, e.Path, e.Size, e.ETag, e.DownloadedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to record %s: %w", e.Key, err)
	}
	return nil
}

func (db *DB) Get(ctx context.Context, key string) (Entry, error) {
	row := db.QueryRowContext(ctx, `
		SELECT key, dataset, path, size, etag, downloaded_at
		FROM downloads WHERE key = ?`, key)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return Entry{}, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return e, nil
}

// List returns the entries of a dataset ordered by key.
func (db *DB) List(ctx context.Context, dataset string) ([]Entry, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT key, dataset, path, size, etag, downloaded_at
		FROM downloads WHERE dataset = ? ORDER BY key`, dataset)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", dataset, err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to list %s: %w", dataset, err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(s scanner) (Entry, error) {
	var (
		e    Entry
		etag sql.NullString
		ts   int64
	)
	if err := s.Scan(&e.Key, &e.Dataset, &e.Path, &e.Size, &etag, &ts); err != nil {
		return Entry{}, err
	}
	e.ETag = etag.String
	e.DownloadedAt = time.Unix(ts, 0)
	return e, nil
}
