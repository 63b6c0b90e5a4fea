package repository

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"

	"github.com/m-mizutani/bulletin/pkg/model"
	"github.com/m-mizutani/goerr/v2"
	_ "modernc.org/sqlite"
)

// SQLite stores updates in a local SQLite file. It has no full-text index, so
// text search requests are rejected with ErrUnsupported and callers fall back
// to keyword filtering.
type SQLite struct {
	db *sql.DB
}

var _ Repository = (*SQLite)(nil)

// NewSQLite opens (and creates if needed) the database file at path
func NewSQLite(ctx context.Context, path string) (*SQLite, error) {
	if path == "" {
		return nil, goerr.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, goerr.Wrap(err, "failed to create database directory", goerr.V("path", path))
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open sqlite", goerr.V("path", path))
	}
	db.SetMaxOpenConns(1)

	s := &SQLite{db: db}
	if err := s.init(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLite) init(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS updates (
			id          TEXT PRIMARY KEY,
			date        TEXT NOT NULL,
			time        TEXT NOT NULL DEFAULT '',
			title       TEXT NOT NULL,
			description TEXT NOT NULL,
			created_at  DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_updates_created_at ON updates(created_at DESC);
		CREATE INDEX IF NOT EXISTS idx_updates_date ON updates(date);
	`)
	if err != nil {
		return goerr.Wrap(err, "failed to initialize sqlite schema")
	}
	return nil
}

// Close releases the database handle
func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) PutUpdate(ctx context.Context, update *model.Update) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO updates (id, date, time, title, description, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		string(update.ID), model.NormalizeDate(update.Date), update.Time,
		update.Title, update.Description, update.CreatedAt.UTC())
	if err != nil {
		return goerr.Wrap(err, "failed to insert update", goerr.V("id", update.ID))
	}
	return nil
}

func (s *SQLite) ListUpdates(ctx context.Context, input *ListUpdatesInput) ([]*model.Update, error) {
	if input == nil {
		input = &ListUpdatesInput{}
	}
	if input.TextSearch != "" {
		return nil, goerr.Wrap(ErrUnsupported, "sqlite store has no full-text index", goerr.V("query", input.TextSearch))
	}

	var (
		where []string
		args  []any
	)
	if input.Date != "" {
		where = append(where, "date = ?")
		args = append(args, input.Date)
	}
	if keywords := input.normalizedKeywords(); len(keywords) > 0 {
		var or []string
		for _, k := range keywords {
			or = append(or, `title LIKE ? ESCAPE '\' OR description LIKE ? ESCAPE '\'`)
			pattern := "%" + escapeLike(k) + "%"
			args = append(args, pattern, pattern)
		}
		where = append(where, "("+strings.Join(or, " OR ")+")")
	}

	query := "SELECT id, date, time, title, description, created_at FROM updates"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC LIMIT ?"
	args = append(args, input.limit())

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query updates", goerr.V("date", input.Date))
	}
	defer rows.Close()

	var updates []*model.Update
	for rows.Next() {
		var (
			u  model.Update
			id string
		)
		if err := rows.Scan(&id, &u.Date, &u.Time, &u.Title, &u.Description, &u.CreatedAt); err != nil {
			return nil, goerr.Wrap(err, "failed to scan update")
		}
		u.ID = model.UpdateID(id)
		updates = append(updates, &u)
	}
	if err := rows.Err(); err != nil {
		return nil, goerr.Wrap(err, "failed to iterate updates")
	}

	return updates, nil
}
