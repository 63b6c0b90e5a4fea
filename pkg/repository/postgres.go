package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/m-mizutani/bulletin/pkg/model"
	"github.com/m-mizutani/goerr/v2"
)

// Postgres stores updates in a PostgreSQL table. Full-text search runs
// websearch_to_tsquery against title and description.
type Postgres struct {
	db       *sql.DB
	tsConfig string
}

var _ Repository = (*Postgres)(nil)

type PostgresOption func(*Postgres)

// WithTextSearchConfig sets the text search configuration (default "simple")
func WithTextSearchConfig(name string) PostgresOption {
	return func(p *Postgres) {
		p.tsConfig = name
	}
}

// NewPostgres connects to dsn and makes sure the updates table exists
func NewPostgres(ctx context.Context, dsn string, opts ...PostgresOption) (*Postgres, error) {
	if dsn == "" {
		return nil, goerr.New("postgres DSN is required")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open postgres")
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, goerr.Wrap(err, "failed to connect to postgres")
	}

	p := &Postgres{db: db, tsConfig: "simple"}
	for _, opt := range opts {
		opt(p)
	}

	if err := p.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return p, nil
}

func (p *Postgres) ensureSchema(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `
	CREATE TABLE IF NOT EXISTS updates (
		id TEXT PRIMARY KEY,
		date DATE NOT NULL,
		time TEXT NOT NULL DEFAULT '',
		title TEXT NOT NULL,
		description TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);
	CREATE INDEX IF NOT EXISTS idx_updates_created_at ON updates (created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_updates_date ON updates (date);
	`)
	if err != nil {
		return goerr.Wrap(err, "failed to ensure updates schema")
	}
	return nil
}

// Close releases the connection pool
func (p *Postgres) Close() error {
	return p.db.Close()
}

func (p *Postgres) PutUpdate(ctx context.Context, update *model.Update) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO updates (id, date, time, title, description, created_at) VALUES ($1, $2::date, $3, $4, $5, $6)`,
		string(update.ID), model.NormalizeDate(update.Date), update.Time,
		update.Title, update.Description, update.CreatedAt)
	if err != nil {
		return goerr.Wrap(err, "failed to insert update", goerr.V("id", update.ID))
	}
	return nil
}

func (p *Postgres) ListUpdates(ctx context.Context, input *ListUpdatesInput) ([]*model.Update, error) {
	if input == nil {
		input = &ListUpdatesInput{}
	}

	var (
		where []string
		args  []any
	)
	placeholder := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if input.Date != "" {
		where = append(where, "date = "+placeholder(input.Date)+"::date")
	}
	if input.TextSearch != "" {
		cfg := placeholder(p.tsConfig)
		where = append(where, fmt.Sprintf(
			"to_tsvector(%s::regconfig, title || ' ' || description) @@ websearch_to_tsquery(%s::regconfig, %s)",
			cfg, cfg, placeholder(input.TextSearch)))
	}
	if keywords := input.normalizedKeywords(); len(keywords) > 0 {
		var or []string
		for _, k := range keywords {
			ph := placeholder("%" + escapeLike(k) + "%")
			or = append(or, fmt.Sprintf("title ILIKE %s OR description ILIKE %s", ph, ph))
		}
		where = append(where, "("+strings.Join(or, " OR ")+")")
	}

	query := "SELECT id, date, time, title, description, created_at FROM updates"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC LIMIT " + placeholder(input.limit())

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classifyPostgresError(err, input)
	}
	defer rows.Close()

	var updates []*model.Update
	for rows.Next() {
		var (
			u    model.Update
			id   string
			date time.Time
		)
		if err := rows.Scan(&id, &date, &u.Time, &u.Title, &u.Description, &u.CreatedAt); err != nil {
			return nil, goerr.Wrap(err, "failed to scan update")
		}
		u.ID = model.UpdateID(id)
		u.Date = date.Format(model.DateLayout)
		updates = append(updates, &u)
	}
	if err := rows.Err(); err != nil {
		return nil, classifyPostgresError(err, input)
	}

	return updates, nil
}

// classifyPostgresError maps query errors raised by the server for syntax or
// data problems (SQLSTATE classes 42 and 22) to ErrUnsupported. Anything else,
// such as a lost connection, stays a hard error.
func classifyPostgresError(err error, input *ListUpdatesInput) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code.Class() {
		case "42", "22":
			return goerr.Wrap(ErrUnsupported, "postgres rejected query",
				goerr.V("code", string(pqErr.Code)),
				goerr.V("message", pqErr.Message),
				goerr.V("text_search", input.TextSearch))
		}
	}
	return goerr.Wrap(err, "failed to query updates", goerr.V("date", input.Date))
}
