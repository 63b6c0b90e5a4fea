package repository

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/m-mizutani/bulletin/pkg/model"
	"github.com/m-mizutani/goerr/v2"
	"github.com/supabase-community/postgrest-go"
	"github.com/supabase-community/supabase-go"
)

// Supabase reads and writes the updates table through the PostgREST API of a
// Supabase project.
type Supabase struct {
	client       *supabase.Client
	table        string
	searchColumn string
	searchConfig string
}

var _ Repository = (*Supabase)(nil)

type SupabaseOption func(*Supabase)

// WithSupabaseTable overrides the table name (default "updates")
func WithSupabaseTable(name string) SupabaseOption {
	return func(s *Supabase) {
		s.table = name
	}
}

// WithSearchColumn sets the tsvector column used for full-text search
// (default "fts")
func WithSearchColumn(column, config string) SupabaseOption {
	return func(s *Supabase) {
		s.searchColumn = column
		s.searchConfig = config
	}
}

// NewSupabase creates a repository for the project at url authorized by key
func NewSupabase(url, key string, opts ...SupabaseOption) (*Supabase, error) {
	if url == "" || key == "" {
		return nil, goerr.New("supabase url and key are required")
	}

	client, err := supabase.NewClient(url, key, nil)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create supabase client", goerr.V("url", url))
	}

	s := &Supabase{
		client:       client,
		table:        "updates",
		searchColumn: "fts",
		searchConfig: "english",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// supabaseRow is the JSON shape of one row. id may be a uuid or a bigint
// depending on how the table was created.
type supabaseRow struct {
	ID          any       `json:"id,omitempty"`
	Date        string    `json:"date"`
	Time        *string   `json:"time"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

func (r *supabaseRow) toModel() *model.Update {
	u := &model.Update{
		Date:        model.NormalizeDate(r.Date),
		Title:       r.Title,
		Description: r.Description,
		CreatedAt:   r.CreatedAt,
	}
	if r.ID != nil {
		u.ID = model.UpdateID(fmt.Sprint(r.ID))
	}
	if r.Time != nil {
		u.Time = *r.Time
	}
	return u
}

func (s *Supabase) PutUpdate(ctx context.Context, update *model.Update) error {
	row := &supabaseRow{
		ID:          string(update.ID),
		Date:        model.NormalizeDate(update.Date),
		Title:       update.Title,
		Description: update.Description,
		CreatedAt:   update.CreatedAt,
	}
	if update.Time != "" {
		row.Time = &update.Time
	}

	if _, _, err := s.client.From(s.table).Insert(row, false, "", "minimal", "").Execute(); err != nil {
		return goerr.Wrap(err, "failed to insert update", goerr.V("id", update.ID))
	}
	return nil
}

func (s *Supabase) ListUpdates(ctx context.Context, input *ListUpdatesInput) ([]*model.Update, error) {
	if input == nil {
		input = &ListUpdatesInput{}
	}

	query := s.client.From(s.table).Select("*", "", false)
	if input.Date != "" {
		query = query.Eq("date", input.Date)
	}
	if input.TextSearch != "" {
		query = query.TextSearch(s.searchColumn, input.TextSearch, s.searchConfig, "websearch")
	}
	if keywords := input.normalizedKeywords(); len(keywords) > 0 {
		var filters []string
		for _, k := range keywords {
			k = sanitizeFilterValue(k)
			if k == "" {
				continue
			}
			filters = append(filters,
				fmt.Sprintf("title.ilike.%%%s%%", k),
				fmt.Sprintf("description.ilike.%%%s%%", k))
		}
		// Keywords made only of filter syntax can match nothing
		if len(filters) == 0 {
			return []*model.Update{}, nil
		}
		query = query.Or(strings.Join(filters, ","), "")
	}
	query = query.
		Order("created_at", &postgrest.OrderOpts{Ascending: false}).
		Limit(input.limit(), "")

	var rows []*supabaseRow
	if _, err := query.ExecuteTo(&rows); err != nil {
		return nil, classifyPostgrestError(err, input)
	}

	updates := make([]*model.Update, 0, len(rows))
	for _, r := range rows {
		updates = append(updates, r.toModel())
	}
	return updates, nil
}

// sanitizeFilterValue removes characters that have a meaning in PostgREST
// logical filter syntax
func sanitizeFilterValue(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ',', '(', ')', '.', '*', '%', '"', '\\':
			return -1
		}
		return r
	}, s)
}

var postgrestCodePattern = regexp.MustCompile(`^\(([0-9A-Z]+)\)`)

// classifyPostgrestError separates query problems the API rejected (PostgREST
// parse errors PGRST1xx, SQLSTATE classes 42 and 22) from transport failures
// and server faults.
func classifyPostgrestError(err error, input *ListUpdatesInput) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return goerr.Wrap(err, "supabase is unreachable", goerr.V("date", input.Date))
	}

	if m := postgrestCodePattern.FindStringSubmatch(err.Error()); m != nil {
		code := m[1]
		if strings.HasPrefix(code, "PGRST1") || strings.HasPrefix(code, "42") || strings.HasPrefix(code, "22") {
			return goerr.Wrap(ErrUnsupported, "supabase rejected query",
				goerr.V("code", code),
				goerr.V("cause", err.Error()),
				goerr.V("text_search", input.TextSearch))
		}
	}

	return goerr.Wrap(err, "failed to query updates", goerr.V("date", input.Date))
}
