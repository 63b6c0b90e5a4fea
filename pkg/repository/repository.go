package repository

import (
	"context"
	"strings"

	"github.com/m-mizutani/bulletin/pkg/model"
	"github.com/m-mizutani/goerr/v2"
)

var (
	// ErrUnsupported means the backend could not run the requested query
	// feature (full-text search syntax, substring filter). It is not a fault of
	// the backend itself, and callers may retry without the feature.
	ErrUnsupported = goerr.New("query feature unsupported")
)

// ListUpdatesInput describes one query against the update table. Results are
// always ordered by CreatedAt descending.
type ListUpdatesInput struct {
	// Date restricts results to updates of that day (YYYY-MM-DD) when set
	Date string
	// TextSearch is a full-text predicate over title and description
	TextSearch string
	// Keywords match title OR description by case-insensitive substring; any
	// keyword matching is enough
	Keywords []string
	// Limit bounds the number of results
	Limit int
}

// Repository defines the interface for update persistence
type Repository interface {
	// PutUpdate saves a new update
	PutUpdate(ctx context.Context, update *model.Update) error

	// ListUpdates retrieves updates matching input, newest first
	ListUpdates(ctx context.Context, input *ListUpdatesInput) ([]*model.Update, error)
}

const defaultLimit = 25

func (x *ListUpdatesInput) limit() int {
	if x == nil || x.Limit <= 0 {
		return defaultLimit
	}
	return x.Limit
}

// normalizedKeywords lower-cases keywords and drops empty ones
func (x *ListUpdatesInput) normalizedKeywords() []string {
	if x == nil {
		return nil
	}
	out := make([]string, 0, len(x.Keywords))
	for _, k := range x.Keywords {
		k = strings.ToLower(strings.TrimSpace(k))
		if k != "" {
			out = append(out, k)
		}
	}
	return out
}

// matchKeywords reports whether any keyword is a case-insensitive substring of
// the update's title or description
func matchKeywords(u *model.Update, keywords []string) bool {
	title := strings.ToLower(u.Title)
	desc := strings.ToLower(u.Description)
	for _, k := range keywords {
		if strings.Contains(title, k) || strings.Contains(desc, k) {
			return true
		}
	}
	return false
}

// escapeLike escapes LIKE wildcards so keywords match literally
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
