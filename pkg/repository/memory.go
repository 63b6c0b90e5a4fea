package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/m-mizutani/bulletin/pkg/model"
	"github.com/m-mizutani/goerr/v2"
)

// Memory keeps updates in process memory. It is used for local runs and tests.
type Memory struct {
	mu         sync.RWMutex
	updates    []*model.Update
	textSearch bool
}

type MemoryOption func(*Memory)

// WithoutTextSearch makes the repository reject full-text search like a
// backend without a search index does
func WithoutTextSearch() MemoryOption {
	return func(m *Memory) {
		m.textSearch = false
	}
}

// NewMemory creates an empty in-memory repository
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{textSearch: true}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

var _ Repository = (*Memory)(nil)

func (m *Memory) PutUpdate(ctx context.Context, update *model.Update) error {
	if update == nil {
		return goerr.New("update is nil")
	}
	if update.ID == "" {
		return goerr.New("update ID is empty")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	copied := *update
	m.updates = append(m.updates, &copied)
	return nil
}

func (m *Memory) ListUpdates(ctx context.Context, input *ListUpdatesInput) ([]*model.Update, error) {
	if input == nil {
		input = &ListUpdatesInput{}
	}
	if input.TextSearch != "" && !m.textSearch {
		return nil, goerr.Wrap(ErrUnsupported, "full-text search is not available", goerr.V("query", input.TextSearch))
	}

	keywords := input.normalizedKeywords()
	terms := searchTerms(input.TextSearch)

	m.mu.RLock()
	defer m.mu.RUnlock()

	var matched []*model.Update
	for _, u := range m.updates {
		if input.Date != "" && model.NormalizeDate(u.Date) != input.Date {
			continue
		}
		if input.TextSearch != "" && !matchTerms(u, terms) {
			continue
		}
		if len(keywords) > 0 && !matchKeywords(u, keywords) {
			continue
		}
		copied := *u
		matched = append(matched, &copied)
	}

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	if limit := input.limit(); len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

// searchTerms splits a full-text query into lower-cased terms. Terms of two
// characters or less are dropped, which roughly mirrors stop word handling of
// a real search index.
func searchTerms(query string) []string {
	fields := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		if len([]rune(f)) > 2 {
			terms = append(terms, f)
		}
	}
	return terms
}

// matchTerms requires every term in the combined search field
func matchTerms(u *model.Update, terms []string) bool {
	if len(terms) == 0 {
		return false
	}
	text := strings.ToLower(u.SearchText())
	for _, term := range terms {
		if !strings.Contains(text, term) {
			return false
		}
	}
	return true
}
