package update

import (
	"github.com/m-mizutani/bulletin/pkg/adapter"
	"github.com/m-mizutani/bulletin/pkg/repository"
)

// UseCase provides posting and listing of updates
type UseCase struct {
	repo   repository.Repository
	sheets adapter.Sheets
}

// Option is a functional option for UseCase
type Option func(*UseCase)

// WithSheets mirrors every added update into a spreadsheet
func WithSheets(s adapter.Sheets) Option {
	return func(uc *UseCase) {
		uc.sheets = s
	}
}

// New creates a new update UseCase instance
func New(repo repository.Repository, opts ...Option) *UseCase {
	uc := &UseCase{repo: repo}

	for _, opt := range opts {
		opt(uc)
	}

	return uc
}
