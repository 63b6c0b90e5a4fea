package update

import (
	"context"

	"github.com/m-mizutani/bulletin/pkg/model"
	"github.com/m-mizutani/bulletin/pkg/repository"
)

const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// List returns the latest updates, newest first
func (u *UseCase) List(ctx context.Context, limit int) ([]*model.Update, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}

	updates, err := u.repo.ListUpdates(ctx, &repository.ListUpdatesInput{Limit: limit})
	if err != nil {
		return nil, err
	}
	return updates, nil
}
