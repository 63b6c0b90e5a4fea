package repository_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/m-mizutani/bulletin/pkg/model"
	"github.com/m-mizutani/bulletin/pkg/repository"
	"github.com/m-mizutani/gt"
)

type suiteOption struct {
	textSearch bool
}

// runRepositorySuite checks the behavior every backend must share. Each run
// uses titles tagged with a random marker so that suites against persistent
// backends do not see rows of earlier runs.
func runRepositorySuite(t *testing.T, repo repository.Repository, opt suiteOption) {
	ctx := context.Background()
	marker := fmt.Sprintf("zq%d", time.Now().UnixNano()%1_000_000_000)
	base := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	// Distinct dates per run keep date-filter assertions isolated too
	day := base.AddDate(0, 0, int(time.Now().UnixNano()%300)).Format(model.DateLayout)
	otherDay := base.AddDate(1, 0, int(time.Now().UnixNano()%300)).Format(model.DateLayout)

	updates := []*model.Update{
		{
			ID:          model.NewUpdateID(),
			Date:        day,
			Time:        "09:00",
			Title:       "Budget report " + marker,
			Description: "Quarterly numbers are in",
			CreatedAt:   base,
		},
		{
			ID:          model.NewUpdateID(),
			Date:        day,
			Time:        "11:30",
			Title:       "Office move " + marker,
			Description: "We move to the new BUDGET friendly office",
			CreatedAt:   base.Add(2 * time.Hour),
		},
		{
			ID:          model.NewUpdateID(),
			Date:        otherDay,
			Title:       "Hiring " + marker,
			Description: "Two new engineers join next week",
			CreatedAt:   base.Add(4 * time.Hour),
		},
	}
	for _, u := range updates {
		gt.NoError(t, repo.PutUpdate(ctx, u))
	}

	t.Run("date filter returns newest first", func(t *testing.T) {
		got, err := repo.ListUpdates(ctx, &repository.ListUpdatesInput{
			Date:  day,
			Limit: 25,
		})
		gt.NoError(t, err)
		gt.A(t, got).Length(2)
		gt.Equal(t, got[0].Title, "Office move "+marker)
		gt.Equal(t, got[1].Title, "Budget report "+marker)
		gt.Equal(t, got[0].Date, day)
		gt.Equal(t, got[0].Time, "11:30")
	})

	t.Run("date filter with no rows", func(t *testing.T) {
		got, err := repo.ListUpdates(ctx, &repository.ListUpdatesInput{
			Date:  "1999-01-01",
			Limit: 25,
		})
		gt.NoError(t, err)
		gt.A(t, got).Length(0)
	})

	t.Run("keywords match title or description case-insensitively", func(t *testing.T) {
		got, err := repo.ListUpdates(ctx, &repository.ListUpdatesInput{
			Keywords: []string{"budget", marker},
			Limit:    25,
		})
		gt.NoError(t, err)
		gt.True(t, len(got) >= 3)

		got, err = repo.ListUpdates(ctx, &repository.ListUpdatesInput{
			Date:     day,
			Keywords: []string{"Budget"},
			Limit:    25,
		})
		gt.NoError(t, err)
		gt.A(t, got).Length(2)
	})

	t.Run("keywords are matched literally", func(t *testing.T) {
		got, err := repo.ListUpdates(ctx, &repository.ListUpdatesInput{
			Date:     day,
			Keywords: []string{"%"},
			Limit:    25,
		})
		gt.NoError(t, err)
		gt.A(t, got).Length(0)
	})

	t.Run("limit bounds results", func(t *testing.T) {
		got, err := repo.ListUpdates(ctx, &repository.ListUpdatesInput{
			Date:  day,
			Limit: 1,
		})
		gt.NoError(t, err)
		gt.A(t, got).Length(1)
		gt.Equal(t, got[0].Title, "Office move "+marker)
	})

	t.Run("text search", func(t *testing.T) {
		got, err := repo.ListUpdates(ctx, &repository.ListUpdatesInput{
			Date:       day,
			TextSearch: "quarterly budget",
			Limit:      25,
		})
		if !opt.textSearch {
			gt.Error(t, err)
			gt.True(t, errors.Is(err, repository.ErrUnsupported))
			return
		}
		gt.NoError(t, err)
		gt.A(t, got).Length(1)
		gt.Equal(t, got[0].Title, "Budget report "+marker)
	})
}

func TestMemory(t *testing.T) {
	runRepositorySuite(t, repository.NewMemory(), suiteOption{textSearch: true})
}

func TestMemoryWithoutTextSearch(t *testing.T) {
	runRepositorySuite(t, repository.NewMemory(repository.WithoutTextSearch()), suiteOption{textSearch: false})
}

func TestMemoryPutUpdateRejectsMissingID(t *testing.T) {
	repo := repository.NewMemory()
	err := repo.PutUpdate(context.Background(), &model.Update{Title: "x"})
	gt.Error(t, err)
}

func TestMemoryReturnsCopies(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemory()
	gt.NoError(t, repo.PutUpdate(ctx, &model.Update{
		ID:          model.NewUpdateID(),
		Date:        "2024-05-01",
		Title:       "Original",
		Description: "desc",
		CreatedAt:   time.Now(),
	}))

	got, err := repo.ListUpdates(ctx, nil)
	gt.NoError(t, err)
	gt.A(t, got).Length(1)
	got[0].Title = "Changed"

	again, err := repo.ListUpdates(ctx, nil)
	gt.NoError(t, err)
	gt.Equal(t, again[0].Title, "Original")
}

func TestMemoryNormalizesStoredDates(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemory()
	gt.NoError(t, repo.PutUpdate(ctx, &model.Update{
		ID:          model.NewUpdateID(),
		Date:        "2024-05-01T10:00:00Z",
		Title:       "Stored with timestamp",
		Description: "desc",
		CreatedAt:   time.Now(),
	}))

	got, err := repo.ListUpdates(ctx, &repository.ListUpdatesInput{Date: "2024-05-01"})
	gt.NoError(t, err)
	gt.A(t, got).Length(1)
}
