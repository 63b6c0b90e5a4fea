package ask

import (
	"context"
	"errors"

	"github.com/m-mizutani/bulletin/pkg/model"
	"github.com/m-mizutani/bulletin/pkg/repository"
	"github.com/m-mizutani/bulletin/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

// Retrieval is the outcome of the tiered search. Updates are ordered newest
// first and Tier names the tier that produced them.
type Retrieval struct {
	Updates []*model.Update
	Tier    model.Tier
}

// Planner runs retrieval tiers in order and stops at the first one that
// returns records
type Planner struct {
	repo repository.Repository
	cfg  PlannerConfig
}

func NewPlanner(repo repository.Repository, cfg PlannerConfig) *Planner {
	return &Planner{repo: repo, cfg: cfg}
}

// planState carries feature switches across the tiers of one request. Once a
// feature is reported unsupported it stays off until the request ends.
type planState struct {
	textSearch    bool
	keywordFilter bool
	hardErr       error
}

// tierFunc returns records of one tier. A nil slice with nil error means the
// tier found nothing or did not apply.
type tierFunc func(ctx context.Context, st *planState, ext *Extraction) []*model.Update

func (p *Planner) Retrieve(ctx context.Context, ext *Extraction) (*Retrieval, error) {
	logger := logging.From(ctx)
	st := &planState{
		textSearch:    p.cfg.enabled(model.TierTextSearch),
		keywordFilter: p.cfg.enabled(model.TierKeyword),
	}

	tiers := map[model.Tier]tierFunc{
		model.TierDate:       p.dateTier,
		model.TierTextSearch: p.textSearchTier,
		model.TierKeyword:    p.keywordTier,
		model.TierRecent:     p.recentTier,
	}

	for _, tier := range tierOrder {
		if !p.cfg.enabled(tier) {
			continue
		}

		updates := tiers[tier](ctx, st, ext)
		if st.hardErr != nil {
			return p.recover(ctx, st)
		}
		if len(updates) > 0 {
			logger.Debug("retrieval tier matched", "tier", tier, "count", len(updates))
			return &Retrieval{Updates: updates, Tier: tier}, nil
		}
	}

	return &Retrieval{Tier: model.TierNone}, nil
}

func (p *Planner) dateTier(ctx context.Context, st *planState, ext *Extraction) []*model.Update {
	if len(ext.Dates) == 0 {
		return nil
	}

	// dates already queried by equality alone
	plain := make(map[string]bool, len(ext.Dates))
	for _, d := range ext.Dates {
		input := &repository.ListUpdatesInput{Date: d, Limit: p.cfg.DateLimit}
		if st.textSearch && ext.CleanedQuery != "" {
			input.TextSearch = ext.CleanedQuery
		}
		if updates := p.query(ctx, st, model.TierDate, input); len(updates) > 0 || st.hardErr != nil {
			return updates
		}
		if input.TextSearch == "" || !st.textSearch {
			plain[d] = true
		}
	}

	// A question naming a date is about that date even when its wording
	// does not match the records of the day
	for _, d := range ext.Dates {
		if plain[d] {
			continue
		}
		input := &repository.ListUpdatesInput{Date: d, Limit: p.cfg.DateLimit}
		if updates := p.query(ctx, st, model.TierDate, input); len(updates) > 0 || st.hardErr != nil {
			return updates
		}
	}
	return nil
}

func (p *Planner) textSearchTier(ctx context.Context, st *planState, ext *Extraction) []*model.Update {
	if !st.textSearch || ext.CleanedQuery == "" {
		return nil
	}
	return p.query(ctx, st, model.TierTextSearch, &repository.ListUpdatesInput{
		TextSearch: ext.CleanedQuery,
		Limit:      p.cfg.DateLimit,
	})
}

func (p *Planner) keywordTier(ctx context.Context, st *planState, ext *Extraction) []*model.Update {
	if !st.keywordFilter || len(ext.Keywords) == 0 {
		return nil
	}
	keywords := ext.Keywords
	if len(keywords) > p.cfg.MaxKeywords {
		keywords = keywords[:p.cfg.MaxKeywords]
	}
	return p.query(ctx, st, model.TierKeyword, &repository.ListUpdatesInput{
		Keywords: keywords,
		Limit:    p.cfg.DateLimit,
	})
}

func (p *Planner) recentTier(ctx context.Context, st *planState, _ *Extraction) []*model.Update {
	return p.query(ctx, st, model.TierRecent, &repository.ListUpdatesInput{
		Limit: p.cfg.RecentLimit,
	})
}

// query runs one store call. On ErrUnsupported the offending feature is
// switched off for the request and the call is retried once without it; if
// no filter is left the tier yields nothing. Other errors are recorded in
// st.hardErr.
func (p *Planner) query(ctx context.Context, st *planState, tier model.Tier, input *repository.ListUpdatesInput) []*model.Update {
	logger := logging.From(ctx)
	logger.Debug("running retrieval tier",
		"tier", tier,
		"date", input.Date,
		"text_search", input.TextSearch,
		"keywords", input.Keywords)

	updates, err := p.repo.ListUpdates(ctx, input)
	if err == nil {
		return updates
	}

	if !errors.Is(err, repository.ErrUnsupported) {
		logger.Error("retrieval tier failed", "tier", tier, "error", err)
		st.hardErr = err
		return nil
	}

	retry := *input
	switch {
	case input.TextSearch != "":
		st.textSearch = false
		retry.TextSearch = ""
	case len(input.Keywords) > 0:
		st.keywordFilter = false
		retry.Keywords = nil
	default:
		// nothing to switch off, so the store cannot serve even a plain query
		logger.Error("store rejected a plain query", "tier", tier, "error", err)
		st.hardErr = err
		return nil
	}
	logger.Warn("query feature unsupported, retrying without it", "tier", tier, "error", err)

	if retry.Date == "" && retry.TextSearch == "" && len(retry.Keywords) == 0 {
		return nil
	}

	updates, err = p.repo.ListUpdates(ctx, &retry)
	if err != nil {
		logger.Error("retrieval tier retry failed", "tier", tier, "error", err)
		st.hardErr = err
		return nil
	}
	return updates
}

// recover makes one plain recency fetch after a hard store error
func (p *Planner) recover(ctx context.Context, st *planState) (*Retrieval, error) {
	logger := logging.From(ctx)
	logger.Warn("retrieval chain stopped by store error, fetching recent updates", "error", st.hardErr)

	updates, err := p.repo.ListUpdates(ctx, &repository.ListUpdatesInput{Limit: p.cfg.RecentLimit})
	if err != nil {
		return nil, goerr.Wrap(ErrRetrieval, "recovery fetch failed",
			goerr.V("tier_error", st.hardErr.Error()),
			goerr.V("recovery_error", err.Error()))
	}
	return &Retrieval{Updates: updates, Tier: model.TierRecovery}, nil
}
