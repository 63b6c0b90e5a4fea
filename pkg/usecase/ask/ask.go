package ask

import (
	"context"
	"strings"
	"time"

	"github.com/m-mizutani/bulletin/pkg/adapter"
	"github.com/m-mizutani/bulletin/pkg/model"
	"github.com/m-mizutani/bulletin/pkg/repository"
	"github.com/m-mizutani/bulletin/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

// UseCase answers free-text questions about stored updates
type UseCase struct {
	repo            repository.Repository
	gemini          adapter.Gemini
	cfg             PlannerConfig
	withoutLLM      bool
	temperature     float32
	maxOutputTokens int32
}

// Option is a functional option for UseCase
type Option func(*UseCase)

// WithPlannerConfig replaces the default tiers and limits
func WithPlannerConfig(cfg PlannerConfig) Option {
	return func(uc *UseCase) {
		uc.cfg = cfg
	}
}

// WithoutLLM answers with the list of retrieved updates and never calls the
// generator. A nil Gemini is accepted only with this option.
func WithoutLLM() Option {
	return func(uc *UseCase) {
		uc.withoutLLM = true
	}
}

// WithTemperature sets the sampling temperature of the generator
func WithTemperature(t float32) Option {
	return func(uc *UseCase) {
		uc.temperature = t
	}
}

// WithMaxOutputTokens bounds the generated answer length
func WithMaxOutputTokens(n int32) Option {
	return func(uc *UseCase) {
		uc.maxOutputTokens = n
	}
}

// New creates a new ask UseCase instance
func New(
	repo repository.Repository,
	gemini adapter.Gemini,
	opts ...Option,
) *UseCase {
	uc := &UseCase{
		repo:            repo,
		gemini:          gemini,
		cfg:             DefaultPlannerConfig(),
		temperature:     defaultTemperature,
		maxOutputTokens: defaultMaxOutputTokens,
	}

	for _, opt := range opts {
		opt(uc)
	}

	return uc
}

// Answer runs extraction, tiered retrieval, context assembly, generation and
// composition for one question. now anchors relative dates like "today".
// The returned answer text is never empty.
func (u *UseCase) Answer(ctx context.Context, question string, now time.Time) (*model.Answer, error) {
	if strings.TrimSpace(question) == "" {
		return nil, goerr.Wrap(ErrQuestionRequired, "empty question")
	}
	if u.repo == nil {
		return nil, goerr.Wrap(ErrNotConfigured, "update store is not configured")
	}
	if u.gemini == nil && !u.withoutLLM {
		return nil, goerr.Wrap(ErrNotConfigured, "generator is not configured")
	}

	logger := logging.From(ctx)

	ext := Extract(question, now)
	logger.Debug("question extracted",
		"dates", ext.Dates,
		"keywords", ext.Keywords,
		"cleaned_query", ext.CleanedQuery)

	ret, err := NewPlanner(u.repo, u.cfg).Retrieve(ctx, ext)
	if err != nil {
		return nil, err
	}

	var answer *model.Answer
	if len(ret.Updates) == 0 || u.withoutLLM {
		answer = compose(ret, "", nil, true)
	} else {
		gen := &generator{
			gemini:          u.gemini,
			temperature:     u.temperature,
			maxOutputTokens: u.maxOutputTokens,
		}
		text, genErr := gen.Generate(ctx, question, BuildContext(ret.Updates, u.cfg.ContextLimit), now)
		if genErr != nil {
			logger.Warn("answer generation failed, falling back to update list",
				"error", genErr,
				"count", len(ret.Updates))
		}
		answer = compose(ret, text, genErr, false)
	}

	logger.Info("question answered",
		"source", answer.Source,
		"tier", answer.Tier,
		"count", len(ret.Updates))
	return answer, nil
}
