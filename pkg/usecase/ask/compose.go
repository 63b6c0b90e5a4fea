package ask

import (
	"strings"

	"github.com/m-mizutani/bulletin/pkg/model"
)

// composeFallback lists every retrieved update as "- title (date time)" in
// retrieval order
func composeFallback(updates []*model.Update) string {
	lines := make([]string, 0, len(updates))
	for _, u := range updates {
		when := strings.TrimSpace(model.NormalizeDate(u.Date) + " " + u.Time)
		if when == "" {
			when = "N/A"
		}
		lines = append(lines, "- "+u.Title+" ("+when+")")
	}
	return strings.Join(lines, "\n")
}

// compose picks the final answer. genErr is the generator failure, if any;
// skipped tells that the generator was not used at all.
func compose(ret *Retrieval, text string, genErr error, skipped bool) *model.Answer {
	if ret == nil || len(ret.Updates) == 0 {
		return &model.Answer{
			Text:   model.NoUpdateFound,
			Source: model.AnswerSourceNoMatch,
			Tier:   model.TierNone,
		}
	}

	if skipped || genErr != nil || strings.TrimSpace(text) == "" {
		return &model.Answer{
			Text:   composeFallback(ret.Updates),
			Source: model.AnswerSourceFallbackList,
			Tier:   ret.Tier,
		}
	}

	return &model.Answer{
		Text:   text,
		Source: model.AnswerSourceGenerated,
		Tier:   ret.Tier,
	}
}
