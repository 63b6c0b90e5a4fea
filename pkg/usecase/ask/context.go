package ask

import (
	"strings"

	"github.com/m-mizutani/bulletin/pkg/model"
)

const contextDivider = "\n---\n"

// BuildContext renders at most limit updates as the knowledge block given to
// the generator. Missing values render as N/A.
func BuildContext(updates []*model.Update, limit int) string {
	if limit > 0 && len(updates) > limit {
		updates = updates[:limit]
	}

	blocks := make([]string, 0, len(updates))
	for _, u := range updates {
		var b strings.Builder
		b.WriteString("Date: " + orNA(model.NormalizeDate(u.Date)) + "\n")
		b.WriteString("Time: " + orNA(u.Time) + "\n")
		b.WriteString("Title: " + u.Title + "\n")
		b.WriteString("Description: " + u.Description + "\n")
		blocks = append(blocks, b.String())
	}
	return strings.Join(blocks, contextDivider)
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return "N/A"
	}
	return s
}
