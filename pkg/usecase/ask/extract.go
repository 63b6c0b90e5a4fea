package ask

import (
	"regexp"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/m-mizutani/bulletin/pkg/model"
)

// Extraction is what the planner needs to know about a question
type Extraction struct {
	// Dates are ISO dates in order of first appearance, without duplicates
	Dates []string
	// Keywords are lower-cased tokens longer than two characters, first seen
	// order, without duplicates
	Keywords []string
	// CleanedQuery is the question without characters that break full-text
	// query syntax
	CleanedQuery string
}

var (
	// Matches are accepted only when not glued to further digits, see
	// digitBounded. Letters and underscores around a date are fine.
	ymdPattern = regexp.MustCompile(`(\d{4})[-/](\d{2})[-/](\d{2})`)
	dmyPattern = regexp.MustCompile(`(\d{2})[-/](\d{2})[-/](\d{4})`)

	relativeDays = map[string]int{
		"yesterday": -1,
		"today":     0,
		"tomorrow":  1,
	}

	queryCleaner = strings.NewReplacer("'", "", ":", "")
)

type dateCandidate struct {
	pos  int
	date string
}

// Extract pulls date candidates and keywords out of question. Relative words
// are resolved against now in now's location.
func Extract(question string, now time.Time) *Extraction {
	lower := strings.ToLower(question)

	return &Extraction{
		Dates:        extractDates(lower, now),
		Keywords:     extractKeywords(lower),
		CleanedQuery: strings.TrimSpace(queryCleaner.Replace(question)),
	}
}

func extractDates(lower string, now time.Time) []string {
	var candidates []dateCandidate

	for word, offset := range relativeDays {
		if pos := strings.Index(lower, word); pos >= 0 {
			candidates = append(candidates, dateCandidate{
				pos:  pos,
				date: now.AddDate(0, 0, offset).Format(model.DateLayout),
			})
		}
	}

	var ymdSpans [][]int
	for _, m := range ymdPattern.FindAllStringSubmatchIndex(lower, -1) {
		if !digitBounded(lower, m[0], m[1]) {
			continue
		}
		ymdSpans = append(ymdSpans, m[:2])
		y, mo, d := lower[m[2]:m[3]], lower[m[4]:m[5]], lower[m[6]:m[7]]
		if date, ok := calendarDate(y, mo, d); ok {
			candidates = append(candidates, dateCandidate{pos: m[0], date: date})
		}
	}

	for _, m := range dmyPattern.FindAllStringSubmatchIndex(lower, -1) {
		if !digitBounded(lower, m[0], m[1]) || overlaps(m[0], m[1], ymdSpans) {
			continue
		}
		d, mo, y := lower[m[2]:m[3]], lower[m[4]:m[5]], lower[m[6]:m[7]]
		if date, ok := calendarDate(y, mo, d); ok {
			candidates = append(candidates, dateCandidate{pos: m[0], date: date})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].pos < candidates[j].pos
	})

	var dates []string
	seen := make(map[string]bool)
	for _, c := range candidates {
		if seen[c.date] {
			continue
		}
		seen[c.date] = true
		dates = append(dates, c.date)
	}
	return dates
}

// calendarDate rejects dates like 2024-13-45 or 2023-02-29
func calendarDate(y, m, d string) (string, bool) {
	s := y + "-" + m + "-" + d
	if _, err := time.Parse(model.DateLayout, s); err != nil {
		return "", false
	}
	return s, true
}

// digitBounded reports whether s[start:end] has no ASCII digit right before or
// after it
func digitBounded(s string, start, end int) bool {
	if start > 0 && isDigit(s[start-1]) {
		return false
	}
	if end < len(s) && isDigit(s[end]) {
		return false
	}
	return true
}

func isDigit(b byte) bool {
	return '0' <= b && b <= '9'
}

func overlaps(start, end int, spans [][]int) bool {
	for _, s := range spans {
		if start < s[1] && s[0] < end {
			return true
		}
	}
	return false
}

func extractKeywords(lower string) []string {
	tokens := strings.FieldsFunc(lower, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	var keywords []string
	seen := make(map[string]bool)
	for _, tok := range tokens {
		if len([]rune(tok)) <= 2 || seen[tok] {
			continue
		}
		seen[tok] = true
		keywords = append(keywords, tok)
	}
	return keywords
}
