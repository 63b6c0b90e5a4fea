package model

// NoUpdateFound is returned verbatim whenever nothing relevant exists
const NoUpdateFound = "No update found for that date or topic."

type AnswerSource string

const (
	AnswerSourceGenerated    AnswerSource = "generated"
	AnswerSourceFallbackList AnswerSource = "fallback-list"
	AnswerSourceNoMatch      AnswerSource = "no-match"
)

// Tier names one retrieval strategy of the ask pipeline
type Tier string

const (
	TierNone       Tier = ""
	TierDate       Tier = "date"
	TierTextSearch Tier = "text_search"
	TierKeyword    Tier = "keyword"
	TierRecent     Tier = "recent"
	TierRecovery   Tier = "recovery"
)

// Answer is the result of one question. Only Text is shown to users; Source
// and Tier describe how it was produced.
type Answer struct {
	Text   string
	Source AnswerSource
	Tier   Tier
}
