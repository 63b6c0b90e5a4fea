package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
)

const (
	// DateLayout is the canonical calendar date form used everywhere
	DateLayout = "2006-01-02"
	// TimeLayout is the wall clock form of Update.Time
	TimeLayout = "15:04"
)

var (
	ErrInvalidUpdate = goerr.New("invalid update")
)

type UpdateID string

// NewUpdateID generates a new unique UpdateID
func NewUpdateID() UpdateID {
	return UpdateID(uuid.New().String())
}

// Update is a single business update posted to the board. Records are append
// only; nothing in the ask pipeline modifies them.
type Update struct {
	ID          UpdateID  `json:"id" firestore:"id"`
	Date        string    `json:"date" firestore:"date"`
	Time        string    `json:"time,omitempty" firestore:"time"`
	Title       string    `json:"title" firestore:"title"`
	Description string    `json:"description" firestore:"description"`
	CreatedAt   time.Time `json:"created_at" firestore:"created_at"`
}

// Validate checks if the update can be stored
func (u *Update) Validate() error {
	if strings.TrimSpace(u.Title) == "" {
		return goerr.Wrap(ErrInvalidUpdate, "title is empty")
	}
	if strings.TrimSpace(u.Description) == "" {
		return goerr.Wrap(ErrInvalidUpdate, "description is empty")
	}
	if _, err := time.Parse(DateLayout, u.Date); err != nil {
		return goerr.Wrap(ErrInvalidUpdate, "date is not YYYY-MM-DD", goerr.V("date", u.Date))
	}
	if u.Time != "" {
		if _, err := time.Parse(TimeLayout, u.Time); err != nil {
			return goerr.Wrap(ErrInvalidUpdate, "time is not HH:MM", goerr.V("time", u.Time))
		}
	}
	return nil
}

// SearchText is the combined field that full-text search runs against
func (u *Update) SearchText() string {
	return u.Title + " " + u.Description
}

// dateLayouts are the stored date forms NormalizeDate accepts, most common first
var dateLayouts = []string{
	DateLayout,
	"2006/01/02",
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"02-01-2006",
	"02/01/2006",
}

// NormalizeDate renders a stored date as YYYY-MM-DD. Values that match no
// known layout are returned unchanged so that nothing is silently dropped.
func NormalizeDate(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(DateLayout)
		}
	}
	return s
}
