package adapter

import (
	"context"
	"errors"
	"time"

	"github.com/m-mizutani/bulletin/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"github.com/sony/gobreaker"
	"google.golang.org/genai"
)

// ErrGeminiUnavailable is returned while the breaker is open
var ErrGeminiUnavailable = goerr.New("gemini is temporarily unavailable")

// BreakerConfig controls when the breaker in front of Gemini opens
type BreakerConfig struct {
	Name string
	// MaxRequests is the number of trial calls allowed while half-open
	MaxRequests uint32
	// Interval clears failure counts while closed
	Interval time.Duration
	// Timeout is how long the breaker stays open
	Timeout time.Duration
	// ConsecutiveFailures trips the breaker
	ConsecutiveFailures uint32
}

func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		Name:                "gemini",
		MaxRequests:         1,
		Interval:            time.Minute,
		Timeout:             30 * time.Second,
		ConsecutiveFailures: 3,
	}
}

// BreakerGemini fails fast after repeated Gemini errors so that callers can
// degrade without waiting on a model that is down
type BreakerGemini struct {
	next Gemini
	cb   *gobreaker.CircuitBreaker
}

var _ Gemini = (*BreakerGemini)(nil)

func NewBreakerGemini(next Gemini, cfg BreakerConfig) *BreakerGemini {
	threshold := cfg.ConsecutiveFailures
	if threshold == 0 {
		threshold = 1
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logging.Default().Warn("circuit breaker state changed",
				"name", name,
				"from", from.String(),
				"to", to.String())
		},
		IsSuccessful: func(err error) bool {
			// caller cancellation says nothing about the model
			return err == nil || errors.Is(err, context.Canceled)
		},
	})

	return &BreakerGemini{next: next, cb: cb}
}

// State reports the current breaker state, e.g. "closed" or "open"
func (b *BreakerGemini) State() string {
	return b.cb.State().String()
}

func (b *BreakerGemini) GenerateContent(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	resp, err := b.cb.Execute(func() (any, error) {
		return b.next.GenerateContent(ctx, contents, config)
	})
	if err != nil {
		switch err {
		case gobreaker.ErrOpenState, gobreaker.ErrTooManyRequests:
			return nil, goerr.Wrap(ErrGeminiUnavailable, "circuit breaker rejected call", goerr.V("state", b.State()))
		}
		return nil, err
	}
	return resp.(*genai.GenerateContentResponse), nil
}
