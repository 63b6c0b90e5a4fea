package adapter_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/m-mizutani/bulletin/pkg/adapter"
	"github.com/m-mizutani/gt"
	"google.golang.org/genai"
)

type mockGemini struct {
	calls               int
	generateContentFunc func(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

func (m *mockGemini) GenerateContent(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	m.calls++
	return m.generateContentFunc(ctx, contents, config)
}

func TestBreakerGeminiOpensAfterFailures(t *testing.T) {
	mock := &mockGemini{
		generateContentFunc: func(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
			return nil, errors.New("backend down")
		},
	}
	cfg := adapter.DefaultBreakerConfig()
	cfg.ConsecutiveFailures = 2
	cfg.Timeout = time.Hour
	b := adapter.NewBreakerGemini(mock, cfg)
	ctx := context.Background()

	for range 2 {
		_, err := b.GenerateContent(ctx, nil, nil)
		gt.Error(t, err)
		gt.False(t, errors.Is(err, adapter.ErrGeminiUnavailable))
	}
	gt.Equal(t, b.State(), "open")

	_, err := b.GenerateContent(ctx, nil, nil)
	gt.Error(t, err)
	gt.True(t, errors.Is(err, adapter.ErrGeminiUnavailable))
	gt.Equal(t, mock.calls, 2)
}

func TestBreakerGeminiPassesResponse(t *testing.T) {
	want := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: genai.NewContentFromText("hello", genai.RoleModel)},
		},
	}
	mock := &mockGemini{
		generateContentFunc: func(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
			return want, nil
		},
	}
	b := adapter.NewBreakerGemini(mock, adapter.DefaultBreakerConfig())

	resp, err := b.GenerateContent(context.Background(), nil, nil)
	gt.NoError(t, err)
	gt.Equal(t, resp, want)
	gt.Equal(t, b.State(), "closed")
}
