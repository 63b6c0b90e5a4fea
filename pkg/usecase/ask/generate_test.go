package ask

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/m-mizutani/bulletin/pkg/model"
	"github.com/m-mizutani/gt"
	"google.golang.org/genai"
)

type stubGemini struct {
	contents []*genai.Content
	config   *genai.GenerateContentConfig
	resp     *genai.GenerateContentResponse
	err      error
}

func (s *stubGemini) GenerateContent(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	s.contents = contents
	s.config = config
	return s.resp, s.err
}

func textResponse(parts ...*genai.Part) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: &genai.Content{Role: genai.RoleModel, Parts: parts}},
		},
	}
}

var generateNow = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

func TestBuildAnswerPrompt(t *testing.T) {
	prompt, err := buildAnswerPrompt("What's new today?", "Date: 2024-05-01\nTitle: Budget", generateNow)
	gt.NoError(t, err)
	gt.S(t, prompt).Contains("What's new today?")
	gt.S(t, prompt).Contains("Date: 2024-05-01\nTitle: Budget")
	gt.S(t, prompt).Contains(`"` + model.NoUpdateFound + `"`)
	gt.S(t, prompt).Contains("Today is 2024-05-01.")
}

func TestGenerate(t *testing.T) {
	stub := &stubGemini{
		resp: textResponse(
			&genai.Part{Text: "thinking...", Thought: true},
			&genai.Part{Text: "The budget "},
			&genai.Part{Text: "report is out."},
		),
	}
	g := &generator{gemini: stub, temperature: defaultTemperature, maxOutputTokens: defaultMaxOutputTokens}

	text, err := g.Generate(context.Background(), "Budget?", "ctx", generateNow)
	gt.NoError(t, err)
	gt.Equal(t, text, "The budget report is out.")

	gt.A(t, stub.contents).Length(1)
	gt.Equal(t, stub.contents[0].Role, genai.RoleUser)
	gt.Equal(t, *stub.config.Temperature, float32(0.5))
	gt.Equal(t, stub.config.MaxOutputTokens, int32(512))
}

func TestGenerateFailures(t *testing.T) {
	testCases := []struct {
		name string
		stub *stubGemini
	}{
		{"transport error", &stubGemini{err: errors.New("503 unavailable")}},
		{"nil response", &stubGemini{}},
		{"no candidates", &stubGemini{resp: &genai.GenerateContentResponse{}}},
		{"whitespace only", &stubGemini{resp: textResponse(&genai.Part{Text: "  \n "})}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			g := &generator{gemini: tc.stub, temperature: defaultTemperature, maxOutputTokens: defaultMaxOutputTokens}
			_, err := g.Generate(context.Background(), "Budget?", "ctx", generateNow)
			gt.Error(t, err)
		})
	}
}
