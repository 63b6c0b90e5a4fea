package ask

import (
	"bytes"
	"context"
	_ "embed"
	"strings"
	"text/template"
	"time"

	"github.com/m-mizutani/bulletin/pkg/adapter"
	"github.com/m-mizutani/bulletin/pkg/model"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/genai"
)

//go:embed prompt/answer.md
var answerPromptRaw string

var answerPromptTmpl = template.Must(template.New("answer").Parse(answerPromptRaw))

const (
	defaultTemperature     = float32(0.5)
	defaultMaxOutputTokens = int32(512)
)

type generator struct {
	gemini          adapter.Gemini
	temperature     float32
	maxOutputTokens int32
}

func buildAnswerPrompt(question, updatesContext string, now time.Time) (string, error) {
	var buf bytes.Buffer
	if err := answerPromptTmpl.Execute(&buf, map[string]any{
		"NoUpdateFound": model.NoUpdateFound,
		"Today":         now.Format(model.DateLayout),
		"Context":       updatesContext,
		"Question":      question,
	}); err != nil {
		return "", goerr.Wrap(err, "failed to execute answer prompt template")
	}
	return buf.String(), nil
}

// Generate asks the model to answer question from updatesContext. Any failure,
// including blank output, is returned as an error for the caller to degrade.
func (g *generator) Generate(ctx context.Context, question, updatesContext string, now time.Time) (string, error) {
	prompt, err := buildAnswerPrompt(question, updatesContext, now)
	if err != nil {
		return "", err
	}

	config := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(g.temperature),
		MaxOutputTokens: g.maxOutputTokens,
	}
	contents := []*genai.Content{
		genai.NewContentFromText(prompt, genai.RoleUser),
	}

	resp, err := g.gemini.GenerateContent(ctx, contents, config)
	if err != nil {
		return "", goerr.Wrap(err, "failed to generate answer")
	}

	text := responseText(resp)
	if strings.TrimSpace(text) == "" {
		return "", goerr.Wrap(ErrEmptyGeneration, "no text in gemini response")
	}
	return text, nil
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}

	var texts []string
	for _, part := range resp.Candidates[0].Content.Parts {
		if part == nil || part.Thought || part.Text == "" {
			continue
		}
		texts = append(texts, part.Text)
	}
	return strings.Join(texts, "")
}
