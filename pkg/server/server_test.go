package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/m-mizutani/bulletin/pkg/model"
	"github.com/m-mizutani/bulletin/pkg/repository"
	"github.com/m-mizutani/bulletin/pkg/server"
	"github.com/m-mizutani/bulletin/pkg/usecase/ask"
	"github.com/m-mizutani/bulletin/pkg/usecase/update"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
)

type mockAsker struct {
	answerFunc func(ctx context.Context, question string, now time.Time) (*model.Answer, error)
}

func (m *mockAsker) Answer(ctx context.Context, question string, now time.Time) (*model.Answer, error) {
	return m.answerFunc(ctx, question, now)
}

var fixedNow = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T, asker server.Asker, opts ...server.Option) (*httptest.Server, *repository.Memory) {
	repo := repository.NewMemory()
	opts = append([]server.Option{server.WithClock(func() time.Time { return fixedNow })}, opts...)
	srv := server.New(asker, update.New(repo), opts...)
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)
	return ts, repo
}

func postJSON(t *testing.T, url, body string) (*http.Response, map[string]any) {
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	gt.NoError(t, err)
	defer resp.Body.Close()

	var v map[string]any
	raw, err := io.ReadAll(resp.Body)
	gt.NoError(t, err)
	gt.NoError(t, json.Unmarshal(raw, &v))
	return resp, v
}

func TestAskEmptyStore(t *testing.T) {
	ts, _ := newTestServer(t, ask.New(repository.NewMemory(), nil, ask.WithoutLLM()))

	resp, body := postJSON(t, ts.URL+"/api/ask", `{"question":"Any updates today?"}`)
	gt.Equal(t, resp.StatusCode, http.StatusOK)
	gt.Equal(t, body["answer"], any(model.NoUpdateFound))
	gt.Equal(t, resp.Header.Get("Content-Type"), "application/json")
}

func TestAskUsesServerClock(t *testing.T) {
	var got time.Time
	asker := &mockAsker{
		answerFunc: func(ctx context.Context, question string, now time.Time) (*model.Answer, error) {
			got = now
			return &model.Answer{Text: "ok", Source: model.AnswerSourceGenerated, Tier: model.TierDate}, nil
		},
	}
	tokyo := time.FixedZone("JST", 9*60*60)
	ts, _ := newTestServer(t, asker, server.WithLocation(tokyo))

	resp, body := postJSON(t, ts.URL+"/api/ask", `{"question":"today?"}`)
	gt.Equal(t, resp.StatusCode, http.StatusOK)
	gt.Equal(t, body["answer"], any("ok"))
	gt.True(t, got.Equal(fixedNow))
	gt.Equal(t, got.Location(), tokyo)
}

func TestAskErrors(t *testing.T) {
	testCases := []struct {
		name   string
		body   string
		err    error
		status int
		msg    string
	}{
		{"missing question", `{}`, goerr.Wrap(ask.ErrQuestionRequired, "empty"), http.StatusBadRequest, "Question is required"},
		{"not configured", `{"question":"hi"}`, goerr.Wrap(ask.ErrNotConfigured, "no store"), http.StatusInternalServerError, "Server configuration is incomplete."},
		{"retrieval failed", `{"question":"hi"}`, goerr.Wrap(ask.ErrRetrieval, "down"), http.StatusInternalServerError, "Failed to fetch updates"},
		{"malformed body", `{"question":`, nil, http.StatusBadRequest, "Invalid request body"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			asker := &mockAsker{
				answerFunc: func(ctx context.Context, question string, now time.Time) (*model.Answer, error) {
					return nil, tc.err
				},
			}
			ts, _ := newTestServer(t, asker)

			resp, body := postJSON(t, ts.URL+"/api/ask", tc.body)
			gt.Equal(t, resp.StatusCode, tc.status)
			gt.Equal(t, body["error"], any(tc.msg))
		})
	}
}

func TestAskRealQuestionRequired(t *testing.T) {
	ts, _ := newTestServer(t, ask.New(repository.NewMemory(), nil, ask.WithoutLLM()))

	resp, body := postJSON(t, ts.URL+"/api/ask", `{"question":"   "}`)
	gt.Equal(t, resp.StatusCode, http.StatusBadRequest)
	gt.Equal(t, body["error"], any("Question is required"))
}

func TestAskWithoutAskerValidatesQuestionFirst(t *testing.T) {
	srv := server.New(nil, nil, server.WithClock(func() time.Time { return fixedNow }))
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)

	resp, body := postJSON(t, ts.URL+"/api/ask", `{"question":"  "}`)
	gt.Equal(t, resp.StatusCode, http.StatusBadRequest)
	gt.Equal(t, body["error"], any("Question is required"))

	resp, body = postJSON(t, ts.URL+"/api/ask", `{"question":"Any updates today?"}`)
	gt.Equal(t, resp.StatusCode, http.StatusInternalServerError)
	gt.Equal(t, body["error"], any("Server configuration is incomplete."))
}

func TestAskMethodNotAllowed(t *testing.T) {
	ts, _ := newTestServer(t, &mockAsker{})

	req, err := http.NewRequest(http.MethodPut, ts.URL+"/api/ask", nil)
	gt.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	gt.NoError(t, err)
	defer resp.Body.Close()
	gt.Equal(t, resp.StatusCode, http.StatusMethodNotAllowed)
}

func TestCORSPreflight(t *testing.T) {
	ts, _ := newTestServer(t, &mockAsker{})

	req, err := http.NewRequest(http.MethodOptions, ts.URL+"/api/ask", nil)
	gt.NoError(t, err)
	req.Header.Set("Origin", "https://bulletin.example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	req.Header.Set("Access-Control-Request-Headers", "content-type, apikey")

	resp, err := http.DefaultClient.Do(req)
	gt.NoError(t, err)
	defer resp.Body.Close()

	gt.Equal(t, resp.Header.Get("Access-Control-Allow-Origin"), "*")
	gt.S(t, resp.Header.Get("Access-Control-Allow-Methods")).Contains("POST")
	gt.S(t, strings.ToLower(resp.Header.Get("Access-Control-Allow-Headers"))).Contains("apikey")
}

func TestAddAndListUpdates(t *testing.T) {
	ts, repo := newTestServer(t, &mockAsker{})

	resp, body := postJSON(t, ts.URL+"/api/updates", `{"title":"Budget report","description":"Numbers are in"}`)
	gt.Equal(t, resp.StatusCode, http.StatusCreated)
	gt.Equal(t, body["sheet_synced"], any(false))
	created := body["update"].(map[string]any)
	gt.Equal(t, created["date"], any("2024-05-01"))
	gt.Equal(t, created["time"], any("09:00"))

	stored, err := repo.ListUpdates(context.Background(), nil)
	gt.NoError(t, err)
	gt.A(t, stored).Length(1)

	listResp, err := http.Get(ts.URL + "/api/updates?limit=5")
	gt.NoError(t, err)
	defer listResp.Body.Close()
	gt.Equal(t, listResp.StatusCode, http.StatusOK)

	var list struct {
		Updates []*model.Update `json:"updates"`
	}
	gt.NoError(t, json.NewDecoder(listResp.Body).Decode(&list))
	gt.A(t, list.Updates).Length(1)
	gt.Equal(t, list.Updates[0].Title, "Budget report")
}

func TestAddUpdateValidation(t *testing.T) {
	ts, _ := newTestServer(t, &mockAsker{})

	resp, body := postJSON(t, ts.URL+"/api/updates", `{"title":"","description":"x"}`)
	gt.Equal(t, resp.StatusCode, http.StatusBadRequest)
	gt.Equal(t, body["error"], any("title is required"))
}

func TestListUpdatesBadLimit(t *testing.T) {
	ts, _ := newTestServer(t, &mockAsker{})

	resp, err := http.Get(ts.URL + "/api/updates?limit=abc")
	gt.NoError(t, err)
	defer resp.Body.Close()
	gt.Equal(t, resp.StatusCode, http.StatusBadRequest)
}

func TestHealthAndMetrics(t *testing.T) {
	asker := &mockAsker{
		answerFunc: func(ctx context.Context, question string, now time.Time) (*model.Answer, error) {
			return &model.Answer{Text: "- a (2024-05-01)", Source: model.AnswerSourceFallbackList, Tier: model.TierKeyword}, nil
		},
	}
	ts, _ := newTestServer(t, asker)

	resp, err := http.Get(ts.URL + "/health")
	gt.NoError(t, err)
	resp.Body.Close()
	gt.Equal(t, resp.StatusCode, http.StatusOK)

	askResp, _ := postJSON(t, ts.URL+"/api/ask", `{"question":"budget"}`)
	gt.Equal(t, askResp.StatusCode, http.StatusOK)

	metricsResp, err := http.Get(ts.URL + "/metrics")
	gt.NoError(t, err)
	defer metricsResp.Body.Close()
	raw, err := io.ReadAll(metricsResp.Body)
	gt.NoError(t, err)

	text := string(raw)
	gt.S(t, text).Contains(`bulletin_answers_total{source="fallback-list",tier="keyword"} 1`)
	gt.S(t, text).Contains(`bulletin_http_requests_total{method="GET",route="/health",status="200"} 1`)
}

func TestMCPMount(t *testing.T) {
	called := false
	mcp := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusAccepted)
	})
	ts, _ := newTestServer(t, &mockAsker{}, server.WithMCPHandler(mcp))

	resp, err := http.Post(ts.URL+"/mcp", "application/json", bytes.NewReader([]byte(`{}`)))
	gt.NoError(t, err)
	resp.Body.Close()
	gt.True(t, called)
	gt.Equal(t, resp.StatusCode, http.StatusAccepted)
}

func TestListenAndServeShutsDown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- server.ListenAndServe(ctx, "127.0.0.1:0", http.NotFoundHandler())
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		gt.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
