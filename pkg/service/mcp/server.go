package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/m-mizutani/bulletin/pkg/model"
	"github.com/m-mizutani/bulletin/pkg/usecase/ask"
	"github.com/m-mizutani/bulletin/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	ToolAskUpdates  = "ask_updates"
	ToolListUpdates = "list_updates"
)

type Asker interface {
	Answer(ctx context.Context, question string, now time.Time) (*model.Answer, error)
}

type Lister interface {
	List(ctx context.Context, limit int) ([]*model.Update, error)
}

type askParams struct {
	Question string `json:"question" jsonschema:"Free-text question about business updates, e.g. 'Any updates today?'"`
}

type listParams struct {
	Limit int `json:"limit,omitempty" jsonschema:"Maximum number of updates to return, newest first (default 20)"`
}

// Server exposes the bulletin as MCP tools
type Server struct {
	asker    Asker
	lister   Lister
	location *time.Location
	clock    func() time.Time
	server   *mcp.Server
}

type ServerOption func(*Server)

func WithLocation(loc *time.Location) ServerOption {
	return func(s *Server) {
		s.location = loc
	}
}

func WithClock(clock func() time.Time) ServerOption {
	return func(s *Server) {
		s.clock = clock
	}
}

func NewServer(asker Asker, lister Lister, version string, opts ...ServerOption) *Server {
	s := &Server{
		asker:    asker,
		lister:   lister,
		location: time.UTC,
		clock:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.server = mcp.NewServer(&mcp.Implementation{
		Name:    "bulletin",
		Version: version,
	}, nil)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        ToolAskUpdates,
		Description: "Answer a question from the business updates board. Understands dates such as today, yesterday or 2024-05-01.",
	}, s.askUpdates)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        ToolListUpdates,
		Description: "List the latest business updates as JSON, newest first.",
	}, s.listUpdates)

	return s
}

// Handler returns a streamable HTTP handler for mounting on a router
func (s *Server) Handler() http.Handler {
	return mcp.NewStreamableHTTPHandler(func(r *http.Request) *mcp.Server {
		return s.server
	}, nil)
}

// RunStdio serves over stdin/stdout until the client disconnects or ctx ends
func (s *Server) RunStdio(ctx context.Context) error {
	if err := s.server.Run(ctx, &mcp.StdioTransport{}); err != nil {
		return goerr.Wrap(err, "mcp stdio server failed")
	}
	return nil
}

func toolError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{&mcp.TextContent{Text: msg}},
	}
}

func (s *Server) askUpdates(ctx context.Context, req *mcp.CallToolRequest, params *askParams) (*mcp.CallToolResult, any, error) {
	if strings.TrimSpace(params.Question) == "" {
		return toolError("Question is required"), nil, nil
	}
	if s.asker == nil {
		return toolError("Server configuration is incomplete."), nil, nil
	}

	answer, err := s.asker.Answer(ctx, params.Question, s.clock().In(s.location))
	if err != nil {
		switch {
		case errors.Is(err, ask.ErrQuestionRequired):
			return toolError("Question is required"), nil, nil
		case errors.Is(err, ask.ErrNotConfigured):
			logging.From(ctx).Error("ask is not configured", "error", err)
			return toolError("Server configuration is incomplete."), nil, nil
		}
		logging.From(ctx).Error("failed to answer question", "error", err)
		return toolError("Failed to fetch updates"), nil, nil
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: answer.Text}},
	}, nil, nil
}

func (s *Server) listUpdates(ctx context.Context, req *mcp.CallToolRequest, params *listParams) (*mcp.CallToolResult, any, error) {
	if params.Limit < 0 {
		return toolError("limit must be a non-negative integer"), nil, nil
	}

	updates, err := s.lister.List(ctx, params.Limit)
	if err != nil {
		logging.From(ctx).Error("failed to list updates", "error", err)
		return toolError("Failed to fetch updates"), nil, nil
	}
	if updates == nil {
		updates = []*model.Update{}
	}

	raw, err := json.Marshal(updates)
	if err != nil {
		return nil, nil, goerr.Wrap(err, "failed to marshal updates")
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(raw)}},
	}, nil, nil
}
