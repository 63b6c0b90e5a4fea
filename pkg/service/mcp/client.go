package mcp

import (
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"strings"

	"github.com/m-mizutani/bulletin/pkg/model"
	"github.com/m-mizutani/goerr/v2"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// ErrToolFailed is returned when the remote tool reports an error
var ErrToolFailed = goerr.New("mcp tool returned an error")

// Client talks to a bulletin MCP server, e.g. `bulletin ask --server`
type Client struct {
	session *mcp.ClientSession
}

// ServerConfig represents how to reach a bulletin MCP server
type ServerConfig struct {
	Transport string // "stdio" or "http"
	Command   []string
	URL       string
	Env       map[string]string
}

// Connect connects to an MCP server with the given configuration
func Connect(ctx context.Context, cfg ServerConfig) (*Client, error) {
	mcpClient := mcp.NewClient(&mcp.Implementation{
		Name:    "bulletin-client",
		Version: "0.1.0",
	}, nil)

	var transport mcp.Transport
	switch cfg.Transport {
	case "stdio":
		if len(cfg.Command) == 0 {
			return nil, goerr.New("command is required for stdio transport")
		}
		cmd := exec.Command(cfg.Command[0], cfg.Command[1:]...)
		if len(cfg.Env) > 0 {
			cmd.Env = os.Environ()
			for k, v := range cfg.Env {
				cmd.Env = append(cmd.Env, k+"="+v)
			}
		}
		transport = &mcp.CommandTransport{Command: cmd}

	case "http":
		if cfg.URL == "" {
			return nil, goerr.New("url is required for http transport")
		}
		transport = &mcp.StreamableClientTransport{Endpoint: cfg.URL}

	default:
		return nil, goerr.New("unsupported transport",
			goerr.V("transport", cfg.Transport),
			goerr.V("supported", []string{"stdio", "http"}))
	}

	session, err := mcpClient.Connect(ctx, transport, nil)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to connect to MCP server",
			goerr.V("transport", cfg.Transport),
			goerr.V("url", cfg.URL))
	}

	return &Client{session: session}, nil
}

// Tools returns the names of tools the server offers
func (c *Client) Tools(ctx context.Context) ([]string, error) {
	result, err := c.session.ListTools(ctx, nil)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list tools")
	}
	names := make([]string, 0, len(result.Tools))
	for _, t := range result.Tools {
		names = append(names, t.Name)
	}
	return names, nil
}

// Ask calls ask_updates and returns the answer text
func (c *Client) Ask(ctx context.Context, question string) (string, error) {
	return c.callText(ctx, ToolAskUpdates, map[string]any{"question": question})
}

// ListUpdates calls list_updates
func (c *Client) ListUpdates(ctx context.Context, limit int) ([]*model.Update, error) {
	text, err := c.callText(ctx, ToolListUpdates, map[string]any{"limit": limit})
	if err != nil {
		return nil, err
	}

	var updates []*model.Update
	if err := json.Unmarshal([]byte(text), &updates); err != nil {
		return nil, goerr.Wrap(err, "failed to decode updates", goerr.V("text", text))
	}
	return updates, nil
}

func (c *Client) callText(ctx context.Context, name string, arguments map[string]any) (string, error) {
	result, err := c.session.CallTool(ctx, &mcp.CallToolParams{
		Name:      name,
		Arguments: arguments,
	})
	if err != nil {
		return "", goerr.Wrap(err, "failed to call tool", goerr.V("tool", name))
	}

	var texts []string
	for _, content := range result.Content {
		if tc, ok := content.(*mcp.TextContent); ok {
			texts = append(texts, tc.Text)
		}
	}
	text := strings.Join(texts, "\n")

	if result.IsError {
		return "", goerr.Wrap(ErrToolFailed, text, goerr.V("tool", name))
	}
	return text, nil
}

// Close closes the session
func (c *Client) Close() error {
	if err := c.session.Close(); err != nil {
		return goerr.Wrap(err, "failed to close session")
	}
	return nil
}
