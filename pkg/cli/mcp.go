package cli

import (
	"context"
	"time"

	"github.com/m-mizutani/bulletin/pkg/service/mcp"
	"github.com/m-mizutani/bulletin/pkg/usecase/ask"
	"github.com/m-mizutani/bulletin/pkg/usecase/update"
	"github.com/urfave/cli/v3"
)

func mcpCommand() *cli.Command {
	var cfg config

	var flags []cli.Flag
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, llmFlags(&cfg)...)

	return &cli.Command{
		Name:  "mcp",
		Usage: "Serve the bulletin tools over MCP on stdio",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			// stdout carries the protocol, so logs always go to stderr
			ctx, err := cfg.configureLogger(ctx, c.Root().ErrWriter)
			if err != nil {
				return err
			}

			loc, err := cfg.location()
			if err != nil {
				return err
			}

			repo, closeRepo, err := cfg.newRepository(ctx)
			if err != nil {
				return err
			}
			defer closeRepo()

			gemini, err := cfg.newGemini(ctx)
			if err != nil {
				return err
			}
			askOpts, err := cfg.askOptions()
			if err != nil {
				return err
			}

			server := mcp.NewServer(
				ask.New(repo, gemini, askOpts...),
				update.New(repo),
				Version,
				mcp.WithLocation(loc),
				mcp.WithClock(func() time.Time { return time.Now().In(loc) }),
			)
			return server.RunStdio(ctx)
		},
	}
}
