package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/m-mizutani/bulletin/pkg/server"
	"github.com/m-mizutani/bulletin/pkg/service/mcp"
	"github.com/m-mizutani/bulletin/pkg/usecase/ask"
	"github.com/m-mizutani/bulletin/pkg/usecase/update"
	"github.com/m-mizutani/bulletin/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

func serveCommand() *cli.Command {
	var (
		cfg  config
		addr string
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "addr",
			Aliases:     []string{"a"},
			Usage:       "Listen address",
			Value:       "127.0.0.1:8080",
			Sources:     cli.EnvVars("BULLETIN_ADDR"),
			Destination: &addr,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, llmFlags(&cfg)...)
	flags = append(flags, sheetFlags(&cfg)...)

	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the HTTP API and the MCP endpoint",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx, err := cfg.configureLogger(ctx, c.Root().ErrWriter)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			h, cleanup, err := cfg.newHandler(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			logging.From(ctx).Info("starting server", "addr", addr, "store", cfg.store)
			return server.ListenAndServe(ctx, addr, h)
		},
	}
}

// newHandler wires the HTTP handler. Missing store or generator settings do not
// stop the server; the affected endpoints answer with a configuration error.
func (cfg *config) newHandler(ctx context.Context) (*server.Server, func(), error) {
	logger := logging.From(ctx)

	loc, err := cfg.location()
	if err != nil {
		return nil, nil, err
	}

	repo, closeRepo, err := cfg.newRepository(ctx)
	if err != nil {
		if !errors.Is(err, ask.ErrNotConfigured) {
			return nil, nil, err
		}
		logger.Warn("update store is not configured", "error", err)
		return server.New(nil, nil, server.WithLocation(loc)), closeRepo, nil
	}

	gemini, err := cfg.newGemini(ctx)
	if err != nil && !errors.Is(err, ask.ErrNotConfigured) {
		closeRepo()
		return nil, nil, err
	}
	if err != nil {
		logger.Warn("generator is not configured", "error", err)
	}

	askOpts, err := cfg.askOptions()
	if err != nil {
		closeRepo()
		return nil, nil, err
	}

	sheets, err := cfg.newSheets(ctx)
	if err != nil {
		closeRepo()
		return nil, nil, err
	}
	var updateOpts []update.Option
	if sheets != nil {
		updateOpts = append(updateOpts, update.WithSheets(sheets))
	}

	asker := ask.New(repo, gemini, askOpts...)
	updates := update.New(repo, updateOpts...)
	clock := func() time.Time { return time.Now().In(loc) }

	mcpServer := mcp.NewServer(asker, updates, Version, mcp.WithLocation(loc), mcp.WithClock(clock))

	srv := server.New(asker, updates,
		server.WithLocation(loc),
		server.WithClock(clock),
		server.WithMCPHandler(mcpServer.Handler()),
	)
	return srv, closeRepo, nil
}
