package cli

import (
	"context"
	"fmt"

	"github.com/m-mizutani/bulletin/pkg/usecase/update"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func listCommand() *cli.Command {
	var (
		cfg   config
		limit int64
	)

	flags := []cli.Flag{
		&cli.IntFlag{
			Name:        "limit",
			Aliases:     []string{"n"},
			Usage:       "Maximum number of updates to list",
			Value:       update.DefaultListLimit,
			Sources:     cli.EnvVars("BULLETIN_LIST_LIMIT"),
			Destination: &limit,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)

	return &cli.Command{
		Name:  "list",
		Usage: "List recent updates, newest first",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx, err := cfg.configureLogger(ctx, c.Root().ErrWriter)
			if err != nil {
				return err
			}

			repo, closeRepo, err := cfg.newRepository(ctx)
			if err != nil {
				return err
			}
			defer closeRepo()

			updates, err := update.New(repo).List(ctx, int(limit))
			if err != nil {
				return goerr.Wrap(err, "failed to list updates")
			}

			for _, u := range updates {
				when := u.Date
				if u.Time != "" {
					when += " " + u.Time
				}
				fmt.Fprintf(c.Root().Writer, "%s\t%s\t%s\n", when, u.Title, u.ID)
			}

			return nil
		},
	}
}
