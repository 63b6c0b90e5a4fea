package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/m-mizutani/bulletin/pkg/usecase/update"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func addCommand() *cli.Command {
	var (
		cfg         config
		title       string
		description string
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "title",
			Aliases:     []string{"t"},
			Usage:       "Title of the update",
			Destination: &title,
		},
		&cli.StringFlag{
			Name:        "description",
			Aliases:     []string{"m"},
			Usage:       "Body of the update",
			Destination: &description,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, sheetFlags(&cfg)...)

	return &cli.Command{
		Name:  "add",
		Usage: "Post a new update",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
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

			var opts []update.Option
			sheets, err := cfg.newSheets(ctx)
			if err != nil {
				return err
			}
			if sheets != nil {
				opts = append(opts, update.WithSheets(sheets))
			}

			result, err := update.New(repo, opts...).Add(ctx, update.AddInput{
				Title:       title,
				Description: description,
			}, time.Now().In(loc))
			if err != nil {
				return goerr.Wrap(err, "failed to add update")
			}

			w := c.Root().Writer
			fmt.Fprintf(w, "Added %s (%s %s)\n", result.Update.ID, result.Update.Date, result.Update.Time)
			if result.SheetError != nil {
				fmt.Fprintf(w, "Warning: sheet sync failed: %v\n", result.SheetError)
			}

			return nil
		},
	}
}
