package cli

import (
	"context"
	"io"
	"os"

	"github.com/urfave/cli/v3"
)

// Version is reported by the MCP server and the version flag
const Version = "0.1.0"

type Error struct {
	Code    int
	Message string
}

func Run(ctx context.Context, argv []string) *Error {
	if err := run(ctx, argv, os.Stdout, os.Stderr); err != nil {
		return &Error{
			Code:    1,
			Message: err.Error(),
		}
	}

	return nil
}

func run(ctx context.Context, argv []string, stdout, stderr io.Writer) error {
	cmd := &cli.Command{
		Name:      "bulletin",
		Usage:     "Post business updates and ask questions about them",
		Version:   Version,
		Writer:    stdout,
		ErrWriter: stderr,
		Commands: []*cli.Command{
			serveCommand(),
			askCommand(),
			addCommand(),
			listCommand(),
			mcpCommand(),
		},
	}

	return cmd.Run(ctx, argv)
}
