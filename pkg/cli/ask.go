package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/chzyer/readline"
	"github.com/m-mizutani/bulletin/pkg/service/mcp"
	"github.com/m-mizutani/bulletin/pkg/usecase/ask"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

// answerFunc answers one question with text ready to print
type answerFunc func(ctx context.Context, question string) (string, error)

func askCommand() *cli.Command {
	var (
		cfg       config
		question  string
		serverURL string
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "question",
			Aliases:     []string{"q"},
			Usage:       "Question to ask. Starts an interactive prompt when omitted",
			Destination: &question,
		},
		&cli.StringFlag{
			Name:        "server",
			Usage:       "URL of a remote bulletin MCP endpoint, e.g. http://localhost:8080/mcp",
			Sources:     cli.EnvVars("BULLETIN_SERVER"),
			Destination: &serverURL,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, llmFlags(&cfg)...)

	return &cli.Command{
		Name:  "ask",
		Usage: "Ask a question about posted updates",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx, err := cfg.configureLogger(ctx, c.Root().ErrWriter)
			if err != nil {
				return err
			}

			if question == "" && c.Args().Len() > 0 {
				question = strings.Join(c.Args().Slice(), " ")
			}

			var answer answerFunc
			if serverURL != "" {
				client, err := mcp.Connect(ctx, mcp.ServerConfig{Transport: "http", URL: serverURL})
				if err != nil {
					return goerr.Wrap(err, "failed to connect to bulletin server", goerr.V("url", serverURL))
				}
				defer func() { _ = client.Close() }()
				answer = client.Ask
			} else {
				fn, cleanup, err := cfg.newLocalAnswer(ctx)
				if err != nil {
					return err
				}
				defer cleanup()
				answer = fn
			}

			if question != "" {
				text, err := answer(ctx, question)
				if err != nil {
					return err
				}
				fmt.Fprintln(c.Root().Writer, text)
				return nil
			}

			return runPrompt(ctx, answer, c.Root().Writer, c.Root().ErrWriter)
		},
	}
}

func (cfg *config) newLocalAnswer(ctx context.Context) (answerFunc, func(), error) {
	loc, err := cfg.location()
	if err != nil {
		return nil, nil, err
	}

	repo, closeRepo, err := cfg.newRepository(ctx)
	if err != nil {
		return nil, nil, err
	}

	gemini, err := cfg.newGemini(ctx)
	if err != nil {
		closeRepo()
		return nil, nil, err
	}

	opts, err := cfg.askOptions()
	if err != nil {
		closeRepo()
		return nil, nil, err
	}

	uc := ask.New(repo, gemini, opts...)
	fn := func(ctx context.Context, question string) (string, error) {
		answer, err := uc.Answer(ctx, question, time.Now().In(loc))
		if err != nil {
			return "", err
		}
		return answer.Text, nil
	}
	return fn, closeRepo, nil
}

// runPrompt reads questions line by line until EOF, Ctrl-C on an empty line,
// or "exit"
func runPrompt(ctx context.Context, answer answerFunc, stdout, stderr io.Writer) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		Stdout:          stdout,
		Stderr:          stderr,
	})
	if err != nil {
		return goerr.Wrap(err, "failed to start prompt")
	}
	defer func() { _ = rl.Close() }()

	fmt.Fprintln(stdout, "Ask about posted updates. Type 'exit' to quit.")

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			if line == "" {
				return nil
			}
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return goerr.Wrap(err, "failed to read input")
		}

		line = strings.TrimSpace(line)
		switch line {
		case "":
			continue
		case "exit", "quit":
			return nil
		}

		sp := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(stderr))
		sp.Suffix = " searching updates..."
		sp.Start()
		text, err := answer(ctx, line)
		sp.Stop()

		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			continue
		}
		fmt.Fprintf(stdout, "%s\n\n", text)
	}
}
