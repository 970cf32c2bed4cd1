package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/chzyer/readline"
	"github.com/m-mizutani/cygnet/pkg/model"
	"github.com/m-mizutani/cygnet/pkg/usecase/ask"
	"github.com/m-mizutani/cygnet/pkg/usecase/session"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func chatCommand() *cli.Command {
	var (
		cfg    config
		userID string
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "user",
			Aliases:     []string{"u"},
			Usage:       "User ID owning the session",
			Sources:     cli.EnvVars("CYGNET_USER"),
			Destination: &userID,
			Required:    true,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, llmFlags(&cfg)...)
	flags = append(flags, graphFlags(&cfg)...)
	flags = append(flags, storeFlags(&cfg)...)
	flags = append(flags, pipelineFlags(&cfg)...)

	return &cli.Command{
		Name:  "chat",
		Usage: "Interactive Q&A session; the session is archived on exit",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.setupLogger(ctx)

			gemini, err := cfg.newGemini(ctx)
			if err != nil {
				return err
			}

			graph, err := cfg.newGraph(ctx)
			if err != nil {
				return err
			}
			defer graph.Close(ctx)

			sessions, err := cfg.newSessions(ctx)
			if err != nil {
				return err
			}
			defer sessions.Close()

			archiveStore, err := cfg.newArchive()
			if err != nil {
				return err
			}
			defer archiveStore.Close()

			agent, err := cfg.newAgent(ctx, gemini, graph)
			if err != nil {
				return err
			}

			askUC := ask.New(sessions, agent)
			sessionUC := session.New(sessions, archiveStore)

			rl, err := readline.New("cygnet> ")
			if err != nil {
				return goerr.Wrap(err, "failed to initialize readline")
			}
			defer rl.Close()

			fmt.Fprintf(c.Root().Writer, "Chat session started. Type 'exit' to quit.\n")

			var sessionID model.SessionID
			for {
				line, err := rl.Readline()
				if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
					break
				}
				if err != nil {
					return goerr.Wrap(err, "failed to read input")
				}

				if line == "exit" {
					break
				}
				if line == "" {
					continue
				}

				out, err := askUC.Ask(ctx, ask.Input{
					UserID:    model.UserID(userID),
					SessionID: sessionID,
					Question:  line,
				})
				if err != nil {
					return err
				}
				sessionID = out.SessionID

				fmt.Fprintf(c.Root().Writer, "\n%s\n\n", out.Answer)
			}

			if sessionID != "" {
				if err := sessionUC.End(ctx, sessionID); err != nil {
					return err
				}
				fmt.Fprintf(c.Root().Writer, "Session %s ended, archival scheduled.\n", sessionID)
			}

			return nil
		},
	}
}
