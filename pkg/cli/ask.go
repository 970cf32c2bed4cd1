package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/briandowns/spinner"
	"github.com/m-mizutani/cygnet/pkg/model"
	"github.com/m-mizutani/cygnet/pkg/usecase/ask"
	"github.com/m-mizutani/cygnet/pkg/usecase/session"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func askCommand() *cli.Command {
	var (
		cfg        config
		userID     string
		sessionID  string
		endSession bool
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
		&cli.StringFlag{
			Name:        "session",
			Aliases:     []string{"s"},
			Usage:       "Session ID to continue (a new session starts when omitted)",
			Sources:     cli.EnvVars("CYGNET_SESSION"),
			Destination: &sessionID,
		},
		&cli.BoolFlag{
			Name:        "end-session",
			Usage:       "End the session after answering, scheduling archival",
			Destination: &endSession,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, llmFlags(&cfg)...)
	flags = append(flags, graphFlags(&cfg)...)
	flags = append(flags, storeFlags(&cfg)...)
	flags = append(flags, pipelineFlags(&cfg)...)

	return &cli.Command{
		Name:      "ask",
		Usage:     "Answer a single question about the inventory graph",
		ArgsUsage: "<question>",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			question := c.Args().First()
			if question == "" {
				return goerr.New("question is required")
			}

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

			agent, err := cfg.newAgent(ctx, gemini, graph)
			if err != nil {
				return err
			}

			askUC := ask.New(sessions, agent)

			sp := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
			sp.Suffix = " translating and executing..."
			sp.Start()

			out, err := askUC.Ask(ctx, ask.Input{
				UserID:    model.UserID(userID),
				SessionID: model.SessionID(sessionID),
				Question:  question,
			})
			sp.Stop()
			if err != nil {
				return err
			}

			fmt.Fprintf(c.Root().Writer, "%s\n", out.Answer)
			if out.Query != "" {
				fmt.Fprintf(c.Root().Writer, "\n(query: %s)\n", out.Query)
			}
			fmt.Fprintf(c.Root().Writer, "(session: %s)\n", out.SessionID)

			if endSession {
				archiveStore, err := cfg.newArchive()
				if err != nil {
					return err
				}
				defer archiveStore.Close()

				if err := session.New(sessions, archiveStore).End(ctx, out.SessionID); err != nil {
					return err
				}
				fmt.Fprintf(c.Root().Writer, "(session ended, archival scheduled)\n")
			}

			return nil
		},
	}
}
