package cli

import (
	"context"
	"time"

	"github.com/m-mizutani/cygnet/pkg/usecase/archive"
	"github.com/m-mizutani/cygnet/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

func workerCommand() *cli.Command {
	var (
		cfg        config
		workers    int64
		poll       time.Duration
		staleAfter time.Duration
	)

	flags := []cli.Flag{
		&cli.IntFlag{
			Name:        "workers",
			Usage:       "Number of concurrent archive workers",
			Value:       2,
			Sources:     cli.EnvVars("CYGNET_WORKERS"),
			Destination: &workers,
		},
		&cli.DurationFlag{
			Name:        "poll-interval",
			Usage:       "Idle polling interval",
			Value:       2 * time.Second,
			Sources:     cli.EnvVars("CYGNET_POLL_INTERVAL"),
			Destination: &poll,
		},
		&cli.DurationFlag{
			Name:        "stale-after",
			Usage:       "Reclaim processing jobs untouched for this long",
			Value:       10 * time.Minute,
			Sources:     cli.EnvVars("CYGNET_STALE_AFTER"),
			Destination: &staleAfter,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, llmFlags(&cfg)...)
	flags = append(flags, storeFlags(&cfg)...)

	return &cli.Command{
		Name:  "worker",
		Usage: "Drain the archive queue into long-term session memory",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.setupLogger(ctx)

			gemini, err := cfg.newGemini(ctx)
			if err != nil {
				return err
			}

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

			worker := cfg.newArchiveWorker(gemini, sessions, archiveStore,
				archive.WithPollInterval(poll),
				archive.WithStaleAfter(staleAfter),
			)

			logging.From(ctx).Info("archive worker starting", "workers", workers)
			return archive.RunPool(ctx, worker, int(workers))
		},
	}
}
