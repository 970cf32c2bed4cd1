package cli

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/m-mizutani/cygnet/pkg/server"
	"github.com/m-mizutani/cygnet/pkg/usecase/ask"
	"github.com/m-mizutani/cygnet/pkg/usecase/session"
	"github.com/m-mizutani/cygnet/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func serveCommand() *cli.Command {
	var (
		cfg        config
		addr       string
		withWorker bool
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "addr",
			Usage:       "Listen address",
			Value:       "127.0.0.1:8080",
			Sources:     cli.EnvVars("CYGNET_ADDR"),
			Destination: &addr,
		},
		&cli.BoolFlag{
			Name:        "with-worker",
			Usage:       "Run an embedded archive worker alongside the HTTP server",
			Value:       true,
			Sources:     cli.EnvVars("CYGNET_WITH_WORKER"),
			Destination: &withWorker,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, llmFlags(&cfg)...)
	flags = append(flags, graphFlags(&cfg)...)
	flags = append(flags, storeFlags(&cfg)...)
	flags = append(flags, pipelineFlags(&cfg)...)

	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP interface",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.setupLogger(ctx)
			logger := logging.From(ctx)

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

			srv := server.New(
				ask.New(sessions, agent),
				session.New(sessions, archiveStore),
				logger,
			)

			if withWorker {
				worker := cfg.newArchiveWorker(gemini, sessions, archiveStore)
				go worker.Run(ctx)
			}

			httpSrv := &http.Server{
				Addr:              addr,
				Handler:           srv.Router(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				_ = httpSrv.Shutdown(shutdownCtx)
			}()

			logger.Info("http server listening", "addr", addr, "with_worker", withWorker)
			if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return goerr.Wrap(err, "http server failed")
			}
			return nil
		},
	}
}
