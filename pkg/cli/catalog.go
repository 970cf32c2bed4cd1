package cli

import (
	"context"
	"fmt"

	"github.com/m-mizutani/cygnet/pkg/catalog"
	"github.com/m-mizutani/cygnet/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

func catalogCommand() *cli.Command {
	return &cli.Command{
		Name:  "catalog",
		Usage: "Manage the few-shot example catalogue",
		Commands: []*cli.Command{
			catalogEmbedCommand(),
		},
	}
}

func catalogEmbedCommand() *cli.Command {
	var cfg config

	flags := []cli.Flag{}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, llmFlags(&cfg)...)
	flags = append(flags, &cli.StringFlag{
		Name:        "catalog",
		Usage:       "Path to the few-shot example catalogue YAML",
		Sources:     cli.EnvVars("CYGNET_CATALOG"),
		Destination: &cfg.catalogPath,
		Required:    true,
	})

	return &cli.Command{
		Name:  "embed",
		Usage: "Compute and persist embeddings for catalogue examples",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.setupLogger(ctx)

			cat, err := catalog.Load(cfg.catalogPath)
			if err != nil {
				return err
			}

			gemini, err := cfg.newGemini(ctx)
			if err != nil {
				return err
			}

			if err := cat.EnsureEmbeddings(ctx, cfg.newEmbedder(gemini)); err != nil {
				return err
			}

			if err := cat.Save(cfg.catalogPath); err != nil {
				return err
			}

			logging.From(ctx).Info("catalogue embedded", "path", cfg.catalogPath, "examples", cat.Len())
			fmt.Printf("Embedded %d examples in %s\n", cat.Len(), cfg.catalogPath)
			return nil
		},
	}
}
