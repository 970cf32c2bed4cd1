package cli

import (
	"context"

	"github.com/urfave/cli/v3"
)

type Error struct {
	Code    int
	Message string
}

func Run(ctx context.Context, argv []string) *Error {
	cmd := &cli.Command{
		Name:  "cygnet",
		Usage: "Natural-language Q&A over a network-security inventory graph",
		Commands: []*cli.Command{
			askCommand(),
			chatCommand(),
			serveCommand(),
			workerCommand(),
			catalogCommand(),
		},
	}

	if err := cmd.Run(ctx, argv); err != nil {
		return &Error{
			Code:    1,
			Message: err.Error(),
		}
	}

	return nil
}
