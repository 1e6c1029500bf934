package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/urfave/cli/v3"

	"github.com/BIGWOO/clawx-auth/internal/app"
)

// serveCommand returns the 'serve' subcommand running the local control API.
func serveCommand(st *state) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the local login API for the desktop app",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Usage: "listen address (overrides server.addr)",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return serveAction(ctx, cmd, st.cfg)
		},
	}
}

func serveAction(ctx context.Context, cmd *cli.Command, cfg *app.Config) error {
	if cmd.IsSet("addr") {
		cfg.Server.Addr = cmd.String("addr")
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	auth, err := newAuthenticator(cfg, true)
	if err != nil {
		return fmt.Errorf("failed to create token store: %w", err)
	}

	application, err := app.New(cfg, auth)
	if err != nil {
		return fmt.Errorf("failed to create app: %w", err)
	}

	slog.InfoContext(ctx, "starting", "addr", cfg.Server.Addr, "storage", cfg.Auth.Storage)

	if err := application.Start(ctx); err != nil {
		return fmt.Errorf("app failed to start: %w", err)
	}

	slog.InfoContext(ctx, "stopped gracefully")
	return nil
}
