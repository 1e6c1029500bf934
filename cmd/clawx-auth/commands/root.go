package commands

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/BIGWOO/clawx-auth/internal/app"
	"github.com/BIGWOO/clawx-auth/internal/observability"
)

// state carries what the root command prepares for its subcommands.
type state struct {
	cfg          *app.Config
	shutdownLogs func(context.Context) error
	environ      func() []string
}

// Execute runs the root command with the given context and arguments.
func Execute(ctx context.Context, args []string, version, commit string) error {
	return newRootCommand(version, commit, os.Environ).Run(ctx, args)
}

func newRootCommand(version, commit string, environ func() []string) *cli.Command {
	st := &state{environ: environ}

	return &cli.Command{
		Name:    "clawx-auth",
		Usage:   "Acquire and store AI provider credentials",
		Version: fmt.Sprintf("%s (%s)", version, commit),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Usage: "path to a TOML config file",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "log level (debug|info|warn|error)",
			},
			&cli.StringFlag{
				Name:  "log-format",
				Usage: "log format (text|json|otel)",
			},
		},
		Before: st.before,
		After:  st.after,
		Commands: []*cli.Command{
			loginCommand(st),
			logoutCommand(st),
			statusCommand(st),
			serveCommand(st),
			guideCommand(),
		},
	}
}

// before loads configuration and sets up logging for every subcommand.
func (st *state) before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	cfg, err := loadConfig(cmd.String("config"), cmd, st.environ)
	if err != nil {
		return ctx, fmt.Errorf("failed to load config: %w", err)
	}
	st.cfg = cfg

	// Set up observability before running any flow
	shutdown, err := observability.Instrument(ctx, observability.Options{
		Level:        cfg.Log.SlogLevel(),
		Format:       cfg.Log.Format,
		OTLPEndpoint: cfg.Log.OTLP.Endpoint,
		OTLPProtocol: cfg.Log.OTLP.Protocol,
		Writer:       cmd.Root().ErrWriter,
	})
	if err != nil {
		return ctx, fmt.Errorf("failed to set up observability layer: %w", err)
	}
	st.shutdownLogs = shutdown

	return ctx, nil
}

func (st *state) after(ctx context.Context, _ *cli.Command) error {
	if st.shutdownLogs == nil {
		return nil
	}
	return st.shutdownLogs(context.WithoutCancel(ctx))
}

// stdout returns where command output is written.
func stdout(cmd *cli.Command) io.Writer {
	if w := cmd.Root().Writer; w != nil {
		return w
	}
	return os.Stdout
}
