package commands

import (
	"context"
	"log/slog"

	"github.com/urfave/cli/v3"

	"github.com/BIGWOO/clawx-auth/internal/browser"
	"github.com/BIGWOO/clawx-auth/internal/guide"
)

// guideCommand returns the 'guide' subcommand with its channel guides.
func guideCommand() *cli.Command {
	return &cli.Command{
		Name:  "guide",
		Usage: "Show setup guides for messaging channels",
		Commands: []*cli.Command{
			{
				Name:  "telegram",
				Usage: "How to create a Telegram bot and get its token",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "open",
						Usage: "open BotFather in the browser",
					},
				},
				Action: guideTelegramAction,
			},
		},
	}
}

func guideTelegramAction(ctx context.Context, cmd *cli.Command) error {
	if err := guide.RenderTelegram(stdout(cmd)); err != nil {
		return err
	}

	if cmd.Bool("open") {
		if err := browser.NewOpener().OpenURL(guide.BotFatherURL); err != nil {
			slog.WarnContext(ctx, "failed to open BotFather", "error", err)
		}
	}
	return nil
}
