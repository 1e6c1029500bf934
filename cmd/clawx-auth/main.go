package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/BIGWOO/clawx-auth/cmd/clawx-auth/commands"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	// Interrupting cancels a running login and closes its browser window
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := commands.Execute(ctx, os.Args, version, commit); err != nil {
		slog.ErrorContext(ctx, "clawx-auth failed", "error", err)
		os.Exit(1)
	}
}
