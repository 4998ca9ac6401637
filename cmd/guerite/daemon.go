package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rcarmo/guerite/internal/app"
)

func runDaemon(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return app.Run(ctx)
}
