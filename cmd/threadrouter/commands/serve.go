package commands

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jholhewres/threadrouter/pkg/threadrouter/service"
)

// shutdownTimeout bounds the graceful stop after a signal.
const shutdownTimeout = 10 * time.Second

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the Discord bot and the HTTP gateway",
		Long: `Connects to Discord, serves the lifecycle webhooks and configuration API,
and offers category menus until SIGINT or SIGTERM.`,
		RunE: runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	logger := newLogger(cmd, cfg, cmd.OutOrStdout())

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	svc, err := service.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	if err := svc.Start(ctx); err != nil {
		_ = svc.Stop(context.Background())
		return err
	}

	logger.Info("threadrouter running, press Ctrl+C to stop")
	<-ctx.Done()
	logger.Info("shutdown signal received, stopping...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- svc.Stop(shutdownCtx) }()

	select {
	case err := <-done:
		if err != nil {
			logger.Warn("shutdown finished with errors", "error", err)
			return nil
		}
		logger.Info("shutdown complete")
	case <-shutdownCtx.Done():
		logger.Warn("shutdown timed out, forcing exit", "timeout", shutdownTimeout)
	}
	return nil
}
