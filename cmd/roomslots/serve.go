package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Freeeeeet/roomslots/internal/app"
	"github.com/Freeeeeet/roomslots/internal/config"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API, the Telegram bot and the background jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			logger := app.NewLogger(cfg.Environment, cfg.LogFile)
			defer func() { _ = logger.Sync() }()

			logger.Info("Starting roomslots",
				zap.String("environment", cfg.Environment),
				zap.String("store", cfg.StoreDriver),
				zap.String("lock", cfg.LockDriver),
				zap.String("timezone", cfg.Timezone),
				zap.Bool("telegram", cfg.TelegramToken != ""),
				zap.Bool("nats", cfg.NatsURL != ""),
			)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			application, err := app.New(ctx, cfg, logger)
			if err != nil {
				logger.Error("Failed to start", zap.Error(err))
				return err
			}
			defer application.Close()

			return application.Run(ctx)
		},
	}
}
