package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ternarybob/newsquant/internal/common"
	"github.com/ternarybob/newsquant/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long:  `Serves daily signals, per-stock signals, candidate lists, backtests and rendered reports over HTTP.`,
	RunE:  runServe,
}

var serveWatch bool

func init() {
	serveCmd.Flags().BoolVar(&serveWatch, "watch", false, "Also run the daily signal schedule (schedule.cron)")
}

func runServe(cmd *cobra.Command, args []string) error {
	common.PrintBanner(common.GetFullVersion())

	application, err := newApp()
	if err != nil {
		return err
	}
	defer application.Close()

	srv := server.New(application)

	serverErr := make(chan error, 1)
	common.SafeGo(logger, "httpServer", func() {
		serverErr <- srv.Start()
	})

	if serveWatch {
		if err := application.Scheduler.Start(config.Schedule.Cron); err != nil {
			return err
		}
	}

	logger.Info().
		Str("address", srv.Addr()).
		Bool("watch", serveWatch).
		Msg("Server ready - Press Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigChan:
		logger.Info().Msg("Interrupt signal received")
	case err := <-serverErr:
		if err != nil {
			return err
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := application.Scheduler.Stop(ctx); err != nil {
		logger.Warn().Err(err).Msg("Scheduler did not stop cleanly")
	}
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("Server shutdown failed")
	}

	logger.Info().Msg("Server stopped")
	return nil
}
