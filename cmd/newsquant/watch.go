package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ternarybob/newsquant/internal/common"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Generate daily signals on the configured schedule",
	Long: `Runs daily signal generation on schedule.cron (market timezone) until interrupted.
Reports are written to schedule.report when set.`,
	RunE: runWatch,
}

var watchNow bool

func init() {
	watchCmd.Flags().BoolVar(&watchNow, "now", false, "Run once immediately before waiting for the schedule")
}

func runWatch(cmd *cobra.Command, args []string) error {
	common.PrintBanner(common.GetFullVersion())

	application, err := newApp()
	if err != nil {
		return err
	}
	defer application.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if watchNow {
		if _, err := application.Scheduler.RunOnce(ctx); err != nil {
			logger.Error().Err(err).Msg("Initial signal run failed")
		}
	}

	if err := application.Scheduler.Start(config.Schedule.Cron); err != nil {
		return err
	}

	<-ctx.Done()
	logger.Info().Msg("Interrupt signal received")

	stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return application.Scheduler.Stop(stopCtx)
}
