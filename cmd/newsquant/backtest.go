package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ternarybob/newsquant/internal/app"
	"github.com/ternarybob/newsquant/internal/models"
	"github.com/ternarybob/newsquant/internal/report"
	"github.com/ternarybob/newsquant/internal/signals"
)

const defaultBacktestDays = 90

var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Backtest signal thresholds over a date range",
	Long: `Replays daily signals between --from and --to and measures forward returns
against the benchmark index for each configured holding period.`,
	RunE: runBacktest,
}

var optimizeCmd = &cobra.Command{
	Use:   "optimize",
	Short: "Grid-search buy and sell thresholds",
	Long: `Evaluates every buy and sell threshold combination over [--from, --to) and ranks
them by average excess return. Interrupting (or --timeout) reports the
combinations evaluated so far.`,
	RunE: runOptimize,
}

var (
	rangeFrom      string
	rangeTo        string
	rangeFormat    string
	rangeOut       string
	backtestPreset string
	optimizeLimit  time.Duration
)

func init() {
	for _, cmd := range []*cobra.Command{backtestCmd, optimizeCmd} {
		cmd.Flags().StringVar(&rangeFrom, "from", "", "First signal date YYYY-MM-DD (default 90 days before --to)")
		cmd.Flags().StringVar(&rangeTo, "to", "", "End date YYYY-MM-DD, exclusive (default today)")
		cmd.Flags().StringVar(&rangeFormat, "format", "markdown", "Output format: json, markdown or html")
		cmd.Flags().StringVarP(&rangeOut, "out", "o", "", "Write to file instead of stdout")
	}
	backtestCmd.Flags().StringVar(&backtestPreset, "preset", "", "Threshold preset to test (baseline or optimized, default signals.threshold_preset)")
	optimizeCmd.Flags().DurationVar(&optimizeLimit, "timeout", 0, "Stop the search after this long and report partial results")
}

func dateRange(application *app.App) (time.Time, time.Time, error) {
	to, err := parseDay(rangeTo, application.Location, time.Now())
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	from, err := parseDay(rangeFrom, application.Location, to.AddDate(0, 0, -defaultBacktestDays))
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return from, to, nil
}

func rangeTitle(prefix string, from, to time.Time) string {
	return prefix + " " + from.Format(models.DateLayout) + " to " + to.Format(models.DateLayout)
}

func runBacktest(cmd *cobra.Command, args []string) error {
	application, err := newApp()
	if err != nil {
		return err
	}
	defer application.Close()

	from, to, err := dateRange(application)
	if err != nil {
		return err
	}

	var thresholds *signals.Thresholds
	if backtestPreset != "" {
		preset, err := signals.ThresholdPreset(backtestPreset)
		if err != nil {
			return err
		}
		thresholds = &preset
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := application.AnalysisService.Backtest(ctx, from, to, thresholds)
	if err != nil {
		return err
	}

	out, err := render(rangeFormat, rangeTitle("Backtest", from, to), result, func() string {
		return report.Backtest(result)
	})
	if err != nil {
		return err
	}
	return writeOutput(rangeOut, out)
}

func runOptimize(cmd *cobra.Command, args []string) error {
	application, err := newApp()
	if err != nil {
		return err
	}
	defer application.Close()

	from, to, err := dateRange(application)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if optimizeLimit > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, optimizeLimit)
		defer cancel()
	}

	result, err := application.AnalysisService.Optimize(ctx, from, to)
	if err != nil {
		partial := result != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded))
		if !partial {
			return err
		}
		logger.Warn().Err(err).Str("run_id", result.RunID).Msg("Optimization stopped early, reporting partial results")
	}

	out, err := render(rangeFormat, rangeTitle("Optimization", from, to), result, func() string {
		return report.Optimization(result)
	})
	if err != nil {
		return err
	}
	return writeOutput(rangeOut, out)
}
