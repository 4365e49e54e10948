package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ternarybob/newsquant/internal/models"
	"github.com/ternarybob/newsquant/internal/report"
)

var signalsCmd = &cobra.Command{
	Use:   "signals [CODE]",
	Short: "Generate signals for one day",
	Long: `Generates buy, sell and watch signals for every stock mentioned on --date.
With a stock code, prints that stock's evaluation as JSON.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSignals,
}

var (
	signalsDate   string
	signalsFormat string
	signalsLimit  int
	signalsOut    string
)

func init() {
	signalsCmd.Flags().StringVar(&signalsDate, "date", "", "Signal date YYYY-MM-DD (default today in the market timezone)")
	signalsCmd.Flags().StringVar(&signalsFormat, "format", "markdown", "Output format: json, markdown or html")
	signalsCmd.Flags().IntVar(&signalsLimit, "limit", 0, "Candidates per list (default signals.candidate_limit)")
	signalsCmd.Flags().StringVarP(&signalsOut, "out", "o", "", "Write to file instead of stdout")
}

func runSignals(cmd *cobra.Command, args []string) error {
	application, err := newApp()
	if err != nil {
		return err
	}
	defer application.Close()

	date, err := parseDay(signalsDate, application.Location, time.Now())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	service := application.AnalysisService
	day := date.Format(models.DateLayout)

	if len(args) == 1 {
		ev, found, err := service.StockSignal(ctx, args[0], date)
		if err != nil {
			return err
		}
		if !found {
			logger.Warn().Str("code", args[0]).Str("date", day).Msg("Stock not mentioned on this date")
		}
		out, err := render("json", "", ev, nil)
		if err != nil {
			return err
		}
		return writeOutput(signalsOut, out)
	}

	analysis, err := service.DailySignals(ctx, date)
	if err != nil {
		return err
	}

	limit := signalsLimit
	if limit <= 0 {
		limit = service.CandidateLimit()
	}

	out, err := render(signalsFormat, "Signals "+day, analysis, func() string {
		return report.DailySignals(analysis, limit)
	})
	if err != nil {
		return err
	}
	return writeOutput(signalsOut, out)
}
