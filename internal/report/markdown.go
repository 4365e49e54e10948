// Package report renders signals, backtests and grid searches as
// Markdown, with an HTML rendering for the web view.
package report

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ternarybob/newsquant/internal/backtest"
	"github.com/ternarybob/newsquant/internal/models"
	"github.com/ternarybob/newsquant/internal/signals"
)

// DailySignals renders the buy, sell and watch candidates for one day
func DailySignals(analysis signals.DayAnalysis, limit int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Signals for %s\n\n", analysis.Date.Format(models.DateLayout))
	fmt.Fprintf(&b, "%d stocks analysed.\n\n", len(analysis.Evaluations))

	writeCandidates(&b, "Buy candidates", analysis.BuyCandidates(limit))
	writeCandidates(&b, "Sell candidates", analysis.SellCandidates(limit))
	writeCandidates(&b, "Watch list", analysis.WatchCandidates(limit))
	return b.String()
}

func writeCandidates(b *strings.Builder, title string, evs []signals.Evaluation) {
	fmt.Fprintf(b, "## %s\n\n", title)
	if len(evs) == 0 {
		b.WriteString("None.\n\n")
		return
	}
	b.WriteString("| Code | News | Sentiment | Overall | Pos/Neg | Price | Volume | Composite | Confidence | Reason |\n")
	b.WriteString("|---|---:|---:|---:|---:|---|---:|---:|---:|---|\n")
	for _, ev := range evs {
		agg := ev.Aggregate
		fmt.Fprintf(b, "| %s | %d | %s | %s | %d/%d | %s | %+.2f | %.3f | %.2f | %s |\n",
			agg.StockCode, agg.NewsCount,
			optional(agg.Sentiment()), optional(agg.AvgOverall),
			agg.PositiveCount, agg.NegativeCount,
			agg.PriceReaction, agg.VolumeSignal, agg.CompositeScore,
			ev.Signal.Confidence, escapeCell(ev.Signal.Reason))
	}
	b.WriteString("\n")
}

// Backtest renders a single-threshold backtest report
func Backtest(r *backtest.Report) string {
	var b strings.Builder
	b.WriteString("# Backtest report\n\n")
	fmt.Fprintf(&b, "- Run: `%s`\n", r.RunID)
	if r.SignalDays > 0 {
		fmt.Fprintf(&b, "- Signal days: %d (%s to %s)\n", r.SignalDays,
			r.From.Format(models.DateLayout), r.To.Format(models.DateLayout))
	} else {
		b.WriteString("- Signal days: 0\n")
	}
	fmt.Fprintf(&b, "- Trading days: %d\n", r.TradingDays)
	fmt.Fprintf(&b, "- Buy gate: sentiment > %.2f, overall > %.2f, news >= %d, positive ratio >= %.2f\n",
		r.Thresholds.Buy.MinSentiment, r.Thresholds.Buy.MinOverall, r.Thresholds.Buy.MinNewsCount, r.Thresholds.Buy.MinPositiveRatio)
	fmt.Fprintf(&b, "- Sell gate: sentiment < %.2f, overall < %.2f, news >= %d, negative ratio >= %.2f\n\n",
		r.Thresholds.Sell.MaxSentiment, r.Thresholds.Sell.MaxOverall, r.Thresholds.Sell.MinNewsCount, r.Thresholds.Sell.MinNegativeRatio)

	writeSide(&b, "Buy signals", r.Buy)
	writeSide(&b, "Sell signals", r.Sell)
	return b.String()
}

func writeSide(b *strings.Builder, title string, side backtest.SideReport) {
	fmt.Fprintf(b, "## %s (%d)\n\n", title, side.Signals)
	b.WriteString("| Hold | Samples | Hit rate | Mean | Median | Min | Max | Benchmark | Excess |\n")
	b.WriteString("|---:|---:|---:|---:|---:|---:|---:|---:|---:|\n")
	for _, s := range side.Horizons {
		if s.Count == 0 {
			fmt.Fprintf(b, "| %dd | 0 | - | - | - | - | - | %s | - |\n", s.HoldingDays, pct(s.BenchmarkReturn))
			continue
		}
		fmt.Fprintf(b, "| %dd | %d | %.1f%% | %s | %s | %s | %s | %s | %s |\n",
			s.HoldingDays, s.Count, s.HitRate*100,
			pct(s.MeanReturn), pct(s.MedianReturn), pct(s.MinReturn), pct(s.MaxReturn),
			pct(s.BenchmarkReturn), pct(s.ExcessReturn))
	}
	b.WriteString("\n")
}

// Optimization renders grid search rankings
func Optimization(o *backtest.OptimizeResult) string {
	var b strings.Builder
	b.WriteString("# Threshold optimization\n\n")
	fmt.Fprintf(&b, "- Run: `%s`\n", o.RunID)
	fmt.Fprintf(&b, "- Signal days: %d\n", o.SignalDays)
	if !o.Complete {
		b.WriteString("- Status: **cancelled**, rankings cover evaluated combinations only\n")
	}
	b.WriteString("\n")

	writeOptimizationSide(&b, "Buy", o.Buy, "sentiment >", "overall >", "positive ratio >=")
	writeOptimizationSide(&b, "Sell", o.Sell, "sentiment <", "overall <", "negative ratio >=")
	return b.String()
}

func writeOptimizationSide(b *strings.Builder, title string, side backtest.SideOptimization, sentLabel, overallLabel, ratioLabel string) {
	fmt.Fprintf(b, "## %s (%d evaluated, %d without samples)\n\n", title, side.Evaluated, side.Skipped)

	b.WriteString("### Average excess across horizons\n\n")
	if len(side.Summary) == 0 {
		b.WriteString("No combination had enough valid horizons.\n\n")
	} else {
		fmt.Fprintf(b, "| Rank | %s | %s | News >= | %s | Horizons | Avg excess |\n", sentLabel, overallLabel, ratioLabel)
		b.WriteString("|---:|---:|---:|---:|---:|---:|---:|\n")
		for i, s := range side.Summary {
			fmt.Fprintf(b, "| %d | %.2f | %.2f | %d | %.2f | %d | %s |\n",
				i+1, s.Params.Sentiment, s.Params.Overall, s.Params.NewsCount, s.Params.Ratio,
				s.ValidHorizons, pct(s.AvgExcess))
		}
		b.WriteString("\n")
	}

	horizons := make([]int, 0, len(side.ByHorizon))
	for h := range side.ByHorizon {
		horizons = append(horizons, h)
	}
	sort.Ints(horizons)
	for _, h := range horizons {
		fmt.Fprintf(b, "### %d-day hold\n\n", h)
		fmt.Fprintf(b, "| Rank | %s | %s | News >= | %s | Samples | Hit rate | Mean | Excess |\n", sentLabel, overallLabel, ratioLabel)
		b.WriteString("|---:|---:|---:|---:|---:|---:|---:|---:|---:|\n")
		for i, r := range side.ByHorizon[h] {
			fmt.Fprintf(b, "| %d | %.2f | %.2f | %d | %.2f | %d | %.1f%% | %s | %s |\n",
				i+1, r.Params.Sentiment, r.Params.Overall, r.Params.NewsCount, r.Params.Ratio,
				r.Stats.Count, r.Stats.HitRate*100, pct(r.Stats.MeanReturn), pct(r.DirectionalExcess))
		}
		b.WriteString("\n")
	}
}

func pct(v float64) string {
	return fmt.Sprintf("%+.2f%%", v*100)
}

func optional(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%+.3f", *v)
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", "\\|")
}
