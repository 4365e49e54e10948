package backtest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/newsquant/internal/interfaces"
	"github.com/ternarybob/newsquant/internal/models"
	"github.com/ternarybob/newsquant/internal/signals"
)

// Dataset is the threshold-independent part of a backtest: overlaid
// aggregates and forward returns for every signal day. It is built once
// and shared by every run and grid combination.
type Dataset struct {
	TradingDays []time.Time
	SignalDays  []time.Time
	Codes       []string
	Window      models.LookbackWindow
	days        []dayData
	benchmark   map[int][]float64
}

type dayData struct {
	date       time.Time
	aggregates []models.StockDailyAggregate
	forward    map[string]map[int]float64
}

// Empty reports whether there is nothing to evaluate
func (d *Dataset) Empty() bool {
	return len(d.days) == 0
}

// Aggregates returns the overlaid aggregates of one signal day
func (d *Dataset) Aggregates(day time.Time) []models.StockDailyAggregate {
	for _, dd := range d.days {
		if dd.date.Equal(day) {
			return dd.aggregates
		}
	}
	return nil
}

// SideReport holds the per-horizon statistics for one signal direction
type SideReport struct {
	Kind     models.SignalKind `json:"kind"`
	Signals  int               `json:"signals"`
	Horizons []HorizonStats    `json:"horizons"`
}

// Report is the outcome of a single-threshold backtest
type Report struct {
	RunID       string             `json:"run_id"`
	GeneratedAt time.Time          `json:"generated_at"`
	From        time.Time          `json:"from"`
	To          time.Time          `json:"to"`
	TradingDays int                `json:"trading_days"`
	SignalDays  int                `json:"signal_days"`
	Thresholds  signals.Thresholds `json:"thresholds"`
	Buy         SideReport         `json:"buy"`
	Sell        SideReport         `json:"sell"`
}

// Runner prepares datasets and evaluates thresholds against them
type Runner struct {
	config Config
	engine *signals.Engine
	loc    *time.Location
	loader interfaces.PriceLoader
	logger arbor.ILogger
}

// NewRunner validates both configurations up front
func NewRunner(config Config, engineConfig signals.EngineConfig, loc *time.Location, loader interfaces.PriceLoader, logger arbor.ILogger) (*Runner, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if loader == nil {
		return nil, errors.New("price loader is required")
	}
	engine, err := signals.NewEngine(engineConfig, loc)
	if err != nil {
		return nil, err
	}
	return &Runner{
		config: config,
		engine: engine,
		loc:    engine.Aggregator().Location(),
		loader: loader,
		logger: logger,
	}, nil
}

// Config returns the backtest configuration
func (r *Runner) Config() Config {
	return r.config
}

// Prepare selects signal days, loads prices for the most mentioned
// stocks and precomputes aggregates and forward returns. Trading days
// start at from; articles published earlier only feed the trailing news
// volume. A zero from uses every article. Too few trading days yields an
// empty dataset, not an error.
func (r *Runner) Prepare(ctx context.Context, articles []models.Article, from time.Time) (*Dataset, error) {
	maxHolding := r.config.MaxHolding()
	trading := onOrAfter(TradingDays(articles, r.config.MinDailyNews, r.loc), from)
	ds := &Dataset{
		TradingDays: trading,
		SignalDays:  SignalDays(trading, maxHolding),
		benchmark:   make(map[int][]float64),
	}

	if len(ds.SignalDays) == 0 {
		r.logger.Warn().
			Int("trading_days", len(trading)).
			Int("max_holding", maxHolding).
			Msg("Not enough trading days for a backtest")
		return ds, nil
	}

	counts := r.engine.Aggregator().MentionCounts(articles, ds.SignalDays...)
	ds.Codes = signals.MostMentioned(counts, r.config.MaxStocks)

	lead := 2*(r.engineLookback()+1) + 7
	tail := 2*maxHolding + 7
	ds.Window = models.LookbackWindow{
		From: ds.SignalDays[0].AddDate(0, 0, -lead),
		To:   trading[len(trading)-1].AddDate(0, 0, tail),
	}

	r.logger.Info().
		Int("trading_days", len(trading)).
		Int("signal_days", len(ds.SignalDays)).
		Int("stocks", len(ds.Codes)).
		Msg("Loading prices for backtest")

	lookup, err := r.loader.LoadPrices(ctx, ds.Codes, ds.Window)
	if err != nil {
		return nil, fmt.Errorf("failed to load prices: %w", err)
	}

	history := r.engine.NewVolumeHistory(articles)
	horizons := r.config.horizons()
	for _, day := range ds.SignalDays {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		analysis := r.engine.AnalyzeDay(day, articles, history, lookup)
		dd := dayData{
			date:       analysis.Date,
			aggregates: make([]models.StockDailyAggregate, 0, len(analysis.Evaluations)),
			forward:    make(map[string]map[int]float64),
		}
		for _, ev := range analysis.Evaluations {
			dd.aggregates = append(dd.aggregates, ev.Aggregate)
			bars, ok := lookup.Bars(ev.Aggregate.StockCode)
			if !ok {
				continue
			}
			fr := ForwardReturns(bars, day, horizons, r.loc)
			if fr == nil {
				continue
			}
			dd.forward[ev.Aggregate.StockCode] = fr
			for h, ret := range fr {
				ds.benchmark[h] = append(ds.benchmark[h], ret)
			}
		}
		ds.days = append(ds.days, dd)
	}

	return ds, nil
}

func onOrAfter(days []time.Time, from time.Time) []time.Time {
	if from.IsZero() {
		return days
	}
	i := sort.Search(len(days), func(i int) bool { return !days[i].Before(from) })
	return days[i:]
}

func (r *Runner) engineLookback() int {
	return r.engine.Config().PriceReaction.LookbackDays
}

// Run evaluates one threshold set over a prepared dataset
func (r *Runner) Run(ctx context.Context, ds *Dataset, thresholds signals.Thresholds) (*Report, error) {
	if err := thresholds.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	report := &Report{
		RunID:       uuid.NewString(),
		GeneratedAt: time.Now(),
		TradingDays: len(ds.TradingDays),
		SignalDays:  len(ds.SignalDays),
		Thresholds:  thresholds,
	}
	if len(ds.SignalDays) > 0 {
		report.From = ds.SignalDays[0]
		report.To = ds.SignalDays[len(ds.SignalDays)-1]
	}

	report.Buy = r.evaluate(ds, models.SignalBuy, thresholds.Buy.Matches, r.config.TopN)
	report.Sell = r.evaluate(ds, models.SignalSell, thresholds.Sell.Matches, r.config.TopN)

	r.logger.Info().
		Str("run_id", report.RunID).
		Int("buy_signals", report.Buy.Signals).
		Int("sell_signals", report.Sell.Signals).
		Msg("Backtest complete")
	return report, nil
}

// evaluate samples forward returns of the top-N matching candidates per day
// evaluate samples the forward returns of matching aggregates, keeping at
// most limit per day. A limit of zero keeps every match.
func (r *Runner) evaluate(ds *Dataset, kind models.SignalKind, match func(models.StockDailyAggregate) bool, limit int) SideReport {
	samples := make(map[int][]float64)
	side := SideReport{Kind: kind}

	for _, day := range ds.days {
		for _, agg := range candidates(day.aggregates, kind, match, limit) {
			fr, ok := day.forward[agg.StockCode]
			if !ok {
				continue
			}
			side.Signals++
			for h, ret := range fr {
				samples[h] = append(samples[h], ret)
			}
		}
	}

	for _, h := range r.config.horizons() {
		side.Horizons = append(side.Horizons, computeStats(kind, h, samples[h], ds.benchmark[h]))
	}
	return side
}

// candidates ranks matching aggregates by composite score, best first
// for buys and worst first for sells, and keeps the top limit
func candidates(aggs []models.StockDailyAggregate, kind models.SignalKind, match func(models.StockDailyAggregate) bool, limit int) []models.StockDailyAggregate {
	var out []models.StockDailyAggregate
	for _, agg := range aggs {
		if match(agg) {
			out = append(out, agg)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if kind == models.SignalSell {
			return out[i].CompositeScore < out[j].CompositeScore
		}
		return out[i].CompositeScore > out[j].CompositeScore
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
