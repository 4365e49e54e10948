package signals

import (
	"fmt"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/ternarybob/newsquant/internal/interfaces"
	"github.com/ternarybob/newsquant/internal/models"
)

// EngineConfig wires every stage of daily signal generation
type EngineConfig struct {
	Aggregator    AggregatorConfig    `json:"aggregator" toml:"aggregator" yaml:"aggregator"`
	PriceReaction PriceReactionConfig `json:"price_reaction" toml:"price_reaction" yaml:"price_reaction"`
	Volume        VolumeConfig        `json:"volume" toml:"volume" yaml:"volume"`
	Thresholds    Thresholds          `json:"thresholds" toml:"thresholds" yaml:"thresholds"`
	PriceOverlay  bool                `json:"price_overlay" toml:"price_overlay" yaml:"price_overlay"`
	VolumeOverlay bool                `json:"volume_overlay" toml:"volume_overlay" yaml:"volume_overlay"`
}

// DefaultEngineConfig returns the default pipeline configuration
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		Aggregator:    DefaultAggregatorConfig(),
		PriceReaction: DefaultPriceReactionConfig(),
		Volume:        DefaultVolumeConfig(),
		Thresholds:    OptimizedThresholds(),
		PriceOverlay:  true,
		VolumeOverlay: true,
	}
}

// Evaluation pairs an aggregate with its classification
type Evaluation struct {
	Aggregate models.StockDailyAggregate `json:"aggregate"`
	Signal    models.Signal              `json:"signal"`
}

// DayAnalysis holds every evaluation for one calendar day
type DayAnalysis struct {
	Date        time.Time    `json:"date"`
	Evaluations []Evaluation `json:"evaluations"`
}

// Engine chains aggregation, overlays and classification
type Engine struct {
	config     EngineConfig
	aggregator *DailyAggregator
	reaction   *PriceReactionAdjuster
	volume     *VolumeAnomalyDetector
	classifier *Classifier
}

// NewEngine validates the configuration and builds the pipeline.
// Calendar days are evaluated in loc.
func NewEngine(config EngineConfig, loc *time.Location) (*Engine, error) {
	validate := validator.New()
	if err := validate.Struct(config.Aggregator); err != nil {
		return nil, fmt.Errorf("invalid aggregator config: %w", err)
	}
	if err := validate.Struct(config.PriceReaction); err != nil {
		return nil, fmt.Errorf("invalid price reaction config: %w", err)
	}
	if err := validate.Struct(config.Volume); err != nil {
		return nil, fmt.Errorf("invalid volume config: %w", err)
	}

	aggregator, err := NewDailyAggregator(config.Aggregator, loc)
	if err != nil {
		return nil, err
	}
	classifier, err := NewClassifier(config.Thresholds)
	if err != nil {
		return nil, err
	}

	return &Engine{
		config:     config,
		aggregator: aggregator,
		reaction:   NewPriceReactionAdjuster(config.PriceReaction, aggregator.Location()),
		volume:     NewVolumeAnomalyDetector(config.Volume),
		classifier: classifier,
	}, nil
}

// Config returns the engine configuration
func (e *Engine) Config() EngineConfig {
	return e.config
}

// Aggregator exposes the engine's aggregator
func (e *Engine) Aggregator() *DailyAggregator {
	return e.aggregator
}

// Classifier exposes the engine's classifier
func (e *Engine) Classifier() *Classifier {
	return e.classifier
}

// NewVolumeHistory builds a history using the engine's location and code filter
func (e *Engine) NewVolumeHistory(articles []models.Article) *VolumeHistory {
	return NewVolumeHistory(articles, e.aggregator.Location(), e.aggregator.ValidCode)
}

// Overlay applies the price and volume overlays to an aggregate and
// recomputes its composite score. A nil prices or history skips that overlay.
func (e *Engine) Overlay(agg models.StockDailyAggregate, history *VolumeHistory, prices interfaces.PriceLookup) models.StockDailyAggregate {
	if e.config.PriceOverlay && prices != nil && agg.AvgSentiment != nil {
		if bars, ok := prices.Bars(agg.StockCode); ok {
			adjusted, reaction := e.reaction.Adjust(*agg.AvgSentiment, bars, agg.Date)
			agg.AdjustedSentiment = models.Float(adjusted)
			agg.PriceReaction = reaction
		} else {
			agg.PriceReaction = models.PriceReactionUnavailable
		}
	}
	if e.config.VolumeOverlay && history != nil {
		agg.VolumeSignal = e.volume.Detect(history, agg.StockCode, agg.Date, agg.NewsCount)
	}
	e.aggregator.Recompose(&agg)
	return agg
}

// AnalyzeStock evaluates one stock on one day
func (e *Engine) AnalyzeStock(code string, date time.Time, articles []models.Article, history *VolumeHistory, prices interfaces.PriceLookup) Evaluation {
	agg, ok := e.aggregator.Aggregate(code, date, articles)
	if !ok {
		empty := models.StockDailyAggregate{StockCode: code, Date: models.CalendarDay(date, e.aggregator.Location())}
		return Evaluation{Aggregate: empty, Signal: e.classifier.Classify(empty)}
	}
	agg = e.Overlay(agg, history, prices)
	return Evaluation{Aggregate: agg, Signal: e.classifier.Classify(agg)}
}

// AnalyzeDay evaluates every stock mentioned on date
func (e *Engine) AnalyzeDay(date time.Time, articles []models.Article, history *VolumeHistory, prices interfaces.PriceLookup) DayAnalysis {
	aggregates := e.aggregator.AggregateDay(date, articles)
	analysis := DayAnalysis{
		Date:        models.CalendarDay(date, e.aggregator.Location()),
		Evaluations: make([]Evaluation, 0, len(aggregates)),
	}
	for _, agg := range aggregates {
		agg = e.Overlay(agg, history, prices)
		analysis.Evaluations = append(analysis.Evaluations, Evaluation{
			Aggregate: agg,
			Signal:    e.classifier.Classify(agg),
		})
	}
	return analysis
}

// ByKind returns evaluations of one kind in stock-code order
func (d DayAnalysis) ByKind(kind models.SignalKind) []Evaluation {
	var out []Evaluation
	for _, ev := range d.Evaluations {
		if ev.Signal.Kind == kind {
			out = append(out, ev)
		}
	}
	return out
}

// BuyCandidates returns buy evaluations by composite score, highest first
func (d DayAnalysis) BuyCandidates(limit int) []Evaluation {
	out := d.ByKind(models.SignalBuy)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Aggregate.CompositeScore > out[j].Aggregate.CompositeScore
	})
	return truncate(out, limit)
}

// SellCandidates returns sell evaluations by composite score, lowest first
func (d DayAnalysis) SellCandidates(limit int) []Evaluation {
	out := d.ByKind(models.SignalSell)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Aggregate.CompositeScore < out[j].Aggregate.CompositeScore
	})
	return truncate(out, limit)
}

// WatchCandidates returns watch evaluations by news count, highest first
func (d DayAnalysis) WatchCandidates(limit int) []Evaluation {
	out := d.ByKind(models.SignalWatch)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Aggregate.NewsCount > out[j].Aggregate.NewsCount
	})
	return truncate(out, limit)
}

// Lookup finds the evaluation for a stock code
func (d DayAnalysis) Lookup(code string) (Evaluation, bool) {
	for _, ev := range d.Evaluations {
		if ev.Aggregate.StockCode == code {
			return ev, true
		}
	}
	return Evaluation{}, false
}

func truncate(evs []Evaluation, limit int) []Evaluation {
	if limit > 0 && len(evs) > limit {
		return evs[:limit]
	}
	return evs
}
