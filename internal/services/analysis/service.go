// Package analysis runs the signal engine and the backtester over stored
// articles and fetched prices.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/newsquant/internal/backtest"
	"github.com/ternarybob/newsquant/internal/interfaces"
	"github.com/ternarybob/newsquant/internal/models"
	"github.com/ternarybob/newsquant/internal/sentiment"
	"github.com/ternarybob/newsquant/internal/signals"
)

// ErrInvalidRange is returned when a backtest range is empty or inverted
var ErrInvalidRange = errors.New("invalid date range")

// Config bounds the article and price windows loaded per request
type Config struct {
	PriceLookbackDays int // calendar days of bars before the signal date
	HistoryDays       int // calendar days of articles feeding the volume history
	MaxStocks         int // price-fetch universe cap for daily signals; 0 = unlimited
	CandidateLimit    int
}

// DefaultConfig returns defaults sized for the standard engine lookbacks
func DefaultConfig() Config {
	return Config{
		PriceLookbackDays: 30,
		HistoryDays:       60,
		MaxStocks:         300,
		CandidateLimit:    10,
	}
}

// Service answers daily signal and backtest requests
type Service struct {
	config   Config
	articles interfaces.ArticleQuery
	prices   interfaces.PriceLoader
	engine   *signals.Engine
	runner   *backtest.Runner
	scorer   *sentiment.CompositeScorer
	logger   arbor.ILogger
}

// Option configures optional collaborators
type Option func(*Service)

// WithScorer rescores articles stored without sentiment or overall scores
func WithScorer(scorer *sentiment.CompositeScorer) Option {
	return func(s *Service) {
		s.scorer = scorer
	}
}

// NewService wires the engine and runner to the article and price sources
func NewService(config Config, articles interfaces.ArticleQuery, prices interfaces.PriceLoader, engine *signals.Engine, runner *backtest.Runner, logger arbor.ILogger, opts ...Option) *Service {
	s := &Service{
		config:   config,
		articles: articles,
		prices:   prices,
		engine:   engine,
		runner:   runner,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Location returns the market location used for day bucketing
func (s *Service) Location() *time.Location {
	return s.engine.Aggregator().Location()
}

// CandidateLimit is the default length of candidate lists
func (s *Service) CandidateLimit() int {
	return s.config.CandidateLimit
}

// Thresholds returns the active classifier thresholds
func (s *Service) Thresholds() signals.Thresholds {
	return s.engine.Classifier().Thresholds()
}

// loadArticles reads [from, to) and rescores incomplete articles
func (s *Service) loadArticles(ctx context.Context, from, to time.Time) ([]models.Article, error) {
	articles, err := s.articles.QueryArticles(ctx, models.ArticleFilter{From: from, To: to})
	if err != nil {
		return nil, fmt.Errorf("failed to query articles: %w", err)
	}
	if s.scorer == nil {
		return articles, nil
	}

	rescored := 0
	for i, article := range articles {
		if article.SentimentScore == nil || article.OverallScore == nil {
			articles[i] = s.scorer.ScoreArticle(article)
			rescored++
		}
	}
	if rescored > 0 {
		s.logger.Debug().Int("rescored", rescored).Int("articles", len(articles)).Msg("Rescored incomplete articles")
	}
	return articles, nil
}

// DailySignals analyzes every stock mentioned on date
func (s *Service) DailySignals(ctx context.Context, date time.Time) (signals.DayAnalysis, error) {
	loc := s.Location()
	day := models.CalendarDay(date, loc)

	articles, err := s.loadArticles(ctx, day.AddDate(0, 0, -s.config.HistoryDays), day.AddDate(0, 0, 1))
	if err != nil {
		return signals.DayAnalysis{}, err
	}

	counts := s.engine.Aggregator().MentionCounts(articles, day)
	codes := signals.MostMentioned(counts, s.config.MaxStocks)

	window := models.LookbackWindow{From: day.AddDate(0, 0, -s.config.PriceLookbackDays), To: day}
	lookup, err := s.prices.LoadPrices(ctx, codes, window)
	if err != nil {
		return signals.DayAnalysis{}, fmt.Errorf("failed to load prices: %w", err)
	}

	analysis := s.engine.AnalyzeDay(day, articles, s.engine.NewVolumeHistory(articles), lookup)

	s.logger.Info().
		Str("date", models.DayKey(day, loc)).
		Int("articles", len(articles)).
		Int("stocks", len(analysis.Evaluations)).
		Int("buy", len(analysis.ByKind(models.SignalBuy))).
		Int("sell", len(analysis.ByKind(models.SignalSell))).
		Msg("Daily signals generated")

	return analysis, nil
}

// StockSignal evaluates a single stock. A stock without news on date is
// returned as hold with found=false.
func (s *Service) StockSignal(ctx context.Context, code string, date time.Time) (signals.Evaluation, bool, error) {
	analysis, err := s.DailySignals(ctx, date)
	if err != nil {
		return signals.Evaluation{}, false, err
	}
	if ev, ok := analysis.Lookup(code); ok {
		return ev, true, nil
	}
	return s.engine.AnalyzeStock(code, date, nil, nil, nil), false, nil
}

// Prepare builds a backtest dataset whose signal days fall in [from, to).
// Articles from HistoryDays before from are loaded too so the first days
// see the same trailing news volume a live run would.
func (s *Service) Prepare(ctx context.Context, from, to time.Time) (*backtest.Dataset, error) {
	loc := s.Location()
	from, to = models.CalendarDay(from, loc), models.CalendarDay(to, loc)
	if from.IsZero() || !to.After(from) {
		return nil, fmt.Errorf("%w: %s to %s", ErrInvalidRange, models.DayKey(from, loc), models.DayKey(to, loc))
	}

	articles, err := s.loadArticles(ctx, from.AddDate(0, 0, -s.config.HistoryDays), to)
	if err != nil {
		return nil, err
	}
	return s.runner.Prepare(ctx, articles, from)
}

// Backtest evaluates thresholds over [from, to). Zero thresholds use the
// active classifier thresholds.
func (s *Service) Backtest(ctx context.Context, from, to time.Time, thresholds *signals.Thresholds) (*backtest.Report, error) {
	ds, err := s.Prepare(ctx, from, to)
	if err != nil {
		return nil, err
	}
	active := s.Thresholds()
	if thresholds != nil {
		active = *thresholds
	}
	return s.runner.Run(ctx, ds, active)
}

// Optimize grid-searches thresholds over [from, to). On cancellation the
// partial result is returned with the context error.
func (s *Service) Optimize(ctx context.Context, from, to time.Time) (*backtest.OptimizeResult, error) {
	ds, err := s.Prepare(ctx, from, to)
	if err != nil {
		return nil, err
	}
	return s.runner.Optimize(ctx, ds)
}
