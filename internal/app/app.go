package app

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/newsquant/internal/backtest"
	"github.com/ternarybob/newsquant/internal/common"
	"github.com/ternarybob/newsquant/internal/eodhd"
	"github.com/ternarybob/newsquant/internal/handlers"
	"github.com/ternarybob/newsquant/internal/interfaces"
	"github.com/ternarybob/newsquant/internal/models"
	"github.com/ternarybob/newsquant/internal/naver"
	"github.com/ternarybob/newsquant/internal/prices"
	"github.com/ternarybob/newsquant/internal/sentiment"
	"github.com/ternarybob/newsquant/internal/services/analysis"
	"github.com/ternarybob/newsquant/internal/services/scheduler"
	"github.com/ternarybob/newsquant/internal/signals"
	"github.com/ternarybob/newsquant/internal/storage/badger"
	"github.com/ternarybob/newsquant/internal/storage/sqlite"
)

// App holds all application components and dependencies
type App struct {
	Config   *common.Config
	Logger   arbor.ILogger
	Location *time.Location

	// Storage
	ArticleDB    *sqlite.SQLiteDB
	ArticleStore *sqlite.ArticleStore
	PriceCache   *badger.Manager // nil when snapshots are disabled

	// Prices
	PriceProvider interfaces.PriceProvider
	PriceService  *prices.Service

	// Signal generation and backtesting
	Scorer          *sentiment.CompositeScorer // nil unless scoring.rescore_missing
	Engine          *signals.Engine
	Runner          *backtest.Runner
	AnalysisService *analysis.Service
	Scheduler       *scheduler.Service // started by serve --watch and watch

	// HTTP handlers
	APIHandler      *handlers.APIHandler
	SignalsHandler  *handlers.SignalsHandler
	BacktestHandler *handlers.BacktestHandler
}

// New initializes the application with all dependencies
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	loc, err := cfg.Market.Location()
	if err != nil {
		return nil, err
	}

	app := &App{
		Config:   cfg,
		Logger:   logger,
		Location: loc,
	}

	if err := app.initDatabase(); err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := app.initPrices(); err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to initialize price provider: %w", err)
	}

	if err := app.initServices(); err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	app.initHandlers()

	logger.Info().
		Str("provider", app.PriceProvider.Name()).
		Str("timezone", loc.String()).
		Bool("snapshots", app.PriceCache != nil).
		Bool("rescore", app.Scorer != nil).
		Msg("Application initialized")

	return app, nil
}

// initDatabase opens the article store and, when enabled, the price cache
func (a *App) initDatabase() error {
	db, err := sqlite.NewSQLiteDB(a.Logger, &a.Config.Storage.Articles)
	if err != nil {
		return err
	}
	a.ArticleDB = db
	a.ArticleStore = sqlite.NewArticleStore(db, a.Location, a.Logger)

	if count, err := a.ArticleStore.CountArticles(context.Background()); err == nil {
		a.Logger.Debug().Int("articles", count).Msg("Article store ready")
	}

	if !a.Config.Prices.Snapshot {
		return nil
	}

	cache, err := badger.NewManager(a.Logger, &a.Config.Storage.Badger)
	if err != nil {
		return err
	}
	a.PriceCache = cache

	a.purgeSnapshots(context.Background())
	return nil
}

// purgeSnapshots drops snapshots older than the retention window
func (a *App) purgeSnapshots(ctx context.Context) {
	retention := a.Config.Prices.SnapshotRetention
	if a.PriceCache == nil || retention <= 0 {
		return
	}

	cutoff := models.DayKey(time.Now().AddDate(0, 0, -retention), a.Location)
	purged, err := a.PriceCache.PriceSnapshotStorage().PurgeBefore(ctx, cutoff)
	if err != nil {
		a.Logger.Warn().Err(err).Str("before", cutoff).Msg("Failed to purge price snapshots")
		return
	}
	if purged > 0 {
		a.Logger.Info().Int("purged", purged).Str("before", cutoff).Msg("Purged stale price snapshots")
		if rewrites, err := a.PriceCache.DB().Compact(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to compact price cache")
		} else {
			a.Logger.Debug().Int("rewrites", rewrites).Msg("Price cache compacted")
		}
	}
}

// newProvider builds the configured upstream price provider
func (a *App) newProvider() interfaces.PriceProvider {
	cfg := a.Config.Prices
	switch cfg.Provider {
	case eodhd.ProviderName:
		opts := []eodhd.ClientOption{
			eodhd.WithLogger(a.Logger),
			eodhd.WithExchange(cfg.EODHD.Exchange),
			eodhd.WithAdjustedClose(cfg.EODHD.Adjusted),
			eodhd.WithLocation(a.Location),
		}
		if cfg.EODHD.BaseURL != "" {
			opts = append(opts, eodhd.WithBaseURL(cfg.EODHD.BaseURL))
		}
		return eodhd.NewClient(common.ResolveAPIKey("eodhd_api_key", cfg.EODHD.APIKey), opts...)
	default:
		opts := []naver.ClientOption{
			naver.WithLogger(a.Logger),
			naver.WithMaxPages(cfg.Naver.MaxPages),
			naver.WithLocation(a.Location),
		}
		if cfg.Naver.BaseURL != "" {
			opts = append(opts, naver.WithBaseURL(cfg.Naver.BaseURL))
		}
		return naver.NewClient(opts...)
	}
}

// initPrices wires provider -> snapshot cache -> rate-limited fetcher
func (a *App) initPrices() error {
	provider := a.newProvider()
	if a.PriceCache != nil {
		provider = prices.NewSnapshotProvider(provider, a.PriceCache.PriceSnapshotStorage(), a.Logger)
	}
	a.PriceProvider = provider

	fetchConfig, err := a.fetchConfig()
	if err != nil {
		return err
	}
	fetcher, err := prices.NewFetcher(provider, fetchConfig, a.Logger)
	if err != nil {
		return err
	}
	a.PriceService = prices.NewService(fetcher)
	return nil
}

func (a *App) fetchConfig() (prices.FetchConfig, error) {
	cfg := a.Config.Prices
	backoffMin, backoffMax, err := cfg.Backoff()
	if err != nil {
		return prices.FetchConfig{}, err
	}
	return prices.FetchConfig{
		Workers:           cfg.Workers,
		RequestsPerSecond: cfg.RequestsPerSecond,
		Burst:             cfg.Burst,
		MaxRetries:        cfg.MaxRetries,
		BackoffMin:        backoffMin,
		BackoffMax:        backoffMax,
		BackoffFactor:     cfg.BackoffFactor,
		MaxStocks:         cfg.MaxStocks,
	}, nil
}

// initServices builds the scoring, signal and backtest pipeline
func (a *App) initServices() error {
	var opts []analysis.Option
	if a.Config.Scoring.RescoreMissing {
		lexicon, err := sentiment.LoadLexiconFile(a.Config.Scoring.LexiconFile)
		if err != nil {
			return err
		}
		compositeConfig, err := a.Config.Scoring.CompositeConfig()
		if err != nil {
			return err
		}
		scorer, err := sentiment.NewCompositeScorer(lexicon, compositeConfig)
		if err != nil {
			return err
		}
		a.Scorer = scorer
		opts = append(opts, analysis.WithScorer(scorer))
	}

	engineConfig, err := a.Config.Signals.EngineConfig()
	if err != nil {
		return err
	}
	engine, err := signals.NewEngine(engineConfig, a.Location)
	if err != nil {
		return err
	}
	a.Engine = engine

	runner, err := backtest.NewRunner(a.Config.Backtest, engineConfig, a.Location, a.PriceService, a.Logger)
	if err != nil {
		return err
	}
	a.Runner = runner

	a.AnalysisService = analysis.NewService(analysis.Config{
		PriceLookbackDays: a.Config.Prices.LookbackDays,
		HistoryDays:       analysis.DefaultConfig().HistoryDays,
		MaxStocks:         a.Config.Prices.MaxStocks,
		CandidateLimit:    a.Config.Signals.CandidateLimit,
	}, a.ArticleStore, a.PriceService, engine, runner, a.Logger, opts...)

	a.Scheduler = scheduler.NewService(a.AnalysisService, a.Logger, scheduler.WithReportDir(a.Config.Schedule.Report))

	return nil
}

// initHandlers creates the HTTP handlers over the analysis service
func (a *App) initHandlers() {
	a.APIHandler = handlers.NewAPIHandler(a.Logger, a.ArticleDB)
	a.SignalsHandler = handlers.NewSignalsHandler(a.AnalysisService, a.Logger)
	a.BacktestHandler = handlers.NewBacktestHandler(a.AnalysisService, a.Logger)
}

// Close releases storage in reverse order of initialization
func (a *App) Close() error {
	if a.PriceCache != nil {
		if err := a.PriceCache.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close price cache")
		} else {
			a.Logger.Debug().Msg("Price cache closed")
		}
		a.PriceCache = nil
	}

	if a.ArticleDB != nil {
		if err := a.ArticleDB.Close(); err != nil {
			return fmt.Errorf("failed to close article store: %w", err)
		}
		a.ArticleDB = nil
		a.ArticleStore = nil
		a.Logger.Debug().Msg("Article store closed")
	}

	return nil
}
