package prices

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jpillora/backoff"
	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/ternarybob/newsquant/internal/common"
	"github.com/ternarybob/newsquant/internal/interfaces"
	"github.com/ternarybob/newsquant/internal/models"
)

// FetchConfig bounds the concurrency and pacing of a price fetch
type FetchConfig struct {
	Workers           int           `validate:"gte=1,lte=64"`
	RequestsPerSecond float64       `validate:"gt=0"`
	Burst             int           `validate:"gte=1"`
	MaxRetries        int           `validate:"gte=0"`
	BackoffMin        time.Duration `validate:"gt=0"`
	BackoffMax        time.Duration `validate:"gtefield=BackoffMin"`
	BackoffFactor     float64       `validate:"gte=1"`
	MaxStocks         int           `validate:"gte=0"`
}

// DefaultFetchConfig returns conservative settings for public endpoints
func DefaultFetchConfig() FetchConfig {
	return FetchConfig{
		Workers:           4,
		RequestsPerSecond: 5,
		Burst:             1,
		MaxRetries:        3,
		BackoffMin:        500 * time.Millisecond,
		BackoffMax:        10 * time.Second,
		BackoffFactor:     2,
		MaxStocks:         300,
	}
}

// SleepFunc waits for d or until ctx is done
type SleepFunc func(ctx context.Context, d time.Duration) error

// FetchSummary reports the outcome of FetchAll
type FetchSummary struct {
	Requested int
	Fetched   int
	Skipped   int
	Failed    map[string]error
	Elapsed   time.Duration
}

// Fetcher populates a Cache from a PriceProvider using a bounded worker pool
type Fetcher struct {
	provider interfaces.PriceProvider
	config   FetchConfig
	limiter  *rate.Limiter
	sleep    SleepFunc
	logger   arbor.ILogger
}

// FetcherOption configures a Fetcher
type FetcherOption func(*Fetcher)

// WithSleep replaces the retry sleep, typically with a fake clock in tests
func WithSleep(fn SleepFunc) FetcherOption {
	return func(f *Fetcher) {
		f.sleep = fn
	}
}

// WithLimiter replaces the request limiter
func WithLimiter(l *rate.Limiter) FetcherOption {
	return func(f *Fetcher) {
		f.limiter = l
	}
}

// NewFetcher creates a Fetcher for the given provider
func NewFetcher(provider interfaces.PriceProvider, config FetchConfig, logger arbor.ILogger, opts ...FetcherOption) (*Fetcher, error) {
	if provider == nil {
		return nil, errors.New("price provider is required")
	}
	if err := validator.New().Struct(config); err != nil {
		return nil, fmt.Errorf("invalid fetch config: %w", err)
	}
	if logger == nil {
		logger = common.GetLogger()
	}

	f := &Fetcher{
		provider: provider,
		config:   config,
		limiter:  rate.NewLimiter(rate.Limit(config.RequestsPerSecond), config.Burst),
		sleep:    sleepContext,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// Provider returns the underlying price provider
func (f *Fetcher) Provider() interfaces.PriceProvider {
	return f.provider
}

// Config returns the fetch configuration
func (f *Fetcher) Config() FetchConfig {
	return f.config
}

// FetchAll resolves every code into the cache. Codes already in the cache
// are skipped. A code that fails after retries is marked unavailable and
// does not abort the run; only context cancellation does.
func (f *Fetcher) FetchAll(ctx context.Context, codes []string, window models.LookbackWindow, cache *Cache) (FetchSummary, error) {
	start := time.Now()
	summary := FetchSummary{Failed: make(map[string]error)}

	pending := make([]string, 0, len(codes))
	seen := make(map[string]struct{}, len(codes))
	for _, code := range codes {
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}
		if cache.Has(code) {
			summary.Skipped++
			continue
		}
		pending = append(pending, code)
	}
	summary.Requested = len(pending)
	if len(pending) == 0 {
		return summary, nil
	}

	workers := min(f.config.Workers, len(pending))
	jobs := make(chan string)
	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)

	f.logger.Info().
		Str("provider", f.provider.Name()).
		Int("codes", len(pending)).
		Int("workers", workers).
		Msg("Fetching price history")

	for i := 0; i < workers; i++ {
		wg.Add(1)
		common.SafeGo(f.logger, fmt.Sprintf("price-fetch-%d", i), func() {
			defer wg.Done()
			for code := range jobs {
				bars, err := f.fetchOne(ctx, code, window)
				mu.Lock()
				if err != nil {
					summary.Failed[code] = err
					_ = cache.MarkUnavailable(code, err)
				} else {
					summary.Fetched++
					_ = cache.Put(code, bars)
				}
				mu.Unlock()
			}
		})
	}

dispatch:
	for _, code := range pending {
		select {
		case <-ctx.Done():
			break dispatch
		case jobs <- code:
		}
	}
	close(jobs)
	wg.Wait()

	summary.Elapsed = time.Since(start)
	f.logger.Info().
		Int("fetched", summary.Fetched).
		Int("failed", len(summary.Failed)).
		Int("skipped", summary.Skipped).
		Dur("elapsed", summary.Elapsed).
		Msg("Price fetch complete")

	if err := ctx.Err(); err != nil {
		return summary, err
	}
	return summary, nil
}

func (f *Fetcher) fetchOne(ctx context.Context, code string, window models.LookbackWindow) ([]models.PriceBar, error) {
	b := &backoff.Backoff{
		Min:    f.config.BackoffMin,
		Max:    f.config.BackoffMax,
		Factor: f.config.BackoffFactor,
	}

	for attempt := 0; ; attempt++ {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		bars, err := f.provider.GetDailyPrices(ctx, code, window)
		if err == nil {
			return bars, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !IsRetryable(err) || attempt >= f.config.MaxRetries {
			f.logger.Warn().
				Str("code", code).
				Int("attempts", attempt+1).
				Err(err).
				Msg("Price fetch failed, marking unavailable")
			return nil, err
		}

		delay := b.Duration()
		if ra := retryDelay(err); ra > delay {
			delay = ra
		}
		f.logger.Debug().
			Str("code", code).
			Int("attempt", attempt+1).
			Dur("delay", delay).
			Err(err).
			Msg("Retrying price fetch")
		if err := f.sleep(ctx, delay); err != nil {
			return nil, err
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
