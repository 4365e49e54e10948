package prices

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/ternarybob/newsquant/internal/models"
)

// scriptedProvider returns queued errors per code before succeeding
type scriptedProvider struct {
	mu       sync.Mutex
	failures map[string][]error
	calls    map[string]int
	bars     map[string][]models.PriceBar
}

func newScriptedProvider() *scriptedProvider {
	return &scriptedProvider{
		failures: make(map[string][]error),
		calls:    make(map[string]int),
		bars:     make(map[string][]models.PriceBar),
	}
}

func (p *scriptedProvider) Name() string { return "scripted" }

func (p *scriptedProvider) GetDailyPrices(ctx context.Context, code string, window models.LookbackWindow) ([]models.PriceBar, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls[code]++
	if queue := p.failures[code]; len(queue) > 0 {
		p.failures[code] = queue[1:]
		return nil, queue[0]
	}
	return p.bars[code], nil
}

func (p *scriptedProvider) callCount(code string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[code]
}

// fakeClock records requested sleeps without waiting
type fakeClock struct {
	mu     sync.Mutex
	sleeps []time.Duration
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	c.mu.Lock()
	c.sleeps = append(c.sleeps, d)
	c.mu.Unlock()
	return ctx.Err()
}

func testFetchConfig() FetchConfig {
	cfg := DefaultFetchConfig()
	cfg.BackoffMin = 100 * time.Millisecond
	cfg.BackoffMax = time.Second
	cfg.BackoffFactor = 2
	cfg.MaxRetries = 2
	return cfg
}

func newTestFetcher(t *testing.T, provider *scriptedProvider, clock *fakeClock) *Fetcher {
	t.Helper()
	f, err := NewFetcher(provider, testFetchConfig(), arbor.NewLogger(),
		WithSleep(clock.Sleep),
		WithLimiter(rate.NewLimiter(rate.Inf, 1)),
	)
	require.NoError(t, err)
	return f
}

func testWindow() models.LookbackWindow {
	return models.LookbackWindow{From: day(1), To: day(9)}
}

func TestFetcher_FetchAll(t *testing.T) {
	provider := newScriptedProvider()
	provider.bars["005930"] = []models.PriceBar{{Date: day(8), Close: 110}}
	provider.bars["000660"] = []models.PriceBar{{Date: day(8), Close: 200}}
	clock := &fakeClock{}
	cache := NewCache(day(9))

	summary, err := newTestFetcher(t, provider, clock).FetchAll(context.Background(),
		[]string{"005930", "000660", "005930", "999999"}, testWindow(), cache)
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Requested)
	assert.Equal(t, 3, summary.Fetched)
	assert.Empty(t, summary.Failed)
	assert.Equal(t, 1, provider.callCount("005930"), "duplicate codes fetched once")

	_, ok := cache.Bars("999999")
	assert.False(t, ok, "unknown code has no bars")
	assert.Empty(t, clock.sleeps)
}

func TestFetcher_SkipsCachedCodes(t *testing.T) {
	provider := newScriptedProvider()
	cache := NewCache(day(9))
	require.NoError(t, cache.Put("005930", []models.PriceBar{{Date: day(8), Close: 1}}))

	summary, err := newTestFetcher(t, provider, &fakeClock{}).FetchAll(context.Background(),
		[]string{"005930"}, testWindow(), cache)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, 0, provider.callCount("005930"))
}

func TestFetcher_RetriesWithBackoff(t *testing.T) {
	provider := newScriptedProvider()
	provider.failures["005930"] = []error{
		&StatusError{Provider: "scripted", StatusCode: http.StatusServiceUnavailable},
		&StatusError{Provider: "scripted", StatusCode: http.StatusTooManyRequests},
	}
	provider.bars["005930"] = []models.PriceBar{{Date: day(8), Close: 110}}
	clock := &fakeClock{}
	cache := NewCache(day(9))

	summary, err := newTestFetcher(t, provider, clock).FetchAll(context.Background(),
		[]string{"005930"}, testWindow(), cache)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Fetched)
	assert.Equal(t, 3, provider.callCount("005930"))
	assert.Equal(t, []time.Duration{100 * time.Millisecond, 200 * time.Millisecond}, clock.sleeps)

	_, ok := cache.Bars("005930")
	assert.True(t, ok)
}

func TestFetcher_ExhaustedRetriesMarkUnavailable(t *testing.T) {
	provider := newScriptedProvider()
	unavailable := &StatusError{Provider: "scripted", StatusCode: http.StatusBadGateway}
	provider.failures["005930"] = []error{unavailable, unavailable, unavailable, unavailable}
	provider.bars["000660"] = []models.PriceBar{{Date: day(8), Close: 200}}
	clock := &fakeClock{}
	cache := NewCache(day(9))

	summary, err := newTestFetcher(t, provider, clock).FetchAll(context.Background(),
		[]string{"005930", "000660"}, testWindow(), cache)
	require.NoError(t, err, "per-stock failures do not abort the run")

	assert.Equal(t, 1, summary.Fetched)
	require.Contains(t, summary.Failed, "005930")
	assert.Equal(t, 3, provider.callCount("005930"), "initial attempt plus two retries")
	assert.Contains(t, cache.Unavailable(), "005930")

	_, ok := cache.Bars("000660")
	assert.True(t, ok)
}

func TestFetcher_NonRetryableFailsImmediately(t *testing.T) {
	provider := newScriptedProvider()
	provider.failures["005930"] = []error{errors.New("malformed response")}
	clock := &fakeClock{}

	summary, err := newTestFetcher(t, provider, clock).FetchAll(context.Background(),
		[]string{"005930"}, testWindow(), NewCache(day(9)))
	require.NoError(t, err)

	assert.Contains(t, summary.Failed, "005930")
	assert.Equal(t, 1, provider.callCount("005930"))
	assert.Empty(t, clock.sleeps)
}

func TestFetcher_RetryAfterOverridesBackoff(t *testing.T) {
	provider := newScriptedProvider()
	provider.failures["005930"] = []error{retryAfterError{delay: 5 * time.Second}}
	clock := &fakeClock{}

	_, err := newTestFetcher(t, provider, clock).FetchAll(context.Background(),
		[]string{"005930"}, testWindow(), NewCache(day(9)))
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{5 * time.Second}, clock.sleeps)
}

func TestFetcher_Cancelled(t *testing.T) {
	provider := newScriptedProvider()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestFetcher(t, provider, &fakeClock{}).FetchAll(ctx,
		[]string{"005930", "000660"}, testWindow(), NewCache(day(9)))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewFetcher_InvalidConfig(t *testing.T) {
	cfg := DefaultFetchConfig()
	cfg.Workers = 0
	_, err := NewFetcher(newScriptedProvider(), cfg, arbor.NewLogger())
	assert.Error(t, err)

	_, err = NewFetcher(nil, DefaultFetchConfig(), arbor.NewLogger())
	assert.Error(t, err)
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain", errors.New("x"), false},
		{"server error", &StatusError{StatusCode: 500}, true},
		{"rate limited", &StatusError{StatusCode: 429}, true},
		{"not found", &StatusError{StatusCode: 404}, false},
		{"wrapped", errors.Join(errors.New("ctx"), &StatusError{StatusCode: 503}), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

type retryAfterError struct {
	delay time.Duration
}

func (e retryAfterError) Error() string             { return "rate limited" }
func (e retryAfterError) Retryable() bool           { return true }
func (e retryAfterError) RetryDelay() time.Duration { return e.delay }

func TestService_LoadCapsAndFreezes(t *testing.T) {
	provider := newScriptedProvider()
	provider.bars["005930"] = []models.PriceBar{{Date: day(8), Close: 110}}
	provider.bars["000660"] = []models.PriceBar{{Date: day(8), Close: 200}}

	cfg := testFetchConfig()
	cfg.MaxStocks = 1
	fetcher, err := NewFetcher(provider, cfg, arbor.NewLogger(),
		WithSleep((&fakeClock{}).Sleep),
		WithLimiter(rate.NewLimiter(rate.Inf, 1)),
	)
	require.NoError(t, err)

	cache, summary, err := NewService(fetcher).Load(context.Background(), []string{"005930", "000660"}, testWindow())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Fetched)
	assert.True(t, cache.Frozen())
	_, ok := cache.Bars("005930")
	assert.True(t, ok)
	_, ok = cache.Bars("000660")
	assert.False(t, ok, "codes beyond max_stocks are not fetched")
	assert.Equal(t, 0, provider.callCount("000660"))
}
