// Package naver scrapes daily prices from the Naver Finance quote pages.
package naver

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/newsquant/internal/models"
	"github.com/ternarybob/newsquant/internal/prices"
)

const (
	// DefaultBaseURL is the Naver Finance host
	DefaultBaseURL = "https://finance.naver.com"

	// DefaultMaxPages bounds pagination; each page holds ten trading days
	DefaultMaxPages = 10

	// ProviderName identifies Naver bars in snapshot keys
	ProviderName = "naver"

	dailyPath   = "/item/sise_day.naver"
	dateLayout  = "2006.01.02"
	userAgent   = "Mozilla/5.0 (compatible; newsquant/1.0)"
	columnCount = 7
)

// Client reads the daily quote table for a stock code
type Client struct {
	baseURL    string
	maxPages   int
	location   *time.Location
	httpClient *http.Client
	logger     arbor.ILogger
}

// ClientOption configures the Client
type ClientOption func(*Client)

// WithBaseURL sets a custom base URL
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithMaxPages limits how many pages are read per code
func WithMaxPages(n int) ClientOption {
	return func(c *Client) {
		if n > 0 {
			c.maxPages = n
		}
	}
}

// WithLocation sets the market time zone for parsed dates
func WithLocation(loc *time.Location) ClientOption {
	return func(c *Client) {
		if loc != nil {
			c.location = loc
		}
	}
}

// WithLogger sets a logger
func WithLogger(logger arbor.ILogger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a Naver Finance price client
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		maxPages:   DefaultMaxPages,
		location:   time.UTC,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name identifies the provider
func (c *Client) Name() string {
	return ProviderName
}

// GetDailyPrices pages back through the quote table until the window
// start is covered, then returns ascending bars inside the window.
func (c *Client) GetDailyPrices(ctx context.Context, stockCode string, window models.LookbackWindow) ([]models.PriceBar, error) {
	byDate := make(map[string]models.PriceBar)
	covered := window.From.IsZero()
	var earliest time.Time

	for page := 1; page <= c.maxPages; page++ {
		rows, err := c.fetchPage(ctx, stockCode, page)
		if err != nil {
			return nil, err
		}

		added := 0
		oldest := time.Time{}
		for _, bar := range rows {
			key := bar.Date.Format(models.DateLayout)
			if _, ok := byDate[key]; ok {
				continue
			}
			byDate[key] = bar
			added++
			if oldest.IsZero() || bar.Date.Before(oldest) {
				oldest = bar.Date
			}
		}

		// Past the last page Naver repeats the final page
		if added == 0 {
			covered = true
			break
		}
		earliest = oldest
		if !window.From.IsZero() && oldest.Before(window.From) {
			covered = true
			break
		}
	}

	if !covered && c.logger != nil {
		c.logger.Warn().
			Str("code", stockCode).
			Int("max_pages", c.maxPages).
			Str("window_from", window.From.Format(models.DateLayout)).
			Str("earliest", earliest.Format(models.DateLayout)).
			Msg("Naver page limit reached before window start, prices truncated")
	}

	bars := make([]models.PriceBar, 0, len(byDate))
	for _, bar := range byDate {
		if window.Contains(bar.Date) {
			bars = append(bars, bar)
		}
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].Date.Before(bars[j].Date) })
	return bars, nil
}

func (c *Client) fetchPage(ctx context.Context, stockCode string, page int) ([]models.PriceBar, error) {
	params := url.Values{}
	params.Set("code", stockCode)
	params.Set("page", strconv.Itoa(page))
	reqURL := fmt.Sprintf("%s%s?%s", c.baseURL, dailyPath, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	if c.logger != nil {
		c.logger.Debug().Str("code", stockCode).Int("page", page).Msg("Naver daily price request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &prices.StatusError{
			Provider:   ProviderName,
			StatusCode: resp.StatusCode,
			Endpoint:   dailyPath,
			Message:    strings.TrimSpace(string(body)),
		}
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	return c.parseTable(doc), nil
}

// parseTable reads rows positionally: date, close, change, open, high, low, volume
func (c *Client) parseTable(doc *goquery.Document) []models.PriceBar {
	var bars []models.PriceBar
	doc.Find("table.type2 tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() != columnCount {
			return
		}
		text := func(i int) string {
			return strings.TrimSpace(cells.Eq(i).Text())
		}

		date, err := time.ParseInLocation(dateLayout, text(0), c.location)
		if err != nil {
			return
		}
		closePrice, ok1 := parseNumber(text(1))
		open, ok2 := parseNumber(text(3))
		high, ok3 := parseNumber(text(4))
		low, ok4 := parseNumber(text(5))
		volume, ok5 := parseNumber(text(6))
		if !(ok1 && ok2 && ok3 && ok4 && ok5) {
			return
		}

		bars = append(bars, models.PriceBar{
			Date:   date,
			Open:   open,
			High:   high,
			Low:    low,
			Close:  closePrice,
			Volume: int64(volume),
		})
	})
	return bars
}

func parseNumber(s string) (float64, bool) {
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
