package prices

import (
	"context"

	"github.com/ternarybob/newsquant/internal/interfaces"
	"github.com/ternarybob/newsquant/internal/models"
)

// Service loads run-scoped price caches through a Fetcher
type Service struct {
	fetcher *Fetcher
}

var _ interfaces.PriceLoader = (*Service)(nil)

// NewService creates a Service
func NewService(fetcher *Fetcher) *Service {
	return &Service{fetcher: fetcher}
}

// LoadPrices fetches the first max_stocks codes into a fresh cache and
// freezes it. Codes beyond the cap are absent from the lookup.
func (s *Service) LoadPrices(ctx context.Context, codes []string, window models.LookbackWindow) (interfaces.PriceLookup, error) {
	cache, _, err := s.Load(ctx, codes, window)
	if err != nil {
		return nil, err
	}
	return cache, nil
}

// Load is LoadPrices with the concrete cache and fetch summary
func (s *Service) Load(ctx context.Context, codes []string, window models.LookbackWindow) (*Cache, FetchSummary, error) {
	if limit := s.fetcher.Config().MaxStocks; limit > 0 && len(codes) > limit {
		codes = codes[:limit]
	}

	cache := NewCache(window.To)
	summary, err := s.fetcher.FetchAll(ctx, codes, window, cache)
	cache.Freeze()
	if err != nil {
		return nil, summary, err
	}
	return cache, summary, nil
}
