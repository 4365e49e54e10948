package interfaces

import (
	"context"

	"github.com/ternarybob/newsquant/internal/models"
)

// PriceProvider fetches daily bars for a stock code.
//
// Bars are returned in ascending date order. An unknown code yields an
// empty slice and a nil error; transport failures are returned as errors
// so the caller can decide whether to retry.
type PriceProvider interface {
	GetDailyPrices(ctx context.Context, stockCode string, window models.LookbackWindow) ([]models.PriceBar, error)

	// Name identifies the provider in logs and snapshot keys
	Name() string
}

// PriceLookup is the read-only view of prices used during signal generation
type PriceLookup interface {
	// Bars returns the bars for a code, or false when the code is unavailable
	Bars(stockCode string) ([]models.PriceBar, bool)
}

// PriceSnapshotStorage persists fetched bars keyed by provider, code and as-of date
type PriceSnapshotStorage interface {
	LoadSnapshot(ctx context.Context, provider, stockCode, asOf string) ([]models.PriceBar, bool, error)
	SaveSnapshot(ctx context.Context, provider, stockCode, asOf string, bars []models.PriceBar) error
	PurgeBefore(ctx context.Context, asOf string) (int, error)
}

// PriceLoader resolves a set of codes into a frozen, run-scoped lookup.
// Codes that cannot be fetched are reported unavailable by the lookup;
// only cancellation is returned as an error.
type PriceLoader interface {
	LoadPrices(ctx context.Context, stockCodes []string, window models.LookbackWindow) (PriceLookup, error)
}
