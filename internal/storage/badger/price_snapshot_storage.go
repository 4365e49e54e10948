package badger

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/newsquant/internal/interfaces"
	"github.com/ternarybob/newsquant/internal/models"
)

// PriceSnapshot is the stored form of one code's bars as of a date
type PriceSnapshot struct {
	Key       string `badgerhold:"key"`
	Provider  string
	StockCode string
	AsOf      string `badgerholdIndex:"AsOf"`
	Bars      []models.PriceBar
	FetchedAt time.Time
}

// PriceSnapshotStorage implements interfaces.PriceSnapshotStorage on Badger
type PriceSnapshotStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewPriceSnapshotStorage creates a new PriceSnapshotStorage
func NewPriceSnapshotStorage(db *BadgerDB, logger arbor.ILogger) interfaces.PriceSnapshotStorage {
	return &PriceSnapshotStorage{
		db:     db,
		logger: logger,
	}
}

func snapshotKey(provider, stockCode, asOf string) string {
	return fmt.Sprintf("prices:%s:%s:%s", provider, asOf, stockCode)
}

// LoadSnapshot returns stored bars; the bool is false when nothing is stored
func (s *PriceSnapshotStorage) LoadSnapshot(ctx context.Context, provider, stockCode, asOf string) ([]models.PriceBar, bool, error) {
	var snap PriceSnapshot
	err := s.db.Store().Get(snapshotKey(provider, stockCode, asOf), &snap)
	if err == badgerhold.ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to load price snapshot: %w", err)
	}
	return snap.Bars, true, nil
}

// SaveSnapshot stores bars, replacing any previous snapshot for the key
func (s *PriceSnapshotStorage) SaveSnapshot(ctx context.Context, provider, stockCode, asOf string, bars []models.PriceBar) error {
	key := snapshotKey(provider, stockCode, asOf)
	snap := PriceSnapshot{
		Key:       key,
		Provider:  provider,
		StockCode: stockCode,
		AsOf:      asOf,
		Bars:      bars,
		FetchedAt: time.Now(),
	}
	if err := s.db.Store().Upsert(key, &snap); err != nil {
		return fmt.Errorf("failed to save price snapshot: %w", err)
	}
	return nil
}

// PurgeBefore deletes snapshots with an as-of date earlier than asOf
func (s *PriceSnapshotStorage) PurgeBefore(ctx context.Context, asOf string) (int, error) {
	query := badgerhold.Where("AsOf").Lt(asOf)

	count, err := s.db.Store().Count(&PriceSnapshot{}, query)
	if err != nil {
		return 0, fmt.Errorf("failed to count stale snapshots: %w", err)
	}
	if count == 0 {
		return 0, nil
	}

	if err := s.db.Store().DeleteMatching(&PriceSnapshot{}, badgerhold.Where("AsOf").Lt(asOf)); err != nil {
		return 0, fmt.Errorf("failed to purge stale snapshots: %w", err)
	}

	s.logger.Info().Str("before", asOf).Int("deleted", int(count)).Msg("Purged stale price snapshots")
	return int(count), nil
}
