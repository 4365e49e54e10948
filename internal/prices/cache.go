package prices

import (
	"sort"
	"sync"
	"time"

	"github.com/ternarybob/newsquant/internal/models"
)

// Cache holds the bars fetched for one run. It is safe for concurrent
// writers while being populated and becomes read-only after Freeze.
type Cache struct {
	mu          sync.RWMutex
	asOf        time.Time
	bars        map[string][]models.PriceBar
	unavailable map[string]error
	frozen      bool
}

// NewCache creates an empty run-scoped cache
func NewCache(asOf time.Time) *Cache {
	return &Cache{
		asOf:        asOf,
		bars:        make(map[string][]models.PriceBar),
		unavailable: make(map[string]error),
	}
}

// AsOf returns the date the cache was populated for
func (c *Cache) AsOf() time.Time {
	return c.asOf
}

// Put stores bars for a code, sorted by date
func (c *Cache) Put(code string, bars []models.PriceBar) error {
	sorted := append([]models.PriceBar(nil), bars...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.frozen {
		return ErrCacheFrozen
	}
	c.bars[code] = sorted
	delete(c.unavailable, code)
	return nil
}

// MarkUnavailable records that a code could not be fetched
func (c *Cache) MarkUnavailable(code string, cause error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.frozen {
		return ErrCacheFrozen
	}
	c.unavailable[code] = cause
	delete(c.bars, code)
	return nil
}

// Freeze makes the cache read-only
func (c *Cache) Freeze() {
	c.mu.Lock()
	c.frozen = true
	c.mu.Unlock()
}

// Frozen reports whether Freeze has been called
func (c *Cache) Frozen() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.frozen
}

// Has reports whether the code was already resolved, successfully or not
func (c *Cache) Has(code string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.bars[code]
	_, failed := c.unavailable[code]
	return ok || failed
}

// Bars returns the bars for a code. Unavailable or empty codes report false.
func (c *Cache) Bars(code string) ([]models.PriceBar, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	bars, ok := c.bars[code]
	if !ok || len(bars) == 0 {
		return nil, false
	}
	return bars, true
}

// Unavailable returns a copy of the failed codes and their causes
func (c *Cache) Unavailable() map[string]error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]error, len(c.unavailable))
	for k, v := range c.unavailable {
		out[k] = v
	}
	return out
}

// Len returns the number of codes with bars
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.bars)
}
