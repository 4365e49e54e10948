package prices

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/newsquant/internal/models"
)

func TestCache_PutSortsAndServes(t *testing.T) {
	cache := NewCache(day(9))

	require.NoError(t, cache.Put("005930", []models.PriceBar{
		{Date: day(8), Close: 110},
		{Date: day(6), Close: 104},
	}))

	bars, ok := cache.Bars("005930")
	require.True(t, ok)
	require.Len(t, bars, 2)
	assert.Equal(t, 104.0, bars[0].Close)
	assert.Equal(t, 110.0, bars[1].Close)
	assert.True(t, cache.Has("005930"))
	assert.Equal(t, 1, cache.Len())
}

func TestCache_EmptyAndUnavailable(t *testing.T) {
	cache := NewCache(day(9))

	require.NoError(t, cache.Put("999999", nil))
	_, ok := cache.Bars("999999")
	assert.False(t, ok, "empty bars report unavailable")
	assert.True(t, cache.Has("999999"))

	cause := errors.New("boom")
	require.NoError(t, cache.MarkUnavailable("000660", cause))
	_, ok = cache.Bars("000660")
	assert.False(t, ok)
	assert.True(t, cache.Has("000660"))
	assert.Equal(t, cause, cache.Unavailable()["000660"])

	_, ok = cache.Bars("035720")
	assert.False(t, ok)
	assert.False(t, cache.Has("035720"))
}

func TestCache_Freeze(t *testing.T) {
	cache := NewCache(day(9))
	require.NoError(t, cache.Put("005930", []models.PriceBar{{Date: day(8), Close: 1}}))

	cache.Freeze()
	assert.True(t, cache.Frozen())
	assert.ErrorIs(t, cache.Put("000660", nil), ErrCacheFrozen)
	assert.ErrorIs(t, cache.MarkUnavailable("005930", errors.New("x")), ErrCacheFrozen)

	_, ok := cache.Bars("005930")
	assert.True(t, ok, "frozen cache still serves reads")
}

func day(d int) time.Time {
	return time.Date(2026, 1, d, 0, 0, 0, 0, time.UTC)
}
