package backtest

import (
	"time"

	"github.com/ternarybob/newsquant/internal/models"
)

// ForwardReturns computes the return for each holding period of a
// position opened at the first bar strictly after date. Entry is that
// bar's open; exit is the close of the h-th bar counting the entry bar
// as the first. Horizons without enough bars are absent, and nothing is
// returned when there is no usable entry.
func ForwardReturns(bars []models.PriceBar, date time.Time, holding []int, loc *time.Location) map[int]float64 {
	day := models.CalendarDay(date, loc)
	entry := -1
	for i, bar := range bars {
		if models.CalendarDay(bar.Date, loc).After(day) {
			entry = i
			break
		}
	}
	if entry < 0 || bars[entry].Open <= 0 {
		return nil
	}

	open := bars[entry].Open
	out := make(map[int]float64, len(holding))
	for _, h := range holding {
		exit := entry + h - 1
		if h < 1 || exit >= len(bars) {
			continue
		}
		out[h] = (bars[exit].Close - open) / open
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
