package backtest

import (
	"sort"
	"time"

	"github.com/ternarybob/newsquant/internal/models"
)

// TradingDays returns, in ascending order, the calendar days on which at
// least minNews articles carrying related stocks were published.
func TradingDays(articles []models.Article, minNews int, loc *time.Location) []time.Time {
	counts := make(map[time.Time]int)
	for _, a := range articles {
		if !a.HasTimestamp() || len(a.RelatedStocks) == 0 {
			continue
		}
		counts[models.CalendarDay(a.PublishedAt, loc)]++
	}

	days := make([]time.Time, 0, len(counts))
	for day, n := range counts {
		if n >= minNews {
			days = append(days, day)
		}
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })
	return days
}

// SignalDays drops the last maxHolding trading days, whose forward
// returns would need prices that do not exist yet.
func SignalDays(trading []time.Time, maxHolding int) []time.Time {
	if len(trading) <= maxHolding {
		return nil
	}
	return trading[:len(trading)-maxHolding]
}
