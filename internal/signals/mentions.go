package signals

import (
	"sort"
	"time"

	"github.com/ternarybob/newsquant/internal/models"
)

// MentionCounts counts articles per valid stock code, each article
// counted once per code. When days are given only articles published on
// those calendar days are counted.
func (a *DailyAggregator) MentionCounts(articles []models.Article, days ...time.Time) map[string]int {
	include := make(map[time.Time]bool, len(days))
	for _, d := range days {
		include[models.CalendarDay(d, a.loc)] = true
	}

	counts := make(map[string]int)
	for _, article := range articles {
		if len(include) > 0 {
			if !article.HasTimestamp() || !include[models.CalendarDay(article.PublishedAt, a.loc)] {
				continue
			}
		}
		seen := make(map[string]bool, len(article.RelatedStocks))
		for _, code := range article.RelatedStocks {
			if seen[code] || !a.ValidCode(code) {
				continue
			}
			seen[code] = true
			counts[code]++
		}
	}
	return counts
}

// MostMentioned returns up to limit codes ordered by mention count
// descending, ties broken by code. A limit of zero returns all codes.
func MostMentioned(counts map[string]int, limit int) []string {
	codes := make([]string, 0, len(counts))
	for code := range counts {
		codes = append(codes, code)
	}
	sort.Slice(codes, func(i, j int) bool {
		if counts[codes[i]] != counts[codes[j]] {
			return counts[codes[i]] > counts[codes[j]]
		}
		return codes[i] < codes[j]
	})
	if limit > 0 && len(codes) > limit {
		codes = codes[:limit]
	}
	return codes
}
