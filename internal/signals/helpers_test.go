package signals

import (
	"fmt"
	"time"

	"github.com/ternarybob/newsquant/internal/models"
)

var testDay = time.Date(2026, 1, 9, 0, 0, 0, 0, time.UTC)

func scoredArticle(id string, at time.Time, sentiment, overall float64, codes ...string) models.Article {
	return models.Article{
		ID:             id,
		Title:          "title " + id,
		PublishedAt:    at,
		RelatedStocks:  codes,
		SentimentScore: models.Float(sentiment),
		OverallScore:   models.Float(overall),
	}
}

// dayArticles builds count articles for code spread across the day
func dayArticles(code string, day time.Time, sentiments []float64, overall float64) []models.Article {
	out := make([]models.Article, 0, len(sentiments))
	for i, s := range sentiments {
		at := day.Add(time.Duration(9+i%8) * time.Hour)
		out = append(out, scoredArticle(fmt.Sprintf("%s-%d-%d", code, day.Day(), i), at, s, overall, code))
	}
	return out
}

func repeat(v float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

type staticPrices map[string][]models.PriceBar

func (s staticPrices) Bars(code string) ([]models.PriceBar, bool) {
	bars, ok := s[code]
	return bars, ok
}
