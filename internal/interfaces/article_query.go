package interfaces

import (
	"context"

	"github.com/ternarybob/newsquant/internal/models"
)

// ArticleQuery is the read contract over stored, scored articles.
// Implementations return articles ordered by publication time, oldest first.
type ArticleQuery interface {
	// QueryArticles returns articles matching the filter
	QueryArticles(ctx context.Context, filter models.ArticleFilter) ([]models.Article, error)

	// Close releases the underlying store
	Close() error
}
