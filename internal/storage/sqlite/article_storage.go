package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/newsquant/internal/interfaces"
	"github.com/ternarybob/newsquant/internal/models"
)

// ErrTimestampParse marks a stored published_at value that no known layout accepts
var ErrTimestampParse = errors.New("unparseable published_at")

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
}

const articleColumns = `news_id, title, content, published_at, source, category, url, related_stocks,
	sentiment_score, importance_score, impact_score, timeliness_score, overall_score`

// ArticleStore reads and writes scored articles in the news table
type ArticleStore struct {
	db       *SQLiteDB
	location *time.Location
	logger   arbor.ILogger
}

var _ interfaces.ArticleQuery = (*ArticleStore)(nil)

// NewArticleStore creates an ArticleStore. Naive timestamps are read in loc.
func NewArticleStore(db *SQLiteDB, loc *time.Location, logger arbor.ILogger) *ArticleStore {
	if loc == nil {
		loc = time.UTC
	}
	return &ArticleStore{db: db, location: loc, logger: logger}
}

// InsertArticles upserts articles keyed by their ID
func (s *ArticleStore) InsertArticles(ctx context.Context, articles []models.Article) error {
	tx, err := s.db.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO news (`+articleColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(news_id) DO UPDATE SET
			title = excluded.title,
			content = excluded.content,
			published_at = excluded.published_at,
			source = excluded.source,
			category = excluded.category,
			url = excluded.url,
			related_stocks = excluded.related_stocks,
			sentiment_score = excluded.sentiment_score,
			importance_score = excluded.importance_score,
			impact_score = excluded.impact_score,
			timeliness_score = excluded.timeliness_score,
			overall_score = excluded.overall_score,
			duplicate_count = duplicate_count + 1,
			updated_at = datetime('now')`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, a := range articles {
		var published any
		if a.HasTimestamp() {
			published = a.PublishedAt.In(s.location).Format(time.RFC3339)
		}
		_, err := stmt.ExecContext(ctx,
			a.ID, a.Title, a.Content, published, a.Source, a.Category, a.URL,
			strings.Join(a.RelatedStocks, ","),
			nullFloat(a.SentimentScore), a.ImportanceScore, a.ImpactScore, a.TimelinessScore,
			nullFloat(a.OverallScore),
		)
		if err != nil {
			return fmt.Errorf("failed to insert article %s: %w", a.ID, err)
		}
	}

	return tx.Commit()
}

// likeEscaper quotes LIKE wildcards for the ESCAPE '\' clause
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// QueryArticles returns matching articles oldest first. Rows whose
// timestamp cannot be parsed are skipped and logged.
func (s *ArticleStore) QueryArticles(ctx context.Context, filter models.ArticleFilter) ([]models.Article, error) {
	query := "SELECT " + articleColumns + " FROM news"
	var (
		where []string
		args  []any
	)

	// Coarse date prefilter on the stored string, widened by a day each
	// side for offsets; exact bounds are applied after parsing.
	if !filter.From.IsZero() {
		where = append(where, "substr(published_at, 1, 10) >= ?")
		args = append(args, filter.From.AddDate(0, 0, -1).Format(models.DateLayout))
	}
	if !filter.To.IsZero() {
		where = append(where, "substr(published_at, 1, 10) <= ?")
		args = append(args, filter.To.AddDate(0, 0, 1).Format(models.DateLayout))
	}
	if filter.Source != "" {
		where = append(where, "source = ?")
		args = append(args, filter.Source)
	}
	if filter.StockCode != "" {
		where = append(where, `(',' || REPLACE(related_stocks, ' ', '') || ',') LIKE ? ESCAPE '\'`)
		args = append(args, "%,"+likeEscaper.Replace(filter.StockCode)+",%")
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY published_at ASC, id ASC"

	rows, err := s.db.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query news: %w", err)
	}
	defer rows.Close()

	var (
		articles []models.Article
		skipped  int
	)
	for rows.Next() {
		a, err := s.scanArticle(rows)
		if errors.Is(err, ErrTimestampParse) {
			skipped++
			s.logger.Warn().Str("news_id", a.ID).Err(err).Msg("Skipping article with bad timestamp")
			continue
		}
		if err != nil {
			return nil, err
		}
		if !inRange(a, filter) {
			continue
		}
		articles = append(articles, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate news rows: %w", err)
	}

	if skipped > 0 {
		s.logger.Warn().Int("skipped", skipped).Msg("Articles skipped during query")
	}

	// Stored strings may mix offsets, so order on the parsed instant
	sort.SliceStable(articles, func(i, j int) bool {
		return articles[i].PublishedAt.Before(articles[j].PublishedAt)
	})
	if filter.Limit > 0 && len(articles) > filter.Limit {
		articles = articles[:filter.Limit]
	}
	return articles, nil
}

// CountArticles returns the number of stored articles
func (s *ArticleStore) CountArticles(ctx context.Context) (int, error) {
	var count int
	err := s.db.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM news").Scan(&count)
	return count, err
}

// Close closes the underlying database
func (s *ArticleStore) Close() error {
	return s.db.Close()
}

func (s *ArticleStore) scanArticle(rows *sql.Rows) (models.Article, error) {
	var (
		a                              models.Article
		id, content, published, source sql.NullString
		category, url, related         sql.NullString
		sentiment, overall             sql.NullFloat64
		importance, impact, timeliness sql.NullFloat64
	)
	if err := rows.Scan(&id, &a.Title, &content, &published, &source, &category, &url, &related,
		&sentiment, &importance, &impact, &timeliness, &overall); err != nil {
		return a, fmt.Errorf("failed to scan news row: %w", err)
	}

	a.ID = id.String
	a.Content = content.String
	a.Source = source.String
	a.Category = category.String
	a.URL = url.String
	a.RelatedStocks = splitCodes(related.String)
	a.ImportanceScore = importance.Float64
	a.ImpactScore = impact.Float64
	a.TimelinessScore = timeliness.Float64
	if sentiment.Valid {
		a.SentimentScore = models.Float(sentiment.Float64)
	}
	if overall.Valid {
		a.OverallScore = models.Float(overall.Float64)
	}

	if published.Valid && strings.TrimSpace(published.String) != "" {
		t, err := parseTimestamp(published.String, s.location)
		if err != nil {
			return a, err
		}
		a.PublishedAt = t
	}
	return a, nil
}

func parseTimestamp(v string, loc *time.Location) (time.Time, error) {
	v = strings.TrimSpace(v)
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, v, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrTimestampParse, v)
}

func splitCodes(s string) []string {
	var codes []string
	for _, part := range strings.Split(s, ",") {
		if code := strings.TrimSpace(part); code != "" {
			codes = append(codes, code)
		}
	}
	return codes
}

func inRange(a models.Article, filter models.ArticleFilter) bool {
	if filter.From.IsZero() && filter.To.IsZero() {
		return true
	}
	if !a.HasTimestamp() {
		return false
	}
	if !filter.From.IsZero() && a.PublishedAt.Before(filter.From) {
		return false
	}
	if !filter.To.IsZero() && !a.PublishedAt.Before(filter.To) {
		return false
	}
	return true
}

func nullFloat(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}
