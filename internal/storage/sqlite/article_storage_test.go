package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/newsquant/internal/common"
	"github.com/ternarybob/newsquant/internal/models"
)

var seoul = time.FixedZone("KST", 9*60*60)

func setupArticleStore(t *testing.T) *ArticleStore {
	t.Helper()
	config := &common.SQLiteConfig{
		Path:          t.TempDir() + "/news.db",
		CacheSizeMB:   10,
		BusyTimeoutMS: 5000,
	}

	logger := arbor.NewLogger()
	db, err := NewSQLiteDB(logger, config)
	require.NoError(t, err)

	store := NewArticleStore(db, seoul, logger)
	t.Cleanup(func() { store.Close() })
	return store
}

func kst(day, hour int) time.Time {
	return time.Date(2026, 1, day, hour, 0, 0, 0, seoul)
}

func fixtureArticles() []models.Article {
	return []models.Article{
		{
			ID: "n1", Title: "삼성전자 실적 호조", PublishedAt: kst(9, 10), Source: "연합뉴스", Category: "경제",
			RelatedStocks: []string{"005930"}, SentimentScore: models.Float(0.6), ImportanceScore: 0.8,
			OverallScore: models.Float(0.5),
		},
		{
			ID: "n2", Title: "SK하이닉스 급등", PublishedAt: kst(9, 8), Source: "한국경제",
			RelatedStocks: []string{"000660", "005930"}, SentimentScore: models.Float(0.4),
		},
		{
			ID: "n3", Title: "전일 시황", PublishedAt: kst(8, 15), Source: "연합뉴스",
			RelatedStocks: []string{"035720"},
		},
		{
			ID: "n4", Title: "시각 없는 기사", Source: "연합뉴스",
		},
	}
}

func TestArticleStore_RoundTrip(t *testing.T) {
	store := setupArticleStore(t)
	ctx := context.Background()
	require.NoError(t, store.InsertArticles(ctx, fixtureArticles()))

	count, err := store.CountArticles(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, count)

	articles, err := store.QueryArticles(ctx, models.ArticleFilter{})
	require.NoError(t, err)
	require.Len(t, articles, 4)

	assert.Equal(t, "n4", articles[0].ID, "absent timestamp sorts first")
	assert.False(t, articles[0].HasTimestamp())
	assert.Equal(t, []string{"n3", "n2", "n1"}, []string{articles[1].ID, articles[2].ID, articles[3].ID})

	n1 := articles[3]
	require.NotNil(t, n1.SentimentScore)
	assert.Equal(t, 0.6, *n1.SentimentScore)
	assert.Equal(t, 0.8, n1.ImportanceScore)
	assert.True(t, n1.PublishedAt.Equal(kst(9, 10)))
	assert.Nil(t, articles[1].SentimentScore)
	assert.Nil(t, articles[1].OverallScore)
	assert.Equal(t, []string{"000660", "005930"}, articles[2].RelatedStocks)
}

func TestArticleStore_Filters(t *testing.T) {
	store := setupArticleStore(t)
	ctx := context.Background()
	require.NoError(t, store.InsertArticles(ctx, fixtureArticles()))

	tests := []struct {
		name   string
		filter models.ArticleFilter
		want   []string
	}{
		{"single day", models.ArticleFilter{From: kst(9, 0), To: kst(10, 0)}, []string{"n2", "n1"}},
		{"stock", models.ArticleFilter{StockCode: "005930"}, []string{"n2", "n1"}},
		{"stock not substring", models.ArticleFilter{StockCode: "00593"}, nil},
		{"stock percent is literal", models.ArticleFilter{StockCode: "00%"}, nil},
		{"stock underscore is literal", models.ArticleFilter{StockCode: "00593_"}, nil},
		{"source", models.ArticleFilter{Source: "연합뉴스", From: kst(8, 0), To: kst(10, 0)}, []string{"n3", "n1"}},
		{"limit", models.ArticleFilter{From: kst(8, 0), To: kst(10, 0), Limit: 1}, []string{"n3"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			articles, err := store.QueryArticles(ctx, tt.filter)
			require.NoError(t, err)
			var ids []string
			for _, a := range articles {
				ids = append(ids, a.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestArticleStore_SkipsBadTimestamps(t *testing.T) {
	store := setupArticleStore(t)
	ctx := context.Background()
	require.NoError(t, store.InsertArticles(ctx, fixtureArticles()[:1]))

	_, err := store.db.DB().ExecContext(ctx,
		`INSERT INTO news (news_id, title, published_at, related_stocks) VALUES ('bad', 'x', 'yesterday', '005930')`)
	require.NoError(t, err)
	_, err = store.db.DB().ExecContext(ctx,
		`INSERT INTO news (news_id, title, published_at, related_stocks) VALUES ('naive', 'y', '2026-01-09 11:30:00', '005930')`)
	require.NoError(t, err)

	articles, err := store.QueryArticles(ctx, models.ArticleFilter{StockCode: "005930"})
	require.NoError(t, err)
	require.Len(t, articles, 2)
	assert.Equal(t, "n1", articles[0].ID)
	assert.Equal(t, "naive", articles[1].ID)
	assert.True(t, articles[1].PublishedAt.Equal(time.Date(2026, 1, 9, 11, 30, 0, 0, seoul)))
}

func TestArticleStore_UpsertCountsDuplicates(t *testing.T) {
	store := setupArticleStore(t)
	ctx := context.Background()
	articles := fixtureArticles()[:1]
	require.NoError(t, store.InsertArticles(ctx, articles))

	articles[0].Title = "삼성전자 실적 호조 (종합)"
	require.NoError(t, store.InsertArticles(ctx, articles))

	var dup int
	require.NoError(t, store.db.DB().QueryRowContext(ctx,
		"SELECT duplicate_count FROM news WHERE news_id = 'n1'").Scan(&dup))
	assert.Equal(t, 1, dup)

	got, err := store.QueryArticles(ctx, models.ArticleFilter{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "삼성전자 실적 호조 (종합)", got[0].Title)
}

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Time
		wantErr bool
	}{
		{"2026-01-09T10:00:00+09:00", kst(9, 10), false},
		{"2026-01-09T01:00:00Z", kst(9, 10), false},
		{"2026-01-09T10:00:00", kst(9, 10), false},
		{"2026-01-09 10:00:00.123456", kst(9, 10).Add(123456 * time.Microsecond), false},
		{"2026-01-09", kst(9, 0), false},
		{"09/01/2026", time.Time{}, true},
	}
	for _, tt := range tests {
		got, err := parseTimestamp(tt.in, seoul)
		if tt.wantErr {
			assert.ErrorIs(t, err, ErrTimestampParse, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.True(t, tt.want.Equal(got), "%s: got %v", tt.in, got)
	}
}
