package sqlite

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/newsquant/internal/common"
)

func TestDSN(t *testing.T) {
	config := &common.SQLiteConfig{Path: "data/news.db", CacheSizeMB: 64, BusyTimeoutMS: 5000, WALMode: true}
	assert.Equal(t,
		"data/news.db?_pragma=busy_timeout(5000)&_pragma=cache_size(-65536)&_pragma=synchronous(NORMAL)&_pragma=journal_mode(WAL)",
		dsn(config))

	config.WALMode = false
	assert.NotContains(t, dsn(config), "journal_mode")
}

func TestNewSQLiteDB_PragmasOnEveryConnection(t *testing.T) {
	config := &common.SQLiteConfig{
		Path:          t.TempDir() + "/news.db",
		CacheSizeMB:   10,
		BusyTimeoutMS: 3000,
		WALMode:       true,
	}
	db, err := NewSQLiteDB(arbor.NewLogger(), config)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	mode, err := db.Pragma(ctx, "journal_mode")
	require.NoError(t, err)
	assert.Equal(t, "wal", mode)

	// hold two connections at once so the pool cannot reuse one
	first, err := db.DB().Conn(ctx)
	require.NoError(t, err)
	defer first.Close()
	second, err := db.DB().Conn(ctx)
	require.NoError(t, err)
	defer second.Close()

	for _, conn := range []*sql.Conn{first, second} {
		var timeout int
		require.NoError(t, conn.QueryRowContext(ctx, "PRAGMA busy_timeout").Scan(&timeout))
		assert.Equal(t, 3000, timeout)
	}
}
