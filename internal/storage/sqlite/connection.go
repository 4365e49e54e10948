package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/newsquant/internal/common"
	_ "modernc.org/sqlite"
)

// SQLiteDB is the article store shared with the ingestion pipeline. The
// pipeline appends articles while the engine only reads them.
type SQLiteDB struct {
	db     *sql.DB
	logger arbor.ILogger
	config *common.SQLiteConfig
}

// NewSQLiteDB opens the article database and applies migrations
func NewSQLiteDB(logger arbor.ILogger, config *common.SQLiteConfig) (*SQLiteDB, error) {
	if err := os.MkdirAll(filepath.Dir(config.Path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dsn(config))
	if err != nil {
		return nil, fmt.Errorf("failed to open article database: %w", err)
	}

	s := &SQLiteDB{
		db:     db,
		logger: logger,
		config: config,
	}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	mode, err := s.Pragma(context.Background(), "journal_mode")
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to read journal mode: %w", err)
	}

	logger.Info().
		Str("path", config.Path).
		Str("journal_mode", mode).
		Msg("Article database opened")
	return s, nil
}

// dsn carries the pragmas as _pragma parameters so every pooled
// connection gets them, not only the first one.
func dsn(config *common.SQLiteConfig) string {
	pragmas := []string{
		// an ingestion run can hold the write lock for a whole batch
		fmt.Sprintf("busy_timeout(%d)", config.BusyTimeoutMS),
		fmt.Sprintf("cache_size(-%d)", config.CacheSizeMB*1024), // KiB
		"synchronous(NORMAL)",
	}
	if config.WALMode {
		// backtests read a long date range while new articles keep arriving
		pragmas = append(pragmas, "journal_mode(WAL)")
	}

	params := make([]string, len(pragmas))
	for i, p := range pragmas {
		params[i] = "_pragma=" + p
	}
	return config.Path + "?" + strings.Join(params, "&")
}

// Pragma reads the current value of a pragma
func (s *SQLiteDB) Pragma(ctx context.Context, name string) (string, error) {
	var value string
	if err := s.db.QueryRowContext(ctx, "PRAGMA "+name).Scan(&value); err != nil {
		return "", err
	}
	return value, nil
}

// DB returns the underlying database connection
func (s *SQLiteDB) DB() *sql.DB {
	return s.db
}

func (s *SQLiteDB) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Ping verifies the database connection
func (s *SQLiteDB) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
