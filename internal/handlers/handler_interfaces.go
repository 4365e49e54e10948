package handlers

import (
	"context"
	"time"

	"github.com/ternarybob/newsquant/internal/backtest"
	"github.com/ternarybob/newsquant/internal/signals"
)

// SignalService produces daily signals for the signal endpoints
type SignalService interface {
	DailySignals(ctx context.Context, date time.Time) (signals.DayAnalysis, error)
	StockSignal(ctx context.Context, code string, date time.Time) (signals.Evaluation, bool, error)
	Location() *time.Location
	CandidateLimit() int
}

// BacktestService evaluates thresholds over a historical range
type BacktestService interface {
	Backtest(ctx context.Context, from, to time.Time, thresholds *signals.Thresholds) (*backtest.Report, error)
	Optimize(ctx context.Context, from, to time.Time) (*backtest.OptimizeResult, error)
	Thresholds() signals.Thresholds
	Location() *time.Location
}

// Pinger reports whether a backing store is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}
