package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/newsquant/internal/app"
	"github.com/ternarybob/newsquant/internal/backtest"
	"github.com/ternarybob/newsquant/internal/common"
	"github.com/ternarybob/newsquant/internal/handlers"
	"github.com/ternarybob/newsquant/internal/models"
	"github.com/ternarybob/newsquant/internal/signals"
)

type stubService struct{}

func (stubService) DailySignals(ctx context.Context, date time.Time) (signals.DayAnalysis, error) {
	return signals.DayAnalysis{Date: date, Evaluations: []signals.Evaluation{{
		Aggregate: models.StockDailyAggregate{StockCode: "005930", NewsCount: 12},
		Signal:    models.Signal{StockCode: "005930", Kind: models.SignalBuy},
	}}}, nil
}

func (stubService) StockSignal(ctx context.Context, code string, date time.Time) (signals.Evaluation, bool, error) {
	return signals.Evaluation{}, false, nil
}

func (stubService) Location() *time.Location { return time.UTC }

func (stubService) CandidateLimit() int { return 10 }

func (stubService) Thresholds() signals.Thresholds { return signals.OptimizedThresholds() }

func (stubService) Backtest(ctx context.Context, from, to time.Time, thresholds *signals.Thresholds) (*backtest.Report, error) {
	return &backtest.Report{RunID: "bt-1"}, nil
}

func (stubService) Optimize(ctx context.Context, from, to time.Time) (*backtest.OptimizeResult, error) {
	return &backtest.OptimizeResult{RunID: "opt-1", Complete: true}, nil
}

func newTestServer() *Server {
	logger := arbor.NewLogger()
	svc := stubService{}
	return New(&app.App{
		Config:          common.NewDefaultConfig(),
		Logger:          logger,
		APIHandler:      handlers.NewAPIHandler(logger, nil),
		SignalsHandler:  handlers.NewSignalsHandler(svc, logger),
		BacktestHandler: handlers.NewBacktestHandler(svc, logger),
	})
}

func TestRoutes(t *testing.T) {
	h := newTestServer().Handler()

	tests := []struct {
		method string
		path   string
		status int
	}{
		{http.MethodGet, "/api/health", http.StatusOK},
		{http.MethodGet, "/api/version", http.StatusOK},
		{http.MethodGet, "/api/signals", http.StatusOK},
		{http.MethodGet, "/api/signals/005930", http.StatusOK},
		{http.MethodGet, "/api/candidates/buy", http.StatusOK},
		{http.MethodGet, "/api/candidates/sell", http.StatusOK},
		{http.MethodGet, "/api/candidates/watch", http.StatusOK},
		{http.MethodPost, "/api/backtest", http.StatusOK},
		{http.MethodPost, "/api/optimize", http.StatusOK},
		{http.MethodGet, "/api/backtest", http.StatusMethodNotAllowed},
		{http.MethodGet, "/reports/signals", http.StatusOK},
		{http.MethodGet, "/", http.StatusFound},
		{http.MethodGet, "/api/unknown", http.StatusNotFound},
		{http.MethodOptions, "/api/signals", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
		})
	}
}

func TestReportRouteRendersHTML(t *testing.T) {
	h := newTestServer().Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/reports/signals?date=2024-03-04", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "005930")

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/reports/signals?format=markdown", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/markdown")
}

func TestRecoveryMiddleware(t *testing.T) {
	s := newTestServer()
	h := s.withMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/signals", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestAddr(t *testing.T) {
	assert.Equal(t, "localhost:8085", newTestServer().Addr())
}

func TestRequestID(t *testing.T) {
	h := newTestServer().Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Len(t, rec.Header().Get(RequestIDHeader), 36)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set(RequestIDHeader, "req-42")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "req-42", rec.Header().Get(RequestIDHeader))
}
