package scheduler

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/newsquant/internal/models"
	"github.com/ternarybob/newsquant/internal/signals"
)

var kst = time.FixedZone("KST", 9*3600)

type fakeAnalyzer struct {
	dates   []time.Time
	err     error
	block   chan struct{}
	started chan struct{}
}

func (f *fakeAnalyzer) DailySignals(ctx context.Context, date time.Time) (signals.DayAnalysis, error) {
	f.dates = append(f.dates, date)
	if f.block != nil {
		close(f.started)
		<-f.block
	}
	if f.err != nil {
		return signals.DayAnalysis{}, f.err
	}
	return signals.DayAnalysis{Date: date, Evaluations: []signals.Evaluation{
		{Aggregate: models.StockDailyAggregate{StockCode: "005930"}, Signal: models.Signal{Kind: models.SignalBuy}},
		{Aggregate: models.StockDailyAggregate{StockCode: "000660"}, Signal: models.Signal{Kind: models.SignalHold}},
	}}, nil
}

func (f *fakeAnalyzer) Location() *time.Location { return kst }

func (f *fakeAnalyzer) CandidateLimit() int { return 5 }

func clock() time.Time {
	// 2024-03-04 23:30 UTC is already the 5th in Seoul
	return time.Date(2024, 3, 4, 23, 30, 0, 0, time.UTC)
}

func TestRunOnce_WritesReports(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "reports")
	analyzer := &fakeAnalyzer{}
	s := NewService(analyzer, arbor.NewLogger(), WithReportDir(dir), WithClock(clock))

	result, err := s.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Regexp(t, `^run_`, result.RunID)
	assert.Equal(t, "2024-03-05", result.Date.Format(models.DateLayout))
	assert.Equal(t, 2, result.Stocks)
	assert.Equal(t, 1, result.Counts[models.SignalBuy])
	require.Len(t, analyzer.dates, 1)
	assert.True(t, analyzer.dates[0].Equal(time.Date(2024, 3, 5, 0, 0, 0, 0, kst)))

	require.Equal(t, []string{
		filepath.Join(dir, "signals-2024-03-05.md"),
		filepath.Join(dir, "signals-2024-03-05.html"),
	}, result.Files)
	md, err := os.ReadFile(result.Files[0])
	require.NoError(t, err)
	assert.Contains(t, string(md), "# Signals for 2024-03-05")

	assert.Same(t, result, s.LastRun())
}

func TestRunOnce_NoReportDir(t *testing.T) {
	s := NewService(&fakeAnalyzer{}, arbor.NewLogger())

	result, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Empty(t, result.Files)
}

func TestRunOnce_Failure(t *testing.T) {
	s := NewService(&fakeAnalyzer{err: errors.New("article store offline")}, arbor.NewLogger())

	_, err := s.RunOnce(context.Background())
	assert.ErrorContains(t, err, "article store offline")
	assert.Nil(t, s.LastRun())
}

func TestRunOnce_RejectsOverlap(t *testing.T) {
	analyzer := &fakeAnalyzer{block: make(chan struct{}), started: make(chan struct{})}
	s := NewService(analyzer, arbor.NewLogger())

	done := make(chan error, 1)
	go func() {
		_, err := s.RunOnce(context.Background())
		done <- err
	}()
	<-analyzer.started

	_, err := s.RunOnce(context.Background())
	assert.ErrorIs(t, err, ErrRunInProgress)

	close(analyzer.block)
	assert.NoError(t, <-done)
}

func TestStartStop(t *testing.T) {
	s := NewService(&fakeAnalyzer{}, arbor.NewLogger())

	assert.Error(t, s.Start("* * * * *"))
	assert.Error(t, s.Start("not a cron"))

	require.NoError(t, s.Start("30 16 * * 1-5"))
	assert.Error(t, s.Start("30 16 * * 1-5"), "already running")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, s.Stop(ctx))
	assert.NoError(t, s.Stop(ctx))
}
