package scheduler

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/newsquant/internal/common"
	"github.com/ternarybob/newsquant/internal/models"
	"github.com/ternarybob/newsquant/internal/report"
	"github.com/ternarybob/newsquant/internal/signals"
)

// ErrRunInProgress is returned when a run is requested while another is active
var ErrRunInProgress = errors.New("daily signal run already in progress")

// DefaultRunTimeout bounds one scheduled run, price fetching included
const DefaultRunTimeout = 30 * time.Minute

// DailyAnalyzer produces one calendar day's signals
type DailyAnalyzer interface {
	DailySignals(ctx context.Context, date time.Time) (signals.DayAnalysis, error)
	Location() *time.Location
	CandidateLimit() int
}

// RunResult summarises one daily signal run
type RunResult struct {
	RunID    string                    `json:"run_id"`
	Date     time.Time                 `json:"date"`
	Started  time.Time                 `json:"started"`
	Duration time.Duration             `json:"duration"`
	Stocks   int                       `json:"stocks"`
	Counts   map[models.SignalKind]int `json:"counts"`
	Files    []string                  `json:"files,omitempty"`
}

// Service runs daily signal generation on a cron schedule
type Service struct {
	analyzer  DailyAnalyzer
	cron      *cron.Cron
	logger    arbor.ILogger
	reportDir string
	timeout   time.Duration
	now       func() time.Time

	mu           sync.Mutex // Protects isProcessing and lastRun
	isProcessing bool
	running      bool
	lastRun      *RunResult
}

// Option configures a Service
type Option func(*Service)

// WithReportDir writes Markdown and HTML reports for every run into dir
func WithReportDir(dir string) Option {
	return func(s *Service) {
		s.reportDir = dir
	}
}

// WithRunTimeout overrides DefaultRunTimeout
func WithRunTimeout(d time.Duration) Option {
	return func(s *Service) {
		s.timeout = d
	}
}

// WithClock replaces time.Now when picking the run date
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// NewService creates a scheduler evaluating cron expressions in the market timezone
func NewService(analyzer DailyAnalyzer, logger arbor.ILogger, opts ...Option) *Service {
	s := &Service{
		analyzer: analyzer,
		cron:     cron.New(cron.WithLocation(analyzer.Location())),
		logger:   logger,
		timeout:  DefaultRunTimeout,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start registers the daily run and begins the scheduler
func (s *Service) Start(cronExpr string) error {
	if s.running {
		return fmt.Errorf("scheduler already running")
	}
	if err := common.ValidateSchedule(cronExpr); err != nil {
		return err
	}

	if _, err := s.cron.AddFunc(cronExpr, s.runScheduledTask); err != nil {
		return fmt.Errorf("failed to add cron job: %w", err)
	}

	s.cron.Start()
	s.running = true

	next := s.cron.Entries()[0].Next
	s.logger.Info().
		Str("cron_expr", cronExpr).
		Str("next_run", next.Format(time.RFC3339)).
		Msg("Scheduler started")
	return nil
}

// Stop halts the scheduler and waits for an active run until ctx expires
func (s *Service) Stop(ctx context.Context) error {
	if !s.running {
		return nil
	}
	s.running = false

	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.logger.Info().Msg("Scheduler stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("scheduler stop: %w", ctx.Err())
	}
}

// LastRun returns the most recent successful run, or nil
func (s *Service) LastRun() *RunResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRun
}

func (s *Service) runScheduledTask() {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().
				Str("panic", fmt.Sprintf("%v", r)).
				Str("stack", common.GetStackTrace()).
				Msg("Panic recovered in scheduled run")
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if _, err := s.RunOnce(ctx); err != nil {
		if errors.Is(err, ErrRunInProgress) {
			s.logger.Warn().Msg("Previous run still active, skipping this cycle")
			return
		}
		s.logger.Error().Err(err).Msg("Scheduled signal run failed")
	}
}

// RunOnce generates today's signals and writes reports when a report directory is set
func (s *Service) RunOnce(ctx context.Context) (*RunResult, error) {
	s.mu.Lock()
	if s.isProcessing {
		s.mu.Unlock()
		return nil, ErrRunInProgress
	}
	s.isProcessing = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.isProcessing = false
		s.mu.Unlock()
	}()

	started := s.now()
	result := &RunResult{
		RunID:   common.NewRunID(),
		Date:    models.CalendarDay(started, s.analyzer.Location()),
		Started: started,
		Counts:  make(map[models.SignalKind]int),
	}
	log := s.logger.WithCorrelationId(result.RunID)
	log.Info().Str("date", result.Date.Format(models.DateLayout)).Msg("Daily signal run started")

	analysis, err := s.analyzer.DailySignals(ctx, result.Date)
	if err != nil {
		return nil, fmt.Errorf("run %s: %w", result.RunID, err)
	}

	result.Stocks = len(analysis.Evaluations)
	for _, ev := range analysis.Evaluations {
		result.Counts[ev.Signal.Kind]++
	}

	if s.reportDir != "" {
		files, err := s.writeReports(analysis)
		if err != nil {
			return nil, fmt.Errorf("run %s: %w", result.RunID, err)
		}
		result.Files = files
	}
	result.Duration = time.Since(started)

	log.Info().
		Int("stocks", result.Stocks).
		Int("buy", result.Counts[models.SignalBuy]).
		Int("sell", result.Counts[models.SignalSell]).
		Int("watch", result.Counts[models.SignalWatch]).
		Strs("files", result.Files).
		Dur("duration", result.Duration).
		Msg("Daily signal run completed")

	s.mu.Lock()
	s.lastRun = result
	s.mu.Unlock()

	return result, nil
}

// writeReports writes signals-YYYY-MM-DD.md and .html, replacing earlier runs of the same day
func (s *Service) writeReports(analysis signals.DayAnalysis) ([]string, error) {
	if err := os.MkdirAll(s.reportDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create report directory: %w", err)
	}

	day := analysis.Date.Format(models.DateLayout)
	md := report.DailySignals(analysis, s.analyzer.CandidateLimit())
	page, err := report.HTML("Signals "+day, md)
	if err != nil {
		return nil, err
	}

	base := filepath.Join(s.reportDir, "signals-"+day)
	files := []string{base + ".md", base + ".html"}
	for i, content := range []string{md, page} {
		if err := os.WriteFile(files[i], []byte(content), 0644); err != nil {
			return nil, fmt.Errorf("failed to write report %s: %w", files[i], err)
		}
	}
	return files, nil
}
