package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/newsquant/internal/models"
	"github.com/ternarybob/newsquant/internal/report"
	"github.com/ternarybob/newsquant/internal/services/analysis"
	"github.com/ternarybob/newsquant/internal/signals"
)

// DefaultBacktestDays is the range used when ?from= is omitted
const DefaultBacktestDays = 90

// BacktestHandler runs backtests and threshold optimization on demand
type BacktestHandler struct {
	service BacktestService
	logger  arbor.ILogger
	now     func() time.Time
}

func NewBacktestHandler(service BacktestService, logger arbor.ILogger) *BacktestHandler {
	return &BacktestHandler{
		service: service,
		logger:  logger,
		now:     time.Now,
	}
}

// dateRange reads ?from= and ?to=; to defaults to today, from to 90 days earlier
func (h *BacktestHandler) dateRange(w http.ResponseWriter, r *http.Request) (time.Time, time.Time, bool) {
	loc := h.service.Location()
	to, err := ParseDate(r, "to", loc, h.now())
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return time.Time{}, time.Time{}, false
	}
	from, err := ParseDate(r, "from", loc, to.AddDate(0, 0, -DefaultBacktestDays))
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return time.Time{}, time.Time{}, false
	}
	return from, to, true
}

func (h *BacktestHandler) writeFailure(w http.ResponseWriter, err error, msg string) {
	if errors.Is(err, analysis.ErrInvalidRange) {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.logger.Error().Err(err).Msg(msg)
	WriteError(w, http.StatusInternalServerError, msg)
}

// RunHandler backtests one threshold set. An optional JSON body is
// overlaid on the active thresholds.
func (h *BacktestHandler) RunHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	from, to, ok := h.dateRange(w, r)
	if !ok {
		return
	}

	var thresholds *signals.Thresholds
	if r.Body != nil {
		body := h.service.Thresholds()
		err := json.NewDecoder(r.Body).Decode(&body)
		switch {
		case err == nil:
			if err := body.Validate(); err != nil {
				WriteError(w, http.StatusBadRequest, err.Error())
				return
			}
			thresholds = &body
		case errors.Is(err, io.EOF):
		default:
			WriteError(w, http.StatusBadRequest, "Invalid thresholds body: "+err.Error())
			return
		}
	}

	result, err := h.service.Backtest(r.Context(), from, to, thresholds)
	if err != nil {
		h.writeFailure(w, err, "Backtest failed")
		return
	}

	if format := r.URL.Query().Get("format"); format != "" && format != "json" {
		WriteReport(w, format, "Backtest "+from.Format(models.DateLayout)+" to "+to.Format(models.DateLayout), report.Backtest(result))
		return
	}
	WriteJSON(w, http.StatusOK, result)
}

// OptimizeHandler grid-searches thresholds. A deadline hit mid-search
// still returns the partial rankings with complete=false.
func (h *BacktestHandler) OptimizeHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	from, to, ok := h.dateRange(w, r)
	if !ok {
		return
	}

	result, err := h.service.Optimize(r.Context(), from, to)
	if err != nil && !(result != nil && errors.Is(err, context.DeadlineExceeded)) {
		h.writeFailure(w, err, "Optimization failed")
		return
	}
	if err != nil {
		h.logger.Warn().Err(err).Str("run_id", result.RunID).Msg("Optimization stopped early, returning partial results")
	}

	if format := r.URL.Query().Get("format"); format != "" && format != "json" {
		WriteReport(w, format, "Optimization "+from.Format(models.DateLayout)+" to "+to.Format(models.DateLayout), report.Optimization(result))
		return
	}
	WriteJSON(w, http.StatusOK, result)
}
