package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/newsquant/internal/models"
	"github.com/ternarybob/newsquant/internal/report"
	"github.com/ternarybob/newsquant/internal/signals"
)

// DailyResponse is the JSON body of the daily signals endpoint
type DailyResponse struct {
	Date        string                    `json:"date"`
	Stocks      int                       `json:"stocks"`
	Counts      map[models.SignalKind]int `json:"counts"`
	Evaluations []signals.Evaluation      `json:"evaluations"`
}

// StockResponse is the JSON body of the per-stock endpoint
type StockResponse struct {
	Date       string             `json:"date"`
	Found      bool               `json:"found"`
	Evaluation signals.Evaluation `json:"evaluation"`
}

// CandidatesResponse is the JSON body of the candidate list endpoints
type CandidatesResponse struct {
	Date       string               `json:"date"`
	Kind       models.SignalKind    `json:"kind"`
	Candidates []signals.Evaluation `json:"candidates"`
}

// SignalsHandler serves daily signals, per-stock signals and candidate lists
type SignalsHandler struct {
	service SignalService
	logger  arbor.ILogger
	now     func() time.Time
}

// SignalsOption configures a SignalsHandler
type SignalsOption func(*SignalsHandler)

// WithClock replaces time.Now for the default date
func WithClock(now func() time.Time) SignalsOption {
	return func(h *SignalsHandler) {
		h.now = now
	}
}

func NewSignalsHandler(service SignalService, logger arbor.ILogger, opts ...SignalsOption) *SignalsHandler {
	h := &SignalsHandler{
		service: service,
		logger:  logger,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *SignalsHandler) date(w http.ResponseWriter, r *http.Request) (time.Time, bool) {
	date, err := ParseDate(r, "date", h.service.Location(), h.now())
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return time.Time{}, false
	}
	return date, true
}

func (h *SignalsHandler) analyze(w http.ResponseWriter, r *http.Request, date time.Time) (signals.DayAnalysis, bool) {
	analysis, err := h.service.DailySignals(r.Context(), date)
	if err != nil {
		h.logger.Error().Err(err).Str("date", date.Format(models.DateLayout)).Msg("Failed to generate daily signals")
		WriteError(w, http.StatusInternalServerError, "Failed to generate signals")
		return signals.DayAnalysis{}, false
	}
	return analysis, true
}

// DailyHandler returns every stock analysed on ?date= (default today).
// ?kind= filters by signal kind; ?format=markdown|html renders the report.
func (h *SignalsHandler) DailyHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	date, ok := h.date(w, r)
	if !ok {
		return
	}
	analysis, ok := h.analyze(w, r, date)
	if !ok {
		return
	}

	query := r.URL.Query()
	if format := query.Get("format"); format != "" && format != "json" {
		limit := ParseLimit(r, h.service.CandidateLimit())
		WriteReport(w, format, "Signals "+date.Format(models.DateLayout), report.DailySignals(analysis, limit))
		return
	}

	evaluations := analysis.Evaluations
	if kind := query.Get("kind"); kind != "" {
		evaluations = analysis.ByKind(models.SignalKind(strings.ToLower(kind)))
	}
	if evaluations == nil {
		evaluations = []signals.Evaluation{}
	}

	counts := make(map[models.SignalKind]int)
	for _, ev := range analysis.Evaluations {
		counts[ev.Signal.Kind]++
	}

	WriteJSON(w, http.StatusOK, DailyResponse{
		Date:        date.Format(models.DateLayout),
		Stocks:      len(analysis.Evaluations),
		Counts:      counts,
		Evaluations: evaluations,
	})
}

// StockHandler returns the signal for /api/signals/{code}
func (h *SignalsHandler) StockHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	code := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/signals/"), "/")
	if code == "" || strings.Contains(code, "/") {
		WriteError(w, http.StatusBadRequest, "Stock code is required")
		return
	}

	date, ok := h.date(w, r)
	if !ok {
		return
	}

	ev, found, err := h.service.StockSignal(r.Context(), code, date)
	if err != nil {
		h.logger.Error().Err(err).Str("code", code).Msg("Failed to evaluate stock")
		WriteError(w, http.StatusInternalServerError, "Failed to generate signal")
		return
	}

	WriteJSON(w, http.StatusOK, StockResponse{
		Date:       date.Format(models.DateLayout),
		Found:      found,
		Evaluation: ev,
	})
}

// CandidatesHandler returns the ranked candidates of one kind.
// Buy candidates rank by composite descending, sell ascending, watch by news count.
func (h *SignalsHandler) CandidatesHandler(kind models.SignalKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !RequireMethod(w, r, "GET") {
			return
		}

		date, ok := h.date(w, r)
		if !ok {
			return
		}
		analysis, ok := h.analyze(w, r, date)
		if !ok {
			return
		}

		limit := ParseLimit(r, h.service.CandidateLimit())
		var candidates []signals.Evaluation
		switch kind {
		case models.SignalBuy:
			candidates = analysis.BuyCandidates(limit)
		case models.SignalSell:
			candidates = analysis.SellCandidates(limit)
		default:
			candidates = analysis.WatchCandidates(limit)
		}
		if candidates == nil {
			candidates = []signals.Evaluation{}
		}

		WriteJSON(w, http.StatusOK, CandidatesResponse{
			Date:       date.Format(models.DateLayout),
			Kind:       kind,
			Candidates: candidates,
		})
	}
}
