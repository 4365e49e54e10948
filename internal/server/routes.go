package server

import (
	"net/http"

	"github.com/ternarybob/newsquant/internal/handlers"
	"github.com/ternarybob/newsquant/internal/models"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// API routes - Signals
	mux.HandleFunc("/api/signals", s.app.SignalsHandler.DailyHandler) // GET ?date=&kind=&format=
	mux.HandleFunc("/api/signals/", s.app.SignalsHandler.StockHandler) // GET /{code}?date=
	mux.HandleFunc("/api/candidates/buy", s.app.SignalsHandler.CandidatesHandler(models.SignalBuy))
	mux.HandleFunc("/api/candidates/sell", s.app.SignalsHandler.CandidatesHandler(models.SignalSell))
	mux.HandleFunc("/api/candidates/watch", s.app.SignalsHandler.CandidatesHandler(models.SignalWatch))

	// API routes - Backtesting
	mux.HandleFunc("/api/backtest", s.app.BacktestHandler.RunHandler)       // POST ?from=&to=, optional thresholds body
	mux.HandleFunc("/api/optimize", s.app.BacktestHandler.OptimizeHandler) // POST ?from=&to=

	// Rendered reports
	mux.HandleFunc("/reports/signals", s.handleReport(s.app.SignalsHandler.DailyHandler))

	// API routes - System
	mux.HandleFunc("/api/version", s.app.APIHandler.VersionHandler)
	mux.HandleFunc("/api/health", s.app.APIHandler.HealthHandler)

	mux.HandleFunc("/", s.handleRoot)

	return mux
}

// handleRoot redirects the bare root to today's report; everything else is a JSON 404
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/" {
		if handlers.RequireMethod(w, r, "GET") {
			http.Redirect(w, r, "/reports/signals", http.StatusFound)
		}
		return
	}
	s.app.APIHandler.NotFoundHandler(w, r)
}

// handleReport serves a handler's HTML rendering unless ?format= asks otherwise
func (s *Server) handleReport(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		if query.Get("format") == "" {
			query.Set("format", "html")
			r.URL.RawQuery = query.Encode()
		}
		next(w, r)
	}
}
