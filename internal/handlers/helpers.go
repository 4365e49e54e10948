package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/ternarybob/newsquant/internal/models"
	"github.com/ternarybob/newsquant/internal/report"
)

// RequireMethod validates that the HTTP request uses the specified method.
// Returns true if the method matches, false otherwise (and writes error response).
func RequireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	return true
}

// WriteJSON writes a JSON response with the specified status code and data.
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(data)
}

// WriteError writes a standard error JSON response.
func WriteError(w http.ResponseWriter, statusCode int, message string) error {
	return WriteJSON(w, statusCode, map[string]string{
		"status": "error",
		"error":  message,
	})
}

// WriteReport writes a Markdown report in the requested format:
// "markdown" as text/markdown, anything else as an HTML page.
func WriteReport(w http.ResponseWriter, format, title, md string) error {
	if format == "markdown" || format == "md" {
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, err := w.Write([]byte(md))
		return err
	}

	page, err := report.HTML(title, md)
	if err != nil {
		return WriteError(w, http.StatusInternalServerError, err.Error())
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, err = w.Write([]byte(page))
	return err
}

// ParseDate reads a YYYY-MM-DD query parameter as a calendar day in loc.
// A missing parameter yields fallback.
func ParseDate(r *http.Request, param string, loc *time.Location, fallback time.Time) (time.Time, error) {
	value := r.URL.Query().Get(param)
	if value == "" {
		return models.CalendarDay(fallback, loc), nil
	}
	date, err := time.ParseInLocation(models.DateLayout, value, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s %q: expected YYYY-MM-DD", param, value)
	}
	return date, nil
}

// ParseLimit reads the "limit" query parameter, bounded to [1, 100]
func ParseLimit(r *http.Request, fallback int) int {
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 100 {
			return l
		}
	}
	return fallback
}
