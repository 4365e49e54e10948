package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ternarybob/newsquant/internal/models"
	"github.com/ternarybob/newsquant/internal/report"
)

// render formats a result as json, markdown or html
func render(format, title string, value interface{}, md func() string) (string, error) {
	switch format {
	case "json":
		data, err := json.MarshalIndent(value, "", "  ")
		if err != nil {
			return "", err
		}
		return string(data) + "\n", nil
	case "markdown", "md":
		return md(), nil
	case "html":
		return report.HTML(title, md())
	default:
		return "", fmt.Errorf("unknown format %q: expected json, markdown or html", format)
	}
}

// writeOutput writes content to path, or stdout when path is empty
func writeOutput(path, content string) error {
	if path == "" {
		_, err := os.Stdout.WriteString(content)
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	logger.Info().Str("path", path).Msg("Report written")
	return nil
}

// parseDay parses a YYYY-MM-DD flag as a calendar day in loc; empty means fallback's day
func parseDay(value string, loc *time.Location, fallback time.Time) (time.Time, error) {
	if value == "" {
		return models.CalendarDay(fallback, loc), nil
	}
	day, err := time.ParseInLocation(models.DateLayout, value, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", value)
	}
	return day, nil
}
