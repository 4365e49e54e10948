package signals

import (
	"sort"
	"time"

	"github.com/ternarybob/newsquant/internal/models"
)

// VolumeConfig holds configuration for news-volume anomaly detection
type VolumeConfig struct {
	WindowDays        int     `json:"window_days" toml:"window_days" yaml:"window_days" validate:"gt=0"`
	OverheatedRatio   float64 `json:"overheated_ratio" toml:"overheated_ratio" yaml:"overheated_ratio" validate:"gtfield=ElevatedRatio"`
	ElevatedRatio     float64 `json:"elevated_ratio" toml:"elevated_ratio" yaml:"elevated_ratio" validate:"gtfield=QuietRatio"`
	QuietRatio        float64 `json:"quiet_ratio" toml:"quiet_ratio" yaml:"quiet_ratio" validate:"gt=0"`
	OverheatedPenalty float64 `json:"overheated_penalty" toml:"overheated_penalty" yaml:"overheated_penalty"`
	ElevatedPenalty   float64 `json:"elevated_penalty" toml:"elevated_penalty" yaml:"elevated_penalty"`
	QuietBonus        float64 `json:"quiet_bonus" toml:"quiet_bonus" yaml:"quiet_bonus"`
}

// DefaultVolumeConfig returns default volume configuration
func DefaultVolumeConfig() VolumeConfig {
	return VolumeConfig{
		WindowDays:        20,
		OverheatedRatio:   3.0,
		ElevatedRatio:     2.0,
		QuietRatio:        0.5,
		OverheatedPenalty: -0.5,
		ElevatedPenalty:   -0.2,
		QuietBonus:        0.1,
	}
}

// VolumeHistory counts daily mentions per stock. It is built once per
// session and read-only afterwards.
type VolumeHistory struct {
	loc   *time.Location
	daily map[string]map[time.Time]int
	days  map[string][]time.Time // ascending
}

// NewVolumeHistory builds mention counts from articles. Codes rejected by
// valid are skipped; a nil valid accepts every code.
func NewVolumeHistory(articles []models.Article, loc *time.Location, valid func(string) bool) *VolumeHistory {
	if loc == nil {
		loc = time.UTC
	}
	h := &VolumeHistory{
		loc:   loc,
		daily: make(map[string]map[time.Time]int),
		days:  make(map[string][]time.Time),
	}
	for _, article := range articles {
		if !article.HasTimestamp() {
			continue
		}
		day := models.CalendarDay(article.PublishedAt, loc)
		seen := make(map[string]bool, len(article.RelatedStocks))
		for _, code := range article.RelatedStocks {
			if seen[code] || (valid != nil && !valid(code)) {
				continue
			}
			seen[code] = true
			counts, ok := h.daily[code]
			if !ok {
				counts = make(map[time.Time]int)
				h.daily[code] = counts
			}
			if counts[day] == 0 {
				h.days[code] = append(h.days[code], day)
			}
			counts[day]++
		}
	}
	for code := range h.days {
		days := h.days[code]
		sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })
	}
	return h
}

// Count returns the number of mentions of code on date
func (h *VolumeHistory) Count(code string, date time.Time) int {
	return h.daily[code][models.CalendarDay(date, h.loc)]
}

// TrailingAverage averages the stock's mention counts over its most recent
// news days strictly before date, up to window days.
func (h *VolumeHistory) TrailingAverage(code string, date time.Time, window int) (float64, bool) {
	days := h.days[code]
	day := models.CalendarDay(date, h.loc)

	// first index at or after day
	end := sort.Search(len(days), func(i int) bool { return !days[i].Before(day) })
	start := end - window
	if start < 0 {
		start = 0
	}
	if end == start {
		return 0, false
	}

	total := 0
	for _, d := range days[start:end] {
		total += h.daily[code][d]
	}
	return float64(total) / float64(end-start), true
}

// VolumeAnomalyDetector turns news-count spikes into a composite adjustment
type VolumeAnomalyDetector struct {
	config VolumeConfig
}

// NewVolumeAnomalyDetector creates a new volume anomaly detector
func NewVolumeAnomalyDetector(config VolumeConfig) *VolumeAnomalyDetector {
	return &VolumeAnomalyDetector{config: config}
}

// Signal maps today's count against its trailing average.
// Overheated coverage is penalised, unusually quiet coverage gets a small bonus.
func (d *VolumeAnomalyDetector) Signal(todayCount int, avg float64) float64 {
	if avg <= 0 {
		return 0
	}
	ratio := float64(todayCount) / avg
	switch {
	case ratio >= d.config.OverheatedRatio:
		return d.config.OverheatedPenalty
	case ratio >= d.config.ElevatedRatio:
		return d.config.ElevatedPenalty
	case ratio < d.config.QuietRatio:
		return d.config.QuietBonus
	default:
		return 0
	}
}

// Detect looks up the trailing average in history and computes the signal
func (d *VolumeAnomalyDetector) Detect(history *VolumeHistory, code string, date time.Time, todayCount int) float64 {
	if history == nil {
		return 0
	}
	avg, ok := history.TrailingAverage(code, date, d.config.WindowDays)
	if !ok {
		return 0
	}
	return d.Signal(todayCount, avg)
}
