package models

import "time"

// PriceBar is one daily OHLCV observation
type PriceBar struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}

// LookbackWindow bounds a price request by calendar date, inclusive
type LookbackWindow struct {
	From time.Time
	To   time.Time
}

// Contains reports whether t falls within the window
func (w LookbackWindow) Contains(t time.Time) bool {
	if !w.From.IsZero() && t.Before(w.From) {
		return false
	}
	if !w.To.IsZero() && t.After(w.To) {
		return false
	}
	return true
}
