package eodhd

import (
	"time"

	"github.com/ternarybob/newsquant/internal/models"
)

// EODData represents a single day's end-of-day price data.
type EODData struct {
	Date          time.Time `json:"-"`
	DateStr       string    `json:"date"`
	Open          float64   `json:"open"`
	High          float64   `json:"high"`
	Low           float64   `json:"low"`
	Close         float64   `json:"close"`
	AdjustedClose float64   `json:"adjusted_close"`
	Volume        int64     `json:"volume"`
}

// EODResponse is a slice of EODData.
type EODResponse []EODData

// Bars converts the response into price bars, dropping rows with unparsed dates
func (r EODResponse) Bars(adjusted bool) []models.PriceBar {
	bars := make([]models.PriceBar, 0, len(r))
	for _, d := range r {
		if d.Date.IsZero() {
			continue
		}
		closePrice := d.Close
		if adjusted && d.AdjustedClose > 0 {
			closePrice = d.AdjustedClose
		}
		bars = append(bars, models.PriceBar{
			Date:   d.Date,
			Open:   d.Open,
			High:   d.High,
			Low:    d.Low,
			Close:  closePrice,
			Volume: d.Volume,
		})
	}
	return bars
}
