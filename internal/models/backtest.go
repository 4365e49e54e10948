package models

// BacktestResult is the realised outcome of one signal over one horizon
type BacktestResult struct {
	Signal      Signal  `json:"signal"`
	HoldingDays int     `json:"holding_days"`
	Return      float64 `json:"return"`
	Hit         bool    `json:"hit"`
}
