package models

import "time"

// SignalKind is the discrete trading recommendation
type SignalKind string

const (
	SignalBuy   SignalKind = "buy"
	SignalSell  SignalKind = "sell"
	SignalWatch SignalKind = "watch"
	SignalHold  SignalKind = "hold"
)

// IsActionable reports whether the kind is a directional call
func (k SignalKind) IsActionable() bool {
	return k == SignalBuy || k == SignalSell
}

// Signal is the classifier output for one stock on one day
type Signal struct {
	StockCode  string     `json:"stock_code"`
	Date       time.Time  `json:"date"`
	Kind       SignalKind `json:"kind"`
	Confidence float64    `json:"confidence"`
	Reason     string     `json:"reason"`
}
