package signals

import (
	"time"

	"github.com/ternarybob/newsquant/internal/models"
)

// PriceReactionConfig holds configuration for the price-reaction overlay
type PriceReactionConfig struct {
	LookbackDays           int     `json:"lookback_days" toml:"lookback_days" yaml:"lookback_days" validate:"gt=0"`
	AlreadyPricedThreshold float64 `json:"already_priced_threshold" toml:"already_priced_threshold" yaml:"already_priced_threshold" validate:"gt=0"`
	ContrarianThreshold    float64 `json:"contrarian_threshold" toml:"contrarian_threshold" yaml:"contrarian_threshold" validate:"gt=0"`
	DampenFactor           float64 `json:"dampen_factor" toml:"dampen_factor" yaml:"dampen_factor" validate:"gte=0,lte=1"`
	AmplifyFactor          float64 `json:"amplify_factor" toml:"amplify_factor" yaml:"amplify_factor" validate:"gte=1"`
}

// DefaultPriceReactionConfig returns default price-reaction configuration
func DefaultPriceReactionConfig() PriceReactionConfig {
	return PriceReactionConfig{
		LookbackDays:           3,
		AlreadyPricedThreshold: 0.03,
		ContrarianThreshold:    0.01,
		DampenFactor:           0.3,
		AmplifyFactor:          1.5,
	}
}

// PriceReactionAdjuster reweights sentiment by how the price already moved
type PriceReactionAdjuster struct {
	config PriceReactionConfig
	loc    *time.Location
}

// NewPriceReactionAdjuster creates a new price-reaction adjuster
func NewPriceReactionAdjuster(config PriceReactionConfig, loc *time.Location) *PriceReactionAdjuster {
	if loc == nil {
		loc = time.UTC
	}
	return &PriceReactionAdjuster{config: config, loc: loc}
}

// AdjustReturn applies the overlay for a known prior return.
// News the market already priced in is dampened; news the price moved
// against is amplified.
func (p *PriceReactionAdjuster) AdjustReturn(sentiment, priorReturn float64) (float64, models.PriceReaction) {
	c := p.config
	switch {
	case sentiment > 0 && priorReturn > c.AlreadyPricedThreshold,
		sentiment < 0 && priorReturn < -c.AlreadyPricedThreshold:
		return clamp(sentiment*c.DampenFactor, -1, 1), models.PriceReactionAlreadyPriced
	case sentiment > 0 && priorReturn < -c.ContrarianThreshold,
		sentiment < 0 && priorReturn > c.ContrarianThreshold:
		return clamp(sentiment*c.AmplifyFactor, -1, 1), models.PriceReactionContrarian
	default:
		return sentiment, models.PriceReactionNone
	}
}

// PriorReturn computes the lookback return from bars strictly before date.
// The second value is false when fewer than two usable bars exist.
func (p *PriceReactionAdjuster) PriorReturn(bars []models.PriceBar, date time.Time) (float64, bool) {
	day := models.CalendarDay(date, p.loc)
	prior := make([]models.PriceBar, 0, len(bars))
	for _, bar := range bars {
		if models.CalendarDay(bar.Date, p.loc).Before(day) {
			prior = append(prior, bar)
		}
	}
	if len(prior) < 2 {
		return 0, false
	}

	back := p.config.LookbackDays + 1
	if back > len(prior) {
		back = len(prior)
	}
	ref := prior[len(prior)-back].Close
	current := prior[len(prior)-1].Close
	if ref <= 0 {
		return 0, false
	}
	return pctReturn(ref, current), true
}

// Adjust applies the overlay using price history. Sentiment is returned
// unchanged when it is zero or history is insufficient.
func (p *PriceReactionAdjuster) Adjust(sentiment float64, bars []models.PriceBar, date time.Time) (float64, models.PriceReaction) {
	if sentiment == 0 {
		return sentiment, models.PriceReactionNone
	}
	ret, ok := p.PriorReturn(bars, date)
	if !ok {
		return sentiment, models.PriceReactionUnavailable
	}
	return p.AdjustReturn(sentiment, ret)
}
