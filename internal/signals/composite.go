package signals

import (
	"fmt"
	"strings"

	"github.com/ternarybob/newsquant/internal/models"
)

// CompositeWeights blend an aggregate into a single ranking score
type CompositeWeights struct {
	Sentiment      float64 `json:"sentiment" toml:"sentiment" yaml:"sentiment" validate:"gte=0,lte=1"`
	Overall        float64 `json:"overall" toml:"overall" yaml:"overall" validate:"gte=0,lte=1"`
	NewsVolume     float64 `json:"news_volume" toml:"news_volume" yaml:"news_volume" validate:"gte=0,lte=1"`
	VolumeSignal   float64 `json:"volume_signal" toml:"volume_signal" yaml:"volume_signal" validate:"gte=0,lte=1"`
	NewsSaturation int     `json:"news_saturation" toml:"news_saturation" yaml:"news_saturation" validate:"gt=0"`
}

// DefaultCompositeWeights includes the volume overlay
func DefaultCompositeWeights() CompositeWeights {
	return CompositeWeights{
		Sentiment:      0.35,
		Overall:        0.35,
		NewsVolume:     0.15,
		VolumeSignal:   0.15,
		NewsSaturation: 10,
	}
}

// SimpleCompositeWeights ignores the volume overlay
func SimpleCompositeWeights() CompositeWeights {
	return CompositeWeights{
		Sentiment:      0.4,
		Overall:        0.4,
		NewsVolume:     0.2,
		NewsSaturation: 10,
	}
}

// CompositePreset resolves a named weight scheme
func CompositePreset(name string) (CompositeWeights, error) {
	switch strings.ToLower(name) {
	case "", "default":
		return DefaultCompositeWeights(), nil
	case "simple":
		return SimpleCompositeWeights(), nil
	default:
		return CompositeWeights{}, fmt.Errorf("unknown composite weights preset: %s", name)
	}
}

// Composite scores an aggregate for ranking. Absent means contribute nothing.
func (w CompositeWeights) Composite(agg models.StockDailyAggregate) float64 {
	saturation := w.NewsSaturation
	if saturation <= 0 {
		saturation = 10
	}
	newsScore := minFloat(float64(agg.NewsCount)/float64(saturation), 1.0)
	return deref(agg.Sentiment())*w.Sentiment +
		deref(agg.AvgOverall)*w.Overall +
		newsScore*w.NewsVolume +
		agg.VolumeSignal*w.VolumeSignal
}
