package sentiment

import (
	"fmt"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"

	"github.com/ternarybob/newsquant/internal/models"
)

const (
	importanceKeywordStep = 0.2
	impactKeywordStep     = 0.3
	impactStockStep       = 0.2
	impactLengthNorm      = 1000.0
	timelinessAbsent      = 0.5
	scorePrecision        = 3
)

// Weights combines the four article factors into an overall score
type Weights struct {
	Sentiment  float64 `toml:"sentiment" yaml:"sentiment" json:"sentiment" validate:"gte=0,lte=1"`
	Importance float64 `toml:"importance" yaml:"importance" json:"importance" validate:"gte=0,lte=1"`
	Impact     float64 `toml:"impact" yaml:"impact" json:"impact" validate:"gte=0,lte=1"`
	Timeliness float64 `toml:"timeliness" yaml:"timeliness" json:"timeliness" validate:"gte=0,lte=1"`
}

// DefaultWeights is the 40/30/20/10 scheme
func DefaultWeights() Weights {
	return Weights{Sentiment: 0.4, Importance: 0.3, Impact: 0.2, Timeliness: 0.1}
}

// AlternateWeights is the sentiment-heavy 50/20/20/10 scheme
func AlternateWeights() Weights {
	return Weights{Sentiment: 0.5, Importance: 0.2, Impact: 0.2, Timeliness: 0.1}
}

// WeightsPreset resolves a named weight scheme
func WeightsPreset(name string) (Weights, error) {
	switch strings.ToLower(name) {
	case "", "default":
		return DefaultWeights(), nil
	case "alternate":
		return AlternateWeights(), nil
	default:
		return Weights{}, fmt.Errorf("unknown scoring weights preset: %s", name)
	}
}

func (w Weights) sum() float64 {
	return w.Sentiment + w.Importance + w.Impact + w.Timeliness
}

// CompositeConfig tunes article-level scoring
type CompositeConfig struct {
	Weights            Weights `toml:"weights" yaml:"weights"`
	TitleWeight        float64 `toml:"title_weight" yaml:"title_weight" validate:"gte=0,lte=1"`
	StrongKeywordBonus float64 `toml:"strong_keyword_bonus" yaml:"strong_keyword_bonus" validate:"gte=0,lte=1"`
	TitleMentionBonus  float64 `toml:"title_mention_bonus" yaml:"title_mention_bonus" validate:"gte=0,lte=1"`
}

// DefaultCompositeConfig returns default article scoring configuration
func DefaultCompositeConfig() CompositeConfig {
	return CompositeConfig{
		Weights:            DefaultWeights(),
		TitleWeight:        0.7,
		StrongKeywordBonus: 0.3,
		TitleMentionBonus:  0.2,
	}
}

// Factors are the per-article inputs to the overall score. A nil factor
// contributes nothing.
type Factors struct {
	Sentiment  *float64
	Importance *float64
	Impact     *float64
	Timeliness *float64
}

// CompositeScorer computes importance, impact, timeliness and overall scores
type CompositeScorer struct {
	config         CompositeConfig
	scorer         *Scorer
	importance     []string
	impact         []string
	strongPositive []string
	strongNegative []string
	lexicon        Lexicon
	now            func() time.Time
}

// CompositeOption configures the CompositeScorer.
type CompositeOption func(*CompositeScorer)

// WithClock sets the reference clock used for timeliness
func WithClock(now func() time.Time) CompositeOption {
	return func(c *CompositeScorer) {
		c.now = now
	}
}

// NewCompositeScorer validates the configuration and creates a scorer
func NewCompositeScorer(lex Lexicon, cfg CompositeConfig, opts ...CompositeOption) (*CompositeScorer, error) {
	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid scoring config: %w", err)
	}
	if err := validate.Struct(lex); err != nil {
		return nil, fmt.Errorf("invalid lexicon: %w", err)
	}
	if cfg.Weights.sum() <= 0 {
		return nil, fmt.Errorf("invalid scoring config: weights sum to zero")
	}

	c := &CompositeScorer{
		config:         cfg,
		scorer:         NewScorer(lex),
		importance:     lowerAll(lex.Importance),
		impact:         lowerAll(lex.Impact),
		strongPositive: lex.StrongPositive,
		strongNegative: lex.StrongNegative,
		lexicon:        lex,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Scorer returns the underlying text sentiment scorer
func (c *CompositeScorer) Scorer() *Scorer {
	return c.scorer
}

// ArticleSentiment blends title and content sentiment and applies the
// strong-keyword bonus found in the title.
func (c *CompositeScorer) ArticleSentiment(title, content string) float64 {
	tw := c.config.TitleWeight
	sentiment := c.scorer.Score(title)*tw + c.scorer.Score(content)*(1-tw)

	if containsAny(title, c.strongPositive) {
		sentiment = math.Min(1.0, sentiment+c.config.StrongKeywordBonus)
	}
	if containsAny(title, c.strongNegative) {
		sentiment = math.Max(-1.0, sentiment-c.config.StrongKeywordBonus)
	}
	return clamp(sentiment, -1, 1)
}

// Importance scores how significant the text is for the market
func (c *CompositeScorer) Importance(text, source, category string) float64 {
	if text == "" {
		return 0
	}
	count := countPresent(strings.ToLower(text), c.importance)
	keywordScore := minFloat(1.0, float64(count)*importanceKeywordStep)
	importance := keywordScore*0.4 +
		c.lexicon.sourceCredibility(source)*0.3 +
		c.lexicon.categoryWeight(category)*0.3
	return minFloat(1.0, importance)
}

// Impact scores the expected breadth of market impact
func (c *CompositeScorer) Impact(text string, relatedStocks []string) float64 {
	if text == "" {
		return 0
	}
	count := countPresent(strings.ToLower(text), c.impact)
	keywordScore := minFloat(1.0, float64(count)*impactKeywordStep)
	stockScore := minFloat(1.0, float64(countCodes(relatedStocks))*impactStockStep)
	lengthScore := minFloat(1.0, float64(utf8.RuneCountInString(text))/impactLengthNorm)
	return minFloat(1.0, keywordScore*0.4+stockScore*0.3+lengthScore*0.3)
}

// Timeliness scores recency relative to the scorer's clock
func (c *CompositeScorer) Timeliness(publishedAt time.Time) float64 {
	if publishedAt.IsZero() {
		return timelinessAbsent
	}
	hours := math.Abs(c.now().Sub(publishedAt).Hours())
	switch {
	case hours <= 24:
		return 1.0
	case hours <= 48:
		return 0.5
	case hours <= 168:
		return 0.2
	default:
		return 0.1
	}
}

// Overall combines the factors with the configured weights
func (c *CompositeScorer) Overall(f Factors) float64 {
	w := c.config.Weights
	return value(f.Sentiment)*w.Sentiment +
		value(f.Importance)*w.Importance +
		value(f.Impact)*w.Impact +
		value(f.Timeliness)*w.Timeliness
}

// ScoreArticle returns a scored copy of the article; the input is not modified
func (c *CompositeScorer) ScoreArticle(a models.Article) models.Article {
	scored := a
	scored.RelatedStocks = append([]string(nil), a.RelatedStocks...)

	fullText := a.Title + " " + a.Content
	sentiment := c.ArticleSentiment(a.Title, a.Content)

	importance := c.Importance(fullText, a.Source, a.Category)
	if mentionedInTitle(a.Title, a.RelatedStocks) {
		importance = minFloat(1.0, importance+c.config.TitleMentionBonus)
	}
	impact := c.Impact(fullText, a.RelatedStocks)
	timeliness := c.Timeliness(a.PublishedAt)

	overall := c.Overall(Factors{
		Sentiment:  &sentiment,
		Importance: &importance,
		Impact:     &impact,
		Timeliness: &timeliness,
	})

	scored.SentimentScore = models.Float(round(sentiment, scorePrecision))
	scored.ImportanceScore = round(importance, scorePrecision)
	scored.ImpactScore = round(impact, scorePrecision)
	scored.TimelinessScore = round(timeliness, scorePrecision)
	scored.OverallScore = models.Float(round(overall, scorePrecision))
	return scored
}

// mentionedInTitle reports whether any related code of length >= 2 appears in the title
func mentionedInTitle(title string, related []string) bool {
	for _, code := range related {
		code = strings.TrimSpace(code)
		if utf8.RuneCountInString(code) >= 2 && strings.Contains(title, code) {
			return true
		}
	}
	return false
}

func countCodes(related []string) int {
	n := 0
	for _, code := range related {
		if strings.TrimSpace(code) != "" {
			n++
		}
	}
	return n
}

func value(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}
