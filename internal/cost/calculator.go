// Package cost prices the external API usage of an analysis.
package cost

import (
	"go.uber.org/zap"

	"github.com/sells-group/esg-research/pkg/anthropic"
)

// Rates holds per-provider pricing configuration.
type Rates struct {
	Anthropic  map[string]ModelRate `yaml:"anthropic" mapstructure:"anthropic"`
	Perplexity PerplexityRate       `yaml:"perplexity" mapstructure:"perplexity"`
	Firecrawl  FirecrawlRate        `yaml:"firecrawl" mapstructure:"firecrawl"`
}

// ModelRate holds per-model token pricing (per million tokens).
type ModelRate struct {
	Input         float64 `yaml:"input" mapstructure:"input"`
	Output        float64 `yaml:"output" mapstructure:"output"`
	CacheWriteMul float64 `yaml:"cache_write_mul" mapstructure:"cache_write_mul"`
	CacheReadMul  float64 `yaml:"cache_read_mul" mapstructure:"cache_read_mul"`
}

// PerplexityRate holds Perplexity pricing.
type PerplexityRate struct {
	PerQuery float64 `yaml:"per_query" mapstructure:"per_query"`
}

// FirecrawlRate holds Firecrawl pricing. A scrape costs one credit.
type FirecrawlRate struct {
	PlanMonthly     float64 `yaml:"plan_monthly" mapstructure:"plan_monthly"`
	CreditsIncluded float64 `yaml:"credits_included" mapstructure:"credits_included"`
}

// Usage is what one analysis consumed.
type Usage struct {
	Model         string
	Tokens        anthropic.TokenUsage
	SearchQueries int
	ScrapeCredits int
}

// Breakdown is the priced Usage in USD.
type Breakdown struct {
	Anthropic  float64 `json:"anthropic_usd"`
	Perplexity float64 `json:"perplexity_usd"`
	Firecrawl  float64 `json:"firecrawl_usd"`
	Total      float64 `json:"total_usd"`
}

// Calculator computes costs for API usage.
type Calculator struct {
	rates Rates
}

// NewCalculator creates a Calculator with the given rates.
func NewCalculator(rates Rates) *Calculator {
	return &Calculator{rates: rates}
}

// Claude computes the cost of Anthropic token usage. Models without a
// configured rate use the client's built-in price table.
func (c *Calculator) Claude(model string, u anthropic.TokenUsage) float64 {
	rate, ok := c.rates.Anthropic[model]
	if !ok {
		return u.EstimateCost(model)
	}

	inCost := (float64(u.InputTokens) / 1e6) * rate.Input
	outCost := (float64(u.OutputTokens) / 1e6) * rate.Output
	cwCost := (float64(u.CacheCreationInputTokens) / 1e6) * rate.Input * rate.CacheWriteMul
	crCost := (float64(u.CacheReadInputTokens) / 1e6) * rate.Input * rate.CacheReadMul

	return inCost + outCost + cwCost + crCost
}

// PerplexityQuery returns the flat cost per Perplexity query.
func (c *Calculator) PerplexityQuery() float64 {
	return c.rates.Perplexity.PerQuery
}

// FirecrawlCredits prices n scrape credits at the plan's effective rate.
func (c *Calculator) FirecrawlCredits(n int) float64 {
	if c.rates.Firecrawl.CreditsIncluded <= 0 {
		return 0
	}
	return float64(n) * c.rates.Firecrawl.PlanMonthly / c.rates.Firecrawl.CreditsIncluded
}

// Breakdown prices u.
func (c *Calculator) Breakdown(u Usage) Breakdown {
	b := Breakdown{
		Anthropic:  c.Claude(u.Model, u.Tokens),
		Perplexity: float64(u.SearchQueries) * c.PerplexityQuery(),
		Firecrawl:  c.FirecrawlCredits(u.ScrapeCredits),
	}
	b.Total = b.Anthropic + b.Perplexity + b.Firecrawl
	return b
}

// Log writes b as a structured cost attribution line.
func (b Breakdown) Log(company string, u Usage) {
	zap.L().Info("cost attribution",
		zap.String("company", company),
		zap.String("model", u.Model),
		zap.Int64("input_tokens", u.Tokens.InputTokens),
		zap.Int64("output_tokens", u.Tokens.OutputTokens),
		zap.Int("search_queries", u.SearchQueries),
		zap.Int("scrape_credits", u.ScrapeCredits),
		zap.Float64("anthropic_usd", b.Anthropic),
		zap.Float64("perplexity_usd", b.Perplexity),
		zap.Float64("firecrawl_usd", b.Firecrawl),
		zap.Float64("total_usd", b.Total),
	)
}

// DefaultRates returns the default pricing rates.
func DefaultRates() Rates {
	return Rates{
		Anthropic: map[string]ModelRate{
			"claude-haiku-4-5": {
				Input: 1.00, Output: 5.00,
				CacheWriteMul: 1.25, CacheReadMul: 0.1,
			},
			"claude-sonnet-4-5": {
				Input: 3.00, Output: 15.00,
				CacheWriteMul: 1.25, CacheReadMul: 0.1,
			},
		},
		Perplexity: PerplexityRate{PerQuery: 0.005},
		Firecrawl:  FirecrawlRate{PlanMonthly: 19.00, CreditsIncluded: 3000},
	}
}
