// Package extract turns scraped research into validated ESG metrics with a
// language model.
package extract

import (
	"context"

	"go.uber.org/zap"

	"github.com/sells-group/esg-research/internal/llm"
	"github.com/sells-group/esg-research/internal/model"
	"github.com/sells-group/esg-research/internal/scorer"
	"github.com/sells-group/esg-research/pkg/anthropic"
)

// Generation settings for extraction.
const (
	Temperature = 0.2
	MaxTokens   = 2000
)

// Result holds the metrics for one company and what producing them cost.
type Result struct {
	Metrics []model.Metric
	Usage   anthropic.TokenUsage
	Model   string
	// Fallback is set when the neutral default set was substituted.
	Fallback bool
}

// Extractor asks a Completer for the fifteen ESG metrics.
type Extractor struct {
	llm llm.Completer
}

// New returns an Extractor using c.
func New(c llm.Completer) *Extractor {
	return &Extractor{llm: c}
}

type response struct {
	Metrics []map[string]any `json:"metrics"`
}

// Extract builds the prompt from sources, parses the model's answer and runs
// it through the metric validator. Any failure yields scorer.DefaultMetrics
// with Fallback set; Extract never returns an error.
func (e *Extractor) Extract(ctx context.Context, company string, sources []model.Source) *Result {
	log := zap.L().With(zap.String("company", company))
	log.Info("extract: extracting metrics", zap.Int("sources", len(sources)))

	var out response
	res, err := e.llm.CompleteJSON(ctx, llm.Request{
		System:      systemPrompt,
		Prompt:      UserPrompt(company, CombineSources(sources)),
		Temperature: Temperature,
		MaxTokens:   MaxTokens,
		CacheSystem: true,
		Phase:       "extract",
	}, &out)

	result := &Result{}
	if res != nil {
		result.Usage = res.Usage
		result.Model = res.Model
	}
	if err != nil {
		log.Error("extract: extraction failed, using defaults", zap.Error(err))
		result.Metrics = scorer.DefaultMetrics()
		result.Fallback = true
		return result
	}

	result.Metrics = scorer.Validate(out.Metrics)
	log.Info("extract: metrics extracted",
		zap.Int("raw", len(out.Metrics)),
		zap.Int("valid", len(result.Metrics)),
	)
	return result
}
