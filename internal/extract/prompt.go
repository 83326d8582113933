package extract

import (
	"fmt"
	"strings"

	"github.com/sells-group/esg-research/internal/model"
)

// Content limits applied when building the extraction prompt.
const (
	MaxSourceChars  = 5000
	MaxContentChars = 15000
	sourceSeparator = "\n\n---\n\n"
)

// systemPrompt is static so it can be cached across extractions.
var systemPrompt = buildSystemPrompt()

func buildSystemPrompt() string {
	var metrics strings.Builder
	for _, c := range model.Categories {
		fmt.Fprintf(&metrics, "\n%s:\n", c)
		for _, name := range model.MetricSchema[c] {
			fmt.Fprintf(&metrics, "  - %s\n", name)
		}
	}

	return fmt.Sprintf(`You are an expert sustainability analyst extracting ESG metrics from research about a company.

For each metric, provide:
1. A score from 0-100 (0 = very poor, 50 = average, 100 = excellent)
2. A confidence score from 0-1 (0 = no data or uncertain, 1 = very confident)

Extract exactly these metrics, using the category and metric names verbatim:
%s
SCORING GUIDELINES:
90-100: Industry-leading, exceptional performance
75-89:  Strong performance, above average
60-74:  Good performance, meeting standards
40-59:  Fair performance, some concerns
20-39:  Poor performance, significant issues
0-19:   Very poor performance, major problems

CONFIDENCE GUIDELINES:
0.9-1.0:  Direct data, official reports, verified sources
0.7-0.89: Strong indirect evidence, credible sources
0.5-0.69: Some evidence, moderate certainty
0.3-0.49: Limited evidence, low certainty
0-0.29:   No clear evidence, speculation

If the content says nothing about a metric, use value 50 and confidence 0.1.

Return ONLY a JSON object with this structure:
{
  "metrics": [
    {
      "category": "Environmental|Social|Governance",
      "metric_name": "exact metric name from the list",
      "value": 0-100,
      "confidence": 0-1,
      "evidence": "brief quote or summary of evidence"
    }
  ]
}`, metrics.String())
}

// CombineSources joins sources as "Source: {url}" headers followed by at most
// MaxSourceChars of content, separated by horizontal rules.
func CombineSources(sources []model.Source) string {
	parts := make([]string, len(sources))
	for i, s := range sources {
		parts[i] = "Source: " + s.URL + "\n" + headRunes(s.Content, MaxSourceChars)
	}
	return strings.Join(parts, sourceSeparator)
}

// UserPrompt returns the per-company part of the extraction prompt. Content
// beyond MaxContentChars is cut.
func UserPrompt(company, content string) string {
	return fmt.Sprintf(`Analyze the following content about %s and extract the sustainability metrics.

RESEARCH CONTENT TO ANALYZE:
%s`, company, headRunes(content, MaxContentChars))
}

func headRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
