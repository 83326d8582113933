package model

import "time"

// Category is one of the three fixed ESG scoring categories.
type Category string

// ESG categories.
const (
	Environmental Category = "Environmental"
	Social        Category = "Social"
	Governance    Category = "Governance"
)

// Categories lists the ESG categories in their fixed reporting order.
var Categories = []Category{Environmental, Social, Governance}

// CategoryWeights is the contribution of each category to the final score.
// The weights sum to 1.0.
var CategoryWeights = map[Category]float64{
	Environmental: 0.40,
	Social:        0.35,
	Governance:    0.25,
}

// ParseCategory returns the Category matching s exactly.
func ParseCategory(s string) (Category, bool) {
	for _, c := range Categories {
		if string(c) == s {
			return c, true
		}
	}
	return "", false
}

// Weight returns the category's weight in the final score.
func (c Category) Weight() float64 {
	return CategoryWeights[c]
}

// MetricSchema holds the fifteen fixed metric names, five per category.
var MetricSchema = map[Category][]string{
	Environmental: {
		"Carbon Emissions Reduction",
		"Renewable Energy Usage",
		"Waste Management",
		"Water Conservation",
		"Sustainable Materials",
	},
	Social: {
		"Labor Practices",
		"Diversity and Inclusion",
		"Community Impact",
		"Human Rights",
		"Employee Well-being",
	},
	Governance: {
		"Board Independence",
		"Ethics and Compliance",
		"Transparency and Reporting",
		"Risk Management",
		"Stakeholder Engagement",
	},
}

// Metric is one validated, scored claim about a company.
type Metric struct {
	Category   Category `json:"category"`
	Name       string   `json:"metric_name"`
	Value      float64  `json:"value"`
	Confidence float64  `json:"confidence"`
	Evidence   string   `json:"evidence,omitempty"`
}

// MetricDetail is the per-metric entry of a category breakdown.
type MetricDetail struct {
	Name       string  `json:"name"`
	Value      float64 `json:"value"`
	Confidence float64 `json:"confidence"`
}

// CategoryScore is the confidence-weighted result for one category.
type CategoryScore struct {
	Score       float64        `json:"score"`
	Confidence  float64        `json:"confidence"`
	MetricCount int            `json:"metric_count"`
	Metrics     []MetricDetail `json:"metrics"`
}

// FinalScore is the combined sustainability score for one analysis.
type FinalScore struct {
	FinalScore         float64                    `json:"final_score"`
	Level              Level                      `json:"score_level"`
	Confidence         float64                    `json:"confidence"`
	EnvironmentalScore float64                    `json:"environmental_score"`
	SocialScore        float64                    `json:"social_score"`
	GovernanceScore    float64                    `json:"governance_score"`
	Breakdown          map[Category]CategoryScore `json:"category_breakdown"`
	ComponentScores    map[string]float64         `json:"component_scores"`
	CalculatedAt       time.Time                  `json:"calculated_at"`
}

// CategoryScore returns the named category score of f.
func (f *FinalScore) CategoryScore(c Category) float64 {
	switch c {
	case Environmental:
		return f.EnvironmentalScore
	case Social:
		return f.SocialScore
	case Governance:
		return f.GovernanceScore
	}
	return 0
}
