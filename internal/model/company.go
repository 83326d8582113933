package model

import (
	"time"
)

// CacheStatus describes why prior analysis was or was not reused.
type CacheStatus string

const (
	CacheMiss       CacheStatus = "miss"       // Company never analyzed
	CacheStale      CacheStatus = "stale"      // Research older than the window
	CacheIncomplete CacheStatus = "incomplete" // Fresh but missing sources or score
	CacheHit        CacheStatus = "hit"
)

// Company is a researched company.
type Company struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	ResearchDate time.Time `json:"research_date"`
	LastUpdated  time.Time `json:"last_updated"`
}

// Source is a scraped page used as research input.
type Source struct {
	ID        int64     `json:"id,omitempty"`
	CompanyID int64     `json:"company_id,omitempty"`
	URL       string    `json:"url"`
	Content   string    `json:"content"`
	ScrapedAt time.Time `json:"scraped_at"`
}

// ScoreRecord is a persisted FinalScore. Records are append-only; the most
// recent CalculatedAt is authoritative.
type ScoreRecord struct {
	ID                 int64              `json:"id"`
	CompanyID          int64              `json:"company_id"`
	FinalScore         float64            `json:"final_score"`
	EnvironmentalScore float64            `json:"environmental_score"`
	SocialScore        float64            `json:"social_score"`
	GovernanceScore    float64            `json:"governance_score"`
	Level              Level              `json:"score_level"`
	Confidence         float64            `json:"confidence"`
	ComponentScores    map[string]float64 `json:"component_scores"`
	CalculatedAt       time.Time          `json:"calculated_at"`
}

// CategoryScore returns the named category score of r.
func (r *ScoreRecord) CategoryScore(c Category) float64 {
	switch c {
	case Environmental:
		return r.EnvironmentalScore
	case Social:
		return r.SocialScore
	case Governance:
		return r.GovernanceScore
	}
	return 0
}

// LevelOrDerive returns the stored level, deriving it from FinalScore for
// records written without one.
func (r *ScoreRecord) LevelOrDerive() Level {
	if r.Level != "" {
		return r.Level
	}
	return LevelFor(r.FinalScore)
}

// Analysis bundles everything persisted for one company.
type Analysis struct {
	Company Company      `json:"company"`
	Sources []Source     `json:"sources"`
	Metrics []Metric     `json:"metrics"`
	Score   *ScoreRecord `json:"scores"`
}

// MetricsIn returns the analysis metrics belonging to category c, in stored
// order.
func (a *Analysis) MetricsIn(c Category) []Metric {
	var out []Metric
	for _, m := range a.Metrics {
		if m.Category == c {
			out = append(out, m)
		}
	}
	return out
}
