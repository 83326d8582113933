// Package store persists researched companies, their scraped sources,
// extracted metrics and score history.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/esg-research/internal/model"
)

// ErrNotFound is returned (wrapped) when a company or score does not exist.
var ErrNotFound = eris.New("store: not found")

// IsNotFound reports whether err wraps ErrNotFound.
func IsNotFound(err error) bool {
	return eris.Is(err, ErrNotFound)
}

// Store defines the persistence interface for ESG analyses.
type Store interface {
	// Writes
	SaveResearch(ctx context.Context, name string, sources []model.Source) (*model.Company, error)
	SaveMetrics(ctx context.Context, companyID int64, metrics []model.Metric) error
	SaveScores(ctx context.Context, companyID int64, score *model.FinalScore) (*model.ScoreRecord, error)
	DeleteCompany(ctx context.Context, name string) (bool, error)
	DeleteAll(ctx context.Context) (int64, error)

	// Reads
	GetCompany(ctx context.Context, name string) (*model.Company, error)
	GetResearchSources(ctx context.Context, companyID int64) ([]model.Source, error)
	GetMetrics(ctx context.Context, companyID int64) ([]model.Metric, error)
	GetLatestScore(ctx context.Context, companyID int64) (*model.ScoreRecord, error)
	ListCompanies(ctx context.Context) ([]model.Company, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
