package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/esg-research/internal/db"
	"github.com/sells-group/esg-research/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool db.Pool
	now  func() time.Time
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(1)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return newPostgresWithPool(pool), nil
}

func newPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool, now: time.Now}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS companies (
	id            BIGSERIAL PRIMARY KEY,
	name          TEXT NOT NULL UNIQUE,
	research_date TIMESTAMPTZ NOT NULL,
	last_updated  TIMESTAMPTZ NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS research_sources (
	id         BIGSERIAL PRIMARY KEY,
	company_id BIGINT NOT NULL REFERENCES companies(id) ON DELETE CASCADE,
	url        TEXT NOT NULL,
	content    TEXT NOT NULL,
	scraped_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS sustainability_metrics (
	id           BIGSERIAL PRIMARY KEY,
	company_id   BIGINT NOT NULL REFERENCES companies(id) ON DELETE CASCADE,
	category     TEXT NOT NULL CHECK (category IN ('Environmental', 'Social', 'Governance')),
	metric_name  TEXT NOT NULL,
	value        DOUBLE PRECISION NOT NULL CHECK (value BETWEEN 0 AND 100),
	confidence   DOUBLE PRECISION NOT NULL CHECK (confidence BETWEEN 0 AND 1),
	evidence     TEXT NOT NULL DEFAULT '',
	extracted_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS sustainability_scores (
	id                  BIGSERIAL PRIMARY KEY,
	company_id          BIGINT NOT NULL REFERENCES companies(id) ON DELETE CASCADE,
	final_score         DOUBLE PRECISION NOT NULL,
	environmental_score DOUBLE PRECISION NOT NULL,
	social_score        DOUBLE PRECISION NOT NULL,
	governance_score    DOUBLE PRECISION NOT NULL,
	score_level         TEXT NOT NULL DEFAULT '',
	confidence          DOUBLE PRECISION NOT NULL DEFAULT 0,
	component_scores    JSONB NOT NULL DEFAULT '{}',
	calculated_at       TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_companies_research_date ON companies(research_date DESC);
CREATE INDEX IF NOT EXISTS idx_sources_company ON research_sources(company_id);
CREATE INDEX IF NOT EXISTS idx_metrics_company ON sustainability_metrics(company_id);
CREATE INDEX IF NOT EXISTS idx_scores_company_calculated ON sustainability_scores(company_id, calculated_at DESC);
`

var (
	sourceColumns = []string{"company_id", "url", "content", "scraped_at"}
	metricColumns = []string{"company_id", "category", "metric_name", "value", "confidence", "evidence", "extracted_at"}
)

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// withTx runs fn inside a transaction, committing on success and rolling
// back on any error.
func (s *PostgresStore) withTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin transaction")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := fn(tx); err != nil {
		return err
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: commit")
}

func (s *PostgresStore) SaveResearch(ctx context.Context, name string, sources []model.Source) (*model.Company, error) {
	now := s.now().UTC()
	c := &model.Company{Name: name, ResearchDate: now, LastUpdated: now}

	err := s.withTx(ctx, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO companies (name, research_date, last_updated) VALUES ($1, $2, $3)
			ON CONFLICT (name) DO UPDATE SET
				research_date = EXCLUDED.research_date,
				last_updated = EXCLUDED.last_updated
			RETURNING id`,
			name, now, now,
		).Scan(&c.ID)
		if err != nil {
			return eris.Wrapf(err, "postgres: upsert company %s", name)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM research_sources WHERE company_id = $1`, c.ID); err != nil {
			return eris.Wrap(err, "postgres: delete sources")
		}

		rows := make([][]any, 0, len(sources))
		for _, src := range sources {
			scrapedAt := src.ScrapedAt
			if scrapedAt.IsZero() {
				scrapedAt = now
			}
			rows = append(rows, []any{c.ID, src.URL, src.Content, scrapedAt.UTC()})
		}
		if _, err := db.CopyFrom(ctx, tx, "research_sources", sourceColumns, rows); err != nil {
			return eris.Wrap(err, "postgres: insert sources")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("postgres: saved research",
		zap.String("company", name),
		zap.Int64("company_id", c.ID),
		zap.Int("sources", len(sources)),
	)
	return c, nil
}

func (s *PostgresStore) SaveMetrics(ctx context.Context, companyID int64, metrics []model.Metric) error {
	now := s.now().UTC()
	return s.withTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM sustainability_metrics WHERE company_id = $1`, companyID); err != nil {
			return eris.Wrap(err, "postgres: delete metrics")
		}
		rows := make([][]any, 0, len(metrics))
		for _, m := range metrics {
			rows = append(rows, []any{companyID, string(m.Category), m.Name, m.Value, m.Confidence, m.Evidence, now})
		}
		if _, err := db.CopyFrom(ctx, tx, "sustainability_metrics", metricColumns, rows); err != nil {
			return eris.Wrap(err, "postgres: insert metrics")
		}
		return nil
	})
}

func (s *PostgresStore) SaveScores(ctx context.Context, companyID int64, score *model.FinalScore) (*model.ScoreRecord, error) {
	rec := scoreRecordFrom(companyID, score, s.now)
	components, err := json.Marshal(rec.ComponentScores)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal component scores")
	}

	err = s.pool.QueryRow(ctx, `
		INSERT INTO sustainability_scores
			(company_id, final_score, environmental_score, social_score, governance_score,
			 score_level, confidence, component_scores, calculated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`,
		companyID, rec.FinalScore, rec.EnvironmentalScore, rec.SocialScore, rec.GovernanceScore,
		string(rec.Level), rec.Confidence, components, rec.CalculatedAt,
	).Scan(&rec.ID)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: insert score for company %d", companyID)
	}
	return rec, nil
}

func (s *PostgresStore) GetCompany(ctx context.Context, name string) (*model.Company, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, name, research_date, last_updated FROM companies WHERE name = $1`, name)
	c, err := scanCompany(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "company %s", name)
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get company")
	}
	return c, nil
}

func (s *PostgresStore) GetResearchSources(ctx context.Context, companyID int64) ([]model.Source, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, company_id, url, content, scraped_at FROM research_sources
		WHERE company_id = $1 ORDER BY scraped_at DESC, id`, companyID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get sources")
	}
	defer rows.Close()

	var out []model.Source
	for rows.Next() {
		var src model.Source
		if err := rows.Scan(&src.ID, &src.CompanyID, &src.URL, &src.Content, &src.ScrapedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan source")
		}
		out = append(out, src)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate sources")
}

func (s *PostgresStore) GetMetrics(ctx context.Context, companyID int64) ([]model.Metric, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT category, metric_name, value, confidence, evidence FROM sustainability_metrics
		WHERE company_id = $1 ORDER BY category, metric_name`, companyID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get metrics")
	}
	defer rows.Close()

	var out []model.Metric
	for rows.Next() {
		m, err := scanMetric(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan metric")
		}
		out = append(out, *m)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate metrics")
}

func (s *PostgresStore) GetLatestScore(ctx context.Context, companyID int64) (*model.ScoreRecord, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, company_id, final_score, environmental_score, social_score, governance_score,
		       score_level, confidence, component_scores, calculated_at
		FROM sustainability_scores
		WHERE company_id = $1 ORDER BY calculated_at DESC, id DESC LIMIT 1`, companyID)
	rec, err := scanScore(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "score for company %d", companyID)
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get latest score")
	}
	return rec, nil
}

func (s *PostgresStore) ListCompanies(ctx context.Context) ([]model.Company, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, research_date, last_updated FROM companies ORDER BY research_date DESC, id DESC`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list companies")
	}
	defer rows.Close()

	var out []model.Company
	for rows.Next() {
		c, err := scanCompany(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan company")
		}
		out = append(out, *c)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate companies")
}

func (s *PostgresStore) DeleteCompany(ctx context.Context, name string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM companies WHERE name = $1`, name)
	if err != nil {
		return false, eris.Wrapf(err, "postgres: delete company %s", name)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) DeleteAll(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM companies`)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: delete all companies")
	}
	return tag.RowsAffected(), nil
}
