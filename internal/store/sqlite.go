package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/sells-group/esg-research/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode
// and foreign key enforcement.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	// Pragmas are per connection; a single connection keeps foreign keys
	// enforced on every statement and serializes writers.
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db, now: time.Now}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS companies (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	name          TEXT NOT NULL UNIQUE,
	research_date DATETIME NOT NULL,
	last_updated  DATETIME NOT NULL,
	created_at    DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS research_sources (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	company_id INTEGER NOT NULL REFERENCES companies(id) ON DELETE CASCADE,
	url        TEXT NOT NULL,
	content    TEXT NOT NULL,
	scraped_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS sustainability_metrics (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	company_id   INTEGER NOT NULL REFERENCES companies(id) ON DELETE CASCADE,
	category     TEXT NOT NULL CHECK (category IN ('Environmental', 'Social', 'Governance')),
	metric_name  TEXT NOT NULL,
	value        REAL NOT NULL CHECK (value BETWEEN 0 AND 100),
	confidence   REAL NOT NULL CHECK (confidence BETWEEN 0 AND 1),
	evidence     TEXT NOT NULL DEFAULT '',
	extracted_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS sustainability_scores (
	id                    INTEGER PRIMARY KEY AUTOINCREMENT,
	company_id            INTEGER NOT NULL REFERENCES companies(id) ON DELETE CASCADE,
	final_score           REAL NOT NULL,
	environmental_score   REAL NOT NULL,
	social_score          REAL NOT NULL,
	governance_score      REAL NOT NULL,
	score_level           TEXT NOT NULL DEFAULT '',
	confidence            REAL NOT NULL DEFAULT 0,
	component_scores_json TEXT NOT NULL DEFAULT '{}',
	calculated_at         DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_companies_research_date ON companies(research_date);
CREATE INDEX IF NOT EXISTS idx_sources_company ON research_sources(company_id);
CREATE INDEX IF NOT EXISTS idx_metrics_company ON sustainability_metrics(company_id);
CREATE INDEX IF NOT EXISTS idx_scores_company_calculated ON sustainability_scores(company_id, calculated_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// withTx runs fn inside a transaction, committing on success and rolling
// back on any error.
func (s *SQLiteStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin transaction")
	}
	defer tx.Rollback() //nolint:errcheck

	if err := fn(tx); err != nil {
		return err
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit")
}

func (s *SQLiteStore) SaveResearch(ctx context.Context, name string, sources []model.Source) (*model.Company, error) {
	now := s.now().UTC()
	c := &model.Company{Name: name, ResearchDate: now, LastUpdated: now}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO companies (name, research_date, last_updated) VALUES (?, ?, ?)
			ON CONFLICT(name) DO UPDATE SET
				research_date = excluded.research_date,
				last_updated = excluded.last_updated`,
			name, now, now,
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: upsert company %s", name)
		}
		if err := tx.QueryRowContext(ctx, `SELECT id FROM companies WHERE name = ?`, name).Scan(&c.ID); err != nil {
			return eris.Wrapf(err, "sqlite: get company id %s", name)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM research_sources WHERE company_id = ?`, c.ID); err != nil {
			return eris.Wrap(err, "sqlite: delete sources")
		}
		for _, src := range sources {
			scrapedAt := src.ScrapedAt
			if scrapedAt.IsZero() {
				scrapedAt = now
			}
			_, err := tx.ExecContext(ctx,
				`INSERT INTO research_sources (company_id, url, content, scraped_at) VALUES (?, ?, ?, ?)`,
				c.ID, src.URL, src.Content, scrapedAt.UTC(),
			)
			if err != nil {
				return eris.Wrapf(err, "sqlite: insert source %s", src.URL)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("sqlite: saved research",
		zap.String("company", name),
		zap.Int64("company_id", c.ID),
		zap.Int("sources", len(sources)),
	)
	return c, nil
}

func (s *SQLiteStore) SaveMetrics(ctx context.Context, companyID int64, metrics []model.Metric) error {
	now := s.now().UTC()
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM sustainability_metrics WHERE company_id = ?`, companyID); err != nil {
			return eris.Wrap(err, "sqlite: delete metrics")
		}
		for _, m := range metrics {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO sustainability_metrics
					(company_id, category, metric_name, value, confidence, evidence, extracted_at)
				VALUES (?, ?, ?, ?, ?, ?, ?)`,
				companyID, string(m.Category), m.Name, m.Value, m.Confidence, m.Evidence, now,
			)
			if err != nil {
				return eris.Wrapf(err, "sqlite: insert metric %s", m.Name)
			}
		}
		return nil
	})
}

func (s *SQLiteStore) SaveScores(ctx context.Context, companyID int64, score *model.FinalScore) (*model.ScoreRecord, error) {
	rec := scoreRecordFrom(companyID, score, s.now)
	components, err := json.Marshal(rec.ComponentScores)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal component scores")
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO sustainability_scores
			(company_id, final_score, environmental_score, social_score, governance_score,
			 score_level, confidence, component_scores_json, calculated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		companyID, rec.FinalScore, rec.EnvironmentalScore, rec.SocialScore, rec.GovernanceScore,
		string(rec.Level), rec.Confidence, string(components), rec.CalculatedAt,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: insert score for company %d", companyID)
	}
	if rec.ID, err = res.LastInsertId(); err != nil {
		return nil, eris.Wrap(err, "sqlite: score id")
	}
	return rec, nil
}

func (s *SQLiteStore) GetCompany(ctx context.Context, name string) (*model.Company, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, research_date, last_updated FROM companies WHERE name = ?`, name)
	c, err := scanCompany(row)
	if err == sql.ErrNoRows {
		return nil, eris.Wrapf(ErrNotFound, "company %s", name)
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get company")
	}
	return c, nil
}

func (s *SQLiteStore) GetResearchSources(ctx context.Context, companyID int64) ([]model.Source, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, company_id, url, content, scraped_at FROM research_sources
		WHERE company_id = ? ORDER BY scraped_at DESC, id`, companyID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get sources")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.Source
	for rows.Next() {
		var src model.Source
		if err := rows.Scan(&src.ID, &src.CompanyID, &src.URL, &src.Content, &src.ScrapedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan source")
		}
		out = append(out, src)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate sources")
}

func (s *SQLiteStore) GetMetrics(ctx context.Context, companyID int64) ([]model.Metric, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT category, metric_name, value, confidence, evidence FROM sustainability_metrics
		WHERE company_id = ? ORDER BY category, metric_name`, companyID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get metrics")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.Metric
	for rows.Next() {
		m, err := scanMetric(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan metric")
		}
		out = append(out, *m)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate metrics")
}

func (s *SQLiteStore) GetLatestScore(ctx context.Context, companyID int64) (*model.ScoreRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, company_id, final_score, environmental_score, social_score, governance_score,
		       score_level, confidence, component_scores_json, calculated_at
		FROM sustainability_scores
		WHERE company_id = ? ORDER BY calculated_at DESC, id DESC LIMIT 1`, companyID)
	rec, err := scanScore(row)
	if err == sql.ErrNoRows {
		return nil, eris.Wrapf(ErrNotFound, "score for company %d", companyID)
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get latest score")
	}
	return rec, nil
}

func (s *SQLiteStore) ListCompanies(ctx context.Context) ([]model.Company, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, research_date, last_updated FROM companies ORDER BY research_date DESC, id DESC`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list companies")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.Company
	for rows.Next() {
		c, err := scanCompany(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan company")
		}
		out = append(out, *c)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate companies")
}

func (s *SQLiteStore) DeleteCompany(ctx context.Context, name string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM companies WHERE name = ?`, name)
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: delete company %s", name)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, eris.Wrap(err, "sqlite: rows affected")
	}
	return n > 0, nil
}

func (s *SQLiteStore) DeleteAll(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM companies`)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: delete all companies")
	}
	n, err := res.RowsAffected()
	return n, eris.Wrap(err, "sqlite: rows affected")
}

type scannable interface {
	Scan(dest ...any) error
}

func scanCompany(row scannable) (*model.Company, error) {
	var c model.Company
	if err := row.Scan(&c.ID, &c.Name, &c.ResearchDate, &c.LastUpdated); err != nil {
		return nil, err
	}
	return &c, nil
}

func scanMetric(row scannable) (*model.Metric, error) {
	var m model.Metric
	var category string
	if err := row.Scan(&category, &m.Name, &m.Value, &m.Confidence, &m.Evidence); err != nil {
		return nil, err
	}
	m.Category = model.Category(category)
	return &m, nil
}

func scanScore(row scannable) (*model.ScoreRecord, error) {
	var r model.ScoreRecord
	var level string
	var components []byte
	err := row.Scan(&r.ID, &r.CompanyID, &r.FinalScore, &r.EnvironmentalScore, &r.SocialScore,
		&r.GovernanceScore, &level, &r.Confidence, &components, &r.CalculatedAt)
	if err != nil {
		return nil, err
	}
	r.Level = model.Level(level)
	if len(components) > 0 {
		if err := json.Unmarshal(components, &r.ComponentScores); err != nil {
			return nil, eris.Wrap(err, "unmarshal component scores")
		}
	}
	return &r, nil
}

// scoreRecordFrom converts a computed score into the row to persist.
func scoreRecordFrom(companyID int64, f *model.FinalScore, now func() time.Time) *model.ScoreRecord {
	at := f.CalculatedAt
	if at.IsZero() {
		at = now()
	}
	components := f.ComponentScores
	if components == nil {
		components = map[string]float64{}
	}
	return &model.ScoreRecord{
		CompanyID:          companyID,
		FinalScore:         f.FinalScore,
		EnvironmentalScore: f.EnvironmentalScore,
		SocialScore:        f.SocialScore,
		GovernanceScore:    f.GovernanceScore,
		Level:              f.Level,
		Confidence:         f.Confidence,
		ComponentScores:    components,
		CalculatedAt:       at.UTC(),
	}
}
