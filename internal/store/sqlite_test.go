package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/esg-research/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

// clock returns a settable clock for deterministic timestamps.
func clock(start time.Time) (func() time.Time, func(time.Duration)) {
	now := start
	return func() time.Time { return now }, func(d time.Duration) { now = now.Add(d) }
}

func testSources() []model.Source {
	return []model.Source{
		{URL: "https://example.com/impact", Content: "Impact report"},
		{URL: "https://news.example.com/esg", Content: "ESG news"},
	}
}

func testFinalScore(score float64, at time.Time) *model.FinalScore {
	return &model.FinalScore{
		FinalScore:         score,
		Level:              model.LevelFor(score),
		Confidence:         0.8,
		EnvironmentalScore: score,
		SocialScore:        score,
		GovernanceScore:    score,
		ComponentScores:    map[string]float64{"environmental_overall": score},
		CalculatedAt:       at,
	}
}

func TestSQLite_MigrateIsIdempotent(t *testing.T) {
	st := newTestSQLiteStore(t)
	require.NoError(t, st.Migrate(context.Background()))
}

func TestSQLite_SaveResearch_UpsertsAndReplacesSources(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	now, advance := clock(time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC))
	st.now = now

	first, err := st.SaveResearch(ctx, "Tesla", testSources())
	require.NoError(t, err)
	assert.NotZero(t, first.ID)

	advance(time.Hour)
	second, err := st.SaveResearch(ctx, "Tesla", []model.Source{{URL: "https://tesla.com/impact", Content: "new"}})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID, "upsert keeps the company id")

	c, err := st.GetCompany(ctx, "Tesla")
	require.NoError(t, err)
	assert.True(t, c.ResearchDate.Equal(now()), "research date refreshed")

	sources, err := st.GetResearchSources(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, sources, 1)
	assert.Equal(t, "https://tesla.com/impact", sources[0].URL)
	assert.Equal(t, c.ID, sources[0].CompanyID)
}

func TestSQLite_GetCompany_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)
	_, err := st.GetCompany(context.Background(), "Nobody")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
}

func TestSQLite_SaveMetrics_ReplacesAndOrders(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	c, err := st.SaveResearch(ctx, "Apple", testSources())
	require.NoError(t, err)

	require.NoError(t, st.SaveMetrics(ctx, c.ID, []model.Metric{
		{Category: model.Social, Name: "Old", Value: 1, Confidence: 1},
	}))
	require.NoError(t, st.SaveMetrics(ctx, c.ID, []model.Metric{
		{Category: model.Social, Name: "Labor Practices", Value: 70, Confidence: 0.8},
		{Category: model.Environmental, Name: "Waste Management", Value: 60, Confidence: 0.5, Evidence: "zero waste"},
		{Category: model.Environmental, Name: "Carbon Emissions Reduction", Value: 80, Confidence: 0.9},
	}))

	metrics, err := st.GetMetrics(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, metrics, 3)
	assert.Equal(t, "Carbon Emissions Reduction", metrics[0].Name)
	assert.Equal(t, "Waste Management", metrics[1].Name)
	assert.Equal(t, "zero waste", metrics[1].Evidence)
	assert.Equal(t, model.Social, metrics[2].Category)
}

func TestSQLite_SaveScores_AppendOnlyLatestWins(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	base := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	c, err := st.SaveResearch(ctx, "Ford", testSources())
	require.NoError(t, err)

	_, err = st.GetLatestScore(ctx, c.ID)
	assert.True(t, IsNotFound(err))

	_, err = st.SaveScores(ctx, c.ID, testFinalScore(40, base))
	require.NoError(t, err)
	rec, err := st.SaveScores(ctx, c.ID, testFinalScore(72.5, base.Add(time.Minute)))
	require.NoError(t, err)
	assert.NotZero(t, rec.ID)

	latest, err := st.GetLatestScore(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 72.5, latest.FinalScore)
	assert.Equal(t, model.LevelGood, latest.Level)
	assert.Equal(t, 0.8, latest.Confidence)
	assert.Equal(t, map[string]float64{"environmental_overall": 72.5}, latest.ComponentScores)
	assert.True(t, latest.CalculatedAt.Equal(base.Add(time.Minute)))
}

func TestSQLite_ListCompanies_MostRecentFirst(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	now, advance := clock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	st.now = now

	for _, name := range []string{"A", "B", "C"} {
		_, err := st.SaveResearch(ctx, name, testSources())
		require.NoError(t, err)
		advance(time.Hour)
	}

	companies, err := st.ListCompanies(ctx)
	require.NoError(t, err)
	require.Len(t, companies, 3)
	assert.Equal(t, []string{"C", "B", "A"}, []string{companies[0].Name, companies[1].Name, companies[2].Name})
}

func TestSQLite_DeleteCompany_Cascades(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	c, err := st.SaveResearch(ctx, "Shell", testSources())
	require.NoError(t, err)
	require.NoError(t, st.SaveMetrics(ctx, c.ID, []model.Metric{{Category: model.Governance, Name: "Risk Management", Value: 40, Confidence: 0.5}}))
	_, err = st.SaveScores(ctx, c.ID, testFinalScore(40, time.Now()))
	require.NoError(t, err)

	deleted, err := st.DeleteCompany(ctx, "Shell")
	require.NoError(t, err)
	assert.True(t, deleted)

	sources, err := st.GetResearchSources(ctx, c.ID)
	require.NoError(t, err)
	assert.Empty(t, sources)
	metrics, err := st.GetMetrics(ctx, c.ID)
	require.NoError(t, err)
	assert.Empty(t, metrics)
	_, err = st.GetLatestScore(ctx, c.ID)
	assert.True(t, IsNotFound(err))

	deleted, err = st.DeleteCompany(ctx, "Shell")
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestSQLite_DeleteAll(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	for _, name := range []string{"A", "B"} {
		_, err := st.SaveResearch(ctx, name, testSources())
		require.NoError(t, err)
	}

	n, err := st.DeleteAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	companies, err := st.ListCompanies(ctx)
	require.NoError(t, err)
	assert.Empty(t, companies)
}

func TestSQLite_SaveMetrics_RejectsOutOfRange(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	c, err := st.SaveResearch(ctx, "BP", testSources())
	require.NoError(t, err)
	require.NoError(t, st.SaveMetrics(ctx, c.ID, []model.Metric{{Category: model.Social, Name: "Human Rights", Value: 50, Confidence: 0.5}}))

	err = st.SaveMetrics(ctx, c.ID, []model.Metric{
		{Category: model.Social, Name: "Labor Practices", Value: 60, Confidence: 0.5},
		{Category: model.Social, Name: "Broken", Value: 150, Confidence: 0.5},
	})
	require.Error(t, err)

	metrics, err := st.GetMetrics(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, metrics, 1, "failed replace rolls back")
	assert.Equal(t, "Human Rights", metrics[0].Name)
}
