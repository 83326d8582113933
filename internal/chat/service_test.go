package chat

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/esg-research/internal/llm"
	llmmocks "github.com/sells-group/esg-research/internal/llm/mocks"
	"github.com/sells-group/esg-research/internal/model"
	"github.com/sells-group/esg-research/internal/pipeline"
	"github.com/sells-group/esg-research/internal/scorer"
	"github.com/sells-group/esg-research/internal/store"
)

type mockClassifier struct{ mock.Mock }

func (m *mockClassifier) Classify(ctx context.Context, message string, analyzed []string) model.Intent {
	return m.Called(ctx, message, analyzed).Get(0).(model.Intent)
}

type mockAnalyzer struct{ mock.Mock }

func (m *mockAnalyzer) Analyze(ctx context.Context, name string, force bool) (*pipeline.Outcome, error) {
	ret := m.Called(ctx, name, force)
	o, _ := ret.Get(0).(*pipeline.Outcome)
	return o, ret.Error(1)
}

type mockExporter struct{ mock.Mock }

func (m *mockExporter) Export(ctx context.Context, analyses []*model.Analysis) ([]string, error) {
	ret := m.Called(ctx, analyses)
	files, _ := ret.Get(0).([]string)
	return files, ret.Error(1)
}

type fixture struct {
	svc        *Service
	dir        *store.Directory
	classifier *mockClassifier
	analyzer   *mockAnalyzer
	llm        *llmmocks.MockCompleter
	exporter   *mockExporter
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "chat.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))

	dir := store.NewDirectory(st, store.NewGate(st, store.DefaultCacheWindow))
	f := &fixture{
		dir:        dir,
		classifier: new(mockClassifier),
		analyzer:   new(mockAnalyzer),
		llm:        llmmocks.NewMockCompleter(t),
		exporter:   new(mockExporter),
	}
	t.Cleanup(func() {
		f.classifier.AssertExpectations(t)
		f.analyzer.AssertExpectations(t)
		f.exporter.AssertExpectations(t)
	})
	f.svc = NewService(dir, f.classifier, f.analyzer, f.llm, f.exporter)
	return f
}

// seed stores a complete analysis whose metric values come from value(i),
// i being the metric's position in schema order.
func (f *fixture) seed(t *testing.T, name string, value func(i int) float64) *model.Analysis {
	t.Helper()
	ctx := context.Background()
	c, err := f.dir.SaveResearch(ctx, name, []model.Source{
		{URL: "https://example.com/" + strings.ToLower(name) + "/impact", Content: name + " cut emissions by 40% since 2019."},
		{URL: "https://news.example.com/" + strings.ToLower(name), Content: name + " publishes an annual ESG report."},
	})
	require.NoError(t, err)

	var metrics []model.Metric
	i := 0
	for _, cat := range model.Categories {
		for _, m := range model.MetricSchema[cat] {
			metrics = append(metrics, model.Metric{Category: cat, Name: m, Value: value(i), Confidence: 0.8})
			i++
		}
	}
	require.NoError(t, f.dir.SaveMetrics(ctx, c.ID, metrics))
	rec, err := f.dir.SaveScores(ctx, c.ID, scorer.New().Score(metrics))
	require.NoError(t, err)
	return &model.Analysis{Company: *c, Metrics: metrics, Score: rec}
}

// seedTesla scores 56 / 71 / 86 by category, 68.75 overall.
func (f *fixture) seedTesla(t *testing.T) *model.Analysis {
	return f.seed(t, "Tesla", func(i int) float64 { return 50 + 3*float64(i) })
}

func flat(v float64) func(int) float64 { return func(int) float64 { return v } }

func (f *fixture) turn(t *testing.T, sess *Session, text string, intent model.Intent) []Message {
	t.Helper()
	f.classifier.On("Classify", mock.Anything, text, mock.Anything).Return(intent).Once()
	out, err := f.svc.Handle(context.Background(), sess, text)
	require.NoError(t, err)
	return out
}

func contents(msgs []Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.Content
	}
	return out
}

func mentions(companies ...string) model.Mentions {
	return model.Mentions{Companies: companies}
}

func TestNewSession_StartsWithGreeting(t *testing.T) {
	sess := NewSession()
	msgs := sess.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, RoleAssistant, msgs[0].Role)
	assert.True(t, strings.HasPrefix(msgs[0].Content, "👋 Hi! I'm your sustainability analysis assistant."))
	assert.True(t, strings.HasSuffix(msgs[0].Content, "I use real web data and AI to answer your questions! 🚀"))
	assert.NotEmpty(t, sess.ID)
}

func TestSessions_GetCreatesAndReuses(t *testing.T) {
	r := NewSessions(0, 0)
	a := r.Get("")
	assert.Same(t, a, r.Get(a.ID))
	assert.NotSame(t, a, r.Get("unknown"))
	assert.Equal(t, 2, r.Len())
}

func TestSessions_EvictsLeastRecentlyUsed(t *testing.T) {
	r := NewSessions(2, time.Hour)
	a := r.Get("")
	b := r.Get("")
	assert.Same(t, a, r.Get(a.ID))

	r.Get("")
	assert.Equal(t, 2, r.Len())
	assert.Same(t, a, r.Get(a.ID))
	assert.NotSame(t, b, r.Get(b.ID), "oldest idle session was evicted")
}

func TestSessions_IdleSessionsExpire(t *testing.T) {
	r := NewSessions(10, 20*time.Millisecond)
	a := r.Get("")
	time.Sleep(50 * time.Millisecond)
	assert.NotSame(t, a, r.Get(a.ID))
}

func TestHandle_BlankMessage(t *testing.T) {
	f := newFixture(t)
	sess := NewSession()

	out, err := f.svc.Handle(context.Background(), sess, "   ")
	require.NoError(t, err)
	assert.Nil(t, out)
	assert.Len(t, sess.Messages(), 1)
}

func TestHandle_AnalyzesNewCompanies(t *testing.T) {
	f := newFixture(t)
	sess := NewSession()

	f.analyzer.On("Analyze", mock.Anything, "Tesla", false).Return(&pipeline.Outcome{
		Company:  "Tesla",
		Analysis: &model.Analysis{Score: &model.ScoreRecord{FinalScore: 72.5, Level: model.LevelGood}},
	}, nil).Once()
	f.analyzer.On("Analyze", mock.Anything, "Apple", false).Return(&pipeline.Outcome{
		Company:  "Apple",
		Cached:   true,
		Analysis: &model.Analysis{Score: &model.ScoreRecord{FinalScore: 88}},
	}, nil).Once()
	f.analyzer.On("Analyze", mock.Anything, "Nope Inc", false).
		Return(nil, eris.Wrap(pipeline.ErrNoSources, "pipeline: analyze Nope Inc")).Once()

	out := f.turn(t, sess, "Check out Tesla, Apple and Nope Inc", model.AnalyzeIntent{Mentions: model.Mentions{
		Companies:     []string{"Tesla", "Apple", "Nope Inc"},
		NeedsAnalysis: []string{"Tesla", "Apple", "Nope Inc"},
	}})

	assert.Equal(t, []string{
		"Let me analyze Tesla, Apple, Nope Inc first...",
		"✅ **Tesla** analyzed! Score: 72.5/100 (Good)",
		"✅ **Apple** analyzed! Score: 88.0/100 (Excellent) (cached)",
		"❌ Couldn't find information about Nope Inc",
	}, contents(out))

	history := sess.Messages()
	require.Len(t, history, 6)
	assert.Equal(t, RoleUser, history[1].Role)
	assert.Equal(t, "Check out Tesla, Apple and Nope Inc", history[1].Content)
}

func TestHandle_ListDoesNotAnalyze(t *testing.T) {
	f := newFixture(t)

	out := f.turn(t, NewSession(), "list", model.ListCompaniesIntent{Mentions: model.Mentions{NeedsAnalysis: []string{"Tesla"}}})
	assert.Equal(t, []string{"I haven't analyzed any companies yet. Tell me a company name to get started!"}, contents(out))
	f.analyzer.AssertNotCalled(t, "Analyze", mock.Anything, mock.Anything, mock.Anything)
}

func TestHandle_PassesAnalyzedNamesToClassifier(t *testing.T) {
	f := newFixture(t)
	f.seedTesla(t)

	f.classifier.On("Classify", mock.Anything, "hi", []string{"Tesla"}).Return(model.Intent(model.AnalyzeIntent{})).Once()
	out, err := f.svc.Handle(context.Background(), NewSession(), "hi")
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestCompare(t *testing.T) {
	tests := []struct {
		name  string
		apple float64
		want  string
	}{
		{"significant", 50.75, "💡 Tesla significantly outperforms with a 18.0 point lead."},
		{"moderate", 60.75, "💡 Tesla has a moderate lead of 8.0 points."},
		{"close", 66.75, "💡 Very close! Only 2.0 points separate them."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.seedTesla(t)
			f.seed(t, "Apple", flat(tt.apple))

			out := f.turn(t, NewSession(), "compare", model.CompareIntent{Mentions: mentions("Apple", "Tesla")})
			require.Len(t, out, 1)
			got := out[0].Content
			assert.True(t, strings.HasPrefix(got, "📊 **Comparison: Apple vs Tesla**\n\n🏆 **Winner: Tesla** with 68.8/100\n\n"), got)
			assert.Contains(t, got, "**Detailed Comparison:**\n\n**Tesla**: 68.8/100\n- 🌍 Environmental: 56.0\n- 👥 Social: 71.0\n- ⚖️ Governance: 86.0\n\n**Apple**")
			assert.True(t, strings.HasSuffix(got, tt.want), got)
		})
	}
}

func TestCompare_NeedsTwoCompanies(t *testing.T) {
	f := newFixture(t)

	out := f.turn(t, NewSession(), "compare tesla", model.CompareIntent{Mentions: mentions("Tesla")})
	assert.Equal(t, []string{"⚠️ I need at least 2 companies to compare."}, contents(out))
}

func TestCompare_MissingAnalysis(t *testing.T) {
	f := newFixture(t)
	f.seedTesla(t)

	out := f.turn(t, NewSession(), "compare", model.CompareIntent{Mentions: mentions("Tesla", "Ghost")})
	assert.Equal(t, []string{"📊 **Comparison: Tesla vs Ghost**\n\n⚠️ I need at least 2 analyzed companies to compare."}, contents(out))
}

func TestShowScore(t *testing.T) {
	f := newFixture(t)
	f.seedTesla(t)

	out := f.turn(t, NewSession(), "score?", model.ShowScoreIntent{Mentions: mentions("tesla")})
	assert.Equal(t, []string{"**Tesla's Sustainability Score:**\n\n" +
		"🎯 **Overall: 68.8/100** (Fair)\n\n" +
		"That's based on:\n" +
		"- 🌍 Environmental: 56.0/100\n" +
		"- 👥 Social: 71.0/100\n" +
		"- ⚖️ Governance: 86.0/100"}, contents(out))
}

func TestShowScore_Prompts(t *testing.T) {
	f := newFixture(t)

	out := f.turn(t, NewSession(), "score?", model.ShowScoreIntent{})
	assert.Equal(t, []string{"Please specify a company to check the score."}, contents(out))

	out = f.turn(t, NewSession(), "score of ghost", model.ShowScoreIntent{Mentions: mentions("Ghost")})
	assert.Equal(t, []string{"I haven't analyzed Ghost yet."}, contents(out))
}

func TestShowDetails(t *testing.T) {
	f := newFixture(t)
	f.seedTesla(t)

	out := f.turn(t, NewSession(), "tell me more", model.ShowDetailsIntent{Mentions: mentions("Tesla")})
	require.Len(t, out, 1)
	assert.Equal(t, "📊 **Detailed Analysis for Tesla**\n\n"+
		"**Overall Score:** 68.8/100 (Fair)\n\n"+
		"**Category Breakdown:**\n"+
		"- 🌍 Environmental: 56.0/100 (40% weight)\n"+
		"- 👥 Social: 71.0/100 (35% weight)\n"+
		"- ⚖️ Governance: 86.0/100 (25% weight)\n\n"+
		"**Strengths:**\n"+
		"- Stakeholder Engagement: 92.0/100\n"+
		"- Risk Management: 89.0/100\n"+
		"- Transparency and Reporting: 86.0/100\n\n"+
		"**Areas for Improvement:**\n"+
		"- Carbon Emissions Reduction: 50.0/100\n"+
		"- Renewable Energy Usage: 53.0/100\n"+
		"- Waste Management: 56.0/100", out[0].Content)
}

func TestShowCategory(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "Tesla", func(i int) float64 { return []float64{40, 80, 60, 75, 49.9}[i%5] })

	out := f.turn(t, NewSession(), "environment?", model.ShowCategoryIntent{Mentions: mentions("Tesla"), Category: model.Environmental})
	assert.Equal(t, []string{"🌍 **Tesla's Environmental Performance:**\n\n" +
		"**Score: 61.0/100**\n\n" +
		"**Key Metrics:**\n" +
		"✅ Renewable Energy Usage: 80.0/100\n" +
		"✅ Water Conservation: 75.0/100\n" +
		"⚠️ Waste Management: 60.0/100\n" +
		"❌ Sustainable Materials: 49.9/100\n" +
		"❌ Carbon Emissions Reduction: 40.0/100"}, contents(out))
}

func TestShowStrengthsWeaknesses(t *testing.T) {
	f := newFixture(t)
	f.seedTesla(t)

	out := f.turn(t, NewSession(), "good at?", model.ShowStrengthsWeaknessesIntent{Mentions: mentions("Tesla")})
	require.Len(t, out, 1)
	got := out[0].Content
	assert.True(t, strings.HasPrefix(got, "**Tesla's Strengths & Weaknesses:**\n\n💪 **Top Strengths:**\n- Stakeholder Engagement: 92.0/100\n"))
	assert.Contains(t, got, "- Board Independence: 80.0/100\n\n⚠️ **Areas Needing Improvement:**\n- Carbon Emissions Reduction: 50.0/100\n")
	assert.True(t, strings.HasSuffix(got, "- Sustainable Materials: 62.0/100"))
}

func TestQuestion_AnswersFromSources(t *testing.T) {
	f := newFixture(t)
	f.seedTesla(t)

	f.llm.On("Complete", mock.Anything, mock.MatchedBy(func(req llm.Request) bool {
		return req.Phase == "rag" &&
			req.Temperature == 0.3 &&
			req.MaxTokens == 500 &&
			strings.Contains(req.System, "Answer the user's question about Tesla") &&
			strings.Contains(req.Prompt, "Source: https://example.com/tesla/impact\nTesla cut emissions") &&
			strings.Contains(req.Prompt, "\n\n---\n\n") &&
			strings.Contains(req.Prompt, "Question: How does Tesla handle emissions?")
	})).Return(&llm.Result{Text: " Tesla cut emissions by 40%. "}, nil).Once()

	out := f.turn(t, NewSession(), "How does Tesla handle emissions?", model.QuestionIntent{
		Mentions: mentions("Tesla"),
		Question: "How does Tesla handle emissions?",
	})
	assert.Equal(t, []string{"**Regarding Tesla:**\n\nTesla cut emissions by 40%.\n\n\n" +
		"*Based on our analysis, Tesla has an overall sustainability score of 68.8/100.*"}, contents(out))
}

func TestQuestion_Failures(t *testing.T) {
	f := newFixture(t)
	f.seedTesla(t)

	out := f.turn(t, NewSession(), "why?", model.QuestionIntent{Question: "why?"})
	assert.Equal(t, []string{"Please specify a company for your question."}, contents(out))

	out = f.turn(t, NewSession(), "ghost?", model.QuestionIntent{Mentions: mentions("Ghost"), Question: "ghost?"})
	assert.Equal(t, []string{"Something went wrong - Ghost should have been analyzed already."}, contents(out))

	f.llm.On("Complete", mock.Anything, mock.Anything).Return(nil, errors.New("overloaded")).Once()
	out = f.turn(t, NewSession(), "tesla?", model.QuestionIntent{Mentions: mentions("Tesla"), Question: "tesla?"})
	assert.Equal(t, []string{"I couldn't generate an answer: overloaded"}, contents(out))
}

func TestRAGContext_LimitsSources(t *testing.T) {
	long := strings.Repeat("é", ragSourceChars+10)
	got := ragContext([]model.Source{
		{URL: "a", Content: long},
		{URL: "b", Content: "x"},
		{URL: "c", Content: "y"},
		{URL: "d", Content: "z"},
	})
	parts := strings.Split(got, ragSeparator)
	require.Len(t, parts, 3)
	assert.Equal(t, "Source: a\n"+strings.Repeat("é", ragSourceChars), parts[0])
	assert.Equal(t, "Source: c\ny", parts[2])
}

func TestListCompanies(t *testing.T) {
	f := newFixture(t)
	f.seedTesla(t)
	f.seed(t, "Apple", flat(60))

	out := f.turn(t, NewSession(), "list", model.ListCompaniesIntent{})
	require.Len(t, out, 1)
	assert.True(t, strings.HasPrefix(out[0].Content, "📋 **I've analyzed 2 companies:**\n\n"))
	assert.Contains(t, out[0].Content, "- **Tesla**: 68.8/100")
	assert.Contains(t, out[0].Content, "- **Apple**: 60.0/100")
}

func TestDelete(t *testing.T) {
	f := newFixture(t)
	f.seedTesla(t)

	out := f.turn(t, NewSession(), "delete", model.DeleteIntent{Mentions: mentions("tesla", "Ghost")})
	assert.Equal(t, []string{"🗑️ Deleted: Tesla\n⚠️ Not found: Ghost"}, contents(out))

	names, err := f.dir.Names(context.Background())
	require.NoError(t, err)
	assert.Empty(t, names)

	out = f.turn(t, NewSession(), "delete", model.DeleteIntent{})
	assert.Equal(t, []string{"Please specify which company/companies to delete."}, contents(out))
}

func TestClear_ResetsConversation(t *testing.T) {
	f := newFixture(t)
	f.seedTesla(t)
	sess := NewSession()
	f.turn(t, sess, "list", model.ListCompaniesIntent{})
	require.Len(t, sess.Messages(), 3)

	out := f.turn(t, sess, "clear everything", model.ClearIntent{})
	assert.Equal(t, []string{Greeting}, contents(out))
	assert.Len(t, sess.Messages(), 1)

	names, err := f.dir.Names(context.Background())
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestDownload(t *testing.T) {
	f := newFixture(t)
	f.seedTesla(t)
	f.seed(t, "Apple", flat(60))

	f.exporter.On("Export", mock.Anything, mock.MatchedBy(func(a []*model.Analysis) bool {
		return len(a) == 1 && a[0].Company.Name == "Tesla"
	})).Return([]string{"reports/Tesla_Sustainability_Report_2026-10-15.md"}, nil).Once()

	out := f.turn(t, NewSession(), "download tesla", model.DownloadIntent{Mentions: mentions("Tesla")})
	require.Len(t, out, 1)
	assert.Equal(t, "✅ Report ready for **Tesla**:\n- reports/Tesla_Sustainability_Report_2026-10-15.md", out[0].Content)
	assert.Equal(t, []string{"reports/Tesla_Sustainability_Report_2026-10-15.md"}, out[0].Files)

	f.exporter.On("Export", mock.Anything, mock.Anything).Return(nil, errors.New("disk full")).Once()
	out = f.turn(t, NewSession(), "download both", model.DownloadIntent{Mentions: mentions("Tesla", "Apple")})
	assert.Equal(t, []string{"❌ Sorry, there was an error generating the report: disk full"}, contents(out))
}

func TestDownload_Prompts(t *testing.T) {
	f := newFixture(t)
	f.seedTesla(t)

	out := f.turn(t, NewSession(), "download", model.DownloadIntent{})
	assert.Equal(t, []string{"Please specify which company/companies to download a report for."}, contents(out))

	out = f.turn(t, NewSession(), "download", model.DownloadIntent{Mentions: mentions("Tesla", "Ghost", "Phantom")})
	assert.Equal(t, []string{"I haven't analyzed the following companies yet: Ghost, Phantom\n\n" +
		"Please analyze them first before downloading a report."}, contents(out))
}

func TestMetricIcon(t *testing.T) {
	assert.Equal(t, "✅", metricIcon(75))
	assert.Equal(t, "⚠️", metricIcon(74.9))
	assert.Equal(t, "⚠️", metricIcon(50))
	assert.Equal(t, "❌", metricIcon(49.99))
}
