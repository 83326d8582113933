package chat

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/esg-research/internal/llm"
	"github.com/sells-group/esg-research/internal/model"
	"github.com/sells-group/esg-research/internal/store"
)

// Answer generation settings.
const (
	ragSources      = 3
	ragSourceChars  = 3000
	ragTemperature  = 0.3
	ragMaxTokens    = 500
	ragSeparator    = "\n\n---\n\n"
	strengthsShown  = 5
	detailsShown    = 3
	goodMetricAbove = 75.0
	fairMetricAbove = 50.0
)

var categoryIcons = map[model.Category]string{
	model.Environmental: "🌍",
	model.Social:        "👥",
	model.Governance:    "⚖️",
}

func (s *Service) compare(ctx context.Context, companies []string) (string, error) {
	if len(companies) < 2 {
		return "⚠️ I need at least 2 companies to compare.", nil
	}
	analyses, err := s.dir.Analyses(ctx)
	if err != nil {
		return "", err
	}

	var found []*model.Analysis
	for _, name := range companies {
		if a, ok := lookup(analyses, name); ok && a.Score != nil {
			found = append(found, a)
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📊 **Comparison: %s**\n\n", strings.Join(companies, " vs "))
	if len(found) < 2 {
		b.WriteString("⚠️ I need at least 2 analyzed companies to compare.")
		return b.String(), nil
	}

	sort.SliceStable(found, func(i, j int) bool {
		return found[i].Score.FinalScore > found[j].Score.FinalScore
	})
	winner := found[0]
	fmt.Fprintf(&b, "🏆 **Winner: %s** with %.1f/100\n\n", winner.Company.Name, winner.Score.FinalScore)

	b.WriteString("**Detailed Comparison:**\n\n")
	for _, a := range found {
		fmt.Fprintf(&b, "**%s**: %.1f/100\n", a.Company.Name, a.Score.FinalScore)
		fmt.Fprintf(&b, "- 🌍 Environmental: %.1f\n", a.Score.EnvironmentalScore)
		fmt.Fprintf(&b, "- 👥 Social: %.1f\n", a.Score.SocialScore)
		fmt.Fprintf(&b, "- ⚖️ Governance: %.1f\n\n", a.Score.GovernanceScore)
	}

	diff := winner.Score.FinalScore - found[1].Score.FinalScore
	switch {
	case diff > 10:
		fmt.Fprintf(&b, "💡 %s significantly outperforms with a %.1f point lead.", winner.Company.Name, diff)
	case diff > 5:
		fmt.Fprintf(&b, "💡 %s has a moderate lead of %.1f points.", winner.Company.Name, diff)
	default:
		fmt.Fprintf(&b, "💡 Very close! Only %.1f points separate them.", diff)
	}
	return b.String(), nil
}

func (s *Service) showScore(ctx context.Context, company string) (string, error) {
	if company == "" {
		return "Please specify a company to check the score.", nil
	}
	a, ok, err := s.scored(ctx, company)
	if err != nil || !ok {
		return fmt.Sprintf("I haven't analyzed %s yet.", company), err
	}
	sc := a.Score
	return fmt.Sprintf("**%s's Sustainability Score:**\n\n"+
		"🎯 **Overall: %.1f/100** (%s)\n\n"+
		"That's based on:\n"+
		"- 🌍 Environmental: %.1f/100\n"+
		"- 👥 Social: %.1f/100\n"+
		"- ⚖️ Governance: %.1f/100",
		a.Company.Name, sc.FinalScore, sc.LevelOrDerive(),
		sc.EnvironmentalScore, sc.SocialScore, sc.GovernanceScore), nil
}

func (s *Service) showDetails(ctx context.Context, company string) (string, error) {
	if company == "" {
		return "Please specify a company.", nil
	}
	a, ok, err := s.scored(ctx, company)
	if err != nil || !ok {
		return fmt.Sprintf("I haven't analyzed %s yet.", company), err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📊 **Detailed Analysis for %s**\n\n", a.Company.Name)
	fmt.Fprintf(&b, "**Overall Score:** %.1f/100 (%s)\n\n", a.Score.FinalScore, a.Score.LevelOrDerive())
	b.WriteString("**Category Breakdown:**\n")
	for _, c := range model.Categories {
		fmt.Fprintf(&b, "- %s %s: %.1f/100 (%.0f%% weight)\n",
			categoryIcons[c], c, a.Score.CategoryScore(c), c.Weight()*100)
	}

	ranked := rankMetrics(a.Metrics)
	b.WriteString("\n**Strengths:**\n")
	for _, m := range head(ranked, detailsShown) {
		fmt.Fprintf(&b, "- %s: %.1f/100\n", m.Name, m.Value)
	}
	b.WriteString("\n**Areas for Improvement:**\n")
	for _, m := range tail(ranked, detailsShown) {
		fmt.Fprintf(&b, "- %s: %.1f/100\n", m.Name, m.Value)
	}
	return b.String(), nil
}

func (s *Service) showCategory(ctx context.Context, company string, c model.Category) (string, error) {
	if company == "" {
		return "Please specify a company.", nil
	}
	a, ok, err := s.scored(ctx, company)
	if err != nil || !ok {
		return fmt.Sprintf("I haven't analyzed %s yet.", company), err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s **%s's %s Performance:**\n\n", categoryIcons[c], a.Company.Name, c)
	fmt.Fprintf(&b, "**Score: %.1f/100**\n\n", a.Score.CategoryScore(c))
	b.WriteString("**Key Metrics:**\n")
	for _, m := range rankMetrics(a.MetricsIn(c)) {
		fmt.Fprintf(&b, "%s %s: %.1f/100\n", metricIcon(m.Value), m.Name, m.Value)
	}
	return b.String(), nil
}

func (s *Service) showStrengthsWeaknesses(ctx context.Context, company string) (string, error) {
	if company == "" {
		return "Please specify a company.", nil
	}
	a, ok, err := s.scored(ctx, company)
	if err != nil || !ok {
		return fmt.Sprintf("I haven't analyzed %s yet.", company), err
	}

	ranked := rankMetrics(a.Metrics)
	var b strings.Builder
	fmt.Fprintf(&b, "**%s's Strengths & Weaknesses:**\n\n", a.Company.Name)
	b.WriteString("💪 **Top Strengths:**\n")
	for _, m := range head(ranked, strengthsShown) {
		fmt.Fprintf(&b, "- %s: %.1f/100\n", m.Name, m.Value)
	}
	b.WriteString("\n⚠️ **Areas Needing Improvement:**\n")
	for _, m := range tail(ranked, strengthsShown) {
		fmt.Fprintf(&b, "- %s: %.1f/100\n", m.Name, m.Value)
	}
	return b.String(), nil
}

func (s *Service) answer(ctx context.Context, company, question string) (string, error) {
	if company == "" {
		return "Please specify a company for your question.", nil
	}
	analyses, err := s.dir.Analyses(ctx)
	if err != nil {
		return "", err
	}
	a, ok := lookup(analyses, company)
	if !ok {
		return fmt.Sprintf("Something went wrong - %s should have been analyzed already.", company), nil
	}
	name := a.Company.Name

	res, err := s.llm.Complete(ctx, llm.Request{
		System: fmt.Sprintf("You are a sustainability analyst. Answer the user's question about %s based on the "+
			"provided research content. Be specific and cite information from the sources when possible. "+
			"If the information isn't in the sources, say so.", name),
		Prompt: fmt.Sprintf("Research content about %s:\n%s\n\nQuestion: %s\n\n"+
			"Answer the question based on the research content provided above. Be specific and cite information "+
			"from the sources when possible. If the information isn't in the sources, say so clearly.",
			name, ragContext(a.Sources), question),
		Temperature: ragTemperature,
		MaxTokens:   ragMaxTokens,
		Phase:       "rag",
	})
	if err != nil {
		zap.L().Warn("chat: answer generation failed", zap.String("company", name), zap.Error(err))
		return fmt.Sprintf("I couldn't generate an answer: %v", err), nil
	}

	reply := fmt.Sprintf("**Regarding %s:**\n\n%s", name, strings.TrimSpace(res.Text))
	if a.Score != nil {
		reply += fmt.Sprintf("\n\n\n*Based on our analysis, %s has an overall sustainability score of %.1f/100.*",
			name, a.Score.FinalScore)
	}
	return reply, nil
}

// ragContext joins the first few sources, each truncated.
func ragContext(sources []model.Source) string {
	parts := make([]string, 0, ragSources)
	for _, src := range head(sources, ragSources) {
		parts = append(parts, fmt.Sprintf("Source: %s\n%s", src.URL, headRunes(src.Content, ragSourceChars)))
	}
	return strings.Join(parts, ragSeparator)
}

func (s *Service) listCompanies(ctx context.Context) (string, error) {
	entries, err := s.dir.List(ctx)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	n := 0
	for _, e := range entries {
		if e.Analysis == nil || e.Analysis.Score == nil {
			continue
		}
		n++
		fmt.Fprintf(&b, "- **%s**: %.1f/100\n", e.Company.Name, e.Analysis.Score.FinalScore)
	}
	if n == 0 {
		return "I haven't analyzed any companies yet. Tell me a company name to get started!", nil
	}
	return fmt.Sprintf("📋 **I've analyzed %d companies:**\n\n%s", n, b.String()), nil
}

func (s *Service) deleteCompanies(ctx context.Context, companies []string) (string, error) {
	if len(companies) == 0 {
		return "Please specify which company/companies to delete.", nil
	}
	entries, err := s.dir.List(ctx)
	if err != nil {
		return "", err
	}

	var deleted, missing []string
	for _, name := range companies {
		stored := storedName(entries, name)
		if stored == "" {
			missing = append(missing, name)
			continue
		}
		ok, err := s.dir.DeleteCompany(ctx, stored)
		if err != nil {
			return "", err
		}
		if ok {
			deleted = append(deleted, stored)
		} else {
			missing = append(missing, name)
		}
	}

	var b strings.Builder
	if len(deleted) > 0 {
		fmt.Fprintf(&b, "🗑️ Deleted: %s\n", strings.Join(deleted, ", "))
	}
	if len(missing) > 0 {
		fmt.Fprintf(&b, "⚠️ Not found: %s\n", strings.Join(missing, ", "))
	}
	return b.String(), nil
}

func (s *Service) download(ctx context.Context, companies []string) (string, []string, error) {
	if len(companies) == 0 {
		return "Please specify which company/companies to download a report for.", nil, nil
	}
	analyses, err := s.dir.Analyses(ctx)
	if err != nil {
		return "", nil, err
	}

	var (
		found   []*model.Analysis
		missing []string
	)
	for _, name := range companies {
		if a, ok := lookup(analyses, name); ok && a.Score != nil {
			found = append(found, a)
		} else {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Sprintf("I haven't analyzed the following companies yet: %s\n\n"+
			"Please analyze them first before downloading a report.", strings.Join(missing, ", ")), nil, nil
	}

	files, err := s.exporter.Export(ctx, found)
	if err != nil {
		zap.L().Error("chat: report export failed", zap.Strings("companies", companies), zap.Error(err))
		return fmt.Sprintf("❌ Sorry, there was an error generating the report: %v", err), nil, nil
	}

	names := make([]string, len(found))
	for i, a := range found {
		names[i] = a.Company.Name
	}
	var b strings.Builder
	if len(found) == 1 {
		fmt.Fprintf(&b, "✅ Report ready for **%s**:\n", names[0])
	} else {
		fmt.Fprintf(&b, "✅ Comparison report ready for **%s**:\n", strings.Join(names, " vs "))
	}
	for _, f := range files {
		fmt.Fprintf(&b, "- %s\n", f)
	}
	return b.String(), files, nil
}

// scored returns the fresh, scored analysis of company.
func (s *Service) scored(ctx context.Context, company string) (*model.Analysis, bool, error) {
	analyses, err := s.dir.Analyses(ctx)
	if err != nil {
		return nil, false, err
	}
	a, ok := lookup(analyses, company)
	if !ok || a.Score == nil {
		return nil, false, nil
	}
	return a, true, nil
}

// storedName resolves name against every stored company, fresh or not.
func storedName(entries []store.Entry, name string) string {
	for _, e := range entries {
		if e.Company.Name == name {
			return e.Company.Name
		}
	}
	for _, e := range entries {
		if strings.EqualFold(e.Company.Name, name) {
			return e.Company.Name
		}
	}
	return ""
}

// rankMetrics returns metrics sorted by value, best first. Ties keep their
// stored order.
func rankMetrics(metrics []model.Metric) []model.Metric {
	out := make([]model.Metric, len(metrics))
	copy(out, metrics)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Value > out[j].Value })
	return out
}

// tail returns the last n ranked metrics, worst first.
func tail(ranked []model.Metric, n int) []model.Metric {
	if n > len(ranked) {
		n = len(ranked)
	}
	out := make([]model.Metric, 0, n)
	for i := len(ranked) - 1; i >= len(ranked)-n; i-- {
		out = append(out, ranked[i])
	}
	return out
}

func head[T any](s []T, n int) []T {
	if n > len(s) {
		n = len(s)
	}
	return s[:n]
}

func metricIcon(v float64) string {
	switch {
	case v >= goodMetricAbove:
		return "✅"
	case v >= fairMetricAbove:
		return "⚠️"
	default:
		return "❌"
	}
}

func headRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
