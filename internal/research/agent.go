// Package research finds and scrapes web sources about a company's
// sustainability practices.
package research

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/esg-research/internal/model"
	"github.com/sells-group/esg-research/pkg/firecrawl"
	"github.com/sells-group/esg-research/pkg/perplexity"
)

// Research defaults.
const (
	DefaultMaxSources      = 5
	DefaultScrapeDelay     = 1500 * time.Millisecond
	DefaultMaxContentChars = 50000
)

// MaxSearchURLs is how many citations a search keeps.
const MaxSearchURLs = 10

// MinSources is the source count below which research logs a warning.
const MinSources = 3

// scrapeWaitMS lets client-side rendering settle before Firecrawl captures.
const scrapeWaitMS = 1000

const searchSystemPrompt = "You are a sustainability research assistant. Provide credible sources with URLs."

const searchQueryTemplate = `Find recent and credible sources about %s's sustainability practices.

Topics to focus on:
- Environmental: carbon emissions, renewable energy, waste management
- Social: labor practices, diversity, community impact
- Governance: ethics, transparency, board structure

Provide URLs to official reports, news articles, and credible sources.`

// Result is the outcome of researching one company.
type Result struct {
	Company string
	URLs    []string
	Sources []model.Source
	// Attempts counts scrape requests sent, successful or not.
	Attempts int
}

// Agent searches with Perplexity and scrapes with Firecrawl.
type Agent struct {
	search          perplexity.Client
	scrape          firecrawl.Client
	model           string
	maxSources      int
	delay           time.Duration
	maxContentChars int
	now             func() time.Time
}

// Option configures an Agent.
type Option func(*Agent)

// WithMaxSources sets how many successful scrapes Research aims for.
func WithMaxSources(n int) Option {
	return func(a *Agent) {
		if n > 0 {
			a.maxSources = n
		}
	}
}

// WithScrapeDelay sets the minimum spacing between scrape requests. Zero
// disables the delay.
func WithScrapeDelay(d time.Duration) Option {
	return func(a *Agent) {
		if d >= 0 {
			a.delay = d
		}
	}
}

// WithMaxContentChars caps the stored length of each scraped page.
func WithMaxContentChars(n int) Option {
	return func(a *Agent) {
		if n > 0 {
			a.maxContentChars = n
		}
	}
}

// WithSearchModel overrides the model field sent to Perplexity.
func WithSearchModel(m string) Option {
	return func(a *Agent) { a.model = m }
}

// WithClock overrides the time source used for ScrapedAt.
func WithClock(now func() time.Time) Option {
	return func(a *Agent) { a.now = now }
}

// NewAgent creates a research agent.
func NewAgent(search perplexity.Client, scrape firecrawl.Client, opts ...Option) *Agent {
	a := &Agent{
		search:          search,
		scrape:          scrape,
		maxSources:      DefaultMaxSources,
		delay:           DefaultScrapeDelay,
		maxContentChars: DefaultMaxContentChars,
		now:             time.Now,
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Search asks Perplexity for sustainability sources about company and
// returns up to MaxSearchURLs citation URLs. Failures are logged and yield
// an empty list.
func (a *Agent) Search(ctx context.Context, company string) []string {
	log := zap.L().With(zap.String("company", company))
	log.Info("research: searching")

	temp := 0.2
	maxTokens := 1000
	resp, err := a.search.ChatCompletion(ctx, perplexity.ChatCompletionRequest{
		Model: a.model,
		Messages: []perplexity.Message{
			{Role: "system", Content: searchSystemPrompt},
			{Role: "user", Content: fmt.Sprintf(searchQueryTemplate, company)},
		},
		Temperature: &temp,
		MaxTokens:   &maxTokens,
	})
	if err != nil {
		log.Error("research: search failed", zap.Error(err))
		return []string{}
	}

	urls := resp.URLs()
	if len(urls) > MaxSearchURLs {
		urls = urls[:MaxSearchURLs]
	}
	out := make([]string, len(urls))
	copy(out, urls)

	log.Info("research: search complete", zap.Int("urls", len(out)))
	return out
}

// Scrape fetches one page as markdown. It returns nil when the request
// fails or the page has no content.
func (a *Agent) Scrape(ctx context.Context, url string) *model.Source {
	log := zap.L().With(zap.String("url", url))

	resp, err := a.scrape.Scrape(ctx, firecrawl.ScrapeRequest{
		URL:             url,
		Formats:         []string{"markdown"},
		OnlyMainContent: true,
		WaitFor:         scrapeWaitMS,
	})
	if err != nil {
		log.Error("research: scrape failed", zap.Error(err))
		return nil
	}
	if !resp.Success || resp.Data.Markdown == "" {
		log.Warn("research: no content", zap.String("error", resp.Error))
		return nil
	}

	content := truncate(resp.Data.Markdown, a.maxContentChars)
	log.Debug("research: scraped", zap.Int("chars", len(content)))
	return &model.Source{URL: url, Content: content, ScrapedAt: a.now().UTC()}
}

// ScrapeSources scrapes urls in order until maxSources pages succeed,
// trying at most 2*maxSources URLs. Requests are spaced by the scrape delay.
// The returned attempt count includes failed scrapes.
func (a *Agent) ScrapeSources(ctx context.Context, urls []string, maxSources int) ([]model.Source, int) {
	if maxSources <= 0 {
		maxSources = a.maxSources
	}
	limit := rate.Inf
	if a.delay > 0 {
		limit = rate.Every(a.delay)
	}
	lim := rate.NewLimiter(limit, 1)

	candidates := urls
	if len(candidates) > maxSources*2 {
		candidates = candidates[:maxSources*2]
	}

	sources := make([]model.Source, 0, maxSources)
	attempts := 0
	for _, u := range candidates {
		if len(sources) >= maxSources {
			break
		}
		if err := lim.Wait(ctx); err != nil {
			zap.L().Warn("research: scraping interrupted", zap.Error(err))
			break
		}
		attempts++
		if src := a.Scrape(ctx, u); src != nil {
			sources = append(sources, *src)
		}
	}

	zap.L().Info("research: scraping complete",
		zap.Int("sources", len(sources)),
		zap.Int("attempts", attempts),
	)
	return sources, attempts
}

// Research searches for company and scrapes the results. An empty Sources
// slice means nothing usable was found.
func (a *Agent) Research(ctx context.Context, company string) *Result {
	res := &Result{Company: company, Sources: []model.Source{}}

	res.URLs = a.Search(ctx, company)
	if len(res.URLs) == 0 {
		zap.L().Error("research: no sources found", zap.String("company", company))
		return res
	}

	res.Sources, res.Attempts = a.ScrapeSources(ctx, res.URLs, a.maxSources)
	if len(res.Sources) < MinSources {
		zap.L().Warn("research: few sources",
			zap.String("company", company),
			zap.Int("sources", len(res.Sources)),
			zap.Int("target", a.maxSources),
		)
	}
	return res
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
