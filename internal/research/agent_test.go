package research

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/esg-research/pkg/firecrawl"
	firecrawlmocks "github.com/sells-group/esg-research/pkg/firecrawl/mocks"
	"github.com/sells-group/esg-research/pkg/perplexity"
	perplexitymocks "github.com/sells-group/esg-research/pkg/perplexity/mocks"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestAgent(t *testing.T, opts ...Option) (*Agent, *perplexitymocks.MockClient, *firecrawlmocks.MockClient) {
	t.Helper()
	pp := perplexitymocks.NewMockClient(t)
	fc := firecrawlmocks.NewMockClient(t)
	opts = append([]Option{WithScrapeDelay(0), WithClock(func() time.Time { return fixedNow })}, opts...)
	return NewAgent(pp, fc, opts...), pp, fc
}

func page(markdown string) *firecrawl.ScrapeResponse {
	return &firecrawl.ScrapeResponse{Success: true, Data: firecrawl.PageData{Markdown: markdown}}
}

func scrapeOf(url string) interface{} {
	return mock.MatchedBy(func(req firecrawl.ScrapeRequest) bool { return req.URL == url })
}

func TestSearch_ReturnsTopTenCitations(t *testing.T) {
	a, pp, _ := newTestAgent(t)

	var citations []string
	for i := 0; i < 14; i++ {
		citations = append(citations, "https://example.com/"+string(rune('a'+i)))
	}
	pp.On("ChatCompletion", mock.Anything, mock.MatchedBy(func(req perplexity.ChatCompletionRequest) bool {
		return len(req.Messages) == 2 &&
			req.Messages[0].Role == "system" &&
			strings.Contains(req.Messages[1].Content, "Tesla's sustainability practices") &&
			req.Temperature != nil && *req.Temperature == 0.2 &&
			req.MaxTokens != nil && *req.MaxTokens == 1000
	})).Return(&perplexity.ChatCompletionResponse{Citations: citations}, nil)

	urls := a.Search(context.Background(), "Tesla")
	require.Len(t, urls, MaxSearchURLs)
	assert.Equal(t, citations[:10], urls)
}

func TestSearch_FailureYieldsEmpty(t *testing.T) {
	a, pp, _ := newTestAgent(t)
	pp.On("ChatCompletion", mock.Anything, mock.Anything).Return(nil, errors.New("perplexity: unexpected status 401"))

	urls := a.Search(context.Background(), "Tesla")
	assert.NotNil(t, urls)
	assert.Empty(t, urls)
}

func TestSearch_FallsBackToSearchResults(t *testing.T) {
	a, pp, _ := newTestAgent(t)
	pp.On("ChatCompletion", mock.Anything, mock.Anything).Return(&perplexity.ChatCompletionResponse{
		SearchResults: []perplexity.SearchResult{{URL: "https://a.example"}, {URL: ""}, {URL: "https://b.example"}},
	}, nil)

	assert.Equal(t, []string{"https://a.example", "https://b.example"}, a.Search(context.Background(), "Nike"))
}

func TestScrape(t *testing.T) {
	tests := []struct {
		name    string
		resp    *firecrawl.ScrapeResponse
		err     error
		wantNil bool
	}{
		{name: "success", resp: page("# Impact report")},
		{name: "request error", err: errors.New("firecrawl: HTTP 500"), wantNil: true},
		{name: "unsuccessful", resp: &firecrawl.ScrapeResponse{Success: false, Error: "blocked"}, wantNil: true},
		{name: "empty markdown", resp: page(""), wantNil: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, _, fc := newTestAgent(t)
			fc.On("Scrape", mock.Anything, mock.MatchedBy(func(req firecrawl.ScrapeRequest) bool {
				return req.URL == "https://tesla.com/impact" &&
					assert.ObjectsAreEqual([]string{"markdown"}, req.Formats) &&
					req.OnlyMainContent && req.WaitFor == 1000
			})).Return(tt.resp, tt.err)

			src := a.Scrape(context.Background(), "https://tesla.com/impact")
			if tt.wantNil {
				assert.Nil(t, src)
				return
			}
			require.NotNil(t, src)
			assert.Equal(t, "https://tesla.com/impact", src.URL)
			assert.Equal(t, "# Impact report", src.Content)
			assert.Equal(t, fixedNow, src.ScrapedAt)
		})
	}
}

func TestScrape_CapsContent(t *testing.T) {
	a, _, fc := newTestAgent(t, WithMaxContentChars(10))
	fc.On("Scrape", mock.Anything, mock.Anything).Return(page(strings.Repeat("x", 25)), nil)

	src := a.Scrape(context.Background(), "https://example.com")
	require.NotNil(t, src)
	assert.Len(t, src.Content, 10)
}

func TestScrapeSources_StopsAtMax(t *testing.T) {
	a, _, fc := newTestAgent(t)
	urls := []string{"u1", "u2", "u3", "u4"}
	fc.On("Scrape", mock.Anything, scrapeOf("u1")).Return(page("one"), nil).Once()
	fc.On("Scrape", mock.Anything, scrapeOf("u2")).Return(page("two"), nil).Once()

	sources, attempts := a.ScrapeSources(context.Background(), urls, 2)
	require.Len(t, sources, 2)
	assert.Equal(t, "u1", sources[0].URL)
	assert.Equal(t, "u2", sources[1].URL)
	assert.Equal(t, 2, attempts)
}

func TestScrapeSources_TriesAtMostTwiceMax(t *testing.T) {
	a, _, fc := newTestAgent(t)
	urls := []string{"u1", "u2", "u3", "u4", "u5", "u6", "u7"}
	fc.On("Scrape", mock.Anything, scrapeOf("u1")).Return(page("one"), nil).Once()
	fc.On("Scrape", mock.Anything, scrapeOf("u2")).Return(nil, errors.New("timeout")).Once()
	fc.On("Scrape", mock.Anything, scrapeOf("u3")).Return(page(""), nil).Once()
	fc.On("Scrape", mock.Anything, scrapeOf("u4")).Return(nil, errors.New("timeout")).Once()
	fc.On("Scrape", mock.Anything, scrapeOf("u5")).Return(page("five"), nil).Once()
	fc.On("Scrape", mock.Anything, scrapeOf("u6")).Return(nil, errors.New("timeout")).Once()

	sources, attempts := a.ScrapeSources(context.Background(), urls, 3)
	require.Len(t, sources, 2)
	assert.Equal(t, []string{"u1", "u5"}, []string{sources[0].URL, sources[1].URL})
	assert.Equal(t, 6, attempts)
	fc.AssertNotCalled(t, "Scrape", mock.Anything, scrapeOf("u7"))
}

func TestScrapeSources_SpacesRequests(t *testing.T) {
	a, _, fc := newTestAgent(t, WithScrapeDelay(40*time.Millisecond))
	var calls []time.Time
	fc.On("Scrape", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { calls = append(calls, time.Now()) }).
		Return(page("content"), nil)

	_, attempts := a.ScrapeSources(context.Background(), []string{"u1", "u2", "u3"}, 3)
	require.Equal(t, 3, attempts)
	require.Len(t, calls, 3)
	for i := 1; i < len(calls); i++ {
		assert.GreaterOrEqual(t, calls[i].Sub(calls[i-1]), 30*time.Millisecond)
	}
}

func TestScrapeSources_CancelledContext(t *testing.T) {
	a, _, _ := newTestAgent(t, WithScrapeDelay(time.Hour))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sources, attempts := a.ScrapeSources(ctx, []string{"u1", "u2"}, 2)
	assert.Empty(t, sources)
	assert.Equal(t, 0, attempts)
}

func TestResearch(t *testing.T) {
	a, pp, fc := newTestAgent(t, WithMaxSources(2))
	pp.On("ChatCompletion", mock.Anything, mock.Anything).
		Return(&perplexity.ChatCompletionResponse{Citations: []string{"u1", "u2", "u3"}}, nil)
	fc.On("Scrape", mock.Anything, scrapeOf("u1")).Return(page("one"), nil).Once()
	fc.On("Scrape", mock.Anything, scrapeOf("u2")).Return(page("two"), nil).Once()

	res := a.Research(context.Background(), "Patagonia")
	assert.Equal(t, "Patagonia", res.Company)
	assert.Equal(t, []string{"u1", "u2", "u3"}, res.URLs)
	assert.Len(t, res.Sources, 2)
	assert.Equal(t, 2, res.Attempts)
}

func TestResearch_NoURLs(t *testing.T) {
	a, pp, fc := newTestAgent(t)
	pp.On("ChatCompletion", mock.Anything, mock.Anything).Return(&perplexity.ChatCompletionResponse{}, nil)

	res := a.Research(context.Background(), "Unknown Co")
	assert.NotNil(t, res.Sources)
	assert.Empty(t, res.Sources)
	assert.Zero(t, res.Attempts)
	fc.AssertNotCalled(t, "Scrape", mock.Anything, mock.Anything)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "ab", truncate("abc", 2))
	assert.Equal(t, "héé", truncate("hééllo", 3))
	assert.Equal(t, "abc", truncate("abc", 0))
}
