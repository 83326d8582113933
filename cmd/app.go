package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/esg-research/internal/chat"
	"github.com/sells-group/esg-research/internal/config"
	"github.com/sells-group/esg-research/internal/cost"
	"github.com/sells-group/esg-research/internal/extract"
	"github.com/sells-group/esg-research/internal/intent"
	"github.com/sells-group/esg-research/internal/llm"
	"github.com/sells-group/esg-research/internal/pipeline"
	"github.com/sells-group/esg-research/internal/report"
	"github.com/sells-group/esg-research/internal/research"
	"github.com/sells-group/esg-research/internal/scorer"
	"github.com/sells-group/esg-research/internal/store"
	anthropicpkg "github.com/sells-group/esg-research/pkg/anthropic"
	"github.com/sells-group/esg-research/pkg/firecrawl"
	"github.com/sells-group/esg-research/pkg/perplexity"
)

// appEnv holds the store and, outside store-only mode, the API clients and
// services built on it.
type appEnv struct {
	Store     store.Store
	Gate      *store.Gate
	Directory *store.Directory
	Renderer  *report.Renderer
	Exporter  *report.Exporter

	// Set only when the mode needs the providers.
	Analyzer *pipeline.Analyzer
	Chat     *chat.Service
}

// Close releases resources held by the environment.
func (e *appEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		return store.NewSQLite(cfg.Store.DatabaseURL)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initApp validates the config for mode, opens and migrates the store, and
// wires the services mode needs. Callers should defer env.Close().
func initApp(ctx context.Context, mode string) (*appEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	gate := store.NewGate(st, cfg.Cache.Window())
	renderer := report.NewRenderer()
	env := &appEnv{
		Store:     st,
		Gate:      gate,
		Directory: store.NewDirectory(st, gate),
		Renderer:  renderer,
		Exporter:  report.NewExporter(renderer, cfg.Report.OutputDir),
	}
	if mode == config.ModeStore {
		return env, nil
	}

	completer := llm.New(newAnthropicClient(), cfg.Anthropic.Model)
	agent := research.NewAgent(newPerplexityClient(), newFirecrawlClient(),
		research.WithMaxSources(cfg.Research.MaxSources),
		research.WithScrapeDelay(cfg.Research.ScrapeDelay()),
		research.WithMaxContentChars(cfg.Research.MaxContentChars),
		research.WithSearchModel(cfg.Perplexity.Model),
	)
	env.Analyzer = pipeline.NewAnalyzer(env.Directory, gate, agent, extract.New(completer),
		scorer.New(), cost.NewCalculator(cfg.Pricing))
	env.Chat = chat.NewService(env.Directory, intent.New(completer), env.Analyzer, completer, env.Exporter)
	return env, nil
}

func newAnthropicClient() anthropicpkg.Client {
	opts := []anthropicpkg.Option{anthropicpkg.WithMaxRetries(cfg.Anthropic.MaxRetries)}
	if cfg.Anthropic.BaseURL != "" {
		opts = append(opts, anthropicpkg.WithBaseURL(cfg.Anthropic.BaseURL))
	}
	return anthropicpkg.NewClient(cfg.Anthropic.Key, opts...)
}

func newPerplexityClient() perplexity.Client {
	return perplexity.NewClient(cfg.Perplexity.Key,
		perplexity.WithBaseURL(cfg.Perplexity.BaseURL),
		perplexity.WithModel(cfg.Perplexity.Model),
		perplexity.WithTimeout(time.Duration(cfg.Perplexity.TimeoutSecs)*time.Second),
	)
}

func newFirecrawlClient() firecrawl.Client {
	return firecrawl.NewClient(cfg.Firecrawl.Key,
		firecrawl.WithBaseURL(cfg.Firecrawl.BaseURL),
		firecrawl.WithTimeout(time.Duration(cfg.Firecrawl.TimeoutSecs)*time.Second),
	)
}
