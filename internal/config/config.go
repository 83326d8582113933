package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/esg-research/internal/cost"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Perplexity PerplexityConfig `yaml:"perplexity" mapstructure:"perplexity"`
	Firecrawl  FirecrawlConfig  `yaml:"firecrawl" mapstructure:"firecrawl"`
	Research   ResearchConfig   `yaml:"research" mapstructure:"research"`
	Cache      CacheConfig      `yaml:"cache" mapstructure:"cache"`
	Pricing    cost.Rates       `yaml:"pricing" mapstructure:"pricing"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Report     ReportConfig     `yaml:"report" mapstructure:"report"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend. Driver is "sqlite" or
// "postgres"; for sqlite DatabaseURL is a file path.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key        string `yaml:"key" mapstructure:"key"`
	BaseURL    string `yaml:"base_url" mapstructure:"base_url"`
	Model      string `yaml:"model" mapstructure:"model"`
	MaxRetries int    `yaml:"max_retries" mapstructure:"max_retries"`
}

// PerplexityConfig holds Perplexity API settings.
type PerplexityConfig struct {
	Key         string `yaml:"key" mapstructure:"key"`
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	Model       string `yaml:"model" mapstructure:"model"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// FirecrawlConfig holds Firecrawl API settings.
type FirecrawlConfig struct {
	Key         string `yaml:"key" mapstructure:"key"`
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// ResearchConfig configures source discovery and scraping.
type ResearchConfig struct {
	MaxSources      int `yaml:"max_sources" mapstructure:"max_sources"`
	ScrapeDelayMS   int `yaml:"scrape_delay_ms" mapstructure:"scrape_delay_ms"`
	MaxContentChars int `yaml:"max_content_chars" mapstructure:"max_content_chars"`
}

// ScrapeDelay returns the pause between scrape requests.
func (r ResearchConfig) ScrapeDelay() time.Duration {
	return time.Duration(r.ScrapeDelayMS) * time.Millisecond
}

// CacheConfig configures analysis reuse.
type CacheConfig struct {
	ExpiryDays int `yaml:"expiry_days" mapstructure:"expiry_days"`
}

// Window returns how long an analysis stays fresh.
func (c CacheConfig) Window() time.Duration {
	return time.Duration(c.ExpiryDays) * 24 * time.Hour
}

// ServerConfig configures the HTTP chat server.
type ServerConfig struct {
	Port               int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins     []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	SessionIdleMinutes int      `yaml:"session_idle_minutes" mapstructure:"session_idle_minutes"`
	MaxSessions        int      `yaml:"max_sessions" mapstructure:"max_sessions"`
}

// SessionIdle returns how long an unused chat session is kept.
func (c ServerConfig) SessionIdle() time.Duration {
	return time.Duration(c.SessionIdleMinutes) * time.Minute
}

// ReportConfig configures report export.
type ReportConfig struct {
	OutputDir string `yaml:"output_dir" mapstructure:"output_dir"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("ESG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "esg_research.db")
	v.SetDefault("anthropic.key", "")
	v.SetDefault("anthropic.base_url", "")
	v.SetDefault("anthropic.model", "claude-haiku-4-5")
	v.SetDefault("anthropic.max_retries", 2)
	v.SetDefault("perplexity.key", "")
	v.SetDefault("perplexity.base_url", "https://api.perplexity.ai")
	v.SetDefault("perplexity.model", "sonar")
	v.SetDefault("perplexity.timeout_secs", 30)
	v.SetDefault("firecrawl.key", "")
	v.SetDefault("firecrawl.base_url", "https://api.firecrawl.dev/v1")
	v.SetDefault("firecrawl.timeout_secs", 45)
	v.SetDefault("research.max_sources", 5)
	v.SetDefault("research.scrape_delay_ms", 1500)
	v.SetDefault("research.max_content_chars", 50000)
	v.SetDefault("cache.expiry_days", 7)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.session_idle_minutes", 120)
	v.SetDefault("server.max_sessions", 1000)
	v.SetDefault("report.output_dir", "reports")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("pricing.perplexity.per_query", 0.005)
	v.SetDefault("pricing.firecrawl.plan_monthly", 19.00)
	v.SetDefault("pricing.firecrawl.credits_included", 3000)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}
	if len(cfg.Pricing.Anthropic) == 0 {
		cfg.Pricing.Anthropic = cost.DefaultRates().Anthropic
	}

	return &cfg, nil
}

// Validation modes, one per group of commands.
const (
	ModeStore   = "store"   // companies, score, report, migrate
	ModeAnalyze = "analyze" // analyze
	ModeChat    = "chat"    // chat REPL
	ModeServe   = "serve"   // HTTP server
)

// Validate checks the settings needed by mode. API keys are only required
// by modes that call the providers.
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case ModeStore:
	case ModeAnalyze, ModeChat:
		errs = append(errs, c.requireKeys()...)
	case ModeServe:
		errs = append(errs, c.requireKeys()...)
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, "server.port must be between 1 and 65535")
		}
		if c.Server.SessionIdleMinutes <= 0 {
			errs = append(errs, "server.session_idle_minutes must be positive")
		}
		if c.Server.MaxSessions <= 0 {
			errs = append(errs, "server.max_sessions must be positive")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, "store.driver must be sqlite or postgres")
	}
	if c.Store.DatabaseURL == "" {
		errs = append(errs, "store.database_url is required")
	}
	if c.Cache.ExpiryDays < 1 {
		errs = append(errs, "cache.expiry_days must be >= 1")
	}
	if mode != ModeStore {
		if c.Research.MaxSources < 1 || c.Research.MaxSources > 20 {
			errs = append(errs, "research.max_sources must be between 1 and 20")
		}
		if c.Research.ScrapeDelayMS < 0 {
			errs = append(errs, "research.scrape_delay_ms must be >= 0")
		}
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) requireKeys() []string {
	var errs []string
	if c.Anthropic.Key == "" {
		errs = append(errs, "anthropic.key is required")
	}
	if c.Perplexity.Key == "" {
		errs = append(errs, "perplexity.key is required")
	}
	if c.Firecrawl.Key == "" {
		errs = append(errs, "firecrawl.key is required")
	}
	return errs
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
