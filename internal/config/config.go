package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Server   ServerConfig   `yaml:"server"`
	Schedule ScheduleConfig `yaml:"schedule"`
	LLM      LLMConfig      `yaml:"llm"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Sources  SourcesConfig  `yaml:"sources"`
	Alerts   AlertsConfig   `yaml:"alerts"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// DatabaseConfig selects the storage backend.
type DatabaseConfig struct {
	Driver string `yaml:"driver"` // "sqlite" or "postgres"
	Path   string `yaml:"path"`   // sqlite file path
	DSN    string `yaml:"dsn"`    // postgres connection string
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// ScheduleConfig configures the run trigger loop.
type ScheduleConfig struct {
	CheckInterval  string `yaml:"check_interval"`
	DefaultTracker string `yaml:"default_tracker_interval"`
}

// ParseCheckInterval returns how often due trackers are looked for.
func (s ScheduleConfig) ParseCheckInterval() time.Duration {
	d, err := time.ParseDuration(s.CheckInterval)
	if err != nil || d <= 0 {
		return time.Minute
	}
	return d
}

// LLMConfig configures the completion capability used by the planner
// and the enricher.
type LLMConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Provider string `yaml:"provider"` // "openai" or "anthropic"
	Model    string `yaml:"model"`
	APIKey   string `yaml:"api_key"`
	BaseURL  string `yaml:"base_url"`
}

// PipelineConfig tunes the processing pipeline.
type PipelineConfig struct {
	BatchSize      int      `yaml:"batch_size"`
	PerQueryLimit  int      `yaml:"per_query_limit"`
	TrustedSources []string `yaml:"trusted_sources"`
}

// SourcesConfig holds configuration for all source adapters.
type SourcesConfig struct {
	Web    WebConfig    `yaml:"web"`
	Neural NeuralConfig `yaml:"neural"`
	Feed   FeedConfig   `yaml:"feed"`
	Page   PageConfig   `yaml:"page"`
}

// WebConfig for the broad web search adapter.
type WebConfig struct {
	Enabled bool   `yaml:"enabled"`
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
}

// NeuralConfig for the semantic search adapter.
type NeuralConfig struct {
	Enabled bool   `yaml:"enabled"`
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
}

// FeedConfig for the RSS/Atom adapter.
type FeedConfig struct {
	Enabled bool       `yaml:"enabled"`
	MaxAge  string     `yaml:"max_age"`
	Feeds   []FeedItem `yaml:"feeds"`
}

// ParseMaxAge returns the feed entry age cutoff.
func (f FeedConfig) ParseMaxAge() time.Duration {
	d, err := time.ParseDuration(f.MaxAge)
	if err != nil || d <= 0 {
		return 7 * 24 * time.Hour
	}
	return d
}

// FeedItem is a single RSS/Atom feed entry.
type FeedItem struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

// PageConfig for the listing-page scraping adapter.
type PageConfig struct {
	Enabled bool       `yaml:"enabled"`
	Pages   []PageItem `yaml:"pages"`
}

// PageItem describes one listing page and its selectors.
type PageItem struct {
	Name         string `yaml:"name"`
	URL          string `yaml:"url"`
	ItemSelector string `yaml:"item_selector"`
	Title        string `yaml:"title_selector"`
	Link         string `yaml:"link_selector"`
	Blurb        string `yaml:"blurb_selector"`
	Image        string `yaml:"image_selector"`
}

// AlertsConfig configures completed-run notifications.
type AlertsConfig struct {
	MinResults int           `yaml:"min_results"`
	Slack      SlackConfig   `yaml:"slack"`
	Discord    DiscordConfig `yaml:"discord"`
	Webhook    WebhookConfig `yaml:"webhook"`
}

// SlackConfig for Slack webhook alerts.
type SlackConfig struct {
	Enabled    bool   `yaml:"enabled"`
	WebhookURL string `yaml:"webhook_url"`
}

// DiscordConfig for Discord webhook alerts.
type DiscordConfig struct {
	Enabled    bool   `yaml:"enabled"`
	WebhookURL string `yaml:"webhook_url"`
}

// WebhookConfig for generic webhook alerts.
type WebhookConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	Secret  string `yaml:"secret"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{Driver: "sqlite", Path: "./tracklens.db"},
		Server:   ServerConfig{Port: 8080},
		Schedule: ScheduleConfig{
			CheckInterval:  "1m",
			DefaultTracker: "1h",
		},
		LLM: LLMConfig{
			Provider: "openai",
			Model:    "gpt-4o-mini",
		},
		Pipeline: PipelineConfig{
			BatchSize:      10,
			PerQueryLimit:  10,
			TrustedSources: []string{"feed"},
		},
		Sources: SourcesConfig{
			Web:    WebConfig{Enabled: true},
			Neural: NeuralConfig{Enabled: false},
			Feed: FeedConfig{
				Enabled: true,
				MaxAge:  "168h",
				Feeds: []FeedItem{
					{Name: "TechCrunch", URL: "https://techcrunch.com/feed/"},
					{Name: "The Verge", URL: "https://www.theverge.com/rss/index.xml"},
					{Name: "Ars Technica", URL: "https://feeds.arstechnica.com/arstechnica/index"},
				},
			},
			Page: PageConfig{Enabled: false},
		},
		Alerts:  AlertsConfig{MinResults: 1},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load reads configuration from a YAML file and applies env var
// overrides. A .env file next to the process is honored if present.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

// applyEnvOverrides overrides config values with environment variables.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("TRACKLENS_DB_PATH"); v != "" {
		cfg.Database.Driver = "sqlite"
		cfg.Database.Path = v
	}
	if v := os.Getenv("TRACKLENS_DB_DSN"); v != "" {
		cfg.Database.Driver = "postgres"
		cfg.Database.DSN = v
	}
	if v := os.Getenv("TRACKLENS_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("WEB_SEARCH_API_KEY"); v != "" {
		cfg.Sources.Web.APIKey = v
		cfg.Sources.Web.Enabled = true
	}
	if v := os.Getenv("WEB_SEARCH_BASE_URL"); v != "" {
		cfg.Sources.Web.BaseURL = v
	}
	if v := os.Getenv("NEURAL_SEARCH_API_KEY"); v != "" {
		cfg.Sources.Neural.APIKey = v
		cfg.Sources.Neural.Enabled = true
	}
	if v := os.Getenv("NEURAL_SEARCH_BASE_URL"); v != "" {
		cfg.Sources.Neural.BaseURL = v
	}
	if v := os.Getenv("SLACK_WEBHOOK_URL"); v != "" {
		cfg.Alerts.Slack.WebhookURL = v
		cfg.Alerts.Slack.Enabled = true
	}
	if v := os.Getenv("DISCORD_WEBHOOK_URL"); v != "" {
		cfg.Alerts.Discord.WebhookURL = v
		cfg.Alerts.Discord.Enabled = true
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
		cfg.LLM.Enabled = true
		cfg.LLM.Provider = "openai"
	}
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
		cfg.LLM.Enabled = true
		cfg.LLM.Provider = "anthropic"
	}
}
