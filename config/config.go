package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	App       AppConfig       `yaml:"app"`
	Source    SourceConfig    `yaml:"source"`
	Panels    PanelsConfig    `yaml:"panels"`
	Retry     RetryConfig     `yaml:"retry"`
	Dashboard DashboardConfig `yaml:"dashboard"`
	UI        UIConfig        `yaml:"ui"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type AppConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

// SourceConfig configures the CoinGecko client. Every panel gets its own client
// built from this section.
type SourceConfig struct {
	BaseURL    string          `yaml:"base_url"`
	APIKey     string          `yaml:"api_key"`
	VsCurrency string          `yaml:"vs_currency"`
	UserAgent  string          `yaml:"user_agent"`
	Timeout    time.Duration   `yaml:"timeout"`
	RateLimit  RateLimitConfig `yaml:"rate_limit"`
}

type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute"`
	BurstSize         int `yaml:"burst_size"`
}

type PanelsConfig struct {
	BitcoinChart PanelConfig `yaml:"bitcoin_chart"`
	TopCoins     PanelConfig `yaml:"top_coins"`
	Portfolio    PanelConfig `yaml:"portfolio"`
}

type PanelConfig struct {
	Enabled         bool          `yaml:"enabled"`
	RefreshInterval time.Duration `yaml:"refresh_interval"`
	Limit           int           `yaml:"limit"`
}

type RetryConfig struct {
	MaxRetries int           `yaml:"max_retries"`
	BaseDelay  time.Duration `yaml:"base_delay"`
	MaxDelay   time.Duration `yaml:"max_delay"`
}

// DashboardConfig controls the HTTP dashboard. RefreshInterval is how often the
// browser re-reads panel state from the server; it never triggers API fetches.
type DashboardConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Address         string        `yaml:"address"`
	RefreshInterval time.Duration `yaml:"refresh_interval"`
	EventHistory    int           `yaml:"event_history"`
	LogHistory      int           `yaml:"log_history"`
}

type UIConfig struct {
	Mode        string `yaml:"mode"`
	Timezone    string `yaml:"timezone"`
	Attribution string `yaml:"attribution"`
}

type MetricsConfig struct {
	Prometheus bool             `yaml:"prometheus"`
	CloudWatch CloudWatchConfig `yaml:"cloudwatch"`
}

type CloudWatchConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Region    string `yaml:"region"`
	Namespace string `yaml:"namespace"`
	Dashboard string `yaml:"dashboard"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
	MaxAge int    `yaml:"max_age"`
}

const (
	UIModeWeb      = "web"
	UIModeTerminal = "terminal"
)

// Default returns the configuration used when a key is absent from the file.
func Default() Config {
	return Config{
		App: AppConfig{Name: "cryptodash", Version: "dev"},
		Source: SourceConfig{
			BaseURL:    "https://api.coingecko.com/api/v3",
			VsCurrency: "usd",
			UserAgent:  "cryptodash/1.0",
			RateLimit:  RateLimitConfig{RequestsPerMinute: 10, BurstSize: 3},
		},
		Panels: PanelsConfig{
			BitcoinChart: PanelConfig{Enabled: true, RefreshInterval: 10 * time.Minute},
			TopCoins:     PanelConfig{Enabled: true, RefreshInterval: 2 * time.Minute, Limit: 5},
			Portfolio:    PanelConfig{Enabled: true, RefreshInterval: 5 * time.Minute},
		},
		Retry: RetryConfig{MaxRetries: 2, BaseDelay: time.Second, MaxDelay: 30 * time.Second},
		Dashboard: DashboardConfig{
			Enabled:         true,
			Address:         "0.0.0.0:8080",
			RefreshInterval: 5 * time.Second,
			EventHistory:    200,
			LogHistory:      200,
		},
		UI:      UIConfig{Mode: UIModeWeb, Timezone: "UTC"},
		Metrics: MetricsConfig{Prometheus: true, CloudWatch: CloudWatchConfig{Namespace: "CryptoDash", Dashboard: "CryptoDash"}},
		Logging: LoggingConfig{Level: "info", Format: "json", Output: "stdout"},
	}
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyEnvOverrides(&config)

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("COINGECKO_API_KEY")); v != "" {
		cfg.Source.APIKey = v
	}
	if v := strings.TrimSpace(os.Getenv("COINGECKO_BASE_URL")); v != "" {
		cfg.Source.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("DASHBOARD_ADDRESS")); v != "" {
		cfg.Dashboard.Address = v
	}
	if cfg.Metrics.CloudWatch.Enabled && cfg.Metrics.CloudWatch.Region == "" {
		cfg.Metrics.CloudWatch.Region = strings.TrimSpace(os.Getenv("AWS_REGION"))
	}
	cfg.Source.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.Source.BaseURL), "/")
}

func validateConfig(cfg *Config) error {
	if cfg.App.Name == "" {
		return fmt.Errorf("app.name is required")
	}

	parsed, err := url.Parse(cfg.Source.BaseURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return fmt.Errorf("source.base_url '%s' must be an absolute http(s) URL", cfg.Source.BaseURL)
	}
	if cfg.Source.VsCurrency == "" {
		return fmt.Errorf("source.vs_currency is required")
	}
	if cfg.Source.Timeout < 0 {
		return fmt.Errorf("source.timeout must not be negative")
	}
	if cfg.Source.RateLimit.RequestsPerMinute < 0 || cfg.Source.RateLimit.BurstSize < 0 {
		return fmt.Errorf("source.rate_limit values must not be negative")
	}

	panels := map[string]PanelConfig{
		"bitcoin_chart": cfg.Panels.BitcoinChart,
		"top_coins":     cfg.Panels.TopCoins,
		"portfolio":     cfg.Panels.Portfolio,
	}
	enabled := 0
	for name, p := range panels {
		if !p.Enabled {
			continue
		}
		enabled++
		if p.RefreshInterval <= 0 {
			return fmt.Errorf("panels.%s.refresh_interval must be greater than 0", name)
		}
	}
	if enabled == 0 {
		return fmt.Errorf("at least one panel must be enabled")
	}
	if cfg.Panels.TopCoins.Enabled && cfg.Panels.TopCoins.Limit <= 0 {
		return fmt.Errorf("panels.top_coins.limit must be greater than 0")
	}

	if cfg.Retry.MaxRetries < 0 {
		return fmt.Errorf("retry.max_retries must not be negative")
	}
	if cfg.Retry.BaseDelay <= 0 {
		return fmt.Errorf("retry.base_delay must be greater than 0")
	}
	if cfg.Retry.MaxDelay < cfg.Retry.BaseDelay {
		return fmt.Errorf("retry.max_delay must be at least retry.base_delay")
	}

	if err := validateMode(cfg); err != nil {
		return err
	}
	if _, err := time.LoadLocation(cfg.UI.Timezone); err != nil {
		return fmt.Errorf("ui.timezone '%s' is invalid: %w", cfg.UI.Timezone, err)
	}

	if cfg.Metrics.CloudWatch.Enabled && cfg.Metrics.CloudWatch.Namespace == "" {
		return fmt.Errorf("metrics.cloudwatch.namespace is required when CloudWatch is enabled")
	}

	return nil
}

func validateMode(cfg *Config) error {
	switch cfg.UI.Mode {
	case UIModeWeb:
		if !cfg.Dashboard.Enabled {
			return fmt.Errorf("dashboard.enabled must be true when ui.mode is %q", UIModeWeb)
		}
	case UIModeTerminal:
	default:
		return fmt.Errorf("ui.mode '%s' is invalid", cfg.UI.Mode)
	}
	return nil
}

// SetMode overrides ui.mode after loading, with the same checks LoadConfig
// applies. The previous mode is kept on error.
func (c *Config) SetMode(mode string) error {
	prev := c.UI.Mode
	c.UI.Mode = mode
	if err := validateMode(c); err != nil {
		c.UI.Mode = prev
		return err
	}
	return nil
}

// Location resolves the display timezone. Validation guarantees it parses.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.UI.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
