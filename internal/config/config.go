// Package config loads the tool's settings from config files, .env files and
// the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/naka-gawa/github-contributions/internal/domain"
	"github.com/spf13/viper"
)

const (
	envPrefix = "GHCONTRIB"
	dirName   = ".github-contributions"
)

var validProviders = []string{"bedrock", "openai", "gemini"}

// Config is the root application configuration.
type Config struct {
	GitHub    GitHubConfig    `mapstructure:"github"`
	Caps      domain.Caps     `mapstructure:"caps"`
	Retry     RetryConfig     `mapstructure:"retry"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Search    SearchConfig    `mapstructure:"search"`
	Summary   SummaryConfig   `mapstructure:"summary"`
}

// GitHubConfig configures API access.
type GitHubConfig struct {
	Token          string        `mapstructure:"token"`
	APIURL         string        `mapstructure:"api_url"`
	GraphQLURL     string        `mapstructure:"graphql_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// RetryConfig configures retries of transient provider errors.
type RetryConfig struct {
	MaxAttempts    int           `mapstructure:"max_attempts"`
	InitialBackoff time.Duration `mapstructure:"initial_backoff"`
	MaxBackoff     time.Duration `mapstructure:"max_backoff"`
}

// RateLimitConfig configures the rate-limit guard.
type RateLimitConfig struct {
	MaxWait               time.Duration `mapstructure:"max_wait"`
	MinRemaining          int           `mapstructure:"min_remaining"`
	SecondaryLimitBackoff time.Duration `mapstructure:"secondary_backoff"`
	WindowDays            int           `mapstructure:"window_days"`
	WindowDelay           time.Duration `mapstructure:"window_delay"`
	RequestInterval       time.Duration `mapstructure:"request_interval"`
	BatchDelay            time.Duration `mapstructure:"batch_delay"`
}

// SearchConfig bounds search pagination.
type SearchConfig struct {
	MaxPages int `mapstructure:"max_pages"`
}

// SummaryConfig configures the optional AI summary.
type SummaryConfig struct {
	Provider       string `mapstructure:"provider"`
	Model          string `mapstructure:"model"`
	Region         string `mapstructure:"region"`
	MaxTokens      int    `mapstructure:"max_tokens"`
	MaxPromptBytes int    `mapstructure:"max_prompt_bytes"`
	OpenAIKey      string `mapstructure:"openai_api_key"`
	GeminiKey      string `mapstructure:"gemini_api_key"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		GitHub: GitHubConfig{
			RequestTimeout: 30 * time.Second,
		},
		Caps: domain.DefaultCaps,
		Retry: RetryConfig{
			MaxAttempts:    3,
			InitialBackoff: time.Second,
			MaxBackoff:     8 * time.Second,
		},
		RateLimit: RateLimitConfig{
			MaxWait:               15 * time.Minute,
			MinRemaining:          1,
			SecondaryLimitBackoff: time.Minute,
			WindowDays:            7,
			WindowDelay:           2 * time.Second,
			RequestInterval:       time.Second,
			BatchDelay:            time.Second,
		},
		Search: SearchConfig{
			MaxPages: 10,
		},
		Summary: SummaryConfig{
			Provider:       "bedrock",
			Model:          "anthropic.claude-3-sonnet-20240229-v1:0",
			Region:         "us-east-1",
			MaxTokens:      2000,
			MaxPromptBytes: 60000,
		},
	}
}

// Load reads .env files, the config file at path (or the first config.yaml
// found in the standard locations) and GHCONTRIB_* environment variables.
func Load(path string) (*Config, error) {
	loadEnvFiles()

	v := viper.New()
	v.SetConfigType("yaml")

	cfg := Default()
	v.SetDefault("github", map[string]any{
		"token":           cfg.GitHub.Token,
		"api_url":         cfg.GitHub.APIURL,
		"graphql_url":     cfg.GitHub.GraphQLURL,
		"request_timeout": cfg.GitHub.RequestTimeout,
	})
	v.SetDefault("caps", map[string]any{
		"commits":       cfg.Caps.Commits,
		"pull_requests": cfg.Caps.PullRequests,
		"issues":        cfg.Caps.Issues,
		"reviews":       cfg.Caps.Reviews,
	})
	v.SetDefault("retry", map[string]any{
		"max_attempts":    cfg.Retry.MaxAttempts,
		"initial_backoff": cfg.Retry.InitialBackoff,
		"max_backoff":     cfg.Retry.MaxBackoff,
	})
	v.SetDefault("rate_limit", map[string]any{
		"max_wait":          cfg.RateLimit.MaxWait,
		"min_remaining":     cfg.RateLimit.MinRemaining,
		"secondary_backoff": cfg.RateLimit.SecondaryLimitBackoff,
		"window_days":       cfg.RateLimit.WindowDays,
		"window_delay":      cfg.RateLimit.WindowDelay,
		"request_interval":  cfg.RateLimit.RequestInterval,
		"batch_delay":       cfg.RateLimit.BatchDelay,
	})
	v.SetDefault("search", map[string]any{
		"max_pages": cfg.Search.MaxPages,
	})
	v.SetDefault("summary", map[string]any{
		"provider":         cfg.Summary.Provider,
		"model":            cfg.Summary.Model,
		"region":           cfg.Summary.Region,
		"max_tokens":       cfg.Summary.MaxTokens,
		"max_prompt_bytes": cfg.Summary.MaxPromptBytes,
	})

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(dirName)
		v.AddConfigPath(".")
		if homeDir, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(homeDir, dirName))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadEnvFiles loads .env files; earlier files win because godotenv never
// overrides variables that are already set.
func loadEnvFiles() {
	files := []string{".env.local", ".env"}
	if homeDir, err := os.UserHomeDir(); err == nil {
		files = append(files, filepath.Join(homeDir, dirName, ".env"))
	}
	for _, file := range files {
		if _, err := os.Stat(file); err == nil {
			_ = godotenv.Load(file)
		}
	}
}

func applyEnvOverrides(cfg *Config) {
	if token := os.Getenv("GITHUB_TOKEN"); token != "" && cfg.GitHub.Token == "" {
		cfg.GitHub.Token = token
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" && cfg.Summary.OpenAIKey == "" {
		cfg.Summary.OpenAIKey = key
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" && cfg.Summary.GeminiKey == "" {
		cfg.Summary.GeminiKey = key
	}
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	var errs []error
	if c.Retry.MaxAttempts <= 0 {
		errs = append(errs, fmt.Errorf("retry.max_attempts must be positive"))
	}
	if c.Retry.InitialBackoff < 0 || c.Retry.MaxBackoff < 0 {
		errs = append(errs, fmt.Errorf("retry backoff durations must not be negative"))
	}
	if c.RateLimit.MaxWait < 0 || c.RateLimit.WindowDelay < 0 || c.RateLimit.RequestInterval < 0 ||
		c.RateLimit.BatchDelay < 0 || c.RateLimit.SecondaryLimitBackoff < 0 {
		errs = append(errs, fmt.Errorf("rate_limit durations must not be negative"))
	}
	if c.RateLimit.WindowDays <= 0 {
		errs = append(errs, fmt.Errorf("rate_limit.window_days must be positive"))
	}
	if c.Search.MaxPages <= 0 {
		errs = append(errs, fmt.Errorf("search.max_pages must be positive"))
	}
	if !slices.Contains(validProviders, strings.ToLower(c.Summary.Provider)) {
		errs = append(errs, fmt.Errorf("summary.provider must be one of %s", strings.Join(validProviders, ", ")))
	}
	if c.Summary.MaxPromptBytes <= 0 {
		errs = append(errs, fmt.Errorf("summary.max_prompt_bytes must be positive"))
	}
	if err := c.Caps.Validate(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return domain.NewConfigurationError(errors.Join(errs...))
	}
	return nil
}
