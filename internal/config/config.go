// Package config provides configuration loading for eventparse.
//
// Configuration is layered: hardcoded defaults, then an optional YAML file,
// then environment variables. Confidence bands, tier bonuses, and every
// timeout are configuration rather than constants so operators can retune
// routing behavior without a code change.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/JacoLabs/eventparse/internal/event"
)

// EngineVersion participates in cache keys; bumping it invalidates every
// cached result.
const EngineVersion = "v1"

// Config holds the complete eventparse configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Logging   LoggingConfig   `koanf:"logging"`
	Engine    EngineConfig    `koanf:"engine"`
	Backup    BackupConfig    `koanf:"backup"`
	Enhance   EnhanceConfig   `koanf:"enhance"`
	Cache     CacheConfig     `koanf:"cache"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// LoggingConfig holds logger configuration.
type LoggingConfig struct {
	Level  string `koanf:"level"`  // debug, info, warn, error
	Format string `koanf:"format"` // json or console
}

// EngineConfig holds pipeline-wide extraction tuning.
type EngineConfig struct {
	// Bands are the confidence band boundaries used by the router.
	Bands event.Bands `koanf:"bands"`

	// EssentialBoost raises the acceptance bar for essential fields
	// (title, start): their effective confidence is reduced by this amount
	// before band classification, so they escalate more aggressively.
	EssentialBoost float64 `koanf:"essential_boost"`

	// Arbiter scoring weights.
	ShortSpanBonus   float64 `koanf:"short_span_bonus"`   // spans under ShortSpanChars
	ShortSpanChars   int     `koanf:"short_span_chars"`
	TimezoneBonus    float64 `koanf:"timezone_bonus"`
	TimezonePenalty  float64 `koanf:"timezone_penalty"` // downgrade for zone-less datetimes
	SourcePreference []event.Source `koanf:"source_preference"`

	// Pattern tier confidence shaping.
	PatternBase      float64 `koanf:"pattern_base"`
	ExplicitBonus    float64 `koanf:"explicit_bonus"`    // minute-or-finer grain
	LongSpanPenalty  float64 `koanf:"long_span_penalty"` // spans over LongSpanChars
	LongSpanChars    int     `koanf:"long_span_chars"`

	// RequestDeadline bounds the whole request; fields still unresolved at
	// expiry are returned with their best available result.
	RequestDeadline time.Duration `koanf:"request_deadline"`

	// MaxTextBytes rejects oversized input before pipeline entry.
	MaxTextBytes int `koanf:"max_text_bytes"`
}

// BackupConfig holds the backup recognizer tier configuration.
type BackupConfig struct {
	Enabled bool          `koanf:"enabled"`
	URL     string        `koanf:"url"`
	Timeout time.Duration `koanf:"timeout"`
	// RatePerMinute limits recognizer calls across requests.
	RatePerMinute float64 `koanf:"rate_per_minute"`
}

// EnhanceConfig holds the constrained enhancement tier configuration.
type EnhanceConfig struct {
	Enabled  bool   `koanf:"enabled"`
	Provider string `koanf:"provider"` // "anthropic", "openai", or "disabled"
	Model    string `koanf:"model"`
	APIKey   Secret `koanf:"api_key"`
	BaseURL  string `koanf:"base_url"`
	// Timeout bounds a single enhancement invocation; at most one retry.
	Timeout       time.Duration `koanf:"timeout"`
	MaxRetries    int           `koanf:"max_retries"`
	MaxTokens     int           `koanf:"max_tokens"`
	RatePerMinute float64       `koanf:"rate_per_minute"`
}

// CacheConfig holds result cache configuration.
type CacheConfig struct {
	Enabled    bool          `koanf:"enabled"`
	TTL        time.Duration `koanf:"ttl"`
	MaxEntries int           `koanf:"max_entries"`
}

// Default returns the documented default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "localhost",
			Port:            8085,
			ShutdownTimeout: 10 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Engine: EngineConfig{
			Bands:           event.DefaultBands(),
			EssentialBoost:  0.1,
			ShortSpanBonus:  0.1,
			ShortSpanChars:  10,
			TimezoneBonus:   0.05,
			TimezonePenalty: 0.1,
			SourcePreference: []event.Source{
				event.SourcePattern,
				event.SourceBackup,
				event.SourceEnhancement,
			},
			PatternBase:     0.8,
			ExplicitBonus:   0.1,
			LongSpanPenalty: 0.05,
			LongSpanChars:   30,
			RequestDeadline: 6 * time.Second,
			MaxTextBytes:    16 * 1024,
		},
		Backup: BackupConfig{
			Enabled:       true,
			URL:           "http://localhost:8000/parse",
			Timeout:       800 * time.Millisecond,
			RatePerMinute: 120,
		},
		Enhance: EnhanceConfig{
			Enabled:       true,
			Provider:      "disabled",
			Timeout:       3 * time.Second,
			MaxRetries:    1,
			MaxTokens:     1024,
			RatePerMinute: 50,
		},
		Cache: CacheConfig{
			Enabled:    true,
			TTL:        24 * time.Hour,
			MaxEntries: 10000,
		},
	}
}

// Validate checks the configuration for internal consistency.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logging.format must be json or console, got %q", c.Logging.Format)
	}
	b := c.Engine.Bands
	if b.High <= 0 || b.High > 1 {
		return fmt.Errorf("engine.bands.high out of range: %v", b.High)
	}
	if b.Medium <= 0 || b.Medium >= b.High {
		return fmt.Errorf("engine.bands.medium must be in (0, high): %v", b.Medium)
	}
	if c.Engine.RequestDeadline <= 0 {
		return errors.New("engine.request_deadline must be positive")
	}
	if c.Engine.MaxTextBytes <= 0 {
		return errors.New("engine.max_text_bytes must be positive")
	}
	if len(c.Engine.SourcePreference) == 0 {
		return errors.New("engine.source_preference cannot be empty")
	}
	if c.Enhance.Enabled && c.Enhance.Provider != "disabled" {
		switch c.Enhance.Provider {
		case "anthropic", "openai":
			if !c.Enhance.APIKey.IsSet() {
				return fmt.Errorf("enhance.api_key required for provider %q", c.Enhance.Provider)
			}
		default:
			return fmt.Errorf("unknown enhance.provider: %q", c.Enhance.Provider)
		}
	}
	if c.Enhance.Timeout <= 0 {
		return errors.New("enhance.timeout must be positive")
	}
	if c.Enhance.MaxRetries < 0 || c.Enhance.MaxRetries > 3 {
		return fmt.Errorf("enhance.max_retries out of range: %d", c.Enhance.MaxRetries)
	}
	if c.Cache.Enabled {
		if c.Cache.TTL <= 0 {
			return errors.New("cache.ttl must be positive")
		}
		if c.Cache.MaxEntries <= 0 {
			return errors.New("cache.max_entries must be positive")
		}
	}
	return nil
}
