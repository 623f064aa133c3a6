// Package config builds the run configuration from defaults, the
// .mclokit.yaml file and the environment, and detects modpack layouts.
package config

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"go.trai.ch/zerr"

	"github.com/minios-linux/mclokit/cache"
	"github.com/minios-linux/mclokit/langmeta"
	"github.com/minios-linux/mclokit/mirror"
	"github.com/minios-linux/mclokit/snbt"
	"github.com/minios-linux/mclokit/translate"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = zerr.New("invalid configuration")

// Retry mirrors translate.RetryPolicy.
type Retry struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Jitter      float64
}

// Config is the resolved configuration of one run. It is built once and
// handed to the engine and the orchestrator.
type Config struct {
	TargetLang string
	SourceLang string

	Provider          string
	Model             string
	BaseURL           string
	APIKey            string
	Proxy             string
	Timeout           time.Duration
	RequestsPerMinute int

	CachePath   string
	BatchSize   int
	MaxChunkLen int
	SafeMaxLen  int
	Workers     int

	Strict         bool
	CacheFallbacks bool
	IncludeScripts bool
	Retry          Retry

	SnbtMode          string
	ArchiveOverlayDir string
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	r := translate.DefaultRetry()
	return Config{
		TargetLang:        "ru_ru",
		SourceLang:        mirror.DefaultSourceLang,
		Provider:          translate.ProviderOpenAI,
		CachePath:         cache.DefaultPath,
		BatchSize:         translate.DefaultBatchSize,
		MaxChunkLen:       translate.DefaultMaxChunkLen,
		SafeMaxLen:        mirror.DefaultSafeMaxLen,
		Workers:           mirror.DefaultWorkers,
		Strict:            true,
		CacheFallbacks:    true,
		Retry:             Retry{MaxAttempts: r.MaxAttempts, BaseDelay: r.BaseDelay, MaxDelay: r.MaxDelay, Jitter: r.Jitter},
		SnbtMode:          string(snbt.FieldPattern),
		ArchiveOverlayDir: mirror.DefaultArchiveOverlayDir,
	}
}

// ApplyEnv overrides c from environment variables. getenv is usually
// os.Getenv.
func (c *Config) ApplyEnv(getenv func(string) string) {
	setString(&c.TargetLang, getenv("TARGET_LANG"))
	setString(&c.Provider, getenv("TRANSLATOR_PROVIDER"))
	setString(&c.Model, getenv("TRANSLATOR_MODEL"))
	setString(&c.APIKey, getenv("MCLOKIT_API_KEY"))
	setString(&c.CachePath, getenv("TRANSLATIONS_CACHE"))
	switch strings.ToLower(strings.TrimSpace(getenv("INCLUDE_KUBEJS_JS"))) {
	case "1", "true", "yes":
		c.IncludeScripts = true
	case "0", "false", "no":
		c.IncludeScripts = false
	}
}

// ApplyProviderEnv fills provider-specific settings once the provider is
// final (after flags). Only ollama has one: OLLAMA_BASE_URL. A base URL
// that is already set wins.
func (c *Config) ApplyProviderEnv(getenv func(string) string) {
	if c.Provider == translate.ProviderOllama && c.BaseURL == "" {
		c.BaseURL = getenv("OLLAMA_BASE_URL")
	}
}

// Normalize canonicalizes locale codes.
func (c *Config) Normalize() {
	c.TargetLang = langmeta.Canonicalize(c.TargetLang)
	c.SourceLang = langmeta.Canonicalize(c.SourceLang)
	c.Provider = strings.ToLower(strings.TrimSpace(c.Provider))
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case !langmeta.Valid(c.TargetLang):
		return invalid("target_lang", c.TargetLang, "must look like ru_ru")
	case !langmeta.Valid(c.SourceLang):
		return invalid("source_lang", c.SourceLang, "must look like en_us")
	case c.TargetLang == c.SourceLang:
		return invalid("target_lang", c.TargetLang, "equals source_lang")
	case !slices.Contains(translate.ProviderIDs(), c.Provider):
		return invalid("provider", c.Provider, "valid: "+strings.Join(translate.ProviderIDs(), ", "))
	case c.BatchSize < 1:
		return invalid("batch_size", c.BatchSize, "must be at least 1")
	case c.MaxChunkLen < 20:
		return invalid("max_chunk_len", c.MaxChunkLen, "must be at least 20")
	case c.SafeMaxLen < 1:
		return invalid("safe_max_len", c.SafeMaxLen, "must be at least 1")
	case c.Workers < 1:
		return invalid("workers", c.Workers, "must be at least 1")
	case c.Retry.MaxAttempts < 1:
		return invalid("retry.max_attempts", c.Retry.MaxAttempts, "must be at least 1")
	case c.Retry.Jitter < 0 || c.Retry.Jitter >= 1:
		return invalid("retry.jitter", c.Retry.Jitter, "must be in [0, 1)")
	case c.Retry.BaseDelay < 0 || c.Retry.MaxDelay < c.Retry.BaseDelay:
		return invalid("retry.max_delay", c.Retry.MaxDelay, "must not be below retry.base_delay")
	case !slices.Contains(snbt.Modes, snbt.Mode(c.SnbtMode)):
		return invalid("snbt_mode", c.SnbtMode, "valid: field-pattern, structural")
	case c.RequestsPerMinute < 0:
		return invalid("requests_per_minute", c.RequestsPerMinute, "must not be negative")
	case c.Timeout < 0:
		return invalid("timeout", c.Timeout, "must not be negative")
	}
	return nil
}

func invalid(field string, value any, reason string) error {
	err := zerr.Wrap(ErrInvalidConfig, fmt.Sprintf("%s %v: %s", field, value, reason))
	return zerr.With(err, "field", field)
}

// RetryPolicy converts c.Retry for the engine.
func (c *Config) RetryPolicy() translate.RetryPolicy {
	return translate.RetryPolicy{
		MaxAttempts: c.Retry.MaxAttempts,
		BaseDelay:   c.Retry.BaseDelay,
		MaxDelay:    c.Retry.MaxDelay,
		Jitter:      c.Retry.Jitter,
	}
}

// ProviderConfig converts c for translate.NewProvider.
func (c *Config) ProviderConfig() translate.ProviderConfig {
	return translate.ProviderConfig{
		ID:                c.Provider,
		BaseURL:           c.BaseURL,
		APIKey:            c.APIKey,
		Model:             c.Model,
		Proxy:             c.Proxy,
		Timeout:           c.Timeout,
		RequestsPerMinute: c.RequestsPerMinute,
	}
}

// Load returns Defaults overlaid with the config file in dir and the
// environment. Flags are applied by the caller, followed by
// ApplyProviderEnv, Normalize and Validate.
func Load(dir string, getenv func(string) string) (Config, *File, error) {
	c := Defaults()
	f, err := LoadFile(dir)
	if err != nil {
		return c, nil, err
	}
	c.Apply(f)
	c.ApplyEnv(getenv)
	return c, f, nil
}
