package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ---------------------------------------------------------------------------
// YAML schema
// ---------------------------------------------------------------------------

// FileName is the config file looked up in the input root.
const FileName = ".mclokit.yaml"

// File is the .mclokit.yaml structure. Every field is optional; unset
// fields leave the defaults alone.
type File struct {
	TargetLang string `yaml:"target_lang,omitempty"`
	SourceLang string `yaml:"source_lang,omitempty"`

	Provider string        `yaml:"provider,omitempty"`
	Model    string        `yaml:"model,omitempty"`
	BaseURL  string        `yaml:"base_url,omitempty"`
	APIKey   string        `yaml:"api_key,omitempty"`
	Proxy    string        `yaml:"proxy,omitempty"`
	Timeout  time.Duration `yaml:"timeout,omitempty"`
	// RequestsPerMinute throttles provider calls; 0 means unlimited.
	RequestsPerMinute int `yaml:"requests_per_minute,omitempty"`

	CachePath   string `yaml:"cache_path,omitempty"`
	BatchSize   int    `yaml:"batch_size,omitempty"`
	MaxChunkLen int    `yaml:"max_chunk_len,omitempty"`
	SafeMaxLen  int    `yaml:"safe_max_len,omitempty"`
	Workers     int    `yaml:"workers,omitempty"`

	Strict         *bool `yaml:"strict,omitempty"`
	CacheFallbacks *bool `yaml:"cache_fallbacks,omitempty"`
	IncludeScripts *bool `yaml:"include_scripts,omitempty"`

	Retry *FileRetry `yaml:"retry,omitempty"`

	SnbtMode          string `yaml:"snbt_mode,omitempty"`
	ArchiveOverlayDir string `yaml:"archive_overlay_dir,omitempty"`
}

// FileRetry is the retry: block.
type FileRetry struct {
	MaxAttempts int           `yaml:"max_attempts,omitempty"`
	BaseDelay   time.Duration `yaml:"base_delay,omitempty"`
	MaxDelay    time.Duration `yaml:"max_delay,omitempty"`
	Jitter      *float64      `yaml:"jitter,omitempty"`
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// LoadFile reads .mclokit.yaml from dir. It returns nil, nil when the file
// does not exist. Unknown keys are rejected so typos do not pass silently.
func LoadFile(dir string) (*File, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return ParseFile(path, data)
}

// ParseFile decodes data as a config file; path is only used in messages.
func ParseFile(path string, data []byte) (*File, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return &f, nil
		}
		if strings.Contains(err.Error(), "not found in type") {
			return nil, fmt.Errorf("%s: unsupported key: %w", path, err)
		}
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &f, nil
}

// Apply copies every field set in f over c.
func (c *Config) Apply(f *File) {
	if f == nil {
		return
	}
	setString(&c.TargetLang, f.TargetLang)
	setString(&c.SourceLang, f.SourceLang)
	setString(&c.Provider, f.Provider)
	setString(&c.Model, f.Model)
	setString(&c.BaseURL, f.BaseURL)
	setString(&c.APIKey, f.APIKey)
	setString(&c.Proxy, f.Proxy)
	setString(&c.CachePath, f.CachePath)
	setString(&c.SnbtMode, f.SnbtMode)
	setString(&c.ArchiveOverlayDir, f.ArchiveOverlayDir)

	setInt(&c.BatchSize, f.BatchSize)
	setInt(&c.MaxChunkLen, f.MaxChunkLen)
	setInt(&c.SafeMaxLen, f.SafeMaxLen)
	setInt(&c.Workers, f.Workers)
	setInt(&c.RequestsPerMinute, f.RequestsPerMinute)
	if f.Timeout > 0 {
		c.Timeout = f.Timeout
	}

	setBool(&c.Strict, f.Strict)
	setBool(&c.CacheFallbacks, f.CacheFallbacks)
	setBool(&c.IncludeScripts, f.IncludeScripts)

	if r := f.Retry; r != nil {
		setInt(&c.Retry.MaxAttempts, r.MaxAttempts)
		if r.BaseDelay > 0 {
			c.Retry.BaseDelay = r.BaseDelay
		}
		if r.MaxDelay > 0 {
			c.Retry.MaxDelay = r.MaxDelay
		}
		if r.Jitter != nil {
			c.Retry.Jitter = *r.Jitter
		}
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}
