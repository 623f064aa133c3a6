// Package cache implements the translation cache: a JSON file mapping exact
// source text to translated text, shared by every worker of a run.
//
// The file is one flat JSON object and is safe to delete or edit by hand.
// A small YAML sidecar (<cache>.meta.yaml) records which locale the entries
// were produced for. Entries are never evicted.
package cache

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/cespare/xxhash/v2"
	"gopkg.in/yaml.v3"
)

// DefaultPath is the cache file used when none is configured.
const DefaultPath = "translations_cache.json"

// MetaVersion is the sidecar format version.
const MetaVersion = 1

// ---------------------------------------------------------------------------
// Types
// ---------------------------------------------------------------------------

// Cache is safe for concurrent use. A single mutex guards every operation;
// callers never hold it across a provider call.
type Cache struct {
	mu     sync.Mutex
	path   string
	data   map[string]string
	loaded bool

	digest    uint64
	hasDigest bool

	onWarn func(msg string)
}

// Meta describes the cache contents.
type Meta struct {
	Version  int    `yaml:"version"`
	Locale   string `yaml:"locale"`
	Provider string `yaml:"provider,omitempty"`
	Model    string `yaml:"model,omitempty"`
}

// New returns a cache backed by path. Nothing is read until the first
// access. onWarn receives load problems and may be nil.
func New(path string, onWarn func(msg string)) *Cache {
	if path == "" {
		path = DefaultPath
	}
	return &Cache{path: path, data: make(map[string]string), onWarn: onWarn}
}

// Path returns the cache file path.
func (c *Cache) Path() string {
	return c.path
}

// MetaPath returns the sidecar path.
func (c *Cache) MetaPath() string {
	return c.path + ".meta.yaml"
}

// ---------------------------------------------------------------------------
// Loading and saving
// ---------------------------------------------------------------------------

// Load reads the cache file once. A missing file yields an empty cache; a
// corrupt one also yields an empty cache plus a warning.
func (c *Cache) Load() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loadLocked()
}

func (c *Cache) loadLocked() {
	if c.loaded {
		return
	}
	c.loaded = true

	data, err := os.ReadFile(c.path)
	if err != nil {
		if !os.IsNotExist(err) {
			c.warn(fmt.Sprintf("reading %s: %v; starting with an empty cache", c.path, err))
		}
		return
	}
	m := make(map[string]string)
	if err := json.Unmarshal(data, &m); err != nil {
		c.warn(fmt.Sprintf("parsing %s: %v; starting with an empty cache", c.path, err))
		return
	}
	c.data = m

	if out, err := c.marshalLocked(); err == nil {
		c.digest = xxhash.Sum64(out)
		c.hasDigest = true
	}
}

func (c *Cache) warn(msg string) {
	if c.onWarn != nil {
		c.onWarn(msg)
	}
}

// Save writes the whole map atomically: a temp file in the same directory
// is renamed over the target. Nothing is written when the content has not
// changed since the last load or save.
func (c *Cache) Save() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loadLocked()

	out, err := c.marshalLocked()
	if err != nil {
		return fmt.Errorf("marshaling cache: %w", err)
	}
	sum := xxhash.Sum64(out)
	if c.hasDigest && sum == c.digest {
		return nil
	}
	if err := WriteFileAtomic(c.path, out, 0o644); err != nil {
		return err
	}
	c.digest = sum
	c.hasDigest = true
	return nil
}

func (c *Cache) marshalLocked() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(c.data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteFileAtomic writes data to a temp file next to path and renames it
// into place, creating parent directories as needed.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	name := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(name)
		return fmt.Errorf("writing %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(name)
		return fmt.Errorf("closing %s: %w", name, err)
	}
	if err := os.Chmod(name, perm); err != nil {
		os.Remove(name)
		return fmt.Errorf("setting mode on %s: %w", name, err)
	}
	if err := os.Rename(name, path); err != nil {
		os.Remove(name)
		return fmt.Errorf("renaming to %s: %w", path, err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Entries
// ---------------------------------------------------------------------------

// Get returns the cached translation of text.
func (c *Cache) Get(text string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loadLocked()
	v, ok := c.data[text]
	return v, ok
}

// Put records a translation.
func (c *Cache) Put(text, translated string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loadLocked()
	c.data[text] = translated
}

// Len returns the number of entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loadLocked()
	return len(c.data)
}

// Stats returns the entry count and how many entries are identical to
// their source (accepted fallbacks).
func (c *Cache) Stats() (entries, unchanged int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loadLocked()
	for k, v := range c.data {
		if k == v {
			unchanged++
		}
	}
	return len(c.data), unchanged
}

// Clear drops every entry and removes the cache file and its sidecar.
func (c *Cache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loaded = true
	c.data = make(map[string]string)
	c.hasDigest = false
	for _, p := range []string{c.path, c.MetaPath()} {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("removing %s: %w", p, err)
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Metadata sidecar
// ---------------------------------------------------------------------------

// LoadMeta reads the sidecar. ok is false when it does not exist.
func (c *Cache) LoadMeta() (meta Meta, ok bool, err error) {
	data, err := os.ReadFile(c.MetaPath())
	if err != nil {
		if os.IsNotExist(err) {
			return Meta{}, false, nil
		}
		return Meta{}, false, fmt.Errorf("reading %s: %w", c.MetaPath(), err)
	}
	if err := yaml.Unmarshal(data, &meta); err != nil {
		return Meta{}, false, fmt.Errorf("parsing %s: %w", c.MetaPath(), err)
	}
	return meta, true, nil
}

// SaveMeta writes the sidecar.
func (c *Cache) SaveMeta(meta Meta) error {
	meta.Version = MetaVersion
	data, err := yaml.Marshal(meta)
	if err != nil {
		return fmt.Errorf("marshaling cache metadata: %w", err)
	}
	return WriteFileAtomic(c.MetaPath(), data, 0o644)
}
