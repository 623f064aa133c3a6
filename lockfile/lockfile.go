// Package lockfile implements .mclokit.lock, kept in the output root of a
// mirror. It records a digest of the source each output file was produced
// from, so a later run with refresh enabled can translate again the outputs
// whose source changed (for example after a mod update added keys).
package lockfile

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"

	"github.com/cespare/xxhash/v2"
	"gopkg.in/yaml.v3"

	"github.com/minios-linux/mclokit/cache"
)

// FileName is the lock file name inside the output root.
const FileName = ".mclokit.lock"

// Version is the lock file format version.
const Version = 1

// ---------------------------------------------------------------------------
// Types
// ---------------------------------------------------------------------------

// LockFile is the .mclokit.lock structure. It is safe for concurrent use.
type LockFile struct {
	Version int    `yaml:"version"`
	Locale  string `yaml:"locale,omitempty"`
	// Sources maps an output path (relative to the output root, slash
	// separated) to the digest of its source.
	Sources map[string]string `yaml:"sources"`

	mu    sync.Mutex
	path  string
	dirty bool
}

// ---------------------------------------------------------------------------
// Loading and saving
// ---------------------------------------------------------------------------

// Load reads the lock file from dir. A missing file yields an empty lock.
func Load(dir string) (*LockFile, error) {
	path := filepath.Join(dir, FileName)
	lf := &LockFile{Version: Version, Sources: make(map[string]string), path: path}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return lf, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, lf); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if lf.Sources == nil {
		lf.Sources = make(map[string]string)
	}
	return lf, nil
}

// Empty returns an unsaved lock for dir, used when an existing file cannot
// be read.
func Empty(dir string) *LockFile {
	return &LockFile{Version: Version, Sources: make(map[string]string), path: filepath.Join(dir, FileName)}
}

// Save writes the lock file if anything was recorded since it was loaded.
func (lf *LockFile) Save() error {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	if !lf.dirty {
		return nil
	}
	lf.Version = Version
	data, err := yaml.Marshal(lf)
	if err != nil {
		return fmt.Errorf("marshaling lock file: %w", err)
	}
	if err := cache.WriteFileAtomic(lf.path, data, 0o644); err != nil {
		return err
	}
	lf.dirty = false
	return nil
}

// Path returns the lock file path.
func (lf *LockFile) Path() string {
	return lf.path
}

// ---------------------------------------------------------------------------
// Digests
// ---------------------------------------------------------------------------

// Hash returns the hex xxhash64 digest of data.
func Hash(data []byte) string {
	return strconv.FormatUint(xxhash.Sum64(data), 16)
}

// Stale reports whether target was recorded from a source other than src.
// A target without a record is never stale: it may be a hand-made
// translation.
func (lf *LockFile) Stale(target string, src []byte) bool {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	old, ok := lf.Sources[target]
	return ok && old != Hash(src)
}

// Record stores the digest of src for target.
func (lf *LockFile) Record(target string, src []byte) {
	h := Hash(src)
	lf.mu.Lock()
	defer lf.mu.Unlock()

	if lf.Sources[target] != h {
		lf.Sources[target] = h
		lf.dirty = true
	}
}

// SetLocale records the target locale of the mirror.
func (lf *LockFile) SetLocale(locale string) {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	if lf.Locale != locale {
		lf.Locale = locale
		lf.dirty = true
	}
}

// Len returns the number of recorded targets.
func (lf *LockFile) Len() int {
	lf.mu.Lock()
	defer lf.mu.Unlock()
	return len(lf.Sources)
}

// Targets returns the recorded targets, sorted.
func (lf *LockFile) Targets() []string {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	targets := make([]string, 0, len(lf.Sources))
	for t := range lf.Sources {
		targets = append(targets, t)
	}
	sort.Strings(targets)
	return targets
}
