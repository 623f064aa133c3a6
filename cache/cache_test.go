package cache

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadNonExistent(t *testing.T) {
	var warnings []string
	c := New(filepath.Join(t.TempDir(), "cache.json"), func(m string) { warnings = append(warnings, m) })
	c.Load()
	if c.Len() != 0 {
		t.Errorf("Len = %d, want 0", c.Len())
	}
	assert.Empty(t, warnings)
}

func TestLoadCorruptWarns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	var warnings []string
	c := New(path, func(m string) { warnings = append(warnings, m) })
	_, ok := c.Get("anything")
	assert.False(t, ok)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "empty cache")
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "cache.json")
	c := New(path, nil)
	c.Put("Stone", "Камень")
	c.Put("<b>", "<b>")
	require.NoError(t, c.Save())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"<b>\": \"<b>\",\n  \"Stone\": \"Камень\"\n}\n", string(data))

	c2 := New(path, nil)
	got, ok := c2.Get("Stone")
	require.True(t, ok)
	assert.Equal(t, "Камень", got)

	entries, unchanged := c2.Stats()
	assert.Equal(t, 2, entries)
	assert.Equal(t, 1, unchanged)
}

func TestSaveSkipsUnchangedContent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	c := New(path, nil)
	c.Put("a", "b")
	require.NoError(t, c.Save())

	old := time.Now().Add(-time.Hour).Truncate(time.Second)
	require.NoError(t, os.Chtimes(path, old, old))

	require.NoError(t, c.Save())
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.True(t, info.ModTime().Equal(old), "unchanged save rewrote the file")

	c.Put("a", "c")
	require.NoError(t, c.Save())
	info, err = os.Stat(path)
	require.NoError(t, err)
	assert.False(t, info.ModTime().Equal(old))
}

func TestSaveLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	c := New(filepath.Join(dir, "cache.json"), nil)
	c.Put("x", "y")
	require.NoError(t, c.Save())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "cache.json", entries[0].Name())
}

func TestConcurrentAccess(t *testing.T) {
	c := New(filepath.Join(t.TempDir(), "cache.json"), nil)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				key := string(rune('a'+i)) + string(rune('a'+j%26))
				c.Put(key, key)
				c.Get(key)
			}
			_ = c.Save()
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 8*26, c.Len())
}

func TestClear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	c := New(path, nil)
	c.Put("a", "b")
	require.NoError(t, c.Save())
	require.NoError(t, c.SaveMeta(Meta{Locale: "ru_ru"}))

	require.NoError(t, c.Clear())
	assert.Equal(t, 0, c.Len())
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(c.MetaPath())
	assert.True(t, os.IsNotExist(err))
}

func TestMeta(t *testing.T) {
	c := New(filepath.Join(t.TempDir(), "cache.json"), nil)
	_, ok, err := c.LoadMeta()
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.SaveMeta(Meta{Locale: "de_de", Provider: "openai", Model: "gpt-4o-mini"}))
	meta, ok, err := c.LoadMeta()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, Meta{Version: MetaVersion, Locale: "de_de", Provider: "openai", Model: "gpt-4o-mini"}, meta)
}

func TestDefaultPath(t *testing.T) {
	assert.Equal(t, DefaultPath, New("", nil).Path())
}
