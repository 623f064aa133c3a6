package config

import (
	"bufio"
	"encoding/json"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Layout describes what a modpack directory contains.
type Layout struct {
	Root string
	// Name and Version come from a CurseForge manifest.json or a
	// MultiMC/Prism instance.cfg; Name falls back to the directory name.
	Name             string
	Version          string
	MinecraftVersion string

	HasMods bool
	Jars    int

	HasKubeJS bool
	// QuestDirs are the ftbquests directories found (relative).
	QuestDirs []string
	// AssetRoots are directories named assets within the searched depth
	// (relative).
	AssetRoots []string

	HasConfigFile bool
}

// detectDepth bounds the search for assets and ftbquests directories.
const detectDepth = 4

var detectSkip = map[string]bool{
	"mods": true, "saves": true, "logs": true, "crash-reports": true,
	"screenshots": true, "shaderpacks": true, "backups": true, ".git": true,
}

// Detect inspects rootDir without reading any translatable file.
func Detect(rootDir string) *Layout {
	absRoot, err := filepath.Abs(rootDir)
	if err != nil {
		absRoot = rootDir
	}
	l := &Layout{Root: absRoot, Name: filepath.Base(absRoot)}

	if name, version, mc, err := parseManifest(filepath.Join(absRoot, "manifest.json")); err == nil {
		l.Name, l.Version, l.MinecraftVersion = name, version, mc
	} else if name, err := parseInstanceCfg(filepath.Join(absRoot, "instance.cfg")); err == nil {
		l.Name = name
	}

	if entries, err := os.ReadDir(filepath.Join(absRoot, "mods")); err == nil {
		l.HasMods = true
		for _, e := range entries {
			if !e.IsDir() && strings.HasSuffix(strings.ToLower(e.Name()), ".jar") {
				l.Jars++
			}
		}
	}
	if info, err := os.Stat(filepath.Join(absRoot, "kubejs")); err == nil && info.IsDir() {
		l.HasKubeJS = true
	}
	if _, err := os.Stat(filepath.Join(absRoot, FileName)); err == nil {
		l.HasConfigFile = true
	}

	_ = filepath.WalkDir(absRoot, func(p string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() || p == absRoot {
			return nil
		}
		rel, _ := filepath.Rel(absRoot, p)
		rel = filepath.ToSlash(rel)
		if detectSkip[d.Name()] || strings.Count(rel, "/") >= detectDepth {
			return filepath.SkipDir
		}
		switch d.Name() {
		case "assets":
			l.AssetRoots = append(l.AssetRoots, rel)
			return filepath.SkipDir
		case "ftbquests":
			l.QuestDirs = append(l.QuestDirs, rel)
			return filepath.SkipDir
		}
		return nil
	})
	sort.Strings(l.AssetRoots)
	sort.Strings(l.QuestDirs)
	return l
}

// Empty reports whether nothing translatable was found.
func (l *Layout) Empty() bool {
	return l.Jars == 0 && !l.HasKubeJS && len(l.QuestDirs) == 0 && len(l.AssetRoots) == 0
}

// parseManifest reads a CurseForge export manifest.
func parseManifest(path string) (name, version, minecraft string, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", "", "", err
	}
	var m struct {
		Name      string `json:"name"`
		Version   string `json:"version"`
		Minecraft struct {
			Version string `json:"version"`
		} `json:"minecraft"`
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return "", "", "", err
	}
	if m.Name == "" {
		return "", "", "", os.ErrNotExist
	}
	return m.Name, m.Version, m.Minecraft.Version, nil
}

// parseInstanceCfg reads the name= line of a MultiMC/Prism instance.cfg.
func parseInstanceCfg(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if v, ok := strings.CutPrefix(strings.TrimSpace(scanner.Text()), "name="); ok && v != "" {
			return v, nil
		}
	}
	return "", os.ErrNotExist
}
