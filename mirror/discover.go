package mirror

import (
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/minios-linux/mclokit/jarlang"
)

// Kind identifies how a candidate is extracted and where it is written.
type Kind string

const (
	KindLocaleTable    Kind = "locale-table"
	KindNestedDocument Kind = "nested-document"
	KindQuestDocument  Kind = "quest-document"
	KindScript         Kind = "script"
	KindArchive        Kind = "archive"
)

// Kinds lists every kind in reporting order.
var Kinds = []Kind{KindLocaleTable, KindNestedDocument, KindQuestDocument, KindScript, KindArchive}

// Candidate is one discovered unit of work.
type Candidate struct {
	Kind Kind
	// Rel is the slash-separated path relative to the input root.
	Rel string
	Src string
	// Dst is the output file; empty for archives, whose members each get
	// their own overlay path.
	Dst string
}

// SkipDirs are never descended into.
var SkipDirs = map[string]bool{
	"textures": true, "models": true, "sounds": true, "blockstates": true,
	"recipes": true, "loot_tables": true, "advancements": true, "shaders": true,
	"particles": true, "font": true, "icons": true, "data": true,
	".git": true, ".idea": true, "__pycache__": true, "mods": true,
}

// ContainerDirs are top-level directories that may hold translatable
// content somewhere below them.
var ContainerDirs = map[string]bool{
	"config": true, "defaultconfigs": true, "overrides": true, "kubejs": true,
	"openloader": true, "resources": true, "resourcepacks": true, "global_packs": true,
}

// assetSubdirs are the only directories walked inside assets/<modid>.
var assetSubdirs = map[string]bool{"lang": true, "patchouli_books": true, "tips": true}

func regionHint(name string) bool {
	n := strings.ToLower(name)
	return strings.Contains(n, "assets") || strings.Contains(n, "ftbquests") || strings.Contains(n, "kubejs")
}

// descend decides whether the directory at slash path rel (relative to the
// input root) may hold candidates.
func descend(rel string) bool {
	segs := strings.Split(rel, "/")
	name := segs[len(segs)-1]
	if SkipDirs[name] {
		return false
	}
	if len(segs) >= 3 && segs[len(segs)-3] == "assets" && !assetSubdirs[name] {
		return false
	}
	for _, s := range segs {
		if ContainerDirs[s] || regionHint(s) {
			return true
		}
	}
	return false
}

// Discover walks the input tree and returns every candidate in a stable
// order: files in walk order, then archives sorted by name.
func (o *Orchestrator) Discover() ([]Candidate, error) {
	var out []Candidate
	err := filepath.WalkDir(o.in, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == o.in {
				return err
			}
			o.opts.logError("skipping %s: %v", p, err)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if p == o.in {
			return nil
		}
		rel, err := filepath.Rel(o.in, p)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if d.IsDir() {
			if p == o.out || !descend(rel) {
				return filepath.SkipDir
			}
			return nil
		}
		if c, ok := o.classify(rel); ok {
			c.Src = p
			out = append(out, c)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return append(out, o.discoverArchives()...), nil
}

// classify maps a slash path relative to the input root to a candidate.
func (o *Orchestrator) classify(rel string) (Candidate, bool) {
	p := "/" + rel
	src, dst := o.opts.SourceLang, o.opts.TargetLang
	inAssets := strings.Contains(p, "/assets/")

	switch {
	case inAssets && strings.HasSuffix(p, "/lang/"+src+".json"):
		return o.candidate(KindLocaleTable, rel, path.Join(path.Dir(rel), dst+".json")), true
	case inAssets && strings.Contains(p, "/patchouli_books/") && strings.Contains(p, "/"+src+"/") && strings.HasSuffix(p, ".json"):
		return o.candidate(KindNestedDocument, rel, strings.TrimPrefix(strings.Replace(p, "/"+src+"/", "/"+dst+"/", 1), "/")), true
	case inAssets && strings.Contains(p, "/tips/") && strings.HasSuffix(p, ".json"):
		return o.candidate(KindNestedDocument, rel, rel), true
	case strings.Contains(p, "/ftbquests/") && strings.HasSuffix(p, ".snbt"):
		return o.candidate(KindQuestDocument, rel, rel), true
	case o.opts.IncludeScripts && strings.Contains(p, "/kubejs/") && strings.HasSuffix(p, ".js") &&
		(strings.Contains(p, "/server_scripts/") || strings.Contains(p, "/client_scripts/")):
		return o.candidate(KindScript, rel, rel), true
	}
	return Candidate{}, false
}

func (o *Orchestrator) candidate(k Kind, rel, dstRel string) Candidate {
	return Candidate{Kind: k, Rel: rel, Dst: filepath.Join(o.out, filepath.FromSlash(dstRel))}
}

// discoverArchives lists <root>/mods/*.jar holding at least one locale
// table for the source language.
func (o *Orchestrator) discoverArchives() []Candidate {
	dir := filepath.Join(o.in, "mods")
	entries, err := os.ReadDir(dir)
	if err != nil {
		if !os.IsNotExist(err) {
			o.opts.logError("reading %s: %v", dir, err)
		}
		return nil
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(strings.ToLower(e.Name()), ".jar") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var out []Candidate
	for _, name := range names {
		p := filepath.Join(dir, name)
		ok, err := jarlang.HasLangEntries(p, o.opts.SourceLang)
		if err != nil {
			o.opts.logError("skipping mods/%s: %v", name, err)
			continue
		}
		if ok {
			out = append(out, Candidate{Kind: KindArchive, Rel: "mods/" + name, Src: p})
		}
	}
	return out
}

// CountByKind tallies candidates per kind.
func CountByKind(cands []Candidate) map[Kind]int {
	m := make(map[Kind]int, len(Kinds))
	for _, c := range cands {
		m[c.Kind]++
	}
	return m
}
