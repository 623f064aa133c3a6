package mirror

import (
	"archive/zip"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/minios-linux/mclokit/cache"
	"github.com/minios-linux/mclokit/lockfile"
	"github.com/minios-linux/mclokit/translate"
	"github.com/minios-linux/mclokit/translate/mocks"
)

type fakeTranslator struct {
	mu    sync.Mutex
	dict  map[string]string
	calls int
}

func (f *fakeTranslator) TranslateMany(_ context.Context, texts []string, _ string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	out := make([]string, len(texts))
	for i, s := range texts {
		if tr, ok := f.dict[s]; ok {
			out[i] = tr
		} else {
			out[i] = s
		}
	}
	return out
}

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
}

func readFile(t *testing.T, root, rel string) string {
	t.Helper()
	b, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
	require.NoError(t, err)
	return string(b)
}

func writeJar(t *testing.T, path string, entries map[string]string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	for name, body := range entries {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
}

const (
	sceneSrc = `{"item.foo": "A %s of gold", "item.bar": "Stone"}`
	sceneOut = "{\n  \"item.foo\": \"Золото %s\",\n  \"item.bar\": \"Камень\"\n}\n"
	sceneRel = "kubejs/assets/examplemod/lang/en_us.json"
	sceneDst = "kubejs/assets/examplemod/lang/xx_yy.json"
)

func newEngine(t *testing.T, p translate.Provider, cachePath string) (*translate.Engine, *cache.Cache) {
	t.Helper()
	c := cache.New(cachePath, nil)
	c.Load()
	return translate.NewEngine(p, c, translate.Options{Strict: true, CacheFallbacks: true}), c
}

func TestLocaleTableScenario(t *testing.T) {
	in := t.TempDir()
	writeFile(t, in, sceneRel, sceneSrc)
	cachePath := filepath.Join(t.TempDir(), "translations_cache.json")

	ctrl := gomock.NewController(t)
	p := mocks.NewMockProvider(ctrl)
	p.EXPECT().
		TranslateBatch(gomock.Any(), []string{"A %s of gold", "Stone"}, "xx_yy").
		Return([]string{"Золото %s", "Камень"}, nil)

	engine, c := newEngine(t, p, cachePath)
	out1 := t.TempDir()
	o, err := New(engine, Options{InputRoot: in, OutputRoot: out1, TargetLang: "xx_yy", Write: true})
	require.NoError(t, err)
	sum, err := o.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), sum.OK)
	assert.Equal(t, sceneOut, readFile(t, out1, sceneDst))

	for src, want := range map[string]string{"A %s of gold": "Золото %s", "Stone": "Камень"} {
		got, ok := c.Get(src)
		require.True(t, ok, "cache is missing %q", src)
		assert.Equal(t, want, got)
	}

	// A fresh process with only the cache file and a provider that must not
	// be called.
	silent := mocks.NewMockProvider(gomock.NewController(t))
	engine2, _ := newEngine(t, silent, cachePath)
	out2 := t.TempDir()
	o2, err := New(engine2, Options{InputRoot: in, OutputRoot: out2, TargetLang: "xx_yy", Write: true})
	require.NoError(t, err)
	_, err = o2.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, sceneOut, readFile(t, out2, sceneDst))
	assert.Equal(t, int64(2), engine2.Stats().CacheHits)
}

func TestSecondWriteRunSkipsEverything(t *testing.T) {
	in := t.TempDir()
	writeFile(t, in, sceneRel, sceneSrc)
	writeFile(t, in, "config/ftbquests/quests/chapters/start.snbt", "{\n\ttitle: \"Getting Started\"\n}\n")
	writeFile(t, in, "resources/assets/botania/patchouli_books/lexicon/en_us/entries/intro.json",
		`{"name": "Welcome", "pages": [{"type": "text", "text": "Read this first"}]}`)
	cachePath := filepath.Join(t.TempDir(), "cache.json")
	out := t.TempDir()

	ctrl := gomock.NewController(t)
	p := mocks.NewMockProvider(ctrl)
	p.EXPECT().TranslateBatch(gomock.Any(), gomock.Any(), "ru_ru").
		DoAndReturn(func(_ context.Context, texts []string, _ string) ([]string, error) {
			out := make([]string, len(texts))
			for i, s := range texts {
				out[i] = "ru " + s
			}
			return out, nil
		}).AnyTimes()

	engine, _ := newEngine(t, p, cachePath)
	o, err := New(engine, Options{InputRoot: in, OutputRoot: out, TargetLang: "ru_ru", Write: true})
	require.NoError(t, err)
	sum, err := o.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(3), sum.OK)
	require.Empty(t, sum.Failures)

	before := map[string]string{}
	for _, rel := range []string{
		"kubejs/assets/examplemod/lang/ru_ru.json",
		"config/ftbquests/quests/chapters/start.snbt",
		"resources/assets/botania/patchouli_books/lexicon/ru_ru/entries/intro.json",
	} {
		before[rel] = readFile(t, out, rel)
	}
	assert.Contains(t, before["config/ftbquests/quests/chapters/start.snbt"], `title: "ru Getting Started"`)

	silent := mocks.NewMockProvider(gomock.NewController(t))
	engine2, _ := newEngine(t, silent, cachePath)
	o2, err := New(engine2, Options{InputRoot: in, OutputRoot: out, TargetLang: "ru_ru", Write: true})
	require.NoError(t, err)
	sum2, err := o2.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), sum2.Skip)
	assert.Equal(t, int64(3), sum2.OK)
	assert.Equal(t, translate.Stats{}, engine2.Stats())
	for rel, want := range before {
		assert.Equal(t, want, readFile(t, out, rel), rel)
	}
}

func TestDryRunWritesNothing(t *testing.T) {
	in := t.TempDir()
	writeFile(t, in, sceneRel, sceneSrc)
	out := filepath.Join(t.TempDir(), "out")

	var logs []string
	var mu sync.Mutex
	tr := &fakeTranslator{dict: map[string]string{"Stone": "Камень"}}
	o, err := New(tr, Options{
		InputRoot:  in,
		OutputRoot: out,
		TargetLang: "ru_ru",
		OnLog: func(format string, args ...any) {
			mu.Lock()
			defer mu.Unlock()
			logs = append(logs, fmt.Sprintf(format, args...))
		},
	})
	require.NoError(t, err)
	sum, err := o.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(1), sum.OK)
	assert.Equal(t, 1, tr.calls)
	assert.Contains(t, logs, "would write kubejs/assets/examplemod/lang/ru_ru.json")
	_, err = os.Stat(out)
	assert.True(t, os.IsNotExist(err))
}

func TestUnparsableDocumentWrittenUnchanged(t *testing.T) {
	in := t.TempDir()
	const broken = `{"item.foo": "Stone",}`
	writeFile(t, in, "kubejs/assets/examplemod/lang/en_us.json", broken)
	out := t.TempDir()

	var warnings []string
	var mu sync.Mutex
	tr := &fakeTranslator{dict: map[string]string{"Stone": "Камень"}}
	o, err := New(tr, Options{
		InputRoot:  in,
		OutputRoot: out,
		TargetLang: "ru_ru",
		Write:      true,
		OnError: func(format string, args ...any) {
			mu.Lock()
			defer mu.Unlock()
			warnings = append(warnings, fmt.Sprintf(format, args...))
		},
	})
	require.NoError(t, err)
	sum, err := o.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(1), sum.OK)
	assert.Equal(t, int64(0), sum.Err)
	assert.Empty(t, sum.Failures)
	assert.Equal(t, 0, tr.calls)
	assert.Equal(t, broken, readFile(t, out, "kubejs/assets/examplemod/lang/ru_ru.json"))
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "writing it unchanged")
}

func TestClassify(t *testing.T) {
	o, err := New(&fakeTranslator{}, Options{InputRoot: "/pack", OutputRoot: "/out", TargetLang: "ru_ru"})
	require.NoError(t, err)
	scripts, err := New(&fakeTranslator{}, Options{InputRoot: "/pack", OutputRoot: "/out", TargetLang: "ru_ru", IncludeScripts: true})
	require.NoError(t, err)

	cases := []struct {
		rel     string
		scripts bool
		kind    Kind
		dst     string
	}{
		{rel: "kubejs/assets/examplemod/lang/en_us.json", kind: KindLocaleTable, dst: "kubejs/assets/examplemod/lang/ru_ru.json"},
		{rel: "resources/assets/botania/patchouli_books/lexicon/en_us/entries/intro.json", kind: KindNestedDocument, dst: "resources/assets/botania/patchouli_books/lexicon/ru_ru/entries/intro.json"},
		{rel: "resourcepacks/Tips/assets/tipsmod/tips/first.json", kind: KindNestedDocument, dst: "resourcepacks/Tips/assets/tipsmod/tips/first.json"},
		{rel: "config/ftbquests/quests/chapters/start.snbt", kind: KindQuestDocument, dst: "config/ftbquests/quests/chapters/start.snbt"},
		{rel: "kubejs/server_scripts/recipes.js", scripts: true, kind: KindScript, dst: "kubejs/server_scripts/recipes.js"},
		{rel: "kubejs/server_scripts/recipes.js"},
		{rel: "kubejs/startup_scripts/items.js", scripts: true},
		{rel: "kubejs/assets/examplemod/lang/de_de.json"},
		{rel: "config/ftbquests/quests/data.json"},
		{rel: "resources/assets/botania/patchouli_books/lexicon/de_de/entries/intro.json"},
	}
	for _, tc := range cases {
		orc := o
		if tc.scripts {
			orc = scripts
		}
		c, ok := orc.classify(tc.rel)
		if tc.kind == "" {
			assert.False(t, ok, "classify(%q) = %v, want no match", tc.rel, c.Kind)
			continue
		}
		require.True(t, ok, "classify(%q) matched nothing", tc.rel)
		assert.Equal(t, tc.kind, c.Kind, tc.rel)
		assert.Equal(t, filepath.Join("/out", filepath.FromSlash(tc.dst)), c.Dst, tc.rel)
	}
}

func TestDescend(t *testing.T) {
	cases := map[string]bool{
		"config":                                    true,
		"config/ftbquests":                          true,
		"resourcepacks/MyPack":                      true,
		"resourcepacks/MyPack/assets/mod/lang":      true,
		"resourcepacks/MyPack/assets/mod/textures":  false,
		"kubejs/assets/mod":                         true,
		"kubejs/assets/mod/lang":                    true,
		"kubejs/assets/mod/patchouli_books":         true,
		"kubejs/assets/mod/structures":              false,
		"saves":                                     false,
		"logs":                                      false,
		"mods":                                      false,
		"extra_assets":                              true,
		"config/.git":                               false,
	}
	for rel, want := range cases {
		if got := descend(rel); got != want {
			t.Errorf("descend(%q) = %v, want %v", rel, got, want)
		}
	}
}

func TestDiscoverPrunesAndFindsArchives(t *testing.T) {
	in := t.TempDir()
	writeFile(t, in, sceneRel, sceneSrc)
	writeFile(t, in, "saves/world/assets/mod/lang/en_us.json", sceneSrc)
	writeFile(t, in, "kubejs/assets/examplemod/textures/lang/en_us.json", sceneSrc)
	writeFile(t, in, "config/ftbquests/quests/chapters/a.snbt", "{}")
	writeFile(t, in, "kubejs/out_ru/kubejs/assets/examplemod/lang/en_us.json", sceneSrc)
	writeJar(t, filepath.Join(in, "mods", "gems.jar"), map[string]string{
		"assets/gems/lang/en_us.json": `{"item.gems.ruby": "Ruby"}`,
	})
	writeJar(t, filepath.Join(in, "mods", "library.jar"), map[string]string{
		"com/example/Lib.class": "x",
	})
	writeFile(t, in, "mods/broken.jar", "not a zip")

	var errs []string
	o, err := New(&fakeTranslator{}, Options{
		InputRoot:  in,
		OutputRoot: filepath.Join(in, "kubejs", "out_ru"),
		TargetLang: "ru_ru",
		OnError:    func(format string, args ...any) { errs = append(errs, fmt.Sprintf(format, args...)) },
	})
	require.NoError(t, err)

	cands, err := o.Discover()
	require.NoError(t, err)
	var rels []string
	for _, c := range cands {
		rels = append(rels, c.Rel)
	}
	assert.ElementsMatch(t, []string{sceneRel, "config/ftbquests/quests/chapters/a.snbt", "mods/gems.jar"}, rels)
	assert.Equal(t, map[Kind]int{KindLocaleTable: 1, KindQuestDocument: 1, KindArchive: 1}, CountByKind(cands))
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "mods/broken.jar")
}

func TestArchiveOverlay(t *testing.T) {
	in := t.TempDir()
	writeJar(t, filepath.Join(in, "mods", "gems.jar"), map[string]string{
		"assets/gems/lang/en_us.json": `{"item.gems.ruby": "Ruby"}`,
		"assets/gems/lang/de_de.json": `{"item.gems.ruby": "Rubin"}`,
		"assets/gems/textures/ruby.png": "png",
	})
	out := t.TempDir()
	tr := &fakeTranslator{dict: map[string]string{"Ruby": "Рубин"}}

	o, err := New(tr, Options{InputRoot: in, OutputRoot: out, TargetLang: "ru_ru", Write: true})
	require.NoError(t, err)
	sum, err := o.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), sum.OK)
	assert.Equal(t, "{\n  \"item.gems.ruby\": \"Рубин\"\n}\n",
		readFile(t, out, "overrides/kubejs/assets/gems/lang/ru_ru.json"))

	o2, err := New(tr, Options{InputRoot: in, OutputRoot: out, TargetLang: "ru_ru", Write: true})
	require.NoError(t, err)
	sum2, err := o2.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), sum2.Skip)
	assert.Equal(t, 1, tr.calls)
}

func TestFailingCandidateDoesNotStopRun(t *testing.T) {
	in := t.TempDir()
	writeFile(t, in, sceneRel, sceneSrc)
	writeFile(t, in, "kubejs/assets/broken/lang/en_us.json", `{"item.broken": `)
	out := t.TempDir()

	var ticks int
	var mu sync.Mutex
	o, err := New(&fakeTranslator{}, Options{
		InputRoot:  in,
		OutputRoot: out,
		TargetLang: "ru_ru",
		Write:      true,
		Workers:    2,
		OnError:    func(string, ...any) {},
		OnTick: func(delta int) {
			mu.Lock()
			ticks += delta
			mu.Unlock()
		},
	})
	require.NoError(t, err)
	sum, err := o.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(2), sum.Total)
	assert.Equal(t, int64(2), sum.Done)
	assert.Equal(t, int64(1), sum.OK)
	assert.Equal(t, int64(1), sum.Err)
	assert.Equal(t, 2, ticks)
	require.Len(t, sum.Failures, 1)
	assert.Equal(t, "kubejs/assets/broken/lang/en_us.json", sum.Failures[0].Rel)
	assert.True(t, strings.Contains(sum.Failures[0].Err.Error(), "extracting"))
	_, err = os.Stat(filepath.Join(out, "kubejs/assets/broken/lang/ru_ru.json"))
	assert.True(t, os.IsNotExist(err))
}

func TestCancelledRunCountsNothing(t *testing.T) {
	in := t.TempDir()
	writeFile(t, in, sceneRel, sceneSrc)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	tr := &fakeTranslator{}
	o, err := New(tr, Options{InputRoot: in, OutputRoot: t.TempDir(), TargetLang: "ru_ru", Write: true})
	require.NoError(t, err)
	sum, err := o.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, sum.Cancelled)
	assert.Equal(t, int64(1), sum.Total)
	assert.Equal(t, int64(0), sum.Done)
	assert.Equal(t, 0, tr.calls)
}

func TestSameInputOutput(t *testing.T) {
	dir := t.TempDir()
	_, err := New(&fakeTranslator{}, Options{InputRoot: dir, OutputRoot: dir + string(filepath.Separator) + ".", TargetLang: "ru_ru"})
	assert.ErrorIs(t, err, ErrSameInputOutput)
}

func TestSnapshotETA(t *testing.T) {
	o, err := New(&fakeTranslator{}, Options{InputRoot: "/a", OutputRoot: "/b", TargetLang: "ru_ru"})
	require.NoError(t, err)
	s := o.Snapshot()
	assert.Zero(t, s.Speed)
	assert.Zero(t, s.ETA)
}

func TestRefreshRetranslatesChangedSource(t *testing.T) {
	in := t.TempDir()
	out := t.TempDir()
	writeFile(t, in, sceneRel, `{"item.bar": "Stone"}`)
	tr := &fakeTranslator{dict: map[string]string{"Stone": "Камень", "Gold": "Золото"}}

	run := func(refresh bool) Summary {
		t.Helper()
		o, err := New(tr, Options{InputRoot: in, OutputRoot: out, TargetLang: "xx_yy", Write: true, Refresh: refresh})
		require.NoError(t, err)
		sum, err := o.Run(context.Background())
		require.NoError(t, err)
		return sum
	}

	require.Equal(t, int64(0), run(false).Skip)
	lock, err := lockfile.Load(out)
	require.NoError(t, err)
	assert.Equal(t, []string{sceneDst}, lock.Targets())
	assert.Equal(t, "xx_yy", lock.Locale)

	writeFile(t, in, sceneRel, `{"item.bar": "Stone", "item.gold": "Gold"}`)
	assert.Equal(t, int64(1), run(false).Skip, "without refresh the existing output wins")
	assert.NotContains(t, readFile(t, out, sceneDst), "Золото")

	assert.Equal(t, int64(0), run(true).Skip)
	assert.Contains(t, readFile(t, out, sceneDst), "Золото")
	assert.Equal(t, int64(1), run(true).Skip, "a refreshed output is up to date")
}

func TestRefreshKeepsUnrecordedOutputs(t *testing.T) {
	in := t.TempDir()
	out := t.TempDir()
	writeFile(t, in, sceneRel, sceneSrc)
	writeFile(t, out, sceneDst, `{"item.bar": "hand made"}`)

	tr := &fakeTranslator{}
	o, err := New(tr, Options{InputRoot: in, OutputRoot: out, TargetLang: "xx_yy", Write: true, Refresh: true})
	require.NoError(t, err)
	sum, err := o.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(1), sum.Skip)
	assert.Equal(t, 0, tr.calls)
	assert.Equal(t, `{"item.bar": "hand made"}`, readFile(t, out, sceneDst))
}
