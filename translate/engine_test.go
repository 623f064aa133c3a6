package translate

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/minios-linux/mclokit/cache"
	"github.com/minios-linux/mclokit/tokenguard"
	"github.com/minios-linux/mclokit/translate/mocks"
)

func newTestEngine(t *testing.T, p Provider, opts Options) (*Engine, *cache.Cache, *[]time.Duration) {
	t.Helper()
	c := cache.New(filepath.Join(t.TempDir(), "cache.json"), nil)
	if opts.Retry.MaxAttempts == 0 {
		opts.Retry = RetryPolicy{MaxAttempts: 3, BaseDelay: time.Second, MaxDelay: 4 * time.Second}
	}
	e := NewEngine(p, c, opts)
	var slept []time.Duration
	e.sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return ctx.Err()
	}
	return e, c, &slept
}

func TestTranslateManyDeduplicatesAndSkips(t *testing.T) {
	ctrl := gomock.NewController(t)
	p := mocks.NewMockProvider(ctrl)
	p.EXPECT().
		TranslateBatch(gomock.Any(), []string{"Stone", "Dirt"}, "ru_ru").
		Return([]string{"Камень", "Земля"}, nil)

	e, c, _ := newTestEngine(t, p, Options{Strict: true, CacheFallbacks: true})
	got := e.TranslateMany(context.Background(), []string{"Stone", "Dirt", "Stone", "Камень", "123 / 456", ""}, "ru_ru")

	assert.Equal(t, []string{"Камень", "Земля", "Камень", "Камень", "123 / 456", ""}, got)
	v, ok := c.Get("Dirt")
	require.True(t, ok)
	assert.Equal(t, "Земля", v)
	assert.Equal(t, int64(1), e.Stats().BatchCalls)
}

func TestTargetOnlyNeverReachesProvider(t *testing.T) {
	ctrl := gomock.NewController(t)
	p := mocks.NewMockProvider(ctrl)

	e, c, _ := newTestEngine(t, p, Options{Strict: true, CacheFallbacks: true})
	in := []string{"Уже переведено", "§7100", "42%", "{0} / {1}"}
	got := e.TranslateMany(context.Background(), in, "ru_ru")

	assert.Equal(t, in, got)
	assert.Equal(t, 0, c.Len())
}

func TestWrongLengthBatchFallsBackToSingle(t *testing.T) {
	ctrl := gomock.NewController(t)
	p := mocks.NewMockProvider(ctrl)
	gomock.InOrder(
		p.EXPECT().TranslateBatch(gomock.Any(), []string{"Iron Ingot", "Gold Ingot", "Copper Ingot"}, "ru_ru").
			Return([]string{"Железный слиток"}, nil),
		p.EXPECT().TranslateOne(gomock.Any(), "Iron Ingot", "ru_ru").Return("Железный слиток", nil),
		p.EXPECT().TranslateOne(gomock.Any(), "Gold Ingot", "ru_ru").Return("Золотой слиток", nil),
		p.EXPECT().TranslateOne(gomock.Any(), "Copper Ingot", "ru_ru").Return("Медный слиток", nil),
	)

	e, _, _ := newTestEngine(t, p, Options{Strict: true})
	got := e.TranslateMany(context.Background(), []string{"Iron Ingot", "Gold Ingot", "Copper Ingot"}, "ru_ru")

	require.Len(t, got, 3)
	assert.Equal(t, []string{"Железный слиток", "Золотой слиток", "Медный слиток"}, got)
	st := e.Stats()
	assert.Equal(t, int64(1), st.Fallbacks)
	assert.Equal(t, int64(3), st.SingleCalls)
}

func TestBatchErrorIsNotRetriedWhenPermanent(t *testing.T) {
	ctrl := gomock.NewController(t)
	p := mocks.NewMockProvider(ctrl)
	p.EXPECT().TranslateBatch(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, zerrMalformed()).Times(1)
	p.EXPECT().TranslateOne(gomock.Any(), "Sword", "ru_ru").Return("Меч", nil)

	e, _, slept := newTestEngine(t, p, Options{Strict: true})
	got := e.TranslateMany(context.Background(), []string{"Sword"}, "ru_ru")

	assert.Equal(t, []string{"Меч"}, got)
	assert.Empty(t, *slept)
}

func zerrMalformed() error {
	_, err := parseTranslations("sorry, I cannot help", 1)
	return err
}

func TestStrictRevertsTokenMismatch(t *testing.T) {
	ctrl := gomock.NewController(t)
	p := mocks.NewMockProvider(ctrl)
	p.EXPECT().TranslateBatch(gomock.Any(), []string{"Hello %s"}, "ru_ru").Return([]string{"Привет"}, nil)

	var logs []string
	e, c, _ := newTestEngine(t, p, Options{
		Strict:         true,
		CacheFallbacks: true,
		OnLog:          func(f string, a ...any) { logs = append(logs, f) },
	})
	got := e.TranslateMany(context.Background(), []string{"Hello %s"}, "ru_ru")

	assert.Equal(t, []string{"Hello %s"}, got)
	assert.Equal(t, int64(1), e.Stats().Rejected)
	v, ok := c.Get("Hello %s")
	require.True(t, ok)
	assert.Equal(t, "Hello %s", v)
	require.NotEmpty(t, logs)
	assert.Contains(t, logs[0], "token mismatch")
}

func TestLenientKeepsTokenMismatch(t *testing.T) {
	ctrl := gomock.NewController(t)
	p := mocks.NewMockProvider(ctrl)
	p.EXPECT().TranslateBatch(gomock.Any(), []string{"Hello %s"}, "ru_ru").Return([]string{"Привет"}, nil)

	e, _, _ := newTestEngine(t, p, Options{Strict: false})
	got := e.TranslateMany(context.Background(), []string{"Hello %s"}, "ru_ru")
	assert.Equal(t, []string{"Привет"}, got)
}

func TestCacheFallbacksDisabled(t *testing.T) {
	ctrl := gomock.NewController(t)
	p := mocks.NewMockProvider(ctrl)
	p.EXPECT().TranslateBatch(gomock.Any(), []string{"Botania", "Petal"}, "ru_ru").
		Return([]string{"Botania", "Лепесток"}, nil)

	e, c, _ := newTestEngine(t, p, Options{Strict: true, CacheFallbacks: false})
	e.TranslateMany(context.Background(), []string{"Botania", "Petal"}, "ru_ru")

	_, ok := c.Get("Botania")
	assert.False(t, ok, "identity result cached with fallbacks disabled")
	_, ok = c.Get("Petal")
	assert.True(t, ok)
}

func TestChunkFailureRequeriedWithFallbacksDisabled(t *testing.T) {
	s := "First sentence " + strings.Repeat("a", 60) + ". Second sentence " + strings.Repeat("b", 59) + "."
	chunks := SplitChunks(s, 100)
	require.Len(t, chunks, 2)

	ctrl := gomock.NewController(t)
	p := mocks.NewMockProvider(ctrl)
	gomock.InOrder(
		p.EXPECT().TranslateBatch(gomock.Any(), chunks, "ru_ru").Return(nil, zerrMalformed()),
		p.EXPECT().TranslateOne(gomock.Any(), chunks[0], "ru_ru").Return("Первое", nil),
		p.EXPECT().TranslateOne(gomock.Any(), chunks[1], "ru_ru").Return("", errors.New("model refused")),
		p.EXPECT().TranslateBatch(gomock.Any(), []string{chunks[1]}, "ru_ru").Return([]string{"Второе"}, nil),
	)

	e, c, _ := newTestEngine(t, p, Options{Strict: true, MaxChunkLen: 100, CacheFallbacks: false})

	got := e.TranslateMany(context.Background(), []string{s}, "ru_ru")
	assert.Equal(t, []string{"Первое " + chunks[1]}, got)
	_, ok := c.Get(s)
	assert.False(t, ok, "partly untranslated string cached with fallbacks disabled")
	_, ok = c.Get(chunks[1])
	assert.False(t, ok, "failed chunk cached with fallbacks disabled")

	got = e.TranslateMany(context.Background(), []string{s}, "ru_ru")
	assert.Equal(t, []string{"Первое Второе"}, got)
	v, ok := c.Get(s)
	require.True(t, ok)
	assert.Equal(t, "Первое Второе", v)
}

func TestRetriesTransientErrors(t *testing.T) {
	ctrl := gomock.NewController(t)
	p := mocks.NewMockProvider(ctrl)
	gomock.InOrder(
		p.EXPECT().TranslateBatch(gomock.Any(), []string{"Apple"}, "ru_ru").
			Return(nil, errors.New("API returned status 429: Too Many Requests")),
		p.EXPECT().TranslateBatch(gomock.Any(), []string{"Apple"}, "ru_ru").
			Return(nil, ErrTransient),
		p.EXPECT().TranslateBatch(gomock.Any(), []string{"Apple"}, "ru_ru").
			Return([]string{"Яблоко"}, nil),
	)

	e, _, slept := newTestEngine(t, p, Options{
		Strict: true,
		Retry:  RetryPolicy{MaxAttempts: 6, BaseDelay: time.Second, MaxDelay: 30 * time.Second},
	})
	got := e.TranslateMany(context.Background(), []string{"Apple"}, "ru_ru")

	assert.Equal(t, []string{"Яблоко"}, got)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, *slept)
	assert.Equal(t, int64(3), e.Stats().BatchCalls)
}

func TestGivingUpKeepsSource(t *testing.T) {
	ctrl := gomock.NewController(t)
	p := mocks.NewMockProvider(ctrl)
	p.EXPECT().TranslateBatch(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, ErrTransient).Times(3)
	p.EXPECT().TranslateOne(gomock.Any(), "Apple", "ru_ru").
		Return("", ErrTransient).Times(3)

	var errs []string
	e, c, _ := newTestEngine(t, p, Options{
		Strict:         true,
		CacheFallbacks: true,
		OnError:        func(f string, a ...any) { errs = append(errs, f) },
	})
	got := e.TranslateMany(context.Background(), []string{"Apple"}, "ru_ru")

	assert.Equal(t, []string{"Apple"}, got)
	assert.Equal(t, int64(1), e.Stats().Failed)
	v, ok := c.Get("Apple")
	require.True(t, ok)
	assert.Equal(t, "Apple", v)
	assert.Len(t, errs, 2)
}

func TestComplexStringsUseSinglePath(t *testing.T) {
	ctrl := gomock.NewController(t)
	p := mocks.NewMockProvider(ctrl)
	p.EXPECT().TranslateOne(gomock.Any(), "§6Quest Book\nRead me", "ru_ru").
		Return("§6Книга заданий\nПрочти меня", nil)
	p.EXPECT().TranslateBatch(gomock.Any(), []string{"Plain"}, "ru_ru").Return([]string{"Простой"}, nil)

	e, _, _ := newTestEngine(t, p, Options{Strict: true})
	got := e.TranslateMany(context.Background(), []string{"§6Quest Book\nRead me", "Plain"}, "ru_ru")
	assert.Equal(t, []string{"§6Книга заданий\nПрочти меня", "Простой"}, got)
}

const (
	longFirst  = "Place the botania:mana_pool next to a %s spreader and wait until the pool fills."
	longSecond = "Once it is full, throw any item into the pool and it will transform according to the recipe shown in the lexicon, that lists every botania:mana_infusion result in order."
)

func TestSplitChunksTwoSentences(t *testing.T) {
	s := longFirst + " " + longSecond
	require.Equal(t, 250, utf8.RuneCountInString(s))

	chunks := SplitChunks(s, 100)
	require.Len(t, chunks, 3)
	assert.Equal(t, longFirst, chunks[0])
	for _, c := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(c), 100, "chunk %q", c)
	}
	assert.Equal(t, s, strings.Join(chunks, " "))

	var toks tokenguard.TokenSet
	for _, c := range chunks {
		toks = append(toks, tokenguard.ExtractTokens(c)...)
	}
	assert.ElementsMatch(t, tokenguard.ExtractTokens(s), toks)
}

func TestSplitChunksNeverCutsToken(t *testing.T) {
	s := strings.Repeat("x", 18) + "%1$s" + strings.Repeat("y", 10)
	chunks := SplitChunks(s, 20)
	assert.Equal(t, []string{strings.Repeat("x", 18), "%1$s" + strings.Repeat("y", 10)}, chunks)
}

func TestSplitChunks(t *testing.T) {
	cases := []struct {
		name string
		in   string
		max  int
		want []string
	}{
		{"short", "Hello world.", 100, []string{"Hello world."}},
		{"packs sentences", "One. Two. Three.", 10, []string{"One. Two.", "Three."}},
		{"mixed punctuation", "Wait! Really? Yes…  Done", 8, []string{"Wait!", "Really?", "Yes…", "Done"}},
		{"hard split on space", "aaaa bbbb cccc", 9, []string{"aaaa bbbb", "cccc"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, SplitChunks(tc.in, tc.max))
		})
	}
}

func TestLongStringIsChunkedAndCachedWhole(t *testing.T) {
	s := longFirst + " " + longSecond
	chunks := SplitChunks(s, 100)

	ctrl := gomock.NewController(t)
	p := mocks.NewMockProvider(ctrl)
	p.EXPECT().TranslateBatch(gomock.Any(), chunks, "ru_ru").
		Return([]string{"A %s botania:mana_pool", "B", "C botania:mana_infusion done"}, nil)

	e, c, _ := newTestEngine(t, p, Options{Strict: true, MaxChunkLen: 100})
	got := e.TranslateMany(context.Background(), []string{s}, "ru_ru")

	want := "A %s botania:mana_pool B C botania:mana_infusion done"
	assert.Equal(t, []string{want}, got)
	v, ok := c.Get(s)
	require.True(t, ok)
	assert.Equal(t, want, v)

	again := e.TranslateMany(context.Background(), []string{s}, "ru_ru")
	assert.Equal(t, []string{want}, again)
}

func TestBatchSizeSplitsRequests(t *testing.T) {
	ctrl := gomock.NewController(t)
	p := mocks.NewMockProvider(ctrl)
	p.EXPECT().TranslateBatch(gomock.Any(), []string{"a1", "a2"}, "de_de").Return([]string{"b1", "b2"}, nil)
	p.EXPECT().TranslateBatch(gomock.Any(), []string{"a3"}, "de_de").Return([]string{"b3"}, nil)

	e, _, _ := newTestEngine(t, p, Options{Strict: true, BatchSize: 2})
	got := e.TranslateMany(context.Background(), []string{"a1", "a2", "a3"}, "de_de")
	assert.Equal(t, []string{"b1", "b2", "b3"}, got)
}

func TestSecondRunUsesCacheOnly(t *testing.T) {
	ctrl := gomock.NewController(t)
	p := mocks.NewMockProvider(ctrl)
	p.EXPECT().TranslateBatch(gomock.Any(), gomock.Any(), gomock.Any()).
		Return([]string{"Лепесток", "Мана"}, nil).Times(1)

	e, c, _ := newTestEngine(t, p, Options{Strict: true, CacheFallbacks: true})
	first := e.TranslateMany(context.Background(), []string{"Petal", "Mana"}, "ru_ru")

	reloaded := NewEngine(p, cache.New(c.Path(), nil), Options{Strict: true})
	second := reloaded.TranslateMany(context.Background(), []string{"Petal", "Mana"}, "ru_ru")

	assert.Equal(t, first, second)
	assert.Equal(t, int64(2), reloaded.Stats().CacheHits)
}

func TestCancelledContextResolvesToSource(t *testing.T) {
	ctrl := gomock.NewController(t)
	p := mocks.NewMockProvider(ctrl)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e, c, _ := newTestEngine(t, p, Options{Strict: true, CacheFallbacks: true})
	got := e.TranslateMany(ctx, []string{"Petal", "Line\nbreak"}, "ru_ru")

	assert.Equal(t, []string{"Petal", "Line\nbreak"}, got)
	assert.Equal(t, 0, c.Len())
}

func TestRetryPolicyDelay(t *testing.T) {
	p := DefaultRetry()
	cases := []struct {
		attempt int
		u       float64
		want    time.Duration
	}{
		{1, 0.5, 2 * time.Second},
		{2, 0.5, 4 * time.Second},
		{4, 0.5, 16 * time.Second},
		{5, 0.5, 30 * time.Second},
		{9, 0.5, 30 * time.Second},
		{1, 0, 1500 * time.Millisecond},
		{1, 1, 2500 * time.Millisecond},
	}
	for _, tc := range cases {
		if got := p.Delay(tc.attempt, tc.u); got != tc.want {
			t.Errorf("Delay(%d, %v) = %v, want %v", tc.attempt, tc.u, got, tc.want)
		}
	}
}

func TestIsTransient(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{ErrTransient, true},
		{errors.New("429 Too Many Requests"), true},
		{errors.New("rate limit reached for gpt-4o-mini"), true},
		{context.DeadlineExceeded, true},
		{context.Canceled, false},
		{errors.New("invalid api key"), false},
		{zerrMalformed(), false},
	}
	for _, tc := range cases {
		if got := IsTransient(tc.err); got != tc.want {
			t.Errorf("IsTransient(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}
