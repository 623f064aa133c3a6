// Package translate turns extracted strings into translated strings. The
// Engine owns caching, chunking, deduplication, batching, validation and
// retries; a Provider only speaks to the translation service.
//
// TranslateMany never fails: any string the provider cannot translate
// resolves to its source text.
package translate

import (
	"context"
	"math/rand/v2"
	"regexp"
	"strings"
	"sync/atomic"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/minios-linux/mclokit/cache"
	"github.com/minios-linux/mclokit/tokenguard"
)

// Defaults used when an Options field is zero.
const (
	DefaultBatchSize   = 100
	DefaultMaxChunkLen = 100
)

// ---------------------------------------------------------------------------
// Options
// ---------------------------------------------------------------------------

// RetryPolicy controls exponential backoff for transient provider errors.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	// Jitter is the relative spread applied to every delay, in [0, 1).
	Jitter float64
}

// DefaultRetry returns 6 attempts starting at 2s, capped at 30s, ±25%.
func DefaultRetry() RetryPolicy {
	return RetryPolicy{MaxAttempts: 6, BaseDelay: 2 * time.Second, MaxDelay: 30 * time.Second, Jitter: 0.25}
}

// Delay returns the sleep before the attempt following attempt (1-based).
// u is a uniform sample in [0, 1) that picks the jitter.
func (p RetryPolicy) Delay(attempt int, u float64) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := p.BaseDelay
	for i := 1; i < attempt && d < p.MaxDelay; i++ {
		d *= 2
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	f := 1 + p.Jitter*(2*u-1)
	if f < 0 {
		f = 0
	}
	return time.Duration(float64(d) * f)
}

// Options controls the engine behavior.
type Options struct {
	// BatchSize is the maximum number of unique chunks per batch call.
	BatchSize int
	// MaxChunkLen is the rune length above which a string is chunked.
	MaxChunkLen int
	// Strict reverts a translation whose protected tokens differ from the
	// source.
	Strict bool
	// CacheFallbacks also caches results identical to their source.
	CacheFallbacks bool
	// Retry is the backoff policy; a zero value means DefaultRetry.
	Retry RetryPolicy
	// OnLog emits log messages.
	OnLog func(format string, args ...any)
	// OnError emits error messages.
	OnError func(format string, args ...any)
	// Verbose enables per-string debug lines.
	Verbose bool
}

func (o *Options) log(format string, args ...any) {
	if o.OnLog != nil {
		o.OnLog(format, args...)
	}
}

func (o *Options) debug(format string, args ...any) {
	if o.Verbose {
		o.log(format, args...)
	}
}

func (o *Options) logError(format string, args ...any) {
	if o.OnError != nil {
		o.OnError(format, args...)
	} else if o.OnLog != nil {
		o.OnLog(format, args...)
	}
}

func (o *Options) effectiveBatchSize() int {
	if o.BatchSize > 0 {
		return o.BatchSize
	}
	return DefaultBatchSize
}

func (o *Options) effectiveMaxChunkLen() int {
	if o.MaxChunkLen > 0 {
		return o.MaxChunkLen
	}
	return DefaultMaxChunkLen
}

func (o *Options) effectiveRetry() RetryPolicy {
	if o.Retry.MaxAttempts > 0 {
		return o.Retry
	}
	return DefaultRetry()
}

// ---------------------------------------------------------------------------
// Engine
// ---------------------------------------------------------------------------

// Stats counts what the engine did since it was created.
type Stats struct {
	BatchCalls  int64 // TranslateBatch requests, retries included
	SingleCalls int64 // TranslateOne requests, retries included
	CacheHits   int64
	Rejected    int64 // translations reverted by token validation
	Fallbacks   int64 // batches degraded to single requests
	Failed      int64 // strings left untranslated after giving up
}

// Engine is safe for concurrent use by several workers.
type Engine struct {
	provider Provider
	cache    *cache.Cache
	opts     Options

	batchCalls  atomic.Int64
	singleCalls atomic.Int64
	cacheHits   atomic.Int64
	rejected    atomic.Int64
	fallbacks   atomic.Int64
	failed      atomic.Int64

	// sleep waits between retries; replaced in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewEngine returns an engine using p for translation and c as the shared
// cache. c may be nil.
func NewEngine(p Provider, c *cache.Cache, opts Options) *Engine {
	return &Engine{provider: p, cache: c, opts: opts, sleep: sleepCtx}
}

// Stats returns a snapshot of the counters.
func (e *Engine) Stats() Stats {
	return Stats{
		BatchCalls:  e.batchCalls.Load(),
		SingleCalls: e.singleCalls.Load(),
		CacheHits:   e.cacheHits.Load(),
		Rejected:    e.rejected.Load(),
		Fallbacks:   e.fallbacks.Load(),
		Failed:      e.failed.Load(),
	}
}

// passThrough reports whether s needs no translation at all.
func passThrough(s, locale string) bool {
	return s == "" || tokenguard.IsTargetScriptOnly(s, locale) || !tokenguard.HasLatin(s)
}

// isComplex reports whether s carries line breaks, color codes or embedded
// chat JSON. Such strings travel whole on the single path.
func isComplex(s string) bool {
	return strings.Contains(s, "\n") || strings.Contains(s, "§") || strings.Contains(s, `{"text"`)
}

// TranslateMany returns the translation of every text, in input order.
func (e *Engine) TranslateMany(ctx context.Context, texts []string, locale string) []string {
	out := make([]string, len(texts))
	done := make([]bool, len(texts))
	maxLen := e.opts.effectiveMaxChunkLen()

	var (
		pending  []string            // unique units for the batch path
		singles  []string            // unique complex strings
		seen     = map[string]bool{} // units already queued
		wholes   = map[string][]string{}
		order    []string // chunked strings in first-seen order
		resolved = map[string]string{}
	)

	queue := func(u string) {
		if seen[u] {
			return
		}
		seen[u] = true
		if passThrough(u, locale) {
			resolved[u] = u
			return
		}
		if v, ok := e.cacheGet(u); ok {
			resolved[u] = v
			return
		}
		pending = append(pending, u)
	}

	for i, t := range texts {
		if passThrough(t, locale) {
			out[i], done[i] = t, true
			continue
		}
		if v, ok := e.cacheGet(t); ok {
			out[i], done[i] = v, true
			continue
		}
		switch {
		case isComplex(t):
			if !seen[t] {
				seen[t] = true
				singles = append(singles, t)
			}
		case utf8.RuneCountInString(t) > maxLen:
			if _, ok := wholes[t]; ok {
				continue
			}
			chunks := SplitChunks(t, maxLen)
			wholes[t] = chunks
			order = append(order, t)
			for _, c := range chunks {
				queue(c)
			}
		default:
			queue(t)
		}
	}

	e.runBatches(ctx, pending, locale, resolved)
	e.runSingles(ctx, singles, locale, resolved)

	for _, t := range order {
		chunks := wholes[t]
		parts := make([]string, len(chunks))
		complete, fellBack := true, false
		for j, c := range chunks {
			v, ok := resolved[c]
			if !ok {
				v, complete = c, false
			}
			if v == c && !passThrough(c, locale) {
				fellBack = true
			}
			parts[j] = v
		}
		joined := strings.Join(parts, " ")
		resolved[t] = joined
		// A whole string with a source-text chunk is a fallback too.
		if complete && (!fellBack || e.opts.CacheFallbacks) {
			e.put(t, joined)
		}
	}
	if len(order) > 0 {
		e.save()
	}

	for i, t := range texts {
		if done[i] {
			continue
		}
		if v, ok := resolved[t]; ok {
			out[i] = v
		} else {
			out[i] = t
		}
	}
	return out
}

func (e *Engine) runBatches(ctx context.Context, pending []string, locale string, resolved map[string]string) {
	size := e.opts.effectiveBatchSize()
	for off := 0; off < len(pending); off += size {
		if ctx.Err() != nil {
			e.opts.debug("cancelled with %d strings left", len(pending)-off)
			return
		}
		group := pending[off:min(off+size, len(pending))]
		outs := e.translateGroup(ctx, group, locale)
		for j, src := range group {
			if outs[j] == nil {
				continue
			}
			res := e.accept(src, *outs[j])
			resolved[src] = res
			e.put(src, res)
		}
		e.save()
	}
}

func (e *Engine) runSingles(ctx context.Context, singles []string, locale string, resolved map[string]string) {
	if len(singles) == 0 {
		return
	}
	for _, src := range singles {
		if ctx.Err() != nil {
			break
		}
		v, ok := e.translateOne(ctx, src, locale)
		if !ok {
			continue
		}
		res := e.accept(src, v)
		resolved[src] = res
		e.put(src, res)
	}
	e.save()
}

// translateGroup returns one result per member of group. A nil entry means
// the member was not resolved because ctx ended.
func (e *Engine) translateGroup(ctx context.Context, group []string, locale string) []*string {
	res, err := retry(ctx, e, "batch", func() ([]string, error) {
		e.batchCalls.Add(1)
		return e.provider.TranslateBatch(ctx, group, locale)
	})

	outs := make([]*string, len(group))
	if err == nil && len(res) == len(group) {
		for j := range res {
			outs[j] = &res[j]
		}
		return outs
	}
	if ctx.Err() != nil {
		return outs
	}
	if err != nil {
		e.opts.logError("batch of %d failed: %v; falling back to single requests", len(group), err)
	} else {
		e.opts.logError("batch returned %d items for %d inputs; falling back to single requests", len(res), len(group))
	}
	e.fallbacks.Add(1)

	for j, src := range group {
		if ctx.Err() != nil {
			break
		}
		if v, ok := e.translateOne(ctx, src, locale); ok {
			outs[j] = &v
		}
	}
	return outs
}

// translateOne returns the provider's translation, or the source text when
// the provider gave up. ok is false only when ctx ended.
func (e *Engine) translateOne(ctx context.Context, src, locale string) (string, bool) {
	v, err := retry(ctx, e, "single", func() (string, error) {
		e.singleCalls.Add(1)
		return e.provider.TranslateOne(ctx, src, locale)
	})
	if err == nil {
		return v, true
	}
	if ctx.Err() != nil {
		return "", false
	}
	e.failed.Add(1)
	e.opts.logError("giving up on %q: %v", truncate(src, 60), err)
	return src, true
}

// accept validates out against src and returns the text to keep.
func (e *Engine) accept(src, out string) string {
	if strings.TrimSpace(out) == "" {
		e.rejected.Add(1)
		e.opts.debug("empty translation for %q, keeping source", truncate(src, 60))
		return src
	}
	want, got := tokenguard.ExtractTokens(src), tokenguard.ExtractTokens(out)
	if !want.Equal(got) {
		if e.opts.Strict {
			e.rejected.Add(1)
			e.opts.log("token mismatch in %q: want %s, got %s; keeping source", truncate(src, 60), want, got)
			return src
		}
		e.opts.debug("token mismatch in %q: want %s, got %s", truncate(src, 60), want, got)
	}
	return out
}

func (e *Engine) cacheGet(s string) (string, bool) {
	if e.cache == nil {
		return "", false
	}
	v, ok := e.cache.Get(s)
	if ok {
		e.cacheHits.Add(1)
	}
	return v, ok
}

func (e *Engine) put(src, out string) {
	if e.cache == nil || (out == src && !e.opts.CacheFallbacks) {
		return
	}
	e.cache.Put(src, out)
}

func (e *Engine) save() {
	if e.cache == nil {
		return
	}
	if err := e.cache.Save(); err != nil {
		e.opts.logError("saving cache: %v", err)
	}
}

// ---------------------------------------------------------------------------
// Retry
// ---------------------------------------------------------------------------

func retry[T any](ctx context.Context, e *Engine, what string, fn func() (T, error)) (T, error) {
	var zero T
	policy := e.opts.effectiveRetry()
	var last error
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		v, err := fn()
		if err == nil {
			return v, nil
		}
		last = err
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		if !IsTransient(err) || attempt == policy.MaxAttempts {
			break
		}
		d := policy.Delay(attempt, rand.Float64())
		e.opts.log("[Retry] %s attempt %d/%d, sleep %.1fs, err=%v", what, attempt, policy.MaxAttempts, d.Seconds(), err)
		if err := e.sleep(ctx, d); err != nil {
			return zero, err
		}
	}
	return zero, last
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// ---------------------------------------------------------------------------
// Chunking
// ---------------------------------------------------------------------------

var sentenceEnd = regexp.MustCompile(`[.!?…]+\s+`)

// SplitChunks cuts s into pieces of at most maxLen runes. It breaks after
// sentence-end punctuation where possible, packs whole sentences greedily,
// and hard-splits an oversized sentence at its last space before the
// limit. A cut never falls inside a placeholder or namespaced ID. Joining
// the chunks with single spaces restores s when s separates its sentences
// and words with single spaces.
func SplitChunks(s string, maxLen int) []string {
	if maxLen <= 0 || utf8.RuneCountInString(s) <= maxLen {
		return []string{s}
	}

	var sentences []string
	start := 0
	for _, loc := range sentenceEnd.FindAllStringIndex(s, -1) {
		ws := loc[0] + strings.IndexFunc(s[loc[0]:loc[1]], unicode.IsSpace)
		if p := strings.TrimSpace(s[start:ws]); p != "" {
			sentences = append(sentences, p)
		}
		start = loc[1]
	}
	if p := strings.TrimSpace(s[start:]); p != "" {
		sentences = append(sentences, p)
	}

	var chunks []string
	cur := ""
	flush := func() {
		if cur != "" {
			chunks = append(chunks, cur)
			cur = ""
		}
	}
	for _, sent := range sentences {
		n := utf8.RuneCountInString(sent)
		switch {
		case n > maxLen:
			flush()
			chunks = append(chunks, hardSplit(sent, maxLen)...)
		case cur == "":
			cur = sent
		case utf8.RuneCountInString(cur)+1+n <= maxLen:
			cur += " " + sent
		default:
			flush()
			cur = sent
		}
	}
	flush()
	return chunks
}

// hardSplit cuts s into pieces of at most maxLen runes, preferring the last
// whitespace before the limit. A token longer than maxLen stays whole.
func hardSplit(s string, maxLen int) []string {
	var out []string
	for utf8.RuneCountInString(s) > maxLen {
		lim := byteOffset(s, maxLen)
		cut := strings.LastIndexFunc(s[:lim+1], unicode.IsSpace)
		if cut <= 0 {
			cut = lim
			if sp, ok := tokenguard.Inside(tokenguard.Spans(s), cut); ok {
				cut = sp.Start
				if cut == 0 {
					cut = sp.End
				}
			}
		}
		piece := strings.TrimRightFunc(s[:cut], unicode.IsSpace)
		if piece != "" {
			out = append(out, piece)
		}
		s = strings.TrimLeftFunc(s[cut:], unicode.IsSpace)
	}
	if s != "" {
		out = append(out, s)
	}
	return out
}

// byteOffset returns the byte index of rune n in s.
func byteOffset(s string, n int) int {
	i := 0
	for pos := range s {
		if i == n {
			return pos
		}
		i++
	}
	return len(s)
}
