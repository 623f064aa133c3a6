// Package mirror discovers translatable files in a modpack tree, runs them
// through the translation engine and writes the results into a mirrored
// output tree.
package mirror

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"go.trai.ch/zerr"
	"golang.org/x/sync/errgroup"

	"github.com/minios-linux/mclokit/cache"
	"github.com/minios-linux/mclokit/extract"
	"github.com/minios-linux/mclokit/jarlang"
	"github.com/minios-linux/mclokit/kubejs"
	"github.com/minios-linux/mclokit/langfile"
	"github.com/minios-linux/mclokit/lockfile"
	"github.com/minios-linux/mclokit/nestedjson"
	"github.com/minios-linux/mclokit/snbt"
)

const (
	DefaultWorkers           = 6
	DefaultSourceLang        = "en_us"
	DefaultArchiveOverlayDir = "overrides/kubejs"
	DefaultSafeMaxLen        = 800
)

// ErrSameInputOutput is returned by New when input and output resolve to
// the same directory.
var ErrSameInputOutput = zerr.New("input and output directories are the same")

// Translator is the part of translate.Engine the orchestrator needs.
type Translator interface {
	TranslateMany(ctx context.Context, texts []string, locale string) []string
}

// Options configures an Orchestrator.
type Options struct {
	InputRoot  string
	OutputRoot string
	SourceLang string
	TargetLang string
	Workers    int
	// Write enables output. When false the run extracts and translates
	// (warming the cache) and only logs what it would write.
	Write          bool
	IncludeScripts bool
	// Refresh translates again an existing output whose source changed
	// since the run that wrote it, as recorded in the output's lock file.
	// Outputs without a record are still skipped.
	Refresh bool
	// ArchiveOverlayDir is where archive members land, relative to
	// OutputRoot.
	ArchiveOverlayDir string
	// Extractors overrides DefaultExtractors per kind. KindArchive uses the
	// locale-table extractor.
	Extractors map[Kind]extract.Extractor

	OnLog   func(format string, args ...any)
	OnError func(format string, args ...any)
	// OnTotal is called once after discovery with the candidate count.
	OnTotal func(total int)
	// OnTick is called with 1 whenever a candidate reaches a terminal state.
	OnTick  func(delta int)
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
		return
	}
	o.log(format, args...)
}

// DefaultExtractors returns the extractor for every kind.
func DefaultExtractors(mode snbt.Mode, safeMaxLen int) (map[Kind]extract.Extractor, error) {
	quests, err := snbt.New(snbt.Options{Mode: mode, SafeMaxLen: safeMaxLen})
	if err != nil {
		return nil, err
	}
	return map[Kind]extract.Extractor{
		KindLocaleTable:    langfile.Extractor{},
		KindNestedDocument: nestedjson.New(nil, safeMaxLen),
		KindQuestDocument:  quests,
		KindScript:         kubejs.Extractor{},
		KindArchive:        langfile.Extractor{},
	}, nil
}

// Failure records one candidate that ended in error.
type Failure struct {
	Rel  string
	Kind Kind
	Err  error
}

// Snapshot is a point-in-time view of the progress counters.
type Snapshot struct {
	Total   int64
	Done    int64
	OK      int64
	Err     int64
	Skip    int64
	Elapsed time.Duration
	// Speed is candidates per second.
	Speed float64
	ETA   time.Duration
}

// Summary is the outcome of Run.
type Summary struct {
	Snapshot
	Failures  []Failure
	Cancelled bool
}

// Orchestrator mirrors one input tree into one output tree.
type Orchestrator struct {
	opts       Options
	tr         Translator
	extractors map[Kind]extract.Extractor
	in, out    string
	lock       *lockfile.LockFile

	total, done, ok, errs, skip atomic.Int64
	// start is the run's start time in Unix nanoseconds.
	start atomic.Int64

	mu       sync.Mutex
	failures []Failure
}

// New validates opts and returns an orchestrator.
func New(tr Translator, opts Options) (*Orchestrator, error) {
	in, err := filepath.Abs(opts.InputRoot)
	if err != nil {
		return nil, fmt.Errorf("resolving input: %w", err)
	}
	out, err := filepath.Abs(opts.OutputRoot)
	if err != nil {
		return nil, fmt.Errorf("resolving output: %w", err)
	}
	if in == out {
		return nil, zerr.With(zerr.Wrap(ErrSameInputOutput, "mirror"), "path", in)
	}
	if opts.Workers < 1 {
		opts.Workers = DefaultWorkers
	}
	if opts.SourceLang == "" {
		opts.SourceLang = DefaultSourceLang
	}
	if opts.ArchiveOverlayDir == "" {
		opts.ArchiveOverlayDir = DefaultArchiveOverlayDir
	}

	ex, err := DefaultExtractors(snbt.FieldPattern, DefaultSafeMaxLen)
	if err != nil {
		return nil, err
	}
	for k, e := range opts.Extractors {
		ex[k] = e
	}
	return &Orchestrator{opts: opts, tr: tr, extractors: ex, in: in, out: out}, nil
}

// Snapshot returns the current counters.
func (o *Orchestrator) Snapshot() Snapshot {
	s := Snapshot{
		Total: o.total.Load(),
		Done:  o.done.Load(),
		OK:    o.ok.Load(),
		Err:   o.errs.Load(),
		Skip:  o.skip.Load(),
	}
	if start := o.start.Load(); start != 0 {
		s.Elapsed = time.Since(time.Unix(0, start))
	}
	if secs := s.Elapsed.Seconds(); secs > 0 && s.Done > 0 {
		s.Speed = float64(s.Done) / secs
		s.ETA = time.Duration(float64(s.Total-s.Done) / s.Speed * float64(time.Second))
	}
	return s
}

// Run discovers candidates and processes them. Files run on the worker
// pool, archives afterwards one by one. A failing candidate never stops the
// run; a cancelled ctx does, and the summary is marked Cancelled.
func (o *Orchestrator) Run(ctx context.Context) (Summary, error) {
	cands, err := o.Discover()
	if err != nil {
		return Summary{}, fmt.Errorf("discovering candidates: %w", err)
	}
	if o.opts.Write {
		o.openLock()
		defer o.saveLock()
	}
	o.start.Store(time.Now().UnixNano())
	o.total.Store(int64(len(cands)))
	if o.opts.OnTotal != nil {
		o.opts.OnTotal(len(cands))
	}

	var files, archives []Candidate
	for _, c := range cands {
		if c.Kind == KindArchive {
			archives = append(archives, c)
		} else {
			files = append(files, c)
		}
	}

	var g errgroup.Group
	g.SetLimit(o.opts.Workers)
	for _, c := range files {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			o.finish(ctx, c, o.processFile(ctx, c))
			return nil
		})
	}
	_ = g.Wait()

	for _, c := range archives {
		if ctx.Err() != nil {
			break
		}
		o.finish(ctx, c, o.processArchive(ctx, c))
	}

	o.mu.Lock()
	failures := append([]Failure(nil), o.failures...)
	o.mu.Unlock()

	sum := Summary{Snapshot: o.Snapshot(), Failures: failures, Cancelled: ctx.Err() != nil}
	if sum.Cancelled {
		return sum, ctx.Err()
	}
	return sum, nil
}

type outcome int

const (
	outcomeOK outcome = iota
	outcomeSkipped
	outcomeError
)

type result struct {
	outcome outcome
	err     error
}

// finish records a terminal state. A candidate interrupted by cancellation
// is not counted.
func (o *Orchestrator) finish(ctx context.Context, c Candidate, r result) {
	if r.outcome == outcomeError && ctx.Err() != nil && errors.Is(r.err, ctx.Err()) {
		o.opts.debug("cancelled %s", c.Rel)
		return
	}
	switch r.outcome {
	case outcomeOK:
		o.ok.Add(1)
	case outcomeSkipped:
		o.ok.Add(1)
		o.skip.Add(1)
	case outcomeError:
		o.errs.Add(1)
		o.opts.logError("%s: %v", c.Rel, r.err)
		o.mu.Lock()
		o.failures = append(o.failures, Failure{Rel: c.Rel, Kind: c.Kind, Err: r.err})
		o.mu.Unlock()
	}
	o.done.Add(1)
	if o.opts.OnTick != nil {
		o.opts.OnTick(1)
	}
}

func (o *Orchestrator) openLock() {
	lock, err := lockfile.Load(o.out)
	if err != nil {
		o.opts.logError("%v; starting a new lock", err)
		lock = lockfile.Empty(o.out)
	}
	o.lock = lock
}

func (o *Orchestrator) saveLock() {
	if o.lock.Len() > 0 {
		o.lock.SetLocale(o.opts.TargetLang)
	}
	if err := o.lock.Save(); err != nil {
		o.opts.logError("saving %s: %v", lockfile.FileName, err)
	}
}

// target is the lock key of an output path.
func (o *Orchestrator) target(dst string) string {
	rel, err := filepath.Rel(o.out, dst)
	if err != nil {
		return filepath.ToSlash(dst)
	}
	return filepath.ToSlash(rel)
}

// upToDate reports whether dst can be skipped: it exists and, in refresh
// mode, its recorded source matches src. src is only read in refresh mode.
func (o *Orchestrator) upToDate(dst string, src func() ([]byte, error)) bool {
	if !o.opts.Write || !exists(dst) {
		return false
	}
	if !o.opts.Refresh || o.lock == nil {
		return true
	}
	data, err := src()
	if err != nil {
		return false
	}
	if o.lock.Stale(o.target(dst), data) {
		o.opts.debug("source changed for %s", o.target(dst))
		return false
	}
	return true
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func (o *Orchestrator) processFile(ctx context.Context, c Candidate) result {
	if o.upToDate(c.Dst, func() ([]byte, error) { return os.ReadFile(c.Src) }) {
		o.opts.debug("skip existing %s", c.Rel)
		return result{outcome: outcomeSkipped}
	}
	data, err := os.ReadFile(c.Src)
	if err != nil {
		return result{outcome: outcomeError, err: err}
	}
	out, err := o.translateDocument(ctx, o.extractors[c.Kind], data, c.Rel)
	if err != nil {
		return result{outcome: outcomeError, err: zerr.With(err, "path", c.Rel)}
	}
	if err := o.emit(c.Dst, out, data); err != nil {
		return result{outcome: outcomeError, err: err}
	}
	return result{outcome: outcomeOK}
}

// processArchive translates every source-language locale table in a jar
// into the overlay directory. Members whose overlay already exists are
// skipped; the archive counts as skipped only if all of them were.
func (o *Orchestrator) processArchive(ctx context.Context, c Candidate) result {
	members, err := jarlang.Scan(c.Src, o.opts.SourceLang, func(name string, err error) {
		o.opts.logError("%s!%s: %v", c.Rel, name, err)
	})
	if err != nil {
		return result{outcome: outcomeError, err: err}
	}
	ex := o.extractors[KindArchive]
	written := 0
	for _, m := range members {
		if err := ctx.Err(); err != nil {
			return result{outcome: outcomeError, err: err}
		}
		dst := jarlang.OverlayPath(o.out, o.opts.ArchiveOverlayDir, m.ModID, o.opts.TargetLang)
		if o.upToDate(dst, func() ([]byte, error) { return m.Data, nil }) {
			o.opts.debug("skip existing overlay for %s", m.ModID)
			continue
		}
		out, err := o.translateDocument(ctx, ex, m.Data, c.Rel+"!"+m.Name)
		if err != nil {
			return result{outcome: outcomeError, err: zerr.With(err, "entry", m.Name)}
		}
		if err := o.emit(dst, out, m.Data); err != nil {
			return result{outcome: outcomeError, err: err}
		}
		written++
	}
	if written == 0 && len(members) > 0 {
		return result{outcome: outcomeSkipped}
	}
	return result{outcome: outcomeOK}
}

// translateDocument extracts, translates and rewrites one document fully in
// memory. A document that cannot be parsed or rewritten comes back
// unchanged with a warning; only cancellation is an error.
func (o *Orchestrator) translateDocument(ctx context.Context, ex extract.Extractor, data []byte, name string) ([]byte, error) {
	slots, err := ex.FindSlots(data)
	if err != nil {
		o.opts.logError("%s: extracting: %v; writing it unchanged", name, err)
		return data, nil
	}
	texts := extract.Texts(slots)
	o.opts.debug("%s: %d slots, %d distinct", name, len(slots), len(texts))

	var tr map[string]string
	if len(texts) > 0 {
		translated := o.tr.TranslateMany(ctx, texts, o.opts.TargetLang)
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		tr = extract.Zip(texts, translated)
	}

	if rep, ok := ex.(snbt.Reporter); ok {
		out, nodeErrs, err := rep.RewriteReport(data, tr)
		for _, ne := range nodeErrs {
			o.opts.logError("%s: node %v", name, ne)
		}
		if err != nil {
			o.opts.logError("%s: rewriting: %v; writing it unchanged", name, err)
			return data, nil
		}
		return out, nil
	}
	out, err := ex.Rewrite(data, tr)
	if err != nil {
		o.opts.logError("%s: rewriting: %v; writing it unchanged", name, err)
		return data, nil
	}
	return out, nil
}

// emit writes data to dst and records src as its source.
func (o *Orchestrator) emit(dst string, data, src []byte) error {
	rel, err := filepath.Rel(o.out, dst)
	if err != nil {
		rel = dst
	}
	if !o.opts.Write {
		o.opts.log("would write %s", filepath.ToSlash(rel))
		return nil
	}
	if err := cache.WriteFileAtomic(dst, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", filepath.ToSlash(rel), err)
	}
	if o.lock != nil {
		o.lock.Record(o.target(dst), src)
	}
	o.opts.debug("wrote %s", filepath.ToSlash(rel))
	return nil
}
