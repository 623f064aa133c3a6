// mclokit is a Minecraft modpack localization kit. It mirrors language tables,
// Patchouli books, FTB Quests and KubeJS scripts into another locale using
// AI translation providers.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
	"golang.org/x/term"

	"github.com/minios-linux/mclokit/cache"
	"github.com/minios-linux/mclokit/config"
	"github.com/minios-linux/mclokit/i18n"
	"github.com/minios-linux/mclokit/langmeta"
	"github.com/minios-linux/mclokit/mirror"
	"github.com/minios-linux/mclokit/settings"
	"github.com/minios-linux/mclokit/snbt"
	"github.com/minios-linux/mclokit/translate"
)

// Version information (set via -ldflags during build)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	blue   = color.New(color.FgBlue).SprintFunc()
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow, color.Bold).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
)

func logInfo(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "%s %s\n", blue("[INFO]"), fmt.Sprintf(format, args...))
}

func logSuccess(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "%s %s\n", green("[OK]"), fmt.Sprintf(format, args...))
}

func logWarning(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "%s %s\n", yellow("[WARN]"), fmt.Sprintf(format, args...))
}

func logError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "%s %s\n", red("[ERROR]"), fmt.Sprintf(format, args...))
}

// ---------------------------------------------------------------------------
// Global flag
// ---------------------------------------------------------------------------

var inputDir string

// ---------------------------------------------------------------------------
// Root command
// ---------------------------------------------------------------------------

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "mclokit",
		Short: i18n.T("Minecraft modpack localization kit with AI translation"),
		Long: `mclokit — Minecraft modpack localization kit.

Finds translatable text in a modpack (assets/*/lang tables, Patchouli books,
tips, FTB Quests, KubeJS scripts and lang files inside mod jars), translates
it with an AI provider and writes a mirrored resource tree for the target
locale. Source files are never modified.

Commands:
  status      Show the modpack layout and what would be translated
  translate   Translate the modpack into a mirrored output tree
  cache       Inspect or clear the translation cache
  auth        Manage provider API keys

Providers:
  openai         OpenAI — API key
  groq           Groq — API key
  google         Google AI (Gemini) — API key
  anthropic      Anthropic — API key
  ollama         Ollama local server
  custom-openai  Custom OpenAI-compatible endpoint
  dry            No translation (copies source text)`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&inputDir, "input", "i", ".", i18n.T("Modpack root directory"))

	root.AddCommand(
		newStatusCmd(),
		newTranslateCmd(),
		newCacheCmd(),
		newAuthCmd(),
		newVersionCmd(),
	)

	return root
}

func main() {
	i18n.Init("")
	if err := newRootCmd().Execute(); err != nil {
		logError("%v", err)
		os.Exit(1)
	}
}

// ---------------------------------------------------------------------------
// version
// ---------------------------------------------------------------------------

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: i18n.T("Show version information"),
		Run: func(cmd *cobra.Command, args []string) {
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "mclokit version %s\n", version)
			fmt.Fprintf(w, "  commit:    %s\n", commit)
			fmt.Fprintf(w, "  built:     %s\n", date)
			fmt.Fprintf(w, "  messages:  %s (%s)\n", i18n.Language(), strings.Join(i18n.Languages(), ", "))
		},
	}
}

// ---------------------------------------------------------------------------
// Engine flags
// ---------------------------------------------------------------------------

// engineFlags holds the flag values that override the configuration.
type engineFlags struct {
	lang, sourceLang                 string
	provider, model, apiKey, baseURL string
	proxy, cachePath, snbtMode       string
	batchSize, chunkLen, workers     int
	rpm, maxRetries                  int
	strict, cacheFallbacks, scripts  bool
	timeout                          time.Duration
}

// addEngineFlags defines the configuration flags on fs. Defaults shown in
// help are the built-in ones; only flags set on the command line override
// .mclokit.yaml and the environment.
func addEngineFlags(fs *pflag.FlagSet, f *engineFlags) {
	d := config.Defaults()

	fs.StringVar(&f.lang, "lang", d.TargetLang, i18n.T("Target Minecraft locale (ru_ru, de_de, pt_br, ...)"))
	fs.StringVar(&f.sourceLang, "source-lang", d.SourceLang, i18n.T("Source locale of the modpack"))

	fs.StringVar(&f.provider, "provider", d.Provider, i18n.T("Translation provider"))
	fs.StringVar(&f.model, "model", "", i18n.T("Model name (default: provider default)"))
	fs.StringVar(&f.apiKey, "api-key", "", i18n.T("API key (or MCLOKIT_API_KEY env var)"))
	fs.StringVar(&f.baseURL, "base-url", "", i18n.T("Custom API base URL"))

	fs.StringVar(&f.cachePath, "cache", d.CachePath, i18n.T("Translation cache file"))
	fs.IntVar(&f.batchSize, "batch-size", d.BatchSize, i18n.T("Unique strings per batch request"))
	fs.IntVar(&f.chunkLen, "chunk-len", d.MaxChunkLen, i18n.T("Split strings longer than this many characters"))
	fs.IntVar(&f.workers, "workers", d.Workers, i18n.T("Files processed in parallel"))

	fs.BoolVar(&f.strict, "strict", d.Strict, i18n.T("Keep the source when a translation breaks placeholders or markup"))
	fs.BoolVar(&f.cacheFallbacks, "cache-fallbacks", d.CacheFallbacks, i18n.T("Cache strings left untranslated"))
	fs.BoolVar(&f.scripts, "scripts", d.IncludeScripts, i18n.T("Also translate KubeJS server and client scripts"))
	fs.StringVar(&f.snbtMode, "snbt-mode", d.SnbtMode, i18n.T("FTB Quests rewriting: field-pattern or structural"))

	fs.IntVar(&f.maxRetries, "max-retries", d.Retry.MaxAttempts, i18n.T("Attempts per request on transient errors"))
	fs.DurationVar(&f.timeout, "timeout", 0, i18n.T("Request timeout (0 = provider default)"))
	fs.StringVar(&f.proxy, "proxy", "", i18n.T("HTTP/HTTPS proxy URL"))
	fs.IntVar(&f.rpm, "rpm", 0, i18n.T("Maximum requests per minute (0 = unlimited)"))
}

// apply copies every flag set on the command line into c.
func (f *engineFlags) apply(fs *pflag.FlagSet, c *config.Config) {
	if fs.Changed("lang") {
		c.TargetLang = f.lang
	}
	if fs.Changed("source-lang") {
		c.SourceLang = f.sourceLang
	}
	if fs.Changed("provider") {
		c.Provider = f.provider
	}
	if fs.Changed("model") {
		c.Model = f.model
	}
	if fs.Changed("api-key") {
		c.APIKey = f.apiKey
	}
	if fs.Changed("base-url") {
		c.BaseURL = f.baseURL
	}
	if fs.Changed("cache") {
		c.CachePath = f.cachePath
	}
	if fs.Changed("batch-size") {
		c.BatchSize = f.batchSize
	}
	if fs.Changed("chunk-len") {
		c.MaxChunkLen = f.chunkLen
	}
	if fs.Changed("workers") {
		c.Workers = f.workers
	}
	if fs.Changed("strict") {
		c.Strict = f.strict
	}
	if fs.Changed("cache-fallbacks") {
		c.CacheFallbacks = f.cacheFallbacks
	}
	if fs.Changed("scripts") {
		c.IncludeScripts = f.scripts
	}
	if fs.Changed("snbt-mode") {
		c.SnbtMode = f.snbtMode
	}
	if fs.Changed("max-retries") {
		c.Retry.MaxAttempts = f.maxRetries
	}
	if fs.Changed("timeout") {
		c.Timeout = f.timeout
	}
	if fs.Changed("proxy") {
		c.Proxy = f.proxy
	}
	if fs.Changed("rpm") {
		c.RequestsPerMinute = f.rpm
	}
}

// buildConfig resolves the run configuration for the modpack in input:
// defaults, .mclokit.yaml, environment, then flags. API keys and base URLs
// missing after that come from the provider's env var and the settings
// store.
func buildConfig(input string, fs *pflag.FlagSet, f *engineFlags, getenv func(string) string) (config.Config, error) {
	c, file, err := config.Load(input, getenv)
	if err != nil {
		return c, err
	}
	if file != nil {
		logInfo(i18n.T("Using %s"), filepath.Join(input, config.FileName))
	}
	f.apply(fs, &c)
	c.ApplyProviderEnv(getenv)
	c.Normalize()

	c.APIKey = settings.ResolveAPIKey(c.Provider, c.APIKey)
	if c.BaseURL == "" {
		c.BaseURL = settings.GetBaseURL(c.Provider)
	}
	return c, c.Validate()
}

func completeProviders(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	defs := translate.DefaultProviders()
	out := make([]string, 0, len(defs))
	for _, id := range translate.ProviderIDs() {
		out = append(out, id+"\t"+defs[id].Name)
	}
	return out, cobra.ShellCompDirectiveNoFileComp
}

func completeLocales(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	codes := langmeta.Codes()
	out := make([]string, 0, len(codes))
	for _, code := range codes {
		m := langmeta.Resolve(code)
		out = append(out, fmt.Sprintf("%s\t%s (%s)", code, m.English, m.Native))
	}
	return out, cobra.ShellCompDirectiveNoFileComp
}

// ---------------------------------------------------------------------------
// status (read-only: layout + candidate counts)
// ---------------------------------------------------------------------------

func newStatusCmd() *cobra.Command {
	var (
		output  string
		lang    string
		scripts bool
	)

	cmd := &cobra.Command{
		Use:   "status",
		Short: i18n.T("Show the modpack layout and what would be translated"),
		Long: `Show the detected modpack layout and the number of files per kind that
translate would process. Nothing is translated or written.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, _, err := config.Load(inputDir, os.Getenv)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("lang") {
				c.TargetLang = lang
			}
			if cmd.Flags().Changed("scripts") {
				c.IncludeScripts = scripts
			}
			c.Normalize()
			if err := c.Validate(); err != nil {
				return err
			}
			return runStatus(cmd.OutOrStdout(), c, inputDir, output)
		},
	}

	cmd.Flags().StringVarP(&output, "out", "o", "", i18n.T("Output directory excluded from the scan (default: <input>_<lang>)"))
	cmd.Flags().StringVar(&lang, "lang", config.Defaults().TargetLang, i18n.T("Target Minecraft locale"))
	cmd.Flags().BoolVar(&scripts, "scripts", false, i18n.T("Count KubeJS scripts"))
	_ = cmd.RegisterFlagCompletionFunc("lang", completeLocales)

	return cmd
}

// defaultOutput places the mirror next to the input: pack -> pack_ru_ru.
func defaultOutput(input, lang string) string {
	abs, err := filepath.Abs(input)
	if err != nil {
		abs = input
	}
	return abs + "_" + lang
}

func runStatus(w io.Writer, c config.Config, input, output string) error {
	if output == "" {
		output = defaultOutput(input, c.TargetLang)
	}
	l := config.Detect(input)

	title := l.Name
	if l.Version != "" {
		title += " " + l.Version
	}
	if l.MinecraftVersion != "" {
		title += fmt.Sprintf(" (Minecraft %s)", l.MinecraftVersion)
	}
	yesNo := func(b bool) string {
		if b {
			return i18n.T("yes")
		}
		return i18n.T("no")
	}
	orNone := func(list []string) string {
		if len(list) == 0 {
			return "-"
		}
		return strings.Join(list, ", ")
	}

	fmt.Fprintf(w, "%-10s %s\n", i18n.T("Modpack:"), title)
	fmt.Fprintf(w, "%-10s %s\n", i18n.T("Root:"), l.Root)
	if l.HasMods {
		fmt.Fprintf(w, "%-10s %s\n", i18n.T("Mods:"), fmt.Sprintf(i18n.N("%d jar", "%d jars", l.Jars), l.Jars))
	} else {
		fmt.Fprintf(w, "%-10s -\n", i18n.T("Mods:"))
	}
	fmt.Fprintf(w, "%-10s %s\n", "KubeJS:", yesNo(l.HasKubeJS))
	fmt.Fprintf(w, "%-10s %s\n", i18n.T("Quests:"), orNone(l.QuestDirs))
	fmt.Fprintf(w, "%-10s %s\n", i18n.T("Assets:"), orNone(l.AssetRoots))
	fmt.Fprintf(w, "%-10s %s\n", i18n.T("Config:"), yesNo(l.HasConfigFile))
	m := langmeta.Resolve(c.TargetLang)
	fmt.Fprintf(w, "%-10s %s %s (%s)\n", i18n.T("Target:"), c.TargetLang, m.Flag, m.English)

	orch, err := mirror.New(nil, mirror.Options{
		InputRoot:      input,
		OutputRoot:     output,
		SourceLang:     c.SourceLang,
		TargetLang:     c.TargetLang,
		IncludeScripts: c.IncludeScripts,
		OnLog:          logInfo,
		OnError:        logWarning,
	})
	if err != nil {
		return err
	}
	cands, err := orch.Discover()
	if err != nil {
		return err
	}

	counts := mirror.CountByKind(cands)
	fmt.Fprintf(w, "\n%s\n", i18n.T("Candidates:"))
	for _, k := range mirror.Kinds {
		fmt.Fprintf(w, "  %-18s %d\n", k, counts[k])
	}
	fmt.Fprintf(w, "  %-18s %d\n", i18n.T("total"), len(cands))

	if len(cands) == 0 {
		logWarning(i18n.T("Nothing translatable found in %s"), l.Root)
	}
	return nil
}

// ---------------------------------------------------------------------------
// translate
// ---------------------------------------------------------------------------

type runFlags struct {
	input, output                      string
	dryRun, refresh, verbose, progress bool
}

func newTranslateCmd() *cobra.Command {
	var (
		ef engineFlags
		rf runFlags
	)

	cmd := &cobra.Command{
		Use:   "translate",
		Short: i18n.T("Translate the modpack into a mirrored output tree"),
		Long: `Translate every discovered file and write the result under --out, keeping
relative paths. Language tables are renamed to the target locale; lang files
from mod jars go to <out>/overrides/kubejs/assets/<modid>/lang/.

Existing output files are skipped, so an interrupted run can be resumed.
With --refresh, outputs whose source changed since they were written (as
recorded in <out>/.mclokit.lock) are translated again.
Translations are cached; a second run only asks the provider for new strings.

Configuration precedence: flags > environment > .mclokit.yaml > defaults.

Examples:
  # Translate into Russian with OpenAI (OPENAI_API_KEY)
  mclokit translate -i ~/packs/sky --out ~/packs/sky_ru

  # Local Ollama model, German, with KubeJS scripts
  mclokit translate -i . --out ../pack_de --lang de_de --provider ollama --model qwen2.5 --scripts

  # Warm the cache without writing files
  mclokit translate -i . --out ../pack_ru --dry-run`,
		RunE: func(cmd *cobra.Command, args []string) error {
			rf.input = inputDir
			c, err := buildConfig(rf.input, cmd.Flags(), &ef, os.Getenv)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runTranslate(ctx, c, rf)
		},
	}

	addEngineFlags(cmd.Flags(), &ef)
	cmd.Flags().StringVarP(&rf.output, "out", "o", "", i18n.T("Output directory (required)"))
	cmd.Flags().BoolVar(&rf.dryRun, "dry-run", false, i18n.T("Translate and fill the cache without writing files"))
	cmd.Flags().BoolVar(&rf.refresh, "refresh", false, i18n.T("Translate again outputs whose source changed since they were written"))
	cmd.Flags().BoolVar(&rf.verbose, "verbose", false, i18n.T("Enable detailed logging"))
	cmd.Flags().BoolVar(&rf.progress, "progress", true, i18n.T("Show a progress bar on terminals"))
	_ = cmd.MarkFlagRequired("out")

	_ = cmd.RegisterFlagCompletionFunc("provider", completeProviders)
	_ = cmd.RegisterFlagCompletionFunc("lang", completeLocales)
	_ = cmd.RegisterFlagCompletionFunc("source-lang", completeLocales)
	_ = cmd.RegisterFlagCompletionFunc("snbt-mode", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		out := make([]string, 0, len(snbt.Modes))
		for _, m := range snbt.Modes {
			out = append(out, string(m))
		}
		return out, cobra.ShellCompDirectiveNoFileComp
	})
	_ = cmd.RegisterFlagCompletionFunc("model", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		p, _ := cmd.Flags().GetString("provider")
		switch p {
		case translate.ProviderOpenAI:
			return []string{"gpt-4o-mini", "gpt-4o", "gpt-4.1-mini"}, cobra.ShellCompDirectiveNoFileComp
		case translate.ProviderGroq:
			return []string{"llama-3.3-70b-versatile", "llama-3.1-8b-instant"}, cobra.ShellCompDirectiveNoFileComp
		case translate.ProviderGoogle:
			return []string{"gemini-2.5-flash", "gemini-2.0-flash"}, cobra.ShellCompDirectiveNoFileComp
		case translate.ProviderAnthropic:
			return []string{"claude-3-5-haiku-latest", "claude-sonnet-4-0"}, cobra.ShellCompDirectiveNoFileComp
		case translate.ProviderOllama:
			return []string{"qwen2.5", "llama3.1", "mistral"}, cobra.ShellCompDirectiveNoFileComp
		default:
			return nil, cobra.ShellCompDirectiveNoFileComp
		}
	})

	return cmd
}

func runTranslate(ctx context.Context, c config.Config, rf runFlags) error {
	m := langmeta.Resolve(c.TargetLang)
	logInfo(i18n.T("Translating %s into %s %s (%s)"), rf.input, c.TargetLang, m.Flag, m.English)
	logInfo(i18n.T("Output: %s"), rf.output)

	prov, err := translate.NewProvider(c.ProviderConfig())
	if err != nil {
		return err
	}
	if hp, ok := prov.(*translate.HTTPProvider); ok {
		pc := hp.Config()
		logInfo(i18n.T("Provider: %s, model %s"), pc.Name, pc.Model)
	} else {
		logWarning(i18n.T("Provider %q copies source text; nothing is translated"), c.Provider)
	}

	tc := cache.New(c.CachePath, func(msg string) { logWarning("%s", msg) })
	tc.Load()
	checkCacheMeta(tc, c)

	// While the bar owns the terminal, info lines are dropped and errors
	// are printed after it finishes.
	var (
		bar  *progressBar
		held heldLog
	)
	onLog, onError := logInfo, logError
	if rf.progress && term.IsTerminal(int(os.Stderr.Fd())) {
		bar = newProgressBar()
		onLog, onError = held.discard, held.errorf
		if rf.verbose {
			onLog = held.infof
		}
	}
	if hp, ok := prov.(*translate.HTTPProvider); ok && rf.verbose {
		hp.OnLog = onLog
	}

	engine := translate.NewEngine(prov, tc, translate.Options{
		BatchSize:      c.BatchSize,
		MaxChunkLen:    c.MaxChunkLen,
		Strict:         c.Strict,
		CacheFallbacks: c.CacheFallbacks,
		Retry:          c.RetryPolicy(),
		OnLog:          onLog,
		OnError:        onError,
		Verbose:        rf.verbose,
	})

	extractors, err := mirror.DefaultExtractors(snbt.Mode(c.SnbtMode), c.SafeMaxLen)
	if err != nil {
		return err
	}
	opts := mirror.Options{
		InputRoot:         rf.input,
		OutputRoot:        rf.output,
		SourceLang:        c.SourceLang,
		TargetLang:        c.TargetLang,
		Workers:           c.Workers,
		Write:             !rf.dryRun,
		Refresh:           rf.refresh,
		IncludeScripts:    c.IncludeScripts,
		ArchiveOverlayDir: c.ArchiveOverlayDir,
		Extractors:        extractors,
		OnLog:             onLog,
		OnError:           onError,
		Verbose:           rf.verbose,
	}
	if bar != nil {
		opts.OnTotal = bar.start
		opts.OnTick = bar.tick
	}
	orch, err := mirror.New(engine, opts)
	if err != nil {
		return err
	}

	if rf.progress && bar == nil {
		stop := reportProgress(orch, 15*time.Second)
		defer stop()
	}

	sum, runErr := orch.Run(ctx)
	if bar != nil {
		bar.finish(sum.Cancelled || runErr != nil)
		held.flush()
	}
	if err := tc.Save(); err != nil {
		logWarning(i18n.T("Saving cache: %v"), err)
	}
	if runErr != nil && !sum.Cancelled {
		return runErr
	}

	printSummary(sum, engine.Stats(), rf.dryRun)
	if sum.Cancelled {
		return fmt.Errorf(i18n.T("interrupted after %d of %d files"), sum.Done, sum.Total)
	}
	if n := len(sum.Failures); n > 0 {
		return fmt.Errorf(i18n.N("%d file failed", "%d files failed", n), n)
	}
	return nil
}

// checkCacheMeta warns when the cache was filled for another locale and
// records the current run in the sidecar.
func checkCacheMeta(tc *cache.Cache, c config.Config) {
	meta, ok, err := tc.LoadMeta()
	switch {
	case err != nil:
		logWarning("%v", err)
	case ok && meta.Locale != "" && meta.Locale != c.TargetLang:
		logWarning(i18n.T("Cache %s was filled for %s; entries are not tagged by locale, use a separate --cache for %s"),
			tc.Path(), meta.Locale, c.TargetLang)
	}
	if err := tc.SaveMeta(cache.Meta{Locale: c.TargetLang, Provider: c.Provider, Model: c.Model}); err != nil {
		logWarning(i18n.T("Saving cache metadata: %v"), err)
	}
}

func printSummary(sum mirror.Summary, st translate.Stats, dryRun bool) {
	logInfo(i18n.T("Processed %d of %d files in %s (%.2f files/s)"),
		sum.Done, sum.Total, sum.Elapsed.Round(time.Millisecond), sum.Speed)
	logInfo(i18n.T("Provider calls: %d batch, %d single; cache hits: %d"), st.BatchCalls, st.SingleCalls, st.CacheHits)
	if st.Rejected > 0 || st.Fallbacks > 0 || st.Failed > 0 {
		logWarning(i18n.T("Rejected: %d, batch fallbacks: %d, left untranslated: %d"), st.Rejected, st.Fallbacks, st.Failed)
	}
	for _, f := range sum.Failures {
		logError("%s [%s]: %v", f.Rel, f.Kind, f.Err)
	}

	line := fmt.Sprintf(i18n.T("ok: %d, skipped: %d, errors: %d"), sum.OK, sum.Skip, sum.Err)
	switch {
	case sum.Cancelled:
		logWarning(i18n.T("Interrupted. %s"), line)
	case sum.Err > 0:
		logWarning("%s", line)
	case dryRun:
		logSuccess(i18n.T("Dry run complete. %s"), line)
	default:
		logSuccess(i18n.T("Done. %s"), line)
	}
}

// reportProgress logs a progress line every interval until stop is called.
// It is used when stderr is not a terminal.
func reportProgress(orch *mirror.Orchestrator, interval time.Duration) (stop func()) {
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-done:
				return
			case <-t.C:
				s := orch.Snapshot()
				if s.Total == 0 {
					continue
				}
				logInfo(i18n.T("%d/%d files (ok %d, skip %d, err %d), %.2f files/s, ETA %s"),
					s.Done, s.Total, s.OK, s.Skip, s.Err, s.Speed, s.ETA.Round(time.Second))
			}
		}
	}()
	return func() {
		close(done)
		wg.Wait()
	}
}

// progressBar renders mirror progress on stderr.
type progressBar struct {
	p   *mpb.Progress
	bar *mpb.Bar
}

func newProgressBar() *progressBar {
	return &progressBar{p: mpb.New(mpb.WithWidth(60), mpb.WithOutput(os.Stderr))}
}

func (b *progressBar) start(total int) {
	b.bar = b.p.AddBar(int64(total),
		mpb.PrependDecorators(
			decor.Name(i18n.T("translating"), decor.WCSyncSpaceR),
		),
		mpb.AppendDecorators(
			decor.Percentage(decor.WC{W: 5}),
			decor.Counters(0, " | %d/%d"),
			decor.AverageETA(decor.ET_STYLE_GO, decor.WC{W: 6}, decor.WCSyncSpace),
			decor.AverageSpeed(0, " | %.2f "+i18n.T("files/s")),
		),
	)
}

func (b *progressBar) tick(n int) {
	b.bar.IncrBy(n)
}

func (b *progressBar) finish(aborted bool) {
	if b.bar != nil {
		if aborted {
			b.bar.Abort(false)
		} else {
			b.bar.SetTotal(-1, true)
		}
	}
	b.p.Wait()
}

// heldLog collects lines while the progress bar is drawn.
type heldLog struct {
	mu    sync.Mutex
	lines []heldLine
}

type heldLine struct {
	err  bool
	text string
}

func (h *heldLog) hold(err bool, format string, args ...any) {
	h.mu.Lock()
	h.lines = append(h.lines, heldLine{err: err, text: fmt.Sprintf(format, args...)})
	h.mu.Unlock()
}

func (h *heldLog) infof(format string, args ...any) { h.hold(false, format, args...) }
func (h *heldLog) errorf(format string, args ...any) { h.hold(true, format, args...) }
func (h *heldLog) discard(string, ...any) {}

func (h *heldLog) flush() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, l := range h.lines {
		if l.err {
			logError("%s", l.text)
		} else {
			logInfo("%s", l.text)
		}
	}
	h.lines = nil
}

// ---------------------------------------------------------------------------
// cache
// ---------------------------------------------------------------------------

func newCacheCmd() *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "cache",
		Short: i18n.T("Inspect or clear the translation cache"),
	}
	cmd.PersistentFlags().StringVar(&path, "cache", "", i18n.T("Cache file (default: TRANSLATIONS_CACHE or translations_cache.json)"))

	resolve := func() *cache.Cache {
		if path == "" {
			c := config.Defaults()
			c.ApplyEnv(os.Getenv)
			path = c.CachePath
		}
		return cache.New(path, func(msg string) { logWarning("%s", msg) })
	}

	stats := &cobra.Command{
		Use:   "stats",
		Short: i18n.T("Show cache size and metadata"),
		RunE: func(cmd *cobra.Command, args []string) error {
			tc := resolve()
			entries, unchanged := tc.Stats()
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "%-12s %s\n", i18n.T("File:"), tc.Path())
			fmt.Fprintf(w, "%-12s %d\n", i18n.T("Entries:"), entries)
			fmt.Fprintf(w, "%-12s %d\n", i18n.T("Unchanged:"), unchanged)
			meta, ok, err := tc.LoadMeta()
			if err != nil {
				return err
			}
			if ok {
				fmt.Fprintf(w, "%-12s %s\n", i18n.T("Locale:"), meta.Locale)
				if meta.Provider != "" {
					fmt.Fprintf(w, "%-12s %s %s\n", i18n.T("Provider:"), meta.Provider, meta.Model)
				}
			}
			return nil
		},
	}

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: i18n.T("Delete the cache file and its metadata"),
		RunE: func(cmd *cobra.Command, args []string) error {
			tc := resolve()
			if err := tc.Clear(); err != nil {
				return err
			}
			logSuccess(i18n.T("Cache %s cleared"), tc.Path())
			return nil
		},
	}

	cmd.AddCommand(stats, clearCmd)
	return cmd
}

// ---------------------------------------------------------------------------
// auth
// ---------------------------------------------------------------------------

func newAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: i18n.T("Manage provider API keys"),
		Long: `Manage API keys stored in $XDG_DATA_HOME/mclokit/auth.json.

Keys are looked up in this order: --api-key, MCLOKIT_API_KEY, api_key in
.mclokit.yaml, the provider's own variable (OPENAI_API_KEY, GROQ_API_KEY,
GOOGLE_API_KEY, ANTHROPIC_API_KEY), then the stored key.

Examples:
  mclokit auth login                        Interactive provider selection
  mclokit auth login --provider groq        Store a Groq API key
  mclokit auth logout --provider groq       Remove the Groq key
  mclokit auth logout                       Remove all stored keys
  mclokit auth list                         Show stored keys`,
	}

	cmd.AddCommand(
		newAuthLoginCmd(),
		newAuthLogoutCmd(),
		newAuthListCmd(),
	)

	return cmd
}

// keyProviders returns the providers that can use a stored key or
// endpoint, in display order.
func keyProviders() []string {
	defs := translate.DefaultProviders()
	var ids []string
	for _, id := range translate.ProviderIDs() {
		if defs[id].NeedsKey || id == translate.ProviderCustomOpenAI {
			ids = append(ids, id)
		}
	}
	return ids
}

func completeKeyProviders(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	defs := translate.DefaultProviders()
	var out []string
	for _, id := range keyProviders() {
		out = append(out, id+"\t"+defs[id].Name)
	}
	return out, cobra.ShellCompDirectiveNoFileComp
}

func newAuthLoginCmd() *cobra.Command {
	var provider string

	cmd := &cobra.Command{
		Use:   "login",
		Short: i18n.T("Store an API key for a provider"),
		Long: `Store an API key for a provider. If --provider is not specified, you will
be prompted to choose. custom-openai also asks for the endpoint URL.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			in := bufio.NewScanner(cmd.InOrStdin())
			w := cmd.ErrOrStderr()
			if provider == "" {
				p, err := chooseProvider(in, w)
				if err != nil {
					return err
				}
				provider = p
			}
			return authLogin(in, w, provider)
		},
	}

	cmd.Flags().StringVar(&provider, "provider", "", i18n.T("Provider to authenticate"))
	_ = cmd.RegisterFlagCompletionFunc("provider", completeKeyProviders)

	return cmd
}

func chooseProvider(in *bufio.Scanner, w io.Writer) (string, error) {
	defs := translate.DefaultProviders()
	ids := keyProviders()

	fmt.Fprintf(w, "\n%s\n\n", blue(i18n.T("Select provider to authenticate:")))
	for i, id := range ids {
		fmt.Fprintf(w, "  %d. %s %s\n", i+1, yellow(fmt.Sprintf("%-13s", id)), defs[id].Name)
	}
	fmt.Fprintf(w, "\n%s", i18n.T("Enter choice (number or name): "))

	if !in.Scan() {
		return "", errors.New(i18n.T("no input received"))
	}
	choice := strings.TrimSpace(in.Text())
	if n, err := strconv.Atoi(choice); err == nil && n >= 1 && n <= len(ids) {
		return ids[n-1], nil
	}
	for _, id := range ids {
		if choice == id {
			return id, nil
		}
	}
	return "", fmt.Errorf(i18n.T("invalid choice %q; use: mclokit auth login --provider PROVIDER"), choice)
}

func authLogin(in *bufio.Scanner, w io.Writer, providerID string) error {
	def, ok := translate.DefaultProviders()[providerID]
	if !ok || (!def.NeedsKey && providerID != translate.ProviderCustomOpenAI) {
		return fmt.Errorf(i18n.T("provider %q does not take an API key; run 'mclokit auth list'"), providerID)
	}

	fmt.Fprintf(w, "\n%s\n", blue(fmt.Sprintf(i18n.T("%s — API key setup"), def.Name)))
	fmt.Fprintln(w, strings.Repeat("─", 60))

	existing := settings.Get(providerID)

	baseURL := ""
	if providerID == translate.ProviderCustomOpenAI {
		if existing != nil && existing.BaseURL != "" {
			fmt.Fprintf(w, i18n.T("  Current endpoint: %s\n"), yellow(existing.BaseURL))
			fmt.Fprint(w, i18n.T("  Enter new endpoint URL, or press Enter to keep: "))
		} else {
			fmt.Fprint(w, i18n.T("  Enter endpoint URL (e.g., https://api.example.com/v1): "))
		}
		if !in.Scan() {
			return errors.New(i18n.T("no input received"))
		}
		baseURL = strings.TrimSpace(in.Text())
		if baseURL == "" && existing != nil {
			baseURL = existing.BaseURL
		}
		if baseURL == "" {
			return errors.New(i18n.T("endpoint URL is required"))
		}
	}

	if existing != nil && existing.Key != "" {
		fmt.Fprintf(w, i18n.T("  Current key: %s\n"), yellow(settings.MaskKey(existing.Key)))
		fmt.Fprint(w, i18n.T("  Enter new key to replace, or press Enter to keep: "))
	} else {
		fmt.Fprint(w, i18n.T("  Enter API key: "))
	}
	if !in.Scan() {
		return errors.New(i18n.T("no input received"))
	}
	key := strings.TrimSpace(in.Text())
	if key == "" && existing != nil {
		key = existing.Key
	}
	if key == "" && def.NeedsKey {
		return errors.New(i18n.T("no API key provided"))
	}

	if err := settings.SetAPIKey(providerID, key, baseURL); err != nil {
		return fmt.Errorf(i18n.T("saving API key: %w"), err)
	}
	logSuccess(i18n.T("%s credentials saved"), def.Name)
	fmt.Fprintf(w, i18n.T("\n  You can now use: mclokit translate --provider %s --out DIR\n\n"), providerID)
	return nil
}

func newAuthLogoutCmd() *cobra.Command {
	var provider string

	cmd := &cobra.Command{
		Use:   "logout",
		Short: i18n.T("Remove stored credentials"),
		Long: `Remove stored credentials for one or all providers.

If --provider is not specified, credentials for ALL providers are removed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if provider == "" {
				if err := settings.RemoveAll(); err != nil {
					return err
				}
				logSuccess("%s", i18n.T("All stored credentials removed"))
				return nil
			}
			if _, ok := translate.DefaultProviders()[provider]; !ok {
				return fmt.Errorf(i18n.T("unknown provider %q; run 'mclokit auth list' to see providers"), provider)
			}
			if err := settings.Remove(provider); err != nil {
				return err
			}
			logSuccess(i18n.T("%s credentials removed"), provider)
			return nil
		},
	}

	cmd.Flags().StringVar(&provider, "provider", "", i18n.T("Provider to logout (default: all)"))
	_ = cmd.RegisterFlagCompletionFunc("provider", completeKeyProviders)

	return cmd
}

func newAuthListCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   i18n.T("Show stored credentials and status"),
		Run: func(cmd *cobra.Command, args []string) {
			w := cmd.ErrOrStderr()
			store := settings.Load()

			fmt.Fprintf(w, "\n%s\n", blue(i18n.T("Stored Credentials")))
			fmt.Fprintln(w, strings.Repeat("─", 60))
			for _, id := range keyProviders() {
				entry := store[id]
				switch {
				case entry != nil && entry.Key != "":
					fmt.Fprintf(w, "  %-14s %s (%s)\n", id, green(i18n.T("configured")), settings.MaskKey(entry.Key))
				case entry != nil && entry.BaseURL != "":
					fmt.Fprintf(w, "  %-14s %s (%s)\n", id, green(i18n.T("configured")), i18n.T("no key"))
				default:
					fmt.Fprintf(w, "  %-14s %s\n", id, red(i18n.T("not configured")))
				}
				if entry != nil && entry.BaseURL != "" {
					fmt.Fprintf(w, "  %14s %s %s\n", "", i18n.T("endpoint:"), entry.BaseURL)
				}
			}

			fmt.Fprintf(w, "\n  %s\n", yellow(i18n.T("Environment Variables")))
			vars := []string{"MCLOKIT_API_KEY"}
			seen := map[string]bool{}
			for _, id := range keyProviders() {
				if v := settings.EnvVarForProvider(id); v != "" && !seen[v] {
					seen[v] = true
					vars = append(vars, v)
				}
			}
			for _, v := range vars {
				if val := os.Getenv(v); val != "" {
					fmt.Fprintf(w, "  %-18s %s\n", v, green(settings.MaskKey(val)))
				} else {
					fmt.Fprintf(w, "  %-18s %s\n", v, red(i18n.T("not set")))
				}
			}
			if p := settings.FilePath(); p != "" {
				fmt.Fprintf(w, "\n  %s %s\n", i18n.T("File:"), p)
			}
			fmt.Fprintln(w)
		},
	}
}
