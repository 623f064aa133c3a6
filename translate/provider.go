package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.trai.ch/zerr"
	"golang.org/x/time/rate"

	"github.com/minios-linux/mclokit/langmeta"
)

//go:generate mockgen -source=provider.go -destination=mocks/mock_provider.go -package=mocks

// Provider translates ordered lists of strings into a Minecraft locale.
// TranslateBatch must return exactly len(texts) items in input order.
type Provider interface {
	TranslateBatch(ctx context.Context, texts []string, locale string) ([]string, error)
	TranslateOne(ctx context.Context, text, locale string) (string, error)
}

// ---------------------------------------------------------------------------
// Errors
// ---------------------------------------------------------------------------

var (
	// ErrTransient marks failures worth retrying: rate limits, 5xx
	// responses, network errors and timeouts.
	ErrTransient = zerr.New("transient provider error")
	// ErrMalformedResponse marks a response whose text could not be parsed.
	ErrMalformedResponse = zerr.New("malformed provider response")
	// ErrLengthMismatch marks a batch response with the wrong item count.
	ErrLengthMismatch = zerr.New("batch response length mismatch")

	ErrUnknownProvider = zerr.New("unknown provider")
	ErrMissingAPIKey   = zerr.New("missing API key")
	ErrMissingModel    = zerr.New("missing model")
	ErrMissingBaseURL  = zerr.New("missing base URL")
)

// ---------------------------------------------------------------------------
// Provider IDs
// ---------------------------------------------------------------------------

const (
	ProviderOpenAI       = "openai"
	ProviderGroq         = "groq"
	ProviderOllama       = "ollama"
	ProviderCustomOpenAI = "custom-openai"
	ProviderGoogle       = "google"
	ProviderAnthropic    = "anthropic"
	// ProviderDry returns every input unchanged.
	ProviderDry = "dry"
)

// ProviderConfig holds the configuration for a translation service.
type ProviderConfig struct {
	// ID is the provider identifier (openai, groq, google, etc.).
	ID string
	// Name is the display name.
	Name string
	// BaseURL is the API base URL.
	BaseURL string
	// APIKey is the authentication key (empty for local services).
	APIKey string
	// Model is the model identifier.
	Model string
	// Proxy is an optional HTTP/HTTPS proxy URL.
	Proxy string
	// Timeout is the request timeout.
	Timeout time.Duration
	// RequestsPerMinute throttles requests; 0 means unlimited.
	RequestsPerMinute int
	// NeedsKey is true for hosted services that reject anonymous calls.
	NeedsKey bool
}

// DefaultProviders returns the pre-configured provider definitions.
func DefaultProviders() map[string]ProviderConfig {
	return map[string]ProviderConfig{
		ProviderOpenAI: {
			ID:       ProviderOpenAI,
			Name:     "OpenAI",
			BaseURL:  "https://api.openai.com/v1",
			Model:    "gpt-4o-mini",
			Timeout:  60 * time.Second,
			NeedsKey: true,
		},
		ProviderGroq: {
			ID:       ProviderGroq,
			Name:     "Groq",
			BaseURL:  "https://api.groq.com/openai/v1",
			Timeout:  60 * time.Second,
			NeedsKey: true,
		},
		ProviderOllama: {
			ID:      ProviderOllama,
			Name:    "Ollama",
			BaseURL: "http://localhost:11434/v1",
			Timeout: 120 * time.Second,
		},
		ProviderCustomOpenAI: {
			ID:      ProviderCustomOpenAI,
			Name:    "Custom OpenAI",
			Timeout: 60 * time.Second,
		},
		ProviderGoogle: {
			ID:       ProviderGoogle,
			Name:     "Google AI (Gemini)",
			BaseURL:  "https://generativelanguage.googleapis.com",
			Timeout:  120 * time.Second,
			NeedsKey: true,
		},
		ProviderAnthropic: {
			ID:       ProviderAnthropic,
			Name:     "Anthropic",
			BaseURL:  "https://api.anthropic.com/v1",
			Timeout:  120 * time.Second,
			NeedsKey: true,
		},
		ProviderDry: {
			ID:   ProviderDry,
			Name: "Dry run (no translation)",
		},
	}
}

// ProviderIDs returns the known provider IDs in sorted order.
func ProviderIDs() []string {
	ids := make([]string, 0, 8)
	for id := range DefaultProviders() {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// NewProvider builds the provider described by cfg. Empty fields are
// filled from DefaultProviders.
func NewProvider(cfg ProviderConfig) (Provider, error) {
	def, ok := DefaultProviders()[cfg.ID]
	if !ok {
		return nil, zerr.With(zerr.Wrap(ErrUnknownProvider, "creating provider"), "provider", cfg.ID)
	}
	if cfg.ID == ProviderDry {
		return DryProvider{}, nil
	}
	if cfg.Name == "" {
		cfg.Name = def.Name
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.Model == "" {
		cfg.Model = def.Model
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	cfg.NeedsKey = def.NeedsKey
	return NewHTTPProvider(cfg)
}

// ---------------------------------------------------------------------------
// Dry provider
// ---------------------------------------------------------------------------

// DryProvider returns its inputs unchanged. It lets a run extract and
// rewrite every file without network access.
type DryProvider struct{}

func (DryProvider) TranslateBatch(_ context.Context, texts []string, _ string) ([]string, error) {
	return append([]string(nil), texts...), nil
}

func (DryProvider) TranslateOne(_ context.Context, text, _ string) (string, error) {
	return text, nil
}

// ---------------------------------------------------------------------------
// Rate limit state (global pause for parallel workers)
// ---------------------------------------------------------------------------

type rateLimitState struct {
	mu       sync.Mutex
	paused   int32 // atomic: 1 = paused
	pauseEnd time.Time
}

func (r *rateLimitState) isPaused() bool {
	return atomic.LoadInt32(&r.paused) == 1
}

func (r *rateLimitState) pause(duration time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	end := time.Now().Add(duration)
	if end.After(r.pauseEnd) {
		r.pauseEnd = end
	}
	atomic.StoreInt32(&r.paused, 1)
}

func (r *rateLimitState) unpause() {
	atomic.StoreInt32(&r.paused, 0)
}

// waitIfPaused blocks until the rate limit pause is over.
func (r *rateLimitState) waitIfPaused(ctx context.Context) error {
	for r.isPaused() {
		r.mu.Lock()
		remaining := time.Until(r.pauseEnd)
		r.mu.Unlock()
		if remaining <= 0 {
			r.unpause()
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(min(remaining, 100*time.Millisecond)):
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// HTTP provider
// ---------------------------------------------------------------------------

type apiFormat int

const (
	formatOpenAIChat   apiFormat = iota // OpenAI chat/completions
	formatGeminiNative                  // Google Gemini generateContent
	formatAnthropic                     // Anthropic messages
)

func formatFor(id string) apiFormat {
	switch id {
	case ProviderGoogle:
		return formatGeminiNative
	case ProviderAnthropic:
		return formatAnthropic
	default:
		return formatOpenAIChat
	}
}

// HTTPProvider talks to a chat-completion style API. Each call makes exactly
// one request; retrying is left to the Engine.
type HTTPProvider struct {
	cfg     ProviderConfig
	format  apiFormat
	client  *http.Client
	limiter *rate.Limiter
	rl      *rateLimitState

	// OnLog receives debug lines when set.
	OnLog func(format string, args ...any)
}

// NewHTTPProvider validates cfg and returns a provider for it.
func NewHTTPProvider(cfg ProviderConfig) (*HTTPProvider, error) {
	if cfg.BaseURL == "" {
		return nil, zerr.With(zerr.Wrap(ErrMissingBaseURL, "creating provider"), "provider", cfg.ID)
	}
	if cfg.Model == "" {
		return nil, zerr.With(zerr.Wrap(ErrMissingModel, "creating provider"), "provider", cfg.ID)
	}
	if cfg.NeedsKey && cfg.APIKey == "" {
		return nil, zerr.With(zerr.Wrap(ErrMissingAPIKey, "creating provider"), "provider", cfg.ID)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	if cfg.ID == ProviderOllama && !strings.HasSuffix(strings.TrimRight(cfg.BaseURL, "/"), "/v1") {
		cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/") + "/v1"
	}
	p := &HTTPProvider{
		cfg:    cfg,
		format: formatFor(cfg.ID),
		client: makeHTTPClient(cfg.Proxy, cfg.Timeout),
		rl:     &rateLimitState{},
	}
	if cfg.RequestsPerMinute > 0 {
		p.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 1)
	}
	return p, nil
}

// Config returns the effective configuration.
func (p *HTTPProvider) Config() ProviderConfig {
	return p.cfg
}

func (p *HTTPProvider) debug(format string, args ...any) {
	if p.OnLog != nil {
		p.OnLog(format, args...)
	}
}

// TranslateBatch asks for a JSON array with one translation per input.
func (p *HTTPProvider) TranslateBatch(ctx context.Context, texts []string, locale string) ([]string, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	text, err := p.complete(ctx, batchSystemPrompt(locale), batchUserPrompt(texts, locale))
	if err != nil {
		return nil, err
	}
	out, err := parseTranslations(text, len(texts))
	if err != nil {
		return nil, err
	}
	if len(out) != len(texts) {
		return out, zerr.With(zerr.With(zerr.Wrap(ErrLengthMismatch, "parsing batch response"), "want", len(texts)), "got", len(out))
	}
	return out, nil
}

// TranslateOne asks for the bare translation of one string.
func (p *HTTPProvider) TranslateOne(ctx context.Context, text, locale string) (string, error) {
	out, err := p.complete(ctx, singleSystemPrompt(locale), text)
	if err != nil {
		return "", err
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", zerr.Wrap(ErrMalformedResponse, "empty translation")
	}
	return out, nil
}

// complete sends one prompt and returns the response text.
func (p *HTTPProvider) complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if err := p.rl.waitIfPaused(ctx); err != nil {
		return "", err
	}
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return "", err
		}
	}

	endpoint, headers, body, err := buildHTTPRequest(p.cfg, systemPrompt, userPrompt, p.format)
	if err != nil {
		return "", fmt.Errorf("building request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	p.debug("%s: POST %s", p.cfg.Name, endpoint)
	resp, err := p.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", zerr.With(zerr.Wrap(ErrTransient, "API request failed: "+err.Error()), "provider", p.cfg.ID)
	}
	respBody, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return "", zerr.Wrap(ErrTransient, "reading response: "+err.Error())
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		if d, ok := retryAfter(resp.Header, respBody); ok {
			p.debug("429 rate limited, pausing all requests for %v", d)
			p.rl.pause(d)
		}
		return "", zerr.With(zerr.Wrap(ErrTransient, fmt.Sprintf("API returned status 429: %s", truncate(string(respBody), 300))), "status", resp.StatusCode)
	case resp.StatusCode >= 500:
		return "", zerr.With(zerr.Wrap(ErrTransient, fmt.Sprintf("API returned status %d: %s", resp.StatusCode, truncate(string(respBody), 300))), "status", resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return "", zerr.With(fmt.Errorf("API returned status %d: %s", resp.StatusCode, truncate(string(respBody), 500)), "status", resp.StatusCode)
	}

	text, err := extractResponseText(respBody)
	if err != nil {
		return "", zerr.Wrap(ErrMalformedResponse, err.Error())
	}
	return text, nil
}

// makeHTTPClient honours an explicit proxy, falling back to the
// HTTP_PROXY/HTTPS_PROXY environment variables.
func makeHTTPClient(proxyURL string, timeout time.Duration) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if proxyURL != "" {
		if parsed, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(parsed)
		}
	} else {
		transport.Proxy = http.ProxyFromEnvironment
	}
	return &http.Client{Transport: transport, Timeout: timeout}
}

// ---------------------------------------------------------------------------
// Request builders for each API format
// ---------------------------------------------------------------------------

const temperature = 0.0

func buildOpenAIChatRequest(model, systemPrompt, userPrompt string) ([]byte, error) {
	type msg struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}
	req := struct {
		Model       string  `json:"model"`
		Messages    []msg   `json:"messages"`
		Temperature float64 `json:"temperature"`
		Stream      bool    `json:"stream"`
	}{
		Model: model,
		Messages: []msg{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Temperature: temperature,
	}
	return json.Marshal(req)
}

func buildGeminiRequest(systemPrompt, userPrompt string) ([]byte, error) {
	type part struct {
		Text string `json:"text"`
	}
	type content struct {
		Role  string `json:"role,omitempty"`
		Parts []part `json:"parts"`
	}
	type genConfig struct {
		Temperature float64 `json:"temperature"`
	}
	req := struct {
		Contents          []content `json:"contents"`
		GenerationConfig  genConfig `json:"generationConfig"`
		SystemInstruction *content  `json:"systemInstruction,omitempty"`
	}{
		Contents:         []content{{Role: "user", Parts: []part{{Text: userPrompt}}}},
		GenerationConfig: genConfig{Temperature: temperature},
	}
	if systemPrompt != "" {
		req.SystemInstruction = &content{Parts: []part{{Text: systemPrompt}}}
	}
	return json.Marshal(req)
}

func buildAnthropicRequest(model, systemPrompt, userPrompt string) ([]byte, error) {
	type msg struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}
	req := struct {
		Model       string  `json:"model"`
		MaxTokens   int     `json:"max_tokens"`
		System      string  `json:"system,omitempty"`
		Messages    []msg   `json:"messages"`
		Temperature float64 `json:"temperature"`
	}{
		Model:       model,
		MaxTokens:   8192,
		System:      systemPrompt,
		Messages:    []msg{{Role: "user", Content: userPrompt}},
		Temperature: temperature,
	}
	return json.Marshal(req)
}

// buildHTTPRequest constructs the endpoint, headers, and body for a request.
func buildHTTPRequest(cfg ProviderConfig, systemPrompt, userPrompt string, format apiFormat) (string, map[string]string, []byte, error) {
	headers := map[string]string{"Content-Type": "application/json"}
	base := strings.TrimRight(cfg.BaseURL, "/")

	var endpoint string
	var body []byte
	var err error

	switch format {
	case formatGeminiNative:
		endpoint = fmt.Sprintf("%s/v1beta/models/%s:generateContent", base, cfg.Model)
		if cfg.APIKey != "" {
			headers["x-goog-api-key"] = cfg.APIKey
		}
		body, err = buildGeminiRequest(systemPrompt, userPrompt)

	case formatAnthropic:
		endpoint = base + "/messages"
		if cfg.APIKey != "" {
			headers["x-api-key"] = cfg.APIKey
		}
		headers["anthropic-version"] = "2023-06-01"
		body, err = buildAnthropicRequest(cfg.Model, systemPrompt, userPrompt)

	default:
		endpoint = base
		if !strings.HasSuffix(base, "/chat/completions") {
			endpoint = base + "/chat/completions"
		}
		if cfg.APIKey != "" {
			headers["Authorization"] = "Bearer " + cfg.APIKey
		}
		body, err = buildOpenAIChatRequest(cfg.Model, systemPrompt, userPrompt)
	}

	if err != nil {
		return "", nil, nil, err
	}
	return endpoint, headers, body, nil
}

// ---------------------------------------------------------------------------
// Response parsers (multi-format)
// ---------------------------------------------------------------------------

// extractResponseText tries all known response formats and returns the text.
func extractResponseText(body []byte) (string, error) {
	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return "", fmt.Errorf("invalid JSON response: %w", err)
	}

	if errObj, ok := raw["error"]; ok {
		if errMap, ok := errObj.(map[string]any); ok {
			if msg, ok := errMap["message"].(string); ok {
				return "", fmt.Errorf("API error: %s", msg)
			}
		}
		return "", fmt.Errorf("API error: %v", errObj)
	}

	// OpenAI chat: choices[0].message.content
	if choices, ok := raw["choices"].([]any); ok && len(choices) > 0 {
		if choice, ok := choices[0].(map[string]any); ok {
			if message, ok := choice["message"].(map[string]any); ok {
				if content, ok := message["content"].(string); ok {
					return content, nil
				}
			}
		}
	}

	// Gemini: candidates[0].content.parts[*].text
	if candidates, ok := raw["candidates"].([]any); ok && len(candidates) > 0 {
		if candidate, ok := candidates[0].(map[string]any); ok {
			if content, ok := candidate["content"].(map[string]any); ok {
				if parts, ok := content["parts"].([]any); ok {
					var sb strings.Builder
					for _, p := range parts {
						if part, ok := p.(map[string]any); ok {
							if text, ok := part["text"].(string); ok {
								sb.WriteString(text)
							}
						}
					}
					if sb.Len() > 0 {
						return sb.String(), nil
					}
				}
			}
		}
	}

	// Anthropic: content[].type=="text" -> .text
	if contentArr, ok := raw["content"].([]any); ok {
		for _, c := range contentArr {
			if block, ok := c.(map[string]any); ok && block["type"] == "text" {
				if text, ok := block["text"].(string); ok {
					return text, nil
				}
			}
		}
	}

	return "", fmt.Errorf("could not extract text from response: %s", truncate(string(body), 500))
}

// retryAfter returns the pause a 429 response asks for, either through a
// Retry-After header or Google's RetryInfo detail.
func retryAfter(h http.Header, body []byte) (time.Duration, bool) {
	if v := h.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second, true
		}
	}

	var errResp struct {
		Error struct {
			Details []struct {
				Type       string `json:"@type"`
				RetryDelay string `json:"retryDelay"`
			} `json:"details"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &errResp); err != nil {
		return 0, false
	}
	for _, detail := range errResp.Error.Details {
		if strings.Contains(detail.Type, "RetryInfo") && detail.RetryDelay != "" {
			d := strings.TrimSuffix(detail.RetryDelay, "s")
			if secs, err := strconv.ParseFloat(d, 64); err == nil && secs > 0 {
				return time.Duration(secs*1000) * time.Millisecond, true
			}
		}
	}
	return 0, false
}

var markdownCodeBlock = regexp.MustCompile("(?s)```(?:json|JSON)?\\s*(.*?)\\s*```")

// fixInvalidEscapes doubles backslashes that do not start a valid JSON
// escape inside string values. Models sometimes copy sequences like \§ or
// \& verbatim.
func fixInvalidEscapes(jsonContent string) string {
	var fixed strings.Builder
	inQuote := false
	escaped := false

	for i := 0; i < len(jsonContent); i++ {
		c := jsonContent[i]

		if c == '"' && !escaped {
			inQuote = !inQuote
			fixed.WriteByte(c)
			continue
		}

		if inQuote && c == '\\' && !escaped {
			if i+1 < len(jsonContent) && strings.IndexByte(`"\/bfnrtu`, jsonContent[i+1]) >= 0 {
				fixed.WriteByte(c)
				escaped = true
				continue
			}
			fixed.WriteString(`\\`)
			continue
		}

		fixed.WriteByte(c)
		escaped = false
	}

	return fixed.String()
}

// parseTranslations extracts a JSON array of strings from the model output.
func parseTranslations(content string, expected int) ([]string, error) {
	content = strings.TrimSpace(content)

	if m := markdownCodeBlock.FindStringSubmatch(content); len(m) > 1 {
		content = m[1]
	}

	startIdx := strings.Index(content, "[")
	endIdx := strings.LastIndex(content, "]")
	if startIdx < 0 || endIdx <= startIdx {
		return nil, zerr.Wrap(ErrMalformedResponse, "no JSON array in response: "+truncate(content, 300))
	}
	content = fixInvalidEscapes(content[startIdx : endIdx+1])

	var items []any
	if err := json.Unmarshal([]byte(content), &items); err != nil {
		return nil, zerr.Wrap(ErrMalformedResponse, fmt.Sprintf("parsing JSON array: %v: %s", err, truncate(content, 300)))
	}
	if len(items) == 0 && expected > 0 {
		return nil, zerr.With(zerr.Wrap(ErrLengthMismatch, "empty array"), "want", expected)
	}

	out := make([]string, len(items))
	for i, it := range items {
		switch v := it.(type) {
		case string:
			out[i] = v
		case nil:
			out[i] = ""
		default:
			out[i] = fmt.Sprint(v)
		}
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// Prompts
// ---------------------------------------------------------------------------

func languageLine(locale string) string {
	return fmt.Sprintf("%s (Minecraft locale: %s)", langmeta.PromptName(locale), locale)
}

func singleSystemPrompt(locale string) string {
	return "You are a professional localization engine for Minecraft mods and modpacks.\n" +
		"Translate the following text into " + languageLine(locale) + ".\n" +
		"Hard rules:\n" +
		" - Do NOT translate or alter placeholders (e.g., %s, %1$s, {count}, {0}).\n" +
		" - Do NOT translate or alter namespaced IDs like modid:item or text keys.\n" +
		" - Do NOT leave parts of the text in English unless they are proper names or IDs.\n" +
		" - Keep formatting codes (§a, §b, etc.) and JSON fragments intact.\n" +
		"Return ONLY the translated text, without quotes or explanations."
}

func batchSystemPrompt(locale string) string {
	return "You are a professional localization engine for Minecraft mods and modpacks.\n" +
		"Translate EACH of the provided strings from English to " + languageLine(locale) + ".\n" +
		"Strict rules:\n" +
		" - Do NOT alter placeholders (e.g., %s, %1$s, {count}, {0}).\n" +
		" - Do NOT alter namespaced IDs like modid:item or translation keys.\n" +
		" - Preserve Minecraft formatting codes (e.g., §a, §b) and JSON structure.\n" +
		" - Keep the count and order EXACTLY the same as the input.\n" +
		" - Return ONLY a valid JSON array of strings, without any extra commentary.\n" +
		"If you are unsure about something, keep it as in the original."
}

func batchUserPrompt(texts []string, locale string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Translate these strings to %s:\n\n", langmeta.PromptName(locale))
	for i, t := range texts {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, escapeForPrompt(t))
	}
	fmt.Fprintf(&sb, "\nReturn a JSON array with exactly %d translated strings.", len(texts))
	return sb.String()
}

// escapeForPrompt prepares a string for inclusion in the AI prompt.
func escapeForPrompt(s string) string {
	s = strings.ReplaceAll(s, "\n", "\\n")
	s = strings.ReplaceAll(s, "\t", "\\t")
	return fmt.Sprintf(`"%s"`, s)
}

// truncate truncates a string to maxLen bytes.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

// IsTransient reports whether err is worth retrying: an ErrTransient, a
// rate-limit message, a network error or a timeout.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, ErrMalformedResponse) || errors.Is(err, ErrLengthMismatch) {
		return false
	}
	if errors.Is(err, ErrTransient) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "429") || strings.Contains(msg, "too many requests") || strings.Contains(msg, "rate limit") {
		return true
	}
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) {
		return true
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}
