package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jayasaisrikar/spoc-agent/internal/cache"
	"github.com/jayasaisrikar/spoc-agent/pkg/models"
)

const (
	analysisSystemPrompt = "You are an expert software architect. Reply only with the requested JSON."
	responseSystemPrompt = "You are an expert software architect."

	maxListedFiles  = 50
	maxSnippets     = 10
	maxSnippetInput = 2000
	maxSnippetChars = 1000

	// FallbackModel is the model_used value of heuristic analyses.
	FallbackModel = "fallback_analysis"
)

// Client is a multi-provider language-model client. It satisfies the
// orchestrator's AIClient capability.
type Client struct {
	providers []Provider
	preferred string
	cache     *cache.Cache
	fallback  bool
	debugLog  func(format string, args ...interface{})
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithCache puts a response cache in front of the providers.
func WithCache(c *cache.Cache) ClientOption {
	return func(cl *Client) { cl.cache = c }
}

// WithPreferred moves the named provider to the front of the order.
func WithPreferred(name string) ClientOption {
	return func(cl *Client) { cl.preferred = strings.ToLower(name) }
}

// WithoutFallback disables heuristic answers; provider failures are
// returned as errors instead.
func WithoutFallback() ClientOption {
	return func(cl *Client) { cl.fallback = false }
}

// NewClient creates a client over providers, tried in order.
func NewClient(providers []Provider, opts ...ClientOption) *Client {
	c := &Client{
		providers: providers,
		fallback:  true,
		debugLog:  func(format string, args ...interface{}) {},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetDebugLog sets the debug logging function.
func (c *Client) SetDebugLog(fn func(format string, args ...interface{})) {
	if fn != nil {
		c.debugLog = fn
	}
}

// Providers returns the providers in the order they are tried.
func (c *Client) Providers() []Provider {
	if c.preferred == "" {
		return c.providers
	}
	ordered := make([]Provider, 0, len(c.providers))
	var rest []Provider
	for _, p := range c.providers {
		if strings.ToLower(p.Name()) == c.preferred {
			ordered = append(ordered, p)
		} else {
			rest = append(rest, p)
		}
	}
	return append(ordered, rest...)
}

// cacheModel is the model component of cache keys. Entries are shared by
// all providers of one preference order.
func (c *Client) cacheModel() string {
	if c.preferred != "" {
		return c.preferred
	}
	return "default"
}

// generate returns the first provider answer, consulting the cache first.
func (c *Client) generate(ctx context.Context, system, prompt string) (string, string, error) {
	if c.cache != nil {
		if text, ok := c.cache.Get(c.cacheModel(), prompt); ok {
			return text, "cache", nil
		}
	}

	providers := c.Providers()
	if len(providers) == 0 {
		return "", "", ErrNoProviders
	}

	var errs []error
	for _, p := range providers {
		if err := ctx.Err(); err != nil {
			return "", "", err
		}
		c.debugLog("[api] trying %s (%s)", p.Name(), p.Model())
		text, err := p.Generate(ctx, system, prompt)
		if err != nil {
			c.debugLog("[api] %s failed: %v", p.Name(), err)
			errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
			continue
		}
		if c.cache != nil {
			if err := c.cache.Set(c.cacheModel(), prompt, text); err != nil {
				c.debugLog("[api] cache write failed: %v", err)
			}
		}
		return text, p.Name(), nil
	}
	return "", "", fmt.Errorf("all providers failed: %w", errors.Join(errs...))
}

// GenerateResponse answers a free-form prompt. When every provider fails
// and the fallback is enabled, a fixed guidance text is returned.
func (c *Client) GenerateResponse(ctx context.Context, prompt string) (string, error) {
	text, _, err := c.generate(ctx, responseSystemPrompt, prompt)
	if err == nil {
		return text, nil
	}
	if !c.fallback || ctx.Err() != nil {
		return "", err
	}
	c.debugLog("[api] using fallback response: %v", err)
	return fallbackResponse(prompt), nil
}

// AnalyzeRepository asks for a structured architecture analysis of data.
// The reply is decoded into components, architecture_patterns, tech_stack
// and architecture_summary; free text lands in architecture_summary only.
func (c *Client) AnalyzeRepository(ctx context.Context, data models.RepositoryData, diagram string) (map[string]interface{}, error) {
	prompt := analysisPrompt(data, diagram)

	text, source, err := c.generate(ctx, analysisSystemPrompt, prompt)
	if err != nil {
		if !c.fallback || ctx.Err() != nil {
			return nil, err
		}
		c.debugLog("[api] using heuristic analysis: %v", err)
		return heuristicAnalysis(data, diagram), nil
	}

	analysis := parseAnalysis(text)
	analysis["model_used"] = source
	return analysis, nil
}

// Usage reports token counts per provider.
func (c *Client) Usage() map[string]interface{} {
	out := make(map[string]interface{}, len(c.providers))
	for _, p := range c.providers {
		in, outTok := p.Tracker().Total()
		out[p.Name()] = map[string]interface{}{
			"model":          p.Model(),
			"calls":          p.Tracker().Calls(),
			"input_tokens":   in,
			"output_tokens":  outTok,
			"estimated_cost": p.Tracker().Cost(),
		}
	}
	return out
}

func analysisPrompt(data models.RepositoryData, diagram string) string {
	paths := data.Paths()

	var b strings.Builder
	b.WriteString("Analyze the repository below. All of its files are provided; do not refer to external sources.\n\n")
	fmt.Fprintf(&b, "Total files: %d\n", len(paths))
	for i, p := range paths {
		if i == maxListedFiles {
			fmt.Fprintf(&b, "... and %d more files\n", len(paths)-maxListedFiles)
			break
		}
		fmt.Fprintf(&b, "- %s (%s)\n", p, data[p].Type)
	}

	if diagram != "" {
		fmt.Fprintf(&b, "\nArchitecture diagram:\n%s\n", diagram)
	}

	snippets := 0
	for _, p := range paths {
		content := data[p].Content
		if content == "" || len(content) >= maxSnippetInput {
			continue
		}
		if len(content) > maxSnippetChars {
			content = models.TruncateUTF8(content, maxSnippetChars)
		}
		fmt.Fprintf(&b, "\n--- %s ---\n%s\n", p, content)
		snippets++
		if snippets == maxSnippets {
			break
		}
	}

	b.WriteString(`
Reply with a JSON object with these keys:
  "components": list of key components, referencing file names
  "architecture_patterns": list of architectural patterns in use
  "tech_stack": object mapping "languages", "frameworks" and "tools" to lists
  "architecture_summary": markdown summary of structure, data flow and integration points
`)
	return b.String()
}

// parseAnalysis decodes the first JSON object in text. Replies that carry
// no decodable object become a summary-only analysis.
func parseAnalysis(text string) map[string]interface{} {
	body := text
	if i := strings.Index(body, "```json"); i >= 0 {
		body = body[i+len("```json"):]
		if j := strings.Index(body, "```"); j >= 0 {
			body = body[:j]
		}
	}
	start, end := strings.Index(body, "{"), strings.LastIndex(body, "}")
	if start >= 0 && end > start {
		var out map[string]interface{}
		if err := json.Unmarshal([]byte(body[start:end+1]), &out); err == nil {
			if _, ok := out["architecture_summary"]; !ok {
				out["architecture_summary"] = ""
			}
			return out
		}
	}
	return map[string]interface{}{"architecture_summary": strings.TrimSpace(text)}
}
