package api

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jayasaisrikar/spoc-agent/internal/cache"
	"github.com/jayasaisrikar/spoc-agent/pkg/models"
)

type fakeProvider struct {
	name    string
	reply   string
	err     error
	calls   int
	prompts []string
	tracker *TokenTracker
}

func newFake(name, reply string, err error) *fakeProvider {
	return &fakeProvider{name: name, reply: reply, err: err, tracker: NewTokenTracker()}
}

func (f *fakeProvider) Name() string           { return f.name }
func (f *fakeProvider) Model() string          { return f.name + "-model" }
func (f *fakeProvider) Tracker() *TokenTracker { return f.tracker }

func (f *fakeProvider) Generate(ctx context.Context, system, prompt string) (string, error) {
	f.calls++
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	f.tracker.Add(int64(len(prompt)), int64(len(f.reply)))
	return f.reply, nil
}

func names(ps []Provider) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.Name()
	}
	return out
}

func TestProviders_PreferredFirst(t *testing.T) {
	a, g := newFake("anthropic", "", nil), newFake("gemini", "", nil)

	assert.Equal(t, []string{"anthropic", "gemini"}, names(NewClient([]Provider{a, g}).Providers()))
	assert.Equal(t, []string{"gemini", "anthropic"}, names(NewClient([]Provider{a, g}, WithPreferred("Gemini")).Providers()))
	assert.Equal(t, []string{"anthropic", "gemini"}, names(NewClient([]Provider{a, g}, WithPreferred("other")).Providers()))
}

func TestGenerateResponse_FallsThroughProviders(t *testing.T) {
	bad := newFake("anthropic", "", errors.New("rate limited"))
	good := newFake("gemini", "use a service layer", nil)
	c := NewClient([]Provider{bad, good})

	got, err := c.GenerateResponse(context.Background(), "where does auth go?")
	require.NoError(t, err)
	assert.Equal(t, "use a service layer", got)
	assert.Equal(t, 1, bad.calls)
	assert.Equal(t, 1, good.calls)

	usage := c.Usage()
	assert.Equal(t, 1, usage["gemini"].(map[string]interface{})["calls"])
	assert.Equal(t, 0, usage["anthropic"].(map[string]interface{})["calls"])
}

func TestGenerateResponse_Cached(t *testing.T) {
	pc, err := cache.New(t.TempDir(), time.Hour)
	require.NoError(t, err)
	p := newFake("gemini", "cached answer", nil)
	c := NewClient([]Provider{p}, WithCache(pc))

	for i := 0; i < 2; i++ {
		got, err := c.GenerateResponse(context.Background(), "explain the layout")
		require.NoError(t, err)
		assert.Equal(t, "cached answer", got)
	}
	assert.Equal(t, 1, p.calls)
}

func TestGenerateResponse_Fallback(t *testing.T) {
	c := NewClient([]Provider{newFake("gemini", "", errors.New("down"))})

	got, err := c.GenerateResponse(context.Background(), "How do I add a chart?")
	require.NoError(t, err)
	assert.Equal(t, visualizationGuidance, got)

	got, err = c.GenerateResponse(context.Background(), "What is this?")
	require.NoError(t, err)
	assert.Equal(t, unavailableGuidance, got)
}

func TestGenerateResponse_WithoutFallback(t *testing.T) {
	_, err := NewClient(nil, WithoutFallback()).GenerateResponse(context.Background(), "hi")
	assert.ErrorIs(t, err, ErrNoProviders)

	down := errors.New("down")
	_, err = NewClient([]Provider{newFake("gemini", "", down)}, WithoutFallback()).GenerateResponse(context.Background(), "hi")
	assert.ErrorIs(t, err, down)
}

func TestGenerateResponse_NoProvidersUsesFallback(t *testing.T) {
	got, err := NewClient(nil).GenerateResponse(context.Background(), "status?")
	require.NoError(t, err)
	assert.Equal(t, unavailableGuidance, got)
}

func TestAnalyzeRepository_ParsesJSON(t *testing.T) {
	reply := "Here you go:\n```json\n" + `{
  "components": ["api", "store"],
  "architecture_patterns": ["layered"],
  "tech_stack": {"languages": ["Go"]},
  "architecture_summary": "Two layers."
}` + "\n```"
	p := newFake("anthropic", reply, nil)
	c := NewClient([]Provider{p})

	data := models.RepositoryData{"main.go": {Type: "go", Content: "package main"}}
	got, err := c.AnalyzeRepository(context.Background(), data, "graph TD")
	require.NoError(t, err)

	assert.Equal(t, []interface{}{"api", "store"}, got["components"])
	assert.Equal(t, []interface{}{"layered"}, got["architecture_patterns"])
	assert.Equal(t, "Two layers.", got["architecture_summary"])
	assert.Equal(t, "anthropic", got["model_used"])
	require.Len(t, p.prompts, 1)
	assert.Contains(t, p.prompts[0], "- main.go (go)")
	assert.Contains(t, p.prompts[0], "graph TD")
}

func TestAnalyzeRepository_FreeText(t *testing.T) {
	c := NewClient([]Provider{newFake("gemini", "  A plain answer.  ", nil)})
	got, err := c.AnalyzeRepository(context.Background(), models.RepositoryData{}, "")
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{
		"architecture_summary": "A plain answer.",
		"model_used":           "gemini",
	}, got)
}

func TestAnalyzeRepository_Heuristic(t *testing.T) {
	data := models.RepositoryData{
		"main.go":           {Type: "go"},
		"web/app.tsx":       {Type: "tsx"},
		"package.json":      {Type: "json"},
		"deploy/Dockerfile": {Type: "unknown"},
	}
	c := NewClient([]Provider{newFake("gemini", "", errors.New("down"))})

	got, err := c.AnalyzeRepository(context.Background(), data, "graph TD")
	require.NoError(t, err)

	assert.Equal(t, FallbackModel, got["model_used"])
	assert.Equal(t, map[string]interface{}{
		"languages":  []string{"JavaScript/TypeScript", "Go"},
		"frameworks": []string{"Node.js project", "Containerized application"},
	}, got["tech_stack"])
	assert.Equal(t, []string{"deploy/Dockerfile", "main.go", "package.json", "web/app.tsx"}, got["components"])
	summary := got["architecture_summary"].(string)
	assert.Contains(t, summary, "Total files analyzed: 4")
	assert.Contains(t, summary, "This appears to be a Node.js project.")
	assert.Contains(t, summary, "```mermaid\ngraph TD\n```")
}

func TestAnalyzeRepository_CancelledSkipsFallback(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := NewClient([]Provider{newFake("gemini", "x", nil)})

	_, err := c.AnalyzeRepository(ctx, models.RepositoryData{}, "")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAnalysisPrompt_Limits(t *testing.T) {
	data := models.RepositoryData{}
	for i := 0; i < 60; i++ {
		data[fmt.Sprintf("f%02d.txt", i)] = models.FileInfo{Type: "txt", Content: "hello"}
	}
	data["big.txt"] = models.FileInfo{Type: "txt", Content: strings.Repeat("z", maxSnippetInput)}

	prompt := analysisPrompt(data, "")
	assert.Contains(t, prompt, "Total files: 61")
	assert.Contains(t, prompt, "... and 11 more files")
	assert.Equal(t, maxSnippets, strings.Count(prompt, "\n--- "))
	assert.NotContains(t, prompt, "zzzz")
	assert.NotContains(t, prompt, "Architecture diagram")
}

func TestAnalysisPrompt_SnippetKeepsRunesWhole(t *testing.T) {
	content := "a" + strings.Repeat("é", 600)
	data := models.RepositoryData{"notes.md": models.FileInfo{Type: "md", Content: content}}

	prompt := analysisPrompt(data, "")

	assert.True(t, utf8.ValidString(prompt))
	assert.Contains(t, prompt, "a"+strings.Repeat("é", 499)+"\n")
	assert.NotContains(t, prompt, strings.Repeat("é", 500))
}

func TestParseAnalysis_BareObject(t *testing.T) {
	got := parseAnalysis(`{"components": ["x"]}`)
	assert.Equal(t, []interface{}{"x"}, got["components"])
	assert.Equal(t, "", got["architecture_summary"])
}
