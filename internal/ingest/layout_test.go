package ingest

import (
	"reflect"
	"testing"

	"github.com/jayasaisrikar/spoc-agent/pkg/models"
)

func TestDetectLayout(t *testing.T) {
	data := models.RepositoryData{
		"main.go":                 {},
		"root.go":                 {},
		"internal/store/db.go":    {},
		"internal/store/query.go": {},
		"internal/store/a.go":     {},
		"internal/store/b.go":     {},
		"internal/store/c.sql":    {},
		"web/app.ts":              {},
		"web/util.ts":             {},
		"web/view.tsx":            {},
		"lonely/one.py":           {},
		"docs/a.md":               {},
		"docs/b.md":               {},
	}

	got := DetectLayout(data)
	want := []DirectoryRule{
		{Directory: "", Pattern: "*.go", Description: "Root directory files", Examples: []string{"main.go", "root.go"}},
		{Directory: "internal/store", Pattern: "internal/store/*.go", Description: "Store files", Examples: []string{"internal/store/a.go", "internal/store/b.go", "internal/store/db.go"}},
		{Directory: "web", Pattern: "web/*.ts", Description: "Web files", Examples: []string{"web/app.ts", "web/util.ts"}},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("DetectLayout mismatch\ngot:  %+v\nwant: %+v", got, want)
	}
}

func TestCommonExtension_Tie(t *testing.T) {
	if got := commonExtension([]string{"a.ts", "b.js"}); got != ".js" {
		t.Errorf("tie should pick lexically smallest, got %q", got)
	}
}
