package ingest

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestScan(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"main.go":                  "package main",
		"go.mod":                   "module demo",
		"Dockerfile":               "FROM scratch",
		"README.md":                "# demo",
		".env.example":             "KEY=",
		"internal/store/store.go":  "package store",
		"image.png":                "\x89PNG",
		"node_modules/x/index.js":  "ignored",
		".git/config":              "ignored",
		".github/workflows/ci.yml": "on: push",
		"web/dist/bundle.js":       "ignored",
		"docs/notes.unknownext":    "ignored",
	})

	data, err := NewScanner(root, 0).Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	want := []string{
		".env.example",
		".github/workflows/ci.yml",
		"Dockerfile",
		"README.md",
		"go.mod",
		"internal/store/store.go",
		"main.go",
	}
	if got := data.Paths(); !reflect.DeepEqual(got, want) {
		t.Errorf("paths = %v, want %v", got, want)
	}

	main := data["main.go"]
	if main.Type != "go" || main.Content != "package main" || main.Size != int64(len("package main")) {
		t.Errorf("main.go = %+v", main)
	}
	if data["Dockerfile"].Type != "unknown" {
		t.Errorf("Dockerfile type = %q", data["Dockerfile"].Type)
	}
}

func TestScan_TruncatesContent(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"big.txt": strings.Repeat("a", 100)})

	data, err := NewScanner(root, 10).Scan(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	got := data["big.txt"]
	if got.Content != strings.Repeat("a", 10)+truncatedMarker {
		t.Errorf("content = %q", got.Content)
	}
	if got.Size != 100 {
		t.Errorf("size = %d, want on-disk size 100", got.Size)
	}
}

func TestScan_TruncatesOnRuneBoundary(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"notes.md": "a" + strings.Repeat("é", 10)})

	data, err := NewScanner(root, 4).Scan(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if got, want := data["notes.md"].Content, "aé"+truncatedMarker; got != want {
		t.Errorf("content = %q, want %q", got, want)
	}
}

func TestScan_Errors(t *testing.T) {
	if _, err := NewScanner(filepath.Join(t.TempDir(), "missing"), 0).Scan(context.Background()); err == nil {
		t.Error("expected error for missing root")
	}

	file := filepath.Join(t.TempDir(), "f.go")
	writeFiles(t, filepath.Dir(file), map[string]string{"f.go": "x"})
	if _, err := NewScanner(file, 0).Scan(context.Background()); err == nil {
		t.Error("expected error for file root")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewScanner(t.TempDir(), 0).Scan(ctx); err == nil {
		t.Error("expected error for cancelled context")
	}
}

func TestInclude(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"main.go", true},
		{"App.TSX", true},
		{"requirements-dev.txt", true},
		{"Makefile", true},
		{"prod.Dockerfile", true},
		{"LICENSE", true},
		{".env.local", true},
		{"photo.jpg", false},
		{"binary", false},
	}
	for _, tt := range tests {
		if got := Include(tt.name); got != tt.want {
			t.Errorf("Include(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestFileType(t *testing.T) {
	tests := map[string]string{
		"main.go":      "go",
		"app.test.ts":  "ts",
		"Makefile":     "unknown",
		"trailingdot.": "unknown",
		".gitignore":   "gitignore",
	}
	for name, want := range tests {
		if got := FileType(name); got != want {
			t.Errorf("FileType(%q) = %q, want %q", name, got, want)
		}
	}
}
