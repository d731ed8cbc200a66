// Package ingest reads a local repository into the RepositoryData form the
// analyzers consume, and detects its directory layout.
package ingest

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/jayasaisrikar/spoc-agent/pkg/models"
)

const (
	// DefaultMaxContent caps the bytes of content kept per file.
	DefaultMaxContent = 500000
	truncatedMarker   = "\n... (file truncated)"
)

// skipDirs are never descended into.
var skipDirs = map[string]bool{
	"node_modules": true, "__pycache__": true, "venv": true, "env": true,
	"dist": true, "build": true, "target": true, "bin": true, "obj": true,
	"vendor": true, "coverage": true, "bower_components": true,
}

// keptHiddenDirs are dot-directories that still hold analyzable files.
var keptHiddenDirs = map[string]bool{".github": true, ".vscode": true}

var includeExts = toSet(
	// code
	".py", ".js", ".ts", ".jsx", ".tsx", ".vue", ".svelte",
	".java", ".kt", ".kotlin", ".scala", ".groovy",
	".c", ".h", ".cpp", ".hpp", ".cc", ".cxx",
	".cs", ".fs", ".vb", ".go", ".rs", ".swift", ".dart",
	".php", ".rb", ".pl", ".pm", ".lua", ".r", ".jl",
	".sh", ".bash", ".zsh", ".fish", ".ps1", ".bat", ".cmd",
	// web
	".html", ".htm", ".xml", ".css", ".scss", ".sass", ".less",
	// data and schema
	".sql", ".graphql", ".gql", ".proto", ".prisma", ".csv",
	// config
	".json", ".yaml", ".yml", ".toml", ".ini", ".cfg", ".conf",
	".properties", ".env", ".tf",
	// docs
	".md", ".txt", ".rst", ".adoc",
	// build
	".gradle", ".mk", ".cmake", ".dockerfile",
)

var importantFiles = toSet(
	"readme", "license", "makefile", "dockerfile", "gemfile", "pipfile",
	"procfile", "jenkinsfile", "vagrantfile", "go.mod", "go.sum",
	".gitignore", ".gitattributes", ".dockerignore",
)

func toSet(items ...string) map[string]bool {
	m := make(map[string]bool, len(items))
	for _, it := range items {
		m[it] = true
	}
	return m
}

// Scanner walks a repository directory.
type Scanner struct {
	root       string
	maxContent int
}

// NewScanner creates a Scanner for root. maxContent <= 0 uses DefaultMaxContent.
func NewScanner(root string, maxContent int) *Scanner {
	if maxContent <= 0 {
		maxContent = DefaultMaxContent
	}
	return &Scanner{root: root, maxContent: maxContent}
}

// Scan reads every analyzable file under the root. Paths are slash
// separated and relative to the root. Unreadable files are skipped.
func (s *Scanner) Scan(ctx context.Context) (models.RepositoryData, error) {
	info, err := os.Stat(s.root)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", s.root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("scan %s: not a directory", s.root)
	}

	data := make(models.RepositoryData)
	err = filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		name := d.Name()
		if d.IsDir() {
			if path != s.root && skipDir(name) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || !Include(name) {
			return nil
		}

		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			return nil
		}
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil
		}
		content := string(raw)
		if len(content) > s.maxContent {
			content = models.TruncateUTF8(content, s.maxContent) + truncatedMarker
		}

		data[filepath.ToSlash(rel)] = models.FileInfo{
			Type:    FileType(name),
			Content: content,
			Size:    fi.Size(),
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", s.root, err)
	}
	return data, nil
}

func skipDir(name string) bool {
	if strings.HasPrefix(name, ".") && !keptHiddenDirs[name] {
		return true
	}
	return skipDirs[name]
}

// Include reports whether a file name is worth analyzing.
func Include(name string) bool {
	lower := strings.ToLower(name)
	if importantFiles[lower] || strings.HasPrefix(lower, ".env") {
		return true
	}
	for _, prefix := range []string{"readme", "license", "changelog", "requirements"} {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	if strings.Contains(lower, "dockerfile") || strings.Contains(lower, "makefile") {
		return true
	}
	return includeExts[strings.ToLower(filepath.Ext(lower))]
}

// FileType is the text after the last dot of name, or "unknown".
func FileType(name string) string {
	i := strings.LastIndex(name, ".")
	if i < 0 || i == len(name)-1 {
		return "unknown"
	}
	return name[i+1:]
}
