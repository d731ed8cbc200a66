package ingest

import (
	"path"
	"sort"
	"strings"

	"github.com/jayasaisrikar/spoc-agent/pkg/models"
)

// maxExamples caps the example files listed per rule.
const maxExamples = 3

// DirectoryRule describes what lives in one directory.
type DirectoryRule struct {
	// Directory is slash separated; "" is the root.
	Directory string `json:"directory" yaml:"directory"`
	// Pattern is the glob of the directory's dominant file kind (e.g. "internal/store/*.go").
	Pattern string `json:"pattern" yaml:"pattern"`
	// Description is a human-readable name for the directory.
	Description string `json:"description" yaml:"description"`
	// Examples are concrete files matching Pattern.
	Examples []string `json:"examples" yaml:"examples"`
}

// DetectLayout finds directories holding at least two code files and
// describes each by its most common extension. Rules are ordered by directory.
func DetectLayout(data models.RepositoryData) []DirectoryRule {
	dirFiles := make(map[string][]string)
	for _, p := range data.Paths() {
		if !isCodeFile(p) {
			continue
		}
		dir := path.Dir(p)
		if dir == "." {
			dir = ""
		}
		dirFiles[dir] = append(dirFiles[dir], p)
	}

	var rules []DirectoryRule
	for dir, files := range dirFiles {
		if len(files) < 2 {
			continue
		}
		ext := commonExtension(files)

		var examples []string
		for _, f := range files {
			if path.Ext(f) == ext {
				examples = append(examples, f)
			}
			if len(examples) == maxExamples {
				break
			}
		}

		rules = append(rules, DirectoryRule{
			Directory:   dir,
			Pattern:     path.Join(dir, "*"+ext),
			Description: describeDirectory(dir),
			Examples:    examples,
		})
	}
	sort.Slice(rules, func(i, j int) bool { return rules[i].Directory < rules[j].Directory })
	return rules
}

var codeExts = toSet(
	".go", ".js", ".ts", ".jsx", ".tsx", ".py", ".rb", ".java",
	".c", ".cpp", ".h", ".hpp", ".rs", ".php", ".swift", ".kt",
)

func isCodeFile(p string) bool {
	return codeExts[strings.ToLower(path.Ext(p))]
}

// commonExtension returns the most frequent extension; ties go to the
// lexically smallest.
func commonExtension(files []string) string {
	counts := make(map[string]int)
	for _, f := range files {
		counts[path.Ext(f)]++
	}
	best, bestCount := "", 0
	for ext, n := range counts {
		if n > bestCount || (n == bestCount && ext < best) {
			best, bestCount = ext, n
		}
	}
	return best
}

func describeDirectory(dir string) string {
	if dir == "" {
		return "Root directory files"
	}
	last := path.Base(dir)
	return strings.ToUpper(last[:1]) + last[1:] + " files"
}
