// Package diagram renders repository layouts as mermaid flowcharts.
package diagram

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/jayasaisrikar/spoc-agent/pkg/models"
)

const (
	// DefaultFilesPerType caps the file nodes drawn under each type node.
	DefaultFilesPerType = 3
	maxLabelLen         = 30
)

// Generator builds a "graph TD" diagram with one node per file type, a few
// sample files under each, and a chain linking the type nodes.
// It implements capability.DiagramGenerator.
type Generator struct {
	filesPerType int
}

// NewGenerator creates a Generator. filesPerType <= 0 uses DefaultFilesPerType.
func NewGenerator(filesPerType int) *Generator {
	if filesPerType <= 0 {
		filesPerType = DefaultFilesPerType
	}
	return &Generator{filesPerType: filesPerType}
}

// Generate renders data. Types and files are emitted in lexical order so
// equal inputs give identical diagrams.
func (g *Generator) Generate(ctx context.Context, data models.RepositoryData) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	byType := make(map[string][]string)
	for _, p := range data.Paths() {
		t := data[p].Type
		if t == "" {
			t = "unknown"
		}
		byType[t] = append(byType[t], p)
	}
	types := make([]string, 0, len(byType))
	for t := range byType {
		types = append(types, t)
	}
	sort.Strings(types)

	var b strings.Builder
	b.WriteString("graph TD\n")
	for _, t := range types {
		typeNode := nodeID(t) + "_files"
		fmt.Fprintf(&b, "    %s[%s Files]\n", typeNode, strings.ToUpper(t))

		files := byType[t]
		if len(files) > g.filesPerType {
			files = files[:g.filesPerType]
		}
		for i, f := range files {
			fileNode := fmt.Sprintf("file_%d_%s", i, nodeID(t))
			fmt.Fprintf(&b, "    %s[%s]\n", fileNode, label(f))
			fmt.Fprintf(&b, "    %s --> %s\n", typeNode, fileNode)
		}
	}
	for i := 0; i+1 < len(types); i++ {
		fmt.Fprintf(&b, "    %s_files --> %s_files\n", nodeID(types[i]), nodeID(types[i+1]))
	}
	return b.String(), nil
}

// Optimize trims every line and drops blank ones.
func (g *Generator) Optimize(mermaid string) string {
	var lines []string
	for _, line := range strings.Split(mermaid, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}

// nodeID maps a file type to a mermaid-safe identifier.
func nodeID(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			return r
		default:
			return '_'
		}
	}, s)
}

// label shortens long paths from the left and strips characters mermaid
// treats as node syntax.
func label(path string) string {
	if len(path) > maxLabelLen {
		path = "..." + path[len(path)-(maxLabelLen-3):]
	}
	return strings.NewReplacer("[", "(", "]", ")", "\"", "'").Replace(path)
}
