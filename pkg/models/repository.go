package models

import (
	"sort"
	"time"
)

// FileInfo describes one file of an ingested repository.
type FileInfo struct {
	// Type is the file extension without the dot, or "unknown".
	Type string `json:"type"`
	// Content is the text content, possibly truncated.
	Content string `json:"content,omitempty"`
	// Size is the on-disk size in bytes.
	Size int64 `json:"size,omitempty"`
}

// RepositoryData maps repository-relative paths to file information.
type RepositoryData map[string]FileInfo

// Paths returns the file paths in lexical order.
func (d RepositoryData) Paths() []string {
	paths := make([]string, 0, len(d))
	for p := range d {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// RepositorySummary is one row of the knowledge store's repository listing.
type RepositorySummary struct {
	Name       string    `json:"name"`
	AnalyzedAt time.Time `json:"analyzed_at"`
}

// RepositoryKnowledge is everything the knowledge store holds about a repository.
type RepositoryKnowledge struct {
	// FileStructure lists file paths.
	FileStructure []string `json:"file_structure"`
	// FileContents is the ingested repository data.
	FileContents RepositoryData `json:"file_contents"`
	// Analysis is the stored AI analysis (components, tech_stack, ...).
	Analysis map[string]interface{} `json:"analysis"`
	// MermaidDiagram is the cached architecture diagram.
	MermaidDiagram string `json:"mermaid_diagram"`
}

// Empty reports whether the store had nothing for the repository.
func (k *RepositoryKnowledge) Empty() bool {
	return k == nil || (len(k.FileStructure) == 0 && len(k.FileContents) == 0 &&
		len(k.Analysis) == 0 && k.MermaidDiagram == "")
}

// OrganizationPatterns aggregates frequency counts across stored repositories.
type OrganizationPatterns struct {
	Languages          map[string]int `json:"languages"`
	Frameworks         map[string]int `json:"frameworks"`
	FilePatterns       map[string]int `json:"file_patterns"`
	ArchitectureTypes  map[string]int `json:"architecture_types"`
	CommonDependencies map[string]int `json:"common_dependencies"`
}

// NewOrganizationPatterns returns patterns with all maps allocated.
func NewOrganizationPatterns() *OrganizationPatterns {
	return &OrganizationPatterns{
		Languages:          make(map[string]int),
		Frameworks:         make(map[string]int),
		FilePatterns:       make(map[string]int),
		ArchitectureTypes:  make(map[string]int),
		CommonDependencies: make(map[string]int),
	}
}
