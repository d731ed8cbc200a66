package knowledge

import (
	"context"
	"strings"

	"github.com/jayasaisrikar/spoc-agent/pkg/models"
)

// GetOrganizationPatterns aggregates frequency counts over all stored
// repositories: file extensions, tech_stack languages and frameworks,
// architecture_patterns and declared dependencies.
func (s *Store) GetOrganizationPatterns(ctx context.Context) (*models.OrganizationPatterns, error) {
	all, err := s.GetAllRepositoriesKnowledge(ctx)
	if err != nil {
		return nil, err
	}

	p := models.NewOrganizationPatterns()
	for _, kn := range all {
		for _, file := range kn.FileStructure {
			p.FilePatterns[extension(file)]++
		}

		analysis := models.Result(kn.Analysis)
		tech := models.Result(analysis.Map("tech_stack"))
		for _, lang := range tech.Strings("languages") {
			p.Languages[lang]++
		}
		for _, fw := range tech.Strings("frameworks") {
			p.Frameworks[fw]++
		}
		for _, arch := range analysis.Strings("architecture_patterns") {
			p.ArchitectureTypes[arch]++
		}
		for _, dep := range analysis.Strings("dependencies") {
			p.CommonDependencies[dep]++
		}
	}
	return p, nil
}

// extension returns the text after the last dot of a path, or "no_ext".
func extension(path string) string {
	i := strings.LastIndex(path, ".")
	if i < 0 {
		return "no_ext"
	}
	return path[i+1:]
}
