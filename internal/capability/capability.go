// Package capability declares the collaborators the orchestrator consumes.
// Production implementations live in internal/api, internal/knowledge and
// internal/diagram; tests supply deterministic fakes behind the same interfaces.
package capability

import (
	"context"

	"github.com/jayasaisrikar/spoc-agent/pkg/models"
)

// AIClient is the language-model capability. Any call may fail; callers
// convert failures into degraded results rather than propagating them.
type AIClient interface {
	// AnalyzeRepository returns components, architecture_patterns, tech_stack
	// and an architecture summary for the repository.
	AnalyzeRepository(ctx context.Context, data models.RepositoryData, diagram string) (map[string]interface{}, error)
	// GenerateResponse answers a free-form prompt.
	GenerateResponse(ctx context.Context, prompt string) (string, error)
}

// KnowledgeStore is the read-only view of stored repository knowledge.
type KnowledgeStore interface {
	ListRepositories(ctx context.Context) ([]models.RepositorySummary, error)
	// GetRepositoryKnowledge returns an empty value, not an error, for unknown repositories.
	GetRepositoryKnowledge(ctx context.Context, name string) (*models.RepositoryKnowledge, error)
	GetOrganizationPatterns(ctx context.Context) (*models.OrganizationPatterns, error)
}

// DiagramGenerator renders architecture diagrams as mermaid text.
type DiagramGenerator interface {
	Generate(ctx context.Context, data models.RepositoryData) (string, error)
	// Optimize compacts whitespace and drops blank lines.
	Optimize(mermaid string) string
}
