package tools

import (
	"fmt"
	"os"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/jayasaisrikar/spoc-agent/pkg/models"
)

// DefaultCatalog returns the built-in tools in registration order.
func DefaultCatalog() []models.ToolConfig {
	return []models.ToolConfig{
		{Name: "structure_analyzer", Confidence: 0.9, Speed: 0.8, Domains: []string{"files", "architecture"}, Available: true},
		{Name: "pattern_extractor", Confidence: 0.8, Speed: 0.6, Domains: []string{"patterns", "design"}, Available: true},
		{Name: "diagram_generator", Confidence: 0.7, Speed: 0.5, Domains: []string{"visualization", "architecture"}, Available: true},
		{Name: "cross_repo_analyzer", Confidence: 0.8, Speed: 0.4, Domains: []string{"organization", "patterns"}, Available: true},
		{Name: "tech_stack_mapper", Confidence: 0.9, Speed: 0.7, Domains: []string{"technology", "dependencies"}, Available: true},
		{Name: "team_advisor", Confidence: 0.6, Speed: 0.9, Domains: []string{"recommendations", "team"}, Available: true},
		{Name: "memory_searcher", Confidence: 0.8, Speed: 0.9, Domains: []string{"context", "history"}, Available: true},
		{Name: "validator", Confidence: 0.9, Speed: 0.8, Domains: []string{"quality", "validation"}, Available: true},
	}
}

// catalogFile is the on-disk layout of a tool catalog.
type catalogFile struct {
	DefaultTool string `yaml:"default_tool"`
	Tools       []struct {
		Name       string   `yaml:"name"`
		Confidence float64  `yaml:"confidence"`
		Speed      float64  `yaml:"speed"`
		Domains    []string `yaml:"domains"`
		Available  *bool    `yaml:"available"`
		// AvgExecutionTime seeds the moving average, e.g. "5m".
		AvgExecutionTime string `yaml:"avg_execution_time"`
	} `yaml:"tools"`
}

// Catalog is a parsed catalog file.
type Catalog struct {
	DefaultTool string
	Tools       []models.ToolConfig
}

// ParseCatalog decodes a YAML tool catalog. Tools default to available.
func ParseCatalog(data []byte) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse tool catalog: %w", err)
	}

	cat := &Catalog{DefaultTool: file.DefaultTool}
	for i, t := range file.Tools {
		if t.Name == "" {
			return nil, fmt.Errorf("tool catalog entry %d: missing name", i)
		}
		if t.Confidence < 0 || t.Confidence > 1 || t.Speed < 0 || t.Speed > 1 {
			return nil, fmt.Errorf("tool %s: confidence and speed must be within [0,1]", t.Name)
		}
		cfg := models.ToolConfig{
			Name:       t.Name,
			Confidence: t.Confidence,
			Speed:      t.Speed,
			Domains:    t.Domains,
			Available:  t.Available == nil || *t.Available,
		}
		if t.AvgExecutionTime != "" {
			d, err := time.ParseDuration(t.AvgExecutionTime)
			if err != nil {
				return nil, fmt.Errorf("tool %s: %w", t.Name, err)
			}
			cfg.AvgExecutionTime = d
		}
		cat.Tools = append(cat.Tools, cfg)
	}
	return cat, nil
}

// LoadCatalog reads a catalog file and registers its tools into r,
// overriding built-in entries with the same name.
func LoadCatalog(r *Registry, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read tool catalog: %w", err)
	}
	cat, err := ParseCatalog(data)
	if err != nil {
		return err
	}
	for _, cfg := range cat.Tools {
		r.Register(cfg)
	}
	if cat.DefaultTool != "" {
		r.SetDefaultTool(cat.DefaultTool)
	}
	return nil
}
