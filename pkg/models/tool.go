package models

import "time"

// ToolConfig describes a capability the executor can dispatch tasks to,
// together with its rolling performance metrics.
type ToolConfig struct {
	// Name uniquely identifies the tool.
	Name string `json:"name" yaml:"name"`
	// Confidence is the static quality rating in [0,1].
	Confidence float64 `json:"confidence" yaml:"confidence"`
	// Speed is the static speed rating in [0,1].
	Speed float64 `json:"speed" yaml:"speed"`
	// Domains are tags matched against a task type's required domains.
	Domains []string `json:"domains" yaml:"domains"`
	// Available marks the tool as selectable.
	Available bool `json:"available" yaml:"available"`
	// SuccessRate is the exponential moving average of attempt outcomes.
	SuccessRate float64 `json:"success_rate" yaml:"-"`
	// AvgExecutionTime is the exponential moving average of attempt durations.
	AvgExecutionTime time.Duration `json:"avg_execution_time" yaml:"-"`
	// UsageCount counts recorded attempts.
	UsageCount int `json:"usage_count" yaml:"-"`
	// LastUsed is when the tool last recorded an attempt.
	LastUsed *time.Time `json:"last_used,omitempty" yaml:"-"`
}

// HasDomain reports whether the tool is tagged with domain.
func (c ToolConfig) HasDomain(domain string) bool {
	for _, d := range c.Domains {
		if d == domain {
			return true
		}
	}
	return false
}
