package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/harnesslab/harness/internal/types"
)

// Definitions is the on-disk format for declaring SLOs and invariants,
// applied with `harness monitor apply`.
type Definitions struct {
	SLOs       []SLODefinition       `yaml:"slos"`
	Invariants []InvariantDefinition `yaml:"invariants"`
}

type SLODefinition struct {
	Name        string  `yaml:"name"`
	Description string  `yaml:"description"`
	Target      float64 `yaml:"target"`
	WindowDays  int     `yaml:"window_days"`
	MetricQuery string  `yaml:"metric_query"`
	FastBurn    float64 `yaml:"fast_burn"`
	SlowBurn    float64 `yaml:"slow_burn"`
	Enabled     *bool   `yaml:"enabled"`
}

type InvariantDefinition struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Query       string `yaml:"query"`
	Condition   string `yaml:"condition"`
	Enabled     *bool  `yaml:"enabled"`
}

// LoadDefinitions parses an SLO/invariant definitions file.
func LoadDefinitions(path string) (*Definitions, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read definitions %s: %w", path, err)
	}

	var defs Definitions
	if err := yaml.Unmarshal(data, &defs); err != nil {
		return nil, fmt.Errorf("failed to parse definitions %s: %w", path, err)
	}
	return &defs, nil
}

// SLO converts a definition to its storage form. Enabled defaults to true
// when omitted.
func (d SLODefinition) SLO() *types.SLO {
	return &types.SLO{
		Name:        d.Name,
		Description: d.Description,
		Target:      d.Target,
		WindowDays:  d.WindowDays,
		MetricQuery: d.MetricQuery,
		FastBurn:    d.FastBurn,
		SlowBurn:    d.SlowBurn,
		Enabled:     d.Enabled == nil || *d.Enabled,
	}
}

// Invariant converts a definition to its storage form.
func (d InvariantDefinition) Invariant() *types.Invariant {
	return &types.Invariant{
		Name:        d.Name,
		Description: d.Description,
		Query:       d.Query,
		Condition:   d.Condition,
		Enabled:     d.Enabled == nil || *d.Enabled,
	}
}
