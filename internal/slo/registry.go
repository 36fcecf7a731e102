// Package slo evaluates service level objectives against collected
// pipeline statistics and tracks violation history.
package slo

import (
	"fmt"

	"github.com/quantpipe/pipeline-monitor/internal/models"
)

// Registry holds a validated, immutable set of SLO definitions.
type Registry struct {
	defs []models.SLODefinition
}

// NewRegistry validates every definition and rejects duplicate names.
func NewRegistry(defs []models.SLODefinition) (*Registry, error) {
	seen := make(map[string]struct{}, len(defs))
	for _, def := range defs {
		if err := def.Validate(); err != nil {
			return nil, err
		}
		if _, dup := seen[def.Name]; dup {
			return nil, fmt.Errorf("duplicate slo name %q", def.Name)
		}
		seen[def.Name] = struct{}{}
	}

	out := make([]models.SLODefinition, len(defs))
	copy(out, defs)
	return &Registry{defs: out}, nil
}

// Definitions returns a copy of the registered definitions in registration
// order.
func (r *Registry) Definitions() []models.SLODefinition {
	out := make([]models.SLODefinition, len(r.defs))
	copy(out, r.defs)
	return out
}

// Len reports how many SLOs are registered.
func (r *Registry) Len() int {
	return len(r.defs)
}
