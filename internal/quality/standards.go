// Package quality scores Worker output and decides approval.
package quality

import (
	"fmt"
	"sync"
)

// Standard names the five runtime-adjustable quality thresholds.
type Standard string

const (
	StandardCodeReview    Standard = "code_review"
	StandardTesting       Standard = "testing"
	StandardDocumentation Standard = "documentation"
	StandardSecurity      Standard = "security"
	StandardPerformance   Standard = "performance"
)

// AllStandards returns the five named standards.
func AllStandards() []Standard {
	return []Standard{
		StandardCodeReview,
		StandardTesting,
		StandardDocumentation,
		StandardSecurity,
		StandardPerformance,
	}
}

// Standards holds the named thresholds. Values live in [0,1] and may be
// adjusted at runtime (config hot reload), so access is lock-guarded.
type Standards struct {
	mu     sync.RWMutex
	values map[Standard]float64
}

// DefaultStandards returns the standard set with default thresholds.
func DefaultStandards() *Standards {
	return &Standards{
		values: map[Standard]float64{
			StandardCodeReview:    0.7,
			StandardTesting:       0.8,
			StandardDocumentation: 0.6,
			StandardSecurity:      0.9,
			StandardPerformance:   0.7,
		},
	}
}

// Get returns the threshold for a standard, zero if unknown.
func (s *Standards) Get(name Standard) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.values[name]
}

// Set adjusts a threshold. Values outside [0,1] are rejected.
func (s *Standards) Set(name Standard, value float64) error {
	if value < 0 || value > 1 {
		return fmt.Errorf("threshold for %s must be in [0,1], got %v", name, value)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[name] = value
	return nil
}

// Snapshot returns a copy of all thresholds.
func (s *Standards) Snapshot() map[Standard]float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[Standard]float64, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}
