// Package redact scrubs secrets from backend output before it reaches
// logs, events, or persisted session history.
package redact

import (
	"fmt"
	"sort"
	"strings"

	"github.com/zricethezav/gitleaks/v8/detect"
)

// Finding is one detected secret.
type Finding struct {
	RuleID string
	Line   int
	Secret string
}

// Scrubber detects and masks secrets using the gitleaks default rule
// set. Build one per process, detector construction is not cheap.
type Scrubber struct {
	detector *detect.Detector
}

// NewScrubber builds a scrubber with the default gitleaks rules.
func NewScrubber() (*Scrubber, error) {
	d, err := detect.NewDetectorDefaultConfig()
	if err != nil {
		return nil, fmt.Errorf("creating secret detector: %w", err)
	}
	return &Scrubber{detector: d}, nil
}

// Detect scans text and reports any secrets found.
func (s *Scrubber) Detect(text string) []Finding {
	raw := s.detector.DetectString(text)
	out := make([]Finding, 0, len(raw))
	for _, f := range raw {
		out = append(out, Finding{RuleID: f.RuleID, Line: f.StartLine, Secret: f.Secret})
	}
	return out
}

// Scrub replaces every detected secret with a [REDACTED:rule-id]
// marker. Longer secrets are replaced first so overlapping matches
// cannot resurrect a partial secret.
func (s *Scrubber) Scrub(text string) (string, int) {
	findings := s.Detect(text)
	if len(findings) == 0 {
		return text, 0
	}
	sort.Slice(findings, func(i, j int) bool {
		return len(findings[i].Secret) > len(findings[j].Secret)
	})
	for _, f := range findings {
		if f.Secret == "" {
			continue
		}
		text = strings.ReplaceAll(text, f.Secret, "[REDACTED:"+f.RuleID+"]")
	}
	return text, len(findings)
}
