// Package interpret turns raw backend text into structured results.
//
// The execution backend returns free-form prose; nothing about its shape is
// guaranteed. Every function here is total: malformed input degrades to
// defaults or deterministic fallbacks, never to an error. All keyword and
// pattern heuristics the engine relies on live in this package so the
// brittle parts stay swappable and independently testable.
package interpret

import (
	"regexp"
	"strconv"
	"strings"
)

// Output is the always-usable result of parsing raw backend text.
type Output struct {
	Result string   // the raw text, trimmed
	Err    string   // extracted error line, if the text carries one
	Files  []string // file paths mentioned in the text
	Tools  []string // known tool names mentioned in the text
}

var (
	errorLineRe = regexp.MustCompile(`(?mi)^\s*(?:error|fatal)[:\s]+(.+)$`)
	filePathRe  = regexp.MustCompile("`?([\\w./-]+\\.(?:go|ts|js|py|rs|java|rb|md|json|yaml|yml|toml|sh|sql|css|html))`?")

	knownTools = []string{"bash", "edit", "write", "read", "grep", "glob", "test", "lint"}
)

// Parse extracts structured fields from raw backend output. It never fails;
// an empty input yields an empty but usable Output.
func Parse(raw string) Output {
	out := Output{Result: strings.TrimSpace(raw)}

	if m := errorLineRe.FindStringSubmatch(raw); m != nil {
		out.Err = strings.TrimSpace(m[1])
	}

	seen := map[string]bool{}
	for _, m := range filePathRe.FindAllStringSubmatch(raw, -1) {
		path := m[1]
		if !seen[path] {
			seen[path] = true
			out.Files = append(out.Files, path)
		}
	}

	lower := strings.ToLower(raw)
	for _, tool := range knownTools {
		if strings.Contains(lower, tool) {
			out.Tools = append(out.Tools, tool)
		}
	}

	return out
}

// negativeKeywords flag failure language in backend output. A text only
// counts as a failure when one of these appears together with the literal
// word "error"; discussing error handling alone does not fail a task.
var negativeKeywords = []string{"error", "failed", "exception", "cannot", "unable", "not found"}

var literalErrorRe = regexp.MustCompile(`(?i)\berror\b`)

// IndicatesFailure reports whether the text reads as a failed execution.
func IndicatesFailure(text string) bool {
	lower := strings.ToLower(text)
	hasNegative := false
	for _, kw := range negativeKeywords {
		if strings.Contains(lower, kw) {
			hasNegative = true
			break
		}
	}
	return hasNegative && literalErrorRe.MatchString(text)
}

// Confidence parses a confidence value in [0,1] from text, defaulting when
// absent or out of range.
func Confidence(text string, def float64) float64 {
	m := regexp.MustCompile(`(?i)confidence[:\s]+([0-9.]+)`).FindStringSubmatch(text)
	if m == nil {
		return def
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil || v < 0 || v > 1 {
		return def
	}
	return v
}

// bulletRe matches one list item in any of the common bullet styles.
var bulletRe = regexp.MustCompile(`(?m)^\s*(?:[-*•]|\d+[.)])\s+(.+)$`)

// Bullets returns the items of every bulleted or numbered list in the text.
func Bullets(text string) []string {
	var items []string
	for _, m := range bulletRe.FindAllStringSubmatch(text, -1) {
		item := strings.TrimSpace(m[1])
		if item != "" {
			items = append(items, item)
		}
	}
	return items
}

// Section returns the lines following a heading that contains the given
// label (case-insensitive), up to the next heading or blank-line gap.
func Section(text, label string) string {
	lines := strings.Split(text, "\n")
	lowerLabel := strings.ToLower(label)
	start := -1
	for i, line := range lines {
		clean := strings.ToLower(strings.Trim(line, "#*: \t"))
		if strings.Contains(clean, lowerLabel) && len(clean) < len(lowerLabel)+20 {
			start = i + 1
			break
		}
	}
	if start < 0 {
		return ""
	}
	var out []string
	for _, line := range lines[start:] {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "#") || labelLineRe.MatchString(trimmed) {
			break
		}
		if trimmed == "" && len(out) > 0 {
			break
		}
		if trimmed != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}

// labelLineRe matches a bare "Label:" line that starts the next section.
var labelLineRe = regexp.MustCompile(`^[A-Za-z][A-Za-z _-]{0,30}:$`)
