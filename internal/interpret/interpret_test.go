package interpret

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_NeverFails(t *testing.T) {
	for _, raw := range []string{"", "   ", "no structure at all", "\x00\xff garbage"} {
		out := Parse(raw)
		assert.NotNil(t, out)
	}
}

func TestParse_ExtractsFilesAndTools(t *testing.T) {
	raw := "Edited `internal/store/store.go` and main.go, then ran bash tests.\nError: build failed"
	out := Parse(raw)
	assert.Contains(t, out.Files, "internal/store/store.go")
	assert.Contains(t, out.Files, "main.go")
	assert.Contains(t, out.Tools, "bash")
	assert.Equal(t, "build failed", out.Err)
}

func TestIndicatesFailure(t *testing.T) {
	tests := []struct {
		name string
		text string
		want bool
	}{
		{"plain success", "All tests passed. Task complete.", false},
		{"negative plus error", "Error: the build failed with an exception", true},
		{"discusses error handling only", "Added robust handling for edge cases and validation.", false},
		{"failed without literal error", "The deploy failed to roll out", false},
		{"cannot with error word", "Cannot continue: error reading config", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IndicatesFailure(tt.text))
		})
	}
}

func TestParseAnalysis_HeadingPattern(t *testing.T) {
	raw := `Here is the plan.

### Work Item 1: Build the API
Description: Expose the HTTP endpoints.
Priority: 1
Effort: 4 hours
Acceptance Criteria:
- endpoints respond
- errors are mapped

### Work Item 2: Write tests
Priority: 2
Depends on: Build the API

Strategy:
Incremental delivery with review after each item.

Risks:
- backend flakiness
`
	a := ParseAnalysis(raw, "build an api")
	require.Len(t, a.Items, 2)
	assert.False(t, a.Fallback)

	first := a.Items[0]
	assert.Equal(t, "Build the API", first.Title)
	assert.Equal(t, 1, first.Priority)
	assert.Equal(t, 4.0, first.EstimatedEffort)
	assert.Equal(t, []string{"endpoints respond", "errors are mapped"}, first.AcceptanceCriteria)

	second := a.Items[1]
	assert.Equal(t, 2, second.Priority)
	assert.Equal(t, DefaultEffort, second.EstimatedEffort)
	assert.Equal(t, []string{"Build the API"}, second.Dependencies)

	assert.Contains(t, a.Strategy, "Incremental delivery")
	assert.Equal(t, []string{"backend flakiness"}, a.Risks)
}

func TestParseAnalysis_FallbackOnUnparseableOutput(t *testing.T) {
	a := ParseAnalysis("I could not really break this down, sorry.", "fix the login bug")
	require.True(t, a.Fallback)
	require.GreaterOrEqual(t, len(a.Items), 2)
	assert.Equal(t, "Implement Core Functionality", a.Items[0].Title)
	assert.Equal(t, "Testing and Validation", a.Items[1].Title)
}

func TestParseAnalysis_SingleItemStillFallsBack(t *testing.T) {
	raw := "### Work Item 1: Only one thing\nPriority: 1\n"
	a := ParseAnalysis(raw, "small request")
	assert.True(t, a.Fallback)
	assert.GreaterOrEqual(t, len(a.Items), 2)
}

func TestFallbackItems_Deterministic(t *testing.T) {
	a := FallbackItems("short request")
	b := FallbackItems("short request")
	assert.Equal(t, a, b)
	assert.Len(t, a, 2)

	long := FallbackItems(string(make([]byte, 0, 0)) + stringOfLen(250))
	assert.Len(t, long, 3)
	assert.Equal(t, "Documentation", long[2].Title)
}

func TestFallbackItems_MultibyteRequestStaysValid(t *testing.T) {
	req := strings.Repeat("ß", 200)
	items := FallbackItems(req)
	require.NotEmpty(t, items)
	desc := items[0].Description
	assert.True(t, utf8.ValidString(desc))
	assert.Contains(t, desc, strings.Repeat("ß", 120)+"...")
}

func stringOfLen(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = 'x'
	}
	return string(b)
}

func TestParseReview_ExplicitBlock(t *testing.T) {
	raw := `Review complete.
Approved: true
QualityScore: 0.95
Feedback:
- clean structure
Recommendations:
- add a benchmark
`
	r := ParseReview(raw)
	require.True(t, r.Found)
	assert.True(t, r.Approved)
	assert.InDelta(t, 0.95, r.QualityScore, 1e-9)
	assert.Equal(t, []string{"clean structure"}, r.Feedback)
	assert.Equal(t, []string{"add a benchmark"}, r.Recommendations)
}

func TestParseReview_AbsentBlock(t *testing.T) {
	r := ParseReview("Looks generally fine to me.")
	assert.False(t, r.Found)
}

func TestParseReview_OutOfRangeScoreIgnored(t *testing.T) {
	r := ParseReview("qualityScore: 7.5")
	assert.False(t, r.Found)
	assert.Zero(t, r.QualityScore)
}

func TestParseProgress(t *testing.T) {
	raw := `Completed:
- wrote the parser

Next Steps:
- wire into coordinator

Blockers:
- waiting on review

Confidence: 0.8`
	p := ParseProgress(raw)
	assert.Equal(t, []string{"wrote the parser"}, p.Completed)
	assert.Equal(t, []string{"wire into coordinator"}, p.NextSteps)
	assert.Equal(t, []string{"waiting on review"}, p.Blockers)
	assert.InDelta(t, 0.8, p.Confidence, 1e-9)
}

func TestConfidence_Default(t *testing.T) {
	assert.Equal(t, 0.5, Confidence("no number here", 0.5))
	assert.Equal(t, 0.5, Confidence("confidence: 3.0", 0.5))
}

func TestParseSuggestions(t *testing.T) {
	raw := "Some thoughts:\n- split the module\n* add logging\n1. retry on timeout"
	got := ParseSuggestions(raw)
	assert.Equal(t, []string{"split the module", "add logging", "retry on timeout"}, got)
}
