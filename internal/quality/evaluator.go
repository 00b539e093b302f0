package quality

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/fyrsmithlabs/crewd/internal/interpret"
)

// Sub-score weights. Functionality dominates because a broken feature
// fails review regardless of how clean the code is.
const (
	weightFunctionality = 0.4
	weightCodeQuality   = 0.3
	weightErrorHandling = 0.2
	weightSecurity      = 0.1

	// approvalScore and approvalFunctionality are the approval floor:
	// weighted score at or above 0.7 and functionality at or above 0.6.
	approvalScore         = 0.7
	approvalFunctionality = 0.6

	// explicitDivergence is the widest gap tolerated between a
	// self-reported score and the computed one before the computed
	// score wins.
	explicitDivergence = 0.2

	positiveStep = 0.05
	negativeStep = 0.10
)

// aspect is one scored dimension of review text.
type aspect struct {
	name     string
	base     float64
	positive []*regexp.Regexp
	negative []*regexp.Regexp
}

func keywords(words ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(words))
	for _, w := range words {
		out = append(out, regexp.MustCompile(`(?i)\b`+w+`\b`))
	}
	return out
}

var aspects = []aspect{
	{
		name: "functionality",
		base: 0.7,
		positive: keywords(
			"works", "working", "passes", "passing", "complete", "completed",
			"successful", "successfully", "implemented", "functional",
		),
		negative: keywords(
			"broken", "fails", "failing", "crash", "crashes", "incomplete",
			"missing", "regression",
		),
	},
	{
		name: "code_quality",
		base: 0.7,
		positive: keywords(
			"clean", "readable", "documented", "structured", "maintainable",
			"idiomatic", "tested",
		),
		negative: keywords(
			"hacky", "hack", "messy", "duplicated", "duplication",
			"unreadable", "spaghetti", "workaround",
		),
	},
	{
		name: "error_handling",
		base: 0.6,
		positive: keywords(
			"handles? errors?", "error handling", "validates?", "validation",
			"recovers?", "retry", "retries", "graceful", "gracefully",
		),
		negative: keywords(
			"unhandled", "ignores? errors?", "swallows? errors?", "panics?",
			"silent failure",
		),
	},
	{
		name: "security",
		base: 0.8,
		positive: keywords(
			"sanitized?", "sanitizes", "escaped?", "encrypted?", "authenticated?",
			"authorization", "input validation", "least privilege",
		),
		negative: keywords(
			"injection", "hardcoded", "plaintext password", "exposed secret",
			"insecure", "vulnerable", "vulnerability",
		),
	},
}

// Breakdown carries the per-aspect sub-scores behind a weighted score.
type Breakdown struct {
	Functionality float64 `json:"functionality"`
	CodeQuality   float64 `json:"code_quality"`
	ErrorHandling float64 `json:"error_handling"`
	Security      float64 `json:"security"`
}

// Assessment is the outcome of evaluating review text.
type Assessment struct {
	Approved        bool      `json:"approved"`
	Score           float64   `json:"score"`
	Breakdown       Breakdown `json:"breakdown"`
	Feedback        []string  `json:"feedback,omitempty"`
	Recommendations []string  `json:"recommendations,omitempty"`
	Notes           []string  `json:"notes,omitempty"`
}

// Evaluator turns free-form review text into an approval decision.
type Evaluator struct {
	standards *Standards
}

// NewEvaluator builds an evaluator against the given standards. A nil
// standards set falls back to defaults.
func NewEvaluator(standards *Standards) *Evaluator {
	if standards == nil {
		standards = DefaultStandards()
	}
	return &Evaluator{standards: standards}
}

// Standards exposes the threshold set for runtime adjustment.
func (e *Evaluator) Standards() *Standards { return e.standards }

// Evaluate scores review text. A structured review block, when present
// and plausible, takes precedence over the keyword heuristics; a
// self-reported score that diverges from the computed one by more than
// 0.2 is overridden by the computed score.
func (e *Evaluator) Evaluate(text string) Assessment {
	breakdown, computed := scoreText(text)

	a := Assessment{
		Score:     computed,
		Breakdown: breakdown,
	}

	rv := interpret.ParseReview(text)
	a.Feedback = rv.Feedback
	a.Recommendations = rv.Recommendations

	explicitApproved := false
	if rv.Found {
		if rv.QualityScore > 0 && divergence(rv.QualityScore, computed) > explicitDivergence {
			a.Notes = append(a.Notes, fmt.Sprintf(
				"self-reported score %.2f diverges from computed %.2f, using computed",
				rv.QualityScore, computed))
		} else if rv.QualityScore > 0 {
			a.Score = rv.QualityScore
		}
		explicitApproved = rv.Approved
	}

	meetsFloor := a.Score >= approvalScore && breakdown.Functionality >= approvalFunctionality
	if rv.Found {
		a.Approved = explicitApproved && meetsFloor
	} else {
		a.Approved = meetsFloor && !interpret.IndicatesFailure(text)
	}
	return a
}

func scoreText(text string) (Breakdown, float64) {
	lower := strings.ToLower(text)
	scores := make([]float64, len(aspects))
	for i, asp := range aspects {
		s := asp.base
		for _, re := range asp.positive {
			if re.MatchString(lower) {
				s += positiveStep
			}
		}
		for _, re := range asp.negative {
			if re.MatchString(lower) {
				s -= negativeStep
			}
		}
		scores[i] = clamp(s)
	}
	b := Breakdown{
		Functionality: scores[0],
		CodeQuality:   scores[1],
		ErrorHandling: scores[2],
		Security:      scores[3],
	}
	weighted := clamp(weightFunctionality*b.Functionality +
		weightCodeQuality*b.CodeQuality +
		weightErrorHandling*b.ErrorHandling +
		weightSecurity*b.Security)
	return b, weighted
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func divergence(a, b float64) float64 {
	if a > b {
		return a - b
	}
	return b - a
}
