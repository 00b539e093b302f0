package interpret

import (
	"regexp"
	"strconv"
	"strings"
)

// Review is the explicit structured block a reviewing backend may emit.
// Found is false when the text carried no such block and the caller must
// fall back to keyword heuristics.
type Review struct {
	Found           bool
	Approved        bool
	QualityScore    float64
	Feedback        []string
	Recommendations []string
}

var (
	approvedRe = regexp.MustCompile(`(?i)approved[:\s]+\**(true|false|yes|no)\**`)
	scoreRe    = regexp.MustCompile(`(?i)quality[\s_]?score[:\s]+\**([0-9.]+)\**`)
)

// ParseReview extracts the explicit review block from raw reviewer output.
// Either field alone marks the block as found; missing values default to
// not-approved and a zero score.
func ParseReview(raw string) Review {
	r := Review{}

	if m := approvedRe.FindStringSubmatch(raw); m != nil {
		r.Found = true
		v := strings.ToLower(m[1])
		r.Approved = v == "true" || v == "yes"
	}
	if m := scoreRe.FindStringSubmatch(raw); m != nil {
		if score, err := strconv.ParseFloat(m[1], 64); err == nil && score >= 0 && score <= 1 {
			r.Found = true
			r.QualityScore = score
		}
	}

	if feedback := Section(raw, "feedback"); feedback != "" {
		r.Feedback = Bullets(feedback)
	}
	if recs := Section(raw, "recommendations"); recs != "" {
		r.Recommendations = Bullets(recs)
	}

	return r
}

// Progress is the structured form of a progress report.
type Progress struct {
	Completed  []string
	NextSteps  []string
	Blockers   []string
	Confidence float64
}

// ParseProgress extracts a progress report, defaulting confidence to 0.5.
func ParseProgress(raw string) Progress {
	return Progress{
		Completed:  Bullets(Section(raw, "completed")),
		NextSteps:  Bullets(Section(raw, "next steps")),
		Blockers:   Bullets(Section(raw, "blockers")),
		Confidence: Confidence(raw, 0.5),
	}
}

// ParseSuggestions extracts an unordered suggestion list from advisory
// output. Plain bullets anywhere in the text count; there is no required
// structure.
func ParseSuggestions(raw string) []string {
	return Bullets(raw)
}
