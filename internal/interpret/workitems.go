package interpret

import (
	"regexp"
	"strconv"
	"strings"
)

// Defaults for fields the backend leaves out of a work-item block.
const (
	DefaultPriority = 3
	DefaultEffort   = 2.0 // hours
)

// ParsedItem is one work item extracted from analysis output.
type ParsedItem struct {
	Title              string
	Description        string
	AcceptanceCriteria []string
	Priority           int
	EstimatedEffort    float64
	Dependencies       []string
}

// Analysis is the structured form of a Manager analysis response.
type Analysis struct {
	Items    []ParsedItem
	Strategy string
	Risks    []string
	Fallback bool // true when Items were synthesized, not parsed
}

var (
	// itemHeadingRe matches the repeating work-item heading pattern in its
	// common spellings: "### Work Item 1: Title", "Work Item: Title",
	// "**Task 2: Title**".
	itemHeadingRe = regexp.MustCompile(`(?mi)^#{0,4}\s*\**\s*(?:work\s*item|task)\s*#?\d*\s*[:.-]\s*(.+?)\**\s*$`)

	priorityRe = regexp.MustCompile(`(?i)priority[:\s]+(\d)`)
	effortRe   = regexp.MustCompile(`(?i)(?:estimated\s+)?effort[:\s]+([0-9.]+)`)
	dependsRe  = regexp.MustCompile(`(?i)depend(?:s on|encies)[:\s]+(.+)`)
	descRe     = regexp.MustCompile(`(?i)description[:\s]+(.+)`)

	// topSectionRe marks where the per-item blocks end and the analysis-wide
	// sections begin.
	topSectionRe = regexp.MustCompile(`(?mi)^#{0,4}\s*(?:strategy|risks|dependencies)\s*:?\s*$`)
)

// ParseAnalysis extracts work items and the strategy narrative from raw
// analysis output. When the text yields fewer than two items it falls back
// to a deterministic decomposition so delegation is always possible.
func ParseAnalysis(raw, request string) Analysis {
	a := Analysis{
		Items:    parseItems(raw),
		Strategy: Section(raw, "strategy"),
		Risks:    Bullets(Section(raw, "risks")),
	}
	if len(a.Items) < 2 {
		a.Items = FallbackItems(request)
		a.Fallback = true
	}
	if a.Strategy == "" {
		a.Strategy = "Decompose, implement, and validate the request incrementally."
	}
	return a
}

// parseItems finds the repeating work-item heading pattern and reads the
// fields in each block.
func parseItems(raw string) []ParsedItem {
	headings := itemHeadingRe.FindAllStringSubmatchIndex(raw, -1)
	items := make([]ParsedItem, 0, len(headings))
	for i, loc := range headings {
		title := strings.TrimSpace(raw[loc[2]:loc[3]])
		if title == "" {
			continue
		}
		end := len(raw)
		if i+1 < len(headings) {
			end = headings[i+1][0]
		}
		block := raw[loc[1]:end]
		// A top-level section ends the final item's block.
		if m := topSectionRe.FindStringIndex(block); m != nil {
			block = block[:m[0]]
		}
		items = append(items, parseItemBlock(title, block))
	}
	return items
}

func parseItemBlock(title, block string) ParsedItem {
	item := ParsedItem{
		Title:           title,
		Priority:        DefaultPriority,
		EstimatedEffort: DefaultEffort,
	}

	if m := priorityRe.FindStringSubmatch(block); m != nil {
		if p, err := strconv.Atoi(m[1]); err == nil && p >= 1 && p <= 5 {
			item.Priority = p
		}
	}
	if m := effortRe.FindStringSubmatch(block); m != nil {
		if e, err := strconv.ParseFloat(m[1], 64); err == nil && e > 0 {
			item.EstimatedEffort = e
		}
	}
	if m := dependsRe.FindStringSubmatch(block); m != nil {
		for _, dep := range strings.Split(m[1], ",") {
			dep = strings.TrimSpace(strings.Trim(dep, ".;"))
			if dep != "" && !strings.EqualFold(dep, "none") {
				item.Dependencies = append(item.Dependencies, dep)
			}
		}
	}

	if criteria := Section(block, "acceptance criteria"); criteria != "" {
		item.AcceptanceCriteria = Bullets(criteria)
	}

	if m := descRe.FindStringSubmatch(block); m != nil {
		item.Description = strings.TrimSpace(m[1])
	} else if desc := Section(block, "description"); desc != "" {
		item.Description = strings.TrimSpace(desc)
	} else {
		// First non-field line of the block doubles as the description.
		for _, line := range strings.Split(block, "\n") {
			trimmed := strings.TrimSpace(line)
			if trimmed == "" || isFieldLine(trimmed) || labelLineRe.MatchString(trimmed) {
				continue
			}
			item.Description = strings.Trim(trimmed, "-* ")
			break
		}
	}
	if item.Description == "" {
		item.Description = title
	}
	return item
}

func isFieldLine(line string) bool {
	lower := strings.ToLower(line)
	for _, prefix := range []string{"priority", "effort", "estimated", "depend", "acceptance"} {
		if strings.HasPrefix(strings.TrimLeft(lower, "-* "), prefix) {
			return true
		}
	}
	return false
}

// FallbackItems synthesizes a deterministic decomposition for a request
// whose analysis yielded nothing usable. The two fixed items keep the
// workflow able to delegate; documentation is added for larger requests.
func FallbackItems(request string) []ParsedItem {
	summary := strings.TrimSpace(request)
	if r := []rune(summary); len(r) > 120 {
		summary = string(r[:120]) + "..."
	}
	items := []ParsedItem{
		{
			Title:           "Implement Core Functionality",
			Description:     "Implement the core functionality for: " + summary,
			Priority:        1,
			EstimatedEffort: DefaultEffort,
			AcceptanceCriteria: []string{
				"Implementation addresses the request",
				"Code builds without errors",
			},
		},
		{
			Title:           "Testing and Validation",
			Description:     "Test and validate the implementation for: " + summary,
			Priority:        2,
			EstimatedEffort: DefaultEffort,
			AcceptanceCriteria: []string{
				"Tests cover the implemented behavior",
				"All tests pass",
			},
		},
	}
	if len(request) > 200 {
		items = append(items, ParsedItem{
			Title:           "Documentation",
			Description:     "Document the implemented functionality.",
			Priority:        3,
			EstimatedEffort: 1,
			AcceptanceCriteria: []string{
				"Usage is documented",
			},
		})
	}
	return items
}
