package store

// TaskAssignment is the immutable bundle handed to the Worker at handoff.
// It carries its own snapshot of the work item, so later store mutations
// never leak into an in-flight execution.
type TaskAssignment struct {
	item         WorkItem
	context      string
	toolHints    []string
	constraints  []string
	qualityGates []string
}

// NewTaskAssignment builds an assignment from a work-item snapshot.
func NewTaskAssignment(item WorkItem, context string, toolHints, constraints, qualityGates []string) TaskAssignment {
	return TaskAssignment{
		item:         item.Clone(),
		context:      context,
		toolHints:    copyStrings(toolHints),
		constraints:  copyStrings(constraints),
		qualityGates: copyStrings(qualityGates),
	}
}

// Item returns a copy of the bundled work-item snapshot.
func (a TaskAssignment) Item() WorkItem { return a.item.Clone() }

// Context returns the free-text context for the Worker prompt.
func (a TaskAssignment) Context() string { return a.context }

// ToolHints returns the suggested tools.
func (a TaskAssignment) ToolHints() []string { return copyStrings(a.toolHints) }

// Constraints returns the execution constraints.
func (a TaskAssignment) Constraints() []string { return copyStrings(a.constraints) }

// QualityGates returns the named quality gates the result must pass.
func (a TaskAssignment) QualityGates() []string { return copyStrings(a.qualityGates) }

func copyStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
