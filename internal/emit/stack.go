package emit

import "fmt"

// StackTracker counts "push intermediates on the hardware stack"
// discipline (spec.md §4.5.4) as the code generator lowers a method, so
// an imbalance can be caught with a diagnostic instead of producing a
// ROM whose return address has been corrupted by its own method body.
type StackTracker struct {
	depth int
	log   []string
}

// NewStackTracker returns a StackTracker at depth zero.
func NewStackTracker() *StackTracker {
	return &StackTracker{}
}

// Push records one 16-bit value pushed.
func (t *StackTracker) Push(what string) {
	t.depth++
	t.log = append(t.log, fmt.Sprintf("push %s (depth=%d)", what, t.depth))
}

// Pop records one 16-bit value popped, erroring if the stack is already
// empty.
func (t *StackTracker) Pop(what string) error {
	if t.depth <= 0 {
		return fmt.Errorf("stack underflow popping %s", what)
	}
	t.depth--
	t.log = append(t.log, fmt.Sprintf("pop %s (depth=%d)", what, t.depth))
	return nil
}

// Checkpoint returns the current depth, for later comparison via
// ValidateAt.
func (t *StackTracker) Checkpoint() int {
	return t.depth
}

// ValidateAt errors if the tracker's depth no longer matches a prior
// Checkpoint — e.g. at a method's return point, where spec.md §4.5.4
// expects exactly one 16-bit value remaining above the call frame.
func (t *StackTracker) ValidateAt(expected int, where string) error {
	if t.depth != expected {
		return fmt.Errorf("stack imbalance at %s: expected depth %d, got %d", where, expected, t.depth)
	}
	return nil
}

// Depth returns the current tracked depth.
func (t *StackTracker) Depth() int {
	return t.depth
}
