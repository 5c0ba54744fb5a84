package plan

import "fmt"

// SubstitutionError reports that building an activity's effective input
// failed — a missing dependency output or a malformed reference
// expression. Aborts the graph run (§7).
type SubstitutionError struct {
	ActivityID string
	Err        error
}

func (e *SubstitutionError) Error() string {
	return fmt.Sprintf("activity %q: substitution failed: %v", e.ActivityID, e.Err)
}

func (e *SubstitutionError) Unwrap() error { return e.Err }

// ExecutorInternalError reports a scheduler-level fault: a schedule
// deadlock (no activity ready but not all decided), an activity of
// unknown kind, or an activity whose kind has no invoker configured.
// Aborts (§7).
type ExecutorInternalError struct {
	Reason string
}

func (e *ExecutorInternalError) Error() string {
	return fmt.Sprintf("executor internal error: %s", e.Reason)
}
