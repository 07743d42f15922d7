package sibyl

import "fmt"

// TaskStatus defines the lifecycle state of a task.
// Tasks progress through: backlog → todo → doing → (blocked|review) → done.
type TaskStatus string

const (
	// TaskStatusBacklog is the initial state for unscheduled work
	TaskStatusBacklog TaskStatus = "backlog"

	// TaskStatusTodo indicates the task is scheduled but not started
	TaskStatusTodo TaskStatus = "todo"

	// TaskStatusDoing indicates the task is actively being worked
	TaskStatusDoing TaskStatus = "doing"

	// TaskStatusBlocked indicates the task is waiting on something external
	TaskStatusBlocked TaskStatus = "blocked"

	// TaskStatusReview indicates the work is complete and awaiting review
	TaskStatusReview TaskStatus = "review"

	// TaskStatusDone is the terminal state; no transitions leave it
	TaskStatusDone TaskStatus = "done"
)

// transitions is the adjacency table of allowed status changes, keyed by the
// current status. There is no path back into backlog, and done is terminal.
var transitions = map[TaskStatus][]TaskStatus{
	TaskStatusBacklog: {TaskStatusTodo},
	TaskStatusTodo:    {TaskStatusDoing},
	TaskStatusDoing:   {TaskStatusBlocked, TaskStatusReview},
	TaskStatusBlocked: {TaskStatusDoing},
	TaskStatusReview:  {TaskStatusDoing, TaskStatusDone},
	TaskStatusDone:    {},
}

// Validate checks if the TaskStatus is a valid enum value.
func (s TaskStatus) Validate() error {
	switch s {
	case TaskStatusBacklog, TaskStatusTodo, TaskStatusDoing,
		TaskStatusBlocked, TaskStatusReview, TaskStatusDone:
		return nil
	default:
		return fmt.Errorf("unknown task status: %q", s)
	}
}

// Terminal returns true if no transition leaves this status.
func (s TaskStatus) Terminal() bool {
	return len(transitions[s]) == 0 && s.Validate() == nil
}

// CanTransitionTo returns true if the adjacency table allows moving from s
// to the given status.
func (s TaskStatus) CanTransitionTo(to TaskStatus) bool {
	for _, next := range transitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// NextStatuses returns the allowed next statuses from s, in table order.
// Returns an empty slice for terminal or unknown statuses.
func (s TaskStatus) NextStatuses() []TaskStatus {
	next := transitions[s]
	out := make([]TaskStatus, len(next))
	copy(out, next)
	return out
}

// ValidateTransition checks a proposed status change against the adjacency
// table. It is evaluated locally, before any network call: an invalid
// transition must never produce a write request.
func ValidateTransition(from, to TaskStatus) error {
	if err := from.Validate(); err != nil {
		return err
	}
	if err := to.Validate(); err != nil {
		return err
	}
	if !from.CanTransitionTo(to) {
		return fmt.Errorf("invalid transition: %s → %s (allowed: %v)", from, to, transitions[from])
	}
	return nil
}
