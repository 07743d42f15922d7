package mutate

import (
	"context"
	"strings"
)

// TextEdit is an inline text-field edit with the two local guards every
// editable field shares:
//
//   - required-field guard: a required field submitted empty or
//     whitespace-only discards the edit and restores the previous value,
//     with no network request (a no-op cancel, not a failed write)
//   - unchanged-value guard: a trimmed new value equal to the trimmed
//     current value issues no request (idempotent no-op)
type TextEdit struct {
	Ref ResourceRef // Target resource

	Current  string // Value displayed before the edit
	Input    string // Raw submitted value
	Required bool   // Non-empty constraint

	Apply  func(string)
	Commit func(context.Context, string) (string, error)
}

// RunTextEdit applies the guards, then delegates the surviving edit to Run.
// The committed server string (not the local guess) ends up both displayed
// and cached. Guard no-ops surface no notification.
func RunTextEdit(ctx context.Context, r *Runner, e TextEdit) Result[string] {
	trimmed := strings.TrimSpace(e.Input)

	if e.Required && trimmed == "" {
		if e.Apply != nil {
			e.Apply(e.Current)
		}
		return Result[string]{Outcome: OutcomeNoop}
	}

	if trimmed == strings.TrimSpace(e.Current) {
		if e.Apply != nil {
			e.Apply(e.Current)
		}
		return Result[string]{Outcome: OutcomeNoop}
	}

	return Run(ctx, r, Mutation[string]{
		Ref:      e.Ref,
		Snapshot: e.Current,
		Value:    trimmed,
		Apply:    e.Apply,
		Commit: func(ctx context.Context) (string, error) {
			return e.Commit(ctx, trimmed)
		},
	})
}
