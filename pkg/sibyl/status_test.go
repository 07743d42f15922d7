package sibyl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskStatusValidate(t *testing.T) {
	t.Run("accepts all known statuses", func(t *testing.T) {
		for _, st := range []TaskStatus{
			TaskStatusBacklog, TaskStatusTodo, TaskStatusDoing,
			TaskStatusBlocked, TaskStatusReview, TaskStatusDone,
		} {
			assert.NoError(t, st.Validate(), "status %s", st)
		}
	})

	t.Run("rejects unknown status", func(t *testing.T) {
		err := TaskStatus("archived").Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown task status")
	})

	t.Run("rejects empty status", func(t *testing.T) {
		assert.Error(t, TaskStatus("").Validate())
	})
}

func TestCanTransitionTo(t *testing.T) {
	tests := []struct {
		name    string
		from    TaskStatus
		to      TaskStatus
		allowed bool
	}{
		{"backlog to todo", TaskStatusBacklog, TaskStatusTodo, true},
		{"todo to doing", TaskStatusTodo, TaskStatusDoing, true},
		{"doing to blocked", TaskStatusDoing, TaskStatusBlocked, true},
		{"doing to review", TaskStatusDoing, TaskStatusReview, true},
		{"blocked to doing", TaskStatusBlocked, TaskStatusDoing, true},
		{"review to doing", TaskStatusReview, TaskStatusDoing, true},
		{"review to done", TaskStatusReview, TaskStatusDone, true},

		{"backlog cannot skip to done", TaskStatusBacklog, TaskStatusDone, false},
		{"backlog cannot skip to doing", TaskStatusBacklog, TaskStatusDoing, false},
		{"todo cannot skip to done", TaskStatusTodo, TaskStatusDone, false},
		{"doing cannot go straight to done", TaskStatusDoing, TaskStatusDone, false},
		{"blocked cannot go to review", TaskStatusBlocked, TaskStatusReview, false},
		{"done is terminal", TaskStatusDone, TaskStatusDoing, false},
		{"no path back into backlog", TaskStatusTodo, TaskStatusBacklog, false},
		{"no self transition", TaskStatusDoing, TaskStatusDoing, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.allowed, tt.from.CanTransitionTo(tt.to))
		})
	}
}

// Every off-table pair must be rejected, not just the spot-checked ones.
func TestValidateTransitionExhaustive(t *testing.T) {
	all := []TaskStatus{
		TaskStatusBacklog, TaskStatusTodo, TaskStatusDoing,
		TaskStatusBlocked, TaskStatusReview, TaskStatusDone,
	}

	for _, from := range all {
		for _, to := range all {
			err := ValidateTransition(from, to)
			if from.CanTransitionTo(to) {
				assert.NoError(t, err, "%s → %s", from, to)
			} else {
				assert.Error(t, err, "%s → %s", from, to)
			}
		}
	}
}

func TestValidateTransitionUnknownStatus(t *testing.T) {
	assert.Error(t, ValidateTransition(TaskStatus("bogus"), TaskStatusDone))
	assert.Error(t, ValidateTransition(TaskStatusTodo, TaskStatus("bogus")))
}

func TestTerminal(t *testing.T) {
	assert.True(t, TaskStatusDone.Terminal())
	assert.False(t, TaskStatusDoing.Terminal())
	assert.False(t, TaskStatus("bogus").Terminal())
}

func TestNextStatuses(t *testing.T) {
	assert.Equal(t, []TaskStatus{TaskStatusBlocked, TaskStatusReview}, TaskStatusDoing.NextStatuses())
	assert.Empty(t, TaskStatusDone.NextStatuses())

	// Returned slice is a copy - mutating it must not corrupt the table.
	next := TaskStatusDoing.NextStatuses()
	next[0] = TaskStatusDone
	assert.Equal(t, []TaskStatus{TaskStatusBlocked, TaskStatusReview}, TaskStatusDoing.NextStatuses())
}
