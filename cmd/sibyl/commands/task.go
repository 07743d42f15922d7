package commands

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sibyl-dev/sibyl-go/internal/cache"
	"github.com/sibyl-dev/sibyl-go/internal/mutate"
	"github.com/sibyl-dev/sibyl-go/internal/printer"
	"github.com/sibyl-dev/sibyl-go/internal/render"
	"github.com/sibyl-dev/sibyl-go/internal/resolver"
	"github.com/sibyl-dev/sibyl-go/pkg/sibyl"
)

var (
	taskOutputFormat string
	taskStatusFilter string
	taskSearch       string
	taskPage         int
	taskLimit        int
)

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Browse tasks and move them through the workflow",
}

var taskListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tasks with filtering",
	Long: `List tasks as a table or JSONL stream.

Examples:
  # All tasks
  sibyl task list

  # Only tasks in review
  sibyl task list --status=review

  # Search, as JSONL
  sibyl task list --search=billing --output=jsonl`,
	RunE: runTaskList,
}

var taskGetCmd = &cobra.Command{
	Use:   "get TASK_ID",
	Short: "Show one task as pretty-printed JSON",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskGet,
}

var taskStatusCmd = &cobra.Command{
	Use:   "status TASK_ID NEW_STATUS",
	Short: "Move a task to a new status",
	Long: `Move a task to a new status.

Statuses: backlog, todo, doing, blocked, review, done

Transitions follow the workflow table (e.g. doing → blocked or review); an
invalid transition is rejected locally without contacting the server. The
new status shows immediately and reverts if the server call fails.`,
	Args: cobra.ExactArgs(2),
	RunE: runTaskStatus,
}

func init() {
	taskListCmd.Flags().StringVarP(&taskOutputFormat, "output", "o", "default", "Output format: default or jsonl")
	taskListCmd.Flags().StringVar(&taskStatusFilter, "status", "", "Filter by status")
	taskListCmd.Flags().StringVar(&taskSearch, "search", "", "Server-side search string")
	taskListCmd.Flags().IntVar(&taskPage, "page", 0, "Page number (1-based)")
	taskListCmd.Flags().IntVar(&taskLimit, "limit", 0, "Page size")

	taskCmd.AddCommand(taskListCmd)
	taskCmd.AddCommand(taskGetCmd)
	taskCmd.AddCommand(taskStatusCmd)
	rootCmd.AddCommand(taskCmd)
}

func runTaskList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	format, err := render.ParseFormat(taskOutputFormat)
	if err != nil {
		return printer.Error("invalid output format", err.Error(), []string{"Valid formats: default, jsonl"})
	}

	if taskStatusFilter != "" {
		if err := sibyl.TaskStatus(taskStatusFilter).Validate(); err != nil {
			return printer.Error("invalid status filter", err.Error(),
				[]string{"Valid statuses: backlog, todo, doing, blocked, review, done"})
		}
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	resp, err := a.fetchTaskList(ctx, sibyl.ListParams{
		Status: taskStatusFilter,
		Search: taskSearch,
		Page:   taskPage,
		Limit:  taskLimit,
	})
	if err != nil {
		return fmt.Errorf("failed to list tasks: %w", err)
	}

	switch format {
	case render.OutputFormatJSONL:
		return render.JSONL(os.Stdout, resp.Tasks)
	default:
		render.TaskTable(os.Stdout, resp.Tasks, resp.Total)
		return nil
	}
}

func runTaskGet(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	id, err := a.resolveTaskID(ctx, args[0])
	if err != nil {
		return err
	}

	task, err := a.fetchTask(ctx, id)
	if err != nil {
		if sibyl.IsNotFound(err) {
			return printer.Error("task not found", fmt.Sprintf("No task with ID %s.", id), nil)
		}
		return err
	}

	return render.SingleJSON(os.Stdout, task)
}

func runTaskStatus(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	to := sibyl.TaskStatus(strings.ToLower(args[1]))
	if err := to.Validate(); err != nil {
		return printer.Error("invalid status", err.Error(),
			[]string{"Valid statuses: backlog, todo, doing, blocked, review, done"})
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	id, err := a.resolveTaskID(ctx, args[0])
	if err != nil {
		return err
	}

	task, err := a.fetchTask(ctx, id)
	if err != nil {
		if sibyl.IsNotFound(err) {
			return printer.Error("task not found", fmt.Sprintf("No task with ID %s.", id), nil)
		}
		return err
	}

	// Off-table transitions fail here, before any write request.
	if err := sibyl.ValidateTransition(task.Status, to); err != nil {
		return printer.Error(
			"invalid status transition",
			err.Error(),
			[]string{fmt.Sprintf("Allowed from %s: %v", task.Status, task.Status.NextStatuses())},
		)
	}

	optimistic := *task
	optimistic.Status = to

	result := mutate.Run(ctx, a.runner, mutate.Mutation[*sibyl.Task]{
		Ref:      mutate.ResourceRef{Kind: "task", ID: id},
		Key:      cache.DetailKey("task", id),
		Snapshot: task,
		Value:    &optimistic,
		Commit: func(ctx context.Context) (*sibyl.Task, error) {
			return a.client.UpdateTask(ctx, id, sibyl.TaskPatch{Status: &to})
		},
	})
	if result.Outcome == mutate.OutcomeRolledBack {
		return fmt.Errorf("status change failed: %w", result.Err)
	}

	printer.Success("Task %s: %s → %s\n", render.ShortID(id), task.Status, result.Value.Status)
	return nil
}

// resolveTaskID expands a short ID prefix to a full task ID.
func (a *app) resolveTaskID(ctx context.Context, raw string) (string, error) {
	ids, err := a.taskIDs(ctx)
	if err != nil {
		return "", err
	}

	id, err := resolver.Resolve(ids, raw)
	if err != nil {
		if resolver.IsAmbiguousError(err) {
			ambiguous := err.(*resolver.AmbiguousError)
			return "", printer.Error("ambiguous task ID", resolver.FormatAmbiguousError(ambiguous), nil)
		}
		return "", err
	}
	return id, nil
}
