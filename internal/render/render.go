// Package render formats resources for CLI output: human-readable tables,
// line-delimited JSON for piping, and pretty-printed single records.
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/sibyl-dev/sibyl-go/pkg/sibyl"
)

// OutputFormat specifies how list output is rendered.
type OutputFormat string

const (
	// OutputFormatDefault uses a table format with truncated fields
	OutputFormatDefault OutputFormat = "default"

	// OutputFormatJSONL outputs complete records as line-delimited JSON
	OutputFormatJSONL OutputFormat = "jsonl"
)

// ParseFormat validates a --output flag value.
func ParseFormat(s string) (OutputFormat, error) {
	switch s {
	case "default":
		return OutputFormatDefault, nil
	case "jsonl":
		return OutputFormatJSONL, nil
	default:
		return "", fmt.Errorf("unknown output format: %s (valid: default, jsonl)", s)
	}
}

// EntityTable writes entities as a formatted table. Returns the number of
// entities written.
func EntityTable(w io.Writer, entities []sibyl.Entity, total int) int {
	if len(entities) == 0 {
		fmt.Fprintf(w, "No entities found\n")
		return 0
	}

	fmt.Fprintf(w, "%-10s %-14s %-24s %-8s %s\n",
		"ID", "TYPE", "NAME", "AGE", "DESCRIPTION")
	fmt.Fprintf(w, "%-10s %-14s %-24s %-8s %s\n",
		"----------", "--------------", "------------------------", "--------", "----------------------------------------")

	for _, e := range entities {
		fmt.Fprintf(w, "%-10s %-14s %-24s %-8s %s\n",
			ShortID(e.ID),
			truncate(e.Type, 14),
			truncate(e.Name, 24),
			age(e.CreatedAt),
			truncate(e.Description, 40),
		)
	}

	fmt.Fprintf(w, "\n%d of %d entities\n", len(entities), total)
	return len(entities)
}

// TaskTable writes tasks as a formatted table. Returns the number of tasks
// written.
func TaskTable(w io.Writer, tasks []sibyl.Task, total int) int {
	if len(tasks) == 0 {
		fmt.Fprintf(w, "No tasks found\n")
		return 0
	}

	fmt.Fprintf(w, "%-10s %-9s %-8s %-28s %s\n",
		"ID", "STATUS", "PRI", "TITLE", "AGENT")
	fmt.Fprintf(w, "%-10s %-9s %-8s %-28s %s\n",
		"----------", "---------", "--------", "----------------------------", "------------------")

	for _, t := range tasks {
		fmt.Fprintf(w, "%-10s %-9s %-8s %-28s %s\n",
			ShortID(t.ID),
			string(t.Status),
			truncate(t.Priority, 8),
			truncate(t.Title, 28),
			truncate(t.AssignedAgent, 18),
		)
	}

	fmt.Fprintf(w, "\n%d of %d tasks\n", len(tasks), total)
	return len(tasks)
}

// JSONL writes records as line-delimited JSON, one record per line. This
// format is ideal for streaming and processing with tools like jq.
func JSONL[T any](w io.Writer, records []T) error {
	for _, r := range records {
		data, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("failed to marshal record to JSON: %w", err)
		}

		if _, err := fmt.Fprintf(w, "%s\n", string(data)); err != nil {
			return fmt.Errorf("failed to write JSONL output: %w", err)
		}
	}

	return nil
}

// SingleJSON writes one record as pretty-printed JSON. Used in get mode to
// display complete details.
func SingleJSON(w io.Writer, record any) error {
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal record to JSON: %w", err)
	}

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write JSON output: %w", err)
	}

	fmt.Fprintln(w)
	return nil
}

// Stats writes the stats summary in a compact human-readable block.
func Stats(w io.Writer, s *sibyl.Stats) {
	fmt.Fprintf(w, "Entities:      %d\n", s.EntityCount)
	fmt.Fprintf(w, "Relationships: %d\n", s.RelationshipCount)
	fmt.Fprintf(w, "Agents:        %d\n", s.AgentCount)

	if len(s.TasksByStatus) == 0 {
		return
	}

	fmt.Fprintf(w, "Tasks:\n")
	// Stable lifecycle order rather than map order.
	order := []sibyl.TaskStatus{
		sibyl.TaskStatusBacklog, sibyl.TaskStatusTodo, sibyl.TaskStatusDoing,
		sibyl.TaskStatusBlocked, sibyl.TaskStatusReview, sibyl.TaskStatusDone,
	}
	for _, st := range order {
		if n, ok := s.TasksByStatus[st]; ok {
			fmt.Fprintf(w, "  %-8s %d\n", string(st), n)
		}
	}
}

// ShortID truncates an ID to first 8 characters for compact display.
func ShortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// truncate shortens s to max characters with an ellipsis.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 1 {
		return s[:max]
	}
	return s[:max-1] + "…"
}

// age renders a creation time as a compact relative duration.
func age(t time.Time) string {
	if t.IsZero() {
		return "-"
	}

	d := time.Since(t)
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	}
}
