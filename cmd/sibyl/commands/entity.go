package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sibyl-dev/sibyl-go/internal/cache"
	"github.com/sibyl-dev/sibyl-go/internal/filter"
	"github.com/sibyl-dev/sibyl-go/internal/mutate"
	"github.com/sibyl-dev/sibyl-go/internal/printer"
	"github.com/sibyl-dev/sibyl-go/internal/render"
	"github.com/sibyl-dev/sibyl-go/internal/resolver"
	"github.com/sibyl-dev/sibyl-go/internal/timespec"
	"github.com/sibyl-dev/sibyl-go/pkg/sibyl"
)

var (
	entityOutputFormat string
	entityTypeGlob     string
	entitySearch       string
	entityTag          string
	entitySince        string
	entityUntil        string
	entitySort         string
	entityOrder        string
	entityPage         int
	entityLimit        int
)

var entityCmd = &cobra.Command{
	Use:   "entity",
	Short: "Browse and edit knowledge-graph entities",
}

var entityListCmd = &cobra.Command{
	Use:   "list",
	Short: "List entities with filtering",
	Long: `List entities matching filters as a table or JSONL stream.

Output Formats:
  default - Human-readable table with ID, type, name, age and description
  jsonl   - Line-delimited JSON, one entity per line

Time Filters:
  --since  - Show entities created after this time
  --until  - Show entities created before this time

Examples:
  # List all entities
  sibyl entity list

  # Filter by type and time
  sibyl entity list --type="Decision*" --since=2h

  # Stream as JSONL for piping to jq
  sibyl entity list --output=jsonl | jq -r .name

  # Server-side search with pagination
  sibyl entity list --search=payment --page=2 --limit=50`,
	RunE: runEntityList,
}

var entityGetCmd = &cobra.Command{
	Use:   "get ENTITY_ID",
	Short: "Show one entity as pretty-printed JSON",
	Long: `Display complete details of a single entity as pretty-printed JSON.
Supports short IDs (e.g., "abc123" instead of a full UUID).`,
	Args: cobra.ExactArgs(1),
	RunE: runEntityGet,
}

var entityRenameCmd = &cobra.Command{
	Use:   "rename ENTITY_ID NEW_NAME",
	Short: "Rename an entity",
	Long: `Rename an entity. The name is required: an empty or whitespace-only
value cancels the edit locally without contacting the server, as does a name
identical to the current one.`,
	Args: cobra.ExactArgs(2),
	RunE: runEntityRename,
}

var entityDescribeCmd = &cobra.Command{
	Use:   "describe ENTITY_ID DESCRIPTION",
	Short: "Set an entity's description",
	Long: `Set an entity's description. Unlike the name, the description may be
cleared; submitting the current value is a no-op.`,
	Args: cobra.ExactArgs(2),
	RunE: runEntityDescribe,
}

var entityDeleteCmd = &cobra.Command{
	Use:   "delete ENTITY_ID",
	Short: "Delete an entity",
	Args:  cobra.ExactArgs(1),
	RunE:  runEntityDelete,
}

func init() {
	entityListCmd.Flags().StringVarP(&entityOutputFormat, "output", "o", "default", "Output format: default or jsonl")
	entityListCmd.Flags().StringVar(&entityTypeGlob, "type", "", "Filter by entity type (glob pattern)")
	entityListCmd.Flags().StringVar(&entitySearch, "search", "", "Server-side search string")
	entityListCmd.Flags().StringVar(&entityTag, "tag", "", "Filter by tag (exact match)")
	entityListCmd.Flags().StringVar(&entitySince, "since", "", "Show entities created after time (duration or RFC3339)")
	entityListCmd.Flags().StringVar(&entityUntil, "until", "", "Show entities created before time (duration or RFC3339)")
	entityListCmd.Flags().StringVar(&entitySort, "sort", "", "Sort field")
	entityListCmd.Flags().StringVar(&entityOrder, "order", "", "Sort order: asc or desc")
	entityListCmd.Flags().IntVar(&entityPage, "page", 0, "Page number (1-based)")
	entityListCmd.Flags().IntVar(&entityLimit, "limit", 0, "Page size")

	entityCmd.AddCommand(entityListCmd)
	entityCmd.AddCommand(entityGetCmd)
	entityCmd.AddCommand(entityRenameCmd)
	entityCmd.AddCommand(entityDescribeCmd)
	entityCmd.AddCommand(entityDeleteCmd)
	rootCmd.AddCommand(entityCmd)
}

func runEntityList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	format, err := render.ParseFormat(entityOutputFormat)
	if err != nil {
		return printer.Error("invalid output format", err.Error(), []string{"Valid formats: default, jsonl"})
	}

	sinceMS, untilMS, err := timespec.ParseRange(entitySince, entityUntil)
	if err != nil {
		return err
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	// Search, sort and pagination are server concerns; time and glob
	// filters apply client-side on the fetched page.
	params := sibyl.ListParams{
		Search: entitySearch,
		Sort:   entitySort,
		Order:  entityOrder,
		Page:   entityPage,
		Limit:  entityLimit,
	}

	resp, err := a.fetchEntityList(ctx, params)
	if err != nil {
		return fmt.Errorf("failed to list entities: %w", err)
	}

	criteria := &filter.Criteria{
		SinceTimestampMs: sinceMS,
		UntilTimestampMs: untilMS,
		TypeGlob:         entityTypeGlob,
		Tag:              entityTag,
	}
	entities := criteria.Apply(resp.Entities)

	switch format {
	case render.OutputFormatJSONL:
		return render.JSONL(os.Stdout, entities)
	default:
		render.EntityTable(os.Stdout, entities, resp.Total)
		return nil
	}
}

func runEntityGet(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	id, err := a.resolveEntityID(ctx, args[0])
	if err != nil {
		return err
	}

	entity, err := a.fetchEntity(ctx, id)
	if err != nil {
		if sibyl.IsNotFound(err) {
			return printer.Error("entity not found", fmt.Sprintf("No entity with ID %s.", id), nil)
		}
		return err
	}

	return render.SingleJSON(os.Stdout, entity)
}

func runEntityRename(cmd *cobra.Command, args []string) error {
	return runEntityTextEdit(args[0], args[1], true, "name",
		func(ctx context.Context, a *app, id, value string) (string, error) {
			updated, err := a.client.UpdateEntity(ctx, id, sibyl.EntityPatch{Name: &value})
			if err != nil {
				return "", err
			}
			return updated.Name, nil
		})
}

func runEntityDescribe(cmd *cobra.Command, args []string) error {
	return runEntityTextEdit(args[0], args[1], false, "description",
		func(ctx context.Context, a *app, id, value string) (string, error) {
			updated, err := a.client.UpdateEntity(ctx, id, sibyl.EntityPatch{Description: &value})
			if err != nil {
				return "", err
			}
			return updated.Description, nil
		})
}

// runEntityTextEdit is the shared guarded-edit flow for entity fields.
func runEntityTextEdit(rawID, input string, required bool, field string, commit func(context.Context, *app, string, string) (string, error)) error {
	ctx := context.Background()

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	id, err := a.resolveEntityID(ctx, rawID)
	if err != nil {
		return err
	}

	entity, err := a.fetchEntity(ctx, id)
	if err != nil {
		if sibyl.IsNotFound(err) {
			return printer.Error("entity not found", fmt.Sprintf("No entity with ID %s.", id), nil)
		}
		return err
	}

	current := entity.Name
	if field == "description" {
		current = entity.Description
	}

	result := mutate.RunTextEdit(ctx, a.runner, mutate.TextEdit{
		Ref:      mutate.ResourceRef{Kind: "entity", ID: id},
		Current:  current,
		Input:    input,
		Required: required,
		Commit: func(ctx context.Context, value string) (string, error) {
			return commit(ctx, a, id, value)
		},
	})

	switch result.Outcome {
	case mutate.OutcomeNoop:
		printer.Info("No change: %s kept as %q\n", field, current)
		return nil
	case mutate.OutcomeRolledBack:
		// The toast already surfaced the failure; keep the exit code honest.
		return fmt.Errorf("%s update failed: %w", field, result.Err)
	default:
		printer.Success("Updated %s of %s to %q\n", field, render.ShortID(id), result.Value)
		return nil
	}
}

func runEntityDelete(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	id, err := a.resolveEntityID(ctx, args[0])
	if err != nil {
		return err
	}

	result := mutate.Delete(ctx, a.runner,
		mutate.ResourceRef{Kind: "entity", ID: id},
		cache.DetailKey("entity", id),
		func(ctx context.Context) error {
			return a.client.DeleteEntity(ctx, id)
		})
	if result.Outcome == mutate.OutcomeRolledBack {
		return fmt.Errorf("delete failed: %w", result.Err)
	}

	printer.Success("Deleted entity %s\n", render.ShortID(id))
	return nil
}

// resolveEntityID expands a short ID prefix to a full entity ID.
func (a *app) resolveEntityID(ctx context.Context, raw string) (string, error) {
	ids, err := a.entityIDs(ctx)
	if err != nil {
		return "", err
	}

	id, err := resolver.Resolve(ids, raw)
	if err != nil {
		var ambiguous *resolver.AmbiguousError
		if resolver.IsAmbiguousError(err) {
			ambiguous = err.(*resolver.AmbiguousError)
			return "", printer.Error("ambiguous entity ID", resolver.FormatAmbiguousError(ambiguous), nil)
		}
		return "", err
	}
	return id, nil
}
