package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sibyl-dev/sibyl-go/internal/printer"
	"github.com/sibyl-dev/sibyl-go/pkg/sibyl"
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Download or restore a full backup",
}

var backupSaveCmd = &cobra.Command{
	Use:   "save FILE",
	Short: "Download a backup to a file",
	Args:  cobra.ExactArgs(1),
	RunE:  runBackupSave,
}

var backupRestoreCmd = &cobra.Command{
	Use:   "restore FILE",
	Short: "Upload a backup file",
	Long: `Upload a backup file to the backend.

The file is validated locally first: it must be a JSON document with the
top-level keys version, entities, relationships, entity_count and
relationship_count. A malformed file is rejected without sending anything.`,
	Args: cobra.ExactArgs(1),
	RunE: runBackupRestore,
}

func init() {
	backupCmd.AddCommand(backupSaveCmd)
	backupCmd.AddCommand(backupRestoreCmd)
	rootCmd.AddCommand(backupCmd)
}

func runBackupSave(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	printer.Step("downloading backup\n")
	resp, err := a.client.Backup(ctx)
	if err != nil {
		return err
	}
	if !resp.Success {
		return fmt.Errorf("backend reported backup failure")
	}

	// Pretty-print so the file is diffable and inspectable.
	var buf any
	if err := json.Unmarshal(resp.BackupData, &buf); err != nil {
		return fmt.Errorf("backend returned malformed backup data: %w", err)
	}
	data, err := json.MarshalIndent(buf, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to format backup data: %w", err)
	}

	if err := os.WriteFile(args[0], data, 0o644); err != nil {
		return fmt.Errorf("failed to write backup file: %w", err)
	}

	printer.Success("Backup saved to %s (%d bytes)\n", args[0], len(data))
	return nil
}

func runBackupRestore(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	raw, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read backup file: %w", err)
	}

	// Validate before building any client: a malformed file never produces
	// a request.
	if err := sibyl.ValidateBackup(raw); err != nil {
		if errors.Is(err, sibyl.ErrInvalidBackup) {
			return printer.Error(
				"Invalid backup file format",
				err.Error(),
				[]string{"Expected a JSON document with keys: version, entities, relationships, entity_count, relationship_count"},
			)
		}
		return err
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	printer.Step("uploading backup %s\n", args[0])
	resp, err := a.client.Restore(ctx, raw)
	if err != nil {
		return err
	}
	if !resp.Success {
		return fmt.Errorf("backend reported restore failure")
	}

	// Everything may have changed; start reads from scratch.
	a.cache.InvalidateAll()

	printer.Success("Restored %d entities and %d relationships\n", resp.EntityCount, resp.RelationshipCount)
	return nil
}
