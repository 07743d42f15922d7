package sibyl

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrInvalidBackup is returned when an uploaded document is missing one of
// the required top-level backup keys. Matched with errors.Is.
var ErrInvalidBackup = errors.New("invalid backup file format")

// backupKeys are the required top-level keys of a backup document.
var backupKeys = []string{"version", "entities", "relationships", "entity_count", "relationship_count"}

// BackupDocument is the decoded form of a backup file.
type BackupDocument struct {
	Version           string         `json:"version"`
	Entities          []Entity       `json:"entities"`
	Relationships     []Relationship `json:"relationships"`
	EntityCount       int            `json:"entity_count"`
	RelationshipCount int            `json:"relationship_count"`
}

// BackupResponse is the wire shape of GET /api/backup.
type BackupResponse struct {
	Success    bool            `json:"success"`
	BackupData json.RawMessage `json:"backup_data"`
}

// RestoreResponse is the wire shape of POST /api/restore.
type RestoreResponse struct {
	Success           bool `json:"success"`
	EntityCount       int  `json:"entity_count"`
	RelationshipCount int  `json:"relationship_count"`
}

// ValidateBackup checks that raw is a JSON object carrying all required
// backup keys. Only key presence is validated; the backend owns the format's
// deeper semantics. A failed check must reject the upload before any request
// is sent.
func ValidateBackup(raw []byte) error {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("%w: not a JSON object", ErrInvalidBackup)
	}

	for _, key := range backupKeys {
		if _, ok := doc[key]; !ok {
			return fmt.Errorf("%w: missing %q", ErrInvalidBackup, key)
		}
	}

	return nil
}
