package sibyl

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Entity represents a node in the knowledge graph.
// Entities are the fundamental unit of state in Sibyl - every concept,
// person, artifact and decision is represented as a typed, identified record
// with server-assigned timestamps.
type Entity struct {
	ID          string    `json:"id"`          // UUID - server-assigned identifier
	Name        string    `json:"name"`        // Display name (required, non-empty)
	Type        string    `json:"type"`        // Domain type (e.g., "Person", "Concept", "Decision")
	Description string    `json:"description"` // Free-form description, may be empty
	Tags        []string  `json:"tags,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Task represents a unit of work tracked by the backend.
// Task fields that the original API carried in a loose metadata bag are
// promoted to named optional fields here and validated at the API boundary.
type Task struct {
	ID            string     `json:"id"`
	Title         string     `json:"title"`
	Description   string     `json:"description"`
	Status        TaskStatus `json:"status"`
	Priority      string     `json:"priority,omitempty"`       // "low", "medium" or "high"; empty = unset
	AssignedAgent string     `json:"assigned_agent,omitempty"` // Agent ID, empty = unassigned
	Tags          []string   `json:"tags,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// Agent represents a worker process registered with the backend.
type Agent struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Status    string    `json:"status"` // "idle", "working" or "offline"
	LastSeen  time.Time `json:"last_seen"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PlanningSession represents a recorded planning conversation.
type PlanningSession struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Status    string    `json:"status"` // "active" or "archived"
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Relationship represents a directed edge between two entities.
type Relationship struct {
	ID        string    `json:"id"`
	FromID    string    `json:"from_id"`
	ToID      string    `json:"to_id"`
	Type      string    `json:"type"` // e.g., "depends_on", "relates_to"
	CreatedAt time.Time `json:"created_at"`
}

// Stats summarizes backend state for the stats dashboard.
type Stats struct {
	EntityCount       int                `json:"entity_count"`
	RelationshipCount int                `json:"relationship_count"`
	AgentCount        int                `json:"agent_count"`
	TasksByStatus     map[TaskStatus]int `json:"tasks_by_status"`
}

// EntityListResponse is the wire shape of GET /api/entities.
type EntityListResponse struct {
	Entities []Entity `json:"entities"`
	Total    int      `json:"total"`
}

// TaskListResponse is the wire shape of GET /api/tasks.
type TaskListResponse struct {
	Tasks []Task `json:"tasks"`
	Total int    `json:"total"`
}

// AgentListResponse is the wire shape of GET /api/agents.
type AgentListResponse struct {
	Agents []Agent `json:"agents"`
	Total  int     `json:"total"`
}

// SessionListResponse is the wire shape of GET /api/planning-sessions.
type SessionListResponse struct {
	Sessions []PlanningSession `json:"sessions"`
	Total    int               `json:"total"`
}

// EntityPatch carries a partial entity update. Nil fields are left unchanged
// by the server; the response is the full post-update entity.
type EntityPatch struct {
	Name        *string  `json:"name,omitempty"`
	Description *string  `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

// TaskPatch carries a partial task update.
type TaskPatch struct {
	Title         *string     `json:"title,omitempty"`
	Description   *string     `json:"description,omitempty"`
	Status        *TaskStatus `json:"status,omitempty"`
	Priority      *string     `json:"priority,omitempty"`
	AssignedAgent *string     `json:"assigned_agent,omitempty"`
}

// Validate checks if the Entity has valid field values.
// Returns an error if any validation fails.
func (e *Entity) Validate() error {
	if !isValidUUID(e.ID) {
		return fmt.Errorf("invalid entity ID: not a valid UUID")
	}

	if e.Name == "" {
		return fmt.Errorf("entity name cannot be empty")
	}

	if e.Type == "" {
		return fmt.Errorf("entity type cannot be empty")
	}

	return nil
}

// Validate checks if the Task has valid field values.
func (t *Task) Validate() error {
	if !isValidUUID(t.ID) {
		return fmt.Errorf("invalid task ID: not a valid UUID")
	}

	if t.Title == "" {
		return fmt.Errorf("task title cannot be empty")
	}

	if err := t.Status.Validate(); err != nil {
		return fmt.Errorf("invalid status: %w", err)
	}

	switch t.Priority {
	case "", "low", "medium", "high":
	default:
		return fmt.Errorf("unknown priority: %q", t.Priority)
	}

	return nil
}

// Validate checks if the Relationship has valid field values.
func (r *Relationship) Validate() error {
	if !isValidUUID(r.ID) {
		return fmt.Errorf("invalid relationship ID: not a valid UUID")
	}

	if !isValidUUID(r.FromID) {
		return fmt.Errorf("invalid from_id: not a valid UUID")
	}

	if !isValidUUID(r.ToID) {
		return fmt.Errorf("invalid to_id: not a valid UUID")
	}

	if r.Type == "" {
		return fmt.Errorf("relationship type cannot be empty")
	}

	return nil
}

// isValidUUID checks if a string is a valid UUID format.
func isValidUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
