package sibyl

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// accessTokenCookie is the session cookie checked by the edge proxy in front
// of the backend. The client only attaches it; the auth flow itself lives
// outside this library.
const accessTokenCookie = "sibyl_access_token"

// APIError is a non-2xx response from the backend.
type APIError struct {
	StatusCode int    // HTTP status code
	Message    string // Server-provided error message, if any
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d", e.StatusCode)
	}
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
}

// IsNotFound returns true if the error is a 404 from the backend.
// Use this to check if a Get returned "not found".
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// Client performs HTTP operations against the Sibyl backend under /api/*.
// The client is stateless apart from its connection pool and is safe for
// concurrent use from multiple goroutines.
type Client struct {
	baseURL *url.URL
	token   string
	httpc   *http.Client
}

// NewClient creates a client for the backend at baseURL (scheme + host, no
// /api suffix). The token is attached to every request as the session cookie.
// Returns an error if baseURL is empty or unparseable.
func NewClient(baseURL, token string) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("server URL cannot be empty")
	}

	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid server URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid server URL: %s (expected scheme://host)", baseURL)
	}

	return &Client{
		baseURL: u,
		token:   token,
		httpc:   &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// ListParams are the filter/pagination/sort parameters for list operations.
// Zero values are omitted from the query string, so two ListParams with the
// same set fields produce identical requests.
type ListParams struct {
	Type   string // Filter by resource type (entities) or unused (tasks)
	Status string // Filter by status (tasks)
	Search string // Full-text search string
	Sort   string // Sort field (server-defined)
	Order  string // "asc" or "desc"
	Page   int    // 1-based page number, 0 = server default
	Limit  int    // Page size, 0 = server default
}

// Values encodes the parameters as a canonical query string.
// url.Values.Encode sorts keys, so equal params always encode identically.
func (p ListParams) Values() url.Values {
	v := url.Values{}
	if p.Type != "" {
		v.Set("type", p.Type)
	}
	if p.Status != "" {
		v.Set("status", p.Status)
	}
	if p.Search != "" {
		v.Set("search", p.Search)
	}
	if p.Sort != "" {
		v.Set("sort", p.Sort)
	}
	if p.Order != "" {
		v.Set("order", p.Order)
	}
	if p.Page > 0 {
		v.Set("page", strconv.Itoa(p.Page))
	}
	if p.Limit > 0 {
		v.Set("limit", strconv.Itoa(p.Limit))
	}
	return v
}

// ListEntities retrieves a page of entities matching the given parameters.
func (c *Client) ListEntities(ctx context.Context, params ListParams) (*EntityListResponse, error) {
	var out EntityListResponse
	if err := c.do(ctx, http.MethodGet, "/api/entities", params.Values(), nil, &out); err != nil {
		return nil, fmt.Errorf("failed to list entities: %w", err)
	}
	return &out, nil
}

// GetEntity retrieves a single entity by ID.
// Returns an *APIError with status 404 if it doesn't exist; use IsNotFound().
func (c *Client) GetEntity(ctx context.Context, entityID string) (*Entity, error) {
	var out Entity
	if err := c.do(ctx, http.MethodGet, "/api/entities/"+entityID, nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateEntity applies a partial update and returns the server's post-update
// representation, which is authoritative over any locally guessed value.
func (c *Client) UpdateEntity(ctx context.Context, entityID string, patch EntityPatch) (*Entity, error) {
	var out Entity
	if err := c.do(ctx, http.MethodPatch, "/api/entities/"+entityID, nil, patch, &out); err != nil {
		return nil, fmt.Errorf("failed to update entity: %w", err)
	}
	return &out, nil
}

// DeleteEntity removes an entity by ID.
func (c *Client) DeleteEntity(ctx context.Context, entityID string) error {
	if err := c.do(ctx, http.MethodDelete, "/api/entities/"+entityID, nil, nil, nil); err != nil {
		return fmt.Errorf("failed to delete entity: %w", err)
	}
	return nil
}

// ListTasks retrieves a page of tasks matching the given parameters.
func (c *Client) ListTasks(ctx context.Context, params ListParams) (*TaskListResponse, error) {
	var out TaskListResponse
	if err := c.do(ctx, http.MethodGet, "/api/tasks", params.Values(), nil, &out); err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	return &out, nil
}

// GetTask retrieves a single task by ID.
func (c *Client) GetTask(ctx context.Context, taskID string) (*Task, error) {
	var out Task
	if err := c.do(ctx, http.MethodGet, "/api/tasks/"+taskID, nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateTask applies a partial update and returns the post-update task.
// Transition validity is the caller's responsibility (see ValidateTransition);
// the client does not re-check it here.
func (c *Client) UpdateTask(ctx context.Context, taskID string, patch TaskPatch) (*Task, error) {
	var out Task
	if err := c.do(ctx, http.MethodPatch, "/api/tasks/"+taskID, nil, patch, &out); err != nil {
		return nil, fmt.Errorf("failed to update task: %w", err)
	}
	return &out, nil
}

// ListAgents retrieves all registered agents.
func (c *Client) ListAgents(ctx context.Context) (*AgentListResponse, error) {
	var out AgentListResponse
	if err := c.do(ctx, http.MethodGet, "/api/agents", nil, nil, &out); err != nil {
		return nil, fmt.Errorf("failed to list agents: %w", err)
	}
	return &out, nil
}

// ListSessions retrieves all planning sessions.
func (c *Client) ListSessions(ctx context.Context) (*SessionListResponse, error) {
	var out SessionListResponse
	if err := c.do(ctx, http.MethodGet, "/api/planning-sessions", nil, nil, &out); err != nil {
		return nil, fmt.Errorf("failed to list planning sessions: %w", err)
	}
	return &out, nil
}

// Stats retrieves backend summary statistics.
func (c *Client) Stats(ctx context.Context) (*Stats, error) {
	var out Stats
	if err := c.do(ctx, http.MethodGet, "/api/stats", nil, nil, &out); err != nil {
		return nil, fmt.Errorf("failed to fetch stats: %w", err)
	}
	return &out, nil
}

// Backup downloads a full backup document from the backend.
func (c *Client) Backup(ctx context.Context) (*BackupResponse, error) {
	var out BackupResponse
	if err := c.do(ctx, http.MethodGet, "/api/backup", nil, nil, &out); err != nil {
		return nil, fmt.Errorf("failed to download backup: %w", err)
	}
	return &out, nil
}

// Restore uploads a backup document. The raw document must already have
// passed ValidateBackup; malformed documents are rejected before any request
// is issued.
func (c *Client) Restore(ctx context.Context, raw []byte) (*RestoreResponse, error) {
	if err := ValidateBackup(raw); err != nil {
		return nil, err
	}

	var out RestoreResponse
	if err := c.do(ctx, http.MethodPost, "/api/restore", nil, json.RawMessage(raw), &out); err != nil {
		return nil, fmt.Errorf("failed to restore backup: %w", err)
	}
	return &out, nil
}

// do performs one request/response cycle. A nil body sends no payload; a nil
// out discards the response body. Non-2xx responses become *APIError.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	u := *c.baseURL
	u.Path = path
	if query != nil {
		u.RawQuery = query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.AddCookie(&http.Cookie{Name: accessTokenCookie, Value: c.token})
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return apiErrorFromResponse(resp)
	}

	if out == nil {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// apiErrorFromResponse extracts a server error message when the body carries
// one as {"error": "..."}, falling back to the bare status code.
func apiErrorFromResponse(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return apiErr
	}

	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(data, &payload); err == nil && payload.Error != "" {
		apiErr.Message = payload.Error
	}

	return apiErr
}
