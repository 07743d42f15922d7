package sibyl

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClient(t *testing.T) {
	t.Run("rejects empty URL", func(t *testing.T) {
		_, err := NewClient("", "tok")
		assert.Error(t, err)
	})

	t.Run("rejects URL without scheme", func(t *testing.T) {
		_, err := NewClient("localhost:8080", "tok")
		assert.Error(t, err)
	})

	t.Run("accepts scheme and host", func(t *testing.T) {
		c, err := NewClient("http://localhost:8080", "tok")
		require.NoError(t, err)
		assert.NotNil(t, c)
	})
}

func TestListParamsValues(t *testing.T) {
	t.Run("zero params encode empty", func(t *testing.T) {
		assert.Equal(t, "", ListParams{}.Values().Encode())
	})

	t.Run("equal params encode identically", func(t *testing.T) {
		a := ListParams{Type: "concept", Search: "graph", Page: 2, Limit: 50}
		b := ListParams{Limit: 50, Page: 2, Search: "graph", Type: "concept"}
		assert.Equal(t, a.Values().Encode(), b.Values().Encode())
	})

	t.Run("zero ints omitted", func(t *testing.T) {
		v := ListParams{Status: "doing"}.Values()
		assert.Equal(t, "status=doing", v.Encode())
	})
}

func TestClientRequests(t *testing.T) {
	t.Run("attaches session cookie and request ID", func(t *testing.T) {
		var gotCookie, gotReqID string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if c, err := r.Cookie("sibyl_access_token"); err == nil {
				gotCookie = c.Value
			}
			gotReqID = r.Header.Get("X-Request-ID")
			json.NewEncoder(w).Encode(EntityListResponse{})
		}))
		defer srv.Close()

		c, err := NewClient(srv.URL, "secret-token")
		require.NoError(t, err)

		_, err = c.ListEntities(context.Background(), ListParams{})
		require.NoError(t, err)
		assert.Equal(t, "secret-token", gotCookie)
		assert.NotEmpty(t, gotReqID)
	})

	t.Run("omits cookie when token empty", func(t *testing.T) {
		var hadCookie bool
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, err := r.Cookie("sibyl_access_token")
			hadCookie = err == nil
			json.NewEncoder(w).Encode(Stats{})
		}))
		defer srv.Close()

		c, err := NewClient(srv.URL, "")
		require.NoError(t, err)

		_, err = c.Stats(context.Background())
		require.NoError(t, err)
		assert.False(t, hadCookie)
	})

	t.Run("sends canonical query string", func(t *testing.T) {
		var gotQuery string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotQuery = r.URL.RawQuery
			json.NewEncoder(w).Encode(TaskListResponse{})
		}))
		defer srv.Close()

		c, err := NewClient(srv.URL, "tok")
		require.NoError(t, err)

		_, err = c.ListTasks(context.Background(), ListParams{Status: "review", Page: 3, Limit: 20})
		require.NoError(t, err)
		assert.Equal(t, "limit=20&page=3&status=review", gotQuery)
	})

	t.Run("404 becomes APIError detectable with IsNotFound", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			json.NewEncoder(w).Encode(map[string]string{"error": "entity not found"})
		}))
		defer srv.Close()

		c, err := NewClient(srv.URL, "tok")
		require.NoError(t, err)

		_, err = c.GetEntity(context.Background(), "00000000-0000-0000-0000-000000000000")
		require.Error(t, err)
		assert.True(t, IsNotFound(err))
		assert.Contains(t, err.Error(), "entity not found")
	})

	t.Run("500 is not IsNotFound", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		c, err := NewClient(srv.URL, "tok")
		require.NoError(t, err)

		_, err = c.GetTask(context.Background(), "00000000-0000-0000-0000-000000000000")
		require.Error(t, err)
		assert.False(t, IsNotFound(err))
	})

	t.Run("patch sends JSON body", func(t *testing.T) {
		var gotMethod, gotContentType string
		var gotBody TaskPatch
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotMethod = r.Method
			gotContentType = r.Header.Get("Content-Type")
			json.NewDecoder(r.Body).Decode(&gotBody)
			json.NewEncoder(w).Encode(Task{})
		}))
		defer srv.Close()

		c, err := NewClient(srv.URL, "tok")
		require.NoError(t, err)

		status := TaskStatusDoing
		_, err = c.UpdateTask(context.Background(), "00000000-0000-0000-0000-000000000000", TaskPatch{Status: &status})
		require.NoError(t, err)
		assert.Equal(t, http.MethodPatch, gotMethod)
		assert.Equal(t, "application/json", gotContentType)
		require.NotNil(t, gotBody.Status)
		assert.Equal(t, TaskStatusDoing, *gotBody.Status)
	})
}

func TestClientRestoreValidation(t *testing.T) {
	t.Run("invalid document sends no request", func(t *testing.T) {
		var requests atomic.Int64
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requests.Add(1)
			json.NewEncoder(w).Encode(RestoreResponse{})
		}))
		defer srv.Close()

		c, err := NewClient(srv.URL, "tok")
		require.NoError(t, err)

		doc := `{"version":"1.0","entities":[],"entity_count":0,"relationship_count":0}`
		_, err = c.Restore(context.Background(), []byte(doc))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid backup file format")
		assert.Equal(t, int64(0), requests.Load())
	})

	t.Run("valid document is uploaded", func(t *testing.T) {
		var requests atomic.Int64
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requests.Add(1)
			json.NewEncoder(w).Encode(RestoreResponse{Success: true, EntityCount: 4})
		}))
		defer srv.Close()

		c, err := NewClient(srv.URL, "tok")
		require.NoError(t, err)

		out, err := c.Restore(context.Background(), []byte(validBackupJSON))
		require.NoError(t, err)
		assert.True(t, out.Success)
		assert.Equal(t, 4, out.EntityCount)
		assert.Equal(t, int64(1), requests.Load())
	})
}
