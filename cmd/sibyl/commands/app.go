package commands

import (
	"context"
	"fmt"
	"net/url"
	"os"

	"github.com/sibyl-dev/sibyl-go/internal/cache"
	"github.com/sibyl-dev/sibyl-go/internal/config"
	"github.com/sibyl-dev/sibyl-go/internal/mutate"
	"github.com/sibyl-dev/sibyl-go/internal/printer"
	"github.com/sibyl-dev/sibyl-go/internal/snapshot"
	"github.com/sibyl-dev/sibyl-go/pkg/sibyl"
)

// app wires one command invocation: config, REST client, the query cache,
// the mutation runner and (optionally) warm-start persistence. The cache is
// created here and torn down in close - never held as a package global.
type app struct {
	cfg    *config.Config
	client *sibyl.Client
	cache  *cache.Store
	runner *mutate.Runner
	snap   *snapshot.Store
}

// newApp resolves configuration (flags override file values), builds the
// client stack, and seeds the cache from the warm-start snapshot when one
// is configured.
func newApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	client, err := sibyl.NewClient(cfg.Server.URL, cfg.Server.AccessToken)
	if err != nil {
		return nil, err
	}

	store := cache.New(cache.Options{
		StaleTime: cfg.StaleTime(),
		GCTime:    cfg.GCTime(),
	})

	a := &app{
		cfg:    cfg,
		client: client,
		cache:  store,
		runner: &mutate.Runner{
			Cache:    store,
			Registry: mutate.NewRegistry(),
			Notifier: printer.Toast{},
		},
	}

	if path := cfg.SnapshotPath(); path != "" {
		snap, err := snapshot.Open(path)
		if err != nil {
			// Warm start is an optimization; a broken snapshot db must not
			// block the command.
			printer.Warning("snapshot unavailable: %v\n", err)
		} else {
			a.snap = snap
			if _, err := snap.Load(store); err != nil {
				printer.Warning("snapshot load failed: %v\n", err)
			}
		}
	}

	return a, nil
}

// close persists the cache for the next invocation and releases resources.
func (a *app) close() {
	if a.snap != nil {
		if err := a.snap.Save(a.cache.Dump()); err != nil {
			printer.Warning("snapshot save failed: %v\n", err)
		}
		a.snap.Close()
	}
	a.cache.Close()
}

// loadConfig reads the config file and applies flag overrides. With a
// --server flag a missing file is fine; without one it is an error with
// a pointer at how to fix it.
func loadConfig() (*config.Config, error) {
	path := flagConfig
	if path == "" {
		var err error
		path, err = config.DefaultPath()
		if err != nil {
			return nil, err
		}
	}

	cfg, err := config.Load(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
		if flagServer == "" {
			return nil, printer.Error(
				"no configuration found",
				fmt.Sprintf("No config file at %s and no --server flag given.", path),
				[]string{
					"Create a config file:\n  mkdir -p ~/.sibyl && echo 'server:\n    url: http://localhost:8080' > ~/.sibyl/config.yml",
					"Or pass the backend explicitly:\n  sibyl --server http://localhost:8080 ...",
				},
			)
		}
		cfg = &config.Config{}
	}

	if flagServer != "" {
		cfg.Server.URL = flagServer
	}
	if flagToken != "" {
		cfg.Server.AccessToken = flagToken
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// entityIDs lists current entity IDs for short-ID resolution.
func (a *app) entityIDs(ctx context.Context) ([]string, error) {
	resp, err := a.fetchEntityList(ctx, sibyl.ListParams{Limit: 500})
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(resp.Entities))
	for _, e := range resp.Entities {
		ids = append(ids, e.ID)
	}
	return ids, nil
}

// taskIDs lists current task IDs for short-ID resolution.
func (a *app) taskIDs(ctx context.Context) ([]string, error) {
	resp, err := a.fetchTaskList(ctx, sibyl.ListParams{Limit: 500})
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(resp.Tasks))
	for _, t := range resp.Tasks {
		ids = append(ids, t.ID)
	}
	return ids, nil
}

// Cache keys for the CLI's resource hooks. List keys embed the canonical
// parameter encoding so differing filters land in distinct slots.

func entityListKey(p sibyl.ListParams) cache.Key {
	return cache.ListKey("entity", p.Values())
}

func taskListKey(p sibyl.ListParams) cache.Key {
	return cache.ListKey("task", p.Values())
}

func statsKey() cache.Key {
	return cache.ListKey("stats", url.Values{})
}

// fetchEntityList reads the entity list through the cache.
func (a *app) fetchEntityList(ctx context.Context, p sibyl.ListParams) (*sibyl.EntityListResponse, error) {
	return cache.Fetch(ctx, a.cache, entityListKey(p), func(ctx context.Context) (*sibyl.EntityListResponse, error) {
		return a.client.ListEntities(ctx, p)
	})
}

// fetchTaskList reads the task list through the cache.
func (a *app) fetchTaskList(ctx context.Context, p sibyl.ListParams) (*sibyl.TaskListResponse, error) {
	return cache.Fetch(ctx, a.cache, taskListKey(p), func(ctx context.Context) (*sibyl.TaskListResponse, error) {
		return a.client.ListTasks(ctx, p)
	})
}

// fetchEntity reads one entity through the cache.
func (a *app) fetchEntity(ctx context.Context, id string) (*sibyl.Entity, error) {
	return cache.Fetch(ctx, a.cache, cache.DetailKey("entity", id), func(ctx context.Context) (*sibyl.Entity, error) {
		return a.client.GetEntity(ctx, id)
	})
}

// fetchTask reads one task through the cache.
func (a *app) fetchTask(ctx context.Context, id string) (*sibyl.Task, error) {
	return cache.Fetch(ctx, a.cache, cache.DetailKey("task", id), func(ctx context.Context) (*sibyl.Task, error) {
		return a.client.GetTask(ctx, id)
	})
}
