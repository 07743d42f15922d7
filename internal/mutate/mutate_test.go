package mutate

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sibyl-dev/sibyl-go/internal/cache"
)

// recordingNotifier captures Notify calls for assertions.
type recordingNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (n *recordingNotifier) Notify(format string, args ...any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, fmt.Sprintf(format, args...))
}

func (n *recordingNotifier) all() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.messages...)
}

func newTestRunner(t *testing.T) (*Runner, *cache.Store, *recordingNotifier) {
	t.Helper()
	store := cache.New(cache.Options{StaleTime: time.Hour})
	t.Cleanup(store.Close)
	notifier := &recordingNotifier{}
	return &Runner{
		Cache:    store,
		Registry: NewRegistry(),
		Notifier: notifier,
	}, store, notifier
}

func TestRunCommitted(t *testing.T) {
	r, store, notifier := newTestRunner(t)

	ref := ResourceRef{Kind: "task", ID: "t1"}
	key := cache.DetailKey("task", "t1")
	listKey := cache.ListKey("task", nil)
	store.Write(listKey, "some list")

	var applied []string
	result := Run(context.Background(), r, Mutation[string]{
		Ref:      ref,
		Key:      key,
		Snapshot: "old",
		Value:    "optimistic",
		Apply:    func(v string) { applied = append(applied, v) },
		Commit: func(context.Context) (string, error) {
			return "server", nil
		},
	})

	require.Equal(t, OutcomeCommitted, result.Outcome)
	assert.Equal(t, "server", result.Value)

	// Optimistic value first, then the server's authoritative one.
	assert.Equal(t, []string{"optimistic", "server"}, applied)

	// Detail slot holds the server value; list slots of the kind go stale.
	got, ok := store.Peek(key)
	require.True(t, ok)
	assert.Equal(t, "server", got)
	assert.True(t, store.Stale(listKey))

	assert.Empty(t, notifier.all())
	assert.False(t, r.Registry.Pending(ref))
}

func TestRunRolledBack(t *testing.T) {
	r, store, notifier := newTestRunner(t)

	ref := ResourceRef{Kind: "entity", ID: "e1"}
	key := cache.DetailKey("entity", "e1")
	store.Write(key, "cached")
	boom := errors.New("conflict")

	var applied []string
	result := Run(context.Background(), r, Mutation[string]{
		Ref:      ref,
		Key:      key,
		Snapshot: "old",
		Value:    "optimistic",
		Apply:    func(v string) { applied = append(applied, v) },
		Commit: func(context.Context) (string, error) {
			return "", boom
		},
	})

	require.Equal(t, OutcomeRolledBack, result.Outcome)
	require.ErrorIs(t, result.Err, boom)

	// The optimistic value was shown, then reverted to the snapshot.
	assert.Equal(t, []string{"optimistic", "old"}, applied)

	// The cached value is untouched on rollback.
	got, ok := store.Peek(key)
	require.True(t, ok)
	assert.Equal(t, "cached", got)
	assert.False(t, store.Stale(key))

	messages := notifier.all()
	require.Len(t, messages, 1)
	assert.Contains(t, messages[0], "entity e1")
	assert.Contains(t, messages[0], "conflict")

	assert.False(t, r.Registry.Pending(ref))
}

func TestRunZeroKeyInvalidatesDetail(t *testing.T) {
	r, store, _ := newTestRunner(t)

	ref := ResourceRef{Kind: "entity", ID: "e1"}
	detail := cache.DetailKey("entity", "e1")
	store.Write(detail, "full record")

	// A single-field commit must not overwrite the full record slot with
	// the field string; it invalidates the slot instead.
	result := Run(context.Background(), r, Mutation[string]{
		Ref:      ref,
		Snapshot: "old name",
		Value:    "new name",
		Commit: func(context.Context) (string, error) {
			return "new name", nil
		},
	})

	require.Equal(t, OutcomeCommitted, result.Outcome)
	got, ok := store.Peek(detail)
	require.True(t, ok)
	assert.Equal(t, "full record", got)
	assert.True(t, store.Stale(detail))
}

func TestRunCommitTimeout(t *testing.T) {
	r, _, notifier := newTestRunner(t)
	r.CommitTimeout = 20 * time.Millisecond

	result := Run(context.Background(), r, Mutation[string]{
		Ref:      ResourceRef{Kind: "task", ID: "t1"},
		Snapshot: "old",
		Value:    "new",
		Commit: func(ctx context.Context) (string, error) {
			<-ctx.Done()
			return "", ctx.Err()
		},
	})

	require.Equal(t, OutcomeRolledBack, result.Outcome)
	require.ErrorIs(t, result.Err, context.DeadlineExceeded)
	assert.Len(t, notifier.all(), 1)
}

func TestRegistryPendingWindow(t *testing.T) {
	r, _, _ := newTestRunner(t)
	ref := ResourceRef{Kind: "task", ID: "t1"}

	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan Result[string])

	go func() {
		done <- Run(context.Background(), r, Mutation[string]{
			Ref:      ref,
			Snapshot: "old",
			Value:    "new",
			Commit: func(context.Context) (string, error) {
				close(started)
				<-release
				return "server", nil
			},
		})
	}()

	<-started
	assert.True(t, r.Registry.Pending(ref))
	assert.False(t, r.Registry.Pending(ResourceRef{Kind: "task", ID: "other"}))

	close(release)
	result := <-done
	require.Equal(t, OutcomeCommitted, result.Outcome)
	assert.False(t, r.Registry.Pending(ref))
}

func TestRegistryDefer(t *testing.T) {
	t.Run("nothing pending runs nothing and returns false", func(t *testing.T) {
		reg := NewRegistry()
		called := false
		scheduled := reg.Defer(ResourceRef{Kind: "task", ID: "t1"}, func() { called = true })
		assert.False(t, scheduled)
		assert.False(t, called)
	})

	t.Run("deferred invalidation runs after the mutation resolves", func(t *testing.T) {
		r, store, _ := newTestRunner(t)
		ref := ResourceRef{Kind: "task", ID: "t1"}
		key := cache.DetailKey("task", "t1")

		started := make(chan struct{})
		release := make(chan struct{})
		done := make(chan Result[string])

		go func() {
			done <- Run(context.Background(), r, Mutation[string]{
				Ref:      ref,
				Key:      key,
				Snapshot: "old",
				Value:    "new",
				Commit: func(context.Context) (string, error) {
					close(started)
					<-release
					return "server", nil
				},
			})
		}()

		<-started
		// A push invalidation arriving mid-flight defers instead of
		// clobbering the optimistic value.
		scheduled := r.Registry.Defer(ref, func() { store.Invalidate(key) })
		require.True(t, scheduled)
		assert.False(t, store.Stale(key))

		close(release)
		result := <-done
		require.Equal(t, OutcomeCommitted, result.Outcome)

		// The deferred invalidation ran after the server value was written,
		// so the slot holds the server value but is marked for refetch.
		got, ok := store.Peek(key)
		require.True(t, ok)
		assert.Equal(t, "server", got)
		assert.True(t, store.Stale(key))
	})

	t.Run("deferred runs once after the last overlapping mutation", func(t *testing.T) {
		reg := NewRegistry()
		ref := ResourceRef{Kind: "entity", ID: "e1"}

		reg.begin(ref)
		reg.begin(ref)

		var calls int
		require.True(t, reg.Defer(ref, func() { calls++ }))

		reg.finish(ref)
		assert.Equal(t, 0, calls, "must wait for the last pending mutation")

		reg.finish(ref)
		assert.Equal(t, 1, calls)
	})
}

func TestRunOverlappingMutationsNotSerialized(t *testing.T) {
	// Two mutations on the same resource may be in flight at once; the
	// registry counts them rather than queueing.
	r, _, _ := newTestRunner(t)
	ref := ResourceRef{Kind: "task", ID: "t1"}

	firstStarted := make(chan struct{})
	release := make(chan struct{})
	firstDone := make(chan Result[string])

	go func() {
		firstDone <- Run(context.Background(), r, Mutation[string]{
			Ref: ref, Snapshot: "a", Value: "b",
			Commit: func(context.Context) (string, error) {
				close(firstStarted)
				<-release
				return "b", nil
			},
		})
	}()

	<-firstStarted
	second := Run(context.Background(), r, Mutation[string]{
		Ref: ref, Snapshot: "b", Value: "c",
		Commit: func(context.Context) (string, error) {
			return "c", nil
		},
	})
	require.Equal(t, OutcomeCommitted, second.Outcome)
	assert.True(t, r.Registry.Pending(ref), "first mutation still in flight")

	close(release)
	first := <-firstDone
	require.Equal(t, OutcomeCommitted, first.Outcome)
	assert.False(t, r.Registry.Pending(ref))
}

func TestDelete(t *testing.T) {
	t.Run("committed delete invalidates detail and lists", func(t *testing.T) {
		r, store, notifier := newTestRunner(t)
		ref := ResourceRef{Kind: "entity", ID: "e1"}
		key := cache.DetailKey("entity", "e1")
		listKey := cache.ListKey("entity", nil)
		store.Write(key, "record")
		store.Write(listKey, "list")

		result := Delete(context.Background(), r, ref, key, func(context.Context) error {
			return nil
		})

		require.Equal(t, OutcomeCommitted, result.Outcome)
		assert.True(t, store.Stale(key))
		assert.True(t, store.Stale(listKey))
		assert.Empty(t, notifier.all())
	})

	t.Run("failed delete notifies and leaves the cache alone", func(t *testing.T) {
		r, store, notifier := newTestRunner(t)
		ref := ResourceRef{Kind: "entity", ID: "e1"}
		key := cache.DetailKey("entity", "e1")
		store.Write(key, "record")

		result := Delete(context.Background(), r, ref, key, func(context.Context) error {
			return errors.New("forbidden")
		})

		require.Equal(t, OutcomeRolledBack, result.Outcome)
		assert.False(t, store.Stale(key))
		messages := notifier.all()
		require.Len(t, messages, 1)
		assert.Contains(t, messages[0], "delete failed")
	})
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "pending", OutcomePending.String())
	assert.Equal(t, "committed", OutcomeCommitted.String())
	assert.Equal(t, "rolled_back", OutcomeRolledBack.String())
	assert.Equal(t, "noop", OutcomeNoop.String())
}
