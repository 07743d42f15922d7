// Package mutate implements the optimistic mutation controller: every write
// (field edit, status change, delete) is applied locally before the network
// call, then reconciled against the server response or rolled back on
// failure. The rollback logic lives here once, parameterized by apply and
// commit functions, instead of being reimplemented per call site.
package mutate

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sibyl-dev/sibyl-go/internal/cache"
)

// Outcome is the terminal state of a mutation.
type Outcome int

const (
	// OutcomePending is the transient in-flight state, visible only through
	// Registry.Pending while the commit call is running.
	OutcomePending Outcome = iota

	// OutcomeCommitted means the server accepted the write; the displayed
	// value is the server's returned representation.
	OutcomeCommitted

	// OutcomeRolledBack means the write failed; the displayed value was
	// reverted to the pre-mutation snapshot.
	OutcomeRolledBack

	// OutcomeNoop means a guard discarded the edit locally - no request was
	// issued and no notification surfaced. Distinct from a failed write.
	OutcomeNoop
)

func (o Outcome) String() string {
	switch o {
	case OutcomePending:
		return "pending"
	case OutcomeCommitted:
		return "committed"
	case OutcomeRolledBack:
		return "rolled_back"
	case OutcomeNoop:
		return "noop"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Result carries a mutation's terminal outcome. Value is meaningful only
// when Outcome is OutcomeCommitted; Err only when OutcomeRolledBack.
type Result[T any] struct {
	Outcome Outcome
	Value   T
	Err     error
}

// Notifier surfaces user-visible failure notifications (the toast analog).
// Guard no-ops never notify; only failed writes do.
type Notifier interface {
	Notify(format string, args ...any)
}

// ResourceRef identifies the target of a mutation.
type ResourceRef struct {
	Kind string
	ID   string
}

// Registry tracks in-flight mutations per resource and holds invalidations
// deferred until they resolve. Mutations on the same resource are NOT
// serialized: a second mutation may start while one is pending, and the
// server applies last-write-wins. Callers aware of rapid double-submission
// races must guard at a higher level.
type Registry struct {
	mu       sync.Mutex
	pending  map[ResourceRef]int
	deferred map[ResourceRef][]func()
}

// NewRegistry creates an empty pending-mutation registry.
func NewRegistry() *Registry {
	return &Registry{
		pending:  make(map[ResourceRef]int),
		deferred: make(map[ResourceRef][]func()),
	}
}

// Pending reports whether any mutation on ref is in flight.
func (r *Registry) Pending(ref ResourceRef) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pending[ref] > 0
}

// Defer schedules fn to run once the last pending mutation on ref resolves.
// Returns false - without scheduling fn - when nothing is pending; the
// caller should then run fn immediately. This is how a push invalidation
// yields to an in-flight mutation instead of clobbering its optimistic
// value mid-flight.
func (r *Registry) Defer(ref ResourceRef, fn func()) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.pending[ref] == 0 {
		return false
	}
	r.deferred[ref] = append(r.deferred[ref], fn)
	return true
}

// begin marks one mutation on ref as in flight.
func (r *Registry) begin(ref ResourceRef) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending[ref]++
}

// finish resolves one mutation on ref. When the last one resolves, deferred
// invalidations run - after the mutation's own outcome has been applied, so
// a subsequent read picks up any further server-side change.
func (r *Registry) finish(ref ResourceRef) {
	r.mu.Lock()
	r.pending[ref]--
	var fns []func()
	if r.pending[ref] <= 0 {
		delete(r.pending, ref)
		fns = r.deferred[ref]
		delete(r.deferred, ref)
	}
	r.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// Runner wires mutations to the shared cache, the pending registry and the
// notification surface. One Runner serves the whole application.
type Runner struct {
	Cache    *cache.Store
	Registry *Registry
	Notifier Notifier

	// CommitTimeout bounds each network write so a pending mutation is
	// always terminal. Zero means DefaultCommitTimeout.
	CommitTimeout time.Duration
}

// DefaultCommitTimeout bounds a single mutation's network write.
const DefaultCommitTimeout = 30 * time.Second

// Mutation is one optimistic write against a single resource.
type Mutation[T any] struct {
	Ref ResourceRef // Target resource

	// Key is the detail cache slot overwritten with the server value on
	// success. Leave zero when T is a single field rather than the full
	// resource representation: the detail slot is then invalidated instead
	// of written, so the next read refetches the full record.
	Key cache.Key

	Snapshot T // Pre-mutation value, restored on failure
	Value    T // Optimistic value, applied before the network call

	// Apply sets the locally displayed value. Called synchronously with
	// Value before Commit is dispatched, with the server representation on
	// success, and with Snapshot on failure.
	Apply func(T)

	// Commit performs the network write exactly once and returns the
	// server's authoritative representation. No automatic retry: retries
	// are reserved for idle background refetches, where a duplicate request
	// has no side effects.
	Commit func(context.Context) (T, error)
}

// Run executes one mutation to a terminal outcome:
//
//  1. Apply(Value) runs synchronously - the user never observes an
//     intermediate old-value flash.
//  2. Commit is issued once, bounded by CommitTimeout.
//  3. Success: Apply(server value), cache.Write of the server value (it is
//     authoritative over the optimistic guess - normalized timestamps,
//     server-computed fields), list slots of the kind invalidated.
//  4. Failure: Apply(Snapshot) reverts, Notifier surfaces the error.
//
// Either way the pending flag clears and deferred push invalidations run.
func Run[T any](ctx context.Context, r *Runner, m Mutation[T]) Result[T] {
	if m.Apply != nil {
		m.Apply(m.Value)
	}

	r.Registry.begin(m.Ref)
	defer r.Registry.finish(m.Ref)

	timeout := r.CommitTimeout
	if timeout <= 0 {
		timeout = DefaultCommitTimeout
	}
	commitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	server, err := m.Commit(commitCtx)
	if err != nil {
		if m.Apply != nil {
			m.Apply(m.Snapshot)
		}
		if r.Notifier != nil {
			r.Notifier.Notify("update failed for %s %s: %v", m.Ref.Kind, m.Ref.ID, err)
		}
		return Result[T]{Outcome: OutcomeRolledBack, Err: err}
	}

	if m.Apply != nil {
		m.Apply(server)
	}
	if r.Cache != nil {
		if m.Key == (cache.Key{}) {
			r.Cache.Invalidate(cache.DetailKey(m.Ref.Kind, m.Ref.ID))
		} else {
			r.Cache.Write(m.Key, server)
		}
		r.Cache.InvalidateListsOf(m.Ref.Kind)
	}

	return Result[T]{Outcome: OutcomeCommitted, Value: server}
}

// Delete executes an optimistic delete: the detail slot is dropped from
// observation by invalidation rather than a value write, since there is no
// server representation to reconcile against.
func Delete(ctx context.Context, r *Runner, ref ResourceRef, key cache.Key, commit func(context.Context) error) Result[struct{}] {
	r.Registry.begin(ref)
	defer r.Registry.finish(ref)

	timeout := r.CommitTimeout
	if timeout <= 0 {
		timeout = DefaultCommitTimeout
	}
	commitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := commit(commitCtx); err != nil {
		if r.Notifier != nil {
			r.Notifier.Notify("delete failed for %s %s: %v", ref.Kind, ref.ID, err)
		}
		return Result[struct{}]{Outcome: OutcomeRolledBack, Err: err}
	}

	if r.Cache != nil {
		r.Cache.Invalidate(key)
		r.Cache.InvalidateListsOf(ref.Kind)
	}

	return Result[struct{}]{Outcome: OutcomeCommitted}
}
