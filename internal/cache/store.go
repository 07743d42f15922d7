// Package cache implements the query cache shared by every resource hook in
// the client: a single store mapping query keys to last-fetched values, with
// a freshness window (stale time) and a retention window (GC time).
//
// Reads are stale-while-revalidate: a cached value is always returned
// immediately, even when stale, and a stale hit triggers one background
// refetch. A failed refetch preserves the last good value and records an
// error flag; it never clears the entry. The store is constructed explicitly
// and injected - there is no package-level singleton.
package cache

import (
	"context"
	"fmt"
	"sync"
	"time"
)

const (
	// DefaultStaleTime is how long a fetched value is considered fresh.
	DefaultStaleTime = 60 * time.Second

	// DefaultGCTime is how long an unobserved entry is retained before
	// eviction.
	DefaultGCTime = 5 * time.Minute
)

// Options configures a Store. Zero values fall back to the defaults above.
type Options struct {
	StaleTime time.Duration
	GCTime    time.Duration
}

// Store is the process-wide query cache. It is safe for concurrent use.
type Store struct {
	mu      sync.Mutex
	entries map[Key]*entry

	staleTime time.Duration
	gcTime    time.Duration
	now       func() time.Time

	done      chan struct{}
	closeOnce sync.Once
}

// entry holds one cached value plus its lifecycle state.
type entry struct {
	value      any
	hasValue   bool
	err        error // last failed background refetch, nil after success
	fetchedAt  time.Time
	lastAccess time.Time
	stale      bool          // forced staleness from Invalidate
	fetching   bool          // single-flight guard, one fetch per key at a time
	ready      chan struct{} // closed when a blocking initial fetch completes
}

// New creates a Store and starts its GC sweeper. Callers own the lifecycle:
// create at application start, Close at application end.
func New(opts Options) *Store {
	if opts.StaleTime <= 0 {
		opts.StaleTime = DefaultStaleTime
	}
	if opts.GCTime <= 0 {
		opts.GCTime = DefaultGCTime
	}

	s := &Store{
		entries:   make(map[Key]*entry),
		staleTime: opts.StaleTime,
		gcTime:    opts.GCTime,
		now:       time.Now,
		done:      make(chan struct{}),
	}

	go s.gcLoop()
	return s
}

// Close stops the GC sweeper. Safe to call multiple times.
func (s *Store) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}

// Fetch reads the slot for key, fetching through fn as needed:
//   - cached and fresh: the cached value is returned, no fetch
//   - cached and stale: the cached value is returned immediately and one
//     background refetch is started (detached from ctx - navigating away
//     does not cancel it; the response still updates the shared cache)
//   - absent: fn runs synchronously and its result populates the slot
//
// Concurrent callers of an absent key share a single fetch.
func Fetch[T any](ctx context.Context, s *Store, key Key, fn func(context.Context) (T, error)) (T, error) {
	var zero T

	for {
		s.mu.Lock()
		e, ok := s.entries[key]

		if ok && e.hasValue {
			e.lastAccess = s.now()
			v := e.value
			if s.isStale(e) && !e.fetching {
				e.fetching = true
				bg := context.WithoutCancel(ctx)
				go func() {
					rv, rerr := fn(bg)
					s.finishRefetch(key, rv, rerr)
				}()
			}
			s.mu.Unlock()

			tv, castOK := v.(T)
			if !castOK {
				return zero, fmt.Errorf("cache slot %s holds %T, not the requested type", key, v)
			}
			return tv, nil
		}

		if ok && e.fetching {
			// Another caller is performing the initial fetch; wait for it
			// and re-read the slot.
			ready := e.ready
			s.mu.Unlock()
			select {
			case <-ctx.Done():
				return zero, ctx.Err()
			case <-ready:
			}
			continue
		}

		e = &entry{
			fetching:   true,
			ready:      make(chan struct{}),
			lastAccess: s.now(),
		}
		s.entries[key] = e
		s.mu.Unlock()

		v, err := fn(ctx)

		s.mu.Lock()
		close(e.ready)
		e.ready = nil
		e.fetching = false
		if err != nil {
			// Nothing to preserve on a failed initial fetch: drop the
			// placeholder so the next caller retries.
			if s.entries[key] == e {
				delete(s.entries, key)
			}
			s.mu.Unlock()
			return zero, err
		}

		now := s.now()
		e.value = v
		e.hasValue = true
		e.err = nil
		e.stale = false
		e.fetchedAt = now
		e.lastAccess = now
		s.mu.Unlock()

		return v, nil
	}
}

// finishRefetch records the result of a background refetch. A failure keeps
// the last good value and only sets the error flag. An entry evicted while
// the refetch was in flight is repopulated - the cache is process-scoped,
// so a late response is harmless.
func (s *Store) finishRefetch(key Key, value any, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		if err != nil {
			return
		}
		e = &entry{lastAccess: s.now()}
		s.entries[key] = e
	}

	e.fetching = false
	if err != nil {
		e.err = err
		return
	}

	e.value = value
	e.hasValue = true
	e.err = nil
	e.stale = false
	e.fetchedAt = s.now()
}

// Write overwrites the slot for key with value, marking it fresh. Used after
// a successful mutation so the server's returned representation is visible
// without an extra round trip.
func (s *Store) Write(key Key, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		e = &entry{}
		s.entries[key] = e
	}

	now := s.now()
	e.value = value
	e.hasValue = true
	e.err = nil
	e.stale = false
	e.fetchedAt = now
	e.lastAccess = now
}

// Peek returns the cached value for key without triggering any fetch.
func (s *Store) Peek(key Key) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok || !e.hasValue {
		return nil, false
	}
	return e.value, true
}

// Stale reports whether the slot for key holds a value that the next read
// would refetch. Unknown or empty slots report false.
func (s *Store) Stale(key Key) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok || !e.hasValue {
		return false
	}
	return s.isStale(e)
}

// Err returns the error flag recorded by the last failed background refetch
// for key, or nil.
func (s *Store) Err(key Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[key]; ok {
		return e.err
	}
	return nil
}

// Invalidate marks the slot for key stale, so the next read refetches.
// Unknown keys are a no-op.
func (s *Store) Invalidate(key Key) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[key]; ok {
		e.stale = true
	}
}

// InvalidateMatching marks every slot whose key satisfies pred stale.
func (s *Store) InvalidateMatching(pred func(Key) bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for k, e := range s.entries {
		if pred(k) {
			e.stale = true
		}
	}
}

// InvalidateKind marks every slot of the given resource kind stale, detail
// and list queries alike.
func (s *Store) InvalidateKind(kind string) {
	s.InvalidateMatching(func(k Key) bool { return k.Kind == kind })
}

// InvalidateListsOf marks every list query of the given kind stale. List
// invalidation is deliberately broad: any list of the kind could plausibly
// include the changed resource, and precise filter matching is not worth
// the complexity.
func (s *Store) InvalidateListsOf(kind string) {
	s.InvalidateMatching(func(k Key) bool { return k.Kind == kind && k.IsList() })
}

// InvalidateAll marks every slot stale. Used once per realtime reconnection
// to recover pushes missed while disconnected.
func (s *Store) InvalidateAll() {
	s.InvalidateMatching(func(Key) bool { return true })
}

// Snapshot is one dumped cache entry, used for warm-start persistence.
type Snapshot struct {
	Key       Key
	Value     any
	FetchedAt time.Time
}

// Dump returns a copy of every populated slot.
func (s *Store) Dump() []Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snaps := make([]Snapshot, 0, len(s.entries))
	for k, e := range s.entries {
		if !e.hasValue {
			continue
		}
		snaps = append(snaps, Snapshot{Key: k, Value: e.value, FetchedAt: e.fetchedAt})
	}
	return snaps
}

// Seed inserts a previously dumped value, keeping its original fetch time so
// normal staleness rules apply (a reloaded snapshot is typically served
// stale-while-revalidate on first read). An already populated slot wins over
// the seed.
func (s *Store) Seed(key Key, value any, fetchedAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[key]; ok && (e.hasValue || e.fetching) {
		return
	}

	s.entries[key] = &entry{
		value:      value,
		hasValue:   true,
		fetchedAt:  fetchedAt,
		lastAccess: s.now(),
	}
}

// isStale reports whether the entry needs a refetch. Caller holds s.mu.
func (s *Store) isStale(e *entry) bool {
	return e.stale || s.now().Sub(e.fetchedAt) >= s.staleTime
}

// gcLoop evicts entries that have gone unobserved for the GC window.
// In-flight fetches pin their entries.
func (s *Store) gcLoop() {
	interval := s.gcTime / 4
	if interval < 100*time.Millisecond {
		interval = 100 * time.Millisecond
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *Store) sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for k, e := range s.entries {
		if e.fetching {
			continue
		}
		if now.Sub(e.lastAccess) >= s.gcTime {
			delete(s.entries, k)
		}
	}
}
