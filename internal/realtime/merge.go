package realtime

import (
	"context"

	"github.com/sibyl-dev/sibyl-go/internal/cache"
	"github.com/sibyl-dev/sibyl-go/internal/mutate"
)

// Merger folds push notifications into the query cache. Invalidation is
// targeted: the detail slot of the pushed resource plus every list slot of
// its kind. Connection-state transitions alone never invalidate anything;
// the one exception is a reconnection after a drop, which triggers a single
// blanket invalidation to recover pushes missed while disconnected.
type Merger struct {
	Cache    *cache.Store
	Registry *mutate.Registry

	// OnEvent and OnState, when set, observe traffic for display (the
	// watch command's event tail and connection indicator).
	OnEvent func(Event)
	OnState func(ConnState)
	OnError func(error)
}

// Run consumes the source until its channels close or ctx is cancelled.
func (m *Merger) Run(ctx context.Context, src Source) {
	events := src.Events()
	errs := src.Errors()
	states := src.States()

	dropped := false

	for events != nil || errs != nil || states != nil {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			m.HandleEvent(ev)

		case st, ok := <-states:
			if !ok {
				states = nil
				continue
			}
			dropped = m.handleState(st, dropped)

		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			if m.OnError != nil {
				m.OnError(err)
			}
		}
	}
}

// HandleEvent applies one push notification. If a mutation on the same
// resource is pending, the invalidation is deferred until it resolves: the
// mutation's outcome (commit or revert) is authoritative, and the follow-up
// invalidation lets a subsequent read pick up any further server-side
// change. Without a pending mutation the invalidation applies immediately.
func (m *Merger) HandleEvent(ev Event) {
	if m.OnEvent != nil {
		m.OnEvent(ev)
	}

	invalidate := func() {
		m.Cache.Invalidate(cache.DetailKey(ev.Kind, ev.ID))
		m.Cache.InvalidateListsOf(ev.Kind)
	}

	ref := mutate.ResourceRef{Kind: ev.Kind, ID: ev.ID}
	if m.Registry == nil || !m.Registry.Defer(ref, invalidate) {
		invalidate()
	}
}

// handleState tracks drops and performs the one-shot blanket invalidation
// on reconnection. Returns the updated dropped flag.
func (m *Merger) handleState(st ConnState, dropped bool) bool {
	if m.OnState != nil {
		m.OnState(st)
	}

	switch st {
	case StateDisconnected:
		return true
	case StateConnected:
		if dropped {
			m.Cache.InvalidateAll()
		}
		return false
	default:
		return dropped
	}
}
