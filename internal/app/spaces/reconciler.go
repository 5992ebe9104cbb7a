package spaces

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mocraimer/chrome-spaces/internal/application/port"
	"github.com/mocraimer/chrome-spaces/internal/domain/entity"
	"github.com/mocraimer/chrome-spaces/internal/logging"
)

// Reconciler translates browser lifecycle signals into manager mutations and
// owns the window-id to space-id binding table. All events are handled on the
// single Run goroutine, which gives per-window ordering for free; the binding
// table is additionally locked because the query and command APIs read it from
// other goroutines.
//
// Per live window id the protocol is a small state machine: Unbound until the
// first tab is attached, then Bound until the window-removed signal archives
// the space. A removed signal for an unbound id is a no-op, and the browser
// may recycle the id later for an unrelated window.
type Reconciler struct {
	browser port.Browser
	manager *Manager
	restore *RestoreCoordinator
	grace   time.Duration

	mu       sync.Mutex
	bindings map[entity.WindowID]entity.SpaceID
	bound    map[entity.SpaceID]entity.WindowID
	known    map[entity.WindowID]bool // window_created seen, trackable type
	ignored  map[entity.WindowID]bool // popup/devtools windows
	buffers  map[entity.WindowID]*eventBuffer

	newSpaceID func() entity.SpaceID
}

// eventBuffer holds tab events that arrived before the window-creation signal
// for their window id. The timer drops the buffer if the signal never comes.
type eventBuffer struct {
	events []port.Event
	timer  *time.Timer
}

// NewReconciler wires the reconciler. restore may be shared with the
// coordinator that registers pending restores.
func NewReconciler(browser port.Browser, manager *Manager, restore *RestoreCoordinator, grace time.Duration) *Reconciler {
	if grace <= 0 {
		grace = 2 * time.Second
	}
	return &Reconciler{
		browser:    browser,
		manager:    manager,
		restore:    restore,
		grace:      grace,
		bindings:   make(map[entity.WindowID]entity.SpaceID),
		bound:      make(map[entity.SpaceID]entity.WindowID),
		known:      make(map[entity.WindowID]bool),
		ignored:    make(map[entity.WindowID]bool),
		buffers:    make(map[entity.WindowID]*eventBuffer),
		newSpaceID: func() entity.SpaceID { return entity.SpaceID(uuid.NewString()) },
	}
}

// Run consumes browser events until the context is canceled or the event
// stream closes. Errors are recovered per event; nothing may escape and kill
// the loop, since that would desynchronize the binding table from reality.
func (r *Reconciler) Run(ctx context.Context) {
	log := logging.FromContext(ctx)
	log.Info().Msg("reconciler started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("reconciler stopped")
			return
		case ev, ok := <-r.browser.Events():
			if !ok {
				log.Info().Msg("browser event stream closed")
				return
			}
			r.handle(ctx, ev)
		}
	}
}

func (r *Reconciler) handle(ctx context.Context, ev port.Event) {
	switch ev.Type {
	case port.EventWindowCreated:
		r.handleWindowCreated(ctx, ev)
	case port.EventWindowRemoved:
		r.handleWindowRemoved(ctx, ev)
	case port.EventTabCreated, port.EventTabUpdated, port.EventTabRemoved, port.EventTabMoved:
		r.handleTabEvent(ctx, ev)
	default:
		logging.FromContext(ctx).Warn().
			Str("type", string(ev.Type)).
			Msg("unknown browser event type")
	}
}

func (r *Reconciler) handleWindowCreated(ctx context.Context, ev port.Event) {
	r.mu.Lock()
	if !ev.WindowType.Trackable() {
		r.ignored[ev.WindowID] = true
		r.dropBufferLocked(ev.WindowID)
		r.mu.Unlock()
		logging.FromContext(ctx).Debug().
			Int64("window_id", int64(ev.WindowID)).
			Str("window_type", string(ev.WindowType)).
			Msg("ignoring untracked window type")
		return
	}

	r.known[ev.WindowID] = true
	buffered := r.takeBufferLocked(ev.WindowID)
	r.mu.Unlock()

	// Replay tab events that raced ahead of the creation signal
	for _, e := range buffered {
		r.handleTabEvent(ctx, e)
	}
}

func (r *Reconciler) handleTabEvent(ctx context.Context, ev port.Event) {
	r.mu.Lock()
	if r.ignored[ev.WindowID] {
		r.mu.Unlock()
		return
	}

	if spaceID, ok := r.bindings[ev.WindowID]; ok {
		r.mu.Unlock()
		r.refresh(ctx, ev.WindowID, spaceID)
		return
	}

	if !r.known[ev.WindowID] {
		r.bufferLocked(ctx, ev)
		r.mu.Unlock()
		return
	}
	r.mu.Unlock()

	r.bindWindow(ctx, ev.WindowID)
}

func (r *Reconciler) handleWindowRemoved(ctx context.Context, ev port.Event) {
	r.mu.Lock()
	spaceID, wasBound := r.bindings[ev.WindowID]
	delete(r.bindings, ev.WindowID)
	if wasBound {
		delete(r.bound, spaceID)
	}
	delete(r.known, ev.WindowID)
	delete(r.ignored, ev.WindowID)
	r.dropBufferLocked(ev.WindowID)
	r.mu.Unlock()

	if !wasBound {
		// Already closed or never tracked
		return
	}

	if err := r.manager.Archive(ctx, spaceID); err != nil {
		logging.FromContext(ctx).Error().Err(err).
			Str("space_id", string(spaceID)).
			Msg("failed to archive space for closed window")
	}
}

// refresh re-reads the complete current tab set from the browser and replaces
// the space's URL sequence. Partial diffs are never applied, so a missed
// event cannot cause drift.
func (r *Reconciler) refresh(ctx context.Context, windowID entity.WindowID, spaceID entity.SpaceID) {
	urls, err := r.browser.TabURLs(ctx, windowID)
	if err != nil {
		logging.FromContext(ctx).Warn().Err(err).
			Int64("window_id", int64(windowID)).
			Msg("failed to read tab set")
		return
	}
	if len(urls) == 0 {
		// The browser closes zero-tab windows itself; an empty read means the
		// window is going away and the removal signal will follow.
		return
	}
	if err := r.manager.SetTabs(ctx, spaceID, urls); err != nil {
		if errors.Is(err, entity.ErrSpaceNotFound) {
			// The space was archived while its window stayed open. Drop the
			// stale binding and bind the window fresh off this event.
			r.unbind(windowID, spaceID)
			logging.FromContext(ctx).Info().
				Str("space_id", string(spaceID)).
				Int64("window_id", int64(windowID)).
				Msg("bound space no longer active, rebinding window")
			r.bindWindow(ctx, windowID)
			return
		}
		logging.FromContext(ctx).Warn().Err(err).
			Str("space_id", string(spaceID)).
			Msg("failed to apply tab set")
	}
}

// bindWindow establishes the binding for a known but unbound window. A
// pending restore with a matching signature wins; next an active-but-unbound
// space with the same signature is rebound; otherwise a new space is minted.
func (r *Reconciler) bindWindow(ctx context.Context, windowID entity.WindowID) {
	log := logging.FromContext(ctx)

	urls, err := r.browser.TabURLs(ctx, windowID)
	if err != nil {
		log.Warn().Err(err).
			Int64("window_id", int64(windowID)).
			Msg("failed to read tab set for unbound window")
		return
	}
	if len(urls) == 0 {
		// No tabs known yet; a later tab event will try again
		return
	}

	signature := entity.URLSignature(urls)

	if r.restore != nil {
		if spaceID, ok := r.restore.Claim(signature); ok {
			r.bind(windowID, spaceID)
			log.Info().
				Str("space_id", string(spaceID)).
				Int64("window_id", int64(windowID)).
				Msg("restored window rebound to existing space")
			return
		}
	}

	if spaceID, ok := r.findUnboundBySignature(signature); ok {
		r.bind(windowID, spaceID)
		log.Info().
			Str("space_id", string(spaceID)).
			Int64("window_id", int64(windowID)).
			Msg("window rebound to unbound space by signature")
		return
	}

	spaceID := r.newSpaceID()
	r.bind(windowID, spaceID)
	r.manager.Create(ctx, spaceID, urls)
}

// findUnboundBySignature scans active spaces for one with the given tab
// signature and no live window. Keeps restore-timeout survivors rebindable.
func (r *Reconciler) findUnboundBySignature(signature string) (entity.SpaceID, bool) {
	for _, space := range r.manager.List() {
		if space.Signature() != signature {
			continue
		}
		r.mu.Lock()
		_, isBound := r.bound[space.ID]
		r.mu.Unlock()
		if !isBound {
			return space.ID, true
		}
	}
	return "", false
}

func (r *Reconciler) bind(windowID entity.WindowID, spaceID entity.SpaceID) {
	r.mu.Lock()
	r.bindings[windowID] = spaceID
	r.bound[spaceID] = windowID
	r.mu.Unlock()
}

func (r *Reconciler) unbind(windowID entity.WindowID, spaceID entity.SpaceID) {
	r.mu.Lock()
	delete(r.bindings, windowID)
	if w, ok := r.bound[spaceID]; ok && w == windowID {
		delete(r.bound, spaceID)
	}
	r.mu.Unlock()
}

// Bind associates a window with a space from outside the event loop, used
// when a command restores an archived space into a window it just created.
func (r *Reconciler) Bind(windowID entity.WindowID, spaceID entity.SpaceID) {
	r.bind(windowID, spaceID)
}

// WindowFor returns the live window bound to a space, if any.
func (r *Reconciler) WindowFor(spaceID entity.SpaceID) (entity.WindowID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.bound[spaceID]
	return w, ok
}

// SpaceFor returns the space bound to a live window, if any.
func (r *Reconciler) SpaceFor(windowID entity.WindowID) (entity.SpaceID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.bindings[windowID]
	return s, ok
}

func (r *Reconciler) bufferLocked(ctx context.Context, ev port.Event) {
	buf := r.buffers[ev.WindowID]
	if buf == nil {
		buf = &eventBuffer{}
		windowID := ev.WindowID
		buf.timer = time.AfterFunc(r.grace, func() { r.expireBuffer(ctx, windowID) })
		r.buffers[ev.WindowID] = buf
	}
	buf.events = append(buf.events, ev)
}

func (r *Reconciler) takeBufferLocked(windowID entity.WindowID) []port.Event {
	buf := r.buffers[windowID]
	if buf == nil {
		return nil
	}
	buf.timer.Stop()
	delete(r.buffers, windowID)
	return buf.events
}

func (r *Reconciler) dropBufferLocked(windowID entity.WindowID) {
	if buf := r.buffers[windowID]; buf != nil {
		buf.timer.Stop()
		delete(r.buffers, windowID)
	}
}

func (r *Reconciler) expireBuffer(ctx context.Context, windowID entity.WindowID) {
	r.mu.Lock()
	buf := r.buffers[windowID]
	delete(r.buffers, windowID)
	r.mu.Unlock()

	if buf == nil {
		return
	}

	metricDroppedTabEvents.Add(float64(len(buf.events)))
	logging.FromContext(ctx).Warn().
		Int64("window_id", int64(windowID)).
		Int("dropped_events", len(buf.events)).
		Msg("window-creation signal never arrived, dropping buffered tab events")
}
