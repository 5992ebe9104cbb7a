package spaces

import (
	"context"
	"sync"
	"time"

	"github.com/mocraimer/chrome-spaces/internal/application/port"
	"github.com/mocraimer/chrome-spaces/internal/domain/entity"
	"github.com/mocraimer/chrome-spaces/internal/logging"
)

// RestoreCoordinator re-creates windows for persisted spaces at startup and
// tracks which newly created windows belong to which existing space ids.
//
// Matching is by exact ordered URL signature: before a window-creation request
// is issued the space id is registered under the intended signature, and the
// reconciler claims the entry when it observes a matching unbound window. An
// unclaimed entry expires after the timeout; the restore is logged as failed
// and never retried, so repeated failures cannot storm duplicate windows.
type RestoreCoordinator struct {
	browser port.Browser
	manager *Manager
	enabled bool
	timeout time.Duration

	mu      sync.Mutex
	pending map[string]*pendingRestore
}

type pendingRestore struct {
	spaceID entity.SpaceID
	timer   *time.Timer
}

// NewRestoreCoordinator builds the coordinator. When enabled is false Run is
// a no-op; Track still works for user-initiated archive restores.
func NewRestoreCoordinator(browser port.Browser, manager *Manager, enabled bool, timeout time.Duration) *RestoreCoordinator {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &RestoreCoordinator{
		browser: browser,
		manager: manager,
		enabled: enabled,
		timeout: timeout,
		pending: make(map[string]*pendingRestore),
	}
}

// Run replays all persisted active spaces into real windows. Call once at
// process start, after Manager.Hydrate and after the reconciler is consuming
// events.
func (c *RestoreCoordinator) Run(ctx context.Context) {
	log := logging.FromContext(ctx)

	if !c.enabled {
		log.Info().Msg("auto-restore disabled, skipping startup restore")
		return
	}

	spaces := c.manager.List()
	if len(spaces) == 0 {
		log.Debug().Msg("no persisted spaces to restore")
		return
	}

	log.Info().Int("count", len(spaces)).Msg("restoring persisted spaces")

	for _, space := range spaces {
		if len(space.URLs) == 0 {
			// Only a space still being constructed can have no tabs; there is
			// no window content to replay.
			continue
		}
		c.Track(ctx, space.ID, space.URLs)
		if _, err := c.browser.CreateWindow(ctx, space.URLs); err != nil {
			log.Error().Err(err).
				Str("space_id", string(space.ID)).
				Msg("failed to create window for persisted space")
		}
	}
}

// Track registers an expected window signature for a space about to be
// re-created. The entry self-cancels after the restore timeout.
func (c *RestoreCoordinator) Track(ctx context.Context, spaceID entity.SpaceID, urls []string) {
	signature := entity.URLSignature(urls)

	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.pending[signature]; ok {
		existing.timer.Stop()
	}

	p := &pendingRestore{spaceID: spaceID}
	p.timer = time.AfterFunc(c.timeout, func() { c.expire(ctx, signature, spaceID) })
	c.pending[signature] = p
}

// Claim returns the space id registered for this window signature, removing
// the entry. The reconciler calls this before minting a new space id.
func (c *RestoreCoordinator) Claim(signature string) (entity.SpaceID, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	p, ok := c.pending[signature]
	if !ok {
		return "", false
	}
	p.timer.Stop()
	delete(c.pending, signature)
	metricRestoreMatches.Inc()
	return p.spaceID, true
}

func (c *RestoreCoordinator) expire(ctx context.Context, signature string, spaceID entity.SpaceID) {
	c.mu.Lock()
	p, ok := c.pending[signature]
	if ok && p.spaceID == spaceID {
		delete(c.pending, signature)
	}
	c.mu.Unlock()

	if !ok {
		return
	}

	metricRestoreTimeouts.Inc()
	logging.FromContext(ctx).Warn().
		Str("space_id", string(spaceID)).
		Msg("restore not matched to a window in time; space stays active but unbound")
}
