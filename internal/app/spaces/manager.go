// Package spaces implements the space lifecycle and persistence engine: the
// in-memory authoritative space map with write-coalescing persistence, the
// window-event reconciler, and the startup restore coordinator.
package spaces

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/mocraimer/chrome-spaces/internal/domain/entity"
	"github.com/mocraimer/chrome-spaces/internal/domain/repository"
	"github.com/mocraimer/chrome-spaces/internal/logging"
)

// ManagerOptions tunes the manager. Zero values fall back to defaults.
type ManagerOptions struct {
	DebounceInterval time.Duration
	RetryAttempts    int
	RetryBackoff     time.Duration
	MaxArchived      int
	Clock            func() time.Time
}

// Manager owns the canonical in-memory map of active spaces and mediates all
// reads and writes against the durable store. Mutations update memory
// synchronously and schedule a coalesced durable write; archive transitions
// are written through immediately.
type Manager struct {
	store   repository.SpaceRepository
	archive repository.ArchiveRepository
	queue   *persistQueue
	clock   func() time.Time

	maxArchived int

	mu     sync.RWMutex
	active map[entity.SpaceID]*entity.Space
}

// NewManager wires the manager against its durable repositories. The context
// carries the logger used by background writes.
func NewManager(ctx context.Context, store repository.SpaceRepository, archive repository.ArchiveRepository, opts ManagerOptions) *Manager {
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	maxArchived := opts.MaxArchived
	if maxArchived <= 0 {
		maxArchived = 25
	}
	return &Manager{
		store:       store,
		archive:     archive,
		queue:       newPersistQueue(ctx, store, opts.DebounceInterval, opts.RetryAttempts, opts.RetryBackoff),
		clock:       clock,
		maxArchived: maxArchived,
		active:      make(map[entity.SpaceID]*entity.Space),
	}
}

// Hydrate loads all persisted active spaces into memory. Runs once at startup
// before any events are processed.
func (m *Manager) Hydrate(ctx context.Context) error {
	stored, err := m.store.FindAll(ctx)
	if err != nil {
		return fmt.Errorf("hydrate spaces: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, space := range stored {
		if err := space.Validate(); err != nil {
			logging.FromContext(ctx).Warn().
				Str("space_id", string(space.ID)).
				Msg("skipping invalid persisted space")
			continue
		}
		m.active[space.ID] = space
	}

	logging.FromContext(ctx).Info().
		Int("count", len(m.active)).
		Msg("hydrated active spaces")
	return nil
}

// Get returns a copy of the active space, or entity.ErrSpaceNotFound.
func (m *Manager) Get(id entity.SpaceID) (*entity.Space, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	space, ok := m.active[id]
	if !ok {
		return nil, entity.ErrSpaceNotFound
	}
	return space.Clone(), nil
}

// List returns copies of all active spaces, newest first.
func (m *Manager) List() []*entity.Space {
	m.mu.RLock()
	spaces := make([]*entity.Space, 0, len(m.active))
	for _, space := range m.active {
		spaces = append(spaces, space.Clone())
	}
	m.mu.RUnlock()

	sort.Slice(spaces, func(i, j int) bool {
		return spaces[i].LastModified.After(spaces[j].LastModified)
	})
	return spaces
}

// Create registers a freshly observed space and schedules its first persist.
func (m *Manager) Create(ctx context.Context, id entity.SpaceID, urls []string) *entity.Space {
	now := m.clock()
	space := entity.NewSpace(id, urls, now)

	m.mu.Lock()
	m.active[id] = space
	snapshot := space.Clone()
	m.mu.Unlock()

	logging.FromContext(ctx).Info().
		Str("space_id", string(id)).
		Str("name", space.Name).
		Int("url_count", len(urls)).
		Msg("space created")

	m.queue.Enqueue(snapshot)
	return snapshot
}

// Upsert applies a transformation to the current (or newly initialized)
// record, bumps LastModified, and schedules a persist.
func (m *Manager) Upsert(ctx context.Context, id entity.SpaceID, mutate func(*entity.Space)) *entity.Space {
	now := m.clock()

	m.mu.Lock()
	space, ok := m.active[id]
	if !ok {
		space = entity.NewSpace(id, nil, now)
		m.active[id] = space
	}
	mutate(space)
	space.Touch(now)
	snapshot := space.Clone()
	m.mu.Unlock()

	m.queue.Enqueue(snapshot)
	return snapshot
}

// SetTabs replaces the full ordered tab URL sequence for a space.
func (m *Manager) SetTabs(ctx context.Context, id entity.SpaceID, urls []string) error {
	m.mu.Lock()
	space, ok := m.active[id]
	if !ok {
		m.mu.Unlock()
		return entity.ErrSpaceNotFound
	}
	space.SetURLs(urls, m.clock())
	snapshot := space.Clone()
	m.mu.Unlock()

	logging.FromContext(ctx).Debug().
		Str("space_id", string(id)).
		Int("url_count", len(urls)).
		Msg("space tabs updated")

	m.queue.Enqueue(snapshot)
	return nil
}

// Rename validates and applies a new user-assigned name.
func (m *Manager) Rename(ctx context.Context, id entity.SpaceID, name string) error {
	m.mu.Lock()
	space, ok := m.active[id]
	if !ok {
		m.mu.Unlock()
		return entity.ErrSpaceNotFound
	}
	if err := space.Rename(name, m.clock()); err != nil {
		m.mu.Unlock()
		return err
	}
	snapshot := space.Clone()
	m.mu.Unlock()

	logging.FromContext(ctx).Info().
		Str("space_id", string(id)).
		Str("name", snapshot.Name).
		Msg("space renamed")

	m.queue.Enqueue(snapshot)
	return nil
}

// Archive moves an active space into the closed-space archive. Idempotent if
// the space is already archived. The archive write is durable immediately:
// the window is gone and a crash must not lose the record.
func (m *Manager) Archive(ctx context.Context, id entity.SpaceID) error {
	m.mu.Lock()
	space, ok := m.active[id]
	if ok {
		delete(m.active, id)
	}
	m.mu.Unlock()

	if !ok {
		existing, err := m.archive.FindByID(ctx, id)
		if err != nil {
			return err
		}
		if existing != nil {
			return nil // already archived
		}
		return entity.ErrSpaceNotFound
	}

	archived := &entity.ArchivedSpace{
		Space:      *space.Clone(),
		ArchivedAt: m.clock(),
	}
	if err := m.archive.Save(ctx, archived); err != nil {
		return fmt.Errorf("archive space %s: %w", id, err)
	}

	evicted, err := m.archive.EvictOldest(ctx, m.maxArchived)
	if err != nil {
		logging.FromContext(ctx).Warn().Err(err).Msg("archive eviction failed")
	} else if evicted > 0 {
		metricArchiveEvictions.Add(float64(evicted))
	}

	// Remove the active record behind any in-flight write for this id
	m.queue.EnqueueDelete(id)

	logging.FromContext(ctx).Info().
		Str("space_id", string(id)).
		Str("name", archived.Space.Name).
		Msg("space archived")
	return nil
}

// ArchivedList returns all archived spaces, newest first.
func (m *Manager) ArchivedList(ctx context.Context) ([]*entity.ArchivedSpace, error) {
	return m.archive.FindAll(ctx)
}

// DeleteArchived permanently destroys an archived space.
func (m *Manager) DeleteArchived(ctx context.Context, id entity.SpaceID) error {
	if err := m.archive.Delete(ctx, id); err != nil {
		return err
	}
	logging.FromContext(ctx).Info().
		Str("space_id", string(id)).
		Msg("archived space deleted")
	return nil
}

// RestoreArchived moves an archived space back into the active set, keeping
// its original id and name. The caller is responsible for creating a window
// and rebinding it.
func (m *Manager) RestoreArchived(ctx context.Context, id entity.SpaceID) (*entity.Space, error) {
	archived, err := m.archive.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if archived == nil {
		return nil, entity.ErrSpaceNotFound
	}

	if err := m.archive.Delete(ctx, id); err != nil {
		return nil, err
	}

	space := archived.Space.Clone()
	space.Touch(m.clock())

	m.mu.Lock()
	m.active[id] = space
	snapshot := space.Clone()
	m.mu.Unlock()

	logging.FromContext(ctx).Info().
		Str("space_id", string(id)).
		Str("name", snapshot.Name).
		Msg("archived space restored to active set")

	m.queue.Enqueue(snapshot)
	return snapshot, nil
}

// Degraded reports whether the latest durable write for a space failed and
// the record currently survives only in memory.
func (m *Manager) Degraded(id entity.SpaceID) bool {
	return m.queue.Degraded(id)
}

// Flush forces all pending durable writes. Called on process suspension.
func (m *Manager) Flush(ctx context.Context) error {
	return m.queue.Flush(ctx)
}
