package spaces

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mocraimer/chrome-spaces/internal/domain/entity"
)

// stepClock is a manual clock advancing one second per reading.
type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func newStepClock() *stepClock {
	return &stepClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

func newTestManager(t *testing.T, store *fakeStore, archive *fakeArchive, maxArchived int) *Manager {
	t.Helper()
	return NewManager(queueCtx(), store, archive, ManagerOptions{
		DebounceInterval: 10 * time.Millisecond,
		RetryBackoff:     time.Millisecond,
		MaxArchived:      maxArchived,
		Clock:            newStepClock().Now,
	})
}

func TestManager_CreateAndGet(t *testing.T) {
	ctx := queueCtx()
	store := newFakeStore()
	m := newTestManager(t, store, newFakeArchive(), 5)

	created := m.Create(ctx, "sp-1", []string{"https://google.com"})
	assert.Equal(t, "google.com", created.Name)

	got, err := m.Get("sp-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"https://google.com"}, got.URLs)

	_, err = m.Get("missing")
	assert.ErrorIs(t, err, entity.ErrSpaceNotFound)

	require.Eventually(t, func() bool {
		return store.record("sp-1") != nil
	}, 2*time.Second, 5*time.Millisecond)
}

func TestManager_Upsert_CreatesThenMutatesInPlace(t *testing.T) {
	ctx := queueCtx()
	store := newFakeStore()
	m := newTestManager(t, store, newFakeArchive(), 5)

	first := m.Upsert(ctx, "sp-1", func(s *entity.Space) {
		s.SetURLs([]string{"https://google.com"}, s.LastModified)
	})
	require.NotNil(t, first)
	assert.Equal(t, entity.SpaceID("sp-1"), first.ID)
	assert.Equal(t, []string{"https://google.com"}, first.URLs)

	second := m.Upsert(ctx, "sp-1", func(s *entity.Space) {
		s.URLs = append(s.URLs, "https://go.dev")
	})
	assert.Equal(t, []string{"https://google.com", "https://go.dev"}, second.URLs)
	assert.True(t, second.LastModified.After(first.LastModified))

	// Returned snapshot is a copy: mutating it must not leak into the manager.
	second.URLs[0] = "https://mutated.invalid"
	got, err := m.Get("sp-1")
	require.NoError(t, err)
	assert.Equal(t, "https://google.com", got.URLs[0])

	require.Eventually(t, func() bool {
		rec := store.record("sp-1")
		return rec != nil && len(rec.URLs) == 2
	}, 2*time.Second, 5*time.Millisecond)
}

func TestManager_Rename_RejectionLeavesNameUnchanged(t *testing.T) {
	ctx := queueCtx()
	m := newTestManager(t, newFakeStore(), newFakeArchive(), 5)

	m.Create(ctx, "sp-1", []string{"https://google.com"})

	err := m.Rename(ctx, "sp-1", "   ")
	assert.ErrorIs(t, err, entity.ErrNameRejected)

	got, err := m.Get("sp-1")
	require.NoError(t, err)
	assert.Equal(t, "google.com", got.Name)

	require.NoError(t, m.Rename(ctx, "sp-1", "  Work  "))
	got, _ = m.Get("sp-1")
	assert.Equal(t, "Work", got.Name)
}

func TestManager_Rename_UnknownSpace(t *testing.T) {
	m := newTestManager(t, newFakeStore(), newFakeArchive(), 5)
	assert.ErrorIs(t, m.Rename(queueCtx(), "missing", "Work"), entity.ErrSpaceNotFound)
}

func TestManager_Archive_MovesRecordIntact(t *testing.T) {
	ctx := queueCtx()
	store := newFakeStore()
	archive := newFakeArchive()
	m := newTestManager(t, store, archive, 5)

	m.Create(ctx, "sp-1", []string{"https://a.com", "https://b.com"})
	require.NoError(t, m.Rename(ctx, "sp-1", "Work"))

	require.NoError(t, m.Archive(ctx, "sp-1"))

	_, err := m.Get("sp-1")
	assert.ErrorIs(t, err, entity.ErrSpaceNotFound, "archived space leaves the active set")

	archived, err := archive.FindByID(ctx, "sp-1")
	require.NoError(t, err)
	require.NotNil(t, archived)
	assert.Equal(t, "Work", archived.Space.Name)
	assert.Equal(t, []string{"https://a.com", "https://b.com"}, archived.Space.URLs)

	// Idempotent when already archived
	require.NoError(t, m.Archive(ctx, "sp-1"))

	// Unknown everywhere is NotFound
	assert.ErrorIs(t, m.Archive(ctx, "missing"), entity.ErrSpaceNotFound)

	// The active record is removed from the durable store
	require.Eventually(t, func() bool {
		return store.record("sp-1") == nil
	}, 2*time.Second, 5*time.Millisecond)
}

func TestManager_Archive_EvictsOldestBeyondCapacity(t *testing.T) {
	ctx := queueCtx()
	archive := newFakeArchive()
	m := newTestManager(t, newFakeStore(), archive, 5)

	// Six closes against capacity five; the step clock orders LastModified
	ids := []entity.SpaceID{"sp-1", "sp-2", "sp-3", "sp-4", "sp-5", "sp-6"}
	for _, id := range ids {
		m.Create(ctx, id, []string{"https://example.com/" + string(id)})
	}
	for _, id := range ids {
		require.NoError(t, m.Archive(ctx, id))
	}

	count, err := archive.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(5), count, "archive size never exceeds its capacity")

	oldest, err := archive.FindByID(ctx, "sp-1")
	require.NoError(t, err)
	assert.Nil(t, oldest, "the entry with the smallest LastModified is evicted")

	for _, id := range ids[1:] {
		rec, err := archive.FindByID(ctx, id)
		require.NoError(t, err)
		assert.NotNil(t, rec)
	}
}

func TestManager_RestoreArchived_PreservesIDAndName(t *testing.T) {
	ctx := queueCtx()
	archive := newFakeArchive()
	m := newTestManager(t, newFakeStore(), archive, 5)

	m.Create(ctx, "sp-1", []string{"https://a.com"})
	require.NoError(t, m.Rename(ctx, "sp-1", "Work"))
	require.NoError(t, m.Archive(ctx, "sp-1"))

	restored, err := m.RestoreArchived(ctx, "sp-1")
	require.NoError(t, err)
	assert.Equal(t, entity.SpaceID("sp-1"), restored.ID)
	assert.Equal(t, "Work", restored.Name)
	assert.Equal(t, []string{"https://a.com"}, restored.URLs)

	got, err := m.Get("sp-1")
	require.NoError(t, err)
	assert.Equal(t, "Work", got.Name)

	gone, err := archive.FindByID(ctx, "sp-1")
	require.NoError(t, err)
	assert.Nil(t, gone, "restore removes the archive entry")

	_, err = m.RestoreArchived(ctx, "sp-1")
	assert.ErrorIs(t, err, entity.ErrSpaceNotFound)
}

func TestManager_DeleteArchived(t *testing.T) {
	ctx := queueCtx()
	m := newTestManager(t, newFakeStore(), newFakeArchive(), 5)

	m.Create(ctx, "sp-1", []string{"https://a.com"})
	require.NoError(t, m.Archive(ctx, "sp-1"))

	require.NoError(t, m.DeleteArchived(ctx, "sp-1"))
	assert.ErrorIs(t, m.DeleteArchived(ctx, "sp-1"), entity.ErrSpaceNotFound)
}

func TestManager_Hydrate(t *testing.T) {
	ctx := queueCtx()
	store := newFakeStore()
	require.NoError(t, store.Save(ctx, &entity.Space{
		ID:           "sp-1",
		Name:         "Work",
		URLs:         []string{"https://a.com"},
		LastModified: time.Now(),
	}))

	m := newTestManager(t, store, newFakeArchive(), 5)
	require.NoError(t, m.Hydrate(ctx))

	got, err := m.Get("sp-1")
	require.NoError(t, err)
	assert.Equal(t, "Work", got.Name)
}

func TestManager_ListNewestFirst(t *testing.T) {
	ctx := queueCtx()
	m := newTestManager(t, newFakeStore(), newFakeArchive(), 5)

	m.Create(ctx, "sp-old", []string{"https://a.com"})
	m.Create(ctx, "sp-new", []string{"https://b.com"})

	list := m.List()
	require.Len(t, list, 2)
	assert.Equal(t, entity.SpaceID("sp-new"), list[0].ID)
}
