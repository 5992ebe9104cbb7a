package usecase_test

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/mocraimer/chrome-spaces/internal/app/spaces"
	"github.com/mocraimer/chrome-spaces/internal/application/port"
	"github.com/mocraimer/chrome-spaces/internal/domain/entity"
	"github.com/mocraimer/chrome-spaces/internal/logging"
)

func testContext() context.Context {
	logger := logging.NewFromConfigValues("error", "console")
	return logging.WithContext(context.Background(), logger)
}

// testEnv wires a manager, reconciler and stub browser against in-memory
// repositories.
type testEnv struct {
	store   *memoryStore
	archive *memoryArchive
	browser *stubBrowser
	manager *spaces.Manager
	rec     *spaces.Reconciler
}

func newTestEnv() *testEnv {
	store := newMemoryStore()
	archive := newMemoryArchive()
	browser := newStubBrowser()
	manager := spaces.NewManager(testContext(), store, archive, spaces.ManagerOptions{
		DebounceInterval: 10 * time.Millisecond,
		MaxArchived:      25,
	})
	rec := spaces.NewReconciler(browser, manager, nil, time.Second)
	return &testEnv{store: store, archive: archive, browser: browser, manager: manager, rec: rec}
}

// stubBrowser records commands; it never emits events, so bindings are driven
// by the tests themselves.
type stubBrowser struct {
	mu           sync.Mutex
	events       chan port.Event
	created      [][]string
	closed       []entity.WindowID
	nextWin      entity.WindowID
	failCreate   error
	failCloseErr error
}

func newStubBrowser() *stubBrowser {
	return &stubBrowser{events: make(chan port.Event), nextWin: 500}
}

func (b *stubBrowser) Events() <-chan port.Event { return b.events }

func (b *stubBrowser) TabURLs(_ context.Context, _ entity.WindowID) ([]string, error) {
	return nil, errors.New("not implemented")
}

func (b *stubBrowser) CreateWindow(_ context.Context, urls []string) (entity.WindowID, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failCreate != nil {
		return 0, b.failCreate
	}
	b.nextWin++
	b.created = append(b.created, append([]string(nil), urls...))
	return b.nextWin, nil
}

func (b *stubBrowser) CloseWindow(_ context.Context, windowID entity.WindowID) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failCloseErr != nil {
		return b.failCloseErr
	}
	b.closed = append(b.closed, windowID)
	return nil
}

func (b *stubBrowser) closedWindows() []entity.WindowID {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]entity.WindowID(nil), b.closed...)
}

func (b *stubBrowser) createdWindows() [][]string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([][]string(nil), b.created...)
}

type memoryStore struct {
	mu      sync.Mutex
	records map[entity.SpaceID]*entity.Space
}

func newMemoryStore() *memoryStore {
	return &memoryStore{records: make(map[entity.SpaceID]*entity.Space)}
}

func (s *memoryStore) Save(_ context.Context, space *entity.Space) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[space.ID] = space.Clone()
	return nil
}

func (s *memoryStore) FindByID(_ context.Context, id entity.SpaceID) (*entity.Space, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if space, ok := s.records[id]; ok {
		return space.Clone(), nil
	}
	return nil, nil
}

func (s *memoryStore) FindAll(_ context.Context) ([]*entity.Space, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := make([]*entity.Space, 0, len(s.records))
	for _, space := range s.records {
		all = append(all, space.Clone())
	}
	return all, nil
}

func (s *memoryStore) Delete(_ context.Context, id entity.SpaceID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, id)
	return nil
}

type memoryArchive struct {
	mu      sync.Mutex
	records map[entity.SpaceID]*entity.ArchivedSpace
}

func newMemoryArchive() *memoryArchive {
	return &memoryArchive{records: make(map[entity.SpaceID]*entity.ArchivedSpace)}
}

func (a *memoryArchive) Save(_ context.Context, archived *entity.ArchivedSpace) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	cp := *archived
	cp.Space = *archived.Space.Clone()
	a.records[archived.Space.ID] = &cp
	return nil
}

func (a *memoryArchive) FindByID(_ context.Context, id entity.SpaceID) (*entity.ArchivedSpace, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if rec, ok := a.records[id]; ok {
		cp := *rec
		return &cp, nil
	}
	return nil, nil
}

func (a *memoryArchive) FindAll(_ context.Context) ([]*entity.ArchivedSpace, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	all := make([]*entity.ArchivedSpace, 0, len(a.records))
	for _, rec := range a.records {
		cp := *rec
		all = append(all, &cp)
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].ArchivedAt.After(all[j].ArchivedAt)
	})
	return all, nil
}

func (a *memoryArchive) Delete(_ context.Context, id entity.SpaceID) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.records[id]; !ok {
		return entity.ErrSpaceNotFound
	}
	delete(a.records, id)
	return nil
}

func (a *memoryArchive) EvictOldest(_ context.Context, keepCount int) (int64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.records) <= keepCount {
		return 0, nil
	}
	all := make([]*entity.ArchivedSpace, 0, len(a.records))
	for _, rec := range a.records {
		all = append(all, rec)
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].Space.LastModified.Before(all[j].Space.LastModified)
	})
	var evicted int64
	for _, rec := range all[:len(a.records)-keepCount] {
		delete(a.records, rec.Space.ID)
		evicted++
	}
	return evicted, nil
}

func (a *memoryArchive) Count(_ context.Context) (int64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return int64(len(a.records)), nil
}
