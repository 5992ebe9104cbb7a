package spaces

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/mocraimer/chrome-spaces/internal/application/port"
	"github.com/mocraimer/chrome-spaces/internal/domain/entity"
)

// fakeBrowser simulates the host browser: it tracks live windows and their
// ordered tabs, and emits lifecycle events the way a connected extension
// would.
type fakeBrowser struct {
	mu      sync.Mutex
	events  chan port.Event
	windows map[entity.WindowID][]string
	nextWin entity.WindowID
	nextTab entity.TabID
}

func newFakeBrowser() *fakeBrowser {
	return &fakeBrowser{
		events:  make(chan port.Event, 256),
		windows: make(map[entity.WindowID][]string),
		nextWin: 100,
	}
}

func (b *fakeBrowser) Events() <-chan port.Event { return b.events }

func (b *fakeBrowser) TabURLs(_ context.Context, windowID entity.WindowID) ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	urls, ok := b.windows[windowID]
	if !ok {
		return nil, errors.New("unknown window")
	}
	return append([]string(nil), urls...), nil
}

func (b *fakeBrowser) CreateWindow(_ context.Context, urls []string) (entity.WindowID, error) {
	b.mu.Lock()
	b.nextWin++
	id := b.nextWin
	b.windows[id] = append([]string(nil), urls...)
	b.mu.Unlock()

	b.events <- port.Event{Type: port.EventWindowCreated, WindowID: id, WindowType: entity.WindowTypeNormal}
	for i, url := range urls {
		b.emitTab(port.EventTabCreated, id, url, i)
	}
	return id, nil
}

func (b *fakeBrowser) CloseWindow(_ context.Context, windowID entity.WindowID) error {
	b.mu.Lock()
	_, ok := b.windows[windowID]
	delete(b.windows, windowID)
	b.mu.Unlock()
	if ok {
		b.events <- port.Event{Type: port.EventWindowRemoved, WindowID: windowID}
	}
	return nil
}

// openWindow announces a window without tabs, as the browser does.
func (b *fakeBrowser) openWindow(windowType entity.WindowType) entity.WindowID {
	b.mu.Lock()
	b.nextWin++
	id := b.nextWin
	b.windows[id] = nil
	b.mu.Unlock()
	b.events <- port.Event{Type: port.EventWindowCreated, WindowID: id, WindowType: windowType}
	return id
}

// addTab appends a tab and emits the corresponding event.
func (b *fakeBrowser) addTab(windowID entity.WindowID, url string) {
	b.mu.Lock()
	b.windows[windowID] = append(b.windows[windowID], url)
	index := len(b.windows[windowID]) - 1
	b.mu.Unlock()
	b.emitTab(port.EventTabCreated, windowID, url, index)
}

func (b *fakeBrowser) announce(windowID entity.WindowID) {
	b.events <- port.Event{Type: port.EventWindowCreated, WindowID: windowID, WindowType: entity.WindowTypeNormal}
}

func (b *fakeBrowser) seedWindow(windowID entity.WindowID) {
	b.mu.Lock()
	if _, ok := b.windows[windowID]; !ok {
		b.windows[windowID] = nil
	}
	b.mu.Unlock()
}

func (b *fakeBrowser) emitTab(t port.EventType, windowID entity.WindowID, url string, index int) {
	b.mu.Lock()
	b.nextTab++
	tabID := b.nextTab
	b.mu.Unlock()
	b.events <- port.Event{Type: t, WindowID: windowID, TabID: tabID, URL: url, Index: index}
}

// fakeStore is an in-memory SpaceRepository with write counting and failure
// injection.
type fakeStore struct {
	mu      sync.Mutex
	records map[entity.SpaceID]*entity.Space
	saves   map[entity.SpaceID]int
	failN   int // fail the next N writes
	block   chan struct{}
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		records: make(map[entity.SpaceID]*entity.Space),
		saves:   make(map[entity.SpaceID]int),
	}
}

func (s *fakeStore) Save(_ context.Context, space *entity.Space) error {
	if block := s.blocker(); block != nil {
		<-block
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failN > 0 {
		s.failN--
		return errors.New("store write failed")
	}
	s.records[space.ID] = space.Clone()
	s.saves[space.ID]++
	return nil
}

func (s *fakeStore) FindByID(_ context.Context, id entity.SpaceID) (*entity.Space, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if space, ok := s.records[id]; ok {
		return space.Clone(), nil
	}
	return nil, nil
}

func (s *fakeStore) FindAll(_ context.Context) ([]*entity.Space, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := make([]*entity.Space, 0, len(s.records))
	for _, space := range s.records {
		all = append(all, space.Clone())
	}
	return all, nil
}

func (s *fakeStore) Delete(_ context.Context, id entity.SpaceID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, id)
	return nil
}

func (s *fakeStore) saveCount(id entity.SpaceID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves[id]
}

func (s *fakeStore) record(id entity.SpaceID) *entity.Space {
	s.mu.Lock()
	defer s.mu.Unlock()
	if space, ok := s.records[id]; ok {
		return space.Clone()
	}
	return nil
}

func (s *fakeStore) setFailures(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failN = n
}

// blockWrites makes Save wait until the returned channel is closed.
func (s *fakeStore) blockWrites() chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.block = make(chan struct{})
	return s.block
}

func (s *fakeStore) blocker() chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.block
}

// fakeArchive is an in-memory ArchiveRepository.
type fakeArchive struct {
	mu      sync.Mutex
	records map[entity.SpaceID]*entity.ArchivedSpace
}

func newFakeArchive() *fakeArchive {
	return &fakeArchive{records: make(map[entity.SpaceID]*entity.ArchivedSpace)}
}

func (a *fakeArchive) Save(_ context.Context, archived *entity.ArchivedSpace) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	cp := *archived
	cp.Space = *archived.Space.Clone()
	a.records[archived.Space.ID] = &cp
	return nil
}

func (a *fakeArchive) FindByID(_ context.Context, id entity.SpaceID) (*entity.ArchivedSpace, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if rec, ok := a.records[id]; ok {
		cp := *rec
		return &cp, nil
	}
	return nil, nil
}

func (a *fakeArchive) FindAll(_ context.Context) ([]*entity.ArchivedSpace, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	all := make([]*entity.ArchivedSpace, 0, len(a.records))
	for _, rec := range a.records {
		cp := *rec
		all = append(all, &cp)
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].Space.LastModified.After(all[j].Space.LastModified)
	})
	return all, nil
}

func (a *fakeArchive) Delete(_ context.Context, id entity.SpaceID) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.records[id]; !ok {
		return entity.ErrSpaceNotFound
	}
	delete(a.records, id)
	return nil
}

func (a *fakeArchive) EvictOldest(_ context.Context, keepCount int) (int64, error) {
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

func (a *fakeArchive) Count(_ context.Context) (int64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return int64(len(a.records)), nil
}
