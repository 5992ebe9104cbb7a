package spaces

import (
	"context"
	"sync"
	"time"

	"github.com/mocraimer/chrome-spaces/internal/domain/entity"
	"github.com/mocraimer/chrome-spaces/internal/domain/repository"
	"github.com/mocraimer/chrome-spaces/internal/logging"
)

// persistQueue is a write-behind cache with a one-entry queue per space id.
// Mutations are debounced on a trailing-edge timer so a burst of rapid tab
// events produces a single durable write, and at most one write per space id
// is ever in flight: a mutation arriving during a write is held and merged
// into the next write instead of interleaving.
type persistQueue struct {
	ctx      context.Context // carries the logger; writes outlive request contexts
	store    repository.SpaceRepository
	interval time.Duration
	attempts int
	backoff  time.Duration

	mu       sync.Mutex
	pending  map[entity.SpaceID]*pendingWrite
	degraded map[entity.SpaceID]bool
	wg       sync.WaitGroup
}

type pendingWrite struct {
	timer    *time.Timer
	next     *entity.Space // latest snapshot awaiting its debounce window or an in-flight write
	deleteOp bool          // pending removal instead of upsert
	inFlight bool
}

func newPersistQueue(ctx context.Context, store repository.SpaceRepository, interval time.Duration, attempts int, backoff time.Duration) *persistQueue {
	if interval <= 0 {
		interval = 400 * time.Millisecond
	}
	if backoff <= 0 {
		backoff = 250 * time.Millisecond
	}
	return &persistQueue{
		ctx:      ctx,
		store:    store,
		interval: interval,
		attempts: attempts,
		backoff:  backoff,
		pending:  make(map[entity.SpaceID]*pendingWrite),
		degraded: make(map[entity.SpaceID]bool),
	}
}

// Enqueue schedules a durable write of the given snapshot after the debounce
// window. The caller must hand over a clone it will not mutate again.
func (q *persistQueue) Enqueue(space *entity.Space) {
	id := space.ID

	q.mu.Lock()
	defer q.mu.Unlock()

	p := q.pending[id]
	if p == nil {
		p = &pendingWrite{}
		q.pending[id] = p
	}
	p.next = space
	p.deleteOp = false

	if p.timer != nil {
		p.timer.Stop()
	}
	p.timer = time.AfterFunc(q.interval, func() { q.fire(id) })
}

// EnqueueDelete schedules removal of the record. Deletes are user-initiated
// and skip the debounce window, but still serialize behind an in-flight write.
func (q *persistQueue) EnqueueDelete(id entity.SpaceID) {
	q.mu.Lock()
	p := q.pending[id]
	if p == nil {
		p = &pendingWrite{}
		q.pending[id] = p
	}
	p.next = nil
	p.deleteOp = true
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
	q.mu.Unlock()

	q.fire(id)
}

// fire promotes the pending mutation for id into an in-flight write. If a
// write is already in flight the pending mutation stays queued; completion
// re-fires.
func (q *persistQueue) fire(id entity.SpaceID) {
	q.mu.Lock()
	p := q.pending[id]
	if p == nil || p.inFlight {
		q.mu.Unlock()
		return
	}
	snapshot, del := p.next, p.deleteOp
	if snapshot == nil && !del {
		delete(q.pending, id)
		q.mu.Unlock()
		return
	}
	p.next = nil
	p.deleteOp = false
	p.inFlight = true
	q.wg.Add(1)
	q.mu.Unlock()

	go q.write(id, snapshot, del)
}

func (q *persistQueue) write(id entity.SpaceID, snapshot *entity.Space, del bool) {
	err := q.attempt(id, snapshot, del)

	q.mu.Lock()
	p := q.pending[id]
	p.inFlight = false
	if err != nil {
		q.degraded[id] = true
	} else {
		delete(q.degraded, id)
	}
	hasNext := p.next != nil || p.deleteOp
	if !hasNext {
		delete(q.pending, id)
	}
	q.mu.Unlock()

	// Re-fire before releasing the wait group so Flush never observes a
	// moment where a queued mutation has no write accounted for.
	if hasNext {
		q.fire(id)
	}
	q.wg.Done()
}

// attempt runs the durable write with bounded retries. After exhaustion the
// mutation survives only in memory; the caller keeps operating and the space
// is reported as degraded.
func (q *persistQueue) attempt(id entity.SpaceID, snapshot *entity.Space, del bool) error {
	log := logging.FromContext(q.ctx)

	var err error
	for i := 0; i <= q.attempts; i++ {
		if i > 0 {
			time.Sleep(q.backoff * time.Duration(i))
		}
		if del {
			err = q.store.Delete(q.ctx, id)
		} else {
			err = q.store.Save(q.ctx, snapshot)
		}
		if err == nil {
			metricStoreWrites.Inc()
			return nil
		}
		log.Warn().Err(err).
			Str("space_id", string(id)).
			Int("attempt", i+1).
			Msg("durable write failed")
	}

	metricStoreWriteFailures.Inc()
	log.Error().Err(err).
		Str("space_id", string(id)).
		Msg("durable write retries exhausted, keeping mutation in memory only")
	return err
}

// Flush forces every pending mutation to be written now and waits for all
// in-flight writes to finish. Called before process suspension.
func (q *persistQueue) Flush(ctx context.Context) error {
	q.mu.Lock()
	ids := make([]entity.SpaceID, 0, len(q.pending))
	for id, p := range q.pending {
		if p.timer != nil {
			p.timer.Stop()
			p.timer = nil
		}
		ids = append(ids, id)
	}
	q.mu.Unlock()

	for _, id := range ids {
		q.fire(id)
	}

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Degraded reports whether the latest durable write for id failed.
func (q *persistQueue) Degraded(id entity.SpaceID) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.degraded[id]
}
