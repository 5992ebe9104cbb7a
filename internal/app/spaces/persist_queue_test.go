package spaces

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mocraimer/chrome-spaces/internal/domain/entity"
	"github.com/mocraimer/chrome-spaces/internal/logging"
)

func queueCtx() context.Context {
	logger := logging.NewFromConfigValues("error", "console")
	return logging.WithContext(context.Background(), logger)
}

func snapshotAt(id entity.SpaceID, urls []string, modified time.Time) *entity.Space {
	return &entity.Space{ID: id, Name: "test", URLs: urls, LastModified: modified}
}

func TestPersistQueue_CoalescesBurst(t *testing.T) {
	store := newFakeStore()
	q := newPersistQueue(queueCtx(), store, 50*time.Millisecond, 0, time.Millisecond)

	// Ten rapid mutations inside one debounce window
	base := time.Now()
	for i := 0; i < 10; i++ {
		urls := make([]string, i+1)
		for j := range urls {
			urls[j] = "https://example.com"
		}
		q.Enqueue(snapshotAt("sp-1", urls, base.Add(time.Duration(i)*time.Millisecond)))
	}

	require.Eventually(t, func() bool {
		return store.saveCount("sp-1") > 0
	}, 2*time.Second, 5*time.Millisecond)

	// Let any stray writes land before asserting
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, 1, store.saveCount("sp-1"), "a burst must produce exactly one durable write")
	assert.Len(t, store.record("sp-1").URLs, 10, "the single write must reflect only the final state")
}

func TestPersistQueue_SerializesBehindInFlightWrite(t *testing.T) {
	store := newFakeStore()
	q := newPersistQueue(queueCtx(), store, 10*time.Millisecond, 0, time.Millisecond)

	release := store.blockWrites()

	q.Enqueue(snapshotAt("sp-1", []string{"https://a.com"}, time.Now()))

	// Wait for the first write to be in flight (blocked inside Save)
	require.Eventually(t, func() bool {
		q.mu.Lock()
		p := q.pending["sp-1"]
		inFlight := p != nil && p.inFlight
		q.mu.Unlock()
		return inFlight
	}, 2*time.Second, time.Millisecond)

	// Mutations arriving during the write are merged into the next write
	q.Enqueue(snapshotAt("sp-1", []string{"https://a.com", "https://b.com"}, time.Now()))
	q.Enqueue(snapshotAt("sp-1", []string{"https://a.com", "https://c.com"}, time.Now()))

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, store.saveCount("sp-1"), "no write may complete while the first is blocked")

	close(release)

	require.Eventually(t, func() bool {
		rec := store.record("sp-1")
		return rec != nil && len(rec.URLs) == 2 && rec.URLs[1] == "https://c.com"
	}, 2*time.Second, 5*time.Millisecond)

	assert.Equal(t, 2, store.saveCount("sp-1"), "queued mutations merge into one follow-up write")
}

func TestPersistQueue_RetryExhaustionDegrades(t *testing.T) {
	store := newFakeStore()
	q := newPersistQueue(queueCtx(), store, 10*time.Millisecond, 2, time.Millisecond)

	store.setFailures(3) // initial attempt plus both retries
	q.Enqueue(snapshotAt("sp-1", []string{"https://a.com"}, time.Now()))

	require.Eventually(t, func() bool {
		return q.Degraded("sp-1")
	}, 2*time.Second, 5*time.Millisecond)

	// The next successful write clears the degraded flag
	q.Enqueue(snapshotAt("sp-1", []string{"https://a.com"}, time.Now()))
	require.Eventually(t, func() bool {
		return !q.Degraded("sp-1") && store.saveCount("sp-1") == 1
	}, 2*time.Second, 5*time.Millisecond)
}

func TestPersistQueue_FlushForcesPendingWrites(t *testing.T) {
	store := newFakeStore()
	q := newPersistQueue(queueCtx(), store, time.Hour, 0, time.Millisecond)

	q.Enqueue(snapshotAt("sp-1", []string{"https://a.com"}, time.Now()))
	q.Enqueue(snapshotAt("sp-2", []string{"https://b.com"}, time.Now()))

	ctx, cancel := context.WithTimeout(queueCtx(), 2*time.Second)
	defer cancel()
	require.NoError(t, q.Flush(ctx))

	assert.Equal(t, 1, store.saveCount("sp-1"))
	assert.Equal(t, 1, store.saveCount("sp-2"))
}

func TestPersistQueue_DeleteRemovesRecord(t *testing.T) {
	store := newFakeStore()
	q := newPersistQueue(queueCtx(), store, 10*time.Millisecond, 0, time.Millisecond)

	q.Enqueue(snapshotAt("sp-1", []string{"https://a.com"}, time.Now()))
	require.Eventually(t, func() bool {
		return store.record("sp-1") != nil
	}, 2*time.Second, 5*time.Millisecond)

	q.EnqueueDelete("sp-1")
	require.Eventually(t, func() bool {
		return store.record("sp-1") == nil
	}, 2*time.Second, 5*time.Millisecond)
}
