package cache

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/GroundMC/GroundMCProfileCache/internal/async"
	"github.com/GroundMC/GroundMCProfileCache/internal/profile"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeLoader is an in-memory stand-in for the persistence layer with call
// counting, so tests can assert how many store round-trips happened.
type fakeLoader struct {
	mu      sync.Mutex
	entries map[string]*profile.Entry
	err     error
	loads   map[string]int
	batches int
	delay   time.Duration
}

func newFakeLoader() *fakeLoader {
	return &fakeLoader{
		entries: map[string]*profile.Entry{},
		loads:   map[string]int{},
	}
}

func (l *fakeLoader) put(e *profile.Entry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries[e.Username] = e
}

func (l *fakeLoader) remove(username string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.entries, username)
}

func (l *fakeLoader) fail(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.err = err
}

func (l *fakeLoader) loadCount(username string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loads[username]
}

func (l *fakeLoader) FindByName(ctx context.Context, username string) (*profile.Entry, error) {
	l.mu.Lock()
	l.loads[username]++
	err := l.err
	entry, ok := l.entries[username]
	delay := l.delay
	l.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: username %q", profile.ErrNotFound, username)
	}
	return entry, nil
}

func (l *fakeLoader) FindAllByNames(ctx context.Context, usernames []string) (map[string]*profile.Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.batches++
	if l.err != nil {
		return nil, l.err
	}
	result := map[string]*profile.Entry{}
	for _, username := range usernames {
		if entry, ok := l.entries[username]; ok {
			result[username] = entry
		}
	}
	return result, nil
}

// fakeClock is a mutable deterministic clock.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func entryFor(username string) *profile.Entry {
	return &profile.Entry{
		Username:   username,
		ID:         uuid.New(),
		Properties: profile.PropertySet{{Name: "textures", Value: "v-" + username}},
		Expire:     time.Date(2026, 8, 29, 14, 0, 0, 0, time.UTC),
	}
}

func newTestCache(t *testing.T, loader Loader, pool *async.Pool, clock *fakeClock) *NameCache {
	t.Helper()
	c, err := NewNameCache(loader, pool, Options{
		Capacity: 16,
		Clock:    clock.Now,
	})
	require.NoError(t, err)
	return c
}

func quiesce(t *testing.T, pool *async.Pool) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, pool.Quiesce(ctx))
}

func TestGetLoadsOnceThenServesResident(t *testing.T) {
	loader := newFakeLoader()
	loader.put(entryFor("Alice"))
	c := newTestCache(t, loader, nil, newFakeClock())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		entry, ok := c.Get(ctx, "Alice")
		require.True(t, ok)
		assert.Equal(t, "Alice", entry.Username)
	}
	assert.Equal(t, 1, loader.loadCount("Alice"))
}

func TestGetDoesNotCacheNegative(t *testing.T) {
	loader := newFakeLoader()
	c := newTestCache(t, loader, nil, newFakeClock())
	ctx := context.Background()

	_, ok := c.Get(ctx, "Nobody")
	assert.False(t, ok)

	// A later appearance must be picked up, so the miss was not cached
	loader.put(entryFor("Nobody"))
	entry, ok := c.Get(ctx, "Nobody")
	require.True(t, ok)
	assert.Equal(t, "Nobody", entry.Username)
	assert.Equal(t, 2, loader.loadCount("Nobody"))
}

func TestGetSwallowsStoreFaults(t *testing.T) {
	loader := newFakeLoader()
	loader.fail(fmt.Errorf("%w: connection refused", profile.ErrStoreUnavailable))
	c := newTestCache(t, loader, nil, newFakeClock())

	_, ok := c.Get(context.Background(), "Alice")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestRefreshAhead(t *testing.T) {
	loader := newFakeLoader()
	old := entryFor("Alice")
	loader.put(old)
	clock := newFakeClock()
	pool := async.NewPool(1, 8, nil)
	defer pool.Close()
	c := newTestCache(t, loader, pool, clock)
	ctx := context.Background()

	_, ok := c.Get(ctx, "Alice")
	require.True(t, ok)

	// Replace the stored value, then age the resident entry past the
	// refresh bound but not the idle bound
	fresh := entryFor("Alice")
	loader.put(fresh)
	clock.Advance(6 * time.Minute)

	entry, ok := c.Get(ctx, "Alice")
	require.True(t, ok)
	assert.Equal(t, old.ID, entry.ID, "stale value is served while the reload runs")

	quiesce(t, pool)

	entry, ok = c.Get(ctx, "Alice")
	require.True(t, ok)
	assert.Equal(t, fresh.ID, entry.ID, "reload replaced the entry in place")
	assert.Equal(t, 2, loader.loadCount("Alice"))
}

func TestFailedBackgroundRefreshKeepsStaleEntry(t *testing.T) {
	loader := newFakeLoader()
	old := entryFor("Alice")
	loader.put(old)
	clock := newFakeClock()
	pool := async.NewPool(1, 8, nil)
	defer pool.Close()
	c := newTestCache(t, loader, pool, clock)
	ctx := context.Background()

	_, ok := c.Get(ctx, "Alice")
	require.True(t, ok)

	loader.fail(fmt.Errorf("%w: connection refused", profile.ErrStoreUnavailable))
	clock.Advance(6 * time.Minute)

	_, ok = c.Get(ctx, "Alice")
	require.True(t, ok)
	quiesce(t, pool)

	entry, ok := c.Get(ctx, "Alice")
	require.True(t, ok, "failed refresh must not evict")
	assert.Equal(t, old.ID, entry.ID)
}

func TestIdleExpiry(t *testing.T) {
	loader := newFakeLoader()
	loader.put(entryFor("Alice"))
	clock := newFakeClock()
	c := newTestCache(t, loader, nil, clock)
	ctx := context.Background()

	_, ok := c.Get(ctx, "Alice")
	require.True(t, ok)

	clock.Advance(21 * time.Minute)

	// The idle entry is discarded and reloaded from the store
	_, ok = c.Get(ctx, "Alice")
	require.True(t, ok)
	assert.Equal(t, 2, loader.loadCount("Alice"))

	// And when the store has nothing, the idle entry does not linger
	loader.remove("Alice")
	clock.Advance(21 * time.Minute)
	_, ok = c.Get(ctx, "Alice")
	assert.False(t, ok)
}

func TestAccessKeepsEntryAlive(t *testing.T) {
	loader := newFakeLoader()
	loader.put(entryFor("Alice"))
	clock := newFakeClock()
	c := newTestCache(t, loader, nil, clock)
	ctx := context.Background()

	_, ok := c.Get(ctx, "Alice")
	require.True(t, ok)

	// Touch every 4 minutes; the 20 minute idle bound never fires even
	// though total elapsed time far exceeds it
	for i := 0; i < 10; i++ {
		clock.Advance(4 * time.Minute)
		_, ok = c.Get(ctx, "Alice")
		require.True(t, ok)
	}
}

func TestCapacityBound(t *testing.T) {
	loader := newFakeLoader()
	clock := newFakeClock()
	c, err := NewNameCache(loader, nil, Options{Capacity: 2, Clock: clock.Now})
	require.NoError(t, err)

	for _, name := range []string{"A", "B", "C"} {
		c.Put(entryFor(name))
	}
	assert.Equal(t, 2, c.Len())

	// Least recently used key was evicted
	resident := map[string]bool{}
	for _, e := range c.Resident() {
		resident[e.Username] = true
	}
	assert.False(t, resident["A"])
	assert.True(t, resident["B"])
	assert.True(t, resident["C"])
}

func TestInvalidateByID(t *testing.T) {
	loader := newFakeLoader()
	c := newTestCache(t, loader, nil, newFakeClock())

	alice := entryFor("Alice")
	c.Put(alice)
	c.Put(entryFor("Bob"))

	c.InvalidateByID(alice.ID)

	assert.Equal(t, 1, c.Len())
	resident := c.Resident()
	require.Len(t, resident, 1)
	assert.Equal(t, "Bob", resident[0].Username)
}

func TestRefreshReplacesOrInvalidates(t *testing.T) {
	loader := newFakeLoader()
	old := entryFor("Alice")
	loader.put(old)
	c := newTestCache(t, loader, nil, newFakeClock())
	ctx := context.Background()

	_, ok := c.Get(ctx, "Alice")
	require.True(t, ok)

	fresh := entryFor("Alice")
	loader.put(fresh)
	require.NoError(t, c.Refresh(ctx, "Alice"))

	entry, ok := c.Get(ctx, "Alice")
	require.True(t, ok)
	assert.Equal(t, fresh.ID, entry.ID)

	// When the row vanished (rename), Refresh drops the resident entry
	loader.remove("Alice")
	err := c.Refresh(ctx, "Alice")
	assert.ErrorIs(t, err, profile.ErrNotFound)
	assert.Equal(t, 0, c.Len())
}

func TestConcurrentLoadsCollapse(t *testing.T) {
	loader := newFakeLoader()
	loader.put(entryFor("Alice"))
	loader.delay = 50 * time.Millisecond
	c := newTestCache(t, loader, nil, newFakeClock())

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, ok := c.Get(context.Background(), "Alice")
			assert.True(t, ok)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, loader.loadCount("Alice"))
}

func TestGetAll(t *testing.T) {
	loader := newFakeLoader()
	loader.put(entryFor("Alice"))
	loader.put(entryFor("Bob"))
	c := newTestCache(t, loader, nil, newFakeClock())
	ctx := context.Background()

	// Warm one key singly, then batch resolve three
	_, ok := c.Get(ctx, "Alice")
	require.True(t, ok)

	result := c.GetAll(ctx, []string{"Alice", "Bob", "Nobody"})
	assert.Len(t, result, 2)
	assert.Contains(t, result, "Alice")
	assert.Contains(t, result, "Bob")

	// Alice was resident, so only one batch round-trip happened and it
	// did not include her
	assert.Equal(t, 1, loader.loadCount("Alice"))
	assert.Equal(t, 0, loader.loadCount("Bob"))
	assert.Equal(t, 1, loader.batches)

	// Bob is now resident too
	_, ok = c.Get(ctx, "Bob")
	require.True(t, ok)
	assert.Equal(t, 0, loader.loadCount("Bob"))
}

func TestResidentSkipsIdleEntries(t *testing.T) {
	loader := newFakeLoader()
	clock := newFakeClock()
	c := newTestCache(t, loader, nil, clock)

	c.Put(entryFor("Alice"))
	clock.Advance(21 * time.Minute)
	c.Put(entryFor("Bob"))

	resident := c.Resident()
	require.Len(t, resident, 1)
	assert.Equal(t, "Bob", resident[0].Username)
}
