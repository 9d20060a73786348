// Package cache implements the bounded, time-aware in-memory map from
// username to profile entry, populated through a loader backed by the
// persistence layer.
//
// Three independent timers govern an entry's life and none of them is
// collapsed into another:
//
//   - refresh-ahead: an entry older than RefreshAfter since its last load is
//     served stale while a background reload runs;
//   - idle expiry: an entry not accessed for ExpireAfter is treated as absent;
//   - store liveness: the loader only ever sees rows with expire > now, which
//     this package never re-checks after load (bounded staleness).
package cache

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/GroundMC/GroundMCProfileCache/internal/async"
	"github.com/GroundMC/GroundMCProfileCache/internal/profile"
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	// DefaultCapacity bounds the resident population.
	DefaultCapacity = 2500
	// DefaultRefreshAfter is the age past which an access schedules a
	// background reload.
	DefaultRefreshAfter = 5 * time.Minute
	// DefaultExpireAfter is the idle bound: entries untouched this long
	// are treated as absent.
	DefaultExpireAfter = 20 * time.Minute
)

// Loader is the slice of the persistence layer the cache loads through.
// *repository.BunProfileRepository satisfies it.
type Loader interface {
	FindByName(ctx context.Context, username string) (*profile.Entry, error)
	FindAllByNames(ctx context.Context, usernames []string) (map[string]*profile.Entry, error)
}

// resident is one cached entry plus the bookkeeping the two in-memory
// timers need. Fields are guarded by NameCache.mu.
type resident struct {
	entry      *profile.Entry
	loadedAt   time.Time
	lastAccess time.Time
	refreshing bool
}

// Options configures a NameCache. Zero values fall back to the defaults
// above; Clock and Logger default to the wall clock and a nop logger.
type Options struct {
	Capacity     int
	RefreshAfter time.Duration
	ExpireAfter  time.Duration
	Clock        func() time.Time
	Logger       *zap.Logger
	Metrics      *Metrics
}

// NameCache is a bounded username -> entry map with LRU eviction, idle
// expiry and refresh-ahead. Loads and refreshes for one key are collapsed
// through singleflight so no two store round-trips for the same username
// ever run concurrently.
type NameCache struct {
	mu  sync.Mutex
	lru *lru.Cache[string, *resident]

	loader  Loader
	pool    *async.Pool
	sf      singleflight.Group
	metrics *Metrics

	refreshAfter time.Duration
	expireAfter  time.Duration
	now          func() time.Time
	log          *zap.Logger
}

// NewNameCache builds the cache. The pool runs background reloads; it may be
// shared with the write-through path.
func NewNameCache(loader Loader, pool *async.Pool, opts Options) (*NameCache, error) {
	if opts.Capacity <= 0 {
		opts.Capacity = DefaultCapacity
	}
	if opts.RefreshAfter <= 0 {
		opts.RefreshAfter = DefaultRefreshAfter
	}
	if opts.ExpireAfter <= 0 {
		opts.ExpireAfter = DefaultExpireAfter
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	c := &NameCache{
		loader:       loader,
		pool:         pool,
		metrics:      opts.Metrics,
		refreshAfter: opts.RefreshAfter,
		expireAfter:  opts.ExpireAfter,
		now:          opts.Clock,
		log:          opts.Logger,
	}

	store, err := lru.NewWithEvict[string, *resident](opts.Capacity, func(string, *resident) {
		c.metrics.eviction()
	})
	if err != nil {
		return nil, err
	}
	c.lru = store
	return c, nil
}

// Get returns the cached or freshly loaded entry for username. Every
// failure, including a plain miss and a store fault, degrades to absence;
// callers cannot tell the two apart through this method.
func (c *NameCache) Get(ctx context.Context, username string) (*profile.Entry, bool) {
	now := c.now()

	c.mu.Lock()
	if res, ok := c.lru.Get(username); ok {
		if now.Sub(res.lastAccess) > c.expireAfter {
			// Idle for too long: drop and reload below
			c.lru.Remove(username)
		} else {
			res.lastAccess = now
			entry := res.entry
			stale := now.Sub(res.loadedAt) > c.refreshAfter && !res.refreshing
			if stale {
				res.refreshing = true
			}
			c.mu.Unlock()

			if stale {
				c.scheduleRefresh(username)
			}
			c.metrics.hit()
			return entry, true
		}
	}
	c.mu.Unlock()

	c.metrics.miss()
	entry, err := c.load(ctx, username)
	if err != nil {
		c.observeLoadFailure(username, err)
		return nil, false
	}
	return entry, true
}

// GetAll resolves a set of usernames, serving resident entries and batch
// loading the rest in one store round-trip. Keys that did not resolve are
// absent from the result.
func (c *NameCache) GetAll(ctx context.Context, usernames []string) map[string]*profile.Entry {
	now := c.now()
	result := make(map[string]*profile.Entry, len(usernames))
	var missing []string

	c.mu.Lock()
	for _, username := range usernames {
		res, ok := c.lru.Get(username)
		if !ok || now.Sub(res.lastAccess) > c.expireAfter {
			if ok {
				c.lru.Remove(username)
			}
			missing = append(missing, username)
			continue
		}
		res.lastAccess = now
		result[username] = res.entry
		c.metrics.hit()
	}
	c.mu.Unlock()

	if len(missing) == 0 {
		return result
	}

	for range missing {
		c.metrics.miss()
	}
	loaded, err := c.loader.FindAllByNames(ctx, missing)
	if err != nil {
		c.log.Warn("batch load failed", zap.Int("keys", len(missing)), zap.Error(err))
		return result
	}
	for username, entry := range loaded {
		c.store(entry)
		result[username] = entry
	}
	return result
}

// Put inserts an entry directly, marking it freshly loaded.
func (c *NameCache) Put(entry *profile.Entry) {
	c.store(entry)
}

// Invalidate drops the entry for username, if resident.
func (c *NameCache) Invalidate(username string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Remove(username)
}

// InvalidateByID drops any resident entry recorded for id, regardless of
// the username it is keyed under. Used on rename so the old name stops
// resolving immediately.
func (c *NameCache) InvalidateByID(id uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, key := range c.lru.Keys() {
		if res, ok := c.lru.Peek(key); ok && res.entry.ID == id {
			c.lru.Remove(key)
		}
	}
}

// Refresh synchronously reloads username from the store. On any failure the
// key is invalidated so the next read goes back to the store rather than
// serving a value the write path just made stale.
func (c *NameCache) Refresh(ctx context.Context, username string) error {
	if _, err := c.load(ctx, username); err != nil {
		c.Invalidate(username)
		return err
	}
	return nil
}

// Resident returns a snapshot of the live resident entries. The caller may
// scan it (the resolve-by-id path does) but must not mutate the entries.
func (c *NameCache) Resident() []*profile.Entry {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()
	entries := make([]*profile.Entry, 0, c.lru.Len())
	for _, key := range c.lru.Keys() {
		res, ok := c.lru.Peek(key)
		if !ok || now.Sub(res.lastAccess) > c.expireAfter {
			continue
		}
		entries = append(entries, res.entry)
	}
	return entries
}

// Len reports the resident population, idle entries included.
func (c *NameCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// load collapses concurrent loads for one username into a single store
// round-trip and caches the result on success.
func (c *NameCache) load(ctx context.Context, username string) (*profile.Entry, error) {
	v, err, _ := c.sf.Do(username, func() (any, error) {
		entry, err := c.loader.FindByName(ctx, username)
		if err != nil {
			return nil, err
		}
		c.store(entry)
		return entry, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*profile.Entry), nil
}

func (c *NameCache) store(entry *profile.Entry) {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Add(entry.Username, &resident{
		entry:      entry,
		loadedAt:   now,
		lastAccess: now,
	})
}

// scheduleRefresh hands a reload for username to the pool. A failed reload
// leaves the stale entry in place; only a successful one replaces it.
func (c *NameCache) scheduleRefresh(username string) {
	submitted := c.pool != nil && c.pool.Submit(func() {
		_, err := c.load(context.Background(), username)
		c.clearRefreshing(username)
		if err != nil {
			c.metrics.refreshFailure()
			c.log.Debug("background refresh failed, keeping stale entry",
				zap.String("username", username), zap.Error(err))
			return
		}
		c.metrics.refresh()
	})
	if !submitted {
		c.clearRefreshing(username)
	}
}

func (c *NameCache) clearRefreshing(username string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if res, ok := c.lru.Peek(username); ok {
		res.refreshing = false
	}
}

func (c *NameCache) observeLoadFailure(username string, err error) {
	switch {
	case errors.Is(err, profile.ErrNotFound):
		c.log.Debug("no live profile", zap.String("username", username))
	case errors.Is(err, profile.ErrCorruptRecord):
		c.log.Warn("stored profile is corrupt, treating as miss",
			zap.String("username", username), zap.Error(err))
	default:
		c.log.Warn("profile load failed", zap.String("username", username), zap.Error(err))
	}
}
