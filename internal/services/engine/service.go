// Package engine is the facade the event layer calls into. It orchestrates
// the refreshing name cache, the identifier fallback path and the
// write-through path on profile discovery. No error type crosses this
// boundary: callers always get an entry or a clean absence.
package engine

import (
	"context"
	"errors"

	"github.com/GroundMC/GroundMCProfileCache/internal/async"
	"github.com/GroundMC/GroundMCProfileCache/internal/cache"
	"github.com/GroundMC/GroundMCProfileCache/internal/profile"
	"github.com/GroundMC/GroundMCProfileCache/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Service wires the cache over the persistence layer. Construct with
// NewService; all dependencies are injected so tests can substitute an
// in-memory store and a deterministic clock.
type Service struct {
	profiles repository.ProfileRepository
	settings repository.SettingsRepository
	cache    *cache.NameCache
	pool     *async.Pool
	log      *zap.Logger
}

// NewService builds the facade. settings may be nil when no last-known-name
// target is deployed; log may be nil.
func NewService(profiles repository.ProfileRepository, settings repository.SettingsRepository, nameCache *cache.NameCache, pool *async.Pool, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		profiles: profiles,
		settings: settings,
		cache:    nameCache,
		pool:     pool,
		log:      log,
	}
}

// ResolveByName returns the cached or loaded entry for username, or nil on
// a miss of any cause.
func (s *Service) ResolveByName(ctx context.Context, username string) *profile.Entry {
	if username == "" {
		return nil
	}
	entry, ok := s.cache.Get(ctx, username)
	if !ok {
		return nil
	}
	return entry
}

// ResolveByNames is the batch variant of ResolveByName. Unresolved names
// are simply absent from the result.
func (s *Service) ResolveByNames(ctx context.Context, usernames []string) map[string]*profile.Entry {
	return s.cache.GetAll(ctx, usernames)
}

// ResolveByID returns the entry for id, or nil. The resident set is scanned
// first; O(population) but the population is bounded, and it beats a store
// round-trip. A store hit warms the cache under the row's username so the
// following name lookup is served in memory.
func (s *Service) ResolveByID(ctx context.Context, id uuid.UUID) *profile.Entry {
	if id == uuid.Nil {
		return nil
	}

	for _, entry := range s.cache.Resident() {
		if entry.ID == id {
			return entry
		}
	}

	entry, err := s.profiles.FindByID(ctx, id)
	if err != nil {
		switch {
		case errors.Is(err, profile.ErrNotFound):
			s.log.Debug("no live profile", zap.Stringer("id", id))
		case errors.Is(err, profile.ErrCorruptRecord):
			s.log.Warn("stored profile is corrupt, treating as miss", zap.Stringer("id", id), zap.Error(err))
		default:
			s.log.Warn("profile lookup by id failed", zap.Stringer("id", id), zap.Error(err))
		}
		return nil
	}

	s.cache.Put(entry)
	return entry
}

// RecordProfile persists a freshly fetched profile and refreshes the cache.
// It is fire-and-forget: the work runs on the pool and the caller is never
// blocked on the store round-trip. A profile without attribute data is
// dropped here so a partial upstream response cannot overwrite a good row.
func (s *Service) RecordProfile(id uuid.UUID, username string, properties profile.PropertySet) {
	if id == uuid.Nil || username == "" || len(properties) == 0 {
		return
	}

	s.pool.Submit(func() {
		s.recordProfile(id, username, properties)
	})
}

func (s *Service) recordProfile(id uuid.UUID, username string, properties profile.PropertySet) {
	ctx := context.Background()

	if err := s.profiles.Upsert(ctx, id, username, properties); err != nil {
		switch {
		case errors.Is(err, profile.ErrConstraintViolation):
			// Lost a concurrent-insert race; the row landed through the
			// competing writer, so continue to the cache refresh.
			s.log.Info("concurrent profile insert, keeping winner",
				zap.Stringer("id", id), zap.String("username", username))
		case errors.Is(err, profile.ErrRecordTooLarge):
			s.log.Warn("profile properties exceed storage bound, not persisted",
				zap.Stringer("id", id), zap.String("username", username))
			return
		default:
			s.log.Error("profile upsert failed",
				zap.Stringer("id", id), zap.String("username", username), zap.Error(err))
			return
		}
	}

	// On a rename the old username must stop resolving immediately
	s.cache.InvalidateByID(id)
	if err := s.cache.Refresh(ctx, username); err != nil {
		s.log.Debug("cache refresh after write failed, next read reloads",
			zap.String("username", username), zap.Error(err))
	}

	if s.settings != nil {
		if err := s.settings.SetLastKnownName(ctx, id, username); err != nil {
			// Best effort, independent failure domain
			s.log.Warn("last known name update failed",
				zap.Stringer("id", id), zap.String("username", username), zap.Error(err))
		}
	}
}

// RefreshSession eagerly warms the cache for a subject that just started a
// session. Best effort, runs on the pool.
func (s *Service) RefreshSession(id uuid.UUID) {
	if id == uuid.Nil {
		return
	}
	s.pool.Submit(func() {
		s.ResolveByID(context.Background(), id)
	})
}
