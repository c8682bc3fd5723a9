// Package cache adds a read-aside layer in front of the backend's reminder
// listing, so the UI can re-render the schedule without a round-trip on every
// view. The backend stays the source of truth; every write invalidates.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/sweat24/go-push-client/internal/scheduler"
	"github.com/sweat24/go-push-client/pkg/push"
)

// CacheClient defines the subset of Redis commands we need.
type CacheClient interface {
	// Get returns the value or a specific error if not found.
	Get(ctx context.Context, key string, dest interface{}) error
	// Set stores the value with a TTL.
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	// Del removes the key.
	Del(ctx context.Context, key string) error
}

// CachedStore is a decorator that adds read-aside caching to any
// scheduler.Store. The agent runs on behalf of one signed-in user, so the
// store is bound to that user's listing key.
type CachedStore struct {
	realStore scheduler.Store
	cache     CacheClient
	userID    int64
	ttl       time.Duration
}

// NewCachedStore creates the decorator.
func NewCachedStore(realStore scheduler.Store, cache CacheClient, userID int64, ttl time.Duration) *CachedStore {
	return &CachedStore{
		realStore: realStore,
		cache:     cache,
		userID:    userID,
		ttl:       ttl,
	}
}

// --- READ PATH (Read-Aside) ---

func (s *CachedStore) ListReminders(ctx context.Context, userID int64) ([]push.Reminder, error) {
	key := s.cacheKey(userID)
	var cached []push.Reminder

	// 1. Try cache.
	if err := s.cache.Get(ctx, key, &cached); err == nil {
		return cached, nil
	}

	// 2. Fall back to the backend.
	fresh, err := s.realStore.ListReminders(ctx, userID)
	if err != nil {
		return nil, err
	}

	// 3. Populate cache (fire and forget). Caching is an optimization, not a
	// transaction; if Redis is down we just serve from the backend.
	_ = s.cache.Set(ctx, key, fresh, s.ttl)

	return fresh, nil
}

// --- WRITE PATHS (Invalidate-on-Write) ---

func (s *CachedStore) ScheduleReminder(ctx context.Context, r push.Reminder) error {
	// 1. Write to the source of truth.
	if err := s.realStore.ScheduleReminder(ctx, r); err != nil {
		return err
	}
	// 2. Invalidate so the next listing reflects the new reminder.
	return s.invalidate(ctx, r.UserID)
}

// CancelReminder must clear the cache even though the backend write already
// succeeded, so a canceled reminder never reappears in a stale listing.
func (s *CachedStore) CancelReminder(ctx context.Context, id string) error {
	if err := s.realStore.CancelReminder(ctx, id); err != nil {
		return err
	}
	return s.invalidate(ctx, s.userID)
}

// --- Helpers ---

func (s *CachedStore) invalidate(ctx context.Context, userID int64) error {
	if userID == 0 {
		userID = s.userID
	}
	// Delete the key; the next listing is forced back to the backend. This
	// keeps "cancel reminder" immediately consistent in the UI.
	return s.cache.Del(ctx, s.cacheKey(userID))
}

func (s *CachedStore) cacheKey(userID int64) string {
	return fmt.Sprintf("sweat24:reminders:%d", userID)
}
