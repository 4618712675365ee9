package services

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/proplio/api/authz"
)

// CachedProfileLoader wraps a ProfileLoader with a short-lived Redis cache.
// Profile lookups run on every authenticated request, so even a small TTL
// takes most of the read load off Postgres. Cache failures degrade to the
// inner loader; they never turn into authorization errors.
type CachedProfileLoader struct {
	inner authz.ProfileLoader
	redis *redis.Client
	ttl   time.Duration
}

const profileCacheTTL = 60 * time.Second

// Cached entry for "account exists but has no profile". Caching the negative
// result matters: incomplete accounts poll /me from the onboarding screen.
const noProfileSentinel = "__none__"

func NewCachedProfileLoader(inner authz.ProfileLoader, rdb *redis.Client) *CachedProfileLoader {
	return &CachedProfileLoader{inner: inner, redis: rdb, ttl: profileCacheTTL}
}

// Ensure CachedProfileLoader implements ProfileLoader
var _ authz.ProfileLoader = (*CachedProfileLoader)(nil)

func (l *CachedProfileLoader) ResolveProfile(ctx context.Context, accountID string) (*authz.Profile, error) {
	if accountID == "" {
		return nil, nil
	}

	key := "profile:" + accountID

	if l.redis != nil {
		cached, err := l.redis.Get(ctx, key).Result()
		if err == nil {
			if cached == noProfileSentinel {
				return nil, nil
			}
			var p authz.Profile
			if err := json.Unmarshal([]byte(cached), &p); err == nil {
				return &p, nil
			}
			// Corrupt entry: drop it and fall through to the loader.
			l.redis.Del(ctx, key)
		} else if err != redis.Nil {
			log.Printf("Profile cache read failed for %s: %v", accountID, err)
		}
	}

	profile, err := l.inner.ResolveProfile(ctx, accountID)
	if err != nil {
		// Lookup failures are never cached.
		return nil, err
	}

	if l.redis != nil {
		value := noProfileSentinel
		if profile != nil {
			if data, err := json.Marshal(profile); err == nil {
				value = string(data)
			}
		}
		if err := l.redis.Set(ctx, key, value, l.ttl).Err(); err != nil {
			log.Printf("Profile cache write failed for %s: %v", accountID, err)
		}
	}

	return profile, nil
}

// Invalidate drops the cached profile for an account. Called after profile
// mutations (approval, bootstrap, profile edits) so role changes take effect
// within the request that made them, not a TTL later.
func (l *CachedProfileLoader) Invalidate(ctx context.Context, accountID string) {
	if l.redis == nil || accountID == "" {
		return
	}
	if err := l.redis.Del(ctx, "profile:"+accountID).Err(); err != nil {
		log.Printf("Profile cache invalidation failed for %s: %v", accountID, err)
	}
}
