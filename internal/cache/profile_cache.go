// Package cache holds Redis-backed read-through caches.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"direct-chat/internal/models"
	"direct-chat/internal/repositories"
)

const ProfilePrefix = "profile:"

// ProfileCache decorates a ProfileDirectory with a Redis read-through cache.
// Redis failures degrade to the underlying directory.
type ProfileCache struct {
	next repositories.ProfileDirectory
	rdb  *redis.Client
	ttl  time.Duration
}

// NewProfileCache wraps next.
func NewProfileCache(next repositories.ProfileDirectory, rdb *redis.Client, ttl time.Duration) *ProfileCache {
	return &ProfileCache{next: next, rdb: rdb, ttl: ttl}
}

func (c *ProfileCache) GetProfile(ctx context.Context, userID string) (models.Profile, error) {
	raw, err := c.rdb.Get(ctx, ProfilePrefix+userID).Bytes()
	if err == nil {
		var p models.Profile
		if jsonErr := json.Unmarshal(raw, &p); jsonErr == nil {
			return p, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		log.Printf("profile cache get failed user_id=%s err=%v", userID, err)
	}

	p, err := c.next.GetProfile(ctx, userID)
	if err != nil {
		return models.Profile{}, err
	}
	c.store(ctx, []models.Profile{p})
	return p, nil
}

func (c *ProfileCache) BulkProfiles(ctx context.Context, ids []string) (map[string]models.Profile, error) {
	result := make(map[string]models.Profile, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = ProfilePrefix + id
	}

	missing := ids
	vals, err := c.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		log.Printf("profile cache mget failed count=%d err=%v", len(ids), err)
	} else {
		missing = nil
		for i, v := range vals {
			s, ok := v.(string)
			var p models.Profile
			if !ok || json.Unmarshal([]byte(s), &p) != nil {
				missing = append(missing, ids[i])
				continue
			}
			result[ids[i]] = p
		}
	}
	if len(missing) == 0 {
		return result, nil
	}

	fetched, err := c.next.BulkProfiles(ctx, missing)
	if err != nil {
		return nil, err
	}
	found := make([]models.Profile, 0, len(fetched))
	for id, p := range fetched {
		result[id] = p
		found = append(found, p)
	}
	c.store(ctx, found)
	return result, nil
}

// Invalidate drops a cached profile. main wires it to profile.updated notifications.
func (c *ProfileCache) Invalidate(ctx context.Context, userID string) error {
	return c.rdb.Del(ctx, ProfilePrefix+userID).Err()
}

func (c *ProfileCache) store(ctx context.Context, profiles []models.Profile) {
	if len(profiles) == 0 {
		return
	}
	pipe := c.rdb.Pipeline()
	for _, p := range profiles {
		raw, err := json.Marshal(p)
		if err != nil {
			continue
		}
		pipe.Set(ctx, ProfilePrefix+p.ID, raw, c.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		log.Printf("profile cache store failed count=%d err=%v", len(profiles), err)
	}
}

var _ repositories.ProfileDirectory = (*ProfileCache)(nil)
