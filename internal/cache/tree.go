// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// tree.go provides the Valkey-backed tree cache: per-category descendant-id
// sets and page counts under versioned keys with a TTL backstop. Reads fall
// through to the category store on a miss; cache failures are logged and
// degrade to direct store reads, never to request failures.
package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	// cacheVersion is baked into every key; bumping it abandons all
	// existing entries at once.
	cacheVersion = "v1"

	// key kinds under taxonomy:<version>:
	descendantsKind = "descendants"
	pageCountKind   = "pagecount"

	// DefaultTreeTTL bounds how long a stale entry can outlive a missed
	// invalidation.
	DefaultTreeTTL = time.Hour
)

// TreeLoader supplies authoritative values on cache misses. Implemented by
// store.CategoryStore.
type TreeLoader interface {
	DescendantIDs(ctx context.Context, id uuid.UUID) ([]uuid.UUID, error)
	PageCount(ctx context.Context, id uuid.UUID) (int, error)
}

// TreeCache caches descendant-id sets and page counts per category.
type TreeCache struct {
	client *redis.Client
	ttl    time.Duration
	loader TreeLoader
}

// NewTreeCache creates a tree cache over the given Valkey client and
// loader. A zero ttl uses DefaultTreeTTL.
func NewTreeCache(client *redis.Client, ttl time.Duration, loader TreeLoader) *TreeCache {
	if ttl == 0 {
		ttl = DefaultTreeTTL
	}
	return &TreeCache{client: client, ttl: ttl, loader: loader}
}

// key builds the versioned cache key for one kind and category.
func key(kind string, id uuid.UUID) string {
	return "taxonomy:" + cacheVersion + ":" + kind + ":" + id.String()
}

// DescendantIDs returns the live descendant ids of a category, reading
// through the cache.
func (tc *TreeCache) DescendantIDs(ctx context.Context, id uuid.UUID) ([]uuid.UUID, error) {
	k := key(descendantsKind, id)

	val, err := tc.client.Get(ctx, k).Bytes()
	if err == nil {
		var ids []uuid.UUID
		if jsonErr := json.Unmarshal(val, &ids); jsonErr == nil {
			return ids, nil
		}
		// Undecodable entry: drop it and fall through to the loader.
		tc.client.Del(ctx, k)
	} else if err != redis.Nil {
		slog.Warn("tree cache get error", "key", k, "error", err)
	}

	ids, err := tc.loader.DescendantIDs(ctx, id)
	if err != nil {
		return nil, err
	}
	tc.set(ctx, k, ids)
	return ids, nil
}

// PageCount returns the number of pages associated with a category,
// reading through the cache.
func (tc *TreeCache) PageCount(ctx context.Context, id uuid.UUID) (int, error) {
	k := key(pageCountKind, id)

	val, err := tc.client.Get(ctx, k).Int()
	if err == nil {
		return val, nil
	}
	if err != redis.Nil {
		slog.Warn("tree cache get error", "key", k, "error", err)
	}

	n, err := tc.loader.PageCount(ctx, id)
	if err != nil {
		return 0, err
	}
	tc.set(ctx, k, n)
	return n, nil
}

// Invalidate drops every cached entry for the given categories. Idempotent
// and safe for ids that were never cached; errors are logged because the
// TTL backstop guarantees eventual correctness.
func (tc *TreeCache) Invalidate(ctx context.Context, ids ...uuid.UUID) {
	if len(ids) == 0 {
		return
	}
	keys := make([]string, 0, len(ids)*2)
	for _, id := range ids {
		keys = append(keys, key(descendantsKind, id), key(pageCountKind, id))
	}
	if err := tc.client.Del(ctx, keys...).Err(); err != nil {
		slog.Warn("tree cache invalidate error", "keys", len(keys), "error", err)
	}
	slog.Debug("tree cache invalidated", "categories", len(ids))
}

// Flush removes every tree cache entry by scanning for the versioned
// prefix. Used after bulk imports or manual tree surgery, since any
// category could be affected.
func (tc *TreeCache) Flush(ctx context.Context) {
	prefix := "taxonomy:" + cacheVersion + ":*"
	var cursor uint64
	var deleted int
	for {
		keys, nextCursor, err := tc.client.Scan(ctx, cursor, prefix, 100).Result()
		if err != nil {
			slog.Warn("tree cache scan error", "error", err)
			return
		}
		if len(keys) > 0 {
			if err := tc.client.Del(ctx, keys...).Err(); err != nil {
				slog.Warn("tree cache bulk delete error", "error", err)
			}
			deleted += len(keys)
		}
		cursor = nextCursor
		if cursor == 0 {
			break
		}
	}
	if deleted > 0 {
		slog.Info("tree cache fully cleared", "deleted", deleted)
	}
}

// set stores a value with the configured TTL, logging on failure.
func (tc *TreeCache) set(ctx context.Context, k string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Warn("tree cache encode error", "key", k, "error", err)
		return
	}
	if err := tc.client.Set(ctx, k, data, tc.ttl).Err(); err != nil {
		slog.Warn("tree cache set error", "key", k, "error", err)
	}
}
