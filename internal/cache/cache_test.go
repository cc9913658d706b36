// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// testValkeyClient returns a Redis client for tests.
// Skips if Valkey is unavailable.
func testValkeyClient(t *testing.T) *redis.Client {
	t.Helper()

	host := envOr("VALKEY_HOST", "localhost")
	port := envOr("VALKEY_PORT", "6379")
	password := os.Getenv("VALKEY_PASSWORD")

	client := redis.NewClient(&redis.Options{
		Addr:     host + ":" + port,
		Password: password,
		DB:       15, // Use DB 15 for tests.
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		t.Skipf("skipping integration test: Valkey not reachable: %v", err)
	}

	t.Cleanup(func() {
		keys, _ := client.Keys(ctx, "taxonomy:*").Result()
		if len(keys) > 0 {
			client.Del(ctx, keys...)
		}
		client.Close()
	})

	return client
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// fakeLoader is a TreeLoader that counts how often each method is called,
// so tests can tell cache hits from misses.
type fakeLoader struct {
	descendants map[uuid.UUID][]uuid.UUID
	pageCounts  map[uuid.UUID]int

	descendantCalls int
	pageCountCalls  int
}

func (f *fakeLoader) DescendantIDs(ctx context.Context, id uuid.UUID) ([]uuid.UUID, error) {
	f.descendantCalls++
	return f.descendants[id], nil
}

func (f *fakeLoader) PageCount(ctx context.Context, id uuid.UUID) (int, error) {
	f.pageCountCalls++
	return f.pageCounts[id], nil
}

func TestConnectValkey(t *testing.T) {
	host := envOr("VALKEY_HOST", "localhost")
	port := envOr("VALKEY_PORT", "6379")

	client, err := ConnectValkey(host, port, "")
	if err != nil {
		t.Skipf("skipping: Valkey not available: %v", err)
	}
	defer client.Close()

	// Verify connection.
	ctx := context.Background()
	pong, err := client.Ping(ctx).Result()
	if err != nil {
		t.Fatalf("Ping: %v", err)
	}
	if pong != "PONG" {
		t.Errorf("expected PONG, got %q", pong)
	}
}

func TestTreeCacheDescendantIDsReadThrough(t *testing.T) {
	client := testValkeyClient(t)
	cat := uuid.New()
	kids := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	loader := &fakeLoader{descendants: map[uuid.UUID][]uuid.UUID{cat: kids}}
	tc := NewTreeCache(client, 1*time.Minute, loader)

	ctx := context.Background()

	// First read misses and hits the loader.
	got, err := tc.DescendantIDs(ctx, cat)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("descendants: got %d, want 3", len(got))
	}
	if loader.descendantCalls != 1 {
		t.Errorf("loader calls after miss: got %d, want 1", loader.descendantCalls)
	}

	// Second read is served from the cache.
	got, err = tc.DescendantIDs(ctx, cat)
	if err != nil {
		t.Fatal(err)
	}
	for i, id := range kids {
		if got[i] != id {
			t.Errorf("cached entry differs at %d: %s vs %s", i, got[i], id)
		}
	}
	if loader.descendantCalls != 1 {
		t.Errorf("loader calls after hit: got %d, want 1", loader.descendantCalls)
	}
}

func TestTreeCachePageCountReadThrough(t *testing.T) {
	client := testValkeyClient(t)
	cat := uuid.New()
	loader := &fakeLoader{pageCounts: map[uuid.UUID]int{cat: 7}}
	tc := NewTreeCache(client, 1*time.Minute, loader)

	ctx := context.Background()

	for i := 0; i < 3; i++ {
		n, err := tc.PageCount(ctx, cat)
		if err != nil {
			t.Fatal(err)
		}
		if n != 7 {
			t.Fatalf("page count: got %d, want 7", n)
		}
	}
	if loader.pageCountCalls != 1 {
		t.Errorf("loader calls: got %d, want 1", loader.pageCountCalls)
	}
}

func TestTreeCacheInvalidate(t *testing.T) {
	client := testValkeyClient(t)
	cat := uuid.New()
	loader := &fakeLoader{
		descendants: map[uuid.UUID][]uuid.UUID{cat: {uuid.New()}},
		pageCounts:  map[uuid.UUID]int{cat: 1},
	}
	tc := NewTreeCache(client, 1*time.Minute, loader)

	ctx := context.Background()

	// Populate both entry kinds.
	if _, err := tc.DescendantIDs(ctx, cat); err != nil {
		t.Fatal(err)
	}
	if _, err := tc.PageCount(ctx, cat); err != nil {
		t.Fatal(err)
	}

	// Simulate a structural change behind the cache.
	loader.descendants[cat] = nil
	loader.pageCounts[cat] = 0
	tc.Invalidate(ctx, cat)

	got, err := tc.DescendantIDs(ctx, cat)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("stale descendants after invalidation: %v", got)
	}
	n, err := tc.PageCount(ctx, cat)
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("stale page count after invalidation: %d", n)
	}
	if loader.descendantCalls != 2 || loader.pageCountCalls != 2 {
		t.Errorf("expected refetch after invalidation, got %d/%d calls",
			loader.descendantCalls, loader.pageCountCalls)
	}

	// Invalidating again, or invalidating never-cached ids, is a no-op.
	tc.Invalidate(ctx, cat, uuid.New())
	tc.Invalidate(ctx)
}

func TestTreeCacheFlush(t *testing.T) {
	client := testValkeyClient(t)
	loader := &fakeLoader{
		descendants: map[uuid.UUID][]uuid.UUID{},
		pageCounts:  map[uuid.UUID]int{},
	}
	tc := NewTreeCache(client, 1*time.Minute, loader)

	ctx := context.Background()

	cats := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	for _, c := range cats {
		loader.pageCounts[c] = 5
		if _, err := tc.PageCount(ctx, c); err != nil {
			t.Fatal(err)
		}
	}

	tc.Flush(ctx)

	before := loader.pageCountCalls
	for _, c := range cats {
		if _, err := tc.PageCount(ctx, c); err != nil {
			t.Fatal(err)
		}
	}
	if loader.pageCountCalls != before+len(cats) {
		t.Errorf("expected every read to miss after flush, got %d extra calls",
			loader.pageCountCalls-before)
	}
}

func TestTreeCacheDropsUndecodableEntries(t *testing.T) {
	client := testValkeyClient(t)
	cat := uuid.New()
	kids := []uuid.UUID{uuid.New()}
	loader := &fakeLoader{descendants: map[uuid.UUID][]uuid.UUID{cat: kids}}
	tc := NewTreeCache(client, 1*time.Minute, loader)

	ctx := context.Background()

	// Poison the key with something that is not a uuid list.
	k := key(descendantsKind, cat)
	if err := client.Set(ctx, k, "not json", time.Minute).Err(); err != nil {
		t.Fatal(err)
	}

	got, err := tc.DescendantIDs(ctx, cat)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0] != kids[0] {
		t.Errorf("expected loader value past poisoned entry, got %v", got)
	}
	if loader.descendantCalls != 1 {
		t.Errorf("loader calls: got %d, want 1", loader.descendantCalls)
	}
}

func TestNewTreeCacheDefaultTTL(t *testing.T) {
	client := testValkeyClient(t)

	// TTL = 0 should use default.
	tc := NewTreeCache(client, 0, &fakeLoader{})
	if tc.ttl != DefaultTreeTTL {
		t.Errorf("expected DefaultTreeTTL (%v), got %v", DefaultTreeTTL, tc.ttl)
	}
}
