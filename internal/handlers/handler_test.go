// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// handler_test.go provides shared test infrastructure for handler integration
// tests. Tests are skipped when PostgreSQL or Valkey are unavailable.
package handlers

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/redis/go-redis/v9"

	"plume/internal/cache"
	"plume/internal/database"
	"plume/internal/store"
	"plume/internal/validate"
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// testDB opens a connection to the test PostgreSQL and runs migrations.
func testDB(t *testing.T) *sql.DB {
	t.Helper()

	host := envOr("POSTGRES_HOST", "localhost")
	port := envOr("POSTGRES_PORT", "5432")
	user := envOr("POSTGRES_USER", "plume")
	pass := envOr("POSTGRES_PASSWORD", "changeme")
	name := envOr("POSTGRES_DB", "plume")
	dsn := "postgres://" + user + ":" + pass + "@" + host + ":" + port + "/" + name + "?sslmode=disable"

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		t.Skipf("skipping: cannot open DB: %v", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		t.Skipf("skipping: DB not reachable: %v", err)
	}

	if err := database.Migrate(db); err != nil {
		db.Close()
		t.Fatalf("migrate: %v", err)
	}
	goose.SetBaseFS(nil)

	t.Cleanup(func() { db.Close() })
	return db
}

// testValkeyClient returns a Redis client for handler tests on DB 15.
func testValkeyClient(t *testing.T) *redis.Client {
	t.Helper()

	host := envOr("VALKEY_HOST", "localhost")
	port := envOr("VALKEY_PORT", "6379")
	password := os.Getenv("VALKEY_PASSWORD")

	client := redis.NewClient(&redis.Options{
		Addr:     host + ":" + port,
		Password: password,
		DB:       15,
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		t.Skipf("skipping: Valkey not reachable: %v", err)
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

// testEnv holds all dependencies for handler integration tests, scoped to a
// throwaway locale so tests never see each other's data.
type testEnv struct {
	db          *sql.DB
	locale      string
	categories  *store.CategoryStore
	groups      *store.ClassifierGroupStore
	classifiers *store.ClassifierStore
	tree        *cache.TreeCache
	handler     http.Handler
}

// newTestEnv wires the full handler stack against the test services.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := testDB(t)
	client := testValkeyClient(t)
	locale := "t-" + uuid.NewString()[:8]

	t.Cleanup(func() {
		db.Exec("DELETE FROM pages WHERE locale = $1", locale)
		db.Exec("DELETE FROM classifier_groups WHERE locale = $1", locale)
		db.Exec("DELETE FROM categories WHERE locale = $1", locale)
	})

	categories := store.NewCategoryStore(db)
	groups := store.NewClassifierGroupStore(db)
	classifiers := store.NewClassifierStore(db)

	tree := cache.NewTreeCache(client, time.Minute, categories)
	categories.SetInvalidator(tree)

	validator := validate.NewValidator(classifiers)
	taxonomy := NewTaxonomy(categories, groups, classifiers, tree, validator, locale)

	return &testEnv{
		db:          db,
		locale:      locale,
		categories:  categories,
		groups:      groups,
		classifiers: classifiers,
		tree:        tree,
		handler:     testRouter(taxonomy),
	}
}

// testRouter mounts the taxonomy routes the same way the service router
// does. The router package itself imports handlers, so tests rebuild the
// route table locally.
func testRouter(taxonomy *Taxonomy) http.Handler {
	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		r.Route("/categories", func(r chi.Router) {
			r.Get("/", taxonomy.Tree)
			r.Post("/", taxonomy.CreateRoot)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/children", taxonomy.Children)
				r.Get("/descendants", taxonomy.Descendants)
				r.Get("/descendant-ids", taxonomy.DescendantIDs)
				r.Get("/breadcrumb", taxonomy.Breadcrumb)
				r.Post("/children", taxonomy.CreateChild)
				r.Post("/move", taxonomy.Move)
				r.Put("/live", taxonomy.SetLive)
				r.Put("/name", taxonomy.Rename)
				r.Delete("/", taxonomy.Delete)
			})
		})
		r.Route("/classifier-groups", func(r chi.Router) {
			r.Get("/", taxonomy.Groups)
			r.Post("/", taxonomy.CreateGroup)
			r.Delete("/{id}", taxonomy.DeleteGroup)
		})
		r.Route("/classifiers", func(r chi.Router) {
			r.Get("/", taxonomy.Classifiers)
			r.Post("/", taxonomy.CreateClassifier)
			r.Get("/popular", taxonomy.PopularClassifiers)
		})
		r.Post("/validate-selections", taxonomy.ValidateSelections)
		r.Post("/cache/flush", taxonomy.FlushCache)
	})
	return r
}
