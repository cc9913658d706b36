// store_test.go provides a shared test database helper for all store
// integration tests. Tests are skipped if PostgreSQL is not available.
// Every test works inside its own throwaway locale, so tests never see
// each other's trees and cleanup is a per-locale delete.
package store

import (
	"context"
	"database/sql"
	"os"
	"testing"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"plume/internal/database"
	"plume/internal/models"
)

// testDSN returns the PostgreSQL connection string for testing.
// Uses environment variables with defaults matching docker-compose.yml.
func testDSN() string {
	host := envOr("POSTGRES_HOST", "localhost")
	port := envOr("POSTGRES_PORT", "5432")
	user := envOr("POSTGRES_USER", "plume")
	pass := envOr("POSTGRES_PASSWORD", "changeme")
	name := envOr("POSTGRES_DB", "plume")
	return "postgres://" + user + ":" + pass + "@" + host + ":" + port + "/" + name + "?sslmode=disable"
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// testDB opens a connection to the test database and runs migrations.
// If the database is unavailable, the test is skipped. A cleanup
// function is registered to close the connection when the test finishes.
func testDB(t *testing.T) *sql.DB {
	t.Helper()

	dsn := testDSN()
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		t.Skipf("skipping integration test: cannot open DB: %v", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		t.Skipf("skipping integration test: DB not reachable: %v", err)
	}

	// Run migrations to ensure the schema is current.
	if err := database.Migrate(db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	// Downgrade goose global state.
	goose.SetBaseFS(nil)

	t.Cleanup(func() { db.Close() })
	return db
}

// testLocale returns a unique locale namespace for this test and removes
// everything in it when the test finishes.
func testLocale(t *testing.T, db *sql.DB) string {
	t.Helper()
	locale := "t-" + uuid.NewString()[:8]
	t.Cleanup(func() {
		db.Exec("DELETE FROM page_categories WHERE category_id IN (SELECT id FROM categories WHERE locale = $1)", locale)
		db.Exec("DELETE FROM page_classifiers WHERE classifier_id IN (SELECT id FROM classifiers WHERE locale = $1)", locale)
		db.Exec("DELETE FROM pages WHERE locale = $1", locale)
		db.Exec("DELETE FROM classifier_groups WHERE locale = $1", locale)
		db.Exec("DELETE FROM categories WHERE locale = $1", locale)
	})
	return locale
}

// mustAddRoot creates a visible top-level category or fails the test.
func mustAddRoot(t *testing.T, s *CategoryStore, locale, name string) *models.Category {
	t.Helper()
	c, err := s.AddRootCategory(context.Background(), locale, NewCategory{Name: name, Live: true})
	if err != nil {
		t.Fatalf("AddRootCategory(%q): %v", name, err)
	}
	return c
}

// mustAddChild creates a child category or fails the test.
func mustAddChild(t *testing.T, s *CategoryStore, parent uuid.UUID, name string) *models.Category {
	t.Helper()
	c, err := s.AddChild(context.Background(), parent, NewCategory{Name: name, Live: true})
	if err != nil {
		t.Fatalf("AddChild(%q): %v", name, err)
	}
	return c
}

// refetch reloads a category by id or fails the test.
func refetch(t *testing.T, s *CategoryStore, id uuid.UUID) *models.Category {
	t.Helper()
	c, err := s.FindByID(context.Background(), id)
	if err != nil {
		t.Fatalf("FindByID(%s): %v", id, err)
	}
	return c
}
