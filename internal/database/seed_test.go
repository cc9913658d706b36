package database

import (
	"testing"

	"plume/internal/models"
)

func TestSeedIdempotent(t *testing.T) {
	db, err := Connect(testDSN())
	if err != nil {
		t.Skipf("skipping: DB not available: %v", err)
	}
	defer db.Close()

	if err := Migrate(db); err != nil {
		t.Fatalf("Migrate: %v", err)
	}

	// Seed only populates an empty database, so calling it twice must be
	// safe. We don't clear the database first because other test packages
	// may be running concurrently against the same instance.
	if err := Seed(db, "en"); err != nil {
		t.Fatalf("first Seed: %v", err)
	}
	if err := Seed(db, "en"); err != nil {
		t.Fatalf("second Seed: %v", err)
	}

	// Whether this call seeded or skipped, categories exist afterwards.
	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM categories").Scan(&count); err != nil {
		t.Fatalf("count categories: %v", err)
	}
	if count < 1 {
		t.Errorf("expected categories after Seed, got %d", count)
	}

	// If the sample tree is present, its shape must be consistent: one
	// hidden root per locale and every branch hanging off it.
	var rootPath string
	err = db.QueryRow(
		"SELECT path FROM categories WHERE locale = 'en' AND name = $1",
		models.RootCategoryName,
	).Scan(&rootPath)
	if err != nil {
		t.Skipf("sample tree not present in this database: %v", err)
	}

	var orphans int
	err = db.QueryRow(`
		SELECT COUNT(*) FROM categories
		WHERE locale = 'en' AND path NOT LIKE $1 || '%'
	`, rootPath).Scan(&orphans)
	if err != nil {
		t.Fatalf("count orphans: %v", err)
	}
	if orphans != 0 {
		t.Errorf("expected every category under the hidden root, got %d orphans", orphans)
	}

	// Attribute groups carry their selection limits.
	var limit int
	err = db.QueryRow(`
		SELECT max_selections FROM classifier_groups
		WHERE locale = 'en' AND name = 'Content Difficulty'
	`).Scan(&limit)
	if err == nil && limit != 1 {
		t.Errorf("Content Difficulty max_selections: got %d, want 1", limit)
	}
}
