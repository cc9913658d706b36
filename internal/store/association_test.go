package store

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"plume/internal/models"
)

func TestPageCategoryReplaceAndList(t *testing.T) {
	db := testDB(t)
	categories := NewCategoryStore(db)
	pages := NewPageStore(db)
	pageCategories := NewPageCategoryStore(db)
	locale := testLocale(t, db)
	ctx := context.Background()

	tech := mustAddRoot(t, categories, locale, "Technology")
	business := mustAddRoot(t, categories, locale, "Business")
	science := mustAddRoot(t, categories, locale, "Science")
	page := mustPage(t, pages, locale, 0)

	if err := pageCategories.Replace(ctx, page.ID, []uuid.UUID{science.ID, tech.ID}); err != nil {
		t.Fatalf("Replace: %v", err)
	}

	got, err := pageCategories.ListByPage(ctx, page.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].ID != science.ID || got[1].ID != tech.ID {
		t.Fatalf("per-page order: got %v", names(got))
	}

	// Replace swaps the whole set, keeping the new order.
	if err := pageCategories.Replace(ctx, page.ID, []uuid.UUID{business.ID}); err != nil {
		t.Fatalf("second Replace: %v", err)
	}
	got, err = pageCategories.ListByPage(ctx, page.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != business.ID {
		t.Fatalf("after replace: got %v", names(got))
	}

	n, err := categories.PageCount(ctx, business.ID)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("page count: got %d, want 1", n)
	}
	n, err = categories.PageCount(ctx, tech.ID)
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("stale page count: got %d, want 0", n)
	}
}

func TestPageClassifierReplaceAndList(t *testing.T) {
	db := testDB(t)
	groups := NewClassifierGroupStore(db)
	classifiers := NewClassifierStore(db)
	pages := NewPageStore(db)
	pageClassifiers := NewPageClassifierStore(db)
	locale := testLocale(t, db)
	ctx := context.Background()

	topics := mustGroup(t, groups, locale, models.GroupTypeSubject, "Content Topics", 0)
	devops := mustClassifier(t, classifiers, locale, topics.ID, "DevOps", 0)
	blockchain := mustClassifier(t, classifiers, locale, topics.ID, "Blockchain", 1)
	page := mustPage(t, pages, locale, 0)

	if err := pageClassifiers.Replace(ctx, page.ID, []uuid.UUID{blockchain.ID, devops.ID}); err != nil {
		t.Fatalf("Replace: %v", err)
	}

	got, err := pageClassifiers.ListByPage(ctx, page.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].ID != blockchain.ID || got[1].ID != devops.ID {
		t.Fatalf("per-page order: got %d items", len(got))
	}
	if got[0].GroupName != "Content Topics" || got[0].GroupType != models.GroupTypeSubject {
		t.Errorf("group fields not attached: %+v", got[0])
	}

	// Replacing with the empty set clears all rows.
	if err := pageClassifiers.Replace(ctx, page.ID, nil); err != nil {
		t.Fatalf("clear: %v", err)
	}
	got, err = pageClassifiers.ListByPage(ctx, page.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("after clear: got %d items", len(got))
	}
}

func TestVisibleTreeCarriesPageCounts(t *testing.T) {
	db := testDB(t)
	categories := NewCategoryStore(db)
	pages := NewPageStore(db)
	pageCategories := NewPageCategoryStore(db)
	locale := testLocale(t, db)
	ctx := context.Background()

	tech := mustAddRoot(t, categories, locale, "Technology")
	ai := mustAddChild(t, categories, tech.ID, "Artificial Intelligence")
	hidden := mustAddRoot(t, categories, locale, "Drafts")
	if err := categories.SetLive(ctx, hidden.ID, false); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 2; i++ {
		page := mustPage(t, pages, locale, i)
		if err := pageCategories.Replace(ctx, page.ID, []uuid.UUID{ai.ID}); err != nil {
			t.Fatal(err)
		}
	}

	tree, err := categories.VisibleTree(ctx, locale)
	if err != nil {
		t.Fatal(err)
	}
	if len(tree) != 2 {
		t.Fatalf("visible tree: got %d nodes, want 2", len(tree))
	}
	// Path order puts the parent before the child.
	if tree[0].ID != tech.ID || tree[1].ID != ai.ID {
		t.Errorf("tree order: got %q, %q", tree[0].Name, tree[1].Name)
	}
	if tree[0].PageCount != 0 || tree[1].PageCount != 2 {
		t.Errorf("page counts: got %d and %d", tree[0].PageCount, tree[1].PageCount)
	}
	for _, c := range tree {
		if c.IsHiddenRoot() || !c.Live {
			t.Errorf("non-visible node %q in tree", c.Name)
		}
	}
}

func names(cats []models.Category) []string {
	out := make([]string, len(cats))
	for i, c := range cats {
		out[i] = c.Name
	}
	return out
}
