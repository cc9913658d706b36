// association.go implements the join rows between host pages and the
// taxonomy: PageCategory and PageClassifier. Rows are created and replaced
// by the page's save lifecycle but uniqueness lives here, enforced by the
// database constraints.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"plume/internal/models"
)

// PageStore manages the minimal host-content rows that association rows
// reference. The surrounding CMS owns the real page model.
type PageStore struct {
	db *sql.DB
}

// NewPageStore returns a new PageStore.
func NewPageStore(db *sql.DB) *PageStore {
	return &PageStore{db: db}
}

// Create inserts a page stub and returns it.
func (s *PageStore) Create(ctx context.Context, p *models.Page) (*models.Page, error) {
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO pages (title, slug, locale)
		VALUES ($1, $2, $3)
		RETURNING id, title, slug, locale, created_at
	`, p.Title, p.Slug, p.Locale)
	var created models.Page
	err := row.Scan(&created.ID, &created.Title, &created.Slug, &created.Locale, &created.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("create page: %w", err)
	}
	return &created, nil
}

// FindByID retrieves a page stub by id. Returns ErrNotFound if absent.
func (s *PageStore) FindByID(ctx context.Context, id uuid.UUID) (*models.Page, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, title, slug, locale, created_at FROM pages WHERE id = $1`, id)
	var p models.Page
	err := row.Scan(&p.ID, &p.Title, &p.Slug, &p.Locale, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find page: %w", err)
	}
	return &p, nil
}

// PageCategoryStore manages page↔category association rows.
type PageCategoryStore struct {
	db *sql.DB
}

// NewPageCategoryStore returns a new PageCategoryStore.
func NewPageCategoryStore(db *sql.DB) *PageCategoryStore {
	return &PageCategoryStore{db: db}
}

// Replace swaps a page's category associations for the given ordered set,
// in one transaction. sort_order follows slice position. Duplicate ids in
// the input collapse onto the unique constraint and are rejected.
func (s *PageCategoryStore) Replace(ctx context.Context, pageID uuid.UUID, categoryIDs []uuid.UUID) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("replace page categories begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM page_categories WHERE page_id = $1`, pageID); err != nil {
		return fmt.Errorf("clear page categories: %w", err)
	}

	for i, catID := range categoryIDs {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO page_categories (page_id, category_id, sort_order)
			VALUES ($1, $2, $3)
		`, pageID, catID, i)
		if err != nil {
			return fmt.Errorf("insert page category %s: %w", catID, err)
		}
	}

	return tx.Commit()
}

// ListByPage returns a page's categories in per-page display order.
func (s *PageCategoryStore) ListByPage(ctx context.Context, pageID uuid.UUID) ([]models.Category, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+prefixedCategoryColumns("c")+`
		FROM page_categories pc
		JOIN categories c ON c.id = pc.category_id
		WHERE pc.page_id = $1
		ORDER BY pc.sort_order
	`, pageID)
	if err != nil {
		return nil, fmt.Errorf("list page categories: %w", err)
	}
	return collectCategories(rows)
}

// PageClassifierStore manages page↔classifier association rows.
type PageClassifierStore struct {
	db *sql.DB
}

// NewPageClassifierStore returns a new PageClassifierStore.
func NewPageClassifierStore(db *sql.DB) *PageClassifierStore {
	return &PageClassifierStore{db: db}
}

// Replace swaps a page's classifier associations for the given ordered
// set, in one transaction. Callers are expected to have run the selection
// validator first; this method only enforces row uniqueness.
func (s *PageClassifierStore) Replace(ctx context.Context, pageID uuid.UUID, classifierIDs []uuid.UUID) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("replace page classifiers begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM page_classifiers WHERE page_id = $1`, pageID); err != nil {
		return fmt.Errorf("clear page classifiers: %w", err)
	}

	for i, clID := range classifierIDs {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO page_classifiers (page_id, classifier_id, sort_order)
			VALUES ($1, $2, $3)
		`, pageID, clID, i)
		if err != nil {
			return fmt.Errorf("insert page classifier %s: %w", clID, err)
		}
	}

	return tx.Commit()
}

// ListByPage returns a page's classifiers in per-page display order, with
// group name and type attached.
func (s *PageClassifierStore) ListByPage(ctx context.Context, pageID uuid.UUID) ([]models.Classifier, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.group_id, c.name, c.slug, c.sort_order, c.locale,
		       c.created_at, c.updated_at, g.name, g.type
		FROM page_classifiers pc
		JOIN classifiers c ON c.id = pc.classifier_id
		JOIN classifier_groups g ON g.id = c.group_id
		WHERE pc.page_id = $1
		ORDER BY pc.sort_order
	`, pageID)
	if err != nil {
		return nil, fmt.Errorf("list page classifiers: %w", err)
	}
	defer rows.Close()

	var items []models.Classifier
	for rows.Next() {
		var c models.Classifier
		err := rows.Scan(
			&c.ID, &c.GroupID, &c.Name, &c.Slug, &c.SortOrder, &c.Locale,
			&c.CreatedAt, &c.UpdatedAt, &c.GroupName, &c.GroupType,
		)
		if err != nil {
			return nil, fmt.Errorf("scan page classifier: %w", err)
		}
		items = append(items, c)
	}
	return items, rows.Err()
}

// prefixedCategoryColumns qualifies the shared category column list with a
// table alias for join queries.
func prefixedCategoryColumns(alias string) string {
	return alias + ".id, " + alias + ".name, " + alias + ".slug, " + alias + ".icon, " +
		alias + ".aliases, " + alias + ".live, " + alias + ".order_index, " + alias + ".path, " +
		alias + ".depth, " + alias + ".numchild, " + alias + ".locale, " +
		alias + ".created_at, " + alias + ".updated_at"
}
