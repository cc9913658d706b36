// classifier.go implements the flat classifier/group vocabularies that sit
// beside the category tree. Groups and classifiers carry no hierarchy;
// identity is locale-scoped.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"plume/internal/models"
	"plume/internal/slug"
)

// ClassifierGroupStore manages classifier groups in the database.
type ClassifierGroupStore struct {
	db *sql.DB
}

// NewClassifierGroupStore returns a new ClassifierGroupStore.
func NewClassifierGroupStore(db *sql.DB) *ClassifierGroupStore {
	return &ClassifierGroupStore{db: db}
}

const groupColumns = `id, type, name, slug, max_selections, locale, created_at, updated_at`

func scanGroup(scanner interface{ Scan(...any) error }) (*models.ClassifierGroup, error) {
	var g models.ClassifierGroup
	err := scanner.Scan(
		&g.ID, &g.Type, &g.Name, &g.Slug, &g.MaxSelections, &g.Locale,
		&g.CreatedAt, &g.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &g, nil
}

// Create inserts a new classifier group and returns it.
func (s *ClassifierGroupStore) Create(ctx context.Context, g *models.ClassifierGroup) (*models.ClassifierGroup, error) {
	slugValue := g.Slug
	if slugValue == "" {
		slugValue = slug.Generate(g.Name)
	}
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO classifier_groups (type, name, slug, max_selections, locale)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+groupColumns,
		g.Type, g.Name, slugValue, g.MaxSelections, g.Locale,
	)
	created, err := scanGroup(row)
	if err != nil {
		return nil, fmt.Errorf("create classifier group: %w", err)
	}
	return created, nil
}

// FindByID retrieves a group by id. Returns ErrNotFound if absent.
func (s *ClassifierGroupStore) FindByID(ctx context.Context, id uuid.UUID) (*models.ClassifierGroup, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+groupColumns+` FROM classifier_groups WHERE id = $1`, id)
	g, err := scanGroup(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find classifier group: %w", err)
	}
	return g, nil
}

// List returns the groups of a locale ordered by type then name, each with
// its classifier count. An empty gtype lists both types.
func (s *ClassifierGroupStore) List(ctx context.Context, locale string, gtype models.GroupType) ([]models.ClassifierGroup, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT g.id, g.type, g.name, g.slug, g.max_selections, g.locale,
		       g.created_at, g.updated_at,
		       COUNT(c.id) AS classifier_count
		FROM classifier_groups g
		LEFT JOIN classifiers c ON c.group_id = g.id
		WHERE g.locale = $1 AND ($2 = '' OR g.type = $2)
		GROUP BY g.id
		ORDER BY g.type, g.name
	`, locale, string(gtype))
	if err != nil {
		return nil, fmt.Errorf("list classifier groups: %w", err)
	}
	defer rows.Close()

	var items []models.ClassifierGroup
	for rows.Next() {
		var g models.ClassifierGroup
		err := rows.Scan(
			&g.ID, &g.Type, &g.Name, &g.Slug, &g.MaxSelections, &g.Locale,
			&g.CreatedAt, &g.UpdatedAt, &g.ClassifierCount,
		)
		if err != nil {
			return nil, fmt.Errorf("scan classifier group: %w", err)
		}
		items = append(items, g)
	}
	return items, rows.Err()
}

// Delete removes a group; its classifiers cascade.
func (s *ClassifierGroupStore) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM classifier_groups WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete classifier group: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ClassifierStore manages individual classifiers.
type ClassifierStore struct {
	db *sql.DB
}

// NewClassifierStore returns a new ClassifierStore.
func NewClassifierStore(db *sql.DB) *ClassifierStore {
	return &ClassifierStore{db: db}
}

const classifierColumns = `id, group_id, name, slug, sort_order, locale, created_at, updated_at`

func scanClassifier(scanner interface{ Scan(...any) error }) (*models.Classifier, error) {
	var c models.Classifier
	err := scanner.Scan(
		&c.ID, &c.GroupID, &c.Name, &c.Slug, &c.SortOrder, &c.Locale,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// Create inserts a new classifier and returns it.
func (s *ClassifierStore) Create(ctx context.Context, c *models.Classifier) (*models.Classifier, error) {
	slugValue := c.Slug
	if slugValue == "" {
		slugValue = slug.Generate(c.Name)
	}
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO classifiers (group_id, name, slug, sort_order, locale)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+classifierColumns,
		c.GroupID, c.Name, slugValue, c.SortOrder, c.Locale,
	)
	created, err := scanClassifier(row)
	if err != nil {
		return nil, fmt.Errorf("create classifier: %w", err)
	}
	return created, nil
}

// FindByID retrieves a classifier by id. Returns ErrNotFound if absent.
func (s *ClassifierStore) FindByID(ctx context.Context, id uuid.UUID) (*models.Classifier, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+classifierColumns+` FROM classifiers WHERE id = $1`, id)
	c, err := scanClassifier(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find classifier: %w", err)
	}
	return c, nil
}

// ListByGroup returns a group's classifiers in sort order.
func (s *ClassifierStore) ListByGroup(ctx context.Context, groupID uuid.UUID) ([]models.Classifier, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+classifierColumns+` FROM classifiers
		WHERE group_id = $1
		ORDER BY sort_order, name
	`, groupID)
	if err != nil {
		return nil, fmt.Errorf("list classifiers by group: %w", err)
	}
	defer rows.Close()

	var items []models.Classifier
	for rows.Next() {
		c, err := scanClassifier(rows)
		if err != nil {
			return nil, fmt.Errorf("scan classifier: %w", err)
		}
		items = append(items, *c)
	}
	return items, rows.Err()
}

// ListByType returns all classifiers of a locale whose group has the given
// type, carrying group name/type for display.
func (s *ClassifierStore) ListByType(ctx context.Context, locale string, gtype models.GroupType) ([]models.Classifier, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.group_id, c.name, c.slug, c.sort_order, c.locale,
		       c.created_at, c.updated_at, g.name, g.type
		FROM classifiers c
		JOIN classifier_groups g ON g.id = c.group_id
		WHERE c.locale = $1 AND g.type = $2
		ORDER BY g.name, c.sort_order, c.name
	`, locale, string(gtype))
	if err != nil {
		return nil, fmt.Errorf("list classifiers by type: %w", err)
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
			return nil, fmt.Errorf("scan classifier: %w", err)
		}
		items = append(items, c)
	}
	return items, rows.Err()
}

// Popular returns the most used classifiers of a locale, usage counted
// over page associations, most used first.
func (s *ClassifierStore) Popular(ctx context.Context, locale string, limit int) ([]models.Classifier, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.group_id, c.name, c.slug, c.sort_order, c.locale,
		       c.created_at, c.updated_at, g.name, g.type,
		       COUNT(pc.id) AS usage_count
		FROM classifiers c
		JOIN classifier_groups g ON g.id = c.group_id
		JOIN page_classifiers pc ON pc.classifier_id = c.id
		WHERE c.locale = $1
		GROUP BY c.id, g.name, g.type
		HAVING COUNT(pc.id) > 0
		ORDER BY usage_count DESC, c.name
		LIMIT $2
	`, locale, limit)
	if err != nil {
		return nil, fmt.Errorf("list popular classifiers: %w", err)
	}
	defer rows.Close()

	var items []models.Classifier
	for rows.Next() {
		var c models.Classifier
		err := rows.Scan(
			&c.ID, &c.GroupID, &c.Name, &c.Slug, &c.SortOrder, &c.Locale,
			&c.CreatedAt, &c.UpdatedAt, &c.GroupName, &c.GroupType,
			&c.UsageCount,
		)
		if err != nil {
			return nil, fmt.Errorf("scan popular classifier: %w", err)
		}
		items = append(items, c)
	}
	return items, rows.Err()
}

// ForSelections resolves classifiers by id with their group's name, type,
// and selection limit attached, preserving the order of ids. Unknown ids
// are skipped; the validator treats missing rows as nothing-selected.
func (s *ClassifierStore) ForSelections(ctx context.Context, ids []uuid.UUID) ([]models.Classifier, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	args := make([]any, len(ids))
	ph := make([]string, len(ids))
	for i, id := range ids {
		args[i] = id
		ph[i] = fmt.Sprintf("$%d", i+1)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.group_id, c.name, c.slug, c.sort_order, c.locale,
		       c.created_at, c.updated_at, g.name, g.type, g.max_selections
		FROM classifiers c
		JOIN classifier_groups g ON g.id = c.group_id
		WHERE c.id IN (`+strings.Join(ph, ", ")+`)
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("resolve selections: %w", err)
	}
	defer rows.Close()

	byID := make(map[uuid.UUID]models.Classifier, len(ids))
	for rows.Next() {
		var c models.Classifier
		err := rows.Scan(
			&c.ID, &c.GroupID, &c.Name, &c.Slug, &c.SortOrder, &c.Locale,
			&c.CreatedAt, &c.UpdatedAt, &c.GroupName, &c.GroupType,
			&c.MaxSelections,
		)
		if err != nil {
			return nil, fmt.Errorf("scan selection: %w", err)
		}
		byID[c.ID] = c
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	items := make([]models.Classifier, 0, len(byID))
	for _, id := range ids {
		if c, ok := byID[id]; ok {
			items = append(items, c)
		}
	}
	return items, nil
}
