// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// root.go implements the hidden-root policy: every locale owns exactly one
// non-live sentinel category that anchors the visible top-level categories
// as its children, and display helpers keep the sentinel invisible to
// consumers (depth, breadcrumbs, labels).
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"plume/internal/models"
	"plume/internal/treepath"
)

// maxBreadcrumbLength is the display cutoff before a joined breadcrumb
// falls back to its last two segments, then to a truncated name.
const maxBreadcrumbLength = 80

// breadcrumbSeparator joins breadcrumb segments in display labels.
const breadcrumbSeparator = " :: "

// GetOrCreateHiddenRoot returns the sentinel root of a locale, creating it
// when absent. Safe to call concurrently: the insert ignores conflicts on
// the partial unique index and the row is re-read afterwards, so exactly
// one sentinel ever exists per locale.
func (s *CategoryStore) GetOrCreateHiddenRoot(ctx context.Context, locale string) (*models.Category, error) {
	root, err := s.findHiddenRoot(ctx, locale)
	if err == nil {
		return root, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	rootPath, err := treepath.ChildPath("", 0)
	if err != nil {
		return nil, fmt.Errorf("hidden root path: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO categories (name, slug, icon, aliases, live, order_index, path, depth, numchild, locale)
		VALUES ($1, 'hidden-root', '', 'System root category - do not modify', FALSE, 0, $2, 1, 0, $3)
		ON CONFLICT (locale) WHERE name = '_root_category' DO NOTHING
	`, models.RootCategoryName, rootPath, locale)
	if err != nil {
		return nil, fmt.Errorf("create hidden root: %w", err)
	}

	return s.findHiddenRoot(ctx, locale)
}

// findHiddenRoot fetches the sentinel row of a locale.
func (s *CategoryStore) findHiddenRoot(ctx context.Context, locale string) (*models.Category, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE locale = $1 AND name = $2`,
		locale, models.RootCategoryName)
	c, err := scanCategory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find hidden root: %w", err)
	}
	return c, nil
}

// AddRootCategory creates a visible top-level category, which is simply a
// child of the locale's hidden root.
func (s *CategoryStore) AddRootCategory(ctx context.Context, locale string, attrs NewCategory) (*models.Category, error) {
	root, err := s.GetOrCreateHiddenRoot(ctx, locale)
	if err != nil {
		return nil, err
	}
	return s.AddChild(ctx, root.ID, attrs)
}

// VisibleRootCategories lists the live top-level categories of a locale in
// sibling display order.
func (s *CategoryStore) VisibleRootCategories(ctx context.Context, locale string) ([]models.Category, error) {
	root, err := s.GetOrCreateHiddenRoot(ctx, locale)
	if err != nil {
		return nil, err
	}
	return s.VisibleChildren(ctx, root.ID)
}

// DepthDisplay reports the depth consumers should see: the sentinel itself
// is 0 and visible top-level categories are 1, hiding the extra level the
// sentinel adds to the stored tree.
func DepthDisplay(c *models.Category) int {
	if c.IsHiddenRoot() {
		return 0
	}
	if c.Depth <= 1 {
		return c.Depth
	}
	return c.Depth - 1
}

// BreadcrumbTrail returns the live ancestor chain of a node with the
// hidden root stripped, nearest the root first.
func (s *CategoryStore) BreadcrumbTrail(ctx context.Context, id uuid.UUID) ([]models.Category, error) {
	ancestors, err := s.Ancestors(ctx, id)
	if err != nil {
		return nil, err
	}
	trail := ancestors[:0]
	for _, a := range ancestors {
		if a.IsHiddenRoot() || !a.Live {
			continue
		}
		trail = append(trail, a)
	}
	return trail, nil
}

// DisplayLabel renders the breadcrumb label of a node: segments joined
// with " :: ", falling back past the 80-char cutoff to the last two
// segments, then to an ellipsis-truncated single name.
func (s *CategoryStore) DisplayLabel(ctx context.Context, id uuid.UUID) (string, error) {
	node, err := s.FindByID(ctx, id)
	if err != nil {
		return "", err
	}
	if node.IsHiddenRoot() {
		return "[Hidden Root]", nil
	}

	trail, err := s.BreadcrumbTrail(ctx, id)
	if err != nil {
		return "", err
	}
	names := make([]string, 0, len(trail)+1)
	for _, a := range trail {
		names = append(names, a.Name)
	}
	names = append(names, node.Name)

	breadcrumb := strings.Join(names, breadcrumbSeparator)
	if len(breadcrumb) <= maxBreadcrumbLength {
		return breadcrumb, nil
	}

	if len(names) > 3 {
		short := strings.Join(names[len(names)-2:], breadcrumbSeparator)
		if len(short) <= maxBreadcrumbLength {
			return "...> " + short, nil
		}
	}

	if len(node.Name) > maxBreadcrumbLength-3 {
		return node.Name[:maxBreadcrumbLength-3] + "...", nil
	}
	return node.Name, nil
}

// FullName returns the space-joined breadcrumb string used for search
// indexing by the host CMS. The hidden root yields an empty string.
func (s *CategoryStore) FullName(ctx context.Context, id uuid.UUID) (string, error) {
	node, err := s.FindByID(ctx, id)
	if err != nil {
		return "", err
	}
	if node.IsHiddenRoot() {
		return "", nil
	}
	trail, err := s.BreadcrumbTrail(ctx, id)
	if err != nil {
		return "", err
	}
	names := make([]string, 0, len(trail)+1)
	for _, a := range trail {
		names = append(names, a.Name)
	}
	names = append(names, node.Name)
	return strings.Join(names, " "), nil
}

// URLPath returns the slash-joined slug path of a node, hidden root
// excluded.
func (s *CategoryStore) URLPath(ctx context.Context, id uuid.UUID) (string, error) {
	node, err := s.FindByID(ctx, id)
	if err != nil {
		return "", err
	}
	trail, err := s.BreadcrumbTrail(ctx, id)
	if err != nil {
		return "", err
	}
	slugs := make([]string, 0, len(trail)+1)
	for _, a := range trail {
		slugs = append(slugs, a.Slug)
	}
	slugs = append(slugs, node.Slug)
	return strings.Join(slugs, "/"), nil
}
