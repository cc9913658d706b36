// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package store implements the persistent taxonomy stores: the
// materialized-path category tree, the flat classifier vocabularies, and
// the page association rows. All structural tree mutations run inside a
// single transaction so the path/depth/numchild invariants can never be
// observed half-written.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"plume/internal/models"
	"plume/internal/slug"
	"plume/internal/treepath"
)

// Invalidator receives the ids whose cached tree data became stale after a
// mutation. Implementations must be safe to call with ids that were never
// cached. A nil invalidator is allowed; the cache TTL is the backstop.
type Invalidator interface {
	Invalidate(ctx context.Context, ids ...uuid.UUID)
}

// CategoryStore manages the hierarchical category tree.
type CategoryStore struct {
	db    *sql.DB
	cache Invalidator
}

// NewCategoryStore returns a new CategoryStore.
func NewCategoryStore(db *sql.DB) *CategoryStore {
	return &CategoryStore{db: db}
}

// SetInvalidator wires the tree cache in. Invalidation is best-effort and
// runs after the mutating transaction commits.
func (s *CategoryStore) SetInvalidator(inv Invalidator) {
	s.cache = inv
}

const categoryColumns = `id, name, slug, icon, aliases, live, order_index, path, depth, numchild, locale, created_at, updated_at`

// scanCategory scans a row into a Category struct.
func scanCategory(scanner interface{ Scan(...any) error }) (*models.Category, error) {
	var c models.Category
	err := scanner.Scan(
		&c.ID, &c.Name, &c.Slug, &c.Icon, &c.Aliases, &c.Live,
		&c.OrderIndex, &c.Path, &c.Depth, &c.NumChild, &c.Locale,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// collectCategories drains rows into a slice.
func collectCategories(rows *sql.Rows) ([]models.Category, error) {
	defer rows.Close()
	var items []models.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		items = append(items, *c)
	}
	return items, rows.Err()
}

// NewCategory carries the caller-supplied attributes for a new tree node.
type NewCategory struct {
	Name       string
	Slug       string // blank auto-generates from Name
	Icon       string
	Aliases    string
	Live       bool
	OrderIndex int
}

// FindByID retrieves a category by id. Returns ErrNotFound if absent.
func (s *CategoryStore) FindByID(ctx context.Context, id uuid.UUID) (*models.Category, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+categoryColumns+` FROM categories WHERE id = $1`, id)
	c, err := scanCategory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find category by id: %w", err)
	}
	return c, nil
}

// AddChild creates a new category under parentID, allocating the next free
// sibling slot while holding a lock on the parent row so two concurrent
// inserts under the same parent can never race to the same slot.
func (s *CategoryStore) AddChild(ctx context.Context, parentID uuid.UUID, attrs NewCategory) (*models.Category, error) {
	if err := validateName(attrs.Name); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("add child begin tx: %w", err)
	}
	defer tx.Rollback()

	parent, err := findForUpdate(ctx, tx, parentID)
	if err != nil {
		return nil, err
	}

	slot, err := nextChildSlot(ctx, tx, parent)
	if err != nil {
		return nil, err
	}
	path, err := treepath.ChildPath(parent.Path, slot)
	if err != nil {
		return nil, fmt.Errorf("add child encode path: %w", err)
	}

	slugValue := attrs.Slug
	if slugValue == "" {
		slugValue = slug.Generate(attrs.Name)
	}
	slugValue, err = ensureUniqueSlug(ctx, tx, parent.Locale, slugValue)
	if err != nil {
		return nil, err
	}

	row := tx.QueryRowContext(ctx, `
		INSERT INTO categories (name, slug, icon, aliases, live, order_index, path, depth, numchild, locale)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 0, $9)
		RETURNING `+categoryColumns,
		attrs.Name, slugValue, attrs.Icon, attrs.Aliases, attrs.Live,
		attrs.OrderIndex, path, parent.Depth+1, parent.Locale,
	)
	child, err := scanCategory(row)
	if err != nil {
		return nil, fmt.Errorf("add child insert: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE categories SET numchild = numchild + 1, updated_at = NOW() WHERE id = $1`, parent.ID)
	if err != nil {
		return nil, fmt.Errorf("add child numchild: %w", err)
	}

	// Descendant sets changed for the parent and everything above it.
	stale, err := ancestorIDs(ctx, tx, parent)
	if err != nil {
		return nil, err
	}
	stale = append(stale, parent.ID)

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("add child commit: %w", err)
	}

	s.invalidate(ctx, stale)
	return child, nil
}

// MoveTo re-parents a node (and its whole subtree) under newParentID. The
// cycle check is a pure path-prefix containment test; the subtree path
// rewrite is a single bulk prefix substitution. Everything runs in one
// transaction — a crash mid-move leaves the tree untouched.
func (s *CategoryStore) MoveTo(ctx context.Context, nodeID, newParentID uuid.UUID) error {
	if nodeID == newParentID {
		return ErrCycle
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("move begin tx: %w", err)
	}
	defer tx.Rollback()

	node, err := findForUpdate(ctx, tx, nodeID)
	if err != nil {
		return err
	}
	if node.IsHiddenRoot() {
		return ErrMoveHiddenRoot
	}

	newParent, err := findForUpdate(ctx, tx, newParentID)
	if err != nil {
		return err
	}
	if newParent.Locale != node.Locale {
		return ErrLocaleMismatch
	}
	if treepath.IsAncestor(node.Path, newParent.Path) {
		return ErrCycle
	}

	oldParentPath, err := treepath.Parent(node.Path)
	if err != nil {
		return fmt.Errorf("move decode parent path: %w", err)
	}
	oldParent, err := findByPathForUpdate(ctx, tx, node.Locale, oldParentPath)
	if err != nil {
		return err
	}

	// Serialize against concurrent structural mutation of the subtree.
	if _, err := tx.ExecContext(ctx, `
		SELECT id FROM categories
		WHERE locale = $1 AND path LIKE $2 || '%' AND path <> $2
		FOR UPDATE
	`, node.Locale, node.Path); err != nil {
		return fmt.Errorf("move lock subtree: %w", err)
	}

	// The invalidation fan-out must cover both root paths plus every
	// descendant (their ancestor chains change), captured before rewrite.
	stale := []uuid.UUID{node.ID, oldParent.ID, newParent.ID}
	for _, n := range []*models.Category{oldParent, newParent} {
		ids, err := ancestorIDs(ctx, tx, n)
		if err != nil {
			return err
		}
		stale = append(stale, ids...)
	}
	descIDs, err := descendantIDsTx(ctx, tx, node)
	if err != nil {
		return err
	}
	stale = append(stale, descIDs...)

	slot, err := nextChildSlot(ctx, tx, newParent)
	if err != nil {
		return err
	}
	newPath, err := treepath.ChildPath(newParent.Path, slot)
	if err != nil {
		return fmt.Errorf("move encode path: %w", err)
	}
	depthDelta := newParent.Depth + 1 - node.Depth

	// Bulk prefix substitution over the node and all its descendants.
	_, err = tx.ExecContext(ctx, `
		UPDATE categories
		SET path = $1 || substr(path, $2), depth = depth + $3, updated_at = NOW()
		WHERE locale = $4 AND (path = $5 OR path LIKE $5 || '%')
	`, newPath, len(node.Path)+1, depthDelta, node.Locale, node.Path)
	if err != nil {
		return fmt.Errorf("move rewrite subtree: %w", err)
	}

	if oldParent.ID != newParent.ID {
		_, err = tx.ExecContext(ctx,
			`UPDATE categories SET numchild = numchild - 1, updated_at = NOW() WHERE id = $1`, oldParent.ID)
		if err != nil {
			return fmt.Errorf("move old parent numchild: %w", err)
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE categories SET numchild = numchild + 1, updated_at = NOW() WHERE id = $1`, newParent.ID)
		if err != nil {
			return fmt.Errorf("move new parent numchild: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("move commit: %w", err)
	}

	s.invalidate(ctx, stale)
	return nil
}

// Delete removes a category. The hidden root is never deletable. With
// DeleteRestrict a non-leaf node is rejected with ErrHasChildren; with
// DeleteCascade the whole subtree goes in the same transaction.
func (s *CategoryStore) Delete(ctx context.Context, nodeID uuid.UUID, policy DeletePolicy) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("delete begin tx: %w", err)
	}
	defer tx.Rollback()

	node, err := findForUpdate(ctx, tx, nodeID)
	if err != nil {
		return err
	}
	if node.IsHiddenRoot() {
		return ErrDeleteHiddenRoot
	}
	if policy == DeleteRestrict && node.NumChild > 0 {
		return ErrHasChildren
	}

	parentPath, err := treepath.Parent(node.Path)
	if err != nil {
		return fmt.Errorf("delete decode parent path: %w", err)
	}
	parent, err := findByPathForUpdate(ctx, tx, node.Locale, parentPath)
	if err != nil {
		return err
	}

	stale := []uuid.UUID{node.ID, parent.ID}
	ancIDs, err := ancestorIDs(ctx, tx, node)
	if err != nil {
		return err
	}
	stale = append(stale, ancIDs...)
	descIDs, err := descendantIDsTx(ctx, tx, node)
	if err != nil {
		return err
	}
	stale = append(stale, descIDs...)

	// Association rows go with the categories via ON DELETE CASCADE.
	_, err = tx.ExecContext(ctx, `
		DELETE FROM categories
		WHERE locale = $1 AND (path = $2 OR path LIKE $2 || '%')
	`, node.Locale, node.Path)
	if err != nil {
		return fmt.Errorf("delete subtree: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE categories SET numchild = numchild - 1, updated_at = NOW() WHERE id = $1`, parent.ID)
	if err != nil {
		return fmt.Errorf("delete parent numchild: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("delete commit: %w", err)
	}

	s.invalidate(ctx, stale)
	return nil
}

// Rename changes a category's display name. The slug is left untouched so
// existing URLs keep working.
func (s *CategoryStore) Rename(ctx context.Context, id uuid.UUID, name string) error {
	if err := validateName(name); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE categories SET name = $1, updated_at = NOW()
		WHERE id = $2 AND name <> $3
	`, name, id, models.RootCategoryName)
	if err != nil {
		return fmt.Errorf("rename category: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// SetLive toggles the soft-disable flag. The hidden root stays non-live.
func (s *CategoryStore) SetLive(ctx context.Context, id uuid.UUID, live bool) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE categories SET live = $1, updated_at = NOW()
		WHERE id = $2 AND name <> $3
	`, live, id, models.RootCategoryName)
	if err != nil {
		return fmt.Errorf("set live: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Children returns the direct children of a node in sibling display order.
func (s *CategoryStore) Children(ctx context.Context, id uuid.UUID) ([]models.Category, error) {
	node, err := s.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+categoryColumns+` FROM categories
		WHERE locale = $1 AND depth = $2 AND path LIKE $3 || '%'
		ORDER BY order_index, name
	`, node.Locale, node.Depth+1, node.Path)
	if err != nil {
		return nil, fmt.Errorf("list children: %w", err)
	}
	return collectCategories(rows)
}

// VisibleChildren returns only live direct children, for navigation menus.
func (s *CategoryStore) VisibleChildren(ctx context.Context, id uuid.UUID) ([]models.Category, error) {
	node, err := s.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+categoryColumns+` FROM categories
		WHERE locale = $1 AND depth = $2 AND path LIKE $3 || '%' AND live = TRUE
		ORDER BY order_index, name
	`, node.Locale, node.Depth+1, node.Path)
	if err != nil {
		return nil, fmt.Errorf("list visible children: %w", err)
	}
	return collectCategories(rows)
}

// Descendants returns every node below id, in path (traversal) order. The
// result is computed by a single prefix comparison, never by recursion.
func (s *CategoryStore) Descendants(ctx context.Context, id uuid.UUID) ([]models.Category, error) {
	node, err := s.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+categoryColumns+` FROM categories
		WHERE locale = $1 AND path LIKE $2 || '%' AND path <> $2
		ORDER BY path
	`, node.Locale, node.Path)
	if err != nil {
		return nil, fmt.Errorf("list descendants: %w", err)
	}
	return collectCategories(rows)
}

// VisibleDescendants returns only live nodes below id, in path order.
func (s *CategoryStore) VisibleDescendants(ctx context.Context, id uuid.UUID) ([]models.Category, error) {
	node, err := s.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+categoryColumns+` FROM categories
		WHERE locale = $1 AND path LIKE $2 || '%' AND path <> $2 AND live = TRUE
		ORDER BY path
	`, node.Locale, node.Path)
	if err != nil {
		return nil, fmt.Errorf("list visible descendants: %w", err)
	}
	return collectCategories(rows)
}

// DescendantIDs returns the ids of the live descendants of id. This is the
// loader behind the tree cache's descendant-id sets.
func (s *CategoryStore) DescendantIDs(ctx context.Context, id uuid.UUID) ([]uuid.UUID, error) {
	node, err := s.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id FROM categories
		WHERE locale = $1 AND path LIKE $2 || '%' AND path <> $2 AND live = TRUE
		ORDER BY path
	`, node.Locale, node.Path)
	if err != nil {
		return nil, fmt.Errorf("list descendant ids: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var cid uuid.UUID
		if err := rows.Scan(&cid); err != nil {
			return nil, fmt.Errorf("scan descendant id: %w", err)
		}
		ids = append(ids, cid)
	}
	return ids, rows.Err()
}

// Ancestors returns the chain above id, nearest the root first, hidden
// root included. Computed from path prefixes of the node's own path.
func (s *CategoryStore) Ancestors(ctx context.Context, id uuid.UUID) ([]models.Category, error) {
	node, err := s.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+categoryColumns+` FROM categories
		WHERE locale = $1 AND $2 LIKE path || '%' AND path <> $2
		ORDER BY path
	`, node.Locale, node.Path)
	if err != nil {
		return nil, fmt.Errorf("list ancestors: %w", err)
	}
	return collectCategories(rows)
}

// VisibleTree returns every live category of a locale except the hidden
// root, ordered by path, with page counts.
func (s *CategoryStore) VisibleTree(ctx context.Context, locale string) ([]models.Category, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.name, c.slug, c.icon, c.aliases, c.live, c.order_index,
		       c.path, c.depth, c.numchild, c.locale, c.created_at, c.updated_at,
		       COUNT(pc.id) AS page_count
		FROM categories c
		LEFT JOIN page_categories pc ON pc.category_id = c.id
		WHERE c.locale = $1 AND c.live = TRUE AND c.name <> $2
		GROUP BY c.id
		ORDER BY c.path
	`, locale, models.RootCategoryName)
	if err != nil {
		return nil, fmt.Errorf("list visible tree: %w", err)
	}
	defer rows.Close()

	var items []models.Category
	for rows.Next() {
		var c models.Category
		err := rows.Scan(
			&c.ID, &c.Name, &c.Slug, &c.Icon, &c.Aliases, &c.Live,
			&c.OrderIndex, &c.Path, &c.Depth, &c.NumChild, &c.Locale,
			&c.CreatedAt, &c.UpdatedAt, &c.PageCount,
		)
		if err != nil {
			return nil, fmt.Errorf("scan visible tree: %w", err)
		}
		items = append(items, c)
	}
	return items, rows.Err()
}

// PageCount returns how many pages are associated with the category
// itself. This is the loader behind the tree cache's content counts.
func (s *CategoryStore) PageCount(ctx context.Context, id uuid.UUID) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM page_categories WHERE category_id = $1`, id).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("page count: %w", err)
	}
	return n, nil
}

// invalidate fans the stale ids out to the cache, if one is wired. Cache
// trouble must never fail a committed mutation.
func (s *CategoryStore) invalidate(ctx context.Context, ids []uuid.UUID) {
	if s.cache == nil || len(ids) == 0 {
		return
	}
	s.cache.Invalidate(ctx, dedupe(ids)...)
}

// dedupe removes duplicate ids while keeping first-seen order.
func dedupe(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := ids[:0]
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// validateName enforces the 3–255 char name range and reserves the
// sentinel name for the hidden root machinery.
func validateName(name string) error {
	if name == models.RootCategoryName {
		return ErrReservedName
	}
	n := utf8.RuneCountInString(strings.TrimSpace(name))
	if n < 3 || n > 255 {
		return ErrNameLength
	}
	return nil
}

// findForUpdate loads a category inside tx with a row lock, serializing
// structural work against concurrent mutations of the same node.
func findForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*models.Category, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE id = $1 FOR UPDATE`, id)
	c, err := scanCategory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find category for update: %w", err)
	}
	return c, nil
}

// findByPathForUpdate loads a category by its exact path with a row lock.
func findByPathForUpdate(ctx context.Context, tx *sql.Tx, locale, path string) (*models.Category, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE locale = $1 AND path = $2 FOR UPDATE`, locale, path)
	c, err := scanCategory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find category by path for update: %w", err)
	}
	return c, nil
}

// nextChildSlot allocates the next free sibling slot under parent. The
// caller must hold the parent's row lock. Path characters never include
// LIKE metacharacters, so the prefix pattern needs no escaping.
func nextChildSlot(ctx context.Context, tx *sql.Tx, parent *models.Category) (int, error) {
	var lastPath string
	err := tx.QueryRowContext(ctx, `
		SELECT path FROM categories
		WHERE locale = $1 AND depth = $2 AND path LIKE $3 || '%'
		ORDER BY path DESC
		LIMIT 1
	`, parent.Locale, parent.Depth+1, parent.Path).Scan(&lastPath)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("next child slot: %w", err)
	}
	slot, err := treepath.NextSlot(lastPath)
	if err != nil {
		return 0, fmt.Errorf("next child slot decode %q: %w", lastPath, err)
	}
	return slot, nil
}

// ensureUniqueSlug returns base, or base with the lowest numeric suffix
// that is free within the locale.
func ensureUniqueSlug(ctx context.Context, tx *sql.Tx, locale, base string) (string, error) {
	candidate := base
	for i := 2; ; i++ {
		var exists bool
		err := tx.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM categories WHERE locale = $1 AND slug = $2)`,
			locale, candidate).Scan(&exists)
		if err != nil {
			return "", fmt.Errorf("check slug %q: %w", candidate, err)
		}
		if !exists {
			return candidate, nil
		}
		candidate = slug.WithSuffix(base, i)
		if i > 1000 {
			return "", fmt.Errorf("no free slug for %q", base)
		}
	}
}

// ancestorIDs resolves the ids of every ancestor of node, hidden root
// included, from the node's own path prefixes.
func ancestorIDs(ctx context.Context, tx *sql.Tx, node *models.Category) ([]uuid.UUID, error) {
	paths, err := treepath.Ancestors(node.Path)
	if err != nil {
		slog.Warn("ancestor id resolution on corrupt path", "id", node.ID, "path", node.Path, "error", err)
		return nil, fmt.Errorf("ancestor ids: %w", err)
	}
	var ids []uuid.UUID
	for _, p := range paths {
		var id uuid.UUID
		err := tx.QueryRowContext(ctx,
			`SELECT id FROM categories WHERE locale = $1 AND path = $2`, node.Locale, p).Scan(&id)
		if errors.Is(err, sql.ErrNoRows) {
			continue // orphaned prefix; nothing to invalidate
		}
		if err != nil {
			return nil, fmt.Errorf("ancestor id for path %q: %w", p, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// descendantIDsTx lists every descendant id of node inside tx.
func descendantIDsTx(ctx context.Context, tx *sql.Tx, node *models.Category) ([]uuid.UUID, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT id FROM categories
		WHERE locale = $1 AND path LIKE $2 || '%' AND path <> $2
	`, node.Locale, node.Path)
	if err != nil {
		return nil, fmt.Errorf("descendant ids: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan descendant id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
