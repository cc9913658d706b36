// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package store

import "errors"

// Structural taxonomy errors. These indicate a violated tree invariant or
// a forbidden operation, not bad user input; callers should surface them
// and abort.
var (
	// ErrNotFound reports a category, group, or classifier id that does
	// not exist.
	ErrNotFound = errors.New("store: not found")

	// ErrCycle reports a MoveTo whose target parent is the node itself or
	// one of its descendants.
	ErrCycle = errors.New("store: move would create a cycle")

	// ErrDeleteHiddenRoot reports an attempt to delete the sentinel root.
	ErrDeleteHiddenRoot = errors.New("store: cannot delete hidden root category")

	// ErrMoveHiddenRoot reports an attempt to re-parent the sentinel root.
	ErrMoveHiddenRoot = errors.New("store: cannot move hidden root category")

	// ErrHasChildren reports a restrict-policy delete of a non-leaf node.
	ErrHasChildren = errors.New("store: category has children")

	// ErrReservedName reports an attempt to create a regular category with
	// the sentinel root's reserved name.
	ErrReservedName = errors.New("store: category name is reserved")

	// ErrNameLength reports a category name outside the 3–255 char range.
	ErrNameLength = errors.New("store: category name must be 3 to 255 characters")

	// ErrLocaleMismatch reports a MoveTo across locale namespaces.
	ErrLocaleMismatch = errors.New("store: categories belong to different locales")
)

// DeletePolicy controls what Delete does with a non-empty subtree.
type DeletePolicy int

const (
	// DeleteRestrict rejects deletion when the node has children.
	DeleteRestrict DeletePolicy = iota
	// DeleteCascade removes the node together with its whole subtree.
	DeleteCascade
)
