// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package models defines the data shapes persisted by the taxonomy engine.
package models

import (
	"time"

	"github.com/google/uuid"
)

// RootCategoryName is the reserved name of the hidden sentinel root that
// anchors every visible top-level category within a locale.
const RootCategoryName = "_root_category"

// Category is one node of the hierarchical category tree, positioned by a
// materialized path (see internal/treepath).
type Category struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	Slug       string    `json:"slug"`
	Icon       string    `json:"icon"`
	Aliases    string    `json:"aliases"`
	Live       bool      `json:"live"`
	OrderIndex int       `json:"order_index"`
	Path       string    `json:"path"`
	Depth      int       `json:"depth"`
	NumChild   int       `json:"numchild"`
	Locale     string    `json:"locale"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`

	// Virtual fields populated by store methods.
	PageCount int `json:"page_count,omitempty"`
}

// IsHiddenRoot reports whether this category is the sentinel root.
func (c *Category) IsHiddenRoot() bool {
	return c.Name == RootCategoryName
}

// GroupType distinguishes what a classifier group classifies by.
type GroupType string

const (
	// GroupTypeSubject groups classifiers describing what content is about.
	GroupTypeSubject GroupType = "Subject"
	// GroupTypeAttribute groups classifiers describing form or genre.
	GroupTypeAttribute GroupType = "Attribute"
)

// ClassifierGroup is a flat, locale-scoped vocabulary of classifiers.
// MaxSelections caps how many classifiers from the group a single content
// item may carry; zero means unlimited.
type ClassifierGroup struct {
	ID            uuid.UUID `json:"id"`
	Type          GroupType `json:"type"`
	Name          string    `json:"name"`
	Slug          string    `json:"slug"`
	MaxSelections int       `json:"max_selections"`
	Locale        string    `json:"locale"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`

	// Virtual fields populated by store methods.
	ClassifierCount int `json:"classifier_count,omitempty"`
}

// Classifier is a single tag belonging to exactly one group.
type Classifier struct {
	ID        uuid.UUID `json:"id"`
	GroupID   uuid.UUID `json:"group_id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	SortOrder int       `json:"sort_order"`
	Locale    string    `json:"locale"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Virtual fields populated by store joins.
	GroupName     string    `json:"group_name,omitempty"`
	GroupType     GroupType `json:"group_type,omitempty"`
	MaxSelections int       `json:"-"`
	UsageCount    int       `json:"usage_count,omitempty"`
}

// Page is the minimal stand-in for a host content item. The surrounding
// CMS owns the real page model; the taxonomy engine only needs a stable
// identity for association rows to reference.
type Page struct {
	ID        uuid.UUID `json:"id"`
	Title     string    `json:"title"`
	Slug      string    `json:"slug"`
	Locale    string    `json:"locale"`
	CreatedAt time.Time `json:"created_at"`
}

// PageCategory links a page to a category, ordered for per-page display.
type PageCategory struct {
	ID         uuid.UUID `json:"id"`
	PageID     uuid.UUID `json:"page_id"`
	CategoryID uuid.UUID `json:"category_id"`
	SortOrder  int       `json:"sort_order"`
}

// PageClassifier links a page to a classifier, ordered for per-page display.
type PageClassifier struct {
	ID           uuid.UUID `json:"id"`
	PageID       uuid.UUID `json:"page_id"`
	ClassifierID uuid.UUID `json:"classifier_id"`
	SortOrder    int       `json:"sort_order"`
}
