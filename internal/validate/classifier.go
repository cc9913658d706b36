// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package validate checks classifier selections against their groups'
// max_selections limits. It is invoked by the host's content-save pipeline
// before association rows are persisted; every violated group produces its
// own error and all of them are reported together, never just the first.
package validate

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"plume/internal/models"
	"plume/internal/store"
)

// Selection is one classifier chosen for a content item, with enough group
// context to evaluate the limit and render a useful message.
type Selection struct {
	ClassifierName string
	GroupID        uuid.UUID
	GroupName      string
	GroupType      models.GroupType
	MaxSelections  int
}

// GroupError describes one group whose selection limit was exceeded.
type GroupError struct {
	GroupName string           `json:"group_name"`
	GroupType models.GroupType `json:"group_type"`
	Limit     int              `json:"limit"`
	Selected  []string         `json:"selected"`
}

// Error renders the violation. A limit of one gets the singular form.
func (e GroupError) Error() string {
	names := strings.Join(e.Selected, ", ")
	if e.Limit == 1 {
		return fmt.Sprintf(
			"only one classifier can be selected from group %q (%s); currently selected: %s",
			e.GroupName, e.GroupType, names)
	}
	return fmt.Sprintf(
		"maximum %d classifiers allowed from group %q (%s); currently selected %d: %s",
		e.Limit, e.GroupName, e.GroupType, len(e.Selected), names)
}

// Errors aggregates every violated group of one validation pass.
type Errors []GroupError

// Error joins the individual group messages.
func (e Errors) Error() string {
	msgs := make([]string, len(e))
	for i, ge := range e {
		msgs[i] = ge.Error()
	}
	return strings.Join(msgs, "; ")
}

// Selections checks the given selections against their groups' limits and
// returns one GroupError per violated group, in first-seen group order.
// A nil result means every group is within its limit; groups with
// max_selections of zero are unlimited.
func Selections(sels []Selection) Errors {
	type bucket struct {
		name  string
		gtype models.GroupType
		limit int
		names []string
	}

	byGroup := make(map[uuid.UUID]*bucket)
	var order []uuid.UUID
	for _, s := range sels {
		b, ok := byGroup[s.GroupID]
		if !ok {
			b = &bucket{name: s.GroupName, gtype: s.GroupType, limit: s.MaxSelections}
			byGroup[s.GroupID] = b
			order = append(order, s.GroupID)
		}
		b.names = append(b.names, s.ClassifierName)
	}

	var errs Errors
	for _, id := range order {
		b := byGroup[id]
		if b.limit > 0 && len(b.names) > b.limit {
			errs = append(errs, GroupError{
				GroupName: b.name,
				GroupType: b.gtype,
				Limit:     b.limit,
				Selected:  b.names,
			})
		}
	}
	return errs
}

// Validator resolves classifier ids through the store and applies the
// group limits. It has no state beyond the store handle.
type Validator struct {
	classifiers *store.ClassifierStore
}

// NewValidator returns a Validator backed by the given classifier store.
func NewValidator(classifiers *store.ClassifierStore) *Validator {
	return &Validator{classifiers: classifiers}
}

// ValidateSelections loads the selected classifiers with their group
// limits and evaluates them. The returned Errors is nil when the selection
// is acceptable; the error return reports store failures only.
func (v *Validator) ValidateSelections(ctx context.Context, classifierIDs []uuid.UUID) (Errors, error) {
	if len(classifierIDs) == 0 {
		return nil, nil
	}
	resolved, err := v.classifiers.ForSelections(ctx, classifierIDs)
	if err != nil {
		return nil, fmt.Errorf("validate selections: %w", err)
	}

	sels := make([]Selection, len(resolved))
	for i, c := range resolved {
		sels[i] = Selection{
			ClassifierName: c.Name,
			GroupID:        c.GroupID,
			GroupName:      c.GroupName,
			GroupType:      c.GroupType,
			MaxSelections:  c.MaxSelections,
		}
	}
	return Selections(sels), nil
}
