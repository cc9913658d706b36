// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package handlers exposes the taxonomy library API as a thin JSON surface
// for the surrounding CMS: tree reads and writes, classifier listings, and
// the selection validation entry point.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"plume/internal/cache"
	"plume/internal/models"
	"plume/internal/store"
	"plume/internal/validate"
)

// Taxonomy bundles the handler dependencies.
type Taxonomy struct {
	categories    *store.CategoryStore
	groups        *store.ClassifierGroupStore
	classifiers   *store.ClassifierStore
	tree          *cache.TreeCache
	validator     *validate.Validator
	defaultLocale string
}

// NewTaxonomy creates the taxonomy handler group.
func NewTaxonomy(
	categories *store.CategoryStore,
	groups *store.ClassifierGroupStore,
	classifiers *store.ClassifierStore,
	tree *cache.TreeCache,
	validator *validate.Validator,
	defaultLocale string,
) *Taxonomy {
	return &Taxonomy{
		categories:    categories,
		groups:        groups,
		classifiers:   classifiers,
		tree:          tree,
		validator:     validator,
		defaultLocale: defaultLocale,
	}
}

// locale picks the request's tree namespace.
func (h *Taxonomy) locale(r *http.Request) string {
	if l := r.URL.Query().Get("locale"); l != "" {
		return l
	}
	return h.defaultLocale
}

// categoryID parses the {id} URL parameter.
func categoryID(r *http.Request) (uuid.UUID, error) {
	return uuid.Parse(chi.URLParam(r, "id"))
}

// categoryView is a Category plus its consumer-facing depth.
type categoryView struct {
	models.Category
	DepthDisplay int `json:"depth_display"`
}

func viewOf(c models.Category) categoryView {
	return categoryView{Category: c, DepthDisplay: store.DepthDisplay(&c)}
}

func viewsOf(cats []models.Category) []categoryView {
	views := make([]categoryView, len(cats))
	for i, c := range cats {
		views[i] = viewOf(c)
	}
	return views
}

// Tree handles GET /api/categories — the full visible tree in path order.
func (h *Taxonomy) Tree(w http.ResponseWriter, r *http.Request) {
	cats, err := h.categories.VisibleTree(r.Context(), h.locale(r))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewsOf(cats))
}

// Children handles GET /api/categories/{id}/children.
func (h *Taxonomy) Children(w http.ResponseWriter, r *http.Request) {
	id, err := categoryID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid category id")
		return
	}
	cats, err := h.categories.Children(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewsOf(cats))
}

// Descendants handles GET /api/categories/{id}/descendants.
func (h *Taxonomy) Descendants(w http.ResponseWriter, r *http.Request) {
	id, err := categoryID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid category id")
		return
	}
	cats, err := h.categories.Descendants(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewsOf(cats))
}

// DescendantIDs handles GET /api/categories/{id}/descendant-ids, served
// from the tree cache.
func (h *Taxonomy) DescendantIDs(w http.ResponseWriter, r *http.Request) {
	id, err := categoryID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid category id")
		return
	}
	ids, err := h.tree.DescendantIDs(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if ids == nil {
		ids = []uuid.UUID{}
	}
	writeJSON(w, http.StatusOK, ids)
}

// Breadcrumb handles GET /api/categories/{id}/breadcrumb: the trail with
// the hidden root stripped, plus the display label.
func (h *Taxonomy) Breadcrumb(w http.ResponseWriter, r *http.Request) {
	id, err := categoryID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid category id")
		return
	}
	trail, err := h.categories.BreadcrumbTrail(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	label, err := h.categories.DisplayLabel(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"trail": viewsOf(trail),
		"label": label,
	})
}

// categoryPayload is the request body for category creation.
type categoryPayload struct {
	Name       string `json:"name"`
	Slug       string `json:"slug"`
	Icon       string `json:"icon"`
	Aliases    string `json:"aliases"`
	Live       *bool  `json:"live"`
	OrderIndex int    `json:"order_index"`
}

func (p *categoryPayload) attrs() store.NewCategory {
	live := true
	if p.Live != nil {
		live = *p.Live
	}
	return store.NewCategory{
		Name:       p.Name,
		Slug:       p.Slug,
		Icon:       p.Icon,
		Aliases:    p.Aliases,
		Live:       live,
		OrderIndex: p.OrderIndex,
	}
}

// CreateRoot handles POST /api/categories — a new visible top-level
// category under the locale's hidden root.
func (h *Taxonomy) CreateRoot(w http.ResponseWriter, r *http.Request) {
	var p categoryPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	created, err := h.categories.AddRootCategory(r.Context(), h.locale(r), p.attrs())
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, viewOf(*created))
}

// CreateChild handles POST /api/categories/{id}/children.
func (h *Taxonomy) CreateChild(w http.ResponseWriter, r *http.Request) {
	id, err := categoryID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid category id")
		return
	}
	var p categoryPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	created, err := h.categories.AddChild(r.Context(), id, p.attrs())
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, viewOf(*created))
}

// Move handles POST /api/categories/{id}/move.
func (h *Taxonomy) Move(w http.ResponseWriter, r *http.Request) {
	id, err := categoryID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid category id")
		return
	}
	var body struct {
		NewParentID uuid.UUID `json:"new_parent_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := h.categories.MoveTo(r.Context(), id, body.NewParentID); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Delete handles DELETE /api/categories/{id}. The default policy rejects
// non-leaf nodes; ?policy=cascade removes the whole subtree.
func (h *Taxonomy) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := categoryID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid category id")
		return
	}
	policy := store.DeleteRestrict
	if r.URL.Query().Get("policy") == "cascade" {
		policy = store.DeleteCascade
	}
	if err := h.categories.Delete(r.Context(), id, policy); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetLive handles PUT /api/categories/{id}/live.
func (h *Taxonomy) SetLive(w http.ResponseWriter, r *http.Request) {
	id, err := categoryID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid category id")
		return
	}
	var body struct {
		Live bool `json:"live"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := h.categories.SetLive(r.Context(), id, body.Live); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Rename handles PUT /api/categories/{id}/name. The slug is kept stable
// so published URLs survive renames.
func (h *Taxonomy) Rename(w http.ResponseWriter, r *http.Request) {
	id, err := categoryID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid category id")
		return
	}
	var body struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := h.categories.Rename(r.Context(), id, body.Name); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// FlushCache handles POST /api/cache/flush, dropping every tree cache
// entry. Meant for bulk imports and manual tree surgery.
func (h *Taxonomy) FlushCache(w http.ResponseWriter, r *http.Request) {
	h.tree.Flush(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

// Groups handles GET /api/classifier-groups, optionally filtered by type.
func (h *Taxonomy) Groups(w http.ResponseWriter, r *http.Request) {
	gtype := models.GroupType(r.URL.Query().Get("type"))
	if gtype != "" && gtype != models.GroupTypeSubject && gtype != models.GroupTypeAttribute {
		writeError(w, http.StatusBadRequest, "type must be Subject or Attribute")
		return
	}
	groups, err := h.groups.List(r.Context(), h.locale(r), gtype)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, groups)
}

// CreateGroup handles POST /api/classifier-groups.
func (h *Taxonomy) CreateGroup(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Type          models.GroupType `json:"type"`
		Name          string           `json:"name"`
		Slug          string           `json:"slug"`
		MaxSelections int              `json:"max_selections"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if body.Type != models.GroupTypeSubject && body.Type != models.GroupTypeAttribute {
		writeError(w, http.StatusBadRequest, "type must be Subject or Attribute")
		return
	}
	if body.MaxSelections < 0 {
		writeError(w, http.StatusBadRequest, "max_selections must be zero or positive")
		return
	}
	created, err := h.groups.Create(r.Context(), &models.ClassifierGroup{
		Type:          body.Type,
		Name:          body.Name,
		Slug:          body.Slug,
		MaxSelections: body.MaxSelections,
		Locale:        h.locale(r),
	})
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// DeleteGroup handles DELETE /api/classifier-groups/{id}. The group's
// classifiers go with it.
func (h *Taxonomy) DeleteGroup(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid group id")
		return
	}
	if err := h.groups.Delete(r.Context(), id); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CreateClassifier handles POST /api/classifiers.
func (h *Taxonomy) CreateClassifier(w http.ResponseWriter, r *http.Request) {
	var body struct {
		GroupID   uuid.UUID `json:"group_id"`
		Name      string    `json:"name"`
		Slug      string    `json:"slug"`
		SortOrder int       `json:"sort_order"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	group, err := h.groups.FindByID(r.Context(), body.GroupID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	created, err := h.classifiers.Create(r.Context(), &models.Classifier{
		GroupID:   group.ID,
		Name:      body.Name,
		Slug:      body.Slug,
		SortOrder: body.SortOrder,
		Locale:    group.Locale,
	})
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// PopularClassifiers handles GET /api/classifiers/popular.
func (h *Taxonomy) PopularClassifiers(w http.ResponseWriter, r *http.Request) {
	limit := 10
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	items, err := h.classifiers.Popular(r.Context(), h.locale(r), limit)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if items == nil {
		items = []models.Classifier{}
	}
	writeJSON(w, http.StatusOK, items)
}

// Classifiers handles GET /api/classifiers?group_id= or ?type=.
func (h *Taxonomy) Classifiers(w http.ResponseWriter, r *http.Request) {
	if gid := r.URL.Query().Get("group_id"); gid != "" {
		id, err := uuid.Parse(gid)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid group id")
			return
		}
		items, err := h.classifiers.ListByGroup(r.Context(), id)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, items)
		return
	}

	gtype := models.GroupType(r.URL.Query().Get("type"))
	if gtype != models.GroupTypeSubject && gtype != models.GroupTypeAttribute {
		writeError(w, http.StatusBadRequest, "group_id or a valid type is required")
		return
	}
	items, err := h.classifiers.ListByType(r.Context(), h.locale(r), gtype)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// ValidateSelections handles POST /api/validate-selections, the content
// save pipeline's pre-persist check. Violations come back as 422 with the
// full aggregated error list.
func (h *Taxonomy) ValidateSelections(w http.ResponseWriter, r *http.Request) {
	var body struct {
		PageID        uuid.UUID   `json:"page_id"`
		ClassifierIDs []uuid.UUID `json:"classifier_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	verrs, err := h.validator.ValidateSelections(r.Context(), body.ClassifierIDs)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if len(verrs) > 0 {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"valid":  false,
			"errors": verrs,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"valid": true})
}

// writeJSON encodes v with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError sends a JSON error payload.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeStoreError maps store sentinels onto HTTP statuses.
func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, store.ErrCycle),
		errors.Is(err, store.ErrHasChildren),
		errors.Is(err, store.ErrDeleteHiddenRoot),
		errors.Is(err, store.ErrMoveHiddenRoot),
		errors.Is(err, store.ErrLocaleMismatch):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, store.ErrReservedName),
		errors.Is(err, store.ErrNameLength):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
