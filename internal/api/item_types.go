package api

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/erazemk/popis/internal/model"
	"github.com/erazemk/popis/internal/store"
)

// ItemTypesHandler handles item type endpoints.
type ItemTypesHandler struct {
	DB *sql.DB
}

// List handles GET /api/item-types.
func (h *ItemTypesHandler) List(w http.ResponseWriter, r *http.Request) {
	types, err := store.ListItemTypes(r.Context(), h.DB)
	if err != nil {
		storeError(w, r, err, "failed to list item types")
		return
	}
	if types == nil {
		types = []model.ItemType{}
	}
	jsonResponse(w, http.StatusOK, types)
}

// Get handles GET /api/item-types/{id}.
func (h *ItemTypesHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid item type id")
		return
	}

	t, err := store.GetItemType(r.Context(), h.DB, id)
	if err != nil {
		storeError(w, r, err, "failed to get item type")
		return
	}
	jsonResponse(w, http.StatusOK, t)
}

// Create handles POST /api/item-types.
func (h *ItemTypesHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	t, err := store.CreateItemType(r.Context(), h.DB, req.Name)
	if err != nil {
		storeError(w, r, err, "failed to create item type")
		return
	}

	slog.Info("item type created", "by", GetClaims(r.Context()).Username, "item_type", t.Name)
	jsonResponse(w, http.StatusCreated, t)
}
