package api

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/erazemk/popis/internal/model"
	"github.com/erazemk/popis/internal/store"
)

// LocationsHandler handles location endpoints.
type LocationsHandler struct {
	DB *sql.DB
}

type locationRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// List handles GET /api/locations.
func (h *LocationsHandler) List(w http.ResponseWriter, r *http.Request) {
	locations, err := store.ListLocations(r.Context(), h.DB)
	if err != nil {
		storeError(w, r, err, "failed to list locations")
		return
	}
	if locations == nil {
		locations = []model.Location{}
	}
	jsonResponse(w, http.StatusOK, locations)
}

// Get handles GET /api/locations/{id}.
func (h *LocationsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid location id")
		return
	}

	loc, err := store.GetLocation(r.Context(), h.DB, id)
	if err != nil {
		storeError(w, r, err, "failed to get location")
		return
	}
	jsonResponse(w, http.StatusOK, loc)
}

// Create handles POST /api/locations.
func (h *LocationsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req locationRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	loc, err := store.CreateLocation(r.Context(), h.DB, req.Name, req.Description)
	if err != nil {
		storeError(w, r, err, "failed to create location")
		return
	}

	slog.Info("location created", "by", GetClaims(r.Context()).Username, "location", loc.Name)
	jsonResponse(w, http.StatusCreated, loc)
}

// Update handles PUT /api/locations/{id}.
func (h *LocationsHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid location id")
		return
	}

	var req locationRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	loc, err := store.UpdateLocation(r.Context(), h.DB, id, req.Name, req.Description)
	if err != nil {
		storeError(w, r, err, "failed to update location")
		return
	}

	slog.Info("location updated", "by", GetClaims(r.Context()).Username, "location", loc.Name)
	jsonResponse(w, http.StatusOK, loc)
}
