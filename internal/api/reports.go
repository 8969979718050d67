package api

import (
	"database/sql"
	"net/http"

	"github.com/erazemk/popis/internal/model"
	"github.com/erazemk/popis/internal/store"
)

// ReportsHandler serves the aggregate reports.
type ReportsHandler struct {
	DB      *sql.DB
	Options store.ReportOptions
}

// Stats handles GET /api/reports/stats.
func (h *ReportsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := store.Stats(r.Context(), h.DB, h.Options)
	if err != nil {
		storeError(w, r, err, "failed to build stats")
		return
	}
	jsonResponse(w, http.StatusOK, stats)
}

// ByType handles GET /api/reports/types.
func (h *ReportsHandler) ByType(w http.ResponseWriter, r *http.Request) {
	stats, err := store.StatsByType(r.Context(), h.DB, h.Options)
	if err != nil {
		storeError(w, r, err, "failed to build type stats")
		return
	}
	if stats == nil {
		stats = []model.TypeStats{}
	}
	jsonResponse(w, http.StatusOK, stats)
}

// ByLocation handles GET /api/reports/locations.
func (h *ReportsHandler) ByLocation(w http.ResponseWriter, r *http.Request) {
	stats, err := store.StatsByLocation(r.Context(), h.DB)
	if err != nil {
		storeError(w, r, err, "failed to build location stats")
		return
	}
	jsonResponse(w, http.StatusOK, stats)
}

// LocationsFull handles GET /api/reports/locations/full.
func (h *ReportsHandler) LocationsFull(w http.ResponseWriter, r *http.Request) {
	reports, err := store.LocationFullReport(r.Context(), h.DB)
	if err != nil {
		storeError(w, r, err, "failed to build location report")
		return
	}
	jsonResponse(w, http.StatusOK, reports)
}
