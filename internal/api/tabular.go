package api

import (
	"database/sql"
	"io"
	"log/slog"
	"mime"
	"net/http"

	"github.com/erazemk/popis/internal/store"
	"github.com/erazemk/popis/internal/tabular"
)

// maxImportBytes bounds the size of an uploaded CSV.
const maxImportBytes = 32 << 20

// TabularHandler handles CSV import and export.
type TabularHandler struct {
	DB            *sql.DB
	AllowInactive bool
}

// Import handles POST /api/import/items. The CSV is either the "file" field
// of a multipart form or the raw request body.
func (h *TabularHandler) Import(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxImportBytes)

	var src io.Reader = r.Body
	if mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type")); mt == "multipart/form-data" {
		if err := r.ParseMultipartForm(maxImportBytes); err != nil {
			jsonError(w, http.StatusBadRequest, "file too large or invalid multipart form")
			return
		}
		file, _, err := r.FormFile("file")
		if err != nil {
			jsonError(w, http.StatusBadRequest, "file required")
			return
		}
		defer file.Close()
		src = file
	}

	rows, err := tabular.ReadCSV(src)
	if err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	claims := GetClaims(r.Context())
	opts := tabular.Options{Transfer: store.TransferOptions{By: &claims.UserID, AllowInactive: h.AllowInactive}}

	report, err := tabular.ImportRows(r.Context(), h.DB, rows, opts)
	if err != nil {
		storeError(w, r, err, "failed to import items")
		return
	}

	slog.Info("items imported", "by", claims.Username,
		"succeeded", report.Succeeded, "failed", len(report.Failures))

	status := http.StatusCreated
	if report.Err() != nil {
		status = http.StatusMultiStatus
	}
	jsonResponse(w, status, report)
}

// Export handles GET /api/export/items.
func (h *TabularHandler) Export(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="inventory_export.csv"`)

	// Headers are already sent once rows stream, so errors can only be logged.
	if err := tabular.ExportCSV(r.Context(), h.DB, w); err != nil {
		slog.Error("failed to export items", "error", err, "request_id", RequestIDFrom(r.Context()))
	}
}
