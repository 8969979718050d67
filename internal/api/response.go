package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/erazemk/popis/internal/store"
)

// jsonResponse writes a JSON response with the given status code.
func jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("encoding response", "error", err)
		}
	}
}

// jsonError writes a JSON error response.
func jsonError(w http.ResponseWriter, status int, message string) {
	jsonResponse(w, status, map[string]string{"error": message})
}

// storeError maps a store error to its HTTP status. Domain errors carry a
// message safe to show; anything else is logged and reported as msg.
func storeError(w http.ResponseWriter, r *http.Request, err error, msg string) {
	switch {
	case store.IsValidation(err):
		jsonError(w, http.StatusBadRequest, err.Error())
	case store.IsNotFound(err):
		jsonError(w, http.StatusNotFound, err.Error())
	case store.IsConflict(err):
		jsonError(w, http.StatusConflict, err.Error())
	default:
		slog.Error(msg, "error", err, "request_id", RequestIDFrom(r.Context()))
		jsonError(w, http.StatusInternalServerError, msg)
	}
}

// decodeJSON decodes a JSON request body into the given target.
func decodeJSON(r *http.Request, target any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(target)
}

// pathID parses the {id} path value.
func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	return id, err == nil && id > 0
}
