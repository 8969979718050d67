package api

import (
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/erazemk/popis/internal/imaging"
	"github.com/erazemk/popis/internal/model"
	"github.com/erazemk/popis/internal/store"
)

// ItemsHandler handles item, photo and ledger endpoints.
type ItemsHandler struct {
	DB            *sql.DB
	Images        *imaging.Processor
	AllowInactive bool
}

type createItemRequest struct {
	model.ItemInput
	// LocationID optionally places the new item right away.
	LocationID *int64 `json:"location_id"`
}

type transferRequest struct {
	LocationID int64 `json:"location_id"`
}

type bulkTransferRequest struct {
	ItemIDs    []int64 `json:"item_ids"`
	LocationID int64   `json:"location_id"`
}

// transferOptions records the caller as the one making the move.
func (h *ItemsHandler) transferOptions(r *http.Request) store.TransferOptions {
	opts := store.TransferOptions{AllowInactive: h.AllowInactive}
	if claims := GetClaims(r.Context()); claims != nil {
		opts.By = &claims.UserID
	}
	return opts
}

// List handles GET /api/items.
func (h *ItemsHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := model.ItemFilter{Query: r.URL.Query().Get("q")}
	if s := r.URL.Query().Get("active"); s != "" {
		active, err := strconv.ParseBool(s)
		if err != nil {
			jsonError(w, http.StatusBadRequest, "invalid active filter")
			return
		}
		filter.Active = &active
	}

	items, err := store.ListItems(r.Context(), h.DB, filter)
	if err != nil {
		storeError(w, r, err, "failed to list items")
		return
	}
	if items == nil {
		items = []model.Item{}
	}
	jsonResponse(w, http.StatusOK, items)
}

// Create handles POST /api/items.
func (h *ItemsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createItemRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	item, err := store.CreateItemAt(r.Context(), h.DB, req.ItemInput, req.LocationID, h.transferOptions(r))
	if err != nil {
		storeError(w, r, err, "failed to create item")
		return
	}

	slog.Info("item created", "by", GetClaims(r.Context()).Username, "item", item.Name,
		"inventory_number", item.InventoryNumber)
	jsonResponse(w, http.StatusCreated, item)
}

// Get handles GET /api/items/{id}.
func (h *ItemsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	item, err := store.GetItem(r.Context(), h.DB, id)
	if err != nil {
		storeError(w, r, err, "failed to get item")
		return
	}
	jsonResponse(w, http.StatusOK, item)
}

// Update handles PATCH /api/items/{id}.
func (h *ItemsHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	var req model.ItemUpdate
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	item, err := store.UpdateItem(r.Context(), h.DB, id, req)
	if err != nil {
		storeError(w, r, err, "failed to update item")
		return
	}

	slog.Info("item updated", "by", GetClaims(r.Context()).Username, "item", item.Name, "active", item.Active)
	jsonResponse(w, http.StatusOK, item)
}

// UploadImage handles PUT /api/items/{id}/image.
func (h *ItemsHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	// Leave room for the multipart envelope.
	r.Body = http.MaxBytesReader(w, r.Body, h.Images.MaxBytes+1<<20)
	if err := r.ParseMultipartForm(h.Images.MaxBytes); err != nil {
		jsonError(w, http.StatusBadRequest, "file too large or invalid multipart form")
		return
	}

	file, _, err := r.FormFile("image")
	if err != nil {
		jsonError(w, http.StatusBadRequest, "image file required")
		return
	}
	defer file.Close()

	photo, err := h.Images.Process(file)
	if err != nil {
		if errors.Is(err, imaging.ErrUnsupported) || errors.Is(err, imaging.ErrTooLarge) {
			jsonError(w, http.StatusBadRequest, err.Error())
			return
		}
		slog.Error("failed to process image", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to process image")
		return
	}

	if err := store.SetItemImage(r.Context(), h.DB, id, photo.Data, photo.MIME); err != nil {
		storeError(w, r, err, "failed to save image")
		return
	}

	slog.Info("item image uploaded", "by", GetClaims(r.Context()).Username, "item_id", id,
		"width", photo.Width, "height", photo.Height)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "image uploaded"})
}

// GetImage handles GET /api/items/{id}/image.
func (h *ItemsHandler) GetImage(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	data, mime, err := store.GetItemImage(r.Context(), h.DB, id)
	if err != nil {
		storeError(w, r, err, "failed to get image")
		return
	}
	if data == nil {
		jsonError(w, http.StatusNotFound, "no image")
		return
	}

	w.Header().Set("Content-Type", mime)
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.Write(data)
}

// Transfer handles POST /api/items/{id}/transfer.
func (h *ItemsHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	var req transferRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.LocationID <= 0 {
		jsonError(w, http.StatusBadRequest, "location_id required")
		return
	}

	a, err := store.Transfer(r.Context(), h.DB, id, req.LocationID, h.transferOptions(r))
	if err != nil {
		storeError(w, r, err, "failed to transfer item")
		return
	}

	slog.Info("item transferred", "by", GetClaims(r.Context()).Username,
		"item", a.ItemName, "location", a.LocationName)
	jsonResponse(w, http.StatusOK, a)
}

// BulkTransfer handles POST /api/items/bulk-transfer.
func (h *ItemsHandler) BulkTransfer(w http.ResponseWriter, r *http.Request) {
	var req bulkTransferRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.LocationID <= 0 {
		jsonError(w, http.StatusBadRequest, "location_id required")
		return
	}

	assignments, err := store.BulkTransfer(r.Context(), h.DB, req.ItemIDs, req.LocationID, h.transferOptions(r))
	if err != nil {
		storeError(w, r, err, "failed to transfer items")
		return
	}

	slog.Info("items transferred", "by", GetClaims(r.Context()).Username,
		"count", len(assignments), "location_id", req.LocationID)
	jsonResponse(w, http.StatusOK, assignments)
}

// History handles GET /api/items/{id}/history.
func (h *ItemsHandler) History(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	history, err := store.History(r.Context(), h.DB, id)
	if err != nil {
		storeError(w, r, err, "failed to get item history")
		return
	}
	if history == nil {
		history = []model.Assignment{}
	}
	jsonResponse(w, http.StatusOK, history)
}
