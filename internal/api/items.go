package api

import (
	"database/sql"
	"errors"
	"log/slog"
	"mime"
	"net/http"

	"github.com/erazemk/najdeno/internal/imaging"
	"github.com/erazemk/najdeno/internal/listing"
	"github.com/erazemk/najdeno/internal/model"
	"github.com/erazemk/najdeno/internal/posting"
	"github.com/erazemk/najdeno/internal/store"
)

// ItemsHandler handles item endpoints.
type ItemsHandler struct {
	DB    *sql.DB
	Posts *posting.Service
}

type createItemRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	CategoryID  int64  `json:"category_id"`
	Location    string `json:"location"`
	Date        string `json:"date"`
	Type        string `json:"type"`
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

// List handles GET /api/items. Only active items are listed, newest first,
// narrowed by the type, q, category and location query parameters.
func (h *ItemsHandler) List(w http.ResponseWriter, r *http.Request) {
	itemType := r.URL.Query().Get("type")
	if itemType != "" && !model.ValidItemType(itemType) {
		jsonError(w, http.StatusBadRequest, "type must be lost or found")
		return
	}

	items, err := store.ListActiveItems(r.Context(), h.DB, itemType)
	if err != nil {
		slog.Error("failed to list items", "error", err)
		jsonError(w, http.StatusInternalServerError, "Failed to load items")
		return
	}

	items = listing.Apply(items, listing.FromQuery(r.URL.Query()))
	if items == nil {
		items = []model.Item{}
	}
	jsonResponse(w, http.StatusOK, items)
}

// ListMine handles GET /api/me/items: all of the caller's items in any status.
func (h *ItemsHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	items, err := store.ListItems(r.Context(), h.DB, store.ItemQuery{UserID: claims.UserID})
	if err != nil {
		slog.Error("failed to list user items", "error", err)
		jsonError(w, http.StatusInternalServerError, "Failed to load items")
		return
	}
	if items == nil {
		items = []model.Item{}
	}
	jsonResponse(w, http.StatusOK, items)
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
		slog.Error("failed to get item", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to get item")
		return
	}
	if item == nil || item.DeletedAt != nil {
		jsonError(w, http.StatusNotFound, "item not found")
		return
	}

	jsonResponse(w, http.StatusOK, item)
}

// Create handles POST /api/items. Accepts a JSON body, or a multipart form
// with the same fields plus an optional "image" file.
func (h *ItemsHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())

	sub, cleanup, err := readSubmission(w, r)
	if err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}
	defer cleanup()

	user, err := store.GetUser(r.Context(), h.DB, claims.UserID)
	if err != nil {
		slog.Error("failed to get user", "error", err)
		jsonError(w, http.StatusInternalServerError, posting.GenericMessage)
		return
	}
	if user == nil || user.DeletedAt != nil {
		jsonError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	item, err := h.Posts.Submit(r.Context(), user, sub)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, posting.ErrValidation):
			status = http.StatusBadRequest
		case errors.Is(err, posting.ErrUpload):
			status = http.StatusBadGateway
		}
		if status >= 500 {
			slog.Error("failed to post item", "user", claims.Email, "error", err)
		}
		jsonError(w, status, posting.UserMessage(err))
		return
	}

	slog.Info("item posted", "user", claims.Email, "item", item.ID, "type", item.Type)
	jsonResponse(w, http.StatusCreated, item)
}

// UpdateStatus handles PUT /api/items/{id}/status.
func (h *ItemsHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	item, ok := h.loadModifiable(w, r)
	if !ok {
		return
	}

	var req updateStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !model.ValidItemStatus(req.Status) {
		jsonError(w, http.StatusBadRequest, "invalid status")
		return
	}

	if err := store.UpdateItemStatus(r.Context(), h.DB, item.ID, req.Status); err != nil {
		if errors.Is(err, model.ErrInvalidTransition) {
			jsonError(w, http.StatusConflict, "cannot change status from "+item.Status+" to "+req.Status)
			return
		}
		slog.Error("failed to update item status", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to update item")
		return
	}

	slog.Info("item status changed", "user", claims.Email, "item", item.ID, "from", item.Status, "to", req.Status)
	updated, _ := store.GetItem(r.Context(), h.DB, item.ID)
	jsonResponse(w, http.StatusOK, updated)
}

// Delete handles DELETE /api/items/{id}.
func (h *ItemsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	item, ok := h.loadModifiable(w, r)
	if !ok {
		return
	}

	if err := h.Posts.Remove(r.Context(), item); err != nil {
		slog.Error("failed to delete item", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to delete item")
		return
	}

	slog.Info("item deleted", "user", claims.Email, "item", item.ID)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "item deleted"})
}

// loadModifiable fetches the {id} item and checks the caller may change it.
// It writes the error response itself when it returns false.
func (h *ItemsHandler) loadModifiable(w http.ResponseWriter, r *http.Request) (*model.Item, bool) {
	claims := GetClaims(r.Context())
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return nil, false
	}

	item, err := store.GetItem(r.Context(), h.DB, id)
	if err != nil {
		slog.Error("failed to get item", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to get item")
		return nil, false
	}
	if item == nil || item.DeletedAt != nil {
		jsonError(w, http.StatusNotFound, "item not found")
		return nil, false
	}
	if !model.CanModify(claims.UserID, claims.Role, item) {
		jsonError(w, http.StatusForbidden, "insufficient permissions")
		return nil, false
	}
	return item, true
}

// readSubmission reads the item form from a JSON or multipart body.
func readSubmission(w http.ResponseWriter, r *http.Request) (posting.Submission, func(), error) {
	noop := func() {}
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	if mediaType == "application/json" {
		var req createItemRequest
		if err := decodeJSON(r, &req); err != nil {
			return posting.Submission{}, noop, errors.New("invalid request body")
		}
		return posting.Submission{
			Title:       req.Title,
			Description: req.Description,
			CategoryID:  req.CategoryID,
			Location:    req.Location,
			Date:        req.Date,
			Type:        req.Type,
		}, noop, nil
	}

	r.Body = http.MaxBytesReader(w, r.Body, imaging.MaxUploadSize+(1<<20))
	if err := r.ParseMultipartForm(imaging.MaxUploadSize); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		return posting.Submission{}, noop, errors.New("file too large or invalid form")
	}

	sub := posting.FormSubmission(r.Form)
	file, _, err := r.FormFile("image")
	switch {
	case err == nil:
		sub.Image = file
		return sub, func() { file.Close() }, nil
	case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
		return sub, noop, nil
	default:
		return posting.Submission{}, noop, errors.New("invalid image upload")
	}
}
