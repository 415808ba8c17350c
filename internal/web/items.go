package web

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/erazemk/najdeno/internal/imaging"
	"github.com/erazemk/najdeno/internal/listing"
	"github.com/erazemk/najdeno/internal/model"
	"github.com/erazemk/najdeno/internal/posting"
	"github.com/erazemk/najdeno/internal/store"
)

var flashMessages = map[string]string{
	"posted":   "Your item has been posted.",
	"status":   "Item status updated.",
	"deleted":  "Item deleted.",
	"profile":  "Profile saved.",
	"password": "Password changed.",
	"removed":  "User deleted.",
}

// flash returns the confirmation for the done query parameter set by a redirect.
func flash(r *http.Request) string {
	return flashMessages[r.URL.Query().Get("done")]
}

type listPage struct {
	PageData
	Type       string
	Filter     listing.Filter
	Categories []model.Category
	Items      []model.Item
	Total      int
}

// LostItemsPage handles GET /lost.
func (s *Server) LostItemsPage(w http.ResponseWriter, r *http.Request) {
	s.listPage(w, r, model.ItemTypeLost, "Lost Items")
}

// FoundItemsPage handles GET /found.
func (s *Server) FoundItemsPage(w http.ResponseWriter, r *http.Request) {
	s.listPage(w, r, model.ItemTypeFound, "Found Items")
}

func (s *Server) listPage(w http.ResponseWriter, r *http.Request, itemType, title string) {
	data := &listPage{
		PageData: s.page(r, title, itemType),
		Type:     itemType,
		Filter:   listing.FromQuery(r.URL.Query()),
	}

	categories, err := store.ListCategories(r.Context(), s.DB)
	if err != nil {
		slog.Error("failed to list categories", "error", err)
	}
	data.Categories = categories

	items, err := store.ListActiveItems(r.Context(), s.DB, itemType)
	if err != nil {
		slog.Error("failed to list items", "type", itemType, "error", err)
		data.Error = "Failed to load items"
	}
	data.Total = len(items)
	data.Items = listing.Apply(items, data.Filter)

	s.Templates.Render(w, "items.html", data)
}

// ItemDetailPage handles GET /items/{id}.
func (s *Server) ItemDetailPage(w http.ResponseWriter, r *http.Request) {
	item, ok := s.loadItem(w, r)
	if !ok {
		return
	}

	data := &struct {
		PageData
		Item *model.Item
	}{
		PageData: s.page(r, item.Title, item.Type),
		Item:     item,
	}
	data.Success = flash(r)
	s.Templates.Render(w, "item_detail.html", data)
}

type postPage struct {
	PageData
	Categories []model.Category
	Form       posting.Submission
	Today      string
}

// PostItemPage handles GET /post. The type parameter preselects lost or found.
func (s *Server) PostItemPage(w http.ResponseWriter, r *http.Request) {
	data := s.newPostPage(r)
	data.Form.Type = r.URL.Query().Get("type")
	s.Templates.Render(w, "post.html", data)
}

// PostItemSubmit handles POST /post. The submit button carries the item type.
func (s *Server) PostItemSubmit(w http.ResponseWriter, r *http.Request) {
	claims := GetWebClaims(r.Context())
	data := s.newPostPage(r)

	r.Body = http.MaxBytesReader(w, r.Body, imaging.MaxUploadSize+(1<<20))
	if err := r.ParseMultipartForm(imaging.MaxUploadSize); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		data.Error = "Image must be a JPEG, PNG or GIF up to 10 MB"
		s.Templates.RenderStatus(w, http.StatusBadRequest, "post.html", data)
		return
	}

	sub := posting.FormSubmission(r.Form)
	data.Form = sub

	file, _, err := r.FormFile("image")
	switch {
	case err == nil:
		defer file.Close()
		sub.Image = file
	case !errors.Is(err, http.ErrMissingFile) && !errors.Is(err, http.ErrNotMultipart):
		data.Error = "Failed to upload image"
		s.Templates.RenderStatus(w, http.StatusBadRequest, "post.html", data)
		return
	}

	user, err := store.GetUser(r.Context(), s.DB, claims.UserID)
	if err != nil || user == nil || user.DeletedAt != nil {
		if err != nil {
			slog.Error("failed to get user", "error", err)
		}
		data.Error = posting.GenericMessage
		s.Templates.RenderStatus(w, http.StatusInternalServerError, "post.html", data)
		return
	}

	item, err := s.Posts.Submit(r.Context(), user, sub)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, posting.ErrValidation) {
			status = http.StatusBadRequest
		} else {
			slog.Error("failed to post item", "user", claims.Email, "error", err)
		}
		data.Error = posting.UserMessage(err)
		s.Templates.RenderStatus(w, status, "post.html", data)
		return
	}

	slog.Info("item posted", "user", claims.Email, "item", item.ID, "type", item.Type)
	http.Redirect(w, r, fmt.Sprintf("/items/%d?done=posted", item.ID), http.StatusSeeOther)
}

func (s *Server) newPostPage(r *http.Request) *postPage {
	categories, err := store.ListCategories(r.Context(), s.DB)
	if err != nil {
		slog.Error("failed to list categories", "error", err)
	}
	return &postPage{
		PageData:   s.page(r, "Post an Item", "post"),
		Categories: categories,
		Today:      s.Posts.Now().Format(model.DateLayout),
	}
}

// ItemStatusSubmit handles POST /items/{id}/status (owner or admin).
func (s *Server) ItemStatusSubmit(w http.ResponseWriter, r *http.Request) {
	claims := GetWebClaims(r.Context())
	item, ok := s.loadItem(w, r)
	if !ok {
		return
	}
	if !model.CanModify(claims.UserID, claims.Role, item) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	status := r.FormValue("status")
	if err := store.UpdateItemStatus(r.Context(), s.DB, item.ID, status); err != nil {
		if errors.Is(err, model.ErrInvalidTransition) {
			http.Error(w, "cannot change item status from "+item.Status+" to "+status, http.StatusConflict)
			return
		}
		slog.Error("failed to update item status", "error", err)
		http.Error(w, "failed to update", http.StatusInternalServerError)
		return
	}

	slog.Info("item status changed", "user", claims.Email, "item", item.ID, "from", item.Status, "to", status)
	http.Redirect(w, r, returnTo(r, fmt.Sprintf("/items/%d", item.ID), "status"), http.StatusSeeOther)
}

// ItemDeleteSubmit handles POST /items/{id}/delete (owner or admin).
func (s *Server) ItemDeleteSubmit(w http.ResponseWriter, r *http.Request) {
	claims := GetWebClaims(r.Context())
	item, ok := s.loadItem(w, r)
	if !ok {
		return
	}
	if !model.CanModify(claims.UserID, claims.Role, item) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	if err := s.Posts.Remove(r.Context(), item); err != nil {
		slog.Error("failed to delete item", "error", err)
		http.Error(w, "failed to delete", http.StatusInternalServerError)
		return
	}

	slog.Info("item deleted", "user", claims.Email, "item", item.ID)
	http.Redirect(w, r, returnTo(r, "/dashboard", "deleted"), http.StatusSeeOther)
}

// loadItem fetches the {id} item, writing a 404 for missing or deleted items.
func (s *Server) loadItem(w http.ResponseWriter, r *http.Request) (*model.Item, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return nil, false
	}

	item, err := store.GetItem(r.Context(), s.DB, id)
	if err != nil {
		slog.Error("failed to get item", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return nil, false
	}
	if item == nil || item.DeletedAt != nil {
		http.Error(w, "item not found", http.StatusNotFound)
		return nil, false
	}
	return item, true
}

// returnTo picks the redirect target of a form action: the local path in the
// form's "return" field or fallback, tagged with the done message.
func returnTo(r *http.Request, fallback, done string) string {
	target := fallback
	if ret := r.FormValue("return"); ret != "" {
		target = safeRedirect(ret)
	}
	u, err := url.Parse(target)
	if err != nil {
		return fallback
	}
	q := u.Query()
	q.Set("done", done)
	u.RawQuery = q.Encode()
	return u.String()
}
