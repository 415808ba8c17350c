package web

import (
	"log/slog"
	"net/http"

	"github.com/erazemk/najdeno/internal/listing"
	"github.com/erazemk/najdeno/internal/model"
	"github.com/erazemk/najdeno/internal/store"
)

var dashboardTabs = []string{"overview", "lost", "found", "resolved"}

// Dashboard handles GET /dashboard: the signed-in user's own items in every status.
func (s *Server) Dashboard(w http.ResponseWriter, r *http.Request) {
	claims := GetWebClaims(r.Context())

	tab := r.URL.Query().Get("tab")
	valid := false
	for _, t := range dashboardTabs {
		valid = valid || t == tab
	}
	if !valid {
		tab = "overview"
	}

	data := &struct {
		PageData
		Profile  *model.User
		Tab      string
		Tabs     []string
		Summary  listing.Summary
		Items    []model.Item
		Inactive []model.Item
	}{
		PageData: s.page(r, "Dashboard", "dashboard"),
		Tab:      tab,
		Tabs:     dashboardTabs,
	}
	data.Success = flash(r)

	user, err := store.GetUser(r.Context(), s.DB, claims.UserID)
	if err != nil {
		slog.Error("failed to get user for dashboard", "error", err)
	}
	data.Profile = user

	items, err := store.ListItems(r.Context(), s.DB, store.ItemQuery{UserID: claims.UserID})
	if err != nil {
		slog.Error("failed to list user items", "error", err)
		data.Error = "Failed to load items"
	}
	data.Summary = listing.Summarize(items)

	switch tab {
	case "lost", "found":
		data.Items = listing.ByType(items, tab)
	case "resolved":
		data.Items = listing.ByStatus(items, model.ItemStatusResolved)
	default:
		data.Items = listing.ByStatus(items, model.ItemStatusActive)
		data.Inactive = listing.ByStatus(items, model.ItemStatusInactive)
	}

	s.Templates.Render(w, "dashboard.html", data)
}
