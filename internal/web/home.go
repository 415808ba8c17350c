package web

import (
	"log/slog"
	"net/http"

	"github.com/erazemk/najdeno/internal/listing"
	"github.com/erazemk/najdeno/internal/model"
	"github.com/erazemk/najdeno/internal/store"
)

// recentLimit is the number of items per type shown on the home page.
const recentLimit = 4

// Home handles GET /. The optional q parameter narrows both recent lists.
func (s *Server) Home(w http.ResponseWriter, r *http.Request) {
	data := &struct {
		PageData
		Query string
		Lost  []model.Item
		Found []model.Item
		Stats *store.ItemStats
	}{PageData: s.page(r, "Lost & Found", "home")}

	filter := listing.Filter{Search: listing.FromQuery(r.URL.Query()).Search}
	data.Query = filter.Search

	items, err := store.ListActiveItems(r.Context(), s.DB, "")
	if err != nil {
		slog.Error("failed to list items for home page", "error", err)
		data.Error = "Failed to load items"
	}
	items = listing.Apply(items, filter)
	data.Lost = firstN(listing.ByType(items, model.ItemTypeLost), recentLimit)
	data.Found = firstN(listing.ByType(items, model.ItemTypeFound), recentLimit)

	if data.Stats, err = store.GetItemStats(r.Context(), s.DB); err != nil {
		slog.Error("failed to get item stats", "error", err)
	}

	s.Templates.Render(w, "home.html", data)
}

func firstN(items []model.Item, n int) []model.Item {
	if len(items) > n {
		return items[:n]
	}
	return items
}
