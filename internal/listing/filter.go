// Package listing filters item lists the way the lost and found pages do.
package listing

import (
	"net/url"
	"strings"

	"github.com/erazemk/najdeno/internal/model"
)

// Filter holds the list page's search state. The zero value matches everything.
type Filter struct {
	Search   string
	Category string
	Location string
}

// FromQuery reads a Filter from the q, category and location parameters.
// Surrounding spaces in the text fields are dropped, so "wallet " and
// "wallet" search alike.
func FromQuery(v url.Values) Filter {
	return Filter{
		Search:   strings.TrimSpace(v.Get("q")),
		Category: v.Get("category"),
		Location: strings.TrimSpace(v.Get("location")),
	}
}

// IsZero reports whether f matches every item.
func (f Filter) IsZero() bool {
	return f.Search == "" && allCategories(f.Category) && f.Location == ""
}

// Match reports whether item passes all three conditions: search text in the
// title or description, exact category, and location substring. Text
// comparisons ignore case.
func (f Filter) Match(item *model.Item) bool {
	if f.Search != "" {
		q := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(item.Title), q) &&
			!strings.Contains(strings.ToLower(item.Description), q) {
			return false
		}
	}

	if !allCategories(f.Category) && item.Category != f.Category {
		return false
	}

	if f.Location != "" && !strings.Contains(strings.ToLower(item.Location), strings.ToLower(f.Location)) {
		return false
	}

	return true
}

// Apply returns the items that match f, keeping their order. The zero filter
// returns items unchanged.
func Apply(items []model.Item, f Filter) []model.Item {
	if f.IsZero() {
		return items
	}
	out := make([]model.Item, 0, len(items))
	for i := range items {
		if f.Match(&items[i]) {
			out = append(out, items[i])
		}
	}
	return out
}

func allCategories(c string) bool {
	return c == "" || c == model.AllCategories
}

// Summary counts a user's items for the dashboard.
type Summary struct {
	Posted   int
	Active   int
	Resolved int
	Lost     int
	Found    int
}

// Summarize counts items by status and type.
func Summarize(items []model.Item) Summary {
	var s Summary
	for _, item := range items {
		s.Posted++
		switch item.Status {
		case model.ItemStatusActive:
			s.Active++
		case model.ItemStatusResolved:
			s.Resolved++
		}
		switch item.Type {
		case model.ItemTypeLost:
			s.Lost++
		case model.ItemTypeFound:
			s.Found++
		}
	}
	return s
}

// ByStatus returns the items with the given status, in order.
func ByStatus(items []model.Item, status string) []model.Item {
	var out []model.Item
	for _, item := range items {
		if item.Status == status {
			out = append(out, item)
		}
	}
	return out
}

// ByType returns the items of the given type, in order.
func ByType(items []model.Item, itemType string) []model.Item {
	var out []model.Item
	for _, item := range items {
		if item.Type == itemType {
			out = append(out, item)
		}
	}
	return out
}
