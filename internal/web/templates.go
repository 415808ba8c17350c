package web

import (
	"database/sql"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"github.com/erazemk/najdeno/internal/auth"
	"github.com/erazemk/najdeno/internal/model"
	"github.com/erazemk/najdeno/internal/posting"
	webembed "github.com/erazemk/najdeno/web"
)

// Templates holds parsed HTML templates.
type Templates struct {
	templates map[string]*template.Template
}

// FuncMap returns the template function map.
func FuncMap() template.FuncMap {
	return template.FuncMap{
		"roleAtLeast": model.RoleAtLeast,
		"typeName": func(t string) string {
			switch t {
			case model.ItemTypeLost:
				return "Lost"
			case model.ItemTypeFound:
				return "Found"
			default:
				return t
			}
		},
		"statusName": func(status string) string {
			switch status {
			case model.ItemStatusActive:
				return "Active"
			case model.ItemStatusResolved:
				return "Resolved"
			case model.ItemStatusInactive:
				return "Inactive"
			default:
				return status
			}
		},
		"statusAction": func(status string) string {
			switch status {
			case model.ItemStatusActive:
				return "Reactivate"
			case model.ItemStatusResolved:
				return "Mark resolved"
			case model.ItemStatusInactive:
				return "Take offline"
			default:
				return status
			}
		},
		"nextStatuses": model.NextStatuses,
		"canModify": func(claims *auth.Claims, item *model.Item) bool {
			return claims != nil && model.CanModify(claims.UserID, claims.Role, item)
		},
		"rows": func(items []model.Item, returnTo string) itemRows {
			return itemRows{Items: items, Return: returnTo}
		},
		"formatDay":  formatDay,
		"formatDate": func(t time.Time) string { return t.Local().Format("Jan 2, 2006") },
	}
}

// itemRows is the argument of the dashboard_rows template: the items and the
// page their action forms return to.
type itemRows struct {
	Items  []model.Item
	Return string
}

// formatDay renders a YYYY-MM-DD occurrence date, leaving unparsable values as is.
func formatDay(day string) string {
	t, err := time.Parse(model.DateLayout, day)
	if err != nil {
		return day
	}
	return t.Format("Jan 2, 2006")
}

// partials are parsed into every page.
var partials = []string{
	"item_card.html",
}

// LoadTemplates parses all page templates with the layout and partials.
func LoadTemplates() (*Templates, error) {
	tfs := webembed.TemplatesFS()

	layoutBytes, err := fs.ReadFile(tfs, "layout.html")
	if err != nil {
		return nil, fmt.Errorf("reading layout template: %w", err)
	}

	pages := []string{
		"home.html",
		"items.html",
		"item_detail.html",
		"post.html",
		"dashboard.html",
		"login.html",
		"signup.html",
		"settings.html",
		"users.html",
	}

	ts := &Templates{templates: make(map[string]*template.Template)}

	for _, page := range pages {
		pageBytes, err := fs.ReadFile(tfs, page)
		if err != nil {
			return nil, fmt.Errorf("reading template %s: %w", page, err)
		}

		tmpl := template.New(page).Funcs(FuncMap())
		tmpl, err = tmpl.Parse(string(layoutBytes))
		if err != nil {
			return nil, fmt.Errorf("parsing layout for %s: %w", page, err)
		}
		for _, partial := range partials {
			partialBytes, err := fs.ReadFile(tfs, partial)
			if err != nil {
				return nil, fmt.Errorf("reading partial %s: %w", partial, err)
			}
			if tmpl, err = tmpl.Parse(string(partialBytes)); err != nil {
				return nil, fmt.Errorf("parsing partial %s for %s: %w", partial, page, err)
			}
		}
		tmpl, err = tmpl.Parse(string(pageBytes))
		if err != nil {
			return nil, fmt.Errorf("parsing template %s: %w", page, err)
		}

		ts.templates[page] = tmpl
	}

	return ts, nil
}

// Render renders a template with the given data.
func (ts *Templates) Render(w http.ResponseWriter, name string, data any) {
	ts.RenderStatus(w, http.StatusOK, name, data)
}

// RenderStatus renders a template with the given status code.
func (ts *Templates) RenderStatus(w http.ResponseWriter, status int, name string, data any) {
	tmpl, ok := ts.templates[name]
	if !ok {
		http.Error(w, "template not found", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := tmpl.ExecuteTemplate(w, "layout", data); err != nil {
		slog.Error("failed to render template", "template", name, "error", err)
	}
}

// PageData is the base data passed to all templates.
type PageData struct {
	Title   string
	Nav     string
	User    *auth.Claims
	Error   string
	Success string
}

// Server holds all dependencies for page handlers.
type Server struct {
	DB            *sql.DB
	Templates     *Templates
	JWTSecret     string
	Posts         *posting.Service
	SecureCookies bool
}

func (s *Server) page(r *http.Request, title, nav string) PageData {
	return PageData{Title: title, Nav: nav, User: GetWebClaims(r.Context())}
}
