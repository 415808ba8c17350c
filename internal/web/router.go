package web

import (
	"database/sql"
	"net/http"

	"github.com/erazemk/najdeno/internal/posting"
	"github.com/erazemk/najdeno/internal/ratelimit"
	webembed "github.com/erazemk/najdeno/web"
)

// Options configures the optional parts of the web router.
type Options struct {
	// Uploads serves locally stored images under /uploads/. Nil when images
	// live in an external bucket.
	Uploads http.Handler
	// Limiter throttles login and signup submissions. Nil disables it.
	Limiter       *ratelimit.Limiter
	TrustProxy    bool
	SecureCookies bool
}

// NewRouter creates the web page router with all page routes registered.
func NewRouter(db *sql.DB, jwtSecret string, posts *posting.Service, opts Options) (http.Handler, error) {
	templates, err := LoadTemplates()
	if err != nil {
		return nil, err
	}

	s := &Server{
		DB:            db,
		Templates:     templates,
		JWTSecret:     jwtSecret,
		Posts:         posts,
		SecureCookies: opts.SecureCookies,
	}

	mux := http.NewServeMux()
	cookieAuth := CookieAuthMiddleware(jwtSecret, db)
	optionalAuth := OptionalAuthMiddleware(jwtSecret, db)
	limit := func(h http.Handler) http.Handler { return h }
	if opts.Limiter != nil {
		limit = opts.Limiter.Middleware(opts.TrustProxy)
	}

	// Static assets and uploaded images.
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.FS(webembed.StaticFS()))))
	if opts.Uploads != nil {
		mux.Handle("GET /uploads/", http.StripPrefix("/uploads", opts.Uploads))
	}

	// Session.
	mux.Handle("GET /login", optionalAuth(http.HandlerFunc(s.LoginPage)))
	mux.Handle("POST /login", limit(http.HandlerFunc(s.LoginSubmit)))
	mux.Handle("GET /signup", optionalAuth(http.HandlerFunc(s.SignupPage)))
	mux.Handle("POST /signup", limit(http.HandlerFunc(s.SignupSubmit)))
	mux.HandleFunc("POST /logout", s.Logout)

	// Public pages.
	mux.Handle("GET /{$}", optionalAuth(http.HandlerFunc(s.Home)))
	mux.Handle("GET /lost", optionalAuth(http.HandlerFunc(s.LostItemsPage)))
	mux.Handle("GET /found", optionalAuth(http.HandlerFunc(s.FoundItemsPage)))
	mux.Handle("GET /items/{id}", optionalAuth(http.HandlerFunc(s.ItemDetailPage)))

	// Authenticated pages.
	mux.Handle("GET /post", cookieAuth(http.HandlerFunc(s.PostItemPage)))
	mux.Handle("POST /post", cookieAuth(http.HandlerFunc(s.PostItemSubmit)))
	mux.Handle("GET /dashboard", cookieAuth(http.HandlerFunc(s.Dashboard)))
	mux.Handle("POST /items/{id}/status", cookieAuth(http.HandlerFunc(s.ItemStatusSubmit)))
	mux.Handle("POST /items/{id}/delete", cookieAuth(http.HandlerFunc(s.ItemDeleteSubmit)))

	mux.Handle("GET /settings", cookieAuth(http.HandlerFunc(s.SettingsPage)))
	mux.Handle("POST /settings/profile", cookieAuth(http.HandlerFunc(s.ProfileSubmit)))
	mux.Handle("POST /settings/password", cookieAuth(http.HandlerFunc(s.PasswordSubmit)))

	mux.Handle("GET /users", cookieAuth(http.HandlerFunc(s.UsersPage)))
	mux.Handle("POST /users/{id}/delete", cookieAuth(http.HandlerFunc(s.UserDeleteSubmit)))

	return mux, nil
}
