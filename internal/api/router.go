package api

import (
	"database/sql"
	"net/http"

	"github.com/erazemk/najdeno/internal/model"
	"github.com/erazemk/najdeno/internal/posting"
	"github.com/erazemk/najdeno/internal/ratelimit"
)

// Options configures the optional parts of the API router.
type Options struct {
	// Limiter throttles login and signup. Nil disables it.
	Limiter    *ratelimit.Limiter
	TrustProxy bool
}

// NewRouter creates the API router with all endpoints registered.
func NewRouter(db *sql.DB, jwtSecret string, posts *posting.Service, opts Options) http.Handler {
	mux := http.NewServeMux()

	authHandler := &AuthHandler{DB: db, JWTSecret: jwtSecret}
	usersHandler := &UsersHandler{DB: db}
	itemsHandler := &ItemsHandler{DB: db, Posts: posts}
	categoriesHandler := &CategoriesHandler{DB: db}

	authMW := AuthMiddleware(jwtSecret, db)
	requireAdmin := RequireRole(model.RoleAdmin)
	limit := func(h http.Handler) http.Handler { return h }
	if opts.Limiter != nil {
		limit = opts.Limiter.Middleware(opts.TrustProxy)
	}

	// Public: session.
	mux.Handle("POST /api/auth/signup", limit(http.HandlerFunc(authHandler.Signup)))
	mux.Handle("POST /api/auth/login", limit(http.HandlerFunc(authHandler.Login)))

	// Authenticated session routes.
	mux.Handle("PUT /api/auth/password", authMW(http.HandlerFunc(authHandler.ChangePassword)))
	mux.Handle("POST /api/auth/logout", authMW(http.HandlerFunc(authHandler.Logout)))
	mux.Handle("GET /api/me", authMW(http.HandlerFunc(authHandler.Me)))
	mux.Handle("PUT /api/me", authMW(http.HandlerFunc(authHandler.UpdateMe)))
	mux.Handle("GET /api/me/items", authMW(http.HandlerFunc(itemsHandler.ListMine)))

	// Public reads.
	mux.HandleFunc("GET /api/categories", categoriesHandler.List)
	mux.HandleFunc("GET /api/items", itemsHandler.List)
	mux.HandleFunc("GET /api/items/{id}", itemsHandler.Get)

	// Items: write (owner or admin, checked in handler).
	mux.Handle("POST /api/items", authMW(http.HandlerFunc(itemsHandler.Create)))
	mux.Handle("PUT /api/items/{id}/status", authMW(http.HandlerFunc(itemsHandler.UpdateStatus)))
	mux.Handle("DELETE /api/items/{id}", authMW(http.HandlerFunc(itemsHandler.Delete)))

	// Users (admin only).
	mux.Handle("GET /api/users", authMW(requireAdmin(http.HandlerFunc(usersHandler.List))))
	mux.Handle("DELETE /api/users/{id}", authMW(requireAdmin(http.HandlerFunc(usersHandler.Delete))))

	return mux
}
