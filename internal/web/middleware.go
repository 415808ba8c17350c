package web

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/erazemk/najdeno/internal/auth"
	"github.com/erazemk/najdeno/internal/store"
)

type webContextKey string

const webClaimsKey webContextKey = "webclaims"

const cookieName = "token"

// sessionFromCookie returns the claims of a valid, unrevoked session cookie.
// A cookie that is present but no longer valid, or belongs to a deleted
// user, is cleared.
func sessionFromCookie(w http.ResponseWriter, r *http.Request, secret string, db *sql.DB) *auth.Claims {
	cookie, err := r.Cookie(cookieName)
	if err != nil || cookie.Value == "" {
		return nil
	}

	claims, err := auth.ValidateToken(secret, cookie.Value)
	if err != nil {
		clearAuthCookie(w)
		return nil
	}

	revoked, err := store.IsTokenRevoked(r.Context(), db, claims.ID)
	if err != nil {
		slog.Error("failed to check token revocation", "error", err)
		return nil
	}
	if revoked {
		clearAuthCookie(w)
		return nil
	}

	active, err := store.UserActive(r.Context(), db, claims.UserID)
	if err != nil {
		slog.Error("failed to check user", "error", err)
		return nil
	}
	if !active {
		clearAuthCookie(w)
		return nil
	}

	return claims
}

func withSession(r *http.Request, claims *auth.Claims) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), webClaimsKey, claims))
}

// CookieAuthMiddleware requires a valid session cookie. Anonymous visitors are
// sent to the login page and returned to the page they asked for afterwards.
func CookieAuthMiddleware(secret string, db *sql.DB) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := sessionFromCookie(w, r, secret, db)
			if claims == nil {
				target := "/login"
				if r.Method == http.MethodGet {
					target += "?next=" + url.QueryEscape(r.URL.RequestURI())
				}
				http.Redirect(w, r, target, http.StatusSeeOther)
				return
			}
			next.ServeHTTP(w, withSession(r, claims))
		})
	}
}

// OptionalAuthMiddleware adds the session to the context when there is one
// and serves the page either way.
func OptionalAuthMiddleware(secret string, db *sql.DB) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if claims := sessionFromCookie(w, r, secret, db); claims != nil {
				r = withSession(r, claims)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// safeRedirect returns next if it is a local path, otherwise "/".
func safeRedirect(next string) string {
	if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return "/"
	}
	return next
}

// clearAuthCookie clears the authentication cookie with consistent attributes.
func clearAuthCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// GetWebClaims retrieves the JWT claims from web context.
func GetWebClaims(ctx context.Context) *auth.Claims {
	claims, _ := ctx.Value(webClaimsKey).(*auth.Claims)
	return claims
}
