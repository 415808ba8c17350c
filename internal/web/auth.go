package web

import (
	"log/slog"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/erazemk/najdeno/internal/auth"
	"github.com/erazemk/najdeno/internal/model"
	"github.com/erazemk/najdeno/internal/posting"
	"github.com/erazemk/najdeno/internal/store"
)

type authPage struct {
	PageData
	Next     string
	Email    string
	FullName string
}

// LoginPage handles GET /login.
func (s *Server) LoginPage(w http.ResponseWriter, r *http.Request) {
	s.Templates.Render(w, "login.html", &authPage{
		PageData: s.page(r, "Log in", "login"),
		Next:     r.URL.Query().Get("next"),
	})
}

// LoginSubmit handles POST /login.
func (s *Server) LoginSubmit(w http.ResponseWriter, r *http.Request) {
	email := strings.TrimSpace(r.FormValue("email"))
	password := r.FormValue("password")
	data := &authPage{PageData: s.page(r, "Log in", "login"), Next: r.FormValue("next"), Email: email}

	if email == "" || password == "" {
		data.Error = "Enter your email and password."
		s.Templates.RenderStatus(w, http.StatusBadRequest, "login.html", data)
		return
	}

	user, err := store.GetUserByEmail(r.Context(), s.DB, email)
	if err != nil {
		slog.Error("failed to look up user", "error", err)
	}
	if user == nil || bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		slog.Warn("login failed", "user", email, "remote", r.RemoteAddr)
		data.Error = "Invalid email or password."
		s.Templates.RenderStatus(w, http.StatusUnauthorized, "login.html", data)
		return
	}

	if !s.startSession(w, user) {
		data.Error = "Login failed. Please try again."
		s.Templates.RenderStatus(w, http.StatusInternalServerError, "login.html", data)
		return
	}

	slog.Info("user logged in", "user", user.Email, "role", user.Role)
	http.Redirect(w, r, safeRedirect(data.Next), http.StatusSeeOther)
}

// SignupPage handles GET /signup.
func (s *Server) SignupPage(w http.ResponseWriter, r *http.Request) {
	s.Templates.Render(w, "signup.html", &authPage{
		PageData: s.page(r, "Sign up", "signup"),
		Next:     r.URL.Query().Get("next"),
	})
}

// SignupSubmit handles POST /signup.
func (s *Server) SignupSubmit(w http.ResponseWriter, r *http.Request) {
	email := strings.TrimSpace(r.FormValue("email"))
	fullName := strings.TrimSpace(r.FormValue("full_name"))
	password := r.FormValue("password")
	data := &authPage{
		PageData: s.page(r, "Sign up", "signup"),
		Next:     r.FormValue("next"),
		Email:    email,
		FullName: fullName,
	}

	fail := func(status int, msg string) {
		data.Error = msg
		s.Templates.RenderStatus(w, status, "signup.html", data)
	}

	if !model.ValidEmail(email) {
		fail(http.StatusBadRequest, "Enter a valid email address.")
		return
	}
	if err := model.ValidatePassword(password); err != nil {
		fail(http.StatusBadRequest, "Password must be at least 8 characters long.")
		return
	}
	if password != r.FormValue("password_confirm") {
		fail(http.StatusBadRequest, "Passwords do not match.")
		return
	}

	existing, err := store.GetUserByEmail(r.Context(), s.DB, email)
	if err != nil {
		slog.Error("failed to look up user", "error", err)
		fail(http.StatusInternalServerError, posting.GenericMessage)
		return
	}
	if existing != nil {
		fail(http.StatusConflict, "An account with this email already exists.")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		fail(http.StatusInternalServerError, posting.GenericMessage)
		return
	}

	user, err := store.CreateUser(r.Context(), s.DB, email, fullName, string(hash), model.RoleUser)
	if err != nil {
		slog.Warn("failed to create user", "error", err)
		fail(http.StatusConflict, "An account with this email already exists.")
		return
	}

	if !s.startSession(w, user) {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}

	slog.Info("user signed up", "user", user.Email)
	http.Redirect(w, r, safeRedirect(data.Next), http.StatusSeeOther)
}

// Logout handles POST /logout. The session token is revoked, not just dropped.
func (s *Server) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(cookieName); err == nil && cookie.Value != "" {
		if claims, err := auth.ValidateToken(s.JWTSecret, cookie.Value); err == nil {
			if err := store.RevokeToken(r.Context(), s.DB, claims.ID, claims.ExpiresAt.Time); err != nil {
				slog.Error("failed to revoke token", "error", err)
			} else {
				slog.Info("user logged out", "user", claims.Email)
			}
		}
	}
	clearAuthCookie(w)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// startSession issues a token for user and sets the session cookie.
func (s *Server) startSession(w http.ResponseWriter, user *model.User) bool {
	token, err := auth.GenerateToken(s.JWTSecret, user.ID, user.Email, user.Role)
	if err != nil {
		slog.Error("failed to generate token", "error", err)
		return false
	}

	http.SetCookie(w, &http.Cookie{
		Name:     cookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.SecureCookies,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(auth.TokenExpiry.Seconds()),
	})
	return true
}
