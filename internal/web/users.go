package web

import (
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"golang.org/x/crypto/bcrypt"

	"github.com/erazemk/najdeno/internal/model"
	"github.com/erazemk/najdeno/internal/store"
)

// UsersPage handles GET /users (admin only).
func (s *Server) UsersPage(w http.ResponseWriter, r *http.Request) {
	claims := GetWebClaims(r.Context())
	if !model.RoleAtLeast(claims.Role, model.RoleAdmin) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	data := &struct {
		PageData
		Users []model.User
	}{PageData: s.page(r, "Users", "users")}
	data.Success = flash(r)

	users, err := store.ListUsers(r.Context(), s.DB)
	if err != nil {
		slog.Error("failed to list users", "error", err)
		data.Error = "Failed to load users"
	}
	data.Users = users

	s.Templates.Render(w, "users.html", data)
}

// UserDeleteSubmit handles POST /users/{id}/delete (admin only). The user's
// active items go offline with the account.
func (s *Server) UserDeleteSubmit(w http.ResponseWriter, r *http.Request) {
	claims := GetWebClaims(r.Context())
	if !model.RoleAtLeast(claims.Role, model.RoleAdmin) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}
	if id == claims.UserID {
		http.Error(w, "cannot delete yourself", http.StatusBadRequest)
		return
	}

	if err := store.DeleteUser(r.Context(), s.DB, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			http.Error(w, "user not found", http.StatusNotFound)
			return
		}
		slog.Error("failed to delete user", "error", err)
		http.Error(w, "failed to delete user", http.StatusInternalServerError)
		return
	}

	slog.Info("user deleted", "user", claims.Email, "deleted_user_id", id)
	http.Redirect(w, r, "/users?done=removed", http.StatusSeeOther)
}

type settingsPage struct {
	PageData
	Profile *model.User
}

func (s *Server) renderSettings(w http.ResponseWriter, r *http.Request, status int, errMsg, success string) {
	claims := GetWebClaims(r.Context())
	data := &settingsPage{PageData: s.page(r, "Settings", "settings")}
	data.Error = errMsg
	data.Success = success

	user, err := store.GetUser(r.Context(), s.DB, claims.UserID)
	if err != nil {
		slog.Error("failed to get user", "error", err)
	}
	if user == nil {
		user = &model.User{ID: claims.UserID, Email: claims.Email, Role: claims.Role}
	}
	data.Profile = user

	s.Templates.RenderStatus(w, status, "settings.html", data)
}

// SettingsPage handles GET /settings.
func (s *Server) SettingsPage(w http.ResponseWriter, r *http.Request) {
	s.renderSettings(w, r, http.StatusOK, "", flash(r))
}

// ProfileSubmit handles POST /settings/profile. The phone number entered here
// is published as contact info on items posted afterwards.
func (s *Server) ProfileSubmit(w http.ResponseWriter, r *http.Request) {
	claims := GetWebClaims(r.Context())

	err := store.UpdateUserProfile(r.Context(), s.DB, claims.UserID, r.FormValue("full_name"), r.FormValue("phone"))
	if err != nil {
		slog.Error("failed to update profile", "error", err)
		s.renderSettings(w, r, http.StatusInternalServerError, "Failed to save profile.", "")
		return
	}

	slog.Info("user updated profile", "user", claims.Email)
	http.Redirect(w, r, "/settings?done=profile", http.StatusSeeOther)
}

// PasswordSubmit handles POST /settings/password.
func (s *Server) PasswordSubmit(w http.ResponseWriter, r *http.Request) {
	claims := GetWebClaims(r.Context())

	currentPassword := r.FormValue("current_password")
	newPassword := r.FormValue("new_password")

	if currentPassword == "" || newPassword == "" {
		s.renderSettings(w, r, http.StatusBadRequest, "Enter your current and new password.", "")
		return
	}
	if err := model.ValidatePassword(newPassword); err != nil {
		s.renderSettings(w, r, http.StatusBadRequest, "New password must be at least 8 characters long.", "")
		return
	}

	user, err := store.GetUser(r.Context(), s.DB, claims.UserID)
	if err != nil || user == nil {
		s.renderSettings(w, r, http.StatusInternalServerError, "Failed to load your account.", "")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(currentPassword)); err != nil {
		s.renderSettings(w, r, http.StatusUnauthorized, "Current password is incorrect.", "")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		s.renderSettings(w, r, http.StatusInternalServerError, "Failed to save password.", "")
		return
	}

	if err := store.UpdateUserPassword(r.Context(), s.DB, claims.UserID, string(hash)); err != nil {
		s.renderSettings(w, r, http.StatusInternalServerError, "Failed to update password.", "")
		return
	}

	slog.Info("user changed own password", "user", claims.Email)
	http.Redirect(w, r, "/settings?done=password", http.StatusSeeOther)
}
