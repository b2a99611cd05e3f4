package handler

import (
	"log/slog"
	"net/http"

	"golang.org/x/crypto/bcrypt"

	appI18n "scangrade/internal/i18n"
	"scangrade/internal/model"
)

const sessionCookieName = "session"

// requireAuth is middleware that checks for a valid session cookie.
func (h *Handler) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(sessionCookieName)
		if err != nil || cookie.Value == "" {
			respondError(w, http.StatusUnauthorized, appI18n.T(r.Context(), "LoginError"))
			return
		}

		authSess, err := h.store.GetAuthSession(cookie.Value)
		if err != nil {
			slog.Error("failed to get auth session", "error", err)
			respondError(w, http.StatusUnauthorized, appI18n.T(r.Context(), "LoginError"))
			return
		}
		if authSess == nil {
			respondError(w, http.StatusUnauthorized, appI18n.T(r.Context(), "LoginError"))
			return
		}

		user, err := h.resolveUser(r, authSess.Username)
		if err != nil || user == nil {
			respondError(w, http.StatusUnauthorized, appI18n.T(r.Context(), "LoginError"))
			return
		}

		ctx := model.ContextWithUser(r.Context(), user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// resolveUser materializes the session's user. Local rows win; a session
// created from a directory login has no local row and gets a synthetic
// author user.
func (h *Handler) resolveUser(r *http.Request, username string) (*model.User, error) {
	user, err := h.store.GetUserByUsername(username)
	if err != nil {
		return nil, err
	}
	if user != nil {
		if !user.Active {
			return nil, nil
		}
		return user, nil
	}
	if h.dir == nil {
		return nil, nil
	}
	acc, err := h.dir.Lookup(r.Context(), username)
	if err != nil || acc == nil || acc.Expired() {
		return nil, err
	}
	return &model.User{Username: acc.Login, Role: model.UserRoleAuthor, Active: true}, nil
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	username := r.FormValue("username")
	password := r.FormValue("password")

	ok, expired, daysLeft, err := h.authenticate(r, username, password)
	if err != nil {
		slog.Error("authenticate", "username", username, "error", err)
		respondError(w, http.StatusServiceUnavailable, appI18n.T(r.Context(), "DirectoryUnavailable"))
		return
	}
	if expired {
		respondError(w, http.StatusForbidden, appI18n.T(r.Context(), "AccessExpired"))
		return
	}
	if !ok {
		respondError(w, http.StatusUnauthorized, appI18n.T(r.Context(), "LoginError"))
		return
	}

	token, err := h.store.CreateAuthSession(username)
	if err != nil {
		slog.Error("failed to create auth session", "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   h.config.SecureCookies,
	})

	resp := map[string]any{"ok": true, "login": username}
	if daysLeft != nil {
		resp["days_left"] = *daysLeft
		resp["message"] = appI18n.Td(r.Context(), "AccessDaysLeft", map[string]any{"Days": *daysLeft})
	}
	respondJSON(w, http.StatusOK, resp)
}

// authenticate tries the remote directory first when one is configured,
// then the local user table. The returned daysLeft is non-nil only for
// directory accounts that carry an expiry date.
func (h *Handler) authenticate(r *http.Request, username, password string) (ok, expired bool, daysLeft *int, err error) {
	if h.dir != nil {
		acc, err := h.dir.Authenticate(r.Context(), username, password)
		if err != nil {
			return false, false, nil, err
		}
		if acc != nil {
			if acc.Expired() {
				return false, true, nil, nil
			}
			if acc.Expiry != nil {
				d := acc.DaysLeft
				return true, false, &d, nil
			}
			return true, false, nil, nil
		}
	}

	user, err := h.store.GetUserByUsername(username)
	if err != nil {
		return false, false, nil, err
	}
	if user == nil || !user.Active {
		return false, false, nil, nil
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return false, false, nil, nil
	}
	return true, false, nil, nil
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(sessionCookieName)
	if err == nil && cookie.Value != "" {
		_ = h.store.DeleteAuthSession(cookie.Value)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.SecureCookies,
	})
	respondJSON(w, http.StatusOK, map[string]any{"ok": true})
}
