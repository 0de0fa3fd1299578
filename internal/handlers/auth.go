// internal/handlers/auth.go
package handlers

import (
	"net/http"
	"time"

	"github.com/geoduel-gg/geoduel/internal/auth"
	"github.com/geoduel-gg/geoduel/internal/database"
)

// RefreshHandler rotates the caller's token pair. The refresh token arrives
// as a cookie; its jti must match the argon2 hash stored on the user row.
// Every successful refresh issues a new refresh token and invalidates the
// old one.
func (s *Server) RefreshHandler(w http.ResponseWriter, r *http.Request) {
	refresh := extractCookieToken(r.Header.Get("Cookie"), "refresh_token")
	if refresh == "" {
		http.Error(w, "missing refresh token", http.StatusUnauthorized)
		return
	}

	uid, jti, err := auth.AuthenticateRefreshToken(refresh)
	if err != nil {
		http.Error(w, "invalid refresh token", http.StatusUnauthorized)
		return
	}

	user, err := database.GetUserByID(r.Context(), uid)
	if err != nil {
		http.Error(w, "user not found", http.StatusUnauthorized)
		return
	}
	if user.Banned {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	ok, err := auth.CompareRefreshToken(jti, user.RefreshToken)
	if err != nil || !ok {
		http.Error(w, "invalid refresh token", http.StatusUnauthorized)
		return
	}

	accessToken, err := auth.CreateAccessToken(user.ID)
	if err != nil {
		http.Error(w, "failed to issue token", http.StatusInternalServerError)
		return
	}
	refreshToken, newJTI, err := auth.CreateRefreshToken(user.ID)
	if err != nil {
		http.Error(w, "failed to issue token", http.StatusInternalServerError)
		return
	}
	hash, err := auth.HashRefreshToken(newJTI)
	if err != nil {
		http.Error(w, "failed to issue token", http.StatusInternalServerError)
		return
	}
	if err := database.SetRefreshTokenHash(r.Context(), user.ID, hash); err != nil {
		s.Log.WithError(err).WithField("user", user.ID).Error("failed to rotate refresh token")
		http.Error(w, "failed to issue token", http.StatusInternalServerError)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     "refresh_token",
		Value:    refreshToken,
		Path:     "/auth",
		Expires:  time.Now().Add(7 * 24 * time.Hour),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     "access_token",
		Value:    accessToken,
		Path:     "/",
		Expires:  time.Now().Add(time.Hour),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, map[string]string{"access_token": accessToken})
}
