// internal/handlers/profile.go
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/geoduel-gg/geoduel/internal/cache"
	"github.com/geoduel-gg/geoduel/internal/database"
	"github.com/geoduel-gg/geoduel/internal/models"
)

// MeHandler returns the caller's own profile, country stats included.
func (s *Server) MeHandler(w http.ResponseWriter, r *http.Request) {
	user := s.authenticateHTTP(w, r)
	if user == nil {
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// LeaderboardHandler returns the top five players by XP. The list is served
// from Redis when fresh and rebuilt from Postgres on a miss.
func (s *Server) LeaderboardHandler(w http.ResponseWriter, r *http.Request) {
	if s.authenticateHTTP(w, r) == nil {
		return
	}

	if cached, err := cache.GetCachedLeaderboard(r.Context()); err == nil && cached != nil {
		w.Header().Set("Content-Type", "application/json")
		w.Write(cached)
		return
	}

	users, err := database.TopUsersByXP(r.Context(), 5)
	if err != nil {
		s.Log.WithError(err).Error("failed to load leaderboard")
		http.Error(w, "failed to load leaderboard", http.StatusInternalServerError)
		return
	}
	board := make([]models.PlayerInfo, 0, len(users))
	for _, u := range users {
		board = append(board, u.Info())
	}

	data, err := json.Marshal(board)
	if err != nil {
		http.Error(w, "failed to load leaderboard", http.StatusInternalServerError)
		return
	}
	if err := cache.SetCachedLeaderboard(r.Context(), data); err != nil {
		s.Log.WithError(err).Warn("failed to cache leaderboard")
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

type avatarRequest struct {
	Avatar string `json:"avatar"`
}

// AvatarHandler updates the caller's avatar URL.
func (s *Server) AvatarHandler(w http.ResponseWriter, r *http.Request) {
	user := s.authenticateHTTP(w, r)
	if user == nil {
		return
	}

	var req avatarRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Avatar == "" {
		http.Error(w, "invalid body", http.StatusUnprocessableEntity)
		return
	}
	if err := database.UpdateUserAvatar(r.Context(), user.ID, req.Avatar); err != nil {
		s.Log.WithError(err).WithField("user", user.ID).Error("failed to update avatar")
		http.Error(w, "failed to update avatar", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
