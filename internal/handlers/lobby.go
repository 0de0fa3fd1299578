// internal/handlers/lobby.go
package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/jackc/pgx/v5"

	"github.com/geoduel-gg/geoduel/internal/database"
	"github.com/geoduel-gg/geoduel/internal/game"
	"github.com/geoduel-gg/geoduel/internal/models"
)

type createLobbyRequest struct {
	Timer int `json:"timer"`
}

// CreateLobbyHandler makes a fresh duel lobby with the caller as host and
// returns the row, invite code included.
func (s *Server) CreateLobbyHandler(w http.ResponseWriter, r *http.Request) {
	user := s.authenticateHTTP(w, r)
	if user == nil {
		return
	}

	var req createLobbyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, "invalid body", http.StatusUnprocessableEntity)
		return
	}
	if req.Timer <= 0 {
		req.Timer = game.DuelTimerSec
	}

	lobby, err := database.CreateLobby(r.Context(), user.ID, req.Timer, models.ModeDuel, 0)
	if err != nil {
		s.Log.WithError(err).Error("failed to create lobby")
		http.Error(w, "failed to create lobby", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, lobby)
}

// JoinLobbyHandler adds the caller to an existing lobby's member list. The
// realtime attach still happens over the lobby socket.
func (s *Server) JoinLobbyHandler(w http.ResponseWriter, r *http.Request) {
	user := s.authenticateHTTP(w, r)
	if user == nil {
		return
	}
	code := r.PathValue("code")

	lobby, err := database.GetLobbyByCode(r.Context(), code)
	if err != nil {
		http.Error(w, "lobby not found", http.StatusNotFound)
		return
	}
	if lobby.Mode != models.ModeClanWar && len(lobby.Users) >= 2 && !containsID(lobby.Users, user.ID) {
		http.Error(w, "lobby is full", http.StatusConflict)
		return
	}

	if err := database.AddUserToLobby(r.Context(), code, user.ID); err != nil {
		s.Log.WithError(err).WithField("lobby", code).Error("failed to join lobby")
		http.Error(w, "failed to join lobby", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"invite_code": code})
}

// LeaveLobbyHandler removes the caller from a lobby's member list.
func (s *Server) LeaveLobbyHandler(w http.ResponseWriter, r *http.Request) {
	user := s.authenticateHTTP(w, r)
	if user == nil {
		return
	}
	code := r.PathValue("code")

	if err := database.RemoveUserFromLobby(r.Context(), code, user.ID); err != nil {
		s.Log.WithError(err).WithField("lobby", code).Error("failed to leave lobby")
		http.Error(w, "failed to leave lobby", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// OpenLobbyHandler picks a random duel lobby still waiting for an opponent,
// for players who want a game without going through the matchmaking queue.
func (s *Server) OpenLobbyHandler(w http.ResponseWriter, r *http.Request) {
	user := s.authenticateHTTP(w, r)
	if user == nil {
		return
	}

	lobby, err := database.GetRandomOpenLobby(r.Context())
	if errors.Is(err, pgx.ErrNoRows) {
		http.Error(w, "no open lobby", http.StatusNotFound)
		return
	}
	if err != nil {
		s.Log.WithError(err).Error("failed to pick open lobby")
		http.Error(w, "failed to pick open lobby", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"invite_code": lobby.InviteCode})
}

// RandomLocationHandler hands out a single random location for solo practice.
func (s *Server) RandomLocationHandler(w http.ResponseWriter, r *http.Request) {
	user := s.authenticateHTTP(w, r)
	if user == nil {
		return
	}

	locs, err := database.RandomLocations(r.Context(), 1)
	if err != nil || len(locs) == 0 {
		s.Log.WithError(err).Error("failed to draw random location")
		http.Error(w, "no locations available", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, locs[0])
}

func containsID(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
