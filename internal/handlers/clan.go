// internal/handlers/clan.go
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/geoduel-gg/geoduel/internal/clan"
	"github.com/geoduel-gg/geoduel/internal/database"
	"github.com/geoduel-gg/geoduel/internal/models"
)

func pathID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	return id, err == nil && id > 0
}

type createClanRequest struct {
	Name        string `json:"name"`
	Tag         string `json:"tag"`
	Description string `json:"description"`
}

// CreateClanHandler founds a clan with the caller as owner. A user can
// belong to at most one clan.
func (s *Server) CreateClanHandler(w http.ResponseWriter, r *http.Request) {
	user := s.authenticateHTTP(w, r)
	if user == nil {
		return
	}
	if user.ClanID != 0 {
		http.Error(w, "already in a clan", http.StatusConflict)
		return
	}

	var req createClanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		http.Error(w, "invalid body", http.StatusUnprocessableEntity)
		return
	}

	c := &models.Clan{
		Name:        req.Name,
		Tag:         req.Tag,
		Description: req.Description,
		OwnerID:     user.ID,
	}
	if err := database.CreateClan(r.Context(), c); err != nil {
		s.Log.WithError(err).Error("failed to create clan")
		http.Error(w, "failed to create clan", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// GetClanHandler returns a clan with its member list, XP-ordered.
func (s *Server) GetClanHandler(w http.ResponseWriter, r *http.Request) {
	if s.authenticateHTTP(w, r) == nil {
		return
	}
	id, ok := pathID(r, "id")
	if !ok {
		http.Error(w, "invalid clan id", http.StatusUnprocessableEntity)
		return
	}
	c, err := database.GetClanByID(r.Context(), id)
	if err != nil {
		http.Error(w, "clan not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

type createWarRequest struct {
	OpponentClanID int64 `json:"opponent_clan_id"`
}

// CreateWarHandler declares a pending war between the caller's clan and an
// opponent clan.
func (s *Server) CreateWarHandler(w http.ResponseWriter, r *http.Request) {
	user := s.authenticateHTTP(w, r)
	if user == nil {
		return
	}
	if user.ClanID == 0 {
		http.Error(w, "not in a clan", http.StatusConflict)
		return
	}

	var req createWarRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.OpponentClanID == 0 {
		http.Error(w, "invalid body", http.StatusUnprocessableEntity)
		return
	}
	if req.OpponentClanID == user.ClanID {
		http.Error(w, "cannot declare war on own clan", http.StatusUnprocessableEntity)
		return
	}
	if _, err := database.GetClanByID(r.Context(), req.OpponentClanID); err != nil {
		http.Error(w, "opponent clan not found", http.StatusNotFound)
		return
	}

	war := &models.ClanWar{
		Clan1ID:         user.ClanID,
		Clan2ID:         req.OpponentClanID,
		Rounds:          clan.RosterSize,
		Status:          models.WarPending,
		CreatedByUserID: user.ID,
	}
	if err := database.CreateWar(r.Context(), war); err != nil {
		s.Log.WithError(err).Error("failed to create war")
		http.Error(w, "failed to create war", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, war)
}

// GetWarHandler returns a war with its participants document.
func (s *Server) GetWarHandler(w http.ResponseWriter, r *http.Request) {
	if s.authenticateHTTP(w, r) == nil {
		return
	}
	id, ok := pathID(r, "id")
	if !ok {
		http.Error(w, "invalid war id", http.StatusUnprocessableEntity)
		return
	}
	war, err := database.GetWarByID(r.Context(), id)
	if err != nil {
		http.Error(w, "war not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, war)
}

type setParticipantsRequest struct {
	Players []int64 `json:"players"`
}

// SetWarParticipantsHandler submits the caller's clan roster for a war.
func (s *Server) SetWarParticipantsHandler(w http.ResponseWriter, r *http.Request) {
	user := s.authenticateHTTP(w, r)
	if user == nil {
		return
	}
	id, ok := pathID(r, "id")
	if !ok {
		http.Error(w, "invalid war id", http.StatusUnprocessableEntity)
		return
	}

	var req setParticipantsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusUnprocessableEntity)
		return
	}

	err := s.Wars.SetParticipants(r.Context(), id, user.ClanID, req.Players)
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, clan.ErrRosterSize):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	case errors.Is(err, clan.ErrWarNotFound):
		http.Error(w, "war not found", http.StatusNotFound)
	case errors.Is(err, clan.ErrWrongClan):
		http.Error(w, "clan is not a side of this war", http.StatusForbidden)
	default:
		s.Log.WithError(err).WithField("war", id).Error("failed to set participants")
		http.Error(w, "failed to set participants", http.StatusInternalServerError)
	}
}

// PlayWarHandler spawns the caller's solo war lobby and returns its code.
func (s *Server) PlayWarHandler(w http.ResponseWriter, r *http.Request) {
	user := s.authenticateHTTP(w, r)
	if user == nil {
		return
	}
	id, ok := pathID(r, "id")
	if !ok {
		http.Error(w, "invalid war id", http.StatusUnprocessableEntity)
		return
	}

	code, err := s.Wars.PlayWar(r.Context(), id, user.ID)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]string{"lobby_code": code})
	case errors.Is(err, clan.ErrWarNotFound):
		http.Error(w, "war not found", http.StatusNotFound)
	case errors.Is(err, clan.ErrNotParticipant):
		http.Error(w, "not a participant in this war", http.StatusForbidden)
	default:
		s.Log.WithError(err).WithField("war", id).Error("failed to start war game")
		http.Error(w, "failed to start war game", http.StatusInternalServerError)
	}
}

// DeclaimWarHandler forfeits a pending war on behalf of the caller's clan.
func (s *Server) DeclaimWarHandler(w http.ResponseWriter, r *http.Request) {
	user := s.authenticateHTTP(w, r)
	if user == nil {
		return
	}
	id, ok := pathID(r, "id")
	if !ok {
		http.Error(w, "invalid war id", http.StatusUnprocessableEntity)
		return
	}

	err := s.Wars.Declaim(r.Context(), id, user.ClanID)
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, clan.ErrWarNotFound):
		http.Error(w, "war not found", http.StatusNotFound)
	case errors.Is(err, clan.ErrWarNotPending):
		http.Error(w, "war already started", http.StatusConflict)
	case errors.Is(err, clan.ErrWrongClan):
		http.Error(w, "clan is not a side of this war", http.StatusForbidden)
	default:
		s.Log.WithError(err).WithField("war", id).Error("failed to declaim war")
		http.Error(w, "failed to declaim war", http.StatusInternalServerError)
	}
}
