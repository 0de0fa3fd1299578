// internal/handlers/server.go
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/sirupsen/logrus"

	"github.com/geoduel-gg/geoduel/internal/auth"
	"github.com/geoduel-gg/geoduel/internal/clan"
	"github.com/geoduel-gg/geoduel/internal/database"
	"github.com/geoduel-gg/geoduel/internal/game"
	"github.com/geoduel-gg/geoduel/internal/matchmaking"
	"github.com/geoduel-gg/geoduel/internal/models"
)

// Server bundles the engine and its collaborators behind the HTTP surface.
type Server struct {
	Engine     *game.Engine
	Matchmaker *matchmaking.Matchmaker
	Wars       *clan.WarService
	Log        *logrus.Logger
}

func NewServer(engine *game.Engine, mm *matchmaking.Matchmaker, wars *clan.WarService, log *logrus.Logger) *Server {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Server{Engine: engine, Matchmaker: mm, Wars: wars, Log: log}
}

// Routes registers every endpoint on a fresh mux.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /ws/{lobby_code}", s.PlayerWSHandler)
	mux.HandleFunc("GET /ws/{lobby_code}/spectate", s.SpectatorWSHandler)
	mux.HandleFunc("GET /matchmaking/", s.MatchmakingWSHandler)

	mux.Handle("POST /lobbies/", RateLimit("lobbies", 10, time.Minute, http.HandlerFunc(s.CreateLobbyHandler)))
	mux.Handle("PUT /lobbies/{code}/members", RateLimit("lobbies", 10, time.Minute, http.HandlerFunc(s.JoinLobbyHandler)))
	mux.HandleFunc("DELETE /lobbies/{code}/members", s.LeaveLobbyHandler)
	mux.HandleFunc("GET /lobbies/random", s.RandomLocationHandler)
	mux.HandleFunc("GET /lobbies/open", s.OpenLobbyHandler)

	mux.HandleFunc("POST /clans", s.CreateClanHandler)
	mux.HandleFunc("GET /clans/{id}", s.GetClanHandler)
	mux.HandleFunc("POST /clans/war", s.CreateWarHandler)
	mux.HandleFunc("GET /clans/war/{id}", s.GetWarHandler)
	mux.HandleFunc("POST /clans/war/{id}/participants", s.SetWarParticipantsHandler)
	mux.HandleFunc("POST /clans/war/{id}/play", s.PlayWarHandler)
	mux.HandleFunc("POST /clans/war/{id}/declaim", s.DeclaimWarHandler)

	mux.HandleFunc("GET /profile/me", s.MeHandler)
	mux.HandleFunc("GET /profile/leaderboard", s.LeaderboardHandler)
	mux.HandleFunc("PUT /profile/avatar", s.AvatarHandler)

	mux.HandleFunc("POST /auth/refresh", s.RefreshHandler)

	return mux
}

// authenticateHTTP resolves the calling user from the request's bearer token.
// Writes the error response itself and returns nil on failure.
func (s *Server) authenticateHTTP(w http.ResponseWriter, r *http.Request) *models.User {
	token := requestToken(r)
	if token == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return nil
	}
	uid, err := auth.AuthenticateToken(token)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return nil
	}
	user, err := database.GetUserByID(r.Context(), uid)
	if err != nil {
		http.Error(w, "user not found", http.StatusUnauthorized)
		return nil
	}
	if user.Banned {
		http.Error(w, "forbidden", http.StatusForbidden)
		return nil
	}
	return user
}

// authenticateWS resolves the user for a just-accepted socket from the token
// query parameter, closing with 1008 and the canonical reason on failure.
func (s *Server) authenticateWS(ctx context.Context, ws *websocket.Conn, r *http.Request) *models.User {
	token := r.URL.Query().Get("token")
	if token == "" {
		ws.Close(websocket.StatusPolicyViolation, ReasonMissingToken)
		return nil
	}
	uid, err := auth.AuthenticateToken(token)
	if err != nil {
		ws.Close(websocket.StatusPolicyViolation, ReasonInvalidToken)
		return nil
	}
	user, err := database.GetUserByID(ctx, uid)
	if err != nil {
		ws.Close(websocket.StatusPolicyViolation, ReasonUserNotFound)
		return nil
	}
	return user
}
