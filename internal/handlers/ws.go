// internal/handlers/ws.go
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/coder/websocket"

	"github.com/geoduel-gg/geoduel/internal/game"
	"github.com/geoduel-gg/geoduel/internal/middleware"
	"github.com/geoduel-gg/geoduel/internal/models"
)

// inboundMessage is the superset of fields carried by client messages; the
// Type field selects which ones matter.
type inboundMessage struct {
	Type    string  `json:"type"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	Message string  `json:"message"`
}

// PlayerWSHandler runs a participant socket for one lobby.
func (s *Server) PlayerWSHandler(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("lobby_code")

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		s.Log.Warnf("websocket accept error: %v", err)
		return
	}
	defer ws.Close(websocket.StatusInternalError, "handler finished")
	middleware.SocketOpened(s.Log, "lobby/"+code, r.RemoteAddr)

	user := s.authenticateWS(r.Context(), ws, r)
	if user == nil {
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	conn := newWSConn(user.ID, cancel, s.Log)

	if err := s.Engine.HandleJoin(ctx, code, user, conn); err != nil {
		switch {
		case errors.Is(err, game.ErrLobbyNotFound):
			ws.Close(websocket.StatusPolicyViolation, ReasonLobbyGone)
		case errors.Is(err, game.ErrLobbyFull):
			ws.Close(websocket.StatusPolicyViolation, ReasonLobbyFull)
		default:
			s.Log.WithError(err).WithField("lobby", code).Warn("join failed")
			ws.Close(websocket.StatusInternalError, "join failed")
		}
		return
	}

	go conn.writePump(ctx, ws)

	left := s.playerReadPump(ctx, ws, code, user, conn)

	if left {
		ws.Close(websocket.StatusNormalClosure, "left lobby")
		return
	}
	// unexpected drop: arm the grace window instead of leaving
	s.Engine.HandleDisconnect(context.Background(), code, user.ID, conn)
	middleware.SocketClosed(s.Log, "lobby/"+code, r.RemoteAddr, nil)
}

// playerReadPump dispatches inbound messages until the socket closes.
// Returns true when the player left voluntarily.
func (s *Server) playerReadPump(ctx context.Context, ws *websocket.Conn, code string, user *models.User, conn *wsConn) bool {
	userID := user.ID
	for {
		typ, data, err := ws.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
				s.Log.WithField("lobby", code).Debugf("socket closed normally for user %d", userID)
			} else if !strings.Contains(err.Error(), "context canceled") {
				s.Log.WithField("lobby", code).Debugf("read error for user %d: %v", userID, err)
			}
			return false
		}
		if typ != websocket.MessageText {
			continue
		}

		var msg inboundMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.Log.WithField("lobby", code).Warnf("invalid json from user %d: %v", userID, err)
			continue
		}

		switch msg.Type {
		case "game_start":
			if err := s.Engine.HandleGameStart(ctx, code); err != nil {
				s.Log.WithError(err).WithField("lobby", code).Warn("game_start failed")
			}
		case "game_end":
			if err := s.Engine.HandleGameEnd(ctx, code); err != nil {
				s.Log.WithError(err).WithField("lobby", code).Warn("game_end failed")
			}
		case "submit_guess":
			if msg.Lat < -90 || msg.Lat > 90 || msg.Lon < -180 || msg.Lon > 180 {
				s.Log.WithField("lobby", code).Warnf("out-of-bounds guess from user %d", userID)
				continue
			}
			if err := s.Engine.HandleGuess(ctx, code, userID, msg.Lat, msg.Lon); err != nil {
				s.Log.WithError(err).WithField("lobby", code).Warn("submit_guess failed")
			}
		case "round_start":
			if err := s.Engine.HandleRoundStart(ctx, code); err != nil {
				s.Log.WithError(err).WithField("lobby", code).Warn("round_start failed")
			}
		case "round_end":
			if err := s.Engine.HandleRoundEnd(ctx, code); err != nil {
				s.Log.WithError(err).WithField("lobby", code).Warn("round_end failed")
			}
		case "player_joined":
			// roster rebroadcast; the engine treats a repeat join from an
			// attached user as exactly that
			if err := s.Engine.HandleJoin(ctx, code, user, conn); err != nil {
				s.Log.WithError(err).WithField("lobby", code).Warn("roster rebroadcast failed")
			}
		case "player_left":
			s.Engine.HandleLeave(ctx, code, userID, conn)
			return true
		case "player_reconnect":
			if err := s.Engine.HandleReconnect(ctx, code, user, conn); err != nil {
				s.Log.WithError(err).WithField("lobby", code).Warn("player_reconnect failed")
			}
		case "broadcast":
			if msg.Message != "" {
				s.Engine.HandleChat(code, user.Name, msg.Message)
			}
		case "spectate":
			if err := s.Engine.SendStateTo(ctx, code, userID); err != nil {
				s.Log.WithError(err).WithField("lobby", code).Debug("spectate state push failed")
			}
		default:
			s.Log.WithField("lobby", code).Warnf("unknown message type %q from user %d", msg.Type, userID)
		}
	}
}

// SpectatorWSHandler runs a read-only observer socket for one lobby.
func (s *Server) SpectatorWSHandler(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("lobby_code")

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		s.Log.Warnf("websocket accept error: %v", err)
		return
	}
	defer ws.Close(websocket.StatusInternalError, "handler finished")

	user := s.authenticateWS(r.Context(), ws, r)
	if user == nil {
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	conn := newWSConn(user.ID, cancel, s.Log)

	if err := s.Engine.HandleSpectate(ctx, code, conn); err != nil {
		ws.Close(websocket.StatusPolicyViolation, ReasonLobbyGone)
		return
	}
	defer s.Engine.HandleSpectatorLeave(code, conn)

	go conn.writePump(ctx, ws)

	// spectators send nothing meaningful; drain until the socket closes
	for {
		if _, _, err := ws.Read(ctx); err != nil {
			return
		}
	}
}
