// internal/handlers/matchmaking_ws.go
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/coder/websocket"

	"github.com/geoduel-gg/geoduel/internal/middleware"
)

type queueJoinedEvent struct {
	Type     string `json:"type"`
	Position int    `json:"position"`
}

// MatchmakingWSHandler holds a player in the pairing queue for the lifetime
// of the socket. The matchmaker pushes match_found and redirect through the
// same connection; closing the socket (or sending stop_matchmaking) leaves
// the queue.
func (s *Server) MatchmakingWSHandler(w http.ResponseWriter, r *http.Request) {
	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		s.Log.Warnf("websocket accept error: %v", err)
		return
	}
	defer ws.Close(websocket.StatusInternalError, "handler finished")
	middleware.SocketOpened(s.Log, "matchmaking", r.RemoteAddr)

	user := s.authenticateWS(r.Context(), ws, r)
	if user == nil {
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	conn := newWSConn(user.ID, cancel, s.Log)

	pos := s.Matchmaker.Join(user, conn)
	defer s.Matchmaker.Leave(user.ID)
	conn.Send(queueJoinedEvent{Type: "queue_joined", Position: pos})

	go conn.writePump(ctx, ws)

	for {
		typ, data, err := ws.Read(ctx)
		if err != nil {
			if !strings.Contains(err.Error(), "context canceled") {
				middleware.SocketClosed(s.Log, "matchmaking", r.RemoteAddr, nil)
			}
			return
		}
		if typ != websocket.MessageText {
			continue
		}
		var msg inboundMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		if msg.Type == "stop_matchmaking" {
			s.Matchmaker.Leave(user.ID)
			ws.Close(websocket.StatusNormalClosure, "left queue")
			return
		}
	}
}
